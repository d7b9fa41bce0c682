package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"geoload/internal/schema"
)

func newDropCmd(g *globals) *cobra.Command {
	var ifExists bool
	cmd := &cobra.Command{
		Use:   "drop <table>",
		Short: "Drop a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.validate(true); err != nil {
				return err
			}
			table, err := schema.NormalizeTableName(args[0])
			if err != nil {
				return &UserError{Message: "Invalid table name", Cause: err.Error(), ExitCode: ExitInput, Err: err}
			}

			ctx := cmd.Context()
			repo, err := g.openRepo(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.DropTable(ctx, table, ifExists); err != nil {
				return &UserError{
					Message:  fmt.Sprintf("Cannot drop %s", table),
					Cause:    err.Error(),
					Fix:      "Use --if-exists to ignore a missing table",
					ExitCode: ExitDatabase,
					Err:      err,
				}
			}
			fmt.Fprintf(g.stdout, "dropped %s\n", table)
			return nil
		},
	}
	cmd.Flags().BoolVar(&ifExists, "if-exists", false, "do not fail when the table does not exist")
	return cmd
}
