package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"geoload/internal/datasource/file"
	"geoload/internal/ingest"
)

func newProbeCmd(g *globals) *cobra.Command {
	var (
		table  string
		output string
		sf     schemaFlags
	)
	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Print the schema a file would be loaded with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sf.apply(cmd, &g.cfg)
			if err := g.validate(false); err != nil {
				return err
			}
			r := &ingest.Runner{
				Logger: g.log,
				Options: ingest.Options{
					Schema:     g.cfg.SchemaOptions(),
					SampleSize: g.cfg.Schema.SampleSize,
				},
			}
			ts, err := r.Probe(cmd.Context(), file.Local{Path: args[0]}, table)
			if err != nil {
				return err
			}

			switch output {
			case "json":
				enc := json.NewEncoder(g.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(ts)
			case "yaml", "":
				enc := yaml.NewEncoder(g.stdout)
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(ts)
			default:
				return &UserError{
					Message:  fmt.Sprintf("Unknown output format %q", output),
					Fix:      "Use --output yaml or json",
					ExitCode: ExitInput,
				}
			}
		},
	}
	cmd.Flags().StringVarP(&table, "table", "t", "", "table name (default: derived from the file name)")
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format: yaml | json")
	sf.register(cmd)
	return cmd
}
