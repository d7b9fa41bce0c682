package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"geoload/internal/datasource/file"
	"geoload/internal/ingest"
	"geoload/internal/transformer"
)

type uploadFlags struct {
	table      string
	replace    bool
	output     string
	noProgress bool
	schema     schemaFlags
}

func newUploadCmd(g *globals) *cobra.Command {
	var f uploadFlags
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Load a GeoJSON FeatureCollection into a table",
		Long: `Load a GeoJSON FeatureCollection (.geojson, .json, optionally .gz or .zst)
into a table. The table is created from the inferred schema when missing.
Every accepted feature is committed in one transaction, or none is.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.schema.apply(cmd, &g.cfg)
			if err := g.validate(true); err != nil {
				return err
			}
			return runUpload(cmd.Context(), g, f, args[0])
		},
	}
	cmd.Flags().StringVarP(&f.table, "table", "t", "", "target table (default: derived from the file name)")
	cmd.Flags().BoolVar(&f.replace, "replace", false, "empty the table inside the load transaction first")
	cmd.Flags().StringVarP(&f.output, "output", "o", "text", "summary format: text | json | yaml")
	cmd.Flags().BoolVar(&f.noProgress, "no-progress", false, "disable the progress bar")
	f.schema.register(cmd)
	return cmd
}

func runUpload(ctx context.Context, g *globals, f uploadFlags, path string) error {
	defer g.startMetrics(ctx)()

	repo, err := g.openRepo(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	src := newProgressSource(file.Local{Path: path}, !f.noProgress, g.stderr)
	defer src.finish()

	cfg := g.cfg
	r := &ingest.Runner{
		Repo:   repo,
		Logger: g.log,
		Options: ingest.Options{
			Schema:            cfg.SchemaOptions(),
			SampleSize:        cfg.Schema.SampleSize,
			Truncate:          f.replace,
			UnknownProperties: transformer.UnknownPolicy(cfg.Schema.UnknownProperties),
			ChannelBuffer:     cfg.Runtime.ChannelBuffer,
			MaxSkipDetails:    cfg.Runtime.MaxSkipDetails,
		},
	}
	sum, err := r.Ingest(ctx, src, f.table)
	src.finish()
	if err != nil {
		return err
	}
	return writeSummary(g.stdout, f.output, sum)
}

func writeSummary(w io.Writer, format string, sum ingest.Summary) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(sum)
	case "text", "":
		table := "existing table"
		if sum.Created {
			table = "new table"
		}
		fmt.Fprintf(w, "%s: %d of %d features loaded, %d skipped (%s) in %s\n",
			sum.Table, sum.Loaded, sum.Attempted, sum.Skipped, table, sum.Duration.Round(time.Millisecond))
		for _, s := range sum.Skips {
			id := ""
			if s.FeatureID != "" {
				id = " id=" + s.FeatureID
			}
			fmt.Fprintf(w, "  skipped feature %d%s at %s: %s\n", s.Index, id, s.Stage, s.Reason)
		}
		if n := sum.Skipped - int64(len(sum.Skips)); n > 0 {
			fmt.Fprintf(w, "  ... and %d more\n", n)
		}
		return nil
	default:
		return &UserError{
			Message:  fmt.Sprintf("Unknown output format %q", format),
			Fix:      "Use --output text, json or yaml",
			ExitCode: ExitInput,
		}
	}
}
