package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"geoload/internal/config"
	"geoload/internal/storage"
	_ "geoload/internal/storage/all"
)

// globals carries persistent flags and process handles to subcommands.
type globals struct {
	configPath string
	storage    string
	dsn        string
	verbose    bool
	noColor    bool

	stdout io.Writer
	stderr io.Writer
	getenv func(string) string

	cfg config.Config
	log *log.Logger
}

func newRootCmd(g *globals) *cobra.Command {
	root := &cobra.Command{
		Use:           "geoload",
		Short:         "Load GeoJSON feature collections into spatial database tables",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.load()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "path to YAML/JSON config file")
	pf.StringVar(&g.storage, "storage", "", "storage backend: postgres | sqlite | mssql")
	pf.StringVar(&g.dsn, "dsn", "", "database DSN (overrides config and DATABASE_URL)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "log pipeline stages to stderr")
	pf.BoolVar(&g.noColor, "no-color", false, "disable coloured error output")

	root.AddCommand(newUploadCmd(g), newProbeCmd(g), newDropCmd(g))
	return root
}

// load resolves configuration: flag → env → file → default.
func (g *globals) load() error {
	g.log = log.New(io.Discard, "", 0)
	if g.verbose {
		g.log = log.New(g.stderr, "geoload: ", log.LstdFlags)
	}

	cfg := config.Default()
	if g.configPath != "" {
		var err error
		if cfg, err = config.Load(g.configPath); err != nil {
			return &UserError{
				Message:  "Cannot load configuration",
				Cause:    err.Error(),
				Fix:      "Check the path given to --config and its YAML syntax",
				ExitCode: ExitConfig,
				Err:      err,
			}
		}
	}
	cfg.ApplyEnv(g.getenv)
	if g.dsn != "" {
		cfg.Storage.DSN = g.dsn
		if k := config.InferKind(g.dsn); k != "" && g.storage == "" {
			cfg.Storage.Kind = k
		}
	}
	if g.storage != "" {
		cfg.Storage.Kind = g.storage
	}
	g.cfg = cfg
	return nil
}

// validate reports config issues; warnings are logged, errors fail.
func (g *globals) validate(needDB bool) error {
	var errs []config.Issue
	for _, iss := range g.cfg.Validate() {
		if !needDB && (iss.Path == "storage.dsn" || iss.Path == "storage.kind") {
			continue
		}
		if iss.Severity == config.SeverityError {
			errs = append(errs, iss)
			continue
		}
		g.log.Printf("config %s", iss)
	}
	if len(errs) == 0 {
		return nil
	}
	return &UserError{
		Message:  "Invalid configuration",
		Cause:    issuesText(errs),
		Fix:      "Correct the listed keys in the config file, environment or flags",
		ExitCode: ExitConfig,
	}
}

func issuesText(issues []config.Issue) string {
	parts := make([]string, len(issues))
	for i, iss := range issues {
		parts[i] = iss.Path + ": " + iss.Message
	}
	return strings.Join(parts, "; ")
}

// openRepo connects to the configured backend.
func (g *globals) openRepo(ctx context.Context) (storage.Repository, error) {
	repo, err := storage.New(ctx, storage.Config{Kind: g.cfg.Storage.Kind, DSN: g.cfg.DSN()})
	if err != nil {
		return nil, &UserError{
			Message:  fmt.Sprintf("Cannot connect to %s", g.cfg.Storage.Kind),
			Cause:    err.Error(),
			Fix:      "Check --dsn, DATABASE_URL or the database section of the config",
			ExitCode: ExitDatabase,
			Err:      err,
		}
	}
	return repo, nil
}
