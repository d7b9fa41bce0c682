// Command geoload streams GeoJSON feature collections into spatial database
// tables.
//
// Usage:
//
//	geoload upload data/regions.geojson --replace
//	geoload probe data/regions.geojson -o json
//	geoload drop regions
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	g := &globals{stdout: stdout, stderr: stderr, getenv: os.Getenv}
	root := newRootCmd(g)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		ue := classify(err)
		_, _ = io.WriteString(stderr, ue.Format(g.noColor))
		return ue.ExitCode
	}
	return ExitSuccess
}
