package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"geoload/internal/ingest"
	"geoload/internal/loader"
	"geoload/internal/parser/geojson"
	"geoload/internal/schema"
)

// Exit codes.
const (
	ExitSuccess  = 0
	ExitConfig   = 1
	ExitDatabase = 2
	ExitInput    = 4
	ExitSchema   = 5
)

// UserError is an error with what went wrong, why, and what to do about it.
type UserError struct {
	Message  string
	Cause    string
	Fix      string
	ExitCode int
	Err      error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UserError) Unwrap() error { return e.Err }

var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format renders the error for a terminal. Empty Cause or Fix lines are
// omitted.
//
// color.NoColor is process-global; Format restores it before returning.
func (e *UserError) Format(noColor bool) string {
	prev := color.NoColor
	if noColor {
		color.NoColor = true
	}
	defer func() { color.NoColor = prev }()

	var b strings.Builder
	b.WriteString(colorError.Sprint("Error: "))
	b.WriteString(e.Message)
	b.WriteByte('\n')
	if e.Cause != "" {
		b.WriteString(colorCause.Sprint("Cause: "))
		b.WriteString(e.Cause)
		b.WriteByte('\n')
	}
	if e.Fix != "" {
		b.WriteString(colorFix.Sprint("Fix:   "))
		b.WriteString(e.Fix)
		b.WriteByte('\n')
	}
	return b.String()
}

// classify maps any error returned by a command onto a UserError.
func classify(err error) *UserError {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue
	}

	out := &UserError{Cause: err.Error(), Err: err}
	var se *ingest.StageError
	stage := ""
	if errors.As(err, &se) {
		stage = se.Stage
	}

	switch {
	case errors.Is(err, context.Canceled):
		out.Message = "Interrupted"
		out.Fix = "Nothing was committed; re-run to load the file"
		out.ExitCode = ExitInput
	case errors.Is(err, schema.ErrSchemaConflict):
		out.Message = "Input does not fit the existing table"
		out.Fix = "Load into a new table with --table, or drop the existing one with: geoload drop <table>"
		out.ExitCode = ExitSchema
	case errors.Is(err, geojson.ErrMalformedInput):
		out.Message = "Input is not a valid GeoJSON FeatureCollection"
		out.Fix = "Validate the file; nothing was committed"
		out.ExitCode = ExitInput
	case errors.Is(err, loader.ErrTransportFailure):
		out.Message = "Bulk copy failed; the load was rolled back"
		out.Fix = "Check the database logs and constraints (e.g. a unique feature id), then re-run"
		out.ExitCode = ExitDatabase
	case stage == ingest.StageOpen || stage == ingest.StageParse || stage == ingest.StageResolve:
		out.Message = "Cannot read the input"
		out.Fix = "Check the file path, its compression and its CRS"
		out.ExitCode = ExitInput
	case stage != "":
		out.Message = fmt.Sprintf("Database error during %s", stage)
		out.Fix = "Check connectivity and permissions, then re-run"
		out.ExitCode = ExitDatabase
	default:
		out.Message = "Command failed"
		out.Fix = "Run geoload --help for usage"
		out.ExitCode = ExitInput
	}
	return out
}
