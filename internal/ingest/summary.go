package ingest

import (
	"fmt"
	"time"
)

// Stage names, used in StageError, Skip and metrics labels.
const (
	StageOpen     = "open"
	StageResolve  = "resolve"
	StageCreate   = "create"
	StageCopyOpen = "copy_open"
	StageParse    = "parse"
	StageEncode   = "encode"
	StageLoad     = "load"
	StageFinalize = "finalize"
)

// Outcome of a run.
const (
	OutcomeCommitted = "committed"
	OutcomeAborted   = "aborted"
)

// StageError is the fatal error of a run, tagged with the stage that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// Skip records one feature that was not loaded.
type Skip struct {
	// Index is the 0-based position in the features array.
	Index     int    `json:"index" yaml:"index"`
	FeatureID string `json:"feature_id,omitempty" yaml:"feature_id,omitempty"`
	Stage     string `json:"stage" yaml:"stage"`
	Reason    string `json:"reason" yaml:"reason"`
}

// Summary reports one Ingest call. Counts are exact; Skips holds at most
// Options.MaxSkipDetails entries.
type Summary struct {
	Table     string        `json:"table" yaml:"table"`
	Created   bool          `json:"created" yaml:"created"`
	Attempted int64         `json:"attempted" yaml:"attempted"`
	Loaded    int64         `json:"loaded" yaml:"loaded"`
	Skipped   int64         `json:"skipped" yaml:"skipped"`
	Skips     []Skip        `json:"skips,omitempty" yaml:"skips,omitempty"`
	Outcome   string        `json:"outcome" yaml:"outcome"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}
