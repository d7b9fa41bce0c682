// Package loader owns one bulk-copy session and its lifecycle:
//
//	Idle → Opened → Streaming → Finalizing → Committed
//	                                       ↘ Aborted
//
// A session that reaches Aborted leaves nothing behind in the table.
package loader

import (
	"context"
	"errors"
	"fmt"

	"geoload/internal/storage"
)

// ErrTransportFailure reports a lost or rejected bulk-copy channel. The
// session is rolled back; no automatic retry happens.
var ErrTransportFailure = errors.New("loader: transport failure")

// State is the session lifecycle state.
type State int

const (
	Idle State = iota
	Opened
	Streaming
	Finalizing
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Opened:
		return "opened"
	case Streaming:
		return "streaming"
	case Finalizing:
		return "finalizing"
	case Committed:
		return "committed"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == Committed || s == Aborted }

// Result is the outcome of a committed session.
type Result struct {
	// Accepted is the number of rows the backend persisted.
	Accepted int64
	// Rejected is the number of rows turned away before transmission.
	Rejected int64
}

// Opener is the part of storage.Repository a Coordinator needs.
type Opener interface {
	OpenCopy(ctx context.Context, table string, columns []string, opts storage.CopyOptions) (storage.CopySession, error)
}

// Coordinator drives one bulk-copy session.
//
// Concurrency: a Coordinator is owned by a single goroutine. State may be
// read by others only after that goroutine is done.
type Coordinator struct {
	repo    Opener
	table   string
	columns []string
	opts    storage.CopyOptions

	sess     storage.CopySession
	state    State
	written  int64
	rejected int64
	cause    error
}

// New returns an Idle coordinator for table and columns.
func New(repo Opener, table string, columns []string, opts storage.CopyOptions) *Coordinator {
	return &Coordinator{
		repo:    repo,
		table:   table,
		columns: append([]string(nil), columns...),
		opts:    opts,
	}
}

// State returns the current state.
func (c *Coordinator) State() State { return c.state }

// Written is the number of rows handed to the session so far.
func (c *Coordinator) Written() int64 { return c.written }

// Rejected is the number of rows counted with Reject.
func (c *Coordinator) Rejected() int64 { return c.rejected }

// Cause is the error that moved the session to Aborted, if any.
func (c *Coordinator) Cause() error { return c.cause }

// Open acquires the bulk-copy session. On failure the coordinator stays Idle.
func (c *Coordinator) Open(ctx context.Context) error {
	if c.state != Idle {
		return fmt.Errorf("loader: open in state %s", c.state)
	}
	sess, err := c.repo.OpenCopy(ctx, c.table, c.columns, c.opts)
	if err != nil {
		return fmt.Errorf("loader: open copy into %s: %w", c.table, err)
	}
	c.sess = sess
	c.state = Opened
	return nil
}

// Write transmits one row, blocking under backpressure. A failure aborts the
// session and returns an error wrapping ErrTransportFailure.
func (c *Coordinator) Write(ctx context.Context, row []any) error {
	if c.state != Opened && c.state != Streaming {
		return fmt.Errorf("loader: write in state %s", c.state)
	}
	if len(row) != len(c.columns) {
		return fmt.Errorf("loader: row has %d values, want %d", len(row), len(c.columns))
	}
	c.state = Streaming

	if err := c.sess.Write(ctx, row); err != nil {
		c.state = Finalizing
		c.abort(err)
		return fmt.Errorf("%w: write row %d: %w", ErrTransportFailure, c.written+1, err)
	}
	c.written++
	return nil
}

// Reject counts a row that was turned away before transmission.
func (c *Coordinator) Reject() { c.rejected++ }

// Finish ends the copy and commits. On success the state is Committed; on
// failure the session is rolled back, the state is Aborted and the error
// wraps ErrTransportFailure.
func (c *Coordinator) Finish(ctx context.Context) (Result, error) {
	switch c.state {
	case Opened, Streaming:
	default:
		return Result{}, fmt.Errorf("loader: finish in state %s", c.state)
	}
	c.state = Finalizing

	n, err := c.sess.Close(ctx)
	if err != nil {
		c.abort(err)
		return Result{}, fmt.Errorf("%w: commit: %w", ErrTransportFailure, err)
	}
	c.state = Committed
	return Result{Accepted: n, Rejected: c.rejected}, nil
}

// Abort rolls back from any non-terminal state. It is a no-op once terminal.
func (c *Coordinator) Abort(ctx context.Context, cause error) error {
	if c.state.Terminal() {
		return nil
	}
	if c.sess == nil {
		c.state = Aborted
		c.cause = cause
		return nil
	}
	c.state = Finalizing
	return c.abortWith(context.WithoutCancel(ctx), cause)
}

func (c *Coordinator) abort(cause error) {
	// The caller's context may be what failed; rollback must still run.
	_ = c.abortWith(context.Background(), cause)
}

func (c *Coordinator) abortWith(ctx context.Context, cause error) error {
	err := c.sess.Abort(ctx)
	c.state = Aborted
	c.cause = cause
	if err != nil {
		return fmt.Errorf("loader: rollback %s: %w", c.table, err)
	}
	return nil
}
