package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
)

// copyTx is the part of pgx.Tx a session uses.
type copyTx interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// copySession adapts the push-style storage.CopySession onto pgx's pull-style
// CopyFrom: Write hands rows over a bounded channel to a goroutine running
// the COPY. A full channel blocks Write, which is the backpressure.
type copySession struct {
	tx      copyTx
	release func()

	rows   chan []any
	stop   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc

	closeRows sync.Once
	stopOnce  sync.Once

	// Written by the copy goroutine, read after <-done.
	n   int64
	err error

	finished bool
}

func newCopySession(tx copyTx, release func(), buffer int) *copySession {
	if buffer <= 0 {
		buffer = 1
	}
	return &copySession{
		tx:      tx,
		release: release,
		rows:    make(chan []any, buffer),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (s *copySession) start(ctx context.Context, table pgx.Identifier, columns []string) {
	copyCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go func() {
		defer close(s.done)
		s.n, s.err = s.tx.CopyFrom(copyCtx, table, columns, &chanSource{rows: s.rows, stop: s.stop})
	}()
}

// Write queues a copy of row; the caller may reuse row once Write returns.
func (s *copySession) Write(ctx context.Context, row []any) error {
	vals := append([]any(nil), row...)
	select {
	case s.rows <- vals:
		return nil
	case <-s.done:
		if s.err != nil {
			return fmt.Errorf("postgres: copy: %w", s.err)
		}
		return fmt.Errorf("postgres: copy ended before all rows were sent")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the COPY stream and commits.
func (s *copySession) Close(ctx context.Context) (int64, error) {
	if s.finished {
		return 0, fmt.Errorf("postgres: session already closed")
	}
	s.closeRows.Do(func() { close(s.rows) })

	select {
	case <-s.done:
	case <-ctx.Done():
		s.cancel()
		<-s.done
	}
	if s.err != nil {
		return 0, fmt.Errorf("postgres: copy: %w", s.err)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", err)
	}
	s.finish()
	return s.n, nil
}

// Abort stops the COPY stream and rolls back. Safe after a failed Write or
// Close.
func (s *copySession) Abort(ctx context.Context) error {
	if s.finished {
		return nil
	}
	s.cancel()
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done

	err := s.tx.Rollback(context.WithoutCancel(ctx))
	s.finish()
	// A cancelled COPY closes the connection, which discards the transaction.
	if err != nil && s.err == nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("postgres: rollback: %w", err)
	}
	return nil
}

func (s *copySession) finish() {
	s.finished = true
	s.cancel()
	if s.release != nil {
		s.release()
	}
}

// chanSource is a pgx.CopyFromSource reading rows from a channel until it is
// closed or stop is closed.
type chanSource struct {
	rows <-chan []any
	stop <-chan struct{}
	cur  []any
}

func (c *chanSource) Next() bool {
	select {
	case r, ok := <-c.rows:
		if !ok {
			return false
		}
		c.cur = r
		return true
	case <-c.stop:
		return false
	}
}

func (c *chanSource) Values() ([]any, error) { return c.cur, nil }

func (c *chanSource) Err() error { return nil }
