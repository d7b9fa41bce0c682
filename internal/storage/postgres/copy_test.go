package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

// fakeTx drains the CopyFromSource like pgx would, optionally failing after
// failAfter rows.
type fakeTx struct {
	failAfter int
	got       [][]any

	committed  bool
	rolledBack bool
}

func (f *fakeTx) CopyFrom(ctx context.Context, _ pgx.Identifier, _ []string, src pgx.CopyFromSource) (int64, error) {
	var n int64
	for src.Next() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if f.failAfter > 0 && int(n) == f.failAfter {
			return n, errors.New("connection reset")
		}
		vals, err := src.Values()
		if err != nil {
			return n, err
		}
		f.got = append(f.got, vals)
		n++
	}
	return n, src.Err()
}

func (f *fakeTx) Commit(context.Context) error   { f.committed = true; return nil }
func (f *fakeTx) Rollback(context.Context) error { f.rolledBack = true; return nil }

func TestCopySession_WriteClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tx := &fakeTx{}
	released := 0
	s := newCopySession(tx, func() { released++ }, 2)
	s.start(ctx, pgx.Identifier{"parcels"}, []string{"name", "geometry"})

	row := []any{"a", []byte{1}}
	for i := 0; i < 5; i++ {
		row[0] = string(rune('a' + i))
		if err := s.Write(ctx, row); err != nil {
			t.Fatalf("Write(%d) err=%v", i, err)
		}
	}
	n, err := s.Close(ctx)
	if err != nil {
		t.Fatalf("Close() err=%v, want nil", err)
	}
	if n != 5 || !tx.committed || released != 1 {
		t.Fatalf("n=%d committed=%v released=%d, want 5 true 1", n, tx.committed, released)
	}
	// Write must have copied the row; reusing it must not alter queued values.
	if tx.got[0][0] != "a" || tx.got[4][0] != "e" {
		t.Fatalf("rows=%v, want a..e", tx.got)
	}
	if err := s.Abort(ctx); err != nil || tx.rolledBack {
		t.Fatalf("Abort() after Close err=%v rolledBack=%v, want no-op", err, tx.rolledBack)
	}
}

func TestCopySession_CopyFailureSurfacesOnWrite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tx := &fakeTx{failAfter: 1}
	s := newCopySession(tx, func() {}, 1)
	s.start(ctx, pgx.Identifier{"parcels"}, []string{"name"})

	deadline := time.After(5 * time.Second)
	var werr error
	for i := 0; werr == nil; i++ {
		select {
		case <-deadline:
			t.Fatalf("Write never failed after copy error")
		default:
		}
		werr = s.Write(ctx, []any{i})
	}
	if err := s.Abort(ctx); err != nil {
		t.Fatalf("Abort() err=%v", err)
	}
	if !tx.rolledBack || tx.committed {
		t.Fatalf("rolledBack=%v committed=%v, want true false", tx.rolledBack, tx.committed)
	}
}

func TestCopySession_AbortMidStream(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tx := &fakeTx{}
	s := newCopySession(tx, func() {}, 4)
	s.start(ctx, pgx.Identifier{"parcels"}, []string{"name"})

	if err := s.Write(ctx, []any{"x"}); err != nil {
		t.Fatalf("Write() err=%v", err)
	}
	if err := s.Abort(ctx); err != nil {
		t.Fatalf("Abort() err=%v", err)
	}
	if !tx.rolledBack || tx.committed {
		t.Fatalf("rolledBack=%v committed=%v, want true false", tx.rolledBack, tx.committed)
	}
	if _, err := s.Close(ctx); err == nil {
		t.Fatalf("Close() after Abort err=nil, want error")
	}
}

func TestChanSource_StopEndsStream(t *testing.T) {
	t.Parallel()

	rows := make(chan []any)
	stop := make(chan struct{})
	src := &chanSource{rows: rows, stop: stop}
	close(stop)
	if src.Next() {
		t.Fatalf("Next() after stop = true, want false")
	}
}
