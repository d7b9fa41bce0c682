package prompush

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"geoload/internal/metrics"
)

type fakePusher struct {
	calls int
	err   error
}

func (f *fakePusher) Push() error {
	f.calls++
	return f.err
}

func TestBackend_CollectsAndPushes(t *testing.T) {
	b := newBackend()
	fp := &fakePusher{}
	b.pusher = fp

	b.IncCounter(metrics.RecordsTotal, 3, metrics.Labels{"kind": "loaded"})
	b.IncCounter(metrics.RecordsTotal, 0, metrics.Labels{"kind": "loaded"})
	b.IncCounter(metrics.SkipsTotal, 1, metrics.Labels{"stage": "parse"})
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.3, metrics.Labels{"step": "copy", "status": "ok"})
	b.IncCounter("something_else", 1, nil)

	if got := testutil.ToFloat64(b.records.WithLabelValues("loaded")); got != 3 {
		t.Fatalf("records{loaded}=%v, want 3", got)
	}
	if got := testutil.ToFloat64(b.skips.WithLabelValues("parse")); got != 1 {
		t.Fatalf("skips{parse}=%v, want 1", got)
	}
	if n := testutil.CollectAndCount(b.durations); n != 1 {
		t.Fatalf("duration series=%d, want 1", n)
	}

	if err := b.Flush(); err != nil || fp.calls != 1 {
		t.Fatalf("Flush() err=%v calls=%d, want nil 1", err, fp.calls)
	}
}

func TestBackend_FlushWrapsError(t *testing.T) {
	b := newBackend()
	boom := errors.New("gateway down")
	b.pusher = &fakePusher{err: boom}
	if err := b.Flush(); !errors.Is(err, boom) {
		t.Fatalf("Flush() err=%v, want wrapped %v", err, boom)
	}
}

func TestNewBackend_RequiresURL(t *testing.T) {
	if _, err := NewBackend("job", " "); err == nil {
		t.Fatalf("NewBackend(empty url) err=nil, want error")
	}
	if _, err := NewBackend("", "http://localhost:9091"); err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
}
