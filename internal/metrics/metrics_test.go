package metrics

import (
	"sync"
	"testing"
	"time"
)

type recordingBackend struct {
	mu       sync.Mutex
	counters map[string]float64
	hist     map[string][]float64
	flushes  int
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{counters: map[string]float64{}, hist: map[string][]float64{}}
}

func (r *recordingBackend) IncCounter(name string, delta float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name+"/"+labels["step"]+"/"+labels["status"]] += delta
}

func (r *recordingBackend) ObserveHistogram(name string, value float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hist[name] = append(r.hist[name], value)
}

func (r *recordingBackend) Flush() error {
	r.flushes++
	return nil
}

func TestSetBackend_RoutesAndResets(t *testing.T) {
	rb := newRecordingBackend()
	SetBackend(rb)
	t.Cleanup(func() { SetBackend(nil) })

	RecordStep("copy", "ok", 1500*time.Millisecond)
	RecordStep("copy", "ok", 500*time.Millisecond)
	if err := Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}

	if got := rb.counters[StepTotal+"/copy/ok"]; got != 2 {
		t.Fatalf("step counter=%v, want 2", got)
	}
	if got := rb.hist[StepDurationSeconds]; len(got) != 2 || got[0] != 1.5 {
		t.Fatalf("durations=%v, want [1.5 0.5]", got)
	}
	if rb.flushes != 1 {
		t.Fatalf("flushes=%d, want 1", rb.flushes)
	}

	SetBackend(nil)
	IncCounter(RecordsTotal, 1, Labels{"kind": "loaded"})
	if _, ok := current().(nopBackend); !ok {
		t.Fatalf("SetBackend(nil) did not restore the no-op backend")
	}
}
