// Package metrics is the backend-agnostic metrics facade used by the
// ingestion pipeline. Core code only calls the package-level helpers; the
// CLI decides which Backend (Datadog, Prometheus push gateway, none) receives
// the data.
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by geoload. Backends may ignore names they do not know.
const (
	StepTotal           = "geoload_step_total"            // labels: step, status
	StepDurationSeconds = "geoload_step_duration_seconds" // labels: step, status
	RecordsTotal        = "geoload_records_total"         // labels: kind (attempted|loaded|skipped)
	SkipsTotal          = "geoload_skips_total"           // labels: stage (parse|encode)
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric observations.
//
// Concurrency: implementations must be safe for concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. nil restores the no-op
// backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to a counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush pushes buffered observations, if the backend buffers.
func Flush() error { return current().Flush() }

// RecordStep counts one pipeline step and its duration under the given status.
func RecordStep(step, status string, d time.Duration) {
	l := Labels{"step": step, "status": status}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}
