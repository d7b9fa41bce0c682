// Package prompush implements a metrics.Backend that pushes to a Prometheus
// Pushgateway. Batch jobs like an upload do not live long enough to be
// scraped, so metrics are collected in a private registry and pushed on Flush.
package prompush

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"geoload/internal/metrics"
)

// Backend collects geoload metrics into Prometheus collectors.
type Backend struct {
	reg    *prometheus.Registry
	pusher pusher

	steps     *prometheus.CounterVec
	records   *prometheus.CounterVec
	skips     *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// pusher is the part of *push.Pusher the backend needs; tests replace it.
type pusher interface {
	Push() error
}

// NewBackend returns a Backend pushing to the gateway at url under job.
func NewBackend(job, url string) (*Backend, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("prompush: empty pushgateway url")
	}
	if job == "" {
		job = "geoload"
	}
	b := newBackend()
	b.pusher = push.New(url, job).Gatherer(b.reg)
	return b, nil
}

func newBackend() *Backend {
	b := &Backend{
		reg: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline steps by outcome.",
		}, []string{"step", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Features attempted, loaded and skipped.",
		}, []string{"kind"}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.SkipsTotal,
			Help: "Skipped features by pipeline stage.",
		}, []string{"stage"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.StepDurationSeconds,
			Help:    "Pipeline step duration.",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 10),
		}, []string{"step", "status"}),
	}
	b.reg.MustRegister(b.steps, b.records, b.skips, b.durations)
	return b
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case metrics.StepTotal:
		b.steps.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.RecordsTotal:
		b.records.WithLabelValues(labels["kind"]).Add(delta)
	case metrics.SkipsTotal:
		b.skips.WithLabelValues(labels["stage"]).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDurationSeconds || value < 0 {
		return
	}
	b.durations.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the full registry, replacing the job's previous group.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}

var _ metrics.Backend = (*Backend)(nil)
