package main

import (
	"context"

	"geoload/internal/metrics"
	"geoload/internal/metrics/datadog"
	"geoload/internal/metrics/prompush"
)

// startMetrics installs the configured metrics backend and returns its
// shutdown func. Backend failures never fail the command.
func (g *globals) startMetrics(ctx context.Context) func() {
	m := g.cfg.Metrics
	job := g.cfg.Job

	switch m.Backend {
	case "pushgateway":
		b, err := prompush.NewBackend(job, m.PushgatewayURL)
		if err != nil {
			g.log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return func() {}
		}
		g.log.Printf("metrics: url=%v, backend=%v, job_name=%v", m.PushgatewayURL, m.Backend, job)
		metrics.SetBackend(b)
		return func() {
			if err := metrics.Flush(); err != nil {
				g.log.Printf("metrics: flush error: %v", err)
			}
			metrics.SetBackend(nil)
		}

	case "datadog":
		// The backend flushes periodically; Close stops the loop and
		// submits what is left.
		b, err := datadog.NewBackend(context.WithoutCancel(ctx), datadog.Options{
			JobName:    job,
			Tags:       m.Tags,
			FlushEvery: m.FlushEvery,
		})
		if err != nil {
			g.log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return func() {}
		}
		g.log.Printf("metrics: backend=%v job_name=%v tags=%v", m.Backend, job, m.Tags)
		metrics.SetBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				g.log.Printf("metrics: datadog close/flush error: %v", err)
			}
			metrics.SetBackend(nil)
		}

	case "", "none":
		g.log.Printf("metrics: disabled (backend=%q)", m.Backend)
	default:
		g.log.Printf("metrics: unknown backend %q; metrics disabled", m.Backend)
	}
	return func() {}
}
