package config

import (
	"fmt"
	"strings"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is the dotted YAML key.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var storageKinds = []string{"postgres", "sqlite", "mssql"}

// Validate checks the configuration. Warnings do not stop a run.
func (c Config) Validate() []Issue {
	var out []Issue
	add := func(sev Severity, path, format string, args ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	kindOK := false
	for _, k := range storageKinds {
		if c.Storage.Kind == k {
			kindOK = true
		}
	}
	if !kindOK {
		add(SeverityError, "storage.kind", "unknown backend %q (want one of %s)", c.Storage.Kind, strings.Join(storageKinds, ", "))
	}
	if c.DSN() == "" {
		if c.Storage.Kind == "sqlite" {
			add(SeverityError, "storage.dsn", "sqlite needs storage.dsn or database.name (a file path or :memory:)")
		} else {
			add(SeverityError, "storage.dsn", "set storage.dsn, DATABASE_URL or database.host")
		}
	}
	if c.Storage.DSN != "" && c.Database.Host != "" {
		add(SeverityWarning, "database.host", "ignored because storage.dsn is set")
	}

	s := c.Schema
	if strings.TrimSpace(s.GeometryColumn) == "" {
		add(SeverityError, "schema.geometry_column", "must not be empty")
	}
	if s.SRID < 0 {
		add(SeverityError, "schema.srid", "must be >= 0, got %d", s.SRID)
	}
	if s.SampleSize < 0 {
		add(SeverityError, "schema.sample_size", "must be >= 0, got %d", s.SampleSize)
	}
	if s.FeatureIDColumn != "" && s.FeatureIDColumn == s.GeometryColumn {
		add(SeverityError, "schema.feature_id_column", "collides with geometry_column %q", s.GeometryColumn)
	}
	if s.RawPropertiesColumn != "" && (s.RawPropertiesColumn == s.GeometryColumn || s.RawPropertiesColumn == s.FeatureIDColumn) {
		add(SeverityError, "schema.raw_properties_column", "collides with another reserved column")
	}
	if s.FeatureIDUnique && s.FeatureIDColumn == "" {
		add(SeverityWarning, "schema.feature_id_unique", "has no effect without feature_id_column")
	}
	switch s.UnknownProperties {
	case "reject", "":
	case "keep_raw":
		if s.RawPropertiesColumn == "" {
			add(SeverityError, "schema.unknown_properties", "keep_raw requires raw_properties_column")
		}
	default:
		add(SeverityError, "schema.unknown_properties", "unknown policy %q (want reject or keep_raw)", s.UnknownProperties)
	}

	if c.Runtime.ChannelBuffer < 0 {
		add(SeverityError, "runtime.channel_buffer", "must be >= 0, got %d", c.Runtime.ChannelBuffer)
	}
	if c.Runtime.MaxSkipDetails < 0 {
		add(SeverityError, "runtime.max_skip_details", "must be >= 0, got %d", c.Runtime.MaxSkipDetails)
	}

	switch c.Metrics.Backend {
	case "", "none", "datadog":
	case "pushgateway":
		if c.Metrics.PushgatewayURL == "" {
			add(SeverityError, "metrics.pushgateway_url", "required for the pushgateway backend")
		}
	default:
		add(SeverityWarning, "metrics.backend", "unknown backend %q; metrics disabled", c.Metrics.Backend)
	}
	if c.Metrics.Backend == "datadog" && c.Metrics.FlushEvery <= 0 {
		add(SeverityWarning, "metrics.flush_every", "not positive; the backend default is used")
	}
	return out
}
