// Package config loads the geoload YAML configuration.
//
// Precedence is flag → env → file → default: Load applies the file over
// Default(), ApplyEnv applies environment overrides, and the CLI applies its
// flags last.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"geoload/internal/schema"
)

// Config is the root document.
type Config struct {
	// Job names the run in metrics ("job:<name>" tag, push gateway job).
	Job      string   `yaml:"job"`
	Storage  Storage  `yaml:"storage"`
	Database Database `yaml:"database"`
	Schema   Schema   `yaml:"schema"`
	Runtime  Runtime  `yaml:"runtime"`
	Metrics  Metrics  `yaml:"metrics"`
}

// Storage selects the backend. DSN wins over Database when both are set.
type Storage struct {
	// Kind: "postgres" | "sqlite" | "mssql"
	Kind string `yaml:"kind"`
	DSN  string `yaml:"dsn"`
}

// Database holds discrete connection settings used to assemble a DSN.
type Database struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// Schema controls inference and the optional columns.
type Schema struct {
	GeometryColumn      string `yaml:"geometry_column"`
	SRID                int    `yaml:"srid"`
	FeatureIDColumn     string `yaml:"feature_id_column"`
	FeatureIDUnique     bool   `yaml:"feature_id_unique"`
	RawPropertiesColumn string `yaml:"raw_properties_column"`
	// SampleSize > 0 infers from the first N features only; 0 scans the
	// whole input before loading.
	SampleSize int `yaml:"sample_size"`
	// UnknownProperties: "reject" | "keep_raw"
	UnknownProperties string `yaml:"unknown_properties"`
}

// Runtime controls pipeline execution.
type Runtime struct {
	ChannelBuffer  int `yaml:"channel_buffer"`
	MaxSkipDetails int `yaml:"max_skip_details"`
}

// Metrics selects and configures the metrics backend.
type Metrics struct {
	// Backend: "" | "none" | "pushgateway" | "datadog"
	Backend        string        `yaml:"backend"`
	PushgatewayURL string        `yaml:"pushgateway_url"`
	Tags           []string      `yaml:"tags"`
	FlushEvery     time.Duration `yaml:"flush_every"`
}

const (
	DefaultChannelBuffer  = 256
	DefaultMaxSkipDetails = 100
	DefaultPushgatewayURL = "http://localhost:9091"
	DefaultJob            = "geoload"
)

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Job:     DefaultJob,
		Storage: Storage{Kind: "postgres"},
		Schema: Schema{
			GeometryColumn:    schema.DefaultGeometryColumn,
			UnknownProperties: "reject",
		},
		Runtime: Runtime{
			ChannelBuffer:  DefaultChannelBuffer,
			MaxSkipDetails: DefaultMaxSkipDetails,
		},
		Metrics: Metrics{
			PushgatewayURL: DefaultPushgatewayURL,
			FlushEvery:     60 * time.Second,
		},
	}
}

// Load reads path over Default(). ${VAR} references are expanded before
// parsing. Unknown keys are an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML (or JSON) document over Default().
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. getenv is os.Getenv in
// production.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("DATABASE_URL"); v != "" {
		c.Storage.DSN = v
		if k := InferKind(v); k != "" && getenv("GEOLOAD_STORAGE_KIND") == "" {
			c.Storage.Kind = k
		}
	}
	if v := getenv("GEOLOAD_STORAGE_KIND"); v != "" {
		c.Storage.Kind = v
	}
	if v := getenv("METRICS_BACKEND"); v != "" {
		c.Metrics.Backend = v
	}
	if v := getenv("PUSHGATEWAY_URL"); v != "" {
		c.Metrics.PushgatewayURL = v
	}
	if v := getenv("METRICS_TAGS"); v != "" {
		c.Metrics.Tags = nil
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				c.Metrics.Tags = append(c.Metrics.Tags, t)
			}
		}
	}
}

// InferKind guesses the backend from a DSN scheme. It returns "" when the
// scheme is not recognised.
func InferKind(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(dsn, "sqlserver://"):
		return "mssql"
	case strings.HasPrefix(dsn, "file:"), dsn == ":memory:",
		strings.HasSuffix(dsn, ".db"), strings.HasSuffix(dsn, ".sqlite"):
		return "sqlite"
	default:
		return ""
	}
}

// DSN returns Storage.DSN or assembles one from Database for Storage.Kind.
func (c Config) DSN() string {
	if c.Storage.DSN != "" {
		return c.Storage.DSN
	}
	d := c.Database
	switch c.Storage.Kind {
	case "sqlite":
		return d.Name
	case "mssql":
		if d.Host == "" {
			return ""
		}
		u := url.URL{Scheme: "sqlserver", Host: hostPort(d.Host, d.Port)}
		if d.User != "" {
			u.User = url.UserPassword(d.User, d.Password)
		}
		if d.Name != "" {
			u.RawQuery = url.Values{"database": {d.Name}}.Encode()
		}
		return u.String()
	default:
		if d.Host == "" {
			return ""
		}
		u := url.URL{Scheme: "postgres", Host: hostPort(d.Host, d.Port), Path: "/" + d.Name}
		if d.User != "" {
			u.User = url.UserPassword(d.User, d.Password)
		}
		if d.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
		}
		return u.String()
	}
}

func hostPort(host string, port int) string {
	if port <= 0 {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// SchemaOptions maps the schema section onto inference options.
func (c Config) SchemaOptions() schema.Options {
	return schema.Options{
		GeometryColumn:      c.Schema.GeometryColumn,
		SRID:                c.Schema.SRID,
		FeatureIDColumn:     c.Schema.FeatureIDColumn,
		FeatureIDUnique:     c.Schema.FeatureIDUnique,
		RawPropertiesColumn: c.Schema.RawPropertiesColumn,
	}
}
