package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"geoload/internal/schema"
)

// Config is the minimal configuration needed to create a repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// GeometryEncoding is the binary geometry format a backend expects in copy rows.
type GeometryEncoding int

const (
	// GeometryEWKB is PostGIS extended WKB, carrying the SRID.
	GeometryEWKB GeometryEncoding = iota
	// GeometryWKB is plain ISO WKB; the SRID lives in table metadata.
	GeometryWKB
)

func (e GeometryEncoding) String() string {
	if e == GeometryWKB {
		return "wkb"
	}
	return "ewkb"
}

// CopyOptions tunes a bulk-copy session.
type CopyOptions struct {
	// Truncate empties the table inside the copy transaction before the first
	// row, so a committed run replaces the previous contents.
	Truncate bool
}

// Repository is the database collaborator of the ingestion pipeline.
//
// Each backend implements these semantics in its own idiomatic way
// (Postgres COPY, SQL Server bulk copy, SQLite prepared inserts in one
// transaction).
//
// Concurrency: safe for concurrent use; sessions returned by OpenCopy are not.
type Repository interface {
	// Close releases backend resources. Call once.
	Close()

	// DescribeTable returns the columns of table. exists is false (and err nil)
	// when the table is absent.
	DescribeTable(ctx context.Context, table string) (cols []schema.ExistingColumn, exists bool, err error)

	// CreateTable creates the table, its geometry column and spatial index in
	// one transaction. Either everything exists afterwards or nothing does.
	CreateTable(ctx context.Context, ts schema.TableSchema) error

	// OpenCopy starts a bulk-copy session against table for columns.
	OpenCopy(ctx context.Context, table string, columns []string, opts CopyOptions) (CopySession, error)

	// DropTable removes table. With ifExists, a missing table is not an error.
	DropTable(ctx context.Context, table string, ifExists bool) error

	// GeometryEncoding tells the row encoder which geometry bytes to produce.
	GeometryEncoding() GeometryEncoding
}

// CopySession is one open bulk-copy channel. Rows become visible only after
// a successful Close.
//
// Concurrency: owned by a single goroutine.
type CopySession interface {
	// Write transmits one row, blocking while the channel applies backpressure.
	// Values are positional in the column order given to OpenCopy.
	Write(ctx context.Context, row []any) error

	// Close ends the copy and commits. It returns the number of rows the
	// backend accepted.
	Close(ctx context.Context) (int64, error)

	// Abort ends the copy and rolls back. Safe to call after a failed Write or
	// Close.
	Abort(ctx context.Context) error
}

// Factory constructs a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//
// Panics:
//   - If kind is empty, f is nil, or kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing storage.kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported storage.kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RowCounter is implemented by backends that can report a table's row count.
type RowCounter interface {
	CountRows(ctx context.Context, table string) (int64, error)
}
