// Package postgres is the PostGIS storage backend. Rows are streamed with
// COPY ... FROM STDIN (binary) inside a transaction; geometries travel as
// EWKB so the SRID is carried with every value.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"geoload/internal/schema"
	"geoload/internal/storage"
)

// Repo implements storage.Repository for Postgres with PostGIS.
type Repo struct {
	pool *pgxpool.Pool
	// copyBuffer is the number of rows queued between Write and the COPY
	// stream before Write blocks.
	copyBuffer int
}

func init() {
	storage.Register("postgres", New)
}

// New creates a pooled Postgres repository.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repo{pool: pool, copyBuffer: 256}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() { r.pool.Close() }

// GeometryEncoding implements storage.Repository.
func (r *Repo) GeometryEncoding() storage.GeometryEncoding { return storage.GeometryEWKB }

const describeColumnsSQL = `
SELECT column_name, udt_name, is_nullable = 'YES', COALESCE(character_maximum_length, 0)::int
FROM information_schema.columns
WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema()) AND table_name = $2
ORDER BY ordinal_position`

const describeGeometrySQL = `
SELECT f_geometry_column, type, srid
FROM geometry_columns
WHERE f_table_schema = COALESCE(NULLIF($1, ''), current_schema()) AND f_table_name = $2`

// DescribeTable implements storage.Repository.
func (r *Repo) DescribeTable(ctx context.Context, table string) ([]schema.ExistingColumn, bool, error) {
	schemaName, name := schema.SplitTableName(table)

	rows, err := r.pool.Query(ctx, describeColumnsSQL, schemaName, name)
	if err != nil {
		return nil, false, fmt.Errorf("postgres: describe %s: %w", table, err)
	}
	var cols []schema.ExistingColumn
	hasGeometry := false
	for rows.Next() {
		var c schema.ExistingColumn
		var udt string
		if err := rows.Scan(&c.Name, &udt, &c.Nullable, &c.MaxLength); err != nil {
			rows.Close()
			return nil, false, err
		}
		c.Kind = kindFromUDT(udt)
		c.IntBits = intBitsFromUDT(udt)
		hasGeometry = hasGeometry || c.Kind == schema.KindGeometry
		cols = append(cols, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("postgres: describe %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, false, nil
	}
	if !hasGeometry {
		return cols, true, nil
	}

	grows, err := r.pool.Query(ctx, describeGeometrySQL, schemaName, name)
	if err != nil {
		return nil, false, fmt.Errorf("postgres: read geometry_columns for %s: %w", table, err)
	}
	defer grows.Close()
	for grows.Next() {
		var col, typ string
		var srid int
		if err := grows.Scan(&col, &typ, &srid); err != nil {
			return nil, false, err
		}
		for i := range cols {
			if cols[i].Name == col {
				cols[i].GeometryType, _ = canonicalGeometryType(typ)
				cols[i].SRID = srid
			}
		}
	}
	return cols, true, grows.Err()
}

// CreateTable implements storage.Repository: extension, schema, table and
// GiST index are created in one transaction.
func (r *Repo) CreateTable(ctx context.Context, ts schema.TableSchema) error {
	stmts, err := buildCreateStatements(ts)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, s := range stmts {
		if _, err := tx.Exec(ctx, s); err != nil {
			return fmt.Errorf("postgres: create %s: %w", ts.Name, err)
		}
	}
	return tx.Commit(ctx)
}

// DropTable implements storage.Repository.
func (r *Repo) DropTable(ctx context.Context, table string, ifExists bool) error {
	stmt := "DROP TABLE "
	if ifExists {
		stmt += "IF EXISTS "
	}
	if _, err := r.pool.Exec(ctx, stmt+tableIdent(table).Sanitize()); err != nil {
		return fmt.Errorf("postgres: drop %s: %w", table, err)
	}
	return nil
}

// CountRows implements storage.RowCounter.
func (r *Repo) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, "SELECT count(*) FROM "+tableIdent(table).Sanitize()).Scan(&n)
	return n, err
}

// OpenCopy implements storage.Repository.
//
// The session holds one pooled connection and a transaction until Close or
// Abort. TRUNCATE (when requested) runs in the same transaction, so a failed
// run leaves the previous contents in place.
func (r *Repo) OpenCopy(ctx context.Context, table string, columns []string, opts storage.CopyOptions) (storage.CopySession, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: acquire: %w", err)
	}
	if err := registerGeometry(ctx, conn.Conn()); err != nil {
		conn.Release()
		return nil, err
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	if opts.Truncate {
		if _, err := tx.Exec(ctx, "TRUNCATE "+tableIdent(table).Sanitize()); err != nil {
			_ = tx.Rollback(ctx)
			conn.Release()
			return nil, fmt.Errorf("postgres: truncate %s: %w", table, err)
		}
	}

	s := newCopySession(tx, conn.Release, r.copyBuffer)
	s.start(ctx, tableIdent(table), columns)
	return s, nil
}

// registerGeometry teaches the connection's type map to send []byte values
// for PostGIS geometry columns as raw EWKB in binary COPY.
func registerGeometry(ctx context.Context, conn *pgx.Conn) error {
	if _, ok := conn.TypeMap().TypeForName("geometry"); ok {
		return nil
	}
	var oid uint32
	err := conn.QueryRow(ctx, "SELECT oid FROM pg_type WHERE typname = 'geometry'").Scan(&oid)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("postgres: geometry type not found (is PostGIS installed?)")
	}
	if err != nil {
		return fmt.Errorf("postgres: look up geometry type: %w", err)
	}
	conn.TypeMap().RegisterType(&pgtype.Type{Name: "geometry", OID: oid, Codec: pgtype.ByteaCodec{}})
	return nil
}
