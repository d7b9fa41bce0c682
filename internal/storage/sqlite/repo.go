// Package sqlite is the embedded storage backend. Geometries are stored as
// ISO WKB blobs; their type and SRID live in a small metadata table since
// plain SQLite has no geometry type. No spatial index is built.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"geoload/internal/schema"
	"geoload/internal/storage"
)

// metaTable records geometry type and SRID per table.
const metaTable = "geoload_geometry_columns"

// Repo implements storage.Repository for SQLite.
//
// SQLite allows one writer at a time and every ":memory:" connection is a
// separate database, so the pool is capped at a single connection.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

// New opens the database at cfg.DSN.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	return Open(ctx, cfg.DSN)
}

// Open is New with a concrete return type.
func Open(ctx context.Context, dsn string) (*Repo, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// GeometryEncoding implements storage.Repository.
func (r *Repo) GeometryEncoding() storage.GeometryEncoding { return storage.GeometryWKB }

// DescribeTable implements storage.Repository.
func (r *Repo) DescribeTable(ctx context.Context, table string) ([]schema.ExistingColumn, bool, error) {
	schemaName, name := schema.SplitTableName(table)
	if schemaName == "" {
		schemaName = "main"
	}

	rows, err := r.db.QueryContext(ctx, `SELECT name, type, "notnull" FROM pragma_table_info(?, ?)`, name, schemaName)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: describe %s: %w", table, err)
	}
	defer rows.Close()

	var cols []schema.ExistingColumn
	for rows.Next() {
		var colName, declType string
		var notNull int
		if err := rows.Scan(&colName, &declType, &notNull); err != nil {
			return nil, false, err
		}
		cols = append(cols, schema.ExistingColumn{
			Name:     colName,
			Kind:     kindFromDeclType(declType),
			Nullable: notNull == 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(cols) == 0 {
		return nil, false, nil
	}

	hasMeta, err := tableExists(ctx, r.db, metaTable)
	if err != nil {
		return nil, false, err
	}
	if hasMeta {
		for i := range cols {
			if cols[i].Kind != schema.KindGeometry {
				continue
			}
			var gtype string
			var srid int
			err := r.db.QueryRowContext(ctx,
				`SELECT geometry_type, srid FROM `+metaTable+` WHERE f_table_name = ? AND f_geometry_column = ?`,
				table, cols[i].Name).Scan(&gtype, &srid)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return nil, false, fmt.Errorf("sqlite: read geometry metadata for %s: %w", table, err)
			}
			cols[i].GeometryType, cols[i].SRID = gtype, srid
		}
	}
	return cols, true, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx. With a single pooled
// connection, code holding a transaction must query through it.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func tableExists(ctx context.Context, q queryer, name string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	return n > 0, err
}

// CreateTable implements storage.Repository. Table and metadata row are
// created in one transaction.
func (r *Repo) CreateTable(ctx context.Context, ts schema.TableSchema) error {
	ddl, err := buildCreateSQL(ts)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlite: create table %s: %w", ts.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+metaTable+` (
		f_table_name TEXT NOT NULL,
		f_geometry_column TEXT NOT NULL,
		geometry_type TEXT NOT NULL,
		srid INTEGER NOT NULL,
		PRIMARY KEY (f_table_name, f_geometry_column)
	)`); err != nil {
		return fmt.Errorf("sqlite: create %s: %w", metaTable, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO `+metaTable+` (f_table_name, f_geometry_column, geometry_type, srid) VALUES (?, ?, ?, ?)`,
		ts.Name, ts.GeometryColumn, ts.GeometryType, ts.SRID); err != nil {
		return fmt.Errorf("sqlite: register geometry column: %w", err)
	}
	return tx.Commit()
}

// DropTable implements storage.Repository.
func (r *Repo) DropTable(ctx context.Context, table string, ifExists bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt := "DROP TABLE "
	if ifExists {
		stmt += "IF EXISTS "
	}
	if _, err := tx.ExecContext(ctx, stmt+qualifiedIdent(table)); err != nil {
		return fmt.Errorf("sqlite: drop %s: %w", table, err)
	}
	hasMeta, err := tableExists(ctx, tx, metaTable)
	if err != nil {
		return err
	}
	if hasMeta {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+metaTable+` WHERE f_table_name = ?`, table); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CountRows implements storage.RowCounter.
func (r *Repo) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM `+qualifiedIdent(table)).Scan(&n)
	return n, err
}

// OpenCopy implements storage.Repository with a prepared INSERT executed once
// per row inside a single transaction.
func (r *Repo) OpenCopy(ctx context.Context, table string, columns []string, opts storage.CopyOptions) (storage.CopySession, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin: %w", err)
	}
	if opts.Truncate {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+qualifiedIdent(table)); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("sqlite: truncate %s: %w", table, err)
		}
	}
	stmt, err := tx.PrepareContext(ctx, buildInsertSQL(table, columns))
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("sqlite: prepare insert into %s: %w", table, err)
	}
	return &copySession{tx: tx, stmt: stmt, args: make([]any, len(columns))}, nil
}

type copySession struct {
	tx   *sql.Tx
	stmt *sql.Stmt
	args []any
	n    int64
	done bool
}

func (s *copySession) Write(ctx context.Context, row []any) error {
	for i, v := range row {
		s.args[i] = toSQLiteValue(v)
	}
	if _, err := s.stmt.ExecContext(ctx, s.args...); err != nil {
		return err
	}
	s.n++
	return nil
}

func (s *copySession) Close(ctx context.Context) (int64, error) {
	if s.done {
		return 0, fmt.Errorf("sqlite: session already closed")
	}
	_ = s.stmt.Close()
	if err := s.tx.Commit(); err != nil {
		return 0, err
	}
	s.done = true
	return s.n, nil
}

func (s *copySession) Abort(ctx context.Context) error {
	if s.done {
		return nil
	}
	s.done = true
	_ = s.stmt.Close()
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// toSQLiteValue maps encoder output onto SQLite storage classes. Timestamps
// are stored as RFC3339Nano strings for reliable round-trips.
func toSQLiteValue(v any) any {
	switch t := v.(type) {
	case json.RawMessage:
		return string(t)
	case time.Time:
		return formatSQLiteTime(t)
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	default:
		return v
	}
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
