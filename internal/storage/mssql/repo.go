// Package mssql is the SQL Server storage backend. Rows are streamed with the
// driver's bulk copy inside a transaction. Geometries are stored as ISO WKB in
// varbinary(max); type and SRID are kept in dbo.geoload_geometry_columns.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	mssql "github.com/microsoft/go-mssqldb"

	"geoload/internal/schema"
	"geoload/internal/storage"
)

// Repo implements storage.Repository for Microsoft SQL Server.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

// New opens a database/sql pool on the "sqlserver" driver and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// GeometryEncoding implements storage.Repository.
func (r *Repo) GeometryEncoding() storage.GeometryEncoding { return storage.GeometryWKB }

const describeSQL = `
SELECT c.name, t.name, c.is_nullable,
	CASE
		WHEN c.max_length < 0 THEN 0
		WHEN t.name IN (N'nvarchar', N'nchar') THEN c.max_length / 2
		WHEN t.name IN (N'varchar', N'char') THEN c.max_length
		ELSE 0
	END
FROM sys.columns c
JOIN sys.types t ON t.user_type_id = c.user_type_id
WHERE c.object_id = OBJECT_ID(@p1, N'U')
ORDER BY c.column_id`

// DescribeTable implements storage.Repository.
func (r *Repo) DescribeTable(ctx context.Context, table string) ([]schema.ExistingColumn, bool, error) {
	rows, err := r.db.QueryContext(ctx, describeSQL, mssqlTableIdent(table))
	if err != nil {
		return nil, false, fmt.Errorf("mssql: describe %s: %w", table, err)
	}
	defer rows.Close()

	var cols []schema.ExistingColumn
	var binary []int
	for rows.Next() {
		var name, typ string
		var nullable bool
		var maxLen int
		if err := rows.Scan(&name, &typ, &nullable, &maxLen); err != nil {
			return nil, false, err
		}
		if typ == "varbinary" {
			binary = append(binary, len(cols))
		}
		cols = append(cols, schema.ExistingColumn{
			Name:      name,
			Kind:      kindFromType(typ),
			Nullable:  nullable,
			IntBits:   intBitsFromType(typ),
			MaxLength: maxLen,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(cols) == 0 {
		return nil, false, nil
	}

	for _, i := range binary {
		var gtype string
		var srid int
		err := r.db.QueryRowContext(ctx,
			`IF OBJECT_ID(N'dbo.`+metaTable+`', N'U') IS NOT NULL
			SELECT geometry_type, srid FROM dbo.`+metaTable+` WHERE f_table_name = @p1 AND f_geometry_column = @p2`,
			table, cols[i].Name).Scan(&gtype, &srid)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("mssql: read geometry metadata for %s: %w", table, err)
		}
		cols[i].Kind = schema.KindGeometry
		cols[i].GeometryType, cols[i].SRID = gtype, srid
	}
	return cols, true, nil
}

// CreateTable implements storage.Repository. Schema, table and metadata row
// are created in one transaction.
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

	if s := buildSchemaSQL(ts.Name); s != "" {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("mssql: create schema for %s: %w", ts.Name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("mssql: create table %s: %w", ts.Name, err)
	}
	if _, err := tx.ExecContext(ctx, createMetaSQL); err != nil {
		return fmt.Errorf("mssql: create %s: %w", metaTable, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM dbo.`+metaTable+` WHERE f_table_name = @p1 AND f_geometry_column = @p2;
		INSERT INTO dbo.`+metaTable+` (f_table_name, f_geometry_column, geometry_type, srid) VALUES (@p1, @p2, @p3, @p4)`,
		ts.Name, ts.GeometryColumn, ts.GeometryType, ts.SRID); err != nil {
		return fmt.Errorf("mssql: register geometry column: %w", err)
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
	if _, err := tx.ExecContext(ctx, stmt+mssqlTableIdent(table)); err != nil {
		return fmt.Errorf("mssql: drop %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx,
		`IF OBJECT_ID(N'dbo.`+metaTable+`', N'U') IS NOT NULL
		DELETE FROM dbo.`+metaTable+` WHERE f_table_name = @p1`, table); err != nil {
		return err
	}
	return tx.Commit()
}

// CountRows implements storage.RowCounter.
func (r *Repo) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT_BIG(*) FROM `+mssqlTableIdent(table)).Scan(&n)
	return n, err
}

// OpenCopy implements storage.Repository using bulk copy inside a
// transaction. The driver buffers rows and sends them in batches; the final
// argument-less Exec flushes the remainder.
func (r *Repo) OpenCopy(ctx context.Context, table string, columns []string, opts storage.CopyOptions) (storage.CopySession, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mssql: begin: %w", err)
	}
	if opts.Truncate {
		if _, err := tx.ExecContext(ctx, "TRUNCATE TABLE "+mssqlTableIdent(table)); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("mssql: truncate %s: %w", table, err)
		}
	}
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(mssqlTableIdent(table), mssql.BulkOptions{Tablock: true}, columns...))
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("mssql: prepare bulk copy into %s: %w", table, err)
	}
	return &copySession{tx: tx, stmt: stmt, args: make([]any, len(columns))}, nil
}

type copySession struct {
	tx   *sql.Tx
	stmt *sql.Stmt
	args []any
	done bool
}

func (s *copySession) Write(ctx context.Context, row []any) error {
	for i, v := range row {
		s.args[i] = toMSSQLValue(v)
	}
	_, err := s.stmt.ExecContext(ctx, s.args...)
	return err
}

func (s *copySession) Close(ctx context.Context) (int64, error) {
	if s.done {
		return 0, fmt.Errorf("mssql: session already closed")
	}
	res, err := s.stmt.ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("mssql: flush bulk copy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	_ = s.stmt.Close()
	if err := s.tx.Commit(); err != nil {
		return 0, err
	}
	s.done = true
	return n, nil
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
