package mssql

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"geoload/internal/schema"
)

func TestMSSQLTableIdent(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"parcels":     "[parcels]",
		"gis.parcels": "[gis].[parcels]",
		"we]ird":      "[we]]ird]",
	}
	for in, want := range tests {
		if got := mssqlTableIdent(in); got != want {
			t.Fatalf("mssqlTableIdent(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	ts := schema.TableSchema{
		Name: "gis.parcels",
		Columns: []schema.ColumnSpec{
			{Name: "feature_id", Kind: schema.KindText, Unique: true, Role: schema.RoleFeatureID},
			{Name: "name", Kind: schema.KindText, Nullable: true},
			{Name: "lots", Kind: schema.KindInteger},
			{Name: "area", Kind: schema.KindFloat, Nullable: true},
			{Name: "vacant", Kind: schema.KindBoolean, Nullable: true},
			{Name: "surveyed", Kind: schema.KindTimestamp, Nullable: true},
			{Name: "tags", Kind: schema.KindJSON, Nullable: true},
			{Name: "geometry", Kind: schema.KindGeometry, Nullable: true, Role: schema.RoleGeometry},
		},
		GeometryColumn: "geometry",
		GeometryType:   "Point",
		SRID:           4326,
	}
	ddl, err := buildCreateSQL(ts)
	if err != nil {
		t.Fatalf("buildCreateSQL() err=%v", err)
	}
	for _, want := range []string{
		"CREATE TABLE [gis].[parcels]",
		"[feature_id] nvarchar(450) NOT NULL UNIQUE",
		"[name] nvarchar(max) NULL",
		"[lots] bigint NOT NULL",
		"[area] float NULL",
		"[vacant] bit NULL",
		"[surveyed] datetimeoffset NULL",
		"[tags] nvarchar(max) NULL",
		"[geometry] varbinary(max) NULL",
	} {
		if !strings.Contains(ddl, want) {
			t.Fatalf("ddl missing %q:\n%s", want, ddl)
		}
	}

	if _, err := buildCreateSQL(schema.TableSchema{Name: "x"}); err == nil {
		t.Fatalf("buildCreateSQL(no columns) err=nil, want error")
	}
}

func TestBuildSchemaSQL(t *testing.T) {
	t.Parallel()

	if got := buildSchemaSQL("parcels"); got != "" {
		t.Fatalf("buildSchemaSQL(unqualified)=%q, want empty", got)
	}
	got := buildSchemaSQL("o'brien.parcels")
	want := `IF SCHEMA_ID(N'o''brien') IS NULL EXEC(N'CREATE SCHEMA [o''brien]')`
	if got != want {
		t.Fatalf("buildSchemaSQL()=%q, want %q", got, want)
	}
}

func TestKindFromType(t *testing.T) {
	t.Parallel()

	tests := map[string]schema.Kind{
		"nvarchar":         schema.KindText,
		"BIGINT":           schema.KindInteger,
		"float":            schema.KindFloat,
		"bit":              schema.KindBoolean,
		"datetimeoffset":   schema.KindTimestamp,
		"varbinary":        schema.KindUnknown,
		"uniqueidentifier": schema.KindUnknown,
	}
	for typ, want := range tests {
		if got := kindFromType(typ); got != want {
			t.Fatalf("kindFromType(%q)=%s, want %s", typ, got, want)
		}
	}
}

func TestIntBitsFromType(t *testing.T) {
	t.Parallel()

	tests := map[string]int{"tinyint": 8, "SMALLINT": 16, "int": 32, "bigint": 0, "nvarchar": 0}
	for typ, want := range tests {
		if got := intBitsFromType(typ); got != want {
			t.Fatalf("intBitsFromType(%q)=%d, want %d", typ, got, want)
		}
	}
}

func TestToMSSQLValue(t *testing.T) {
	t.Parallel()

	if got := toMSSQLValue(json.RawMessage(`{"a":1}`)); got != `{"a":1}` {
		t.Fatalf("toMSSQLValue(RawMessage)=%#v, want string", got)
	}
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if got, ok := toMSSQLValue(ts).(time.Time); !ok || !got.Equal(ts) {
		t.Fatalf("toMSSQLValue(time)=%#v, want time.Time", toMSSQLValue(ts))
	}
	if got := toMSSQLValue(int64(7)); got != int64(7) {
		t.Fatalf("toMSSQLValue(int64)=%#v", got)
	}
}
