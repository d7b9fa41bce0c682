package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"geoload/internal/schema"
)

// pgIdent quotes a single identifier.
func pgIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// tableIdent splits "schema.table" into a pgx identifier.
func tableIdent(name string) pgx.Identifier {
	schemaName, table := schema.SplitTableName(name)
	if schemaName == "" {
		return pgx.Identifier{table}
	}
	return pgx.Identifier{schemaName, table}
}

// geometryTypes maps upper-case PostGIS type names to their typmod spelling.
var geometryTypes = map[string]string{
	"POINT":              "Point",
	"LINESTRING":         "LineString",
	"POLYGON":            "Polygon",
	"MULTIPOINT":         "MultiPoint",
	"MULTILINESTRING":    "MultiLineString",
	"MULTIPOLYGON":       "MultiPolygon",
	"GEOMETRYCOLLECTION": "GeometryCollection",
	"GEOMETRY":           "Geometry",
}

func canonicalGeometryType(t string) (string, bool) {
	s, ok := geometryTypes[strings.ToUpper(strings.TrimSpace(t))]
	return s, ok
}

func sqlType(c schema.ColumnSpec, ts schema.TableSchema) (string, error) {
	switch c.Kind {
	case schema.KindBoolean:
		return "boolean", nil
	case schema.KindInteger:
		return "bigint", nil
	case schema.KindFloat:
		return "double precision", nil
	case schema.KindTimestamp:
		return "timestamptz", nil
	case schema.KindJSON:
		return "jsonb", nil
	case schema.KindGeometry:
		gt, ok := canonicalGeometryType(ts.GeometryType)
		if !ok {
			return "", fmt.Errorf("postgres: unsupported geometry type %q", ts.GeometryType)
		}
		return fmt.Sprintf("geometry(%s,%d)", gt, ts.SRID), nil
	default:
		return "text", nil
	}
}

// kindFromUDT maps information_schema.columns.udt_name onto a kind.
func kindFromUDT(udt string) schema.Kind {
	switch strings.ToLower(udt) {
	case "text", "varchar", "bpchar", "char", "name", "citext":
		return schema.KindText
	case "int2", "int4", "int8":
		return schema.KindInteger
	case "float4", "float8", "numeric":
		return schema.KindFloat
	case "bool":
		return schema.KindBoolean
	case "timestamptz", "timestamp", "date":
		return schema.KindTimestamp
	case "json", "jsonb":
		return schema.KindJSON
	case "geometry":
		return schema.KindGeometry
	default:
		return schema.KindUnknown
	}
}

// intBitsFromUDT returns the width of the narrow integer types; 0 otherwise.
func intBitsFromUDT(udt string) int {
	switch strings.ToLower(udt) {
	case "int2":
		return 16
	case "int4":
		return 32
	default:
		return 0
	}
}

// buildCreateStatements returns the DDL run in one transaction by
// CreateTable: extension, optional schema, table, spatial index.
func buildCreateStatements(ts schema.TableSchema) ([]string, error) {
	if strings.TrimSpace(ts.Name) == "" {
		return nil, fmt.Errorf("postgres: table name is empty")
	}
	if ts.GeometryColumn == "" {
		return nil, fmt.Errorf("postgres: table %s has no geometry column", ts.Name)
	}

	stmts := []string{"CREATE EXTENSION IF NOT EXISTS postgis"}

	schemaName, table := schema.SplitTableName(ts.Name)
	if schemaName != "" {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+pgIdent(schemaName))
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(tableIdent(ts.Name).Sanitize())
	b.WriteString(" (\n")
	for i, c := range ts.Columns {
		if i > 0 {
			b.WriteString(",\n")
		}
		typ, err := sqlType(c, ts)
		if err != nil {
			return nil, err
		}
		b.WriteString("  ")
		b.WriteString(pgIdent(c.Name))
		b.WriteByte(' ')
		b.WriteString(typ)
		if !c.Nullable {
			b.WriteString(" NOT NULL")
		}
		if c.Unique {
			b.WriteString(" UNIQUE")
		}
	}
	b.WriteString("\n)")
	stmts = append(stmts, b.String())

	idx := truncateIdent(table+"_"+ts.GeometryColumn+"_gist", schema.MaxIdentifierLen)
	stmts = append(stmts, fmt.Sprintf("CREATE INDEX %s ON %s USING GIST (%s)",
		pgIdent(idx), tableIdent(ts.Name).Sanitize(), pgIdent(ts.GeometryColumn)))
	return stmts, nil
}

func truncateIdent(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
