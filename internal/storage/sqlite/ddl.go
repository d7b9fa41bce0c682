package sqlite

import (
	"fmt"
	"strings"

	"geoload/internal/schema"
)

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// qualifiedIdent quotes each part of "schema.table".
func qualifiedIdent(name string) string {
	schemaName, table := schema.SplitTableName(name)
	if schemaName == "" {
		return sqlIdent(table)
	}
	return sqlIdent(schemaName) + "." + sqlIdent(table)
}

// sqlType maps a kind onto the declared type written in DDL. The names are
// chosen so kindFromDeclType recovers the kind on describe.
func sqlType(k schema.Kind) string {
	switch k {
	case schema.KindBoolean:
		return "BOOLEAN"
	case schema.KindInteger:
		return "INTEGER"
	case schema.KindFloat:
		return "REAL"
	case schema.KindTimestamp:
		return "TIMESTAMP"
	case schema.KindJSON:
		return "JSON"
	case schema.KindGeometry:
		return "GEOMETRY"
	default:
		return "TEXT"
	}
}

func kindFromDeclType(decl string) schema.Kind {
	d := strings.ToUpper(strings.TrimSpace(decl))
	switch d {
	case "BOOLEAN", "BOOL":
		return schema.KindBoolean
	case "TIMESTAMP", "DATETIME", "DATE":
		return schema.KindTimestamp
	case "JSON":
		return schema.KindJSON
	case "GEOMETRY", "BLOB":
		return schema.KindGeometry
	}
	// SQLite type affinity rules.
	switch {
	case strings.Contains(d, "INT"):
		return schema.KindInteger
	case strings.Contains(d, "CHAR"), strings.Contains(d, "CLOB"), strings.Contains(d, "TEXT"):
		return schema.KindText
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"):
		return schema.KindFloat
	default:
		return schema.KindUnknown
	}
}

func buildCreateSQL(ts schema.TableSchema) (string, error) {
	if strings.TrimSpace(ts.Name) == "" {
		return "", fmt.Errorf("sqlite: table name is empty")
	}
	if len(ts.Columns) == 0 {
		return "", fmt.Errorf("sqlite: table %s has no columns", ts.Name)
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(qualifiedIdent(ts.Name))
	b.WriteString(" (\n")
	for i, c := range ts.Columns {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("  ")
		b.WriteString(sqlIdent(c.Name))
		b.WriteByte(' ')
		b.WriteString(sqlType(c.Kind))
		if !c.Nullable {
			b.WriteString(" NOT NULL")
		}
		if c.Unique {
			b.WriteString(" UNIQUE")
		}
	}
	b.WriteString("\n)")
	return b.String(), nil
}

func buildInsertSQL(table string, columns []string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(qualifiedIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") VALUES (")
	for i := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('?')
	}
	b.WriteString(")")
	return b.String()
}
