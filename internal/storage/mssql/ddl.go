package mssql

import (
	"encoding/json"
	"fmt"
	"strings"

	"geoload/internal/schema"
)

// metaTable records geometry type and SRID for varbinary geometry columns.
const metaTable = "geoload_geometry_columns"

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified names.
//
//	"dbo.parcels" -> [dbo].[parcels]
func mssqlTableIdent(name string) string {
	schemaName, table := schema.SplitTableName(name)
	if schemaName == "" {
		return mssqlIdent(table)
	}
	return mssqlIdent(schemaName) + "." + mssqlIdent(table)
}

// sqlType maps a column onto a SQL Server type. Unique text columns get a
// bounded length because (max) types cannot be index keys.
func sqlType(c schema.ColumnSpec) string {
	switch c.Kind {
	case schema.KindBoolean:
		return "bit"
	case schema.KindInteger:
		return "bigint"
	case schema.KindFloat:
		return "float"
	case schema.KindTimestamp:
		return "datetimeoffset"
	case schema.KindGeometry:
		return "varbinary(max)"
	default:
		if c.Unique {
			return "nvarchar(450)"
		}
		return "nvarchar(max)"
	}
}

// kindFromType maps sys.types names onto kinds. varbinary is reported as
// unknown; DescribeTable upgrades it to geometry from the metadata table.
func kindFromType(t string) schema.Kind {
	switch strings.ToLower(t) {
	case "nvarchar", "varchar", "nchar", "char", "ntext", "text", "sysname":
		return schema.KindText
	case "bigint", "int", "smallint", "tinyint":
		return schema.KindInteger
	case "float", "real", "decimal", "numeric", "money":
		return schema.KindFloat
	case "bit":
		return schema.KindBoolean
	case "datetimeoffset", "datetime2", "datetime", "smalldatetime", "date":
		return schema.KindTimestamp
	default:
		return schema.KindUnknown
	}
}

// intBitsFromType returns the width of the narrow integer types; 0 otherwise.
func intBitsFromType(t string) int {
	switch strings.ToLower(t) {
	case "tinyint":
		return 8
	case "smallint":
		return 16
	case "int":
		return 32
	default:
		return 0
	}
}

func buildCreateSQL(ts schema.TableSchema) (string, error) {
	if strings.TrimSpace(ts.Name) == "" {
		return "", fmt.Errorf("mssql: table name is empty")
	}
	if len(ts.Columns) == 0 {
		return "", fmt.Errorf("mssql: table %s has no columns", ts.Name)
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(mssqlTableIdent(ts.Name))
	b.WriteString(" (\n")
	for i, c := range ts.Columns {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("  ")
		b.WriteString(mssqlIdent(c.Name))
		b.WriteByte(' ')
		b.WriteString(sqlType(c))
		if c.Nullable {
			b.WriteString(" NULL")
		} else {
			b.WriteString(" NOT NULL")
		}
		if c.Unique {
			b.WriteString(" UNIQUE")
		}
	}
	b.WriteString("\n)")
	return b.String(), nil
}

// buildSchemaSQL creates the schema of a qualified table when missing.
// CREATE SCHEMA must be alone in its batch, hence EXEC.
func buildSchemaSQL(table string) string {
	schemaName, _ := schema.SplitTableName(table)
	if schemaName == "" {
		return ""
	}
	lit := strings.ReplaceAll(schemaName, "'", "''")
	create := strings.ReplaceAll("CREATE SCHEMA "+mssqlIdent(schemaName), "'", "''")
	return fmt.Sprintf("IF SCHEMA_ID(N'%s') IS NULL EXEC(N'%s')", lit, create)
}

const createMetaSQL = `IF OBJECT_ID(N'dbo.` + metaTable + `', N'U') IS NULL
CREATE TABLE dbo.` + metaTable + ` (
  f_table_name nvarchar(256) NOT NULL,
  f_geometry_column nvarchar(128) NOT NULL,
  geometry_type nvarchar(32) NOT NULL,
  srid int NOT NULL,
  PRIMARY KEY (f_table_name, f_geometry_column)
)`

// toMSSQLValue maps encoder output onto types the bulk copier accepts.
func toMSSQLValue(v any) any {
	switch t := v.(type) {
	case json.RawMessage:
		return string(t)
	default:
		return v
	}
}
