package schema

import "math"

// Role tells the encoder where a column's value comes from.
type Role int

const (
	RoleProperty Role = iota
	RoleGeometry
	RoleFeatureID
	RoleRawProperties
)

func (r Role) String() string {
	switch r {
	case RoleGeometry:
		return "geometry"
	case RoleFeatureID:
		return "feature_id"
	case RoleRawProperties:
		return "raw_properties"
	default:
		return "property"
	}
}

// MarshalText renders the role name for schema output.
func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// ColumnSpec describes one destination column.
type ColumnSpec struct {
	Name     string `json:"name" yaml:"name"`
	Source   string `json:"source,omitempty" yaml:"source,omitempty"`
	Kind     Kind   `json:"kind" yaml:"kind"`
	Nullable bool   `json:"nullable" yaml:"nullable"`
	Unique   bool   `json:"unique,omitempty" yaml:"unique,omitempty"`
	Role     Role   `json:"role" yaml:"role"`

	// Set only for columns of an existing table. See ExistingColumn.
	IntBits   int `json:"int_bits,omitempty" yaml:"int_bits,omitempty"`
	MaxLength int `json:"max_length,omitempty" yaml:"max_length,omitempty"`
}

// TableSchema is the resolved destination layout. It always holds exactly one
// geometry column.
type TableSchema struct {
	Name           string       `json:"table" yaml:"table"`
	Columns        []ColumnSpec `json:"columns" yaml:"columns"`
	GeometryColumn string       `json:"geometry_column" yaml:"geometry_column"`
	GeometryType   string       `json:"geometry_type" yaml:"geometry_type"`
	SRID           int          `json:"srid" yaml:"srid"`
	// Complete is true when every record of the input was observed.
	Complete bool `json:"complete" yaml:"complete"`
	// ObservedGeometryTypes lists the non-null geometry types seen in the
	// input, sorted. Empty when every observed geometry was null.
	ObservedGeometryTypes []string `json:"observed_geometry_types,omitempty" yaml:"observed_geometry_types,omitempty"`
}

// ColumnNames returns the column names in copy order.
func (s TableSchema) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Column returns the column with the given name.
func (s TableSchema) Column(name string) (ColumnSpec, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// ExistingColumn is a column of a table already present in the database, as
// reported by a storage backend.
type ExistingColumn struct {
	Name     string
	Kind     Kind
	Nullable bool
	// IntBits is the storage width of an integer column (8, 16 or 32); zero
	// means 64. MaxLength is the character limit of a text column; zero
	// means unbounded.
	IntBits   int
	MaxLength int
	// Geometry columns only. Zero values mean "unconstrained".
	GeometryType string
	SRID         int
}

// IntRange returns the inclusive bounds of an integer column bits wide.
// 8-bit columns are unsigned (SQL Server tinyint).
func IntRange(bits int) (lo, hi int64) {
	switch bits {
	case 8:
		return 0, math.MaxUint8
	case 16:
		return math.MinInt16, math.MaxInt16
	case 32:
		return math.MinInt32, math.MaxInt32
	default:
		return math.MinInt64, math.MaxInt64
	}
}
