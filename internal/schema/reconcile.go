package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSchemaConflict reports an existing table that cannot receive the
// inferred rows. Nothing is written when it is returned.
var ErrSchemaConflict = errors.New("schema: conflict with existing table")

// Reconcile checks inferred against the columns of an existing table and
// returns the schema to load with.
//
// Every inferred column must exist and accept the inferred kind (text accepts
// everything, float accepts integer). The geometry column must be a geometry
// whose declared SRID and subtype, when constrained, match. Existing columns
// the input never mentions are left alone and receive NULL/defaults.
//
// The returned schema carries the existing kinds and nullability, so the
// encoder coerces values into what the table actually declares.
func Reconcile(existing []ExistingColumn, inferred TableSchema) (TableSchema, error) {
	byName := make(map[string]ExistingColumn, len(existing))
	for _, c := range existing {
		byName[strings.ToLower(c.Name)] = c
	}

	out := inferred
	out.Columns = append([]ColumnSpec(nil), inferred.Columns...)

	var problems []string
	for i, c := range out.Columns {
		ex, ok := byName[c.Name]
		if !ok {
			problems = append(problems, fmt.Sprintf("column %q (%s) does not exist", c.Name, c.Kind))
			continue
		}

		if c.Role == RoleGeometry {
			if ex.Kind != KindGeometry {
				problems = append(problems, fmt.Sprintf("column %q is %s, want geometry", c.Name, ex.Kind))
				continue
			}
			if ex.SRID != 0 && ex.SRID != inferred.SRID {
				problems = append(problems, fmt.Sprintf("column %q has SRID %d, input uses %d", c.Name, ex.SRID, inferred.SRID))
			}
			if bad := rejectedGeometryTypes(ex.GeometryType, inferred.ObservedGeometryTypes); len(bad) > 0 {
				problems = append(problems, fmt.Sprintf("column %q is %s, input has %s", c.Name, ex.GeometryType, strings.Join(bad, ", ")))
			}
			if ex.GeometryType != "" {
				out.GeometryType = ex.GeometryType
			}
			out.Columns[i].Nullable = ex.Nullable
			continue
		}

		if !Accepts(ex.Kind, c.Kind) {
			problems = append(problems, fmt.Sprintf("column %q is %s, input has %s", c.Name, ex.Kind, c.Kind))
			continue
		}
		out.Columns[i].Kind = ex.Kind
		out.Columns[i].Nullable = ex.Nullable
		out.Columns[i].IntBits = ex.IntBits
		out.Columns[i].MaxLength = ex.MaxLength
	}

	if len(problems) > 0 {
		return TableSchema{}, fmt.Errorf("%w %s: %s", ErrSchemaConflict, inferred.Name, strings.Join(problems, "; "))
	}
	return out, nil
}

// rejectedGeometryTypes returns the observed types a column declared as
// declared cannot hold. Null geometries are not types and are checked against
// nullability by the encoder.
func rejectedGeometryTypes(declared string, observed []string) []string {
	var bad []string
	for _, t := range observed {
		if !GeometryTypeAccepts(declared, t) {
			bad = append(bad, t)
		}
	}
	return bad
}

// GeometryTypeAccepts reports whether a geometry column declared as declared
// can store a geometry of type observed. An empty or "Geometry" declaration
// is unconstrained.
func GeometryTypeAccepts(declared, observed string) bool {
	switch {
	case declared == "", strings.EqualFold(declared, "Geometry"), strings.EqualFold(declared, observed):
		return true
	default:
		return false
	}
}
