package schema

import (
	"fmt"
	"sort"

	"geoload/pkg/records"
)

// DefaultGeometryColumn is used when Options.GeometryColumn is empty.
const DefaultGeometryColumn = "geometry"

// Options configures inference.
type Options struct {
	GeometryColumn string
	// SRID overrides the CRS declared by the document when > 0.
	SRID int
	// FeatureIDColumn, when set, stores the GeoJSON feature id.
	FeatureIDColumn string
	// FeatureIDUnique adds a UNIQUE constraint to FeatureIDColumn.
	FeatureIDUnique bool
	// RawPropertiesColumn, when set, stores the full property object as JSON.
	RawPropertiesColumn string
}

type propStats struct {
	kind    Kind
	present int
	nonNull int
}

// Inferrer accumulates per-property statistics over observed features.
//
// Concurrency: not safe for concurrent use.
type Inferrer struct {
	opts      Options
	order     []string
	props     map[string]*propStats
	records   int
	withID    int
	nullGeoms int
	geomTypes map[string]int
}

// NewInferrer returns an empty Inferrer.
func NewInferrer(opts Options) *Inferrer {
	if opts.GeometryColumn == "" {
		opts.GeometryColumn = DefaultGeometryColumn
	}
	return &Inferrer{
		opts:      opts,
		props:     make(map[string]*propStats),
		geomTypes: make(map[string]int),
	}
}

// Observe folds one feature into the statistics.
func (in *Inferrer) Observe(f *records.Feature) {
	if f == nil {
		return
	}
	in.records++
	if f.ID != nil {
		in.withID++
	}
	if f.Geometry == nil {
		in.nullGeoms++
	} else {
		in.geomTypes[f.Geometry.GeoJSONType()]++
	}

	for _, k := range f.Keys {
		st, ok := in.props[k]
		if !ok {
			st = &propStats{}
			in.props[k] = st
			in.order = append(in.order, k)
		}
		st.present++
		v := f.Properties[k]
		if v != nil {
			st.nonNull++
		}
		st.kind = Widen(st.kind, KindOf(v))
	}
}

// Records is the number of features observed.
func (in *Inferrer) Records() int { return in.records }

// GeometryType is the union of observed geometry types: the single type when
// only one was seen, "Geometry" otherwise.
func (in *Inferrer) GeometryType() string {
	if len(in.geomTypes) != 1 {
		return "Geometry"
	}
	for t := range in.geomTypes {
		return t
	}
	return "Geometry"
}

// GeometryTypes lists the observed geometry types, sorted.
func (in *Inferrer) GeometryTypes() []string {
	out := make([]string, 0, len(in.geomTypes))
	for t := range in.geomTypes {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Schema builds the table layout for table.
//
// complete must be true only when every record of the input was observed:
// only then can a column be declared NOT NULL.
//
// Columns are ordered feature id (if configured), properties in order of
// first appearance, raw properties (if configured), geometry. Names are
// normalized; collisions get _2, _3, ... suffixes, and properties never take
// the name of the configured extra columns.
func (in *Inferrer) Schema(table, crs string, complete bool) (TableSchema, error) {
	srid, err := ResolveSRID(in.opts.SRID, crs)
	if err != nil {
		return TableSchema{}, err
	}

	used := make(map[string]bool)
	reserve := func(configured, what string) (string, error) {
		if configured == "" {
			return "", nil
		}
		name := NormalizeIdentifier(configured)
		if name == "" {
			return "", fmt.Errorf("schema: %s column %q normalizes to an empty identifier", what, configured)
		}
		if used[name] {
			return "", fmt.Errorf("schema: %s column %q collides with another configured column", what, name)
		}
		used[name] = true
		return name, nil
	}

	geomName, err := reserve(in.opts.GeometryColumn, "geometry")
	if err != nil {
		return TableSchema{}, err
	}
	idName, err := reserve(in.opts.FeatureIDColumn, "feature id")
	if err != nil {
		return TableSchema{}, err
	}
	rawName, err := reserve(in.opts.RawPropertiesColumn, "raw properties")
	if err != nil {
		return TableSchema{}, err
	}

	ts := TableSchema{
		Name:           table,
		GeometryColumn: geomName,
		GeometryType:   in.GeometryType(),
		SRID:           srid,
		Complete:       complete,

		ObservedGeometryTypes: in.GeometryTypes(),
	}

	if idName != "" {
		ts.Columns = append(ts.Columns, ColumnSpec{
			Name:     idName,
			Kind:     KindText,
			Nullable: !complete || in.withID < in.records,
			Unique:   in.opts.FeatureIDUnique,
			Role:     RoleFeatureID,
		})
	}

	for i, key := range in.order {
		st := in.props[key]
		base := NormalizeIdentifier(key)
		if base == "" {
			base = fmt.Sprintf("column_%d", i+1)
		}
		ts.Columns = append(ts.Columns, ColumnSpec{
			Name:     uniqueName(base, used),
			Source:   key,
			Kind:     st.kind,
			Nullable: !complete || st.nonNull < in.records,
			Role:     RoleProperty,
		})
	}

	if rawName != "" {
		ts.Columns = append(ts.Columns, ColumnSpec{
			Name:     rawName,
			Kind:     KindJSON,
			Nullable: true,
			Role:     RoleRawProperties,
		})
	}

	ts.Columns = append(ts.Columns, ColumnSpec{
		Name:     geomName,
		Kind:     KindGeometry,
		Nullable: !complete || in.nullGeoms > 0 || in.records == 0,
		Role:     RoleGeometry,
	})
	return ts, nil
}
