package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"geoload/pkg/records"
)

func feature(idx int, geom orb.Geometry, kv ...any) *records.Feature {
	f := &records.Feature{Index: idx, Geometry: geom, Properties: map[string]any{}}
	for i := 0; i+1 < len(kv); i += 2 {
		k := kv[i].(string)
		f.Keys = append(f.Keys, k)
		f.Properties[k] = kv[i+1]
	}
	return f
}

func mustColumn(t *testing.T, ts TableSchema, name string) ColumnSpec {
	t.Helper()
	c, ok := ts.Column(name)
	if !ok {
		t.Fatalf("column %q missing from %v", name, ts.ColumnNames())
	}
	return c
}

func TestInferrer_WideningIsOrderIndependent(t *testing.T) {
	t.Parallel()
	one := feature(0, orb.Point{0, 0}, "a", json.Number("1"))
	half := feature(1, orb.Point{0, 0}, "a", json.Number("1.5"))

	for _, order := range [][]*records.Feature{{one, half}, {half, one}} {
		in := NewInferrer(Options{})
		for _, f := range order {
			in.Observe(f)
		}
		ts, err := in.Schema("t", "", true)
		if err != nil {
			t.Fatalf("Schema() err=%v, want nil", err)
		}
		if got := mustColumn(t, ts, "a").Kind; got != KindFloat {
			t.Fatalf("a.Kind=%s, want float", got)
		}
	}
}

func TestInferrer_ColumnsAndNullability(t *testing.T) {
	t.Parallel()
	in := NewInferrer(Options{FeatureIDColumn: "feature_id", RawPropertiesColumn: "properties"})
	f0 := feature(0, orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, "Name", "x", "Geometry", "clash", "pop", json.Number("3"))
	f0.ID = "f0"
	in.Observe(f0)
	in.Observe(feature(1, orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, "Name", "y", "flag", true, "pop", nil))

	ts, err := in.Schema("regions", "", true)
	if err != nil {
		t.Fatalf("Schema() err=%v, want nil", err)
	}

	want := []string{"feature_id", "name", "geometry_2", "pop", "flag", "properties", "geometry"}
	got := ts.ColumnNames()
	if len(got) != len(want) {
		t.Fatalf("columns=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("columns=%v, want %v", got, want)
		}
	}

	if c := mustColumn(t, ts, "name"); c.Nullable || c.Kind != KindText || c.Source != "Name" {
		t.Fatalf("name=%+v, want NOT NULL text from Name", c)
	}
	if c := mustColumn(t, ts, "pop"); !c.Nullable || c.Kind != KindInteger {
		t.Fatalf("pop=%+v, want nullable integer", c)
	}
	if c := mustColumn(t, ts, "flag"); !c.Nullable || c.Kind != KindBoolean {
		t.Fatalf("flag=%+v, want nullable boolean", c)
	}
	if c := mustColumn(t, ts, "feature_id"); !c.Nullable || c.Role != RoleFeatureID {
		t.Fatalf("feature_id=%+v, want nullable feature id", c)
	}
	if c := mustColumn(t, ts, "geometry"); c.Nullable || c.Role != RoleGeometry {
		t.Fatalf("geometry=%+v, want NOT NULL geometry", c)
	}
	if ts.GeometryType != "Polygon" || ts.SRID != 4326 {
		t.Fatalf("geometry type=%s srid=%d, want Polygon 4326", ts.GeometryType, ts.SRID)
	}
}

func TestInferrer_SampledSchemaIsAllNullable(t *testing.T) {
	t.Parallel()
	in := NewInferrer(Options{})
	in.Observe(feature(0, orb.Point{1, 1}, "a", "x"))
	ts, err := in.Schema("t", "EPSG:3857", false)
	if err != nil {
		t.Fatalf("Schema() err=%v", err)
	}
	for _, c := range ts.Columns {
		if !c.Nullable {
			t.Fatalf("column %q NOT NULL from a partial sample", c.Name)
		}
	}
	if ts.SRID != 3857 {
		t.Fatalf("SRID=%d, want 3857", ts.SRID)
	}
}

func TestInferrer_MixedGeometryTypes(t *testing.T) {
	t.Parallel()
	in := NewInferrer(Options{})
	in.Observe(feature(0, orb.Point{1, 1}))
	in.Observe(feature(1, orb.LineString{{0, 0}, {1, 1}}))
	in.Observe(feature(2, nil))

	if got := in.GeometryType(); got != "Geometry" {
		t.Fatalf("GeometryType()=%q, want Geometry", got)
	}
	ts, _ := in.Schema("t", "", true)
	if c := mustColumn(t, ts, "geometry"); !c.Nullable {
		t.Fatalf("geometry NOT NULL despite a null geometry")
	}
}

func TestInferrer_EmptyPropertyNames(t *testing.T) {
	t.Parallel()
	in := NewInferrer(Options{})
	in.Observe(feature(0, orb.Point{1, 1}, "日本", "x", "", "y"))
	ts, _ := in.Schema("t", "", true)
	if ts.Columns[0].Name != "column_1" || ts.Columns[1].Name != "column_2" {
		t.Fatalf("columns=%v, want column_1 column_2", ts.ColumnNames())
	}
}

func TestInferrer_BadCRS(t *testing.T) {
	t.Parallel()
	in := NewInferrer(Options{})
	if _, err := in.Schema("t", "urn:x-local:grid", true); err == nil {
		t.Fatalf("Schema() err=nil, want unsupported crs error")
	}
}

func TestReconcile(t *testing.T) {
	t.Parallel()
	in := NewInferrer(Options{})
	in.Observe(feature(0, orb.Point{1, 1}, "name", "x", "pop", json.Number("3")))
	inferred, err := in.Schema("places", "", true)
	if err != nil {
		t.Fatalf("Schema() err=%v", err)
	}

	t.Run("compatible adopts existing kinds", func(t *testing.T) {
		existing := []ExistingColumn{
			{Name: "id", Kind: KindInteger},
			{Name: "name", Kind: KindText, Nullable: true},
			{Name: "pop", Kind: KindFloat, Nullable: true},
			{Name: "geometry", Kind: KindGeometry, GeometryType: "Point", SRID: 4326, Nullable: true},
		}
		got, err := Reconcile(existing, inferred)
		if err != nil {
			t.Fatalf("Reconcile() err=%v, want nil", err)
		}
		if c := mustColumn(t, got, "pop"); c.Kind != KindFloat || !c.Nullable {
			t.Fatalf("pop=%+v, want nullable float", c)
		}
		if c := mustColumn(t, inferred, "pop"); c.Kind != KindInteger {
			t.Fatalf("Reconcile mutated its input: pop=%+v", c)
		}
	})

	t.Run("conflicts", func(t *testing.T) {
		existing := []ExistingColumn{
			{Name: "pop", Kind: KindBoolean},
			{Name: "geometry", Kind: KindGeometry, GeometryType: "MultiPolygon", SRID: 3857},
		}
		_, err := Reconcile(existing, inferred)
		if !errors.Is(err, ErrSchemaConflict) {
			t.Fatalf("Reconcile() err=%v, want ErrSchemaConflict", err)
		}
		for _, want := range []string{`"name"`, `"pop"`, "SRID 3857", "MultiPolygon"} {
			if !strings.Contains(err.Error(), want) {
				t.Fatalf("error %q does not mention %s", err, want)
			}
		}
	})

	t.Run("geometry column wrong kind", func(t *testing.T) {
		existing := []ExistingColumn{
			{Name: "name", Kind: KindText},
			{Name: "pop", Kind: KindInteger},
			{Name: "geometry", Kind: KindText},
		}
		if _, err := Reconcile(existing, inferred); !errors.Is(err, ErrSchemaConflict) {
			t.Fatalf("Reconcile() err=%v, want ErrSchemaConflict", err)
		}
	})
}

func TestReconcile_GeometryTypes(t *testing.T) {
	t.Parallel()

	existing := []ExistingColumn{
		{Name: "name", Kind: KindText, Nullable: true},
		{Name: "geometry", Kind: KindGeometry, GeometryType: "Point", SRID: 4326, Nullable: true},
	}
	infer := func(t *testing.T, geoms ...orb.Geometry) TableSchema {
		t.Helper()
		in := NewInferrer(Options{})
		for i, g := range geoms {
			in.Observe(feature(i, g, "name", "x"))
		}
		ts, err := in.Schema("places", "", true)
		if err != nil {
			t.Fatalf("Schema() err=%v", err)
		}
		return ts
	}

	t.Run("null geometries only", func(t *testing.T) {
		got, err := Reconcile(existing, infer(t, nil, nil))
		if err != nil {
			t.Fatalf("Reconcile() err=%v, want nil", err)
		}
		if got.GeometryType != "Point" {
			t.Fatalf("GeometryType=%q, want the declared Point", got.GeometryType)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if _, err := Reconcile(existing, infer(t)); err != nil {
			t.Fatalf("Reconcile() err=%v, want nil", err)
		}
	})

	t.Run("points and nulls", func(t *testing.T) {
		if _, err := Reconcile(existing, infer(t, orb.Point{1, 1}, nil)); err != nil {
			t.Fatalf("Reconcile() err=%v, want nil", err)
		}
	})

	t.Run("mixed types name the offender", func(t *testing.T) {
		_, err := Reconcile(existing, infer(t, orb.Point{1, 1}, orb.LineString{{0, 0}, {1, 1}}))
		if !errors.Is(err, ErrSchemaConflict) {
			t.Fatalf("Reconcile() err=%v, want ErrSchemaConflict", err)
		}
		if !strings.Contains(err.Error(), "input has LineString") {
			t.Fatalf("error %q does not name LineString", err)
		}
	})
}

func TestReconcile_CarriesColumnWidths(t *testing.T) {
	t.Parallel()

	in := NewInferrer(Options{})
	in.Observe(feature(0, orb.Point{1, 1}, "name", "x", "pop", json.Number("3")))
	inferred, err := in.Schema("places", "", true)
	if err != nil {
		t.Fatalf("Schema() err=%v", err)
	}
	existing := []ExistingColumn{
		{Name: "name", Kind: KindText, MaxLength: 40},
		{Name: "pop", Kind: KindInteger, IntBits: 32},
		{Name: "geometry", Kind: KindGeometry},
	}
	got, err := Reconcile(existing, inferred)
	if err != nil {
		t.Fatalf("Reconcile() err=%v", err)
	}
	if c := mustColumn(t, got, "name"); c.MaxLength != 40 {
		t.Fatalf("name=%+v, want MaxLength 40", c)
	}
	if c := mustColumn(t, got, "pop"); c.IntBits != 32 {
		t.Fatalf("pop=%+v, want IntBits 32", c)
	}
}
