package schema

import (
	"strings"
	"testing"
)

func TestNormalizeIdentifier(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"NAME_LATN", "name_latn"},
		{"  Population 2024 ", "population_2024"},
		{"Größe (km²)", "groe_km"},
		{"Région-Île.de/France", "region_ile_de_france"},
		{"a  -- b", "a_b"},
		{"__x__", "x"},
		{"日本", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeIdentifier(tt.in); got != tt.want {
			t.Fatalf("NormalizeIdentifier(%q)=%q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeIdentifier_Truncates(t *testing.T) {
	t.Parallel()
	got := NormalizeIdentifier(strings.Repeat("ab", 40))
	if len(got) != MaxIdentifierLen {
		t.Fatalf("len=%d, want %d", len(got), MaxIdentifierLen)
	}
}

func TestUniqueName(t *testing.T) {
	t.Parallel()
	used := map[string]bool{"geometry": true}
	if got := uniqueName("geometry", used); got != "geometry_2" {
		t.Fatalf("uniqueName=%q, want geometry_2", got)
	}
	if got := uniqueName("geometry", used); got != "geometry_3" {
		t.Fatalf("uniqueName=%q, want geometry_3", got)
	}
	long := strings.Repeat("x", MaxIdentifierLen)
	used[long] = true
	if got := uniqueName(long, used); len(got) > MaxIdentifierLen || !strings.HasSuffix(got, "_2") {
		t.Fatalf("uniqueName(long)=%q, want <=63 bytes ending _2", got)
	}
}

func TestDeriveTableName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"data/nuts3_2024_regions_eez_w_eez.geojson", "nuts3_2024_regions_eez_w_eez"},
		{"/tmp/Countries.json.gz", "countries"},
		{"rivers.geojson.zst", "rivers"},
		{"My Parcels", "my_parcels"},
	}
	for _, tt := range tests {
		got, err := DeriveTableName(tt.in)
		if err != nil || got != tt.want {
			t.Fatalf("DeriveTableName(%q)=%q err=%v, want %q", tt.in, got, err, tt.want)
		}
	}
	if _, err := DeriveTableName("data/.geojson"); err == nil {
		t.Fatalf("DeriveTableName(.geojson) err=nil, want error")
	}
}

func TestNormalizeTableName(t *testing.T) {
	t.Parallel()
	got, err := NormalizeTableName("Public.My Table")
	if err != nil || got != "public.my_table" {
		t.Fatalf("NormalizeTableName=%q err=%v, want public.my_table", got, err)
	}
	if _, err := NormalizeTableName("a.b.c"); err == nil {
		t.Fatalf("NormalizeTableName(a.b.c) err=nil, want error")
	}
	if s, tbl := SplitTableName("gis.roads"); s != "gis" || tbl != "roads" {
		t.Fatalf("SplitTableName=%q,%q", s, tbl)
	}
}

func TestResolveSRID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		override int
		crs      string
		want     int
		wantErr  bool
	}{
		{0, "", 4326, false},
		{0, "urn:ogc:def:crs:OGC:1.3:CRS84", 4326, false},
		{0, "urn:ogc:def:crs:EPSG::3857", 3857, false},
		{0, "EPSG:3035", 3035, false},
		{0, "http://www.opengis.net/def/crs/EPSG/0/25832", 25832, false},
		{2154, "EPSG:3035", 2154, false},
		{0, "local-grid", 0, true},
	}
	for _, tt := range tests {
		got, err := ResolveSRID(tt.override, tt.crs)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("ResolveSRID(%d, %q)=%d err=%v, want %d wantErr=%v", tt.override, tt.crs, got, err, tt.want, tt.wantErr)
		}
	}
}
