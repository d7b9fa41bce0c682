package transformer

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/paulmach/orb/encoding/wkb"

	"geoload/internal/schema"
	"geoload/internal/storage"
)

// encodeGeometry validates g and renders it in the backend's binary format.
func encodeGeometry(g orb.Geometry, srid int, enc storage.GeometryEncoding) ([]byte, error) {
	if err := checkGeometry(g, srid == schema.DefaultSRID); err != nil {
		return nil, err
	}
	switch enc {
	case storage.GeometryWKB:
		return wkb.Marshal(g, binary.LittleEndian)
	default:
		return ewkb.Marshal(g, srid, binary.LittleEndian)
	}
}

// checkGeometry rejects non-finite coordinates and, for geographic
// coordinates, positions outside [-180,180]×[-90,90].
func checkGeometry(g orb.Geometry, geographic bool) error {
	var bad error
	eachPoint(g, func(p orb.Point) bool {
		x, y := p[0], p[1]
		switch {
		case math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0):
			bad = fmt.Errorf("non-finite coordinate %v", p)
		case geographic && (x < -180 || x > 180 || y < -90 || y > 90):
			bad = fmt.Errorf("coordinate %v outside lon/lat range", p)
		}
		return bad == nil
	})
	return bad
}

// eachPoint visits every position of g until fn returns false.
func eachPoint(g orb.Geometry, fn func(orb.Point) bool) bool {
	switch t := g.(type) {
	case orb.Point:
		return fn(t)
	case orb.MultiPoint:
		for _, p := range t {
			if !fn(p) {
				return false
			}
		}
	case orb.LineString:
		for _, p := range t {
			if !fn(p) {
				return false
			}
		}
	case orb.Ring:
		for _, p := range t {
			if !fn(p) {
				return false
			}
		}
	case orb.MultiLineString:
		for _, ls := range t {
			if !eachPoint(ls, fn) {
				return false
			}
		}
	case orb.Polygon:
		for _, r := range t {
			if !eachPoint(r, fn) {
				return false
			}
		}
	case orb.MultiPolygon:
		for _, p := range t {
			if !eachPoint(p, fn) {
				return false
			}
		}
	case orb.Collection:
		for _, c := range t {
			if !eachPoint(c, fn) {
				return false
			}
		}
	case orb.Bound:
		return fn(t.Min) && fn(t.Max)
	}
	return true
}
