// Package records holds the in-memory shape of one parsed GeoJSON feature as it
// travels from the stream parser to the row encoder.
package records

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Feature is a single GeoJSON feature.
//
// Keys preserves the order in which property names appeared in the source
// object; Properties holds the decoded values keyed by the same names.
// Values are one of nil, bool, string, json.Number, map[string]any or []any.
//
// Geometry is nil when the document carried an explicit "geometry": null.
type Feature struct {
	Index      int
	ID         any
	Keys       []string
	Properties map[string]any
	Geometry   orb.Geometry
}

// Property returns the value for key and whether the key was present.
func (f *Feature) Property(key string) (any, bool) {
	if f == nil || f.Properties == nil {
		return nil, false
	}
	v, ok := f.Properties[key]
	return v, ok
}

// IDString renders the feature id for logs and skip reports. Empty when unset.
func (f *Feature) IDString() string {
	if f == nil || f.ID == nil {
		return ""
	}
	switch v := f.ID.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
