package geojson

import (
	"encoding/json"
	"errors"
	"fmt"
)

// positionDepth is the array nesting above a single position for each
// coordinate-bearing geometry type.
var positionDepth = map[string]int{
	"Point":           0,
	"MultiPoint":      1,
	"LineString":      1,
	"MultiLineString": 2,
	"Polygon":         2,
	"MultiPolygon":    3,
}

type rawGeometry struct {
	Type        string            `json:"type"`
	Coordinates json.RawMessage   `json:"coordinates"`
	Geometries  []json.RawMessage `json:"geometries"`
}

// checkCoordinates verifies every position in the geometry has the same
// number of ordinates, and at least two. Values beyond the second ordinate
// are accepted and later dropped.
func checkCoordinates(raw json.RawMessage) error {
	dims := 0
	return walkGeometry(raw, &dims)
}

func walkGeometry(raw json.RawMessage, dims *int) error {
	var g rawGeometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return err
	}
	if g.Type == "GeometryCollection" {
		for _, child := range g.Geometries {
			if err := walkGeometry(child, dims); err != nil {
				return err
			}
		}
		return nil
	}

	depth, ok := positionDepth[g.Type]
	if !ok {
		return fmt.Errorf("unsupported geometry type %q", g.Type)
	}
	if isNull(g.Coordinates) {
		return errors.New("missing coordinates")
	}
	var coords any
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
		return fmt.Errorf("coordinates: %w", err)
	}
	return walkPositions(coords, depth, dims)
}

func walkPositions(v any, depth int, dims *int) error {
	arr, ok := v.([]any)
	if !ok {
		return fmt.Errorf("coordinates: expected array, got %T", v)
	}
	if depth > 0 {
		for _, child := range arr {
			if err := walkPositions(child, depth-1, dims); err != nil {
				return err
			}
		}
		return nil
	}

	if len(arr) < 2 {
		return fmt.Errorf("position has %d ordinates, want at least 2", len(arr))
	}
	for _, o := range arr {
		if _, ok := o.(float64); !ok {
			return fmt.Errorf("position ordinate is %T, want number", o)
		}
	}
	switch {
	case *dims == 0:
		*dims = len(arr)
	case *dims != len(arr):
		return fmt.Errorf("inconsistent coordinate dimensionality: %d and %d", *dims, len(arr))
	}
	return nil
}
