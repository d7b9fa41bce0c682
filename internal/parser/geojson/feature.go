package geojson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"

	"geoload/pkg/records"
)

var nullLiteral = []byte("null")

// parseFeature decodes one element of the features array.
func parseFeature(index int, raw json.RawMessage) (*records.Feature, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, invalid(index, "entry is not an object")
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &members); err != nil {
		return nil, invalid(index, "decode entry: %v", err)
	}

	var typ string
	if err := json.Unmarshal(members["type"], &typ); err != nil || typ != "Feature" {
		return nil, invalid(index, `type must be "Feature", got %s`, orMissing(members["type"]))
	}

	f := &records.Feature{Index: index}

	if rawID, ok := members["id"]; ok && !isNull(rawID) {
		id, err := decodeID(rawID)
		if err != nil {
			return nil, invalid(index, "%v", err)
		}
		f.ID = id
	}

	rawGeom, ok := members["geometry"]
	if !ok {
		return nil, invalid(index, `missing "geometry" member`)
	}
	if !isNull(rawGeom) {
		if err := checkCoordinates(rawGeom); err != nil {
			return nil, invalid(index, "geometry: %v", err)
		}
		g, err := geojson.UnmarshalGeometry(rawGeom)
		if err != nil {
			return nil, invalid(index, "geometry: %v", err)
		}
		f.Geometry = g.Geometry()
	}

	if rawProps, ok := members["properties"]; ok && !isNull(rawProps) {
		keys, props, err := decodeProperties(rawProps)
		if err != nil {
			return nil, invalid(index, "properties: %v", err)
		}
		f.Keys, f.Properties = keys, props
	}
	return f, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), nullLiteral)
}

func orMissing(raw json.RawMessage) string {
	if raw == nil {
		return "nothing"
	}
	return string(raw)
}

func decodeID(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode id: %w", err)
	}
	switch v.(type) {
	case string, json.Number:
		return v, nil
	default:
		return nil, fmt.Errorf("id must be a string or number, got %s", raw)
	}
}

// decodeProperties walks the properties object keeping member order.
// Duplicate names keep their first position and the last value.
func decodeProperties(raw json.RawMessage) ([]string, map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if tok != json.Delim('{') {
		return nil, nil, fmt.Errorf("must be an object, got %v", tok)
	}

	var keys []string
	props := make(map[string]any)
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		k, ok := kt.(string)
		if !ok {
			return nil, nil, fmt.Errorf("member name not a string (got %T)", kt)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, fmt.Errorf("decode %q: %w", k, err)
		}
		if _, seen := props[k]; !seen {
			keys = append(keys, k)
		}
		props[k] = v
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, err
	}
	return keys, props, nil
}
