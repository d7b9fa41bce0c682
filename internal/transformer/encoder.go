package transformer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf8"

	"geoload/internal/schema"
	"geoload/internal/storage"
	"geoload/pkg/records"
)

// UnknownPolicy decides what happens to a property the resolved schema has no
// column for (possible when the schema was inferred from a sample).
type UnknownPolicy string

const (
	// UnknownReject skips the feature with an encoding error.
	UnknownReject UnknownPolicy = "reject"
	// UnknownKeepRaw loads the feature; the property survives only in the raw
	// properties column.
	UnknownKeepRaw UnknownPolicy = "keep_raw"
)

// EncoderOptions configures an Encoder.
type EncoderOptions struct {
	Geometry          storage.GeometryEncoding
	UnknownProperties UnknownPolicy
}

// Encoder maps features onto rows aligned with a TableSchema's column order.
//
// Value mapping: text → string, integer → int64, float → float64,
// boolean → bool, json → json.RawMessage, timestamp → time.Time,
// geometry → EWKB or WKB []byte, absent/null → nil.
//
// Concurrency: an Encoder holds no mutable state and may be shared.
type Encoder struct {
	ts       schema.TableSchema
	opts     EncoderOptions
	bySource map[string]int
}

// NewEncoder prepares an Encoder for ts.
func NewEncoder(ts schema.TableSchema, opts EncoderOptions) (*Encoder, error) {
	if opts.UnknownProperties == "" {
		opts.UnknownProperties = UnknownReject
	}

	e := &Encoder{ts: ts, opts: opts, bySource: make(map[string]int)}
	geoms, raws := 0, 0
	for i, c := range ts.Columns {
		switch c.Role {
		case schema.RoleProperty:
			e.bySource[c.Source] = i
		case schema.RoleGeometry:
			geoms++
		case schema.RoleRawProperties:
			raws++
		}
	}
	if geoms != 1 {
		return nil, fmt.Errorf("transformer: schema %s has %d geometry columns, want 1", ts.Name, geoms)
	}
	switch opts.UnknownProperties {
	case UnknownReject:
	case UnknownKeepRaw:
		if raws == 0 {
			return nil, fmt.Errorf("transformer: unknown property policy %q needs a raw properties column", opts.UnknownProperties)
		}
	default:
		return nil, fmt.Errorf("transformer: unknown property policy %q", opts.UnknownProperties)
	}
	return e, nil
}

// Columns returns the number of values in every encoded row.
func (e *Encoder) Columns() int { return len(e.ts.Columns) }

// Encode converts f into a pooled Row. On error no Row is returned and the
// error wraps ErrEncoding.
func (e *Encoder) Encode(f *records.Feature) (*Row, error) {
	if e.opts.UnknownProperties == UnknownReject {
		for _, k := range f.Keys {
			if _, ok := e.bySource[k]; !ok && f.Properties[k] != nil {
				return nil, encodingErr(k, "unknown property (first seen after table creation)")
			}
		}
	}

	row := GetRow(len(e.ts.Columns))
	row.Index = f.Index
	for i, c := range e.ts.Columns {
		v, err := e.value(c, f)
		if err != nil {
			row.Drop()
			return nil, err
		}
		if v == nil && !c.Nullable {
			row.Drop()
			return nil, encodingErr(c.Name, "NOT NULL column has no value")
		}
		row.V[i] = v
	}
	return row, nil
}

func (e *Encoder) value(c schema.ColumnSpec, f *records.Feature) (any, error) {
	switch c.Role {
	case schema.RoleGeometry:
		if f.Geometry == nil {
			return nil, nil
		}
		if t := f.Geometry.GeoJSONType(); !schema.GeometryTypeAccepts(e.ts.GeometryType, t) {
			return nil, encodingErr(c.Name, "%s geometry in a %s column", t, e.ts.GeometryType)
		}
		b, err := encodeGeometry(f.Geometry, e.ts.SRID, e.opts.Geometry)
		if err != nil {
			return nil, &EncodingError{Column: c.Name, Err: err}
		}
		return b, nil

	case schema.RoleFeatureID:
		if f.ID == nil {
			return nil, nil
		}
		id := f.IDString()
		if err := fits(c, id); err != nil {
			return nil, &EncodingError{Column: c.Name, Err: err}
		}
		return id, nil

	case schema.RoleRawProperties:
		if f.Properties == nil {
			return nil, nil
		}
		b, err := orderedObject(f.Keys, f.Properties)
		if err != nil {
			return nil, &EncodingError{Column: c.Name, Err: err}
		}
		return b, nil

	default:
		v, err := coerce(c.Kind, f.Properties[c.Source])
		if err == nil {
			err = fits(c, v)
		}
		if err != nil {
			return nil, &EncodingError{Column: c.Name, Err: err}
		}
		return v, nil
	}
}

// coerce converts a decoded JSON value to the Go type used for kind.
func coerce(kind schema.Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch kind {
	case schema.KindInteger:
		n, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("%s is not an integer", describe(v))
		}
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("%s does not fit a 64-bit integer", n)
		}
		return i, nil

	case schema.KindFloat:
		n, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("%s is not a number", describe(v))
		}
		return schema.ParseFloat(n)

	case schema.KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%s is not a boolean", describe(v))
		}
		return b, nil

	case schema.KindTimestamp:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s is not a timestamp", describe(v))
		}
		t, ok := schema.ParseTimestamp(s)
		if !ok {
			return nil, fmt.Errorf("%q is not a timestamp", s)
		}
		return t, nil

	case schema.KindJSON:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(b), nil

	case schema.KindText, schema.KindUnknown:
		return textOf(v)

	default:
		return nil, fmt.Errorf("cannot store a property in a %s column", kind)
	}
}

// fits checks a coerced value against the width of a narrow column.
func fits(c schema.ColumnSpec, v any) error {
	switch t := v.(type) {
	case int64:
		if lo, hi := schema.IntRange(c.IntBits); t < lo || t > hi {
			return fmt.Errorf("%d is out of range for a %d-bit integer column", t, c.IntBits)
		}
	case string:
		if c.MaxLength > 0 {
			if n := utf8.RuneCountInString(t); n > c.MaxLength {
				return fmt.Errorf("text of %d characters exceeds the column limit of %d", n, c.MaxLength)
			}
		}
	}
	return nil
}

func textOf(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
}

func describe(v any) string {
	switch t := v.(type) {
	case string:
		return strconv.Quote(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		return "an object"
	case []any:
		return "an array"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// orderedObject renders the properties as a JSON object in source order.
func orderedObject(keys []string, props map[string]any) (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(props[k])
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
