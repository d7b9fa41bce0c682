// Package geojson streams features out of a GeoJSON FeatureCollection without
// materializing the document. Only one feature is held in memory at a time.
package geojson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"geoload/pkg/records"
)

type decoderState int

const (
	stateStart decoderState = iota
	stateFeatures
	stateDone
)

// Decoder reads features one by one from a FeatureCollection.
//
// Streaming behavior:
//   - The root must be an object. A "type" member, if present, must be
//     "FeatureCollection".
//   - Members other than "type", "crs" and "features" are skipped token by
//     token, never decoded into Go values.
//   - Each element of "features" is decoded on its own, so arbitrarily large
//     collections stream in constant memory.
//
// Errors:
//   - ErrMalformedInput is sticky: once returned, every later call returns it.
//   - ErrInvalidFeature (wrapped in *FeatureError) affects only the current
//     element; the next call continues with the following element.
//
// Concurrency: a Decoder is not safe for concurrent use.
type Decoder struct {
	dec     *json.Decoder
	state   decoderState
	index   int
	crs     string
	lateCRS bool
	err     error
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &Decoder{dec: dec}
}

// CRS returns the coordinate reference system name declared by the document's
// "crs" member, or "" if none has been seen yet.
func (d *Decoder) CRS() string { return d.crs }

// LateCRS reports whether the "crs" member appeared after the features array.
func (d *Decoder) LateCRS() bool { return d.lateCRS }

// Index is the number of feature entries consumed so far.
func (d *Decoder) Index() int { return d.index }

// Next returns the next feature. It returns io.EOF after the last feature and
// the closing of the root object have been consumed.
func (d *Decoder) Next() (*records.Feature, error) {
	if d.err != nil {
		return nil, d.err
	}
	switch d.state {
	case stateStart:
		if err := d.openCollection(); err != nil {
			return nil, d.fail(err)
		}
		d.state = stateFeatures
		return d.Next()

	case stateFeatures:
		if !d.dec.More() {
			if err := d.closeCollection(); err != nil {
				return nil, d.fail(err)
			}
			d.state = stateDone
			return nil, io.EOF
		}
		var raw json.RawMessage
		if err := d.dec.Decode(&raw); err != nil {
			return nil, d.fail(malformed(fmt.Sprintf("decode feature %d", d.index), err))
		}
		idx := d.index
		d.index++
		return parseFeature(idx, raw)

	default:
		return nil, io.EOF
	}
}

func (d *Decoder) fail(err error) error {
	d.err = err
	d.state = stateDone
	return err
}

// openCollection consumes tokens up to and including the '[' that opens the
// features array.
func (d *Decoder) openCollection() error {
	tok, err := d.dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return malformed("empty document", nil)
		}
		return malformed("read first token", err)
	}
	if tok != json.Delim('{') {
		return malformed(fmt.Sprintf("root must be an object, got %v", tok), nil)
	}

	for d.dec.More() {
		key, err := d.readKey()
		if err != nil {
			return err
		}
		switch key {
		case "features":
			tok, err := d.dec.Token()
			if err != nil {
				return malformed("read features token", err)
			}
			if tok != json.Delim('[') {
				return malformed(fmt.Sprintf(`"features" must be an array, got %v`, tok), nil)
			}
			return nil
		default:
			if err := d.member(key, false); err != nil {
				return err
			}
		}
	}
	return malformed(`missing "features" array`, nil)
}

// closeCollection consumes the ']' of the features array, the remaining
// members of the root object, its '}' and verifies nothing follows.
func (d *Decoder) closeCollection() error {
	end, err := d.dec.Token()
	if err != nil {
		return malformed("read features end", err)
	}
	if end != json.Delim(']') {
		return malformed(fmt.Sprintf("expected ']' after features, got %v", end), nil)
	}

	for d.dec.More() {
		key, err := d.readKey()
		if err != nil {
			return err
		}
		if key == "features" {
			return malformed(`duplicate "features" member`, nil)
		}
		if err := d.member(key, true); err != nil {
			return err
		}
	}
	end, err = d.dec.Token()
	if err != nil {
		return malformed("read root end", err)
	}
	if end != json.Delim('}') {
		return malformed(fmt.Sprintf("expected '}', got %v", end), nil)
	}

	if tok, err := d.dec.Token(); err == nil {
		return malformed(fmt.Sprintf("trailing data after root object: %v", tok), nil)
	} else if !errors.Is(err, io.EOF) {
		return malformed("trailing data after root object", err)
	}
	return nil
}

func (d *Decoder) readKey() (string, error) {
	tok, err := d.dec.Token()
	if err != nil {
		return "", malformed("read member name", err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", malformed(fmt.Sprintf("member name not a string (got %T)", tok), nil)
	}
	return key, nil
}

// member handles one non-features member of the root object.
func (d *Decoder) member(key string, afterFeatures bool) error {
	switch key {
	case "type":
		tok, err := d.dec.Token()
		if err != nil {
			return malformed("read type", err)
		}
		if s, _ := tok.(string); s != "FeatureCollection" {
			if err := skipValueFromFirstToken(d.dec, tok); err != nil {
				return malformed("skip type", err)
			}
			return malformed(fmt.Sprintf(`root type must be "FeatureCollection", got %v`, tok), nil)
		}
		return nil

	case "crs":
		var raw json.RawMessage
		if err := d.dec.Decode(&raw); err != nil {
			return malformed("decode crs", err)
		}
		d.crs = crsName(raw)
		d.lateCRS = afterFeatures
		return nil

	default:
		if err := skipNextValue(d.dec); err != nil {
			return malformed(fmt.Sprintf("skip member %q", key), err)
		}
		return nil
	}
}

// crsName extracts the name of a legacy named CRS object:
//
//	{"type":"name","properties":{"name":"urn:ogc:def:crs:EPSG::3857"}}
func crsName(raw json.RawMessage) string {
	var crs struct {
		Type       string `json:"type"`
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(raw, &crs); err != nil {
		return ""
	}
	return crs.Properties.Name
}
