// Package schema infers a destination table layout from streamed features and
// checks it against tables that already exist.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the logical column type shared by every storage backend.
type Kind int

const (
	KindUnknown Kind = iota
	KindBoolean
	KindInteger
	KindFloat
	KindTimestamp
	KindJSON
	KindText
	KindGeometry
)

var kindNames = [...]string{
	KindUnknown:   "unknown",
	KindBoolean:   "boolean",
	KindInteger:   "integer",
	KindFloat:     "float",
	KindTimestamp: "timestamp",
	KindJSON:      "json",
	KindText:      "text",
	KindGeometry:  "geometry",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// MarshalText renders the kind name for YAML/JSON schema output.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText parses a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for i, name := range kindNames {
		if name == s {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("schema: unknown kind %q", s)
}

// Widen returns the narrowest kind able to hold values of both a and b.
//
// The lattice is integer → float → text. Boolean, timestamp and json only
// combine with themselves; any other mix widens to text. Unknown (a null or
// absent value) is the identity. Widen is commutative and associative, so
// the inferred kind does not depend on record order.
func Widen(a, b Kind) Kind {
	switch {
	case a == b:
		return a
	case a == KindUnknown:
		return b
	case b == KindUnknown:
		return a
	case (a == KindInteger && b == KindFloat) || (a == KindFloat && b == KindInteger):
		return KindFloat
	default:
		return KindText
	}
}

// Accepts reports whether a column declared as declared can store values
// inferred as value without loss.
func Accepts(declared, value Kind) bool {
	switch {
	case value == KindUnknown, declared == value, declared == KindText:
		return true
	case declared == KindFloat && value == KindInteger:
		return true
	default:
		return false
	}
}

// KindOf classifies one decoded property value.
func KindOf(v any) Kind {
	switch t := v.(type) {
	case nil:
		return KindUnknown
	case bool:
		return KindBoolean
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return KindInteger
		}
		return KindFloat
	case float32, float64:
		return KindFloat
	case int, int32, int64:
		return KindInteger
	case string:
		if _, ok := ParseTimestamp(t); ok {
			return KindTimestamp
		}
		return KindText
	case map[string]any, []any:
		return KindJSON
	default:
		return KindText
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 timestamps and plain dates. Values without
// a zone are taken as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	// Cheap reject before trying layouts: every accepted form starts with YYYY-.
	if len(s) < 10 || s[4] != '-' || s[0] < '0' || s[0] > '9' {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseFloat parses a JSON number and rejects values that do not fit a
// finite float64.
func ParseFloat(n json.Number) (float64, error) {
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("number %s is not finite", n)
	}
	return f, nil
}
