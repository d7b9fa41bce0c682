package schema

import (
	"encoding/json"
	"math"
	"testing"
)

func TestWiden_Lattice(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a, b Kind
		want Kind
	}{
		{KindInteger, KindInteger, KindInteger},
		{KindInteger, KindFloat, KindFloat},
		{KindFloat, KindInteger, KindFloat},
		{KindUnknown, KindBoolean, KindBoolean},
		{KindJSON, KindUnknown, KindJSON},
		{KindBoolean, KindInteger, KindText},
		{KindTimestamp, KindText, KindText},
		{KindTimestamp, KindInteger, KindText},
		{KindJSON, KindFloat, KindText},
		{KindText, KindFloat, KindText},
	}
	for _, tt := range tests {
		if got := Widen(tt.a, tt.b); got != tt.want {
			t.Fatalf("Widen(%s, %s)=%s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestWiden_OrderIndependent(t *testing.T) {
	t.Parallel()
	kinds := []Kind{KindUnknown, KindBoolean, KindInteger, KindFloat, KindTimestamp, KindJSON, KindText}
	for _, a := range kinds {
		for _, b := range kinds {
			if Widen(a, b) != Widen(b, a) {
				t.Fatalf("Widen(%s, %s) != Widen(%s, %s)", a, b, b, a)
			}
			for _, c := range kinds {
				if Widen(Widen(a, b), c) != Widen(a, Widen(b, c)) {
					t.Fatalf("Widen not associative for %s %s %s", a, b, c)
				}
			}
		}
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   any
		want Kind
	}{
		{nil, KindUnknown},
		{true, KindBoolean},
		{json.Number("12"), KindInteger},
		{json.Number("-3"), KindInteger},
		{json.Number("1.5"), KindFloat},
		{json.Number("1e3"), KindFloat},
		{json.Number("123456789012345678901234"), KindFloat},
		{"hello", KindText},
		{"2024-03-01", KindTimestamp},
		{"2024-03-01T10:00:00Z", KindTimestamp},
		{"2024-13-01", KindText},
		{map[string]any{"a": 1}, KindJSON},
		{[]any{1, 2}, KindJSON},
	}
	for _, tt := range tests {
		if got := KindOf(tt.in); got != tt.want {
			t.Fatalf("KindOf(%#v)=%s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestAccepts(t *testing.T) {
	t.Parallel()
	if !Accepts(KindFloat, KindInteger) {
		t.Fatalf("float should accept integer")
	}
	if Accepts(KindInteger, KindFloat) {
		t.Fatalf("integer should not accept float")
	}
	if !Accepts(KindText, KindJSON) {
		t.Fatalf("text should accept json")
	}
	if !Accepts(KindBoolean, KindUnknown) {
		t.Fatalf("any column should accept all-null input")
	}
	if Accepts(KindTimestamp, KindText) {
		t.Fatalf("timestamp should not accept text")
	}
}

func TestKind_TextRoundTrip(t *testing.T) {
	t.Parallel()
	var k Kind
	if err := k.UnmarshalText([]byte("Float")); err != nil || k != KindFloat {
		t.Fatalf("UnmarshalText(Float)=%s err=%v, want float", k, err)
	}
	if err := k.UnmarshalText([]byte("decimal")); err == nil {
		t.Fatalf("UnmarshalText(decimal) err=nil, want error")
	}
}

func TestParseFloat_RejectsNonFinite(t *testing.T) {
	t.Parallel()
	if _, err := ParseFloat(json.Number("1e999")); err == nil {
		t.Fatalf("ParseFloat(1e999) err=nil, want error")
	}
	if f, err := ParseFloat(json.Number("2.5")); err != nil || f != 2.5 {
		t.Fatalf("ParseFloat(2.5)=%v err=%v", f, err)
	}
}

func TestIntRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bits   int
		lo, hi int64
	}{
		{8, 0, 255},
		{16, math.MinInt16, math.MaxInt16},
		{32, math.MinInt32, math.MaxInt32},
		{0, math.MinInt64, math.MaxInt64},
	}
	for _, tt := range tests {
		if lo, hi := IntRange(tt.bits); lo != tt.lo || hi != tt.hi {
			t.Fatalf("IntRange(%d)=%d,%d, want %d,%d", tt.bits, lo, hi, tt.lo, tt.hi)
		}
	}
}
