package geojson

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput reports a document that is not a usable feature
	// collection. It is fatal: no further features can be read.
	ErrMalformedInput = errors.New("geojson: malformed input")

	// ErrInvalidFeature reports a single entry of the features array that is
	// not a valid feature. The decoder stays usable after it.
	ErrInvalidFeature = errors.New("geojson: invalid feature")
)

// FeatureError attributes an invalid feature to its position in the
// features array.
type FeatureError struct {
	Index int
	Err   error
}

func (e *FeatureError) Error() string {
	return fmt.Sprintf("feature %d: %v", e.Index, e.Err)
}

// Unwrap lets errors.Is match both ErrInvalidFeature and the underlying cause.
func (e *FeatureError) Unwrap() []error {
	return []error{ErrInvalidFeature, e.Err}
}

func malformed(what string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrMalformedInput, what)
	}
	return fmt.Errorf("%w: %s: %w", ErrMalformedInput, what, err)
}

func invalid(index int, format string, args ...any) error {
	return &FeatureError{Index: index, Err: fmt.Errorf(format, args...)}
}
