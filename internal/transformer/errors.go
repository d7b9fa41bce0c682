package transformer

import (
	"errors"
	"fmt"
)

// ErrEncoding reports a feature that cannot be turned into a row for the
// resolved schema. It is row-level: the feature is skipped, the run goes on.
var ErrEncoding = errors.New("encoding error")

// EncodingError names the column (or property) that failed.
type EncodingError struct {
	Column string
	Err    error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("column %q: %v", e.Column, e.Err)
}

func (e *EncodingError) Unwrap() []error { return []error{ErrEncoding, e.Err} }

func encodingErr(column string, format string, args ...any) error {
	return &EncodingError{Column: column, Err: fmt.Errorf(format, args...)}
}
