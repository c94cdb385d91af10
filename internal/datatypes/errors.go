package datatypes

import (
	"errors"
	"fmt"
)

// ErrConversion is the sentinel wrapped by every conversion failure.
var ErrConversion = errors.New("conversion failed")

var errBadTimestamp = errors.New("malformed timestamp")

// ConversionError reports a value that could not be converted to a type.
type ConversionError struct {
	Type  Type
	Value string
	Err   error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot convert %q to %s: %v", e.Value, e.Type, e.Err)
	}
	return fmt.Sprintf("cannot convert %q to %s", e.Value, e.Type)
}

func (e *ConversionError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConversion, e.Err}
	}
	return []error{ErrConversion}
}
