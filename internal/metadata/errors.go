package metadata

import (
	"errors"
	"fmt"
)

// ErrInvalid is wrapped by every configuration error.
var ErrInvalid = errors.New("invalid metadata")

// ConfigError reports a malformed or self-inconsistent metadata definition.
// Where is a dotted path to the offending element, e.g. "TestLogger/Hourly".
type ConfigError struct {
	Where string
	Msg   string
	Err   error
}

func (e *ConfigError) Error() string {
	msg := e.Msg
	if e.Where != "" {
		msg = e.Where + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "metadata: " + msg
}

func (e *ConfigError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalid, e.Err}
	}
	return []error{ErrInvalid}
}

func configErrorf(where, format string, args ...any) error {
	return &ConfigError{Where: where, Msg: fmt.Sprintf(format, args...)}
}

func wrapConfigError(where string, err error, format string, args ...any) error {
	return &ConfigError{Where: where, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Warning is a non-fatal problem found during validation.
type Warning struct {
	Where string
	Msg   string
}

func (w Warning) String() string {
	if w.Where == "" {
		return w.Msg
	}
	return w.Where + ": " + w.Msg
}
