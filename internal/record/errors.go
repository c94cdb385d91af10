package record

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/loggerimport/internal/datatypes"
	"github.com/JonMunkholm/loggerimport/internal/metadata"
)

var (
	// ErrRecord is wrapped by errors that abort reading the current file.
	ErrRecord = errors.New("record error")

	// ErrType is wrapped by every TypeError.
	ErrType = errors.New("type error")

	// ErrConverted is returned when a tz-converted record is type checked
	// or converted a second time.
	ErrConverted = errors.New("record is already tz-converted")

	// ErrUnknownColumn is returned by lookups of undefined columns.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrUntyped is returned when a typed operation meets a column without
	// a declared type.
	ErrUntyped = errors.New("column has no type")
)

// RowError reports a row that cannot be mapped onto its table, such as a
// column count mismatch or broken CSV framing.
type RowError struct {
	Source string
	Msg    string
	Err    error
}

func (e *RowError) Error() string {
	msg := e.Msg
	if e.Source != "" {
		msg += " (" + e.Source + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RowError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRecord, e.Err}
	}
	return []error{ErrRecord}
}

// TypeError reports a value that does not match its column's declared type.
type TypeError struct {
	Column metadata.ColumnHeader
	Type   datatypes.Type
	Value  string
	Source string
	Err    error
}

func (e *TypeError) Error() string {
	var msg string
	if e.Type.IsZero() {
		msg = fmt.Sprintf("column %s: value %q has no declared type", e.Column, e.Value)
	} else {
		msg = fmt.Sprintf("column %s: value %q does not match %s", e.Column, e.Value, e.Type)
	}
	if e.Source != "" {
		msg += " (" + e.Source + ")"
	}
	if e.Err != nil && e.Err != ErrUntyped {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TypeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrType, e.Err}
	}
	return []error{ErrType}
}
