package importer

// # Error Codes Reference
//
// MapError turns import errors into short messages with a support code.
// Codes are grouped by the stage that failed:
//
// # Metadata (MD001-MD099)
//
//	MD001 - Invalid metadata: a logger description failed validation
//	        Action: Fix the metadata file named in the error and reload
//
// # Resolution (RES001-RES099)
//
//	RES001 - Unknown logger: no metadata matches the file's environment line
//	RES002 - Ambiguous logger: more than one metadata matches
//	RES003 - Unknown table: the logger has no table of that name
//	RES004 - Unknown column layout: no variant of the table has these headers
//
// # Records (REC001-REC099)
//
//	REC001 - Bad TOA5 header
//	REC002 - Bad row: wrong column count or broken CSV quoting
//	REC003 - Record already converted
//
// # Types (TYP001-TYP099)
//
//	TYP001 - Untyped column in strict mode
//	TYP002 - Value does not match the column type
//	TYP003 - Value could not be converted
//
// # Files (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Encoding error
//	FILE003 - Unsupported file type
//	FILE004 - CSV import not implemented
//	FILE005 - Empty file
//	FILE006 - No file provided
//
// # Import (IMP001-IMP099)
//
//	IMP001 - Too many imports in progress
//	IMP002 - Request cancelled
//	IMP003 - Request timed out
//
// # Default (ERR000)
//
//	ERR000 - Unknown error; check the server log for the technical error.
//
// Matchers are tried in order and the first match wins. Row and header
// errors wrap the read error that caused them, so file and import errors
// are matched first. TypeError wraps both record.ErrType and its cause, so
// the untyped-column matcher precedes the generic type matcher.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/loggerimport/internal/datatypes"
	"github.com/JonMunkholm/loggerimport/internal/metadata"
	"github.com/JonMunkholm/loggerimport/internal/record"
	"github.com/JonMunkholm/loggerimport/internal/toa5"
)

// UserMessage is a short explanation of an error with a suggested action.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorMatcher struct {
	match func(error) bool
	msg   UserMessage
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func as[T error]() func(error) bool {
	return func(err error) bool {
		var t T
		return errors.As(err, &t)
	}
}

func contains(pattern string) func(error) bool {
	return func(err error) bool { return strings.Contains(strings.ToLower(err.Error()), pattern) }
}

var errorMatchers = []errorMatcher{
	// Files
	{
		match: is(ErrFileTooLarge),
		msg: UserMessage{
			Message: "File exceeds the maximum size",
			Action:  "Split the file or raise IMPORT_MAX_FILE_SIZE",
			Code:    "FILE001",
		},
	},
	{
		match: is(ErrEncoding),
		msg: UserMessage{
			Message: "File contains characters invalid in the configured encoding",
			Action:  "Set IMPORT_ENCODING to match the logger's output",
			Code:    "FILE002",
		},
	},
	{
		match: is(ErrUnsupportedFile),
		msg: UserMessage{
			Message: "Unsupported file type",
			Action:  "Import TOA5 .dat files",
			Code:    "FILE003",
		},
	},
	{
		match: is(ErrCSVNotImplemented),
		msg: UserMessage{
			Message: "CSV files are recognized but cannot be imported yet",
			Action:  "Export the data as TOA5",
			Code:    "FILE004",
		},
	},
	{
		match: is(ErrEmptyFile),
		msg: UserMessage{
			Message: "The file is empty",
			Action:  "Upload a file with a header and data rows",
			Code:    "FILE005",
		},
	},
	{
		match: contains("no file provided"),
		msg: UserMessage{
			Message: "No file was provided",
			Action:  "Send the file as the request body",
			Code:    "FILE006",
		},
	},

	// Import
	{
		match: is(ErrTooManyImports),
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP001",
		},
	},
	{
		match: is(context.Canceled),
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP002",
		},
	},
	{
		match: is(context.DeadlineExceeded),
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "IMP003",
		},
	},

	// Metadata
	{
		match: is(metadata.ErrInvalid),
		msg: UserMessage{
			Message: "Logger metadata is invalid",
			Action:  "Fix the metadata file named in the error and reload",
			Code:    "MD001",
		},
	},

	// Resolution
	{
		match: as[*toa5.NoMetadataMatchError](),
		msg: UserMessage{
			Message: "No logger metadata matches this file",
			Action:  "Check the station name, model and serial in the file's first line",
			Code:    "RES001",
		},
	},
	{
		match: is(toa5.ErrAmbiguousMetadata),
		msg: UserMessage{
			Message: "More than one logger matches this file",
			Action:  "Make the environment matches of the loggers distinct",
			Code:    "RES002",
		},
	},
	{
		match: as[*toa5.NoTableMatchError](),
		msg: UserMessage{
			Message: "The logger has no table of this name",
			Action:  "Add the table to the metadata or list it under ignore_tables",
			Code:    "RES003",
		},
	},
	{
		match: as[*toa5.NoVariantMatchError](),
		msg: UserMessage{
			Message: "The file's columns match no known variant of the table",
			Action:  "Register the new column layout as a variant",
			Code:    "RES004",
		},
	},

	// Records
	{
		match: is(toa5.ErrHeader),
		msg: UserMessage{
			Message: "The TOA5 header is malformed",
			Action:  "Check that the file has the four TOA5 header lines",
			Code:    "REC001",
		},
	},
	{
		match: is(record.ErrRecord),
		msg: UserMessage{
			Message: "A data row is malformed",
			Action:  "Check the row named in the error for missing or extra columns",
			Code:    "REC002",
		},
	},
	{
		match: is(record.ErrConverted),
		msg: UserMessage{
			Message: "The record was already converted",
			Action:  "Check the original record instead",
			Code:    "REC003",
		},
	},

	// Types
	{
		match: is(record.ErrUntyped),
		msg: UserMessage{
			Message: "A column has no declared type",
			Action:  "Add a type to the column or disable strict type checking",
			Code:    "TYP001",
		},
	},
	{
		match: is(record.ErrType),
		msg: UserMessage{
			Message: "A value does not match its column type",
			Action:  "Check the value named in the error or widen the column type",
			Code:    "TYP002",
		},
	},
	{
		match: is(datatypes.ErrConversion),
		msg: UserMessage{
			Message: "A value could not be converted",
			Action:  "Check the value named in the error",
			Code:    "TYP003",
		},
	},
	{
		match: is(datatypes.ErrInferenceFailed),
		msg: UserMessage{
			Message: "No data type accepts all of the values",
			Action:  "Check the values for mixed content such as text in a numeric column",
			Code:    "TYP004",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError returns the message for the first matcher that recognizes err,
// ERR000 for unknown errors, or the zero UserMessage for nil.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	for _, m := range errorMatchers {
		if m.match(err) {
			return m.msg
		}
	}
	return defaultMessage
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string { return e.User.Message }

func (e *UserError) Unwrap() error { return e.Technical }

// NewUserError maps err, or returns nil for a nil err.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
