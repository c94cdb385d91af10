package web

// errors.go turns errors into JSON responses.
//
// The technical error is logged with the request id; the client gets the
// user message from importer.MapError, so messages and codes are the same
// as in import results and CLI output.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/loggerimport/internal/importer"
	"github.com/JonMunkholm/loggerimport/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

func newErrorResponse(msg importer.UserMessage) ErrorResponse {
	return ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
}

// respondError logs err and writes its user message. A statusCode of 0
// derives the status from err.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	if statusCode == 0 {
		statusCode = statusFor(err)
	}
	userMsg := importer.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	writeJSONStatus(w, statusCode, newErrorResponse(userMsg))
}

// respondNotFound writes a 404 for a missing API object.
func respondNotFound(w http.ResponseWriter, what string) {
	writeJSONStatus(w, http.StatusNotFound, ErrorResponse{
		Error:   what + " not found",
		Message: what + " not found",
		Action:  "Check the name against GET /api/loggers",
		Code:    "HTTP404",
	})
}

// statusFor maps import errors to HTTP status codes.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, importer.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, importer.ErrFileTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, importer.ErrUnsupportedFile), errors.Is(err, importer.ErrEmptyFile):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, importer.ErrCSVNotImplemented):
		return http.StatusNotImplemented
	default:
		return http.StatusUnprocessableEntity
	}
}
