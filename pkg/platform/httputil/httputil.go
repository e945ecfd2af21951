// Package httputil holds the JSON response helpers shared by every handler.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Code is a stable, machine-readable error identifier exposed to API
// consumers.
type Code string

const (
	CodeBadRequest  Code = "bad_request"
	CodeNotFound    Code = "not_found"
	CodeUnavailable Code = "unavailable"
	CodeInternal    Code = "internal_error"
)

// Error is a transport-level error with a stable code. Description is safe
// to show to callers; internal details never leave the process.
type Error struct {
	Code        Code
	Description string
}

func New(code Code, description string) *Error {
	return &Error{Code: code, Description: description}
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Description
}

func statusFor(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteError renders err as the standard JSON error envelope. Unrecognized
// errors become internal_error, and internal errors never leak their
// description.
func WriteError(w http.ResponseWriter, err error) {
	var he *Error
	if !errors.As(err, &he) {
		he = New(CodeInternal, "")
	}

	body := errorBody{Error: string(he.Code)}
	if he.Code != CodeInternal {
		body.Description = he.Description
	}
	WriteJSON(w, statusFor(he.Code), body)
}

// WriteJSON renders v with the given status. Encoding failures are
// unrecoverable at this point since the header is already written.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
