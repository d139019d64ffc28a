// Package response provides shared JSON response helpers for HTTP handlers.
package response

import (
	"encoding/json"
	"net/http"
)

// Error codes reported to callers. They follow the callable-function
// vocabulary so clients can switch on them without parsing messages.
const (
	CodeInvalidArgument = "invalid-argument"
	CodeUnauthenticated = "unauthenticated"
	CodeNotFound        = "not-found"
	CodeInternal        = "internal"
)

// Envelope is the standard API response envelope.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed call.
type ErrorBody struct {
	Code    string `json:"code"    example:"invalid-argument"`
	Message string `json:"message" example:"Missing 'file' argument."`
}

// JSON writes a JSON-encoded payload with the given HTTP status code.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// OK writes a 200 response with data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// Error writes an error response with the given status, code and message.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, Envelope{Success: false, Error: &ErrorBody{Code: code, Message: message}})
}

// InvalidArgument writes a 400 response.
func InvalidArgument(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, CodeInvalidArgument, message)
}

// Unauthenticated writes a 401 response.
func Unauthenticated(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, CodeUnauthenticated, message)
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, CodeNotFound, message)
}

// InternalError writes a 500 response with a generic message.
func InternalError(w http.ResponseWriter) {
	Error(w, http.StatusInternalServerError, CodeInternal, "An internal error occurred.")
}
