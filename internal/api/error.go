// Package api provides the authenticated HTTP transport for the admin
// console core: bearer credential injection, typed error classification,
// single-flight session refresh with exactly-once replay, circuit
// breaking, and outbound rate limiting.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error is the typed error every transport failure is normalized into.
// Raw network failures never cross the package boundary.
type Error struct {
	Message    string
	HTTPStatus int
	Code       string
	Details    map[string]any

	// ShouldRetry marks the internal "session refreshed, replay the
	// call" signal. It is consumed inside the transport and never
	// surfaced to callers.
	ShouldRetry bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d [%s]: %s", e.HTTPStatus, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.HTTPStatus, e.Message)
}

// IsAuth reports whether the error is a terminal authentication failure.
func (e *Error) IsAuth() bool {
	return e.HTTPStatus == http.StatusUnauthorized && !e.ShouldRetry
}

// statusMessages are the fallback texts used when the response body
// carries no parseable error envelope.
var statusMessages = map[int]string{
	http.StatusBadRequest:          "The request was invalid.",
	http.StatusUnauthorized:        "Your session has expired. Please sign in again.",
	http.StatusForbidden:           "You do not have permission to perform this action.",
	http.StatusNotFound:            "The requested resource was not found.",
	http.StatusConflict:            "The resource was modified by someone else. Please reload and try again.",
	http.StatusUnprocessableEntity: "The submitted data failed validation.",
	http.StatusTooManyRequests:     "Too many requests. Please slow down and try again.",
	http.StatusInternalServerError: "An unexpected server error occurred.",
	http.StatusBadGateway:          "The server is temporarily unavailable.",
	http.StatusServiceUnavailable:  "The service is temporarily unavailable. Please try again shortly.",
}

// StatusMessage returns the fixed human-readable message for an HTTP status.
func StatusMessage(status int) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return fmt.Sprintf("Request failed with status %d.", status)
}

// errorEnvelope is the structured error body returned by the admin API.
// Field-level errors take precedence over the top-level message.
type errorEnvelope struct {
	Message string              `json:"message"`
	Code    string              `json:"code"`
	Errors  map[string][]string `json:"errors"`
}

// ParseError classifies an HTTP failure response into a typed *Error.
// The body is parsed for a structured envelope; the first field message
// wins, then the top-level message, then the static status fallback.
func ParseError(status int, body []byte) *Error {
	apiErr := &Error{
		HTTPStatus: status,
		Message:    StatusMessage(status),
	}

	if len(body) == 0 {
		return apiErr
	}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return apiErr
	}

	apiErr.Code = env.Code

	if len(env.Errors) > 0 {
		apiErr.Details = make(map[string]any, len(env.Errors))
		for field, msgs := range env.Errors {
			apiErr.Details[field] = msgs
		}
		if msg := firstFieldMessage(env.Errors); msg != "" {
			apiErr.Message = msg
			return apiErr
		}
	}
	if env.Message != "" {
		apiErr.Message = env.Message
	}
	return apiErr
}

// firstFieldMessage extracts the first message from a field-error map.
// Map iteration order is unspecified, so pick deterministically by the
// lexicographically smallest field name.
func firstFieldMessage(errs map[string][]string) string {
	first := ""
	for field := range errs {
		if first == "" || field < first {
			first = field
		}
	}
	for _, msg := range errs[first] {
		if msg != "" {
			return msg
		}
	}
	return ""
}

// terminalAuthError is the fail-fast error returned after the session
// has been cleared by a failed refresh.
func terminalAuthError() *Error {
	return &Error{
		HTTPStatus: http.StatusUnauthorized,
		Message:    StatusMessage(http.StatusUnauthorized),
		Code:       "SESSION_EXPIRED",
	}
}

// retrySignal is the internal replay marker raised after a successful
// refresh. Consumed by Client.Do, never returned to callers.
func retrySignal() *Error {
	return &Error{
		HTTPStatus:  http.StatusUnauthorized,
		Message:     "session refreshed, replaying request",
		ShouldRetry: true,
	}
}

// unavailableError converts a circuit-breaker rejection into the typed taxonomy.
func unavailableError(reason string) *Error {
	return &Error{
		HTTPStatus: http.StatusServiceUnavailable,
		Message:    StatusMessage(http.StatusServiceUnavailable),
		Code:       "CIRCUIT_OPEN",
		Details:    map[string]any{"reason": reason},
	}
}
