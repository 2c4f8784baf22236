// Package apierr is the chat handler's error taxonomy: each Kind maps to an
// HTTP status and a wire code for the pre-stream JSON error body
// ({detail, code}), mirroring how internal/agent/providers classifies
// upstream failures.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes a chat-handler failure.
type Kind string

const (
	InvalidRequest    Kind = "invalid_request"
	InvalidMessage    Kind = "invalid_message"
	AuthFailure       Kind = "auth_failure"
	UpstreamTransient Kind = "upstream_transient"
	UpstreamFatal     Kind = "upstream_fatal"
	ToolFailure       Kind = "tool_failure"
	ParseFailure      Kind = "parse_failure"
	Timeout           Kind = "timeout"
)

// Status returns the HTTP status to use if this error occurs before the SSE
// response has opened.
func (k Kind) Status() int {
	switch k {
	case InvalidRequest, InvalidMessage:
		return http.StatusUnprocessableEntity
	case AuthFailure:
		return http.StatusUnauthorized
	case UpstreamTransient:
		return http.StatusServiceUnavailable
	case UpstreamFatal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a structured chat-handler failure. It carries enough context to
// render either a pre-stream JSON error body ({detail, code}) or an
// in-band StreamEvent error string.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Cause.Error())
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error with the given kind, wrapping cause. If message is
// empty, Error() reports the kind followed by cause's text.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, otherwise
// the zero Kind.
func KindOf(err error) Kind {
	if apiErr, ok := As(err); ok {
		return apiErr.Kind
	}
	return ""
}
