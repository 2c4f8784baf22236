package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// RetryReason categorizes why an upstream completion call failed, so
// chatagent's retry loop (§4.8) knows whether trying again can help.
// chatcore always talks to the single configured provider — there is no
// multi-provider failover here, only retry-or-surface-the-error.
type RetryReason string

const (
	// RetryRateLimit indicates rate limiting (HTTP 429).
	RetryRateLimit RetryReason = "rate_limit"

	// RetryAuth indicates authentication failure (HTTP 401, 403).
	RetryAuth RetryReason = "auth"

	// RetryTimeout indicates the request timed out.
	RetryTimeout RetryReason = "timeout"

	// RetryServerError indicates a server-side issue (HTTP 5xx).
	RetryServerError RetryReason = "server_error"

	// RetryInvalidRequest indicates a client-side issue (HTTP 400).
	RetryInvalidRequest RetryReason = "invalid_request"

	// RetryUnknown indicates an unclassified error.
	RetryUnknown RetryReason = "unknown"
)

// IsRetryable reports whether the reason suggests retrying may succeed.
func (r RetryReason) IsRetryable() bool {
	switch r {
	case RetryRateLimit, RetryTimeout, RetryServerError:
		return true
	default:
		return false
	}
}

// ProviderError is a structured error from an upstream provider, carrying
// enough context for retry decisions and debugging.
type ProviderError struct {
	Reason    RetryReason
	Provider  string
	Model     string
	Status    int
	Code      string
	Message   string
	RequestID string
	Cause     error
}

func (e *ProviderError) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s]", e.Reason))

	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, " ")
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError wraps cause, classifying it from its message text.
func NewProviderError(provider, model string, cause error) *ProviderError {
	err := &ProviderError{
		Provider: provider,
		Model:    model,
		Cause:    cause,
		Reason:   RetryUnknown,
	}
	if cause != nil {
		err.Message = cause.Error()
		err.Reason = ClassifyError(cause)
	}
	return err
}

// WithStatus adds the HTTP status and reclassifies from it.
func (e *ProviderError) WithStatus(status int) *ProviderError {
	e.Status = status
	e.Reason = classifyStatusCode(status)
	return e
}

// WithCode adds a provider-specific error code and reclassifies if known.
func (e *ProviderError) WithCode(code string) *ProviderError {
	e.Code = code
	if reason := classifyErrorCode(code); reason != RetryUnknown {
		e.Reason = reason
	}
	return e
}

// WithRequestID adds the provider's request ID.
func (e *ProviderError) WithRequestID(id string) *ProviderError {
	e.RequestID = id
	return e
}

// ClassifyError inspects an error's text and returns its RetryReason.
func ClassifyError(err error) RetryReason {
	if err == nil {
		return RetryUnknown
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "timeout"),
		strings.Contains(errStr, "deadline exceeded"),
		strings.Contains(errStr, "context deadline"),
		strings.Contains(errStr, "etimedout"):
		return RetryTimeout

	case strings.Contains(errStr, "rate limit"),
		strings.Contains(errStr, "rate_limit"),
		strings.Contains(errStr, "too many requests"),
		strings.Contains(errStr, "429"):
		return RetryRateLimit

	case strings.Contains(errStr, "unauthorized"),
		strings.Contains(errStr, "invalid api key"),
		strings.Contains(errStr, "invalid_api_key"),
		strings.Contains(errStr, "authentication"),
		strings.Contains(errStr, "401"),
		strings.Contains(errStr, "403"):
		return RetryAuth

	case strings.Contains(errStr, "internal server"),
		strings.Contains(errStr, "server error"),
		strings.Contains(errStr, "500"),
		strings.Contains(errStr, "502"),
		strings.Contains(errStr, "503"),
		strings.Contains(errStr, "504"):
		return RetryServerError

	default:
		return RetryUnknown
	}
}

func classifyStatusCode(status int) RetryReason {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return RetryAuth
	case status == http.StatusTooManyRequests:
		return RetryRateLimit
	case status == http.StatusBadRequest:
		return RetryInvalidRequest
	case status >= 500:
		return RetryServerError
	default:
		return RetryUnknown
	}
}

func classifyErrorCode(code string) RetryReason {
	switch strings.ToLower(code) {
	case "rate_limit_error", "rate_limit_exceeded":
		return RetryRateLimit
	case "authentication_error", "invalid_api_key":
		return RetryAuth
	case "server_error", "internal_error":
		return RetryServerError
	case "invalid_request_error":
		return RetryInvalidRequest
	default:
		return RetryUnknown
	}
}

// GetProviderError extracts a *ProviderError from err's chain, if present.
func GetProviderError(err error) (*ProviderError, bool) {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr, true
	}
	return nil, false
}

// IsRetryable reports whether chatagent's retry loop (§4.8) should retry
// err rather than surface it to the client.
func IsRetryable(err error) bool {
	if providerErr, ok := GetProviderError(err); ok {
		return providerErr.Reason.IsRetryable()
	}
	return ClassifyError(err).IsRetryable()
}
