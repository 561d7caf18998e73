package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies provider failures for retry and HTTP-status mapping.
type ErrorKind string

const (
	KindRateLimit  ErrorKind = "rate_limit"
	KindConnection ErrorKind = "connection"
	KindTimeout    ErrorKind = "upstream_timeout"
	KindAuth       ErrorKind = "auth"
	KindValidation ErrorKind = "validation"
	KindAPIError   ErrorKind = "api_error"
	KindCostLimit  ErrorKind = "cost_limit"
	KindOther      ErrorKind = "other"
)

// Error is a classified provider error.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("llm %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("llm %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with the given kind.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// errorf creates a classified error with a formatted message.
func errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from err, classifying unknown errors
// by their transport characteristics.
func KindOf(err error) ErrorKind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindOther
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeout
		}
		return KindConnection
	}
	return KindOther
}

// Retryable reports whether a call failing with err is worth retrying.
// Rate-limit and connection errors are transient; auth and validation
// errors will fail the same way every time.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimit, KindConnection:
		return true
	default:
		return false
	}
}

// kindForStatus maps an upstream HTTP status to an ErrorKind.
func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindAPIError
	default:
		return KindOther
	}
}
