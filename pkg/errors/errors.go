package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies upstream failures
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

var (
	// ErrQuotaExceeded is matched by every QuotaError via errors.Is
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrNotFound is returned by stores for missing rows
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned by stores when a unique key already exists
	ErrDuplicate = errors.New("already exists")
)

// QuotaError reports a refused spend against a monthly quota dimension
type QuotaError struct {
	Dimension string
	Month     string
	Used      int
	Ceiling   int
	Requested int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s quota exceeded for %s: used %d of %d, requested %d",
		e.Dimension, e.Month, e.Used, e.Ceiling, e.Requested)
}

// Is makes errors.Is(err, ErrQuotaExceeded) true for quota errors
func (e *QuotaError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// UpstreamError is a non-success response (or a transport failure) from the source API
type UpstreamError struct {
	Type    ErrorType
	Status  int
	Body    string
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s error: %s", e.Type, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s error (status %d): %s", e.Type, e.Status, e.Message)
	}
	return fmt.Sprintf("%s error (status %d): %s", e.Type, e.Status, e.Body)
}

// Retryable reports whether repeating the request might succeed
func (e *UpstreamError) Retryable() bool {
	return IsRetryable(e.Type)
}

// Responded reports whether the upstream produced an HTTP response.
// Requests that got a response count against the source quota.
func (e *UpstreamError) Responded() bool {
	return e.Status != 0
}

// NewUpstreamError maps an HTTP status to a typed upstream error
func NewUpstreamError(status int, body string) *UpstreamError {
	return &UpstreamError{
		Type:   TypeForStatus(status),
		Status: status,
		Body:   body,
	}
}

// NewNetworkError wraps a transport failure that produced no response
func NewNetworkError(err error) *UpstreamError {
	return &UpstreamError{
		Type:    ErrorTypeNetwork,
		Message: err.Error(),
	}
}

// TypeForStatus maps an HTTP status code to an ErrorType
func TypeForStatus(status int) ErrorType {
	switch {
	case status == 0:
		return ErrorTypeNetwork
	case status == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorTypeAuth
	case status == http.StatusNotFound:
		return ErrorTypeNotFound
	case status >= 500:
		return ErrorTypeServerError
	default:
		return ErrorTypeUnknown
	}
}

// ClassificationError is a failed or malformed classification call.
// Callers degrade it to a non-match instead of aborting.
type ClassificationError struct {
	Reason string
	Err    error
}

func (e *ClassificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classification failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("classification failed: %s", e.Reason)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsQuotaExceeded reports whether err is (or wraps) a quota refusal
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// AsUpstream extracts an UpstreamError from an error chain
func AsUpstream(err error) (*UpstreamError, bool) {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream, true
	}
	return nil, false
}
