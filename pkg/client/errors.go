package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of fetch errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 and 520 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport failures without a response.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTimeout represents a deadline that expired before a response.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassParse represents a response body in an unexpected shape.
	ErrorClassParse ErrorClass = "parse"

	// ErrorClassCanceled represents a fetch cancelled by its caller.
	ErrorClassCanceled ErrorClass = "canceled"

	// ErrorClassUnknown covers everything else.
	ErrorClassUnknown ErrorClass = "unknown"
)

// NetworkError is a transport failure (DNS, connection reset, offline).
type NetworkError struct {
	Page int
	Err  error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching page %d: %v", e.Page, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// TimeoutError is returned when the fetch deadline expires before a response.
type TimeoutError struct {
	Page    int
	Timeout time.Duration
	Err     error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s fetching page %d", e.Timeout, e.Page)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// HTTPStatusError is returned for any non-2xx response.
type HTTPStatusError struct {
	Page       int
	StatusCode int
	Status     string
}

// Error implements the error interface.
func (e *HTTPStatusError) Error() string {
	status := e.Status
	if status == "" {
		status = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("HTTP error fetching page %d (status %d): %s", e.Page, e.StatusCode, status)
}

// ParseError is returned when the response body is not in the expected shape.
type ParseError struct {
	Page int
	Err  error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error on page %d: %v", e.Page, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ClassOf categorizes an error for retry decisions and observability.
func ClassOf(err error) ErrorClass {
	if err == nil {
		return ""
	}

	var (
		timeoutErr *TimeoutError
		networkErr *NetworkError
		statusErr  *HTTPStatusError
		parseErr   *ParseError
	)

	switch {
	case errors.As(err, &timeoutErr):
		return ErrorClassTimeout
	case errors.As(err, &networkErr):
		return ErrorClassNetwork
	case errors.As(err, &statusErr):
		return classifyStatus(statusErr.StatusCode)
	case errors.As(err, &parseErr):
		return ErrorClassParse
	case errors.Is(err, context.Canceled), errors.Is(err, ErrContextCancelled):
		return ErrorClassCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorClassTimeout
	default:
		return ErrorClassUnknown
	}
}

func classifyStatus(code int) ErrorClass {
	switch {
	case code == http.StatusTooManyRequests, code == 520:
		return ErrorClassRateLimit
	case code >= 400 && code < 500:
		return ErrorClassClient
	case code >= 500:
		return ErrorClassServer
	default:
		return ErrorClassUnknown
	}
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork, ErrorClassTimeout:
		return true
	default:
		// 4xx, parse failures and cancellations fail the same way every time
		return false
	}
}

// Category is the user-facing classification of a failed fetch.
type Category string

const (
	// CategoryNetwork is shown for transport failures.
	CategoryNetwork Category = "network"

	// CategoryTimeout is shown when the deadline expired.
	CategoryTimeout Category = "timeout"

	// CategoryGeneric is shown for everything else.
	CategoryGeneric Category = "generic"
)

// Message returns the stable message shown to users for the category.
func (c Category) Message() string {
	switch c {
	case CategoryNetwork:
		return "network error, check connection"
	case CategoryTimeout:
		return "request timed out, try again"
	default:
		return "unexpected error"
	}
}

// CategoryOf maps an error to its user-facing category.
func CategoryOf(err error) Category {
	switch ClassOf(err) {
	case ErrorClassNetwork:
		return CategoryNetwork
	case ErrorClassTimeout:
		return CategoryTimeout
	default:
		return CategoryGeneric
	}
}
