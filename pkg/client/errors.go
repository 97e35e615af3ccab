package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassInvalid represents requests that could not be built.
	ErrorClassInvalid ErrorClass = "invalid"
)

// classifyStatus maps an HTTP status code to an ErrorClass.
// Returns "" for non-error statuses.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == 429:
		return ErrorClassRateLimit
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// RequestError describes a failed fetch.
type RequestError struct {
	URL        string
	StatusCode int // 0 when no response was received
	ErrorClass ErrorClass
	Attempts   int
	Err        error

	transient bool
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	msg := fmt.Sprintf("GET %s: %s error", e.URL, e.ErrorClass)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure may succeed on retry.
func (e *RequestError) Transient() bool {
	return e.transient
}

// isTransient reports whether err carries a retryable failure.
func isTransient(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Transient()
}

// errorClassOf returns the class of the RequestError carried by err, if any.
func errorClassOf(err error) ErrorClass {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.ErrorClass
	}
	return ""
}
