package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrRunNotFound     = errors.New("evaluation run not found")
	ErrEmptyCorpus     = errors.New("empty corpus")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrUnknownScorer   = errors.New("unknown scorer")
	ErrInternal        = errors.New("internal error")
	ErrTimeout         = errors.New("operation timed out")
)

// AppError pairs a sentinel with a client-facing message and status.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New wraps sentinel with a client-facing message.
func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

// Newf is New with a formatted message.
func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return New(sentinel, statusCode, fmt.Sprintf(format, args...))
}

// Configf reports a configuration inconsistency. These are fatal: they
// invalidate every score computed downstream.
func Configf(format string, args ...any) *AppError {
	return Newf(ErrInvalidConfig, http.StatusBadRequest, format, args...)
}

// statusBySentinel is consulted in order; the first sentinel err wraps wins.
var statusBySentinel = []struct {
	sentinel error
	status   int
}{
	{ErrProductNotFound, http.StatusNotFound},
	{ErrDatasetNotFound, http.StatusNotFound},
	{ErrRunNotFound, http.StatusNotFound},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrInvalidConfig, http.StatusBadRequest},
	{ErrUnknownScorer, http.StatusBadRequest},
	{ErrEmptyCorpus, http.StatusConflict},
	{ErrTimeout, http.StatusServiceUnavailable},
}

// HTTPStatusCode maps err to a response status. An AppError's own code
// takes precedence over the sentinel it wraps.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	for _, m := range statusBySentinel {
		if errors.Is(err, m.sentinel) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}
