package common

import (
	"context"
	"errors"
	"fmt"
)

// Machine-readable codes recorded on a failed job. The job's status text is
// derived separately so callers can localize without exposing these.
const (
	CodeInvalidRequest    = "invalid_request"
	CodeAlreadyRunning    = "already_running"
	CodeAuthFailed        = "auth_failed"
	CodeRateLimited       = "rate_limited"
	CodeUpstreamError     = "upstream_error"
	CodeTimeout           = "timeout"
	CodeExtractionFailed  = "extraction_failed"
	CodeTranslationFailed = "translation_failed"
	CodeGenerationFailed  = "generation_failed"
	CodeStorageError      = "storage_error"
	CodeInternal          = "internal_error"
)

// AppError carries a stable code alongside a human-readable message.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Common sentinel errors.
var (
	// ErrAlreadyRunning is returned by Start while a non-terminal job exists.
	ErrAlreadyRunning = errors.New("a job is already running")
	// ErrCancelled marks cooperative cancellation. It is a terminal outcome,
	// not a failure; no error code is recorded for it.
	ErrCancelled = errors.New("job cancelled")
	// ErrNoActiveJob is returned by operations that need a live job.
	ErrNoActiveJob = errors.New("no active job")
	// ErrTransient marks failures worth retrying even without an HTTP status.
	ErrTransient = errors.New("transient failure")
	// ErrNoContent marks an extraction that produced zero content items.
	ErrNoContent = errors.New("no content extracted")
)

// ExtractionError wraps failures from the DOM extraction path. Any
// ExtractionError while using cached selectors invalidates the cache entry.
type ExtractionError struct {
	Reason string
	Cause  error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Cause)
	}
	return "extraction failed: " + e.Reason
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// statusCoder matches errors that carry an upstream HTTP status without this
// package importing the producer.
type statusCoder interface {
	HTTPStatus() int
}

// WrapError annotates err while keeping the chain intact.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Normalize maps any pipeline failure onto the single {code, message} pair
// recorded on the job. Cancellation is never normalized here; callers treat it
// as a distinct terminal outcome before reaching this point.
func Normalize(err error) (code, message string) {
	if err == nil {
		return CodeInternal, "unknown error"
	}

	var app *AppError
	if errors.As(err, &app) {
		return app.Code, app.Message
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		switch status := sc.HTTPStatus(); {
		case status == 401 || status == 403:
			return CodeAuthFailed, "the AI provider rejected the configured credentials"
		case status == 429:
			return CodeRateLimited, "the AI provider is rate limiting requests"
		case status >= 500:
			return CodeUpstreamError, fmt.Sprintf("the AI provider returned status %d", status)
		default:
			return CodeUpstreamError, fmt.Sprintf("unexpected AI provider status %d", status)
		}
	}

	var validation *ValidationError
	if errors.As(err, &validation) {
		return CodeInvalidRequest, validation.Error()
	}

	switch {
	case errors.Is(err, ErrAlreadyRunning):
		return CodeAlreadyRunning, "another clip job is already running"
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout, "an external operation timed out"
	case isExtraction(err):
		return CodeExtractionFailed, "could not extract readable content from the page"
	case errors.Is(err, ErrTransient):
		return CodeUpstreamError, "the upstream service kept failing"
	}

	return CodeInternal, err.Error()
}

func isExtraction(err error) bool {
	var ex *ExtractionError
	return errors.As(err, &ex) || errors.Is(err, ErrNoContent)
}
