package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/webclip-dev/webclip/internal/common"
)

// StatusError is a non-2xx reply from a model provider. It keeps the HTTP
// status so callers can decide between retrying, surfacing an auth failure,
// and giving up.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider status %d", e.Code)
	}
	return fmt.Sprintf("provider status %d: %s", e.Code, e.Message)
}

// HTTPStatus exposes the upstream status for error normalization.
func (e *StatusError) HTTPStatus() int { return e.Code }

// IsAuth reports whether err is a credential problem (401/403). Auth errors
// are never retried.
func IsAuth(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == 401 || se.Code == 403
	}
	return false
}

// Retryable reports whether err is worth another attempt: rate limiting,
// provider-side 5xx, deadline expiry on a single call, or anything tagged
// transient. Context cancellation is not retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return errors.Is(err, common.ErrTransient)
}
