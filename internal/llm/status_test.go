package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/webclip-dev/webclip/internal/common"
)

func TestIsAuthOnlyMatchesCredentialStatuses(t *testing.T) {
	assert.True(t, IsAuth(&StatusError{Code: 401}))
	assert.True(t, IsAuth(&StatusError{Code: 403}))
	assert.True(t, IsAuth(fmt.Errorf("complete: %w", &StatusError{Code: 401, Message: "bad key"})))

	assert.False(t, IsAuth(&StatusError{Code: 429}))
	assert.False(t, IsAuth(&StatusError{Code: 500}))
	assert.False(t, IsAuth(errors.New("plain")))
	assert.False(t, IsAuth(nil))
}

func TestRetryableClassification(t *testing.T) {
	// provider-side trouble is worth another attempt
	for _, code := range []int{429, 500, 502, 503, 504} {
		assert.True(t, Retryable(&StatusError{Code: code}), "status %d", code)
	}
	// caller mistakes and auth failures are not
	for _, code := range []int{400, 401, 403, 404, 422} {
		assert.False(t, Retryable(&StatusError{Code: code}), "status %d", code)
	}

	assert.True(t, Retryable(fmt.Errorf("wrapped: %w", &StatusError{Code: 503})))
	assert.True(t, Retryable(fmt.Errorf("%w: connection reset", common.ErrTransient)))
	assert.True(t, Retryable(context.DeadlineExceeded), "per-call timeout retries")

	assert.False(t, Retryable(context.Canceled), "cancellation never retries")
	assert.False(t, Retryable(errors.New("schema validation failed")))
	assert.False(t, Retryable(nil))
}
