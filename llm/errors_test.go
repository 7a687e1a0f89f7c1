package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	assert.Equal(t, "openai: HTTP 429: slow down",
		(&Error{Provider: "openai", HTTPStatus: 429, Message: "slow down"}).Error())
	assert.Equal(t, "gemini: connection reset", (&Error{Provider: "gemini", Message: "connection reset"}).Error())
	assert.Equal(t, "bare", (&Error{Message: "bare"}).Error())
}

func TestError_UnwrapAndStatus(t *testing.T) {
	cause := context.DeadlineExceeded
	err := fmt.Errorf("round 2: %w", &Error{Provider: "grok", Message: "timeout", Cause: cause, RetryAfter: time.Second})

	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, 0, llmErr.StatusCode())
	assert.Equal(t, time.Second, llmErr.RetryAfter)
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Provider: "azure_openai", Field: "deployment", Reason: "is required"}
	assert.Equal(t, "llm config error (azure_openai): deployment: is required", err.Error())
	assert.Equal(t, "llm config error (x): bad", (&ConfigError{Provider: "x", Reason: "bad"}).Error())

	assert.True(t, IsConfigError(fmt.Errorf("create: %w", err)))
	assert.False(t, IsConfigError(errors.New("other")))
	assert.False(t, IsConfigError(nil))
}
