package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Run("requires an api key", func(t *testing.T) {
		_, err := NewClient(ClientConfig{})
		assert.Error(t, err)
	})

	t.Run("fills in defaults", func(t *testing.T) {
		c, err := NewClient(ClientConfig{APIKey: "sk-test"})
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini", c.model)
		assert.Equal(t, 3, c.retry.MaxRetries)
		assert.NotNil(t, c.limiter)
	})

	t.Run("keeps explicit settings", func(t *testing.T) {
		c, err := NewClient(ClientConfig{
			APIKey: "sk-test",
			Model:  "gpt-4o",
			Retry:  RetryConfig{MaxRetries: 1},
		})
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", c.model)
		assert.Equal(t, 1, c.retry.MaxRetries)
	})
}

func TestRetryableError(t *testing.T) {
	retryable := []error{
		errors.New("error, status code: 429, message: Rate limit reached"),
		errors.New("error, status code: 503, message: Service Unavailable"),
		errors.New("read tcp: connection reset by peer"),
		errors.New("net/http: request timeout"),
	}
	for _, err := range retryable {
		assert.True(t, retryableError(err), "%v", err)
	}

	permanent := []error{
		errors.New("error, status code: 401, message: Incorrect API key"),
		errors.New("error, status code: 400, message: invalid request"),
	}
	for _, err := range permanent {
		assert.False(t, retryableError(err), "%v", err)
	}
	assert.False(t, retryableError(nil))
}

func TestGeneratorFunc(t *testing.T) {
	called := false
	gen := GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		called = true
		assert.Equal(t, "ping", prompt)
		return "pong", nil
	})

	out, err := gen.Generate(context.Background(), "ping")
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "pong", out)
}
