// Package llm wraps the language-generation capability behind a small
// interface so the agent can be tested without network access.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the language capability could not be reached.
// Callers surface this as a retryable service-unavailable condition
// rather than a generation failure.
var ErrUnavailable = errors.New("language model unavailable")

// Generator produces text from a prompt. Implementations must be safe
// for concurrent use.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
