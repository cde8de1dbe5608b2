package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/targetline/targetline/internal/log"
)

const systemPrompt = "You are a careful assistant for a pharmaceutical " +
	"list-management database. Follow the user's instructions exactly " +
	"and answer with only what is asked for."

// RetryConfig configures retry behavior for model calls.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for chat-completion APIs.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// ClientConfig configures the OpenAI-backed Generator.
type ClientConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int

	Retry   RetryConfig   // zero value uses DefaultRetryConfig
	Limiter *rate.Limiter // nil = 10 req/s sustained, burst 30
	Logger  log.Logger    // nil disables debug logging
}

// Client is a Generator backed by the OpenAI chat-completions API.
// All configuration is captured immutably at construction time.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int

	retry   RetryConfig
	limiter *rate.Limiter
	logger  log.Logger
}

// NewClient creates an OpenAI-backed Generator.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Limiter == nil {
		cfg.Limiter = rate.NewLimiter(10, 30)
	}

	return &Client{
		api:         openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		retry:       cfg.Retry,
		limiter:     cfg.Limiter,
		logger:      cfg.Logger,
	}, nil
}

// Generate sends prompt to the model and returns its text output.
// Transient failures are retried with exponential backoff; exhausted
// retries return an error wrapping ErrUnavailable.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	delay := c.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		// Rate limit each attempt, not just the first.
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}

		text, err := c.complete(ctx, prompt)
		if err == nil {
			if c.logger != nil {
				c.logger.Debug("completion succeeded",
					"attempts", attempt+1,
					"elapsed", time.Since(start),
				)
			}
			return text, nil
		}

		lastErr = err

		if !retryableError(err) {
			return "", fmt.Errorf("chat completion: %w", err)
		}
		if attempt == c.retry.MaxRetries {
			break
		}

		if c.logger != nil {
			c.logger.Debug("retrying after error",
				"attempt", attempt+1,
				"delay", delay,
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.retry.MaxInterval)
		}
	}

	return "", fmt.Errorf("%w: after %d retries: %v",
		ErrUnavailable, c.retry.MaxRetries, lastErr)
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if c.maxTokens > 0 {
		req.MaxCompletionTokens = c.maxTokens
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// retryableError determines if an error should trigger a retry.
func retryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	// Rate limit errors
	if containsAny(errStr, "rate limit", "quota exceeded", "429") {
		return true
	}
	// Transient server errors
	if containsAny(errStr, "500", "502", "503", "504", "unavailable") {
		return true
	}
	// Network errors
	if containsAny(errStr, "connection reset", "timeout", "temporary") {
		return true
	}

	return false
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
