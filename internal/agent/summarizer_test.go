package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/targetline/targetline/internal/llm"
)

// failingGen trips the test if the model is consulted at all.
func failingGen(t *testing.T) llm.Generator {
	t.Helper()
	return llm.GeneratorFunc(func(context.Context, string) (string, error) {
		t.Fatal("deterministic branch must not call the model")
		return "", nil
	})
}

func hcpResult(n int) *Result {
	rows := make([]map[string]any, n)
	for i := range rows {
		rows[i] = map[string]any{
			"hcp_name":  fmt.Sprintf("Dr. Person %d", i+1),
			"specialty": "Cardiology",
		}
	}
	return &Result{
		Columns:  []string{"hcp_name", "specialty"},
		Rows:     rows,
		RowCount: n,
	}
}

func TestSummarizerResult(t *testing.T) {
	s := NewSummarizer(failingGen(t), nil)

	t.Run("no rows", func(t *testing.T) {
		got := s.Result("show HCPs in dermatology", QueryLookup, &Result{})
		assert.Equal(t, "No results found for your query.", got)
	})

	t.Run("single-cell count answers directly", func(t *testing.T) {
		res := &Result{
			Columns:  []string{"count"},
			Rows:     []map[string]any{{"count": int64(42)}},
			RowCount: 1,
		}
		got := s.Result("how many HCPs are there", QueryCount, res)
		assert.Equal(t, "The answer is 42.", got)
	})

	t.Run("small results list every row", func(t *testing.T) {
		got := s.Result("show cardiologists", QueryLookup, hcpResult(3))
		assert.Contains(t, got, "all 3 entries")
		assert.Contains(t, got, "Dr. Person 1")
		assert.Contains(t, got, "Dr. Person 3")
	})

	t.Run("boundary of one hundred rows still lists in full", func(t *testing.T) {
		got := s.Result("show cardiologists", QueryLookup, hcpResult(100))
		assert.Contains(t, got, "all 100 entries")
		assert.Contains(t, got, "Dr. Person 100")
		assert.NotContains(t, got, "not shown")
	})

	t.Run("large results sample the first twenty", func(t *testing.T) {
		got := s.Result("Show all HCPs in the database", QueryListAll, hcpResult(150))
		assert.Contains(t, got, "150 entries in total")
		assert.Contains(t, got, "first 20")
		assert.Contains(t, got, "Dr. Person 20")
		assert.NotContains(t, got, "Dr. Person 21")
		assert.Contains(t, got, "130 more entries not shown")
		assert.Contains(t, got, "narrow")
	})

	t.Run("capped results say so", func(t *testing.T) {
		res := hcpResult(1000)
		res.Truncated = true
		got := s.Result("show everything", QueryListAll, res)
		assert.Contains(t, got, "capped")
	})
}

func TestSummarizerCachedCount(t *testing.T) {
	s := NewSummarizer(failingGen(t), nil)

	got := s.CachedCount(&Memory{LastResult: &Result{RowCount: 150}})
	assert.Equal(t, "Your previous query returned 150 results.", got)

	got = s.CachedCount(&Memory{LastResult: &Result{RowCount: 1000, Truncated: true}})
	assert.Contains(t, got, "at least 1000")
}

func TestSummarizerConversational(t *testing.T) {
	ctx := context.Background()

	t.Run("uses the model reply", func(t *testing.T) {
		gen := llm.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
			assert.Contains(t, prompt, "hello there")
			return "Hi! How can I help with your lists today?", nil
		})
		s := NewSummarizer(gen, nil)
		got := s.Conversational(ctx, "hello there", nil)
		assert.Equal(t, "Hi! How can I help with your lists today?", got)
	})

	t.Run("history truncation keeps prompts valid UTF-8", func(t *testing.T) {
		gen := llm.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
			assert.True(t, utf8.ValidString(prompt))
			return "ok", nil
		})
		s := NewSummarizer(gen, nil)
		turns := []Turn{{Role: RoleUser, Text: strings.Repeat("薬", 120)}}
		assert.Equal(t, "ok", s.Conversational(ctx, "hello", turns))
	})

	t.Run("falls back on model failure", func(t *testing.T) {
		gen := llm.GeneratorFunc(func(context.Context, string) (string, error) {
			return "", llm.ErrUnavailable
		})
		s := NewSummarizer(gen, nil)
		got := s.Conversational(ctx, "hello", nil)
		assert.NotEmpty(t, got)
		assert.Contains(t, strings.ToLower(got), "hello")
	})
}

func TestSummarizerFailure(t *testing.T) {
	s := NewSummarizer(failingGen(t), nil)

	t.Run("policy violations hide the statement", func(t *testing.T) {
		got := s.Failure(&PolicyViolation{Reason: "forbidden keyword DROP"})
		assert.NotContains(t, got, "DROP")
		assert.Contains(t, got, "read-only")
	})

	t.Run("generation errors never leak SQL", func(t *testing.T) {
		got := s.Failure(&GenerationError{
			Reason: "statement references unknown relation \"secret_payroll\"",
			SQL:    "SELECT * FROM secret_payroll",
		})
		assert.NotContains(t, got, "secret_payroll")
		assert.NotContains(t, got, "SELECT")
	})

	t.Run("execution errors surface only the sanitized message", func(t *testing.T) {
		raw := errors.New(`ERROR: column "hcp_nmae" does not exist`)
		got := s.Failure(sanitizeExecutionError(raw))
		assert.NotContains(t, got, "hcp_nmae")
		assert.Contains(t, got, "does not exist")
	})

	t.Run("model outage gets a retry hint", func(t *testing.T) {
		got := s.Failure(fmt.Errorf("generating sql: %w", llm.ErrUnavailable))
		assert.Contains(t, got, "temporarily unavailable")
	})
}
