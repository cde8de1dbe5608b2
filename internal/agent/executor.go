package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/targetline/targetline/internal/log"
)

// Querier runs a statement against the database, returning at most
// maxRows rows and Truncated=true when more were available. Defined
// here, by the consumer; the pgx-backed implementation is in
// querier_pgx.go.
type Querier interface {
	Query(ctx context.Context, sql string, maxRows int) (*Result, error)
}

// Executor validates and runs generated statements. Validation is
// defense in depth: the generator already enforces the same contract,
// but nothing reaches the database without passing here too.
type Executor struct {
	q       Querier
	maxRows int
	timeout time.Duration
	logger  log.Logger
}

// NewExecutor creates an executor. maxRows caps returned rows (<= 0
// falls back to 1000); timeout bounds each query (<= 0 falls back to
// 15s).
func NewExecutor(q Querier, maxRows int, timeout time.Duration, logger log.Logger) *Executor {
	if maxRows <= 0 {
		maxRows = 1000
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Executor{q: q, maxRows: maxRows, timeout: timeout, logger: logger}
}

// Execute validates sql and runs it with a bounded timeout.
// Validation failures return a PolicyViolation without touching the
// database; database failures return a sanitized ExecutionError.
func (e *Executor) Execute(ctx context.Context, sql string) (*Result, error) {
	if err := ValidateStatement(sql); err != nil {
		e.logger.Warn("statement rejected", "reason", err)
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	res, err := e.q.Query(queryCtx, sql, e.maxRows)
	if err != nil {
		return nil, sanitizeExecutionError(err)
	}

	e.logger.Debug("query executed",
		"rows", res.RowCount,
		"truncated", res.Truncated,
		"elapsed", time.Since(start),
	)
	return res, nil
}

// ValidateStatement enforces the read-only execution policy:
// a single statement, first keyword SELECT, no write keywords anywhere.
func ValidateStatement(sql string) error {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
	if trimmed == "" {
		return &PolicyViolation{Reason: "empty statement"}
	}
	if strings.Contains(trimmed, ";") {
		return &PolicyViolation{Reason: "multiple statements are not allowed"}
	}
	if kw := firstKeyword(trimmed); kw != "SELECT" {
		return &PolicyViolation{Reason: "only SELECT statements are allowed"}
	}

	upper := strings.ToUpper(trimmed)
	for _, kw := range forbiddenKeywords {
		if containsKeyword(upper, kw) {
			return &PolicyViolation{
				Reason: fmt.Sprintf("forbidden keyword %s", kw),
			}
		}
	}
	return nil
}

// sanitizeExecutionError classifies a database failure into an
// ExecutionError whose Message is safe to show end users. The raw
// error stays attached for operator logs only.
func sanitizeExecutionError(err error) *ExecutionError {
	msg := "the query could not be executed"
	errStr := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(errStr, "timeout"):
		msg = "the query took too long and was cancelled"
	case strings.Contains(errStr, "does not exist") || strings.Contains(errStr, "undefined"):
		msg = "the query referenced something that does not exist"
	case strings.Contains(errStr, "syntax"):
		msg = "the query was not valid SQL"
	}

	return &ExecutionError{Message: msg, Err: err}
}
