package agent

import "fmt"

// GenerationError indicates the language capability produced an
// unusable or unsafe statement: wrong shape, unknown relation, or a
// non-SELECT. The statement is never executed.
type GenerationError struct {
	Reason string
	SQL    string // offending statement, for operator logs only
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation error: %s", e.Reason)
}

// PolicyViolation indicates a statement failed the executor's read-only
// or single-statement checks. Raised before any database call.
type PolicyViolation struct {
	Reason string
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("policy violation: %s", e.Reason)
}

// ExecutionError indicates the database rejected or failed the
// statement. Message is sanitized for end users; Err carries the
// underlying cause for operator logs.
type ExecutionError struct {
	Message string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution error: %s", e.Message)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
