package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/targetline/targetline/internal/llm"
	"github.com/targetline/targetline/internal/log"
)

// Summarizer turns query results, errors, or plain conversation into a
// natural-language answer. All policy decisions here (the full-listing
// threshold, the sample size, truncation wording) are deterministic;
// only the conversational branch consults the language model.
type Summarizer struct {
	gen    llm.Generator
	logger log.Logger
}

// fullListingMax is the largest result set shown in full. Larger sets
// are described by sampling.
const fullListingMax = 100

// sampleSize is how many leading rows a large result set's answer shows.
const sampleSize = 20

// historyWindow is how many recent turns feed a conversational answer.
const historyWindow = 4

// NewSummarizer creates a summarizer. gen is only used for the
// conversational branch and may be exercised with a stub in tests.
func NewSummarizer(gen llm.Generator, logger log.Logger) *Summarizer {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Summarizer{gen: gen, logger: logger}
}

// Fields shown in listings, in preference order, with display labels.
var priorityFields = []string{
	"hcp_name", "name", "system_name", "title", "specialty",
	"contact_name", "system_id", "hcp_id", "tier", "importance",
	"contact_email", "revenue", "phone", "address",
}

var fieldLabels = map[string]string{
	"hcp_name": "Name", "name": "Name", "system_name": "System",
	"title": "Title", "specialty": "Specialty", "contact_name": "Contact",
	"system_id": "ID", "hcp_id": "HCP ID", "tier": "Tier",
	"importance": "Importance", "contact_email": "Email",
	"phone": "Phone", "address": "Address", "city": "City",
	"state": "State", "npi": "NPI", "revenue": "Revenue",
	"prescriber_type": "Type",
}

// hiddenFields are skipped when falling back to arbitrary columns.
var hiddenFields = map[string]bool{
	"id": true, "created_at": true, "updated_at": true, "version_id": true,
}

// Result formats a query result deterministically. Results up to
// fullListingMax rows are listed in full in database order; larger
// results show the first sampleSize rows, state the total, and note the
// truncation explicitly.
func (s *Summarizer) Result(question string, qt QueryType, res *Result) string {
	if res.RowCount == 0 {
		return "No results found for your query."
	}

	if qt == QueryCount && res.RowCount == 1 && len(res.Columns) == 1 {
		return fmt.Sprintf("The answer is %v.", res.Rows[0][res.Columns[0]])
	}

	if res.RowCount <= fullListingMax {
		listing := s.formatRows(res, res.RowCount)
		return fmt.Sprintf("Here are all %d entries:\n\n%s", res.RowCount, listing)
	}

	shown := sampleSize
	listing := s.formatRows(res, shown)
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d entries in total.\n\nHere are the first %d:\n\n%s\n\n", res.RowCount, shown, listing)
	fmt.Fprintf(&b, "... and %d more entries not shown.", res.RowCount-shown)
	if res.Truncated {
		b.WriteString(" The result was capped, so even more rows matched.")
	}
	b.WriteString("\n\nWould you like me to narrow these results down?")
	return b.String()
}

// CachedCount answers a count follow-up from the cached result set.
func (s *Summarizer) CachedCount(mem *Memory) string {
	res := mem.LastResult
	if res.Truncated {
		return fmt.Sprintf("Your previous query returned at least %d results.", res.RowCount)
	}
	return fmt.Sprintf("Your previous query returned %d results.", res.RowCount)
}

// Conversational answers a message from turn history alone, with no
// query execution. Model failures fall back to a canned reply so the
// turn still commits.
func (s *Summarizer) Conversational(ctx context.Context, question string, turns []Turn) string {
	var b strings.Builder
	b.WriteString("You are a friendly assistant for a pharmaceutical list-management database.\n")
	if len(turns) > 0 {
		b.WriteString("Recent conversation:\n")
		start := len(turns) - historyWindow
		if start < 0 {
			start = 0
		}
		for _, t := range turns[start:] {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, truncate(t.Text, 100))
		}
	}
	fmt.Fprintf(&b, "\nThe user says: %s\n", question)
	b.WriteString("Reply briefly and helpfully. Do not invent data; offer to answer questions about the database.")

	answer, err := s.gen.Generate(ctx, b.String())
	if err != nil || answer == "" {
		s.logger.Warn("conversational answer failed", "error", err)
		return "Hello! Ask me anything about your lists, HCPs, versions, or requests."
	}
	return answer
}

// Failure translates a pipeline error into a user-safe answer. No SQL
// fragments or driver internals ever reach the caller; the underlying
// error is logged for operators.
func (s *Summarizer) Failure(err error) string {
	var genErr *GenerationError
	var policyErr *PolicyViolation
	var execErr *ExecutionError

	switch {
	case errors.As(err, &policyErr):
		s.logger.Warn("policy violation", "reason", policyErr.Reason)
		return "I can only run read-only queries against this database, and that request didn't qualify. Could you rephrase it as a question about the data?"
	case errors.As(err, &genErr):
		s.logger.Warn("generation failed", "reason", genErr.Reason)
		return "I'm sorry, I couldn't turn that into a database query. Could you rephrase the question, perhaps naming the list or table you're interested in?"
	case errors.As(err, &execErr):
		s.logger.Error("execution failed", "message", execErr.Message, "error", execErr.Err)
		return fmt.Sprintf("I'm sorry, %s. Please try rephrasing your question.", execErr.Message)
	case errors.Is(err, llm.ErrUnavailable):
		s.logger.Error("language model unavailable", "error", err)
		return "The assistant is temporarily unavailable. Please try again in a moment."
	default:
		s.logger.Error("request failed", "error", err)
		return "Something went wrong while answering that. Please try again."
	}
}

// formatRows renders up to n rows, one numbered line each, using the
// priority fields present in the result.
func (s *Summarizer) formatRows(res *Result, n int) string {
	fields := displayFields(res.Columns)

	var lines []string
	for i, row := range res.Rows {
		if i >= n {
			break
		}
		var parts []string
		for _, f := range fields {
			v, ok := row[f]
			if !ok || v == nil || v == "" {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s: %v", label(f), v))
		}
		if len(parts) == 0 {
			for _, col := range res.Columns {
				if v := row[col]; v != nil {
					parts = append(parts, fmt.Sprintf("%s: %v", label(col), v))
				}
			}
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, strings.Join(parts, " | ")))
	}
	return strings.Join(lines, "\n")
}

// displayFields picks which columns a listing shows: priority fields
// first, then up to five arbitrary informative columns as fallback.
func displayFields(columns []string) []string {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	var fields []string
	for _, f := range priorityFields {
		if present[f] {
			fields = append(fields, f)
		}
	}
	if len(fields) > 0 {
		return fields
	}

	for _, c := range columns {
		if hiddenFields[c] {
			continue
		}
		fields = append(fields, c)
		if len(fields) == 5 {
			break
		}
	}
	return fields
}

func label(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	words := strings.Split(field, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
