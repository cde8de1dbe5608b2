package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/targetline/targetline/internal/llm"
	"github.com/targetline/targetline/internal/log"
	"github.com/targetline/targetline/internal/schema"
)

// SQLGenerator turns a normalized question into a single read-only
// SELECT statement via the language model, then enforces the generation
// contract before the statement goes anywhere near the executor.
type SQLGenerator struct {
	gen       llm.Generator
	listLimit int
	logger    log.Logger
}

// NewSQLGenerator creates a generator. listLimit bounds unbounded
// list_all queries; values <= 0 fall back to 100.
func NewSQLGenerator(gen llm.Generator, listLimit int, logger log.Logger) *SQLGenerator {
	if listLimit <= 0 {
		listLimit = 100
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &SQLGenerator{gen: gen, listLimit: listLimit, logger: logger}
}

// Generate produces a validated SELECT statement and its query type.
// withMemory controls whether the session's memory context is injected
// into the prompt; new-query turns rely on schema context alone.
func (g *SQLGenerator) Generate(ctx context.Context, question string, mem *Memory, withMemory bool) (string, QueryType, error) {
	qt := classifyQuestion(question)

	prompt := g.buildPrompt(question, mem, withMemory)

	raw, err := g.gen.Generate(ctx, prompt)
	if err != nil {
		return "", qt, fmt.Errorf("generating sql: %w", err)
	}

	sql := cleanSQL(raw)
	if err := g.validate(sql); err != nil {
		return "", qt, err
	}

	if qt == QueryListAll && !limitRe.MatchString(sql) {
		sql = fmt.Sprintf("%s LIMIT %d", strings.TrimRight(sql, "; "), g.listLimit)
	}

	g.logger.Debug("sql generated", "query_type", qt, "sql", sql)
	return sql, qt, nil
}

func (g *SQLGenerator) buildPrompt(question string, mem *Memory, withMemory bool) string {
	var b strings.Builder

	b.WriteString("You are an expert SQL generator for a PostgreSQL database.\n\n")
	b.WriteString("Database schema:\n")
	b.WriteString(schema.Context)
	b.WriteString("\n\n")

	if withMemory && mem != nil && mem.LastSQL != "" {
		b.WriteString("Conversation context:\n")
		if mem.ContextSummary != "" {
			b.WriteString(mem.ContextSummary)
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Most recent question: %q\n", mem.LastQuestion)
		fmt.Fprintf(&b, "Most recent SQL executed: %s\n", mem.LastSQL)
		if mem.LastTable != "" {
			fmt.Fprintf(&b, "Most recent table: %s\n", mem.LastTable)
		}
		if mem.LastResult != nil {
			fmt.Fprintf(&b, "That query returned %d rows with columns: %s\n",
				mem.LastResult.RowCount, strings.Join(mem.LastResult.Columns, ", "))
		}
		if names := mem.Entities["name"]; len(names) > 0 {
			fmt.Fprintf(&b, "Names seen in recent results: %s\n", strings.Join(names, ", "))
		}
		b.WriteString(
			"If the question refers to \"them\", \"those entries\", or a person " +
				"named in recent results, query the same table as the most recent " +
				"SQL and add a WHERE filter (use ILIKE for name matching).\n\n")
	}

	fmt.Fprintf(&b, "Current user question: %s\n\n", question)
	b.WriteString("Rules:\n")
	b.WriteString("1. Generate a single SELECT statement. No INSERT, UPDATE, DELETE, DDL.\n")
	b.WriteString("2. Reference only the tables and views listed in the schema.\n")
	b.WriteString("3. Return raw SQL only: no explanations, no markdown, no code fences.\n")

	return b.String()
}

var (
	limitRe     = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)
	relationRe  = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	codeFenceRe = regexp.MustCompile("(?s)```(?:sql)?\\s*(.*?)```")
)

// forbiddenKeywords are rejected anywhere in a generated statement.
// Shared with the executor's defense-in-depth check.
var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE",
	"TRUNCATE", "GRANT", "REVOKE", "COPY",
}

// cleanSQL strips markdown fences and surrounding noise from model output.
func cleanSQL(raw string) string {
	if m := codeFenceRe.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), ";"))
}

// validate enforces the generation contract: a single SELECT statement
// over known relations, free of write keywords. Violations are reported
// as GenerationError so the orchestrator can attempt one regeneration.
func (g *SQLGenerator) validate(sql string) error {
	if sql == "" {
		return &GenerationError{Reason: "model produced an empty statement"}
	}
	if strings.Contains(sql, ";") {
		return &GenerationError{Reason: "model produced multiple statements", SQL: sql}
	}

	first := firstKeyword(sql)
	if first != "SELECT" {
		return &GenerationError{
			Reason: fmt.Sprintf("statement starts with %s, not SELECT", first),
			SQL:    sql,
		}
	}

	upper := strings.ToUpper(sql)
	for _, kw := range forbiddenKeywords {
		if containsKeyword(upper, kw) {
			return &GenerationError{
				Reason: fmt.Sprintf("statement contains forbidden keyword %s", kw),
				SQL:    sql,
			}
		}
	}

	for _, m := range relationRe.FindAllStringSubmatch(sql, -1) {
		rel := strings.ToLower(m[1])
		if !schema.IsKnownRelation(rel) {
			return &GenerationError{
				Reason: fmt.Sprintf("statement references unknown relation %q", rel),
				SQL:    sql,
			}
		}
	}

	return nil
}

// firstKeyword returns the first SQL keyword, uppercased.
func firstKeyword(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(strings.Trim(fields[0], "("))
}

// containsKeyword reports whether kw appears as a whole word in upper.
func containsKeyword(upper, kw string) bool {
	idx := 0
	for {
		i := strings.Index(upper[idx:], kw)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isWordByte(upper[i-1])
		after := i+len(kw) == len(upper) || !isWordByte(upper[i+len(kw)])
		if before && after {
			return true
		}
		idx = i + len(kw)
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// classifyQuestion assigns a query type from deterministic cues. The
// model never sees this decision, which keeps routing and summarization
// policy testable without a live model.
func classifyQuestion(question string) QueryType {
	lower := strings.ToLower(question)

	switch {
	case strings.Contains(lower, "how many") || strings.Contains(lower, "count"):
		return QueryCount
	case strings.Contains(lower, "compare") || strings.Contains(lower, "difference") ||
		strings.Contains(lower, "versus") || strings.Contains(lower, " vs "):
		return QueryComparison
	case strings.Contains(lower, "average") || strings.Contains(lower, "total") ||
		strings.Contains(lower, "sum of") || strings.Contains(lower, "per "):
		return QueryAggregation
	case strings.Contains(lower, "all ") || strings.Contains(lower, "list ") ||
		strings.Contains(lower, "every "):
		return QueryListAll
	case strings.Contains(lower, "who ") || strings.Contains(lower, "which ") ||
		strings.Contains(lower, "details for") || strings.Contains(lower, "show ") ||
		strings.Contains(lower, "find "):
		return QueryLookup
	default:
		return QueryOther
	}
}
