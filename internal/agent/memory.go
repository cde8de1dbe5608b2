package agent

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/targetline/targetline/internal/schema"
)

var fromTableRe = regexp.MustCompile(`(?i)\bFROM\s+([A-Za-z_][A-Za-z0-9_]*)`)

// tableFromSQL extracts the first relation a statement selects from.
// Returns "" when no FROM clause is present (e.g. SELECT 1).
func tableFromSQL(sql string) string {
	m := fromTableRe.FindStringSubmatch(sql)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// entityRowLimit bounds how many result rows are scanned for names.
const entityRowLimit = 5

// extractEntities pulls referenced entities out of a question and the
// rows it produced: schema relations named in the question, and values
// of name-like columns in the leading rows.
func extractEntities(question string, rows []map[string]any) map[string][]string {
	entities := make(map[string][]string)
	lower := strings.ToLower(question)

	for _, rel := range schema.Relations {
		if strings.Contains(lower, rel) {
			entities["table"] = append(entities["table"], rel)
		}
	}

	for i, row := range rows {
		if i >= entityRowLimit {
			break
		}
		for col, val := range row {
			if !strings.Contains(strings.ToLower(col), "name") {
				continue
			}
			if s, ok := val.(string); ok && s != "" {
				entities["name"] = append(entities["name"], s)
			}
		}
	}

	return entities
}

// summarizeTurns builds a compact description of recent user turns for
// prompt context. Deterministic; no model involvement.
func summarizeTurns(turns []Turn) string {
	var parts []string
	n := 0
	for i := len(turns) - 1; i >= 0 && n < summaryWindow; i-- {
		t := turns[i]
		if t.Role != RoleUser {
			continue
		}
		q := truncate(t.Text, 60)
		// Find the paired assistant turn for the row count.
		rowNote := ""
		if i+1 < len(turns) && turns[i+1].Role == RoleAssistant && turns[i+1].GeneratedSQL != "" {
			rowNote = fmt.Sprintf(" -> %d results", turns[i+1].RowCount)
		}
		parts = append([]string{fmt.Sprintf("Asked %q%s", q, rowNote)}, parts...)
		n++
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n")
}

// truncate shortens s to at most n runes, never splitting a multi-byte
// rune, and marks the cut with an ellipsis.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
