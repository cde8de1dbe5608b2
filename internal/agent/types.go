// Package agent implements the conversational SQL agent: the routing
// and classification logic, per-session memory, and the pipeline that
// sequences SQL generation, guarded execution, and summarization.
//
// The language model and the database are external collaborators,
// consumed through the llm.Generator and Querier interfaces.
package agent

import "time"

// Role identifies the author of a conversation turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Classification is the router's verdict for an incoming message.
// It is a closed set; the orchestrator dispatches on it exhaustively.
type Classification int

const (
	// ClassifyNewQuery means the message introduces or re-specifies a
	// subject and needs fresh SQL generation.
	ClassifyNewQuery Classification = iota

	// ClassifyFollowUp means the message references entities already in
	// session memory without naming a new subject.
	ClassifyFollowUp

	// ClassifyClarification means the message answers a pending
	// disambiguating question from a previous turn.
	ClassifyClarification

	// ClassifyConversational means the message carries no data request
	// at all (greetings, thanks, questions about the bot).
	ClassifyConversational
)

// String returns the wire name of the classification.
func (c Classification) String() string {
	switch c {
	case ClassifyNewQuery:
		return "new_query"
	case ClassifyFollowUp:
		return "follow_up"
	case ClassifyClarification:
		return "clarification"
	case ClassifyConversational:
		return "conversational"
	default:
		return "unknown"
	}
}

// QueryType categorizes a generated query for routing and summarization.
type QueryType string

const (
	QueryListAll     QueryType = "list_all"
	QueryCount       QueryType = "count"
	QueryLookup      QueryType = "lookup"
	QueryComparison  QueryType = "comparison"
	QueryAggregation QueryType = "aggregation"
	QueryOther       QueryType = "other"
)

// Turn is one message in a session's conversation history.
// Turns are immutable once appended.
type Turn struct {
	Role         string    `json:"role"`
	Text         string    `json:"text"`
	Timestamp    time.Time `json:"timestamp"`
	GeneratedSQL string    `json:"generated_sql,omitempty"`
	RowCount     int       `json:"row_count,omitempty"`
	QueryType    QueryType `json:"query_type,omitempty"`
}

// Result holds the outcome of one executed query.
// Rows preserve the column order reported by the database via Columns.
type Result struct {
	Columns   []string
	Rows      []map[string]any
	RowCount  int
	Truncated bool
}

// Memory is the per-session entity memory: references extracted from
// prior turns plus the most recent successful query and its result.
// It is overwritten wholesale when a new-query turn completes and is
// read-only for follow-up and clarification turns.
type Memory struct {
	// Entities maps entity kind ("table", "name", "id") to last-seen values.
	Entities map[string][]string

	// LastTable is the relation the most recent query selected from.
	LastTable string

	// LastSQL is the statement that produced LastResult.
	LastSQL string

	// LastQuestion is the normalized question behind LastSQL.
	LastQuestion string

	// LastResult caches the most recent result set (first cacheRows rows,
	// true total in RowCount).
	LastResult *Result

	// ContextSummary is a compact textual summary of recent turns,
	// refreshed every few turns and injected into generation prompts.
	ContextSummary string
}

// HasEntity reports whether value is recorded under any entity kind.
func (m *Memory) HasEntity(value string) bool {
	for _, values := range m.Entities {
		for _, v := range values {
			if v == value {
				return true
			}
		}
	}
	return false
}

// addEntity records value under kind, deduplicating.
func (m *Memory) addEntity(kind, value string) {
	if m.Entities == nil {
		m.Entities = make(map[string][]string)
	}
	for _, v := range m.Entities[kind] {
		if v == value {
			return
		}
	}
	m.Entities[kind] = append(m.Entities[kind], value)
}
