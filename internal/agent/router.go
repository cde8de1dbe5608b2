package agent

import (
	"strings"
)

// routeDecision is the router's output: the classification plus the
// question rewritten to resolve pronouns and ellipsis from memory.
type routeDecision struct {
	class    Classification
	question string
}

// Pure greetings carry no data request and skip SQL entirely.
var pureGreetings = map[string]bool{
	"hello": true, "hi": true, "hey": true, "thanks": true,
	"thank you": true, "bye": true, "goodbye": true,
	"good morning": true, "good evening": true, "good afternoon": true,
}

// Meta questions are about the bot itself, not the data.
var metaQuestions = []string{
	"how do you work", "what can you do", "help me", "how does this work",
	"who are you",
}

// Strong indicators that a message introduces a new subject.
var newQueryIndicators = []string{
	"give me", "show me", "retrieve", "fetch", "get me", "find",
	"i want", "i need", "can you get", "can you show", "list",
	"another question", "new question", "different question",
	"from table", "from the", "what are", "what is", "show all",
}

// Cues that a message leans on prior results.
var followUpCues = []string{
	"about them", "about these", "about those", "about it", "about that",
	"the same", "those ones", "these ones", "from that", "from those",
	"tell me more", "more about", "more details", "more info",
	"what about", "how about", "the results", "the data",
	"those results", "that list", "the previous", "last query",
	"was that", "were there", "of those", "of them",
}

// classify routes an incoming message given the session's memory and
// pending-clarification state. Ambiguity resolves toward new_query,
// which avoids answering from stale cached data; a message that cannot
// be classified at all also defaults to new_query.
func classify(message string, mem *Memory, pendingQuestion string) routeDecision {
	trimmed := strings.TrimSpace(message)
	lower := strings.ToLower(trimmed)

	if pureGreetings[strings.TrimRight(lower, "!. ")] || matchesAny(lower, metaQuestions) {
		return routeDecision{class: ClassifyConversational, question: trimmed}
	}

	if pendingQuestion != "" {
		// Answer to a disambiguating question: merge and re-route as a
		// fresh query.
		merged := pendingQuestion + " " + trimmed
		return routeDecision{class: ClassifyClarification, question: merged}
	}

	hasFollowUpCue := matchesAny(lower, followUpCues)
	hasNewIndicator := matchesAny(lower, newQueryIndicators)
	hasMemoryHit := referencesMemory(lower, mem)
	priorQuery := mem.LastSQL != ""

	if priorQuery && hasFollowUpCue {
		if hasNewIndicator && !hasMemoryHit {
			// Ambiguous: message both leans on prior results and names a
			// new subject, with nothing matching memory. Prefer new_query.
			return routeDecision{class: ClassifyNewQuery, question: trimmed}
		}
		return routeDecision{class: ClassifyFollowUp, question: normalizeFollowUp(trimmed, mem)}
	}

	if priorQuery && hasMemoryHit && !hasNewIndicator {
		return routeDecision{class: ClassifyFollowUp, question: normalizeFollowUp(trimmed, mem)}
	}

	return routeDecision{class: ClassifyNewQuery, question: trimmed}
}

// normalizeFollowUp rewrites an elliptical follow-up into a standalone
// question using the remembered subject, e.g. "what about version 2"
// with last table list_versions becomes "show list_versions for
// version 2".
func normalizeFollowUp(message string, mem *Memory) string {
	lower := strings.ToLower(message)

	for _, prefix := range []string{"what about ", "how about ", "and "} {
		if strings.HasPrefix(lower, prefix) && mem.LastTable != "" {
			rest := strings.TrimSpace(message[len(prefix):])
			rest = strings.TrimRight(rest, "?")
			return "show " + mem.LastTable + " for " + rest
		}
	}

	if mem.LastQuestion != "" {
		return message + " (regarding: " + mem.LastQuestion + ")"
	}
	return message
}

// answerableFromCache reports whether a follow-up can be satisfied from
// the cached result set without generating new SQL. Currently covers
// count questions against the cached row count.
func answerableFromCache(message string, mem *Memory) bool {
	if mem.LastResult == nil {
		return false
	}
	lower := strings.ToLower(message)
	if !strings.Contains(lower, "how many") {
		return false
	}
	return matchesAny(lower, []string{
		"was that", "were there", "were that", "did you find",
		"is that", "in total", "of those", "of them",
	})
}

// referencesMemory reports whether the message names an entity the
// session has already seen.
func referencesMemory(lower string, mem *Memory) bool {
	for _, values := range mem.Entities {
		for _, v := range values {
			if v != "" && strings.Contains(lower, strings.ToLower(v)) {
				return true
			}
		}
	}
	return false
}

func matchesAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
