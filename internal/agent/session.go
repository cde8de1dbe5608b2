package agent

import (
	"sync"
	"time"

	"github.com/targetline/targetline/internal/log"
)

// DefaultSessionID is used when the caller supplies no session id.
const DefaultSessionID = "default"

// cacheRows is how many rows of a result set are retained in memory for
// follow-up questions. The true total is kept separately in RowCount.
const cacheRows = 50

// summaryEvery controls how often the context summary is refreshed.
const summaryEvery = 3

// summaryWindow is how many recent turns feed the context summary.
const summaryWindow = 5

// Store holds all live sessions. It is process-wide mutable state with
// no persistence across restarts: entries are created lazily on first
// reference and torn down on Clear or process exit.
//
// Store is safe for concurrent use. Requests for different sessions
// proceed in parallel; requests for the same session serialize on the
// session's own mutex.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session

	maxTurns int
	logger   log.Logger
}

// NewStore creates an empty session store. maxTurns caps each session's
// conversation history; values <= 0 fall back to 20.
func NewStore(maxTurns int, logger log.Logger) *Store {
	if maxTurns <= 0 {
		maxTurns = 20
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		sessions: make(map[string]*Session),
		maxTurns: maxTurns,
		logger:   logger,
	}
}

// Get returns the session for id, creating it if unseen.
// Callers must hold the session's lock while reading or mutating it.
func (s *Store) Get(id string) *Session {
	if id == "" {
		id = DefaultSessionID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{id: id, maxTurns: s.maxTurns}
		s.sessions[id] = sess
		s.logger.Debug("session created", "session_id", id)
	}
	return sess
}

// Clear destroys the session: its turns, memory, and the store entry
// itself, so it no longer counts as active. A later reference to the
// same id starts a fresh session. Idempotent: clearing an unknown
// session is a no-op.
func (s *Store) Clear(id string) {
	if id == "" {
		id = DefaultSessionID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return
	}
	delete(s.sessions, id)
	s.logger.Debug("session cleared", "session_id", id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Session is one conversation thread. All fields are guarded by mu;
// the orchestrator holds the lock for the whole pipeline run so turns
// within a session commit in submission order.
type Session struct {
	mu sync.Mutex

	id       string
	maxTurns int

	turns  []Turn
	memory Memory

	// pendingQuestion is set when the assistant asked a disambiguating
	// question; the next user message is routed as its answer.
	pendingQuestion string

	// turnCount increments per committed request, independent of the
	// FIFO truncation of turns.
	turnCount int
}

// Lock acquires the session for exclusive use.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// The methods below assume the caller holds the session lock.

// Turns returns the conversation history, oldest first.
func (s *Session) Turns() []Turn { return s.turns }

// Memory returns the session's entity memory.
func (s *Session) Memory() *Memory { return &s.memory }

// PendingQuestion returns the unanswered clarification question, if any.
func (s *Session) PendingQuestion() string { return s.pendingQuestion }

// SetPendingQuestion records a clarification question awaiting an answer.
func (s *Session) SetPendingQuestion(q string) { s.pendingQuestion = q }

// Seed initializes the history from a caller-supplied transcript.
// Only applied to empty sessions; the cap still holds.
func (s *Session) Seed(turns []Turn) {
	if len(s.turns) > 0 {
		return
	}
	for _, t := range turns {
		s.appendTurn(t)
	}
}

// Append records a user turn and its assistant response, evicting the
// oldest turns beyond the cap.
func (s *Session) Append(user, assistant Turn) {
	s.appendTurn(user)
	s.appendTurn(assistant)
	s.turnCount++
}

func (s *Session) appendTurn(t Turn) {
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	s.turns = append(s.turns, t)
	if excess := len(s.turns) - s.maxTurns; excess > 0 {
		s.turns = s.turns[excess:]
	}
}

// CommitResult overwrites the entity memory wholesale after a
// successful query: last SQL, cached rows, extracted entities, and a
// periodically refreshed context summary. Failed or skipped queries
// must never reach this method.
func (s *Session) CommitResult(question, sql string, res *Result) {
	mem := Memory{
		Entities:     s.memory.Entities, // accumulated across turns
		LastSQL:      sql,
		LastQuestion: question,
		LastTable:    tableFromSQL(sql),
	}

	cached := *res
	if len(cached.Rows) > cacheRows {
		cached.Rows = cached.Rows[:cacheRows]
	}
	mem.LastResult = &cached

	for kind, values := range extractEntities(question, res.Rows) {
		for _, v := range values {
			mem.addEntity(kind, v)
		}
	}

	if mem.LastTable != "" {
		mem.addEntity("table", mem.LastTable)
	}

	// Append has already counted this turn, so the summary refreshes on
	// every summaryEvery-th committed turn.
	mem.ContextSummary = s.memory.ContextSummary
	if s.turnCount%summaryEvery == 0 {
		mem.ContextSummary = summarizeTurns(s.turns)
	}

	s.memory = mem
}
