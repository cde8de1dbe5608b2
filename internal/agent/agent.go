package agent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/targetline/targetline/internal/llm"
	"github.com/targetline/targetline/internal/log"
)

// PipelineState tracks a request's progress through the orchestrator.
// Transitions are strictly sequential within one request.
type PipelineState int

const (
	StateReceived PipelineState = iota
	StateClassified
	StateSQLGenerated
	StateSkipSQL
	StateExecuted
	StateSummarized
	StateCommitted
	StateFailed
)

// String returns the state's name for logs.
func (s PipelineState) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateClassified:
		return "classified"
	case StateSQLGenerated:
		return "sql_generated"
	case StateSkipSQL:
		return "skip_sql"
	case StateExecuted:
		return "executed"
	case StateSummarized:
		return "summarized"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config contains all required parameters for the agent.
type Config struct {
	Generator llm.Generator // language capability
	Querier   Querier       // database access
	Logger    log.Logger

	// Policy limits; zero values use the documented defaults.
	MaxTurns       int           // session history cap (default 20)
	MaxRows        int           // execution row cap (default 1000)
	ListLimit      int           // LIMIT appended to list_all (default 100)
	QueryTimeout   time.Duration // per-query bound (default 15s)
	RequestTimeout time.Duration // whole-pipeline bound (default 60s)
}

// Agent is the conversational SQL orchestrator. It owns the session
// store and sequences routing, generation, guarded execution, and
// summarization for each request.
//
// Agent is safe for concurrent use; requests for the same session
// serialize on the session lock, requests for different sessions run
// in parallel.
type Agent struct {
	sessions *Store
	sqlgen   *SQLGenerator
	exec     *Executor
	sum      *Summarizer

	requestTimeout time.Duration
	logger         log.Logger
}

// New creates an Agent from its collaborators.
func New(cfg Config) (*Agent, error) {
	if cfg.Generator == nil {
		return nil, errors.New("agent: generator is required")
	}
	if cfg.Querier == nil {
		return nil, errors.New("agent: querier is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	return &Agent{
		sessions:       NewStore(cfg.MaxTurns, logger.With("component", "sessions")),
		sqlgen:         NewSQLGenerator(cfg.Generator, cfg.ListLimit, logger.With("component", "generator")),
		exec:           NewExecutor(cfg.Querier, cfg.MaxRows, cfg.QueryTimeout, logger.With("component", "executor")),
		sum:            NewSummarizer(cfg.Generator, logger.With("component", "summarizer")),
		requestTimeout: requestTimeout,
		logger:         logger,
	}, nil
}

// ChatMessage is one entry of a caller-supplied transcript.
type ChatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// QueryRequest is one incoming question.
type QueryRequest struct {
	Question    string
	ChatHistory []ChatMessage
	SessionID   string
	RequestID   string
}

// QueryResponse is the answer to one question. GeneratedSQL is empty
// and RowCount negative when no query ran.
type QueryResponse struct {
	Answer       string
	GeneratedSQL string
	RowCount     int
	QueryType    QueryType
}

// Query runs the full pipeline for one question: load session, route,
// generate and execute SQL when needed, summarize, and commit the turn.
//
// Every pipeline error is recovered into a user-safe answer and the
// turn still commits, so conversation history stays coherent; only a
// language-capability outage is also returned as an error (wrapping
// llm.ErrUnavailable) so transports can signal a retryable condition.
func (a *Agent) Query(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	defer cancel()

	sess := a.sessions.Get(req.SessionID)
	logger := a.logger.With("request_id", req.RequestID, "session_id", sess.ID())

	sess.Lock()
	defer sess.Unlock()

	if len(sess.Turns()) == 0 && len(req.ChatHistory) > 0 {
		sess.Seed(historyTurns(req.ChatHistory))
	}

	state := StateReceived
	logger.Debug("request received", "state", state, "question", req.Question)

	decision := classify(req.Question, sess.Memory(), sess.PendingQuestion())
	sess.SetPendingQuestion("")
	state = StateClassified
	logger.Debug("message classified",
		"state", state,
		"classification", decision.class.String(),
		"question", decision.question,
	)

	var (
		sql      string
		qt       QueryType
		res      *Result
		answer   string
		rowCount = -1
		pipeErr  error
	)

	switch decision.class {
	case ClassifyConversational:
		state = StateSkipSQL
		answer = a.sum.Conversational(ctx, decision.question, sess.Turns())

	case ClassifyFollowUp:
		if answerableFromCache(req.Question, sess.Memory()) {
			state = StateSkipSQL
			qt = QueryCount
			answer = a.sum.CachedCount(sess.Memory())
			rowCount = sess.Memory().LastResult.RowCount
		} else {
			sql, qt, res, pipeErr = a.runSQL(ctx, decision.question, sess.Memory(), true, &state, logger)
		}

	case ClassifyClarification, ClassifyNewQuery:
		sql, qt, res, pipeErr = a.runSQL(ctx, decision.question, sess.Memory(), false, &state, logger)
	}

	if pipeErr != nil {
		state = StateFailed
		answer = a.sum.Failure(pipeErr)
	} else if res != nil {
		answer = a.sum.Result(decision.question, qt, res)
		rowCount = res.RowCount
		state = StateSummarized
	} else if state != StateFailed {
		state = StateSummarized
	}

	// Commit the turn even on failure so the conversation stays
	// coherent. The cached result set only moves forward on success.
	userTurn := Turn{Role: RoleUser, Text: req.Question, QueryType: qt}
	asstTurn := Turn{
		Role:         RoleAssistant,
		Text:         answer,
		GeneratedSQL: sql,
		RowCount:     max(rowCount, 0),
		QueryType:    qt,
	}
	sess.Append(userTurn, asstTurn)

	if pipeErr == nil && res != nil && memoryCommits(decision.class) {
		sess.CommitResult(decision.question, sql, res)
	}

	if state != StateFailed {
		state = StateCommitted
	}
	logger.Info("turn committed",
		"state", state,
		"classification", decision.class.String(),
		"query_type", qt,
		"row_count", rowCount,
	)

	resp := QueryResponse{
		Answer:       answer,
		GeneratedSQL: sql,
		RowCount:     rowCount,
		QueryType:    qt,
	}
	if errors.Is(pipeErr, llm.ErrUnavailable) {
		return resp, pipeErr
	}
	return resp, nil
}

// memoryCommits reports whether a turn of this classification may
// overwrite the entity memory. Follow-ups read memory but never write
// it; clarifications re-route as new queries and do.
func memoryCommits(c Classification) bool {
	return c == ClassifyNewQuery || c == ClassifyClarification
}

// runSQL generates and executes one statement, advancing the pipeline
// state. A GenerationError triggers exactly one regeneration attempt
// before it is surfaced.
func (a *Agent) runSQL(ctx context.Context, question string, mem *Memory, withMemory bool, state *PipelineState, logger log.Logger) (string, QueryType, *Result, error) {
	sql, qt, err := a.sqlgen.Generate(ctx, question, mem, withMemory)
	if err != nil {
		var genErr *GenerationError
		if errors.As(err, &genErr) {
			logger.Warn("regenerating after contract violation", "reason", genErr.Reason)
			sql, qt, err = a.sqlgen.Generate(ctx, question, mem, withMemory)
		}
		if err != nil {
			return "", qt, nil, err
		}
	}
	*state = StateSQLGenerated

	res, err := a.exec.Execute(ctx, sql)
	if err != nil {
		return sql, qt, nil, err
	}
	*state = StateExecuted

	return sql, qt, res, nil
}

// ClearSession resets the session's turns and memory. Idempotent.
func (a *Agent) ClearSession(sessionID string) {
	a.sessions.Clear(sessionID)
}

// SessionCount returns the number of live sessions, for health reporting.
func (a *Agent) SessionCount() int {
	return a.sessions.Len()
}

func historyTurns(history []ChatMessage) []Turn {
	turns := make([]Turn, 0, len(history))
	for _, m := range history {
		role := RoleUser
		if m.Role == RoleAssistant {
			role = RoleAssistant
		}
		turns = append(turns, Turn{Role: role, Text: m.Text})
	}
	return turns
}
