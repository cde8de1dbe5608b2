package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/targetline/targetline/internal/agent"
	"github.com/targetline/targetline/internal/llm"
	"github.com/targetline/targetline/internal/log"
)

// MaxQuestionLength bounds incoming questions.
const MaxQuestionLength = 4000

// ChatService is the slice of the agent the HTTP layer consumes.
// Defined here, by the consumer, so handlers can be tested with stubs.
type ChatService interface {
	Query(ctx context.Context, req agent.QueryRequest) (agent.QueryResponse, error)
	ClearSession(sessionID string)
	SessionCount() int
}

// ChatHandler handles the chat and session endpoints.
type ChatHandler struct {
	svc    ChatService
	logger log.Logger
}

// NewChatHandler creates a chat handler backed by svc.
func NewChatHandler(svc ChatService, logger log.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.query)
	mux.HandleFunc("POST /api/sessions/clear", h.clearSession)
}

// ChatRequest is the request body for POST /api/chat.
type ChatRequest struct {
	Question    string              `json:"question"`
	ChatHistory []agent.ChatMessage `json:"chat_history,omitempty"`
	SessionID   string              `json:"session_id,omitempty"`
	RequestID   string              `json:"request_id,omitempty"`
}

// ChatResponse is the response body for POST /api/chat. The SQL, row
// count, and query type are null when no query ran.
type ChatResponse struct {
	Answer       string  `json:"answer"`
	GeneratedSQL *string `json:"generated_sql"`
	RowCount     *int    `json:"row_count"`
	QueryType    *string `json:"query_type"`
}

func (h *ChatHandler) query(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "missing_question", "question is required")
		return
	}
	if len(req.Question) > MaxQuestionLength {
		writeError(w, http.StatusBadRequest, "question_too_long",
			fmt.Sprintf("question exceeds %d characters", MaxQuestionLength))
		return
	}

	resp, err := h.svc.Query(r.Context(), agent.QueryRequest{
		Question:    req.Question,
		ChatHistory: req.ChatHistory,
		SessionID:   req.SessionID,
		RequestID:   req.RequestID,
	})
	if err != nil {
		if errors.Is(err, llm.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "service_unavailable",
				"the assistant is temporarily unavailable, please retry shortly")
			return
		}
		h.logger.Error("chat query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to process the question")
		return
	}

	out := ChatResponse{Answer: resp.Answer}
	if resp.GeneratedSQL != "" {
		out.GeneratedSQL = &resp.GeneratedSQL
	}
	if resp.RowCount >= 0 {
		out.RowCount = &resp.RowCount
	}
	if resp.QueryType != "" {
		qt := string(resp.QueryType)
		out.QueryType = &qt
	}
	writeJSON(w, http.StatusOK, out)
}

// ClearSessionRequest is the request body for POST /api/sessions/clear.
type ClearSessionRequest struct {
	SessionID string `json:"session_id"`
}

func (h *ChatHandler) clearSession(w http.ResponseWriter, r *http.Request) {
	var req ClearSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid request body: %v", err))
		return
	}

	h.svc.ClearSession(req.SessionID)

	id := req.SessionID
	if id == "" {
		id = agent.DefaultSessionID
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("session %s cleared", id),
	})
}
