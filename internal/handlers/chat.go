package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/benvon/smart-schedule/internal/conversation"
	"github.com/benvon/smart-schedule/internal/logger"
	"github.com/benvon/smart-schedule/internal/planner"
	"github.com/benvon/smart-schedule/internal/request"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	// MaxChatMessageLength is the maximum length for a chat message
	MaxChatMessageLength = 4000
	// DefaultHistoryPageSize is returned when no limit is given
	DefaultHistoryPageSize = 50
	// MaxHistoryPageSize caps the history limit parameter
	MaxHistoryPageSize = conversation.DefaultMaxMessagesPerSession
)

// Planner handles one chat utterance
type Planner interface {
	Handle(ctx context.Context, utterance, sessionID string) *planner.Response
}

// ChatHandler exposes the planner and its session state
type ChatHandler struct {
	planner  Planner
	history  conversation.Store
	progress *conversation.ProgressLog
	logger   *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(p Planner, history conversation.Store, progress *conversation.ProgressLog, log *zap.Logger) *ChatHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatHandler{
		planner:  p,
		history:  history,
		progress: progress,
		logger:   log,
	}
}

// RegisterRoutes registers chat routes on the given router
// The router should already have the /ai prefix
func (h *ChatHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/chat", h.Chat).Methods("POST")
	r.HandleFunc("/chat/{session_id}/history", h.History).Methods("GET")
	r.HandleFunc("/chat/{session_id}/progress", h.Progress).Methods("GET")
	r.HandleFunc("/chat/{session_id}", h.ClearSession).Methods("DELETE")
	r.HandleFunc("/sessions", h.Sessions).Methods("GET")
}

// ChatRequest represents a chat message request
type ChatRequest struct {
	Message   string `json:"message" validate:"required,max=4000"`
	SessionID string `json:"session_id,omitempty" validate:"omitempty,max=128,printascii"`
}

// Chat runs one utterance through the planner
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = planner.NewSessionID()
	}
	ctx := request.WithSessionID(r.Context(), sessionID)

	resp := h.planner.Handle(ctx, req.Message, sessionID)
	if !resp.Success {
		h.logger.Info("chat_unsuccessful",
			zap.String("session_id", logger.SanitizeSessionID(sessionID)),
			zap.String("request_id", request.RequestID(ctx)),
			zap.Int("conflicts", len(resp.Conflicts)))
	}
	respondJSON(w, http.StatusOK, resp)
}

// sessionIDFromPath returns the {session_id} route variable
func sessionIDFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := mux.Vars(r)["session_id"]
	if sessionID == "" || len(sessionID) > 128 {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid session ID")
		return "", false
	}
	return sessionID, true
}

// History returns the most recent messages of a session, oldest first
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFromPath(w, r)
	if !ok {
		return
	}

	limit := DefaultHistoryPageSize
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "limit must be a positive integer")
			return
		}
		limit = min(parsed, MaxHistoryPageSize)
	}

	messages, err := h.history.Recent(r.Context(), sessionID, limit)
	if err != nil {
		h.logger.Error("chat_history_read_failed", zap.String("session_id", logger.SanitizeSessionID(sessionID)), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve chat history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"messages":   messages,
		"count":      len(messages),
	})
}

// Progress returns the processing steps recorded for the session's latest message
func (h *ChatHandler) Progress(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFromPath(w, r)
	if !ok {
		return
	}
	steps := h.progress.Snapshot(sessionID)
	if steps == nil {
		steps = []conversation.ProgressStep{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"steps":      steps,
	})
}

// ClearSession drops a session's history and progress
func (h *ChatHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFromPath(w, r)
	if !ok {
		return
	}

	if err := h.history.Clear(r.Context(), sessionID); err != nil && !errors.Is(err, conversation.ErrEmptySessionID) {
		h.logger.Error("chat_session_clear_failed", zap.String("session_id", logger.SanitizeSessionID(sessionID)), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to clear chat session")
		return
	}
	h.progress.Reset(sessionID)

	respondJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "cleared": true})
}

// Sessions lists the retained sessions, most recently used first
func (h *ChatHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.history.Sessions(r.Context())
	if err != nil {
		h.logger.Error("chat_sessions_list_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to list chat sessions")
		return
	}
	if sessions == nil {
		sessions = []conversation.SessionStats{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}
