// Package handler contains the HTTP handlers for the concierge API.
//
// This file implements the chat usage ledger endpoints.
//
// Routes handled:
//   - POST  /api/chats                        -> StartChat
//   - GET   /api/chats                        -> ListChats
//   - PATCH /api/chats/{sessionID}/messages   -> UpdateMessages
//   - POST  /api/chats/{sessionID}/complete   -> CompleteChat
//   - GET   /api/stats                        -> GetStats
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/verityair/concierge/internal/auth"
	"github.com/verityair/concierge/internal/domain"
	"github.com/verityair/concierge/internal/service"
)

// ChatHandler handles chat session HTTP requests.
type ChatHandler struct {
	usage  service.UsageService
	stats  service.StatsService
	logger *slog.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(usage service.UsageService, stats service.StatsService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		usage:  usage,
		stats:  stats,
		logger: logger,
	}
}

// RegisterRoutes registers chat routes on the provided mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux, authed func(http.Handler) http.Handler) {
	mux.Handle("POST /api/chats", authed(http.HandlerFunc(h.StartChat)))
	mux.Handle("GET /api/chats", authed(http.HandlerFunc(h.ListChats)))
	mux.Handle("PATCH /api/chats/{sessionID}/messages", authed(http.HandlerFunc(h.UpdateMessages)))
	mux.Handle("POST /api/chats/{sessionID}/complete", authed(http.HandlerFunc(h.CompleteChat)))
	mux.Handle("GET /api/stats", authed(http.HandlerFunc(h.GetStats)))
}

type chatSessionResponse struct {
	SessionID     string    `json:"session_id"`
	MessageCount  int32     `json:"message_count"`
	MaxMessages   int32     `json:"max_messages"`
	Completed     bool      `json:"completed"`
	StartedAt     time.Time `json:"started_at"`
	LastMessageAt time.Time `json:"last_message_at"`
}

func toChatSessionResponse(s *domain.ChatSession) chatSessionResponse {
	return chatSessionResponse{
		SessionID:     s.SessionID,
		MessageCount:  s.MessageCount,
		MaxMessages:   domain.MaxMessagesPerSession,
		Completed:     s.Completed,
		StartedAt:     s.StartedAt,
		LastMessageAt: s.LastMessageAt,
	}
}

// StartChat consumes one quota slot and opens a ledger session.
func (h *ChatHandler) StartChat(w http.ResponseWriter, r *http.Request) {
	account := auth.GetAccount(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	session, err := h.usage.StartChat(r.Context(), account.ID, req.SessionID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session": toChatSessionResponse(session),
	})
}

// ListChats returns the caller's most recent chat sessions.
func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	account := auth.GetAccount(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var limit int32
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.Invalid("", "Invalid limit parameter"))
			return
		}
		limit = int32(n)
	}

	sessions, err := h.usage.ListSessions(r.Context(), account.ID, limit)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]chatSessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toChatSessionResponse(s))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": out,
	})
}

// UpdateMessages sets the session's running message total.
func (h *ChatHandler) UpdateMessages(w http.ResponseWriter, r *http.Request) {
	account := auth.GetAccount(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	sessionID := r.PathValue("sessionID")

	var req struct {
		MessageCount int32 `json:"message_count"`
	}
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.usage.UpdateMessageCount(r.Context(), account.ID, sessionID, req.MessageCount); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CompleteChat marks the session complete.
func (h *ChatHandler) CompleteChat(w http.ResponseWriter, r *http.Request) {
	account := auth.GetAccount(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	sessionID := r.PathValue("sessionID")

	if err := h.usage.CompleteSession(r.Context(), account.ID, sessionID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetStats returns lifetime usage statistics for the caller.
func (h *ChatHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	account := auth.GetAccount(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	stats, err := h.stats.GetChatStats(r.Context(), account.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats": map[string]interface{}{
			"tier":                  string(stats.Tier),
			"quota_used":            stats.QuotaUsed,
			"quota_limit":           stats.QuotaLimit,
			"quota_remaining":       stats.QuotaRemaining,
			"is_unlimited":          stats.IsUnlimited,
			"quota_reset_at":        stats.QuotaResetAt,
			"total_sessions":        stats.TotalSessions,
			"total_messages":        stats.TotalMessages,
			"avg_messages_per_chat": stats.AvgMessagesPerChat,
		},
	})
}
