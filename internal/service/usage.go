// Package service contains the business logic layer.
//
// This file implements the usage ledger: per-session message bookkeeping for
// concierge chats. The ledger stores what the chat client reports; the
// 25-message ceiling is enforced client-side, and the ledger only guarantees
// that counts never move backwards.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/verityair/concierge/internal/domain"
	"github.com/verityair/concierge/internal/metrics"
	"github.com/verityair/concierge/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// UsageService records and updates per-session chat activity.
type UsageService interface {
	// StartChat consumes one chat from the user's quota and opens a ledger
	// session, in that order, so a ledger session exists only for
	// quota-approved chats.
	// Returns domain.EQUOTA when no quota remains, domain.ECONFLICT when the
	// session ID was already used.
	StartChat(ctx context.Context, userID uuid.UUID, sessionID string) (*domain.ChatSession, error)

	// UpdateMessageCount sets the session's running message total. The
	// caller computes the total (user plus assistant messages); the ledger
	// does not count messages itself. Counts never decrease. Writes are
	// scoped to the session owner.
	// Returns domain.ENOTFOUND for an unknown session or one owned by
	// another user.
	UpdateMessageCount(ctx context.Context, userID uuid.UUID, sessionID string, count int32) error

	// CompleteSession marks the session complete. Invoked by the caller once
	// the message ceiling is reached; later UpdateMessageCount calls are
	// still accepted. Writes are scoped to the session owner.
	CompleteSession(ctx context.Context, userID uuid.UUID, sessionID string) error

	// ListSessions returns the user's most recent sessions.
	ListSessions(ctx context.Context, userID uuid.UUID, limit int32) ([]*domain.ChatSession, error)
}

// UsageStore is the subset of repository queries the usage service needs.
type UsageStore interface {
	CreateChatSession(ctx context.Context, userID uuid.UUID, sessionID string) (repository.ChatSession, error)
	UpdateMessageCount(ctx context.Context, userID uuid.UUID, sessionID string, count int32) (int64, error)
	CompleteChatSession(ctx context.Context, userID uuid.UUID, sessionID string) (int64, error)
	ListChatSessionsByUser(ctx context.Context, userID uuid.UUID, limit int32) ([]repository.ChatSession, error)
}

// =============================================================================
// Implementation
// =============================================================================

type usageService struct {
	quota  QuotaService
	store  UsageStore
	logger *slog.Logger
}

// NewUsageService creates a new UsageService.
func NewUsageService(quota QuotaService, store UsageStore, logger *slog.Logger) UsageService {
	return &usageService{
		quota:  quota,
		store:  store,
		logger: logger,
	}
}

func (s *usageService) StartChat(ctx context.Context, userID uuid.UUID, sessionID string) (*domain.ChatSession, error) {
	const op = "usage.start_chat"

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.Invalid(op, "Session ID is required")
	}

	// Quota first. The ledger insert only happens for approved chats.
	if err := s.quota.IncrementUsage(ctx, userID); err != nil {
		return nil, err
	}

	row, err := s.store.CreateChatSession(ctx, userID, sessionID)
	if err != nil {
		if isUniqueViolation(err) {
			// Duplicate session ID. The quota slot is already consumed;
			// surfacing the conflict beats silently reusing the session.
			return nil, domain.Conflict(op, "Session ID already in use")
		}
		return nil, domain.Internal(err, op, "Failed to record chat session")
	}

	s.logger.Info("chat session started", "user_id", userID, "session_id", sessionID)
	return sessionRowToDomain(row), nil
}

func (s *usageService) UpdateMessageCount(ctx context.Context, userID uuid.UUID, sessionID string, count int32) error {
	const op = "usage.update_message_count"

	if count < 0 {
		return domain.Invalid(op, "Message count cannot be negative")
	}

	// The owner scope doubles as the existence check: a session belonging to
	// another user is indistinguishable from an unknown one.
	rows, err := s.store.UpdateMessageCount(ctx, userID, sessionID, count)
	if err != nil {
		return domain.Internal(err, op, "Failed to update message count")
	}
	if rows == 0 {
		return domain.NotFound(op, "chat session", sessionID)
	}
	return nil
}

func (s *usageService) CompleteSession(ctx context.Context, userID uuid.UUID, sessionID string) error {
	const op = "usage.complete_session"

	rows, err := s.store.CompleteChatSession(ctx, userID, sessionID)
	if err != nil {
		return domain.Internal(err, op, "Failed to complete session")
	}
	if rows == 0 {
		return domain.NotFound(op, "chat session", sessionID)
	}

	metrics.SessionsCompleted.Inc()
	s.logger.Info("chat session completed", "session_id", sessionID)
	return nil
}

func (s *usageService) ListSessions(ctx context.Context, userID uuid.UUID, limit int32) ([]*domain.ChatSession, error) {
	const op = "usage.list_sessions"

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := s.store.ListChatSessionsByUser(ctx, userID, limit)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Internal(err, op, "Failed to list chat sessions")
	}

	sessions := make([]*domain.ChatSession, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, sessionRowToDomain(row))
	}
	return sessions, nil
}

// =============================================================================
// Helpers
// =============================================================================

func sessionRowToDomain(row repository.ChatSession) *domain.ChatSession {
	return &domain.ChatSession{
		ID:            row.ID,
		SessionID:     row.SessionID,
		UserID:        row.UserID,
		MessageCount:  row.MessageCount,
		Completed:     row.Completed,
		StartedAt:     row.StartedAt,
		LastMessageAt: row.LastMessageAt,
	}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
