// Package service contains the business logic layer.
//
// This file implements the stats aggregator: display-only lifetime statistics
// combining the current profile with a scan of the user's session history.
package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/verityair/concierge/internal/domain"
)

// =============================================================================
// Interface Definition
// =============================================================================

// StatsService computes display-only usage statistics. Pure read.
type StatsService interface {
	// GetChatStats combines profile quota fields with lifetime ledger
	// aggregates. Tolerant of an empty session history: averages are 0, not
	// a division error.
	GetChatStats(ctx context.Context, userID uuid.UUID) (*domain.ChatStats, error)
}

// StatsStore is the subset of repository queries the stats service needs.
type StatsStore interface {
	AggregateChatUsage(ctx context.Context, userID uuid.UUID) (sessions, messages int64, err error)
}

// =============================================================================
// Implementation
// =============================================================================

type statsService struct {
	profiles ProfileService
	store    StatsStore
	logger   *slog.Logger
}

// NewStatsService creates a new StatsService.
func NewStatsService(profiles ProfileService, store StatsStore, logger *slog.Logger) StatsService {
	return &statsService{
		profiles: profiles,
		store:    store,
		logger:   logger,
	}
}

func (s *statsService) GetChatStats(ctx context.Context, userID uuid.UUID) (*domain.ChatStats, error) {
	const op = "stats.get"

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	sessions, messages, err := s.store.AggregateChatUsage(ctx, userID)
	if err != nil {
		return nil, domain.Unavailable(err, op, "Usage statistics unavailable")
	}

	stats := &domain.ChatStats{
		Tier:               profile.Tier,
		QuotaUsed:          profile.QuotaConsumed,
		QuotaRemaining:     profile.Remaining(),
		IsUnlimited:        profile.IsUnlimited(),
		QuotaResetAt:       profile.QuotaResetAt,
		TotalSessions:      sessions,
		TotalMessages:      messages,
		AvgMessagesPerChat: domain.AverageMessages(messages, sessions),
	}
	if profile.QuotaCeiling != nil {
		stats.QuotaLimit = *profile.QuotaCeiling
	}
	return stats, nil
}
