// Package service contains the business logic layer.
//
// This file implements the quota service: the advisory gate check and the
// committing conditional increment that together decide whether a new
// concierge chat may start.
package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/verityair/concierge/internal/domain"
	"github.com/verityair/concierge/internal/metrics"
)

// =============================================================================
// Interface Definition
// =============================================================================

// QuotaService answers "can this user start a new chat right now?" and
// commits quota consumption.
type QuotaService interface {
	// CanStartChat evaluates the quota gate against a freshly fetched
	// profile. The decision is advisory: it can go stale between the check
	// and the commit, so IncrementUsage re-checks at the persistence layer.
	CanStartChat(ctx context.Context, userID uuid.UUID) (domain.GateDecision, error)

	// IncrementUsage consumes one chat from the user's quota. The increment
	// is a single conditional update at the persistence layer ("increment
	// only if consumed < ceiling"), so two racing chat starts cannot push
	// consumption past the ceiling.
	// Returns domain.EQUOTA if no quota remained at commit time, even when
	// an earlier gate check passed.
	// Returns domain.EUNAVAILABLE if the commit could not be confirmed; the
	// caller must surface this and must not fall back to allowing the chat.
	IncrementUsage(ctx context.Context, userID uuid.UUID) error
}

// QuotaStore is the subset of repository queries the quota service needs.
type QuotaStore interface {
	IncrementQuotaConsumed(ctx context.Context, userID uuid.UUID) (int64, error)
}

// =============================================================================
// Implementation
// =============================================================================

type quotaService struct {
	profiles ProfileService
	store    QuotaStore
	logger   *slog.Logger
}

// NewQuotaService creates a new QuotaService.
func NewQuotaService(profiles ProfileService, store QuotaStore, logger *slog.Logger) QuotaService {
	return &quotaService{
		profiles: profiles,
		store:    store,
		logger:   logger,
	}
}

func (s *quotaService) CanStartChat(ctx context.Context, userID uuid.UUID) (domain.GateDecision, error) {
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return domain.GateDecision{}, err
	}
	return domain.CanStartChat(profile), nil
}

func (s *quotaService) IncrementUsage(ctx context.Context, userID uuid.UUID) error {
	const op = "quota.increment"

	// Re-fetch and re-check immediately before committing so a stale
	// decision from an earlier advisory check is never acted on.
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return err
	}

	if gate := domain.CanStartChat(profile); !gate.Allowed {
		metrics.QuotaDenied.Inc()
		s.logger.Info("chat quota exhausted",
			"user_id", userID,
			"tier", profile.Tier,
			"consumed", profile.QuotaConsumed,
		)
		return domain.QuotaExceeded(op, profile.QuotaConsumed, ceilingOf(profile))
	}

	rows, err := s.store.IncrementQuotaConsumed(ctx, userID)
	if err != nil {
		// Ambiguous outcome. Never retry automatically: a retry after an
		// ambiguous failure could double-increment usage.
		return domain.Unavailable(err, op, "Could not confirm chat start")
	}
	if rows == 0 {
		// Lost the race: another chat start consumed the last slot between
		// the advisory check and this commit.
		metrics.QuotaDenied.Inc()
		s.logger.Info("conditional increment found no remaining quota",
			"user_id", userID,
			"tier", profile.Tier,
		)
		return domain.QuotaExceeded(op, profile.QuotaConsumed, ceilingOf(profile))
	}

	metrics.ChatsStarted.Inc()
	return nil
}

func ceilingOf(p *domain.UserProfile) int32 {
	if p.QuotaCeiling == nil {
		return 0
	}
	return *p.QuotaCeiling
}
