// Package domain contains core business types and interfaces.
//
// This file defines the UserProfile type that tracks a user's subscription
// tier and concierge chat quota for the current billing cycle. The profile is
// the single source of truth for quota decisions; every call site goes through
// the profile service rather than caching quota numbers locally.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the possible states of a user's subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// SubscriptionTier represents the pricing tier of a subscription.
type SubscriptionTier string

const (
	TierExplorer SubscriptionTier = "explorer"
	TierStarter  SubscriptionTier = "starter"
	TierPro      SubscriptionTier = "pro"
	TierBusiness SubscriptionTier = "business"
	TierElite    SubscriptionTier = "elite"
)

const (
	// ExplorerQuotaCeiling is the free-tier chat allowance. New profiles are
	// created on the explorer tier with this ceiling.
	ExplorerQuotaCeiling int32 = 2

	// BillingCycle is the length of one quota cycle for paid tiers.
	BillingCycle = 30 * 24 * time.Hour

	// ExplorerCycle is the reset horizon for free profiles. The free allowance
	// does not renew monthly, so the reset is pushed far into the future.
	ExplorerCycle = 365 * 24 * time.Hour
)

// UserProfile tracks subscription and quota state for one user.
//
// QuotaCeiling is nil for unlimited profiles (elite tier only). QuotaConsumed
// is monotonically increasing within a cycle and resets to zero when the cycle
// rolls over or the user upgrades tiers. The invariant consumed <= ceiling is
// enforced at the persistence layer by a conditional increment; a profile read
// that somehow observes consumed > ceiling must report zero remaining, never a
// negative number.
type UserProfile struct {
	UserID           uuid.UUID
	Tier             SubscriptionTier
	Status           SubscriptionStatus
	QuotaCeiling     *int32 // nil = unlimited
	QuotaConsumed    int32
	QuotaResetAt     time.Time
	StripeCustomerID string
	SubscriptionID   string
	CancelAtEnd      bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsUnlimited returns true if the profile has no quota ceiling.
func (p *UserProfile) IsUnlimited() bool {
	return p.QuotaCeiling == nil
}

// Remaining returns the number of chats left in the current cycle.
// Unlimited profiles return -1. Over-ceiling states clamp to zero.
func (p *UserProfile) Remaining() int32 {
	if p.QuotaCeiling == nil {
		return -1
	}
	if p.QuotaConsumed >= *p.QuotaCeiling {
		return 0
	}
	return *p.QuotaCeiling - p.QuotaConsumed
}

// CycleExpired returns true if the quota reset timestamp has passed.
func (p *UserProfile) CycleExpired(now time.Time) bool {
	return now.After(p.QuotaResetAt)
}

// NewExplorerProfile returns the default profile synthesized on first read
// for a user with no existing record.
func NewExplorerProfile(userID uuid.UUID, now time.Time) *UserProfile {
	ceiling := ExplorerQuotaCeiling
	return &UserProfile{
		UserID:        userID,
		Tier:          TierExplorer,
		Status:        SubscriptionStatusInactive,
		QuotaCeiling:  &ceiling,
		QuotaConsumed: 0,
		QuotaResetAt:  now.Add(ExplorerCycle),
	}
}

// GateDecision is the result of the quota gate check.
type GateDecision struct {
	Allowed   bool
	Unlimited bool
	Remaining int32 // -1 when unlimited
}

// CanStartChat answers "may this user start a new chat right now?" from a
// profile snapshot. Pure function with no side effects; the decision is
// advisory and must be re-checked by the conditional increment at commit time,
// since a snapshot can go stale between the check and the commit.
func CanStartChat(p *UserProfile) GateDecision {
	if p.IsUnlimited() {
		return GateDecision{Allowed: true, Unlimited: true, Remaining: -1}
	}
	remaining := p.Remaining()
	return GateDecision{
		Allowed:   remaining > 0,
		Remaining: remaining,
	}
}
