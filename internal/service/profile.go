// Package service contains the business logic layer.
//
// Services orchestrate interactions between the repository, the tier catalog,
// and domain logic. They are responsible for:
// - Input validation
// - Business rule enforcement
// - Error translation (database errors -> domain errors)
//
// Database failures on profile and quota paths are translated to EUNAVAILABLE
// rather than EINTERNAL: callers must treat them as "quota status unknown",
// never as quota exhausted or quota available.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/verityair/concierge/internal/catalog"
	"github.com/verityair/concierge/internal/domain"
	"github.com/verityair/concierge/internal/metrics"
	"github.com/verityair/concierge/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ProfileService defines operations on the per-user quota profile. The
// profile is the single source of truth for quota state; call sites must not
// cache and locally mutate quota numbers.
type ProfileService interface {
	// GetProfile returns the user's profile, synthesizing and persisting a
	// default explorer profile on first read. An expired quota cycle is reset
	// lazily before the profile is returned.
	// Returns domain.EUNAUTHORIZED for a zero user ID.
	// Returns domain.EUNAVAILABLE when the persistence layer is unreachable.
	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error)

	// UpgradeTier moves the user to a new tier: overwrites tier and ceiling
	// from the catalog, zeroes consumption, opens a fresh 30-day cycle, and
	// stores the billing subscription reference.
	// Returns domain.EINVALID if the tier is not in the catalog.
	UpgradeTier(ctx context.Context, userID uuid.UUID, newTier domain.SubscriptionTier, subscriptionRef string) error

	// CancelSubscription marks the subscription canceled-at-period-end.
	// Quota is not reset; the billing webhook finishes the downgrade when the
	// period lapses.
	CancelSubscription(ctx context.Context, userID uuid.UUID) error

	// ReactivateSubscription clears the cancel-at-period-end flag and
	// restores active status. Quota is untouched.
	ReactivateSubscription(ctx context.Context, userID uuid.UUID) error

	// SetStripeCustomer saves the billing customer reference for a user.
	SetStripeCustomer(ctx context.Context, userID uuid.UUID, customerID string) error

	// GetProfileByStripeCustomer resolves a billing customer reference to its
	// profile. Used by the billing webhook, which only knows the customer ID.
	// Returns domain.ENOTFOUND for an unknown customer.
	GetProfileByStripeCustomer(ctx context.Context, customerID string) (*domain.UserProfile, error)

	// SetStatus updates only the subscription status, leaving tier and quota
	// untouched. Used for past_due transitions and their recovery.
	SetStatus(ctx context.Context, userID uuid.UUID, status domain.SubscriptionStatus) error
}

// ProfileStore is the subset of repository queries the profile service needs.
// Satisfied by *repository.Queries; faked in tests.
type ProfileStore interface {
	GetProfileByUserID(ctx context.Context, userID uuid.UUID) (repository.UserProfile, error)
	GetProfileByStripeCustomerID(ctx context.Context, customerID string) (repository.UserProfile, error)
	CreateProfile(ctx context.Context, arg repository.CreateProfileParams) error
	ResetCycleIfExpired(ctx context.Context, userID uuid.UUID, newResetAt time.Time) (int64, error)
	UpdateSubscription(ctx context.Context, arg repository.UpdateSubscriptionParams) error
	SetCancelAtPeriodEnd(ctx context.Context, userID uuid.UUID, cancel bool) error
	SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error
	SetSubscriptionStatus(ctx context.Context, userID uuid.UUID, status string) error
}

// =============================================================================
// Implementation
// =============================================================================

type profileService struct {
	store  ProfileStore
	logger *slog.Logger
	now    func() time.Time
}

// NewProfileService creates a new ProfileService.
func NewProfileService(store ProfileStore, logger *slog.Logger) ProfileService {
	return &profileService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (s *profileService) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error) {
	const op = "profile.get"

	if userID == uuid.Nil {
		return nil, domain.Unauthorized(op, "Authentication required")
	}

	row, err := s.store.GetProfileByUserID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		row, err = s.createDefaultProfile(ctx, userID)
	}
	if err != nil {
		return nil, domain.Unavailable(err, op, "Quota status unavailable")
	}

	profile := profileRowToDomain(row)

	// Lazy cycle reset: zero consumption and advance the window when the
	// stored reset timestamp has passed. The update is conditional on the
	// timestamp so concurrent readers cannot double-advance the window.
	if profile.CycleExpired(s.now()) {
		if err := s.resetCycle(ctx, profile); err != nil {
			return nil, err
		}
		row, err = s.store.GetProfileByUserID(ctx, userID)
		if err != nil {
			return nil, domain.Unavailable(err, op, "Quota status unavailable")
		}
		profile = profileRowToDomain(row)
	}

	return profile, nil
}

// createDefaultProfile persists the explorer default and re-fetches it.
// The insert ignores conflicts, so losing a create race to another request
// still converges on one profile row.
func (s *profileService) createDefaultProfile(ctx context.Context, userID uuid.UUID) (repository.UserProfile, error) {
	def := domain.NewExplorerProfile(userID, s.now())
	err := s.store.CreateProfile(ctx, repository.CreateProfileParams{
		UserID:        def.UserID,
		Tier:          string(def.Tier),
		Status:        string(def.Status),
		QuotaCeiling:  sql.NullInt32{Int32: *def.QuotaCeiling, Valid: true},
		QuotaConsumed: 0,
		QuotaResetAt:  def.QuotaResetAt,
	})
	if err != nil {
		return repository.UserProfile{}, err
	}

	s.logger.Info("default profile created", "user_id", userID, "tier", def.Tier)
	return s.store.GetProfileByUserID(ctx, userID)
}

func (s *profileService) resetCycle(ctx context.Context, profile *domain.UserProfile) error {
	const op = "profile.reset_cycle"

	cycle := domain.BillingCycle
	if profile.Tier == domain.TierExplorer {
		cycle = domain.ExplorerCycle
	}

	rows, err := s.store.ResetCycleIfExpired(ctx, profile.UserID, s.now().Add(cycle))
	if err != nil {
		return domain.Unavailable(err, op, "Quota status unavailable")
	}
	if rows > 0 {
		metrics.CyclesReset.Inc()
		s.logger.Info("quota cycle reset", "user_id", profile.UserID, "tier", profile.Tier)
	}
	return nil
}

func (s *profileService) UpgradeTier(ctx context.Context, userID uuid.UUID, newTier domain.SubscriptionTier, subscriptionRef string) error {
	const op = "profile.upgrade_tier"

	tier := catalog.GetTier(newTier)
	if tier == nil {
		return domain.Invalid(op, "Unknown subscription tier")
	}

	// Ensure the profile row exists before the overwrite.
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return err
	}

	var ceiling sql.NullInt32
	if tier.QuotaCeiling != nil {
		ceiling = sql.NullInt32{Int32: *tier.QuotaCeiling, Valid: true}
	}

	status := domain.SubscriptionStatusActive
	cycle := domain.BillingCycle
	if newTier == domain.TierExplorer {
		// Downgrade back to the free tier (subscription lapsed or deleted).
		status = domain.SubscriptionStatusInactive
		cycle = domain.ExplorerCycle
	}

	err := s.store.UpdateSubscription(ctx, repository.UpdateSubscriptionParams{
		UserID:         userID,
		Tier:           string(newTier),
		Status:         string(status),
		QuotaCeiling:   ceiling,
		QuotaResetAt:   s.now().Add(cycle),
		SubscriptionID: toNullString(subscriptionRef),
	})
	if err != nil {
		return domain.Unavailable(err, op, "Failed to update subscription")
	}

	metrics.TierChanges.WithLabelValues(string(newTier)).Inc()
	s.logger.Info("tier updated", "user_id", userID, "tier", newTier)
	return nil
}

func (s *profileService) CancelSubscription(ctx context.Context, userID uuid.UUID) error {
	const op = "profile.cancel_subscription"

	if err := s.store.SetCancelAtPeriodEnd(ctx, userID, true); err != nil {
		return domain.Unavailable(err, op, "Failed to cancel subscription")
	}

	s.logger.Info("subscription set to cancel at period end", "user_id", userID)
	return nil
}

func (s *profileService) ReactivateSubscription(ctx context.Context, userID uuid.UUID) error {
	const op = "profile.reactivate_subscription"

	if err := s.store.SetCancelAtPeriodEnd(ctx, userID, false); err != nil {
		return domain.Unavailable(err, op, "Failed to reactivate subscription")
	}

	s.logger.Info("subscription reactivated", "user_id", userID)
	return nil
}

func (s *profileService) SetStripeCustomer(ctx context.Context, userID uuid.UUID, customerID string) error {
	const op = "profile.set_stripe_customer"

	if err := s.store.SetStripeCustomerID(ctx, userID, customerID); err != nil {
		return domain.Unavailable(err, op, "Failed to save billing customer")
	}
	return nil
}

func (s *profileService) GetProfileByStripeCustomer(ctx context.Context, customerID string) (*domain.UserProfile, error) {
	const op = "profile.get_by_stripe_customer"

	row, err := s.store.GetProfileByStripeCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "profile for billing customer", customerID)
		}
		return nil, domain.Unavailable(err, op, "Quota status unavailable")
	}
	return profileRowToDomain(row), nil
}

func (s *profileService) SetStatus(ctx context.Context, userID uuid.UUID, status domain.SubscriptionStatus) error {
	const op = "profile.set_status"

	if err := s.store.SetSubscriptionStatus(ctx, userID, string(status)); err != nil {
		return domain.Unavailable(err, op, "Failed to update subscription status")
	}

	s.logger.Info("subscription status updated", "user_id", userID, "status", status)
	return nil
}

// =============================================================================
// Conversion helpers from repository types
// =============================================================================

func profileRowToDomain(row repository.UserProfile) *domain.UserProfile {
	p := &domain.UserProfile{
		UserID:           row.UserID,
		Tier:             domain.SubscriptionTier(row.Tier),
		Status:           domain.SubscriptionStatus(row.Status),
		QuotaConsumed:    row.QuotaConsumed,
		QuotaResetAt:     row.QuotaResetAt,
		StripeCustomerID: row.StripeCustomerID.String,
		SubscriptionID:   row.SubscriptionID.String,
		CancelAtEnd:      row.CancelAtEnd,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
	if row.QuotaCeiling.Valid {
		ceiling := row.QuotaCeiling.Int32
		p.QuotaCeiling = &ceiling
	}
	return p
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
