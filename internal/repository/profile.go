package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const profileColumns = `user_id, tier, status, quota_ceiling, quota_consumed, quota_reset_at,
	stripe_customer_id, subscription_id, cancel_at_end, created_at, updated_at`

func scanProfile(row *sql.Row) (UserProfile, error) {
	var p UserProfile
	err := row.Scan(
		&p.UserID, &p.Tier, &p.Status, &p.QuotaCeiling, &p.QuotaConsumed, &p.QuotaResetAt,
		&p.StripeCustomerID, &p.SubscriptionID, &p.CancelAtEnd, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// GetProfileByUserID fetches a single profile. Returns sql.ErrNoRows if the
// user has no profile yet.
func (q *Queries) GetProfileByUserID(ctx context.Context, userID uuid.UUID) (UserProfile, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM user_profiles WHERE user_id = $1`, userID)
	return scanProfile(row)
}

// GetProfileByStripeCustomerID fetches a profile by its Stripe customer
// reference. Used by the billing webhook handler.
func (q *Queries) GetProfileByStripeCustomerID(ctx context.Context, customerID string) (UserProfile, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM user_profiles WHERE stripe_customer_id = $1`, customerID)
	return scanProfile(row)
}

// CreateProfileParams are the fields for a new profile row.
type CreateProfileParams struct {
	UserID        uuid.UUID
	Tier          string
	Status        string
	QuotaCeiling  sql.NullInt32
	QuotaConsumed int32
	QuotaResetAt  time.Time
}

// CreateProfile inserts a profile row. The insert is a no-op if a profile
// already exists for the user, so a lost fetch-or-create race is harmless;
// callers re-fetch after inserting.
func (q *Queries) CreateProfile(ctx context.Context, arg CreateProfileParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, tier, status, quota_ceiling, quota_consumed, quota_reset_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO NOTHING`,
		arg.UserID, arg.Tier, arg.Status, arg.QuotaCeiling, arg.QuotaConsumed, arg.QuotaResetAt,
	)
	return err
}

// IncrementQuotaConsumed performs the conditional quota increment: consume one
// chat only if quota remains. This is the single place the consumed <= ceiling
// invariant is enforced, and it must stay a one-statement conditional update
// so two racing chat starts cannot both pass.
//
// Returns the number of rows updated: 1 on success, 0 when no quota remained
// at commit time.
func (q *Queries) IncrementQuotaConsumed(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE user_profiles
		SET quota_consumed = quota_consumed + 1, updated_at = now()
		WHERE user_id = $1
		  AND (quota_ceiling IS NULL OR quota_consumed < quota_ceiling)`,
		userID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AddQuotaCeiling raises the quota ceiling by the given amount as a single
// additive update. Unlimited profiles (NULL ceiling) are left untouched.
// Returns the number of rows updated.
func (q *Queries) AddQuotaCeiling(ctx context.Context, userID uuid.UUID, chats int32) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE user_profiles
		SET quota_ceiling = quota_ceiling + $2, updated_at = now()
		WHERE user_id = $1 AND quota_ceiling IS NOT NULL`,
		userID, chats,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateSubscriptionParams are the fields written on a tier change.
type UpdateSubscriptionParams struct {
	UserID         uuid.UUID
	Tier           string
	Status         string
	QuotaCeiling   sql.NullInt32
	QuotaResetAt   time.Time
	SubscriptionID sql.NullString
}

// UpdateSubscription applies a tier change: new tier, ceiling, and billing
// reference, with consumption zeroed and a fresh cycle window.
func (q *Queries) UpdateSubscription(ctx context.Context, arg UpdateSubscriptionParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE user_profiles
		SET tier = $2, status = $3, quota_ceiling = $4, quota_consumed = 0,
		    quota_reset_at = $5, subscription_id = $6, cancel_at_end = false, updated_at = now()
		WHERE user_id = $1`,
		arg.UserID, arg.Tier, arg.Status, arg.QuotaCeiling, arg.QuotaResetAt, arg.SubscriptionID,
	)
	return err
}

// SetCancelAtPeriodEnd flags the subscription as canceling, or clears the
// flag on reactivation. Quota is untouched either way; the billing webhook
// finishes the downgrade at period end if the cancel stands.
func (q *Queries) SetCancelAtPeriodEnd(ctx context.Context, userID uuid.UUID, cancel bool) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE user_profiles
		SET cancel_at_end = $2, status = CASE WHEN $2 THEN 'canceled' ELSE 'active' END, updated_at = now()
		WHERE user_id = $1`,
		userID, cancel,
	)
	return err
}

// SetSubscriptionStatus updates only the subscription status. Used by webhook
// payment events (past_due on failure, active on recovery) where tier and
// quota must not change.
func (q *Queries) SetSubscriptionStatus(ctx context.Context, userID uuid.UUID, status string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE user_profiles SET status = $2, updated_at = now() WHERE user_id = $1`,
		userID, status,
	)
	return err
}

// SetStripeCustomerID saves the billing customer reference for a user.
func (q *Queries) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE user_profiles SET stripe_customer_id = $2, updated_at = now() WHERE user_id = $1`,
		userID, customerID,
	)
	return err
}

// ResetCycleIfExpired zeroes consumption and advances the reset window, but
// only when the stored reset timestamp has actually passed. The condition
// makes concurrent lazy resets idempotent: the first one wins, later ones see
// a future timestamp and update nothing.
func (q *Queries) ResetCycleIfExpired(ctx context.Context, userID uuid.UUID, newResetAt time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE user_profiles
		SET quota_consumed = 0, quota_reset_at = $2, updated_at = now()
		WHERE user_id = $1 AND quota_reset_at < now()`,
		userID, newResetAt,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResetExpiredCycles is the bulk variant used by the maintenance worker as a
// backstop for profiles nobody has read since their cycle lapsed. The new
// window length follows the tier: 30 days for paid tiers, 365 for explorer.
func (q *Queries) ResetExpiredCycles(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE user_profiles
		SET quota_consumed = 0,
		    quota_reset_at = now() + (CASE WHEN tier = 'explorer' THEN 365 ELSE 30 END) * interval '1 day',
		    updated_at = now()
		WHERE quota_reset_at < now()`,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
