package service

// In-memory fakes for the store interfaces so service tests run without a
// database. The fakes reproduce the conditional-update semantics the real
// queries rely on (rows-affected counts, unique violations, sql.ErrNoRows).

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verityair/concierge/internal/domain"
	"github.com/verityair/concierge/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ceiling(n int32) *int32 { return &n }

// =============================================================================
// Profile service fake
// =============================================================================

// fakeProfileService implements ProfileService with an overridable GetProfile.
// The other methods are no-ops; tests that need them use fakeProfileStore with
// the real profile service instead.
type fakeProfileService struct {
	getProfile func(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error)
}

func (f *fakeProfileService) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error) {
	return f.getProfile(ctx, userID)
}

func (f *fakeProfileService) UpgradeTier(ctx context.Context, userID uuid.UUID, newTier domain.SubscriptionTier, subscriptionRef string) error {
	return nil
}

func (f *fakeProfileService) CancelSubscription(ctx context.Context, userID uuid.UUID) error {
	return nil
}

func (f *fakeProfileService) ReactivateSubscription(ctx context.Context, userID uuid.UUID) error {
	return nil
}

func (f *fakeProfileService) SetStripeCustomer(ctx context.Context, userID uuid.UUID, customerID string) error {
	return nil
}

func (f *fakeProfileService) GetProfileByStripeCustomer(ctx context.Context, customerID string) (*domain.UserProfile, error) {
	return nil, domain.NotFound("profile.get_by_stripe_customer", "profile for billing customer", customerID)
}

func (f *fakeProfileService) SetStatus(ctx context.Context, userID uuid.UUID, status domain.SubscriptionStatus) error {
	return nil
}

// =============================================================================
// Quota store fake
// =============================================================================

// fakeQuotaStore holds quota state behind a mutex and performs the same
// conditional increment the SQL update does: consume only if quota remains.
type fakeQuotaStore struct {
	mu       sync.Mutex
	ceiling  *int32 // nil = unlimited
	consumed int32
	err      error
}

func (f *fakeQuotaStore) IncrementQuotaConsumed(ctx context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return 0, f.err
	}
	if f.ceiling != nil && f.consumed >= *f.ceiling {
		return 0, nil
	}
	f.consumed++
	return 1, nil
}

// snapshot returns a profile view of the current quota state, the way a
// profile read would observe it.
func (f *fakeQuotaStore) snapshot(userID uuid.UUID) *domain.UserProfile {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := &domain.UserProfile{
		UserID:        userID,
		Tier:          domain.TierExplorer,
		Status:        domain.SubscriptionStatusInactive,
		QuotaConsumed: f.consumed,
		QuotaResetAt:  time.Now().Add(time.Hour),
	}
	if f.ceiling != nil {
		c := *f.ceiling
		p.QuotaCeiling = &c
	}
	return p
}

// =============================================================================
// Usage store fake
// =============================================================================

type fakeUsageStore struct {
	mu        sync.Mutex
	sessions  map[string]repository.ChatSession
	createErr error
	updateErr error
}

func newFakeUsageStore() *fakeUsageStore {
	return &fakeUsageStore{sessions: make(map[string]repository.ChatSession)}
}

func (f *fakeUsageStore) CreateChatSession(ctx context.Context, userID uuid.UUID, sessionID string) (repository.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return repository.ChatSession{}, f.createErr
	}
	if _, ok := f.sessions[sessionID]; ok {
		return repository.ChatSession{}, errors.New(`duplicate key value violates unique constraint "chat_sessions_session_id_key"`)
	}

	row := repository.ChatSession{
		ID:            uuid.New(),
		SessionID:     sessionID,
		UserID:        userID,
		StartedAt:     time.Now(),
		LastMessageAt: time.Now(),
	}
	f.sessions[sessionID] = row
	return row, nil
}

func (f *fakeUsageStore) UpdateMessageCount(ctx context.Context, userID uuid.UUID, sessionID string, count int32) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return 0, f.updateErr
	}
	row, ok := f.sessions[sessionID]
	if !ok || row.UserID != userID {
		return 0, nil
	}
	if count > row.MessageCount {
		row.MessageCount = count
	}
	row.LastMessageAt = time.Now()
	f.sessions[sessionID] = row
	return 1, nil
}

func (f *fakeUsageStore) CompleteChatSession(ctx context.Context, userID uuid.UUID, sessionID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	row, ok := f.sessions[sessionID]
	if !ok || row.UserID != userID {
		return 0, nil
	}
	row.Completed = true
	f.sessions[sessionID] = row
	return 1, nil
}

func (f *fakeUsageStore) ListChatSessionsByUser(ctx context.Context, userID uuid.UUID, limit int32) ([]repository.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []repository.ChatSession
	for _, row := range f.sessions {
		if row.UserID == userID && int32(len(out)) < limit {
			out = append(out, row)
		}
	}
	return out, nil
}

// =============================================================================
// Stats store fake
// =============================================================================

type fakeStatsStore struct {
	sessions int64
	messages int64
	err      error
}

func (f *fakeStatsStore) AggregateChatUsage(ctx context.Context, userID uuid.UUID) (int64, int64, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	return f.sessions, f.messages, nil
}

// =============================================================================
// Profile store fake
// =============================================================================

// fakeProfileStore backs the real profile service in tests. Profiles are
// keyed by user ID; reads of absent users return sql.ErrNoRows like the real
// queries do.
type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]repository.UserProfile
	getErr   error
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{profiles: make(map[uuid.UUID]repository.UserProfile)}
}

func (f *fakeProfileStore) GetProfileByUserID(ctx context.Context, userID uuid.UUID) (repository.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return repository.UserProfile{}, f.getErr
	}
	row, ok := f.profiles[userID]
	if !ok {
		return repository.UserProfile{}, sql.ErrNoRows
	}
	return row, nil
}

func (f *fakeProfileStore) GetProfileByStripeCustomerID(ctx context.Context, customerID string) (repository.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, row := range f.profiles {
		if row.StripeCustomerID.Valid && row.StripeCustomerID.String == customerID {
			return row, nil
		}
	}
	return repository.UserProfile{}, sql.ErrNoRows
}

func (f *fakeProfileStore) CreateProfile(ctx context.Context, arg repository.CreateProfileParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.profiles[arg.UserID]; ok {
		return nil // ON CONFLICT DO NOTHING
	}
	f.profiles[arg.UserID] = repository.UserProfile{
		UserID:        arg.UserID,
		Tier:          arg.Tier,
		Status:        arg.Status,
		QuotaCeiling:  arg.QuotaCeiling,
		QuotaConsumed: arg.QuotaConsumed,
		QuotaResetAt:  arg.QuotaResetAt,
	}
	return nil
}

func (f *fakeProfileStore) ResetCycleIfExpired(ctx context.Context, userID uuid.UUID, newResetAt time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	row, ok := f.profiles[userID]
	if !ok || !row.QuotaResetAt.Before(time.Now()) {
		return 0, nil
	}
	row.QuotaConsumed = 0
	row.QuotaResetAt = newResetAt
	f.profiles[userID] = row
	return 1, nil
}

func (f *fakeProfileStore) UpdateSubscription(ctx context.Context, arg repository.UpdateSubscriptionParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	row := f.profiles[arg.UserID]
	row.UserID = arg.UserID
	row.Tier = arg.Tier
	row.Status = arg.Status
	row.QuotaCeiling = arg.QuotaCeiling
	row.QuotaConsumed = 0
	row.QuotaResetAt = arg.QuotaResetAt
	row.SubscriptionID = arg.SubscriptionID
	row.CancelAtEnd = false
	f.profiles[arg.UserID] = row
	return nil
}

func (f *fakeProfileStore) SetCancelAtPeriodEnd(ctx context.Context, userID uuid.UUID, cancel bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	row := f.profiles[userID]
	row.CancelAtEnd = cancel
	if cancel {
		row.Status = string(domain.SubscriptionStatusCanceled)
	} else {
		row.Status = string(domain.SubscriptionStatusActive)
	}
	f.profiles[userID] = row
	return nil
}

func (f *fakeProfileStore) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	row := f.profiles[userID]
	row.StripeCustomerID = sql.NullString{String: customerID, Valid: true}
	f.profiles[userID] = row
	return nil
}

func (f *fakeProfileStore) SetSubscriptionStatus(ctx context.Context, userID uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	row := f.profiles[userID]
	row.Status = status
	f.profiles[userID] = row
	return nil
}

// =============================================================================
// Account store fake
// =============================================================================

type fakeAccountStore struct {
	mu       sync.Mutex
	byEmail  map[string]repository.Account
	byID     map[uuid.UUID]repository.Account
	byToken  map[string]uuid.UUID
	storeErr error
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{
		byEmail: make(map[string]repository.Account),
		byID:    make(map[uuid.UUID]repository.Account),
		byToken: make(map[string]uuid.UUID),
	}
}

func (f *fakeAccountStore) CreateAccount(ctx context.Context, arg repository.CreateAccountParams) (repository.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.storeErr != nil {
		return repository.Account{}, f.storeErr
	}
	if _, ok := f.byEmail[arg.Email]; ok {
		return repository.Account{}, errors.New(`duplicate key value violates unique constraint "accounts_email_key"`)
	}

	row := repository.Account{
		ID:           uuid.New(),
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		Name:         arg.Name,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.byEmail[arg.Email] = row
	f.byID[row.ID] = row
	return row, nil
}

func (f *fakeAccountStore) GetAccountByEmail(ctx context.Context, email string) (repository.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	row, ok := f.byEmail[email]
	if !ok {
		return repository.Account{}, sql.ErrNoRows
	}
	return row, nil
}

func (f *fakeAccountStore) CreateAuthSession(ctx context.Context, arg repository.CreateAuthSessionParams) (repository.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.byToken[arg.TokenHash] = arg.UserID
	return repository.AuthSession{
		ID:        uuid.New(),
		UserID:    arg.UserID,
		TokenHash: arg.TokenHash,
		ExpiresAt: arg.ExpiresAt,
		CreatedAt: time.Now(),
	}, nil
}

func (f *fakeAccountStore) GetAccountByTokenHash(ctx context.Context, tokenHash string) (repository.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	userID, ok := f.byToken[tokenHash]
	if !ok {
		return repository.Account{}, sql.ErrNoRows
	}
	return f.byID[userID], nil
}

func (f *fakeAccountStore) DeleteAuthSession(ctx context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.byToken, tokenHash)
	return nil
}
