package service

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/verityair/concierge/internal/domain"
)

func newUsageFixture(quotaCeiling *int32) (UsageService, *fakeUsageStore, *fakeQuotaStore) {
	quotaStore := &fakeQuotaStore{ceiling: quotaCeiling}
	profiles := &fakeProfileService{
		getProfile: func(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error) {
			return quotaStore.snapshot(userID), nil
		},
	}
	quota := NewQuotaService(profiles, quotaStore, testLogger())
	store := newFakeUsageStore()
	return NewUsageService(quota, store, testLogger()), store, quotaStore
}

func TestStartChat_ConsumesQuotaAndOpensSession(t *testing.T) {
	svc, store, quotaStore := newUsageFixture(ceiling(2))
	userID := uuid.New()

	session, err := svc.StartChat(context.Background(), userID, "sess-abc123")
	if err != nil {
		t.Fatalf("start chat failed: %v", err)
	}

	if session.SessionID != "sess-abc123" {
		t.Errorf("unexpected session ID %q", session.SessionID)
	}
	if session.UserID != userID {
		t.Errorf("unexpected user ID %s", session.UserID)
	}
	if session.MessageCount != 0 {
		t.Errorf("new session should have zero messages, got %d", session.MessageCount)
	}
	if quotaStore.consumed != 1 {
		t.Errorf("expected 1 chat consumed, got %d", quotaStore.consumed)
	}
	if len(store.sessions) != 1 {
		t.Errorf("expected 1 ledger session, got %d", len(store.sessions))
	}
}

func TestStartChat_EmptySessionIDRejectedBeforeQuota(t *testing.T) {
	svc, _, quotaStore := newUsageFixture(ceiling(2))

	_, err := svc.StartChat(context.Background(), uuid.New(), "   ")
	if domain.ErrorCode(err) != domain.EINVALID {
		t.Fatalf("expected invalid error, got %v", err)
	}
	if quotaStore.consumed != 0 {
		t.Errorf("validation failure must not consume quota, got %d", quotaStore.consumed)
	}
}

func TestStartChat_QuotaDeniedWritesNoSession(t *testing.T) {
	svc, store, quotaStore := newUsageFixture(ceiling(1))
	userID := uuid.New()
	ctx := context.Background()

	if _, err := svc.StartChat(ctx, userID, "sess-1"); err != nil {
		t.Fatalf("first chat failed: %v", err)
	}

	_, err := svc.StartChat(ctx, userID, "sess-2")
	if domain.ErrorCode(err) != domain.EQUOTA {
		t.Fatalf("expected quota error, got %v", err)
	}

	// Quota runs first, so the denied chat leaves no ledger row behind.
	if len(store.sessions) != 1 {
		t.Errorf("expected 1 ledger session after denial, got %d", len(store.sessions))
	}
	if quotaStore.consumed != 1 {
		t.Errorf("expected 1 consumed after denial, got %d", quotaStore.consumed)
	}
}

func TestStartChat_DuplicateSessionIDConflicts(t *testing.T) {
	svc, _, _ := newUsageFixture(ceiling(10))
	userID := uuid.New()
	ctx := context.Background()

	if _, err := svc.StartChat(ctx, userID, "sess-dup"); err != nil {
		t.Fatalf("first chat failed: %v", err)
	}

	_, err := svc.StartChat(ctx, userID, "sess-dup")
	if domain.ErrorCode(err) != domain.ECONFLICT {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestUpdateMessageCount(t *testing.T) {
	svc, store, _ := newUsageFixture(ceiling(10))
	userID := uuid.New()
	ctx := context.Background()

	if _, err := svc.StartChat(ctx, userID, "sess-1"); err != nil {
		t.Fatalf("start chat failed: %v", err)
	}

	if err := svc.UpdateMessageCount(ctx, userID, "sess-1", 4); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if got := store.sessions["sess-1"].MessageCount; got != 4 {
		t.Errorf("expected count 4, got %d", got)
	}

	// Counts never move backwards; a stale lower report is absorbed.
	if err := svc.UpdateMessageCount(ctx, userID, "sess-1", 2); err != nil {
		t.Fatalf("stale update failed: %v", err)
	}
	if got := store.sessions["sess-1"].MessageCount; got != 4 {
		t.Errorf("count regressed to %d", got)
	}
}

func TestUpdateMessageCount_Validation(t *testing.T) {
	svc, _, _ := newUsageFixture(ceiling(10))
	userID := uuid.New()
	ctx := context.Background()

	err := svc.UpdateMessageCount(ctx, userID, "sess-1", -1)
	if domain.ErrorCode(err) != domain.EINVALID {
		t.Errorf("expected invalid error for negative count, got %v", err)
	}

	err = svc.UpdateMessageCount(ctx, userID, "no-such-session", 3)
	if domain.ErrorCode(err) != domain.ENOTFOUND {
		t.Errorf("expected not found for unknown session, got %v", err)
	}
}

func TestUpdateMessageCount_OtherUsersSessionIsNotFound(t *testing.T) {
	svc, store, _ := newUsageFixture(ceiling(10))
	owner := uuid.New()
	intruder := uuid.New()
	ctx := context.Background()

	if _, err := svc.StartChat(ctx, owner, "sess-owned"); err != nil {
		t.Fatalf("start chat failed: %v", err)
	}
	if err := svc.UpdateMessageCount(ctx, owner, "sess-owned", 3); err != nil {
		t.Fatalf("owner update failed: %v", err)
	}

	// Another authenticated user who knows the session ID cannot touch it,
	// and the response does not reveal that the session exists.
	err := svc.UpdateMessageCount(ctx, intruder, "sess-owned", 25)
	if domain.ErrorCode(err) != domain.ENOTFOUND {
		t.Fatalf("expected not found for another user's session, got %v", err)
	}
	if got := store.sessions["sess-owned"].MessageCount; got != 3 {
		t.Errorf("count changed by a non-owner: %d", got)
	}
}

func TestCompleteSession_OtherUsersSessionIsNotFound(t *testing.T) {
	svc, store, _ := newUsageFixture(ceiling(10))
	owner := uuid.New()
	intruder := uuid.New()
	ctx := context.Background()

	if _, err := svc.StartChat(ctx, owner, "sess-owned"); err != nil {
		t.Fatalf("start chat failed: %v", err)
	}

	err := svc.CompleteSession(ctx, intruder, "sess-owned")
	if domain.ErrorCode(err) != domain.ENOTFOUND {
		t.Fatalf("expected not found for another user's session, got %v", err)
	}
	if store.sessions["sess-owned"].Completed {
		t.Error("session completed by a non-owner")
	}
}

func TestCompleteSession(t *testing.T) {
	svc, store, _ := newUsageFixture(ceiling(10))
	userID := uuid.New()
	ctx := context.Background()

	if _, err := svc.StartChat(ctx, userID, "sess-1"); err != nil {
		t.Fatalf("start chat failed: %v", err)
	}

	if err := svc.CompleteSession(ctx, userID, "sess-1"); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if !store.sessions["sess-1"].Completed {
		t.Error("session should be marked completed")
	}

	// Late count updates after completion are still accepted.
	if err := svc.UpdateMessageCount(ctx, userID, "sess-1", 25); err != nil {
		t.Errorf("post-completion update failed: %v", err)
	}

	err := svc.CompleteSession(ctx, userID, "no-such-session")
	if domain.ErrorCode(err) != domain.ENOTFOUND {
		t.Errorf("expected not found for unknown session, got %v", err)
	}
}

func TestListSessions(t *testing.T) {
	svc, _, _ := newUsageFixture(ceiling(10))
	userID := uuid.New()
	other := uuid.New()
	ctx := context.Background()

	for _, id := range []string{"sess-1", "sess-2", "sess-3"} {
		if _, err := svc.StartChat(ctx, userID, id); err != nil {
			t.Fatalf("start chat %s failed: %v", id, err)
		}
	}
	if _, err := svc.StartChat(ctx, other, "sess-other"); err != nil {
		t.Fatalf("start chat failed: %v", err)
	}

	sessions, err := svc.ListSessions(ctx, userID, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(sessions) != 3 {
		t.Errorf("expected 3 sessions, got %d", len(sessions))
	}
	for _, s := range sessions {
		if s.UserID != userID {
			t.Errorf("listed a session for the wrong user: %s", s.UserID)
		}
	}
}
