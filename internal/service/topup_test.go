package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/verityair/concierge/internal/domain"
)

// newTopUpFixture wires a top-up service without a database; only the
// validation paths that reject before the transaction can be exercised here.
func newTopUpFixture(profile *domain.UserProfile) TopUpService {
	profiles := &fakeProfileService{
		getProfile: func(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error) {
			return profile, nil
		},
	}
	return NewTopUpService(nil, nil, profiles, testLogger())
}

func limitedProfile(userID uuid.UUID) *domain.UserProfile {
	return &domain.UserProfile{
		UserID:        userID,
		Tier:          domain.TierStarter,
		Status:        domain.SubscriptionStatusActive,
		QuotaCeiling:  ceiling(10),
		QuotaConsumed: 3,
		QuotaResetAt:  time.Now().Add(domain.BillingCycle),
	}
}

func TestPurchaseTopUp_RequiresPaymentReference(t *testing.T) {
	userID := uuid.New()
	svc := newTopUpFixture(limitedProfile(userID))

	_, err := svc.PurchaseTopUp(context.Background(), domain.PurchaseTopUpParams{
		UserID:      userID,
		PackageType: "five_pack",
		ChatsAdded:  5,
		PriceUsd:    3900,
	})
	if domain.ErrorCode(err) != domain.EPAYMENT {
		t.Fatalf("expected payment error for missing reference, got %v", err)
	}
}

func TestPurchaseTopUp_RejectsNonPositiveAmount(t *testing.T) {
	userID := uuid.New()
	svc := newTopUpFixture(limitedProfile(userID))

	for _, chats := range []int32{0, -5} {
		_, err := svc.PurchaseTopUp(context.Background(), domain.PurchaseTopUpParams{
			UserID:           userID,
			PackageType:      "five_pack",
			ChatsAdded:       chats,
			PriceUsd:         3900,
			PaymentReference: "pi_123",
		})
		if domain.ErrorCode(err) != domain.EINVALID {
			t.Errorf("chats=%d: expected invalid error, got %v", chats, err)
		}
	}
}

func TestPurchaseTopUp_RejectsUnknownPackage(t *testing.T) {
	userID := uuid.New()
	svc := newTopUpFixture(limitedProfile(userID))

	_, err := svc.PurchaseTopUp(context.Background(), domain.PurchaseTopUpParams{
		UserID:           userID,
		PackageType:      "mega_pack",
		ChatsAdded:       50,
		PriceUsd:         9900,
		PaymentReference: "pi_123",
	})
	if domain.ErrorCode(err) != domain.EINVALID {
		t.Fatalf("expected invalid error for unknown package, got %v", err)
	}
}

func TestPurchaseTopUp_RejectsUnlimitedProfiles(t *testing.T) {
	userID := uuid.New()
	svc := newTopUpFixture(&domain.UserProfile{
		UserID:       userID,
		Tier:         domain.TierElite,
		Status:       domain.SubscriptionStatusActive,
		QuotaCeiling: nil,
		QuotaResetAt: time.Now().Add(domain.BillingCycle),
	})

	_, err := svc.PurchaseTopUp(context.Background(), domain.PurchaseTopUpParams{
		UserID:           userID,
		PackageType:      "single",
		ChatsAdded:       1,
		PriceUsd:         900,
		PaymentReference: "pi_123",
	})
	if domain.ErrorCode(err) != domain.EINVALID {
		t.Fatalf("expected invalid error for unlimited profile, got %v", err)
	}
}
