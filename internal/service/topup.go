// Package service contains the business logic layer.
//
// This file implements the top-up ledger: one-time purchases of additional
// chats that raise the quota ceiling for the current cycle without resetting
// consumption.
package service

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"

	"github.com/verityair/concierge/internal/catalog"
	"github.com/verityair/concierge/internal/domain"
	"github.com/verityair/concierge/internal/metrics"
	"github.com/verityair/concierge/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// TopUpService records top-up purchases and credits them to the profile.
type TopUpService interface {
	// PurchaseTopUp inserts the purchase record and raises the quota ceiling
	// by chatsAdded, in one transaction. The ceiling bump is a single
	// additive update, not a read-modify-write, so a concurrent tier upgrade
	// or usage increment cannot lose it.
	// Returns domain.EPAYMENT if the payment reference is empty (billing has
	// not confirmed the charge), domain.EINVALID for a non-positive amount,
	// and domain.ECONFLICT when the payment reference was already credited.
	PurchaseTopUp(ctx context.Context, params domain.PurchaseTopUpParams) (*domain.TopUpPurchase, error)

	// ListPurchases returns a user's purchase history, newest first.
	ListPurchases(ctx context.Context, userID uuid.UUID) ([]*domain.TopUpPurchase, error)
}

// =============================================================================
// Implementation
// =============================================================================

type topUpService struct {
	db       *sql.DB
	queries  *repository.Queries
	profiles ProfileService
	logger   *slog.Logger
}

// NewTopUpService creates a new TopUpService. The *sql.DB handle is needed to
// run the purchase insert and the ceiling bump in one transaction.
func NewTopUpService(db *sql.DB, queries *repository.Queries, profiles ProfileService, logger *slog.Logger) TopUpService {
	return &topUpService{
		db:       db,
		queries:  queries,
		profiles: profiles,
		logger:   logger,
	}
}

func (s *topUpService) PurchaseTopUp(ctx context.Context, params domain.PurchaseTopUpParams) (*domain.TopUpPurchase, error) {
	const op = "topup.purchase"

	if params.PaymentReference == "" {
		return nil, domain.PaymentNotConfirmed(op)
	}
	if params.ChatsAdded <= 0 {
		return nil, domain.Invalid(op, "Top-up must add at least one chat")
	}
	if catalog.GetTopUpPackage(params.PackageType) == nil {
		return nil, domain.Invalid(op, "Unknown top-up package")
	}

	// Ensure the profile exists and surface unlimited profiles early: a
	// NULL ceiling has nothing to raise.
	profile, err := s.profiles.GetProfile(ctx, params.UserID)
	if err != nil {
		return nil, err
	}
	if profile.IsUnlimited() {
		return nil, domain.Invalid(op, "Unlimited profiles cannot purchase top-ups")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Unavailable(err, op, "Could not record top-up")
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	row, err := qtx.CreateTopUpPurchase(ctx, repository.CreateTopUpPurchaseParams{
		UserID:           params.UserID,
		PackageType:      params.PackageType,
		ChatsAdded:       params.ChatsAdded,
		PriceUsd:         params.PriceUsd,
		PaymentReference: params.PaymentReference,
		Status:           string(domain.TopUpStatusCompleted),
	})
	if err != nil {
		if isUniqueViolation(err) {
			// Webhook redelivery; the purchase was already credited.
			return nil, domain.Conflict(op, "Payment already credited")
		}
		return nil, domain.Unavailable(err, op, "Could not record top-up")
	}

	rows, err := qtx.AddQuotaCeiling(ctx, params.UserID, params.ChatsAdded)
	if err != nil {
		return nil, domain.Unavailable(err, op, "Could not credit top-up")
	}
	if rows == 0 {
		// Profile vanished or went unlimited mid-purchase; roll back rather
		// than keeping a purchase row that credited nothing.
		return nil, domain.Invalid(op, "Profile has no quota ceiling to raise")
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Unavailable(err, op, "Could not confirm top-up")
	}

	metrics.TopUpChatsCredited.Add(float64(params.ChatsAdded))
	s.logger.Info("top-up credited",
		"user_id", params.UserID,
		"package", params.PackageType,
		"chats_added", params.ChatsAdded,
	)

	return topUpRowToDomain(row), nil
}

func (s *topUpService) ListPurchases(ctx context.Context, userID uuid.UUID) ([]*domain.TopUpPurchase, error) {
	const op = "topup.list"

	rows, err := s.queries.ListTopUpPurchasesByUser(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list purchases")
	}

	purchases := make([]*domain.TopUpPurchase, 0, len(rows))
	for _, row := range rows {
		purchases = append(purchases, topUpRowToDomain(row))
	}
	return purchases, nil
}

func topUpRowToDomain(row repository.TopUpPurchase) *domain.TopUpPurchase {
	return &domain.TopUpPurchase{
		ID:               row.ID,
		UserID:           row.UserID,
		PackageType:      row.PackageType,
		ChatsAdded:       row.ChatsAdded,
		PriceUsd:         row.PriceUsd,
		PaymentReference: row.PaymentReference,
		Status:           domain.TopUpStatus(row.Status),
		PurchasedAt:      row.PurchasedAt,
	}
}
