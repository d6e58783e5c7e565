package repository

import (
	"context"

	"github.com/google/uuid"
)

const topUpColumns = `id, user_id, package_type, chats_added, price_usd, payment_reference, status, purchased_at`

// CreateTopUpPurchaseParams are the fields for a new purchase row.
type CreateTopUpPurchaseParams struct {
	UserID           uuid.UUID
	PackageType      string
	ChatsAdded       int32
	PriceUsd         int64
	PaymentReference string
	Status           string
}

// CreateTopUpPurchase inserts an immutable purchase record. The unique index
// on payment_reference makes webhook redelivery idempotent; a duplicate insert
// fails with a unique violation the caller can treat as already-processed.
func (q *Queries) CreateTopUpPurchase(ctx context.Context, arg CreateTopUpPurchaseParams) (TopUpPurchase, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO topup_purchases (id, user_id, package_type, chats_added, price_usd, payment_reference, status, purchased_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING `+topUpColumns,
		uuid.New(), arg.UserID, arg.PackageType, arg.ChatsAdded, arg.PriceUsd, arg.PaymentReference, arg.Status,
	)
	var t TopUpPurchase
	err := row.Scan(&t.ID, &t.UserID, &t.PackageType, &t.ChatsAdded, &t.PriceUsd, &t.PaymentReference, &t.Status, &t.PurchasedAt)
	return t, err
}

// ListTopUpPurchasesByUser returns a user's purchase history, newest first.
func (q *Queries) ListTopUpPurchasesByUser(ctx context.Context, userID uuid.UUID) ([]TopUpPurchase, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+topUpColumns+`
		FROM topup_purchases
		WHERE user_id = $1
		ORDER BY purchased_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []TopUpPurchase
	for rows.Next() {
		var t TopUpPurchase
		if err := rows.Scan(&t.ID, &t.UserID, &t.PackageType, &t.ChatsAdded, &t.PriceUsd, &t.PaymentReference, &t.Status, &t.PurchasedAt); err != nil {
			return nil, err
		}
		purchases = append(purchases, t)
	}
	return purchases, rows.Err()
}
