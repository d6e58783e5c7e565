package domain

import (
	"time"

	"github.com/google/uuid"
)

// TopUpStatus represents the lifecycle state of a top-up purchase.
type TopUpStatus string

const (
	TopUpStatusCompleted TopUpStatus = "completed"
)

// TopUpPurchase records a one-time purchase of additional chats.
//
// A top-up irreversibly raises the owning profile's quota ceiling by
// ChatsAdded without resetting consumption. Purchase rows are immutable after
// creation; the ceiling bump is applied as a single additive update in the
// same transaction so a concurrent tier upgrade cannot lose it.
type TopUpPurchase struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	PackageType      string
	ChatsAdded       int32
	PriceUsd         int64 // cents
	PaymentReference string
	Status           TopUpStatus
	PurchasedAt      time.Time
}

// PurchaseTopUpParams contains the validated parameters for recording a
// top-up. PaymentReference must identify a charge the billing collaborator
// has already confirmed.
type PurchaseTopUpParams struct {
	UserID           uuid.UUID
	PackageType      string
	ChatsAdded       int32
	PriceUsd         int64
	PaymentReference string
}
