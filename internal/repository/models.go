package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Account is a row in the accounts table.
type Account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Name         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AuthSession is a row in the auth_sessions table.
type AuthSession struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// UserProfile is a row in the user_profiles table.
type UserProfile struct {
	UserID           uuid.UUID
	Tier             string
	Status           string
	QuotaCeiling     sql.NullInt32
	QuotaConsumed    int32
	QuotaResetAt     time.Time
	StripeCustomerID sql.NullString
	SubscriptionID   sql.NullString
	CancelAtEnd      bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ChatSession is a row in the chat_sessions table.
type ChatSession struct {
	ID            uuid.UUID
	SessionID     string
	UserID        uuid.UUID
	MessageCount  int32
	Completed     bool
	StartedAt     time.Time
	LastMessageAt time.Time
}

// TopUpPurchase is a row in the topup_purchases table.
type TopUpPurchase struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	PackageType      string
	ChatsAdded       int32
	PriceUsd         int64
	PaymentReference string
	Status           string
	PurchasedAt      time.Time
}

// UserUsage is one row of the grouped usage aggregation used for report
// exports.
type UserUsage struct {
	UserID       uuid.UUID
	SessionCount int64
	MessageCount int64
}
