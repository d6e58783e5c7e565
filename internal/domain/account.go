// Package domain contains core business types and interfaces.
//
// This file defines the Account identity type and auth session types. The
// quota subsystem only needs a stable user identifier and an authenticated
// signal; accounts provide both.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account represents a registered user of the concierge platform.
type Account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string // Never expose this in API responses
	Name         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AuthSession represents an authenticated API session.
//
// Sessions are stored with a SHA-256 hash of the bearer token; the raw token
// is only returned to the client once, at login.
type AuthSession struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired returns true if the session has expired.
func (s *AuthSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// RegisterParams contains the validated parameters for account registration.
type RegisterParams struct {
	Email    string
	Password string // Raw password, hashed by the service
	Name     string
}

// LoginResult contains the result of a successful login.
type LoginResult struct {
	Account *Account
	Token   string // Raw bearer token, only returned once
}
