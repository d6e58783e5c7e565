// Package service contains the business logic layer.
//
// This file implements the account service: the identity collaborator for
// the quota subsystem. It owns registration, login, and bearer-token session
// validation; everything quota-related keys off the account ID it supplies.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/verityair/concierge/internal/domain"
	"github.com/verityair/concierge/internal/repository"
)

// =============================================================================
// Configuration Constants
// =============================================================================

const (
	// BcryptCost is the cost factor for bcrypt password hashing.
	// Cost 12 keeps hashing around 250ms on modern hardware.
	BcryptCost = 12

	// SessionTokenBytes is the number of random bytes in a bearer token.
	// 32 bytes = 256 bits of entropy, hex-encoded to 64 characters.
	SessionTokenBytes = 32

	// SessionDuration is how long a bearer token remains valid.
	SessionDuration = 7 * 24 * time.Hour

	// MinPasswordLength is the minimum password length.
	MinPasswordLength = 8

	// MaxPasswordLength caps input before bcrypt's own 72-byte limit.
	MaxPasswordLength = 72
)

// =============================================================================
// Interface Definition
// =============================================================================

// AccountService defines identity operations.
type AccountService interface {
	// Register creates a new account.
	// Returns domain.ECONFLICT if the email is already registered.
	Register(ctx context.Context, params domain.RegisterParams) (*domain.Account, error)

	// Login authenticates and issues a bearer token.
	// Returns domain.EUNAUTHORIZED for invalid credentials.
	Login(ctx context.Context, email, password string) (*domain.LoginResult, error)

	// Logout invalidates a bearer token. Idempotent.
	Logout(ctx context.Context, token string) error

	// GetByToken resolves a bearer token to its account.
	// Returns domain.EUNAUTHORIZED for an invalid or expired token.
	GetByToken(ctx context.Context, token string) (*domain.Account, error)
}

// AccountStore is the subset of repository queries the account service needs.
type AccountStore interface {
	CreateAccount(ctx context.Context, arg repository.CreateAccountParams) (repository.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (repository.Account, error)
	CreateAuthSession(ctx context.Context, arg repository.CreateAuthSessionParams) (repository.AuthSession, error)
	GetAccountByTokenHash(ctx context.Context, tokenHash string) (repository.Account, error)
	DeleteAuthSession(ctx context.Context, tokenHash string) error
}

// =============================================================================
// Implementation
// =============================================================================

type accountService struct {
	store  AccountStore
	logger *slog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(store AccountStore, logger *slog.Logger) AccountService {
	return &accountService{
		store:  store,
		logger: logger,
	}
}

func (s *accountService) Register(ctx context.Context, params domain.RegisterParams) (*domain.Account, error) {
	const op = "account.register"

	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	params.Name = strings.TrimSpace(params.Name)

	if _, err := mail.ParseAddress(params.Email); err != nil {
		return nil, domain.Invalid(op, "Invalid email address")
	}
	if len(params.Password) < MinPasswordLength {
		return nil, domain.Invalid(op, "Password must be at least 8 characters")
	}
	if len(params.Password) > MaxPasswordLength {
		return nil, domain.Invalid(op, "Password is too long")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to hash password")
	}

	row, err := s.store.CreateAccount(ctx, repository.CreateAccountParams{
		Email:        params.Email,
		PasswordHash: string(passwordHash),
		Name:         params.Name,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.Conflict(op, "Email already registered")
		}
		return nil, domain.Internal(err, op, "Failed to create account")
	}

	account := accountRowToDomain(row)
	account.PasswordHash = ""

	s.logger.Info("account registered", "user_id", account.ID, "email", account.Email)
	return account, nil
}

func (s *accountService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	const op = "account.login"

	email = strings.ToLower(strings.TrimSpace(email))

	row, err := s.store.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Dummy comparison keeps timing consistent with the found path.
			dummyHash := "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, domain.Unauthorized(op, "Invalid email or password")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve account")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)); err != nil {
		return nil, domain.Unauthorized(op, "Invalid email or password")
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to generate session token")
	}

	_, err = s.store.CreateAuthSession(ctx, repository.CreateAuthSessionParams{
		UserID:    row.ID,
		TokenHash: hashSessionToken(token),
		ExpiresAt: time.Now().Add(SessionDuration),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create session")
	}

	account := accountRowToDomain(row)
	account.PasswordHash = ""

	s.logger.Info("login", "user_id", account.ID)
	return &domain.LoginResult{Account: account, Token: token}, nil
}

func (s *accountService) Logout(ctx context.Context, token string) error {
	if len(token) != SessionTokenBytes*2 {
		return nil // Invalid token, but logout is idempotent
	}

	if err := s.store.DeleteAuthSession(ctx, hashSessionToken(token)); err != nil {
		s.logger.Warn("failed to delete session", "error", err)
	}
	return nil
}

func (s *accountService) GetByToken(ctx context.Context, token string) (*domain.Account, error) {
	const op = "account.get_by_token"

	if len(token) != SessionTokenBytes*2 {
		return nil, domain.Unauthorized(op, "Invalid session token")
	}

	row, err := s.store.GetAccountByTokenHash(ctx, hashSessionToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Unauthorized(op, "Invalid or expired session")
		}
		return nil, domain.Internal(err, op, "Failed to validate session")
	}

	account := accountRowToDomain(row)
	account.PasswordHash = ""
	return account, nil
}

// =============================================================================
// Helpers
// =============================================================================

func generateSessionToken() (string, error) {
	b := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashSessionToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func accountRowToDomain(row repository.Account) *domain.Account {
	return &domain.Account{
		ID:           row.ID,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Name:         row.Name,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}
