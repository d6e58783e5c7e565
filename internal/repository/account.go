package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const accountColumns = `id, email, password_hash, name, created_at, updated_at`

// CreateAccountParams are the fields for a new account row.
type CreateAccountParams struct {
	Email        string
	PasswordHash string
	Name         string
}

// CreateAccount inserts a new account.
func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO accounts (id, email, password_hash, name)
		VALUES ($1, $2, $3, $4)
		RETURNING `+accountColumns,
		uuid.New(), arg.Email, arg.PasswordHash, arg.Name,
	)
	var a Account
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Name, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// GetAccountByEmail fetches an account by email.
func (q *Queries) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	var a Account
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Name, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// GetAccountByID fetches an account by ID.
func (q *Queries) GetAccountByID(ctx context.Context, id uuid.UUID) (Account, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	var a Account
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Name, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// CreateAuthSessionParams are the fields for a new auth session row.
type CreateAuthSessionParams struct {
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
}

// CreateAuthSession inserts a new session row holding a hashed bearer token.
func (q *Queries) CreateAuthSession(ctx context.Context, arg CreateAuthSessionParams) (AuthSession, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO auth_sessions (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, token_hash, expires_at, created_at`,
		uuid.New(), arg.UserID, arg.TokenHash, arg.ExpiresAt,
	)
	var s AuthSession
	err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}

// GetAccountByTokenHash resolves a hashed bearer token to its account,
// excluding expired sessions.
func (q *Queries) GetAccountByTokenHash(ctx context.Context, tokenHash string) (Account, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT a.id, a.email, a.password_hash, a.name, a.created_at, a.updated_at
		FROM accounts a
		JOIN auth_sessions s ON s.user_id = a.id
		WHERE s.token_hash = $1 AND s.expires_at > now()`,
		tokenHash,
	)
	var a Account
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Name, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// DeleteAuthSession removes a session by token hash. No-op for unknown tokens.
func (q *Queries) DeleteAuthSession(ctx context.Context, tokenHash string) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM auth_sessions WHERE token_hash = $1`, tokenHash)
	return err
}

// DeleteExpiredAuthSessions removes all expired sessions. Called periodically
// by the maintenance worker.
func (q *Queries) DeleteExpiredAuthSessions(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM auth_sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
