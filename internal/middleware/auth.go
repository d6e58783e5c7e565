// Package middleware contains HTTP middleware for the concierge API.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/verityair/concierge/internal/auth"
	"github.com/verityair/concierge/internal/service"
)

// =============================================================================
// Auth Middleware Configuration
// =============================================================================

// AuthMiddleware provides bearer-token authentication middleware.
//
// The API is consumed by the web client and the chat widget, both of which
// send the session token in the Authorization header:
//
//	Authorization: Bearer <64-char hex token>
type AuthMiddleware struct {
	accounts service.AccountService
	logger   *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(accounts service.AccountService, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		accounts: accounts,
		logger:   logger,
	}
}

// =============================================================================
// WithAccount Middleware
// =============================================================================

// WithAccount is middleware that attempts to load the account from the
// Authorization header.
//
// This middleware:
// 1. Extracts the bearer token, if present
// 2. If found, validates the session and loads the account
// 3. Stores the account in the request context
// 4. Continues to the next handler regardless of authentication status
//
// The account can be retrieved in handlers using:
//
//	account := auth.GetAccount(r.Context())
func (m *AuthMiddleware) WithAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		account, err := m.accounts.GetByToken(r.Context(), token)
		if err != nil {
			// Invalid or expired token. Continue unauthenticated; RequireAccount
			// decides whether that matters for this route.
			next.ServeHTTP(w, r)
			return
		}

		ctx := auth.SetAccount(r.Context(), account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// =============================================================================
// RequireAccount Middleware
// =============================================================================

// RequireAccount is middleware that requires an authenticated account.
//
// IMPORTANT: This middleware must be used AFTER WithAccount in the chain.
//
// Usage:
//
//	stack := Stack(loggingMw, authMw.WithAccount, authMw.RequireAccount)
//	mux.Handle("GET /api/profile", stack(profileHandler))
func (m *AuthMiddleware) RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetAccount(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":"unauthorized","message":"You must be logged in"}}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Request Helpers
// =============================================================================

// bearerToken extracts the token from an "Authorization: Bearer ..." header.
// Returns "" if the header is missing or malformed.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	stack := Stack(loggingMw, authMw.WithAccount, authMw.RequireAccount)
//	mux.Handle("GET /api/profile", stack(profileHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// =============================================================================
// Compile-time checks
// =============================================================================

var (
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).WithAccount
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireAccount
)
