// Package handler contains the HTTP handlers for the concierge API.
//
// This file implements account registration and login.
//
// Routes handled:
//   - POST /api/auth/register -> Register
//   - POST /api/auth/login    -> Login
//   - POST /api/auth/logout   -> Logout
//   - GET  /api/auth/me       -> Me
package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/verityair/concierge/internal/auth"
	"github.com/verityair/concierge/internal/domain"
	"github.com/verityair/concierge/internal/service"
)

// AccountHandler handles account HTTP requests.
type AccountHandler struct {
	accounts service.AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		logger:   logger,
	}
}

// RegisterRoutes registers account routes on the provided mux.
func (h *AccountHandler) RegisterRoutes(mux *http.ServeMux, public, authed func(http.Handler) http.Handler) {
	mux.Handle("POST /api/auth/register", public(http.HandlerFunc(h.Register)))
	mux.Handle("POST /api/auth/login", public(http.HandlerFunc(h.Login)))
	mux.Handle("POST /api/auth/logout", public(http.HandlerFunc(h.Logout)))
	mux.Handle("GET /api/auth/me", authed(http.HandlerFunc(h.Me)))
}

type accountResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func toAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		ID:        a.ID.String(),
		Email:     a.Email,
		Name:      a.Name,
		CreatedAt: a.CreatedAt,
	}
}

// Register creates a new account.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	account, err := h.accounts.Register(r.Context(), domain.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"account": toAccountResponse(account),
	})
}

// Login authenticates and returns a bearer token.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account": toAccountResponse(result.Account),
		"token":   result.Token,
	})
}

// Logout invalidates the caller's bearer token. Always returns 204.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		_ = h.accounts.Logout(r.Context(), strings.TrimSpace(parts[1]))
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated account.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	account := auth.GetAccount(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account": toAccountResponse(account),
	})
}
