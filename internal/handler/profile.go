// Package handler contains the HTTP handlers for the concierge API.
//
// This file implements the profile and quota gate endpoints.
//
// Routes handled:
//   - GET /api/profile      -> GetProfile
//   - GET /api/profile/gate -> CheckGate
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/verityair/concierge/internal/auth"
	"github.com/verityair/concierge/internal/domain"
	"github.com/verityair/concierge/internal/service"
)

// ProfileHandler handles profile and quota gate HTTP requests.
type ProfileHandler struct {
	profiles service.ProfileService
	quota    service.QuotaService
	logger   *slog.Logger
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profiles service.ProfileService, quota service.QuotaService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		quota:    quota,
		logger:   logger,
	}
}

// RegisterRoutes registers profile routes on the provided mux.
func (h *ProfileHandler) RegisterRoutes(mux *http.ServeMux, authed func(http.Handler) http.Handler) {
	mux.Handle("GET /api/profile", authed(http.HandlerFunc(h.GetProfile)))
	mux.Handle("GET /api/profile/gate", authed(http.HandlerFunc(h.CheckGate)))
}

type profileResponse struct {
	UserID         string    `json:"user_id"`
	Tier           string    `json:"tier"`
	Status         string    `json:"status"`
	QuotaCeiling   *int32    `json:"quota_ceiling"` // null = unlimited
	QuotaConsumed  int32     `json:"quota_consumed"`
	QuotaRemaining int32     `json:"quota_remaining"` // -1 = unlimited
	QuotaResetAt   time.Time `json:"quota_reset_at"`
	CancelAtEnd    bool      `json:"cancel_at_period_end"`
}

func toProfileResponse(p *domain.UserProfile) profileResponse {
	return profileResponse{
		UserID:         p.UserID.String(),
		Tier:           string(p.Tier),
		Status:         string(p.Status),
		QuotaCeiling:   p.QuotaCeiling,
		QuotaConsumed:  p.QuotaConsumed,
		QuotaRemaining: p.Remaining(),
		QuotaResetAt:   p.QuotaResetAt,
		CancelAtEnd:    p.CancelAtEnd,
	}
}

// GetProfile returns the caller's quota profile, creating the explorer
// default on first read.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	account := auth.GetAccount(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	profile, err := h.profiles.GetProfile(r.Context(), account.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profile": toProfileResponse(profile),
	})
}

// CheckGate answers whether the caller may start a new chat right now.
// The answer is advisory; starting the chat re-checks at commit time.
func (h *ProfileHandler) CheckGate(w http.ResponseWriter, r *http.Request) {
	account := auth.GetAccount(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	decision, err := h.quota.CanStartChat(r.Context(), account.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"allowed":   decision.Allowed,
		"unlimited": decision.Unlimited,
		"remaining": decision.Remaining,
	})
}
