// Package handler contains the HTTP handlers for the concierge API.
//
// This file serves the read-only tier and top-up package catalog.
//
// Routes handled:
//   - GET /api/tiers           -> ListTiers
//   - GET /api/topups/packages -> ListTopUpPackages
package handler

import (
	"log/slog"
	"net/http"

	"github.com/verityair/concierge/internal/catalog"
)

// CatalogHandler serves the tier and top-up package catalog.
type CatalogHandler struct {
	logger *slog.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{logger: logger}
}

// RegisterRoutes registers catalog routes on the provided mux.
// Catalog data is public; no authentication required.
func (h *CatalogHandler) RegisterRoutes(mux *http.ServeMux, public func(http.Handler) http.Handler) {
	mux.Handle("GET /api/tiers", public(http.HandlerFunc(h.ListTiers)))
	mux.Handle("GET /api/topups/packages", public(http.HandlerFunc(h.ListTopUpPackages)))
}

type tierResponse struct {
	ID           string   `json:"id"`
	DisplayName  string   `json:"display_name"`
	PriceMonthly string   `json:"price_monthly"`
	PriceCents   int64    `json:"price_monthly_cents"`
	QuotaCeiling *int32   `json:"quota_ceiling"` // null = unlimited
	Features     []string `json:"features"`
}

// ListTiers returns all subscription tiers in display order.
func (h *CatalogHandler) ListTiers(w http.ResponseWriter, r *http.Request) {
	tiers := catalog.Tiers()
	out := make([]tierResponse, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, tierResponse{
			ID:           string(t.ID),
			DisplayName:  t.DisplayName,
			PriceMonthly: t.PriceMonthlyDisplay(),
			PriceCents:   t.PriceMonthlyCents,
			QuotaCeiling: t.QuotaCeiling,
			Features:     t.Features,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tiers": out,
	})
}

type topUpPackageResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	ChatsAdded  int32  `json:"chats_added"`
	PriceCents  int64  `json:"price_cents"`
}

// ListTopUpPackages returns all top-up packages in display order.
func (h *CatalogHandler) ListTopUpPackages(w http.ResponseWriter, r *http.Request) {
	packages := catalog.TopUpPackages()
	out := make([]topUpPackageResponse, 0, len(packages))
	for _, p := range packages {
		out = append(out, topUpPackageResponse{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			ChatsAdded:  p.ChatsAdded,
			PriceCents:  p.PriceCents,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"packages": out,
	})
}
