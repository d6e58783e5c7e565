// Package handler contains the HTTP handlers for the concierge API.
//
// This file serves the top-up purchase history. Purchases themselves are
// recorded by the billing webhook, not by a direct API call.
//
// Routes handled:
//   - GET /api/topups -> ListPurchases
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/verityair/concierge/internal/auth"
	"github.com/verityair/concierge/internal/domain"
	"github.com/verityair/concierge/internal/service"
)

// TopUpHandler handles top-up HTTP requests.
type TopUpHandler struct {
	topups service.TopUpService
	logger *slog.Logger
}

// NewTopUpHandler creates a new TopUpHandler.
func NewTopUpHandler(topups service.TopUpService, logger *slog.Logger) *TopUpHandler {
	return &TopUpHandler{
		topups: topups,
		logger: logger,
	}
}

// RegisterRoutes registers top-up routes on the provided mux.
func (h *TopUpHandler) RegisterRoutes(mux *http.ServeMux, authed func(http.Handler) http.Handler) {
	mux.Handle("GET /api/topups", authed(http.HandlerFunc(h.ListPurchases)))
}

type topUpPurchaseResponse struct {
	ID          string    `json:"id"`
	PackageType string    `json:"package_type"`
	ChatsAdded  int32     `json:"chats_added"`
	PriceCents  int64     `json:"price_cents"`
	Status      string    `json:"status"`
	PurchasedAt time.Time `json:"purchased_at"`
}

func toTopUpPurchaseResponse(p *domain.TopUpPurchase) topUpPurchaseResponse {
	return topUpPurchaseResponse{
		ID:          p.ID.String(),
		PackageType: p.PackageType,
		ChatsAdded:  p.ChatsAdded,
		PriceCents:  p.PriceUsd,
		Status:      string(p.Status),
		PurchasedAt: p.PurchasedAt,
	}
}

// ListPurchases returns the caller's top-up purchase history, newest first.
func (h *TopUpHandler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	account := auth.GetAccount(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	purchases, err := h.topups.ListPurchases(r.Context(), account.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]topUpPurchaseResponse, 0, len(purchases))
	for _, p := range purchases {
		out = append(out, toTopUpPurchaseResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"purchases": out,
	})
}
