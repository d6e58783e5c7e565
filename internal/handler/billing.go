// Package handler contains the HTTP handlers for the concierge API.
//
// This file implements billing endpoints backed by Stripe. These endpoints
// only open Checkout and Portal sessions; the authoritative state updates
// arrive through the webhook.
//
// Routes handled:
//   - POST /api/billing/checkout   -> CreateCheckout
//   - POST /api/billing/topup      -> CreateTopUpCheckout
//   - POST /api/billing/portal     -> OpenPortal
//   - POST /api/billing/cancel     -> CancelSubscription
//   - POST /api/billing/reactivate -> ReactivateSubscription
package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/verityair/concierge/internal/auth"
	"github.com/verityair/concierge/internal/billing"
	"github.com/verityair/concierge/internal/catalog"
	"github.com/verityair/concierge/internal/domain"
	"github.com/verityair/concierge/internal/service"
)

// BillingHandler handles billing and subscription management HTTP requests.
type BillingHandler struct {
	billing  billing.Service
	profiles service.ProfileService
	baseURL  string
	logger   *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
// billingService may be nil when Stripe is not configured (development mode).
func NewBillingHandler(billingService billing.Service, profiles service.ProfileService, baseURL string, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		billing:  billingService,
		profiles: profiles,
		baseURL:  baseURL,
		logger:   logger,
	}
}

// RegisterRoutes registers billing routes on the provided mux.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, authed func(http.Handler) http.Handler) {
	mux.Handle("POST /api/billing/checkout", authed(http.HandlerFunc(h.CreateCheckout)))
	mux.Handle("POST /api/billing/topup", authed(http.HandlerFunc(h.CreateTopUpCheckout)))
	mux.Handle("POST /api/billing/portal", authed(http.HandlerFunc(h.OpenPortal)))
	mux.Handle("POST /api/billing/cancel", authed(http.HandlerFunc(h.CancelSubscription)))
	mux.Handle("POST /api/billing/reactivate", authed(http.HandlerFunc(h.ReactivateSubscription)))
}

// CreateCheckout opens a subscription Checkout session for a paid tier and
// returns its URL.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	const op = "billing.checkout"

	account := auth.GetAccount(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if h.billing == nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Billing is not configured"))
		return
	}

	var req struct {
		Tier string `json:"tier"`
	}
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	tier := catalog.GetTier(domain.SubscriptionTier(req.Tier))
	if tier == nil || tier.ID == domain.TierExplorer {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Unknown subscription tier"))
		return
	}

	priceID := h.billing.PriceIDForTier(req.Tier)
	if priceID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Tier is not available for purchase"))
		return
	}

	customerID, err := h.ensureCustomer(r, account)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	successURL := fmt.Sprintf("%s/billing/success?session_id={CHECKOUT_SESSION_ID}", h.baseURL)
	cancelURL := fmt.Sprintf("%s/billing", h.baseURL)

	checkoutURL, err := h.billing.CreateSubscriptionCheckout(customerID, priceID, successURL, cancelURL)
	if err != nil {
		h.logger.Error("failed to create checkout session", "error", err, "user_id", account.ID)
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "Failed to create checkout session"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": checkoutURL})
}

// CreateTopUpCheckout opens a one-time payment Checkout session for a top-up
// package and returns its URL. The purchase is credited by the webhook once
// the payment completes.
func (h *BillingHandler) CreateTopUpCheckout(w http.ResponseWriter, r *http.Request) {
	const op = "billing.topup_checkout"

	account := auth.GetAccount(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if h.billing == nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Billing is not configured"))
		return
	}

	var req struct {
		PackageType string `json:"package_type"`
	}
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if catalog.GetTopUpPackage(req.PackageType) == nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Unknown top-up package"))
		return
	}

	// Unlimited profiles have no ceiling to raise; reject before checkout
	// rather than failing the webhook credit later.
	profile, err := h.profiles.GetProfile(r.Context(), account.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if profile.IsUnlimited() {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Unlimited profiles cannot purchase top-ups"))
		return
	}

	priceID := h.billing.PriceIDForTopUpPackage(req.PackageType)
	if priceID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Package is not available for purchase"))
		return
	}

	customerID, err := h.ensureCustomer(r, account)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	successURL := fmt.Sprintf("%s/billing/topup/success?session_id={CHECKOUT_SESSION_ID}", h.baseURL)
	cancelURL := fmt.Sprintf("%s/billing", h.baseURL)

	checkoutURL, err := h.billing.CreateTopUpCheckout(customerID, priceID, account.ID.String(), req.PackageType, successURL, cancelURL)
	if err != nil {
		h.logger.Error("failed to create top-up checkout session", "error", err, "user_id", account.ID)
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "Failed to create checkout session"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": checkoutURL})
}

// OpenPortal opens a Stripe Customer Portal session and returns its URL.
func (h *BillingHandler) OpenPortal(w http.ResponseWriter, r *http.Request) {
	const op = "billing.portal"

	account := auth.GetAccount(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if h.billing == nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Billing is not configured"))
		return
	}

	profile, err := h.profiles.GetProfile(r.Context(), account.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if profile.StripeCustomerID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "No billing account exists yet"))
		return
	}

	returnURL := fmt.Sprintf("%s/billing", h.baseURL)
	portalURL, err := h.billing.CreatePortalSession(profile.StripeCustomerID, returnURL)
	if err != nil {
		h.logger.Error("failed to create portal session", "error", err, "user_id", account.ID)
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "Failed to open billing portal"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": portalURL})
}

// CancelSubscription sets the subscription to cancel at period end. The
// current tier and quota stay in place until the period lapses.
func (h *BillingHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	const op = "billing.cancel"

	account := auth.GetAccount(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if h.billing == nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Billing is not configured"))
		return
	}

	profile, err := h.profiles.GetProfile(r.Context(), account.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if profile.SubscriptionID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "No active subscription to cancel"))
		return
	}

	if err := h.billing.CancelSubscription(profile.SubscriptionID); err != nil {
		h.logger.Error("failed to cancel subscription", "error", err, "user_id", account.ID)
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "Failed to cancel subscription"))
		return
	}

	if err := h.profiles.CancelSubscription(r.Context(), account.ID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ReactivateSubscription removes the cancel-at-period-end flag.
func (h *BillingHandler) ReactivateSubscription(w http.ResponseWriter, r *http.Request) {
	const op = "billing.reactivate"

	account := auth.GetAccount(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if h.billing == nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Billing is not configured"))
		return
	}

	profile, err := h.profiles.GetProfile(r.Context(), account.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if profile.SubscriptionID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "No subscription to reactivate"))
		return
	}

	if err := h.billing.ReactivateSubscription(profile.SubscriptionID); err != nil {
		h.logger.Error("failed to reactivate subscription", "error", err, "user_id", account.ID)
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "Failed to reactivate subscription"))
		return
	}

	if err := h.profiles.ReactivateSubscription(r.Context(), account.ID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ensureCustomer returns the profile's Stripe customer ID, creating the
// customer on first use.
func (h *BillingHandler) ensureCustomer(r *http.Request, account *domain.Account) (string, error) {
	const op = "billing.ensure_customer"

	profile, err := h.profiles.GetProfile(r.Context(), account.ID)
	if err != nil {
		return "", err
	}
	if profile.StripeCustomerID != "" {
		return profile.StripeCustomerID, nil
	}

	customerID, err := h.billing.CreateCustomer(account.Email, account.Name)
	if err != nil {
		h.logger.Error("failed to create stripe customer", "error", err, "user_id", account.ID)
		return "", domain.Internal(err, op, "Failed to initialize billing")
	}
	if err := h.profiles.SetStripeCustomer(r.Context(), account.ID, customerID); err != nil {
		// The customer exists in Stripe but the reference was not saved.
		// Surface the failure; retrying will create a duplicate customer,
		// which Stripe tolerates.
		return "", err
	}
	return customerID, nil
}
