// Package handler contains the HTTP handlers for the concierge API.
//
// This file implements the Stripe webhook handler for processing billing events.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no auth middleware) because Stripe calls it directly.
// Authentication is via the Stripe webhook signature verification.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"

	"github.com/verityair/concierge/internal/billing"
	"github.com/verityair/concierge/internal/catalog"
	"github.com/verityair/concierge/internal/domain"
	"github.com/verityair/concierge/internal/metrics"
	"github.com/verityair/concierge/internal/service"
)

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	billing  billing.Service
	profiles service.ProfileService
	topups   service.TopUpService
	logger   *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, profiles service.ProfileService, topups service.TopUpService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing:  billingService,
		profiles: profiles,
		topups:   topups,
		logger:   logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
// These routes are PUBLIC, no auth middleware.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes incoming Stripe webhook events.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	// Read body (limit to 64KB)
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	event, err := h.billing.VerifyWebhookSignature(body, signature)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	status := "processed"
	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(event)
	case "customer.subscription.created", "customer.subscription.updated":
		h.handleSubscriptionChange(event)
	case "customer.subscription.deleted":
		h.handleSubscriptionDeleted(event)
	case "invoice.payment_succeeded":
		h.handlePaymentSucceeded(event)
	case "invoice.payment_failed":
		h.handlePaymentFailed(event)
	default:
		status = "ignored"
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
	}
	metrics.WebhookEvents.WithLabelValues(string(event.Type), status).Inc()

	// Always 200: Stripe retries on non-2xx, and processing failures here are
	// logged rather than retried to avoid double-crediting.
	w.WriteHeader(http.StatusOK)
}

// handleCheckoutCompleted processes a finished Checkout session. Payment-mode
// sessions are top-up purchases; subscription-mode sessions are handled by the
// subscription events that follow them.
func (h *WebhookHandler) handleCheckoutCompleted(event stripe.Event) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.logger.Error("failed to parse checkout session", "error", err)
		return
	}

	if session.Mode != stripe.CheckoutSessionModePayment {
		return
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		h.logger.Warn("top-up checkout completed without payment", "session_id", session.ID)
		return
	}

	userID, err := uuid.Parse(session.Metadata[billing.MetadataUserID])
	if err != nil {
		h.logger.Error("top-up checkout missing user metadata", "session_id", session.ID)
		return
	}
	packageType := session.Metadata[billing.MetadataPackageType]
	pkg := catalog.GetTopUpPackage(packageType)
	if pkg == nil {
		h.logger.Error("top-up checkout with unknown package", "session_id", session.ID, "package", packageType)
		return
	}

	// The payment intent is the idempotency key: webhook redeliveries carry
	// the same reference and hit the unique constraint.
	paymentRef := session.ID
	if session.PaymentIntent != nil {
		paymentRef = session.PaymentIntent.ID
	}

	_, err = h.topups.PurchaseTopUp(webhookCtx(), domain.PurchaseTopUpParams{
		UserID:           userID,
		PackageType:      pkg.ID,
		ChatsAdded:       pkg.ChatsAdded,
		PriceUsd:         pkg.PriceCents,
		PaymentReference: paymentRef,
	})
	if err != nil {
		if domain.ErrorCode(err) == domain.ECONFLICT {
			h.logger.Info("top-up already credited", "payment_reference", paymentRef)
			return
		}
		h.logger.Error("failed to credit top-up", "error", err, "user_id", userID)
		return
	}

	h.logger.Info("top-up credited from webhook", "user_id", userID, "package", pkg.ID)
}

// handleSubscriptionChange applies created/updated subscription events.
// The tier change (and its quota reset) is applied only when the tier or
// subscription reference actually changed; routine updates such as a
// cancel_at_period_end toggle must not zero consumption.
func (h *WebhookHandler) handleSubscriptionChange(event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription event", "error", err)
		return
	}
	if sub.Customer == nil {
		h.logger.Warn("subscription event missing customer", "subscription_id", sub.ID)
		return
	}

	profile, err := h.profiles.GetProfileByStripeCustomer(webhookCtx(), sub.Customer.ID)
	if err != nil {
		h.logger.Warn("profile not found for subscription event",
			"customer_id", sub.Customer.ID, "subscription_id", sub.ID)
		return
	}

	tier := ""
	if len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		tier = h.billing.TierForPriceID(sub.Items.Data[0].Price.ID)
	}
	if tier == "" {
		h.logger.Warn("subscription event with unknown price", "subscription_id", sub.ID)
		return
	}

	if domain.SubscriptionTier(tier) == profile.Tier && profile.SubscriptionID == sub.ID {
		h.logger.Debug("subscription event with no tier change",
			"user_id", profile.UserID, "tier", tier)
		return
	}

	if err := h.profiles.UpgradeTier(webhookCtx(), profile.UserID, domain.SubscriptionTier(tier), sub.ID); err != nil {
		h.logger.Error("failed to apply tier change", "error", err, "user_id", profile.UserID)
		return
	}

	h.logger.Info("subscription event processed",
		"user_id", profile.UserID, "tier", tier, "subscription_id", sub.ID)
}

// handleSubscriptionDeleted downgrades the profile to the free tier.
func (h *WebhookHandler) handleSubscriptionDeleted(event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription deleted event", "error", err)
		return
	}
	if sub.Customer == nil {
		h.logger.Warn("subscription deleted event missing customer", "subscription_id", sub.ID)
		return
	}

	profile, err := h.profiles.GetProfileByStripeCustomer(webhookCtx(), sub.Customer.ID)
	if err != nil {
		h.logger.Warn("profile not found for subscription deletion", "customer_id", sub.Customer.ID)
		return
	}

	if err := h.profiles.UpgradeTier(webhookCtx(), profile.UserID, domain.TierExplorer, ""); err != nil {
		h.logger.Error("failed to downgrade after subscription deletion", "error", err, "user_id", profile.UserID)
		return
	}

	h.logger.Info("subscription deleted, profile downgraded", "user_id", profile.UserID)
}

// handlePaymentSucceeded recovers a past_due profile back to active.
func (h *WebhookHandler) handlePaymentSucceeded(event stripe.Event) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		h.logger.Error("failed to parse invoice payment succeeded event", "error", err)
		return
	}
	if invoice.Customer == nil {
		return
	}

	profile, err := h.profiles.GetProfileByStripeCustomer(webhookCtx(), invoice.Customer.ID)
	if err != nil {
		h.logger.Debug("profile not found for payment succeeded", "customer_id", invoice.Customer.ID)
		return
	}

	if profile.Status == domain.SubscriptionStatusPastDue {
		if err := h.profiles.SetStatus(webhookCtx(), profile.UserID, domain.SubscriptionStatusActive); err != nil {
			h.logger.Error("failed to reactivate on payment success", "error", err, "user_id", profile.UserID)
		}
	}
}

// handlePaymentFailed marks the profile past_due. Quota is untouched; access
// decisions on a past_due profile are a product call made elsewhere.
func (h *WebhookHandler) handlePaymentFailed(event stripe.Event) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		h.logger.Error("failed to parse invoice payment failed event", "error", err)
		return
	}
	if invoice.Customer == nil {
		return
	}

	profile, err := h.profiles.GetProfileByStripeCustomer(webhookCtx(), invoice.Customer.ID)
	if err != nil {
		h.logger.Debug("profile not found for payment failed", "customer_id", invoice.Customer.ID)
		return
	}

	if err := h.profiles.SetStatus(webhookCtx(), profile.UserID, domain.SubscriptionStatusPastDue); err != nil {
		h.logger.Error("failed to set past_due on payment failure", "error", err, "user_id", profile.UserID)
	}

	h.logger.Warn("payment failed", "user_id", profile.UserID, "customer_id", invoice.Customer.ID)
}

// webhookCtx returns a background context for webhook processing.
// Webhooks are async events with no user request context.
func webhookCtx() context.Context {
	return context.Background()
}
