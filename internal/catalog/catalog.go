// Package catalog holds the read-only subscription tier and top-up package
// reference data. The catalog is sourced from configuration at build time and
// is never mutated by the quota subsystem; tier ceilings feed the profile
// service on upgrades and the price IDs feed the billing integration.
package catalog

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/verityair/concierge/internal/domain"
)

// Tier describes one subscription level.
type Tier struct {
	ID                domain.SubscriptionTier
	DisplayName       string
	PriceMonthlyCents int64
	QuotaCeiling      *int32 // nil = unlimited
	Features          []string
	Active            bool
}

// Unlimited returns true if the tier has no chat ceiling.
func (t *Tier) Unlimited() bool {
	return t.QuotaCeiling == nil
}

// PriceMonthlyDisplay formats the monthly price as a US-locale dollar string.
func (t *Tier) PriceMonthlyDisplay() string {
	p := message.NewPrinter(language.AmericanEnglish)
	dollars := t.PriceMonthlyCents / 100
	cents := t.PriceMonthlyCents % 100
	if cents == 0 {
		return p.Sprintf("$%d", dollars)
	}
	return p.Sprintf("$%d.%02d", dollars, cents)
}

func ceiling(n int32) *int32 { return &n }

// tiers maps tier IDs to their definitions.
var tiers = map[domain.SubscriptionTier]*Tier{
	domain.TierExplorer: {
		ID:                domain.TierExplorer,
		DisplayName:       "Explorer",
		PriceMonthlyCents: 0,
		QuotaCeiling:      ceiling(domain.ExplorerQuotaCeiling),
		Features:          []string{"2 concierge chats", "Empty-leg alerts"},
		Active:            true,
	},
	domain.TierStarter: {
		ID:                domain.TierStarter,
		DisplayName:       "Starter",
		PriceMonthlyCents: 4900,
		QuotaCeiling:      ceiling(10),
		Features:          []string{"10 concierge chats / month", "Empty-leg alerts", "Priority booking"},
		Active:            true,
	},
	domain.TierPro: {
		ID:                domain.TierPro,
		DisplayName:       "Pro",
		PriceMonthlyCents: 9900,
		QuotaCeiling:      ceiling(30),
		Features:          []string{"30 concierge chats / month", "Adventure package discounts", "Priority booking"},
		Active:            true,
	},
	domain.TierBusiness: {
		ID:                domain.TierBusiness,
		DisplayName:       "Business",
		PriceMonthlyCents: 24900,
		QuotaCeiling:      ceiling(100),
		Features:          []string{"100 concierge chats / month", "Team seats", "Dedicated account manager"},
		Active:            true,
	},
	domain.TierElite: {
		ID:                domain.TierElite,
		DisplayName:       "Elite",
		PriceMonthlyCents: 49900,
		QuotaCeiling:      nil, // unlimited
		Features:          []string{"Unlimited concierge chats", "Carbon-offset concierge", "SPV formation support"},
		Active:            true,
	},
}

// TierOrder defines the display ordering of tiers.
var TierOrder = []domain.SubscriptionTier{
	domain.TierExplorer,
	domain.TierStarter,
	domain.TierPro,
	domain.TierBusiness,
	domain.TierElite,
}

// GetTier returns a tier by ID, or nil for unknown IDs.
func GetTier(id domain.SubscriptionTier) *Tier {
	return tiers[id]
}

// ValidTier reports whether the given tier ID exists in the catalog.
func ValidTier(id domain.SubscriptionTier) bool {
	_, ok := tiers[id]
	return ok
}

// Tiers returns all catalog tiers in display order.
func Tiers() []*Tier {
	out := make([]*Tier, 0, len(TierOrder))
	for _, id := range TierOrder {
		out = append(out, tiers[id])
	}
	return out
}
