package billing

import "testing"

func testService() Service {
	return NewStripeService("sk_test_123", "whsec_123", PriceConfig{
		StarterPriceID:  "price_starter",
		ProPriceID:      "price_pro",
		BusinessPriceID: "price_business",
		ElitePriceID:    "price_elite",

		TopUpSinglePriceID:   "price_single",
		TopUpFivePackPriceID: "price_five",
		TopUpTenPackPriceID:  "price_ten",
	})
}

func TestTierForPriceID(t *testing.T) {
	svc := testService()

	tests := []struct {
		priceID string
		want    string
	}{
		{"price_starter", "starter"},
		{"price_pro", "pro"},
		{"price_business", "business"},
		{"price_elite", "elite"},
		{"price_single", ""}, // top-up prices are not tiers
		{"price_unknown", ""},
	}

	for _, tt := range tests {
		if got := svc.TierForPriceID(tt.priceID); got != tt.want {
			t.Errorf("TierForPriceID(%q) = %q, want %q", tt.priceID, got, tt.want)
		}
	}
}

func TestTopUpPackageForPriceID(t *testing.T) {
	svc := testService()

	tests := []struct {
		priceID string
		want    string
	}{
		{"price_single", "single"},
		{"price_five", "five_pack"},
		{"price_ten", "ten_pack"},
		{"price_starter", ""}, // tier prices are not top-ups
		{"price_unknown", ""},
	}

	for _, tt := range tests {
		if got := svc.TopUpPackageForPriceID(tt.priceID); got != tt.want {
			t.Errorf("TopUpPackageForPriceID(%q) = %q, want %q", tt.priceID, got, tt.want)
		}
	}
}

func TestPriceIDRoundTrips(t *testing.T) {
	svc := testService()

	for _, tier := range []string{"starter", "pro", "business", "elite"} {
		priceID := svc.PriceIDForTier(tier)
		if priceID == "" {
			t.Errorf("no price for tier %q", tier)
			continue
		}
		if got := svc.TierForPriceID(priceID); got != tier {
			t.Errorf("tier %q round-tripped to %q", tier, got)
		}
	}

	for _, pkg := range []string{"single", "five_pack", "ten_pack"} {
		priceID := svc.PriceIDForTopUpPackage(pkg)
		if priceID == "" {
			t.Errorf("no price for package %q", pkg)
			continue
		}
		if got := svc.TopUpPackageForPriceID(priceID); got != pkg {
			t.Errorf("package %q round-tripped to %q", pkg, got)
		}
	}

	if svc.PriceIDForTier("explorer") != "" {
		t.Error("the free tier has no price")
	}
	if svc.PriceIDForTopUpPackage("mega_pack") != "" {
		t.Error("unknown packages have no price")
	}
}

func TestUnconfiguredPricesAreNotMapped(t *testing.T) {
	svc := NewStripeService("sk_test_123", "whsec_123", PriceConfig{
		StarterPriceID: "price_starter",
	})

	if got := svc.TierForPriceID("price_starter"); got != "starter" {
		t.Errorf("expected starter, got %q", got)
	}
	if got := svc.TierForPriceID(""); got != "" {
		t.Errorf("empty price ID must not map to a tier, got %q", got)
	}
}
