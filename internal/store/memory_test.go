package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atmx/landed-cost/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestDefaultTables_Valid(t *testing.T) {
	tables, err := DefaultTables()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tables.RateBands) == 0 || len(tables.Tariffs) == 0 ||
		len(tables.CategoryFees) == 0 || len(tables.ShippingPolicies) == 0 {
		t.Fatalf("bundled tables are incomplete: %+v", tables)
	}
}

func TestMemoryStore_RateBandsForWeight(t *testing.T) {
	tables, err := DefaultTables()
	if err != nil {
		t.Fatal(err)
	}
	st := NewMemoryStore(tables)
	ctx := context.Background()

	bands, err := st.RateBandsForWeight(ctx, d(0.3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bands) == 0 {
		t.Fatal("expected rows for 0.3 kg")
	}
	for i, b := range bands {
		if b.BandCode != "RT01" {
			t.Errorf("expected RT01, got %s", b.BandCode)
		}
		if i > 0 && !bands[i-1].PricePointUSD.LessThan(b.PricePointUSD) {
			t.Errorf("price points not ascending at %d", i)
		}
	}

	// Upper bound is exclusive.
	bands, _ = st.RateBandsForWeight(ctx, d(0.5))
	if len(bands) == 0 || bands[0].BandCode != "RT02" {
		t.Errorf("expected 0.5 kg to resolve to RT02, got %+v", bands)
	}

	bands, _ = st.RateBandsForWeight(ctx, d(1000))
	if len(bands) != 0 {
		t.Errorf("expected no rows beyond the last band, got %d", len(bands))
	}
}

func TestMemoryStore_TariffNormalisesKey(t *testing.T) {
	tables, _ := DefaultTables()
	st := NewMemoryStore(tables)
	ctx := context.Background()

	for _, hs := range []string{"9504.40.00", "95044000", " 9504-40-00 "} {
		e, err := st.Tariff(ctx, hs, "jp")
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", hs, err)
		}
		if e.Category != "collectibles" {
			t.Errorf("%q: expected collectibles, got %s", hs, e.Category)
		}
	}

	e, err := st.Tariff(ctx, "4901.99.00", "JP")
	if err != nil {
		t.Fatal(err)
	}
	if e.ShippingCostCapUSD == nil || !e.ShippingCostCapUSD.Equal(d(20)) {
		t.Errorf("expected book cap 20, got %v", e.ShippingCostCapUSD)
	}

	// Prefixes do not match.
	if _, err := st.Tariff(ctx, "9504", "JP"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for prefix, got %v", err)
	}
	if _, err := st.Tariff(ctx, "9504.40.00", "US"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown origin, got %v", err)
	}
}

func TestMemoryStore_CategoryFeeCopiesTiers(t *testing.T) {
	tables, _ := DefaultTables()
	st := NewMemoryStore(tables)
	ctx := context.Background()

	f, err := st.CategoryFee(ctx, "toys")
	if err != nil {
		t.Fatal(err)
	}
	if len(f.StoreDiscountTiers) == 0 {
		t.Fatal("expected discount tiers")
	}
	f.StoreDiscountTiers[0].FVFRate = d(0.99)

	again, _ := st.CategoryFee(ctx, "toys")
	if again.StoreDiscountTiers[0].FVFRate.Equal(d(0.99)) {
		t.Error("mutation of a returned fee leaked into the store")
	}

	if _, err := st.CategoryFee(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadTables_RejectsGap(t *testing.T) {
	const doc = `
rate_bands:
  - {band_code: RT01, weight_min_kg: "0", weight_max_kg: "0.5", price_point_usd: "50",
     base_shipping_usd: "10", duty_fee_usd: "1", total_shipping_usd: "11"}
  - {band_code: RT02, weight_min_kg: "0.6", weight_max_kg: "1.0", price_point_usd: "50",
     base_shipping_usd: "12", duty_fee_usd: "1", total_shipping_usd: "13"}
`
	_, err := LoadTables(strings.NewReader(doc))
	if !errors.Is(err, ErrInvalidTables) {
		t.Errorf("expected ErrInvalidTables, got %v", err)
	}
}

func TestLoadTables_RejectsRateOutOfRange(t *testing.T) {
	const doc = `
tariffs:
  - {hs_code: "6110.20.20", origin_country: CN, ad_valorem_rate: "1.2", category: apparel}
`
	_, err := LoadTables(strings.NewReader(doc))
	if !errors.Is(err, ErrInvalidTables) {
		t.Errorf("expected ErrInvalidTables, got %v", err)
	}
}

func TestLoadTables_RejectsUnorderedTiers(t *testing.T) {
	tables := Tables{CategoryFees: []model.CategoryFee{{
		CategoryID:        "toys",
		FinalValueFeeRate: d(0.13),
		StoreDiscountTiers: []model.StoreDiscountTier{
			{StoreType: model.StoreStandard, MinMonthlySalesUSD: d(7500), FVFRate: d(0.12)},
			{StoreType: model.StoreStandard, MinMonthlySalesUSD: d(0), FVFRate: d(0.125)},
		},
	}}}
	if err := tables.Validate(); !errors.Is(err, ErrInvalidTables) {
		t.Errorf("expected ErrInvalidTables, got %v", err)
	}
}

func TestLoadTables_RejectsUnknownField(t *testing.T) {
	_, err := LoadTables(strings.NewReader("rate_bandz: []\n"))
	if err == nil {
		t.Error("expected error for unknown field")
	}
}
