package fees

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atmx/landed-cost/internal/model"
	"github.com/atmx/landed-cost/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var testConfig = Config{
	InternationalFeeRate:   d(0.015),
	PaymentFeeRate:         d(0.02),
	DefaultInsertionFeeUSD: d(0.35),
	DefaultFVFRate:         d(0.1315),
}

func toysFee() model.CategoryFee {
	return model.CategoryFee{
		CategoryID:        "toys",
		FinalValueFeeRate: d(0.1325),
		InsertionFeeUSD:   d(0.30),
		StoreDiscountTiers: []model.StoreDiscountTier{
			{StoreType: model.StoreStandard, MinMonthlySalesUSD: d(0), FVFRate: d(0.1275)},
			{StoreType: model.StoreStandard, MinMonthlySalesUSD: d(7500), FVFRate: d(0.1235)},
			{StoreType: model.StorePremium, MinMonthlySalesUSD: d(0), FVFRate: d(0.1235)},
			{StoreType: model.StorePremium, MinMonthlySalesUSD: d(7500), FVFRate: d(0.1150)},
		},
	}
}

func newTestResolver() *Resolver {
	return NewResolver(store.NewMemoryStore(store.Tables{
		CategoryFees: []model.CategoryFee{toysFee()},
	}), testConfig)
}

func TestResolve_StoreTiers(t *testing.T) {
	r := newTestResolver()
	tests := []struct {
		name  string
		store model.StoreType
		sales float64
		want  float64
	}{
		{"no store", model.StoreNone, 50000, 0.1325},
		{"standard low volume", model.StoreStandard, 100, 0.1275},
		{"standard at threshold", model.StoreStandard, 7500, 0.1235},
		{"premium low volume", model.StorePremium, 0, 0.1235},
		{"premium high volume", model.StorePremium, 20000, 0.1150},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := r.Resolve(context.Background(), "toys", tc.store, d(tc.sales))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !s.FVFRate.Equal(d(tc.want)) {
				t.Errorf("expected fvf %v, got %s", tc.want, s.FVFRate)
			}
			if !s.InsertionFeeUSD.Equal(d(0.30)) {
				t.Errorf("expected category insertion fee 0.30, got %s", s.InsertionFeeUSD)
			}
			if !s.InternationalFeeRate.Equal(d(0.015)) || !s.PaymentFeeRate.Equal(d(0.02)) {
				t.Error("configured flat rates not applied")
			}
		})
	}
}

func TestSelectTier_TieResolvesToCheaper(t *testing.T) {
	cf := toysFee()
	cf.StoreDiscountTiers = append(cf.StoreDiscountTiers,
		model.StoreDiscountTier{StoreType: model.StoreStandard, MinMonthlySalesUSD: d(7500), FVFRate: d(0.1200)})

	got := SelectTier(&cf, model.StoreStandard, d(8000))
	if !got.Equal(d(0.12)) {
		t.Errorf("expected cheaper tied tier 0.12, got %s", got)
	}
}

func TestSelectTier_NoQualifyingTier(t *testing.T) {
	cf := toysFee()
	cf.StoreDiscountTiers = cf.StoreDiscountTiers[1:2] // standard from 7500 only

	got := SelectTier(&cf, model.StoreStandard, d(10))
	if !got.Equal(d(0.1325)) {
		t.Errorf("expected base rate, got %s", got)
	}
}

func TestResolve_Override(t *testing.T) {
	r := newTestResolver()
	s := r.Override(d(0.10))
	if !s.FVFRate.Equal(d(0.10)) {
		t.Errorf("expected override 0.10, got %s", s.FVFRate)
	}
	if !s.InsertionFeeUSD.Equal(d(0.35)) {
		t.Errorf("expected default insertion fee, got %s", s.InsertionFeeUSD)
	}
	if !s.RevenueRate().Equal(d(0.135)) {
		t.Errorf("expected revenue rate 0.135, got %s", s.RevenueRate())
	}
}

func TestResolve_EmptyCategoryUsesDefaults(t *testing.T) {
	r := newTestResolver()
	s, err := r.Resolve(context.Background(), "", model.StorePremium, d(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.FVFRate.Equal(d(0.1315)) {
		t.Errorf("expected default fvf 0.1315, got %s", s.FVFRate)
	}
}

func TestResolve_UnknownCategory(t *testing.T) {
	r := newTestResolver()
	_, err := r.Resolve(context.Background(), "furniture", model.StoreNone, d(0))
	if !errors.Is(err, ErrCategoryNotFound) {
		t.Errorf("expected ErrCategoryNotFound, got %v", err)
	}
}
