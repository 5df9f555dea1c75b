// Package fees resolves the marketplace and payment fee schedule that applies
// to a listing: final-value-fee rate (after store subscription discounts),
// insertion fee, and the flat international and payment-processor rates.
package fees

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atmx/landed-cost/internal/model"
	"github.com/atmx/landed-cost/internal/store"
)

// ErrCategoryNotFound is returned when a listing category has no fee schedule.
var ErrCategoryNotFound = errors.New("fees: category not found")

// Source supplies category fee schedules.
type Source interface {
	CategoryFee(ctx context.Context, categoryID string) (*model.CategoryFee, error)
}

// Config holds the rates that come from configuration rather than the fee
// tables. International and payment rates apply to total revenue.
type Config struct {
	InternationalFeeRate   decimal.Decimal
	PaymentFeeRate         decimal.Decimal
	DefaultInsertionFeeUSD decimal.Decimal
	DefaultFVFRate         decimal.Decimal
}

// Schedule is the resolved fee schedule for one pricing call.
type Schedule struct {
	CategoryID           string          `json:"category_id,omitempty"`
	FVFRate              decimal.Decimal `json:"fvf_rate"`
	InsertionFeeUSD      decimal.Decimal `json:"insertion_fee_usd"`
	InternationalFeeRate decimal.Decimal `json:"international_fee_rate"`
	PaymentFeeRate       decimal.Decimal `json:"payment_fee_rate"`
}

// RevenueRate is the combined share of revenue taken by percentage fees.
func (s Schedule) RevenueRate() decimal.Decimal {
	return s.FVFRate.Add(s.InternationalFeeRate).Add(s.PaymentFeeRate)
}

// Resolver builds fee schedules.
type Resolver struct {
	src Source
	cfg Config
}

// NewResolver creates a resolver reading category fees from src.
func NewResolver(src Source, cfg Config) *Resolver {
	return &Resolver{src: src, cfg: cfg}
}

// Resolve returns the schedule for a category, store subscription and monthly
// sales volume. An empty categoryID resolves to the configured default FVF and
// insertion fee.
func (r *Resolver) Resolve(ctx context.Context, categoryID string, storeType model.StoreType, monthlySalesUSD decimal.Decimal) (Schedule, error) {
	if categoryID == "" {
		return r.schedule("", r.cfg.DefaultFVFRate, r.cfg.DefaultInsertionFeeUSD), nil
	}

	cf, err := r.src.CategoryFee(ctx, categoryID)
	if errors.Is(err, store.ErrNotFound) {
		return Schedule{}, fmt.Errorf("%w: %s", ErrCategoryNotFound, categoryID)
	}
	if err != nil {
		return Schedule{}, fmt.Errorf("load category fee %s: %w", categoryID, err)
	}

	rate := SelectTier(cf, storeType, monthlySalesUSD)
	return r.schedule(cf.CategoryID, rate, cf.InsertionFeeUSD), nil
}

// Override returns a schedule using an explicit FVF rate, bypassing the
// category lookup. The default insertion fee applies.
func (r *Resolver) Override(fvfRate decimal.Decimal) Schedule {
	return r.schedule("", fvfRate, r.cfg.DefaultInsertionFeeUSD)
}

func (r *Resolver) schedule(categoryID string, fvf, insertion decimal.Decimal) Schedule {
	return Schedule{
		CategoryID:           categoryID,
		FVFRate:              fvf,
		InsertionFeeUSD:      insertion,
		InternationalFeeRate: r.cfg.InternationalFeeRate,
		PaymentFeeRate:       r.cfg.PaymentFeeRate,
	}
}

// SelectTier picks the FVF rate for a store subscription: the tier with the
// highest threshold not above monthlySalesUSD. Equal thresholds resolve to
// the cheaper rate. Sellers without a store, or without a qualifying tier,
// pay the category base rate.
func SelectTier(cf *model.CategoryFee, storeType model.StoreType, monthlySalesUSD decimal.Decimal) decimal.Decimal {
	rate := cf.FinalValueFeeRate
	if storeType == model.StoreNone || storeType == "" {
		return rate
	}

	var best *model.StoreDiscountTier
	for i := range cf.StoreDiscountTiers {
		t := &cf.StoreDiscountTiers[i]
		if t.StoreType != storeType || t.MinMonthlySalesUSD.GreaterThan(monthlySalesUSD) {
			continue
		}
		switch {
		case best == nil,
			t.MinMonthlySalesUSD.GreaterThan(best.MinMonthlySalesUSD),
			t.MinMonthlySalesUSD.Equal(best.MinMonthlySalesUSD) && t.FVFRate.LessThan(best.FVFRate):
			best = t
		}
	}
	if best != nil {
		rate = best.FVFRate
	}
	return rate
}
