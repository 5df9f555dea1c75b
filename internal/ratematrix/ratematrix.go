// Package ratematrix resolves the shipping and duty-fee charges for a parcel
// from the two-axis rate matrix: weight band × declared-value price point.
//
// Weight selects exactly one band (half-open [min, max)). Within the band the
// declared value is clamped to the price-point ladder and, between two points,
// duty and total shipping are linearly interpolated.
package ratematrix

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atmx/landed-cost/internal/model"
)

// PriceScale is the number of decimal places interpolated charges are rounded to.
const PriceScale = 2

// ErrRateNotFound is returned when no weight band contains the parcel weight.
var ErrRateNotFound = errors.New("ratematrix: rate not found")

// Source supplies the rate-matrix rows of the band containing a weight,
// ordered by price point ascending.
type Source interface {
	RateBandsForWeight(ctx context.Context, weightKg decimal.Decimal) ([]model.RateBand, error)
}

// Resolver looks up rate-matrix charges. It holds no state beyond its source.
type Resolver struct {
	src Source
}

// NewResolver creates a resolver reading from src.
func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

// Resolve returns the charges for a parcel of weightKg declared at priceUSD.
// The returned band's PricePointUSD is the clamped declared value the charges
// were computed for.
func (r *Resolver) Resolve(ctx context.Context, weightKg, priceUSD decimal.Decimal) (model.RateBand, error) {
	rows, err := r.src.RateBandsForWeight(ctx, weightKg)
	if err != nil {
		return model.RateBand{}, fmt.Errorf("load rate band for %s kg: %w", weightKg, err)
	}
	if len(rows) == 0 {
		return model.RateBand{}, fmt.Errorf("%w: no weight band contains %s kg", ErrRateNotFound, weightKg)
	}
	return Interpolate(rows, priceUSD), nil
}

// Interpolate computes the charges at priceUSD over the rows of a single
// weight band. rows must be non-empty and sorted by price point ascending.
func Interpolate(rows []model.RateBand, priceUSD decimal.Decimal) model.RateBand {
	first, last := rows[0], rows[len(rows)-1]
	if priceUSD.LessThanOrEqual(first.PricePointUSD) {
		return first
	}
	if priceUSD.GreaterThanOrEqual(last.PricePointUSD) {
		return last
	}

	for i := 1; i < len(rows); i++ {
		lower, upper := rows[i-1], rows[i]
		if priceUSD.Equal(upper.PricePointUSD) {
			return upper
		}
		if priceUSD.GreaterThan(upper.PricePointUSD) {
			continue
		}

		ratio := priceUSD.Sub(lower.PricePointUSD).Div(upper.PricePointUSD.Sub(lower.PricePointUSD))
		return model.RateBand{
			BandCode:         lower.BandCode,
			WeightMinKg:      lower.WeightMinKg,
			WeightMaxKg:      lower.WeightMaxKg,
			PricePointUSD:    priceUSD,
			BaseShippingUSD:  lower.BaseShippingUSD,
			DutyFeeUSD:       lerp(lower.DutyFeeUSD, upper.DutyFeeUSD, ratio),
			TotalShippingUSD: lerp(lower.TotalShippingUSD, upper.TotalShippingUSD, ratio),
		}
	}
	return last
}

func lerp(lo, hi, ratio decimal.Decimal) decimal.Decimal {
	return lo.Add(hi.Sub(lo).Mul(ratio)).Round(PriceScale)
}
