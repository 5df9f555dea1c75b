package landed

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atmx/landed-cost/internal/model"
)

// input is a PricingRequest with every default applied and every field
// validated. The solver reads only this.
type input struct {
	costUSD      decimal.Decimal
	weightKg     decimal.Decimal
	hsCode       string
	origin       string
	margin       decimal.Decimal // fraction, 0.15 for 15%
	storeType    model.StoreType
	fvfOverride  *decimal.Decimal
	categoryID   string
	monthlySales decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// resolveInput validates req and applies defaults in one place: store type
// defaults to none, monthly sales to zero, and codes are normalised.
func resolveInput(req model.PricingRequest) (input, error) {
	if !req.CostJPY.IsPositive() {
		return input{}, fmt.Errorf("%w: cost_jpy must be positive", ErrInvalidRequest)
	}
	if !req.WeightKg.IsPositive() {
		return input{}, fmt.Errorf("%w: weight_kg must be positive", ErrInvalidRequest)
	}
	if !req.ExchangeRate.IsPositive() {
		return input{}, fmt.Errorf("%w: exchange_rate must be positive", ErrInvalidRequest)
	}
	if !req.TargetMarginPct.IsPositive() || req.TargetMarginPct.GreaterThanOrEqual(hundred) {
		return input{}, fmt.Errorf("%w: target_margin_pct must be in (0, 100)", ErrInvalidRequest)
	}

	hs := model.NormalizeHSCode(req.HSCode)
	if hs == "" {
		return input{}, fmt.Errorf("%w: hs_code is required", ErrInvalidRequest)
	}
	origin := model.NormalizeCountry(req.OriginCountry)
	if len(origin) != 2 {
		return input{}, fmt.Errorf("%w: origin_country must be a 2-letter code", ErrInvalidRequest)
	}

	storeType := req.StoreType
	if storeType == "" {
		storeType = model.StoreNone
	}
	if !storeType.Valid() {
		return input{}, fmt.Errorf("%w: unknown store_type %q", ErrInvalidRequest, req.StoreType)
	}

	in := input{
		costUSD:      req.CostJPY.Div(req.ExchangeRate),
		weightKg:     req.WeightKg,
		hsCode:       hs,
		origin:       origin,
		margin:       req.TargetMarginPct.Div(hundred),
		storeType:    storeType,
		categoryID:   req.CategoryID,
		monthlySales: decimal.Zero,
	}

	if req.FVFRateOverride != nil {
		r := *req.FVFRateOverride
		if r.IsNegative() || r.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return input{}, fmt.Errorf("%w: fvf_rate_override must be in [0, 1)", ErrInvalidRequest)
		}
		in.fvfOverride = &r
	}
	if req.MonthlySalesUSD != nil {
		if req.MonthlySalesUSD.IsNegative() {
			return input{}, fmt.Errorf("%w: monthly_sales_usd must not be negative", ErrInvalidRequest)
		}
		in.monthlySales = *req.MonthlySalesUSD
	}
	return in, nil
}
