// Package breakdown assembles the client-facing PricingBreakdown from a
// solver outcome and the selected shipping policy.
package breakdown

import (
	"github.com/shopspring/decimal"

	"github.com/atmx/landed-cost/internal/landed"
	"github.com/atmx/landed-cost/internal/model"
	"github.com/atmx/landed-cost/internal/policy"
)

// Scale is the number of decimal places every currency and percentage field
// is rounded to.
const Scale = 2

var hundred = decimal.NewFromInt(100)

// Compose builds the breakdown. The total is the sum of the rounded product
// price and rounded shipping, so it always adds up to the cent.
//
// DEFICIT carries only the reason. DIVERGED is unsuccessful but keeps the last
// estimate and policy for diagnostics.
func Compose(o landed.Outcome, sel policy.Selection) model.PricingBreakdown {
	if o.State == landed.StateDeficit {
		return model.PricingBreakdown{
			Success: false,
			Error:   o.Reason,
		}
	}

	price := o.ProductPriceUSD.Round(Scale)
	shipping := o.ShippingUSD.Round(Scale)
	total := price.Add(shipping)
	withRefund := o.ProfitWithRefundUSD()

	b := model.PricingBreakdown{
		Success: o.State.Priced(),

		SelectedPolicyName: sel.PolicyName,
		CarrierName:        sel.CarrierName,
		ServiceName:        sel.ServiceName,

		FinalProductPriceUSD:    price,
		FinalShippingUSD:        shipping,
		FinalTotalUSD:           total,
		SelectedBaseShippingUSD: o.BaseShippingUSD.Round(Scale),

		ProfitUSD:           o.ProfitUSD.Round(Scale),
		ProfitUSDWithRefund: withRefund.Round(Scale),
	}
	if o.TotalUSD.IsPositive() {
		b.ProfitMarginPct = pct(o.ProfitUSD, o.TotalUSD)
		b.ProfitMarginPctWithRefund = pct(withRefund, o.TotalUSD)
	}
	if !b.Success {
		b.Error = o.Reason
	}
	return b
}

func pct(part, whole decimal.Decimal) decimal.Decimal {
	return part.Div(whole).Mul(hundred).Round(Scale)
}
