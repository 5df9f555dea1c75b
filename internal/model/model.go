// Package model defines the domain types shared across the landed-cost engine.
// All monetary values and rates use shopspring/decimal, never float64.
package model

import (
	"github.com/shopspring/decimal"
)

// StoreType is the marketplace store subscription of the seller.
type StoreType string

const (
	StoreNone     StoreType = "none"
	StoreStandard StoreType = "standard"
	StorePremium  StoreType = "premium"
)

// Valid reports whether s is one of the known store subscriptions.
func (s StoreType) Valid() bool {
	switch s {
	case StoreNone, StoreStandard, StorePremium:
		return true
	}
	return false
}

// RateBand is one row of the shipping-rate matrix: a weight band crossed with
// a declared-value price point. Bands are half-open: WeightMinKg <= w < WeightMaxKg.
type RateBand struct {
	BandCode         string          `json:"band_code" yaml:"band_code" db:"band_code"` // e.g. "RT03"
	WeightMinKg      decimal.Decimal `json:"weight_min_kg" yaml:"weight_min_kg" db:"weight_min_kg"`
	WeightMaxKg      decimal.Decimal `json:"weight_max_kg" yaml:"weight_max_kg" db:"weight_max_kg"`
	PricePointUSD    decimal.Decimal `json:"price_point_usd" yaml:"price_point_usd" db:"price_point_usd"`
	BaseShippingUSD  decimal.Decimal `json:"base_shipping_usd" yaml:"base_shipping_usd" db:"base_shipping_usd"`
	DutyFeeUSD       decimal.Decimal `json:"duty_fee_usd" yaml:"duty_fee_usd" db:"duty_fee_usd"`
	TotalShippingUSD decimal.Decimal `json:"total_shipping_usd" yaml:"total_shipping_usd" db:"total_shipping_usd"`
}

// Contains reports whether weightKg falls inside the band's half-open range.
func (b RateBand) Contains(weightKg decimal.Decimal) bool {
	return weightKg.GreaterThanOrEqual(b.WeightMinKg) && weightKg.LessThan(b.WeightMaxKg)
}

// TariffEntry is the duty rate for one HS code from one origin country.
// AdValoremRate is a fraction (0.07 = 7%). ShippingCostCapUSD is set only for
// capped categories such as books and recorded media.
type TariffEntry struct {
	HSCode             string           `json:"hs_code" yaml:"hs_code" db:"hs_code"`
	OriginCountry      string           `json:"origin_country" yaml:"origin_country" db:"origin_country"`
	AdValoremRate      decimal.Decimal  `json:"ad_valorem_rate" yaml:"ad_valorem_rate" db:"ad_valorem_rate"`
	Category           string           `json:"category" yaml:"category" db:"category"`
	Description        string           `json:"description,omitempty" yaml:"description" db:"description"`
	ShippingCostCapUSD *decimal.Decimal `json:"shipping_cost_cap_usd,omitempty" yaml:"shipping_cost_cap_usd" db:"shipping_cost_cap_usd"`
}

// StoreDiscountTier is a discounted final-value-fee rate available to a store
// subscription once monthly sales reach MinMonthlySalesUSD.
type StoreDiscountTier struct {
	StoreType          StoreType       `json:"store_type" yaml:"store_type"`
	MinMonthlySalesUSD decimal.Decimal `json:"min_monthly_sales_usd" yaml:"min_monthly_sales_usd"`
	FVFRate            decimal.Decimal `json:"fvf_rate" yaml:"fvf_rate"`
}

// CategoryFee is the marketplace fee schedule of one listing category.
type CategoryFee struct {
	CategoryID         string              `json:"category_id" yaml:"category_id" db:"category_id"`
	FinalValueFeeRate  decimal.Decimal     `json:"final_value_fee_rate" yaml:"final_value_fee_rate" db:"final_value_fee_rate"`
	InsertionFeeUSD    decimal.Decimal     `json:"insertion_fee_usd" yaml:"insertion_fee_usd" db:"insertion_fee_usd"`
	StoreDiscountTiers []StoreDiscountTier `json:"store_discount_tiers" yaml:"store_discount_tiers"`
}

// ShippingPolicy is a named marketplace shipping policy. The engine only
// selects policies; it never creates them.
type ShippingPolicy struct {
	ID              string          `json:"id" yaml:"id" db:"id"`
	Name            string          `json:"name" yaml:"name" db:"name"` // e.g. "RT03_P0150"
	CarrierName     string          `json:"carrier_name" yaml:"carrier_name" db:"carrier_name"`
	ServiceName     string          `json:"service_name" yaml:"service_name" db:"service_name"`
	WeightMinKg     decimal.Decimal `json:"weight_min_kg" yaml:"weight_min_kg" db:"weight_min_kg"`
	WeightMaxKg     decimal.Decimal `json:"weight_max_kg" yaml:"weight_max_kg" db:"weight_max_kg"`
	ShippingCostUSD decimal.Decimal `json:"shipping_cost_usd" yaml:"shipping_cost_usd" db:"shipping_cost_usd"`
}

// Contains reports whether weightKg falls inside the policy's weight range.
func (p ShippingPolicy) Contains(weightKg decimal.Decimal) bool {
	return weightKg.GreaterThanOrEqual(p.WeightMinKg) && weightKg.LessThan(p.WeightMaxKg)
}

// PricingRequest is the immutable input of a single pricing call.
// TargetMarginPct is a percentage in (0, 100); ExchangeRate is JPY per USD.
type PricingRequest struct {
	CostJPY         decimal.Decimal  `json:"cost_jpy"`
	WeightKg        decimal.Decimal  `json:"weight_kg"`
	HSCode          string           `json:"hs_code"`
	OriginCountry   string           `json:"origin_country"`
	TargetMarginPct decimal.Decimal  `json:"target_margin_pct"`
	StoreType       StoreType        `json:"store_type"`
	FVFRateOverride *decimal.Decimal `json:"fvf_rate_override,omitempty"`
	ExchangeRate    decimal.Decimal  `json:"exchange_rate"`

	// CategoryID overrides the category attached to the tariff entry.
	CategoryID string `json:"category_id,omitempty"`
	// MonthlySalesUSD drives store discount tier selection.
	MonthlySalesUSD *decimal.Decimal `json:"monthly_sales_usd,omitempty"`
}

// PricingBreakdown is the output of a pricing call. Currency fields are
// rounded to cents and FinalTotalUSD == FinalProductPriceUSD + FinalShippingUSD.
type PricingBreakdown struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	SelectedPolicyName string `json:"selected_policy_name"`
	CarrierName        string `json:"carrier_name"`
	ServiceName        string `json:"service_name"`

	FinalProductPriceUSD    decimal.Decimal `json:"final_product_price_usd"`
	FinalShippingUSD        decimal.Decimal `json:"final_shipping_usd"`
	FinalTotalUSD           decimal.Decimal `json:"final_total_usd"`
	SelectedBaseShippingUSD decimal.Decimal `json:"selected_base_shipping_usd"`

	ProfitUSD       decimal.Decimal `json:"profit_usd"`
	ProfitMarginPct decimal.Decimal `json:"profit_margin_pct"`

	ProfitUSDWithRefund       decimal.Decimal `json:"profit_usd_with_refund"`
	ProfitMarginPctWithRefund decimal.Decimal `json:"profit_margin_pct_with_refund"`
}
