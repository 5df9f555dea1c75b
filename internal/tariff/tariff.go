// Package tariff resolves import-duty rates by HS code and origin country.
package tariff

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atmx/landed-cost/internal/model"
	"github.com/atmx/landed-cost/internal/store"
)

// ErrTariffNotFound is returned when no duty entry exists for an HS code and
// origin pair.
var ErrTariffNotFound = errors.New("tariff: tariff not found")

// Source supplies tariff entries keyed by HS code and origin country.
type Source interface {
	Tariff(ctx context.Context, hsCode, originCountry string) (*model.TariffEntry, error)
}

// Rate is the resolved duty for one classification.
type Rate struct {
	HSCode             string           `json:"hs_code"`
	OriginCountry      string           `json:"origin_country"`
	Category           string           `json:"category"`
	AdValoremRate      decimal.Decimal  `json:"ad_valorem_rate"`
	ShippingCostCapUSD *decimal.Decimal `json:"shipping_cost_cap_usd,omitempty"`
}

// Capped reports whether shipping charges must be clamped for this category.
func (r Rate) Capped() bool {
	return r.ShippingCostCapUSD != nil
}

// Resolver looks up duty rates. Matching is exact on the normalised HS code;
// there is no prefix or chapter-level fallback.
type Resolver struct {
	src Source
}

// NewResolver creates a resolver reading from src.
func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

// Resolve returns the duty rate and any category shipping cap for the pair.
func (r *Resolver) Resolve(ctx context.Context, hsCode, originCountry string) (Rate, error) {
	hs := model.NormalizeHSCode(hsCode)
	origin := model.NormalizeCountry(originCountry)
	if hs == "" || origin == "" {
		return Rate{}, fmt.Errorf("%w: empty hs code or origin", ErrTariffNotFound)
	}

	e, err := r.src.Tariff(ctx, hs, origin)
	if errors.Is(err, store.ErrNotFound) {
		return Rate{}, fmt.Errorf("%w: %s from %s", ErrTariffNotFound, hsCode, origin)
	}
	if err != nil {
		return Rate{}, fmt.Errorf("load tariff %s/%s: %w", hs, origin, err)
	}

	rate := Rate{
		HSCode:        hs,
		OriginCountry: origin,
		Category:      e.Category,
		AdValoremRate: e.AdValoremRate,
	}
	if e.ShippingCostCapUSD != nil {
		c := *e.ShippingCostCapUSD
		rate.ShippingCostCapUSD = &c
	}
	return rate, nil
}
