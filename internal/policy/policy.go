// Package policy handles shipping-policy name parsing and selection of the
// marketplace shipping policy that matches a resolved weight band.
package policy

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/atmx/landed-cost/internal/model"
)

// nameRegex matches: RT{nn}_P{pppp}
// Example: RT03_P0150 (weight band RT03, declared value up to $150)
var nameRegex = regexp.MustCompile(`^RT(\d{2})_P(\d{4})$`)

var ErrInvalidName = errors.New("policy: invalid policy name")

// Name is a parsed weight-banded policy name.
type Name struct {
	Name          string          `json:"name"`
	BandCode      string          `json:"band_code"`
	PricePointUSD decimal.Decimal `json:"price_point_usd"`
}

// ParseName parses a weight-banded policy name.
// Format: RT{nn}_P{pppp}
func ParseName(name string) (*Name, error) {
	matches := nameRegex.FindStringSubmatch(name)
	if matches == nil {
		return nil, fmt.Errorf("%w: %s (expected RT{nn}_P{pppp})", ErrInvalidName, name)
	}

	point, err := strconv.Atoi(matches[2])
	if err != nil || point == 0 {
		return nil, fmt.Errorf("%w: invalid price point %s", ErrInvalidName, matches[2])
	}

	return &Name{
		Name:          name,
		BandCode:      "RT" + matches[1],
		PricePointUSD: decimal.NewFromInt(int64(point)),
	}, nil
}

// Source supplies the shipping-policy catalog.
type Source interface {
	ShippingPolicies(ctx context.Context) ([]model.ShippingPolicy, error)
}

// Basis is what the selection is made against: the rate-matrix band the
// solver settled in and the product price it solved for.
type Basis struct {
	WeightKg        decimal.Decimal
	BandCode        string
	ProductPriceUSD decimal.Decimal
}

// Selection is the chosen policy. Fallback is set when no catalog policy
// covered the weight and the configured default name was used instead.
type Selection struct {
	PolicyName  string `json:"policy_name"`
	CarrierName string `json:"carrier_name"`
	ServiceName string `json:"service_name"`
	Fallback    bool   `json:"fallback"`
}

// Selector picks shipping policies from the catalog.
type Selector struct {
	src         Source
	defaultName string
}

// NewSelector creates a selector. defaultName is used when nothing in the
// catalog covers a parcel.
func NewSelector(src Source, defaultName string) *Selector {
	return &Selector{src: src, defaultName: defaultName}
}

// Select returns the policy for basis. Selection never fails a quote: when the
// catalog cannot be read the default is returned together with the error so
// the caller can record it.
func (s *Selector) Select(ctx context.Context, basis Basis) (Selection, error) {
	policies, err := s.src.ShippingPolicies(ctx)
	if err != nil {
		return s.fallback(nil), fmt.Errorf("load shipping policies: %w", err)
	}
	if p, ok := pick(policies, basis); ok {
		return Selection{
			PolicyName:  p.Name,
			CarrierName: p.CarrierName,
			ServiceName: p.ServiceName,
		}, nil
	}
	return s.fallback(policies), nil
}

func (s *Selector) fallback(policies []model.ShippingPolicy) Selection {
	sel := Selection{PolicyName: s.defaultName, Fallback: true}
	for _, p := range policies {
		if p.Name == s.defaultName {
			sel.CarrierName = p.CarrierName
			sel.ServiceName = p.ServiceName
			break
		}
	}
	return sel
}

type candidate struct {
	policy model.ShippingPolicy
	point  decimal.Decimal
}

// pick applies the selection order:
//  1. policies whose name encodes the matched band, preferring the lowest
//     price point that still covers the product price, else the highest
//  2. any other policy covering the weight, lowest shipping cost first
//
// Remaining ties go to the lower shipping cost, then the name.
func pick(policies []model.ShippingPolicy, basis Basis) (model.ShippingPolicy, bool) {
	var banded, generic []candidate
	for _, p := range policies {
		if !p.Contains(basis.WeightKg) {
			continue
		}
		if n, err := ParseName(p.Name); err == nil && n.BandCode == basis.BandCode {
			banded = append(banded, candidate{policy: p, point: n.PricePointUSD})
			continue
		}
		generic = append(generic, candidate{policy: p})
	}

	if len(banded) > 0 {
		sort.Slice(banded, func(i, j int) bool {
			a, b := banded[i], banded[j]
			aCovers := a.point.GreaterThanOrEqual(basis.ProductPriceUSD)
			bCovers := b.point.GreaterThanOrEqual(basis.ProductPriceUSD)
			if aCovers != bCovers {
				return aCovers
			}
			if !a.point.Equal(b.point) {
				if aCovers {
					return a.point.LessThan(b.point)
				}
				return a.point.GreaterThan(b.point)
			}
			return cheaper(a.policy, b.policy)
		})
		return banded[0].policy, true
	}

	if len(generic) > 0 {
		sort.Slice(generic, func(i, j int) bool {
			return cheaper(generic[i].policy, generic[j].policy)
		})
		return generic[0].policy, true
	}
	return model.ShippingPolicy{}, false
}

func cheaper(a, b model.ShippingPolicy) bool {
	if !a.ShippingCostUSD.Equal(b.ShippingCostUSD) {
		return a.ShippingCostUSD.LessThan(b.ShippingCostUSD)
	}
	return a.Name < b.Name
}
