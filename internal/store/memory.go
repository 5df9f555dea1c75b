package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/atmx/landed-cost/internal/model"
)

// MemoryStore implements Store over fixture tables held in memory. The tables
// are indexed once at construction and never mutated afterwards, so reads need
// no locking.
type MemoryStore struct {
	bands    []model.RateBand
	tariffs  map[string]model.TariffEntry
	fees     map[string]model.CategoryFee
	policies []model.ShippingPolicy
}

// NewMemoryStore indexes the given tables. The caller's slices are copied.
func NewMemoryStore(t Tables) *MemoryStore {
	s := &MemoryStore{
		bands:    append([]model.RateBand(nil), t.RateBands...),
		tariffs:  make(map[string]model.TariffEntry, len(t.Tariffs)),
		fees:     make(map[string]model.CategoryFee, len(t.CategoryFees)),
		policies: append([]model.ShippingPolicy(nil), t.ShippingPolicies...),
	}

	sort.SliceStable(s.bands, func(i, j int) bool {
		if !s.bands[i].WeightMinKg.Equal(s.bands[j].WeightMinKg) {
			return s.bands[i].WeightMinKg.LessThan(s.bands[j].WeightMinKg)
		}
		return s.bands[i].PricePointUSD.LessThan(s.bands[j].PricePointUSD)
	})

	for _, e := range t.Tariffs {
		e.HSCode = model.NormalizeHSCode(e.HSCode)
		e.OriginCountry = model.NormalizeCountry(e.OriginCountry)
		s.tariffs[tariffKey(e.HSCode, e.OriginCountry)] = e
	}
	for _, f := range t.CategoryFees {
		s.fees[f.CategoryID] = f
	}
	return s
}

func (s *MemoryStore) RateBandsForWeight(_ context.Context, weightKg decimal.Decimal) ([]model.RateBand, error) {
	var rows []model.RateBand
	for _, b := range s.bands {
		if b.Contains(weightKg) {
			rows = append(rows, b)
		}
	}
	return rows, nil
}

func (s *MemoryStore) Tariff(_ context.Context, hsCode, originCountry string) (*model.TariffEntry, error) {
	e, ok := s.tariffs[tariffKey(model.NormalizeHSCode(hsCode), model.NormalizeCountry(originCountry))]
	if !ok {
		return nil, fmt.Errorf("%w: tariff %s/%s", ErrNotFound, hsCode, originCountry)
	}
	return &e, nil
}

func (s *MemoryStore) CategoryFee(_ context.Context, categoryID string) (*model.CategoryFee, error) {
	f, ok := s.fees[categoryID]
	if !ok {
		return nil, fmt.Errorf("%w: category fee %s", ErrNotFound, categoryID)
	}
	f.StoreDiscountTiers = append([]model.StoreDiscountTier(nil), f.StoreDiscountTiers...)
	return &f, nil
}

func (s *MemoryStore) ShippingPolicies(_ context.Context) ([]model.ShippingPolicy, error) {
	return append([]model.ShippingPolicy(nil), s.policies...), nil
}

func tariffKey(hsCode, country string) string {
	return hsCode + "|" + country
}
