package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/atmx/landed-cost/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Reference tables are refreshed out of band, so entries simply expire
// after the TTL. Cache failures are never fatal: every read falls back to the
// primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (s *CachedStore) RateBandsForWeight(ctx context.Context, weightKg decimal.Decimal) ([]model.RateBand, error) {
	key := rateBandsKey(weightKg)
	var bands []model.RateBand
	if s.load(ctx, key, &bands) {
		return bands, nil
	}

	bands, err := s.primary.RateBandsForWeight(ctx, weightKg)
	if err != nil {
		return nil, err
	}
	// Empty results are not cached so a freshly ingested band shows up at once.
	if len(bands) > 0 {
		s.save(ctx, key, bands)
	}
	return bands, nil
}

func (s *CachedStore) Tariff(ctx context.Context, hsCode, originCountry string) (*model.TariffEntry, error) {
	key := tariffCacheKey(model.NormalizeHSCode(hsCode), model.NormalizeCountry(originCountry))
	var e model.TariffEntry
	if s.load(ctx, key, &e) {
		return &e, nil
	}

	entry, err := s.primary.Tariff(ctx, hsCode, originCountry)
	if err != nil {
		return nil, err
	}
	s.save(ctx, key, entry)
	return entry, nil
}

func (s *CachedStore) CategoryFee(ctx context.Context, categoryID string) (*model.CategoryFee, error) {
	key := categoryFeeKey(categoryID)
	var f model.CategoryFee
	if s.load(ctx, key, &f) {
		return &f, nil
	}

	fee, err := s.primary.CategoryFee(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	s.save(ctx, key, fee)
	return fee, nil
}

func (s *CachedStore) ShippingPolicies(ctx context.Context) ([]model.ShippingPolicy, error) {
	var policies []model.ShippingPolicy
	if s.load(ctx, policiesKey, &policies) {
		return policies, nil
	}

	policies, err := s.primary.ShippingPolicies(ctx)
	if err != nil {
		return nil, err
	}
	s.save(ctx, policiesKey, policies)
	return policies, nil
}

// --- Cache helpers ---

func (s *CachedStore) load(ctx context.Context, key string, dst any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *CachedStore) save(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

const policiesKey = "landedcost:policies"

func rateBandsKey(w decimal.Decimal) string { return fmt.Sprintf("landedcost:bands:%s", w.String()) }
func tariffCacheKey(hs, country string) string { return fmt.Sprintf("landedcost:tariff:%s:%s", hs, country) }
func categoryFeeKey(categoryID string) string { return fmt.Sprintf("landedcost:fees:%s", categoryID) }
