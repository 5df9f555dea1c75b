// Package store defines the read-only reference-data interface consumed by the
// pricing engine. Implementations include PostgreSQL (source of truth), Redis
// (read-through cache), and in-memory fixture tables (tests and development).
//
// The tables are populated by a separate ingestion process; nothing here writes.
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/atmx/landed-cost/internal/model"
)

// ErrNotFound is returned when a keyed lookup has no matching row.
var ErrNotFound = errors.New("store: not found")

// Store is the reference-data interface. Every method is a side-effect-free
// read and is safe for concurrent use.
type Store interface {
	// RateBandsForWeight returns every rate-matrix row whose weight band
	// contains weightKg, ordered by price point ascending. An empty slice
	// means no band matches.
	RateBandsForWeight(ctx context.Context, weightKg decimal.Decimal) ([]model.RateBand, error)

	// Tariff returns the duty entry for a normalised HS code and origin country.
	Tariff(ctx context.Context, hsCode, originCountry string) (*model.TariffEntry, error)

	// CategoryFee returns the fee schedule of a listing category.
	CategoryFee(ctx context.Context, categoryID string) (*model.CategoryFee, error)

	// ShippingPolicies returns the full shipping-policy catalog.
	ShippingPolicies(ctx context.Context) ([]model.ShippingPolicy, error)
}
