package store

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/atmx/landed-cost/internal/model"
)

// ErrInvalidTables is returned when reference tables break a structural invariant.
var ErrInvalidTables = errors.New("store: invalid reference tables")

//go:embed reference.yaml
var referenceYAML []byte

// Tables is the full set of reference data as produced by the ingestion job.
type Tables struct {
	RateBands        []model.RateBand       `yaml:"rate_bands"`
	Tariffs          []model.TariffEntry    `yaml:"tariffs"`
	CategoryFees     []model.CategoryFee    `yaml:"category_fees"`
	ShippingPolicies []model.ShippingPolicy `yaml:"shipping_policies"`
}

// DefaultTables returns the reference tables bundled with the binary. They are
// used for local development when no database is configured.
func DefaultTables() (Tables, error) {
	return LoadTables(bytes.NewReader(referenceYAML))
}

// LoadTablesFile reads and validates reference tables from a YAML file.
func LoadTablesFile(path string) (Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return Tables{}, fmt.Errorf("open reference tables: %w", err)
	}
	defer f.Close()
	return LoadTables(f)
}

// LoadTables decodes YAML reference tables and validates them.
func LoadTables(r io.Reader) (Tables, error) {
	var t Tables
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return Tables{}, fmt.Errorf("decode reference tables: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Tables{}, err
	}
	return t, nil
}

// Validate checks the invariants the resolvers rely on:
//   - weight bands are contiguous from 0 with no gaps or overlaps
//   - price points within a band are distinct
//   - duty and fee rates are fractions in [0, 1)
//   - store discount tiers are ordered by increasing threshold per store type
func (t Tables) Validate() error {
	if err := validateBands(t.RateBands); err != nil {
		return err
	}
	one := decimal.NewFromInt(1)
	for _, e := range t.Tariffs {
		if e.AdValoremRate.IsNegative() || e.AdValoremRate.GreaterThanOrEqual(one) {
			return fmt.Errorf("%w: tariff %s/%s rate %s outside [0,1)",
				ErrInvalidTables, e.HSCode, e.OriginCountry, e.AdValoremRate)
		}
		if e.ShippingCostCapUSD != nil && e.ShippingCostCapUSD.IsNegative() {
			return fmt.Errorf("%w: tariff %s/%s negative shipping cap",
				ErrInvalidTables, e.HSCode, e.OriginCountry)
		}
	}
	for _, f := range t.CategoryFees {
		if f.FinalValueFeeRate.IsNegative() || f.FinalValueFeeRate.GreaterThanOrEqual(one) {
			return fmt.Errorf("%w: category %s fvf rate %s outside [0,1)",
				ErrInvalidTables, f.CategoryID, f.FinalValueFeeRate)
		}
		last := map[model.StoreType]decimal.Decimal{}
		for _, tier := range f.StoreDiscountTiers {
			if tier.FVFRate.IsNegative() || tier.FVFRate.GreaterThanOrEqual(one) {
				return fmt.Errorf("%w: category %s tier rate %s outside [0,1)",
					ErrInvalidTables, f.CategoryID, tier.FVFRate)
			}
			if prev, ok := last[tier.StoreType]; ok && !tier.MinMonthlySalesUSD.GreaterThan(prev) {
				return fmt.Errorf("%w: category %s %s tiers not strictly increasing",
					ErrInvalidTables, f.CategoryID, tier.StoreType)
			}
			last[tier.StoreType] = tier.MinMonthlySalesUSD
		}
	}
	return nil
}

func validateBands(rows []model.RateBand) error {
	if len(rows) == 0 {
		return nil
	}

	type band struct {
		min, max decimal.Decimal
		points   []decimal.Decimal
	}
	byCode := map[string]*band{}
	var order []string
	for _, r := range rows {
		if !r.WeightMaxKg.GreaterThan(r.WeightMinKg) {
			return fmt.Errorf("%w: band %s has empty weight range", ErrInvalidTables, r.BandCode)
		}
		b, ok := byCode[r.BandCode]
		if !ok {
			b = &band{min: r.WeightMinKg, max: r.WeightMaxKg}
			byCode[r.BandCode] = b
			order = append(order, r.BandCode)
		} else if !b.min.Equal(r.WeightMinKg) || !b.max.Equal(r.WeightMaxKg) {
			return fmt.Errorf("%w: band %s has inconsistent weight range", ErrInvalidTables, r.BandCode)
		}
		b.points = append(b.points, r.PricePointUSD)
	}

	sort.Slice(order, func(i, j int) bool {
		return byCode[order[i]].min.LessThan(byCode[order[j]].min)
	})

	if !byCode[order[0]].min.IsZero() {
		return fmt.Errorf("%w: first weight band must start at 0", ErrInvalidTables)
	}
	for i := 1; i < len(order); i++ {
		prev, cur := byCode[order[i-1]], byCode[order[i]]
		if !cur.min.Equal(prev.max) {
			return fmt.Errorf("%w: gap or overlap between bands %s and %s",
				ErrInvalidTables, order[i-1], order[i])
		}
	}
	for _, code := range order {
		pts := byCode[code].points
		sort.Slice(pts, func(i, j int) bool { return pts[i].LessThan(pts[j]) })
		for i := 1; i < len(pts); i++ {
			if pts[i].Equal(pts[i-1]) {
				return fmt.Errorf("%w: band %s repeats price point %s", ErrInvalidTables, code, pts[i])
			}
		}
	}
	return nil
}
