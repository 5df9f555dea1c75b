package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atmx/landed-cost/internal/model"
)

// PostgresStore implements Store over the tables maintained by the rate
// ingestion job. All monetary values and rates are NUMERIC and are read back
// as text to keep exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) RateBandsForWeight(ctx context.Context, weightKg decimal.Decimal) ([]model.RateBand, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT band_code,
		        weight_min_kg::TEXT, weight_max_kg::TEXT, price_point_usd::TEXT,
		        base_shipping_usd::TEXT, duty_fee_usd::TEXT, total_shipping_usd::TEXT
		 FROM rate_bands
		 WHERE weight_min_kg <= $1::NUMERIC AND weight_max_kg > $1::NUMERIC
		 ORDER BY price_point_usd`, weightKg.String())
	if err != nil {
		return nil, fmt.Errorf("query rate bands for %s kg: %w", weightKg, err)
	}
	defer rows.Close()

	var bands []model.RateBand
	for rows.Next() {
		var b model.RateBand
		var minS, maxS, pointS, baseS, dutyS, totalS string
		if err := rows.Scan(&b.BandCode, &minS, &maxS, &pointS, &baseS, &dutyS, &totalS); err != nil {
			return nil, err
		}
		b.WeightMinKg, _ = decimal.NewFromString(minS)
		b.WeightMaxKg, _ = decimal.NewFromString(maxS)
		b.PricePointUSD, _ = decimal.NewFromString(pointS)
		b.BaseShippingUSD, _ = decimal.NewFromString(baseS)
		b.DutyFeeUSD, _ = decimal.NewFromString(dutyS)
		b.TotalShippingUSD, _ = decimal.NewFromString(totalS)
		bands = append(bands, b)
	}
	return bands, rows.Err()
}

func (s *PostgresStore) Tariff(ctx context.Context, hsCode, originCountry string) (*model.TariffEntry, error) {
	var e model.TariffEntry
	var rateS string
	var capS *string

	err := s.pool.QueryRow(ctx,
		`SELECT hs_code, origin_country, ad_valorem_rate::TEXT, category,
		        COALESCE(description, ''), shipping_cost_cap_usd::TEXT
		 FROM tariffs WHERE hs_code = $1 AND origin_country = $2`,
		model.NormalizeHSCode(hsCode), model.NormalizeCountry(originCountry)).
		Scan(&e.HSCode, &e.OriginCountry, &rateS, &e.Category, &e.Description, &capS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: tariff %s/%s", ErrNotFound, hsCode, originCountry)
	}
	if err != nil {
		return nil, fmt.Errorf("get tariff %s/%s: %w", hsCode, originCountry, err)
	}

	e.AdValoremRate, _ = decimal.NewFromString(rateS)
	if capS != nil {
		c, err := decimal.NewFromString(*capS)
		if err == nil {
			e.ShippingCostCapUSD = &c
		}
	}
	return &e, nil
}

func (s *PostgresStore) CategoryFee(ctx context.Context, categoryID string) (*model.CategoryFee, error) {
	var f model.CategoryFee
	var rateS, insertionS string

	err := s.pool.QueryRow(ctx,
		`SELECT category_id, final_value_fee_rate::TEXT, insertion_fee_usd::TEXT
		 FROM category_fees WHERE category_id = $1`, categoryID).
		Scan(&f.CategoryID, &rateS, &insertionS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: category fee %s", ErrNotFound, categoryID)
	}
	if err != nil {
		return nil, fmt.Errorf("get category fee %s: %w", categoryID, err)
	}
	f.FinalValueFeeRate, _ = decimal.NewFromString(rateS)
	f.InsertionFeeUSD, _ = decimal.NewFromString(insertionS)

	rows, err := s.pool.Query(ctx,
		`SELECT store_type, min_monthly_sales_usd::TEXT, fvf_rate::TEXT
		 FROM store_discount_tiers WHERE category_id = $1
		 ORDER BY store_type, min_monthly_sales_usd`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("get discount tiers %s: %w", categoryID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var t model.StoreDiscountTier
		var storeType, minS, tierRateS string
		if err := rows.Scan(&storeType, &minS, &tierRateS); err != nil {
			return nil, err
		}
		t.StoreType = model.StoreType(storeType)
		t.MinMonthlySalesUSD, _ = decimal.NewFromString(minS)
		t.FVFRate, _ = decimal.NewFromString(tierRateS)
		f.StoreDiscountTiers = append(f.StoreDiscountTiers, t)
	}
	return &f, rows.Err()
}

func (s *PostgresStore) ShippingPolicies(ctx context.Context) ([]model.ShippingPolicy, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, carrier_name, service_name,
		        weight_min_kg::TEXT, weight_max_kg::TEXT, shipping_cost_usd::TEXT
		 FROM shipping_policies WHERE is_active
		 ORDER BY weight_min_kg, shipping_cost_usd`)
	if err != nil {
		return nil, fmt.Errorf("list shipping policies: %w", err)
	}
	defer rows.Close()

	var policies []model.ShippingPolicy
	for rows.Next() {
		var p model.ShippingPolicy
		var minS, maxS, costS string
		if err := rows.Scan(&p.ID, &p.Name, &p.CarrierName, &p.ServiceName, &minS, &maxS, &costS); err != nil {
			return nil, err
		}
		p.WeightMinKg, _ = decimal.NewFromString(minS)
		p.WeightMaxKg, _ = decimal.NewFromString(maxS)
		p.ShippingCostUSD, _ = decimal.NewFromString(costS)
		policies = append(policies, p)
	}
	return policies, rows.Err()
}
