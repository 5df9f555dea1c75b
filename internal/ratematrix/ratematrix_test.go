package ratematrix

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atmx/landed-cost/internal/model"
	"github.com/atmx/landed-cost/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func band(code string, lo, hi, point, base, duty float64) model.RateBand {
	return model.RateBand{
		BandCode:         code,
		WeightMinKg:      d(lo),
		WeightMaxKg:      d(hi),
		PricePointUSD:    d(point),
		BaseShippingUSD:  d(base),
		DutyFeeUSD:       d(duty),
		TotalShippingUSD: d(base + duty),
	}
}

func newTestResolver() *Resolver {
	st := store.NewMemoryStore(store.Tables{RateBands: []model.RateBand{
		band("RT01", 0, 0.5, 50, 14, 10),
		band("RT01", 0, 0.5, 100, 14, 15),
		band("RT01", 0, 0.5, 150, 14, 20),
		band("RT02", 0.5, 1.0, 50, 18, 10),
		band("RT02", 0.5, 1.0, 100, 18, 15),
		band("RT02", 0.5, 1.0, 150, 18, 20),
	}})
	return NewResolver(st)
}

func TestResolve_ExactPricePoint(t *testing.T) {
	r := newTestResolver()
	b, err := r.Resolve(context.Background(), d(0.3), d(100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.BandCode != "RT01" {
		t.Errorf("expected RT01, got %s", b.BandCode)
	}
	if !b.TotalShippingUSD.Equal(d(29)) || !b.DutyFeeUSD.Equal(d(15)) {
		t.Errorf("expected exact row (29, 15), got (%s, %s)", b.TotalShippingUSD, b.DutyFeeUSD)
	}
}

func TestResolve_Interpolates(t *testing.T) {
	r := newTestResolver()
	b, err := r.Resolve(context.Background(), d(0.3), d(125))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.DutyFeeUSD.Equal(d(17.5)) {
		t.Errorf("expected duty 17.50, got %s", b.DutyFeeUSD)
	}
	if !b.TotalShippingUSD.Equal(d(31.5)) {
		t.Errorf("expected total 31.50, got %s", b.TotalShippingUSD)
	}
	if !b.BaseShippingUSD.Equal(d(14)) {
		t.Errorf("base shipping should come from the lower bracket, got %s", b.BaseShippingUSD)
	}
	if !b.PricePointUSD.Equal(d(125)) {
		t.Errorf("expected declared value 125, got %s", b.PricePointUSD)
	}
}

func TestResolve_RoundsToCents(t *testing.T) {
	r := newTestResolver()
	// ratio = 1/3 → 15 + 5/3 = 16.666…
	b, _ := r.Resolve(context.Background(), d(0.3), decimal.RequireFromString("116.6666666667"))
	if !b.DutyFeeUSD.Equal(d(16.67)) {
		t.Errorf("expected 16.67, got %s", b.DutyFeeUSD)
	}
}

func TestResolve_ClampsToLadder(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()

	low, _ := r.Resolve(ctx, d(0.3), d(1))
	if !low.TotalShippingUSD.Equal(d(24)) {
		t.Errorf("below ladder: expected 24, got %s", low.TotalShippingUSD)
	}
	high, _ := r.Resolve(ctx, d(0.3), d(9000))
	if !high.TotalShippingUSD.Equal(d(34)) {
		t.Errorf("above ladder: expected 34, got %s", high.TotalShippingUSD)
	}
}

func TestResolve_BandBoundaryIsHalfOpen(t *testing.T) {
	r := newTestResolver()
	b, err := r.Resolve(context.Background(), d(0.5), d(50))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.BandCode != "RT02" {
		t.Errorf("0.5 kg must resolve to RT02, got %s", b.BandCode)
	}
}

func TestResolve_NoBand(t *testing.T) {
	r := newTestResolver()
	_, err := r.Resolve(context.Background(), d(1.0), d(50))
	if !errors.Is(err, ErrRateNotFound) {
		t.Errorf("expected ErrRateNotFound, got %v", err)
	}
}

func TestInterpolate_Monotonic(t *testing.T) {
	rows := []model.RateBand{
		band("RT01", 0, 0.5, 50, 14, 10),
		band("RT01", 0, 0.5, 100, 14, 15),
		band("RT01", 0, 0.5, 150, 14, 20),
	}
	prev := Interpolate(rows, d(50)).TotalShippingUSD
	for p := 51; p <= 150; p++ {
		cur := Interpolate(rows, decimal.NewFromInt(int64(p))).TotalShippingUSD
		if cur.LessThan(prev) {
			t.Fatalf("total shipping decreased at %d: %s < %s", p, cur, prev)
		}
		if p != 100 && p != 150 {
			lo, hi := d(24), d(29)
			if p > 100 {
				lo, hi = d(29), d(34)
			}
			if !cur.GreaterThan(lo) || !cur.LessThan(hi) {
				t.Errorf("price %d: %s not strictly inside (%s, %s)", p, cur, lo, hi)
			}
		}
		prev = cur
	}
}
