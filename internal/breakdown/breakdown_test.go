package breakdown

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atmx/landed-cost/internal/landed"
	"github.com/atmx/landed-cost/internal/policy"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var testSelection = policy.Selection{
	PolicyName:  "RT03_P0150",
	CarrierName: "Japan Post",
	ServiceName: "EMS",
}

func TestCompose_Converged(t *testing.T) {
	o := landed.Outcome{
		State:              landed.StateConverged,
		ProductPriceUSD:    decimal.RequireFromString("94.8749"),
		ShippingUSD:        decimal.RequireFromString("38.4875"),
		TotalUSD:           decimal.RequireFromString("133.3624"),
		BaseShippingUSD:    d(24),
		DutyUSD:            d(2),
		MarketplaceFeesUSD: d(20),
		ProfitUSD:          decimal.RequireFromString("20.00436"),
	}
	b := Compose(o, testSelection)

	if !b.Success || b.Error != "" {
		t.Fatalf("expected success, got %+v", b)
	}
	if !b.FinalProductPriceUSD.Equal(d(94.87)) {
		t.Errorf("expected price 94.87, got %s", b.FinalProductPriceUSD)
	}
	if !b.FinalShippingUSD.Equal(d(38.49)) {
		t.Errorf("expected shipping 38.49, got %s", b.FinalShippingUSD)
	}
	if !b.FinalTotalUSD.Equal(b.FinalProductPriceUSD.Add(b.FinalShippingUSD)) {
		t.Errorf("total %s != price + shipping", b.FinalTotalUSD)
	}
	if !b.ProfitUSD.Equal(d(20)) {
		t.Errorf("expected profit 20.00, got %s", b.ProfitUSD)
	}
	if !b.ProfitMarginPct.Equal(d(15)) {
		t.Errorf("expected margin 15.00, got %s", b.ProfitMarginPct)
	}
	if !b.ProfitUSDWithRefund.Equal(d(22)) {
		t.Errorf("expected refund profit 22.00, got %s", b.ProfitUSDWithRefund)
	}
	if b.SelectedPolicyName != "RT03_P0150" || b.CarrierName != "Japan Post" || b.ServiceName != "EMS" {
		t.Errorf("policy fields not copied: %+v", b)
	}
	if !b.SelectedBaseShippingUSD.Equal(d(24)) {
		t.Errorf("expected base shipping 24, got %s", b.SelectedBaseShippingUSD)
	}
}

func TestCompose_Capped(t *testing.T) {
	o := landed.Outcome{
		State:           landed.StateCapped,
		ProductPriceUSD: decimal.RequireFromString("67.675"),
		ShippingUSD:     d(20),
		TotalUSD:        decimal.RequireFromString("87.675"),
		ProfitUSD:       d(13.15),
	}
	b := Compose(o, testSelection)
	if !b.Success {
		t.Fatal("capped outcome should be successful")
	}
	if !b.FinalShippingUSD.Equal(d(20)) {
		t.Errorf("expected shipping 20, got %s", b.FinalShippingUSD)
	}
	if !b.FinalTotalUSD.Equal(d(87.68)) {
		t.Errorf("expected total 87.68, got %s", b.FinalTotalUSD)
	}
}

func TestCompose_Deficit(t *testing.T) {
	o := landed.Outcome{
		State:   landed.StateDeficit,
		Reason:  landed.ReasonDeficit,
		CostUSD: d(20),
	}
	b := Compose(o, testSelection)
	if b.Success {
		t.Fatal("deficit must not be successful")
	}
	if b.Error != landed.ReasonDeficit {
		t.Errorf("unexpected reason %q", b.Error)
	}
	if !b.FinalProductPriceUSD.IsZero() || !b.FinalTotalUSD.IsZero() || b.SelectedPolicyName != "" {
		t.Errorf("deficit must not populate price fields: %+v", b)
	}
}

func TestCompose_DivergedKeepsEstimate(t *testing.T) {
	o := landed.Outcome{
		State:           landed.StateDiverged,
		Reason:          "price did not converge within 20 iterations",
		ProductPriceUSD: d(2152.49),
		ShippingUSD:     d(79),
		TotalUSD:        d(2231.49),
		ProfitUSD:       d(249.29),
	}
	b := Compose(o, testSelection)
	if b.Success {
		t.Fatal("diverged must not be successful")
	}
	if b.Error == "" {
		t.Error("expected convergence-failure reason")
	}
	if !b.FinalTotalUSD.Equal(d(2231.49)) {
		t.Errorf("expected last estimate attached, got %s", b.FinalTotalUSD)
	}
}
