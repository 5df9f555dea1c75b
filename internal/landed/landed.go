// Package landed implements the landed-cost solver: the fixed-point search for
// the listing price at which a cross-border sale nets the target margin after
// marketplace fees, payment fees, carriage and import duty.
//
// Duty and percentage fees are charged on revenue (product + shipping), and
// shipping depends on the declared product price through the rate matrix, so
// the price is found by iteration:
//
//	revenue   = price + shipping(price)
//	duty      = duty_rate × revenue
//	fees      = revenue × (fvf + international + payment) + insertion
//	required  = (cost + carriage + fees + duty) / (1 − margin)
//	price'    = required − shipping(price)
//
// The solver is a pure function of its request and the reference data it
// reads. It keeps no state between calls and is safe for concurrent use.
package landed

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atmx/landed-cost/internal/fees"
	"github.com/atmx/landed-cost/internal/model"
	"github.com/atmx/landed-cost/internal/tariff"
)

// State is the terminal state of one solve.
type State string

const (
	StateConverged State = "CONVERGED"
	StateCapped    State = "CAPPED"
	StateDiverged  State = "DIVERGED"
	StateDeficit   State = "DEFICIT"
)

// Priced reports whether the state carries a price the seller can list at.
func (s State) Priced() bool {
	return s == StateConverged || s == StateCapped
}

// ErrInvalidRequest wraps every input validation failure.
var ErrInvalidRequest = errors.New("landed: invalid request")

// Reasons attached to unsuccessful outcomes.
const (
	ReasonDeficit = "target margin unreachable at this weight/HS-code/origin combination"
)

// RateResolver resolves rate-matrix charges at a weight and declared value.
type RateResolver interface {
	Resolve(ctx context.Context, weightKg, priceUSD decimal.Decimal) (model.RateBand, error)
}

// TariffResolver resolves the duty rate of a classification.
type TariffResolver interface {
	Resolve(ctx context.Context, hsCode, originCountry string) (tariff.Rate, error)
}

// FeeResolver resolves the fee schedule of a listing.
type FeeResolver interface {
	Resolve(ctx context.Context, categoryID string, storeType model.StoreType, monthlySalesUSD decimal.Decimal) (fees.Schedule, error)
	Override(fvfRate decimal.Decimal) fees.Schedule
}

// Config bounds the iteration.
type Config struct {
	MaxIterations int
	Tolerance     decimal.Decimal
}

// DefaultConfig returns the production iteration bounds.
func DefaultConfig() Config {
	return Config{
		MaxIterations: 20,
		Tolerance:     decimal.New(1, -2),
	}
}

// Iteration is one pass of the fixed-point loop.
type Iteration struct {
	N                  int             `json:"n"`
	PriceUSD           decimal.Decimal `json:"price_usd"`
	BandCode           string          `json:"band_code"`
	TotalShippingUSD   decimal.Decimal `json:"total_shipping_usd"`
	RevenueUSD         decimal.Decimal `json:"revenue_usd"`
	DutyUSD            decimal.Decimal `json:"duty_usd"`
	FeesUSD            decimal.Decimal `json:"fees_usd"`
	RequiredRevenueUSD decimal.Decimal `json:"required_revenue_usd"`
	NextPriceUSD       decimal.Decimal `json:"next_price_usd"`
}

// Outcome is the terminal state of a solve together with every component
// the breakdown is assembled from. Money fields are unrounded. On DEFICIT
// the money fields other than CostUSD are zero.
type Outcome struct {
	State      State  `json:"state"`
	Reason     string `json:"reason,omitempty"`
	Iterations int    `json:"iterations"`

	Band   model.RateBand `json:"band"`
	Tariff tariff.Rate    `json:"tariff"`
	Fees   fees.Schedule  `json:"fees"`

	CostUSD            decimal.Decimal `json:"cost_usd"`
	ProductPriceUSD    decimal.Decimal `json:"product_price_usd"`
	ShippingUSD        decimal.Decimal `json:"shipping_usd"`
	TotalUSD           decimal.Decimal `json:"total_usd"`
	BaseShippingUSD    decimal.Decimal `json:"base_shipping_usd"`
	DutyUSD            decimal.Decimal `json:"duty_usd"`
	MarketplaceFeesUSD decimal.Decimal `json:"marketplace_fees_usd"`
	ProfitUSD          decimal.Decimal `json:"profit_usd"`

	Trace []Iteration `json:"trace,omitempty"`
}

// ProfitWithRefundUSD is the profit if the duty is later recovered through
// drawback.
func (o Outcome) ProfitWithRefundUSD() decimal.Decimal {
	return o.ProfitUSD.Add(o.DutyUSD)
}

// Solver computes landed-cost prices.
type Solver struct {
	rates   RateResolver
	tariffs TariffResolver
	fees    FeeResolver
	cfg     Config
}

// NewSolver creates a solver over the given resolvers. Zero config values
// take the defaults.
func NewSolver(rates RateResolver, tariffs TariffResolver, feeRes FeeResolver, cfg Config) *Solver {
	def := DefaultConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if !cfg.Tolerance.IsPositive() {
		cfg.Tolerance = def.Tolerance
	}
	return &Solver{rates: rates, tariffs: tariffs, fees: feeRes, cfg: cfg}
}

// Solve runs the solver for req. Validation failures and reference-data
// gaps are returned as errors; DEFICIT and DIVERGED are outcomes, not errors.
func (s *Solver) Solve(ctx context.Context, req model.PricingRequest) (Outcome, error) {
	in, err := resolveInput(req)
	if err != nil {
		return Outcome{}, err
	}

	rate, err := s.tariffs.Resolve(ctx, in.hsCode, in.origin)
	if err != nil {
		return Outcome{}, err
	}

	var sched fees.Schedule
	if in.fvfOverride != nil {
		sched = s.fees.Override(*in.fvfOverride)
	} else {
		category := in.categoryID
		if category == "" {
			category = rate.Category
		}
		sched, err = s.fees.Resolve(ctx, category, in.storeType, in.monthlySales)
		if err != nil {
			return Outcome{}, err
		}
	}

	out := Outcome{
		Tariff:  rate,
		Fees:    sched,
		CostUSD: in.costUSD,
	}

	// When duty and percentage fees alone consume the margin-adjusted
	// revenue, required revenue grows without bound.
	keep := decimal.NewFromInt(1).Sub(in.margin)
	if rate.AdValoremRate.Add(sched.RevenueRate()).GreaterThanOrEqual(keep) {
		out.State = StateDeficit
		out.Reason = ReasonDeficit
		return out, nil
	}

	price := in.costUSD.Div(keep)
	state := StateDiverged
	for n := 1; n <= s.cfg.MaxIterations; n++ {
		ev, err := s.evaluate(ctx, in, rate, sched, price)
		if err != nil {
			return Outcome{}, err
		}
		next := ev.required.Sub(ev.band.TotalShippingUSD)
		out.Trace = append(out.Trace, Iteration{
			N:                  n,
			PriceUSD:           price,
			BandCode:           ev.band.BandCode,
			TotalShippingUSD:   ev.band.TotalShippingUSD,
			RevenueUSD:         ev.revenue,
			DutyUSD:            ev.duty,
			FeesUSD:            ev.fees,
			RequiredRevenueUSD: ev.required,
			NextPriceUSD:       next,
		})
		out.Iterations = n

		if next.IsNegative() {
			out.State = StateDeficit
			out.Reason = ReasonDeficit
			return out, nil
		}
		converged := next.Sub(price).Abs().LessThan(s.cfg.Tolerance)
		price = next
		if converged {
			state = StateConverged
			break
		}
	}

	ev, err := s.evaluate(ctx, in, rate, sched, price)
	if err != nil {
		return Outcome{}, err
	}
	out.State = state
	out.Band = ev.band
	out.ProductPriceUSD = price
	out.ShippingUSD = ev.band.TotalShippingUSD
	out.TotalUSD = ev.revenue
	out.BaseShippingUSD = ev.band.BaseShippingUSD
	out.DutyUSD = ev.duty
	out.MarketplaceFeesUSD = ev.fees

	if state == StateConverged && rate.Capped() && out.ShippingUSD.GreaterThan(*rate.ShippingCostCapUSD) {
		// Revenue, duty and fees are unchanged; the excess moves into the
		// product price.
		out.ShippingUSD = *rate.ShippingCostCapUSD
		out.ProductPriceUSD = out.TotalUSD.Sub(out.ShippingUSD)
		out.State = StateCapped
	}

	out.ProfitUSD = out.TotalUSD.Sub(in.costUSD).Sub(out.BaseShippingUSD).
		Sub(out.MarketplaceFeesUSD).Sub(out.DutyUSD)

	if state == StateDiverged {
		out.Reason = fmt.Sprintf("price did not converge within %d iterations", s.cfg.MaxIterations)
	}
	return out, nil
}

type evaluation struct {
	band     model.RateBand
	revenue  decimal.Decimal
	duty     decimal.Decimal
	fees     decimal.Decimal
	required decimal.Decimal
}

func (s *Solver) evaluate(ctx context.Context, in input, rate tariff.Rate, sched fees.Schedule, price decimal.Decimal) (evaluation, error) {
	band, err := s.rates.Resolve(ctx, in.weightKg, price)
	if err != nil {
		return evaluation{}, err
	}
	revenue := price.Add(band.TotalShippingUSD)
	duty := rate.AdValoremRate.Mul(revenue)
	charged := revenue.Mul(sched.RevenueRate()).Add(sched.InsertionFeeUSD)
	required := in.costUSD.Add(band.BaseShippingUSD).Add(charged).Add(duty).
		Div(decimal.NewFromInt(1).Sub(in.margin))
	return evaluation{
		band:     band,
		revenue:  revenue,
		duty:     duty,
		fees:     charged,
		required: required,
	}, nil
}
