// Package pricing wires the landed-cost solver, policy selector and result
// composer into the single entry point used by adapters.
package pricing

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/atmx/landed-cost/internal/breakdown"
	"github.com/atmx/landed-cost/internal/landed"
	"github.com/atmx/landed-cost/internal/model"
	"github.com/atmx/landed-cost/internal/policy"
)

// Quote is a priced request: the breakdown plus how the solver got there.
type Quote struct {
	Breakdown  model.PricingBreakdown `json:"breakdown"`
	State      landed.State           `json:"state"`
	Iterations int                    `json:"iterations"`
	Trace      []landed.Iteration     `json:"trace,omitempty"`

	// PolicyFallback is set when the default policy name stood in for a
	// catalog match.
	PolicyFallback bool `json:"-"`
	// PolicyErr is a shipping-catalog read failure. It never fails the quote.
	PolicyErr error `json:"-"`
}

// BatchResult is the outcome of one request in a batch.
type BatchResult struct {
	Quote *Quote
	Err   error
}

// Engine produces quotes. It is stateless and safe for concurrent use.
type Engine struct {
	solver      *landed.Solver
	selector    *policy.Selector
	concurrency int
}

// NewEngine creates an engine. concurrency bounds SolveBatch; values below 1
// mean one request at a time.
func NewEngine(solver *landed.Solver, selector *policy.Selector, concurrency int) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{solver: solver, selector: selector, concurrency: concurrency}
}

// Solve prices a single request. Errors are invalid input or missing reference
// data; unprofitable or non-converging requests come back as unsuccessful
// breakdowns.
func (e *Engine) Solve(ctx context.Context, req model.PricingRequest) (Quote, error) {
	out, err := e.solver.Solve(ctx, req)
	if err != nil {
		return Quote{}, err
	}

	var sel policy.Selection
	var selErr error
	if out.State != landed.StateDeficit {
		sel, selErr = e.selector.Select(ctx, policy.Basis{
			WeightKg:        req.WeightKg,
			BandCode:        out.Band.BandCode,
			ProductPriceUSD: out.ProductPriceUSD,
		})
	}

	return Quote{
		Breakdown:      breakdown.Compose(out, sel),
		State:          out.State,
		Iterations:     out.Iterations,
		Trace:          out.Trace,
		PolicyFallback: sel.Fallback,
		PolicyErr:      selErr,
	}, nil
}

// SolveBatch prices every request independently. A failing request never
// affects the others; results are in request order.
func (e *Engine) SolveBatch(ctx context.Context, reqs []model.PricingRequest) []BatchResult {
	results := make([]BatchResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = BatchResult{Err: err}
				return nil
			}
			q, err := e.Solve(ctx, req)
			if err != nil {
				results[i] = BatchResult{Err: err}
				return nil
			}
			results[i] = BatchResult{Quote: &q}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
