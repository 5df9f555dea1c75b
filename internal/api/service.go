// Package api provides the HTTP handlers for quoting landed-cost prices and
// inspecting the shipping-policy catalog.
//
// All monetary values use shopspring/decimal, never float64.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/landed-cost/internal/fees"
	"github.com/atmx/landed-cost/internal/landed"
	"github.com/atmx/landed-cost/internal/metrics"
	"github.com/atmx/landed-cost/internal/model"
	"github.com/atmx/landed-cost/internal/policy"
	"github.com/atmx/landed-cost/internal/pricing"
	"github.com/atmx/landed-cost/internal/ratematrix"
	"github.com/atmx/landed-cost/internal/tariff"
)

// MaxBatchSize bounds the number of requests in one batch call.
const MaxBatchSize = 500

// Error codes returned in the JSON error body.
const (
	CodeInvalidRequest = "invalid_request"
	CodeReferenceData  = "reference_data_missing"
	CodeInternal       = "internal_error"
)

// Service serves quote requests.
type Service struct {
	engine   *pricing.Engine
	policies policy.Source
	feed     *QuoteFeed // optional WebSocket feed of computed quotes
}

// NewService creates a new quote service.
// Pass nil for feed if WebSocket broadcasting is not needed.
func NewService(engine *pricing.Engine, policies policy.Source, feed *QuoteFeed) *Service {
	return &Service{
		engine:   engine,
		policies: policies,
		feed:     feed,
	}
}

// --- Request/Response types ---

// QuoteResponse is the JSON body returned from POST /quotes.
type QuoteResponse struct {
	QuoteID    string                 `json:"quote_id"`
	State      landed.State           `json:"state"`
	Iterations int                    `json:"iterations"`
	Breakdown  model.PricingBreakdown `json:"breakdown"`
	Trace      []landed.Iteration     `json:"trace,omitempty"`
}

// BatchItem is one request of a batch, tagged with a caller-chosen ID.
type BatchItem struct {
	ID string `json:"id"`
	model.PricingRequest
}

// BatchRequest is the JSON body for POST /quotes/batch.
type BatchRequest struct {
	Requests []BatchItem `json:"requests"`
}

// BatchItemResult carries either a quote or an error for one batch item.
type BatchItemResult struct {
	ID    string         `json:"id"`
	Quote *QuoteResponse `json:"quote,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// BatchResponse is the JSON body returned from POST /quotes/batch.
type BatchResponse struct {
	Results []BatchItemResult `json:"results"`
}

// ErrorDetail is the body of every error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- HTTP Handlers ---

// CreateQuote handles POST /api/v1/quotes
// Pass ?trace=true to include the solver's iteration trace.
func (s *Service) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var req model.PricingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}

	q, err := s.engine.Solve(r.Context(), req)
	if err != nil {
		status, detail := classify(err)
		slog.Warn("quote rejected", "code", detail.Code, "hs_code", req.HSCode,
			"origin_country", req.OriginCountry, "err", err)
		writeError(w, status, detail.Code, detail.Message)
		return
	}

	resp := s.record(req, q, wantTrace(r))
	writeJSON(w, http.StatusOK, resp)
}

// CreateQuoteBatch handles POST /api/v1/quotes/batch
// Items fail independently; the call itself only fails on a malformed body.
func (s *Service) CreateQuoteBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}
	if len(req.Requests) == 0 {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "requests must not be empty")
		return
	}
	if len(req.Requests) > MaxBatchSize {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest,
			"at most "+strconv.Itoa(MaxBatchSize)+" requests per batch")
		return
	}

	reqs := make([]model.PricingRequest, len(req.Requests))
	for i, item := range req.Requests {
		reqs[i] = item.PricingRequest
	}
	results := s.engine.SolveBatch(r.Context(), reqs)

	trace := wantTrace(r)
	resp := BatchResponse{Results: make([]BatchItemResult, len(results))}
	for i, res := range results {
		item := BatchItemResult{ID: req.Requests[i].ID}
		if res.Err != nil {
			_, detail := classify(res.Err)
			item.Error = &detail
		} else {
			qr := s.record(reqs[i], *res.Quote, trace)
			item.Quote = &qr
		}
		resp.Results[i] = item
	}

	slog.Info("batch quoted", "size", len(reqs))
	writeJSON(w, http.StatusOK, resp)
}

// ListPolicies handles GET /api/v1/policies
// Optional ?weight_kg= restricts the list to policies covering that weight.
func (s *Service) ListPolicies(w http.ResponseWriter, r *http.Request) {
	var weight *decimal.Decimal
	if v := r.URL.Query().Get("weight_kg"); v != "" {
		wkg, err := decimal.NewFromString(v)
		if err != nil || !wkg.IsPositive() {
			writeError(w, http.StatusBadRequest, CodeInvalidRequest, "weight_kg must be a positive number")
			return
		}
		weight = &wkg
	}

	all, err := s.policies.ShippingPolicies(r.Context())
	if err != nil {
		slog.Error("list shipping policies", "err", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "failed to list shipping policies")
		return
	}

	policies := make([]model.ShippingPolicy, 0, len(all))
	for _, p := range all {
		if weight == nil || p.Contains(*weight) {
			policies = append(policies, p)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"policies": policies})
}

// record assigns a quote ID, updates metrics and the feed, and builds the
// response body.
func (s *Service) record(req model.PricingRequest, q pricing.Quote, trace bool) QuoteResponse {
	resp := QuoteResponse{
		QuoteID:    uuid.New().String(),
		State:      q.State,
		Iterations: q.Iterations,
		Breakdown:  q.Breakdown,
	}
	if trace {
		resp.Trace = q.Trace
	}

	metrics.QuotesTotal.WithLabelValues(string(q.State)).Inc()
	if q.Iterations > 0 {
		metrics.SolverIterations.Observe(float64(q.Iterations))
	}
	if q.PolicyErr != nil {
		slog.Warn("shipping policy catalog unavailable", "err", q.PolicyErr)
	}
	if q.PolicyFallback {
		metrics.ReferenceMisses.WithLabelValues("shipping_policies").Inc()
		slog.Warn("no shipping policy covers parcel, using default",
			"weight_kg", req.WeightKg.String(), "policy", q.Breakdown.SelectedPolicyName)
	}

	slog.Info("quote computed",
		"quote_id", resp.QuoteID,
		"state", q.State,
		"iterations", q.Iterations,
		"hs_code", req.HSCode,
		"origin_country", req.OriginCountry,
		"final_total_usd", q.Breakdown.FinalTotalUSD.String(),
	)

	if s.feed != nil {
		s.feed.Broadcast(QuoteEvent{
			Type:          "quote_computed",
			QuoteID:       resp.QuoteID,
			State:         string(q.State),
			Success:       q.Breakdown.Success,
			HSCode:        req.HSCode,
			OriginCountry: req.OriginCountry,
			WeightKg:      req.WeightKg.String(),
			FinalTotalUSD: q.Breakdown.FinalTotalUSD.String(),
			PolicyName:    q.Breakdown.SelectedPolicyName,
		})
	}
	return resp
}

// classify maps an engine error to its HTTP status and error body.
func classify(err error) (int, ErrorDetail) {
	switch {
	case errors.Is(err, landed.ErrInvalidRequest):
		metrics.QuoteErrors.WithLabelValues(CodeInvalidRequest).Inc()
		return http.StatusBadRequest, ErrorDetail{Code: CodeInvalidRequest, Message: err.Error()}
	case errors.Is(err, ratematrix.ErrRateNotFound):
		metrics.ReferenceMisses.WithLabelValues("rate_bands").Inc()
	case errors.Is(err, tariff.ErrTariffNotFound):
		metrics.ReferenceMisses.WithLabelValues("tariffs").Inc()
	case errors.Is(err, fees.ErrCategoryNotFound):
		metrics.ReferenceMisses.WithLabelValues("category_fees").Inc()
	default:
		metrics.QuoteErrors.WithLabelValues(CodeInternal).Inc()
		return http.StatusInternalServerError, ErrorDetail{Code: CodeInternal, Message: "internal error"}
	}
	metrics.QuoteErrors.WithLabelValues(CodeReferenceData).Inc()
	return http.StatusUnprocessableEntity, ErrorDetail{Code: CodeReferenceData, Message: err.Error()}
}

func wantTrace(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("trace"))
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]ErrorDetail{"error": {Code: code, Message: message}})
}
