// Package api is the HTTP adapter: it decodes/encodes the §6 wire
// format and maps router.Failure values onto HTTP status codes. It
// holds no routing logic of its own — every request is a thin
// translation layer in front of router.Router.
//
// The handler shape (one struct holding its collaborators, one method
// per route, JSON decode checks before dispatch) is
// grounded on the teacher's (bgscr-dex-aggregator)
// internal/api/handler.go Handler/GetQuote/HealthCheck, with the
// introspection endpoints (GetPool, GetPoolsBetween, GetConfig,
// GetCacheStats, GetGraphStats) adapted from cache.Store/config.AppConfig reads to
// this repository's graph.Graph/quotecache.Cache/config.AppConfig.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"routing-engine/config"
	"routing-engine/internal/graph"
	"routing-engine/internal/metrics"
	"routing-engine/internal/quotecache"
	"routing-engine/internal/router"
	"routing-engine/internal/types"
)

// engineVersion is reported in the /health response (§6).
const engineVersion = "1.0.0"

// Handler adapts HTTP requests onto the routing facade and
// introspection reads over the graph and cache.
type Handler struct {
	router     *router.Router
	graph      *graph.Graph
	cache      *quotecache.Cache
	staleAfter time.Duration
	metrics    *metrics.Metrics
}

// NewHandler wires a Handler. staleAfter is the §6
// staleness_threshold_seconds beyond which /health reports degraded.
// m may be nil; when set, it records the request-validation failures
// (malformed body, invalid address) that never reach router.Quote and
// so would otherwise go uncounted in quote_errors_total.
func NewHandler(r *router.Router, g *graph.Graph, cache *quotecache.Cache, staleAfter time.Duration, m *metrics.Metrics) *Handler {
	return &Handler{router: r, graph: g, cache: cache, staleAfter: staleAfter, metrics: m}
}

// quoteWire mirrors §6's success response shape.
type quoteWire struct {
	AmountIn     string      `json:"amount_in"`
	AmountOut    string      `json:"amount_out"`
	AmountOutMin string      `json:"amount_out_min"`
	PriceImpact  float64     `json:"price_impact"`
	GasEstimate  uint64      `json:"gas_estimate"`
	RouteString  string      `json:"route_string"`
	Route        []hopWire   `json:"route"`
	Splits       []splitWire `json:"splits,omitempty"`
}

type hopWire struct {
	PoolID      string  `json:"pool_id"`
	ZeroForOne  bool    `json:"zero_for_one"`
	AmountIn    string  `json:"amount_in"`
	AmountOut   string  `json:"amount_out"`
	PriceImpact float64 `json:"price_impact"`
	GasEstimate uint64  `json:"gas_estimate"`
}

type splitWire struct {
	Weight float64   `json:"weight"`
	Route  quoteWire `json:"route"`
}

type responseWire struct {
	Quote     quoteWire `json:"quote"`
	Timestamp int64     `json:"timestamp"`
	Cached    bool      `json:"cached"`
}

type errorWire struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func routeToWire(r *types.Route) quoteWire {
	hops := make([]hopWire, len(r.Hops))
	for i, h := range r.Hops {
		hops[i] = hopWire{
			PoolID:      h.PoolID,
			ZeroForOne:  h.ZeroForOne,
			AmountIn:    h.AmountIn.String(),
			AmountOut:   h.AmountOut.String(),
			PriceImpact: h.PriceImpact,
			GasEstimate: h.GasEstimate,
		}
	}
	return quoteWire{
		AmountIn:     r.AmountIn.String(),
		AmountOut:    r.AmountOut.String(),
		AmountOutMin: r.AmountOutMin.String(),
		PriceImpact:  r.PriceImpact,
		GasEstimate:  r.GasEstimate,
		RouteString:  r.RouteString,
		Route:        hops,
	}
}

func resultToResponse(result *types.QuoteResult) responseWire {
	var q quoteWire
	if result.Route != nil {
		q = routeToWire(result.Route)
	}
	if result.Split != nil {
		q.AmountIn = result.Split.AmountIn.String()
		q.AmountOut = result.Split.AmountOut.String()
		q.GasEstimate = result.Split.GasEstimate
		splits := make([]splitWire, len(result.Split.Routes))
		for i, w := range result.Split.Routes {
			splits[i] = splitWire{Weight: w.Weight, Route: routeToWire(w.Route)}
		}
		q.Splits = splits
	}
	return responseWire{
		Quote:     q,
		Timestamp: result.Timestamp.Unix(),
		Cached:    result.Cached,
	}
}

// GetQuote handles POST /quote.
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	var req types.QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorAndRecord(w, http.StatusBadRequest, router.FailureInvalidAmount, "invalid JSON body: "+err.Error())
		return
	}

	if req.TokenIn == "" || !common.IsHexAddress(req.TokenIn) {
		h.writeErrorAndRecord(w, http.StatusBadRequest, router.FailureUnknownToken, "tokenIn must be a valid address")
		return
	}
	if req.TokenOut == "" || !common.IsHexAddress(req.TokenOut) {
		h.writeErrorAndRecord(w, http.StatusBadRequest, router.FailureUnknownToken, "tokenOut must be a valid address")
		return
	}
	if req.SlippageBps == 0 {
		req.SlippageBps = 50
	}
	if req.MaxHops == 0 {
		req.MaxHops = 4
	}
	if req.MaxSplits == 0 {
		req.MaxSplits = 3
	}

	ctx := r.Context()
	if deadline := config.AppConfig.Routing.RequestDeadline; deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	result, err := h.router.Quote(ctx, req)
	if err != nil {
		h.writeQuoteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resultToResponse(result))
}

func (h *Handler) writeQuoteError(w http.ResponseWriter, err error) {
	var qerr *router.QuoteError
	if !errors.As(err, &qerr) {
		log.Printf("api: unmapped quote error: %v", err)
		writeError(w, http.StatusInternalServerError, router.FailureInternalError, err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch qerr.Kind {
	case router.FailureUnknownToken, router.FailureInvalidAmount, router.FailureOutOfRangeParameter:
		status = http.StatusBadRequest
	case router.FailureNoRouteFound:
		status = http.StatusNotFound
	case router.FailureInsufficientLiquidity:
		status = http.StatusBadRequest
	case router.FailureTimeout:
		status = http.StatusRequestTimeout
	}
	writeError(w, status, qerr.Kind, qerr.Message)
}

func writeError(w http.ResponseWriter, status int, kind router.Failure, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorWire{Error: string(kind), Message: message})
}

// writeErrorAndRecord is writeError plus a quote_errors_total
// increment, for the request-validation failures GetQuote rejects
// before ever calling router.Quote (which instruments its own
// failures internally).
func (h *Handler) writeErrorAndRecord(w http.ResponseWriter, status int, kind router.Failure, message string) {
	if h.metrics != nil {
		h.metrics.QuoteErrors.WithLabelValues(string(kind)).Inc()
	}
	writeError(w, status, kind, message)
}

// healthWire is the /health response, matching §6's documented shape
// literally: { status, version, chain_id, graph_stats }.
type healthWire struct {
	Status     string           `json:"status"`
	Version    string           `json:"version"`
	ChainID    int64            `json:"chain_id"`
	GraphStats types.GraphStats `json:"graph_stats"`
}

// Health handles GET /health. §6 maps a stale/degraded graph to a 503
// so load balancers stop routing traffic to an instance whose
// ingestion feed has gone quiet.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.graph.Stats()
	status := "healthy"
	httpStatus := http.StatusOK

	if stats.PoolCount == 0 {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	} else if h.staleAfter > 0 {
		age := time.Since(time.Unix(stats.LastUpdateUnixSeconds, 0))
		if age > h.staleAfter {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(healthWire{
		Status:     status,
		Version:    engineVersion,
		ChainID:    h.router.ChainID(),
		GraphStats: stats,
	})
}

// GetConfig exposes the active configuration, adapted from the
// teacher's handler.go GetConfig.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(config.AppConfig)
}

// GetCacheStats exposes quote cache hit/miss/eviction counters,
// adapted from the teacher's handler.go GetCacheStats (originally a
// pool-graph cache; this repository's cache is the quote cache).
func (h *Handler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.cache.Stats())
}

// GetGraphStats exposes pool-graph size and freshness, the
// introspection counterpart to /health's pass/fail verdict.
func (h *Handler) GetGraphStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.graph.Stats())
}

// GetPool looks up a single pool by id, adapted from the teacher's
// GetPoolByAddress (pools are keyed by address there, by id here).
func (h *Handler) GetPool(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	pool, ok := h.graph.Pool(id)
	if !ok {
		writeError(w, http.StatusNotFound, router.FailureNoRouteFound, "pool not found: "+id)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(pool)
}

// GetPoolsBetween lists every pool connecting two tokens, adapted
// from the teacher's GetPoolsByTokens.
func (h *Handler) GetPoolsBetween(w http.ResponseWriter, r *http.Request) {
	tokenA := r.URL.Query().Get("tokenA")
	tokenB := r.URL.Query().Get("tokenB")
	if tokenA == "" || tokenB == "" {
		writeError(w, http.StatusBadRequest, router.FailureOutOfRangeParameter, "tokenA and tokenB query parameters are required")
		return
	}

	ids := h.graph.PoolsBetween(tokenA, tokenB)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"tokenA": tokenA,
		"tokenB": tokenB,
		"count":  len(ids),
		"pools":  ids,
	})
}
