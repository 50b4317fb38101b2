// Package router implements the facade described in §4.8: validate,
// check the cache, enumerate paths, evaluate, optionally split, cache
// the result, and return it — the single entry point the HTTP adapter
// calls for a quote.
//
// The orchestration shape — a struct wiring together a graph, a
// pathfinder, an evaluator, and a cache behind one Quote method — is
// grounded on the teacher's (bgscr-dex-aggregator)
// internal/aggregator/router.go Router.GetBestQuote, generalized from
// its single-best-path return to this repository's optional split
// path and explicit deadline checks at each of the three points §5
// names (before pathfinder, before each parallel evaluation batch,
// before split optimization).
package router

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"routing-engine/internal/evaluator"
	"routing-engine/internal/graph"
	"routing-engine/internal/metrics"
	"routing-engine/internal/optimizer"
	"routing-engine/internal/pathfinder"
	"routing-engine/internal/quotecache"
	"routing-engine/internal/simulator"
	"routing-engine/internal/types"
)

// Failure is the facade's error taxonomy (§7): every error a caller
// can see from Quote is one of these, never a lower-layer error
// directly, so the HTTP adapter's status mapping has a closed set of
// cases to switch on.
type Failure string

const (
	FailureNoRouteFound           Failure = "NoRouteFound"
	FailureInsufficientLiquidity  Failure = "InsufficientLiquidity"
	FailureUnknownToken           Failure = "UnknownToken"
	FailureInvalidAmount          Failure = "InvalidAmount"
	FailureOutOfRangeParameter    Failure = "OutOfRangeParameter"
	FailureTimeout                Failure = "Timeout"
	FailureInternalError          Failure = "InternalError"
)

// QuoteError wraps a Failure with a human-readable message; the HTTP
// adapter inspects Kind to choose a status code (§6). PartialRoute is
// set only for a FailureTimeout where a best route had already been
// found before the deadline expired (§5: "returns Timeout with
// whatever best route has been found, if any").
type QuoteError struct {
	Kind         Failure
	Message      string
	PartialRoute *types.Route
}

func (e *QuoteError) Error() string { return string(e.Kind) + ": " + e.Message }

func fail(kind Failure, msg string) *QuoteError {
	return &QuoteError{Kind: kind, Message: msg}
}

func timeoutWithPartial(route *types.Route) *QuoteError {
	return &QuoteError{Kind: FailureTimeout, Message: "request deadline exceeded", PartialRoute: route}
}

// top256BitBound is 2^256, the ceiling amounts must fit under.
var top256BitBound = new(big.Int).Lsh(big.NewInt(1), 256)

// Router is the facade: it owns no state of its own beyond its
// collaborators, all of which are safe for concurrent use.
type Router struct {
	graph     *graph.Graph
	finder    *pathfinder.Finder
	evaluator *evaluator.Evaluator
	cache     *quotecache.Cache

	maxHopsLimit            int
	maxSplitsLimit          int
	pathEnumerationCap      int
	minSplitFraction        float64
	maxSlippageBps          int
	amountBucketGranularity int64
	chainID                 int64

	metrics *metrics.Metrics
}

// Config bundles the tunables Quote needs from the §6 configuration
// table beyond what's implicit in its collaborators.
type Config struct {
	ChainID                 int64
	MaxHopsLimit            int
	MaxSplitsLimit          int
	PathEnumerationCap      int
	MinSplitFraction        float64
	MaxSlippageBps          int
	AmountBucketGranularity int64
	Metrics                 *metrics.Metrics
}

// New wires a Router from its collaborators and tunables. When
// cfg.Metrics is non-nil it is also attached to cache, so cache hit
// and miss counts reach Prometheus from the single call site that
// already owns both collaborators.
func New(g *graph.Graph, cache *quotecache.Cache, gas simulator.GasModel, cfg Config) *Router {
	if cfg.Metrics != nil {
		cache.SetMetrics(cfg.Metrics)
	}
	return &Router{
		graph:                   g,
		finder:                  pathfinder.New(g),
		evaluator:               evaluator.New(g, gas),
		cache:                   cache,
		maxHopsLimit:            orDefault(cfg.MaxHopsLimit, 4),
		maxSplitsLimit:          orDefault(cfg.MaxSplitsLimit, 3),
		pathEnumerationCap:      orDefault(cfg.PathEnumerationCap, pathfinder.DefaultPathEnumerationCap),
		minSplitFraction:        cfg.MinSplitFraction,
		maxSlippageBps:          orDefault(cfg.MaxSlippageBps, 5000),
		amountBucketGranularity: cfg.AmountBucketGranularity,
		chainID:                 cfg.ChainID,
		metrics:                 cfg.Metrics,
	}
}

// ChainID returns the chain this router quotes for, exposed for the
// HTTP adapter's /health response (§6).
func (r *Router) ChainID() int64 { return r.chainID }

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Quote is the facade's entry point, implementing §4.8's pseudocode.
func (r *Router) Quote(ctx context.Context, req types.QuoteRequest) (*types.QuoteResult, error) {
	if r.metrics != nil {
		start := time.Now()
		defer func() { r.metrics.QuoteLatency.Observe(time.Since(start).Seconds()) }()
	}

	if err := r.validate(req); err != nil {
		return nil, r.recordFailure(err)
	}

	key := r.cacheKey(req)
	if cached, ok := r.cache.Get(key); ok {
		result := *cached
		result.Cached = true
		return &result, nil
	}

	if err := checkDeadline(ctx); err != nil {
		return nil, r.recordFailure(timeoutWithPartial(nil))
	}

	maxHops := req.MaxHops
	if maxHops <= 0 {
		maxHops = r.maxHopsLimit
	}
	paths := r.finder.Enumerate(req.TokenIn, req.TokenOut, maxHops, r.pathEnumerationCap)
	if r.metrics != nil {
		r.metrics.PathsEnumerated.Observe(float64(len(paths)))
	}
	if len(paths) == 0 {
		return nil, r.recordFailure(fail(FailureNoRouteFound, "no path connects tokenIn to tokenOut within max_hops"))
	}

	if err := checkDeadline(ctx); err != nil {
		return nil, r.recordFailure(timeoutWithPartial(nil))
	}

	routes, err := r.evaluator.EvaluateAll(ctx, paths, req.TokenIn, req.AmountIn, req.SlippageBps)
	if err != nil {
		return nil, r.recordFailure(translateEvaluationError(err))
	}
	if r.metrics != nil {
		r.metrics.RoutesEvaluated.Observe(float64(len(routes)))
	}
	if len(routes) == 0 {
		return nil, r.recordFailure(fail(FailureInsufficientLiquidity, "every candidate path failed or could not absorb the requested amount"))
	}

	ranked := evaluator.RankDescending(routes)
	bestSingle := ranked[0]

	var result types.QuoteResult
	maxSplits := req.MaxSplits
	if maxSplits <= 0 {
		maxSplits = 1
	}
	if maxSplits > r.maxSplitsLimit {
		maxSplits = r.maxSplitsLimit
	}

	if maxSplits > 1 && len(ranked) >= 2 {
		if err := checkDeadline(ctx); err != nil {
			return nil, r.recordFailure(timeoutWithPartial(bestSingle))
		}

		split, err := r.optimizeSplit(ctx, ranked, req, maxSplits)
		if err == nil && split != nil && split.AmountOut.Cmp(bestSingle.AmountOut) > 0 {
			result = types.QuoteResult{Split: split, Timestamp: now()}
		} else {
			result = types.QuoteResult{Route: bestSingle, Timestamp: now()}
		}
	} else {
		result = types.QuoteResult{Route: bestSingle, Timestamp: now()}
	}

	r.cache.Put(key, &result)
	return &result, nil
}

// recordFailure mirrors err's Failure kind into the quote_errors_total
// counter, labeled by reason, before returning it unchanged — a single
// choke point so every return path in Quote stays instrumented.
func (r *Router) recordFailure(err error) error {
	if r.metrics == nil {
		return err
	}
	kind := FailureInternalError
	if qerr, ok := err.(*QuoteError); ok {
		kind = qerr.Kind
	}
	r.metrics.QuoteErrors.WithLabelValues(string(kind)).Inc()
	return err
}

// optimizeSplit wraps the top candidate routes' paths as RouteAt
// closures so the optimizer can re-simulate them at arbitrary split
// amounts, then delegates to optimizer.Optimize.
func (r *Router) optimizeSplit(ctx context.Context, ranked []*types.Route, req types.QuoteRequest, maxSplits int) (*types.SplitQuote, error) {
	n := maxSplits
	if n > len(ranked) {
		n = len(ranked)
	}

	paths := make([]pathfinder.Path, n)
	for i := 0; i < n; i++ {
		p := make(pathfinder.Path, len(ranked[i].Hops))
		for j, hop := range ranked[i].Hops {
			p[j] = hop.PoolID
		}
		paths[i] = p
	}

	candidates := make([]optimizer.RouteAt, n)
	for i := 0; i < n; i++ {
		path := paths[i]
		candidates[i] = func(ctx context.Context, amountIn *big.Int) (*types.Route, error) {
			routes, err := r.evaluator.EvaluateAll(ctx, []pathfinder.Path{path}, req.TokenIn, amountIn, req.SlippageBps)
			if err != nil || len(routes) == 0 {
				return nil, errors.New("router: leg failed to re-simulate at split amount")
			}
			return routes[0], nil
		}
	}

	return optimizer.OptimizeWithMinFraction(ctx, candidates, req.AmountIn, maxSplits, r.minSplitFraction)
}

// validate enforces §4.8's input checks.
func (r *Router) validate(req types.QuoteRequest) error {
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return fail(FailureInvalidAmount, "amountIn must be positive")
	}
	if req.AmountIn.Cmp(top256BitBound) >= 0 {
		return fail(FailureInvalidAmount, "amountIn must fit in 256 bits")
	}
	if !r.graph.HasToken(req.TokenIn) {
		return fail(FailureUnknownToken, "tokenIn not present in the pool graph")
	}
	if !r.graph.HasToken(req.TokenOut) {
		return fail(FailureUnknownToken, "tokenOut not present in the pool graph")
	}
	if strings.EqualFold(req.TokenIn, req.TokenOut) {
		return fail(FailureInvalidAmount, "tokenIn and tokenOut must differ")
	}
	if req.MaxHops != 0 && (req.MaxHops < 1 || req.MaxHops > 4) {
		return fail(FailureOutOfRangeParameter, "maxHops must be in [1, 4]")
	}
	if req.MaxSplits != 0 && (req.MaxSplits < 1 || req.MaxSplits > 3) {
		return fail(FailureOutOfRangeParameter, "maxSplits must be in [1, 3]")
	}
	if req.SlippageBps < 0 || req.SlippageBps > r.maxSlippageBps {
		return fail(FailureOutOfRangeParameter, "slippageBps must be in [0, 5000]")
	}
	return nil
}

func (r *Router) cacheKey(req types.QuoteRequest) quotecache.Key {
	bucketed := quotecache.Bucket(req.AmountIn, r.amountBucketGranularity)
	return quotecache.Key{
		ChainID:     r.chainID,
		TokenIn:     strings.ToLower(req.TokenIn),
		TokenOut:    strings.ToLower(req.TokenOut),
		Amount:      bucketed.String(),
		SlippageBps: req.SlippageBps,
		MaxHops:     req.MaxHops,
		MaxSplits:   req.MaxSplits,
	}
}

func checkDeadline(ctx context.Context) error {
	return ctx.Err()
}

func translateEvaluationError(err error) error {
	if errors.Is(err, evaluator.ErrNoPathsGiven) {
		return fail(FailureNoRouteFound, err.Error())
	}
	return fail(FailureInternalError, err.Error())
}

var now = func() time.Time { return time.Now() }
