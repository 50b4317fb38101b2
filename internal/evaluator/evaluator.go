// Package evaluator turns candidate pool-id paths into simulated
// Routes (§4.5): it drives the simulator hop by hop, threading each
// hop's output into the next hop's input, discards any path that
// fails or partially fills, and selects the best surviving route by
// output (ties broken by gas).
//
// The concurrent-dispatch shape is grounded on the teacher's
// (bgscr-dex-aggregator) internal/aggregator/router.go
// calculatePathsConcurrently: a semaphore channel bounds in-flight
// goroutines, a WaitGroup plus a closer goroutine lets the collecting
// loop drain a buffered results channel without deadlocking. That
// pattern only pays for itself once there is enough candidate work to
// parallelize, so below the §9 "~4 paths" threshold this package
// evaluates sequentially on the calling goroutine instead.
package evaluator

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"strings"
	"sync"

	"routing-engine/internal/ammmath/tickmath"
	"routing-engine/internal/graph"
	"routing-engine/internal/pathfinder"
	"routing-engine/internal/simulator"
	"routing-engine/internal/types"
)

// ParallelThreshold is the candidate-path count at and above which
// EvaluateAll dispatches hop simulation concurrently.
const ParallelThreshold = 4

// MaxConcurrentEvaluations bounds the evaluator's goroutine fan-out,
// mirroring the teacher's Router.maxConcurrent semaphore size.
const MaxConcurrentEvaluations = 8

var (
	ErrNoPathsGiven  = errors.New("evaluator: no candidate paths to evaluate")
	ErrPathBroken    = errors.New("evaluator: path does not connect through shared tokens")
	ErrNoSurvivors   = errors.New("evaluator: every candidate path failed or partially filled")
)

// Evaluator simulates candidate paths against a pool graph.
type Evaluator struct {
	g   *graph.Graph
	gas simulator.GasModel
}

// New returns an Evaluator reading pool state from g.
func New(g *graph.Graph, gas simulator.GasModel) *Evaluator {
	return &Evaluator{g: g, gas: gas}
}

// EvaluateAll simulates every candidate path for an exact input of
// amountIn tokenIn, discards failures, and returns the surviving
// routes in no particular order (callers needing the best single
// route should call SelectBest on the result).
func (e *Evaluator) EvaluateAll(ctx context.Context, paths []pathfinder.Path, tokenIn string, amountIn *big.Int, slippageBps int) ([]*types.Route, error) {
	if len(paths) == 0 {
		return nil, ErrNoPathsGiven
	}

	if len(paths) < ParallelThreshold {
		return e.evaluateSequential(ctx, paths, tokenIn, amountIn, slippageBps), nil
	}
	return e.evaluateConcurrent(ctx, paths, tokenIn, amountIn, slippageBps), nil
}

func (e *Evaluator) evaluateSequential(ctx context.Context, paths []pathfinder.Path, tokenIn string, amountIn *big.Int, slippageBps int) []*types.Route {
	var routes []*types.Route
	for _, p := range paths {
		if ctx.Err() != nil {
			break
		}
		if route, err := e.evaluatePath(p, tokenIn, amountIn, slippageBps); err == nil {
			routes = append(routes, route)
		}
	}
	return routes
}

// evaluateConcurrent mirrors the teacher's calculatePathsConcurrently:
// a semaphore bounds in-flight simulations, a WaitGroup tracks
// completion, and a closer goroutine closes the results channel so
// the collecting loop terminates without an explicit count.
func (e *Evaluator) evaluateConcurrent(ctx context.Context, paths []pathfinder.Path, tokenIn string, amountIn *big.Int, slippageBps int) []*types.Route {
	sem := make(chan struct{}, MaxConcurrentEvaluations)
	results := make(chan *types.Route, len(paths))
	var wg sync.WaitGroup

	for _, p := range paths {
		if ctx.Err() != nil {
			break
		}
		p := p
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if ctx.Err() != nil {
				return
			}
			if route, err := e.evaluatePath(p, tokenIn, amountIn, slippageBps); err == nil {
				results <- route
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var routes []*types.Route
	for route := range results {
		routes = append(routes, route)
	}
	return routes
}

// evaluatePath drives the simulator across every hop of p, threading
// output into the next hop's input. Any hop error, missing pool, or
// non-zero RemainingIn (the price limit was hit before the full
// amount filled) discards the whole path.
func (e *Evaluator) evaluatePath(p pathfinder.Path, tokenIn string, amountIn *big.Int, slippageBps int) (*types.Route, error) {
	currentToken := strings.ToLower(tokenIn)
	currentAmount := amountIn

	hops := make([]types.Hop, 0, len(p))
	var totalGas uint64
	var route strings.Builder
	route.WriteString(symbolOrAddress(e.g, currentToken))

	var totalImpact float64

	for _, poolID := range p {
		pool, ok := e.g.Pool(poolID)
		if !ok || !pool.Initialized() {
			return nil, ErrPathBroken
		}

		zeroForOne := strings.ToLower(pool.Token0.Address) == currentToken
		var outToken string
		if zeroForOne {
			outToken = strings.ToLower(pool.Token1.Address)
		} else {
			outToken = strings.ToLower(pool.Token0.Address)
		}
		if !zeroForOne && strings.ToLower(pool.Token1.Address) != currentToken {
			return nil, ErrPathBroken
		}

		limit, err := tickmath.PriceLimit(zeroForOne, pool.SqrtPriceX96, slippageBps)
		if err != nil {
			return nil, err
		}

		res, err := simulator.SimulateExactIn(pool, zeroForOne, currentAmount, limit, e.gas)
		if err != nil {
			return nil, err
		}
		if res.RemainingIn.Sign() > 0 {
			// the price limit was hit before exhausting the input; this
			// candidate cannot fill the requested amount through this path
			return nil, ErrPathBroken
		}
		if res.AmountOut.Sign() <= 0 {
			return nil, ErrPathBroken
		}

		hops = append(hops, types.Hop{
			PoolID:           poolID,
			ZeroForOne:       zeroForOne,
			AmountIn:         currentAmount,
			AmountOut:        res.AmountOut,
			PriceImpact:      res.PriceImpact,
			PostSqrtPriceX96: res.NewSqrtPriceX96,
			GasEstimate:      res.GasEstimate,
		})
		totalGas += res.GasEstimate
		totalImpact += res.PriceImpact

		currentAmount = res.AmountOut
		currentToken = outToken
		route.WriteString(" -> ")
		route.WriteString(symbolOrAddress(e.g, currentToken))
	}

	return &types.Route{
		Hops:         hops,
		AmountIn:     amountIn,
		AmountOut:    currentAmount,
		AmountOutMin: applySlippage(currentAmount, slippageBps),
		PriceImpact:  totalImpact,
		GasEstimate:  totalGas,
		RouteString:  route.String(),
	}, nil
}

// applySlippage returns floor(amountOut * (10000 - slippageBps) / 10000),
// the minimum acceptable output under the requested slippage tolerance.
func applySlippage(amountOut *big.Int, slippageBps int) *big.Int {
	if slippageBps <= 0 {
		return new(big.Int).Set(amountOut)
	}
	num := big.NewInt(10_000 - int64(slippageBps))
	min := new(big.Int).Mul(amountOut, num)
	return min.Div(min, big.NewInt(10_000))
}

func symbolOrAddress(g *graph.Graph, addr string) string {
	if tok, ok := g.Token(addr); ok && tok.Symbol != "" {
		return tok.Symbol
	}
	if len(addr) > 10 {
		return addr[:6] + ".." + addr[len(addr)-4:]
	}
	return addr
}

// SelectBest picks the route with the highest AmountOut, ties broken
// by the lower total GasEstimate, per §4.5's selection rule.
func SelectBest(routes []*types.Route) (*types.Route, error) {
	if len(routes) == 0 {
		return nil, ErrNoSurvivors
	}
	best := routes[0]
	for _, r := range routes[1:] {
		switch r.AmountOut.Cmp(best.AmountOut) {
		case 1:
			best = r
		case 0:
			if r.GasEstimate < best.GasEstimate {
				best = r
			}
		}
	}
	return best, nil
}

// RankDescending sorts routes best-first using the same rule as
// SelectBest (highest output, ties by lower gas). Used by the split
// optimizer to pick its top-N candidate routes before allocating
// amounts across them.
func RankDescending(routes []*types.Route) []*types.Route {
	ranked := make([]*types.Route, len(routes))
	copy(ranked, routes)
	sort.SliceStable(ranked, func(i, j int) bool {
		if cmp := ranked[i].AmountOut.Cmp(ranked[j].AmountOut); cmp != 0 {
			return cmp > 0
		}
		return ranked[i].GasEstimate < ranked[j].GasEstimate
	})
	return ranked
}
