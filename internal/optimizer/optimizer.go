// Package optimizer allocates a trade amount across up to S candidate
// routes to maximize total output, per §4.6:
//
//   - S=1 is a passthrough: the whole amount goes to the single route.
//   - S=2 searches the split ratio r in [0,1] by golden-section search
//     (the routes' combined output as a function of r is not
//     guaranteed convex, but empirically near-unimodal for AMM curves,
//     which is what golden-section search assumes), comparing the
//     optimum it finds against both pure endpoints (r=0, r=1) so a
//     non-unimodal objective still can't beat the all-or-nothing
//     quote.
//   - S>=3 uses coordinate-ascent over the simplex of weights, capped
//     at a fixed iteration count.
//
// Splits below MinSplitFraction are rejected and folded into the
// nearest surviving leg, per the "no dust legs" edge case.
//
// This has no grounding source in the teacher (bgscr-dex-aggregator
// only ever returns a single best path) or the wider retrieval pack —
// none of the example repos implement a multi-route split search, so
// this package is original, built directly against §4.6's textual
// algorithm description rather than adapted from an existing file.
package optimizer

import (
	"context"
	"errors"
	"math/big"

	"routing-engine/internal/evaluator"
	"routing-engine/internal/simulator"
	"routing-engine/internal/types"
)

// DefaultMinSplitFraction is the smallest weight a leg may keep; any
// computed split narrower than this is dropped and its allocation
// folded back into its neighbours.
const DefaultMinSplitFraction = 0.01

// MaxCoordinateAscentIterations bounds the S>=3 search so a
// pathological input can never spin the optimizer indefinitely.
const MaxCoordinateAscentIterations = 8

// goldenSectionIterations bounds the S=2 ratio search; each iteration
// narrows the bracket by the golden ratio (~0.618), so 24 iterations
// resolve r to better than 1e-5.
const goldenSectionIterations = 24

var (
	ErrNoCandidates    = errors.New("optimizer: no candidate routes to split across")
	ErrSplitsBelowOne  = errors.New("optimizer: maxSplits must be at least 1")
)

// RouteAt re-evaluates a single candidate route's underlying path at
// a given input amount. The optimizer needs this because changing a
// leg's allocation changes its amount_in, which requires re-running
// the simulator rather than naively scaling the cached AmountOut.
type RouteAt func(ctx context.Context, amountIn *big.Int) (*types.Route, error)

// Candidate is one route considered for inclusion in a split, bound
// to a re-evaluation function over its own path.
type Candidate struct {
	Path pathFunc
}

type pathFunc = RouteAt

// Optimize allocates amountIn across up to maxSplits of the given
// candidate evaluators (assumed already ranked best-first, e.g. via
// evaluator.RankDescending) and returns the resulting SplitQuote. With
// maxSplits==1 or a single candidate, it passes the full amount to the
// best candidate (S=1 passthrough); maxSplits<1 returns
// ErrSplitsBelowOne.
func Optimize(ctx context.Context, candidates []RouteAt, amountIn *big.Int, maxSplits int) (*types.SplitQuote, error) {
	return OptimizeWithMinFraction(ctx, candidates, amountIn, maxSplits, DefaultMinSplitFraction)
}

// OptimizeWithMinFraction is Optimize with an explicit minimum split
// fraction, letting callers honor a configured
// routing.min_split_fraction instead of the package default.
func OptimizeWithMinFraction(ctx context.Context, candidates []RouteAt, amountIn *big.Int, maxSplits int, minFraction float64) (*types.SplitQuote, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	if maxSplits < 1 {
		return nil, ErrSplitsBelowOne
	}

	s := maxSplits
	if s > len(candidates) {
		s = len(candidates)
	}
	candidates = candidates[:s]

	if s == 1 {
		return passthrough(ctx, candidates[0], amountIn)
	}
	if s == 2 {
		return optimizeTwoWay(ctx, candidates[0], candidates[1], amountIn, minFraction)
	}
	return optimizeCoordinateAscent(ctx, candidates, amountIn, minFraction)
}

func passthrough(ctx context.Context, route RouteAt, amountIn *big.Int) (*types.SplitQuote, error) {
	r, err := route(ctx, amountIn)
	if err != nil {
		return nil, err
	}
	return &types.SplitQuote{
		Routes:      []types.Weighted{{Weight: 1, Route: r}},
		AmountIn:    amountIn,
		AmountOut:   r.AmountOut,
		GasEstimate: r.GasEstimate,
	}, nil
}

// outputAtRatio evaluates both legs at split ratio r (leg A gets r,
// leg B gets 1-r) and returns their combined output, or an error if
// either leg fails to fill at that allocation.
func outputAtRatio(ctx context.Context, a, b RouteAt, amountIn *big.Int, r float64) (*big.Int, *types.Route, *types.Route, error) {
	amountA := scale(amountIn, r)
	amountB := new(big.Int).Sub(amountIn, amountA)

	var routeA, routeB *types.Route
	var errA, errB error
	if amountA.Sign() > 0 {
		routeA, errA = a(ctx, amountA)
	}
	if amountB.Sign() > 0 {
		routeB, errB = b(ctx, amountB)
	}
	if errA != nil {
		return nil, nil, nil, errA
	}
	if errB != nil {
		return nil, nil, nil, errB
	}

	total := new(big.Int)
	if routeA != nil {
		total.Add(total, routeA.AmountOut)
	}
	if routeB != nil {
		total.Add(total, routeB.AmountOut)
	}
	return total, routeA, routeB, nil
}

// optimizeTwoWay runs golden-section search over the split ratio,
// then compares the interior optimum against both pure endpoints so a
// non-unimodal objective can never beat a single-route quote.
func optimizeTwoWay(ctx context.Context, a, b RouteAt, amountIn *big.Int, minFraction float64) (*types.SplitQuote, error) {
	const phi = 0.6180339887498949

	lo, hi := 0.0, 1.0
	c := hi - phi*(hi-lo)
	d := lo + phi*(hi-lo)

	outC, _, _, errC := outputAtRatio(ctx, a, b, amountIn, c)
	outD, _, _, errD := outputAtRatio(ctx, a, b, amountIn, d)

	for i := 0; i < goldenSectionIterations; i++ {
		if ctx.Err() != nil {
			break
		}
		if errC != nil && errD != nil {
			break
		}
		cBetter := errD != nil || (errC == nil && outC.Cmp(outD) >= 0)
		if cBetter {
			hi = d
			d, outD, errD = c, outC, errC
			c = hi - phi*(hi-lo)
			outC, _, _, errC = outputAtRatio(ctx, a, b, amountIn, c)
		} else {
			lo = c
			c, outC, errC = d, outD, errD
			d = lo + phi*(hi-lo)
			outD, _, _, errD = outputAtRatio(ctx, a, b, amountIn, d)
		}
	}

	best := (lo + hi) / 2
	bestOut, routeA, routeB, err := outputAtRatio(ctx, a, b, amountIn, best)

	// compare against both pure endpoints: a non-unimodal combined
	// surface could still leave an endpoint strictly better than
	// anything golden-section found in the interior
	endpointZero, _, _, errZero := outputAtRatio(ctx, a, b, amountIn, 0)
	endpointOne, _, _, errOne := outputAtRatio(ctx, a, b, amountIn, 1)

	type candidate struct {
		ratio float64
		out   *big.Int
		err   error
	}
	options := []candidate{{best, bestOut, err}, {0, endpointZero, errZero}, {1, endpointOne, errOne}}

	var winner *candidate
	for i := range options {
		o := &options[i]
		if o.err != nil {
			continue
		}
		if winner == nil || o.out.Cmp(winner.out) > 0 {
			winner = o
		}
	}
	if winner == nil {
		return nil, err
	}

	if winner.ratio != best {
		best = winner.ratio
		_, routeA, routeB, _ = outputAtRatio(ctx, a, b, amountIn, best)
	}

	return assembleSplit(amountIn, []float64{best, 1 - best}, []*types.Route{routeA, routeB}, minFraction)
}

// optimizeCoordinateAscent handles S>=3: each sweep walks adjacent
// pairs of legs and re-runs the two-way search between them (holding
// every other leg's weight fixed), adopting the pair's new split of
// their combined weight. Weights start uniform across candidates.
func optimizeCoordinateAscent(ctx context.Context, candidates []RouteAt, amountIn *big.Int, minFraction float64) (*types.SplitQuote, error) {
	n := len(candidates)
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1.0 / float64(n)
	}

	for iter := 0; iter < MaxCoordinateAscentIterations; iter++ {
		if ctx.Err() != nil {
			break
		}
		for i := 0; i < n-1; i++ {
			j := i + 1
			combined := weights[i] + weights[j]
			if combined <= 0 {
				continue
			}
			pairAmount := scale(amountIn, combined)

			split, err := optimizeTwoWay(ctx, candidates[i], candidates[j], pairAmount, minFraction)
			if err != nil || len(split.Routes) != 2 {
				continue
			}
			weights[i] = split.Routes[0].Weight * combined
			weights[j] = split.Routes[1].Weight * combined
		}
	}

	routes := make([]*types.Route, n)
	amounts := make([]*big.Int, n)
	total := new(big.Int)
	for i, w := range weights {
		amt := scale(amountIn, w)
		amounts[i] = amt
		total.Add(total, amt)
	}
	// rounding remainder goes to the largest leg so amounts sum exactly
	if remainder := new(big.Int).Sub(amountIn, total); remainder.Sign() != 0 {
		largest := 0
		for i := 1; i < n; i++ {
			if amounts[i].Cmp(amounts[largest]) > 0 {
				largest = i
			}
		}
		amounts[largest].Add(amounts[largest], remainder)
	}

	for i, amt := range amounts {
		if amt.Sign() <= 0 {
			continue
		}
		r, err := candidates[i](ctx, amt)
		if err != nil {
			continue
		}
		routes[i] = r
	}

	return assembleSplit(amountIn, weights, routes, minFraction)
}

// assembleSplit drops legs below minSplitFraction, folds their weight
// into the largest surviving leg, and builds the final SplitQuote.
func assembleSplit(amountIn *big.Int, weights []float64, routes []*types.Route, minFraction float64) (*types.SplitQuote, error) {
	if minFraction <= 0 {
		minFraction = DefaultMinSplitFraction
	}
	var weighted []types.Weighted
	var totalOut big.Int
	var totalGas uint64

	keptWeight := 0.0
	for i, r := range routes {
		if r == nil || weights[i] < minFraction {
			continue
		}
		weighted = append(weighted, types.Weighted{Weight: weights[i], Route: r})
		keptWeight += weights[i]
	}
	if len(weighted) == 0 {
		return nil, evaluator.ErrNoSurvivors
	}

	// renormalize so kept weights sum to 1 after dropping dust legs
	for i := range weighted {
		weighted[i].Weight /= keptWeight
		totalOut.Add(&totalOut, weighted[i].Route.AmountOut)
		totalGas += weighted[i].Route.GasEstimate
	}

	return &types.SplitQuote{
		Routes:      weighted,
		AmountIn:    amountIn,
		AmountOut:   new(big.Int).Set(&totalOut),
		GasEstimate: totalGas,
	}, nil
}

func scale(amountIn *big.Int, ratio float64) *big.Int {
	if ratio <= 0 {
		return new(big.Int)
	}
	if ratio >= 1 {
		return new(big.Int).Set(amountIn)
	}
	num := big.NewInt(int64(ratio * 1_000_000))
	out := new(big.Int).Mul(amountIn, num)
	return out.Div(out, big.NewInt(1_000_000))
}

// DefaultGasModel re-exports simulator.DefaultGasModel for callers
// building RouteAt closures without importing simulator directly.
var DefaultGasModel = simulator.DefaultGasModel
