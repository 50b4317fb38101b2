package evaluator

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routing-engine/internal/ammmath/tickmath"
	"routing-engine/internal/graph"
	"routing-engine/internal/pathfinder"
	"routing-engine/internal/simulator"
	"routing-engine/internal/types"
)

const (
	tokenA = "0xaaaa000000000000000000000000000000aaaa"
	tokenB = "0xbbbb000000000000000000000000000000bbbb"
	tokenC = "0xcccc000000000000000000000000000000cccc"
)

// wideLiquidityPool returns a pool with enough initialized tick range
// either side of tick 0 to fully fill small test trades without
// hitting the price limit, mirroring simulator_test.samplePool.
func wideLiquidityPool(t *testing.T, id, t0, t1 string) *types.Pool {
	t.Helper()
	sqrtPrice, err := tickmath.TickToSqrtPrice(0)
	require.NoError(t, err)

	return &types.Pool{
		ID:           id,
		Token0:       types.Token{Address: t0, Symbol: symbolFor(t0)},
		Token1:       types.Token{Address: t1, Symbol: symbolFor(t1)},
		Fee:          3000,
		TickSpacing:  60,
		SqrtPriceX96: sqrtPrice,
		Tick:         0,
		Liquidity:    big.NewInt(1_000_000_000_000_000),
		Ticks: []types.TickInfo{
			{Index: -60_000, LiquidityGross: big.NewInt(500_000_000_000), LiquidityNet: big.NewInt(500_000_000_000)},
			{Index: 60_000, LiquidityGross: big.NewInt(500_000_000_000), LiquidityNet: big.NewInt(-500_000_000_000)},
		},
	}
}

func symbolFor(addr string) string {
	switch addr {
	case tokenA:
		return "A"
	case tokenB:
		return "B"
	case tokenC:
		return "C"
	default:
		return ""
	}
}

func buildTriangleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	require.NoError(t, g.ApplySnapshot([]*types.Pool{
		wideLiquidityPool(t, "P_AB", tokenA, tokenB),
		wideLiquidityPool(t, "P_BC", tokenB, tokenC),
		wideLiquidityPool(t, "P_AC", tokenA, tokenC),
	}))
	return g
}

func TestEvaluateAllRejectsEmptyPaths(t *testing.T) {
	g := buildTriangleGraph(t)
	e := New(g, simulator.DefaultGasModel())
	_, err := e.EvaluateAll(context.Background(), nil, tokenA, big.NewInt(1000), 500)
	assert.ErrorIs(t, err, ErrNoPathsGiven)
}

func TestEvaluatePathDirectAndMultiHop(t *testing.T) {
	g := buildTriangleGraph(t)
	e := New(g, simulator.DefaultGasModel())

	paths := []pathfinder.Path{{"P_AC"}, {"P_AB", "P_BC"}}
	routes, err := e.EvaluateAll(context.Background(), paths, tokenA, big.NewInt(1_000_000), 500)
	require.NoError(t, err)
	require.Len(t, routes, 2)

	for _, r := range routes {
		assert.True(t, r.AmountOut.Sign() > 0)
		assert.NotEmpty(t, r.RouteString)
		assert.True(t, r.AmountOutMin.Cmp(r.AmountOut) <= 0)
	}
}

func TestEvaluatePathDiscardsBrokenChain(t *testing.T) {
	g := buildTriangleGraph(t)
	e := New(g, simulator.DefaultGasModel())

	// P_BC does not touch tokenA, so a path starting with it from tokenA
	// cannot be evaluated
	_, err := e.evaluatePath(pathfinder.Path{"P_BC"}, tokenA, big.NewInt(1000), 500)
	assert.ErrorIs(t, err, ErrPathBroken)
}

func TestEvaluateAllDispatchesConcurrentlyAboveThreshold(t *testing.T) {
	g := graph.New()
	var pools []*types.Pool
	for i := 0; i < ParallelThreshold+2; i++ {
		id := string(rune('a' + i))
		pools = append(pools, wideLiquidityPoolNamed(t, "P_"+id, tokenA, tokenB))
	}
	require.NoError(t, g.ApplySnapshot(pools))

	e := New(g, simulator.DefaultGasModel())
	var paths []pathfinder.Path
	for _, p := range pools {
		paths = append(paths, pathfinder.Path{p.ID})
	}

	routes, err := e.EvaluateAll(context.Background(), paths, tokenA, big.NewInt(1_000_000), 500)
	require.NoError(t, err)
	assert.Len(t, routes, len(paths))
}

func wideLiquidityPoolNamed(t *testing.T, id, t0, t1 string) *types.Pool {
	t.Helper()
	return wideLiquidityPool(t, id, t0, t1)
}

func TestSelectBestPrefersHighestOutputThenLowerGas(t *testing.T) {
	routes := []*types.Route{
		{AmountOut: big.NewInt(100), GasEstimate: 200_000},
		{AmountOut: big.NewInt(150), GasEstimate: 300_000},
		{AmountOut: big.NewInt(150), GasEstimate: 150_000},
	}
	best, err := SelectBest(routes)
	require.NoError(t, err)
	assert.Equal(t, uint64(150_000), best.GasEstimate)
}

func TestSelectBestRejectsEmpty(t *testing.T) {
	_, err := SelectBest(nil)
	assert.ErrorIs(t, err, ErrNoSurvivors)
}

func TestRankDescendingOrdersBestFirst(t *testing.T) {
	routes := []*types.Route{
		{AmountOut: big.NewInt(100), GasEstimate: 200_000},
		{AmountOut: big.NewInt(150), GasEstimate: 300_000},
	}
	ranked := RankDescending(routes)
	assert.Equal(t, int64(150), ranked[0].AmountOut.Int64())
}
