package router

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routing-engine/internal/ammmath/tickmath"
	"routing-engine/internal/graph"
	"routing-engine/internal/metrics"
	"routing-engine/internal/quotecache"
	"routing-engine/internal/simulator"
	"routing-engine/internal/types"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func histogramSampleCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, h.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

const (
	tokenA = "0xaaaa000000000000000000000000000000aaaa"
	tokenB = "0xbbbb000000000000000000000000000000bbbb"
	tokenC = "0xcccc000000000000000000000000000000cccc"
	deadToken = "0xdeaddeaddeaddeaddeaddeaddeaddeaddeaddead"
)

func wideLiquidityPool(t *testing.T, id, t0, t1 string) *types.Pool {
	t.Helper()
	sqrtPrice, err := tickmath.TickToSqrtPrice(0)
	require.NoError(t, err)

	return &types.Pool{
		ID:           id,
		Token0:       types.Token{Address: t0},
		Token1:       types.Token{Address: t1},
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

func buildRouter(t *testing.T) (*Router, *graph.Graph) {
	t.Helper()
	g := graph.New()
	require.NoError(t, g.ApplySnapshot([]*types.Pool{
		wideLiquidityPool(t, "P_AB", tokenA, tokenB),
		wideLiquidityPool(t, "P_BC", tokenB, tokenC),
		wideLiquidityPool(t, "P_AC", tokenA, tokenC),
	}))

	cache := quotecache.New(time.Minute, 100)
	r := New(g, cache, simulator.DefaultGasModel(), Config{
		ChainID:                 1,
		MaxHopsLimit:            4,
		MaxSplitsLimit:          3,
		PathEnumerationCap:      64,
		MinSplitFraction:        0.01,
		MaxSlippageBps:          5000,
		AmountBucketGranularity: 1_000,
	})
	return r, g
}

func TestQuoteReturnsBestRoute(t *testing.T) {
	r, _ := buildRouter(t)
	req := types.QuoteRequest{TokenIn: tokenA, TokenOut: tokenC, AmountIn: big.NewInt(1_000_000), SlippageBps: 500, MaxHops: 4, MaxSplits: 1}

	result, err := r.Quote(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result.Route)
	assert.True(t, result.Route.AmountOut.Sign() > 0)
	assert.False(t, result.Cached)
}

func TestQuoteSecondCallHitsCache(t *testing.T) {
	r, _ := buildRouter(t)
	req := types.QuoteRequest{TokenIn: tokenA, TokenOut: tokenC, AmountIn: big.NewInt(1_000_000), SlippageBps: 500, MaxHops: 4, MaxSplits: 1}

	_, err := r.Quote(context.Background(), req)
	require.NoError(t, err)

	second, err := r.Quote(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
}

func TestQuoteRejectsUnknownToken(t *testing.T) {
	r, _ := buildRouter(t)
	req := types.QuoteRequest{TokenIn: deadToken, TokenOut: tokenC, AmountIn: big.NewInt(1000), SlippageBps: 500}

	_, err := r.Quote(context.Background(), req)
	require.Error(t, err)
	qerr, ok := err.(*QuoteError)
	require.True(t, ok)
	assert.Equal(t, FailureUnknownToken, qerr.Kind)
}

func TestQuoteRejectsInvalidAmount(t *testing.T) {
	r, _ := buildRouter(t)
	req := types.QuoteRequest{TokenIn: tokenA, TokenOut: tokenC, AmountIn: big.NewInt(0), SlippageBps: 500}

	_, err := r.Quote(context.Background(), req)
	qerr, ok := err.(*QuoteError)
	require.True(t, ok)
	assert.Equal(t, FailureInvalidAmount, qerr.Kind)
}

func TestQuoteRecordsMetrics(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.ApplySnapshot([]*types.Pool{
		wideLiquidityPool(t, "P_AB", tokenA, tokenB),
		wideLiquidityPool(t, "P_BC", tokenB, tokenC),
		wideLiquidityPool(t, "P_AC", tokenA, tokenC),
	}))

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	cache := quotecache.New(time.Minute, 100)
	r := New(g, cache, simulator.DefaultGasModel(), Config{
		MaxHopsLimit: 4, MaxSplitsLimit: 3, PathEnumerationCap: 64,
		MaxSlippageBps: 5000, AmountBucketGranularity: 1000, Metrics: m,
	})

	_, err = r.Quote(context.Background(), types.QuoteRequest{TokenIn: tokenA, TokenOut: tokenC, AmountIn: big.NewInt(1_000_000), SlippageBps: 500})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), histogramSampleCount(t, m.QuoteLatency))
	assert.Equal(t, uint64(1), histogramSampleCount(t, m.PathsEnumerated))
	assert.Equal(t, uint64(1), histogramSampleCount(t, m.RoutesEvaluated))

	_, err = r.Quote(context.Background(), types.QuoteRequest{TokenIn: tokenA, TokenOut: tokenA, AmountIn: big.NewInt(1000)})
	require.Error(t, err)
	assert.Equal(t, float64(1), counterValue(t, m.QuoteErrors.WithLabelValues(string(FailureInvalidAmount))))
}

func TestQuoteRejectsSameToken(t *testing.T) {
	r, _ := buildRouter(t)
	req := types.QuoteRequest{TokenIn: tokenA, TokenOut: tokenA, AmountIn: big.NewInt(1000), SlippageBps: 500}

	_, err := r.Quote(context.Background(), req)
	qerr, ok := err.(*QuoteError)
	require.True(t, ok)
	assert.Equal(t, FailureInvalidAmount, qerr.Kind)
}

func TestQuoteRejectsOutOfRangeSlippage(t *testing.T) {
	r, _ := buildRouter(t)
	req := types.QuoteRequest{TokenIn: tokenA, TokenOut: tokenC, AmountIn: big.NewInt(1000), SlippageBps: 9000}

	_, err := r.Quote(context.Background(), req)
	qerr, ok := err.(*QuoteError)
	require.True(t, ok)
	assert.Equal(t, FailureOutOfRangeParameter, qerr.Kind)
}

func TestQuoteNoRouteFoundWithoutDirectPool(t *testing.T) {
	g := graph.New()
	cache := quotecache.New(time.Minute, 100)
	r := New(g, cache, simulator.DefaultGasModel(), Config{MaxHopsLimit: 4, MaxSplitsLimit: 3, AmountBucketGranularity: 1000})

	// only register the tokens via a pool that doesn't connect A to C
	require.NoError(t, g.ApplySnapshot([]*types.Pool{
		wideLiquidityPoolForGraph(t, "P_AB", tokenA, tokenB),
		wideLiquidityPoolForGraph(t, "P_BC", tokenB, tokenC),
	}))

	req := types.QuoteRequest{TokenIn: tokenA, TokenOut: tokenC, AmountIn: big.NewInt(1000), SlippageBps: 500, MaxHops: 1}
	_, err := r.Quote(context.Background(), req)
	qerr, ok := err.(*QuoteError)
	require.True(t, ok)
	assert.Equal(t, FailureNoRouteFound, qerr.Kind)
}

func wideLiquidityPoolForGraph(t *testing.T, id, t0, t1 string) *types.Pool {
	return wideLiquidityPool(t, id, t0, t1)
}

func TestQuoteTimeoutReturnsErrorWithoutResult(t *testing.T) {
	r, _ := buildRouter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := types.QuoteRequest{TokenIn: tokenA, TokenOut: tokenC, AmountIn: big.NewInt(1000), SlippageBps: 500}
	result, err := r.Quote(ctx, req)
	require.Error(t, err)
	assert.Nil(t, result)
	qerr, ok := err.(*QuoteError)
	require.True(t, ok)
	assert.Equal(t, FailureTimeout, qerr.Kind)
}

func TestQuoteWithSplitsProducesWeightsSummingToOne(t *testing.T) {
	r, _ := buildRouter(t)
	req := types.QuoteRequest{TokenIn: tokenA, TokenOut: tokenC, AmountIn: big.NewInt(2_000_000), SlippageBps: 1000, MaxHops: 4, MaxSplits: 2}

	result, err := r.Quote(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)

	if result.Split != nil {
		sum := 0.0
		for _, w := range result.Split.Routes {
			sum += w.Weight
		}
		assert.InDelta(t, 1.0, sum, 1e-6)
	} else {
		require.NotNil(t, result.Route)
	}
}
