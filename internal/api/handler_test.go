package api

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routing-engine/config"
	"routing-engine/internal/ammmath/tickmath"
	"routing-engine/internal/graph"
	"routing-engine/internal/metrics"
	"routing-engine/internal/quotecache"
	"routing-engine/internal/router"
	"routing-engine/internal/simulator"
	"routing-engine/internal/types"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

const (
	tokenA = "0xaaaa000000000000000000000000000000aaaa"
	tokenB = "0xbbbb000000000000000000000000000000bbbb"
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

func buildHandler(t *testing.T) *Handler {
	t.Helper()
	require.NoError(t, config.Init())

	g := graph.New()
	require.NoError(t, g.ApplySnapshot([]*types.Pool{wideLiquidityPool(t, "P_AB", tokenA, tokenB)}))

	cache := quotecache.New(time.Minute, 100)
	r := router.New(g, cache, simulator.DefaultGasModel(), router.Config{
		ChainID: 1, MaxHopsLimit: 4, MaxSplitsLimit: 3, PathEnumerationCap: 64,
		MinSplitFraction: 0.01, MaxSlippageBps: 5000, AmountBucketGranularity: 1000,
	})
	return NewHandler(r, g, cache, time.Hour, nil)
}

func TestGetQuoteSuccess(t *testing.T) {
	h := buildHandler(t)
	body, _ := json.Marshal(types.QuoteRequest{TokenIn: tokenA, TokenOut: tokenB, AmountIn: big.NewInt(1_000_000), SlippageBps: 500})

	req := httptest.NewRequest(http.MethodPost, "/quote", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.GetQuote(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp responseWire
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Quote.AmountOut)
	assert.False(t, resp.Cached)
}

func TestGetQuoteUnknownTokenReturns400(t *testing.T) {
	h := buildHandler(t)
	body, _ := json.Marshal(types.QuoteRequest{
		TokenIn: "0xdeaddeaddeaddeaddeaddeaddeaddeaddeaddead", TokenOut: tokenB, AmountIn: big.NewInt(1000),
	})

	req := httptest.NewRequest(http.MethodPost, "/quote", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.GetQuote(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var errResp errorWire
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "UnknownToken", errResp.Error)
}

func TestGetQuoteMalformedJSONReturns400(t *testing.T) {
	h := buildHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/quote", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	h.GetQuote(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetQuoteMalformedJSONRecordsMetric(t *testing.T) {
	require.NoError(t, config.Init())
	g := graph.New()
	require.NoError(t, g.ApplySnapshot([]*types.Pool{wideLiquidityPool(t, "P_AB", tokenA, tokenB)}))
	cache := quotecache.New(time.Minute, 100)
	rt := router.New(g, cache, simulator.DefaultGasModel(), router.Config{MaxHopsLimit: 4, MaxSplitsLimit: 3, AmountBucketGranularity: 1000})

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	h := NewHandler(rt, g, cache, time.Hour, m)

	req := httptest.NewRequest(http.MethodPost, "/quote", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	h.GetQuote(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, float64(1), counterValue(t, m.QuoteErrors.WithLabelValues(string(router.FailureInvalidAmount))))
}

func TestHealthOKWhenGraphPopulated(t *testing.T) {
	h := buildHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.Health(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp healthWire
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestHealthDegradedWhenGraphEmpty(t *testing.T) {
	require.NoError(t, config.Init())
	g := graph.New()
	cache := quotecache.New(time.Minute, 100)
	r := router.New(g, cache, simulator.DefaultGasModel(), router.Config{MaxHopsLimit: 4, MaxSplitsLimit: 3, AmountBucketGranularity: 1000})
	h := NewHandler(r, g, cache, time.Hour, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.Health(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetCacheStatsReturnsOK(t *testing.T) {
	h := buildHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/cache/stats", nil)
	w := httptest.NewRecorder()
	h.GetCacheStats(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetPoolFoundAndNotFound(t *testing.T) {
	h := buildHandler(t)

	reqOK := httptest.NewRequest(http.MethodGet, "/pools/P_AB", nil)
	reqOK = mux.SetURLVars(reqOK, map[string]string{"id": "P_AB"})
	wOK := httptest.NewRecorder()
	h.GetPool(wOK, reqOK)
	assert.Equal(t, http.StatusOK, wOK.Code)

	reqMiss := httptest.NewRequest(http.MethodGet, "/pools/nope", nil)
	reqMiss = mux.SetURLVars(reqMiss, map[string]string{"id": "nope"})
	wMiss := httptest.NewRecorder()
	h.GetPool(wMiss, reqMiss)
	assert.Equal(t, http.StatusNotFound, wMiss.Code)
}

func TestGetPoolsBetweenRequiresBothQueryParams(t *testing.T) {
	h := buildHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/pools?tokenA="+tokenA, nil)
	w := httptest.NewRecorder()
	h.GetPoolsBetween(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPoolsBetweenReturnsMatches(t *testing.T) {
	h := buildHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/pools?tokenA="+tokenA+"&tokenB="+tokenB, nil)
	w := httptest.NewRecorder()
	h.GetPoolsBetween(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["count"])
}
