// Package ingest feeds pool state into the graph.Graph. mockfeed.go
// seeds a small set of tick-based pools for local runs and the §8
// end-to-end scenarios; redisfeed.go relays live snapshot batches
// published over Redis pub/sub.
//
// mockfeed.go is grounded on the teacher's (dex-aggregator)
// internal/collector/pool_collector.go MockPoolCollector: the same
// "major trading pairs across a handful of exchanges" seed data,
// adapted from the teacher's reserve-pair AMM model to this
// repository's tick-based concentrated-liquidity Pool, and storing
// directly into a graph.Graph via ApplySnapshot instead of the
// teacher's cache.Store.
package ingest

import (
	"log"
	"math/big"

	"routing-engine/internal/ammmath/tickmath"
	"routing-engine/internal/graph"
	"routing-engine/internal/types"
)

// MockFeed seeds a fixed, deterministic set of mock pools, useful for
// local development and integration tests that need a populated
// graph without a live chain connection or Redis relay.
type MockFeed struct {
	g *graph.Graph
}

// NewMockFeed returns a MockFeed that writes into g.
func NewMockFeed(g *graph.Graph) *MockFeed {
	return &MockFeed{g: g}
}

var (
	weth = types.Token{Address: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", Symbol: "WETH", Decimals: 18}
	usdc = types.Token{Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Symbol: "USDC", Decimals: 6}
	usdt = types.Token{Address: "0xdac17f958d2ee523a2206206994597c13d831ec7", Symbol: "USDT", Decimals: 6}
	dai  = types.Token{Address: "0x6b175474e89094c44da98b954eedeac495271d0f", Symbol: "DAI", Decimals: 18}
)

// Seed applies a handful of WETH/stablecoin and stablecoin/stablecoin
// pools across two fee tiers, enough to exercise direct and
// multi-hop routing without an external data source.
func (m *MockFeed) Seed() error {
	sqrtPriceAtTick0, err := tickmath.TickToSqrtPrice(0)
	if err != nil {
		return err
	}

	majorPairs := []struct {
		name        string
		a, b        types.Token
		tickSpacing int64
	}{
		{"WETH/USDC", weth, usdc, 60},
		{"WETH/USDT", weth, usdt, 60},
		{"WETH/DAI", weth, dai, 60},
		{"USDC/USDT", usdc, usdt, 10},
	}

	fees := []int64{500, 3000}

	var pools []*types.Pool
	for _, pair := range majorPairs {
		t0, t1 := sortPair(pair.a, pair.b)
		for _, fee := range fees {
			pool := &types.Pool{
				ID:           poolID(t0.Symbol, t1.Symbol, fee),
				Token0:       t0,
				Token1:       t1,
				Fee:          fee,
				TickSpacing:  pair.tickSpacing,
				SqrtPriceX96: new(big.Int).Set(sqrtPriceAtTick0),
				Tick:         0,
				Liquidity:    new(big.Int).Mul(big.NewInt(5_000_000), big.NewInt(1_000_000_000_000_000)),
				Ticks: []types.TickInfo{
					{Index: -lowerBound(pair.tickSpacing), LiquidityGross: big.NewInt(2_500_000_000_000), LiquidityNet: big.NewInt(2_500_000_000_000)},
					{Index: lowerBound(pair.tickSpacing), LiquidityGross: big.NewInt(2_500_000_000_000), LiquidityNet: big.NewInt(-2_500_000_000_000)},
				},
			}
			pools = append(pools, pool)
		}
	}

	if err := m.g.ApplySnapshot(pools); err != nil {
		return err
	}
	log.Printf("ingest: seeded %d mock pools across %d token pairs", len(pools), len(majorPairs))
	return nil
}

func lowerBound(tickSpacing int64) int64 {
	// a wide symmetric range, rounded to the pool's tick spacing, so
	// sample trades of realistic size never exhaust the seeded range
	width := int64(120_000)
	return (width / tickSpacing) * tickSpacing
}

// sortPair returns (a, b) reordered so the lexicographically smaller
// address comes first, satisfying the graph's token-order invariant.
func sortPair(a, b types.Token) (types.Token, types.Token) {
	if a.Address < b.Address {
		return a, b
	}
	return b, a
}

func poolID(sym0, sym1 string, fee int64) string {
	return sym0 + "-" + sym1 + "-" + feeLabel(fee)
}

func feeLabel(fee int64) string {
	switch fee {
	case 500:
		return "500"
	case 3000:
		return "3000"
	case 10000:
		return "10000"
	default:
		return big.NewInt(fee).String()
	}
}
