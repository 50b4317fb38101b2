// Package types holds the data model shared by every component of the
// routing engine: tokens, pools, ticks, routes, and the quote
// request/response shapes exchanged with the HTTP adapter.
package types

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

// Token is a 20-byte-address ERC20 token. Immutable once loaded into the
// pool graph.
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// TickInfo is the per-tick net liquidity delta recorded at an
// initialized tick. Index must be a multiple of the owning pool's tick
// spacing (invariant 3).
type TickInfo struct {
	Index          int64    `json:"index"`
	LiquidityGross *big.Int `json:"liquidityGross"`
	LiquidityNet   *big.Int `json:"liquidityNet"`
}

// Pool is a concentrated-liquidity edge between Token0 and Token1, with
// Token0's address sorted lexicographically below Token1's (invariant
// 1). SqrtPriceX96 is the Q64.96 fixed-point square root of the price;
// a zero SqrtPriceX96 marks the pool uninitialized and invisible to
// routing (invariant 4).
type Pool struct {
	ID           string `json:"id"`
	Token0       Token  `json:"token0"`
	Token1       Token  `json:"token1"`
	Fee          int64  `json:"fee"`         // parts-per-million
	TickSpacing  int64  `json:"tickSpacing"` // function of Fee

	SqrtPriceX96 *big.Int `json:"sqrtPriceX96"`
	Tick         int64    `json:"tick"`
	Liquidity    *big.Int `json:"liquidity"`

	// Ticks is the sparse tick index: only initialized ticks are
	// present. Sorted by Index ascending.
	Ticks []TickInfo `json:"ticks"`

	LastUpdated time.Time `json:"lastUpdated"`
}

// Initialized reports whether the pool has ever received a snapshot
// (invariant 4: a zero square-root price means uninitialized).
func (p *Pool) Initialized() bool {
	return p.SqrtPriceX96 != nil && p.SqrtPriceX96.Sign() > 0
}

// Clone returns a deep copy so a route evaluator can thread a pool
// through successive hop simulations without mutating the graph's
// shared copy (pool purity, testable property 4).
func (p *Pool) Clone() *Pool {
	clone := *p
	if p.SqrtPriceX96 != nil {
		clone.SqrtPriceX96 = new(big.Int).Set(p.SqrtPriceX96)
	}
	if p.Liquidity != nil {
		clone.Liquidity = new(big.Int).Set(p.Liquidity)
	}
	clone.Ticks = make([]TickInfo, len(p.Ticks))
	for i, t := range p.Ticks {
		ti := t
		if t.LiquidityGross != nil {
			ti.LiquidityGross = new(big.Int).Set(t.LiquidityGross)
		}
		if t.LiquidityNet != nil {
			ti.LiquidityNet = new(big.Int).Set(t.LiquidityNet)
		}
		clone.Ticks[i] = ti
	}
	return &clone
}

// Hop is one pool traversal within a Route.
type Hop struct {
	PoolID           string   `json:"poolId"`
	ZeroForOne       bool     `json:"zeroForOne"`
	AmountIn         *big.Int `json:"amountIn"`
	AmountOut        *big.Int `json:"amountOut"`
	PriceImpact      float64  `json:"priceImpact"`
	PostSqrtPriceX96 *big.Int `json:"postSqrtPriceX96"`
	GasEstimate      uint64   `json:"gasEstimate"`
}

// Route is a quote: an ordered chain of hops with aggregate totals.
type Route struct {
	Hops          []Hop    `json:"hops"`
	AmountIn      *big.Int `json:"amountIn"`
	AmountOut     *big.Int `json:"amountOut"`
	AmountOutMin  *big.Int `json:"amountOutMin"`
	PriceImpact   float64  `json:"priceImpact"`
	GasEstimate   uint64   `json:"gasEstimate"`
	RouteString   string   `json:"routeString"`
}

// Weighted pairs a Route with the fraction of the request amount it
// was allocated within a SplitQuote.
type Weighted struct {
	Weight float64 `json:"weight"`
	Route  *Route  `json:"route"`
}

// SplitQuote is an unordered set of routes sharing the same
// (tokenIn, tokenOut): the sum of their hop-0 inputs equals the
// request amount (testable property 7, "no phantom liquidity").
type SplitQuote struct {
	Routes      []Weighted `json:"routes"`
	AmountIn    *big.Int   `json:"amountIn"`
	AmountOut   *big.Int   `json:"amountOut"`
	GasEstimate uint64     `json:"gasEstimate"`
}

// QuoteRequest is the decoded /quote request body.
type QuoteRequest struct {
	TokenIn     string   `json:"tokenIn"`
	TokenOut    string   `json:"tokenOut"`
	AmountIn    *big.Int `json:"amountIn"`
	SlippageBps int      `json:"slippageBps"`
	MaxHops     int      `json:"maxHops"`
	MaxSplits   int      `json:"maxSplits"`
}

type quoteRequestWire struct {
	TokenIn     string `json:"tokenIn"`
	TokenOut    string `json:"tokenOut"`
	AmountIn    string `json:"amountIn"`
	SlippageBps int    `json:"slippageBps"`
	MaxHops     int    `json:"maxHops"`
	MaxSplits   int    `json:"maxSplits"`
}

// MarshalJSON encodes AmountIn as a decimal string so values beyond
// float64 precision survive the wire (mirrors the teacher's
// QuoteRequest/QuoteResponse custom JSON for big.Int fields).
func (r QuoteRequest) MarshalJSON() ([]byte, error) {
	wire := quoteRequestWire{
		TokenIn:     r.TokenIn,
		TokenOut:    r.TokenOut,
		SlippageBps: r.SlippageBps,
		MaxHops:     r.MaxHops,
		MaxSplits:   r.MaxSplits,
	}
	if r.AmountIn != nil {
		wire.AmountIn = r.AmountIn.String()
	}
	return json.Marshal(wire)
}

// UnmarshalJSON parses AmountIn from a decimal string.
func (r *QuoteRequest) UnmarshalJSON(data []byte) error {
	var wire quoteRequestWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.TokenIn = wire.TokenIn
	r.TokenOut = wire.TokenOut
	r.SlippageBps = wire.SlippageBps
	r.MaxHops = wire.MaxHops
	r.MaxSplits = wire.MaxSplits
	if wire.AmountIn == "" {
		r.AmountIn = nil
		return nil
	}
	amount, ok := new(big.Int).SetString(wire.AmountIn, 10)
	if !ok {
		return fmt.Errorf("types: invalid amountIn %q", wire.AmountIn)
	}
	r.AmountIn = amount
	return nil
}

// QuoteResult is the facade's internal return value before it is
// serialized for the HTTP adapter: either a single best route or a
// split across several.
type QuoteResult struct {
	Route     *Route
	Split     *SplitQuote
	Cached    bool
	Timestamp time.Time
}

// GraphStats summarizes the pool graph for /health.
type GraphStats struct {
	TokenCount            int   `json:"token_count"`
	PoolCount             int   `json:"pool_count"`
	LastUpdateUnixSeconds int64 `json:"last_update_unix_seconds"`
}
