// Package simulator executes the tick-by-tick AMM swap arithmetic
// described in §4.2: given a pool's current state, a direction, and
// an exact-input amount, it produces the exact output, the post-swap
// state, a gas estimate, and the number of ticks crossed. It never
// mutates the pool passed in (testable property 4, "pool purity") —
// grounded on defistate-client-go's
// protocols/uniswapv3/calculator.go _swap loop, restricted to the
// exact-input path and operating on this repository's types.Pool
// instead of the indexer's numeric-id Pool view. Price-impact
// reporting reuses the teacher's (bgscr-dex-aggregator) big.Float
// price comparison idiom from internal/aggregator/price_calculator.go,
// applied to the pool's spot price before and after the swap —
// floating point is used only for that fraction, never for amount_out
// (§9, numeric fidelity).
package simulator

import (
	"errors"
	"math/big"

	"routing-engine/internal/ammmath/liquiditymath"
	"routing-engine/internal/ammmath/sqrtpricemath"
	"routing-engine/internal/ammmath/swapmath"
	"routing-engine/internal/ammmath/tickbitmap"
	"routing-engine/internal/ammmath/tickmath"
	"routing-engine/internal/types"
)

const (
	// BaseGasPerHop is the default per-hop gas base cost; configurable
	// via config.GasConfig.BaseGasPerHop.
	BaseGasPerHop uint64 = 80_000
	// GasPerTickCrossed is the default marginal gas cost per crossed
	// initialized tick.
	GasPerTickCrossed uint64 = 20_000
)

var (
	ErrPoolNotInitialized = errors.New("simulator: pool not initialized")
	ErrInvalidAmount      = errors.New("simulator: amount must be positive")
	ErrNumericOverflow    = errors.New("simulator: intermediate computation overflowed")
)

// GasModel parameterizes the gas estimate (§6 configuration table:
// base_gas_per_hop, gas_per_tick_crossed).
type GasModel struct {
	BaseGasPerHop     uint64
	GasPerTickCrossed uint64
}

// DefaultGasModel returns the gas model constants used when the
// caller does not override them.
func DefaultGasModel() GasModel {
	return GasModel{BaseGasPerHop: BaseGasPerHop, GasPerTickCrossed: GasPerTickCrossed}
}

// Result is the outcome of simulating one hop.
type Result struct {
	AmountOut             *big.Int
	RemainingIn           *big.Int // > 0 iff the price limit was hit before the full amount was filled
	NewSqrtPriceX96       *big.Int
	NewTick               int64
	NewLiquidity          *big.Int
	GasEstimate           uint64
	InitializedTicksCrossed int
	PriceImpact           float64
}

// SimulateExactIn executes an exact-input swap against pool in the
// given direction, up to sqrtPriceLimit, without mutating pool.
func SimulateExactIn(pool *types.Pool, zeroForOne bool, amountIn *big.Int, sqrtPriceLimit *big.Int, gas GasModel) (*Result, error) {
	if !pool.Initialized() {
		return nil, ErrPoolNotInitialized
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	startSqrtPrice := new(big.Int).Set(pool.SqrtPriceX96)

	remaining := new(big.Int).Set(amountIn)
	amountOut := new(big.Int)
	sqrtPrice := new(big.Int).Set(pool.SqrtPriceX96)
	liquidity := new(big.Int).Set(pool.Liquidity)
	tick := pool.Tick
	ticksCrossed := 0

	for remaining.Sign() > 0 && sqrtPrice.Cmp(sqrtPriceLimit) != 0 {
		tickNext, initialized := tickbitmap.NextInitializedTick(pool.Ticks, tick, zeroForOne)
		if !initialized {
			if zeroForOne {
				tickNext = tickmath.MinTick
			} else {
				tickNext = tickmath.MaxTick
			}
		}
		if tickNext < tickmath.MinTick {
			tickNext = tickmath.MinTick
		} else if tickNext > tickmath.MaxTick {
			tickNext = tickmath.MaxTick
		}

		sqrtPriceNext, err := tickmath.TickToSqrtPrice(tickNext)
		if err != nil {
			return nil, err
		}

		target := new(big.Int).Set(sqrtPriceNext)
		if zeroForOne && sqrtPriceNext.Cmp(sqrtPriceLimit) < 0 {
			target.Set(sqrtPriceLimit)
		} else if !zeroForOne && sqrtPriceNext.Cmp(sqrtPriceLimit) > 0 {
			target.Set(sqrtPriceLimit)
		}

		stepNext, stepIn, stepOut, stepFee := new(big.Int), new(big.Int), new(big.Int), new(big.Int)
		if err := swapmath.ComputeSwapStep(stepNext, stepIn, stepOut, stepFee, sqrtPrice, target, liquidity, remaining, big.NewInt(pool.Fee)); err != nil {
			return nil, ErrNumericOverflow
		}

		grossIn := new(big.Int).Add(stepIn, stepFee)
		if grossIn.Cmp(remaining) > 0 {
			// rounding can push gross input a hair over the remainder;
			// never let the simulator report spending more than it was given
			grossIn.Set(remaining)
		}
		remaining.Sub(remaining, grossIn)
		amountOut.Add(amountOut, stepOut)
		sqrtPrice.Set(stepNext)

		if sqrtPrice.Cmp(sqrtPriceNext) == 0 {
			if info, ok := tickbitmap.TickAt(pool.Ticks, tickNext); ok {
				delta := new(big.Int).Set(info.LiquidityNet)
				if zeroForOne {
					delta.Neg(delta)
				}
				newLiquidity := new(big.Int)
				if err := liquiditymath.AddDelta(newLiquidity, liquidity, delta); err != nil {
					break
				}
				liquidity = newLiquidity
				ticksCrossed++
			}
			if zeroForOne {
				tick = tickNext - 1
			} else {
				tick = tickNext
			}
		} else {
			newTick, err := tickmath.SqrtPriceToTick(sqrtPrice)
			if err != nil {
				return nil, err
			}
			tick = newTick
		}
	}

	priceImpact := computePriceImpact(startSqrtPrice, sqrtPrice, zeroForOne)

	return &Result{
		AmountOut:               amountOut,
		RemainingIn:             remaining,
		NewSqrtPriceX96:         sqrtPrice,
		NewTick:                 tick,
		NewLiquidity:            liquidity,
		GasEstimate:             gas.BaseGasPerHop + gas.GasPerTickCrossed*uint64(ticksCrossed),
		InitializedTicksCrossed: ticksCrossed,
		PriceImpact:             priceImpact,
	}, nil
}

// computePriceImpact reports how far the pool's spot price moved over
// the swap, as a fraction of the starting price: 1-(end/start)^2 when
// zeroForOne, (end/start)^2-1 otherwise, floored at 0. Only the pre-
// and post-swap spot prices enter it; the realized execution price
// (amount out over amount in) and the fee do not. big.Float is used
// deliberately here —
// §9 permits floating point for slippage envelopes and reporting, but
// never for amount_out, which above is integer throughout.
func computePriceImpact(startSqrtPrice, endSqrtPrice *big.Int, zeroForOne bool) float64 {
	start := new(big.Float).SetInt(startSqrtPrice)
	end := new(big.Float).SetInt(endSqrtPrice)
	if start.Sign() == 0 {
		return 0
	}

	ratio := new(big.Float).Quo(end, start)
	ratio.Mul(ratio, ratio) // price = sqrtPrice^2, so the price ratio is (end/start)^2

	one := big.NewFloat(1)
	var impact *big.Float
	if zeroForOne {
		// price falls for the input token; impact is how far it fell
		impact = new(big.Float).Sub(one, ratio)
	} else {
		impact = new(big.Float).Sub(ratio, one)
	}
	f, _ := impact.Float64()
	if f < 0 {
		f = 0
	}
	return f
}
