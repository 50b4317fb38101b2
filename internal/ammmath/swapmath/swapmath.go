// Package swapmath computes a single tick-range step of an exact-input
// swap: how far the price moves inside the current range, how much
// input/output that movement represents, and the fee taken. Grounded
// on defistate-client-go's
// protocols/uniswapv3/calculator/swapmath package (itself a port of
// Uniswap's SwapMath.sol), restricted to the exact-input branch the
// routing engine needs.
package swapmath

import (
	"math/big"
	"sync"

	"routing-engine/internal/ammmath/sqrtpricemath"
)

var (
	feeDenominator = big.NewInt(1_000_000)
	one            = big.NewInt(1)
)

type scratch struct {
	amountRemainingLessFee *big.Int
	tempValue              *big.Int
	product                *big.Int
	rem                    *big.Int
}

var pool = sync.Pool{
	New: func() any {
		return &scratch{
			amountRemainingLessFee: new(big.Int),
			tempValue:              new(big.Int),
			product:                new(big.Int),
			rem:                    new(big.Int),
		}
	},
}

func (s *scratch) mulDivRoundingUp(dest, a, b, c *big.Int) {
	s.product.Mul(a, b)
	dest.Div(s.product, c)
	if s.rem.Rem(s.product, c).Sign() > 0 {
		dest.Add(dest, one)
	}
}

// ComputeSwapStep computes the result of an exact-input swap confined
// to a single tick range: the new price, the gross input consumed,
// the output produced, and the fee charged. sqrtRatioNextX96,
// amountIn, amountOut, and feeAmount are destination pointers.
func ComputeSwapStep(
	sqrtRatioNextX96, amountIn, amountOut, feeAmount *big.Int,
	sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, amountRemaining, feePips *big.Int,
) error {
	s := pool.Get().(*scratch)
	defer pool.Put(s)

	zeroForOne := sqrtRatioCurrentX96.Cmp(sqrtRatioTargetX96) >= 0

	amountIn.SetInt64(0)
	amountOut.SetInt64(0)
	feeAmount.SetInt64(0)

	// amountRemainingLessFee = amountRemaining * (1e6 - feePips) / 1e6,
	// truncated (the fee itself rounds up, so the spendable remainder
	// rounds down), matching SwapMath.sol.
	s.tempValue.Sub(feeDenominator, feePips)
	s.product.Mul(amountRemaining, s.tempValue)
	s.amountRemainingLessFee.Div(s.product, feeDenominator)

	var err error
	if zeroForOne {
		err = sqrtpricemath.GetAmount0Delta(amountIn, sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, true)
	} else {
		sqrtpricemath.GetAmount1Delta(amountIn, sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, true)
	}
	if err != nil {
		return err
	}

	if s.amountRemainingLessFee.Cmp(amountIn) >= 0 {
		sqrtRatioNextX96.Set(sqrtRatioTargetX96)
	} else {
		if err := sqrtpricemath.GetNextSqrtPriceFromInput(sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, s.amountRemainingLessFee, zeroForOne); err != nil {
			return err
		}
	}

	reachedTarget := sqrtRatioTargetX96.Cmp(sqrtRatioNextX96) == 0

	if zeroForOne {
		if !reachedTarget {
			if err := sqrtpricemath.GetAmount0Delta(amountIn, sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, true); err != nil {
				return err
			}
		}
		sqrtpricemath.GetAmount1Delta(amountOut, sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, false)
	} else {
		if !reachedTarget {
			sqrtpricemath.GetAmount1Delta(amountIn, sqrtRatioCurrentX96, sqrtRatioNextX96, liquidity, true)
		}
		if err := sqrtpricemath.GetAmount0Delta(amountOut, sqrtRatioCurrentX96, sqrtRatioNextX96, liquidity, false); err != nil {
			return err
		}
	}

	if reachedTarget {
		s.tempValue.Sub(feeDenominator, feePips)
		s.mulDivRoundingUp(feeAmount, amountIn, feePips, s.tempValue)
	} else {
		feeAmount.Sub(amountRemaining, amountIn)
	}

	return nil
}
