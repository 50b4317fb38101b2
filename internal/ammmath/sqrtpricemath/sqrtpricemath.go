// Package sqrtpricemath computes the next Q64.96 square-root price
// resulting from adding or removing a delta of token0 or token1 inside
// a single tick range, and the inverse: the token0/token1 amount
// required to move between two prices. Grounded on
// defistate-client-go's protocols/uniswapv3/calculator/sqrtpricemath
// package, including its sync.Pool-backed destination-passing style to
// keep the swap-step hot path allocation-light.
package sqrtpricemath

import (
	"errors"
	"math/big"
	"sync"
)

var (
	// Q96 is 2^96, the UQ64.96 fixed-point representation of 1.
	Q96        = new(big.Int).Lsh(big.NewInt(1), 96)
	Resolution = uint(96)

	ErrLiquidityZero = errors.New("sqrtpricemath: liquidity must be greater than zero")
	ErrSqrtPriceZero = errors.New("sqrtpricemath: sqrt price must be greater than zero")
	ErrOverflow      = errors.New("sqrtpricemath: intermediate product overflow")

	one = big.NewInt(1)
)

type scratch struct {
	product     *big.Int
	numerator1  *big.Int
	numerator2  *big.Int
	denominator *big.Int
	quotient    *big.Int
	term        *big.Int
	rem         *big.Int
}

var pool = sync.Pool{
	New: func() any {
		return &scratch{
			product:     new(big.Int),
			numerator1:  new(big.Int),
			numerator2:  new(big.Int),
			denominator: new(big.Int),
			quotient:    new(big.Int),
			term:        new(big.Int),
			rem:         new(big.Int),
		}
	},
}

func (s *scratch) mulDiv(dest, a, b, c *big.Int) {
	s.product.Mul(a, b)
	dest.Div(s.product, c)
}

func (s *scratch) mulDivRoundingUp(dest, a, b, c *big.Int) {
	s.product.Mul(a, b)
	dest.Div(s.product, c)
	if s.rem.Rem(s.product, c).Sign() > 0 {
		dest.Add(dest, one)
	}
}

func (s *scratch) divRoundingUp(dest, a, b *big.Int) {
	dest.Div(a, b)
	if s.rem.Rem(a, b).Sign() > 0 {
		dest.Add(dest, one)
	}
}

// GetNextSqrtPriceFromAmount0RoundingUp computes the next price after
// adding (add=true) or removing a delta of token0.
func GetNextSqrtPriceFromAmount0RoundingUp(dest, sqrtPX96, liquidity, amount *big.Int, add bool) error {
	s := pool.Get().(*scratch)
	defer pool.Put(s)

	if amount.Sign() == 0 {
		dest.Set(sqrtPX96)
		return nil
	}

	s.numerator1.Lsh(liquidity, Resolution)

	if add {
		s.product.Mul(amount, sqrtPX96)
		if s.quotient.Div(s.product, amount).Cmp(sqrtPX96) == 0 {
			s.denominator.Add(s.numerator1, s.product)
			if s.denominator.Cmp(s.numerator1) >= 0 {
				s.mulDivRoundingUp(dest, s.numerator1, sqrtPX96, s.denominator)
				return nil
			}
		}
		s.denominator.Div(s.numerator1, sqrtPX96)
		s.denominator.Add(s.denominator, amount)
		s.divRoundingUp(dest, s.numerator1, s.denominator)
		return nil
	}

	s.product.Mul(amount, sqrtPX96)
	if s.quotient.Div(s.product, amount).Cmp(sqrtPX96) != 0 || s.numerator1.Cmp(s.product) <= 0 {
		return ErrOverflow
	}
	s.denominator.Sub(s.numerator1, s.product)
	s.mulDivRoundingUp(dest, s.numerator1, sqrtPX96, s.denominator)
	return nil
}

// GetNextSqrtPriceFromAmount1RoundingDown computes the next price
// after adding or removing a delta of token1.
func GetNextSqrtPriceFromAmount1RoundingDown(dest, sqrtPX96, liquidity, amount *big.Int, add bool) error {
	s := pool.Get().(*scratch)
	defer pool.Put(s)

	if add {
		s.mulDiv(s.quotient, amount, Q96, liquidity)
		dest.Add(sqrtPX96, s.quotient)
		return nil
	}

	s.mulDivRoundingUp(s.quotient, amount, Q96, liquidity)
	if sqrtPX96.Cmp(s.quotient) <= 0 {
		return ErrOverflow
	}
	dest.Sub(sqrtPX96, s.quotient)
	return nil
}

// GetNextSqrtPriceFromInput computes the next price after an
// exact-input delta in the direction given by zeroForOne.
func GetNextSqrtPriceFromInput(dest, sqrtPX96, liquidity, amountIn *big.Int, zeroForOne bool) error {
	if sqrtPX96.Sign() <= 0 {
		return ErrSqrtPriceZero
	}
	if liquidity.Sign() <= 0 {
		return ErrLiquidityZero
	}
	if zeroForOne {
		return GetNextSqrtPriceFromAmount0RoundingUp(dest, sqrtPX96, liquidity, amountIn, true)
	}
	return GetNextSqrtPriceFromAmount1RoundingDown(dest, sqrtPX96, liquidity, amountIn, true)
}

// GetNextSqrtPriceFromOutput computes the next price after an
// exact-output delta in the direction given by zeroForOne.
func GetNextSqrtPriceFromOutput(dest, sqrtPX96, liquidity, amountOut *big.Int, zeroForOne bool) error {
	if sqrtPX96.Sign() <= 0 {
		return ErrSqrtPriceZero
	}
	if liquidity.Sign() <= 0 {
		return ErrLiquidityZero
	}
	if zeroForOne {
		return GetNextSqrtPriceFromAmount1RoundingDown(dest, sqrtPX96, liquidity, amountOut, false)
	}
	return GetNextSqrtPriceFromAmount0RoundingUp(dest, sqrtPX96, liquidity, amountOut, false)
}

// GetAmount0Delta returns the token0 amount required to move liquidity
// between two prices.
func GetAmount0Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int, roundUp bool) error {
	s := pool.Get().(*scratch)
	defer pool.Put(s)

	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if sqrtRatioAX96.Sign() <= 0 {
		return ErrSqrtPriceZero
	}

	s.numerator1.Lsh(liquidity, Resolution)
	s.numerator2.Sub(sqrtRatioBX96, sqrtRatioAX96)

	if roundUp {
		s.mulDivRoundingUp(s.term, s.numerator1, s.numerator2, sqrtRatioBX96)
		s.divRoundingUp(dest, s.term, sqrtRatioAX96)
	} else {
		s.mulDiv(s.term, s.numerator1, s.numerator2, sqrtRatioBX96)
		dest.Div(s.term, sqrtRatioAX96)
	}
	return nil
}

// GetAmount1Delta returns the token1 amount required to move
// liquidity between two prices.
func GetAmount1Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int, roundUp bool) {
	s := pool.Get().(*scratch)
	defer pool.Put(s)

	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}

	s.numerator1.Sub(sqrtRatioBX96, sqrtRatioAX96)
	if roundUp {
		s.mulDivRoundingUp(dest, liquidity, s.numerator1, Q96)
	} else {
		s.mulDiv(dest, liquidity, s.numerator1, Q96)
	}
}
