// Package liquiditymath applies signed tick-crossing liquidity deltas
// to a pool's unsigned active liquidity. Grounded on
// defistate-client-go's
// protocols/uniswapv3/calculator/liquiditymath package.
package liquiditymath

import (
	"errors"
	"math/big"
)

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

var (
	ErrLiquidityOverflow  = errors.New("liquiditymath: overflow past uint128 max")
	ErrLiquidityUnderflow = errors.New("liquiditymath: liquidity went negative")
)

// AddDelta adds a signed net-liquidity delta y to an unsigned active
// liquidity x, rejecting results that would violate invariant 6
// (liquidity non-negative at all times) or overflow uint128.
func AddDelta(dest, x, y *big.Int) error {
	dest.Add(x, y)
	if dest.Sign() < 0 {
		return ErrLiquidityUnderflow
	}
	if dest.Cmp(maxUint128) > 0 {
		return ErrLiquidityOverflow
	}
	return nil
}
