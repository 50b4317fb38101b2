package sqrtpricemath

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetNextSqrtPriceFromInputZeroForOneDecreasesPrice(t *testing.T) {
	sqrtP := new(big.Int).Lsh(big.NewInt(1), 96)
	liquidity := big.NewInt(1_000_000_000)
	amountIn := big.NewInt(1_000_000)

	dest := new(big.Int)
	err := GetNextSqrtPriceFromInput(dest, sqrtP, liquidity, amountIn, true)
	require.NoError(t, err)
	assert.True(t, dest.Cmp(sqrtP) < 0)
}

func TestGetNextSqrtPriceFromInputOneForZeroIncreasesPrice(t *testing.T) {
	sqrtP := new(big.Int).Lsh(big.NewInt(1), 96)
	liquidity := big.NewInt(1_000_000_000)
	amountIn := big.NewInt(1_000_000)

	dest := new(big.Int)
	err := GetNextSqrtPriceFromInput(dest, sqrtP, liquidity, amountIn, false)
	require.NoError(t, err)
	assert.True(t, dest.Cmp(sqrtP) > 0)
}

func TestGetNextSqrtPriceZeroAmountIsNoop(t *testing.T) {
	sqrtP := new(big.Int).Lsh(big.NewInt(1), 96)
	liquidity := big.NewInt(1_000_000_000)

	dest := new(big.Int)
	err := GetNextSqrtPriceFromInput(dest, sqrtP, liquidity, big.NewInt(0), true)
	require.NoError(t, err)
	assert.Equal(t, 0, dest.Cmp(sqrtP))
}

func TestAmount0DeltaOrderIndependent(t *testing.T) {
	a := new(big.Int).Lsh(big.NewInt(1), 96)
	b := new(big.Int).Lsh(big.NewInt(2), 96)
	liquidity := big.NewInt(1_000_000)

	forward := new(big.Int)
	require.NoError(t, GetAmount0Delta(forward, a, b, liquidity, false))

	backward := new(big.Int)
	require.NoError(t, GetAmount0Delta(backward, b, a, liquidity, false))

	assert.Equal(t, forward.String(), backward.String())
}

func TestAmount1DeltaRoundingUpIsNotLess(t *testing.T) {
	a := new(big.Int).Lsh(big.NewInt(1), 96)
	b := new(big.Int).Lsh(big.NewInt(2), 96)
	liquidity := big.NewInt(123_456_789)

	roundedDown := new(big.Int)
	GetAmount1Delta(roundedDown, a, b, liquidity, false)

	roundedUp := new(big.Int)
	GetAmount1Delta(roundedUp, a, b, liquidity, true)

	assert.True(t, roundedUp.Cmp(roundedDown) >= 0)
}

func TestGetNextSqrtPriceRejectsZeroLiquidity(t *testing.T) {
	sqrtP := new(big.Int).Lsh(big.NewInt(1), 96)
	err := GetNextSqrtPriceFromInput(new(big.Int), sqrtP, big.NewInt(0), big.NewInt(1), true)
	assert.ErrorIs(t, err, ErrLiquidityZero)
}
