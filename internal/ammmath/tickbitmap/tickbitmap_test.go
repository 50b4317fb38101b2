package tickbitmap

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"routing-engine/internal/types"
)

func sampleTicks() []types.TickInfo {
	return []types.TickInfo{
		{Index: -100, LiquidityNet: big.NewInt(10)},
		{Index: -10, LiquidityNet: big.NewInt(20)},
		{Index: 0, LiquidityNet: big.NewInt(-5)},
		{Index: 50, LiquidityNet: big.NewInt(-25)},
	}
}

func TestNextInitializedTickLTEExact(t *testing.T) {
	next, ok := NextInitializedTick(sampleTicks(), 0, true)
	assert.True(t, ok)
	assert.Equal(t, int64(0), next)
}

func TestNextInitializedTickLTEBetween(t *testing.T) {
	next, ok := NextInitializedTick(sampleTicks(), 25, true)
	assert.True(t, ok)
	assert.Equal(t, int64(0), next)
}

func TestNextInitializedTickLTENoneBelow(t *testing.T) {
	_, ok := NextInitializedTick(sampleTicks(), -200, true)
	assert.False(t, ok)
}

func TestNextInitializedTickGT(t *testing.T) {
	next, ok := NextInitializedTick(sampleTicks(), 0, false)
	assert.True(t, ok)
	assert.Equal(t, int64(50), next)
}

func TestNextInitializedTickGTNoneAbove(t *testing.T) {
	_, ok := NextInitializedTick(sampleTicks(), 50, false)
	assert.False(t, ok)
}

func TestTickAt(t *testing.T) {
	ti, ok := TickAt(sampleTicks(), -10)
	assert.True(t, ok)
	assert.Equal(t, int64(20), ti.LiquidityNet.Int64())

	_, ok = TickAt(sampleTicks(), 7)
	assert.False(t, ok)
}

func TestNextInitializedTickEmpty(t *testing.T) {
	_, ok := NextInitializedTick(nil, 0, true)
	assert.False(t, ok)
}
