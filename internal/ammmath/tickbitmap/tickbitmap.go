// Package tickbitmap locates the next initialized tick in a pool's
// sparse tick index. Grounded on defistate-client-go's
// protocols/uniswapv3/calculator/tickbitmap package, which itself
// adapts Uniswap's TickBitmap.sol to a sorted Go slice instead of a
// packed bitmap — the same representation this repository's
// types.Pool.Ticks uses (§3's "ticks are sparse" data model).
package tickbitmap

import (
	"sort"

	"routing-engine/internal/types"
)

// NextInitializedTick finds the next initialized tick adjacent to
// tick, in ticks (sorted ascending by Index). When lte is true it
// finds the largest initialized tick <= tick (the direction of travel
// for a zeroForOne swap); otherwise the smallest initialized tick >
// tick.
func NextInitializedTick(ticks []types.TickInfo, tick int64, lte bool) (next int64, initialized bool) {
	if len(ticks) == 0 {
		return 0, false
	}

	if lte {
		index := sort.Search(len(ticks), func(i int) bool {
			return ticks[i].Index >= tick
		})
		if index < len(ticks) && ticks[index].Index == tick {
			return tick, true
		}
		if index == 0 {
			return 0, false
		}
		return ticks[index-1].Index, true
	}

	index := sort.Search(len(ticks), func(i int) bool {
		return ticks[i].Index > tick
	})
	if index >= len(ticks) {
		return 0, false
	}
	return ticks[index].Index, true
}

// TickAt returns the TickInfo at the given index, if initialized.
func TickAt(ticks []types.TickInfo, index int64) (types.TickInfo, bool) {
	i := sort.Search(len(ticks), func(i int) bool {
		return ticks[i].Index >= index
	})
	if i < len(ticks) && ticks[i].Index == index {
		return ticks[i], true
	}
	return types.TickInfo{}, false
}
