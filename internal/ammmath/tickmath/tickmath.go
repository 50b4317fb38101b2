// Package tickmath converts between tick index and Q64.96 square-root
// price, bit-exact with the on-chain reference formula: successive
// multiplication by precomputed constants for each set bit of the
// absolute tick, then a reciprocal for positive ticks.
//
// Grounded on defistate-client-go's
// protocols/uniswapv3/calculator/tickmath package, adapted to return
// ordinary errors instead of a destination-passing pool-allocated API
// and fixed to use uint256's public ToBig conversion.
package tickmath

import (
	"errors"
	"math"
	"math/big"

	"github.com/holiman/uint256"
)

const (
	// MinTick is the minimum tick accepted by TickToSqrtPrice.
	MinTick int64 = -887272
	// MaxTick is the maximum tick accepted by TickToSqrtPrice.
	MaxTick int64 = 887272
)

var (
	// MinSqrtPrice is the minimum value TickToSqrtPrice can return.
	MinSqrtPrice, _ = new(big.Int).SetString("4295128739", 10)
	// MaxSqrtPrice is the maximum value TickToSqrtPrice can return.
	MaxSqrtPrice, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)

	ErrTickOutOfBounds      = errors.New("tickmath: tick out of bounds")
	ErrSqrtPriceOutOfBounds = errors.New("tickmath: sqrt price out of bounds")
	ErrInvalidSlippageBps   = errors.New("tickmath: slippage bps out of bounds")

	one        = uint256.NewInt(1)
	maxUint256 = uint256.MustFromBig(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)))

	// ratioConstants[0] = 2^128/sqrt(1.0001) and ratioConstants[1] = 2^128
	// seed the product for odd and even absTick; ratioConstants[i] for
	// i in 2..20 is 2^128/sqrt(1.0001^(2^(i-1))), applied when bit i-1 of
	// absTick is set; the final entry is the 32-bit rounding mask.
	ratioConstants = [22]*uint256.Int{
		uint256.MustFromBig(fromHex("0xfffcb933bd6fad37aa2d162d1a594001")),
		uint256.MustFromBig(fromHex("0x100000000000000000000000000000000")),
		uint256.MustFromBig(fromHex("0xfff97272373d413259a46990580e213a")),
		uint256.MustFromBig(fromHex("0xfff2e50f5f656932ef12357cf3c7fdcc")),
		uint256.MustFromBig(fromHex("0xffe5caca7e10e4e61c3624eaa0941cd0")),
		uint256.MustFromBig(fromHex("0xffcb9843d60f6159c9db58835c926644")),
		uint256.MustFromBig(fromHex("0xff973b41fa98c081472e6896dfb254c0")),
		uint256.MustFromBig(fromHex("0xff2ea16466c96a3843ec78b326b52861")),
		uint256.MustFromBig(fromHex("0xfe5dee046a99a2a811c461f1969c3053")),
		uint256.MustFromBig(fromHex("0xfcbe86c7900a88aedcffc83b479aa3a4")),
		uint256.MustFromBig(fromHex("0xf987a7253ac413176f2b074cf7815e54")),
		uint256.MustFromBig(fromHex("0xf3392b0822b70005940c7a398e4b70f3")),
		uint256.MustFromBig(fromHex("0xe7159475a2c29b7443b29c7fa6e889d9")),
		uint256.MustFromBig(fromHex("0xd097f3bdfd2022b8845ad8f792aa5825")),
		uint256.MustFromBig(fromHex("0xa9f746462d870fdf8a65dc1f90e061e5")),
		uint256.MustFromBig(fromHex("0x70d869a156d2a1b890bb3df62baf32f7")),
		uint256.MustFromBig(fromHex("0x31be135f97d08fd981231505542fcfa6")),
		uint256.MustFromBig(fromHex("0x9aa508b5b7a84e1c677de54f3e99bc9")),
		uint256.MustFromBig(fromHex("0x5d6af8dedb81196699c329225ee604")),
		uint256.MustFromBig(fromHex("0x2216e584f5fa1ea926041bedfe98")),
		uint256.MustFromBig(fromHex("0x48a170391f7dc42444e8fa2")),
		uint256.MustFromBig(fromHex("0xffffffff")),
	}
)

// TickToSqrtPrice returns the Q64.96 square-root price at which the
// pool sits at the given tick.
func TickToSqrtPrice(tick int64) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, ErrTickOutOfBounds
	}

	absTick := tick
	if tick < 0 {
		absTick = -tick
	}

	ratio := new(uint256.Int)
	if (absTick & 0x1) != 0 {
		ratio.Set(ratioConstants[0])
	} else {
		ratio.Set(ratioConstants[1])
	}

	for i := 2; i < 21; i++ {
		if (absTick & (1 << (i - 1))) != 0 {
			ratio.Mul(ratio, ratioConstants[i]).Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	rem := new(uint256.Int).And(ratio, ratioConstants[21])
	ratio.Rsh(ratio, 32)
	if rem.Sign() > 0 {
		ratio.Add(ratio, one)
	}

	return ratio.ToBig(), nil
}

// SqrtPriceToTick returns the greatest tick such that
// TickToSqrtPrice(tick) <= sqrtPrice, found by binary search over the
// monotone forward function (there is no closed-form inverse over
// integers).
func SqrtPriceToTick(sqrtPrice *big.Int) (int64, error) {
	if sqrtPrice.Cmp(MinSqrtPrice) < 0 || sqrtPrice.Cmp(MaxSqrtPrice) > 0 {
		return 0, ErrSqrtPriceOutOfBounds
	}

	low, high := MinTick, MaxTick
	var tick int64
	for low <= high {
		mid := low + (high-low)/2
		at, err := TickToSqrtPrice(mid)
		if err != nil {
			return 0, err
		}
		if at.Cmp(sqrtPrice) <= 0 {
			tick = mid
			low = mid + 1
		} else {
			high = mid - 1
		}
	}
	return tick, nil
}

// PriceLimit computes the sqrt-price boundary a swap may cross for a
// given slippage tolerance. Open question in the source material: the
// reference computes this via a floating-point sqrt of 1±bps/10000
// rather than an integer-exact construction; this keeps that
// approximation, since only direction and clamping are load-bearing
// for routing (never the reported amount_out).
func PriceLimit(zeroForOne bool, currentSqrtPrice *big.Int, slippageBps int) (*big.Int, error) {
	if slippageBps < 0 || slippageBps > 5000 {
		return nil, ErrInvalidSlippageBps
	}

	factor := 1.0 + float64(slippageBps)/10000.0
	if zeroForOne {
		factor = 1.0 - float64(slippageBps)/10000.0
	}

	current := new(big.Float).SetInt(currentSqrtPrice)
	scaled := new(big.Float).Mul(current, big.NewFloat(math.Sqrt(factor)))
	limit, _ := scaled.Int(nil)

	lowerBound := new(big.Int).Add(MinSqrtPrice, big.NewInt(1))
	upperBound := new(big.Int).Sub(MaxSqrtPrice, big.NewInt(1))
	if limit.Cmp(lowerBound) < 0 {
		limit = lowerBound
	}
	if limit.Cmp(upperBound) > 0 {
		limit = upperBound
	}
	return limit, nil
}

func fromHex(s string) *big.Int {
	n, _ := new(big.Int).SetString(s[2:], 16)
	return n
}
