// Package fixedpoint implements Q64.96 fixed-point arithmetic over 256-bit
// unsigned integers, the representation UniV3-style pools use for
// sqrtPriceX96 and liquidity. Every operation here is deterministic and
// bit-identical across platforms: no operation may panic, and division by
// zero saturates by returning the original operand unchanged rather than
// raising -- callers treat that as a no-op swap.
package fixedpoint

import (
	"math/big"

	"github.com/holiman/uint256"
)

// Resolution is 2^96, the Q96 fixed-point scale.
var resolution = new(uint256.Int).Lsh(uint256.NewInt(1), 96)

// Resolution96 returns 2^96 as a uint256.Int. Callers must not mutate the
// returned value.
func Resolution96() *uint256.Int {
	return new(uint256.Int).Set(resolution)
}

// MulDiv computes floor(a*b/denom) without intermediate overflow, using a
// 512-bit intermediate product. If denom is zero, it returns a unchanged --
// the documented saturating no-op rather than a panic or division error.
func MulDiv(a, b, denom *uint256.Int) *uint256.Int {
	if denom == nil || denom.IsZero() {
		return new(uint256.Int).Set(a)
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, denom)
	if overflow {
		// The true product exceeds 2^256; saturate rather than wrap.
		return new(uint256.Int).SetAllOne()
	}
	return z
}

// MulDivRoundingUp computes ceil(a*b/denom), matching UniV3's FullMath
// rounding convention for the input side of a swap step.
func MulDivRoundingUp(a, b, denom *uint256.Int) *uint256.Int {
	result := MulDiv(a, b, denom)
	if denom == nil || denom.IsZero() {
		return result
	}
	prod := new(uint256.Int).MulMod(a, b, denom)
	if !prod.IsZero() {
		result = new(uint256.Int).AddUint64(result, 1)
	}
	return result
}

// SqrtPriceToPrice converts a Q64.96 sqrt price into the floating-point
// price = (sqrtPriceQ96 / 2^96)^2. This is the single controlled float
// conversion the UniV3 math is allowed: all prior arithmetic stays in exact
// 256-bit integers, and only the final human-facing ratio touches float64.
func SqrtPriceToPrice(sqrtPriceQ96 *uint256.Int) float64 {
	if sqrtPriceQ96 == nil || sqrtPriceQ96.IsZero() {
		return 0
	}
	sqrtBig := sqrtPriceQ96.ToBig()
	sqrtF := new(big.Float).SetPrec(256).SetInt(sqrtBig)
	scale := new(big.Float).SetPrec(256).SetInt(resolution.ToBig())
	ratio := new(big.Float).SetPrec(256).Quo(sqrtF, scale)
	price := new(big.Float).SetPrec(256).Mul(ratio, ratio)
	f, _ := price.Float64()
	return f
}

// PriceToSqrtPriceQ96 is the inverse of SqrtPriceToPrice: given a
// floating-point price, it returns sqrt(price) * 2^96 rounded to the
// nearest integer. Used to build synthetic pool states in tests and
// calibration tooling; never on the exact swap-math hot path.
func PriceToSqrtPriceQ96(price float64) *uint256.Int {
	if price <= 0 {
		return uint256.NewInt(0)
	}
	priceF := new(big.Float).SetPrec(256).SetFloat64(price)
	sqrtF := new(big.Float).SetPrec(256).Sqrt(priceF)
	scale := new(big.Float).SetPrec(256).SetInt(resolution.ToBig())
	scaled := new(big.Float).SetPrec(256).Mul(sqrtF, scale)
	scaledInt, _ := scaled.Int(nil)
	out, overflow := uint256.FromBig(scaledInt)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return out
}

// ReciprocalQ96 returns the Q64.96 representation of 1/price given price's
// own Q64.96 representation, computed as MulDiv(2^96, 2^96, priceQ96).
// Saturates (returns priceQ96 unchanged) when priceQ96 is zero.
func ReciprocalQ96(priceQ96 *uint256.Int) *uint256.Int {
	if priceQ96 == nil || priceQ96.IsZero() {
		return new(uint256.Int)
	}
	return MulDiv(resolution, resolution, priceQ96)
}
