// Package univ3 implements an exact-enough UniV3-style tick-walking swap
// simulator over Q64.96 fixed-point state. It never panics: degenerate
// inputs (zero liquidity, empty tick maps) degrade to a no-cross quote
// instead of raising.
package univ3

import (
	"math"
	"math/big"
	"sort"

	"github.com/holiman/uint256"

	"github.com/edgewatch/arbcore/internal/arbmodel"
	"github.com/edgewatch/arbcore/internal/fixedpoint"
)

// maxIterations bounds the tick-walk loop against pathological tick maps.
// Spec requires a cap of at least 128.
const maxIterations = 256

// feeDenominator is the bps denominator UniV3 fee tiers are expressed in.
const feeDenominator = 10_000

// SwapParams is the input contract for Simulate.
type SwapParams struct {
	StartSqrtPriceQ96 *uint256.Int
	LiquidityInRange  *uint256.Int
	FeeTierBps        uint32
	AmountIn          *uint256.Int
	ZeroForOne        bool
	// SortedTicks must be sorted ascending by Index. A nil or empty slice
	// degrades the simulation to a single no-cross segment.
	SortedTicks []arbmodel.TickRecord
}

// SwapResult is the output contract for Simulate.
type SwapResult struct {
	AmountOut       *uint256.Int
	NewSqrtPriceQ96 *uint256.Int
	SlipBps         float64
}

// degenerate returns a zero, no-op result for any internally inconsistent
// input -- the simulator never raises.
func degenerate(startSqrt *uint256.Int) SwapResult {
	sp := startSqrt
	if sp == nil {
		sp = uint256.NewInt(0)
	}
	return SwapResult{
		AmountOut:       uint256.NewInt(0),
		NewSqrtPriceQ96: new(uint256.Int).Set(sp),
		SlipBps:         0,
	}
}

// Simulate walks initialized ticks from p.StartSqrtPriceQ96 consuming
// p.AmountIn, per the swap-step formulas in the evaluation kernel design.
func Simulate(p SwapParams) SwapResult {
	if p.StartSqrtPriceQ96 == nil || p.LiquidityInRange == nil || p.AmountIn == nil {
		return degenerate(p.StartSqrtPriceQ96)
	}
	if p.LiquidityInRange.IsZero() || p.AmountIn.IsZero() {
		return degenerate(p.StartSqrtPriceQ96)
	}
	if p.FeeTierBps >= feeDenominator {
		return degenerate(p.StartSqrtPriceQ96)
	}

	sqrtP := new(uint256.Int).Set(p.StartSqrtPriceQ96)
	liquidity := new(uint256.Int).Set(p.LiquidityInRange)
	remaining := new(uint256.Int).Set(p.AmountIn)

	amountOut := uint256.NewInt(0)

	ticks := sortedTicksCopy(p.SortedTicks)
	iterations := 0

	for remaining.Sign() > 0 && iterations < maxIterations {
		iterations++

		nextTick, found := nextInitializedTick(ticks, sqrtP, p.ZeroForOne)

		var boundarySqrt *uint256.Int
		if found {
			boundarySqrt = tickSqrtPrice(nextTick)
		}

		amountInAfterFee := applyFee(remaining, p.FeeTierBps)

		if !found {
			// No more initialized ticks in this direction: consume the
			// remainder against the current liquidity and stop.
			out := noCrossOutput(sqrtP, liquidity, amountInAfterFee, p.ZeroForOne)
			amountOut = new(uint256.Int).Add(amountOut, out)
			sqrtP = nextSqrtPriceFromInput(sqrtP, liquidity, amountInAfterFee, p.ZeroForOne)
			remaining = uint256.NewInt(0)
			break
		}

		preFeeToBoundary := inputToReachBoundary(sqrtP, boundarySqrt, liquidity, p.ZeroForOne)
		requiredPreFee := grossUpForFee(preFeeToBoundary, p.FeeTierBps)

		if requiredPreFee.Cmp(remaining) >= 0 {
			// Cannot reach the boundary with what remains: consume inline
			// and stop, never crossing past the boundary.
			out := noCrossOutput(sqrtP, liquidity, amountInAfterFee, p.ZeroForOne)
			amountOut = new(uint256.Int).Add(amountOut, out)
			sqrtP = nextSqrtPriceFromInput(sqrtP, liquidity, amountInAfterFee, p.ZeroForOne)
			remaining = uint256.NewInt(0)
			break
		}

		// Consume exactly enough to reach the boundary, cross it, and
		// continue with the adjusted liquidity.
		out := amountDeltaOut(sqrtP, boundarySqrt, liquidity, p.ZeroForOne)
		amountOut = new(uint256.Int).Add(amountOut, out)
		remaining = new(uint256.Int).Sub(remaining, requiredPreFee)
		sqrtP = boundarySqrt

		delta := nextTick.LiquidityNet
		if p.ZeroForOne {
			delta = -delta
		}
		liquidity = applyLiquidityDelta(liquidity, delta)
		ticks = advancePast(ticks, nextTick.Index, p.ZeroForOne)

		if liquidity.IsZero() {
			// Ran out of range entirely; remaining input finds no
			// counterparty liquidity, so it goes unfilled.
			break
		}
	}

	if iterations >= maxIterations && remaining.Sign() > 0 {
		// Safety cap exhausted: fall back to a single no-cross segment
		// for whatever remains rather than looping further.
		amountInAfterFee := applyFee(remaining, p.FeeTierBps)
		out := noCrossOutput(sqrtP, liquidity, amountInAfterFee, p.ZeroForOne)
		amountOut = new(uint256.Int).Add(amountOut, out)
		sqrtP = nextSqrtPriceFromInput(sqrtP, liquidity, amountInAfterFee, p.ZeroForOne)
	}

	slip := slippageBps(p.StartSqrtPriceQ96, p.AmountIn, amountOut)

	return SwapResult{
		AmountOut:       amountOut,
		NewSqrtPriceQ96: sqrtP,
		SlipBps:         slip,
	}
}

// applyFee returns amountIn * (10000-feeBps) / 10000, rounded down.
func applyFee(amountIn *uint256.Int, feeBps uint32) *uint256.Int {
	keep := uint256.NewInt(uint64(feeDenominator - feeBps))
	denom := uint256.NewInt(feeDenominator)
	return fixedpoint.MulDiv(amountIn, keep, denom)
}

// grossUpForFee inverts applyFee: given the post-fee amount needed, returns
// the pre-fee amount that produces it, rounded up so the simulator never
// under-counts the input required to reach a boundary.
func grossUpForFee(postFee *uint256.Int, feeBps uint32) *uint256.Int {
	if feeBps == 0 {
		return new(uint256.Int).Set(postFee)
	}
	denom := uint256.NewInt(feeDenominator)
	keep := uint256.NewInt(uint64(feeDenominator - feeBps))
	return fixedpoint.MulDivRoundingUp(postFee, denom, keep)
}

// nextSqrtPriceFromInput computes the new sqrt price after consuming
// amountInAfterFee against constant liquidity, per spec §4.2.
func nextSqrtPriceFromInput(sqrtP, liquidity, amountInAfterFee *uint256.Int, zeroForOne bool) *uint256.Int {
	if liquidity.IsZero() || amountInAfterFee.IsZero() {
		return new(uint256.Int).Set(sqrtP)
	}
	q96 := fixedpoint.Resolution96()
	lQ96 := new(uint256.Int).Lsh(liquidity, 96)

	if zeroForOne {
		// newSqrt = (L*Q96*P) / (L*Q96 + amountInAfterFee*P). The product
		// amountInAfterFee*P can itself overflow 256 bits on full-width
		// operands; when it does, divide through by P first instead --
		// algebraically equivalent, losing only a few ULPs.
		product, overflow := new(uint256.Int).MulOverflow(amountInAfterFee, sqrtP)
		if !overflow {
			denominator := new(uint256.Int).Add(lQ96, product)
			if denominator.Cmp(lQ96) >= 0 && !denominator.IsZero() {
				return fixedpoint.MulDivRoundingUp(lQ96, sqrtP, denominator)
			}
		}
		denom := new(uint256.Int).Add(fixedpoint.MulDiv(lQ96, uint256.NewInt(1), sqrtP), amountInAfterFee)
		if denom.IsZero() {
			return new(uint256.Int).Set(sqrtP)
		}
		return fixedpoint.MulDivRoundingUp(lQ96, uint256.NewInt(1), denom)
	}

	// newSqrt = P + amountInAfterFee*Q96/L
	quotient := fixedpoint.MulDiv(amountInAfterFee, q96, liquidity)
	return new(uint256.Int).Add(sqrtP, quotient)
}

// noCrossOutput returns the token output for a segment that never reaches a
// tick boundary.
func noCrossOutput(sqrtP, liquidity, amountInAfterFee *uint256.Int, zeroForOne bool) *uint256.Int {
	newSqrt := nextSqrtPriceFromInput(sqrtP, liquidity, amountInAfterFee, zeroForOne)
	return amountDeltaOut(sqrtP, newSqrt, liquidity, zeroForOne)
}

// amountDeltaOut returns the amount of the *output* token released moving
// from sqrtA to sqrtB at constant liquidity.
func amountDeltaOut(sqrtA, sqrtB, liquidity *uint256.Int, zeroForOne bool) *uint256.Int {
	if zeroForOne {
		// token0 in, token1 out: outY = L*(P - newSqrt)/Q96, P >= newSqrt.
		hi, lo := sqrtA, sqrtB
		if lo.Cmp(hi) > 0 {
			hi, lo = lo, hi
		}
		diff := new(uint256.Int).Sub(hi, lo)
		return fixedpoint.MulDiv(liquidity, diff, fixedpoint.Resolution96())
	}
	// token1 in, token0 out: outX = L*(1/P - 1/newSqrt), newSqrt >= P.
	lo, hi := sqrtA, sqrtB
	if hi.Cmp(lo) < 0 {
		lo, hi = hi, lo
	}
	if lo.IsZero() || hi.IsZero() {
		return uint256.NewInt(0)
	}
	lQ96 := new(uint256.Int).Lsh(liquidity, 96)
	diff := new(uint256.Int).Sub(hi, lo)
	step1 := fixedpoint.MulDiv(lQ96, diff, hi)
	return fixedpoint.MulDiv(step1, uint256.NewInt(1), lo)
}

// inputToReachBoundary returns the post-fee input amount required to move
// the price exactly to boundarySqrt.
func inputToReachBoundary(sqrtP, boundarySqrt, liquidity *uint256.Int, zeroForOne bool) *uint256.Int {
	if zeroForOne {
		// Amount of token0 needed: amount0 = L*Q96*(1/newSqrt - 1/P) with
		// newSqrt <= P, computed via the overflow-safe two-step form.
		return amountDeltaOut(boundarySqrt, sqrtP, liquidity, false)
	}
	// Amount of token1 needed: amount1 = L*(newSqrt - P)/Q96.
	return amountDeltaOut(sqrtP, boundarySqrt, liquidity, true)
}

// applyLiquidityDelta adds a signed liquidity delta, clamping at zero
// instead of underflowing.
func applyLiquidityDelta(liquidity *uint256.Int, delta int64) *uint256.Int {
	if delta >= 0 {
		return new(uint256.Int).Add(liquidity, uint256.NewInt(uint64(delta)))
	}
	mag := uint256.NewInt(uint64(-delta))
	if mag.Cmp(liquidity) >= 0 {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Sub(liquidity, mag)
}

// sortedTicksCopy defensively copies and sorts the tick slice so Simulate
// never mutates caller-owned state.
func sortedTicksCopy(ticks []arbmodel.TickRecord) []arbmodel.TickRecord {
	out := make([]arbmodel.TickRecord, len(ticks))
	copy(out, ticks)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// nextInitializedTick finds the next tick in the swap direction: ticks
// below the current price when zeroForOne (price falling), ticks above
// otherwise (price rising). Tick positions are compared by sqrt price, not
// index, since the caller only has a sqrt price to walk from.
func nextInitializedTick(ticks []arbmodel.TickRecord, sqrtP *uint256.Int, zeroForOne bool) (arbmodel.TickRecord, bool) {
	if zeroForOne {
		for i := len(ticks) - 1; i >= 0; i-- {
			ts := tickSqrtPrice(ticks[i])
			if ts.Cmp(sqrtP) < 0 {
				return ticks[i], true
			}
		}
		return arbmodel.TickRecord{}, false
	}
	for i := 0; i < len(ticks); i++ {
		ts := tickSqrtPrice(ticks[i])
		if ts.Cmp(sqrtP) > 0 {
			return ticks[i], true
		}
	}
	return arbmodel.TickRecord{}, false
}

// advancePast drops ticks at or beyond the one just crossed, so the next
// call to nextInitializedTick doesn't re-find the same boundary.
func advancePast(ticks []arbmodel.TickRecord, crossedIndex int32, zeroForOne bool) []arbmodel.TickRecord {
	out := make([]arbmodel.TickRecord, 0, len(ticks))
	for _, t := range ticks {
		if zeroForOne && t.Index >= crossedIndex {
			continue
		}
		if !zeroForOne && t.Index <= crossedIndex {
			continue
		}
		out = append(out, t)
	}
	return out
}

// tickSqrtPrice returns the tick's sqrt price, using the stored value when
// present and otherwise the standard 1.0001^tick approximation. Computing
// the exact bit-shifted TickMath table is out of scope for an "exact
// enough" simulator; this loses only sub-bp precision near extreme ticks.
func tickSqrtPrice(t arbmodel.TickRecord) *uint256.Int {
	if t.SqrtPriceQ96 != nil && !t.SqrtPriceQ96.IsZero() {
		return t.SqrtPriceQ96
	}
	price := math.Pow(1.0001, float64(t.Index))
	return fixedpoint.PriceToSqrtPriceQ96(price)
}

// slippageBps measures realized-vs-mid execution cost in basis points,
// computed via a scaled integer ratio before the single controlled float
// conversion, preserving sub-bp resolution.
func slippageBps(startSqrtQ96, amountIn, amountOut *uint256.Int) float64 {
	if startSqrtQ96 == nil || startSqrtQ96.IsZero() || amountIn == nil || amountIn.IsZero() {
		return 0
	}
	mid := fixedpoint.SqrtPriceToPrice(startSqrtQ96)
	if mid <= 0 {
		return 0
	}

	const scale = 1_000_000_000
	scaleInt := uint256.NewInt(scale)
	scaledRealized := fixedpoint.MulDiv(amountOut, scaleInt, amountIn)

	realizedBig := new(big.Float).SetPrec(128).SetInt(scaledRealized.ToBig())
	realized, _ := new(big.Float).SetPrec(128).Quo(realizedBig, big.NewFloat(scale)).Float64()

	if realized >= mid {
		return 0
	}
	slip := (mid - realized) / mid * 10_000
	if slip < 0 {
		return 0
	}
	return slip
}
