// Package slippage dispatches between the empirical and UniV3-backed
// slippage variants and reconciles USD/token units at the boundary.
package slippage

import (
	"math"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/edgewatch/arbcore/internal/arbmodel"
	"github.com/edgewatch/arbcore/internal/fixedpoint"
	"github.com/edgewatch/arbcore/internal/univ3"
)

// defaultDecimalsScale assumes 18-decimal tokens when usdPerTokenIn implies
// an amount but the caller has not specified otherwise.
const defaultDecimalsScale = 1e18

// Effective returns the effective slippage in basis points for sizeUsd
// against model m. It never panics and never returns a negative value.
func Effective(m arbmodel.SlippageModel, sizeUsd float64) float64 {
	if sizeUsd <= 0 {
		return 0
	}
	switch m.Kind {
	case arbmodel.SlippageUniV3:
		if bps, ok := univ3Effective(m, sizeUsd); ok {
			return bps
		}
		return empirical(m.EmpiricalK, m.EmpiricalAlpha, sizeUsd, m.EmpiricalLiquidityRefUsd, true)
	default:
		return empirical(m.EmpiricalK, m.EmpiricalAlpha, sizeUsd, m.EmpiricalLiquidityRefUsd, false)
	}
}

// empirical implements slipBps = k * (sizeUsd/Lref)^max(alpha,1.0). When
// conservative is true (the UniV3 degrade path with no known reference
// liquidity), missing parameters fall back to cautious defaults rather
// than producing a zero/undefined result.
func empirical(k, alpha, sizeUsd, lref float64, conservative bool) float64 {
	if lref <= 0 {
		if !conservative {
			return 0
		}
		lref = 250_000
	}
	if k <= 0 {
		if !conservative {
			return 0
		}
		k = 1.0
	}
	exp := math.Max(alpha, 1.0)
	ratio := sizeUsd / lref
	if ratio < 0 {
		return 0
	}
	return k * math.Pow(ratio, exp)
}

// univ3Effective runs the tick-walking simulator for sizeUsd converted to
// token units via usdPerTokenIn. Returns ok=false when the pool state is
// too incomplete to simulate (missing sqrt price/liquidity/usd rate),
// signaling the caller to degrade to the empirical model.
func univ3Effective(m arbmodel.SlippageModel, sizeUsd float64) (float64, bool) {
	if m.UniV3SqrtPriceQ96 == nil || m.UniV3SqrtPriceQ96.IsZero() {
		return 0, false
	}
	if m.UniV3Liquidity == nil || m.UniV3Liquidity.IsZero() {
		return 0, false
	}
	if m.UniV3UsdPerTokenIn <= 0 {
		return 0, false
	}

	tokensIn := sizeUsd / m.UniV3UsdPerTokenIn
	if tokensIn <= 0 {
		return 0, false
	}
	amountIn := usdToBaseUnits(tokensIn)

	res := univ3.Simulate(univ3.SwapParams{
		StartSqrtPriceQ96: m.UniV3SqrtPriceQ96,
		LiquidityInRange:  m.UniV3Liquidity,
		FeeTierBps:        m.UniV3FeeTierBps,
		AmountIn:          amountIn,
		ZeroForOne:        m.UniV3ZeroForOne,
		SortedTicks:       m.UniV3Ticks,
	})
	return res.SlipBps, true
}

// usdToBaseUnits converts a whole-token quantity into base (18-decimal)
// units via a controlled float-to-big conversion, the one point where USD
// notional meets on-chain integer amounts.
func usdToBaseUnits(tokens float64) *uint256.Int {
	if tokens <= 0 {
		return uint256.NewInt(0)
	}
	scaled := new(big.Float).SetPrec(256).Mul(big.NewFloat(tokens), big.NewFloat(defaultDecimalsScale))
	scaledInt, _ := scaled.Int(nil)
	out, overflow := uint256.FromBig(scaledInt)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return out
}

// ReconcilePrice exposes the fixed-point mid price backing a UniV3 variant,
// for callers (e.g. the evaluation kernel) that need it outside a swap
// simulation.
func ReconcilePrice(sqrtPriceQ96 *uint256.Int) float64 {
	return fixedpoint.SqrtPriceToPrice(sqrtPriceQ96)
}
