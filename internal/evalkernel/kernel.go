// Package evalkernel implements the closed-form expected-value evaluation
// kernel: latency-decayed edge, a line search over candidate trade sizes,
// mean-variance risk adjustment, and breakeven solving. Pure and total --
// it never fails, degrading to a zeroed result on numerically degenerate
// inputs.
package evalkernel

import (
	"math"

	"github.com/edgewatch/arbcore/internal/arbmodel"
	"github.com/edgewatch/arbcore/internal/latency"
	"github.com/edgewatch/arbcore/internal/payoff"
	"github.com/edgewatch/arbcore/internal/slippage"
)

// sizeSteps is the number of candidates the line search evaluates,
// uniformly spaced in (0, searchMax].
const sizeSteps = 12

// minLatencyFloorSec bounds the evPerSec denominator away from zero.
const minLatencyFloorSec = 1e-3

// tieEpsilon is the float tolerance used to detect a tie on evPerSec
// before falling back to the smaller-size, then smaller-breakeven,
// tie-break rule.
const tieEpsilon = 1e-9

// Evaluate runs the full closed-form kernel over inputs and returns the
// size-optimal result.
func Evaluate(in arbmodel.ArbitrageInputs) arbmodel.ArbitrageResult {
	searchMax := math.Max(in.CapitalUsd, in.NotionalUsd)
	if searchMax <= 0 {
		return zeroedResult(in)
	}

	theta := in.Latency.Theta
	if theta <= 0 {
		theta = latency.DefaultTheta
	}

	edgeEffBps := latency.EdgeDecay(in.EdgeBps, in.Latency.LatencySec, in.Latency.EdgeDecayBpsSec)
	pSuccess := latency.FillProb(in.Latency.BaseFillProb, in.Latency.LatencySec, theta)

	var best candidate
	haveBest := false

	for i := 1; i <= sizeSteps; i++ {
		size := searchMax * float64(i) / float64(sizeSteps)
		cand := evaluateSize(in, size, edgeEffBps, pSuccess)
		if !haveBest || better(cand, best) {
			best = cand
			haveBest = true
		}
	}

	return best.result
}

type candidate struct {
	size      float64
	evPerSec  float64
	breakeven float64
	result    arbmodel.ArbitrageResult
}

// better reports whether cand should replace best: higher evPerSec wins;
// ties prefer the smaller size; further ties prefer the smaller breakeven.
func better(cand, best candidate) bool {
	if cand.evPerSec > best.evPerSec+tieEpsilon {
		return true
	}
	if cand.evPerSec < best.evPerSec-tieEpsilon {
		return false
	}
	if cand.size < best.size-tieEpsilon {
		return true
	}
	if cand.size > best.size+tieEpsilon {
		return false
	}
	return cand.breakeven < best.breakeven
}

func evaluateSize(in arbmodel.ArbitrageInputs, size, edgeEffBps, pSuccess float64) candidate {
	slipBps := slippage.Effective(in.Slippage, size)
	costs := payoff.BuildCosts(in, size, slipBps)
	tree := payoff.Build(in, size, edgeEffBps, pSuccess, costs)

	evAdj := tree.EV - in.RiskAversionLambda*tree.Variance
	latSec := math.Max(minLatencyFloorSec, in.Latency.LatencySec)
	evPerSec := evAdj / latSec

	breakeven := breakevenBps(in, size, slipBps, costs)

	result := arbmodel.ArbitrageResult{
		NetUsdEst:    tree.EV,
		EvPerSec:     evPerSec,
		SizeOptUsd:   size,
		PSuccess:     pSuccess,
		SlipBpsEff:   slipBps,
		BreakevenBps: breakeven,
		Score:        evPerSec,
		Variance:     tree.Variance,
		Breakdown: arbmodel.ResultBreakdown{
			EdgeEffBps:       edgeEffBps,
			AfterRouterLpUsd: costs.FeesUsd,
			SlipCostUsd:      costs.SlipCostUsd,
			GasUsd:           costs.GasUsd,
			FlashCostUsd:     costs.FlashCostUsd,
			ExecutorFeeUsd:   in.Fees.ExecutorFeeUsd,
			Seconds:          in.Latency.LatencySec,
		},
	}

	return candidate{size: size, evPerSec: evPerSec, breakeven: breakeven, result: result}
}

// breakevenBps is the edge, in bps, required for zero expected net at size.
func breakevenBps(in arbmodel.ArbitrageInputs, size, slipBps float64, costs payoff.Costs) float64 {
	if size <= 0 {
		return 0
	}
	fixedCostsUsd := costs.GasUsd + costs.AdverseUsd + costs.FlashCostUsd + costs.ExtraUsd
	return slipBps + in.Fees.TotalFeesBps + fixedCostsUsd/size*1e4
}

// zeroedResult is the total-function fallback for numerically degenerate
// inputs: zero capital, zero notional.
func zeroedResult(in arbmodel.ArbitrageInputs) arbmodel.ArbitrageResult {
	theta := in.Latency.Theta
	if theta <= 0 {
		theta = latency.DefaultTheta
	}
	pSuccess := latency.FillProb(in.Latency.BaseFillProb, in.Latency.LatencySec, theta)
	return arbmodel.ArbitrageResult{
		PSuccess: pSuccess,
	}
}
