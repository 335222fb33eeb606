// Package payoff builds the state-dependent payoff tree the evaluation
// kernel and Monte Carlo engine share: five mutually exclusive branches
// with clamped, normalized probabilities and their USD payoffs at a given
// trade size.
package payoff

import "github.com/edgewatch/arbcore/internal/arbmodel"

// Branch names, used as map keys and in diagnostics.
const (
	Success     = "success"
	FailBefore  = "fail_before"
	FailBetween = "fail_between"
	ReorgOrMev  = "reorg_or_mev"
	Noop        = "noop"
)

// Costs itemizes the USD cost terms shared by every branch, computed once
// per evaluation so the kernel's breakdown and the payoff formulas agree.
type Costs struct {
	FeesUsd      float64
	SlipCostUsd  float64
	GasUsd       float64
	AdverseUsd   float64
	FlashCostUsd float64
	ExtraUsd     float64
	MevUsd       float64
}

// BuildCosts derives the USD cost terms at a given size and effective
// slippage, from the fee schedule and friction means.
func BuildCosts(in arbmodel.ArbitrageInputs, size, slipBps float64) Costs {
	feesUsd := (in.Fees.TotalFeesBps+in.Fees.ReferralBps)/1e4*size + in.Fees.ExecutorFeeUsd

	var flashCost float64
	if in.FlashEnabled {
		flashCost = in.Fees.FlashFeeBps/1e4*size + in.Fees.FlashFixedUsd
	}

	return Costs{
		FeesUsd:      feesUsd,
		SlipCostUsd:  slipBps / 1e4 * size,
		GasUsd:       in.Frictions.GasUsdMean,
		AdverseUsd:   in.Frictions.AdverseUsdMean,
		FlashCostUsd: flashCost,
		ExtraUsd:     in.Frictions.ExtraUsd,
		MevUsd:       in.Frictions.MevPenaltyUsd,
	}
}

// Branch is one payoff-tree leaf: its clamped/normalized probability and
// its USD payoff at the evaluated size.
type Branch struct {
	Name      string
	Prob      float64
	PayoffUsd float64
}

// Tree is the full five-branch payoff distribution plus its moments.
type Tree struct {
	Branches []Branch
	EV       float64
	Variance float64
}

// Build constructs the payoff tree for one candidate size, given the
// latency-decayed edge, failure probabilities, and pre-computed costs.
func Build(in arbmodel.ArbitrageInputs, size, edgeEffBps, pSuccess float64, costs Costs) Tree {
	probs := normalize(in.Failures, pSuccess)

	successPayoff := edgeEffBps/1e4*size - costs.FeesUsd - costs.SlipCostUsd - costs.GasUsd - costs.AdverseUsd - costs.FlashCostUsd - costs.ExtraUsd
	failBeforePayoff := -costs.GasUsd
	failBetweenPayoff := -0.7*costs.SlipCostUsd - costs.GasUsd - costs.AdverseUsd
	reorgPayoff := -costs.GasUsd - costs.MevUsd
	noopPayoff := 0.0

	branches := []Branch{
		{Name: Success, Prob: probs.success, PayoffUsd: successPayoff},
		{Name: FailBefore, Prob: probs.failBefore, PayoffUsd: failBeforePayoff},
		{Name: FailBetween, Prob: probs.failBetween, PayoffUsd: failBetweenPayoff},
		{Name: ReorgOrMev, Prob: probs.reorgOrMev, PayoffUsd: reorgPayoff},
		{Name: Noop, Prob: probs.noop, PayoffUsd: noopPayoff},
	}

	ev := 0.0
	for _, b := range branches {
		ev += b.Prob * b.PayoffUsd
	}

	variance := 0.0
	for _, b := range branches {
		d := b.PayoffUsd - ev
		variance += b.Prob * d * d
	}
	variance += in.Frictions.GasUsdStd*in.Frictions.GasUsdStd + in.Frictions.AdverseUsdStd*in.Frictions.AdverseUsdStd

	return Tree{Branches: branches, EV: ev, Variance: variance}
}

type normalizedProbs struct {
	success, failBefore, failBetween, reorgOrMev, noop float64
}

// normalize clamps each failure probability to [0,1], caps their sum at 1
// (scaling down proportionally if it would otherwise exceed 1), and
// assigns whatever probability mass remains to the no-op branch.
func normalize(f arbmodel.FailureProbs, pSuccess float64) normalizedProbs {
	fb := clamp01(f.FailBefore)
	fbet := clamp01(f.FailBetween)
	reorg := clamp01(f.ReorgOrMev)

	sum := fb + fbet + reorg
	if sum > 1 {
		scale := 1 / sum
		fb *= scale
		fbet *= scale
		reorg *= scale
		sum = 1
	}

	success := clamp01(pSuccess)
	if success+sum > 1 {
		success = 1 - sum
		if success < 0 {
			success = 0
		}
	}

	noop := 1 - success - sum
	if noop < 0 {
		noop = 0
	}

	return normalizedProbs{success: success, failBefore: fb, failBetween: fbet, reorgOrMev: reorg, noop: noop}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
