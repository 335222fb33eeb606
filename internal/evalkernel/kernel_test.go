package evalkernel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edgewatch/arbcore/internal/arbmodel"
)

func scenarioAInputs(edgeBps float64) arbmodel.ArbitrageInputs {
	return arbmodel.ArbitrageInputs{
		EdgeBps:     edgeBps,
		NotionalUsd: 10_000,
		Fees: arbmodel.FeeSchedule{
			TotalFeesBps: 8,
		},
		Frictions: arbmodel.Frictions{
			GasUsdMean:     0.2,
			AdverseUsdMean: 0.5,
		},
		Latency: arbmodel.LatencyParams{
			LatencySec:      0.5,
			EdgeDecayBpsSec: 1.5,
			BaseFillProb:    0.85,
			Theta:           0.15,
		},
		Slippage: arbmodel.SlippageModel{
			Kind:                     arbmodel.SlippageEmpirical,
			EmpiricalK:               0.9,
			EmpiricalAlpha:           1.2,
			EmpiricalLiquidityRefUsd: 1_500_000,
		},
		Failures:           arbmodel.FailureProbs{FailBefore: 0.02, FailBetween: 0.01, ReorgOrMev: 0},
		CapitalUsd:         10_000,
		FlashEnabled:       false,
		RiskAversionLambda: 0.00005,
	}
}

// TestEvaluate_BreakevenSolver is Scenario A: an edge chosen so that EV is
// analytically zero at size=10000 should round-trip through the kernel to
// an evPerSec near zero.
func TestEvaluate_BreakevenSolver(t *testing.T) {
	in := scenarioAInputs(9.468)
	result := Evaluate(in)

	assert.InDelta(t, 10_000.0, result.SizeOptUsd, 1e-6)
	assert.Less(t, abs(result.EvPerSec), 0.05)
}

// TestEvaluate_LatencyDegradation is Scenario B.
func TestEvaluate_LatencyDegradation(t *testing.T) {
	fast := scenarioAInputs(20)
	fast.Latency.LatencySec = 0.2

	slow := scenarioAInputs(20)
	slow.Latency.LatencySec = 2.0

	fastResult := Evaluate(fast)
	slowResult := Evaluate(slow)

	assert.Greater(t, fastResult.PSuccess, slowResult.PSuccess)
	assert.Greater(t, fastResult.NetUsdEst, slowResult.NetUsdEst)
}

func TestEvaluate_ZeroCapitalIsDegenerate(t *testing.T) {
	in := scenarioAInputs(20)
	in.CapitalUsd = 0
	in.NotionalUsd = 0

	result := Evaluate(in)
	assert.Equal(t, 0.0, result.SizeOptUsd)
	assert.Equal(t, 0.0, result.EvPerSec)
}

func TestEvaluate_SizeOptWithinCapitalBounds(t *testing.T) {
	in := scenarioAInputs(20)
	result := Evaluate(in)

	assert.GreaterOrEqual(t, result.SizeOptUsd, 0.0)
	assert.LessOrEqual(t, result.SizeOptUsd, in.CapitalUsd)
}

func TestEvaluate_PSuccessWithinUnitInterval(t *testing.T) {
	in := scenarioAInputs(20)
	result := Evaluate(in)

	assert.GreaterOrEqual(t, result.PSuccess, 0.0)
	assert.LessOrEqual(t, result.PSuccess, 1.0)
}

func TestEvaluate_CapitalBelowNotionalBoundsSearchByMax(t *testing.T) {
	in := scenarioAInputs(20)
	in.CapitalUsd = 5_000
	in.NotionalUsd = 10_000

	result := Evaluate(in)
	assert.LessOrEqual(t, result.SizeOptUsd, 10_000.0)
}

func TestEvaluate_FeeMonotonicity(t *testing.T) {
	cheap := scenarioAInputs(20)
	cheap.Fees.TotalFeesBps = 5

	expensive := scenarioAInputs(20)
	expensive.Fees.TotalFeesBps = 50

	cheapResult := Evaluate(cheap)
	expensiveResult := Evaluate(expensive)

	assert.GreaterOrEqual(t, cheapResult.NetUsdEst, expensiveResult.NetUsdEst)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
