package payoff

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edgewatch/arbcore/internal/arbmodel"
)

func baseInputs() arbmodel.ArbitrageInputs {
	return arbmodel.ArbitrageInputs{
		Fees: arbmodel.FeeSchedule{
			TotalFeesBps:   8,
			ExecutorFeeUsd: 0.1,
		},
		Frictions: arbmodel.Frictions{
			GasUsdMean:     0.2,
			GasUsdStd:      0.05,
			AdverseUsdMean: 0.5,
			AdverseUsdStd:  0.1,
		},
		Failures:   arbmodel.FailureProbs{FailBefore: 0.02, FailBetween: 0.01, ReorgOrMev: 0},
		CapitalUsd: 10_000,
	}
}

func TestBuild_ProbabilitiesSumToOne(t *testing.T) {
	in := baseInputs()
	costs := BuildCosts(in, 5000, 10)
	tree := Build(in, 5000, 20, 0.9, costs)

	sum := 0.0
	for _, b := range tree.Branches {
		assert.GreaterOrEqual(t, b.Prob, 0.0)
		assert.LessOrEqual(t, b.Prob, 1.0)
		sum += b.Prob
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestBuild_NoopAbsorbsResidualMass(t *testing.T) {
	in := baseInputs()
	in.Failures = arbmodel.FailureProbs{}
	costs := BuildCosts(in, 5000, 10)
	tree := Build(in, 5000, 20, 0.6, costs)

	var noop Branch
	for _, b := range tree.Branches {
		if b.Name == Noop {
			noop = b
		}
	}
	assert.InDelta(t, 0.4, noop.Prob, 1e-9)
}

func TestBuild_OverAllocatedFailureMassScalesDown(t *testing.T) {
	in := baseInputs()
	in.Failures = arbmodel.FailureProbs{FailBefore: 0.6, FailBetween: 0.5, ReorgOrMev: 0.3}
	costs := BuildCosts(in, 5000, 10)
	tree := Build(in, 5000, 20, 0.9, costs)

	sum := 0.0
	for _, b := range tree.Branches {
		sum += b.Prob
		assert.GreaterOrEqual(t, b.Prob, 0.0)
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestBuild_VarianceIncludesExogenousNoise(t *testing.T) {
	in := baseInputs()
	costs := BuildCosts(in, 5000, 10)

	zeroNoise := in
	zeroNoise.Frictions.GasUsdStd = 0
	zeroNoise.Frictions.AdverseUsdStd = 0

	withNoise := Build(in, 5000, 20, 0.9, costs)
	without := Build(zeroNoise, 5000, 20, 0.9, costs)

	assert.Greater(t, withNoise.Variance, without.Variance)
}

func TestBuild_SuccessPayoffReflectsCosts(t *testing.T) {
	in := baseInputs()
	size := 10_000.0
	costs := BuildCosts(in, size, 15)
	tree := Build(in, size, 25, 0.9, costs)

	var success Branch
	for _, b := range tree.Branches {
		if b.Name == Success {
			success = b
		}
	}

	expected := 25.0/1e4*size - costs.FeesUsd - costs.SlipCostUsd - costs.GasUsd - costs.AdverseUsd - costs.FlashCostUsd - costs.ExtraUsd
	assert.InDelta(t, expected, success.PayoffUsd, 1e-9)
}
