package montecarlo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgewatch/arbcore/internal/arbmodel"
)

func baseInputs() arbmodel.ArbitrageInputs {
	return arbmodel.ArbitrageInputs{
		Frictions: arbmodel.Frictions{
			GasUsdMean:     0.2,
			GasUsdStd:      0.05,
			AdverseUsdMean: 0.5,
			AdverseUsdStd:  0.1,
		},
		Failures: arbmodel.FailureProbs{FailBefore: 0.02, FailBetween: 0.01},
	}
}

func TestRun_DeterministicWithFixedSeed(t *testing.T) {
	seed := int64(42)
	in := baseInputs()

	first, err := Run(context.Background(), in, 5000, 20, 0.9, 3, Options{Samples: 200, Seed: &seed})
	require.NoError(t, err)
	second, err := Run(context.Background(), in, 5000, 20, 0.9, 3, Options{Samples: 200, Seed: &seed})
	require.NoError(t, err)

	assert.Equal(t, first.Samples, second.Samples)
	assert.Equal(t, first.VaR95, second.VaR95)
	assert.Equal(t, first.CVaR95, second.CVaR95)
}

func TestRun_SampleCountFloorEnforced(t *testing.T) {
	in := baseInputs()
	result, err := Run(context.Background(), in, 5000, 20, 0.9, 3, Options{Samples: 5})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(result.Samples), MinSamples)
}

func TestRun_ParallelDispatchMatchesSerialSemantics(t *testing.T) {
	seed := int64(7)
	in := baseInputs()

	result, err := Run(context.Background(), in, 5000, 20, 0.9, 3, Options{Samples: 2000, Seed: &seed})
	require.NoError(t, err)
	assert.Len(t, result.Samples, 2000)
}

func TestRun_VarCvarOrdering(t *testing.T) {
	seed := int64(1)
	in := baseInputs()

	result, err := Run(context.Background(), in, 5000, 20, 0.9, 3, Options{Samples: 1000, Seed: &seed})
	require.NoError(t, err)

	assert.LessOrEqual(t, result.CVaR95, result.VaR95+1e-9, "CVaR averages the tail at or below VaR")
}

func TestRun_CancelledContextStopsParallelDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := baseInputs()
	_, err := Run(ctx, in, 5000, 20, 0.9, 3, Options{Samples: 3000})
	assert.Error(t, err)
}
