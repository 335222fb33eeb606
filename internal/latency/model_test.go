package latency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEdgeDecay_ZeroLatencyIsIdentity(t *testing.T) {
	assert.Equal(t, 42.0, EdgeDecay(42.0, 0, 1.5))
}

func TestEdgeDecay_FloorsAtZero(t *testing.T) {
	assert.Equal(t, 0.0, EdgeDecay(5.0, 100, 1.5))
}

func TestEdgeDecay_MonotoneInLatency(t *testing.T) {
	fast := EdgeDecay(50, 0.2, 1.5)
	slow := EdgeDecay(50, 2.0, 1.5)
	assert.Greater(t, fast, slow)
}

func TestFillProb_ZeroLatencyIsIdentity(t *testing.T) {
	assert.InDelta(t, 0.85, FillProb(0.85, 0, 0.15), 1e-12)
}

func TestFillProb_MonotoneDecreasingInLatency(t *testing.T) {
	fast := FillProb(0.85, 0.2, DefaultTheta)
	slow := FillProb(0.85, 2.0, DefaultTheta)
	assert.Greater(t, fast, slow)
}

func TestFillProb_ClampedToUnitInterval(t *testing.T) {
	assert.LessOrEqual(t, FillProb(10, 0, 0.15), 1.0)
	assert.GreaterOrEqual(t, FillProb(-5, 0, 0.15), 0.0)
}
