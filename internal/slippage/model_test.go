package slippage

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"

	"github.com/edgewatch/arbcore/internal/arbmodel"
	"github.com/edgewatch/arbcore/internal/fixedpoint"
)

func TestEffective_EmpiricalMonotoneInSize(t *testing.T) {
	m := arbmodel.SlippageModel{
		Kind:                     arbmodel.SlippageEmpirical,
		EmpiricalK:               0.9,
		EmpiricalAlpha:           1.2,
		EmpiricalLiquidityRefUsd: 1_500_000,
	}

	small := Effective(m, 1_000)
	large := Effective(m, 100_000)

	assert.GreaterOrEqual(t, small, 0.0)
	assert.Greater(t, large, small)
}

func TestEffective_NeverNegative(t *testing.T) {
	m := arbmodel.SlippageModel{Kind: arbmodel.SlippageEmpirical, EmpiricalK: 0.5, EmpiricalAlpha: 1.0, EmpiricalLiquidityRefUsd: 1000}
	assert.Equal(t, 0.0, Effective(m, 0))
	assert.Equal(t, 0.0, Effective(m, -50))
}

func TestEffective_UniV3DegradesToEmpiricalWhenIncomplete(t *testing.T) {
	m := arbmodel.SlippageModel{
		Kind:               arbmodel.SlippageUniV3,
		UniV3UsdPerTokenIn: 1.0,
		// UniV3SqrtPriceQ96 intentionally nil: pool state unavailable.
		EmpiricalK:               0.9,
		EmpiricalAlpha:           1.2,
		EmpiricalLiquidityRefUsd: 1_500_000,
	}
	got := Effective(m, 10_000)
	assert.Greater(t, got, 0.0)
}

func TestEffective_UniV3RunsSimulatorWhenComplete(t *testing.T) {
	sqrtP := fixedpoint.Resolution96()
	liquidity := new(uint256.Int).Mul(uint256.NewInt(1_000_000), fixedpoint.Resolution96())

	m := arbmodel.SlippageModel{
		Kind:               arbmodel.SlippageUniV3,
		UniV3SqrtPriceQ96:  sqrtP,
		UniV3Liquidity:     liquidity,
		UniV3FeeTierBps:    30,
		UniV3UsdPerTokenIn: 1.0,
		UniV3ZeroForOne:    true,
	}

	got := Effective(m, 50_000)
	assert.Greater(t, got, 0.0)
}
