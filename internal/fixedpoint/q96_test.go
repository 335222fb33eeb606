package fixedpoint

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulDiv(t *testing.T) {
	a := uint256.NewInt(1_000_000)
	b := uint256.NewInt(3)
	d := uint256.NewInt(7)

	got := MulDiv(a, b, d)
	want := uint256.NewInt((1_000_000 * 3) / 7)
	assert.True(t, got.Eq(want))
}

func TestMulDiv_ZeroDenomSaturatesToOperand(t *testing.T) {
	a := uint256.NewInt(42)
	b := uint256.NewInt(99)
	got := MulDiv(a, b, uint256.NewInt(0))
	assert.True(t, got.Eq(a), "zero denominator must return a unchanged, never panic")
}

func TestMulDiv_NoOverflowOnFullWidthOperands(t *testing.T) {
	a := new(uint256.Int).SetAllOne()
	b := new(uint256.Int).SetAllOne()
	d := new(uint256.Int).SetAllOne()

	require.NotPanics(t, func() {
		got := MulDiv(a, b, d)
		assert.True(t, got.Eq(a))
	})
}

func TestSqrtPriceRoundTrip(t *testing.T) {
	price := 1.0005
	sqrtQ96 := PriceToSqrtPriceQ96(price)
	back := SqrtPriceToPrice(sqrtQ96)
	assert.InDelta(t, price, back, 1e-9)
}

func TestSqrtPriceToPrice_AtQ96IsOne(t *testing.T) {
	got := SqrtPriceToPrice(Resolution96())
	assert.InDelta(t, 1.0, got, 1e-12)
}

func TestSqrtPriceToPrice_ZeroIsZero(t *testing.T) {
	assert.Equal(t, 0.0, SqrtPriceToPrice(uint256.NewInt(0)))
	assert.Equal(t, 0.0, SqrtPriceToPrice(nil))
}

func TestReciprocalQ96(t *testing.T) {
	priceQ96 := PriceToSqrtPriceQ96(4.0) // sqrt(4) * 2^96, used here as a generic Q96 value
	recip := ReciprocalQ96(priceQ96)

	// MulDiv(Q96, Q96, x) inverted back should approximately recover x.
	roundTrip := ReciprocalQ96(recip)
	diff := new(uint256.Int).Sub(priceQ96, roundTrip)
	if priceQ96.Cmp(roundTrip) < 0 {
		diff = new(uint256.Int).Sub(roundTrip, priceQ96)
	}
	// Rounding-down MulDiv loses a handful of ULPs across a double
	// reciprocal; this just bounds the integer drift.
	assert.Less(t, diff.Uint64(), uint64(1_000_000))
}

func TestReciprocalQ96_ZeroSaturates(t *testing.T) {
	got := ReciprocalQ96(uint256.NewInt(0))
	assert.True(t, got.IsZero())
}

func TestMulDivRoundingUp(t *testing.T) {
	a := uint256.NewInt(10)
	b := uint256.NewInt(1)
	d := uint256.NewInt(3)

	down := MulDiv(a, b, d)
	up := MulDivRoundingUp(a, b, d)
	assert.Equal(t, uint64(3), down.Uint64())
	assert.Equal(t, uint64(4), up.Uint64())
}

func TestPriceToSqrtPriceQ96_NonPositive(t *testing.T) {
	assert.True(t, PriceToSqrtPriceQ96(0).IsZero())
	assert.True(t, PriceToSqrtPriceQ96(-1).IsZero())
}

func TestDeterministicAcrossCalls(t *testing.T) {
	a := uint256.NewInt(123456789)
	b := uint256.NewInt(987654321)
	d := uint256.NewInt(555555)

	first := MulDiv(a, b, d)
	for i := 0; i < 100; i++ {
		got := MulDiv(a, b, d)
		assert.True(t, got.Eq(first))
	}
}
