package univ3

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgewatch/arbcore/internal/arbmodel"
	"github.com/edgewatch/arbcore/internal/fixedpoint"
)

// e18 scales a whole-token amount into wei-like base units.
func e18(units uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(units), new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18)))
}

func basePool() (sqrtPriceQ96, liquidity *uint256.Int) {
	sqrtPriceQ96 = fixedpoint.Resolution96() // price == 1
	liquidity = new(uint256.Int).Mul(uint256.NewInt(1_000_000), fixedpoint.Resolution96())
	return
}

func TestSimulate_SlippageIncreasesWithSize(t *testing.T) {
	sqrtP, liquidity := basePool()

	sizes := []uint64{10, 100, 1000}
	var slips []float64
	for _, sz := range sizes {
		res := Simulate(SwapParams{
			StartSqrtPriceQ96: sqrtP,
			LiquidityInRange:  liquidity,
			FeeTierBps:        30,
			AmountIn:          e18(sz),
			ZeroForOne:        true,
		})
		require.Greater(t, res.SlipBps, 0.0, "size %d should carry positive slippage", sz)
		slips = append(slips, res.SlipBps)
	}

	for i := 1; i < len(slips); i++ {
		assert.Greater(t, slips[i], slips[i-1], "slippage must strictly increase with notional size")
	}
}

func TestSimulate_FeeTierMonotonicity(t *testing.T) {
	sqrtP, liquidity := basePool()

	low := Simulate(SwapParams{
		StartSqrtPriceQ96: sqrtP,
		LiquidityInRange:  liquidity,
		FeeTierBps:        5,
		AmountIn:          e18(100),
		ZeroForOne:        true,
	})
	high := Simulate(SwapParams{
		StartSqrtPriceQ96: sqrtP,
		LiquidityInRange:  liquidity,
		FeeTierBps:        100,
		AmountIn:          e18(100),
		ZeroForOne:        true,
	})

	assert.Greater(t, high.SlipBps, low.SlipBps, "higher fee tier must produce higher realized slippage")
}

func TestSimulate_AmountOutNeverExceedsMidValue(t *testing.T) {
	sqrtP, liquidity := basePool()
	amountIn := e18(500)

	res := Simulate(SwapParams{
		StartSqrtPriceQ96: sqrtP,
		LiquidityInRange:  liquidity,
		FeeTierBps:        30,
		AmountIn:          amountIn,
		ZeroForOne:        true,
	})

	mid := fixedpoint.SqrtPriceToPrice(sqrtP)
	maxOut := new(uint256.Int).Mul(amountIn, uint256.NewInt(uint64(mid)+1))
	assert.True(t, res.AmountOut.Cmp(maxOut) <= 0, "amountOut must not exceed amountIn*midPrice")
}

func TestSimulate_EmptyTickMapDegradesToNoCross(t *testing.T) {
	sqrtP, liquidity := basePool()

	assert.NotPanics(t, func() {
		res := Simulate(SwapParams{
			StartSqrtPriceQ96: sqrtP,
			LiquidityInRange:  liquidity,
			FeeTierBps:        30,
			AmountIn:          e18(1),
			ZeroForOne:        false,
			SortedTicks:       nil,
		})
		assert.True(t, res.AmountOut.Sign() > 0)
	})
}

func TestSimulate_ZeroLiquidityIsDegenerate(t *testing.T) {
	sqrtP, _ := basePool()

	res := Simulate(SwapParams{
		StartSqrtPriceQ96: sqrtP,
		LiquidityInRange:  uint256.NewInt(0),
		FeeTierBps:        30,
		AmountIn:          e18(1),
		ZeroForOne:        true,
	})

	assert.Equal(t, 0.0, res.SlipBps)
	assert.True(t, res.AmountOut.IsZero())
	assert.True(t, res.NewSqrtPriceQ96.Eq(sqrtP))
}

func TestSimulate_NilInputsNeverPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		res := Simulate(SwapParams{})
		assert.True(t, res.AmountOut.IsZero())
	})
}

func TestSimulate_CrossesTickBoundaryWithoutPanicking(t *testing.T) {
	sqrtP, liquidity := basePool()

	lowerTick := arbmodel.TickRecord{
		Index:        -600,
		LiquidityNet: -int64(liquidity.Uint64()) / 2,
		SqrtPriceQ96: fixedpoint.PriceToSqrtPriceQ96(0.94),
	}
	upperTick := arbmodel.TickRecord{
		Index:        600,
		LiquidityNet: int64(liquidity.Uint64()) / 2,
		SqrtPriceQ96: fixedpoint.PriceToSqrtPriceQ96(1.06),
	}

	require.NotPanics(t, func() {
		res := Simulate(SwapParams{
			StartSqrtPriceQ96: sqrtP,
			LiquidityInRange:  liquidity,
			FeeTierBps:        30,
			AmountIn:          e18(2_000_000),
			ZeroForOne:        true,
			SortedTicks:       []arbmodel.TickRecord{lowerTick, upperTick},
		})
		assert.True(t, res.AmountOut.Sign() > 0)
		assert.True(t, res.NewSqrtPriceQ96.Cmp(sqrtP) < 0, "price should fall when selling token0 into the pool")
	})
}

func TestSimulate_IterationCapNeverPanics(t *testing.T) {
	sqrtP, liquidity := basePool()

	ticks := make([]arbmodel.TickRecord, 0, 400)
	for i := int32(1); i <= 400; i++ {
		ticks = append(ticks, arbmodel.TickRecord{
			Index:        i * 10,
			LiquidityNet: 1,
			SqrtPriceQ96: fixedpoint.PriceToSqrtPriceQ96(1.0 + float64(i)*0.0001),
		})
	}

	assert.NotPanics(t, func() {
		res := Simulate(SwapParams{
			StartSqrtPriceQ96: sqrtP,
			LiquidityInRange:  liquidity,
			FeeTierBps:        30,
			AmountIn:          e18(50),
			ZeroForOne:        false,
			SortedTicks:       ticks,
		})
		assert.NotNil(t, res.NewSqrtPriceQ96)
	})
}
