package detector

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgewatch/arbcore/internal/arbmodel"
	"github.com/edgewatch/arbcore/internal/fixedpoint"
	"github.com/edgewatch/arbcore/internal/poolgraph"
)

// deepLiquidity is 5e24 raw liquidity (5,000,000 after the graph's 1e18
// scaling), so 1% of it is a trade size large enough to clear gas.
var deepLiquidity = new(uint256.Int).Mul(uint256.NewInt(5_000_000), uint256.NewInt(1_000_000_000_000_000_000))

func poolState(addr, token0, token1 string, price float64, liquidity *uint256.Int) arbmodel.PoolState {
	return arbmodel.PoolState{
		Ref:          arbmodel.PoolRef{Address: addr, Venue: "uniswap-v3"},
		Token0:       token0,
		Token1:       token1,
		SqrtPriceQ96: fixedpoint.PriceToSqrtPriceQ96(price),
		Liquidity:    new(uint256.Int).Set(liquidity),
		FeeTierBps:   30,
	}
}

// TestDetectCrossVenue_ScenarioE mirrors the spec's cross-venue detection
// scenario: two fresh pools on the same pair with a 25 bps spread should
// produce exactly one opportunity, ordered buy-cheap/sell-expensive, with
// positive net profit after gas.
func TestDetectCrossVenue_ScenarioE(t *testing.T) {
	g := poolgraph.New()
	now := time.Now()

	cheap := poolState("0xAAA", "USDC", "WETH", 1.0000, deepLiquidity)
	expensive := poolState("0xBBB", "USDC", "WETH", 1.0025, deepLiquidity)

	cheap.LastUpdatedAt = now
	expensive.LastUpdatedAt = now
	g.ApplyState(cheap)
	g.ApplyState(expensive)

	d := New(g, DefaultConfig())
	usdRates := map[string]float64{"USDC": 1.0, "WETH": 1.0}

	found := d.OnSwapEvent(cheap.Ref, usdRates, now)

	var crossVenue []arbmodel.Opportunity
	for _, o := range found {
		if o.Type == arbmodel.OpportunityCrossVenue {
			crossVenue = append(crossVenue, o)
		}
	}
	require.Len(t, crossVenue, 1)

	opp := crossVenue[0]
	assert.Equal(t, cheap.Ref, opp.Path[0])
	assert.Equal(t, expensive.Ref, opp.Path[1])
	assert.Greater(t, opp.ProfitUsd, 0.0)
}

func TestDetectCrossVenue_NoOpportunityBelowMinSpread(t *testing.T) {
	g := poolgraph.New()
	now := time.Now()

	a := poolState("0xAAA", "USDC", "WETH", 1.0000, deepLiquidity)
	b := poolState("0xBBB", "USDC", "WETH", 1.0001, deepLiquidity)
	a.LastUpdatedAt, b.LastUpdatedAt = now, now
	g.ApplyState(a)
	g.ApplyState(b)

	d := New(g, DefaultConfig())
	found := d.OnSwapEvent(a.Ref, map[string]float64{"USDC": 1, "WETH": 1}, now)

	for _, o := range found {
		assert.NotEqual(t, arbmodel.OpportunityCrossVenue, o.Type)
	}
}

func TestDetectCrossVenue_SkipsStalePrices(t *testing.T) {
	g := poolgraph.New()
	now := time.Now()

	a := poolState("0xAAA", "USDC", "WETH", 1.0000, deepLiquidity)
	b := poolState("0xBBB", "USDC", "WETH", 1.0025, deepLiquidity)
	a.LastUpdatedAt = now
	b.LastUpdatedAt = now.Add(-time.Hour)
	g.ApplyState(a)
	g.ApplyState(b)

	d := New(g, DefaultConfig())
	found := d.OnSwapEvent(a.Ref, map[string]float64{"USDC": 1, "WETH": 1}, now)

	for _, o := range found {
		assert.NotEqual(t, arbmodel.OpportunityCrossVenue, o.Type)
	}
}

func TestSweep_EvictsStaleOpportunities(t *testing.T) {
	g := poolgraph.New()
	now := time.Now()

	a := poolState("0xAAA", "USDC", "WETH", 1.0000, deepLiquidity)
	b := poolState("0xBBB", "USDC", "WETH", 1.0025, deepLiquidity)
	a.LastUpdatedAt, b.LastUpdatedAt = now, now
	g.ApplyState(a)
	g.ApplyState(b)

	cfg := DefaultConfig()
	cfg.StaleThreshold = 1 * time.Millisecond
	d := New(g, cfg)
	d.OnSwapEvent(a.Ref, map[string]float64{"USDC": 1, "WETH": 1}, now)

	require.NotEmpty(t, d.Active())
	evicted := d.Sweep(now.Add(time.Second))
	assert.Greater(t, evicted, 0)
	assert.Empty(t, d.Active())
}

func TestDetectTriangular_FindsCycleAcrossThreeTokens(t *testing.T) {
	g := poolgraph.New()
	now := time.Now()

	ab := poolState("0xAB", "A", "B", 2.0, deepLiquidity)
	bc := poolState("0xBC", "B", "C", 2.0, deepLiquidity)
	ca := poolState("0xCA", "C", "A", 0.3, deepLiquidity)
	for _, s := range []*arbmodel.PoolState{&ab, &bc, &ca} {
		s.LastUpdatedAt = now
	}
	g.ApplyState(ab)
	g.ApplyState(bc)
	g.ApplyState(ca)

	cfg := DefaultConfig()
	cfg.MinLiquidityUsd = 0
	d := New(g, cfg)
	usdRates := map[string]float64{"A": 1, "B": 1, "C": 1}

	found := d.OnSwapEvent(ab.Ref, usdRates, now)

	var triangular []arbmodel.Opportunity
	for _, o := range found {
		if o.Type == arbmodel.OpportunityTriangular {
			triangular = append(triangular, o)
		}
	}
	assert.NotEmpty(t, triangular)
	for _, o := range triangular {
		assert.Greater(t, o.ProfitUsd, 0.0)
		assert.LessOrEqual(t, len(o.Path), cfg.MaxPathLength)
	}
}
