// Package poolgraph maintains the live pool ↔ token-pair indices and the
// per-pool price cache the detector and coordinator read from. Every swap
// event replaces a pool's state atomically under a brief exclusion so
// readers never observe torn state; longer-lived reads work off snapshots
// taken under that same lock.
package poolgraph

import (
	"math"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"github.com/edgewatch/arbcore/internal/arbmodel"
	"github.com/edgewatch/arbcore/internal/fixedpoint"
)

// smallTradeUsdFloor is the notional below which a swap's implied price
// move is treated as low-confidence noise rather than genuine price
// discovery.
const smallTradeUsdFloor = 50.0

// highImpactBpsThreshold marks swaps whose own price impact is large
// enough that the resulting quote is discounted.
const highImpactBpsThreshold = 100.0

// Graph indexes pools by address and by (token0, token1) pair, and derives
// a PricePoint on every update.
type Graph struct {
	mu      sync.RWMutex
	byKey   map[string]arbmodel.PoolState
	byPair  map[string]map[string]struct{} // pairKey -> set of pool keys
	byToken map[string]map[string]struct{} // token -> set of pool keys
	prices  map[string]arbmodel.PricePoint
	mirror  *RedisMirror
}

// New returns an empty Graph with no Redis mirroring.
func New() *Graph {
	return &Graph{
		byKey:   make(map[string]arbmodel.PoolState),
		byPair:  make(map[string]map[string]struct{}),
		byToken: make(map[string]map[string]struct{}),
		prices:  make(map[string]arbmodel.PricePoint),
	}
}

// NewWithMirror returns an empty Graph that publishes every derived
// PricePoint to mirror in addition to the in-process index. A nil mirror
// behaves exactly like New.
func NewWithMirror(mirror *RedisMirror) *Graph {
	g := New()
	g.mirror = mirror
	return g
}

// PoolKey is the graph's internal identity for a pool reference.
func PoolKey(ref arbmodel.PoolRef) string {
	return ref.Venue + "|" + ref.Address
}

// PairKey canonicalizes a token pair regardless of argument order.
func PairKey(token0, token1 string) string {
	if token0 > token1 {
		token0, token1 = token1, token0
	}
	return token0 + "/" + token1
}

// Get returns the current snapshot for ref, if tracked.
func (g *Graph) Get(ref arbmodel.PoolRef) (arbmodel.PoolState, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.byKey[PoolKey(ref)]
	return s, ok
}

// Price returns the current PricePoint for ref, if tracked.
func (g *Graph) Price(ref arbmodel.PoolRef) (arbmodel.PricePoint, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.prices[PoolKey(ref)]
	return p, ok
}

// PoolsForPair returns every tracked pool for the given token pair, in no
// particular order.
func (g *Graph) PoolsForPair(token0, token1 string) []arbmodel.PoolState {
	g.mu.RLock()
	defer g.mu.RUnlock()

	keys := g.byPair[PairKey(token0, token1)]
	out := make([]arbmodel.PoolState, 0, len(keys))
	for k := range keys {
		out = append(out, g.byKey[k])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref.Address < out[j].Ref.Address })
	return out
}

// PoolsForToken returns every tracked pool with token as one of its two
// sides, sorted by address for deterministic traversal order.
func (g *Graph) PoolsForToken(token string) []arbmodel.PoolState {
	g.mu.RLock()
	defer g.mu.RUnlock()

	keys := g.byToken[token]
	out := make([]arbmodel.PoolState, 0, len(keys))
	for k := range keys {
		out = append(out, g.byKey[k])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref.Address < out[j].Ref.Address })
	return out
}

// ApplyState registers or replaces a pool's full state -- used for the
// initial observation and whenever fresh state is fetched out of band from
// a swap event (e.g. the initial PoolStateProvider.fetchState call).
func (g *Graph) ApplyState(state arbmodel.PoolState) arbmodel.PricePoint {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.applyLocked(state, 0, false)
}

// ApplySwapEvent folds one SwapEvent into the tracked pool's state, derives
// the resulting PricePoint with a swap-implied confidence penalty, and
// returns it. If the pool was not previously tracked, it is created.
func (g *Graph) ApplySwapEvent(ev arbmodel.SwapEvent, usdPerToken0 float64) arbmodel.PricePoint {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing := g.byKey[PoolKey(ev.Pool)]
	state := existing
	state.Ref = ev.Pool
	state.SqrtPriceQ96 = ev.SqrtPriceQ96
	state.Liquidity = ev.Liquidity
	state.Tick = ev.Tick
	state.LastBlock = ev.BlockNumber
	state.LastUpdatedAt = ev.Timestamp

	tradeSizeUsd := swapNotionalUsd(ev, usdPerToken0)
	impactBps := priceImpactBps(existing, state)

	return g.applyLocked(state, confidence(impactBps, tradeSizeUsd), true)
}

// applyLocked writes state and its derived price point under the caller's
// held lock. When explicitConfidence is false, confidence defaults to 1 --
// used for out-of-band full refreshes that carry no swap-impact signal.
func (g *Graph) applyLocked(state arbmodel.PoolState, conf float64, explicitConfidence bool) arbmodel.PricePoint {
	key := PoolKey(state.Ref)
	g.byKey[key] = state

	pairKey := PairKey(state.Token0, state.Token1)
	if g.byPair[pairKey] == nil {
		g.byPair[pairKey] = make(map[string]struct{})
	}
	g.byPair[pairKey][key] = struct{}{}

	for _, tok := range []string{state.Token0, state.Token1} {
		if g.byToken[tok] == nil {
			g.byToken[tok] = make(map[string]struct{})
		}
		g.byToken[tok][key] = struct{}{}
	}

	if !explicitConfidence {
		conf = 1.0
	}

	price0To1 := fixedpoint.SqrtPriceToPrice(state.SqrtPriceQ96)
	var price1To0 float64
	if price0To1 > 0 {
		price1To0 = 1 / price0To1
	}

	point := arbmodel.PricePoint{
		Pool:       state.Ref,
		Price0To1:  price0To1,
		Price1To0:  price1To0,
		Liquidity:  liquidityToFloat(state.Liquidity),
		FeeTierBps: state.FeeTierBps,
		Confidence: conf,
		ObservedAt: state.LastUpdatedAt,
	}
	if point.ObservedAt.IsZero() {
		point.ObservedAt = time.Now()
	}
	g.prices[key] = point
	if g.mirror != nil {
		// Publish off the lock: a slow or unreachable Redis instance must
		// never delay the next swap event's update.
		go g.mirror.Publish(key, point)
	}
	return point
}

// confidence penalizes high swap-implied price impact and very small
// trades, both of which make the resulting quote less trustworthy.
func confidence(impactBps, tradeSizeUsd float64) float64 {
	c := 1.0
	if impactBps > highImpactBpsThreshold {
		c *= highImpactBpsThreshold / impactBps
	}
	if tradeSizeUsd < smallTradeUsdFloor && tradeSizeUsd >= 0 {
		c *= tradeSizeUsd / smallTradeUsdFloor
	}
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}

// priceImpactBps estimates the swap's own price impact in bps by comparing
// the price before and after, when a prior state exists.
func priceImpactBps(before, after arbmodel.PoolState) float64 {
	if before.SqrtPriceQ96 == nil || before.SqrtPriceQ96.IsZero() {
		return 0
	}
	beforePrice := fixedpoint.SqrtPriceToPrice(before.SqrtPriceQ96)
	afterPrice := fixedpoint.SqrtPriceToPrice(after.SqrtPriceQ96)
	if beforePrice <= 0 {
		return 0
	}
	return math.Abs(afterPrice-beforePrice) / beforePrice * 10_000
}

// swapNotionalUsd estimates the USD size of a swap from its signed token0
// delta and a USD-per-token0 rate. Returns 0 when the rate is unknown.
func swapNotionalUsd(ev arbmodel.SwapEvent, usdPerToken0 float64) float64 {
	if usdPerToken0 <= 0 || ev.Amount0 == nil {
		return 0
	}
	amountF := uint256ToFloat(ev.Amount0) / 1e18
	return math.Abs(amountF) * usdPerToken0
}

// liquidityToFloat renders a Q-scale liquidity value into a human-scale
// float for PricePoint's observability field; never used on the exact
// swap-math path.
func liquidityToFloat(liquidity *uint256.Int) float64 {
	if liquidity == nil {
		return 0
	}
	return uint256ToFloat(liquidity) / 1e18
}

func uint256ToFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f := new(big.Float).SetPrec(256).SetInt(v.ToBig())
	out, _ := f.Float64()
	return out
}
