// Package detector discovers cross-venue and triangular arbitrage
// candidates over a live pool graph, with freshness/liquidity gating and a
// sweeper that evicts stale opportunities.
//
// Triangular cycle detection tracks flow direction through each hop: a
// pool's quote only multiplies cleanly into a running cycle product when
// taken on the side that matches the token actually flowing through it, so
// each hop looks up price0To1 or price1To0 depending on whether the
// current token is that pool's token0 or token1. A naive product of raw
// price0To1 values only closes correctly for cycles that happen to always
// move token0 into token1.
package detector

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgewatch/arbcore/internal/arbmodel"
	"github.com/edgewatch/arbcore/internal/poolgraph"
)

// Config holds the detector's tunable thresholds, sourced from the
// Detector section of the environment/configuration surface.
type Config struct {
	MinSpreadBps           float64
	FreshnessWindow        time.Duration
	MaxPathLength          int
	StaleThreshold         time.Duration
	GasEstimateUsd         float64
	SlippageBpsEstimate    float64
	CompetitionDiscountBps float64
	MinLiquidityUsd        float64
}

// DefaultConfig matches the documented defaults.
func DefaultConfig() Config {
	return Config{
		MinSpreadBps:           10,
		FreshnessWindow:        5 * time.Second,
		MaxPathLength:          3,
		StaleThreshold:         10 * time.Second,
		GasEstimateUsd:         5,
		SlippageBpsEstimate:    5,
		CompetitionDiscountBps: 2,
		MinLiquidityUsd:        1_000,
	}
}

// Detector holds the active opportunity set and the pool graph it reads
// from. Only OnSwapEvent/Sweep mutate the active set; everything else is a
// read.
type Detector struct {
	mu        sync.Mutex
	graph     *poolgraph.Graph
	cfg       Config
	active    map[uuid.UUID]arbmodel.Opportunity
	createdAt map[uuid.UUID]time.Time
}

// New returns a Detector reading from graph.
func New(graph *poolgraph.Graph, cfg Config) *Detector {
	return &Detector{
		graph:     graph,
		cfg:       cfg,
		active:    make(map[uuid.UUID]arbmodel.Opportunity),
		createdAt: make(map[uuid.UUID]time.Time),
	}
}

// OnSwapEvent re-scans the pool ref updated by one swap event for both
// opportunity kinds, registers any found, and returns them.
func (d *Detector) OnSwapEvent(ref arbmodel.PoolRef, usdRates map[string]float64, now time.Time) []arbmodel.Opportunity {
	found := d.detectCrossVenue(ref, usdRates, now)
	found = append(found, d.detectTriangular(ref, usdRates, now)...)

	d.mu.Lock()
	for _, o := range found {
		d.active[o.ID] = o
		d.createdAt[o.ID] = now
	}
	d.mu.Unlock()

	return found
}

// Sweep evicts opportunities older than cfg.StaleThreshold and returns the
// count evicted.
func (d *Detector) Sweep(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	evicted := 0
	for id, createdAt := range d.createdAt {
		if now.Sub(createdAt) > d.cfg.StaleThreshold {
			delete(d.active, id)
			delete(d.createdAt, id)
			evicted++
		}
	}
	return evicted
}

// Active returns a snapshot of the currently tracked opportunities.
func (d *Detector) Active() []arbmodel.Opportunity {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]arbmodel.Opportunity, 0, len(d.active))
	for _, o := range d.active {
		out = append(out, o)
	}
	return out
}

// detectCrossVenue compares ref's price against every other pool on the
// same token pair and emits a 2-hop opportunity for spreads that clear
// MinSpreadBps after a conservative gas/slippage/competition discount.
func (d *Detector) detectCrossVenue(ref arbmodel.PoolRef, usdRates map[string]float64, now time.Time) []arbmodel.Opportunity {
	state, ok := d.graph.Get(ref)
	if !ok {
		return nil
	}
	mine, ok := d.graph.Price(ref)
	if !ok || !mine.Fresh(now, d.cfg.FreshnessWindow) {
		return nil
	}
	usdRate := usdRates[state.Token0]
	if usdRate <= 0 {
		usdRate = 1
	}

	others := d.graph.PoolsForPair(state.Token0, state.Token1)
	var out []arbmodel.Opportunity

	for _, other := range others {
		if other.Ref == ref {
			continue
		}
		otherPrice, ok := d.graph.Price(other.Ref)
		if !ok || !otherPrice.Fresh(now, d.cfg.FreshnessWindow) {
			continue
		}
		if mine.Price0To1 <= 0 || otherPrice.Price0To1 <= 0 {
			continue
		}

		spreadBps := relativeSpreadBps(mine.Price0To1, otherPrice.Price0To1)
		if spreadBps < d.cfg.MinSpreadBps {
			continue
		}

		cheap, expensive := ref, other.Ref
		cheapPrice, expensivePrice := mine, otherPrice
		if otherPrice.Price0To1 < mine.Price0To1 {
			cheap, expensive = other.Ref, ref
			cheapPrice, expensivePrice = otherPrice, mine
		}

		netBps := spreadBps - d.cfg.SlippageBpsEstimate - d.cfg.CompetitionDiscountBps
		minLiquidityUsd := math.Min(cheapPrice.Liquidity, expensivePrice.Liquidity) * usdRate
		sizeUsd := math.Min(minLiquidityUsd*0.01, 100_000)
		profitUsd := netBps/1e4*sizeUsd - d.cfg.GasEstimateUsd
		if profitUsd <= 0 || minLiquidityUsd < d.cfg.MinLiquidityUsd {
			continue
		}

		out = append(out, arbmodel.Opportunity{
			ID:               uuid.New(),
			Type:             arbmodel.OpportunityCrossVenue,
			Path:             []arbmodel.PoolRef{cheap, expensive},
			ProfitUsd:        profitUsd,
			SizeOptUsd:       sizeUsd,
			MinSize:          0,
			MaxSize:          minLiquidityUsd * 0.01,
			GasUsd:           d.cfg.GasEstimateUsd,
			Confidence:       math.Min(cheapPrice.Confidence, expensivePrice.Confidence),
			CompetitionLevel: 0,
			Timestamp:        now,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Path[0].Address != out[j].Path[0].Address {
			return out[i].Path[0].Address < out[j].Path[0].Address
		}
		return out[i].ProfitUsd > out[j].ProfitUsd
	})
	return out
}

// relativeSpreadBps returns the relative spread between two prices in bps.
func relativeSpreadBps(a, b float64) float64 {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo <= 0 {
		return 0
	}
	return (hi - lo) / lo * 10_000
}

// detectTriangular runs a bounded DFS for cycles back to the updated
// pool's tokens, up to cfg.MaxPathLength hops, tracking visited pools to
// avoid reuse within one cycle.
func (d *Detector) detectTriangular(ref arbmodel.PoolRef, usdRates map[string]float64, now time.Time) []arbmodel.Opportunity {
	state, ok := d.graph.Get(ref)
	if !ok {
		return nil
	}

	var out []arbmodel.Opportunity
	for _, startToken := range []string{state.Token0, state.Token1} {
		visited := make(map[string]bool)
		out = append(out, d.searchCycles(startToken, startToken, nil, visited, 1.0, 0, 0, usdRates, now)...)
	}
	return dedupeByPath(out)
}

func (d *Detector) searchCycles(
	currentToken, startToken string,
	path []arbmodel.PoolRef,
	visited map[string]bool,
	priceProduct float64,
	feeBpsAccum float64,
	depth int,
	usdRates map[string]float64,
	now time.Time,
) []arbmodel.Opportunity {
	if depth >= d.cfg.MaxPathLength {
		return nil
	}

	var out []arbmodel.Opportunity
	for _, pool := range d.graph.PoolsForToken(currentToken) {
		key := poolgraph.PoolKey(pool.Ref)
		if visited[key] {
			continue
		}
		price, ok := d.graph.Price(pool.Ref)
		if !ok || !price.Fresh(now, d.cfg.FreshnessWindow) {
			continue
		}

		var hopPrice float64
		var nextToken string
		if pool.Token0 == currentToken {
			hopPrice = price.Price0To1
			nextToken = pool.Token1
		} else {
			hopPrice = price.Price1To0
			nextToken = pool.Token0
		}
		if hopPrice <= 0 {
			continue
		}

		nextProduct := priceProduct * hopPrice
		nextFeeBps := feeBpsAccum + float64(pool.FeeTierBps)
		nextPath := append(append([]arbmodel.PoolRef{}, path...), pool.Ref)

		if nextToken == startToken && len(nextPath) >= 2 {
			if opp, ok := d.buildTriangularOpportunity(nextPath, nextProduct, nextFeeBps, usdRates, now); ok {
				out = append(out, opp)
			}
			continue
		}

		visited[key] = true
		out = append(out, d.searchCycles(nextToken, startToken, nextPath, visited, nextProduct, nextFeeBps, depth+1, usdRates, now)...)
		delete(visited, key)
	}
	return out
}

// buildTriangularOpportunity turns a closed cycle into an Opportunity if
// its estimated profit, after gas, is positive.
func (d *Detector) buildTriangularOpportunity(path []arbmodel.PoolRef, priceProduct, feeBpsAccum float64, usdRates map[string]float64, now time.Time) (arbmodel.Opportunity, bool) {
	grossBps := (priceProduct - 1) * 10_000
	netBps := grossBps - feeBpsAccum - d.cfg.SlippageBpsEstimate - d.cfg.CompetitionDiscountBps
	if netBps <= 0 {
		return arbmodel.Opportunity{}, false
	}

	minLiquidityUsd := math.Inf(1)
	confidence := 1.0
	for _, ref := range path {
		state, ok := d.graph.Get(ref)
		if !ok {
			return arbmodel.Opportunity{}, false
		}
		price, ok := d.graph.Price(ref)
		if !ok {
			return arbmodel.Opportunity{}, false
		}
		rate := usdRates[state.Token0]
		liquidityUsd := price.Liquidity * rate
		if liquidityUsd < minLiquidityUsd {
			minLiquidityUsd = liquidityUsd
		}
		if price.Confidence < confidence {
			confidence = price.Confidence
		}
	}
	if math.IsInf(minLiquidityUsd, 1) || minLiquidityUsd < d.cfg.MinLiquidityUsd {
		return arbmodel.Opportunity{}, false
	}

	maxSizeUsd := minLiquidityUsd * 0.01
	minSizeUsd := d.cfg.GasEstimateUsd / (netBps / 1e4)
	if minSizeUsd < 0 {
		minSizeUsd = 0
	}
	sizeUsd := math.Sqrt(maxSizeUsd * math.Max(minSizeUsd, 1))

	netProfitUsd := netBps/1e4*sizeUsd - d.cfg.GasEstimateUsd
	if netProfitUsd <= 0 {
		return arbmodel.Opportunity{}, false
	}

	return arbmodel.Opportunity{
		ID:         uuid.New(),
		Type:       arbmodel.OpportunityTriangular,
		Path:       append([]arbmodel.PoolRef{}, path...),
		ProfitUsd:  netProfitUsd,
		SizeOptUsd: sizeUsd,
		MinSize:    minSizeUsd,
		MaxSize:    maxSizeUsd,
		GasUsd:     d.cfg.GasEstimateUsd,
		Confidence: confidence,
		Timestamp:  now,
	}, true
}

// dedupeByPath drops duplicate cycles discovered from both starting
// tokens, keyed by the ordered sequence of pool addresses.
func dedupeByPath(opps []arbmodel.Opportunity) []arbmodel.Opportunity {
	seen := make(map[string]bool)
	out := make([]arbmodel.Opportunity, 0, len(opps))
	for _, o := range opps {
		key := ""
		for _, ref := range o.Path {
			key += ref.Address + ">"
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, o)
	}
	return out
}
