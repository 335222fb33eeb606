// Package signalcoord implements the SignalCoordinator: it turns detected
// opportunities into gated, scored signals, holds the active signal set,
// re-evaluates it on a caller-driven tick, and emits lifecycle events on a
// bounded, oldest-drop stream.
package signalcoord

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgewatch/arbcore/internal/arbmodel"
	"github.com/edgewatch/arbcore/internal/evalkernel"
	"github.com/edgewatch/arbcore/internal/gate"
	"github.com/edgewatch/arbcore/internal/montecarlo"
)

// signalValidFor is how long a freshly scored signal remains valid before
// the re-evaluation loop must refresh or expire it.
const signalValidFor = 5 * time.Second

// eventStreamCap bounds the outbound lifecycle stream; once full, the
// oldest queued event is dropped to make room for the newest one.
const eventStreamCap = 1024

// InputBuilder turns a detected opportunity into the evaluation kernel's
// input shape -- fee schedule, friction estimates, the slippage model for
// that opportunity's venue/path. It is declared here, not in detector or
// poolgraph, since only the coordinator needs this mapping and it is the
// natural seam for a venue-specific adapter.
type InputBuilder interface {
	Build(ctx context.Context, opp arbmodel.Opportunity) (arbmodel.ArbitrageInputs, error)
}

// Config holds the coordinator's tunable thresholds and Monte Carlo
// dispatch policy.
type Config struct {
	MaxOpenSignals  int
	MinNetProfitUsd float64
	MaxRiskScore    float64
	RunMonteCarlo   bool
	MonteCarloOpts  montecarlo.Options
}

// DefaultConfig matches the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxOpenSignals:  500,
		MinNetProfitUsd: 5,
		MaxRiskScore:    0.6,
		RunMonteCarlo:   false,
	}
}

// Coordinator is the signal pipeline's stateful core. PoolGraph/PriceCache
// and the active-signal set are mutated only through its exported methods,
// which callers are expected to invoke from a single cooperative loop;
// Coordinator itself does not spawn goroutines or own any timer.
type Coordinator struct {
	mu       sync.Mutex
	active   map[uuid.UUID]*arbmodel.Signal
	inputs   map[uuid.UUID]arbmodel.ArbitrageInputs
	executed map[uuid.UUID]bool
	dropped  uint64

	cfg     Config
	builder InputBuilder
	store   gate.StrategyStore

	events chan arbmodel.SignalEvent
}

// New returns a Coordinator backed by builder for input construction and
// store for strategy lookups.
func New(builder InputBuilder, store gate.StrategyStore, cfg Config) *Coordinator {
	return &Coordinator{
		active:   make(map[uuid.UUID]*arbmodel.Signal),
		inputs:   make(map[uuid.UUID]arbmodel.ArbitrageInputs),
		executed: make(map[uuid.UUID]bool),
		cfg:      cfg,
		builder:  builder,
		store:    store,
		events:   make(chan arbmodel.SignalEvent, eventStreamCap),
	}
}

// Events returns the coordinator's outbound signal lifecycle stream.
func (c *Coordinator) Events() <-chan arbmodel.SignalEvent { return c.events }

// Dropped returns the number of lifecycle events dropped so far due to the
// bounded stream filling up.
func (c *Coordinator) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Active returns a snapshot of the currently tracked signals.
func (c *Coordinator) Active() []arbmodel.Signal {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]arbmodel.Signal, 0, len(c.active))
	for _, s := range c.active {
		out = append(out, *s)
	}
	return out
}

// Ingress evaluates one opportunity into a signal. Already-executed
// opportunities are ignored; once activeSignals reaches MaxOpenSignals,
// new opportunity ids are dropped but an id already tracked may still be
// refreshed (re-ingress on a repeat swap event for the same path).
func (c *Coordinator) Ingress(ctx context.Context, opp arbmodel.Opportunity, now time.Time) error {
	c.mu.Lock()
	if c.executed[opp.ID] {
		c.mu.Unlock()
		return nil
	}
	_, tracked := c.active[opp.ID]
	full := len(c.active) >= c.cfg.MaxOpenSignals
	c.mu.Unlock()
	if full && !tracked {
		return nil
	}

	inputs, err := c.builder.Build(ctx, opp)
	if err != nil {
		return err
	}

	decision, err := gate.Lookup(ctx, c.store, opp.Type, nil)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		signal := &arbmodel.Signal{
			Opportunity:    opp,
			ShouldExecute:  false,
			ValidUntil:     now.Add(signalValidFor),
			GateReasonCode: decision.ReasonCode,
		}
		c.record(signal, inputs, now)
		return nil
	}

	inputs = applyStrategyParams(inputs, decision.Params)
	result := evalkernel.Evaluate(inputs)

	var cvar *float64
	if c.cfg.RunMonteCarlo {
		mc, err := montecarlo.Run(ctx, inputs, result.SizeOptUsd, result.Breakdown.EdgeEffBps, result.PSuccess, result.SlipBpsEff, c.cfg.MonteCarloOpts)
		if err == nil {
			v, cv := mc.VaR95, mc.CVaR95
			result.VaR95, result.CVaR95 = &v, &cv
			cvar = &cv
		}
	}

	signal := &arbmodel.Signal{
		Opportunity:    opp,
		Result:         result,
		StrategyID:     decision.StrategyID,
		GateReasonCode: decision.ReasonCode,
		ValidUntil:     now.Add(signalValidFor),
	}
	scoreSignal(signal, opp, result, cvar, c.cfg)
	c.record(signal, inputs, now)
	return nil
}

// Reevaluate re-scores every active signal with the last inputs built for
// it, then expires anything past ValidUntil. Called from the caller's
// cooperative scheduler; cmd/api reaches it through engine.Pipeline.Tick
// every coordinator.valid_for_seconds.
func (c *Coordinator) Reevaluate(ctx context.Context, now time.Time) error {
	c.mu.Lock()
	ids := make([]uuid.UUID, 0, len(c.active))
	for id := range c.active {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		c.mu.Lock()
		signal, ok := c.active[id]
		inputs, haveInputs := c.inputs[id]
		c.mu.Unlock()
		if !ok {
			continue
		}
		if now.After(signal.ValidUntil) {
			c.expire(id, now)
			continue
		}
		if !haveInputs {
			continue
		}

		result := evalkernel.Evaluate(inputs)
		var cvar *float64
		if c.cfg.RunMonteCarlo {
			mc, err := montecarlo.Run(ctx, inputs, result.SizeOptUsd, result.Breakdown.EdgeEffBps, result.PSuccess, result.SlipBpsEff, c.cfg.MonteCarloOpts)
			if err == nil {
				v, cv := mc.VaR95, mc.CVaR95
				result.VaR95, result.CVaR95 = &v, &cv
				cvar = &cv
			}
		}

		c.mu.Lock()
		updated := *signal
		updated.Result = result
		updated.ValidUntil = now.Add(signalValidFor)
		scoreSignal(&updated, signal.Opportunity, result, cvar, c.cfg)
		c.active[id] = &updated
		c.mu.Unlock()

		c.emit(arbmodel.SignalEvent{Kind: arbmodel.SignalUpdated, Signal: updated, At: now})
	}
	return nil
}

// Sweep expires every active signal whose ValidUntil has passed and
// returns the count expired. Intended as the standalone sweeper tick when
// Reevaluate is not run on the same cadence.
func (c *Coordinator) Sweep(now time.Time) int {
	c.mu.Lock()
	ids := make([]uuid.UUID, 0)
	for id, s := range c.active {
		if now.After(s.ValidUntil) {
			ids = append(ids, id)
		}
	}
	c.mu.Unlock()

	for _, id := range ids {
		c.expire(id, now)
	}
	return len(ids)
}

// MarkExecuted records an opportunity as executed, removes its signal
// from the active set, and emits SignalExecuted with the realized profit.
func (c *Coordinator) MarkExecuted(id uuid.UUID, actualProfitUsd float64, now time.Time) {
	c.mu.Lock()
	signal, ok := c.active[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.active, id)
	delete(c.inputs, id)
	c.executed[id] = true
	c.mu.Unlock()

	profit := actualProfitUsd
	c.emit(arbmodel.SignalEvent{Kind: arbmodel.SignalExecuted, Signal: *signal, ActualProfitUsd: &profit, At: now})
}

// Dispatch returns the active signals eligible for execution, in
// priorityScore descending order, older signals first on a tie --
// matching the single-tick ordering guarantee.
func (c *Coordinator) Dispatch() []arbmodel.Signal {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]arbmodel.Signal, 0, len(c.active))
	for _, s := range c.active {
		if s.ShouldExecute {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PriorityScore != out[j].PriorityScore {
			return out[i].PriorityScore > out[j].PriorityScore
		}
		return out[i].Opportunity.Timestamp.Before(out[j].Opportunity.Timestamp)
	})
	return out
}

func (c *Coordinator) expire(id uuid.UUID, now time.Time) {
	c.mu.Lock()
	signal, ok := c.active[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.active, id)
	delete(c.inputs, id)
	c.mu.Unlock()

	c.emit(arbmodel.SignalEvent{Kind: arbmodel.SignalExpired, Signal: *signal, At: now})
}

func (c *Coordinator) record(signal *arbmodel.Signal, inputs arbmodel.ArbitrageInputs, now time.Time) {
	c.mu.Lock()
	_, existed := c.active[signal.ID()]
	c.active[signal.ID()] = signal
	c.inputs[signal.ID()] = inputs
	c.mu.Unlock()

	kind := arbmodel.SignalCreated
	if existed {
		kind = arbmodel.SignalUpdated
	}
	c.emit(arbmodel.SignalEvent{Kind: kind, Signal: *signal, At: now})
}

// emit pushes ev onto the bounded stream, dropping the oldest queued event
// when full rather than blocking the caller's cooperative loop.
func (c *Coordinator) emit(ev arbmodel.SignalEvent) {
	select {
	case c.events <- ev:
		return
	default:
	}

	select {
	case <-c.events:
	default:
	}
	c.mu.Lock()
	c.dropped++
	c.mu.Unlock()

	select {
	case c.events <- ev:
	default:
	}
}

// applyStrategyParams substitutes non-nil strategy fields into inputs,
// per-field, leaving every unset field at its existing value.
func applyStrategyParams(in arbmodel.ArbitrageInputs, p arbmodel.StrategyParams) arbmodel.ArbitrageInputs {
	if p.RiskAversionLambda != nil {
		in.RiskAversionLambda = *p.RiskAversionLambda
	}
	if p.MaxNotionalUsd != nil {
		in.CapitalUsd = math.Min(in.CapitalUsd, *p.MaxNotionalUsd)
	}
	if p.FlashEnabled != nil {
		in.FlashEnabled = *p.FlashEnabled
	}
	if p.TotalFeesBps != nil {
		in.Fees.TotalFeesBps = *p.TotalFeesBps
	}
	if p.EdgeDecayBpsSec != nil {
		in.Latency.EdgeDecayBpsSec = *p.EdgeDecayBpsSec
	}
	if p.BaseFillProb != nil {
		in.Latency.BaseFillProb = *p.BaseFillProb
	}
	return in
}

// scoreSignal computes riskScore, confidenceScore, priorityScore and the
// shouldExecute filter for signal in place.
func scoreSignal(signal *arbmodel.Signal, opp arbmodel.Opportunity, result arbmodel.ArbitrageResult, cvar95 *float64, cfg Config) {
	normalizedVariance := normalizeVariance(result.Variance, result.NetUsdEst)
	riskScore := clamp01(0.4*(1-result.PSuccess) + 0.3*opp.CompetitionLevel + 0.3*normalizedVariance)

	boost := 1.0
	if result.EvPerSec > 0 {
		boost += math.Min(0.2, result.EvPerSec/50.0*0.2)
	}
	if cvar95 != nil {
		expectedLoss := math.Max(0, -result.NetUsdEst)
		if expectedLoss > 0 && *cvar95 < -expectedLoss/2 {
			boost *= 0.8
		}
	}
	confidenceScore := clamp01(opp.Confidence * boost)

	urgency := 1.0 / (1.0 + float64(opp.LatencyBudgetMs)/1000.0)
	priorityScore := 0.5*math.Min(opp.ProfitUsd/100, 1) + 0.3*confidenceScore + 0.2*urgency

	signal.RiskScore = riskScore
	signal.ConfidenceScore = confidenceScore
	signal.PriorityScore = priorityScore
	signal.ShouldExecute = result.NetUsdEst > cfg.MinNetProfitUsd && riskScore <= cfg.MaxRiskScore
}

// normalizeVariance maps a payoff variance (in USD^2) to a bounded [0,1]
// scale relative to the evaluated size's expected value, so differently
// sized opportunities contribute a comparable risk term. A variance equal
// to the square of the expected value maps to 0.5.
func normalizeVariance(variance, evUsd float64) float64 {
	if variance <= 0 {
		return 0
	}
	ref := math.Max(1, evUsd*evUsd)
	return clamp01(variance / (variance + ref))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
