// Package engine wires the pipeline together: it declares the four
// external collaborator contracts the core consumes (PoolStateProvider,
// SwapEventStream, StrategyStore, MarketPriceOracle), exposes the
// evaluate/evaluateBatch EvaluationService, and drives one swap event
// through PoolGraph, OpportunityDetector and SignalCoordinator in arrival
// order on the pipeline's single-threaded cooperative hot path.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/edgewatch/arbcore/internal/arbmodel"
	"github.com/edgewatch/arbcore/internal/detector"
	"github.com/edgewatch/arbcore/internal/evalkernel"
	"github.com/edgewatch/arbcore/internal/montecarlo"
	"github.com/edgewatch/arbcore/internal/poolgraph"
	"github.com/edgewatch/arbcore/internal/signalcoord"
	"github.com/edgewatch/arbcore/internal/validation"
)

// PoolStateProvider fetches fresh pool state and tick data out of band
// from the swap event stream.
type PoolStateProvider interface {
	FetchState(ctx context.Context, ref arbmodel.PoolRef) (arbmodel.PoolState, error)
	FetchTicks(ctx context.Context, ref arbmodel.PoolRef) ([]arbmodel.TickRecord, error)
}

// SwapEventStream yields an infinite, per-pool-ordered sequence of swap
// events, restartable from a cursor.
type SwapEventStream interface {
	Next(ctx context.Context) (arbmodel.SwapEvent, error)
}

// MarketPriceOracle resolves a USD price for a token.
type MarketPriceOracle interface {
	UsdPerToken(ctx context.Context, token string) (float64, error)
}

// OpportunityStream is the outbound, finite-only-on-shutdown sink for
// newly detected opportunities. The interface imposes no bound; the
// adapters in internal/collaborators do not cap or drop entries.
type OpportunityStream interface {
	Publish(ctx context.Context, opp arbmodel.Opportunity) error
}

// EvaluationService exposes the core's pure evaluate/evaluateBatch
// operation over validated inputs.
type EvaluationService struct {
	runMonteCarlo bool
	mcOpts        montecarlo.Options
}

// NewEvaluationService returns a service that runs Monte Carlo sampling
// alongside the closed-form kernel only when runMonteCarlo is set.
func NewEvaluationService(runMonteCarlo bool, mcOpts montecarlo.Options) *EvaluationService {
	return &EvaluationService{runMonteCarlo: runMonteCarlo, mcOpts: mcOpts}
}

// Evaluate runs the kernel (and optional Monte Carlo sampler) over one
// validated input.
func (s *EvaluationService) Evaluate(ctx context.Context, in arbmodel.ArbitrageInputs) (arbmodel.ArbitrageResult, error) {
	if err := validateInputs(in); err != nil {
		return arbmodel.ArbitrageResult{}, err
	}

	result := evalkernel.Evaluate(in)
	if s.runMonteCarlo {
		mc, err := montecarlo.Run(ctx, in, result.SizeOptUsd, result.Breakdown.EdgeEffBps, result.PSuccess, result.SlipBpsEff, s.mcOpts)
		if err == nil {
			v, c := mc.VaR95, mc.CVaR95
			result.VaR95, result.CVaR95 = &v, &c
		} else if ctx.Err() != nil {
			return arbmodel.ArbitrageResult{}, ctx.Err()
		}
	}
	return result, nil
}

// EvaluateBatch evaluates every input in order, returning a result or a
// per-item error for each -- a malformed item never aborts the rest of
// the batch.
func (s *EvaluationService) EvaluateBatch(ctx context.Context, inputs []arbmodel.ArbitrageInputs) ([]arbmodel.ArbitrageResult, []*arbmodel.ItemError) {
	results := make([]arbmodel.ArbitrageResult, len(inputs))
	errs := make([]*arbmodel.ItemError, len(inputs))

	for i, in := range inputs {
		result, err := s.Evaluate(ctx, in)
		if err != nil {
			errs[i] = &arbmodel.ItemError{Index: i, Message: err.Error()}
			continue
		}
		results[i] = result
	}
	return results, errs
}

func validateInputs(in arbmodel.ArbitrageInputs) error {
	v := validation.NewArbitrageInputsValidator()
	v.ValidateNotional(in.NotionalUsd)
	v.ValidateCapital(in.CapitalUsd)
	v.ValidateEdgeBps(in.EdgeBps)
	v.ValidateFailureProbs(in.Failures.FailBefore, in.Failures.FailBetween, in.Failures.ReorgOrMev)
	v.ValidateLatency(in.Latency.LatencySec, in.Latency.BaseFillProb)
	if v.HasErrors() {
		return fmt.Errorf("%w: %s", arbmodel.ErrInputInvalid, v.Errors().Error())
	}
	return nil
}

// Pipeline drives one swap event through the graph/detector/coordinator
// chain, then publishes any newly created opportunities. It owns no
// goroutines; the caller's cooperative loop drives ProcessEvent per event
// and Tick on its timer.
type Pipeline struct {
	graph    *poolgraph.Graph
	detector *detector.Detector
	coord    *signalcoord.Coordinator
	oracle   MarketPriceOracle
	stream   OpportunityStream
}

// NewPipeline wires graph, detector and coord together behind oracle (for
// USD rate lookups) and stream (for publishing newly found opportunities).
func NewPipeline(graph *poolgraph.Graph, det *detector.Detector, coord *signalcoord.Coordinator, oracle MarketPriceOracle, stream OpportunityStream) *Pipeline {
	return &Pipeline{graph: graph, detector: det, coord: coord, oracle: oracle, stream: stream}
}

// ProcessEvent folds one swap event into the pool graph, re-scans for
// opportunities touching the updated pool, ingresses each into the
// coordinator, and publishes them on the opportunity stream -- all before
// the caller drains the next event, preserving per-event ordering.
func (p *Pipeline) ProcessEvent(ctx context.Context, ev arbmodel.SwapEvent, now time.Time) error {
	state, _ := p.graph.Get(ev.Pool)
	usdPerToken0, err := p.oracle.UsdPerToken(ctx, state.Token0)
	if err != nil {
		usdPerToken0 = 0
	}
	p.graph.ApplySwapEvent(ev, usdPerToken0)

	usdRates := map[string]float64{}
	if usdPerToken0 > 0 {
		usdRates[state.Token0] = usdPerToken0
	}

	found := p.detector.OnSwapEvent(ev.Pool, usdRates, now)
	for _, opp := range found {
		if err := p.coord.Ingress(ctx, opp, now); err != nil {
			return err
		}
		if err := p.stream.Publish(ctx, opp); err != nil {
			return err
		}
	}
	return nil
}

// Tick runs the coordinator's re-evaluation pass and the detector's
// sweeper eviction together, so both share the one cadence at which the
// caller's scheduler calls it (cmd/api: every coordinator.valid_for_seconds).
func (p *Pipeline) Tick(ctx context.Context, now time.Time) error {
	if err := p.coord.Reevaluate(ctx, now); err != nil {
		return err
	}
	p.detector.Sweep(now)
	return nil
}
