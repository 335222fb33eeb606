package signalcoord

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgewatch/arbcore/internal/arbmodel"
	"github.com/edgewatch/arbcore/internal/gate"
)

type stubBuilder struct {
	inputs arbmodel.ArbitrageInputs
	err    error
}

func (b stubBuilder) Build(_ context.Context, _ arbmodel.Opportunity) (arbmodel.ArbitrageInputs, error) {
	return b.inputs, b.err
}

type stubStore struct {
	approved []arbmodel.Strategy
}

func (s stubStore) ListApproved(_ context.Context, kind arbmodel.OpportunityKind) ([]arbmodel.Strategy, error) {
	var out []arbmodel.Strategy
	for _, st := range s.approved {
		if st.Kind == kind {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s stubStore) GetByID(_ context.Context, id uuid.UUID) (arbmodel.Strategy, bool, error) {
	for _, st := range s.approved {
		if st.ID == id {
			return st, true, nil
		}
	}
	return arbmodel.Strategy{}, false, nil
}

func profitableInputs() arbmodel.ArbitrageInputs {
	return arbmodel.ArbitrageInputs{
		EdgeBps:     50,
		NotionalUsd: 10_000,
		CapitalUsd:  10_000,
		Fees:        arbmodel.FeeSchedule{TotalFeesBps: 5},
		Frictions:   arbmodel.Frictions{GasUsdMean: 0.2, AdverseUsdMean: 0.3},
		Latency:     arbmodel.LatencyParams{LatencySec: 0.3, EdgeDecayBpsSec: 1, BaseFillProb: 0.9, Theta: 0.15},
		Slippage:    arbmodel.SlippageModel{Kind: arbmodel.SlippageEmpirical, EmpiricalK: 0.5, EmpiricalAlpha: 1.1, EmpiricalLiquidityRefUsd: 1_000_000},
		Failures:    arbmodel.FailureProbs{FailBefore: 0.02, FailBetween: 0.01},
	}
}

func approvedStore() stubStore {
	return stubStore{approved: []arbmodel.Strategy{
		{ID: uuid.New(), Kind: arbmodel.OpportunityCrossVenue, Status: arbmodel.StrategyApproved, UpdatedAt: time.Now()},
	}}
}

func sampleOpportunity() arbmodel.Opportunity {
	return arbmodel.Opportunity{
		ID:              uuid.New(),
		Type:            arbmodel.OpportunityCrossVenue,
		ProfitUsd:       120,
		Confidence:      0.9,
		CompetitionLevel: 0.1,
		LatencyBudgetMs: 200,
		Timestamp:       time.Now(),
	}
}

func TestIngress_ApprovedStrategyProducesCreatedSignal(t *testing.T) {
	coord := New(stubBuilder{inputs: profitableInputs()}, approvedStore(), DefaultConfig())
	opp := sampleOpportunity()

	err := coord.Ingress(context.Background(), opp, time.Now())
	require.NoError(t, err)

	active := coord.Active()
	require.Len(t, active, 1)
	assert.Equal(t, opp.ID, active[0].ID())
	assert.GreaterOrEqual(t, active[0].PriorityScore, 0.0)

	select {
	case ev := <-coord.Events():
		assert.Equal(t, arbmodel.SignalCreated, ev.Kind)
	default:
		t.Fatal("expected a SignalCreated event")
	}
}

func TestIngress_GateDenialRecordsNonExecutableSignal(t *testing.T) {
	coord := New(stubBuilder{inputs: profitableInputs()}, stubStore{}, DefaultConfig())
	opp := sampleOpportunity()

	err := coord.Ingress(context.Background(), opp, time.Now())
	require.NoError(t, err)

	active := coord.Active()
	require.Len(t, active, 1)
	assert.False(t, active[0].ShouldExecute)
	assert.Equal(t, gate.ReasonNoApprovedStrategy, active[0].GateReasonCode)
}

func TestIngress_DropsWhenOverCapacityForNewID(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxOpenSignals = 1
	coord := New(stubBuilder{inputs: profitableInputs()}, approvedStore(), cfg)

	first := sampleOpportunity()
	require.NoError(t, coord.Ingress(context.Background(), first, time.Now()))

	second := sampleOpportunity()
	require.NoError(t, coord.Ingress(context.Background(), second, time.Now()))

	assert.Len(t, coord.Active(), 1)
}

func TestIngress_AlreadyExecutedOpportunityIgnored(t *testing.T) {
	coord := New(stubBuilder{inputs: profitableInputs()}, approvedStore(), DefaultConfig())
	opp := sampleOpportunity()
	require.NoError(t, coord.Ingress(context.Background(), opp, time.Now()))

	coord.MarkExecuted(opp.ID, 42, time.Now())
	assert.Empty(t, coord.Active())

	require.NoError(t, coord.Ingress(context.Background(), opp, time.Now()))
	assert.Empty(t, coord.Active())
}

func TestReevaluate_ExpiresPastValidUntil(t *testing.T) {
	coord := New(stubBuilder{inputs: profitableInputs()}, approvedStore(), DefaultConfig())
	opp := sampleOpportunity()
	now := time.Now()
	require.NoError(t, coord.Ingress(context.Background(), opp, now))

	require.NoError(t, coord.Reevaluate(context.Background(), now.Add(10*time.Second)))
	assert.Empty(t, coord.Active())
}

func TestSweep_ExpiresStaleSignals(t *testing.T) {
	coord := New(stubBuilder{inputs: profitableInputs()}, approvedStore(), DefaultConfig())
	opp := sampleOpportunity()
	now := time.Now()
	require.NoError(t, coord.Ingress(context.Background(), opp, now))

	evicted := coord.Sweep(now.Add(10 * time.Second))
	assert.Equal(t, 1, evicted)
	assert.Empty(t, coord.Active())
}

func TestDispatch_OrdersByPriorityThenAge(t *testing.T) {
	coord := New(stubBuilder{inputs: profitableInputs()}, approvedStore(), DefaultConfig())

	low := sampleOpportunity()
	low.ProfitUsd = 10
	high := sampleOpportunity()
	high.ProfitUsd = 500

	now := time.Now()
	require.NoError(t, coord.Ingress(context.Background(), low, now))
	require.NoError(t, coord.Ingress(context.Background(), high, now))

	dispatched := coord.Dispatch()
	require.Len(t, dispatched, 2)
	assert.GreaterOrEqual(t, dispatched[0].PriorityScore, dispatched[1].PriorityScore)
}

func TestEmit_DropsOldestWhenStreamFull(t *testing.T) {
	coord := New(stubBuilder{inputs: profitableInputs()}, approvedStore(), DefaultConfig())
	for i := 0; i < eventStreamCap+5; i++ {
		coord.emit(arbmodel.SignalEvent{Kind: arbmodel.SignalCreated, At: time.Now()})
	}
	assert.Equal(t, uint64(5), coord.Dropped())
}

func TestScoreSignal_ShouldExecuteRespectsThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinNetProfitUsd = 1_000_000
	coord := New(stubBuilder{inputs: profitableInputs()}, approvedStore(), cfg)
	opp := sampleOpportunity()

	require.NoError(t, coord.Ingress(context.Background(), opp, time.Now()))
	active := coord.Active()
	require.Len(t, active, 1)
	assert.False(t, active[0].ShouldExecute)
}
