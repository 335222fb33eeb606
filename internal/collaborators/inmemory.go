package collaborators

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/edgewatch/arbcore/internal/arbmodel"
)

// InMemoryPoolStateProvider is a deterministic PoolStateProvider/SwapEventStream
// pair for tests and local development, grounded on the exchange package's
// mock-exchange-for-paper-trading pattern: preloaded state, no network I/O.
type InMemoryPoolStateProvider struct {
	mu     sync.RWMutex
	states map[string]arbmodel.PoolState
	ticks  map[string][]arbmodel.TickRecord
	events chan arbmodel.SwapEvent
}

// NewInMemoryPoolStateProvider returns an empty provider with a 1024-deep
// event queue.
func NewInMemoryPoolStateProvider() *InMemoryPoolStateProvider {
	return &InMemoryPoolStateProvider{
		states: make(map[string]arbmodel.PoolState),
		ticks:  make(map[string][]arbmodel.TickRecord),
		events: make(chan arbmodel.SwapEvent, 1024),
	}
}

func poolKey(ref arbmodel.PoolRef) string {
	return ref.Venue + ":" + ref.Address
}

// Seed installs or replaces a pool's state and tick set.
func (p *InMemoryPoolStateProvider) Seed(state arbmodel.PoolState, ticks []arbmodel.TickRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := poolKey(state.Ref)
	p.states[key] = state
	p.ticks[key] = ticks
}

// FetchState implements engine.PoolStateProvider.
func (p *InMemoryPoolStateProvider) FetchState(_ context.Context, ref arbmodel.PoolRef) (arbmodel.PoolState, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st, ok := p.states[poolKey(ref)]
	if !ok {
		return arbmodel.PoolState{}, fmt.Errorf("no seeded state for pool %s/%s", ref.Venue, ref.Address)
	}
	return st, nil
}

// FetchTicks implements engine.PoolStateProvider.
func (p *InMemoryPoolStateProvider) FetchTicks(_ context.Context, ref arbmodel.PoolRef) ([]arbmodel.TickRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ticks[poolKey(ref)], nil
}

// Emit enqueues a swap event for a future Next call, dropping it if the
// buffer is full rather than blocking the caller.
func (p *InMemoryPoolStateProvider) Emit(ev arbmodel.SwapEvent) bool {
	select {
	case p.events <- ev:
		return true
	default:
		return false
	}
}

// Next implements engine.SwapEventStream.
func (p *InMemoryPoolStateProvider) Next(ctx context.Context) (arbmodel.SwapEvent, error) {
	select {
	case <-ctx.Done():
		return arbmodel.SwapEvent{}, ctx.Err()
	case ev := <-p.events:
		return ev, nil
	}
}

// InMemoryOpportunityStream collects published opportunities for test
// assertions instead of forwarding them anywhere.
type InMemoryOpportunityStream struct {
	mu        sync.Mutex
	published []arbmodel.Opportunity
}

// NewInMemoryOpportunityStream returns an empty collecting stream.
func NewInMemoryOpportunityStream() *InMemoryOpportunityStream {
	return &InMemoryOpportunityStream{}
}

// Publish implements engine.OpportunityStream.
func (s *InMemoryOpportunityStream) Publish(_ context.Context, opp arbmodel.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, opp)
	return nil
}

// Published returns a snapshot of every opportunity published so far.
func (s *InMemoryOpportunityStream) Published() []arbmodel.Opportunity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]arbmodel.Opportunity, len(s.published))
	copy(out, s.published)
	return out
}

// InMemoryStrategyStore implements gate.StrategyStore over a plain map,
// useful for tests that don't need Postgres.
type InMemoryStrategyStore struct {
	mu         sync.RWMutex
	strategies map[uuid.UUID]arbmodel.Strategy
}

// NewInMemoryStrategyStore returns an empty store.
func NewInMemoryStrategyStore() *InMemoryStrategyStore {
	return &InMemoryStrategyStore{strategies: make(map[uuid.UUID]arbmodel.Strategy)}
}

// Put installs or replaces a strategy.
func (s *InMemoryStrategyStore) Put(st arbmodel.Strategy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategies[st.ID] = st
}

// ListApproved implements gate.StrategyStore.
func (s *InMemoryStrategyStore) ListApproved(_ context.Context, kind arbmodel.OpportunityKind) ([]arbmodel.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []arbmodel.Strategy
	for _, st := range s.strategies {
		if st.Kind == kind && st.Status == arbmodel.StrategyApproved {
			out = append(out, st)
		}
	}
	return out, nil
}

// GetByID implements gate.StrategyStore.
func (s *InMemoryStrategyStore) GetByID(_ context.Context, id uuid.UUID) (arbmodel.Strategy, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.strategies[id]
	return st, ok, nil
}
