package gate

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgewatch/arbcore/internal/arbmodel"
)

type stubStore struct {
	approved []arbmodel.Strategy
	byID     map[uuid.UUID]arbmodel.Strategy
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
	st, ok := s.byID[id]
	return st, ok, nil
}

func TestCheckApproval_ScenarioF_Approved(t *testing.T) {
	meta := arbmodel.ApprovalMetadata{CoverageHours: 30, PSuccess: 0.8, EvAdjUsd: 1, MaxDrawdown: 0}
	th := ApprovalThresholds{MinCoverageHours: 24, MinPSuccess: 0.75, MinEvAdjUsd: 0, MaxDrawdown: math.Inf(1)}

	approved, reason := CheckApproval(meta, th)
	assert.True(t, approved)
	assert.Equal(t, ReasonApproved, reason)
}

func TestCheckApproval_ScenarioF_RejectedOnCoverage(t *testing.T) {
	meta := arbmodel.ApprovalMetadata{CoverageHours: 12, PSuccess: 0.8, EvAdjUsd: 1, MaxDrawdown: 0}
	th := ApprovalThresholds{MinCoverageHours: 24, MinPSuccess: 0.75, MinEvAdjUsd: 0, MaxDrawdown: math.Inf(1)}

	approved, reason := CheckApproval(meta, th)
	assert.False(t, approved)
	assert.Equal(t, ReasonInsufficientCoverageHours, reason)
}

func TestLookup_PreferredStrategyMustBeApproved(t *testing.T) {
	id := uuid.New()
	store := stubStore{byID: map[uuid.UUID]arbmodel.Strategy{
		id: {ID: id, Status: arbmodel.StrategyDraft},
	}}

	decision, err := Lookup(context.Background(), store, arbmodel.OpportunityCrossVenue, &id)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonStrategyNotApproved, decision.ReasonCode)
}

func TestLookup_PreferredStrategyNotFound(t *testing.T) {
	store := stubStore{byID: map[uuid.UUID]arbmodel.Strategy{}}
	missing := uuid.New()

	decision, err := Lookup(context.Background(), store, arbmodel.OpportunityCrossVenue, &missing)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonStrategyNotFound, decision.ReasonCode)
}

func TestLookup_PrefersMostRecentlyUpdatedApproved(t *testing.T) {
	older := arbmodel.Strategy{
		ID: uuid.New(), Kind: arbmodel.OpportunityCrossVenue, Status: arbmodel.StrategyApproved,
		UpdatedAt: time.Now().Add(-time.Hour),
		Params:    arbmodel.StrategyParams{},
	}
	newer := arbmodel.Strategy{
		ID: uuid.New(), Kind: arbmodel.OpportunityCrossVenue, Status: arbmodel.StrategyApproved,
		UpdatedAt: time.Now(),
	}
	store := stubStore{approved: []arbmodel.Strategy{older, newer}}

	decision, err := Lookup(context.Background(), store, arbmodel.OpportunityCrossVenue, nil)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	assert.Equal(t, newer.ID, *decision.StrategyID)
}

func TestLookup_NoApprovedStrategyForKind(t *testing.T) {
	store := stubStore{}
	decision, err := Lookup(context.Background(), store, arbmodel.OpportunityTriangular, nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonNoApprovedStrategy, decision.ReasonCode)
}

func TestLookup_Idempotent(t *testing.T) {
	store := stubStore{approved: []arbmodel.Strategy{
		{ID: uuid.New(), Kind: arbmodel.OpportunityDirect, Status: arbmodel.StrategyApproved, UpdatedAt: time.Now()},
	}}

	first, err := Lookup(context.Background(), store, arbmodel.OpportunityDirect, nil)
	require.NoError(t, err)
	second, err := Lookup(context.Background(), store, arbmodel.OpportunityDirect, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
