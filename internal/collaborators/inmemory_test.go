package collaborators

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgewatch/arbcore/internal/arbmodel"
)

func TestInMemoryPoolStateProvider_FetchStateReturnsSeededState(t *testing.T) {
	p := NewInMemoryPoolStateProvider()
	ref := arbmodel.PoolRef{Address: "0xAAA", Venue: "uniswap-v3"}
	seeded := arbmodel.PoolState{Ref: ref, Token0: "USDC", Token1: "WETH", FeeTierBps: 30}
	p.Seed(seeded, []arbmodel.TickRecord{{Index: 10}})

	got, err := p.FetchState(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "USDC", got.Token0)

	ticks, err := p.FetchTicks(context.Background(), ref)
	require.NoError(t, err)
	assert.Len(t, ticks, 1)
}

func TestInMemoryPoolStateProvider_FetchStateErrorsWhenUnseeded(t *testing.T) {
	p := NewInMemoryPoolStateProvider()
	_, err := p.FetchState(context.Background(), arbmodel.PoolRef{Address: "0xZZZ", Venue: "uniswap-v3"})
	require.Error(t, err)
}

func TestInMemoryPoolStateProvider_EmitThenNextDeliversInOrder(t *testing.T) {
	p := NewInMemoryPoolStateProvider()
	first := arbmodel.SwapEvent{TxHash: "0x1", BlockNumber: 1}
	second := arbmodel.SwapEvent{TxHash: "0x2", BlockNumber: 2}

	require.True(t, p.Emit(first))
	require.True(t, p.Emit(second))

	ctx := context.Background()
	got1, err := p.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0x1", got1.TxHash)

	got2, err := p.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0x2", got2.TxHash)
}

func TestInMemoryPoolStateProvider_NextRespectsContextCancellation(t *testing.T) {
	p := NewInMemoryPoolStateProvider()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Next(ctx)
	require.Error(t, err)
}

func TestInMemoryOpportunityStream_PublishAccumulates(t *testing.T) {
	s := NewInMemoryOpportunityStream()
	opp := arbmodel.Opportunity{ID: uuid.New(), Type: arbmodel.OpportunityCrossVenue, ProfitUsd: 12}

	require.NoError(t, s.Publish(context.Background(), opp))
	require.NoError(t, s.Publish(context.Background(), opp))

	assert.Len(t, s.Published(), 2)
}

func TestInMemoryStrategyStore_ListApprovedFiltersByKindAndStatus(t *testing.T) {
	store := NewInMemoryStrategyStore()
	approved := arbmodel.Strategy{ID: uuid.New(), Kind: arbmodel.OpportunityCrossVenue, Status: arbmodel.StrategyApproved}
	draft := arbmodel.Strategy{ID: uuid.New(), Kind: arbmodel.OpportunityCrossVenue, Status: arbmodel.StrategyDraft}
	other := arbmodel.Strategy{ID: uuid.New(), Kind: arbmodel.OpportunityTriangular, Status: arbmodel.StrategyApproved}
	store.Put(approved)
	store.Put(draft)
	store.Put(other)

	got, err := store.ListApproved(context.Background(), arbmodel.OpportunityCrossVenue)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, approved.ID, got[0].ID)
}

func TestInMemoryStrategyStore_GetByIDMissingReturnsFalse(t *testing.T) {
	store := NewInMemoryStrategyStore()
	_, ok, err := store.GetByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSwapEventWireRoundTrip_PreservesUint256Fields(t *testing.T) {
	ev := arbmodel.SwapEvent{
		Pool:         arbmodel.PoolRef{Address: "0xAAA", Venue: "uniswap-v3"},
		Amount0:      uint256.NewInt(123456789),
		Amount0Neg:   true,
		Amount1:      uint256.NewInt(987654321),
		SqrtPriceQ96: new(uint256.Int).Lsh(uint256.NewInt(1), 96),
		Liquidity:    uint256.NewInt(5_000_000_000_000),
		Tick:         42,
		BlockNumber:  100,
		TxHash:       "0xdead",
		LogIndex:     3,
		Timestamp:    time.Unix(1_700_000_000, 0).UTC(),
	}

	data, err := encodeSwapEvent(ev)
	require.NoError(t, err)

	got, err := decodeSwapEvent(data)
	require.NoError(t, err)

	assert.Equal(t, ev.Pool, got.Pool)
	assert.True(t, ev.Amount0.Eq(got.Amount0))
	assert.Equal(t, ev.Amount0Neg, got.Amount0Neg)
	assert.True(t, ev.Amount1.Eq(got.Amount1))
	assert.True(t, ev.SqrtPriceQ96.Eq(got.SqrtPriceQ96))
	assert.True(t, ev.Liquidity.Eq(got.Liquidity))
	assert.Equal(t, ev.Tick, got.Tick)
	assert.Equal(t, ev.TxHash, got.TxHash)
	assert.Equal(t, ev.Timestamp, got.Timestamp)
}

func TestRetryWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffFactor: 2}
	attempts := 0
	err := WithRetry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("connection reset by peer")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithRetry_AbortsOnNonRetryableError(t *testing.T) {
	cfg := DefaultRetryConfig()
	attempts := 0
	err := WithRetry(context.Background(), cfg, func() error {
		attempts++
		return assert.AnError
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
