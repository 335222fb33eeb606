package poolgraph

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/holiman/uint256"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgewatch/arbcore/internal/arbmodel"
	"github.com/edgewatch/arbcore/internal/fixedpoint"
)

func TestNewRedisMirror_NilClientReturnsNil(t *testing.T) {
	assert.Nil(t, NewRedisMirror(nil, time.Second))
}

func TestNewRedisMirror_ZeroTTLUsesDefault(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	mirror := NewRedisMirror(client, 0)
	require.NotNil(t, mirror)
	assert.Equal(t, 30*time.Second, mirror.ttl)
}

func TestRedisMirror_PublishThenGet(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	mirror := NewRedisMirror(client, time.Minute)
	point := arbmodel.PricePoint{
		Pool:       arbmodel.PoolRef{Address: "0xA", Venue: "uniswap-v3"},
		Price0To1:  1.5,
		Price1To0:  1.0 / 1.5,
		Liquidity:  42,
		FeeTierBps: 30,
		Confidence: 0.9,
		ObservedAt: time.Now().Round(time.Second),
	}

	mirror.Publish("uniswap-v3|0xA", point)

	got, ok := mirror.Get(context.Background(), "uniswap-v3|0xA")
	require.True(t, ok)
	assert.InDelta(t, point.Price0To1, got.Price0To1, 1e-9)
	assert.InDelta(t, point.Confidence, got.Confidence, 1e-9)
	assert.Equal(t, point.FeeTierBps, got.FeeTierBps)
}

func TestRedisMirror_GetMissReturnsFalse(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	mirror := NewRedisMirror(client, time.Minute)
	_, ok := mirror.Get(context.Background(), "no-such-pool")
	assert.False(t, ok)
}

func TestRedisMirror_NilReceiverIsNoop(t *testing.T) {
	var mirror *RedisMirror
	assert.NotPanics(t, func() {
		mirror.Publish("x", arbmodel.PricePoint{})
	})
	_, ok := mirror.Get(context.Background(), "x")
	assert.False(t, ok)
}

func TestGraph_ApplyState_MirrorsWhenConfigured(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	g := NewWithMirror(NewRedisMirror(client, time.Minute))
	state := arbmodel.PoolState{
		Ref:          ref("0xA"),
		Token0:       "USDC",
		Token1:       "WETH",
		SqrtPriceQ96: fixedpoint.Resolution96(),
		Liquidity:    uint256.NewInt(1_000_000),
		FeeTierBps:   30,
	}
	g.ApplyState(state)

	require.Eventually(t, func() bool {
		_, ok := g.mirror.Get(context.Background(), PoolKey(state.Ref))
		return ok
	}, time.Second, 10*time.Millisecond, "expected price point to be mirrored to redis")
}
