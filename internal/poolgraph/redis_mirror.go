package poolgraph

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/edgewatch/arbcore/internal/arbmodel"
)

// mirrorKeyPrefix namespaces PricePoint mirror keys in the shared Redis
// instance from anything else that may use it.
const mirrorKeyPrefix = "arbcore:price:"

// mirrorWriteTimeout bounds each mirror publish so a slow or unreachable
// Redis instance never holds up the caller that triggered it.
const mirrorWriteTimeout = 500 * time.Millisecond

// RedisMirror publishes PricePoint snapshots to Redis as a read-through
// mirror of the in-process Graph, so other consumers (a dashboard, a
// second detector instance) can read current prices without holding a
// direct reference to this process's Graph. It never gates or blocks a
// Graph update: publish failures are logged and dropped, the same
// degrade-gracefully posture as the rest of this package's cache layer.
type RedisMirror struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisMirror returns a mirror backed by client. If client is nil,
// returns nil; Graph treats a nil mirror as "mirroring disabled" so callers
// need not branch on configuration.
func NewRedisMirror(client *redis.Client, ttl time.Duration) *RedisMirror {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisMirror{client: client, ttl: ttl}
}

// mirroredPoint is the wire shape published to Redis; it mirrors the
// externally-relevant fields of arbmodel.PricePoint under JSON names a
// non-Go consumer can read directly.
type mirroredPoint struct {
	Pool       string    `json:"pool"`
	Price0To1  float64   `json:"price0_to_1"`
	Price1To0  float64   `json:"price1_to_0"`
	Liquidity  float64   `json:"liquidity"`
	FeeTierBps uint32    `json:"fee_tier_bps"`
	Confidence float64   `json:"confidence"`
	ObservedAt time.Time `json:"observed_at"`
}

// Publish mirrors one pool's PricePoint to Redis under its pool key. Best
// effort: any Redis error is logged and swallowed, never returned to the
// Graph update path.
func (m *RedisMirror) Publish(poolKey string, point arbmodel.PricePoint) {
	if m == nil || m.client == nil {
		return
	}

	data, err := json.Marshal(mirroredPoint{
		Pool:       poolKey,
		Price0To1:  point.Price0To1,
		Price1To0:  point.Price1To0,
		Liquidity:  point.Liquidity,
		FeeTierBps: point.FeeTierBps,
		Confidence: point.Confidence,
		ObservedAt: point.ObservedAt,
	})
	if err != nil {
		log.Warn().Err(err).Str("pool_key", poolKey).Msg("failed to marshal price point for redis mirror")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), mirrorWriteTimeout)
	defer cancel()

	if err := m.client.Set(ctx, mirrorKeyPrefix+poolKey, data, m.ttl).Err(); err != nil {
		log.Debug().Err(err).Str("pool_key", poolKey).Msg("redis mirror publish failed, continuing without it")
	}
}

// Get reads back a mirrored PricePoint for poolKey, for a process that
// has no direct Graph reference of its own (e.g. a read-only dashboard).
// Returns false on any miss or error.
func (m *RedisMirror) Get(ctx context.Context, poolKey string) (arbmodel.PricePoint, bool) {
	if m == nil || m.client == nil {
		return arbmodel.PricePoint{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, mirrorWriteTimeout)
	defer cancel()

	raw, err := m.client.Get(ctx, mirrorKeyPrefix+poolKey).Result()
	if err != nil {
		return arbmodel.PricePoint{}, false
	}

	var mp mirroredPoint
	if err := json.Unmarshal([]byte(raw), &mp); err != nil {
		log.Warn().Err(err).Str("pool_key", poolKey).Msg("failed to unmarshal mirrored price point")
		return arbmodel.PricePoint{}, false
	}

	return arbmodel.PricePoint{
		Price0To1:  mp.Price0To1,
		Price1To0:  mp.Price1To0,
		Liquidity:  mp.Liquidity,
		FeeTierBps: mp.FeeTierBps,
		Confidence: mp.Confidence,
		ObservedAt: mp.ObservedAt,
	}, true
}
