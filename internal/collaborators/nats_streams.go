package collaborators

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/edgewatch/arbcore/internal/arbmodel"
)

// NATSStreamConfig configures the NATS-backed streams below.
type NATSStreamConfig struct {
	URL    string
	Prefix string // subject prefix, default "arbcore."
}

// DefaultNATSStreamConfig points at a local NATS instance under the
// "arbcore." subject namespace.
func DefaultNATSStreamConfig() NATSStreamConfig {
	return NATSStreamConfig{URL: "nats://localhost:4222", Prefix: "arbcore."}
}

func connect(cfg NATSStreamConfig, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(
		cfg.URL,
		nats.Name(name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Str("conn", name).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Str("conn", name).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return nc, nil
}

// wireSwapEvent is the JSON wire form of arbmodel.SwapEvent: uint256
// pointers travel as hex strings since *uint256.Int has no JSON tags.
type wireSwapEvent struct {
	Pool         arbmodel.PoolRef `json:"pool"`
	Amount0Hex   string           `json:"amount0"`
	Amount0Neg   bool             `json:"amount0Neg"`
	Amount1Hex   string           `json:"amount1"`
	Amount1Neg   bool             `json:"amount1Neg"`
	SqrtPriceHex string           `json:"sqrtPriceQ96"`
	LiquidityHex string           `json:"liquidity"`
	Tick         int32            `json:"tick"`
	BlockNumber  uint64           `json:"blockNumber"`
	TxHash       string           `json:"txHash"`
	LogIndex     uint32           `json:"logIndex"`
	Timestamp    time.Time        `json:"timestamp"`
}

func hexOf(v *uint256.Int) string {
	if v == nil {
		return ""
	}
	return v.Hex()
}

func fromHex(s string) (*uint256.Int, error) {
	if s == "" {
		return uint256.NewInt(0), nil
	}
	v, err := uint256.FromHex(s)
	if err != nil {
		return nil, fmt.Errorf("parsing uint256 hex %q: %w", s, err)
	}
	return v, nil
}

func encodeSwapEvent(ev arbmodel.SwapEvent) ([]byte, error) {
	w := wireSwapEvent{
		Pool:         ev.Pool,
		Amount0Hex:   hexOf(ev.Amount0),
		Amount0Neg:   ev.Amount0Neg,
		Amount1Hex:   hexOf(ev.Amount1),
		Amount1Neg:   ev.Amount1Neg,
		SqrtPriceHex: hexOf(ev.SqrtPriceQ96),
		LiquidityHex: hexOf(ev.Liquidity),
		Tick:         ev.Tick,
		BlockNumber:  ev.BlockNumber,
		TxHash:       ev.TxHash,
		LogIndex:     ev.LogIndex,
		Timestamp:    ev.Timestamp,
	}
	return json.Marshal(w)
}

func decodeSwapEvent(data []byte) (arbmodel.SwapEvent, error) {
	var w wireSwapEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return arbmodel.SwapEvent{}, fmt.Errorf("decoding swap event: %w", err)
	}
	amount0, err := fromHex(w.Amount0Hex)
	if err != nil {
		return arbmodel.SwapEvent{}, err
	}
	amount1, err := fromHex(w.Amount1Hex)
	if err != nil {
		return arbmodel.SwapEvent{}, err
	}
	sqrtPrice, err := fromHex(w.SqrtPriceHex)
	if err != nil {
		return arbmodel.SwapEvent{}, err
	}
	liquidity, err := fromHex(w.LiquidityHex)
	if err != nil {
		return arbmodel.SwapEvent{}, err
	}
	return arbmodel.SwapEvent{
		Pool:         w.Pool,
		Amount0:      amount0,
		Amount0Neg:   w.Amount0Neg,
		Amount1:      amount1,
		Amount1Neg:   w.Amount1Neg,
		SqrtPriceQ96: sqrtPrice,
		Liquidity:    liquidity,
		Tick:         w.Tick,
		BlockNumber:  w.BlockNumber,
		TxHash:       w.TxHash,
		LogIndex:     w.LogIndex,
		Timestamp:    w.Timestamp,
	}, nil
}

// NATSSwapEventStream implements engine.SwapEventStream by draining a
// buffered NATS subscription in order.
type NATSSwapEventStream struct {
	nc   *nats.Conn
	sub  *nats.Subscription
	msgs chan *nats.Msg
}

// NewNATSSwapEventStream subscribes to "<prefix>swaps.>" and buffers
// incoming messages on a 4096-deep channel, matching the bounded-channel
// backpressure posture used elsewhere in the pipeline.
func NewNATSSwapEventStream(cfg NATSStreamConfig) (*NATSSwapEventStream, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "arbcore."
	}
	nc, err := connect(cfg, "arbcore-swap-stream")
	if err != nil {
		return nil, err
	}

	s := &NATSSwapEventStream{nc: nc, msgs: make(chan *nats.Msg, 4096)}
	sub, err := nc.Subscribe(cfg.Prefix+"swaps.>", func(msg *nats.Msg) {
		select {
		case s.msgs <- msg:
		default:
			log.Warn().Str("subject", msg.Subject).Msg("swap event stream buffer full, dropping message")
		}
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribing to swap events: %w", err)
	}
	s.sub = sub
	return s, nil
}

// Next blocks until the next swap event arrives or ctx is cancelled.
func (s *NATSSwapEventStream) Next(ctx context.Context) (arbmodel.SwapEvent, error) {
	select {
	case <-ctx.Done():
		return arbmodel.SwapEvent{}, ctx.Err()
	case msg := <-s.msgs:
		return decodeSwapEvent(msg.Data)
	}
}

// Close unsubscribes and closes the underlying NATS connection.
func (s *NATSSwapEventStream) Close() error {
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
	s.nc.Close()
	return nil
}

// wireOpportunity is the JSON wire form of arbmodel.Opportunity.
type wireOpportunity struct {
	ID               uuid.UUID                `json:"id"`
	Type             arbmodel.OpportunityKind `json:"type"`
	Path             []arbmodel.PoolRef       `json:"path"`
	ProfitUsd        float64                  `json:"profitUsd"`
	SizeOptUsd       float64                  `json:"sizeOptUsd"`
	MinSize          float64                  `json:"minSize"`
	MaxSize          float64                  `json:"maxSize"`
	GasUsd           float64                  `json:"gasUsd"`
	Confidence       float64                  `json:"confidence"`
	CompetitionLevel float64                  `json:"competitionLevel"`
	LatencyBudgetMs  int64                    `json:"latencyBudgetMs"`
	Timestamp        time.Time                `json:"timestamp"`
}

// NATSOpportunityStream implements engine.OpportunityStream by publishing
// to "<prefix>opportunities.<kind>".
type NATSOpportunityStream struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSOpportunityStream connects and returns a publisher-only stream.
func NewNATSOpportunityStream(cfg NATSStreamConfig) (*NATSOpportunityStream, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "arbcore."
	}
	nc, err := connect(cfg, "arbcore-opportunity-stream")
	if err != nil {
		return nil, err
	}
	return &NATSOpportunityStream{nc: nc, prefix: cfg.Prefix}, nil
}

// Publish serializes opp and publishes it under a per-kind subject.
func (s *NATSOpportunityStream) Publish(ctx context.Context, opp arbmodel.Opportunity) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	w := wireOpportunity{
		ID: opp.ID, Type: opp.Type, Path: opp.Path,
		ProfitUsd: opp.ProfitUsd, SizeOptUsd: opp.SizeOptUsd,
		MinSize: opp.MinSize, MaxSize: opp.MaxSize, GasUsd: opp.GasUsd,
		Confidence: opp.Confidence, CompetitionLevel: opp.CompetitionLevel,
		LatencyBudgetMs: opp.LatencyBudgetMs, Timestamp: opp.Timestamp,
	}
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshaling opportunity: %w", err)
	}

	subject := fmt.Sprintf("%sopportunities.%s", s.prefix, opp.Type)
	if err := s.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing opportunity: %w", err)
	}
	return nil
}

// Close closes the underlying NATS connection.
func (s *NATSOpportunityStream) Close() error {
	s.nc.Close()
	return nil
}
