package arbmodel

import (
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// PoolRef identifies a pool independent of which venue hosts it.
type PoolRef struct {
	Address string `json:"address"`
	Venue   string `json:"venue"` // e.g. "uniswap-v3", "binance-spot"
}

// TickRecord is one initialized tick in a pool's tick sequence.
type TickRecord struct {
	Index int32 `json:"index"`
	// LiquidityNet is the signed liquidity delta applied when the price
	// crosses this tick, positive when crossing left-to-right (zeroForOne
	// == false) and negated in the other direction by the caller.
	LiquidityNet int64        `json:"liquidityNet"`
	SqrtPriceQ96 *uint256.Int `json:"-"`
	SqrtPriceHex string       `json:"sqrtPriceQ96,omitempty"`
}

// PoolState is the current on-chain (or venue-reported) state of one pool.
// It is owned by PoolGraph and replaced atomically on every swap event --
// never mutated field-by-field -- so readers holding an old pointer always
// see a consistent snapshot.
type PoolState struct {
	Ref PoolRef `json:"ref"`

	Token0 string `json:"token0"`
	Token1 string `json:"token1"`

	SqrtPriceQ96 *uint256.Int `json:"-"`
	Liquidity    *uint256.Int `json:"-"`
	Tick         int32        `json:"tick"`
	FeeTierBps   uint32       `json:"feeTierBps"`
	TickSpacing  int32        `json:"tickSpacing"`

	Ticks []TickRecord `json:"ticks,omitempty"`

	LastBlock     uint64    `json:"lastBlock"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// PricePoint is a point-in-time derived view of a PoolState.
type PricePoint struct {
	Pool        PoolRef   `json:"pool"`
	Price0To1   float64   `json:"price0To1"`
	Price1To0   float64   `json:"price1To0"`
	Liquidity   float64   `json:"liquidity"`
	FeeTierBps  uint32    `json:"feeTierBps"`
	Confidence  float64   `json:"confidence"`
	ObservedAt  time.Time `json:"observedAt"`
}

// Fresh reports whether the price point is no older than maxAge as of now.
func (p PricePoint) Fresh(now time.Time, maxAge time.Duration) bool {
	return now.Sub(p.ObservedAt) <= maxAge
}

// SwapEvent is one fill reported by a SwapEventStream. Amount0/Amount1 are
// signed per the UniV3 convention: positive means the pool received the
// token, negative means the pool paid it out.
type SwapEvent struct {
	Pool         PoolRef
	Amount0      *uint256.Int
	Amount0Neg   bool
	Amount1      *uint256.Int
	Amount1Neg   bool
	SqrtPriceQ96 *uint256.Int
	Liquidity    *uint256.Int
	Tick         int32
	BlockNumber  uint64
	TxHash       string
	LogIndex     uint32
	Timestamp    time.Time
}

// FeeSchedule captures the fixed and proportional fee components deducted
// from a trade's gross edge.
type FeeSchedule struct {
	TotalFeesBps   float64 // router/LP fee, bps of notional
	FlashFeeBps    float64 // flash-loan fee, bps of notional (if flashEnabled)
	ReferralBps    float64
	ExecutorFeeUsd float64
	FlashFixedUsd  float64
}

// Frictions captures exogenous cost terms modeled as mean/std pairs plus
// fixed extras.
type Frictions struct {
	GasUsdMean     float64
	GasUsdStd      float64
	AdverseUsdMean float64
	AdverseUsdStd  float64
	ExtraUsd       float64
	MevPenaltyUsd  float64
}

// LatencyParams parameterizes edge decay and fill probability over time.
type LatencyParams struct {
	LatencySec      float64
	EdgeDecayBpsSec float64
	BaseFillProb    float64
	Theta           float64
}

// FailureProbs captures the exogenous failure-branch probabilities of the
// payoff tree. They are clamped and normalized so their sum never exceeds 1;
// any residual mass is the no-op branch.
type FailureProbs struct {
	FailBefore  float64
	FailBetween float64
	ReorgOrMev  float64
}

// SlippageKind tags which variant of SlippageModel is populated.
type SlippageKind int

const (
	SlippageEmpirical SlippageKind = iota
	SlippageUniV3
)

// SlippageModel is a tagged union: exactly one of the Empirical or UniV3
// fields is meaningful, selected by Kind.
type SlippageModel struct {
	Kind SlippageKind

	// Empirical variant.
	EmpiricalK             float64
	EmpiricalAlpha         float64
	EmpiricalLiquidityRefUsd float64

	// UniV3 variant.
	UniV3SqrtPriceQ96 *uint256.Int
	UniV3Liquidity    *uint256.Int
	UniV3FeeTierBps   uint32
	UniV3TickSpacing  int32
	UniV3Ticks        []TickRecord
	UniV3UsdPerTokenIn float64
	UniV3ZeroForOne    bool
}

// ArbitrageInputs is the complete, immutable input to the evaluation kernel.
type ArbitrageInputs struct {
	EdgeBps           float64
	NotionalUsd       float64
	Fees              FeeSchedule
	Frictions         Frictions
	Latency           LatencyParams
	Slippage          SlippageModel
	Failures          FailureProbs
	FlashEnabled      bool
	RiskAversionLambda float64
	CapitalUsd        float64
}

// ResultBreakdown itemizes the components of the chosen size's payoff, for
// observability and the breakeven calculation.
type ResultBreakdown struct {
	EdgeEffBps      float64
	AfterRouterLpUsd float64
	SlipCostUsd     float64
	GasUsd          float64
	FlashCostUsd    float64
	ExecutorFeeUsd  float64
	Seconds         float64
}

// ArbitrageResult is the output of the evaluation kernel for one input.
type ArbitrageResult struct {
	NetUsdEst     float64
	EvPerSec      float64
	SizeOptUsd    float64
	PSuccess      float64
	SlipBpsEff    float64
	BreakevenBps  float64
	Score         float64
	Variance      float64
	VaR95         *float64
	CVaR95        *float64
	Breakdown     ResultBreakdown
}

// OpportunityKind is the detector's classification of how a candidate was
// found.
type OpportunityKind string

const (
	OpportunityDirect     OpportunityKind = "direct"
	OpportunityCrossVenue OpportunityKind = "cross_venue"
	OpportunityTriangular OpportunityKind = "triangular"
)

// Opportunity is a candidate arbitrage discovered by the detector, owned by
// it until emitted, then owned by the SignalCoordinator.
type Opportunity struct {
	ID               uuid.UUID
	Type             OpportunityKind
	Path             []PoolRef
	ProfitUsd        float64
	SizeOptUsd       float64
	MinSize          float64
	MaxSize          float64
	GasUsd           float64
	Confidence       float64
	CompetitionLevel float64
	LatencyBudgetMs  int64
	Timestamp        time.Time
}

// StrategyStatus is a Strategy's lifecycle state.
type StrategyStatus string

const (
	StrategyDraft       StrategyStatus = "draft"
	StrategyBacktesting StrategyStatus = "backtesting"
	StrategyApproved    StrategyStatus = "approved"
	StrategyRejected    StrategyStatus = "rejected"
	StrategyArchived    StrategyStatus = "archived"
)

// ApprovalMetadata records the facts an approval/rejection decision was
// based on.
type ApprovalMetadata struct {
	CoverageHours float64   `yaml:"coverage_hours" json:"coverage_hours"`
	PSuccess      float64   `yaml:"p_success" json:"p_success"`
	EvAdjUsd      float64   `yaml:"ev_adj_usd" json:"ev_adj_usd"`
	MaxDrawdown   float64   `yaml:"max_drawdown" json:"max_drawdown"`
	DecidedAt     time.Time `yaml:"decided_at,omitempty" json:"decided_at,omitempty"`
	ReasonCode    string    `yaml:"reason_code,omitempty" json:"reason_code,omitempty"`
}

// StrategyParams are the gate-tunable fields a Strategy can override on
// ArbitrageInputs. Nil fields are treated as "not set" and leave the input's
// default in place, while a non-nil pointer (even to zero) is applied --
// per-field substitution, never a blanket overwrite.
type StrategyParams struct {
	MinSpreadBps       *float64 `yaml:"min_spread_bps,omitempty" json:"min_spread_bps,omitempty"`
	RiskAversionLambda *float64 `yaml:"risk_aversion_lambda,omitempty" json:"risk_aversion_lambda,omitempty"`
	MaxNotionalUsd     *float64 `yaml:"max_notional_usd,omitempty" json:"max_notional_usd,omitempty"`
	FlashEnabled       *bool    `yaml:"flash_enabled,omitempty" json:"flash_enabled,omitempty"`
	TotalFeesBps       *float64 `yaml:"total_fees_bps,omitempty" json:"total_fees_bps,omitempty"`
	EdgeDecayBpsSec    *float64 `yaml:"edge_decay_bps_sec,omitempty" json:"edge_decay_bps_sec,omitempty"`
	BaseFillProb       *float64 `yaml:"base_fill_prob,omitempty" json:"base_fill_prob,omitempty"`
}

// Strategy is a named, versioned policy consumed read-only by the gate.
// Persistence is delegated entirely to a StrategyStore implementation; this
// struct is the wire/storage shape.
type Strategy struct {
	ID         uuid.UUID        `yaml:"id" json:"id"`
	Kind       OpportunityKind  `yaml:"kind" json:"kind"`
	Name       string           `yaml:"name" json:"name"`
	Status     StrategyStatus   `yaml:"status" json:"status"`
	Params     StrategyParams   `yaml:"params" json:"params"`
	Approval   ApprovalMetadata `yaml:"approval" json:"approval"`
	UpdatedAt  time.Time        `yaml:"updated_at" json:"updated_at"`
}

// Signal embeds an Opportunity and its evaluation, plus the scores and
// gating decision the coordinator computed. Identified by the opportunity
// ID; the coordinator mutates a signal in place on re-evaluation rather than
// replacing it, preserving the "one live signal per id" invariant.
type Signal struct {
	Opportunity      Opportunity
	Result           ArbitrageResult
	RiskScore        float64
	ConfidenceScore  float64
	PriorityScore    float64
	ShouldExecute    bool
	ValidUntil       time.Time
	StrategyID       *uuid.UUID
	GateReasonCode   string
}

// ID is a convenience accessor mirroring the opportunity's identity.
func (s *Signal) ID() uuid.UUID { return s.Opportunity.ID }

// SignalEventKind tags the four lifecycle events the coordinator emits.
type SignalEventKind string

const (
	SignalCreated  SignalEventKind = "signal_created"
	SignalUpdated  SignalEventKind = "signal_updated"
	SignalExpired  SignalEventKind = "signal_expired"
	SignalExecuted SignalEventKind = "signal_executed"
)

// SignalEvent is one lifecycle transition of a signal, as emitted on the
// SignalStream.
type SignalEvent struct {
	Kind            SignalEventKind
	Signal          Signal
	ActualProfitUsd *float64 // set only for SignalExecuted
	At              time.Time
}
