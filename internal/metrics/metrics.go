package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bounded cardinality constants for metric labels.
// These ensure metrics don't have unbounded label values which can cause memory issues.
const (
	// Circuit breaker reasons (bounded set)
	ReasonMaxDrawdown    = "max_drawdown"
	ReasonHighVolatility = "high_volatility"
	ReasonRateLimit      = "rate_limit"
	ReasonManualHalt     = "manual_halt"
	ReasonOther          = "other"

	// Strategy gate rejection reasons (bounded set)
	GateRejectCoverage   = "insufficient_coverage"
	GateRejectPSuccess   = "low_p_success"
	GateRejectSchema     = "schema_invalid"
	GateRejectFieldRange = "value_out_of_range"
	GateRejectOther      = "other"

	// Exchange API error categories (bounded set)
	ExchangeErrorTimeout     = "timeout"
	ExchangeErrorRateLimit   = "rate_limit"
	ExchangeErrorAuth        = "authentication"
	ExchangeErrorNetwork     = "network"
	ExchangeErrorInvalidReq  = "invalid_request"
	ExchangeErrorServerError = "server_error"
	ExchangeErrorOther       = "other"
)

// NormalizeCircuitBreakerReason maps arbitrary reasons to bounded set
func NormalizeCircuitBreakerReason(reason string) string {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "drawdown"):
		return ReasonMaxDrawdown
	case strings.Contains(lower, "volatility"):
		return ReasonHighVolatility
	case strings.Contains(lower, "rate") || strings.Contains(lower, "limit"):
		return ReasonRateLimit
	case strings.Contains(lower, "manual") || strings.Contains(lower, "halt"):
		return ReasonManualHalt
	default:
		return ReasonOther
	}
}

// NormalizeGateRejectReason maps arbitrary strategy gate rejection reasons to a bounded set
func NormalizeGateRejectReason(reason string) string {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "coverage"):
		return GateRejectCoverage
	case strings.Contains(lower, "p_success") || strings.Contains(lower, "success probability"):
		return GateRejectPSuccess
	case strings.Contains(lower, "schema") || strings.Contains(lower, "version"):
		return GateRejectSchema
	case strings.Contains(lower, "range") || strings.Contains(lower, "invalid"):
		return GateRejectFieldRange
	default:
		return GateRejectOther
	}
}

// NormalizeExchangeError maps arbitrary error messages to bounded set
func NormalizeExchangeError(err error) string {
	if err == nil {
		return ""
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return ExchangeErrorTimeout
	case strings.Contains(errStr, "rate") || strings.Contains(errStr, "429"):
		return ExchangeErrorRateLimit
	case strings.Contains(errStr, "auth") || strings.Contains(errStr, "401") || strings.Contains(errStr, "403"):
		return ExchangeErrorAuth
	case strings.Contains(errStr, "network") || strings.Contains(errStr, "connection"):
		return ExchangeErrorNetwork
	case strings.Contains(errStr, "400") || strings.Contains(errStr, "invalid"):
		return ExchangeErrorInvalidReq
	case strings.Contains(errStr, "500") || strings.Contains(errStr, "502") || strings.Contains(errStr, "503"):
		return ExchangeErrorServerError
	default:
		return ExchangeErrorOther
	}
}

// Detector Metrics
var (
	// Pools currently tracked by the pool graph
	PoolsTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbcore_pools_tracked",
		Help: "Number of pools currently tracked in the pool graph",
	})

	// Swap events processed
	SwapEventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbcore_swap_events_processed_total",
		Help: "Total number of swap events processed by venue",
	}, []string{"venue"})

	// Stale pool states skipped by the detector
	StalePoolsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbcore_stale_pools_skipped_total",
		Help: "Total number of pool states skipped for exceeding the staleness threshold",
	}, []string{"venue"})

	// Opportunities detected
	OpportunitiesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbcore_opportunities_detected_total",
		Help: "Total number of candidate opportunities detected by kind",
	}, []string{"kind"})

	// Candidate path search/detection latency
	DetectionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbcore_detection_latency_ms",
		Help:    "Opportunity detection pass latency in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
)

// Evaluation Metrics
var (
	// Evaluation kernel latency
	EvaluationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arbcore_evaluation_latency_ms",
		Help:    "Payoff evaluation latency in milliseconds by kind",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
	}, []string{"kind"})

	// Opportunity net profit estimate, post slippage/latency/gas
	OpportunityProfitUsd = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arbcore_opportunity_profit_usd",
		Help:    "Estimated net profit in USD for evaluated opportunities by kind",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"kind"})

	// Monte Carlo simulations run
	MonteCarloSimulationsRun = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbcore_monte_carlo_simulations_total",
		Help: "Total number of Monte Carlo simulation runs by kind",
	}, []string{"kind"})

	// Monte Carlo simulation duration
	MonteCarloDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbcore_monte_carlo_duration_ms",
		Help:    "Monte Carlo simulation batch duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})
)

// Strategy Gate Metrics
var (
	// Strategies currently approved and eligible
	ApprovedStrategies = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arbcore_approved_strategies",
		Help: "Number of currently approved strategies by kind",
	}, []string{"kind"})

	// Strategy gate evaluations
	StrategyGateEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbcore_strategy_gate_evaluations_total",
		Help: "Total number of strategy gate evaluations by kind and outcome",
	}, []string{"kind", "outcome"})

	// Strategy gate rejection reasons
	StrategyGateRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbcore_strategy_gate_rejections_total",
		Help: "Total number of strategy gate rejections by normalized reason",
	}, []string{"reason"})
)

// Signal Coordination Metrics
var (
	// Signals published to consumers
	SignalsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbcore_signals_published_total",
		Help: "Total number of opportunity signals published by kind",
	}, []string{"kind"})

	// Signal confidence at publish time
	SignalConfidence = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arbcore_signal_confidence",
		Help: "Most recently published signal confidence by kind (0.0 to 1.0)",
	}, []string{"kind"})

	// Signal coordination pass duration
	SignalCoordinationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbcore_signal_coordination_duration_ms",
		Help:    "Signal coordination pass duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})
)

// System Health Metrics
var (
	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbcore_database_connections_active",
		Help: "Number of active database connections",
	})

	DatabaseConnectionsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbcore_database_connections_idle",
		Help: "Number of idle database connections",
	})

	RedisCacheHitRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbcore_redis_cache_hit_rate",
		Help: "Redis cache hit rate as a ratio (0.0 to 1.0)",
	})

	RedisOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbcore_redis_operations_total",
		Help: "Total number of Redis operations by type",
	}, []string{"operation"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arbcore_api_request_duration_ms",
		Help:    "API request duration in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"method", "path", "status_code"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbcore_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status_code"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbcore_errors_total",
		Help: "Total number of errors by type",
	}, []string{"type", "component"})

	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arbcore_database_query_duration_ms",
		Help:    "Database query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"query_type"})

	NATSMessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbcore_nats_messages_published_total",
		Help: "Total number of NATS messages published by subject",
	}, []string{"subject"})

	NATSMessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbcore_nats_messages_received_total",
		Help: "Total number of NATS messages received by subject",
	}, []string{"subject"})
)

// Circuit Breaker Metrics
var (
	CircuitBreakerStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arbcore_circuit_breaker_status",
		Help: "Circuit breaker status (1 = active/tripped, 0 = inactive)",
	}, []string{"breaker_type"})

	CircuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbcore_circuit_breaker_trips_total",
		Help: "Total number of circuit breaker trips",
	}, []string{"breaker_type", "reason"})
)

// Vault Metrics
var (
	VaultCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbcore_vault_cache_hits_total",
		Help: "Total number of Vault secret cache hits",
	})

	VaultCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbcore_vault_cache_misses_total",
		Help: "Total number of Vault secret cache misses",
	})

	VaultCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbcore_vault_cache_size",
		Help: "Number of secrets currently held in the Vault client cache",
	})

	VaultRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbcore_vault_request_duration_ms",
		Help:    "Vault secret fetch duration in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000},
	})

	VaultRequestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbcore_vault_request_errors_total",
		Help: "Total number of failed Vault secret fetches by normalized error category",
	}, []string{"error_type"})
)

// Exchange Metrics
var (
	ExchangeAPILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arbcore_exchange_api_latency_ms",
		Help:    "Exchange API latency in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"exchange", "endpoint"})

	ExchangeAPIErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbcore_exchange_api_errors_total",
		Help: "Total exchange API errors",
	}, []string{"exchange", "error_type"})
)

// Helper functions to update metrics

// UpdateDatabaseConnections updates database connection metrics
func UpdateDatabaseConnections(active, idle int32) {
	DatabaseConnectionsActive.Set(float64(active))
	DatabaseConnectionsIdle.Set(float64(idle))
}

// RecordAPIRequest records an API request with duration
func RecordAPIRequest(method, path, statusCode string, durationMs float64) {
	APIRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationMs)
	HTTPRequests.WithLabelValues(method, path, statusCode).Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	Errors.WithLabelValues(errorType, component).Inc()
}

// RecordDatabaseQuery records a database query
func RecordDatabaseQuery(queryType string, durationMs float64) {
	DatabaseQueryDuration.WithLabelValues(queryType).Observe(durationMs)
}

// RecordNATSPublish records a published NATS message
func RecordNATSPublish(subject string) {
	NATSMessagesPublished.WithLabelValues(subject).Inc()
}

// RecordNATSReceive records a received NATS message
func RecordNATSReceive(subject string) {
	NATSMessagesReceived.WithLabelValues(subject).Inc()
}

// RecordSwapEvent records a processed swap event for a venue
func RecordSwapEvent(venue string) {
	SwapEventsProcessed.WithLabelValues(venue).Inc()
}

// RecordStalePoolSkipped records a pool state skipped for staleness
func RecordStalePoolSkipped(venue string) {
	StalePoolsSkipped.WithLabelValues(venue).Inc()
}

// RecordOpportunityDetected records a candidate opportunity by kind
func RecordOpportunityDetected(kind string) {
	OpportunitiesDetected.WithLabelValues(kind).Inc()
}

// RecordDetectionLatency records a detection pass latency
func RecordDetectionLatency(durationMs float64) {
	DetectionLatency.Observe(durationMs)
}

// RecordEvaluation records an evaluation kernel result
func RecordEvaluation(kind string, durationMs, profitUsd float64) {
	EvaluationLatency.WithLabelValues(kind).Observe(durationMs)
	OpportunityProfitUsd.WithLabelValues(kind).Observe(profitUsd)
}

// RecordMonteCarloRun records a Monte Carlo simulation batch
func RecordMonteCarloRun(kind string, durationMs float64) {
	MonteCarloSimulationsRun.WithLabelValues(kind).Inc()
	MonteCarloDuration.Observe(durationMs)
}

// UpdateApprovedStrategies sets the number of currently approved strategies of a kind
func UpdateApprovedStrategies(kind string, count int) {
	ApprovedStrategies.WithLabelValues(kind).Set(float64(count))
}

// RecordStrategyGateEvaluation records a strategy gate pass or rejection
func RecordStrategyGateEvaluation(kind string, approved bool, rejectReason string) {
	outcome := "approved"
	if !approved {
		outcome = "rejected"
		StrategyGateRejections.WithLabelValues(NormalizeGateRejectReason(rejectReason)).Inc()
	}
	StrategyGateEvaluations.WithLabelValues(kind, outcome).Inc()
}

// RecordSignalPublished records a published opportunity signal
func RecordSignalPublished(kind string, confidence float64) {
	SignalsPublished.WithLabelValues(kind).Inc()
	SignalConfidence.WithLabelValues(kind).Set(confidence)
}

// RecordSignalCoordination records a signal coordination pass duration
func RecordSignalCoordination(durationMs float64) {
	SignalCoordinationDuration.Observe(durationMs)
}

// RecordRedisOperation records a Redis operation
func RecordRedisOperation(operation string) {
	RedisOperations.WithLabelValues(operation).Inc()
}

// UpdateCircuitBreaker updates circuit breaker status
func UpdateCircuitBreaker(breakerType string, active bool) {
	status := 0.0
	if active {
		status = 1.0
	}
	CircuitBreakerStatus.WithLabelValues(breakerType).Set(status)
}

// RecordCircuitBreakerTrip records a circuit breaker trip with normalized reason
func RecordCircuitBreakerTrip(breakerType, reason string) {
	normalizedReason := NormalizeCircuitBreakerReason(reason)
	CircuitBreakerTrips.WithLabelValues(breakerType, normalizedReason).Inc()
}

// RecordVaultCacheHit records a Vault secret cache hit
func RecordVaultCacheHit() {
	VaultCacheHits.Inc()
}

// RecordVaultCacheMiss records a Vault secret cache miss
func RecordVaultCacheMiss() {
	VaultCacheMisses.Inc()
}

// UpdateVaultCacheSize sets the current number of cached Vault secrets
func UpdateVaultCacheSize(size int) {
	VaultCacheSize.Set(float64(size))
}

// RecordVaultRequest records a Vault secret fetch duration and, on failure, a normalized error category
func RecordVaultRequest(durationMs float64, err error) {
	VaultRequestDuration.Observe(durationMs)
	if err != nil {
		VaultRequestErrors.WithLabelValues(NormalizeExchangeError(err)).Inc()
	}
}

// RecordExchangeAPICall records an exchange API call with normalized error category
func RecordExchangeAPICall(exchange, endpoint string, durationMs float64, err error) {
	ExchangeAPILatency.WithLabelValues(exchange, endpoint).Observe(durationMs)
	if err != nil {
		errorCategory := NormalizeExchangeError(err)
		ExchangeAPIErrors.WithLabelValues(exchange, errorCategory).Inc()
	}
}
