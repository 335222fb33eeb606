// Package config provides configuration management for arbcore.
// This file centralizes all port constants to avoid duplication and ensure consistency.
package config

// ============================================================================
// CENTRALIZED PORT CONFIGURATION
// ============================================================================
//
// Port Allocation Strategy:
//   8080-8099: API servers
//   8200-8299: Infrastructure services (Vault, etc.)
//   9100-9199: Prometheus metrics endpoints
//
// ============================================================================

// API and Web Service Ports
const (
	// APIServerPort is the port for the main REST API server.
	APIServerPort = 8080

	// SignalStreamPort is the port serving the WebSocket signal stream, sharing
	// the API server's listener in single-process deployments.
	SignalStreamPort = APIServerPort
)

// Infrastructure Service Ports
const (
	// VaultPort is the default port for HashiCorp Vault.
	VaultPort = 8200

	// PostgresPort is the default port for PostgreSQL.
	PostgresPort = 5432

	// RedisPort is the default port for Redis.
	RedisPort = 6379

	// NATSPort is the default port for NATS messaging.
	NATSPort = 4222
)

// Monitoring Service Ports
const (
	// PipelineMetricsPort is the metrics port for the evaluation pipeline
	// process (opportunity/signal/eval-latency/circuit-breaker metrics).
	PipelineMetricsPort = 9100

	// PrometheusPort is the default port for Prometheus.
	PrometheusPort = 9090

	// GrafanaPort is the default port for Grafana.
	GrafanaPort = 3000

	// NATSExporterPort is the port for the NATS Prometheus exporter.
	NATSExporterPort = 7777
)
