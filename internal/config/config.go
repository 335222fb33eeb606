package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig                 `mapstructure:"app"`
	Database   DatabaseConfig            `mapstructure:"database"`
	Redis      RedisConfig               `mapstructure:"redis"`
	NATS       NATSConfig                `mapstructure:"nats"`
	Detector   DetectorConfig            `mapstructure:"detector"`
	Gate       GateConfig                `mapstructure:"gate"`
	Coordinator CoordinatorConfig        `mapstructure:"coordinator"`
	Exchanges  map[string]ExchangeConfig `mapstructure:"exchanges"`
	API        APIConfig                 `mapstructure:"api"`
	Monitoring MonitoringConfig          `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
}

// DatabaseConfig contains PostgreSQL/TimescaleDB settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RedisConfig contains Redis settings, used to mirror PoolGraph state for
// horizontal fan-out per the concurrency model's Redis-backed cache note.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig contains NATS messaging settings for the swap-event and
// opportunity streams.
type NATSConfig struct {
	URL             string `mapstructure:"url"`
	Prefix          string `mapstructure:"prefix"`
	EnableJetStream bool   `mapstructure:"enable_jetstream"`
}

// DetectorConfig mirrors detector.Config's thresholds so they are
// externally tunable.
type DetectorConfig struct {
	MinSpreadBps       float64 `mapstructure:"min_spread_bps"`
	MinLiquidityUsd    float64 `mapstructure:"min_liquidity_usd"`
	StaleThresholdMs   int64   `mapstructure:"stale_threshold_ms"`
	MaxPathLength      int     `mapstructure:"max_path_length"`
}

// GateConfig mirrors gate approval-check thresholds.
type GateConfig struct {
	MinCoverageHours float64 `mapstructure:"min_coverage_hours"`
	MinPSuccess      float64 `mapstructure:"min_p_success"`
}

// CoordinatorConfig mirrors signalcoord.Config's scoring/filter knobs.
type CoordinatorConfig struct {
	MinNetProfitUsd  float64 `mapstructure:"min_net_profit_usd"`
	MaxRiskScore     float64 `mapstructure:"max_risk_score"`
	ValidForSeconds  float64 `mapstructure:"valid_for_seconds"`
	RunMonteCarlo    bool    `mapstructure:"run_monte_carlo"`
}

// ExchangeConfig contains exchange-specific connectivity settings. API
// keys are resolved through vault.Client first, falling back to these
// fields only when Vault is unavailable.
type ExchangeConfig struct {
	APIKey      string `mapstructure:"api_key"`
	SecretKey   string `mapstructure:"secret_key"`
	Testnet     bool   `mapstructure:"testnet"`
	RateLimitMS int    `mapstructure:"rate_limit_ms"`
}

// APIConfig contains REST API settings.
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MonitoringConfig contains monitoring settings.
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("ARBCORE")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "arbcore")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "arbcore")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.prefix", "arbcore.")
	v.SetDefault("nats.enable_jetstream", true)

	v.SetDefault("detector.min_spread_bps", 20.0)
	v.SetDefault("detector.min_liquidity_usd", 10000.0)
	v.SetDefault("detector.stale_threshold_ms", 3000)
	v.SetDefault("detector.max_path_length", 3)

	v.SetDefault("gate.min_coverage_hours", 24.0)
	v.SetDefault("gate.min_p_success", 0.5)

	v.SetDefault("coordinator.min_net_profit_usd", 5.0)
	v.SetDefault("coordinator.max_risk_score", 0.7)
	v.SetDefault("coordinator.valid_for_seconds", 5.0)
	v.SetDefault("coordinator.run_monte_carlo", false)

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8081)

	v.SetDefault("monitoring.prometheus_port", 9100)
	v.SetDefault("monitoring.enable_metrics", true)

	v.SetDefault("exchanges.binance.rate_limit_ms", 100)
}

// GetDSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address.
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAPIAddr returns the API server address.
func (c *APIConfig) GetAPIAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
