package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getValidConfig returns a valid configuration for testing.
func getValidConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "arbcore",
			Version:     "1.0.0",
			Environment: "development",
			LogLevel:    "info",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "secure_password",
			Database: "arbcore",
			SSLMode:  "disable",
			PoolSize: 10,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
			DB:   0,
		},
		NATS: NATSConfig{
			URL:             "nats://localhost:4222",
			Prefix:          "arbcore.",
			EnableJetStream: true,
		},
		Detector: DetectorConfig{
			MinSpreadBps:     20.0,
			MinLiquidityUsd:  10000.0,
			StaleThresholdMs: 3000,
			MaxPathLength:    3,
		},
		Gate: GateConfig{
			MinCoverageHours: 24.0,
			MinPSuccess:      0.5,
		},
		Coordinator: CoordinatorConfig{
			MinNetProfitUsd: 5.0,
			MaxRiskScore:    0.7,
			ValidForSeconds: 5.0,
		},
		Exchanges: map[string]ExchangeConfig{
			"binance": {
				APIKey:      "test_api_key",
				SecretKey:   "test_secret_key",
				Testnet:     true,
				RateLimitMS: 100,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Monitoring: MonitoringConfig{
			PrometheusPort: 9100,
			EnableMetrics:  true,
		},
	}
}

func TestValidateValidConfig(t *testing.T) {
	cfg := getValidConfig()
	assert.NoError(t, cfg.Validate(), "valid configuration should not produce errors")
}

func TestValidateApp(t *testing.T) {
	t.Run("missing name", func(t *testing.T) {
		cfg := getValidConfig()
		cfg.App.Name = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("invalid environment", func(t *testing.T) {
		cfg := getValidConfig()
		cfg.App.Environment = "sandbox"
		require.Error(t, cfg.Validate())
	})

	t.Run("missing log level", func(t *testing.T) {
		cfg := getValidConfig()
		cfg.App.LogLevel = ""
		require.Error(t, cfg.Validate())
	})
}

func TestValidateDatabase(t *testing.T) {
	t.Run("missing host", func(t *testing.T) {
		cfg := getValidConfig()
		cfg.Database.Host = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("invalid port", func(t *testing.T) {
		cfg := getValidConfig()
		cfg.Database.Port = 99999
		require.Error(t, cfg.Validate())
	})

	t.Run("password required outside development", func(t *testing.T) {
		cfg := getValidConfig()
		cfg.App.Environment = "staging"
		cfg.Database.Password = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("pool size must be positive", func(t *testing.T) {
		cfg := getValidConfig()
		cfg.Database.PoolSize = 0
		require.Error(t, cfg.Validate())
	})
}

func TestValidateRedis(t *testing.T) {
	cfg := getValidConfig()
	cfg.Redis.Host = ""
	require.Error(t, cfg.Validate())
}

func TestValidateNATS(t *testing.T) {
	t.Run("missing url", func(t *testing.T) {
		cfg := getValidConfig()
		cfg.NATS.URL = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("wrong scheme", func(t *testing.T) {
		cfg := getValidConfig()
		cfg.NATS.URL = "http://localhost:4222"
		require.Error(t, cfg.Validate())
	})
}

func TestValidateDetector(t *testing.T) {
	t.Run("min spread must be positive", func(t *testing.T) {
		cfg := getValidConfig()
		cfg.Detector.MinSpreadBps = 0
		require.Error(t, cfg.Validate())
	})

	t.Run("negative liquidity floor rejected", func(t *testing.T) {
		cfg := getValidConfig()
		cfg.Detector.MinLiquidityUsd = -1
		require.Error(t, cfg.Validate())
	})

	t.Run("path length minimum", func(t *testing.T) {
		cfg := getValidConfig()
		cfg.Detector.MaxPathLength = 1
		require.Error(t, cfg.Validate())
	})
}

func TestValidateGate(t *testing.T) {
	cfg := getValidConfig()
	cfg.Gate.MinPSuccess = 1.5
	require.Error(t, cfg.Validate())
}

func TestValidateCoordinator(t *testing.T) {
	t.Run("max risk score bounded to 0-1", func(t *testing.T) {
		cfg := getValidConfig()
		cfg.Coordinator.MaxRiskScore = 2.0
		require.Error(t, cfg.Validate())
	})

	t.Run("valid_for_seconds must be positive", func(t *testing.T) {
		cfg := getValidConfig()
		cfg.Coordinator.ValidForSeconds = 0
		require.Error(t, cfg.Validate())
	})
}

func TestValidateExchanges(t *testing.T) {
	t.Run("at least one exchange required", func(t *testing.T) {
		cfg := getValidConfig()
		cfg.Exchanges = map[string]ExchangeConfig{}
		require.Error(t, cfg.Validate())
	})

	t.Run("negative rate limit rejected", func(t *testing.T) {
		cfg := getValidConfig()
		cfg.Exchanges["binance"] = ExchangeConfig{RateLimitMS: -1}
		require.Error(t, cfg.Validate())
	})
}

func TestValidateAPI(t *testing.T) {
	cfg := getValidConfig()
	cfg.API.Port = 0
	require.Error(t, cfg.Validate())
}

func TestValidateEnvironmentRequirements(t *testing.T) {
	t.Run("testnet disallowed in production", func(t *testing.T) {
		cfg := getValidConfig()
		cfg.App.Environment = "production"
		cfg.Database.SSLMode = "require"
		cfg.Database.Password = "prod-password-12345678"
		cfg.Exchanges["binance"] = ExchangeConfig{Testnet: true, RateLimitMS: 100}
		os.Setenv("DATABASE_URL", "postgres://x")
		defer os.Unsetenv("DATABASE_URL")

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "testnet")
	})

	t.Run("ssl required in production", func(t *testing.T) {
		cfg := getValidConfig()
		cfg.App.Environment = "production"
		cfg.Database.SSLMode = "disable"
		cfg.Database.Password = "prod-password-12345678"
		cfg.Exchanges["binance"] = ExchangeConfig{Testnet: false, RateLimitMS: 100}
		os.Setenv("DATABASE_URL", "postgres://x")
		defer os.Unsetenv("DATABASE_URL")

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ssl_mode")
	})
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a.b", Message: "broken"},
		{Field: "c.d", Message: "also broken"},
	}
	msg := errs.Error()
	assert.Contains(t, msg, "2 error(s)")
	assert.Contains(t, msg, "a.b")
	assert.Contains(t, msg, "c.d")
}

func TestValidationErrors_Empty(t *testing.T) {
	var errs ValidationErrors
	assert.Equal(t, "", errs.Error())
}

func TestValidateAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("database:\n  host: localhost\n  database: arbcore\n  user: postgres\n"), 0o600))

	_, err := ValidateAndLoad(path)
	require.NoError(t, err)
}
