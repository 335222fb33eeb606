package config

import (
	"fmt"
	"os"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	sb.WriteString("\nPlease fix the above errors and try again.\n")
	return sb.String()
}

// Validate performs comprehensive configuration validation.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateApp()...)
	errors = append(errors, c.validateDatabase()...)
	errors = append(errors, c.validateRedis()...)
	errors = append(errors, c.validateNATS()...)
	errors = append(errors, c.validateDetector()...)
	errors = append(errors, c.validateGate()...)
	errors = append(errors, c.validateCoordinator()...)
	errors = append(errors, c.validateExchanges()...)
	errors = append(errors, c.validateAPI()...)
	errors = append(errors, c.validateEnvironmentRequirements()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errors ValidationErrors

	if c.App.Name == "" {
		errors = append(errors, ValidationError{Field: "app.name", Message: "Application name is required"})
	}

	if c.App.Environment == "" {
		errors = append(errors, ValidationError{
			Field:   "app.environment",
			Message: "Environment is required (development, staging, or production)",
		})
	} else {
		validEnvs := []string{"development", "staging", "production"}
		valid := false
		for _, env := range validEnvs {
			if c.App.Environment == env {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, ValidationError{
				Field:   "app.environment",
				Message: fmt.Sprintf("Invalid environment '%s'. Must be one of: %v", c.App.Environment, validEnvs),
			})
		}
	}

	if c.App.LogLevel == "" {
		errors = append(errors, ValidationError{Field: "app.log_level", Message: "Log level is required (debug, info, warn, error)"})
	}

	return errors
}

func (c *Config) validateDatabase() ValidationErrors {
	var errors ValidationErrors

	if c.Database.Host == "" {
		errors = append(errors, ValidationError{Field: "database.host", Message: "Database host is required"})
	}

	if c.Database.Port == 0 {
		errors = append(errors, ValidationError{Field: "database.port", Message: "Database port is required"})
	} else if c.Database.Port < 1 || c.Database.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "database.port",
			Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", c.Database.Port),
		})
	}

	if c.Database.User == "" {
		errors = append(errors, ValidationError{Field: "database.user", Message: "Database user is required"})
	}

	if c.Database.Database == "" {
		errors = append(errors, ValidationError{Field: "database.database", Message: "Database name is required"})
	}

	if c.Database.Password == "" && c.App.Environment != "development" {
		errors = append(errors, ValidationError{
			Field:   "database.password",
			Message: "Database password is required in non-development environments",
		})
	}

	if c.Database.PoolSize < 1 {
		errors = append(errors, ValidationError{Field: "database.pool_size", Message: "Database pool size must be at least 1"})
	}

	return errors
}

func (c *Config) validateRedis() ValidationErrors {
	var errors ValidationErrors

	if c.Redis.Host == "" {
		errors = append(errors, ValidationError{Field: "redis.host", Message: "Redis host is required"})
	}

	if c.Redis.Port == 0 {
		errors = append(errors, ValidationError{Field: "redis.port", Message: "Redis port is required"})
	} else if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "redis.port",
			Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", c.Redis.Port),
		})
	}

	return errors
}

func (c *Config) validateNATS() ValidationErrors {
	var errors ValidationErrors

	if c.NATS.URL == "" {
		errors = append(errors, ValidationError{Field: "nats.url", Message: "NATS URL is required"})
	} else if !strings.HasPrefix(c.NATS.URL, "nats://") {
		errors = append(errors, ValidationError{Field: "nats.url", Message: "NATS URL must start with 'nats://'"})
	}

	return errors
}

func (c *Config) validateDetector() ValidationErrors {
	var errors ValidationErrors

	if c.Detector.MinSpreadBps <= 0 {
		errors = append(errors, ValidationError{
			Field:   "detector.min_spread_bps",
			Message: fmt.Sprintf("Invalid min_spread_bps %.2f. Must be greater than 0", c.Detector.MinSpreadBps),
		})
	}

	if c.Detector.MinLiquidityUsd < 0 {
		errors = append(errors, ValidationError{Field: "detector.min_liquidity_usd", Message: "min_liquidity_usd must be non-negative"})
	}

	if c.Detector.StaleThresholdMs <= 0 {
		errors = append(errors, ValidationError{Field: "detector.stale_threshold_ms", Message: "stale_threshold_ms must be greater than 0"})
	}

	if c.Detector.MaxPathLength < 2 {
		errors = append(errors, ValidationError{Field: "detector.max_path_length", Message: "max_path_length must be at least 2"})
	}

	return errors
}

func (c *Config) validateGate() ValidationErrors {
	var errors ValidationErrors

	if c.Gate.MinCoverageHours < 0 {
		errors = append(errors, ValidationError{Field: "gate.min_coverage_hours", Message: "min_coverage_hours must be non-negative"})
	}

	if c.Gate.MinPSuccess < 0 || c.Gate.MinPSuccess > 1 {
		errors = append(errors, ValidationError{
			Field:   "gate.min_p_success",
			Message: fmt.Sprintf("Invalid min_p_success %.2f. Must be between 0-1", c.Gate.MinPSuccess),
		})
	}

	return errors
}

func (c *Config) validateCoordinator() ValidationErrors {
	var errors ValidationErrors

	if c.Coordinator.MinNetProfitUsd < 0 {
		errors = append(errors, ValidationError{Field: "coordinator.min_net_profit_usd", Message: "min_net_profit_usd must be non-negative"})
	}

	if c.Coordinator.MaxRiskScore < 0 || c.Coordinator.MaxRiskScore > 1 {
		errors = append(errors, ValidationError{
			Field:   "coordinator.max_risk_score",
			Message: fmt.Sprintf("Invalid max_risk_score %.2f. Must be between 0-1", c.Coordinator.MaxRiskScore),
		})
	}

	if c.Coordinator.ValidForSeconds <= 0 {
		errors = append(errors, ValidationError{Field: "coordinator.valid_for_seconds", Message: "valid_for_seconds must be greater than 0"})
	}

	return errors
}

func (c *Config) validateExchanges() ValidationErrors {
	var errors ValidationErrors

	if len(c.Exchanges) == 0 {
		errors = append(errors, ValidationError{Field: "exchanges", Message: "At least one exchange must be configured"})
	}

	for exchangeName, exchangeConfig := range c.Exchanges {
		if exchangeConfig.RateLimitMS < 0 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("exchanges.%s.rate_limit_ms", exchangeName),
				Message: "Rate limit must be non-negative",
			})
		}
	}

	return errors
}

func (c *Config) validateAPI() ValidationErrors {
	var errors ValidationErrors

	if c.API.Port == 0 {
		errors = append(errors, ValidationError{Field: "api.port", Message: "API port is required"})
	} else if c.API.Port < 1 || c.API.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "api.port",
			Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", c.API.Port),
		})
	}

	return errors
}

func (c *Config) validateEnvironmentRequirements() ValidationErrors {
	var errors ValidationErrors

	if c.App.Environment == "production" {
		secretErrors := ValidateProductionSecrets(c)
		errors = append(errors, secretErrors...)

		for exchangeName, exchangeConfig := range c.Exchanges {
			if exchangeConfig.Testnet {
				errors = append(errors, ValidationError{
					Field:   fmt.Sprintf("exchanges.%s.testnet", exchangeName),
					Message: "Testnet mode must be disabled in production",
				})
			}
		}

		if c.Database.SSLMode == "disable" {
			errors = append(errors, ValidationError{Field: "database.ssl_mode", Message: "SSL must be enabled for database in production"})
		}
	}

	criticalEnvVars := []string{"DATABASE_URL"}
	for _, envVar := range criticalEnvVars {
		if os.Getenv(envVar) == "" && c.App.Environment == "production" {
			if envVar == "DATABASE_URL" && c.Database.Host != "" && c.Database.Database != "" {
				continue
			}
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("env.%s", envVar),
				Message: fmt.Sprintf("Environment variable %s is required in production", envVar),
			})
		}
	}

	return errors
}

// ValidateAndLoad loads and validates configuration. configPath can be
// empty to use default config locations.
func ValidateAndLoad(configPath string) (*Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
