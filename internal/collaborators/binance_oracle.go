// Package collaborators adapts concrete infrastructure (Binance, NATS,
// Postgres, and an in-memory double) to the engine package's collaborator
// interfaces: PoolStateProvider, SwapEventStream, MarketPriceOracle and
// OpportunityStream.
package collaborators

import (
	"context"
	"fmt"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// BinanceOracleConfig configures BinancePriceOracle.
type BinanceOracleConfig struct {
	APIKey    string
	SecretKey string
	Testnet   bool

	// QuoteAsset is the asset prices are quoted against, e.g. "USDT".
	QuoteAsset string

	Retry RetryConfig
}

// DefaultBinanceOracleConfig returns sane testnet-friendly defaults.
func DefaultBinanceOracleConfig() BinanceOracleConfig {
	return BinanceOracleConfig{
		QuoteAsset: "USDT",
		Retry:      DefaultRetryConfig(),
	}
}

// BinancePriceOracle implements engine.MarketPriceOracle over the Binance
// REST ticker price endpoint, guarded by a circuit breaker and exponential
// backoff retry.
type BinancePriceOracle struct {
	client  *binance.Client
	quote   string
	retry   RetryConfig
	breaker *gobreaker.CircuitBreaker
}

// NewBinancePriceOracle builds a BinancePriceOracle. Stablecoins (USDC,
// USDT, DAI, BUSD) resolve to 1.0 without a network call.
func NewBinancePriceOracle(cfg BinanceOracleConfig) *BinancePriceOracle {
	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.Testnet {
		binance.UseTestnet = true
	}
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "binance_oracle",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("binance oracle circuit breaker state change")
		},
	})

	return &BinancePriceOracle{client: client, quote: cfg.QuoteAsset, retry: cfg.Retry, breaker: breaker}
}

var stablecoins = map[string]bool{
	"USDC": true, "USDT": true, "DAI": true, "BUSD": true, "TUSD": true,
}

// UsdPerToken resolves a token symbol to its current USD price.
func (o *BinancePriceOracle) UsdPerToken(ctx context.Context, token string) (float64, error) {
	if stablecoins[token] {
		return 1.0, nil
	}

	symbol := token + o.quote
	var price float64

	_, err := o.breaker.Execute(func() (interface{}, error) {
		return nil, WithRetry(ctx, o.retry, func() error {
			ticker, err := o.client.NewListPricesService().Symbol(symbol).Do(ctx)
			if err != nil {
				return err
			}
			if len(ticker) == 0 {
				return fmt.Errorf("no price returned for %s", symbol)
			}
			p, err := strconv.ParseFloat(ticker[0].Price, 64)
			if err != nil {
				return fmt.Errorf("parsing price for %s: %w", symbol, err)
			}
			price = p
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("binance oracle: %w", err)
	}
	return price, nil
}
