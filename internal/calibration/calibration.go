// Package calibration supplies optional pre-computed context -- realized
// volatility, a regime classification, Sharpe ratio, VaR/CVaR and drawdown
// of past equity -- that a caller may fold into an evaluation's inputs
// (for example, widening gasUsdStd/adverseUsdStd in a high-volatility
// regime). Everything here is closed-form statistics over historical data,
// never model inference.
package calibration

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PoolInterface is the minimal pgx surface calibration queries against.
type PoolInterface interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// Hints is the optional calibration context for one symbol/account as of
// the time it was computed.
type Hints struct {
	Regime          string
	Volatility      float64
	TrendStrength   float64
	SharpeRatio     float64
	VaR95           float64
	CVaR95          float64
	CurrentDrawdown float64
	MaxDrawdown     float64
	ComputedAt      time.Time
}

// Provider computes Hints from a symbol's historical candles and an
// account's equity curve, both loaded from a TimescaleDB-backed pool.
type Provider struct {
	pool PoolInterface
}

// NewProvider wraps a pgxpool.Pool.
func NewProvider(pool *pgxpool.Pool) *Provider {
	return &Provider{pool: pool}
}

// NewProviderWithPool accepts any PoolInterface implementation, for tests.
func NewProviderWithPool(pool PoolInterface) *Provider {
	return &Provider{pool: pool}
}

// Hints loads `days` of daily candles for symbol and the account's equity
// curve over the same window, then derives a full Hints value.
func (p *Provider) Hints(ctx context.Context, symbol string, days int, now time.Time) (Hints, error) {
	prices, err := p.loadPrices(ctx, symbol, days)
	if err != nil {
		return Hints{}, fmt.Errorf("loading prices for %s: %w", symbol, err)
	}
	if len(prices) < 2 {
		return Hints{}, fmt.Errorf("insufficient price history for %s: need 2+ points, got %d", symbol, len(prices))
	}
	returns := returnsFrom(prices)

	equity, err := p.loadEquityCurve(ctx, days)
	if err != nil {
		return Hints{}, fmt.Errorf("loading equity curve: %w", err)
	}

	regime, volatility, trend := classifyRegime(prices, returns)
	sharpe, _ := sharpeRatio(returns, 0)
	var95, cvar95, _ := varCVaR(returns, 0.95)
	currentDD, maxDD, _ := drawdown(equity)

	hints := Hints{
		Regime:          regime,
		Volatility:      volatility,
		TrendStrength:   trend,
		SharpeRatio:      sharpe,
		VaR95:           var95,
		CVaR95:          cvar95,
		CurrentDrawdown: currentDD,
		MaxDrawdown:     maxDD,
		ComputedAt:      now,
	}

	log.Debug().
		Str("symbol", symbol).
		Str("regime", regime).
		Float64("volatility", volatility).
		Float64("sharpe", sharpe).
		Msg("calibration hints computed")

	return hints, nil
}

func (p *Provider) loadPrices(ctx context.Context, symbol string, days int) ([]float64, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT close
		FROM candlesticks
		WHERE symbol = $1
			AND interval = $2
			AND open_time >= NOW() - INTERVAL '1 day' * $3
		ORDER BY open_time ASC
	`, symbol, "1d", days)
	if err != nil {
		return nil, fmt.Errorf("querying candlesticks: %w", err)
	}
	defer rows.Close()

	var prices []float64
	for rows.Next() {
		var price float64
		if err := rows.Scan(&price); err != nil {
			return nil, fmt.Errorf("scanning price row: %w", err)
		}
		prices = append(prices, price)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating price rows: %w", err)
	}
	return prices, nil
}

func (p *Provider) loadEquityCurve(ctx context.Context, days int) ([]float64, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT equity
		FROM equity_snapshots
		WHERE snapshot_at >= NOW() - INTERVAL '1 day' * $1
		ORDER BY snapshot_at ASC
	`, days)
	if err != nil {
		return nil, fmt.Errorf("querying equity_snapshots: %w", err)
	}
	defer rows.Close()

	var equity []float64
	for rows.Next() {
		var value float64
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scanning equity row: %w", err)
		}
		equity = append(equity, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating equity rows: %w", err)
	}
	return equity, nil
}

// returnsFrom derives simple period returns from a price series.
func returnsFrom(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
	}
	return returns
}

// classifyRegime reports a bullish/bearish/sideways (or volatile_sideways)
// label plus realized volatility and trend strength, from a 10/20-period
// moving average crossover.
func classifyRegime(prices, returns []float64) (regime string, volatility, trendStrength float64) {
	volatility = stdDev(returns)
	shortMA := movingAverage(prices, 10)
	longMA := movingAverage(prices, 20)

	currentPrice := prices[len(prices)-1]
	startPrice := prices[0]

	priceTrend := 0.0
	if startPrice > 0 {
		priceTrend = (currentPrice - startPrice) / startPrice
	}
	maTrend := 0.0
	if longMA > 0 {
		maTrend = (shortMA - longMA) / longMA
	}
	trendStrength = (priceTrend + maTrend) / 2.0

	switch {
	case maTrend > 0.02 && priceTrend > 0:
		regime = "bullish"
	case maTrend < -0.02 && priceTrend < 0:
		regime = "bearish"
	default:
		regime = "sideways"
	}
	if volatility > 0.05 && regime == "sideways" {
		regime = "volatile_sideways"
	}
	return regime, volatility, trendStrength
}

// sharpeRatio computes an annualized Sharpe ratio assuming daily returns
// (252 trading days/year), using sample standard deviation.
func sharpeRatio(returns []float64, riskFreeRate float64) (float64, error) {
	if len(returns) == 0 {
		return 0, fmt.Errorf("returns series is empty")
	}
	mean := meanOf(returns)
	sd := sampleStdDev(returns, mean)
	if sd == 0 {
		return 0, fmt.Errorf("standard deviation is zero")
	}
	annualizedReturn := mean * 252.0
	annualizedStdDev := sd * math.Sqrt(252.0)
	return (annualizedReturn - riskFreeRate) / annualizedStdDev, nil
}

// varCVaR computes historical-simulation VaR and CVaR at confidenceLevel
// (e.g. 0.95), following the sort-then-percentile-index method.
func varCVaR(returns []float64, confidenceLevel float64) (varAt, cvarAt float64, err error) {
	if len(returns) == 0 {
		return 0, 0, fmt.Errorf("returns series is empty")
	}
	if confidenceLevel <= 0 || confidenceLevel >= 1 {
		return 0, 0, fmt.Errorf("confidence level must be between 0 and 1")
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(float64(len(sorted)) * (1 - confidenceLevel))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	varAt = sorted[idx]

	sum := 0.0
	for i := 0; i <= idx; i++ {
		sum += sorted[i]
	}
	cvarAt = sum / float64(idx+1)
	return varAt, cvarAt, nil
}

// drawdown returns the current and maximum peak-to-trough drawdown of an
// equity curve, plus the running peak.
func drawdown(equity []float64) (currentDD, maxDD, peakEquity float64) {
	if len(equity) == 0 {
		return 0, 0, 0
	}
	peak := equity[0]
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	current := equity[len(equity)-1]
	if current < peak && peak > 0 {
		currentDD = (peak - current) / peak
	}
	return currentDD, maxDD, peak
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev uses Bessel's correction (N-1) when more than one sample is
// present.
func sampleStdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	if len(values) > 1 {
		variance /= float64(len(values) - 1)
	} else {
		variance /= float64(len(values))
	}
	return math.Sqrt(variance)
}

func stdDev(values []float64) float64 {
	return sampleStdDev(values, meanOf(values))
}

func movingAverage(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	if period > len(values) {
		period = len(values)
	}
	window := values[len(values)-period:]
	return meanOf(window)
}
