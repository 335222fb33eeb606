package calibration

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHints_LoadsPricesAndEquityAndComputesRegime(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	provider := NewProviderWithPool(mock)

	priceRows := pgxmock.NewRows([]string{"close"})
	base := 100.0
	for i := 0; i < 25; i++ {
		base *= 1.01
		priceRows.AddRow(base)
	}
	mock.ExpectQuery("SELECT close").
		WithArgs("ETH/USDC", "1d", 30).
		WillReturnRows(priceRows)

	equityRows := pgxmock.NewRows([]string{"equity"}).
		AddRow(10_000.0).
		AddRow(10_500.0).
		AddRow(10_200.0).
		AddRow(10_800.0)
	mock.ExpectQuery("SELECT equity").
		WithArgs(30).
		WillReturnRows(equityRows)

	hints, err := provider.Hints(context.Background(), "ETH/USDC", 30, time.Now())
	require.NoError(t, err)

	assert.Equal(t, "bullish", hints.Regime)
	assert.Zero(t, hints.CurrentDrawdown)
	assert.GreaterOrEqual(t, hints.MaxDrawdown, hints.CurrentDrawdown)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHints_InsufficientPriceHistoryErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	provider := NewProviderWithPool(mock)

	mock.ExpectQuery("SELECT close").
		WithArgs("BTC/USDT", "1d", 30).
		WillReturnRows(pgxmock.NewRows([]string{"close"}).AddRow(100.0))

	_, err = provider.Hints(context.Background(), "BTC/USDT", 30, time.Now())
	assert.Error(t, err)
}

func TestClassifyRegime_BullishOnSustainedUptrend(t *testing.T) {
	prices := make([]float64, 0, 25)
	base := 100.0
	for i := 0; i < 25; i++ {
		base *= 1.01
		prices = append(prices, base)
	}
	returns := returnsFrom(prices)

	regime, vol, trend := classifyRegime(prices, returns)
	assert.Equal(t, "bullish", regime)
	assert.Greater(t, trend, 0.0)
	assert.GreaterOrEqual(t, vol, 0.0)
}

func TestClassifyRegime_BearishOnSustainedDowntrend(t *testing.T) {
	prices := make([]float64, 0, 25)
	base := 100.0
	for i := 0; i < 25; i++ {
		base *= 0.99
		prices = append(prices, base)
	}
	returns := returnsFrom(prices)

	regime, _, trend := classifyRegime(prices, returns)
	assert.Equal(t, "bearish", regime)
	assert.Less(t, trend, 0.0)
}

func TestSharpeRatio_PositiveForConsistentPositiveReturns(t *testing.T) {
	returns := []float64{0.01, 0.012, 0.009, 0.011, 0.01}
	sharpe, err := sharpeRatio(returns, 0)
	require.NoError(t, err)
	assert.Greater(t, sharpe, 0.0)
}

func TestSharpeRatio_ErrorsOnZeroVariance(t *testing.T) {
	returns := []float64{0.01, 0.01, 0.01}
	_, err := sharpeRatio(returns, 0)
	assert.Error(t, err)
}

func TestVarCVaR_CVaRNeverLessExtremeThanVaR(t *testing.T) {
	returns := []float64{-0.1, -0.05, -0.02, 0.0, 0.01, 0.02, 0.03, 0.04, 0.05, 0.1}
	varAt, cvarAt, err := varCVaR(returns, 0.9)
	require.NoError(t, err)
	assert.LessOrEqual(t, cvarAt, varAt)
}

func TestDrawdown_TracksPeakToTrough(t *testing.T) {
	equity := []float64{100, 120, 90, 110}
	currentDD, maxDD, peak := drawdown(equity)
	assert.Equal(t, 120.0, peak)
	assert.InDelta(t, 0.25, maxDD, 1e-9)
	assert.InDelta(t, (120.0-110.0)/120.0, currentDD, 1e-9)
}

func TestDrawdown_EmptyEquityIsZero(t *testing.T) {
	currentDD, maxDD, peak := drawdown(nil)
	assert.Zero(t, currentDD)
	assert.Zero(t, maxDD)
	assert.Zero(t, peak)
}
