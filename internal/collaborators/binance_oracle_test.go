package collaborators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinancePriceOracle_StablecoinsShortCircuitToOne(t *testing.T) {
	oracle := NewBinancePriceOracle(DefaultBinanceOracleConfig())

	for _, sym := range []string{"USDC", "USDT", "DAI", "BUSD"} {
		price, err := oracle.UsdPerToken(context.Background(), sym)
		require.NoError(t, err)
		assert.Equal(t, 1.0, price)
	}
}
