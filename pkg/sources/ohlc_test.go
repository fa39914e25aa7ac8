package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatCandles(n int, price float64) []Candle {
	candles := make([]Candle, n)
	for i := range candles {
		candles[i] = Candle{Time: int64(i), Open: price, High: price, Low: price, Close: price}
	}
	return candles
}

func TestPriceBandFromCandles(t *testing.T) {
	candles := []Candle{
		{High: 10, Low: 5, Close: 7},
		{High: 20, Low: 8, Close: 12},
		{High: 15, Low: 4, Close: 12},
	}

	partial, err := PriceBandFromCandles(candles)
	require.NoError(t, err)

	assert.Equal(t, 20.0, partial["high_90d"])
	assert.Equal(t, 4.0, partial["low_90d"])
	// Last close 12 inside [4, 20]: (12-4)/(20-4) = 0.5
	assert.InDelta(t, 0.5, partial["band_position"].(float64), 1e-9)
}

func TestPriceBandFlatWindowOmitsPosition(t *testing.T) {
	partial, err := PriceBandFromCandles(flatCandles(10, 3))
	require.NoError(t, err)

	assert.Equal(t, 3.0, partial["high_90d"])
	assert.Equal(t, 3.0, partial["low_90d"])
	_, ok := partial["band_position"]
	assert.False(t, ok, "band position is undefined when high equals low")
}

func TestPriceBandEmptyInput(t *testing.T) {
	_, err := PriceBandFromCandles(nil)
	assert.Error(t, err)
}

func TestTrendFromCandles(t *testing.T) {
	// 61 bars climbing from 100 to 160 in unit steps.
	candles := make([]Candle, 61)
	for i := range candles {
		candles[i] = Candle{Time: int64(i), Close: 100 + float64(i)}
	}

	partial, err := TrendFromCandles(candles)
	require.NoError(t, err)

	// last = 160, 30 bars ago = 130, 60 bars ago = 100
	assert.InDelta(t, (160.0/130.0-1)*100, partial["growth_30d"].(float64), 1e-9)
	assert.InDelta(t, 60.0, partial["growth_60d"].(float64), 1e-9)
	// Peak close is the last bar, so drawdown is zero.
	assert.InDelta(t, 0.0, partial["drawdown_from_ath"].(float64), 1e-9)
}

func TestTrendDrawdownFromPeak(t *testing.T) {
	candles := make([]Candle, 40)
	for i := range candles {
		candles[i] = Candle{Time: int64(i), Close: 100}
	}
	candles[10].Close = 200 // peak
	candles[39].Close = 150 // latest

	partial, err := TrendFromCandles(candles)
	require.NoError(t, err)

	assert.InDelta(t, -25.0, partial["drawdown_from_ath"].(float64), 1e-9)
	_, ok := partial["growth_60d"]
	assert.False(t, ok, "fewer than 61 bars cannot produce growth_60d")
}

func TestTrendNeedsEnoughHistory(t *testing.T) {
	_, err := TrendFromCandles(flatCandles(30, 1))
	assert.Error(t, err)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "render-network", Slugify("Render Network"))
	assert.Equal(t, "bitcoin", Slugify(" Bitcoin "))
	assert.Equal(t, "protocolv2", Slugify("Protocol.V2"))
}
