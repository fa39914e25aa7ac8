package sources

import (
	"fmt"

	"github.com/assetlab-io/assetx/pkg/db/assets"
)

// PriceBandFromCandles derives the 90-day price band from daily candles:
// window high, window low and where the latest close sits inside the band
// (0 = at the low, 1 = at the high).
func PriceBandFromCandles(candles []Candle) (assets.Partial, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("price band: no candles")
	}

	high := candles[0].High
	low := candles[0].Low
	for _, c := range candles {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}

	partial := assets.Partial{
		"high_90d": high,
		"low_90d":  low,
	}
	if high > low {
		last := candles[len(candles)-1].Close
		partial["band_position"] = (last - low) / (high - low)
	}
	return partial, nil
}

// TrendFromCandles derives growth/decline percentages from daily candles.
// growth_30d requires at least 31 bars; the drawdown is measured against
// the highest close in the window.
func TrendFromCandles(candles []Candle) (assets.Partial, error) {
	n := len(candles)
	if n < 31 {
		return nil, fmt.Errorf("trend: need at least 31 candles, got %d", n)
	}

	last := candles[n-1].Close
	partial := assets.Partial{}

	if base := candles[n-31].Close; base > 0 {
		partial["growth_30d"] = (last/base - 1) * 100
	}
	if n >= 61 {
		if base := candles[n-61].Close; base > 0 {
			partial["growth_60d"] = (last/base - 1) * 100
		}
	}

	peak := candles[0].Close
	for _, c := range candles {
		if c.Close > peak {
			peak = c.Close
		}
	}
	if peak > 0 {
		partial["drawdown_from_ath"] = (last/peak - 1) * 100
	}
	return partial, nil
}
