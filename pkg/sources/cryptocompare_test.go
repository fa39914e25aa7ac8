package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/assetlab-io/assetx/pkg/db/assets"
)

const histodayBody = `{
	"Response": "Success",
	"Data": {
		"Data": [
			{"time": 1700000000, "open": 10, "high": 12, "low": 9, "close": 11},
			{"time": 1700086400, "open": 11, "high": 14, "low": 10, "close": 13},
			{"time": 1700172800, "open": 13, "high": 13.5, "low": 8, "close": 9}
		]
	}
}`

func TestDailyCandlesParsesHistoday(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/v2/histoday", r.URL.Path)
		assert.Equal(t, "BTC", r.URL.Query().Get("fsym"))
		assert.Equal(t, "USD", r.URL.Query().Get("tsym"))
		_, _ = w.Write([]byte(histodayBody))
	}))
	defer srv.Close()
	t.Setenv("CRYPTOCOMPARE_API_URL", srv.URL)

	p := NewCryptoCompare(zaptest.NewLogger(t))
	candles, err := p.DailyCandles(context.Background(), assets.Project{Symbol: "BTC"}, 90)
	require.NoError(t, err)

	require.Len(t, candles, 3)
	assert.Equal(t, int64(1700000000), candles[0].Time)
	assert.Equal(t, 14.0, candles[1].High)
	assert.Equal(t, 9.0, candles[2].Close)
}

func TestDailyCandlesErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"Response": "Error", "Message": "symbol not found"}`))
	}))
	defer srv.Close()
	t.Setenv("CRYPTOCOMPARE_API_URL", srv.URL)

	p := NewCryptoCompare(zaptest.NewLogger(t))
	_, err := p.DailyCandles(context.Background(), assets.Project{Symbol: "NOPE"}, 90)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol not found")
}

func TestPriceBandEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(histodayBody))
	}))
	defer srv.Close()
	t.Setenv("CRYPTOCOMPARE_API_URL", srv.URL)

	p := NewCryptoCompare(zaptest.NewLogger(t))
	partial, err := p.PriceBand(context.Background(), assets.Project{Symbol: "BTC"})
	require.NoError(t, err)

	assert.Equal(t, 14.0, partial["high_90d"])
	assert.Equal(t, 8.0, partial["low_90d"])
}
