package sources

import (
	"context"
	"fmt"
	"net/url"

	"github.com/assetlab-io/assetx/pkg/db/assets"
	"github.com/assetlab-io/assetx/pkg/utils"
	"go.uber.org/zap"
)

// CryptoCompare is the primary historical OHLC provider, backing the price
// band and market trend categories.
type CryptoCompare struct {
	c    *Client
	base string
}

// NewCryptoCompare reads CRYPTOCOMPARE_API_URL and CRYPTOCOMPARE_API_KEY.
func NewCryptoCompare(logger *zap.Logger) *CryptoCompare {
	headers := map[string]string{}
	if key := utils.Env("CRYPTOCOMPARE_API_KEY", ""); key != "" {
		headers["authorization"] = "Apikey " + key
	}
	return &CryptoCompare{
		c: NewClient(logger, Opts{
			Name:    "cryptocompare",
			RPS:     utils.EnvFloat("CRYPTOCOMPARE_RPS", 2),
			Headers: headers,
		}),
		base: utils.Env("CRYPTOCOMPARE_API_URL", "https://min-api.cryptocompare.com"),
	}
}

// DailyCandles returns up to `days` daily OHLC bars for one symbol.
func (p *CryptoCompare) DailyCandles(ctx context.Context, project assets.Project, days int) ([]Candle, error) {
	u := fmt.Sprintf("%s/data/v2/histoday?fsym=%s&tsym=USD&limit=%d",
		p.base, url.QueryEscape(project.Symbol), days)
	doc, err := p.c.GetJSON(ctx, u)
	if err != nil {
		return nil, err
	}
	if response := GetStringField(doc, "Response"); response == "Error" {
		return nil, fmt.Errorf("cryptocompare: %s", GetStringField(doc, "Message"))
	}

	// histoday nests the bar array under Data.Data
	var candles []Candle
	for _, v := range GetSliceField(GetMapField(doc, "Data"), "Data") {
		bar, ok := v.(map[string]any)
		if !ok {
			continue
		}
		t, _ := GetInt64Field(bar, "time")
		o, _ := GetFloat64Field(bar, "open")
		h, _ := GetFloat64Field(bar, "high")
		l, _ := GetFloat64Field(bar, "low")
		c, _ := GetFloat64Field(bar, "close")
		candles = append(candles, Candle{Time: t, Open: o, High: h, Low: l, Close: c})
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("cryptocompare: empty histoday response for %s", project.Symbol)
	}
	return candles, nil
}

// PriceBand returns the 90-day band fields.
func (p *CryptoCompare) PriceBand(ctx context.Context, project assets.Project) (assets.Partial, error) {
	candles, err := p.DailyCandles(ctx, project, 90)
	if err != nil {
		return nil, err
	}
	return PriceBandFromCandles(candles)
}

// Trend returns growth/decline fields computed over 90 days of history.
func (p *CryptoCompare) Trend(ctx context.Context, project assets.Project) (assets.Partial, error) {
	candles, err := p.DailyCandles(ctx, project, 90)
	if err != nil {
		return nil, err
	}
	return TrendFromCandles(candles)
}
