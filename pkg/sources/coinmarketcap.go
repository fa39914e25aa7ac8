package sources

import (
	"context"
	"fmt"

	"github.com/assetlab-io/assetx/pkg/db/assets"
	"github.com/assetlab-io/assetx/pkg/utils"
	"go.uber.org/zap"
)

// CoinMarketCap is the paid-tier primary for valuation and market price
// data, and the primary ranked token list for weekly discovery.
type CoinMarketCap struct {
	c    *Client
	base string
}

// NewCoinMarketCap reads COINMARKETCAP_API_URL and COINMARKETCAP_API_KEY.
func NewCoinMarketCap(logger *zap.Logger) *CoinMarketCap {
	return &CoinMarketCap{
		c: NewClient(logger, Opts{
			Name: "coinmarketcap",
			RPS:  utils.EnvFloat("COINMARKETCAP_RPS", 0.5),
			Headers: map[string]string{
				"X-CMC_PRO_API_KEY": utils.Env("COINMARKETCAP_API_KEY", ""),
			},
		}),
		base: utils.Env("COINMARKETCAP_API_URL", "https://pro-api.coinmarketcap.com"),
	}
}

// quote fetches the latest USD quote document for one symbol.
func (p *CoinMarketCap) quote(ctx context.Context, symbol string) (map[string]any, map[string]any, error) {
	url := fmt.Sprintf("%s/v2/cryptocurrency/quotes/latest?symbol=%s&convert=USD", p.base, symbol)
	doc, err := p.c.GetJSON(ctx, url)
	if err != nil {
		return nil, nil, err
	}

	data := GetMapField(doc, "data")
	entries := GetSliceField(data, symbol)
	if len(entries) == 0 {
		return nil, nil, fmt.Errorf("coinmarketcap: no quote entry for %s", symbol)
	}
	item, ok := entries[0].(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("coinmarketcap: malformed quote entry for %s", symbol)
	}
	usd := GetMapField(GetMapField(item, "quote"), "USD")
	if usd == nil {
		return nil, nil, fmt.Errorf("coinmarketcap: missing USD quote for %s", symbol)
	}
	return item, usd, nil
}

// Tokenomics returns valuation and supply fields.
func (p *CoinMarketCap) Tokenomics(ctx context.Context, project assets.Project) (assets.Partial, error) {
	item, usd, err := p.quote(ctx, project.Symbol)
	if err != nil {
		return nil, err
	}

	partial := assets.Partial{}
	copyFloat(partial, "market_cap", usd, "market_cap")
	copyFloat(partial, "fully_diluted_valuation", usd, "fully_diluted_market_cap")
	copyFloat(partial, "circulating_supply", item, "circulating_supply")
	copyFloat(partial, "total_supply", item, "total_supply")
	copyFloat(partial, "max_supply", item, "max_supply")
	return partial, nil
}

// Market returns spot price and volume fields.
func (p *CoinMarketCap) Market(ctx context.Context, project assets.Project) (assets.Partial, error) {
	_, usd, err := p.quote(ctx, project.Symbol)
	if err != nil {
		return nil, err
	}

	partial := assets.Partial{}
	copyFloat(partial, "price_usd", usd, "price")
	copyFloat(partial, "volume_24h", usd, "volume_24h")
	copyFloat(partial, "percent_change_24h", usd, "percent_change_24h")
	copyFloat(partial, "percent_change_7d", usd, "percent_change_7d")
	return partial, nil
}

// Listings returns the top-ranked token list for discovery.
func (p *CoinMarketCap) Listings(ctx context.Context, limit int) ([]RankedToken, error) {
	url := fmt.Sprintf("%s/v1/cryptocurrency/listings/latest?limit=%d&convert=USD", p.base, limit)
	doc, err := p.c.GetJSON(ctx, url)
	if err != nil {
		return nil, err
	}

	var tokens []RankedToken
	for _, v := range GetSliceField(doc, "data") {
		item, ok := v.(map[string]any)
		if !ok {
			continue
		}
		rank, _ := GetInt64Field(item, "cmc_rank")
		tokens = append(tokens, RankedToken{
			Symbol: GetStringField(item, "symbol"),
			Name:   GetStringField(item, "name"),
			Rank:   rank,
		})
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("coinmarketcap: empty listings response")
	}
	return tokens, nil
}

// Category returns the provider's category label for one symbol.
func (p *CoinMarketCap) Category(ctx context.Context, project assets.Project) (string, error) {
	url := fmt.Sprintf("%s/v2/cryptocurrency/info?symbol=%s", p.base, project.Symbol)
	doc, err := p.c.GetJSON(ctx, url)
	if err != nil {
		return "", err
	}

	data := GetMapField(doc, "data")
	entries := GetSliceField(data, project.Symbol)
	if len(entries) == 0 {
		return "", fmt.Errorf("coinmarketcap: no info entry for %s", project.Symbol)
	}
	item, ok := entries[0].(map[string]any)
	if !ok {
		return "", fmt.Errorf("coinmarketcap: malformed info entry for %s", project.Symbol)
	}
	category := GetStringField(item, "category")
	if category == "" {
		return "", fmt.Errorf("coinmarketcap: missing category for %s", project.Symbol)
	}
	return category, nil
}
