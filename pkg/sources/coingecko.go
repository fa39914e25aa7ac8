package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/assetlab-io/assetx/pkg/db/assets"
	"github.com/assetlab-io/assetx/pkg/utils"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// CoinGecko is the general-purpose fallback provider: valuation, market
// price, community data, OHLC history and TVL. Coin detail endpoints are
// keyed by CoinGecko's own coin id, resolved once per symbol via /search
// and memoized for the process lifetime.
type CoinGecko struct {
	c    *Client
	base string
	ids  *xsync.Map[string, string]
}

// NewCoinGecko reads COINGECKO_API_URL and COINGECKO_API_KEY.
func NewCoinGecko(logger *zap.Logger) *CoinGecko {
	headers := map[string]string{}
	if key := utils.Env("COINGECKO_API_KEY", ""); key != "" {
		headers["x-cg-pro-api-key"] = key
	}
	return &CoinGecko{
		c: NewClient(logger, Opts{
			Name:    "coingecko",
			RPS:     utils.EnvFloat("COINGECKO_RPS", 0.5),
			Headers: headers,
		}),
		base: utils.Env("COINGECKO_API_URL", "https://api.coingecko.com/api/v3"),
		ids:  xsync.NewMap[string, string](),
	}
}

// resolveID maps a coin symbol to CoinGecko's coin id.
func (p *CoinGecko) resolveID(ctx context.Context, symbol string) (string, error) {
	symbol = utils.NormalizeSymbol(symbol)
	if id, ok := p.ids.Load(symbol); ok {
		return id, nil
	}

	doc, err := p.c.GetJSON(ctx, fmt.Sprintf("%s/search?query=%s", p.base, url.QueryEscape(symbol)))
	if err != nil {
		return "", err
	}
	for _, v := range GetSliceField(doc, "coins") {
		item, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if utils.NormalizeSymbol(GetStringField(item, "symbol")) == symbol {
			id := GetStringField(item, "id")
			if id != "" {
				p.ids.Store(symbol, id)
				return id, nil
			}
		}
	}
	return "", fmt.Errorf("coingecko: no coin id for symbol %s", symbol)
}

// marketsEntry fetches the /coins/markets row for one symbol.
func (p *CoinGecko) marketsEntry(ctx context.Context, symbol string) (map[string]any, error) {
	u := fmt.Sprintf("%s/coins/markets?vs_currency=usd&symbols=%s&price_change_percentage=7d",
		p.base, url.QueryEscape(strings.ToLower(symbol)))
	docs, err := p.c.GetJSONList(ctx, u)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("coingecko: no markets entry for %s", symbol)
	}
	return docs[0], nil
}

// Tokenomics returns valuation and supply fields.
func (p *CoinGecko) Tokenomics(ctx context.Context, project assets.Project) (assets.Partial, error) {
	item, err := p.marketsEntry(ctx, project.Symbol)
	if err != nil {
		return nil, err
	}

	partial := assets.Partial{}
	copyFloat(partial, "market_cap", item, "market_cap")
	copyFloat(partial, "fully_diluted_valuation", item, "fully_diluted_valuation")
	copyFloat(partial, "circulating_supply", item, "circulating_supply")
	copyFloat(partial, "total_supply", item, "total_supply")
	copyFloat(partial, "max_supply", item, "max_supply")
	return partial, nil
}

// Market returns spot price and volume fields.
func (p *CoinGecko) Market(ctx context.Context, project assets.Project) (assets.Partial, error) {
	item, err := p.marketsEntry(ctx, project.Symbol)
	if err != nil {
		return nil, err
	}

	partial := assets.Partial{}
	copyFloat(partial, "price_usd", item, "current_price")
	copyFloat(partial, "volume_24h", item, "total_volume")
	copyFloat(partial, "percent_change_24h", item, "price_change_percentage_24h")
	copyFloat(partial, "percent_change_7d", item, "price_change_percentage_7d_in_currency")
	copyFloat(partial, "ath_usd", item, "ath")
	copyFloat(partial, "atl_usd", item, "atl")
	return partial, nil
}

// coinDetail fetches the full /coins/{id} document for one symbol.
func (p *CoinGecko) coinDetail(ctx context.Context, symbol string) (map[string]any, error) {
	id, err := p.resolveID(ctx, symbol)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/coins/%s?localization=false&tickers=false&market_data=true&community_data=true",
		p.base, url.PathEscape(id))
	return p.c.GetJSON(ctx, u)
}

// Social returns community fields from the coin detail endpoint.
func (p *CoinGecko) Social(ctx context.Context, project assets.Project) (assets.Partial, error) {
	doc, err := p.coinDetail(ctx, project.Symbol)
	if err != nil {
		return nil, err
	}
	community := GetMapField(doc, "community_data")
	if community == nil {
		return nil, fmt.Errorf("coingecko: missing community_data for %s", project.Symbol)
	}

	partial := assets.Partial{}
	copyInt(partial, "twitter_followers", community, "twitter_followers")
	copyInt(partial, "telegram_members", community, "telegram_channel_user_count")
	copyInt(partial, "reddit_subscribers", community, "reddit_subscribers")
	copyFloat(partial, "social_score", doc, "sentiment_votes_up_percentage")
	return partial, nil
}

// Network returns TVL fields from the coin detail market data.
func (p *CoinGecko) Network(ctx context.Context, project assets.Project) (assets.Partial, error) {
	doc, err := p.coinDetail(ctx, project.Symbol)
	if err != nil {
		return nil, err
	}
	marketData := GetMapField(doc, "market_data")
	if marketData == nil {
		return nil, fmt.Errorf("coingecko: missing market_data for %s", project.Symbol)
	}

	partial := assets.Partial{}
	if tvl := GetMapField(marketData, "total_value_locked"); tvl != nil {
		copyFloat(partial, "tvl_usd", tvl, "usd")
	}
	copyFloat(partial, "mcap_tvl_ratio", marketData, "mcap_to_tvl_ratio")
	return partial, nil
}

// Categories returns the provider's category labels for one symbol.
func (p *CoinGecko) Categories(ctx context.Context, project assets.Project) ([]string, error) {
	doc, err := p.coinDetail(ctx, project.Symbol)
	if err != nil {
		return nil, err
	}
	categories := GetStringSliceField(doc, "categories")
	if len(categories) == 0 {
		return nil, fmt.Errorf("coingecko: no categories for %s", project.Symbol)
	}
	return categories, nil
}

// OHLC returns daily candles for the last `days` days.
func (p *CoinGecko) OHLC(ctx context.Context, project assets.Project, days int) ([]Candle, error) {
	id, err := p.resolveID(ctx, project.Symbol)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/coins/%s/ohlc?vs_currency=usd&days=%d", p.base, url.PathEscape(id), days)
	var raw [][]float64
	if err := p.c.get(ctx, u, &raw); err != nil {
		return nil, err
	}

	var candles []Candle
	for _, row := range raw {
		if len(row) < 5 {
			continue
		}
		candles = append(candles, Candle{
			Time:  int64(row[0]) / 1000, // ms epoch
			Open:  row[1],
			High:  row[2],
			Low:   row[3],
			Close: row[4],
		})
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("coingecko: empty ohlc response for %s", project.Symbol)
	}
	return candles, nil
}

// Markets returns one page of the ranked token list for discovery.
func (p *CoinGecko) Markets(ctx context.Context, page, perPage int) ([]RankedToken, error) {
	u := fmt.Sprintf("%s/coins/markets?vs_currency=usd&order=market_cap_desc&per_page=%d&page=%d",
		p.base, perPage, page)
	docs, err := p.c.GetJSONList(ctx, u)
	if err != nil {
		return nil, err
	}

	var tokens []RankedToken
	for _, item := range docs {
		rank, _ := GetInt64Field(item, "market_cap_rank")
		tokens = append(tokens, RankedToken{
			Symbol: GetStringField(item, "symbol"),
			Name:   GetStringField(item, "name"),
			Rank:   rank,
		})
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("coingecko: empty markets page %d", page)
	}
	return tokens, nil
}
