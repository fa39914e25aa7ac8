package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/assetlab-io/assetx/pkg/db/assets"
	"github.com/assetlab-io/assetx/pkg/utils"
	"go.uber.org/zap"
)

// CryptoRank is the primary fundraising and fund-distribution provider.
type CryptoRank struct {
	c    *Client
	base string
}

// NewCryptoRank reads CRYPTORANK_API_URL and CRYPTORANK_API_KEY.
func NewCryptoRank(logger *zap.Logger) *CryptoRank {
	headers := map[string]string{}
	if key := utils.Env("CRYPTORANK_API_KEY", ""); key != "" {
		headers["X-Api-Key"] = key
	}
	return &CryptoRank{
		c: NewClient(logger, Opts{
			Name:    "cryptorank",
			RPS:     utils.EnvFloat("CRYPTORANK_RPS", 1),
			Headers: headers,
		}),
		base: utils.Env("CRYPTORANK_API_URL", "https://api.cryptorank.io/v2"),
	}
}

// Fundraising returns raise totals and the investor roster.
func (p *CryptoRank) Fundraising(ctx context.Context, project assets.Project) (assets.Partial, error) {
	u := fmt.Sprintf("%s/currencies/%s/fundraising", p.base, url.PathEscape(strings.ToLower(project.Symbol)))
	doc, err := p.c.GetJSON(ctx, u)
	if err != nil {
		return nil, err
	}
	data := GetMapField(doc, "data")
	if data == nil {
		return nil, fmt.Errorf("cryptorank: missing fundraising data for %s", project.Symbol)
	}

	partial := assets.Partial{}
	copyFloat(partial, "total_raised_usd", data, "totalRaised")

	var investors []string
	for _, v := range GetSliceField(data, "investors") {
		if item, ok := v.(map[string]any); ok {
			if name := GetStringField(item, "name"); name != "" {
				investors = append(investors, name)
			}
		}
	}
	if len(investors) > 0 {
		partial["investors"] = strings.Join(investors, ", ")
		partial["investor_count"] = int64(len(investors))
	}

	rounds := GetSliceField(data, "rounds")
	if len(rounds) > 0 {
		if last, ok := rounds[len(rounds)-1].(map[string]any); ok {
			copyFloat(partial, "last_round_usd", last, "raised")
			if date := GetStringField(last, "date"); date != "" {
				partial["last_round_date"] = date
			}
		}
	}
	return partial, nil
}

// FundDistribution returns how much of the token's backing sits with
// tracked venture funds.
func (p *CryptoRank) FundDistribution(ctx context.Context, project assets.Project) (assets.Partial, error) {
	u := fmt.Sprintf("%s/currencies/%s/funds", p.base, url.PathEscape(strings.ToLower(project.Symbol)))
	doc, err := p.c.GetJSON(ctx, u)
	if err != nil {
		return nil, err
	}
	data := GetMapField(doc, "data")
	if data == nil {
		return nil, fmt.Errorf("cryptorank: missing funds data for %s", project.Symbol)
	}

	partial := assets.Partial{}
	copyFloat(partial, "fund_holdings_pct", data, "fundsHoldingsPercent")
	copyInt(partial, "fund_count", data, "fundsCount")

	funds := GetSliceField(data, "funds")
	if len(funds) > 0 {
		if top, ok := funds[0].(map[string]any); ok {
			if name := GetStringField(top, "name"); name != "" {
				partial["top_fund"] = name
			}
		}
	}
	return partial, nil
}
