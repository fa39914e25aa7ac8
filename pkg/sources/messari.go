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

// Messari is the secondary fundraising provider, drawing on asset profile
// sales-round and investor data.
type Messari struct {
	c    *Client
	base string
}

// NewMessari reads MESSARI_API_URL and MESSARI_API_KEY.
func NewMessari(logger *zap.Logger) *Messari {
	headers := map[string]string{}
	if key := utils.Env("MESSARI_API_KEY", ""); key != "" {
		headers["x-messari-api-key"] = key
	}
	return &Messari{
		c: NewClient(logger, Opts{
			Name:    "messari",
			RPS:     utils.EnvFloat("MESSARI_RPS", 1),
			Headers: headers,
		}),
		base: utils.Env("MESSARI_API_URL", "https://data.messari.io/api/v1"),
	}
}

// profile fetches the investors section of an asset profile.
func (p *Messari) profile(ctx context.Context, symbol string) (map[string]any, error) {
	u := fmt.Sprintf("%s/assets/%s/profile", p.base, url.PathEscape(strings.ToLower(symbol)))
	doc, err := p.c.GetJSON(ctx, u)
	if err != nil {
		return nil, err
	}
	data := GetMapField(doc, "data")
	if data == nil {
		return nil, fmt.Errorf("messari: missing profile data for %s", symbol)
	}
	return data, nil
}

// Fundraising returns raise totals derived from profile sales rounds.
func (p *Messari) Fundraising(ctx context.Context, project assets.Project) (assets.Partial, error) {
	data, err := p.profile(ctx, project.Symbol)
	if err != nil {
		return nil, err
	}
	economics := GetMapField(data, "economics")
	launch := GetMapField(economics, "launch")
	initial := GetMapField(launch, "initial_distribution")

	partial := assets.Partial{}
	if initial != nil {
		copyFloat(partial, "total_raised_usd", initial, "initial_supply_repartition_raised_usd")
	}

	var investors []string
	profile := GetMapField(data, "profile")
	investorsDoc := GetMapField(profile, "investors")
	for _, v := range GetSliceField(investorsDoc, "organizations") {
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
	return partial, nil
}

