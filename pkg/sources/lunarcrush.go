package sources

import (
	"context"
	"fmt"
	"net/url"

	"github.com/assetlab-io/assetx/pkg/db/assets"
	"github.com/assetlab-io/assetx/pkg/utils"
	"go.uber.org/zap"
)

// LunarCrush is the primary social-score provider.
type LunarCrush struct {
	c    *Client
	base string
}

// NewLunarCrush reads LUNARCRUSH_API_URL and LUNARCRUSH_API_KEY.
func NewLunarCrush(logger *zap.Logger) *LunarCrush {
	headers := map[string]string{}
	if key := utils.Env("LUNARCRUSH_API_KEY", ""); key != "" {
		headers["Authorization"] = "Bearer " + key
	}
	return &LunarCrush{
		c: NewClient(logger, Opts{
			Name:    "lunarcrush",
			RPS:     utils.EnvFloat("LUNARCRUSH_RPS", 1),
			Headers: headers,
		}),
		base: utils.Env("LUNARCRUSH_API_URL", "https://lunarcrush.com/api4"),
	}
}

// Social returns social engagement fields for one symbol.
func (p *LunarCrush) Social(ctx context.Context, project assets.Project) (assets.Partial, error) {
	u := fmt.Sprintf("%s/public/coins/%s/v1", p.base, url.PathEscape(project.Symbol))
	doc, err := p.c.GetJSON(ctx, u)
	if err != nil {
		return nil, err
	}
	data := GetMapField(doc, "data")
	if data == nil {
		return nil, fmt.Errorf("lunarcrush: missing data for %s", project.Symbol)
	}

	partial := assets.Partial{}
	copyFloat(partial, "social_score", data, "galaxy_score")
	copyInt(partial, "twitter_followers", data, "twitter_followers")
	copyInt(partial, "reddit_subscribers", data, "reddit_subscribers")
	return partial, nil
}
