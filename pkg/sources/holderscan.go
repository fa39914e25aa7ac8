package sources

import (
	"context"
	"fmt"
	"net/url"

	"github.com/assetlab-io/assetx/pkg/db/assets"
	"github.com/assetlab-io/assetx/pkg/utils"
	"go.uber.org/zap"
)

// HolderScan is the holder-concentration provider. It is the only source
// for its category; a failed fetch skips the item for the pass.
type HolderScan struct {
	c    *Client
	base string
}

// NewHolderScan reads HOLDERSCAN_API_URL and HOLDERSCAN_API_KEY.
func NewHolderScan(logger *zap.Logger) *HolderScan {
	headers := map[string]string{}
	if key := utils.Env("HOLDERSCAN_API_KEY", ""); key != "" {
		headers["x-api-key"] = key
	}
	return &HolderScan{
		c: NewClient(logger, Opts{
			Name:    "holderscan",
			RPS:     utils.EnvFloat("HOLDERSCAN_RPS", 1),
			Headers: headers,
		}),
		base: utils.Env("HOLDERSCAN_API_URL", "https://api.holderscan.com/v0"),
	}
}

// Holders returns holder-concentration fields for one symbol.
func (p *HolderScan) Holders(ctx context.Context, project assets.Project) (assets.Partial, error) {
	u := fmt.Sprintf("%s/tokens/%s/stats", p.base, url.PathEscape(project.Symbol))
	doc, err := p.c.GetJSON(ctx, u)
	if err != nil {
		return nil, err
	}

	partial := assets.Partial{}
	copyInt(partial, "holder_count", doc, "holder_count")
	if breakdown := GetMapField(doc, "breakdowns"); breakdown != nil {
		copyFloat(partial, "top10_share", breakdown, "top10_supply_percent")
		copyFloat(partial, "top50_share", breakdown, "top50_supply_percent")
	}
	if len(partial) == 0 {
		return nil, fmt.Errorf("holderscan: empty stats for %s", project.Symbol)
	}
	return partial, nil
}
