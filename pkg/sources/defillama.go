package sources

import (
	"context"
	"fmt"
	"net/url"

	"github.com/assetlab-io/assetx/pkg/db/assets"
	"github.com/assetlab-io/assetx/pkg/utils"
	"go.uber.org/zap"
)

// DefiLlama is the primary network/TVL provider, keyed by protocol slug.
type DefiLlama struct {
	c    *Client
	base string
}

// NewDefiLlama reads DEFILLAMA_API_URL. The public API needs no key.
func NewDefiLlama(logger *zap.Logger) *DefiLlama {
	return &DefiLlama{
		c: NewClient(logger, Opts{
			Name: "defillama",
			RPS:  utils.EnvFloat("DEFILLAMA_RPS", 2),
		}),
		base: utils.Env("DEFILLAMA_API_URL", "https://api.llama.fi"),
	}
}

// Network returns TVL fields from the protocol detail endpoint.
func (p *DefiLlama) Network(ctx context.Context, project assets.Project) (assets.Partial, error) {
	slug := Slugify(project.Name)
	if slug == "" {
		slug = Slugify(project.Symbol)
	}
	doc, err := p.c.GetJSON(ctx, fmt.Sprintf("%s/protocol/%s", p.base, url.PathEscape(slug)))
	if err != nil {
		return nil, err
	}

	points := GetSliceField(doc, "tvl")
	if len(points) == 0 {
		return nil, fmt.Errorf("defillama: no tvl series for %s", slug)
	}
	latest, ok := points[len(points)-1].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("defillama: malformed tvl point for %s", slug)
	}
	tvl, ok := GetFloat64Field(latest, "totalLiquidityUSD")
	if !ok {
		return nil, fmt.Errorf("defillama: missing totalLiquidityUSD for %s", slug)
	}

	partial := assets.Partial{"tvl_usd": tvl}
	if mcap, ok := GetFloat64Field(doc, "mcap"); ok && tvl > 0 {
		partial["mcap_tvl_ratio"] = mcap / tvl
	}
	return partial, nil
}
