package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/assetlab-io/assetx/pkg/db/assets"
	"github.com/assetlab-io/assetx/pkg/sources"
	"go.uber.org/zap"
)

// ErrSkip marks an item the fallback chain could not serve this pass.
// Callers log and move to the next item; ErrSkip never fails a pass.
var ErrSkip = errors.New("no source produced a valid result")

// SourceFunc fetches one category's partial record for one project.
type SourceFunc func(ctx context.Context, project assets.Project) (assets.Partial, error)

// Chain is the ordered primary -> secondary fallback for one category.
// Secondary may be nil for single-source categories.
type Chain struct {
	Category  string
	Primary   SourceFunc
	Secondary SourceFunc
}

// Fetcher resolves metric categories through their fallback chains and
// validates results against the category's required-field contract.
type Fetcher struct {
	chains map[string]Chain
	logger *zap.Logger
}

// NewFetcher wires the per-category fallback chains from the provider registry.
func NewFetcher(logger *zap.Logger, reg *sources.Registry) *Fetcher {
	chains := []Chain{
		{Category: assets.CategoryTokenomics, Primary: reg.CoinMarketCap.Tokenomics, Secondary: reg.CoinGecko.Tokenomics},
		{Category: assets.CategoryMarket, Primary: reg.CoinMarketCap.Market, Secondary: reg.CoinGecko.Market},
		{Category: assets.CategoryFundraising, Primary: reg.CryptoRank.Fundraising, Secondary: reg.Messari.Fundraising},
		{Category: assets.CategorySocial, Primary: reg.LunarCrush.Social, Secondary: reg.CoinGecko.Social},
		{Category: assets.CategoryFundDist, Primary: reg.CryptoRank.FundDistribution},
		{Category: assets.CategoryPriceBand, Primary: reg.CryptoCompare.PriceBand, Secondary: geckoPriceBand(reg.CoinGecko)},
		{Category: assets.CategoryTrend, Primary: reg.CryptoCompare.Trend, Secondary: geckoTrend(reg.CoinGecko)},
		{Category: assets.CategoryHolders, Primary: reg.HolderScan.Holders},
		{Category: assets.CategoryNetwork, Primary: reg.DefiLlama.Network, Secondary: reg.CoinGecko.Network},
	}

	f := &Fetcher{chains: make(map[string]Chain, len(chains)), logger: logger}
	for _, c := range chains {
		f.chains[c.Category] = c
	}
	return f
}

// NewFetcherWithChains builds a fetcher from explicit chains (tests).
func NewFetcherWithChains(logger *zap.Logger, chains ...Chain) *Fetcher {
	f := &Fetcher{chains: make(map[string]Chain, len(chains)), logger: logger}
	for _, c := range chains {
		f.chains[c.Category] = c
	}
	return f
}

// Fetch runs the category's fallback chain: primary, then secondary when
// the primary errors or misses a required field, then ErrSkip. A response
// missing any required field is wholly invalid; primary and secondary
// results are never merged.
func (f *Fetcher) Fetch(ctx context.Context, category string, project assets.Project) (assets.Partial, error) {
	chain, ok := f.chains[category]
	if !ok {
		return nil, fmt.Errorf("no fallback chain for category %s", category)
	}
	spec, err := assets.SpecFor(category)
	if err != nil {
		return nil, err
	}

	partial, primaryErr := chain.Primary(ctx, project)
	if primaryErr == nil {
		if missing := missingRequired(spec, partial); missing == "" {
			return partial, nil
		} else {
			primaryErr = fmt.Errorf("incomplete response: missing %s", missing)
		}
	}
	f.logger.Debug("Primary source failed, trying secondary",
		zap.String("category", category),
		zap.String("symbol", project.Symbol),
		zap.Error(primaryErr))
	FetchFallbacks.WithLabelValues(category).Inc()

	if chain.Secondary == nil {
		FetchFailures.WithLabelValues(category).Inc()
		return nil, fmt.Errorf("%w: %s for %s (primary: %v)", ErrSkip, category, project.Symbol, primaryErr)
	}

	partial, secondaryErr := chain.Secondary(ctx, project)
	if secondaryErr == nil {
		if missing := missingRequired(spec, partial); missing == "" {
			return partial, nil
		} else {
			secondaryErr = fmt.Errorf("incomplete response: missing %s", missing)
		}
	}

	FetchFailures.WithLabelValues(category).Inc()
	return nil, fmt.Errorf("%w: %s for %s (primary: %v; secondary: %v)",
		ErrSkip, category, project.Symbol, primaryErr, secondaryErr)
}

// missingRequired returns the first absent required field, or "".
func missingRequired(spec assets.TableSpec, partial assets.Partial) string {
	for _, field := range spec.Required {
		if _, ok := partial[field]; !ok {
			return field
		}
	}
	return ""
}

// geckoPriceBand adapts CoinGecko OHLC history into the price-band shape.
func geckoPriceBand(gecko *sources.CoinGecko) SourceFunc {
	return func(ctx context.Context, project assets.Project) (assets.Partial, error) {
		candles, err := gecko.OHLC(ctx, project, 90)
		if err != nil {
			return nil, err
		}
		return sources.PriceBandFromCandles(candles)
	}
}

// geckoTrend adapts CoinGecko OHLC history into the trend shape.
func geckoTrend(gecko *sources.CoinGecko) SourceFunc {
	return func(ctx context.Context, project assets.Project) (assets.Partial, error) {
		candles, err := gecko.OHLC(ctx, project, 90)
		if err != nil {
			return nil, err
		}
		return sources.TrendFromCandles(candles)
	}
}
