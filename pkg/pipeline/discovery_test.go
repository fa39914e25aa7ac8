package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/assetlab-io/assetx/pkg/db/assets"
	"github.com/assetlab-io/assetx/pkg/denylist"
	"github.com/assetlab-io/assetx/pkg/retry"
	"github.com/assetlab-io/assetx/pkg/sources"
)

func discoveryPipeline(t *testing.T, registry *fakeRegistry, tokens []sources.RankedToken, labels map[string][]string) *Pipeline {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return New(logger, registry, newFakeStore(), NewFetcherWithChains(logger),
		denylist.NewLoaderWithURL(logger, nil, "", 0), nil, nil,
		WithPacer(noPace),
		WithStartupRetry(retry.Config{MaxRetries: 1}),
		WithTokenLister(func(context.Context) ([]sources.RankedToken, error) {
			return tokens, nil
		}),
		WithCategoryLookup(func(_ context.Context, project assets.Project) ([]string, error) {
			return labels[project.Symbol], nil
		}))
}

func TestTokenDiscoveryCreatesUnknownProjects(t *testing.T) {
	registry := &fakeRegistry{projects: []assets.Project{
		{Symbol: "BTC", Rank: 1},
	}}
	tokens := []sources.RankedToken{
		{Symbol: "BTC", Name: "Bitcoin", Rank: 1},
		{Symbol: "eth", Name: "Ethereum", Rank: 2},
		{Symbol: "$sol", Name: "Solana", Rank: 3},
	}

	p := discoveryPipeline(t, registry, tokens, nil)
	stats, err := p.RunTokenDiscovery(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Listed)
	assert.Equal(t, 2, stats.Created, "only the untracked symbols are created")
	require.Len(t, registry.created, 2)

	// Symbols are normalized before registration.
	assert.Equal(t, "ETH", registry.created[0].Symbol)
	assert.Equal(t, "SOL", registry.created[1].Symbol)
	assert.Equal(t, assets.SourceDiscovery, registry.created[0].Source)
}

func TestTokenDiscoveryRefreshesRank(t *testing.T) {
	registry := &fakeRegistry{projects: []assets.Project{
		{Symbol: "BTC", Rank: 5},
	}}
	tokens := []sources.RankedToken{{Symbol: "BTC", Name: "Bitcoin", Rank: 1}}

	p := discoveryPipeline(t, registry, tokens, nil)
	stats, err := p.RunTokenDiscovery(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Created)
	assert.Equal(t, 1, stats.RankUpdate)
	require.Contains(t, registry.updates, "BTC")
	assert.Equal(t, int64(1), registry.updates["BTC"]["rank"])
}

func TestTokenDiscoveryDeduplicatesSymbols(t *testing.T) {
	registry := &fakeRegistry{}
	tokens := []sources.RankedToken{
		{Symbol: "ARB", Name: "Arbitrum", Rank: 40},
		{Symbol: "arb", Name: "Arbitrum Duplicate", Rank: 900},
	}

	p := discoveryPipeline(t, registry, tokens, nil)
	stats, err := p.RunTokenDiscovery(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, int64(40), registry.created[0].Rank, "first occurrence wins")
}

func TestTokenDiscoveryListFailure(t *testing.T) {
	logger := zaptest.NewLogger(t)
	p := New(logger, &fakeRegistry{}, newFakeStore(), NewFetcherWithChains(logger),
		denylist.NewLoaderWithURL(logger, nil, "", 0), nil, nil,
		WithPacer(noPace),
		WithTokenLister(func(context.Context) ([]sources.RankedToken, error) {
			return nil, errors.New("all providers down")
		}))

	_, err := p.RunTokenDiscovery(context.Background())
	assert.Error(t, err)
}

func TestCategoryDiscoverySkipsNoiseLabels(t *testing.T) {
	registry := &fakeRegistry{projects: []assets.Project{
		{Symbol: "DOGE", Category: ""},
		{Symbol: "LINK", Category: "oracle"},
	}}
	labels := map[string][]string{
		"DOGE": {"meme"},
		"LINK": {"oracle"},
	}

	p := discoveryPipeline(t, registry, nil, labels)
	// No denylist document is reachable, so the noise set is empty and the
	// meme label passes through.
	updated, err := p.RunCategoryDiscovery(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, updated, "LINK already carries its label; only DOGE changes")
	assert.Equal(t, "meme", registry.updates["DOGE"]["category"])
}
