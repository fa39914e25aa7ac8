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
)

// fakeRegistry serves a static project list.
type fakeRegistry struct {
	projects []assets.Project
	updates  map[string]assets.Partial
	created  []assets.Project
	listErr  error
}

func (r *fakeRegistry) ListProjects(context.Context) ([]assets.Project, error) {
	return r.projects, r.listErr
}

func (r *fakeRegistry) GetProject(_ context.Context, symbol string) (assets.Project, error) {
	for _, p := range r.projects {
		if p.Symbol == symbol {
			return p, nil
		}
	}
	return assets.Project{}, assets.ErrNotFound
}

func (r *fakeRegistry) CreateProject(_ context.Context, p assets.Project) error {
	r.created = append(r.created, p)
	r.projects = append(r.projects, p)
	return nil
}

func (r *fakeRegistry) UpdateProjectFields(_ context.Context, symbol string, fields assets.Partial) error {
	if r.updates == nil {
		r.updates = map[string]assets.Partial{}
	}
	r.updates[symbol] = fields
	return nil
}

func noPace(context.Context) error { return nil }

func testPipeline(t *testing.T, registry *fakeRegistry, store MetricStore, chains ...Chain) *Pipeline {
	t.Helper()
	logger := zaptest.NewLogger(t)
	fetcher := NewFetcherWithChains(logger, chains...)
	denylists := denylist.NewLoaderWithURL(logger, nil, "", 0)
	return New(logger, registry, store, fetcher, denylists, nil, nil,
		WithPacer(noPace), WithStartupRetry(retry.Config{MaxRetries: 1}))
}

func TestRunPassIsolatesItemFailures(t *testing.T) {
	registry := &fakeRegistry{projects: []assets.Project{
		{Symbol: "AAA"}, {Symbol: "BBB"}, {Symbol: "CCC"}, {Symbol: "DDD"}, {Symbol: "EEE"},
	}}
	store := newFakeStore()

	chain := Chain{
		Category: assets.CategoryTokenomics,
		Primary: func(_ context.Context, project assets.Project) (assets.Partial, error) {
			switch project.Symbol {
			case "CCC":
				panic("provider returned garbage")
			case "DDD":
				return nil, errors.New("not listed")
			}
			return assets.Partial{"market_cap": 1.0, "circulating_supply": 2.0}, nil
		},
	}

	p := testPipeline(t, registry, store, chain)
	loop := Loop{Name: "valuation", Categories: []string{assets.CategoryTokenomics}}

	stats, err := p.RunPass(context.Background(), loop)
	require.NoError(t, err, "item failures must never fail the pass")

	assert.Equal(t, 5, stats.Selected)
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 1, stats.Skipped, "exhausted chain counts as a skip")
	assert.Equal(t, 1, stats.Failed, "panicking item counts as a failure")

	spec := tokenomicsSpec(t)
	for _, symbol := range []string{"AAA", "BBB", "EEE"} {
		_, ok := store.rows[spec.Table][symbol]
		assert.True(t, ok, "item %s should have been reconciled despite failures elsewhere", symbol)
	}
	_, ok := store.rows[spec.Table]["CCC"]
	assert.False(t, ok)
}

func TestRunPassStartupFailurePropagates(t *testing.T) {
	registry := &fakeRegistry{listErr: errors.New("clickhouse down")}
	p := testPipeline(t, registry, newFakeStore())

	_, err := p.RunPass(context.Background(), Loop{Name: "market", Categories: []string{assets.CategoryMarket}})
	assert.Error(t, err)
}

func TestRunPassHonorsDenylists(t *testing.T) {
	registry := &fakeRegistry{projects: []assets.Project{
		{Symbol: "USDT"}, {Symbol: "AAA"},
	}}
	store := newFakeStore()

	var fetched []string
	chain := Chain{
		Category: assets.CategoryTokenomics,
		Primary: func(_ context.Context, project assets.Project) (assets.Partial, error) {
			fetched = append(fetched, project.Symbol)
			return assets.Partial{"market_cap": 1.0, "circulating_supply": 2.0}, nil
		},
	}

	logger := zaptest.NewLogger(t)
	p := New(logger, registry, store, NewFetcherWithChains(logger, chain),
		denylist.NewLoaderWithURL(logger, nil, "", 0), nil, nil, WithPacer(noPace))

	// No denylist document is reachable, so every symbol passes through.
	stats, err := p.RunPass(context.Background(), Loop{Name: "valuation", Categories: []string{assets.CategoryTokenomics}})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Selected)
	assert.Equal(t, []string{"USDT", "AAA"}, fetched)
}

func TestTriggerRefreshUnknownSymbol(t *testing.T) {
	p := testPipeline(t, &fakeRegistry{}, newFakeStore())

	_, err := p.TriggerRefresh(context.Background(), "NOPE")
	assert.ErrorIs(t, err, assets.ErrNotFound)
}

func TestTriggerRefreshCoversEveryCategory(t *testing.T) {
	registry := &fakeRegistry{projects: []assets.Project{{Symbol: "AAA"}}}
	store := newFakeStore()

	chain := Chain{
		Category: assets.CategoryTokenomics,
		Primary: func(context.Context, assets.Project) (assets.Partial, error) {
			return assets.Partial{"market_cap": 1.0, "circulating_supply": 2.0}, nil
		},
	}
	p := testPipeline(t, registry, store, chain)

	result, err := p.TriggerRefresh(context.Background(), "AAA")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed, "only the wired category can succeed")
	assert.Len(t, result.Skipped, len(assets.Categories())-1, "unwired categories are skipped, not fatal")
	assert.Empty(t, result.Failed)
}

func TestCadenceLoopsCoverEveryCategoryOnce(t *testing.T) {
	seen := map[string]int{}
	for _, loop := range CadenceLoops() {
		for _, category := range loop.Categories {
			seen[category]++
		}
	}

	for _, category := range assets.Categories() {
		assert.Equal(t, 1, seen[category], "category %s must belong to exactly one cadence loop", category)
	}
	assert.Len(t, seen, len(assets.Categories()))
}
