package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/assetlab-io/assetx/pkg/db/assets"
)

func staticSource(partial assets.Partial, err error) SourceFunc {
	return func(context.Context, assets.Project) (assets.Partial, error) {
		return partial, err
	}
}

func TestFetchPrimaryWins(t *testing.T) {
	f := NewFetcherWithChains(zaptest.NewLogger(t), Chain{
		Category: assets.CategoryTokenomics,
		Primary: staticSource(assets.Partial{
			"market_cap":         1000.0,
			"circulating_supply": 21.0,
		}, nil),
		Secondary: staticSource(assets.Partial{
			"market_cap":         999.0,
			"circulating_supply": 20.0,
		}, nil),
	})

	partial, err := f.Fetch(context.Background(), assets.CategoryTokenomics, assets.Project{Symbol: "BTC"})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, partial["market_cap"], "secondary must not be consulted when primary succeeds")
}

func TestFetchFallsBackOnPrimaryError(t *testing.T) {
	f := NewFetcherWithChains(zaptest.NewLogger(t), Chain{
		Category: assets.CategoryTokenomics,
		Primary:  staticSource(nil, errors.New("rate limited")),
		Secondary: staticSource(assets.Partial{
			"market_cap":         500.0,
			"circulating_supply": 10.0,
		}, nil),
	})

	partial, err := f.Fetch(context.Background(), assets.CategoryTokenomics, assets.Project{Symbol: "ETH"})
	require.NoError(t, err)
	assert.Equal(t, 500.0, partial["market_cap"])
}

func TestFetchFallsBackOnMissingRequiredField(t *testing.T) {
	f := NewFetcherWithChains(zaptest.NewLogger(t), Chain{
		Category: assets.CategoryTokenomics,
		// Primary responds but without circulating_supply: wholly invalid.
		Primary: staticSource(assets.Partial{"market_cap": 1000.0}, nil),
		Secondary: staticSource(assets.Partial{
			"market_cap":         500.0,
			"circulating_supply": 10.0,
		}, nil),
	})

	partial, err := f.Fetch(context.Background(), assets.CategoryTokenomics, assets.Project{Symbol: "SOL"})
	require.NoError(t, err)
	assert.Equal(t, 500.0, partial["market_cap"], "incomplete primary result must be discarded, not merged")
	assert.Equal(t, 10.0, partial["circulating_supply"])
}

func TestFetchExhaustedChainReturnsErrSkip(t *testing.T) {
	f := NewFetcherWithChains(zaptest.NewLogger(t), Chain{
		Category:  assets.CategoryTokenomics,
		Primary:   staticSource(nil, errors.New("down")),
		Secondary: staticSource(assets.Partial{"market_cap": 1.0}, nil), // missing required field
	})

	_, err := f.Fetch(context.Background(), assets.CategoryTokenomics, assets.Project{Symbol: "DOT"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSkip)
}

func TestFetchSingleSourceChain(t *testing.T) {
	f := NewFetcherWithChains(zaptest.NewLogger(t), Chain{
		Category: assets.CategoryHolders,
		Primary:  staticSource(nil, errors.New("down")),
	})

	_, err := f.Fetch(context.Background(), assets.CategoryHolders, assets.Project{Symbol: "ADA"})
	assert.ErrorIs(t, err, ErrSkip, "single-source categories skip when the only provider fails")
}

func TestFetchUnknownCategory(t *testing.T) {
	f := NewFetcherWithChains(zaptest.NewLogger(t))

	_, err := f.Fetch(context.Background(), "nonsense", assets.Project{Symbol: "BTC"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSkip)
}
