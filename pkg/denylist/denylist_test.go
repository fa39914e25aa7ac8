package denylist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const sampleDoc = `# Asset denylists

Maintained by the research team. One section per kind.

## STABLECOINS
- USDT
- USDC, DAI
* BUSD

## FUNDAMENTALS
BTC, ETH

# trailing comment inside no section

## SCAMS
- SQUID

## CATEGORIES
- meme
- wrapped-tokens
`

func TestExtractSection(t *testing.T) {
	tests := []struct {
		name    string
		section string
		want    []string
		found   bool
	}{
		{name: "bullets and commas", section: "stablecoins", want: []string{"USDT", "USDC", "DAI", "BUSD"}, found: true},
		{name: "plain comma line", section: "fundamentals", want: []string{"BTC", "ETH"}, found: true},
		{name: "single entry", section: "scams", want: []string{"SQUID"}, found: true},
		{name: "last section", section: "categories", want: []string{"meme", "wrapped-tokens"}, found: true},
		{name: "missing section", section: "nonsense", want: nil, found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, found := ExtractSection(sampleDoc, tt.section)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, entries)
		})
	}
}

func TestLoadAllFetchesDocumentOnce(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		_, _ = w.Write([]byte(sampleDoc))
	}))
	defer srv.Close()

	l := NewLoaderWithURL(zaptest.NewLogger(t), nil, srv.URL, time.Minute)

	sets := l.LoadAll(context.Background())
	assert.Equal(t, int32(1), fetches.Load(), "four kinds must share one document fetch")

	assert.True(t, sets.Stablecoins.Contains("usdt"), "matching is case-insensitive")
	assert.True(t, sets.Fundamentals.Contains("BTC"))
	assert.True(t, sets.Scams.Contains("SQUID"))
	assert.True(t, sets.NoiseCategories.Contains("meme"))
	assert.False(t, sets.Stablecoins.Contains("BTC"))
}

func TestLoadUsesInProcessCache(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		_, _ = w.Write([]byte(sampleDoc))
	}))
	defer srv.Close()

	l := NewLoaderWithURL(zaptest.NewLogger(t), nil, srv.URL, time.Minute)

	first := l.Load(context.Background(), KindScams)
	second := l.Load(context.Background(), KindScams)

	assert.Equal(t, int32(1), fetches.Load())
	assert.Equal(t, first.Entries(), second.Entries())
}

func TestLoadNeverFails(t *testing.T) {
	// Unreachable document: Load degrades to an empty set.
	l := NewLoaderWithURL(zaptest.NewLogger(t), nil, "http://127.0.0.1:1/denylists.md", time.Minute)

	set := l.Load(context.Background(), KindStablecoins)
	assert.Empty(t, set.Entries())

	sets := l.LoadAll(context.Background())
	assert.False(t, sets.ExcludesSymbol("USDT"))
}

func TestLoadMissingSectionIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("## STABLECOINS\n- USDT\n"))
	}))
	defer srv.Close()

	l := NewLoaderWithURL(zaptest.NewLogger(t), nil, srv.URL, time.Minute)

	set := l.Load(context.Background(), KindScams)
	assert.Empty(t, set.Entries())
}

func TestSetsExcludesSymbol(t *testing.T) {
	sets := Sets{
		Stablecoins:     NewSet("USDT"),
		Fundamentals:    NewSet("BTC"),
		Scams:           NewSet("SQUID"),
		NoiseCategories: NewSet("meme"),
	}

	require.True(t, sets.ExcludesSymbol("usdt"))
	require.True(t, sets.ExcludesSymbol("$BTC"))
	require.True(t, sets.ExcludesSymbol("SQUID"))
	assert.False(t, sets.ExcludesSymbol("meme"), "noise categories apply to labels, not symbols")
	assert.False(t, sets.ExcludesSymbol("SOL"))
}
