package sources

import (
	"strings"

	"go.uber.org/zap"
)

// RankedToken is one entry of a provider's ranked token list, used by the
// weekly discovery jobs.
type RankedToken struct {
	Symbol string
	Name   string
	Rank   int64
}

// Candle is one OHLC bar from a historical price provider.
type Candle struct {
	Time  int64
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Registry bundles every configured provider client. The fetcher composes
// its per-category fallback chains from these.
type Registry struct {
	CoinMarketCap *CoinMarketCap
	CoinGecko     *CoinGecko
	CryptoCompare *CryptoCompare
	DefiLlama     *DefiLlama
	LunarCrush    *LunarCrush
	HolderScan    *HolderScan
	CryptoRank    *CryptoRank
	Messari       *Messari
}

// NewRegistry builds all provider clients from the environment.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		CoinMarketCap: NewCoinMarketCap(logger),
		CoinGecko:     NewCoinGecko(logger),
		CryptoCompare: NewCryptoCompare(logger),
		DefiLlama:     NewDefiLlama(logger),
		LunarCrush:    NewLunarCrush(logger),
		HolderScan:    NewHolderScan(logger),
		CryptoRank:    NewCryptoRank(logger),
		Messari:       NewMessari(logger),
	}
}

// Slugify turns a project name into the lowercase-hyphenated slug most
// aggregator APIs key on ("Render Network" -> "render-network").
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, ".", "")
	return s
}
