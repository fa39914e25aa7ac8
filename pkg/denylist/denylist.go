// Package denylist loads the advisory exclusion sets the pipeline filters
// working sets with. The source is a remotely hosted markdown document with
// one "## <KIND>" section per set; the document is maintained by analysts
// and re-read through a short-lived cache, never persisted with asset data.
package denylist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/assetlab-io/assetx/pkg/utils"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// Kind names one denylist section in the source document.
type Kind string

const (
	// KindStablecoins lists pegged assets excluded from scoring.
	KindStablecoins Kind = "stablecoins"
	// KindFundamentals lists exempt majors (BTC, ETH, ...) that skip refresh.
	KindFundamentals Kind = "fundamentals"
	// KindScams lists known scam or rug-pulled symbols.
	KindScams Kind = "scams"
	// KindNoiseCategories lists category labels ignored by discovery
	// (memes, wrapped tokens and similar noise buckets).
	KindNoiseCategories Kind = "categories"
)

// Kinds returns every section kind the loader understands.
func Kinds() []Kind {
	return []Kind{KindStablecoins, KindFundamentals, KindScams, KindNoiseCategories}
}

// Set is a normalized name set.
type Set map[string]struct{}

// NewSet builds a Set from raw entries, normalizing each.
func NewSet(entries ...string) Set {
	s := make(Set, len(entries))
	for _, e := range entries {
		if n := utils.NormalizeSymbol(e); n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

// Contains reports whether the normalized name is in the set.
func (s Set) Contains(name string) bool {
	_, ok := s[utils.NormalizeSymbol(name)]
	return ok
}

// Entries returns the set members (unordered).
func (s Set) Entries() []string {
	out := make([]string, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	return out
}

// Sets bundles all active denylists for one selector pass.
type Sets struct {
	Stablecoins     Set
	Fundamentals    Set
	Scams           Set
	NoiseCategories Set
}

// ExcludesSymbol reports whether the coin symbol appears in any of the
// three symbol denylists. Noise categories apply to category labels only.
func (s Sets) ExcludesSymbol(symbol string) bool {
	return s.Stablecoins.Contains(symbol) || s.Fundamentals.Contains(symbol) || s.Scams.Contains(symbol)
}

// Cache is the short-lived external cache in front of the document fetch.
// A nil Cache is valid; the loader then relies on its in-process cache only.
type Cache interface {
	CacheGet(ctx context.Context, key string) (string, bool)
	CacheSet(ctx context.Context, key, value string, ttl time.Duration)
}

type memEntry struct {
	entries []string
	expires time.Time
}

// Loader fetches and parses denylist sections. Load never returns an error:
// a failed fetch or a missing section yields an empty set and a warning so
// one bad document read cannot stall a pipeline pass.
type Loader struct {
	http   *http.Client
	docURL string
	ttl    time.Duration
	cache  Cache
	mem    *xsync.Map[string, memEntry]
	logger *zap.Logger
}

// NewLoader builds a Loader from the environment:
//   - DENYLIST_DOC_URL: location of the denylist document
//   - DENYLIST_CACHE_TTL: cache lifetime (default 30m)
func NewLoader(logger *zap.Logger, cache Cache) *Loader {
	return &Loader{
		http:   &http.Client{Timeout: 30 * time.Second},
		docURL: utils.Env("DENYLIST_DOC_URL", ""),
		ttl:    utils.EnvDuration("DENYLIST_CACHE_TTL", 30*time.Minute),
		cache:  cache,
		mem:    xsync.NewMap[string, memEntry](),
		logger: logger,
	}
}

// NewLoaderWithURL is NewLoader with an explicit document URL and TTL, used
// by tests and interactive tooling.
func NewLoaderWithURL(logger *zap.Logger, cache Cache, docURL string, ttl time.Duration) *Loader {
	l := NewLoader(logger, cache)
	l.docURL = docURL
	l.ttl = ttl
	return l
}

// Load returns the denylist of the given kind. Cached entries are served
// until the TTL expires; otherwise the document is re-fetched.
func (l *Loader) Load(ctx context.Context, kind Kind) Set {
	if entries, ok := l.cached(ctx, kind); ok {
		return NewSet(entries...)
	}

	doc, err := l.fetchDoc(ctx)
	if err != nil {
		l.logger.Warn("Denylist fetch failed, treating as empty",
			zap.String("kind", string(kind)),
			zap.Error(err))
		return Set{}
	}
	return l.extractAndCache(ctx, doc, kind)
}

// LoadAll returns all four denylists, fetching the document at most once.
func (l *Loader) LoadAll(ctx context.Context) Sets {
	sets := map[Kind]Set{}
	var misses []Kind
	for _, kind := range Kinds() {
		if entries, ok := l.cached(ctx, kind); ok {
			sets[kind] = NewSet(entries...)
		} else {
			misses = append(misses, kind)
		}
	}

	if len(misses) > 0 {
		doc, err := l.fetchDoc(ctx)
		if err != nil {
			l.logger.Warn("Denylist fetch failed, treating missing kinds as empty", zap.Error(err))
			for _, kind := range misses {
				sets[kind] = Set{}
			}
		} else {
			for _, kind := range misses {
				sets[kind] = l.extractAndCache(ctx, doc, kind)
			}
		}
	}

	return Sets{
		Stablecoins:     sets[KindStablecoins],
		Fundamentals:    sets[KindFundamentals],
		Scams:           sets[KindScams],
		NoiseCategories: sets[KindNoiseCategories],
	}
}

func (l *Loader) cacheKey(kind Kind) string {
	return "denylist:" + string(kind)
}

func (l *Loader) cached(ctx context.Context, kind Kind) ([]string, bool) {
	key := l.cacheKey(kind)
	if entry, ok := l.mem.Load(key); ok && time.Now().Before(entry.expires) {
		return entry.entries, true
	}
	if l.cache == nil {
		return nil, false
	}
	raw, ok := l.cache.CacheGet(ctx, key)
	if !ok {
		return nil, false
	}
	var entries []string
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		l.logger.Warn("Corrupt denylist cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	l.mem.Store(key, memEntry{entries: entries, expires: time.Now().Add(l.ttl)})
	return entries, true
}

func (l *Loader) extractAndCache(ctx context.Context, doc string, kind Kind) Set {
	entries, found := ExtractSection(doc, string(kind))
	if !found {
		l.logger.Warn("Denylist section missing, treating as empty",
			zap.String("kind", string(kind)))
		return Set{}
	}

	key := l.cacheKey(kind)
	l.mem.Store(key, memEntry{entries: entries, expires: time.Now().Add(l.ttl)})
	if l.cache != nil {
		if raw, err := json.Marshal(entries); err == nil {
			l.cache.CacheSet(ctx, key, string(raw), l.ttl)
		}
	}
	return NewSet(entries...)
}

func (l *Loader) fetchDoc(ctx context.Context) (string, error) {
	if l.docURL == "" {
		return "", fmt.Errorf("DENYLIST_DOC_URL is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.docURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = utils.DrainAndClose(resp.Body) }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("denylist document returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ExtractSection pulls the entries of one "## <NAME>" section out of the
// document. The section runs to the next "## " header or end of document;
// an explicit "## END" marker also terminates it. Entry lines may carry
// markdown bullets and comma-separated values; blank lines and "#" comment
// lines are ignored.
func ExtractSection(doc, name string) ([]string, bool) {
	marker := "## " + strings.ToUpper(name)
	var entries []string
	inSection := false

	for _, line := range strings.Split(doc, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "## ") {
			if inSection {
				break
			}
			inSection = strings.EqualFold(trimmed, marker)
			continue
		}
		if !inSection || trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		trimmed = strings.TrimPrefix(trimmed, "- ")
		trimmed = strings.TrimPrefix(trimmed, "* ")
		for _, part := range strings.Split(trimmed, ",") {
			if part = strings.TrimSpace(part); part != "" {
				entries = append(entries, part)
			}
		}
	}

	if !inSection && entries == nil {
		// Marker never seen.
		return nil, false
	}
	return entries, true
}
