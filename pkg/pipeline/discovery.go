package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/assetlab-io/assetx/pkg/db/assets"
	"github.com/assetlab-io/assetx/pkg/denylist"
	"github.com/assetlab-io/assetx/pkg/sources"
	"github.com/assetlab-io/assetx/pkg/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// onboardingCategories are fetched immediately for a newly discovered
// project so its slow-cadence tables are not empty until the next
// quarterly or weekly pass.
var onboardingCategories = []string{assets.CategoryFundraising, assets.CategoryFundDist}

// DiscoveryStats summarizes one token-discovery run.
type DiscoveryStats struct {
	Listed     int `json:"listed"`
	Selected   int `json:"selected"`
	Created    int `json:"created"`
	RankUpdate int `json:"rank_updates"`
	Failed     int `json:"failed"`
}

// RunTokenDiscovery pulls a ranked token list, filters it through the
// denylists with backfill and registers every symbol not yet tracked.
// Existing projects get their rank refreshed; new projects are onboarded
// with an immediate fundraising and fund-distribution fetch.
func (p *Pipeline) RunTokenDiscovery(ctx context.Context) (DiscoveryStats, error) {
	var stats DiscoveryStats

	tokens, err := p.listRankedTokens(ctx)
	if err != nil {
		return stats, fmt.Errorf("token discovery: %w", err)
	}
	stats.Listed = len(tokens)

	candidates := make([]assets.Project, 0, len(tokens))
	seen := map[string]struct{}{}
	for _, t := range tokens {
		symbol := utils.NormalizeSymbol(t.Symbol)
		if symbol == "" {
			continue
		}
		if _, dup := seen[symbol]; dup {
			continue
		}
		seen[symbol] = struct{}{}
		candidates = append(candidates, assets.Project{
			Symbol: symbol,
			Name:   t.Name,
			Rank:   t.Rank,
			Source: assets.SourceDiscovery,
		})
	}

	sets := p.denylists.LoadAll(ctx)
	working := SelectWithBackfill(candidates, sets, p.workingSetCap)
	stats.Selected = len(working)

	tracked, err := p.registry.ListProjects(ctx)
	if err != nil {
		return stats, fmt.Errorf("token discovery: %w", err)
	}
	existing := make(map[string]assets.Project, len(tracked))
	for _, pr := range tracked {
		existing[pr.Symbol] = pr
	}

	for i, candidate := range working {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if i > 0 {
			if err := p.pace(ctx); err != nil {
				return stats, err
			}
		}

		if current, ok := existing[candidate.Symbol]; ok {
			if current.Rank != candidate.Rank && candidate.Rank > 0 {
				if err := p.registry.UpdateProjectFields(ctx, candidate.Symbol, assets.Partial{"rank": candidate.Rank}); err != nil {
					stats.Failed++
					p.logger.Error("Rank refresh failed",
						zap.String("symbol", candidate.Symbol),
						zap.Error(err))
					continue
				}
				stats.RankUpdate++
			}
			continue
		}

		if err := p.registry.CreateProject(ctx, candidate); err != nil {
			stats.Failed++
			p.logger.Error("Project create failed",
				zap.String("symbol", candidate.Symbol),
				zap.Error(err))
			continue
		}
		stats.Created++
		ProjectsDiscovered.WithLabelValues(assets.SourceDiscovery).Inc()
		p.logger.Info("Project discovered",
			zap.String("symbol", candidate.Symbol),
			zap.String("name", candidate.Name),
			zap.Int64("rank", candidate.Rank))
		p.publishEvent(ctx, ChannelProjectDiscovered, ProjectDiscoveredEvent{
			ID:           uuid.NewString(),
			Symbol:       candidate.Symbol,
			Name:         candidate.Name,
			Rank:         candidate.Rank,
			DiscoveredAt: time.Now().UTC(),
		})
		p.onboardProject(ctx, candidate)
	}

	return stats, nil
}

// onboardProject seeds the slow-cadence tables of a new project. Failures
// are logged only; the regular loops will retry on their own schedule.
func (p *Pipeline) onboardProject(ctx context.Context, project assets.Project) {
	for _, category := range onboardingCategories {
		spec, err := assets.SpecFor(category)
		if err != nil {
			continue
		}
		partial, err := p.fetcher.Fetch(ctx, category, project)
		if err != nil {
			p.logger.Warn("Onboarding fetch skipped",
				zap.String("symbol", project.Symbol),
				zap.String("category", category),
				zap.Error(err))
			continue
		}
		if err := p.reconciler.Upsert(ctx, spec, project.Symbol, partial); err != nil {
			p.logger.Error("Onboarding reconcile failed",
				zap.String("symbol", project.Symbol),
				zap.String("category", category),
				zap.Error(err))
		}
	}
}

// listRankedTokens resolves the discovery universe, falling back from the
// primary listing provider to paged market data.
func (p *Pipeline) listRankedTokens(ctx context.Context) ([]sources.RankedToken, error) {
	if p.listTokens != nil {
		return p.listTokens(ctx)
	}
	if p.sources == nil {
		return nil, errors.New("no provider registry configured")
	}

	tokens, primaryErr := p.sources.CoinMarketCap.Listings(ctx, 1500)
	if primaryErr == nil && len(tokens) > 0 {
		return tokens, nil
	}
	p.logger.Warn("Listings provider failed, falling back to market pages", zap.Error(primaryErr))

	var all []sources.RankedToken
	for page := 1; page <= 6; page++ {
		batch, err := p.sources.CoinGecko.Markets(ctx, page, 250)
		if err != nil {
			if len(all) == 0 {
				return nil, fmt.Errorf("market pages: %w (primary: %v)", err, primaryErr)
			}
			break
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
	}
	return all, nil
}

// RunCategoryDiscovery refreshes the category label of every tracked
// project, ignoring labels on the noise-category denylist.
func (p *Pipeline) RunCategoryDiscovery(ctx context.Context) (int, error) {
	projects, err := p.registry.ListProjects(ctx)
	if err != nil {
		return 0, fmt.Errorf("category discovery: %w", err)
	}
	sets := p.denylists.LoadAll(ctx)
	working := SelectWorkingSet(projects, sets, p.workingSetCap)

	updated := 0
	for i, project := range working {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
		if i > 0 {
			if err := p.pace(ctx); err != nil {
				return updated, err
			}
		}

		label, err := p.lookupCategory(ctx, project, sets.NoiseCategories)
		if err != nil {
			p.logger.Warn("Category lookup skipped",
				zap.String("symbol", project.Symbol),
				zap.Error(err))
			continue
		}
		if label == "" || label == project.Category {
			continue
		}
		if err := p.registry.UpdateProjectFields(ctx, project.Symbol, assets.Partial{"category": label}); err != nil {
			p.logger.Error("Category update failed",
				zap.String("symbol", project.Symbol),
				zap.Error(err))
			continue
		}
		updated++
	}
	return updated, nil
}

// lookupCategory returns the first provider category not on the noise
// list, or "" when every label is noise.
func (p *Pipeline) lookupCategory(ctx context.Context, project assets.Project, noise denylist.Set) (string, error) {
	labels, err := p.categoryLabels(ctx, project)
	if err != nil {
		return "", err
	}

	for _, label := range labels {
		if label != "" && !noise.Contains(label) {
			return label, nil
		}
	}
	return "", nil
}

func (p *Pipeline) categoryLabels(ctx context.Context, project assets.Project) ([]string, error) {
	if p.lookupLabels != nil {
		return p.lookupLabels(ctx, project)
	}
	if p.sources == nil {
		return nil, errors.New("no provider registry configured")
	}

	labels, primaryErr := p.sources.CoinGecko.Categories(ctx, project)
	if primaryErr != nil {
		label, err := p.sources.CoinMarketCap.Category(ctx, project)
		if err != nil {
			return nil, fmt.Errorf("%v (primary: %v)", err, primaryErr)
		}
		labels = []string{label}
	}
	return labels, nil
}
