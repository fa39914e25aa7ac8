package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/assetlab-io/assetx/pkg/db/assets"
	"github.com/assetlab-io/assetx/pkg/denylist"
	"github.com/assetlab-io/assetx/pkg/retry"
	"github.com/assetlab-io/assetx/pkg/sources"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProjectRegistry is the project-table surface the pipeline reads and
// mutates. *assets.DB implements it.
type ProjectRegistry interface {
	ListProjects(ctx context.Context) ([]assets.Project, error)
	GetProject(ctx context.Context, symbol string) (assets.Project, error)
	CreateProject(ctx context.Context, project assets.Project) error
	UpdateProjectFields(ctx context.Context, symbol string, fields assets.Partial) error
}

// Pipeline owns the ingestion machinery shared by the cadence loops,
// weekly discovery and on-demand refreshes.
type Pipeline struct {
	logger     *zap.Logger
	registry   ProjectRegistry
	fetcher    *Fetcher
	reconciler *Reconciler
	denylists  *denylist.Loader
	events     EventPublisher
	sources    *sources.Registry

	workingSetCap      int
	errorRetryInterval time.Duration
	startupRetry       retry.Config
	pace               func(ctx context.Context) error

	// Discovery hooks, overridable in tests.
	listTokens   func(ctx context.Context) ([]sources.RankedToken, error)
	lookupLabels func(ctx context.Context, project assets.Project) ([]string, error)
}

// Option tweaks pipeline construction, mainly for tests.
type Option func(*Pipeline)

// WithWorkingSetCap overrides the per-pass working-set cap.
func WithWorkingSetCap(cap int) Option {
	return func(p *Pipeline) { p.workingSetCap = cap }
}

// WithPacer replaces the inter-item delay. Tests inject a no-op pacer.
func WithPacer(pace func(ctx context.Context) error) Option {
	return func(p *Pipeline) { p.pace = pace }
}

// WithErrorRetryInterval overrides the shortened sleep a loop takes after
// an unexpected pass failure.
func WithErrorRetryInterval(d time.Duration) Option {
	return func(p *Pipeline) { p.errorRetryInterval = d }
}

// WithStartupRetry overrides the bounded retry applied to pass startup.
func WithStartupRetry(cfg retry.Config) Option {
	return func(p *Pipeline) { p.startupRetry = cfg }
}

// WithTokenLister overrides the ranked-list provider used by discovery.
func WithTokenLister(fn func(ctx context.Context) ([]sources.RankedToken, error)) Option {
	return func(p *Pipeline) { p.listTokens = fn }
}

// WithCategoryLookup overrides the category-label provider used by discovery.
func WithCategoryLookup(fn func(ctx context.Context, project assets.Project) ([]string, error)) Option {
	return func(p *Pipeline) { p.lookupLabels = fn }
}

// New assembles a pipeline. events may be nil (no pub/sub) and reg may be
// nil when every chain is injected via a custom fetcher.
func New(logger *zap.Logger, registry ProjectRegistry, store MetricStore, fetcher *Fetcher,
	denylists *denylist.Loader, events EventPublisher, reg *sources.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		logger:             logger,
		registry:           registry,
		fetcher:            fetcher,
		reconciler:         NewReconciler(logger, store),
		denylists:          denylists,
		events:             events,
		sources:            reg,
		workingSetCap:      DefaultWorkingSetCap,
		errorRetryInterval: 15 * time.Minute,
		startupRetry:       retry.StartupConfig(),
		pace:               defaultPacer(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RefreshResult reports the per-category outcome of an on-demand refresh.
type RefreshResult struct {
	Symbol    string   `json:"symbol"`
	Processed int      `json:"processed"`
	Skipped   []string `json:"skipped,omitempty"`
	Failed    []string `json:"failed,omitempty"`
}

// TriggerRefresh synchronously refreshes every metric category for one
// project, outside any cadence. Unknown symbols return assets.ErrNotFound.
// Categories the fallback chains cannot serve are reported as skipped, not
// as an error; the call fails only when the project cannot be resolved.
func (p *Pipeline) TriggerRefresh(ctx context.Context, symbol string) (RefreshResult, error) {
	project, err := p.registry.GetProject(ctx, symbol)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("refresh %s: %w", symbol, err)
	}

	result := RefreshResult{Symbol: project.Symbol}
	for _, category := range assets.Categories() {
		spec, err := assets.SpecFor(category)
		if err != nil {
			return result, err
		}

		partial, err := p.fetcher.Fetch(ctx, category, project)
		if err != nil {
			result.Skipped = append(result.Skipped, category)
			p.logger.Warn("Refresh category skipped",
				zap.String("symbol", project.Symbol),
				zap.String("category", category),
				zap.Error(err))
			continue
		}
		if err := p.reconciler.Upsert(ctx, spec, project.Symbol, partial); err != nil {
			result.Failed = append(result.Failed, category)
			p.logger.Error("Refresh category failed",
				zap.String("symbol", project.Symbol),
				zap.String("category", category),
				zap.Error(err))
			continue
		}
		result.Processed++
	}

	p.publishEvent(ctx, ChannelRefreshCompleted, RefreshCompletedEvent{
		ID:          uuid.NewString(),
		Symbol:      project.Symbol,
		Processed:   result.Processed,
		Skipped:     len(result.Skipped),
		Failed:      len(result.Failed),
		CompletedAt: time.Now().UTC(),
	})
	return result, nil
}
