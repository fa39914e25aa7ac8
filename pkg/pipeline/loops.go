package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/assetlab-io/assetx/pkg/db/assets"
	"github.com/assetlab-io/assetx/pkg/retry"
	"go.uber.org/zap"
)

// Loop describes one cadence: which categories it refreshes and how long
// it sleeps between passes.
type Loop struct {
	Name       string
	Interval   time.Duration
	Categories []string
}

// CadenceLoops returns the five refresh cadences. Slow-moving data
// (fundraising, fund distribution) refreshes rarely; market data often.
func CadenceLoops() []Loop {
	return []Loop{
		{Name: "fundraising", Interval: 2160 * time.Hour, Categories: []string{assets.CategoryFundraising}},
		{Name: "funddist", Interval: 168 * time.Hour, Categories: []string{assets.CategoryFundDist}},
		{Name: "valuation", Interval: 24 * time.Hour, Categories: []string{assets.CategoryTokenomics, assets.CategoryPriceBand}},
		{Name: "community", Interval: 12 * time.Hour, Categories: []string{assets.CategorySocial, assets.CategoryHolders}},
		{Name: "market", Interval: 6 * time.Hour, Categories: []string{assets.CategoryMarket, assets.CategoryTrend, assets.CategoryNetwork}},
	}
}

// PassStats summarizes one completed pass for logs, metrics and events.
type PassStats struct {
	Loop      string        `json:"loop"`
	Selected  int           `json:"selected"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// PassObserver is notified after every pass attempt (supervisor state).
type PassObserver func(stats PassStats, err error)

// RunLoop drives one cadence forever: pass, sleep, pass. Item failures
// never escape the pass; an unexpected pass-level error is logged and the
// loop retries after a shortened interval instead of a full cadence, so a
// systemic failure on the quarterly loop is not masked for months.
func (p *Pipeline) RunLoop(ctx context.Context, loop Loop, observe PassObserver) {
	p.logger.Info("Cadence loop starting",
		zap.String("loop", loop.Name),
		zap.Duration("interval", loop.Interval),
		zap.Strings("categories", loop.Categories))

	for {
		stats, err := p.RunPass(ctx, loop)
		if observe != nil {
			observe(stats, err)
		}

		sleep := loop.Interval
		switch {
		case ctx.Err() != nil:
			p.logger.Info("Cadence loop stopping", zap.String("loop", loop.Name))
			return
		case err != nil:
			PassErrors.WithLabelValues(loop.Name).Inc()
			p.logger.Error("Pass failed unexpectedly",
				zap.String("loop", loop.Name),
				zap.Error(err))
			sleep = minDuration(loop.Interval, p.errorRetryInterval)
		default:
			PassesTotal.WithLabelValues(loop.Name).Inc()
			PassDuration.WithLabelValues(loop.Name).Observe(stats.Duration.Seconds())
			p.logger.Info("Pass completed",
				zap.String("loop", loop.Name),
				zap.Int("selected", stats.Selected),
				zap.Int("processed", stats.Processed),
				zap.Int("skipped", stats.Skipped),
				zap.Int("failed", stats.Failed),
				zap.Duration("duration", stats.Duration))
			p.publishPassCompleted(ctx, stats)
		}

		select {
		case <-ctx.Done():
			p.logger.Info("Cadence loop stopping", zap.String("loop", loop.Name))
			return
		case <-time.After(sleep):
		}
	}
}

// RunPass selects the working set and processes it item by item. Only the
// startup (registry read + denylist load + selection) is retried; items
// are attempted exactly once per pass.
func (p *Pipeline) RunPass(ctx context.Context, loop Loop) (PassStats, error) {
	stats := PassStats{Loop: loop.Name}
	start := time.Now()

	var working []assets.Project
	err := retry.WithBackoff(ctx, p.startupRetry, p.logger, loop.Name+"_startup", func() error {
		projects, err := p.registry.ListProjects(ctx)
		if err != nil {
			return err
		}
		sets := p.denylists.LoadAll(ctx)
		working = SelectWorkingSet(projects, sets, p.workingSetCap)
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("pass startup: %w", err)
	}
	stats.Selected = len(working)

	for i, project := range working {
		if ctx.Err() != nil {
			stats.Duration = time.Since(start)
			return stats, ctx.Err()
		}
		if i > 0 {
			if err := p.pace(ctx); err != nil {
				stats.Duration = time.Since(start)
				return stats, err
			}
		}

		processed, skipped, failed := p.processItem(ctx, loop, project)
		stats.Processed += processed
		stats.Skipped += skipped
		stats.Failed += failed
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// processItem runs every category of the loop for one project. Panics and
// errors are absorbed here: one bad asset never stalls the batch.
func (p *Pipeline) processItem(ctx context.Context, loop Loop, project assets.Project) (processed, skipped, failed int) {
	defer func() {
		if r := recover(); r != nil {
			failed++
			ItemFailures.WithLabelValues(loop.Name).Inc()
			p.logger.Error("Item panicked",
				zap.String("loop", loop.Name),
				zap.String("symbol", project.Symbol),
				zap.Any("panic", r))
		}
	}()

	for _, category := range loop.Categories {
		partial, err := p.fetcher.Fetch(ctx, category, project)
		if err != nil {
			skipped++
			ItemsSkipped.WithLabelValues(loop.Name).Inc()
			p.logger.Warn("Item skipped",
				zap.String("loop", loop.Name),
				zap.String("category", category),
				zap.String("symbol", project.Symbol),
				zap.Error(err))
			continue
		}

		spec, err := assets.SpecFor(category)
		if err != nil {
			failed++
			ItemFailures.WithLabelValues(loop.Name).Inc()
			p.logger.Error("Unknown category in loop",
				zap.String("loop", loop.Name),
				zap.String("category", category),
				zap.Error(err))
			continue
		}

		if err := p.reconciler.Upsert(ctx, spec, project.Symbol, partial); err != nil {
			failed++
			ItemFailures.WithLabelValues(loop.Name).Inc()
			p.logger.Error("Item reconcile failed",
				zap.String("loop", loop.Name),
				zap.String("category", category),
				zap.String("symbol", project.Symbol),
				zap.Error(err))
			continue
		}
		processed++
		ItemsProcessed.WithLabelValues(loop.Name).Inc()
	}
	return processed, skipped, failed
}

// defaultPacer sleeps 10s plus up to 5s of jitter between items so
// sequential passes stay inside third-party rate limits.
func defaultPacer() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		delay := 10*time.Second + time.Duration(rand.Int63n(int64(5*time.Second)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			return nil
		}
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
