package pipeline

import (
	"context"
	"fmt"

	"github.com/assetlab-io/assetx/pkg/db/assets"
	"go.uber.org/zap"
)

// MetricStore is the narrow persistence surface the reconciler writes
// through. *assets.DB implements it; tests use an in-memory fake.
type MetricStore interface {
	GetMetricRow(ctx context.Context, spec assets.TableSpec, symbol string) (assets.Partial, bool, error)
	InsertMetricRow(ctx context.Context, spec assets.TableSpec, symbol string, row assets.Partial) error
}

// Reconciler merges fetched partials into the per-project metric tables.
// It is the sole writer of metric rows: each upsert reads the current row,
// overwrites only the fields present in the partial and writes the merged
// row back. Two loops writing disjoint field sets therefore do not
// conflict; the same field written concurrently is last-writer-wins.
type Reconciler struct {
	store  MetricStore
	logger *zap.Logger
}

// NewReconciler returns a reconciler writing through the given store.
func NewReconciler(logger *zap.Logger, store MetricStore) *Reconciler {
	return &Reconciler{store: store, logger: logger}
}

// Upsert merges partial into the project's row of the category table.
// Repeating the call with identical fields is idempotent; fields absent
// from the partial are never erased.
func (r *Reconciler) Upsert(ctx context.Context, spec assets.TableSpec, symbol string, partial assets.Partial) error {
	if len(partial) == 0 {
		return fmt.Errorf("upsert %s for %s: empty partial", spec.Table, symbol)
	}
	for field := range partial {
		if _, ok := spec.Column(field); !ok {
			return fmt.Errorf("upsert %s for %s: unknown field %q", spec.Table, symbol, field)
		}
	}

	existing, found, err := r.store.GetMetricRow(ctx, spec, symbol)
	if err != nil {
		UpsertErrors.WithLabelValues(spec.Table).Inc()
		return fmt.Errorf("upsert %s for %s: %w", spec.Table, symbol, err)
	}

	merged := MergeFields(existing, partial)
	if found && equalPartials(existing, merged) {
		// Nothing changed; skip the write so repeated reconciles of the
		// same payload do not churn row versions.
		r.logger.Debug("Upsert is a no-op",
			zap.String("table", spec.Table),
			zap.String("symbol", symbol))
		return nil
	}

	if err := r.store.InsertMetricRow(ctx, spec, symbol, merged); err != nil {
		UpsertErrors.WithLabelValues(spec.Table).Inc()
		return fmt.Errorf("upsert %s for %s: %w", spec.Table, symbol, err)
	}
	return nil
}

// MergeFields overlays the fields present in partial onto existing,
// leaving all other fields untouched. Neither input is mutated.
func MergeFields(existing, partial assets.Partial) assets.Partial {
	merged := existing.Clone()
	if merged == nil {
		merged = assets.Partial{}
	}
	for field, value := range partial {
		merged[field] = value
	}
	return merged
}

func equalPartials(a, b assets.Partial) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
