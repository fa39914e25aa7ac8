package assets

import (
	"context"
	"errors"
	"fmt"

	"github.com/assetlab-io/assetx/pkg/db/clickhouse"
	"github.com/assetlab-io/assetx/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned when a project lookup finds no row.
var ErrNotFound = errors.New("not found")

// DB is the asset research store: the project registry plus one
// ReplacingMergeTree table per metric category, all keyed by coin symbol.
type DB struct {
	*clickhouse.Client
}

// New connects to ClickHouse and ensures all tables exist.
func New(ctx context.Context, logger *zap.Logger) (*DB, error) {
	client, err := clickhouse.New(ctx, logger, utils.Env("ASSETX_DB", "assetx"))
	if err != nil {
		return nil, err
	}

	db := &DB{Client: client}
	if err := db.EnsureTables(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// EnsureTables creates the project registry and the nine metric tables.
// All tables use ReplacingMergeTree versioned by updated_at so that an
// insert of a newer row logically replaces the previous one; reads use
// FINAL to collapse unmerged versions.
func (db *DB) EnsureTables(ctx context.Context) error {
	projectsQuery := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS "%s"."projects" (
			symbol String,
			name String,
			category String,
			rank Int64,
			source String,
			created_at DateTime,
			updated_at DateTime
		) ENGINE = %s
		ORDER BY (symbol)
	`, db.Name, clickhouse.Engine(clickhouse.ReplacingMergeTree, "updated_at"))
	if err := db.Exec(ctx, projectsQuery); err != nil {
		return fmt.Errorf("create projects: %w", err)
	}

	// Metric tables are independent, create them concurrently.
	group, groupCtx := errgroup.WithContext(ctx)
	for _, spec := range Specs() {
		spec := spec
		group.Go(func() error {
			query := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS "%s"."%s" (
			symbol String,
			%s,
			updated_at DateTime
		) ENGINE = %s
		ORDER BY (symbol)
	`, db.Name, spec.Table, spec.SchemaSQL(), clickhouse.Engine(clickhouse.ReplacingMergeTree, "updated_at"))
			if err := db.Exec(groupCtx, query); err != nil {
				return fmt.Errorf("create %s: %w", spec.Table, err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	db.Logger.Info("Asset tables ensured",
		zap.String("database", db.Name),
		zap.Int("metric_tables", len(Specs())))
	return nil
}
