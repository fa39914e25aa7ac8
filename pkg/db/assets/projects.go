package assets

import (
	"context"
	"fmt"
	"time"

	"github.com/assetlab-io/assetx/pkg/utils"
	"go.uber.org/zap"
)

// Project sources.
const (
	SourceManual    = "manual"
	SourceDiscovery = "discovery"
)

// Project is the identity record for one tracked crypto asset. Projects are
// created once (manually or by weekly discovery) and never deleted; category
// and rank are refreshed in place.
type Project struct {
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Rank      int64     `json:"rank"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const projectColumns = "symbol, name, category, rank, source, created_at, updated_at"

// ListProjects returns all projects ordered by rank (unranked last, then by
// symbol for a stable order).
func (db *DB) ListProjects(ctx context.Context) ([]Project, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM "%s"."projects" FINAL
		ORDER BY rank = 0, rank, symbol
	`, projectColumns, db.Name)

	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			db.Logger.Warn("failed to close rows", zap.Error(closeErr))
		}
	}()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.Symbol, &p.Name, &p.Category, &p.Rank, &p.Source, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("project rows: %w", err)
	}
	return projects, nil
}

// GetProject returns the project with the given symbol or ErrNotFound.
func (db *DB) GetProject(ctx context.Context, symbol string) (Project, error) {
	symbol = utils.NormalizeSymbol(symbol)
	query := fmt.Sprintf(`
		SELECT %s FROM "%s"."projects" FINAL
		WHERE symbol = ?
		LIMIT 1
	`, projectColumns, db.Name)

	rows, err := db.Query(ctx, query, symbol)
	if err != nil {
		return Project{}, fmt.Errorf("get project %s: %w", symbol, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Project{}, fmt.Errorf("get project %s: %w", symbol, err)
		}
		return Project{}, ErrNotFound
	}
	var p Project
	if err := rows.Scan(&p.Symbol, &p.Name, &p.Category, &p.Rank, &p.Source, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Project{}, fmt.Errorf("scan project %s: %w", symbol, err)
	}
	return p, nil
}

// CreateProject inserts a new project row. The symbol is case-normalized
// before insert; creating an already-known symbol is harmless because the
// ReplacingMergeTree collapses to the latest version by updated_at.
func (db *DB) CreateProject(ctx context.Context, p Project) error {
	p.Symbol = utils.NormalizeSymbol(p.Symbol)
	if p.Symbol == "" {
		return fmt.Errorf("create project: empty symbol")
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	query := fmt.Sprintf(`INSERT INTO "%s"."projects" (%s) VALUES`, db.Name, projectColumns)
	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("create project %s: %w", p.Symbol, err)
	}
	if err := batch.Append(p.Symbol, p.Name, p.Category, p.Rank, p.Source, p.CreatedAt, p.UpdatedAt); err != nil {
		_ = batch.Abort()
		return fmt.Errorf("create project %s: %w", p.Symbol, err)
	}
	return batch.Send()
}

// UpdateProjectFields re-inserts the project with only the provided fields
// changed. Supported fields: name, category, rank. Unknown fields error.
func (db *DB) UpdateProjectFields(ctx context.Context, symbol string, fields Partial) error {
	p, err := db.GetProject(ctx, symbol)
	if err != nil {
		return err
	}

	for name, value := range fields {
		switch name {
		case "name":
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("update project %s: name must be a string", symbol)
			}
			p.Name = s
		case "category":
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("update project %s: category must be a string", symbol)
			}
			p.Category = s
		case "rank":
			switch v := value.(type) {
			case int64:
				p.Rank = v
			case int:
				p.Rank = int64(v)
			case float64:
				p.Rank = int64(v)
			default:
				return fmt.Errorf("update project %s: rank must be numeric", symbol)
			}
		default:
			return fmt.Errorf("update project %s: unknown field %q", symbol, name)
		}
	}

	return db.CreateProject(ctx, p)
}
