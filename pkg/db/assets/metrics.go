package assets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/assetlab-io/assetx/pkg/utils"
)

// GetMetricRow reads the current row for one project from a category table.
// Absent columns (NULL) are omitted from the returned Partial. The second
// return value reports whether a row exists at all.
func (db *DB) GetMetricRow(ctx context.Context, spec TableSpec, symbol string) (Partial, bool, error) {
	symbol = utils.NormalizeSymbol(symbol)
	query := fmt.Sprintf(`
		SELECT %s FROM "%s"."%s" FINAL
		WHERE symbol = ?
		LIMIT 1
	`, strings.Join(spec.ColumnNames(), ", "), db.Name, spec.Table)

	rows, err := db.Query(ctx, query, symbol)
	if err != nil {
		return nil, false, fmt.Errorf("read %s for %s: %w", spec.Table, symbol, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, false, fmt.Errorf("read %s for %s: %w", spec.Table, symbol, err)
		}
		return nil, false, nil
	}

	holders := make([]any, len(spec.Columns))
	for i, c := range spec.Columns {
		switch c.Kind {
		case KindFloat64:
			holders[i] = new(*float64)
		case KindInt64:
			holders[i] = new(*int64)
		default:
			holders[i] = new(*string)
		}
	}
	if err := rows.Scan(holders...); err != nil {
		return nil, false, fmt.Errorf("scan %s for %s: %w", spec.Table, symbol, err)
	}

	partial := Partial{}
	for i, c := range spec.Columns {
		switch h := holders[i].(type) {
		case **float64:
			if *h != nil {
				partial[c.Name] = **h
			}
		case **int64:
			if *h != nil {
				partial[c.Name] = **h
			}
		case **string:
			if *h != nil {
				partial[c.Name] = **h
			}
		}
	}
	return partial, true, nil
}

// InsertMetricRow writes a full row version for one project into a category
// table. Missing columns are written as NULL; the ReplacingMergeTree keyed
// by symbol collapses to the newest updated_at.
func (db *DB) InsertMetricRow(ctx context.Context, spec TableSpec, symbol string, row Partial) error {
	symbol = utils.NormalizeSymbol(symbol)
	if symbol == "" {
		return fmt.Errorf("insert %s: empty symbol", spec.Table)
	}

	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (symbol, %s, updated_at) VALUES`,
		db.Name, spec.Table, strings.Join(spec.ColumnNames(), ", "))
	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("insert %s for %s: %w", spec.Table, symbol, err)
	}

	values := make([]any, 0, len(spec.Columns)+2)
	values = append(values, symbol)
	for _, c := range spec.Columns {
		v, ok := row[c.Name]
		if !ok {
			values = append(values, nil)
			continue
		}
		coerced, err := coerceValue(c, v)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("insert %s for %s: %w", spec.Table, symbol, err)
		}
		values = append(values, coerced)
	}
	values = append(values, time.Now().UTC())

	if err := batch.Append(values...); err != nil {
		_ = batch.Abort()
		return fmt.Errorf("insert %s for %s: %w", spec.Table, symbol, err)
	}
	return batch.Send()
}

// coerceValue converts a Partial value into the column's storage type.
// Numeric cross-typing is tolerated because JSON decoding yields float64.
func coerceValue(c ColumnDef, v any) (any, error) {
	switch c.Kind {
	case KindFloat64:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		case int:
			return float64(n), nil
		}
	case KindInt64:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case float64:
			return int64(n), nil
		}
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("column %s: unsupported value type %T", c.Name, v)
}
