package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/assetlab-io/assetx/pkg/db/assets"
)

// fakeStore keeps metric rows in memory, keyed by table then symbol.
type fakeStore struct {
	rows    map[string]map[string]assets.Partial
	inserts int
	failGet bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]map[string]assets.Partial{}}
}

func (s *fakeStore) GetMetricRow(_ context.Context, spec assets.TableSpec, symbol string) (assets.Partial, bool, error) {
	if s.failGet {
		return nil, false, errors.New("read failed")
	}
	row, ok := s.rows[spec.Table][symbol]
	return row.Clone(), ok, nil
}

func (s *fakeStore) InsertMetricRow(_ context.Context, spec assets.TableSpec, symbol string, row assets.Partial) error {
	if s.rows[spec.Table] == nil {
		s.rows[spec.Table] = map[string]assets.Partial{}
	}
	s.rows[spec.Table][symbol] = row.Clone()
	s.inserts++
	return nil
}

func tokenomicsSpec(t *testing.T) assets.TableSpec {
	spec, err := assets.SpecFor(assets.CategoryTokenomics)
	require.NoError(t, err)
	return spec
}

func TestUpsertCreatesRow(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(zaptest.NewLogger(t), store)
	spec := tokenomicsSpec(t)

	err := r.Upsert(context.Background(), spec, "BTC", assets.Partial{
		"market_cap":         1000.0,
		"circulating_supply": 21.0,
	})
	require.NoError(t, err)

	row := store.rows[spec.Table]["BTC"]
	assert.Equal(t, 1000.0, row["market_cap"])
	assert.Equal(t, 21.0, row["circulating_supply"])
}

func TestUpsertPreservesAbsentFields(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(zaptest.NewLogger(t), store)
	spec := tokenomicsSpec(t)

	require.NoError(t, r.Upsert(context.Background(), spec, "ETH", assets.Partial{
		"market_cap":         100.0,
		"circulating_supply": 120.0,
	}))
	// Second write touches a different field only.
	require.NoError(t, r.Upsert(context.Background(), spec, "ETH", assets.Partial{
		"total_supply": 120.5,
	}))

	row := store.rows[spec.Table]["ETH"]
	assert.Equal(t, 100.0, row["market_cap"], "untouched field must survive the second upsert")
	assert.Equal(t, 120.5, row["total_supply"])
}

func TestUpsertIdenticalPayloadIsIdempotent(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(zaptest.NewLogger(t), store)
	spec := tokenomicsSpec(t)

	payload := assets.Partial{"market_cap": 7.0, "circulating_supply": 3.0}
	require.NoError(t, r.Upsert(context.Background(), spec, "XRP", payload))
	require.NoError(t, r.Upsert(context.Background(), spec, "XRP", payload))

	assert.Equal(t, 1, store.inserts, "repeated identical upsert must not write a new row version")
}

func TestUpsertLastWriterWinsPerField(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(zaptest.NewLogger(t), store)
	spec := tokenomicsSpec(t)

	require.NoError(t, r.Upsert(context.Background(), spec, "SOL", assets.Partial{
		"market_cap":         1.0,
		"circulating_supply": 2.0,
	}))
	require.NoError(t, r.Upsert(context.Background(), spec, "SOL", assets.Partial{
		"market_cap": 9.0,
	}))

	row := store.rows[spec.Table]["SOL"]
	assert.Equal(t, 9.0, row["market_cap"])
	assert.Equal(t, 2.0, row["circulating_supply"])
}

func TestUpsertRejectsUnknownField(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(zaptest.NewLogger(t), store)
	spec := tokenomicsSpec(t)

	err := r.Upsert(context.Background(), spec, "BTC", assets.Partial{"bogus_field": 1.0})
	require.Error(t, err)
	assert.Zero(t, store.inserts)
}

func TestUpsertRejectsEmptyPartial(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(zaptest.NewLogger(t), store)

	err := r.Upsert(context.Background(), tokenomicsSpec(t), "BTC", assets.Partial{})
	assert.Error(t, err)
}

func TestUpsertPropagatesReadError(t *testing.T) {
	store := newFakeStore()
	store.failGet = true
	r := NewReconciler(zaptest.NewLogger(t), store)

	err := r.Upsert(context.Background(), tokenomicsSpec(t), "BTC", assets.Partial{
		"market_cap":         1.0,
		"circulating_supply": 1.0,
	})
	assert.Error(t, err)
}

func TestMergeFieldsDoesNotMutateInputs(t *testing.T) {
	existing := assets.Partial{"a": 1.0}
	partial := assets.Partial{"b": 2.0}

	merged := MergeFields(existing, partial)

	assert.Equal(t, assets.Partial{"a": 1.0, "b": 2.0}, merged)
	assert.Equal(t, assets.Partial{"a": 1.0}, existing)
	assert.Equal(t, assets.Partial{"b": 2.0}, partial)
}
