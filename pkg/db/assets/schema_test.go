package assets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecForEveryCategory(t *testing.T) {
	for _, category := range Categories() {
		spec, err := SpecFor(category)
		require.NoError(t, err)
		assert.Equal(t, category, spec.Category)
		assert.True(t, strings.HasPrefix(spec.Table, "metrics_"))
		assert.NotEmpty(t, spec.Columns)
		assert.NotEmpty(t, spec.Required, "every category needs a required-field contract")

		// Required fields must exist as columns.
		for _, field := range spec.Required {
			_, ok := spec.Column(field)
			assert.True(t, ok, "%s: required field %s has no column", category, field)
		}
	}
}

func TestSpecForUnknownCategory(t *testing.T) {
	_, err := SpecFor("bogus")
	assert.Error(t, err)
}

func TestColumnsAreNullable(t *testing.T) {
	spec, err := SpecFor(CategoryTokenomics)
	require.NoError(t, err)

	sql := spec.SchemaSQL()
	for _, col := range spec.Columns {
		assert.Contains(t, sql, col.Name+" Nullable("+col.Kind+")")
	}
}

func TestPartialCloneIsIndependent(t *testing.T) {
	p := Partial{"a": 1.0}
	c := p.Clone()
	c["a"] = 2.0
	c["b"] = 3.0

	assert.Equal(t, 1.0, p["a"])
	_, ok := p["b"]
	assert.False(t, ok)
}
