package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetlab-io/assetx/pkg/db/assets"
	"github.com/assetlab-io/assetx/pkg/denylist"
)

func makeProjects(n int) []assets.Project {
	projects := make([]assets.Project, 0, n)
	for i := 0; i < n; i++ {
		projects = append(projects, assets.Project{
			Symbol: fmt.Sprintf("TOK%04d", i),
			Rank:   int64(i + 1),
		})
	}
	return projects
}

func TestSelectWorkingSetFiltersAndTruncates(t *testing.T) {
	projects := makeProjects(1200)

	// Denylist the first 250 symbols.
	denied := make([]string, 250)
	for i := range denied {
		denied[i] = projects[i].Symbol
	}
	sets := denylist.Sets{Scams: denylist.NewSet(denied...)}

	selected := SelectWorkingSet(projects, sets, 1000)
	require.Len(t, selected, 950, "1200 minus 250 denied, below the cap, no padding")

	for _, p := range selected {
		assert.False(t, sets.ExcludesSymbol(p.Symbol), "denied symbol %s made it into the working set", p.Symbol)
	}
	// Order of the survivors is preserved.
	assert.Equal(t, "TOK0250", selected[0].Symbol)
}

func TestSelectWorkingSetTruncatesToCap(t *testing.T) {
	projects := makeProjects(1500)

	selected := SelectWorkingSet(projects, denylist.Sets{}, 1000)
	require.Len(t, selected, 1000)
	assert.Equal(t, "TOK0000", selected[0].Symbol)
	assert.Equal(t, "TOK0999", selected[999].Symbol)
}

func TestSelectWorkingSetSmallUniverse(t *testing.T) {
	projects := makeProjects(40)
	sets := denylist.Sets{Stablecoins: denylist.NewSet("TOK0000", "TOK0001")}

	selected := SelectWorkingSet(projects, sets, 1000)
	assert.Len(t, selected, 38)
}

func TestSelectWithBackfillConvergesToCap(t *testing.T) {
	projects := makeProjects(1500)

	denied := make([]string, 520)
	for i := range denied {
		denied[i] = projects[i].Symbol
	}
	sets := denylist.Sets{Fundamentals: denylist.NewSet(denied...)}

	selected := SelectWithBackfill(projects, sets, 1000)
	require.Len(t, selected, 1000, "discovery backfills excluded entries up to the cap")

	// 980 clean entries first (1500 - 520), then 20 backfilled from the
	// excluded remainder in original order.
	assert.Equal(t, "TOK0520", selected[0].Symbol)
	assert.Equal(t, "TOK0000", selected[980].Symbol)
	assert.Equal(t, "TOK0019", selected[999].Symbol)
}

func TestSelectWithBackfillExhaustedUniverse(t *testing.T) {
	projects := makeProjects(600)
	sets := denylist.Sets{Scams: denylist.NewSet("TOK0010")}

	selected := SelectWithBackfill(projects, sets, 1000)
	assert.Len(t, selected, 600, "backfill cannot exceed the raw universe")
}

func TestSelectorsAreDisjointOnFilterOnly(t *testing.T) {
	projects := makeProjects(100)
	sets := denylist.Sets{Scams: denylist.NewSet("TOK0005", "TOK0006")}

	plain := SelectWorkingSet(projects, sets, 50)
	for _, p := range plain {
		assert.NotContains(t, []string{"TOK0005", "TOK0006"}, p.Symbol)
	}
}
