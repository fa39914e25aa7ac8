// Package pipeline implements the multi-cadence ingestion and
// reconciliation engine: working-set selection, source-fallback fetching,
// field-granular upserts, the cadence loops and their supervisor.
package pipeline

import (
	"github.com/assetlab-io/assetx/pkg/db/assets"
	"github.com/assetlab-io/assetx/pkg/denylist"
)

// DefaultWorkingSetCap bounds every pass to a fixed-size working set.
const DefaultWorkingSetCap = 1000

// SelectWorkingSet returns the denylist-filtered working set for a cadence
// pass, truncated to cap. This variant never pads: when filtering leaves
// fewer than cap projects, the smaller set is returned as-is.
func SelectWorkingSet(projects []assets.Project, sets denylist.Sets, cap int) []assets.Project {
	selected := make([]assets.Project, 0, min(cap, len(projects)))
	for _, p := range projects {
		if sets.ExcludesSymbol(p.Symbol) {
			continue
		}
		selected = append(selected, p)
		if len(selected) == cap {
			break
		}
	}
	return selected
}

// SelectWithBackfill is the discovery variant: after filtering, it refills
// from the excluded remainder in original order until the set reaches cap
// or the universe is exhausted. Discovery always converges to a full
// working set when the raw universe is large enough.
func SelectWithBackfill(projects []assets.Project, sets denylist.Sets, cap int) []assets.Project {
	selected := make([]assets.Project, 0, min(cap, len(projects)))
	var excluded []assets.Project
	for _, p := range projects {
		if sets.ExcludesSymbol(p.Symbol) {
			excluded = append(excluded, p)
			continue
		}
		if len(selected) < cap {
			selected = append(selected, p)
		}
	}

	for _, p := range excluded {
		if len(selected) >= cap {
			break
		}
		selected = append(selected, p)
	}
	return selected
}
