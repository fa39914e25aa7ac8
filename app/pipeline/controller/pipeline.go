package controller

import (
	"errors"
	"net/http"
	"sort"

	"github.com/assetlab-io/assetx/pkg/db/assets"
	"github.com/assetlab-io/assetx/pkg/denylist"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HandleRefresh refreshes every metric category of one project right now,
// outside the cadence schedule. The call is synchronous.
func (c *Controller) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	result, err := c.App.Pipeline.TriggerRefresh(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, assets.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown project"})
			return
		}
		c.App.Logger.Error("Refresh failed", zap.String("symbol", symbol), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "refresh failed"})
		return
	}
	_ = json.NewEncoder(w).Encode(result)
}

// HandleLoops returns the live state of every cadence loop.
func (c *Controller) HandleLoops(w http.ResponseWriter, _ *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]any{"loops": c.App.Supervisor.Statuses()})
}

// HandleDenylist returns the current entries of one denylist kind.
func (c *Controller) HandleDenylist(w http.ResponseWriter, r *http.Request) {
	kind := denylist.Kind(mux.Vars(r)["kind"])

	known := false
	for _, k := range denylist.Kinds() {
		if k == kind {
			known = true
			break
		}
	}
	if !known {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown denylist kind"})
		return
	}

	set := c.App.Denylists.Load(r.Context(), kind)
	entries := set.Entries()
	sort.Strings(entries)
	_ = json.NewEncoder(w).Encode(map[string]any{"kind": kind, "entries": entries, "total": len(entries)})
}
