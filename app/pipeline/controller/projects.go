package controller

import (
	"errors"
	"net/http"

	"github.com/assetlab-io/assetx/pkg/db/assets"
	"github.com/assetlab-io/assetx/pkg/utils"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HandleProjectsList returns every tracked project ordered by rank.
func (c *Controller) HandleProjectsList(w http.ResponseWriter, r *http.Request) {
	projects, err := c.App.AssetsDB.ListProjects(r.Context())
	if err != nil {
		c.App.Logger.Error("Failed to list projects", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "query failed"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"projects": projects, "total": len(projects)})
}

// HandleProjectCreate registers a project manually.
func (c *Controller) HandleProjectCreate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Symbol   string `json:"symbol"`
		Name     string `json:"name"`
		Category string `json:"category"`
		Rank     int64  `json:"rank"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad json"})
		return
	}
	symbol := utils.NormalizeSymbol(in.Symbol)
	if symbol == "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "symbol is required"})
		return
	}

	project := assets.Project{
		Symbol:   symbol,
		Name:     in.Name,
		Category: in.Category,
		Rank:     in.Rank,
		Source:   assets.SourceManual,
	}
	if err := c.App.AssetsDB.CreateProject(r.Context(), project); err != nil {
		c.App.Logger.Error("Failed to create project", zap.String("symbol", symbol), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "insert failed"})
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(project)
}

// HandleProjectDetail returns one project by symbol.
func (c *Controller) HandleProjectDetail(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	project, err := c.App.AssetsDB.GetProject(r.Context(), symbol)
	if errors.Is(err, assets.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown project"})
		return
	}
	if err != nil {
		c.App.Logger.Error("Failed to load project", zap.String("symbol", symbol), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "query failed"})
		return
	}
	_ = json.NewEncoder(w).Encode(project)
}

// HandleProjectPatch updates the mutable registry fields of a project.
func (c *Controller) HandleProjectPatch(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	var in map[string]any
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad json"})
		return
	}

	fields := assets.Partial{}
	for _, key := range []string{"name", "category", "rank"} {
		if v, ok := in[key]; ok {
			fields[key] = v
		}
	}
	if len(fields) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "no updatable fields"})
		return
	}

	if err := c.App.AssetsDB.UpdateProjectFields(r.Context(), symbol, fields); err != nil {
		if errors.Is(err, assets.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown project"})
			return
		}
		c.App.Logger.Error("Failed to patch project", zap.String("symbol", symbol), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "update failed"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"ok": "1"})
}

// HandleProjectMetrics returns the current row of one metric category.
func (c *Controller) HandleProjectMetrics(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol := vars["symbol"]
	category := vars["category"]

	spec, err := assets.SpecFor(category)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown category"})
		return
	}

	row, found, err := c.App.AssetsDB.GetMetricRow(r.Context(), spec, symbol)
	if err != nil {
		c.App.Logger.Error("Failed to load metric row",
			zap.String("symbol", symbol),
			zap.String("category", category),
			zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "query failed"})
		return
	}
	if !found {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "no data yet"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"symbol": symbol, "category": category, "metrics": row})
}
