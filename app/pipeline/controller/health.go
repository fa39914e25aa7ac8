package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
)

func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := c.App.AssetsDB.Health(ctx); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "errored", "error": "database connection error"})
		return
	}

	// Redis is optional; report degraded but stay healthy when it is down.
	status := map[string]string{"status": "ok"}
	if c.App.RedisClient != nil {
		if err := c.App.RedisClient.Health(ctx); err != nil {
			status["redis"] = "unavailable"
		}
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(status)
}
