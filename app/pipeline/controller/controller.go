package controller

import (
	"net/http"

	"github.com/assetlab-io/assetx/app/pipeline/types"
	"github.com/assetlab-io/assetx/pkg/utils"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Controller struct {
	App        *types.App
	AdminToken string
	AuthUser   string
	Users      map[string]types.User
	AuthHash   []byte
	JWTSecret  []byte
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	adminToken := utils.Env("ADMIN_TOKEN", "devtoken")
	adminUser := utils.Env("ADMIN_USER", "admin")
	adminUsersJSON := utils.Env("ADMIN_USERS", "")
	adminPass := utils.Env("ADMIN_PASSWORD", "admin")
	jwtSecret := []byte(utils.Env("SESSION_SECRET", "change-me-please"))

	phash, _ := utils.HashOrRead(adminPass)
	users := map[string]types.User{}
	users[adminUser] = types.User{Username: adminUser, Hash: phash, Role: "admin"}
	if adminUsersJSON != "" {
		_ = json.Unmarshal([]byte(adminUsersJSON), &users)
	}

	return &Controller{
		App:        app,
		AdminToken: adminToken,
		AuthUser:   adminUser,
		Users:      users,
		AuthHash:   phash,
		JWTSecret:  jwtSecret,
	}
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Development: Echo back the origin to allow credentials with any origin
		// TODO: Restrict this in production to specific domains
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodPut+", "+http.MethodPatch+", "+http.MethodDelete+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	// basically it's ok, could even be a public endpoint
	r.Handle("/api/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Admin API - Login/Logout (normalized to /api prefix)
	r.HandleFunc("/api/auth/login", c.HandleAdminLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", c.HandleAdminLogout).Methods(http.MethodPost)

	// Project registry
	r.Handle("/api/projects", c.RequireAuth(http.HandlerFunc(c.HandleProjectsList))).Methods(http.MethodGet)
	r.Handle("/api/projects", c.RequireAuth(http.HandlerFunc(c.HandleProjectCreate))).Methods(http.MethodPost)
	r.Handle("/api/projects/{symbol}", c.RequireAuth(http.HandlerFunc(c.HandleProjectDetail))).Methods(http.MethodGet)
	r.Handle("/api/projects/{symbol}", c.RequireAuth(http.HandlerFunc(c.HandleProjectPatch))).Methods(http.MethodPatch)
	r.Handle("/api/projects/{symbol}/metrics/{category}", c.RequireAuth(http.HandlerFunc(c.HandleProjectMetrics))).Methods(http.MethodGet)

	// On-demand refresh outside the cadence schedule
	r.Handle("/api/projects/{symbol}/refresh", c.RequireAuth(http.HandlerFunc(c.HandleRefresh))).Methods(http.MethodPost)

	// Pipeline introspection
	r.Handle("/api/loops", c.RequireAuth(http.HandlerFunc(c.HandleLoops))).Methods(http.MethodGet)
	r.Handle("/api/denylists/{kind}", c.RequireAuth(http.HandlerFunc(c.HandleDenylist))).Methods(http.MethodGet)

	// WebSocket endpoint for real-time pipeline events
	r.HandleFunc("/api/ws", c.HandleWebSocket).Methods(http.MethodGet)

	return r, nil
}
