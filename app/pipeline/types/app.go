package types

import (
	"context"
	"net/http"
	"time"

	"github.com/assetlab-io/assetx/pkg/db/assets"
	"github.com/assetlab-io/assetx/pkg/denylist"
	"github.com/assetlab-io/assetx/pkg/pipeline"
	"github.com/assetlab-io/assetx/pkg/redis"
	"github.com/assetlab-io/assetx/pkg/sources"
	"go.uber.org/zap"
)

// App bundles every long-lived component of the pipeline service.
type App struct {
	AssetsDB    *assets.DB
	RedisClient *redis.Client
	Sources     *sources.Registry
	Denylists   *denylist.Loader
	Pipeline    *pipeline.Pipeline
	Supervisor  *pipeline.Supervisor

	// Zap Logger
	Logger *zap.Logger
	// Server handles the admin and query HTTP surface.
	Server *http.Server
}

// User is one admin account entry.
type User struct {
	Username string `json:"username"`
	Hash     []byte `json:"hash"`
	Role     string `json:"role"`
}

// Start launches the supervisor and HTTP server, then blocks until the
// context is cancelled and everything shut down.
func (a *App) Start(ctx context.Context) {
	if err := a.Supervisor.Start(ctx); err != nil {
		a.Logger.Fatal("Unable to start supervisor", zap.Error(err))
	}

	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = a.Server.Shutdown(shutdownCtx)
	a.Supervisor.Stop()

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}
	if err := a.AssetsDB.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
