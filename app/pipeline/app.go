package pipeline

import (
	"context"

	"github.com/assetlab-io/assetx/app/pipeline/types"
	"github.com/assetlab-io/assetx/pkg/db/assets"
	"github.com/assetlab-io/assetx/pkg/denylist"
	"github.com/assetlab-io/assetx/pkg/logging"
	pipe "github.com/assetlab-io/assetx/pkg/pipeline"
	"github.com/assetlab-io/assetx/pkg/redis"
	"github.com/assetlab-io/assetx/pkg/sources"
	"github.com/assetlab-io/assetx/pkg/utils"
	"go.uber.org/zap"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	assetsDb, err := assets.New(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize assets database", zap.Error(err))
	}

	// Initialize Redis client for denylist caching and real-time events (optional)
	var redisClient *redis.Client
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - events and shared caching will be disabled",
				zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("Redis client initialized for events and denylist caching")
		}
	} else {
		logger.Info("Redis disabled - events and shared caching will not be available")
	}

	registry := sources.NewRegistry(logger)

	var cache denylist.Cache
	var events pipe.EventPublisher
	if redisClient != nil {
		cache = redisClient
		events = redisClient
	}
	denylists := denylist.NewLoader(logger, cache)

	fetcher := pipe.NewFetcher(logger, registry)
	pipeline := pipe.New(logger, assetsDb, assetsDb, fetcher, denylists, events, registry)

	app := &types.App{
		AssetsDB:    assetsDb,
		RedisClient: redisClient,
		Sources:     registry,
		Denylists:   denylists,
		Pipeline:    pipeline,
		Supervisor:  pipe.NewSupervisor(logger, pipeline),
		Logger:      logger,
	}

	return app
}
