package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickhamzaokello/ColabFavourites/cache"
	"github.com/patrickhamzaokello/ColabFavourites/config"
	"github.com/patrickhamzaokello/ColabFavourites/core/recommend"
	"github.com/patrickhamzaokello/ColabFavourites/db"
	"github.com/patrickhamzaokello/ColabFavourites/logger"
	"github.com/patrickhamzaokello/ColabFavourites/repository"
	"github.com/patrickhamzaokello/ColabFavourites/storage"
)

const (
	redisKeyPrefix      = "recommender:"
	memorySweepInterval = time.Minute
	datasetQuietPeriod  = 2 * time.Second
	exportTopN          = 20
	exportTimeout       = 30 * time.Second
)

func initLogging(cfg *config.Config) {
	logger.InitLogger(logger.Config{
		Level:      logger.ParseLevel(cfg.LogLevel),
		OutputPath: cfg.LogFile,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})
}

// openSource picks the storage collaborator: the dataset file when
// DATASET_PATH is set, MySQL otherwise.
func openSource(cfg *config.Config) (recommend.Source, func(), error) {
	if cfg.DatasetPath != "" {
		logger.Info("Using dataset file as storage", logger.String("path", cfg.DatasetPath))
		return repository.NewDatasetRepository(cfg.DatasetPath), func() {}, nil
	}
	if err := db.ConnectGormDB(cfg); err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := db.CloseGormDB(); err != nil {
			logger.Warn("Failed to close database", logger.ErrorField(err))
		}
	}
	return repository.NewGormSongRepository(db.GormDB), closeFn, nil
}

// openCache returns a nil cache when caching is disabled.
func openCache(cfg *config.Config) (recommend.ResultCache, func(), error) {
	if !cfg.EnableCaching {
		logger.Info("Result caching disabled")
		return nil, func() {}, nil
	}
	switch cfg.CacheBackend {
	case "memory", "":
		store := cache.NewMemoryStore(memorySweepInterval)
		return store, func() { _ = store.Close() }, nil
	case "redis":
		if err := db.ConnectRedis(cfg); err != nil {
			return nil, nil, err
		}
		store := cache.NewRedisStore(db.RedisClient, redisKeyPrefix)
		closeFn := func() {
			if err := db.CloseRedis(); err != nil {
				logger.Warn("Failed to close Redis", logger.ErrorField(err))
			}
		}
		logger.Info("Using Redis result cache", logger.String("prefix", redisKeyPrefix))
		return store, closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown CACHE_BACKEND %q", cfg.CacheBackend)
	}
}

func newEngine(cfg *config.Config, src recommend.Source, rc recommend.ResultCache) (*recommend.Engine, error) {
	opts, err := cfg.Engine()
	if err != nil {
		return nil, fmt.Errorf("invalid engine configuration: %w", err)
	}
	return recommend.NewEngine(src, opts, rc)
}

// exportOnPublish uploads a summary of every published generation. Uploads
// run off the rebuild goroutine so a slow bucket never delays a publish.
func exportOnPublish(exporter *storage.SnapshotExporter) recommend.PublishHook {
	return func(snap *recommend.Snapshot) {
		summary := snap.Summary(exportTopN)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
			defer cancel()
			if _, err := exporter.Export(ctx, summary); err != nil {
				logger.Warn("Snapshot export failed",
					logger.Uint64("generation", snap.Generation),
					logger.ErrorField(err))
			}
		}()
	}
}
