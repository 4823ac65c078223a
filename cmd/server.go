package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/patrickhamzaokello/ColabFavourites/config"
	"github.com/patrickhamzaokello/ColabFavourites/logger"
	"github.com/patrickhamzaokello/ColabFavourites/server"
	"github.com/patrickhamzaokello/ColabFavourites/storage"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the recommendation HTTP server",
	Long: `Builds the first snapshot in the background, keeps it fresh on a timer
(and on dataset file changes) and serves the HTTP API.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	initLogging(cfg)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, closeSource, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	rc, closeCache, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	engine, err := newEngine(cfg, src, rc)
	if err != nil {
		return err
	}
	defer engine.Stop()

	if cfg.MinioEndpoint != "" {
		exporter, err := storage.NewSnapshotExporter(ctx, cfg)
		if err != nil {
			logger.Warn("Snapshot export disabled", logger.ErrorField(err))
		} else {
			engine.OnPublish(exportOnPublish(exporter))
		}
	}

	if cfg.DatasetPath != "" {
		if err := engine.WatchDataset(cfg.DatasetPath, datasetQuietPeriod); err != nil {
			logger.Warn("Dataset watch disabled", logger.ErrorField(err))
		}
	}

	engine.Start()
	return server.Run(ctx, cfg.Addr(), server.NewRouter(engine, cfg.QueryTimeout))
}
