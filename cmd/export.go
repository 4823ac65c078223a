package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/patrickhamzaokello/ColabFavourites/config"
	"github.com/patrickhamzaokello/ColabFavourites/logger"
	"github.com/patrickhamzaokello/ColabFavourites/storage"
)

var exportList bool

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Build a snapshot and upload its summary to MinIO",
	Long:  `Builds one snapshot and stores its statistics and top songs under snapshots/ in the configured bucket. With --list, prints the summaries already stored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		initLogging(cfg)
		defer logger.Sync()

		ctx := context.Background()
		exporter, err := storage.NewSnapshotExporter(ctx, cfg)
		if err != nil {
			return err
		}

		if exportList {
			infos, err := exporter.List(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Bucket %s: %d snapshot summaries\n", cfg.MinioBucket, len(infos))
			for _, info := range infos {
				fmt.Printf("  %s  %8d bytes  %s\n", info.Key, info.Size, info.LastModified.Format("2006-01-02 15:04:05"))
			}
			return nil
		}

		src, closeSource, err := openSource(cfg)
		if err != nil {
			return err
		}
		defer closeSource()

		engine, err := newEngine(cfg, src, nil)
		if err != nil {
			return err
		}
		defer engine.Stop()

		if _, err := engine.Rebuild(ctx); err != nil {
			return fmt.Errorf("rebuild failed: %w", err)
		}
		key, err := exporter.Export(ctx, engine.Snapshot().Summary(exportTopN))
		if err != nil {
			return err
		}
		fmt.Printf("Exported %s to bucket %s\n", key, cfg.MinioBucket)
		return nil
	},
}

func init() {
	exportCmd.Flags().BoolVarP(&exportList, "list", "l", false, "list stored summaries instead of exporting")
	rootCmd.AddCommand(exportCmd)
}
