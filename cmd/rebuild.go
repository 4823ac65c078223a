package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/patrickhamzaokello/ColabFavourites/config"
	"github.com/patrickhamzaokello/ColabFavourites/logger"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Build one snapshot from storage and print its statistics",
	Long:  `Pulls the catalog and play counts once, builds every index and prints the resulting statistics as JSON. Useful to validate a database or dataset file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		initLogging(cfg)
		defer logger.Sync()

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

		res, err := engine.Rebuild(context.Background())
		if err != nil {
			return fmt.Errorf("rebuild failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Built generation %d in %s (run %s)\n", res.Generation, res.Duration, res.RunID)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(engine.Stats())
	},
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}
