package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "recommender",
	Short: "MW music recommendation service.",
	Long: `Serves collaborative, content-based and popularity recommendations
over a music catalog. Runs the HTTP server unless a subcommand is given.`,
	SilenceUsage: true,
	RunE:         runServer,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
