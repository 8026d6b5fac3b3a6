// Package cmd is the barge command tree. The CLI is a thin presentation
// layer over the engine: it queues work, observes the progress board and
// event stream, and never mutates either.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:     "barge",
	Short:   "A background transfer and pipeline engine",
	Long: `Barge queues long-running downloads and download-then-transform pipelines,
persists their state across restarts, and reports throttled progress.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to the config file (default ~/.barge/config.toml)")

	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(configCmd)
}
