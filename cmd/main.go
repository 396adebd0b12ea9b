package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pelusa-v/pelusa-live/internal/config"
	"github.com/pelusa-v/pelusa-live/internal/logger"
)

const shutdownTimeout = 10 * time.Second

var version = "dev"

var rootCmd = &cobra.Command{
	Use:          "pelusa-live",
	Short:        "Realtime client for the Pelusa marketplace",
	Long:         `pelusa-live keeps a realtime connection open, reports presence and surfaces notifications.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().String("log-level", "", "override the configured log level")

	rootCmd.AddCommand(runCmd, devServerCmd, heartbeatCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration named by the persistent flags and builds the
// process logger from it.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if len(cfg.Log.Outputs) == 0 {
		// stdout belongs to the interactive session
		cfg.Log.Outputs = []string{"stderr"}
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
