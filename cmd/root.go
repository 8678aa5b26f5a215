package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"sensor-dashboard/internal/access"
	"sensor-dashboard/internal/config"
	"sensor-dashboard/internal/storage"

	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	logFormat string
	cfg       *config.Config
	provider  storage.Provider
)

var rootCmd = &cobra.Command{
	Use:   "sensor-dashboard",
	Short: "Environmental sensor dashboard",
	Long:  `Serve the sensor dashboard, ingest device readings and manage sensors and users.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Initialize configuration
		var err error
		cfg, err = config.LoadConfig(cfgFile)
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		config.Cfg = cfg

		// Flag wins over config; CLI commands default to text output.
		format := cfg.LogFormat
		if cmd.Flags().Changed("log-format") || cmd.Name() != "server" {
			format = logFormat
		}
		initLogger(cfg, format)

		// Initialize storage provider
		provider, err = storage.NewProvider(context.Background(), &cfg.Storage)
		if err != nil {
			slog.Error("Failed to initialize storage provider", "error", err)
			os.Exit(1)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		// Cleanup
		if provider != nil {
			provider.Close()
		}
	},
}

// loadPolicy returns the configured permission table, or the built-in one.
func loadPolicy(cfg *config.Config) (access.Policy, error) {
	if cfg.PolicyFile == "" {
		return access.DefaultPolicy(), nil
	}
	policy, err := access.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy %s: %w", cfg.PolicyFile, err)
	}
	slog.Info("Loaded permission policy", "file", cfg.PolicyFile)
	return policy, nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./instance/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format: text or json")
}
