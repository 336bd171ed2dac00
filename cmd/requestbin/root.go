package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"requestbin/internal/config"
	"requestbin/internal/logging"
	"requestbin/internal/storage"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "requestbin",
	Short: "Collect and inspect HTTP requests",
	Long: `requestbin gives you a URL that records every HTTP request sent to it.

Create a bin, point a webhook or client at it, then inspect what arrived.

Examples:
  requestbin serve
  requestbin create --private --name hooks
  requestbin inspect hooks -v
  requestbin curl hooks a1b2c3`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
	})
	return cfg, logger, nil
}

var errEphemeralStore = errors.New("memory storage does not outlive the server; set STORAGE_BACKEND to bolt or sqlite")

// openPersistent opens the configured store for offline commands.
func openPersistent(cfg *config.Config) (storage.Storage, error) {
	if cfg.Storage.Backend == storage.BackendMemory {
		return nil, errEphemeralStore
	}
	s, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path, cfg.StorageOptions())
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}
	return s, nil
}
