package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ayusman/smilecast/internal/config"
	"github.com/ayusman/smilecast/internal/logger"
)

var (
	configPath string
	noStore    bool
)

var rootCmd = &cobra.Command{
	Use:   "smilecast",
	Short: "Webcam smile notifier",
	Long: `Smilecast watches a webcam for smiles. Each debounced smile is captured,
pushed to a websocket endpoint and uploaded to a Google Drive folder in
batches.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "smilecast.yaml", "YAML config file (optional)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-dir", "", "directory for smilecast.log")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (default ~/.smilecast/smilecast.db)")
	rootCmd.PersistentFlags().BoolVar(&noStore, "no-store", false, "do not record events or the upload ledger")
	rootCmd.PersistentFlags().String("output", "", "directory for captured images")
	rootCmd.PersistentFlags().String("folder", "", "Google Drive folder ID")
	rootCmd.PersistentFlags().String("credentials", "", "service account credentials file")
	rootCmd.PersistentFlags().Int("batch-size", 0, "captures per upload batch")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig builds the effective configuration: defaults, YAML file,
// environment, then flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if changed(cmd, "log-level") {
		cfg.Log.Level = mustGetString(cmd, "log-level")
	}
	if changed(cmd, "log-dir") {
		cfg.Log.Dir = mustGetString(cmd, "log-dir")
	}
	if changed(cmd, "db") {
		cfg.Store.Path = mustGetString(cmd, "db")
	}
	if changed(cmd, "output") {
		cfg.Output.Dir = mustGetString(cmd, "output")
	}
	if changed(cmd, "folder") {
		cfg.Upload.FolderID = mustGetString(cmd, "folder")
	}
	if changed(cmd, "credentials") {
		cfg.Upload.CredentialsPath = mustGetString(cmd, "credentials")
	}
	if changed(cmd, "batch-size") {
		cfg.Upload.BatchSize = mustGetInt(cmd, "batch-size")
	}

	switch {
	case noStore:
		cfg.Store.Path = ""
	case cfg.Store.Path == "":
		cfg.Store.Path = filepath.Join(dataDir(), "smilecast.db")
	}

	return cfg, nil
}

// setup loads the configuration and builds the logger.
func setup(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log, nil
}
