package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"prompthunter/pkg/auth"
	"prompthunter/pkg/config"
	"prompthunter/pkg/feed"
	"prompthunter/pkg/logger"
	"prompthunter/pkg/store"
)

// app bundles what every data command needs
type app struct {
	cfg   *config.Config
	log   logger.Logger
	store *store.Store
}

// globalFlags collects the persistent flags that were set explicitly
func globalFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if cmd.Flags().Changed("db") {
		flags["db"] = dbPath
	}
	if cmd.Flags().Changed("log-level") {
		flags["log-level"] = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		flags["log-format"] = logFormat
	}
	return flags
}

// loadConfig loads configuration and fills missing secrets from the secret store
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if noColor {
		cfg.Logging.NoColor = true
	}

	if cfg.Twitter.BearerToken != "" && cfg.Classifier.APIKey != "" {
		return cfg, nil
	}

	secrets, err := auth.NewManager("")
	if err != nil {
		return cfg, nil
	}
	if cfg.Twitter.BearerToken == "" {
		cfg.Twitter.BearerToken = secrets.Value(auth.SecretTwitterBearer)
	}
	if cfg.Classifier.APIKey == "" {
		name := auth.SecretAnthropicKey
		if cfg.Classifier.Provider == "http" {
			name = auth.SecretClassifierToken
		}
		cfg.Classifier.APIKey = secrets.Value(name)
	}
	return cfg, nil
}

// openApp loads config, initializes logging and opens the database
func openApp(cmd *cobra.Command, extra map[string]interface{}) (*app, error) {
	flags := globalFlags(cmd)
	for k, v := range extra {
		flags[k] = v
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	path, err := cfg.DatabaseFile()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	log.DebugWithFields("database opened", map[string]interface{}{"path": path})

	return &app{cfg: cfg, log: log, store: st}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close database")
	}
}

// sink writes events to the database feed and mirrors them into the log
func (a *app) sink() feed.Sink {
	return feed.Multi{
		feed.NewStoreSink(a.store, a.cfg.Storage.FeedLimit, a.log),
		feed.NewLoggerSink(a.log),
	}
}
