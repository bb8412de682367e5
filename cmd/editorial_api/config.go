package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/DjordjeVuckovic/editorial-hub/internal/analysis"
	"github.com/DjordjeVuckovic/editorial-hub/internal/blob"
	"github.com/DjordjeVuckovic/editorial-hub/internal/kv"
	"github.com/DjordjeVuckovic/editorial-hub/internal/notify"
	"github.com/DjordjeVuckovic/editorial-hub/internal/search"
	"github.com/DjordjeVuckovic/editorial-hub/internal/storage/factory"
	"github.com/DjordjeVuckovic/editorial-hub/pkg/config/env"
)

type AppConfig struct {
	ENV string
}

func NewAppConfig() *AppConfig {
	return &AppConfig{
		ENV: os.Getenv("ENV"),
	}
}

type EditorialConfig struct {
	LogLevel        slog.Level
	StorageConfig   factory.StorageConfig
	BlobConfig      blob.Config
	NotifyConfig    notify.Config
	SearchConfig    search.Config
	AnalysisEnabled bool
	AnalysisConfig  analysis.ToolConfig
	// FetchPrivateNetworks allows linked attachments on internal hosts.
	FetchPrivateNetworks bool
	// RedisConfig is nil when locks live in process memory.
	RedisConfig *kv.RedisConfig
}

func (as *AppConfig) Load() (*EditorialConfig, error) {
	err := env.LoadDotEnv(as.ENV, "cmd/editorial_api/.env")
	if err != nil {
		slog.Info("Failed to .env load environment variables, continuing with existing environment variables", "error", err)
	}

	cfg := &EditorialConfig{LogLevel: parseLevel(os.Getenv("LOG_LEVEL"))}

	storageCfg, err := factory.LoadEnv()
	if err != nil {
		slog.Error("Failed to load storage configuration from environment", "error", err)
		return nil, err
	}
	cfg.StorageConfig = *storageCfg

	if cfg.BlobConfig, err = blob.LoadEnv(); err != nil {
		return nil, err
	}
	if cfg.NotifyConfig, err = notify.LoadConfig(); err != nil {
		return nil, err
	}
	if cfg.SearchConfig, err = search.LoadConfig(); err != nil {
		return nil, err
	}

	cfg.AnalysisEnabled = env.Bool("ANALYSIS_ENABLED", true)
	cfg.FetchPrivateNetworks = env.Bool("FETCH_ALLOW_PRIVATE", false)
	if cfg.AnalysisEnabled {
		if cfg.AnalysisConfig, err = analysis.LoadToolConfig(); err != nil {
			return nil, err
		}
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		db, err := env.Int("REDIS_DB", 0)
		if err != nil {
			return nil, err
		}
		cfg.RedisConfig = &kv.RedisConfig{Addr: addr, Password: os.Getenv("REDIS_PASSWORD"), DB: db}
	}

	return cfg, nil
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
