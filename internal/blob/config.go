package blob

import (
	"fmt"
	"log/slog"
	"os"
)

type Config struct {
	Root    string
	Secret  string
	BaseURL string
}

func LoadEnv() (Config, error) {
	cfg := Config{
		Root:    os.Getenv("BLOB_ROOT"),
		Secret:  os.Getenv("BLOB_SIGNING_SECRET"),
		BaseURL: os.Getenv("BLOB_BASE_URL"),
	}
	if cfg.Root == "" {
		cfg.Root = "./data/blobs"
		slog.Info("BLOB_ROOT is not set, using default", "root", cfg.Root)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080/blobs"
	}
	if cfg.Secret == "" {
		slog.Error("BLOB_SIGNING_SECRET environment variable is not set")
		return Config{}, fmt.Errorf("BLOB_SIGNING_SECRET environment variable is not set")
	}
	return cfg, nil
}
