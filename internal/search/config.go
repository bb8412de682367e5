package search

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/DjordjeVuckovic/editorial-hub/pkg/utils"
)

type Config struct {
	Enabled   bool
	Addresses []string
	IndexName string
	Username  string
	Password  string
}

const defaultIndexName = "published_articles"

// LoadConfig reads ES_* variables. Indexing stays off unless ES_ENABLED is true.
func LoadConfig() (Config, error) {
	cfg := Config{
		Enabled:   strings.EqualFold(os.Getenv("ES_ENABLED"), "true"),
		IndexName: os.Getenv("ES_INDEX_NAME"),
		Username:  os.Getenv("ES_USERNAME"),
		Password:  os.Getenv("ES_PASSWORD"),
	}
	if !cfg.Enabled {
		return cfg, nil
	}

	cfg.Addresses = utils.SplitTrim(os.Getenv("ES_ADDRESSES"), ",")
	if len(cfg.Addresses) == 0 {
		slog.Error("Elasticsearch configuration is incomplete", "addresses", cfg.Addresses)
		return Config{}, fmt.Errorf("elasticsearch configuration is incomplete: ES_ADDRESSES is missing")
	}
	if cfg.IndexName == "" {
		cfg.IndexName = defaultIndexName
	}
	return cfg, nil
}
