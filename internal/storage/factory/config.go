package factory

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/DjordjeVuckovic/editorial-hub/internal/storage"
	"github.com/DjordjeVuckovic/editorial-hub/internal/storage/pg"
	"github.com/DjordjeVuckovic/editorial-hub/pkg/config/env"
)

type StorageConfig struct {
	storage.Type
	Pg *pg.PoolConfig
	// SeedFile is an optional YAML file with users and categories.
	SeedFile string
}

func LoadEnv() (*StorageConfig, error) {
	storageType := (storage.Type)(os.Getenv("STORAGE_TYPE"))
	if storageType == "" {
		slog.Warn("STORAGE_TYPE is not set, using in-memory storage")
		storageType = storage.InMem
	}
	if storageType != storage.PG && storageType != storage.InMem {
		slog.Error("Invalid STORAGE_TYPE environment variable value", "value", storageType)
		return nil, fmt.Errorf(
			"invalid STORAGE_TYPE environment variable value: %s, expected one of %v",
			storageType,
			[]storage.Type{storage.PG, storage.InMem})
	}

	var pgCfg *pg.PoolConfig
	if storageType == storage.PG {
		pgCfg = &pg.PoolConfig{
			ConnStr: os.Getenv("PG_CONNECTION_STRING"),
		}
		if pgCfg.ConnStr == "" {
			slog.Error("PostgreSQL connection string is not set")
			return nil, fmt.Errorf("PostgreSQL connection string is not set")
		}
		n, err := env.Int("PG_MAX_CONNS", 0)
		if err != nil {
			return nil, err
		}
		pgCfg.MaxConns = int32(n)
	}

	return &StorageConfig{
		Type:     storageType,
		Pg:       pgCfg,
		SeedFile: os.Getenv("SEED_FILE"),
	}, nil
}
