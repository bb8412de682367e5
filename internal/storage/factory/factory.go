package factory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DjordjeVuckovic/editorial-hub/internal/storage"
	"github.com/DjordjeVuckovic/editorial-hub/internal/storage/in_mem"
	"github.com/DjordjeVuckovic/editorial-hub/internal/storage/pg"
)

// Result carries the store plus the postgres pool when one was opened, so the
// caller can register a health check against it.
type Result struct {
	Store storage.Store
	Pool  *pg.ConnectionPool
}

// NewStore opens the configured backend and applies the seed file, if any.
func NewStore(ctx context.Context, cfg *StorageConfig) (*Result, error) {
	var res Result
	switch cfg.Type {
	case storage.PG:
		if cfg.Pg == nil {
			return nil, fmt.Errorf("postgres storage requires a pool config")
		}
		pool, err := pg.NewConnectionPool(ctx, *cfg.Pg)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL connection pool: %w", err)
		}
		res.Pool = pool
		res.Store = pg.NewStore(pool)

	case storage.InMem:
		res.Store = in_mem.NewInMemStorer()

	default:
		return nil, fmt.Errorf(string(storage.ErrUnsupportedStorer), cfg.Type)
	}

	if cfg.SeedFile != "" {
		seed, err := LoadSeedFile(cfg.SeedFile)
		if err != nil {
			res.Store.Close()
			return nil, err
		}
		if err := seed.Apply(ctx, res.Store); err != nil {
			res.Store.Close()
			return nil, err
		}
		slog.Info("Applied seed", "file", cfg.SeedFile, "users", len(seed.Users), "categories", len(seed.Categories))
	}

	return &res, nil
}
