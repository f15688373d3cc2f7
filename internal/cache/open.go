package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/retypeset/internal/common"
)

// OpenStore opens the store selected by cfg. Failures here abort the run:
// starting a batch against an unopenable cache would recompute everything
// while appearing healthy.
func OpenStore(ctx context.Context, cfg common.CacheConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return OpenSQLite(ctx, cfg.Path, logger)
	case "postgres":
		return OpenPostgres(ctx, PGConfig{
			DSN:             cfg.DSN,
			MaxConns:        cfg.MaxConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
			DialTimeout:     cfg.DialTimeout,
		}, logger)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown cache driver %q", common.ErrInvalidInput, cfg.Driver)
	}
}
