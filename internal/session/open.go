package session

import (
	"context"
	"fmt"

	"github.com/yanmxa/finsight/internal/config"
)

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite", "":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "finsight.db"
		}
		return NewSQLiteStore(ctx, dsn)
	case "redis":
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
