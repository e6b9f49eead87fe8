package database

import (
	"context"
	"errors"

	"github.com/tappo/tappo/internal/config"
	"go.uber.org/zap"
)

// Connections groups the backing stores opened at startup. Any field may be
// nil when the store is disabled or unreachable.
type Connections struct {
	Postgres   *PostgresDB
	Redis      *RedisDB
	ClickHouse *ClickHouseDB
}

// Open connects to every enabled store. A store that fails to connect is
// logged and left nil so the caller can fall back to in-memory storage.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) *Connections {
	conns := &Connections{}

	if cfg.Database.Enabled {
		pg, err := NewPostgresDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Warn("PostgreSQL unavailable, using in-memory storage", zap.Error(err))
		} else {
			conns.Postgres = pg
			if cfg.Database.AutoMigrate {
				if err := pg.Migrate(ctx); err != nil {
					logger.Error("failed to migrate PostgreSQL", zap.Error(err))
				}
			}
		}
	}

	if cfg.Redis.Enabled {
		rdb, err := NewRedisDB(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis unavailable, report cache disabled", zap.Error(err))
		} else {
			conns.Redis = rdb
		}
	}

	if cfg.Analytics.EventBackend == config.BackendClickHouse {
		ch, err := NewClickHouseDB(ctx, cfg.ClickHouse, logger)
		if err != nil {
			logger.Warn("ClickHouse unavailable, falling back", zap.Error(err))
		} else {
			conns.ClickHouse = ch
			if err := ch.Migrate(ctx); err != nil {
				logger.Error("failed to migrate ClickHouse", zap.Error(err))
			}
		}
	}

	return conns
}

// Health pings every open store.
func (c *Connections) Health(ctx context.Context) map[string]error {
	out := map[string]error{}
	if c.Postgres != nil {
		out["postgres"] = c.Postgres.Health(ctx)
	}
	if c.Redis != nil {
		out["redis"] = c.Redis.Health(ctx)
	}
	if c.ClickHouse != nil {
		out["clickhouse"] = c.ClickHouse.Health(ctx)
	}
	return out
}

// Close closes every open store.
func (c *Connections) Close() error {
	var errs []error
	if c.ClickHouse != nil {
		errs = append(errs, c.ClickHouse.Close())
	}
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.Postgres != nil {
		c.Postgres.Close()
	}
	return errors.Join(errs...)
}
