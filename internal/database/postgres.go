package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/tappo/tappo/internal/config"
	"go.uber.org/zap"
)

const applicationName = "tappo"

//go:embed schema.sql
var schemaSQL string

// PostgresDB owns the pgx pool behind pages, tags, snapshots and (by
// default) the event log. Repositories use the database/sql view from SQL.
type PostgresDB struct {
	Pool   *pgxpool.Pool
	db     *sql.DB
	logger *zap.Logger
}

// PoolStats is a point-in-time view of the pool for the db_connections gauge.
type PoolStats struct {
	Idle  int
	InUse int
	Total int
}

func poolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = int32(cfg.MaxConns)
	}
	pc.MinConns = int32(min(cfg.MinConns, int(pc.MaxConns)))
	pc.MaxConnLifetime = time.Hour
	pc.MaxConnIdleTime = 15 * time.Minute
	pc.HealthCheckPeriod = time.Minute
	pc.ConnConfig.RuntimeParams["application_name"] = applicationName
	return pc, nil
}

// NewPostgresDB opens the pool and pings it once.
func NewPostgresDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*PostgresDB, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database %s@%s:%d: %w", cfg.DBName, cfg.Host, cfg.Port, err)
	}

	logger.Info("connected to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.DBName),
		zap.Int32("max_conns", pc.MaxConns),
	)

	return &PostgresDB{
		Pool:   pool,
		db:     stdlib.OpenDBFromPool(pool),
		logger: logger,
	}, nil
}

func (db *PostgresDB) SQL() *sql.DB {
	return db.db
}

// Migrate applies the embedded schema.
func (db *PostgresDB) Migrate(ctx context.Context) error {
	if err := Migrate(ctx, db.db); err != nil {
		return err
	}
	db.logger.Info("PostgreSQL schema applied")
	return nil
}

// Migrate applies the embedded schema to any database/sql handle. Every
// statement in it is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (db *PostgresDB) Close() {
	if db.db != nil {
		_ = db.db.Close()
	}
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info("PostgreSQL pool closed")
	}
}

func (db *PostgresDB) Health(ctx context.Context) error {
	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

func (db *PostgresDB) Stats() PoolStats {
	st := db.Pool.Stat()
	return PoolStats{
		Idle:  int(st.IdleConns()),
		InUse: int(st.AcquiredConns()),
		Total: int(st.TotalConns()),
	}
}
