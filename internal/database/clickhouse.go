package database

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/tappo/tappo/internal/config"
	"go.uber.org/zap"
)

const clickHouseSchema = `
CREATE TABLE IF NOT EXISTS interaction_events (
    id          String,
    user_id     String,
    event_type  LowCardinality(String),
    session_id  String,
    nfc_tag_id  String,
    page_id     String,
    block_id    String,
    block_text  String,
    block_url   String,
    block_type  LowCardinality(String),
    country     LowCardinality(String),
    created_at  DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (user_id, created_at)`

// ClickHouseDB wraps a native ClickHouse connection used as the event log.
type ClickHouseDB struct {
	Conn   driver.Conn
	logger *zap.Logger
}

// NewClickHouseDB opens and pings a ClickHouse connection.
func NewClickHouseDB(ctx context.Context, cfg config.ClickHouseConfig, logger *zap.Logger) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger.Info("connected to ClickHouse",
		zap.String("addr", cfg.Addr),
		zap.String("database", cfg.Database),
	)

	return &ClickHouseDB{Conn: conn, logger: logger}, nil
}

// Migrate creates the event table if it does not exist.
func (c *ClickHouseDB) Migrate(ctx context.Context) error {
	if err := c.Conn.Exec(ctx, clickHouseSchema); err != nil {
		return fmt.Errorf("failed to create ClickHouse schema: %w", err)
	}
	return nil
}

// Close closes the connection.
func (c *ClickHouseDB) Close() error {
	if c.Conn != nil {
		c.logger.Info("ClickHouse connection closed")
		return c.Conn.Close()
	}
	return nil
}

// Health checks if ClickHouse is reachable.
func (c *ClickHouseDB) Health(ctx context.Context) error {
	return c.Conn.Ping(ctx)
}
