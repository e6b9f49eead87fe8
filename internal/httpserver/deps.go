package httpserver

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tappo/tappo/internal/analytics"
	"github.com/tappo/tappo/internal/config"
	"github.com/tappo/tappo/internal/database"
	"github.com/tappo/tappo/internal/geo"
	"github.com/tappo/tappo/internal/metrics"
	"github.com/tappo/tappo/internal/reviews"
	"github.com/tappo/tappo/internal/storage"
	"github.com/tappo/tappo/internal/tracking"
	"go.uber.org/zap"
)

const (
	geoCacheSize = 10000
	geoCacheTTL  = time.Hour
)

// RatingSyncer runs one rating sync. *reviews.SyncService implements it.
type RatingSyncer interface {
	Sync(ctx context.Context, tagID, userID string) (*reviews.Result, error)
}

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	Pages     storage.PageRepo
	Tags      storage.TagRepo
	Events    storage.EventStore
	Snapshots storage.SnapshotRepo
	Geo       geo.Locator

	Tracking *tracking.TrackingService
	Reports  analytics.ReportSource
	Sync     RatingSyncer

	// Health reports per-store ping errors; nil means nothing to check.
	Health func(ctx context.Context) map[string]error
	Now    func() time.Time
}

// NewDependencies picks a backend for every repository from what conns has
// open, falling back to in-memory storage, and builds the services on top.
func NewDependencies(
	cfg *config.Config,
	conns *database.Connections,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) (*Dependencies, error) {
	if conns == nil {
		conns = &database.Connections{}
	}

	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Metrics:  m,
		Gatherer: gatherer,
		Health:   conns.Health,
		Now:      time.Now,
	}

	if conns.Postgres != nil {
		db := conns.Postgres.SQL()
		deps.Pages = storage.NewPostgresPageRepo(db)
		deps.Tags = storage.NewPostgresTagRepo(db)
		deps.Snapshots = storage.NewPostgresSnapshotRepo(db)
	} else {
		logger.Warn("no PostgreSQL connection, pages and tags are kept in memory")
		deps.Pages = storage.NewInMemoryPageRepo()
		deps.Tags = storage.NewInMemoryTagRepo()
		deps.Snapshots = storage.NewInMemorySnapshotRepo()
	}

	deps.Events = selectEventStore(cfg.Analytics.EventBackend, conns, logger)
	deps.Geo = newLocator(cfg.Geo, m, logger)

	deps.Tracking = tracking.NewTrackingService(deps.Pages, deps.Tags, deps.Events, deps.Geo, m, logger)

	agg := analytics.NewAggregator(deps.Tags, deps.Events, m, logger)
	if conns.Redis != nil {
		cache := storage.NewRedisReportCache(conns.Redis.Client)
		deps.Reports = analytics.NewCachedAggregator(agg, cache, cfg.Analytics.CacheTTL, logger)
	} else {
		deps.Reports = agg
	}

	fetcher, err := reviews.NewFetcher(cfg.Reviews, logger)
	if err != nil {
		return nil, err
	}
	deps.Sync = reviews.NewSyncService(deps.Tags, deps.Snapshots, fetcher, cfg.Reviews, m, logger)

	return deps, nil
}

func selectEventStore(backend string, conns *database.Connections, logger *zap.Logger) storage.EventStore {
	switch backend {
	case config.BackendClickHouse:
		if conns.ClickHouse != nil {
			return storage.NewClickHouseEventStore(conns.ClickHouse.Conn)
		}
		logger.Warn("ClickHouse event backend requested but not connected")
	case config.BackendMemory:
		return storage.NewInMemoryEventStore()
	}

	if conns.Postgres != nil {
		return storage.NewPostgresEventStore(conns.Postgres.SQL())
	}
	logger.Warn("event log kept in memory")
	return storage.NewInMemoryEventStore()
}

func newLocator(cfg config.GeoConfig, m *metrics.Metrics, logger *zap.Logger) geo.Locator {
	if !cfg.Enabled {
		return geo.NopLocator{}
	}
	mm, err := geo.NewMaxMindLocator(cfg.DatabasePath)
	if err != nil {
		logger.Warn("failed to open GeoIP database, geo enrichment disabled",
			zap.String("path", cfg.DatabasePath),
			zap.Error(err),
		)
		return geo.NopLocator{}
	}
	return geo.NewCachedLocator(mm, geoCacheSize, geoCacheTTL, m)
}
