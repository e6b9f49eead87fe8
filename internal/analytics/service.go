package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/tappo/tappo/internal/apperr"
	"github.com/tappo/tappo/internal/metrics"
	"github.com/tappo/tappo/internal/models"
	"github.com/tappo/tappo/internal/storage"
	"go.uber.org/zap"
)

// AllTags disables the tag filter.
const AllTags = "all"

// Query selects one dashboard report.
type Query struct {
	UserID string
	From   time.Time
	To     time.Time
	// TagID narrows the report to one tag; "" or AllTags means every tag.
	TagID string
}

func (q Query) tagFilter() string {
	if q.TagID == AllTags {
		return ""
	}
	return q.TagID
}

// ReportSource produces reports. Aggregator and CachedAggregator implement it.
type ReportSource interface {
	Aggregate(ctx context.Context, q Query) (*models.Report, error)
}

// Aggregator reads tags and events and computes reports. It performs no
// writes and no date-preset logic.
type Aggregator struct {
	tags    storage.TagRepo
	events  storage.EventStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewAggregator(tags storage.TagRepo, events storage.EventStore, m *metrics.Metrics, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		tags:    tags,
		events:  events,
		metrics: m,
		logger:  logger,
	}
}

// Aggregate computes the report for q. Only the data fetch can fail; an empty
// event set yields all-zero metrics.
func (a *Aggregator) Aggregate(ctx context.Context, q Query) (*models.Report, error) {
	start := time.Now()
	report, n, err := a.aggregate(ctx, q)
	if err != nil {
		return nil, err
	}
	a.metrics.RecordReport("bypass", n, time.Since(start))
	return report, nil
}

func (a *Aggregator) aggregate(ctx context.Context, q Query) (*models.Report, int, error) {
	if q.UserID == "" {
		return nil, 0, apperr.Validation("user_id is required")
	}
	if q.From.After(q.To) {
		return nil, 0, apperr.Validation("from must not be after to")
	}

	owned, err := a.tags.ListByUser(ctx, q.UserID)
	if err != nil {
		return nil, 0, apperr.Store(fmt.Errorf("list tags: %w", err))
	}

	filter := q.tagFilter()
	inScope := owned
	if filter != "" {
		inScope = make([]*models.NfcTag, 0, 1)
		for _, t := range owned {
			if t.ID == filter {
				inScope = append(inScope, t)
			}
		}
	}

	events, err := a.events.List(ctx, storage.EventFilter{
		UserID: q.UserID,
		Types:  models.AnalyticsEventTypes,
		From:   q.From,
		To:     q.To,
		TagID:  filter,
	})
	if err != nil {
		return nil, 0, apperr.Store(fmt.Errorf("list events: %w", err))
	}

	report := Compute(inScope, events)
	report.From = q.From
	report.To = q.To

	a.logger.Debug("report computed",
		zap.String("user_id", q.UserID),
		zap.String("tag_id", filter),
		zap.Int("events", len(events)),
		zap.Int("tags", len(inScope)),
	)

	return &report, len(events), nil
}

// CachedAggregator serves reports from a ReportCache for a short TTL. Cache
// failures are logged and bypassed.
type CachedAggregator struct {
	inner  *Aggregator
	cache  storage.ReportCache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedAggregator(inner *Aggregator, cache storage.ReportCache, ttl time.Duration, logger *zap.Logger) *CachedAggregator {
	return &CachedAggregator{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// CacheKey identifies a report by user, tag filter and window.
func CacheKey(q Query) string {
	return fmt.Sprintf("%s|%s|%d|%d", q.UserID, q.tagFilter(), q.From.UnixNano(), q.To.UnixNano())
}

func (c *CachedAggregator) Aggregate(ctx context.Context, q Query) (*models.Report, error) {
	key := CacheKey(q)

	cached, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
	}
	if ok {
		c.inner.metrics.RecordReport("hit", 0, 0)
		return cached, nil
	}

	start := time.Now()
	report, n, err := c.inner.aggregate(ctx, q)
	if err != nil {
		return nil, err
	}
	c.inner.metrics.RecordReport("miss", n, time.Since(start))

	if err := c.cache.Set(ctx, key, report, c.ttl); err != nil {
		c.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
	return report, nil
}
