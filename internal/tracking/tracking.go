package tracking

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/tappo/tappo/internal/apperr"
	"github.com/tappo/tappo/internal/geo"
	"github.com/tappo/tappo/internal/metrics"
	"github.com/tappo/tappo/internal/models"
	"github.com/tappo/tappo/internal/storage"
	"go.uber.org/zap"
)

// TrackingService validates, enriches and persists interaction events and
// resolves tag redirects.
type TrackingService struct {
	resolver *Resolver
	pages    storage.PageRepo
	tags     storage.TagRepo
	events   storage.EventStore
	geo      geo.Locator
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewTrackingService creates a new tracking service. locator may be nil.
func NewTrackingService(
	pages storage.PageRepo,
	tags storage.TagRepo,
	events storage.EventStore,
	locator geo.Locator,
	m *metrics.Metrics,
	logger *zap.Logger,
) *TrackingService {
	if locator == nil {
		locator = geo.NopLocator{}
	}
	return &TrackingService{
		resolver: NewResolver(pages, tags),
		pages:    pages,
		tags:     tags,
		events:   events,
		geo:      locator,
		metrics:  m,
		logger:   logger,
	}
}

// Ingest resolves raw and appends it to the event log. Ingestion is
// append-only: the same payload sent twice is stored twice.
func (s *TrackingService) Ingest(ctx context.Context, raw RawEvent, clientIP string) (*models.InteractionEvent, error) {
	start := time.Now()

	ev, err := s.resolver.Resolve(ctx, raw)
	if err != nil {
		s.metrics.RecordEventRejected(apperr.CodeOf(err))
		s.logger.Debug("event rejected",
			zap.String("event_type", raw.EventType),
			zap.String("code", apperr.CodeOf(err)),
		)
		return nil, err
	}

	if clientIP != "" {
		country, err := s.geo.Country(clientIP)
		if err != nil {
			s.logger.Debug("geo lookup failed", zap.String("ip", clientIP), zap.Error(err))
		}
		ev.Country = country
	}

	if err := s.events.Insert(ctx, ev); err != nil {
		s.metrics.RecordEventRejected("store_error")
		s.logger.Error("failed to store event",
			zap.String("event_id", ev.ID),
			zap.String("user_id", ev.UserID),
			zap.Error(err),
		)
		return nil, apperr.Store(err)
	}

	s.metrics.RecordEventIngested(string(ev.EventType), time.Since(start))
	s.logger.Debug("event ingested",
		zap.String("event_id", ev.ID),
		zap.String("event_type", string(ev.EventType)),
		zap.String("user_id", ev.UserID),
		zap.String("tag_id", ev.NfcTagID),
		zap.String("page_id", ev.PageID),
	)

	return ev, nil
}

// RedirectTarget returns the public page path a tag code redirects to:
// /p/<slug>?nfc=<code>. Unknown codes, unbound tags and missing pages are not
// found.
func (s *TrackingService) RedirectTarget(ctx context.Context, code string) (string, error) {
	tag, err := s.tags.GetByCode(ctx, code)
	if err != nil {
		return "", apperr.Store(err)
	}
	if tag == nil {
		return "", apperr.ErrTagNotFound
	}
	if tag.PageID == "" {
		return "", apperr.ErrPageNotFound
	}

	page, err := s.pages.GetByID(ctx, tag.PageID)
	if err != nil {
		return "", apperr.Store(err)
	}
	if page == nil {
		return "", apperr.ErrPageNotFound
	}

	q := url.Values{}
	q.Set("nfc", tag.Code)
	return fmt.Sprintf("/p/%s?%s", url.PathEscape(page.Slug), q.Encode()), nil
}
