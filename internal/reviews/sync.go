package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tappo/tappo/internal/apperr"
	"github.com/tappo/tappo/internal/config"
	"github.com/tappo/tappo/internal/metrics"
	"github.com/tappo/tappo/internal/models"
	"github.com/tappo/tappo/internal/storage"
	"go.uber.org/zap"
)

// Sync outcomes as recorded in metrics.
const (
	resultOK         = "ok"
	resultError      = "error"
	resultSuperseded = "superseded"
	resultRejected   = "rejected"
)

// Result is what a successful sync wrote to the tag.
type Result struct {
	Title    *string  `json:"title"`
	Rating   *float64 `json:"rating"`
	Reviews  *int     `json:"reviews"`
	PhotoURL *string  `json:"photoUrl"`
}

// SyncService runs one-shot rating syncs for NFC tags.
//
// Each run stamps the tag with a fresh attempt token when it enters running;
// the terminal write only lands if the token is still current, so an older
// run finishing late cannot overwrite a newer one.
type SyncService struct {
	tags      storage.TagRepo
	snapshots storage.SnapshotRepo
	fetcher   Fetcher
	extractor *Extractor
	cfg       config.ReviewsConfig
	metrics   *metrics.Metrics
	logger    *zap.Logger

	now        func() time.Time
	newAttempt func() string
}

func NewSyncService(
	tags storage.TagRepo,
	snapshots storage.SnapshotRepo,
	fetcher Fetcher,
	cfg config.ReviewsConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *SyncService {
	return &SyncService{
		tags:       tags,
		snapshots:  snapshots,
		fetcher:    fetcher,
		extractor:  DefaultExtractor(),
		cfg:        cfg,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
		newAttempt: uuid.NewString,
	}
}

// Sync refreshes the place data of tagID on behalf of userID.
//
// Precondition failures (missing tag, foreign owner, empty review URL) are
// returned without touching the tag. Once the tag is marked running, fetch
// and extraction failures are recorded as status=error with the message and
// returned; previously synced place data is kept.
func (s *SyncService) Sync(ctx context.Context, tagID, userID string) (*Result, error) {
	start := s.now()

	tag, err := s.precheck(ctx, tagID, userID)
	if err != nil {
		s.metrics.RecordSync(resultRejected, s.now().Sub(start))
		return nil, err
	}
	reviewURL := strings.TrimSpace(tag.ReviewURL)

	attempt := s.newAttempt()
	if err := s.tags.MarkSyncRunning(ctx, tag.ID, attempt); err != nil {
		s.metrics.RecordSync(resultError, s.now().Sub(start))
		return nil, apperr.Store(fmt.Errorf("mark running: %w", err))
	}

	target := Normalize(reviewURL, s.cfg.ProviderHost)
	s.logger.Info("rating sync started",
		zap.String("tag_id", tag.ID),
		zap.String("url", target),
		zap.String("attempt", attempt),
	)

	// Terminal writes must land even if the caller has gone away.
	writeCtx := context.WithoutCancel(ctx)

	page, rating, err := s.fetchAndExtract(ctx, target)
	if err != nil {
		return nil, s.fail(writeCtx, tag.ID, attempt, err, start)
	}

	data := models.PlaceData{
		Title:        page.Title,
		Rating:       rating.Rating,
		ReviewsCount: rating.ReviewsCount,
		PhotoURL:     page.PhotoURL,
		Provider:     s.cfg.ProviderName,
		SyncedAt:     s.now().UTC(),
	}

	ok, err := s.tags.CompleteSync(writeCtx, tag.ID, attempt, data)
	if err != nil {
		storeErr := apperr.Store(fmt.Errorf("complete sync: %w", err))
		if ferr := s.fail(writeCtx, tag.ID, attempt, storeErr, start); errors.Is(ferr, apperr.ErrSyncSuperseded) {
			return nil, ferr
		}
		return nil, storeErr
	}
	if !ok {
		s.logger.Warn("sync result dropped, superseded by a newer attempt",
			zap.String("tag_id", tag.ID),
			zap.String("attempt", attempt),
		)
		s.metrics.RecordSync(resultSuperseded, s.now().Sub(start))
		return nil, apperr.ErrSyncSuperseded
	}

	if s.snapshots != nil {
		snap := &models.ReviewSnapshot{
			TagID:        tag.ID,
			Rating:       rating.Rating,
			ReviewsCount: rating.ReviewsCount,
		}
		if err := s.snapshots.Append(writeCtx, snap); err != nil {
			s.logger.Warn("failed to append review snapshot", zap.String("tag_id", tag.ID), zap.Error(err))
		}
	}

	s.metrics.RecordSync(resultOK, s.now().Sub(start))
	s.logger.Info("rating sync completed",
		zap.String("tag_id", tag.ID),
		zap.Any("rating", rating.Rating),
		zap.Any("reviews", rating.ReviewsCount),
	)

	return &Result{
		Title:    data.Title,
		Rating:   data.Rating,
		Reviews:  data.ReviewsCount,
		PhotoURL: data.PhotoURL,
	}, nil
}

func (s *SyncService) precheck(ctx context.Context, tagID, userID string) (*models.NfcTag, error) {
	if tagID == "" || userID == "" {
		return nil, apperr.Validation("tag_id and user_id are required")
	}

	tag, err := s.tags.GetByID(ctx, tagID)
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("get tag: %w", err))
	}
	if tag == nil {
		return nil, apperr.ErrTagNotFound
	}
	if tag.UserID != userID {
		return nil, apperr.ErrForbidden
	}
	if strings.TrimSpace(tag.ReviewURL) == "" {
		return nil, apperr.ErrEmptyReviewURL
	}
	return tag, nil
}

func (s *SyncService) fetchAndExtract(ctx context.Context, target string) (*Page, Rating, error) {
	if s.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.JobTimeout)
		defer cancel()
	}

	fetchStart := time.Now()
	html, err := s.fetcher.Fetch(ctx, target)
	s.metrics.RecordFetch(s.fetcher.Name(), err, time.Since(fetchStart))
	if err != nil {
		return nil, Rating{}, apperr.Fetch(err)
	}

	page, err := ParsePage(html)
	if err != nil {
		return nil, Rating{}, apperr.Fetch(err)
	}

	rating, strategy, err := s.extractor.Extract(page.HTML, page.StructuredBlocks)
	if err != nil {
		return nil, Rating{}, err
	}
	s.metrics.RecordExtraction(strategy)
	return page, rating, nil
}

// fail records cause on the tag and returns the error the caller should see.
func (s *SyncService) fail(ctx context.Context, tagID, attempt string, cause error, start time.Time) error {
	log := s.logger.With(zap.String("tag_id", tagID), zap.String("attempt", attempt))
	switch {
	case errors.Is(cause, apperr.ErrNoDataFound):
		log.Warn("rating extraction found nothing", zap.Error(cause))
	case apperr.KindOf(cause) == apperr.KindStore:
		log.Error("failed to write sync result", zap.Error(cause))
	default:
		log.Warn("review page fetch failed", zap.Error(cause))
	}

	ok, err := s.tags.FailSync(ctx, tagID, attempt, cause.Error())
	if err != nil {
		log.Error("failed to write sync error", zap.Error(err))
		s.metrics.RecordSync(resultError, s.now().Sub(start))
		return cause
	}
	if !ok {
		log.Warn("sync error dropped, superseded by a newer attempt")
		s.metrics.RecordSync(resultSuperseded, s.now().Sub(start))
		return apperr.ErrSyncSuperseded
	}

	s.metrics.RecordSync(resultError, s.now().Sub(start))
	return cause
}
