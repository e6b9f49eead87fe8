package storage

import (
	"context"
	"time"

	"github.com/tappo/tappo/internal/models"
)

// Lookups return (nil, nil) when the row does not exist.

// =============================================
// PAGE REPOSITORY
// =============================================

// PageRepo is read-only from the core's point of view.
type PageRepo interface {
	GetByID(ctx context.Context, id string) (*models.Page, error)
	GetBySlug(ctx context.Context, slug string) (*models.Page, error)
}

// =============================================
// TAG REPOSITORY
// =============================================

// TagRepo reads tags and owns the sync status transitions.
//
// MarkSyncRunning stamps attempt as the tag's current sync attempt.
// CompleteSync and FailSync only apply while attempt is still current and
// report false when a newer trigger has superseded it.
type TagRepo interface {
	GetByID(ctx context.Context, id string) (*models.NfcTag, error)
	GetByCode(ctx context.Context, code string) (*models.NfcTag, error)
	// ListByUser returns the user's tags newest first.
	ListByUser(ctx context.Context, userID string) ([]*models.NfcTag, error)

	MarkSyncRunning(ctx context.Context, id, attempt string) error
	CompleteSync(ctx context.Context, id, attempt string, data models.PlaceData) (bool, error)
	FailSync(ctx context.Context, id, attempt, message string) (bool, error)
}

// =============================================
// EVENT STORE
// =============================================

// EventFilter selects events for the aggregation read path. From and To are
// inclusive. Empty Types or TagID disable that filter.
type EventFilter struct {
	UserID string
	Types  []models.EventType
	From   time.Time
	To     time.Time
	TagID  string
}

// EventStore is an append-only log of interaction events.
type EventStore interface {
	// Insert appends ev. The store assigns CreatedAt.
	Insert(ctx context.Context, ev *models.InteractionEvent) error
	// List returns matching events oldest first.
	List(ctx context.Context, f EventFilter) ([]*models.InteractionEvent, error)
}

// =============================================
// SNAPSHOT REPOSITORY
// =============================================

// SnapshotRepo keeps the rating history written by successful syncs.
type SnapshotRepo interface {
	Append(ctx context.Context, s *models.ReviewSnapshot) error
	// ListByTag returns up to limit snapshots newest first.
	ListByTag(ctx context.Context, tagID string, limit int) ([]*models.ReviewSnapshot, error)
}

// =============================================
// REPORT CACHE
// =============================================

// ReportCache memoizes dashboard reports for a short TTL.
type ReportCache interface {
	Get(ctx context.Context, key string) (*models.Report, bool, error)
	Set(ctx context.Context, key string, r *models.Report, ttl time.Duration) error
}
