package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tappo/tappo/internal/models"
)

// The PostgreSQL repositories run on database/sql (backed by the pgx pool
// through pgx/v5/stdlib) so they can be exercised with sqlmock.

// =============================================
// PAGES
// =============================================

// PostgresPageRepo implements PageRepo using PostgreSQL.
type PostgresPageRepo struct {
	db *sql.DB
}

func NewPostgresPageRepo(db *sql.DB) *PostgresPageRepo {
	return &PostgresPageRepo{db: db}
}

const pageColumns = `id, user_id, slug, title, created_at`

func (r *PostgresPageRepo) GetByID(ctx context.Context, id string) (*models.Page, error) {
	return r.getOne(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = $1`, id)
}

func (r *PostgresPageRepo) GetBySlug(ctx context.Context, slug string) (*models.Page, error) {
	return r.getOne(ctx, `SELECT `+pageColumns+` FROM pages WHERE slug = $1`, slug)
}

func (r *PostgresPageRepo) getOne(ctx context.Context, query string, arg string) (*models.Page, error) {
	var p models.Page
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&p.ID, &p.UserID, &p.Slug, &p.Title, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return &p, nil
}

// =============================================
// TAGS
// =============================================

// PostgresTagRepo implements TagRepo using PostgreSQL.
type PostgresTagRepo struct {
	db *sql.DB
}

func NewPostgresTagRepo(db *sql.DB) *PostgresTagRepo {
	return &PostgresTagRepo{db: db}
}

const tagColumns = `id, user_id, code, name, page_id, review_url, review_provider,
	place_title, place_rating, place_reviews_count, place_photo_url,
	last_sync, sync_status, sync_error, sync_attempt, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTag(row rowScanner) (*models.NfcTag, error) {
	var t models.NfcTag
	err := row.Scan(
		&t.ID, &t.UserID, &t.Code, &t.Name, &t.PageID, &t.ReviewURL, &t.ReviewProvider,
		&t.PlaceTitle, &t.PlaceRating, &t.PlaceReviewsCount, &t.PlacePhotoURL,
		&t.LastSync, &t.SyncStatus, &t.SyncError, &t.SyncAttempt, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PostgresTagRepo) GetByID(ctx context.Context, id string) (*models.NfcTag, error) {
	return r.getOne(ctx, `SELECT `+tagColumns+` FROM nfc_tags WHERE id = $1`, id)
}

func (r *PostgresTagRepo) GetByCode(ctx context.Context, code string) (*models.NfcTag, error) {
	return r.getOne(ctx, `SELECT `+tagColumns+` FROM nfc_tags WHERE code = $1`, code)
}

func (r *PostgresTagRepo) getOne(ctx context.Context, query, arg string) (*models.NfcTag, error) {
	t, err := scanTag(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return t, nil
}

func (r *PostgresTagRepo) ListByUser(ctx context.Context, userID string) ([]*models.NfcTag, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+tagColumns+`
		FROM nfc_tags WHERE user_id = $1
		ORDER BY created_at DESC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	tags := make([]*models.NfcTag, 0)
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

func (r *PostgresTagRepo) MarkSyncRunning(ctx context.Context, id, attempt string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE nfc_tags
		SET sync_status = 'running', sync_error = NULL, sync_attempt = $2
		WHERE id = $1
	`, id, attempt)
	if err != nil {
		return fmt.Errorf("failed to mark sync running: %w", err)
	}
	return nil
}

func (r *PostgresTagRepo) CompleteSync(ctx context.Context, id, attempt string, data models.PlaceData) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE nfc_tags SET
			sync_status = 'ok',
			sync_error = NULL,
			place_title = $3,
			place_rating = $4,
			place_reviews_count = $5,
			place_photo_url = $6,
			last_sync = $7,
			review_provider = $8
		WHERE id = $1 AND sync_attempt = $2
	`, id, attempt, data.Title, data.Rating, data.ReviewsCount, data.PhotoURL, data.SyncedAt, data.Provider)
	if err != nil {
		return false, fmt.Errorf("failed to complete sync: %w", err)
	}
	return affectedOne(res)
}

func (r *PostgresTagRepo) FailSync(ctx context.Context, id, attempt, message string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE nfc_tags
		SET sync_status = 'error', sync_error = $3
		WHERE id = $1 AND sync_attempt = $2
	`, id, attempt, message)
	if err != nil {
		return false, fmt.Errorf("failed to record sync failure: %w", err)
	}
	return affectedOne(res)
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// =============================================
// SNAPSHOTS
// =============================================

// PostgresSnapshotRepo implements SnapshotRepo using PostgreSQL.
type PostgresSnapshotRepo struct {
	db *sql.DB
}

func NewPostgresSnapshotRepo(db *sql.DB) *PostgresSnapshotRepo {
	return &PostgresSnapshotRepo{db: db}
}

func (r *PostgresSnapshotRepo) Append(ctx context.Context, s *models.ReviewSnapshot) error {
	if s == nil {
		return nil
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO review_snapshots (id, tag_id, rating, reviews_count)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, s.ID, s.TagID, s.Rating, s.ReviewsCount).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append snapshot: %w", err)
	}
	return nil
}

func (r *PostgresSnapshotRepo) ListByTag(ctx context.Context, tagID string, limit int) ([]*models.ReviewSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tag_id, rating, reviews_count, created_at
		FROM review_snapshots WHERE tag_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, tagID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]*models.ReviewSnapshot, 0)
	for rows.Next() {
		var s models.ReviewSnapshot
		if err := rows.Scan(&s.ID, &s.TagID, &s.Rating, &s.ReviewsCount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return out, nil
}
