package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tappo/tappo/internal/models"
)

var tagColumnNames = []string{
	"id", "user_id", "code", "name", "page_id", "review_url", "review_provider",
	"place_title", "place_rating", "place_reviews_count", "place_photo_url",
	"last_sync", "sync_status", "sync_error", "sync_attempt", "created_at",
}

func TestPostgresPageRepo_GetBySlug(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresPageRepo(db)
	now := time.Now().UTC()

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "user_id", "slug", "title", "created_at"}).
			AddRow("p1", "u1", "cafe", "Cafe", now)
		mock.ExpectQuery("SELECT (.+) FROM pages WHERE slug =").
			WithArgs("cafe").
			WillReturnRows(rows)

		p, err := repo.GetBySlug(context.Background(), "cafe")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "p1", p.ID)
		assert.Equal(t, "u1", p.UserID)
	})

	t.Run("not found is nil, nil", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM pages WHERE slug =").
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		p, err := repo.GetBySlug(context.Background(), "ghost")
		assert.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("driver error wraps", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM pages WHERE slug =").
			WithArgs("boom").
			WillReturnError(errors.New("connection reset"))

		_, err := repo.GetBySlug(context.Background(), "boom")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTagRepo_GetByCodeMapsNullables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresTagRepo(db)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(tagColumnNames).AddRow(
		"t1", "u1", "abc", "Front door", "p1", "https://yandex.ru/maps/org/x/1", "Yandex",
		"Cafe", 4.8, 120, nil,
		now, "ok", nil, "att-1", now,
	)
	mock.ExpectQuery("SELECT (.+) FROM nfc_tags WHERE code =").
		WithArgs("abc").
		WillReturnRows(rows)

	tag, err := repo.GetByCode(context.Background(), "abc")
	require.NoError(t, err)
	require.NotNil(t, tag)

	assert.Equal(t, "p1", tag.PageID)
	require.NotNil(t, tag.PlaceTitle)
	assert.Equal(t, "Cafe", *tag.PlaceTitle)
	assert.Equal(t, 4.8, *tag.PlaceRating)
	assert.Equal(t, 120, *tag.PlaceReviewsCount)
	assert.Nil(t, tag.PlacePhotoURL)
	assert.Nil(t, tag.SyncError)
	assert.Equal(t, models.SyncOK, tag.SyncStatus)
	assert.Equal(t, "att-1", tag.SyncAttempt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTagRepo_ListByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresTagRepo(db)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(tagColumnNames).
		AddRow("t2", "u1", "b", "", "", "", "", nil, nil, nil, nil, nil, "idle", nil, "", now).
		AddRow("t1", "u1", "a", "", "", "", "", nil, nil, nil, nil, nil, "idle", nil, "", now.Add(-time.Hour))
	mock.ExpectQuery("SELECT (.+) FROM nfc_tags WHERE user_id = (.+) ORDER BY created_at DESC").
		WithArgs("u1").
		WillReturnRows(rows)

	tags, err := repo.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "t2", tags[0].ID)
	assert.Nil(t, tags[0].LastSync)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTagRepo_SyncTransitions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresTagRepo(db)
	ctx := context.Background()
	syncedAt := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE nfc_tags").
		WithArgs("t1", "att-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkSyncRunning(ctx, "t1", "att-2"))

	t.Run("complete applies while attempt is current", func(t *testing.T) {
		mock.ExpectExec("UPDATE nfc_tags SET").
			WithArgs("t1", "att-2", "Cafe", 4.8, 120, nil, syncedAt, "Yandex").
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.CompleteSync(ctx, "t1", "att-2", models.PlaceData{
			Title:        ptr("Cafe"),
			Rating:       ptr(4.8),
			ReviewsCount: ptr(120),
			Provider:     "Yandex",
			SyncedAt:     syncedAt,
		})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("superseded attempt reports false", func(t *testing.T) {
		mock.ExpectExec("UPDATE nfc_tags").
			WithArgs("t1", "att-1", "timeout").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.FailSync(ctx, "t1", "att-1", "timeout")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("driver error", func(t *testing.T) {
		mock.ExpectExec("UPDATE nfc_tags").
			WithArgs("t1", "att-2", "boom").
			WillReturnError(errors.New("deadlock detected"))

		_, err := repo.FailSync(ctx, "t1", "att-2", "boom")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "deadlock detected")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEventStore_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresEventStore(db)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ev := &models.InteractionEvent{
		ID: "e1", UserID: "u1", EventType: models.EventButtonClick, SessionID: "s1",
		PageID: "p1", BlockID: "b1", BlockText: "Menu", BlockURL: "https://example.com", BlockType: "link",
	}

	mock.ExpectQuery("INSERT INTO interaction_events").
		WithArgs("e1", "u1", "button_click", "s1", "", "p1", "b1", "Menu", "https://example.com", "link", "").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	require.NoError(t, store.Insert(context.Background(), ev))
	assert.True(t, ev.CreatedAt.Equal(created))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEventStore_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresEventStore(db)
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24*time.Hour - time.Nanosecond)

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "event_type", "session_id", "nfc_tag_id", "page_id",
		"block_id", "block_text", "block_url", "block_type", "country", "created_at",
	}).AddRow("e1", "u1", "nfc_touch", "s1", "t1", "p1", "", "", "", "", "RU", from.Add(time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM interaction_events WHERE user_id = (.+) ORDER BY created_at ASC, id ASC").
		WithArgs("u1", "nfc_touch", "review_click", "button_click", from, to, "t1").
		WillReturnRows(rows)

	events, err := store.List(context.Background(), EventFilter{
		UserID: "u1",
		Types:  models.AnalyticsEventTypes,
		From:   from,
		To:     to,
		TagID:  "t1",
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventNFCTouch, events[0].EventType)
	assert.Equal(t, "RU", events[0].Country)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshotRepo(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresSnapshotRepo(db)
	now := time.Now().UTC()

	snap := &models.ReviewSnapshot{TagID: "t1", Rating: ptr(4.5)}
	mock.ExpectQuery("INSERT INTO review_snapshots").
		WithArgs(sqlmock.AnyArg(), "t1", 4.5, nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	require.NoError(t, repo.Append(context.Background(), snap))
	assert.NotEmpty(t, snap.ID)
	assert.True(t, snap.CreatedAt.Equal(now))

	mock.ExpectQuery("SELECT (.+) FROM review_snapshots WHERE tag_id =").
		WithArgs("t1", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tag_id", "rating", "reviews_count", "created_at"}).
			AddRow(snap.ID, "t1", 4.5, nil, now))

	snaps, err := repo.ListByTag(context.Background(), "t1", 5)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Nil(t, snaps[0].ReviewsCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
