package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tappo/tappo/internal/models"
)

type fakeClickHouse struct {
	execQuery  string
	execArgs   []any
	selectSQL  string
	selectArgs []any
	rows       []chEvent
	err        error
}

func (f *fakeClickHouse) Exec(ctx context.Context, query string, args ...any) error {
	f.execQuery = query
	f.execArgs = args
	return f.err
}

func (f *fakeClickHouse) Select(ctx context.Context, dest any, query string, args ...any) error {
	f.selectSQL = query
	f.selectArgs = args
	if f.err != nil {
		return f.err
	}
	*(dest.(*[]chEvent)) = f.rows
	return nil
}

func TestClickHouseEventStore_InsertStampsCreatedAt(t *testing.T) {
	conn := &fakeClickHouse{}
	store := NewClickHouseEventStore(conn)
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	ev := &models.InteractionEvent{ID: "e1", UserID: "u1", EventType: models.EventNFCTouch, SessionID: "s1", NfcTagID: "t1"}
	require.NoError(t, store.Insert(context.Background(), ev))

	assert.Equal(t, fixed, ev.CreatedAt)
	assert.Contains(t, conn.execQuery, "INSERT INTO interaction_events")
	require.Len(t, conn.execArgs, 12)
	assert.Equal(t, "nfc_touch", conn.execArgs[2])
	assert.Equal(t, fixed, conn.execArgs[11])
}

func TestClickHouseEventStore_List(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	conn := &fakeClickHouse{rows: []chEvent{
		{ID: "e1", UserID: "u1", EventType: "review_click", SessionID: "s1", NfcTagID: "t1", CreatedAt: created},
	}}
	store := NewClickHouseEventStore(conn)

	events, err := store.List(context.Background(), EventFilter{
		UserID: "u1",
		Types:  []models.EventType{models.EventReviewClick},
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventReviewClick, events[0].EventType)
	assert.Equal(t, created, events[0].CreatedAt)

	assert.Contains(t, conn.selectSQL, "WHERE user_id = ? AND event_type IN (?)")
	assert.Contains(t, conn.selectSQL, "ORDER BY created_at ASC, id ASC")
	assert.Equal(t, []any{"u1", "review_click"}, conn.selectArgs)
}

func TestClickHouseEventStore_ListError(t *testing.T) {
	store := NewClickHouseEventStore(&fakeClickHouse{err: errors.New("code: 60, table missing")})

	_, err := store.List(context.Background(), EventFilter{UserID: "u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table missing")
}
