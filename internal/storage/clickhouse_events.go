package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/tappo/tappo/internal/models"
)

// clickHouseConn is the subset of driver.Conn the event store uses.
type clickHouseConn interface {
	Exec(ctx context.Context, query string, args ...any) error
	Select(ctx context.Context, dest any, query string, args ...any) error
}

type chEvent struct {
	ID        string    `ch:"id"`
	UserID    string    `ch:"user_id"`
	EventType string    `ch:"event_type"`
	SessionID string    `ch:"session_id"`
	NfcTagID  string    `ch:"nfc_tag_id"`
	PageID    string    `ch:"page_id"`
	BlockID   string    `ch:"block_id"`
	BlockText string    `ch:"block_text"`
	BlockURL  string    `ch:"block_url"`
	BlockType string    `ch:"block_type"`
	Country   string    `ch:"country"`
	CreatedAt time.Time `ch:"created_at"`
}

// ClickHouseEventStore implements EventStore on a ClickHouse MergeTree table.
type ClickHouseEventStore struct {
	conn clickHouseConn
	now  func() time.Time
}

func NewClickHouseEventStore(conn clickHouseConn) *ClickHouseEventStore {
	return &ClickHouseEventStore{conn: conn, now: time.Now}
}

func (s *ClickHouseEventStore) Insert(ctx context.Context, ev *models.InteractionEvent) error {
	if ev == nil {
		return nil
	}
	ev.CreatedAt = s.now().UTC()

	err := s.conn.Exec(ctx, `
		INSERT INTO interaction_events
			(id, user_id, event_type, session_id, nfc_tag_id, page_id,
			 block_id, block_text, block_url, block_type, country, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.UserID, string(ev.EventType), ev.SessionID, ev.NfcTagID, ev.PageID,
		ev.BlockID, ev.BlockText, ev.BlockURL, ev.BlockType, ev.Country, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (s *ClickHouseEventStore) List(ctx context.Context, f EventFilter) ([]*models.InteractionEvent, error) {
	where, args := buildEventWhere(f, func(int) string { return "?" })

	var rows []chEvent
	err := s.conn.Select(ctx, &rows,
		`SELECT `+eventColumns+` FROM interaction_events WHERE `+where+` ORDER BY created_at ASC, id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]*models.InteractionEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, &models.InteractionEvent{
			ID:        r.ID,
			UserID:    r.UserID,
			EventType: models.EventType(r.EventType),
			SessionID: r.SessionID,
			NfcTagID:  r.NfcTagID,
			PageID:    r.PageID,
			BlockID:   r.BlockID,
			BlockText: r.BlockText,
			BlockURL:  r.BlockURL,
			BlockType: r.BlockType,
			Country:   r.Country,
			CreatedAt: r.CreatedAt,
		})
	}
	return events, nil
}
