package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tappo/tappo/internal/models"
)

// PostgresEventStore implements EventStore using PostgreSQL.
type PostgresEventStore struct {
	db *sql.DB
}

// NewPostgresEventStore creates a new PostgreSQL-backed event store.
func NewPostgresEventStore(db *sql.DB) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

const eventColumns = `id, user_id, event_type, session_id, nfc_tag_id, page_id,
	block_id, block_text, block_url, block_type, country, created_at`

// Insert appends ev; created_at comes from the database clock.
func (s *PostgresEventStore) Insert(ctx context.Context, ev *models.InteractionEvent) error {
	if ev == nil {
		return nil
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO interaction_events
			(id, user_id, event_type, session_id, nfc_tag_id, page_id,
			 block_id, block_text, block_url, block_type, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`, ev.ID, ev.UserID, string(ev.EventType), ev.SessionID, ev.NfcTagID, ev.PageID,
		ev.BlockID, ev.BlockText, ev.BlockURL, ev.BlockType, ev.Country,
	).Scan(&ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// List returns matching events oldest first. Events sharing a timestamp are
// ordered by id so repeated reads agree on which came first.
func (s *PostgresEventStore) List(ctx context.Context, f EventFilter) ([]*models.InteractionEvent, error) {
	where, args := buildEventWhere(f, func(n int) string { return fmt.Sprintf("$%d", n) })

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM interaction_events WHERE `+where+` ORDER BY created_at ASC, id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.InteractionEvent, 0)
	for rows.Next() {
		var ev models.InteractionEvent
		if err := rows.Scan(
			&ev.ID, &ev.UserID, &ev.EventType, &ev.SessionID, &ev.NfcTagID, &ev.PageID,
			&ev.BlockID, &ev.BlockText, &ev.BlockURL, &ev.BlockType, &ev.Country, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// buildEventWhere renders f as a WHERE clause. IN lists are expanded into
// one placeholder per value so the query works with any driver.
func buildEventWhere(f EventFilter, placeholder func(n int) string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, placeholder(len(args))))
	}

	add("user_id = %s", f.UserID)

	if len(f.Types) > 0 {
		ph := make([]string, 0, len(f.Types))
		for _, t := range f.Types {
			args = append(args, string(t))
			ph = append(ph, placeholder(len(args)))
		}
		conds = append(conds, "event_type IN ("+strings.Join(ph, ", ")+")")
	}
	if !f.From.IsZero() {
		add("created_at >= %s", f.From)
	}
	if !f.To.IsZero() {
		add("created_at <= %s", f.To)
	}
	if f.TagID != "" {
		add("nfc_tag_id = %s", f.TagID)
	}

	return strings.Join(conds, " AND "), args
}
