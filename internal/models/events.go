package models

import (
	"time"
)

// EventType enumerates the interactions the ingestion endpoint accepts.
type EventType string

const (
	EventNFCTouch    EventType = "nfc_touch"
	EventPageView    EventType = "page_view"
	EventButtonClick EventType = "button_click"
	EventReviewClick EventType = "review_click"
)

// Valid reports whether t is one of the four known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventNFCTouch, EventPageView, EventButtonClick, EventReviewClick:
		return true
	}
	return false
}

// AnalyticsEventTypes are the event types the dashboard aggregates.
var AnalyticsEventTypes = []EventType{EventNFCTouch, EventReviewClick, EventButtonClick}

// ===========================================
// INTERACTION EVENT
// ===========================================

// InteractionEvent is one immutable visitor interaction. Optional references
// are empty strings when absent.
type InteractionEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	EventType EventType `json:"event_type"`
	SessionID string    `json:"session_id,omitempty"`

	// Resolved owners
	NfcTagID string `json:"nfc_tag_id,omitempty"`
	PageID   string `json:"page_id,omitempty"`

	// Denormalized context about the clicked block
	BlockID   string `json:"block_id,omitempty"`
	BlockText string `json:"block_text,omitempty"`
	BlockURL  string `json:"block_url,omitempty"`
	BlockType string `json:"block_type,omitempty"`

	// Country is the ISO code of the client IP, when geo lookup is enabled.
	Country string `json:"country,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
