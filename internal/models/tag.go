package models

import (
	"fmt"
	"strings"
	"time"
)

// SyncStatus is the lifecycle state of a tag's external rating sync.
type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncRunning SyncStatus = "running"
	SyncOK      SyncStatus = "ok"
	SyncError   SyncStatus = "error"
)

// NfcTag is a physical or virtual tag mapped to a short code.
type NfcTag struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	PageID string `json:"page_id,omitempty"`

	// Review page the rating sync reads from
	ReviewURL      string `json:"review_url"`
	ReviewProvider string `json:"review_provider,omitempty"`

	// Last known good place data
	PlaceTitle        *string  `json:"place_title,omitempty"`
	PlaceRating       *float64 `json:"place_rating,omitempty"`
	PlaceReviewsCount *int     `json:"place_reviews_count,omitempty"`
	PlacePhotoURL     *string  `json:"place_photo_url,omitempty"`

	// Sync state
	LastSync    *time.Time `json:"yandex_last_sync,omitempty"`
	SyncStatus  SyncStatus `json:"yandex_sync_status"`
	SyncError   *string    `json:"yandex_sync_error,omitempty"`
	SyncAttempt string     `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// DisplayName is the label the dashboard shows for the tag.
func (t *NfcTag) DisplayName() string {
	if name := strings.TrimSpace(t.Name); name != "" {
		return name
	}
	return fmt.Sprintf("Untitled (%s)", t.Code)
}

// PlaceData is what a successful sync writes back to the tag.
type PlaceData struct {
	Title        *string
	Rating       *float64
	ReviewsCount *int
	PhotoURL     *string
	Provider     string
	SyncedAt     time.Time
}
