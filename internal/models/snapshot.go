package models

import "time"

// ReviewSnapshot records the rating observed by one successful sync.
type ReviewSnapshot struct {
	ID           string    `json:"id"`
	TagID        string    `json:"tag_id"`
	Rating       *float64  `json:"rating,omitempty"`
	ReviewsCount *int      `json:"reviews_count,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
