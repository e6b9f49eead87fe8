package models

import "time"

// Page is a user-owned public page ("taplink"). Only the fields needed to
// resolve events and redirect tags are modeled here.
type Page struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
