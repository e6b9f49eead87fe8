package models

import "time"

// PeriodMetrics are the session-deduplicated totals for a window.
type PeriodMetrics struct {
	UniqueTouches      int `json:"unique_touches"`
	UniqueReviewClicks int `json:"unique_review_clicks"`
	ConversionRate     int `json:"conversion_rate"` // integer percent
}

// TagMetric is the per-tag breakdown row.
type TagMetric struct {
	TagID          string `json:"tag_id"`
	Name           string `json:"name"`
	Touches        int    `json:"touches"`
	Reviews        int    `json:"reviews"`
	ConversionRate int    `json:"conversion_rate"`
}

// ButtonRanking is one entry of the top clicked buttons.
type ButtonRanking struct {
	Label        string `json:"label"`
	UniqueClicks int    `json:"unique_clicks"`
}

// Report is the full aggregate returned to the dashboard.
type Report struct {
	Overall    PeriodMetrics   `json:"overall"`
	PerTag     []TagMetric     `json:"per_tag"`
	TopButtons []ButtonRanking `json:"top_buttons"`
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
}
