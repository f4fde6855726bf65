package storage

import (
	"time"
)

// Link is one shortened URL. Key is the primary identifier; VisitCount is a
// denormalized counter maintained alongside the visit event log.
type Link struct {
	Key        string    `json:"key" db:"key"`
	LongURL    string    `json:"long_url" db:"long_url"`
	Title      *string   `json:"title,omitempty" db:"title"`
	OwnerID    *string   `json:"owner_id,omitempty" db:"owner_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	VisitCount int64     `json:"visit_count" db:"visit_count"`
}

// VisitEvent is one recorded hit on a link. Events are append-only; the
// serial ID preserves insertion order for visits sharing a timestamp.
type VisitEvent struct {
	ID        int64     `json:"id" db:"id"`
	LinkKey   string    `json:"link_key" db:"link_key"`
	SourceIP  string    `json:"source_ip" db:"source_ip"`
	UserAgent *string   `json:"user_agent,omitempty" db:"user_agent"`
	Referer   *string   `json:"referer,omitempty" db:"referer"`
	Time      time.Time `json:"time" db:"visited_at"`
}

// DeleteResult reports what a cascading delete removed.
type DeleteResult struct {
	LinksRemoved  int64 `json:"links_removed"`
	EventsRemoved int64 `json:"events_removed"`
}

// SearchResults is one page of links plus the total match count across all
// pages.
type SearchResults struct {
	Results      []Link `json:"results"`
	TotalResults int64  `json:"total_results"`
	Page         int    `json:"page"`
}
