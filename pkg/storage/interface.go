package storage

import (
	"context"
	"errors"
)

// ErrDuplicateKey is returned by Create and Rename when the requested key is
// already in use. The unique index on links.key enforces this; callers retry
// or surface it depending on whether the key was generated or user-chosen.
var ErrDuplicateKey = errors.New("key already exists")

// LinkStorage owns the canonical link records. Implementations return
// (nil, nil) from GetByKey when no record exists.
type LinkStorage interface {
	Create(ctx context.Context, link *Link) error
	GetByKey(ctx context.Context, key string) (*Link, error)
	Update(ctx context.Context, link *Link) error
	// Rename atomically moves a link and its visit events to a new key.
	Rename(ctx context.Context, oldKey, newKey string) error
	// Delete removes the link and cascades to its visit events.
	Delete(ctx context.Context, key string) (DeleteResult, error)
	DeleteByOwner(ctx context.Context, ownerID string) (DeleteResult, error)
	Search(ctx context.Context, q SearchQuery) (SearchResults, error)
	Count(ctx context.Context, ownerID string) (int64, error)
	IncrementVisitCount(ctx context.Context, key string) error
	// ReconcileVisitCounts recomputes every visit counter from the event log
	// and returns the number of links whose counter was corrected.
	ReconcileVisitCounts(ctx context.Context) (int64, error)
}

// VisitStorage is the append-only visit event log.
type VisitStorage interface {
	Insert(ctx context.Context, event *VisitEvent) error
	// ByKey returns all events for a link ordered by (time, id) ascending.
	ByKey(ctx context.Context, key string) ([]VisitEvent, error)
	CountByKey(ctx context.Context, key string) (int64, error)
}
