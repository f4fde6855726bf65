package service

import (
	"context"
	"time"

	"linkshrink/pkg/logging"
	"linkshrink/pkg/storage"
)

// VisitRecorder logs redirect hits: one appended VisitEvent plus an atomic
// bump of the link's denormalized visit counter per resolved lookup.
type VisitRecorder struct {
	links   storage.LinkStorage
	visits  storage.VisitStorage
	logger  *logging.Logger
	nowFunc func() time.Time
}

func NewVisitRecorder(links storage.LinkStorage, visits storage.VisitStorage, logger *logging.Logger) *VisitRecorder {
	return &VisitRecorder{
		links:   links,
		visits:  visits,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// Record resolves the key and, if it exists, increments the visit counter
// and appends a visit event, returning the destination URL. An unknown key
// produces no side effects.
//
// The counter update and the event append are two single-row operations, not
// one transaction. A crash between them can leave the counter and the event
// log drifted by one; ReconcileVisitCounts recomputes counters from the log
// when that matters.
func (r *VisitRecorder) Record(ctx context.Context, key, sourceIP string, userAgent, referer *string) (string, error) {
	link, err := r.links.GetByKey(ctx, key)
	if err != nil {
		return "", err
	}
	if link == nil {
		return "", ErrNotFound
	}

	if err := r.links.IncrementVisitCount(ctx, key); err != nil {
		return "", err
	}

	event := &storage.VisitEvent{
		LinkKey:   key,
		SourceIP:  sourceIP,
		UserAgent: userAgent,
		Referer:   referer,
		Time:      r.nowFunc(),
	}
	if err := r.visits.Insert(ctx, event); err != nil {
		return "", err
	}

	r.logger.LogVisit(ctx, key, sourceIP)
	return link.LongURL, nil
}

// Visits returns the raw event log for a key together with its length.
func (r *VisitRecorder) Visits(ctx context.Context, key string) ([]storage.VisitEvent, int64, error) {
	events, err := r.visits.ByKey(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	return events, int64(len(events)), nil
}

// ReconcileVisitCounts recomputes every link's counter from its event count
// and returns how many links were corrected. Intended as a periodic sweep,
// not part of the redirect path.
func (r *VisitRecorder) ReconcileVisitCounts(ctx context.Context) (int64, error) {
	return r.links.ReconcileVisitCounts(ctx)
}
