package service

import (
	"context"
	"sort"
	"strings"

	"linkshrink/pkg/storage"
)

// memStorage is an in-memory LinkStorage + VisitStorage used across the
// service tests. Visit events are held in a slice so insertion order is
// preserved, and ByKey applies the same (time, id) ordering the Postgres
// implementation does.
type memStorage struct {
	links  map[string]*storage.Link
	visits []storage.VisitEvent
	nextID int64
}

func newMemStorage() *memStorage {
	return &memStorage{links: make(map[string]*storage.Link), nextID: 1}
}

func (m *memStorage) Create(_ context.Context, link *storage.Link) error {
	if _, exists := m.links[link.Key]; exists {
		return storage.ErrDuplicateKey
	}
	cp := *link
	m.links[link.Key] = &cp
	return nil
}

func (m *memStorage) GetByKey(_ context.Context, key string) (*storage.Link, error) {
	if link, exists := m.links[key]; exists {
		cp := *link
		return &cp, nil
	}
	return nil, nil
}

func (m *memStorage) Update(_ context.Context, link *storage.Link) error {
	if _, exists := m.links[link.Key]; exists {
		cp := *link
		cp.VisitCount = m.links[link.Key].VisitCount
		cp.CreatedAt = m.links[link.Key].CreatedAt
		m.links[link.Key] = &cp
	}
	return nil
}

func (m *memStorage) Rename(_ context.Context, oldKey, newKey string) error {
	if _, taken := m.links[newKey]; taken {
		return storage.ErrDuplicateKey
	}
	link, exists := m.links[oldKey]
	if !exists {
		return nil
	}
	delete(m.links, oldKey)
	link.Key = newKey
	m.links[newKey] = link
	for i := range m.visits {
		if m.visits[i].LinkKey == oldKey {
			m.visits[i].LinkKey = newKey
		}
	}
	return nil
}

func (m *memStorage) Delete(_ context.Context, key string) (storage.DeleteResult, error) {
	var res storage.DeleteResult
	if _, exists := m.links[key]; exists {
		delete(m.links, key)
		res.LinksRemoved = 1
	}
	kept := m.visits[:0]
	for _, ev := range m.visits {
		if ev.LinkKey == key {
			res.EventsRemoved++
		} else {
			kept = append(kept, ev)
		}
	}
	m.visits = kept
	return res, nil
}

func (m *memStorage) DeleteByOwner(ctx context.Context, ownerID string) (storage.DeleteResult, error) {
	var total storage.DeleteResult
	for key, link := range m.links {
		if link.OwnerID != nil && *link.OwnerID == ownerID {
			res, _ := m.Delete(ctx, key)
			total.LinksRemoved += res.LinksRemoved
			total.EventsRemoved += res.EventsRemoved
		}
	}
	return total, nil
}

func (m *memStorage) Search(_ context.Context, q storage.SearchQuery) (storage.SearchResults, error) {
	var matched []storage.Link
	for _, link := range m.links {
		if q.OwnerID != "" && (link.OwnerID == nil || *link.OwnerID != q.OwnerID) {
			continue
		}
		if q.Query != "" {
			needle := strings.ToLower(q.Query)
			title := ""
			if link.Title != nil {
				title = *link.Title
			}
			hay := strings.ToLower(link.Key + " " + link.LongURL + " " + title)
			if !strings.Contains(hay, needle) {
				continue
			}
		}
		matched = append(matched, *link)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Key < matched[j].Key })
	return storage.SearchResults{Results: matched, TotalResults: int64(len(matched)), Page: 1}, nil
}

func (m *memStorage) Count(_ context.Context, ownerID string) (int64, error) {
	if ownerID == "" {
		return int64(len(m.links)), nil
	}
	var n int64
	for _, link := range m.links {
		if link.OwnerID != nil && *link.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (m *memStorage) IncrementVisitCount(_ context.Context, key string) error {
	if link, exists := m.links[key]; exists {
		link.VisitCount++
	}
	return nil
}

func (m *memStorage) ReconcileVisitCounts(ctx context.Context) (int64, error) {
	var fixed int64
	for key, link := range m.links {
		n, _ := m.CountByKey(ctx, key)
		if link.VisitCount != n {
			link.VisitCount = n
			fixed++
		}
	}
	return fixed, nil
}

func (m *memStorage) Insert(_ context.Context, event *storage.VisitEvent) error {
	event.ID = m.nextID
	m.nextID++
	m.visits = append(m.visits, *event)
	return nil
}

func (m *memStorage) ByKey(_ context.Context, key string) ([]storage.VisitEvent, error) {
	var events []storage.VisitEvent
	for _, ev := range m.visits {
		if ev.LinkKey == key {
			events = append(events, ev)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Time.Equal(events[j].Time) {
			return events[i].Time.Before(events[j].Time)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

func (m *memStorage) CountByKey(_ context.Context, key string) (int64, error) {
	var n int64
	for _, ev := range m.visits {
		if ev.LinkKey == key {
			n++
		}
	}
	return n, nil
}

func strptr(s string) *string { return &s }
