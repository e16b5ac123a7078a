package store

import (
	"context"
	"sync"

	"github.com/linkpulse/linkpulse/internal"
)

// MemoryStore keeps all state in process memory behind one coarse lock.
// It backs tests and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	links  map[string]*internal.LinkRecord
	clicks map[string][]internal.ClickEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		links:  make(map[string]*internal.LinkRecord),
		clicks: make(map[string][]internal.ClickEvent),
	}
}

func (s *MemoryStore) SaveLink(ctx context.Context, record *internal.LinkRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.links[record.Slug]; exists {
		return internal.ErrSlugExists
	}

	clone := *record
	s.links[record.Slug] = &clone
	s.clicks[record.Slug] = nil
	return nil
}

func (s *MemoryStore) GetLink(ctx context.Context, slug string) (*internal.LinkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.links[slug]
	if !exists {
		return nil, internal.ErrLinkNotFound
	}

	clone := *record
	return &clone, nil
}

// LogClick holds the write lock across increment and append so concurrent
// redirects of the same slug never lose a count.
func (s *MemoryStore) LogClick(ctx context.Context, slug string, event internal.ClickEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.links[slug]
	if !exists {
		return internal.ErrLinkNotFound
	}

	event.Slug = slug
	record.ClickCount++
	s.clicks[slug] = append(s.clicks[slug], event)
	return nil
}

func (s *MemoryStore) GetAnalytics(ctx context.Context, slug string) (*internal.AnalyticsSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.links[slug]
	if !exists {
		return nil, internal.ErrLinkNotFound
	}

	logs := make([]internal.ClickEvent, len(s.clicks[slug]))
	copy(logs, s.clicks[slug])
	return summarize(record.ClickCount, logs), nil
}
