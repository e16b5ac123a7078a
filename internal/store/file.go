package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/linkpulse/linkpulse/internal"
)

// fileDocument is the single JSON document the FileStore persists: two
// top-level maps, slug -> record and slug -> ordered click log.
type fileDocument struct {
	Links     map[string]*internal.LinkRecord  `json:"links"`
	Analytics map[string][]internal.ClickEvent `json:"analytics"`
}

// FileStore is a durable single-process backend. State is loaded once at
// construction and the whole document is rewritten on every mutation;
// partial in-place updates are not safe without external locking, so this
// backend assumes a single process owns the file.
type FileStore struct {
	mu   sync.RWMutex
	path string
	doc  fileDocument
}

func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path: path,
		doc: fileDocument{
			Links:     make(map[string]*internal.LinkRecord),
			Analytics: make(map[string][]internal.ClickEvent),
		},
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("loading link data from %s: %w", path, err)
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Links != nil {
		s.doc.Links = doc.Links
	}
	if doc.Analytics != nil {
		s.doc.Analytics = doc.Analytics
	}
	return nil
}

// flush rewrites the full document. Caller must hold the write lock.
func (s *FileStore) flush() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

func (s *FileStore) SaveLink(ctx context.Context, record *internal.LinkRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.doc.Links[record.Slug]; exists {
		return internal.ErrSlugExists
	}

	clone := *record
	s.doc.Links[record.Slug] = &clone
	s.doc.Analytics[record.Slug] = []internal.ClickEvent{}
	return s.flush()
}

func (s *FileStore) GetLink(ctx context.Context, slug string) (*internal.LinkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.doc.Links[slug]
	if !exists {
		return nil, internal.ErrLinkNotFound
	}

	clone := *record
	return &clone, nil
}

func (s *FileStore) LogClick(ctx context.Context, slug string, event internal.ClickEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.doc.Links[slug]
	if !exists {
		return internal.ErrLinkNotFound
	}

	event.Slug = slug
	record.ClickCount++
	s.doc.Analytics[slug] = append(s.doc.Analytics[slug], event)
	return s.flush()
}

func (s *FileStore) GetAnalytics(ctx context.Context, slug string) (*internal.AnalyticsSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.doc.Links[slug]
	if !exists {
		return nil, internal.ErrLinkNotFound
	}

	logs := make([]internal.ClickEvent, len(s.doc.Analytics[slug]))
	copy(logs, s.doc.Analytics[slug])
	return summarize(record.ClickCount, logs), nil
}
