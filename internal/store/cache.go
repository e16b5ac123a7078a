package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linkpulse/linkpulse/internal"
)

const cacheTTL = 60 * time.Second

// CachedStore wraps another LinkStore with a Redis read-through cache on
// the record lookup, which dominates the redirect hot path. Cached records
// carry a short TTL and a possibly stale click count; the count is never
// read on the redirect path and analytics always go to the inner store, so
// staleness is harmless. Expiry stays correct because the cached record
// includes expires_at and the service re-checks it per request.
type CachedStore struct {
	inner LinkStore
	rdb   *redis.Client
}

func NewCachedStore(inner LinkStore, rdb *redis.Client) *CachedStore {
	return &CachedStore{inner: inner, rdb: rdb}
}

func cacheKey(slug string) string { return "link:" + slug }

func (s *CachedStore) SaveLink(ctx context.Context, record *internal.LinkRecord) error {
	if err := s.inner.SaveLink(ctx, record); err != nil {
		return err
	}
	s.prime(ctx, record)
	return nil
}

func (s *CachedStore) GetLink(ctx context.Context, slug string) (*internal.LinkRecord, error) {
	data, err := s.rdb.Get(ctx, cacheKey(slug)).Bytes()
	if err == nil {
		var record internal.LinkRecord
		if jsonErr := json.Unmarshal(data, &record); jsonErr == nil {
			return &record, nil
		}
		slog.Warn("dropping malformed cache entry", "slug", slug)
		s.rdb.Del(ctx, cacheKey(slug))
	} else if err != redis.Nil {
		slog.Warn("cache read failed, falling back to store", "slug", slug, "err", err)
	}

	record, err := s.inner.GetLink(ctx, slug)
	if err != nil {
		return nil, err
	}
	s.prime(ctx, record)
	return record, nil
}

func (s *CachedStore) prime(ctx context.Context, record *internal.LinkRecord) {
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, cacheKey(record.Slug), data, cacheTTL).Err(); err != nil {
		slog.Warn("cache write failed", "slug", record.Slug, "err", err)
	}
}

func (s *CachedStore) LogClick(ctx context.Context, slug string, event internal.ClickEvent) error {
	return s.inner.LogClick(ctx, slug, event)
}

func (s *CachedStore) GetAnalytics(ctx context.Context, slug string) (*internal.AnalyticsSummary, error) {
	return s.inner.GetAnalytics(ctx, slug)
}
