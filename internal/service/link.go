// Package service holds the link lifecycle orchestration: validation,
// unique slug allocation, expiry, redirect resolution and click logging.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linkpulse/linkpulse/internal"
	"github.com/linkpulse/linkpulse/internal/events"
	"github.com/linkpulse/linkpulse/internal/geo"
	"github.com/linkpulse/linkpulse/internal/store"
)

// maxSlugAttempts bounds the collision retry loop. At 62^7 slugs the bound
// is effectively unreachable, but it keeps creation from ever spinning.
const maxSlugAttempts = 10

// LinkServiceOptions tune a LinkService. Zero values select production
// defaults: the system clock, the standard slug generator, no publisher.
type LinkServiceOptions struct {
	Clock        internal.Clock
	Publisher    events.Publisher
	SlugLength   int
	GenerateSlug func(length int) (string, error)
}

// LinkService coordinates the store, the validator, the expiration policy
// and the geo resolver. It is the only component that mutates link state.
type LinkService struct {
	store        store.LinkStore
	resolver     geo.Resolver
	clock        internal.Clock
	publisher    events.Publisher
	slugLength   int
	generateSlug func(length int) (string, error)
}

func NewLinkService(st store.LinkStore, resolver geo.Resolver, opts LinkServiceOptions) *LinkService {
	s := &LinkService{
		store:        st,
		resolver:     resolver,
		clock:        opts.Clock,
		publisher:    opts.Publisher,
		slugLength:   opts.SlugLength,
		generateSlug: opts.GenerateSlug,
	}
	if s.clock == nil {
		s.clock = internal.RealClock{}
	}
	if s.slugLength <= 0 {
		s.slugLength = internal.DefaultSlugLength
	}
	if s.generateSlug == nil {
		s.generateSlug = internal.GenerateSlug
	}
	return s
}

// CreateShortLink validates the URL, allocates a unique slug and persists
// the new record. A non-positive ttlHours creates a link that never
// expires.
func (s *LinkService) CreateShortLink(ctx context.Context, originalURL string, ttlHours int) (*internal.LinkRecord, error) {
	if !internal.IsValidURL(originalURL) {
		return nil, internal.ErrInvalidURL
	}
	if !internal.IsAllowedURL(originalURL) {
		return nil, internal.ErrDomainNotAllowed
	}

	now := s.clock.Now()

	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		slug, err := s.generateSlug(s.slugLength)
		if err != nil {
			return nil, fmt.Errorf("generating slug: %w", err)
		}

		_, err = s.store.GetLink(ctx, slug)
		if err == nil {
			slog.Debug("slug collision, retrying", "slug", slug, "attempt", attempt+1)
			continue
		}
		if !errors.Is(err, internal.ErrLinkNotFound) {
			return nil, fmt.Errorf("checking slug uniqueness: %w", err)
		}

		record := &internal.LinkRecord{
			Slug:        slug,
			OriginalURL: originalURL,
			CreatedAt:   now.Unix(),
			ExpiresAt:   internal.ComputeExpiry(now, ttlHours),
			ClickCount:  0,
		}

		err = s.store.SaveLink(ctx, record)
		if errors.Is(err, internal.ErrSlugExists) {
			// Lost a race between the uniqueness check and the write.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("saving link: %w", err)
		}
		return record, nil
	}

	return nil, internal.ErrSlugSpaceExhausted
}

// ResolveRedirect looks up a live link and records the click. Missing and
// expired slugs are both reported as internal.ErrLinkNotFound so callers
// cannot tell an expired link from one that never existed.
func (s *LinkService) ResolveRedirect(ctx context.Context, slug, ip, userAgent string) (string, error) {
	record, err := s.store.GetLink(ctx, slug)
	if err != nil {
		if errors.Is(err, internal.ErrLinkNotFound) {
			return "", internal.ErrLinkNotFound
		}
		return "", fmt.Errorf("looking up link: %w", err)
	}

	now := s.clock.Now()
	if internal.IsExpired(record.ExpiresAt, now) {
		return "", internal.ErrLinkNotFound
	}

	event := internal.ClickEvent{
		Slug:      slug,
		Timestamp: now.Unix(),
		IP:        ip,
		UserAgent: userAgent,
		Country:   s.resolver.Country(ctx, ip),
	}

	// The store write owns the click-count invariant and must succeed;
	// the broker publish is downstream fan-out and must not block here.
	if err := s.store.LogClick(ctx, slug, event); err != nil {
		return "", fmt.Errorf("logging click: %w", err)
	}
	if s.publisher != nil {
		go s.publisher.PublishClick(context.WithoutCancel(ctx), events.FromEvent(slug, event))
	}

	return record.OriginalURL, nil
}

// GetAnalytics returns the stored summary for slug. Expired links stay
// queryable; expiry only gates redirects.
func (s *LinkService) GetAnalytics(ctx context.Context, slug string) (*internal.AnalyticsSummary, error) {
	summary, err := s.store.GetAnalytics(ctx, slug)
	if err != nil {
		if errors.Is(err, internal.ErrLinkNotFound) {
			return nil, internal.ErrLinkNotFound
		}
		return nil, fmt.Errorf("loading analytics: %w", err)
	}
	return summary, nil
}
