package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkpulse/linkpulse/internal"
	"github.com/linkpulse/linkpulse/internal/events"
	"github.com/linkpulse/linkpulse/internal/geo"
	"github.com/linkpulse/linkpulse/internal/store"
)

// stubResolver returns a fixed country and records which IPs it saw.
type stubResolver struct {
	country string
	seen    []string
}

func (r *stubResolver) Country(_ context.Context, ip string) string {
	r.seen = append(r.seen, ip)
	if ip == "127.0.0.1" || ip == "localhost" || ip == "::1" {
		return geo.CountryLocal
	}
	return r.country
}

// stubPublisher forwards published clicks to a channel so tests can wait
// for the async publish.
type stubPublisher struct {
	clicks chan events.Click
}

func newStubPublisher() *stubPublisher {
	return &stubPublisher{clicks: make(chan events.Click, 16)}
}

func (p *stubPublisher) PublishClick(_ context.Context, click events.Click) {
	p.clicks <- click
}

func newTestService(t *testing.T, opts LinkServiceOptions) (*LinkService, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	if opts.Clock == nil {
		opts.Clock = internal.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	}
	return NewLinkService(st, &stubResolver{country: "US"}, opts), st
}

func TestCreateShortLink_Success(t *testing.T) {
	ctx := context.Background()
	clock := internal.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, LinkServiceOptions{Clock: clock})

	record, err := svc.CreateShortLink(ctx, "https://drive.google.com/file/d/abc", 24)
	require.NoError(t, err)

	assert.Len(t, record.Slug, internal.DefaultSlugLength)
	for _, r := range record.Slug {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		assert.True(t, isAlnum, "slug %q contains non-alphanumeric %q", record.Slug, r)
	}
	assert.Equal(t, "https://drive.google.com/file/d/abc", record.OriginalURL)
	assert.Equal(t, clock.Now().Unix(), record.CreatedAt)
	assert.Equal(t, int64(0), record.ClickCount)
	require.NotNil(t, record.ExpiresAt)
	assert.Equal(t, clock.Now().Unix()+24*3600, *record.ExpiresAt)
}

func TestCreateShortLink_NoExpiryForNonPositiveTTL(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, LinkServiceOptions{})

	for _, ttl := range []int{0, -1} {
		record, err := svc.CreateShortLink(ctx, "https://docs.google.com/document/d/xyz", ttl)
		require.NoError(t, err)
		assert.Nil(t, record.ExpiresAt)
	}
}

func TestCreateShortLink_ValidationErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, LinkServiceOptions{})

	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{name: "no scheme fails before allow-list", url: "drive.google.com/file/d/abc", wantErr: internal.ErrInvalidURL},
		{name: "garbage", url: "not a url", wantErr: internal.ErrInvalidURL},
		{name: "valid but disallowed domain", url: "https://example.com/page", wantErr: internal.ErrDomainNotAllowed},
		{name: "dropbox", url: "https://www.dropbox.com/s/abc", wantErr: internal.ErrDomainNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateShortLink(ctx, tt.url, 24)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, internal.IsValidationErr(err))
		})
	}
}

func TestCreateShortLink_CollisionRetryBound(t *testing.T) {
	ctx := context.Background()
	attempts := 0
	svc, st := newTestService(t, LinkServiceOptions{
		GenerateSlug: func(int) (string, error) {
			attempts++
			return "SAMESLG", nil
		},
	})

	// Occupy the only slug the stub generator will ever produce.
	require.NoError(t, st.SaveLink(ctx, &internal.LinkRecord{
		Slug:        "SAMESLG",
		OriginalURL: "https://drive.google.com/file/d/first",
	}))

	_, err := svc.CreateShortLink(ctx, "https://drive.google.com/file/d/second", 24)
	assert.ErrorIs(t, err, internal.ErrSlugSpaceExhausted)
	assert.Equal(t, 10, attempts)
}

func TestResolveRedirect_RoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, LinkServiceOptions{})

	record, err := svc.CreateShortLink(ctx, "https://drive.google.com/file/d/abc", 0)
	require.NoError(t, err)

	got, err := svc.ResolveRedirect(ctx, record.Slug, "8.8.8.8", "curl/8.0")
	require.NoError(t, err)
	assert.Equal(t, "https://drive.google.com/file/d/abc", got)
}

func TestResolveRedirect_UnknownSlug(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, LinkServiceOptions{})

	_, err := svc.ResolveRedirect(ctx, "doesnotexist", "8.8.8.8", "curl/8.0")
	assert.ErrorIs(t, err, internal.ErrLinkNotFound)

	_, err = svc.GetAnalytics(ctx, "doesnotexist")
	assert.ErrorIs(t, err, internal.ErrLinkNotFound)
}

func TestResolveRedirect_ExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	clock := internal.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, LinkServiceOptions{Clock: clock})

	record, err := svc.CreateShortLink(ctx, "https://drive.google.com/file/d/abc", 1)
	require.NoError(t, err)

	clock.Advance(3599 * time.Second)
	got, err := svc.ResolveRedirect(ctx, record.Slug, "8.8.8.8", "curl/8.0")
	require.NoError(t, err)
	assert.Equal(t, record.OriginalURL, got)

	// The expiry instant itself is still valid.
	clock.Advance(1 * time.Second)
	_, err = svc.ResolveRedirect(ctx, record.Slug, "8.8.8.8", "curl/8.0")
	require.NoError(t, err)

	clock.Advance(1 * time.Second)
	_, err = svc.ResolveRedirect(ctx, record.Slug, "8.8.8.8", "curl/8.0")
	assert.ErrorIs(t, err, internal.ErrLinkNotFound,
		"expired link must be indistinguishable from a missing one")
}

func TestResolveRedirect_ClickAccounting(t *testing.T) {
	ctx := context.Background()
	clock := internal.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, LinkServiceOptions{Clock: clock})

	record, err := svc.CreateShortLink(ctx, "https://drive.google.com/file/d/abc", 0)
	require.NoError(t, err)

	const clicks = 5
	for i := 0; i < clicks; i++ {
		_, err := svc.ResolveRedirect(ctx, record.Slug, "8.8.8.8", "curl/8.0")
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	summary, err := svc.GetAnalytics(ctx, record.Slug)
	require.NoError(t, err)
	assert.Equal(t, int64(clicks), summary.TotalClicks)
	require.Len(t, summary.ClickLogs, clicks)
	for i := 1; i < clicks; i++ {
		assert.GreaterOrEqual(t, summary.ClickLogs[i].Timestamp, summary.ClickLogs[i-1].Timestamp,
			"click log must stay in chronological order")
	}

	// Reading analytics twice without intervening clicks is stable.
	again, err := svc.GetAnalytics(ctx, record.Slug)
	require.NoError(t, err)
	assert.Equal(t, summary.TotalClicks, again.TotalClicks)
}

func TestResolveRedirect_GeoFallbackToUnknown(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	// An unreachable resolver endpoint must not fail the redirect.
	resolver := geo.NewHTTPResolverWithBaseURL("http://127.0.0.1:1")
	svc := NewLinkService(st, resolver, LinkServiceOptions{})

	record, err := svc.CreateShortLink(ctx, "https://drive.google.com/file/d/abc", 0)
	require.NoError(t, err)

	got, err := svc.ResolveRedirect(ctx, record.Slug, "8.8.8.8", "curl/8.0")
	require.NoError(t, err)
	assert.Equal(t, record.OriginalURL, got)

	summary, err := svc.GetAnalytics(ctx, record.Slug)
	require.NoError(t, err)
	require.Len(t, summary.ClickLogs, 1)
	assert.Equal(t, geo.CountryUnknown, summary.ClickLogs[0].Country)
}

func TestResolveRedirect_LocalIP(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, LinkServiceOptions{})

	record, err := svc.CreateShortLink(ctx, "https://drive.google.com/file/d/abc", 0)
	require.NoError(t, err)

	_, err = svc.ResolveRedirect(ctx, record.Slug, "127.0.0.1", "curl/8.0")
	require.NoError(t, err)

	summary, err := svc.GetAnalytics(ctx, record.Slug)
	require.NoError(t, err)
	require.Len(t, summary.ClickLogs, 1)
	assert.Equal(t, geo.CountryLocal, summary.ClickLogs[0].Country)
}

func TestResolveRedirect_PublishesClickEvent(t *testing.T) {
	ctx := context.Background()
	pub := newStubPublisher()
	clock := internal.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, LinkServiceOptions{Clock: clock, Publisher: pub})

	record, err := svc.CreateShortLink(ctx, "https://drive.google.com/file/d/abc", 0)
	require.NoError(t, err)

	_, err = svc.ResolveRedirect(ctx, record.Slug, "8.8.8.8", "curl/8.0")
	require.NoError(t, err)

	select {
	case click := <-pub.clicks:
		assert.Equal(t, record.Slug, click.Slug)
		assert.Equal(t, clock.Now().Unix(), click.Timestamp)
		assert.Equal(t, "8.8.8.8", click.IP)
		assert.Equal(t, "US", click.Country)
	case <-time.After(time.Second):
		t.Fatal("expected a published click event")
	}
}

func TestGetAnalytics_QueryableAfterExpiry(t *testing.T) {
	ctx := context.Background()
	clock := internal.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t, LinkServiceOptions{Clock: clock})

	record, err := svc.CreateShortLink(ctx, "https://drive.google.com/file/d/abc", 1)
	require.NoError(t, err)

	_, err = svc.ResolveRedirect(ctx, record.Slug, "8.8.8.8", "curl/8.0")
	require.NoError(t, err)

	clock.Advance(48 * time.Hour)
	_, err = svc.ResolveRedirect(ctx, record.Slug, "8.8.8.8", "curl/8.0")
	assert.ErrorIs(t, err, internal.ErrLinkNotFound)

	summary, err := svc.GetAnalytics(ctx, record.Slug)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.TotalClicks)
}
