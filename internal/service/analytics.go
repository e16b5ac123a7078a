package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/linkpulse/linkpulse/internal"
	"github.com/linkpulse/linkpulse/internal/store"
)

// recentClickLimit caps the recent-clicks slice returned by GetStats.
const recentClickLimit = 10

// LinkStats extends the stored summary with derived extras.
type LinkStats struct {
	TotalClicks     int64                 `json:"total_clicks"`
	FirstClick      *int64                `json:"first_click"`
	LastClick       *int64                `json:"last_click"`
	UniqueCountries int                   `json:"unique_countries"`
	RecentClicks    []internal.ClickEvent `json:"recent_clicks"`
}

// ClickTrends holds frequency maps over the click log: clicks per
// containing hour (epoch seconds, ts - ts%3600) and clicks per country.
// Empty buckets are not materialized.
type ClickTrends struct {
	HourlyDistribution  map[int64]int64  `json:"hourly_distribution"`
	CountryDistribution map[string]int64 `json:"country_distribution"`
}

// AnalyticsService derives reporting views from stored click logs. It
// never mutates state.
type AnalyticsService struct {
	store store.LinkStore
}

func NewAnalyticsService(st store.LinkStore) *AnalyticsService {
	return &AnalyticsService{store: st}
}

// GetStats returns the summary plus distinct-country count and the most
// recent clicks, newest-last.
func (s *AnalyticsService) GetStats(ctx context.Context, slug string) (*LinkStats, error) {
	summary, err := s.load(ctx, slug)
	if err != nil {
		return nil, err
	}

	countries := make(map[string]struct{})
	for i := range summary.ClickLogs {
		countries[summary.ClickLogs[i].Country] = struct{}{}
	}

	recent := summary.ClickLogs
	if len(recent) > recentClickLimit {
		recent = recent[len(recent)-recentClickLimit:]
	}

	return &LinkStats{
		TotalClicks:     summary.TotalClicks,
		FirstClick:      summary.FirstClick,
		LastClick:       summary.LastClick,
		UniqueCountries: len(countries),
		RecentClicks:    recent,
	}, nil
}

// GetTrends buckets the click log by hour and by country.
func (s *AnalyticsService) GetTrends(ctx context.Context, slug string) (*ClickTrends, error) {
	summary, err := s.load(ctx, slug)
	if err != nil {
		return nil, err
	}

	trends := &ClickTrends{
		HourlyDistribution:  make(map[int64]int64),
		CountryDistribution: make(map[string]int64),
	}
	for i := range summary.ClickLogs {
		log := &summary.ClickLogs[i]
		trends.HourlyDistribution[log.Timestamp-log.Timestamp%3600]++
		trends.CountryDistribution[log.Country]++
	}
	return trends, nil
}

func (s *AnalyticsService) load(ctx context.Context, slug string) (*internal.AnalyticsSummary, error) {
	summary, err := s.store.GetAnalytics(ctx, slug)
	if err != nil {
		if errors.Is(err, internal.ErrLinkNotFound) {
			return nil, internal.ErrLinkNotFound
		}
		return nil, fmt.Errorf("loading analytics: %w", err)
	}
	return summary, nil
}
