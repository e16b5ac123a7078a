// Package store provides the durable state behind the link service. Every
// backend honors the same contract: SaveLink fails on a duplicate slug,
// LogClick atomically increments the counter and appends the event, and
// reads observe prior writes from the same process.
package store

import (
	"context"

	"github.com/linkpulse/linkpulse/internal"
)

// LinkStore is the storage seam. Implementations must be safe for
// concurrent use; LogClick in particular must not lose updates under
// concurrent redirects of the same slug.
type LinkStore interface {
	// SaveLink persists a new record. Returns internal.ErrSlugExists if
	// the slug is already taken.
	SaveLink(ctx context.Context, record *internal.LinkRecord) error

	// GetLink returns the record for slug, or internal.ErrLinkNotFound.
	GetLink(ctx context.Context, slug string) (*internal.LinkRecord, error)

	// LogClick increments the record's click count and appends the event
	// in one atomic step. Returns internal.ErrLinkNotFound for unknown slugs.
	LogClick(ctx context.Context, slug string, event internal.ClickEvent) error

	// GetAnalytics returns the derived summary for slug including the full
	// ordered click log, or internal.ErrLinkNotFound.
	GetAnalytics(ctx context.Context, slug string) (*internal.AnalyticsSummary, error)
}

// summarize derives an AnalyticsSummary from a click count and ordered log.
// Shared by backends that materialize the log in memory.
func summarize(clickCount int64, logs []internal.ClickEvent) *internal.AnalyticsSummary {
	summary := &internal.AnalyticsSummary{
		TotalClicks: clickCount,
		ClickLogs:   logs,
	}
	for i := range logs {
		ts := logs[i].Timestamp
		if summary.FirstClick == nil || ts < *summary.FirstClick {
			summary.FirstClick = cloneInt64(ts)
		}
		if summary.LastClick == nil || ts > *summary.LastClick {
			summary.LastClick = cloneInt64(ts)
		}
	}
	return summary
}

func cloneInt64(v int64) *int64 { return &v }
