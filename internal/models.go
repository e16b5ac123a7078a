package internal

import "time"

// LinkRecord is one shortened link. Timestamps are epoch seconds; a nil
// ExpiresAt means the link never expires.
type LinkRecord struct {
	Slug        string `json:"slug" gorm:"type:varchar(12);primaryKey"`
	OriginalURL string `json:"original_url" gorm:"type:text;not null"`
	CreatedAt   int64  `json:"created_at" gorm:"not null"`
	ExpiresAt   *int64 `json:"expires_at,omitempty"`
	ClickCount  int64  `json:"click_count" gorm:"not null;default:0"`
}

// ClickEvent is one recorded redirect with request metadata.
type ClickEvent struct {
	ID        int64  `json:"-" gorm:"primaryKey;autoIncrement"`
	Slug      string `json:"-" gorm:"type:varchar(12);index;not null"`
	Timestamp int64  `json:"timestamp" gorm:"not null"`
	IP        string `json:"ip" gorm:"type:varchar(45)"`
	UserAgent string `json:"user_agent" gorm:"type:text"`
	Country   string `json:"country" gorm:"type:varchar(64)"`
}

// AnalyticsSummary is derived from a LinkRecord and its click log; it is
// never stored. FirstClick/LastClick are nil when the link has no clicks.
type AnalyticsSummary struct {
	TotalClicks int64        `json:"total_clicks"`
	FirstClick  *int64       `json:"first_click"`
	LastClick   *int64       `json:"last_click"`
	ClickLogs   []ClickEvent `json:"click_logs"`
}

// ClickRollup is a slug x hour x country aggregate row maintained by the
// analytics worker. HourBucket is the containing hour in epoch seconds.
type ClickRollup struct {
	Slug       string `gorm:"type:varchar(12);primaryKey"`
	HourBucket int64  `gorm:"primaryKey;autoIncrement:false"`
	Country    string `gorm:"type:varchar(64);primaryKey"`
	ClickCount int64  `gorm:"not null;default:0"`
}

// Clock abstracts time so expiry behavior can be tested against a
// simulated clock.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// MockClock is a controllable Clock for tests.
type MockClock struct {
	current time.Time
}

func NewMockClock(t time.Time) *MockClock { return &MockClock{current: t} }

func (c *MockClock) Now() time.Time { return c.current }

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) { c.current = c.current.Add(d) }
