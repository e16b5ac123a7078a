package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/linkpulse/linkpulse/internal"
)

// PostgresStore is the networked backend over GORM. The schema is the
// LinkRecord and ClickEvent models plus the worker's rollup table.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) (*PostgresStore, error) {
	if err := db.AutoMigrate(&internal.LinkRecord{}, &internal.ClickEvent{}, &internal.ClickRollup{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveLink(ctx context.Context, record *internal.LinkRecord) error {
	err := s.db.WithContext(ctx).Create(record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return internal.ErrSlugExists
		}
		return fmt.Errorf("inserting link: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetLink(ctx context.Context, slug string) (*internal.LinkRecord, error) {
	var record internal.LinkRecord
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal.ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting link: %w", err)
	}
	return &record, nil
}

// LogClick wraps the atomic increment and the click insert in one
// transaction so concurrent redirects never lose counts.
func (s *PostgresStore) LogClick(ctx context.Context, slug string, event internal.ClickEvent) error {
	event.Slug = slug
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&internal.LinkRecord{}).
			Where("slug = ?", slug).
			UpdateColumn("click_count", gorm.Expr("click_count + 1"))
		if res.Error != nil {
			return fmt.Errorf("incrementing click count: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return internal.ErrLinkNotFound
		}
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("inserting click: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetAnalytics(ctx context.Context, slug string) (*internal.AnalyticsSummary, error) {
	record, err := s.GetLink(ctx, slug)
	if err != nil {
		return nil, err
	}

	var logs []internal.ClickEvent
	err = s.db.WithContext(ctx).
		Where("slug = ?", slug).
		Order("id ASC").
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("selecting clicks: %w", err)
	}

	return summarize(record.ClickCount, logs), nil
}
