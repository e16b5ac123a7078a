package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/linkpulse/linkpulse/internal"
)

// SQLiteStore is a durable embedded backend over database/sql with the
// pure-Go sqlite driver.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// The sqlite file is single-writer; one connection avoids SQLITE_BUSY
	// under concurrent LogClick transactions.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	if err := migrateSQLite(db); err != nil {
		return nil, fmt.Errorf("migrating sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func migrateSQLite(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS links (
		slug TEXT PRIMARY KEY,
		original_url TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER,
		click_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS clicks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		ip TEXT,
		user_agent TEXT,
		country TEXT,
		FOREIGN KEY(slug) REFERENCES links(slug)
	);
	CREATE INDEX IF NOT EXISTS idx_clicks_slug ON clicks(slug);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) SaveLink(ctx context.Context, record *internal.LinkRecord) error {
	query := `INSERT INTO links (slug, original_url, created_at, expires_at, click_count)
	          VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		record.Slug, record.OriginalURL, record.CreatedAt, record.ExpiresAt, record.ClickCount)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return internal.ErrSlugExists
		}
		return fmt.Errorf("inserting link: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetLink(ctx context.Context, slug string) (*internal.LinkRecord, error) {
	query := `SELECT slug, original_url, created_at, expires_at, click_count
	          FROM links WHERE slug = ?`

	record := &internal.LinkRecord{}
	var expiresAt sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, slug).Scan(
		&record.Slug, &record.OriginalURL, &record.CreatedAt, &expiresAt, &record.ClickCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, internal.ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting link: %w", err)
	}

	if expiresAt.Valid {
		record.ExpiresAt = &expiresAt.Int64
	}
	return record, nil
}

// LogClick runs increment and append in one transaction.
func (s *SQLiteStore) LogClick(ctx context.Context, slug string, event internal.ClickEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning click transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE links SET click_count = click_count + 1 WHERE slug = ?`, slug)
	if err != nil {
		return fmt.Errorf("incrementing click count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking click update: %w", err)
	}
	if affected == 0 {
		return internal.ErrLinkNotFound
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO clicks (slug, timestamp, ip, user_agent, country) VALUES (?, ?, ?, ?, ?)`,
		slug, event.Timestamp, event.IP, event.UserAgent, event.Country)
	if err != nil {
		return fmt.Errorf("inserting click: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetAnalytics(ctx context.Context, slug string) (*internal.AnalyticsSummary, error) {
	record, err := s.GetLink(ctx, slug)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, ip, user_agent, country FROM clicks WHERE slug = ? ORDER BY id ASC`, slug)
	if err != nil {
		return nil, fmt.Errorf("selecting clicks: %w", err)
	}
	defer rows.Close()

	var logs []internal.ClickEvent
	for rows.Next() {
		event := internal.ClickEvent{Slug: slug}
		if err := rows.Scan(&event.Timestamp, &event.IP, &event.UserAgent, &event.Country); err != nil {
			return nil, fmt.Errorf("scanning click: %w", err)
		}
		logs = append(logs, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating clicks: %w", err)
	}

	return summarize(record.ClickCount, logs), nil
}
