package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/telefeed/telefeed/internal/storage"
)

// store implements storage.Store backed by SQLite.
type store struct {
	db *sql.DB
}

func (s *store) Feeds(ctx context.Context) ([]storage.Feed, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, url, etag, last_modified, last_polled_at, error_count, added_at
		 FROM feeds ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list feeds: %w", err)
	}
	defer rows.Close()

	var feeds []storage.Feed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list feeds: %w", err)
	}
	return feeds, nil
}

func (s *store) Feed(ctx context.Context, name string) (*storage.Feed, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, url, etag, last_modified, last_polled_at, error_count, added_at
		 FROM feeds WHERE name = ?`, name)
	f, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrFeedNotFound
	}
	return f, err
}

func (s *store) SaveFeed(ctx context.Context, feed *storage.Feed) error {
	addedAt := feed.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feeds (name, url, etag, last_modified, last_polled_at, error_count, added_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			url = excluded.url,
			etag = excluded.etag,
			last_modified = excluded.last_modified,
			last_polled_at = excluded.last_polled_at,
			error_count = excluded.error_count`,
		feed.Name, feed.URL, feed.ETag, feed.LastModified,
		formatTime(feed.LastPolledAt), feed.ErrorCount, formatTime(addedAt))
	if err != nil {
		return fmt.Errorf("sqlite: save feed %q: %w", feed.Name, err)
	}
	return nil
}

func (s *store) DeleteFeed(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM feeds WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("sqlite: delete feed %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: delete feed %q: %w", name, err)
	}
	if n == 0 {
		return storage.ErrFeedNotFound
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sent_items WHERE feed_name = ?`, name); err != nil {
		return fmt.Errorf("sqlite: delete history for %q: %w", name, err)
	}
	return nil
}

func (s *store) WasSent(ctx context.Context, feedName, itemID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sent_items WHERE feed_name = ? AND item_id = ?`,
		feedName, itemID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: check sent item: %w", err)
	}
	return n > 0, nil
}

func (s *store) MarkSent(ctx context.Context, feedName string, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: mark sent: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range itemIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO sent_items (feed_name, item_id) VALUES (?, ?)`,
			feedName, id); err != nil {
			return fmt.Errorf("sqlite: mark sent: %w", err)
		}
	}

	// Prune history beyond the limit, oldest (lowest rowid) first.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sent_items WHERE feed_name = ? AND rowid NOT IN (
			SELECT rowid FROM sent_items WHERE feed_name = ?
			ORDER BY rowid DESC LIMIT ?
		)`, feedName, feedName, storage.SentHistoryLimit); err != nil {
		return fmt.Errorf("sqlite: prune history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: mark sent: %w", err)
	}
	return nil
}

func (s *store) Close() error {
	return s.db.Close()
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanFeed.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (*storage.Feed, error) {
	var f storage.Feed
	var lastPolled, addedAt string
	if err := row.Scan(&f.Name, &f.URL, &f.ETag, &f.LastModified,
		&lastPolled, &f.ErrorCount, &addedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlite: scan feed: %w", err)
	}
	f.LastPolledAt = parseTime(lastPolled)
	f.AddedAt = parseTime(addedAt)
	return &f, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
