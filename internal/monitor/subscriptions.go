package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/telefeed/telefeed/internal/storage"
)

// ErrNoEntries is returned by Test when the feed currently has no items.
var ErrNoEntries = errors.New("monitor: feed has no entries")

// Subscribe validates the feed at url by fetching it, then stores the
// subscription with its current entries pre-marked as delivered so only
// future entries are forwarded.
func (m *Monitor) Subscribe(ctx context.Context, rawURL, name string) (*storage.Feed, error) {
	m.mu.RLock()
	store := m.store
	m.mu.RUnlock()
	if store == nil {
		return nil, ErrNotReady
	}

	result, err := m.fetcher.Fetch(ctx, rawURL, "", "")
	if err != nil {
		return nil, fmt.Errorf("feed did not validate: %w", err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(result.FeedTitle)
	}
	if name == "" {
		return nil, errors.New("monitor: feed has no title, a name is required")
	}

	if existing, err := store.Feed(ctx, name); err == nil {
		return nil, fmt.Errorf("monitor: already subscribed to %q (%s)", name, existing.URL)
	} else if !errors.Is(err, storage.ErrFeedNotFound) {
		return nil, err
	}

	feed := &storage.Feed{
		Name:         name,
		URL:          rawURL,
		ETag:         result.ETag,
		LastModified: result.LastModified,
		AddedAt:      time.Now(),
	}
	if err := store.SaveFeed(ctx, feed); err != nil {
		return nil, err
	}

	// Prime the history so the backlog is not re-delivered.
	ids := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		ids = append(ids, storage.ItemID(item.GUID, item.Link, item.Title, item.PublishedRaw))
	}
	if len(ids) > 0 {
		if err := store.MarkSent(ctx, name, ids); err != nil {
			return nil, err
		}
	}

	m.publish(Event{Type: "subscribed", Feed: name, Link: rawURL})
	m.logger.Info("subscribed", "feed", name, "url", rawURL, "entries_primed", len(ids))
	return feed, nil
}

// Unsubscribe removes a subscription and its delivery history.
func (m *Monitor) Unsubscribe(ctx context.Context, name string) error {
	m.mu.RLock()
	store := m.store
	m.mu.RUnlock()
	if store == nil {
		return ErrNotReady
	}

	if err := store.DeleteFeed(ctx, name); err != nil {
		return err
	}
	m.publish(Event{Type: "unsubscribed", Feed: name})
	m.logger.Info("unsubscribed", "feed", name)
	return nil
}

// List returns all subscriptions sorted by name.
func (m *Monitor) List(ctx context.Context) ([]storage.Feed, error) {
	m.mu.RLock()
	store := m.store
	m.mu.RUnlock()
	if store == nil {
		return nil, ErrNotReady
	}
	return store.Feeds(ctx)
}

// Test fetches the named feed and delivers its newest entry regardless of
// delivery history.
func (m *Monitor) Test(ctx context.Context, name string) error {
	m.mu.RLock()
	store := m.store
	m.mu.RUnlock()
	if store == nil {
		return ErrNotReady
	}

	feed, err := store.Feed(ctx, name)
	if err != nil {
		return err
	}

	// Unconditional fetch so a 304 cannot hide the entries.
	result, err := m.fetcher.Fetch(ctx, feed.URL, "", "")
	if err != nil {
		return err
	}
	if len(result.Items) == 0 {
		return ErrNoEntries
	}
	return m.deliver(ctx, feed, result.FeedTitle, result.Items[0])
}
