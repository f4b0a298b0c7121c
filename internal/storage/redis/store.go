package redis

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/telefeed/telefeed/internal/storage"
)

// Key layout:
//
//	feeds               set of subscription names
//	feed:<name>         hash with the Feed fields
//	sent:<name>         set of delivered item IDs
//	sentlog:<name>      list of delivered item IDs in delivery order,
//	                    used to prune sent:<name> beyond the history limit
type store struct {
	client *redis.Client
}

func feedKey(name string) string    { return "feed:" + name }
func sentKey(name string) string    { return "sent:" + name }
func sentLogKey(name string) string { return "sentlog:" + name }

func (s *store) Feeds(ctx context.Context) ([]storage.Feed, error) {
	names, err := s.client.SMembers(ctx, "feeds").Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list feeds: %w", err)
	}

	feeds := make([]storage.Feed, 0, len(names))
	for _, name := range names {
		f, err := s.Feed(ctx, name)
		if errors.Is(err, storage.ErrFeedNotFound) {
			continue // removed concurrently
		}
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, *f)
	}

	slices.SortFunc(feeds, func(a, b storage.Feed) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return feeds, nil
}

func (s *store) Feed(ctx context.Context, name string) (*storage.Feed, error) {
	fields, err := s.client.HGetAll(ctx, feedKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get feed %q: %w", name, err)
	}
	if len(fields) == 0 {
		return nil, storage.ErrFeedNotFound
	}

	f := &storage.Feed{
		Name:         name,
		URL:          fields["url"],
		ETag:         fields["etag"],
		LastModified: fields["last_modified"],
	}
	if v := fields["last_polled_at"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			f.LastPolledAt = t
		}
	}
	if v := fields["added_at"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			f.AddedAt = t
		}
	}
	if v := fields["error_count"]; v != "" {
		f.ErrorCount, _ = strconv.Atoi(v)
	}
	return f, nil
}

func (s *store) SaveFeed(ctx context.Context, feed *storage.Feed) error {
	addedAt := feed.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}

	fields := map[string]any{
		"url":           feed.URL,
		"etag":          feed.ETag,
		"last_modified": feed.LastModified,
		"error_count":   feed.ErrorCount,
		"added_at":      addedAt.UTC().Format(time.RFC3339Nano),
	}
	if !feed.LastPolledAt.IsZero() {
		fields["last_polled_at"] = feed.LastPolledAt.UTC().Format(time.RFC3339Nano)
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, "feeds", feed.Name)
	pipe.HSet(ctx, feedKey(feed.Name), fields)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: save feed %q: %w", feed.Name, err)
	}
	return nil
}

func (s *store) DeleteFeed(ctx context.Context, name string) error {
	removed, err := s.client.SRem(ctx, "feeds", name).Result()
	if err != nil {
		return fmt.Errorf("redis: delete feed %q: %w", name, err)
	}
	if removed == 0 {
		return storage.ErrFeedNotFound
	}
	if err := s.client.Del(ctx, feedKey(name), sentKey(name), sentLogKey(name)).Err(); err != nil {
		return fmt.Errorf("redis: delete history for %q: %w", name, err)
	}
	return nil
}

func (s *store) WasSent(ctx context.Context, feedName, itemID string) (bool, error) {
	sent, err := s.client.SIsMember(ctx, sentKey(feedName), itemID).Result()
	if err != nil {
		return false, fmt.Errorf("redis: check sent item: %w", err)
	}
	return sent, nil
}

func (s *store) MarkSent(ctx context.Context, feedName string, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}

	members := make([]any, len(itemIDs))
	pushed := make([]any, len(itemIDs))
	for i, id := range itemIDs {
		members[i] = id
		pushed[i] = id
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, sentKey(feedName), members...)
	pipe.RPush(ctx, sentLogKey(feedName), pushed...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: mark sent: %w", err)
	}

	return s.prune(ctx, feedName)
}

// prune drops delivery history beyond the limit, oldest first.
func (s *store) prune(ctx context.Context, feedName string) error {
	logKey := sentLogKey(feedName)

	n, err := s.client.LLen(ctx, logKey).Result()
	if err != nil {
		return fmt.Errorf("redis: prune history: %w", err)
	}
	excess := n - storage.SentHistoryLimit
	if excess <= 0 {
		return nil
	}

	old, err := s.client.LRange(ctx, logKey, 0, excess-1).Result()
	if err != nil {
		return fmt.Errorf("redis: prune history: %w", err)
	}

	stale := make([]any, len(old))
	for i, id := range old {
		stale[i] = id
	}

	pipe := s.client.TxPipeline()
	pipe.LTrim(ctx, logKey, excess, -1)
	if len(stale) > 0 {
		pipe.SRem(ctx, sentKey(feedName), stale...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: prune history: %w", err)
	}
	return nil
}

func (s *store) Close() error {
	return s.client.Close()
}
