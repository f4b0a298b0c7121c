package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/telefeed/telefeed/internal/storage"
)

func openTestStore(t *testing.T) storage.Store {
	t.Helper()
	st, db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return st
}

func TestSaveAndGetFeed(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	feed := &storage.Feed{
		Name:         "Example",
		URL:          "https://example.com/feed.xml",
		ETag:         `"abc"`,
		LastModified: "Mon, 01 Jan 2024 00:00:00 GMT",
		LastPolledAt: time.Now().UTC().Truncate(time.Second),
		AddedAt:      time.Now().UTC().Truncate(time.Second),
	}
	if err := st.SaveFeed(ctx, feed); err != nil {
		t.Fatalf("SaveFeed: %v", err)
	}

	got, err := st.Feed(ctx, "Example")
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if got.URL != feed.URL || got.ETag != feed.ETag || got.LastModified != feed.LastModified {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.LastPolledAt.Equal(feed.LastPolledAt) {
		t.Errorf("LastPolledAt = %v, want %v", got.LastPolledAt, feed.LastPolledAt)
	}
}

func TestFeed_NotFound(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)

	_, err := st.Feed(context.Background(), "missing")
	if !errors.Is(err, storage.ErrFeedNotFound) {
		t.Fatalf("err = %v, want ErrFeedNotFound", err)
	}
}

func TestSaveFeed_Upsert(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	feed := &storage.Feed{Name: "Example", URL: "https://example.com/a.xml"}
	if err := st.SaveFeed(ctx, feed); err != nil {
		t.Fatal(err)
	}

	feed.URL = "https://example.com/b.xml"
	feed.ErrorCount = 3
	if err := st.SaveFeed(ctx, feed); err != nil {
		t.Fatal(err)
	}

	got, err := st.Feed(ctx, "Example")
	if err != nil {
		t.Fatal(err)
	}
	if got.URL != "https://example.com/b.xml" || got.ErrorCount != 3 {
		t.Errorf("upsert did not apply: %+v", got)
	}

	feeds, err := st.Feeds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(feeds) != 1 {
		t.Errorf("got %d feeds, want 1", len(feeds))
	}
}

func TestFeeds_SortedByName(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := st.SaveFeed(ctx, &storage.Feed{Name: name, URL: "https://example.com/" + name}); err != nil {
			t.Fatal(err)
		}
	}

	feeds, err := st.Feeds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, f := range feeds {
		if f.Name != want[i] {
			t.Errorf("feeds[%d].Name = %q, want %q", i, f.Name, want[i])
		}
	}
}

func TestDeleteFeed(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.SaveFeed(ctx, &storage.Feed{Name: "Example", URL: "https://example.com"}); err != nil {
		t.Fatal(err)
	}
	if err := st.MarkSent(ctx, "Example", []string{"item-1"}); err != nil {
		t.Fatal(err)
	}

	if err := st.DeleteFeed(ctx, "Example"); err != nil {
		t.Fatalf("DeleteFeed: %v", err)
	}

	if _, err := st.Feed(ctx, "Example"); !errors.Is(err, storage.ErrFeedNotFound) {
		t.Errorf("feed still present after delete: %v", err)
	}

	// History goes with the feed.
	sent, err := st.WasSent(ctx, "Example", "item-1")
	if err != nil {
		t.Fatal(err)
	}
	if sent {
		t.Error("history should be deleted with the feed")
	}

	if err := st.DeleteFeed(ctx, "Example"); !errors.Is(err, storage.ErrFeedNotFound) {
		t.Errorf("second delete: err = %v, want ErrFeedNotFound", err)
	}
}

func TestMarkSentAndWasSent(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.MarkSent(ctx, "feed", []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		id   string
		want bool
	}{
		{"a", true},
		{"b", true},
		{"c", false},
	} {
		got, err := st.WasSent(ctx, "feed", tt.id)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("WasSent(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}

	// Re-marking an already sent item is not an error.
	if err := st.MarkSent(ctx, "feed", []string{"a"}); err != nil {
		t.Errorf("duplicate MarkSent: %v", err)
	}
}

func TestMarkSent_PrunesOldestFirst(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	ids := make([]string, storage.SentHistoryLimit+10)
	for i := range ids {
		ids[i] = fmt.Sprintf("item-%04d", i)
	}
	if err := st.MarkSent(ctx, "feed", ids); err != nil {
		t.Fatal(err)
	}

	// The oldest entries fall out, the newest stay.
	oldest, err := st.WasSent(ctx, "feed", ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if oldest {
		t.Error("oldest item should have been pruned")
	}

	newest, err := st.WasSent(ctx, "feed", ids[len(ids)-1])
	if err != nil {
		t.Fatal(err)
	}
	if !newest {
		t.Error("newest item must survive pruning")
	}
}

func TestMarkSent_IsolatedPerFeed(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.MarkSent(ctx, "one", []string{"shared-id"}); err != nil {
		t.Fatal(err)
	}

	got, err := st.WasSent(ctx, "two", "shared-id")
	if err != nil {
		t.Fatal(err)
	}
	if got {
		t.Error("history must be scoped per feed")
	}
}

func TestOpen_AppliesSchemaAndReopens(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	st, db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.SaveFeed(ctx, &storage.Feed{Name: "Persist", URL: "https://example.com/f"}); err != nil {
		t.Fatal(err)
	}
	if err := st.MarkSent(ctx, "Persist", []string{"id-1"}); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	st, db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := st.Feed(ctx, "Persist"); err != nil {
		t.Fatalf("Feed after reopen: %v", err)
	}
	sent, err := st.WasSent(ctx, "Persist", "id-1")
	if err != nil {
		t.Fatal(err)
	}
	if !sent {
		t.Error("history lost across reopen")
	}
}
