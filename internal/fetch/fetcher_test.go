package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

const rssDoc = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <item>
      <title>Second Post</title>
      <link>https://example.com/2</link>
      <guid>post-2</guid>
      <description>&lt;p&gt;Second body&lt;/p&gt;</description>
      <pubDate>Tue, 02 Jan 2024 00:00:00 GMT</pubDate>
    </item>
    <item>
      <title>First Post</title>
      <link>https://example.com/1</link>
      <guid>post-1</guid>
      <description>First body</description>
      <pubDate>Mon, 01 Jan 2024 00:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	f, err := New("", "telefeed-test")
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestFetch_ParsesFeed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "telefeed-test" {
			t.Errorf("User-Agent = %q", ua)
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Tue, 02 Jan 2024 00:00:00 GMT")
		_, _ = w.Write([]byte(rssDoc))
	}))
	defer srv.Close()

	result, err := newTestFetcher(t).Fetch(context.Background(), srv.URL, "", "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if result.FeedTitle != "Test Feed" {
		t.Errorf("FeedTitle = %q", result.FeedTitle)
	}
	if result.ETag != `"v1"` {
		t.Errorf("ETag = %q", result.ETag)
	}
	if len(result.Items) != 2 {
		t.Fatalf("got %d items", len(result.Items))
	}
	first := result.Items[0]
	if first.GUID != "post-2" || first.Title != "Second Post" {
		t.Errorf("item = %+v", first)
	}
	if first.ContentHTML != "<p>Second body</p>" {
		t.Errorf("ContentHTML = %q", first.ContentHTML)
	}
	if first.Published.IsZero() {
		t.Error("Published should be parsed")
	}
}

func TestFetch_ConditionalGet(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") != `"v1"` {
			t.Errorf("If-None-Match = %q", r.Header.Get("If-None-Match"))
		}
		if r.Header.Get("If-Modified-Since") == "" {
			t.Error("If-Modified-Since missing")
		}
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	result, err := newTestFetcher(t).Fetch(context.Background(), srv.URL, `"v1"`, "Mon, 01 Jan 2024 00:00:00 GMT")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !result.NotModified {
		t.Error("NotModified = false, want true")
	}
	// Validators carry over unchanged.
	if result.ETag != `"v1"` {
		t.Errorf("ETag = %q", result.ETag)
	}
}

func TestFetch_RateLimitedNoRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestFetcher(t).Fetch(context.Background(), srv.URL, "", "")
	if !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("err = %v, want ErrTooManyRequests", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server called %d times, 429 must not be retried", n)
	}
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(rssDoc))
	}))
	defer srv.Close()

	result, err := newTestFetcher(t).Fetch(context.Background(), srv.URL, "", "")
	if err != nil {
		t.Fatalf("Fetch should succeed on the third attempt: %v", err)
	}
	if result.FeedTitle != "Test Feed" {
		t.Errorf("FeedTitle = %q", result.FeedTitle)
	}
}

func TestFetch_ClientErrorNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := newTestFetcher(t).Fetch(context.Background(), srv.URL, "", ""); err == nil {
		t.Fatal("expected error for 404")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server called %d times, 4xx must not be retried", n)
	}
}

func TestNew_RejectsBadProxy(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"http://1.2.3.4:1080", "socks5://", "::bad::"} {
		if _, err := New(raw, "ua"); err == nil {
			t.Errorf("New accepted proxy %q", raw)
		}
	}
}
