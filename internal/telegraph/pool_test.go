package telegraph

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// telegraphStub answers the Telegraph API methods the pool exercises.
type telegraphStub struct {
	createAccountCalls atomic.Int32
	createPageCalls    atomic.Int32
	accountInfoErr     string // non-empty: getAccountInfo answers this API error
	pageErr            string // non-empty: createPage answers this API error
}

func (s *telegraphStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.TrimPrefix(r.URL.Path, "/")
		switch method {
		case "createAccount":
			s.createAccountCalls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok":     true,
				"result": Account{ShortName: "telefeed", AccessToken: strings.Repeat("f", 60)},
			})
		case "getAccountInfo":
			if s.accountInfoErr != "" {
				_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": s.accountInfoErr})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": Account{ShortName: "telefeed"}})
		case "createPage":
			s.createPageCalls.Add(1)
			if s.pageErr != "" {
				_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": s.pageErr})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok":     true,
				"result": Page{Path: "Test-01-01", URL: "https://telegra.ph/Test-01-01"},
			})
		default:
			http.NotFound(w, r)
		}
	})
}

func newStubbedPool(t *testing.T, stub *telegraphStub, tokens []string) *Pool {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	pool := NewPool(srv.Client(), discardLogger())
	for _, token := range tokens {
		client := NewClient(token, srv.Client())
		client.baseURL = srv.URL
		pool.initClient(context.Background(), client, token)
	}
	return pool
}

func TestPoolInit_ValidToken(t *testing.T) {
	t.Parallel()
	stub := &telegraphStub{}
	pool := newStubbedPool(t, stub, []string{strings.Repeat("a", 60)})

	if !pool.Valid() || pool.Count() != 1 {
		t.Fatalf("pool count = %d", pool.Count())
	}
	if stub.createAccountCalls.Load() != 0 {
		t.Error("a valid token must not trigger account creation")
	}
}

func TestPoolInit_ShortTokenReplaced(t *testing.T) {
	t.Parallel()
	stub := &telegraphStub{}
	pool := newStubbedPool(t, stub, []string{"too-short"})

	if pool.Count() != 1 {
		t.Fatalf("pool count = %d", pool.Count())
	}
	if stub.createAccountCalls.Load() != 1 {
		t.Error("an invalid token must be replaced by a fresh account")
	}
}

func TestPoolInit_RejectedTokenReplaced(t *testing.T) {
	t.Parallel()
	stub := &telegraphStub{accountInfoErr: "ACCESS_TOKEN_INVALID"}
	pool := newStubbedPool(t, stub, []string{strings.Repeat("b", 60)})

	if pool.Count() != 1 {
		t.Fatalf("pool count = %d", pool.Count())
	}
	if stub.createAccountCalls.Load() != 1 {
		t.Error("an API-rejected token must be replaced by a fresh account")
	}
}

func TestPool_RoundRobin(t *testing.T) {
	t.Parallel()
	stub := &telegraphStub{}
	pool := newStubbedPool(t, stub, []string{
		strings.Repeat("a", 60),
		strings.Repeat("b", 60),
	})

	first := pool.next()
	second := pool.next()
	third := pool.next()

	if first == second {
		t.Error("consecutive accounts should differ")
	}
	if first != third {
		t.Error("rotation should wrap around")
	}
}

func TestPublish_EmptyPool(t *testing.T) {
	t.Parallel()
	pool := NewPool(nil, discardLogger())
	if _, err := pool.Publish(context.Background(), Draft{Title: "x"}); err != ErrNoAccounts {
		t.Fatalf("err = %v, want ErrNoAccounts", err)
	}
}

func TestPublish_Succeeds(t *testing.T) {
	t.Parallel()
	stub := &telegraphStub{}
	pool := newStubbedPool(t, stub, []string{strings.Repeat("a", 60)})

	url, err := pool.Publish(context.Background(), Draft{
		Title:       "Entry",
		FeedTitle:   "Feed",
		Link:        "https://example.com/entry",
		ContentHTML: "<p>body</p>",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if url != "https://telegra.ph/Test-01-01" {
		t.Errorf("url = %q", url)
	}
}

func TestPublish_NonFloodAPIErrorNotRetried(t *testing.T) {
	t.Parallel()
	stub := &telegraphStub{pageErr: "CONTENT_TOO_BIG"}
	pool := newStubbedPool(t, stub, []string{strings.Repeat("a", 60)})

	_, err := pool.Publish(context.Background(), Draft{Title: "Entry", ContentHTML: "<p>x</p>"})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := stub.createPageCalls.Load(); got != 1 {
		t.Errorf("createPage called %d times, non-flood API errors must not retry", got)
	}
}

func TestErrorFloodWait(t *testing.T) {
	t.Parallel()

	tests := []struct {
		msg    string
		want   int
		wantOK bool
	}{
		{"FLOOD_WAIT_5", 5, true},
		{"FLOOD_WAIT_120", 120, true},
		{"FLOOD_WAIT_", 0, false},
		{"FLOOD_WAIT_abc", 0, false},
		{"ACCESS_TOKEN_INVALID", 0, false},
	}

	for _, tt := range tests {
		e := &Error{Msg: tt.msg}
		got, ok := e.FloodWait()
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("FloodWait(%q) = (%d, %v), want (%d, %v)", tt.msg, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	if got := truncateRunes("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncateRunes("abcdef", 3); got != "abc" {
		t.Errorf("got %q", got)
	}
	if got := truncateRunes(strings.Repeat("日", 5), 2); got != "日日" {
		t.Errorf("got %q", got)
	}
}
