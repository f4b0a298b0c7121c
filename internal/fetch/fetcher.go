// Package fetch retrieves and parses RSS/Atom/JSON feeds over HTTP, honoring
// the deployment's User-Agent override and SOCKS5 proxy for feed traffic.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

const (
	requestTimeout   = 10 * time.Second
	maxAttempts      = 3
	initialBackoff   = time.Second
	maxResponseBytes = 10 << 20 // feeds larger than 10 MiB are rejected
)

// ErrTooManyRequests is returned when the feed host answers 429.
var ErrTooManyRequests = errors.New("fetch: rate limited by feed host")

// Fetcher retrieves feed documents.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// New creates a Fetcher. proxyURL, when non-empty, must be a socks5:// URL;
// all feed traffic is dialed through it.
func New(proxyURL, userAgent string) (*Fetcher, error) {
	client, err := HTTPClient(proxyURL, requestTimeout)
	if err != nil {
		return nil, err
	}
	return &Fetcher{
		client:    client,
		userAgent: userAgent,
	}, nil
}

// HTTPClient builds an HTTP client for content-side traffic, dialing
// through the given socks5:// proxy when non-empty. Shared with the
// Telegraph publisher, which follows the same egress path as feed fetching.
func HTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if proxyURL != "" {
		dialer, err := socks5Dialer(proxyURL)
		if err != nil {
			return nil, err
		}
		transport.DialContext = dialer.DialContext
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

// socks5Dialer builds a context-aware dialer from a socks5:// URL.
func socks5Dialer(raw string) (proxy.ContextDialer, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "socks5" || u.Host == "" {
		return nil, fmt.Errorf("fetch: invalid SOCKS5 proxy URL %q", raw)
	}

	var auth *proxy.Auth
	if u.User != nil {
		pass, _ := u.User.Password()
		auth = &proxy.Auth{User: u.User.Username(), Password: pass}
	}

	d, err := proxy.SOCKS5("tcp", u.Host, auth, &net.Dialer{Timeout: requestTimeout})
	if err != nil {
		return nil, fmt.Errorf("fetch: SOCKS5 proxy setup: %w", err)
	}

	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New("fetch: SOCKS5 dialer does not support contexts")
	}
	return cd, nil
}

// Result is the outcome of one feed fetch.
type Result struct {
	// NotModified is true when the host answered 304 to a conditional GET.
	NotModified bool

	// ETag and LastModified are the validators to store for the next fetch.
	ETag         string
	LastModified string

	// FeedTitle is the feed-level title.
	FeedTitle string

	// Items are the entries in document order (most feeds list newest first).
	Items []Item
}

// Fetch retrieves and parses the feed at rawURL. etag and lastModified,
// when non-empty, are sent as conditional-GET validators. Transient network
// errors and 5xx responses are retried with doubling backoff.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, etag, lastModified string) (*Result, error) {
	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
		}

		result, retryable, err := f.fetchOnce(ctx, rawURL, etag, lastModified)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}

	return nil, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL, etag, lastModified string) (*Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("fetch: create request for %s: %w", rawURL, err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.8")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("fetch: %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return &Result{NotModified: true, ETag: etag, LastModified: lastModified}, false, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, false, fmt.Errorf("%w: %s", ErrTooManyRequests, rawURL)

	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("fetch: %s: status %d", rawURL, resp.StatusCode)

	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("fetch: %s: status %d", rawURL, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxResponseBytes)
	result, err := parse(body)
	if err != nil {
		return nil, false, fmt.Errorf("fetch: parse %s: %w", rawURL, err)
	}

	result.ETag = resp.Header.Get("ETag")
	result.LastModified = resp.Header.Get("Last-Modified")
	return result, false, nil
}
