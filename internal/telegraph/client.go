// Package telegraph publishes long-form feed content to telegra.ph and
// links it from the Telegram message instead of inlining the full text.
// It manages a pool of rotating access tokens with per-account flood
// control.
package telegraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const (
	apiBaseURL       = "https://api.telegra.ph"
	maxResponseBytes = 1 << 20
)

// Error is a Telegraph API level error (ok=false response).
type Error struct {
	Msg string
}

func (e *Error) Error() string {
	return "telegraph: api error: " + e.Msg
}

// FloodWait returns the flood-control wait in seconds when the error is a
// FLOOD_WAIT_<n> rejection.
func (e *Error) FloodWait() (int, bool) {
	rest, ok := strings.CutPrefix(e.Msg, "FLOOD_WAIT_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Node is one element of Telegraph page content: either a string or a
// NodeElement.
type Node any

// NodeElement is a DOM-ish content node.
type NodeElement struct {
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []Node            `json:"children,omitempty"`
}

// Account is a Telegraph account as returned by createAccount and
// getAccountInfo.
type Account struct {
	ShortName   string `json:"short_name"`
	AuthorName  string `json:"author_name,omitempty"`
	AuthorURL   string `json:"author_url,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
}

// Page is a published Telegraph page.
type Page struct {
	Path  string `json:"path"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// apiResponse is the envelope every Telegraph method returns.
type apiResponse[T any] struct {
	OK     bool   `json:"ok"`
	Result T      `json:"result"`
	Error  string `json:"error,omitempty"`
}

// Client is a thin HTTP wrapper around the Telegraph API for one account.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a Telegraph client holding the given access token.
// An empty token is valid only until CreateAccount is called.
func NewClient(token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{token: token, baseURL: apiBaseURL, http: httpClient}
}

// Token returns the account's current access token.
func (c *Client) Token() string { return c.token }

func call[T any](ctx context.Context, c *Client, method string, payload map[string]any) (*T, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telegraph: marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("telegraph: create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegraph: %s request failed: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("telegraph: read %s response: %w", method, err)
	}

	var envelope apiResponse[T]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("telegraph: decode %s response: %w", method, err)
	}

	if !envelope.OK {
		return nil, &Error{Msg: envelope.Error}
	}
	return &envelope.Result, nil
}

// CreateAccount creates a fresh Telegraph account and adopts its token.
func (c *Client) CreateAccount(ctx context.Context, shortName, authorName, authorURL string) error {
	account, err := call[Account](ctx, c, "createAccount", map[string]any{
		"short_name":  shortName,
		"author_name": authorName,
		"author_url":  authorURL,
	})
	if err != nil {
		return err
	}
	if account.AccessToken == "" {
		return errors.New("telegraph: createAccount returned no access token")
	}
	c.token = account.AccessToken
	return nil
}

// GetAccountInfo fetches the account's metadata, verifying the token.
func (c *Client) GetAccountInfo(ctx context.Context) (*Account, error) {
	return call[Account](ctx, c, "getAccountInfo", map[string]any{
		"access_token": c.token,
		"fields":       []string{"short_name", "author_name", "author_url"},
	})
}

// CreatePage publishes a page and returns it.
func (c *Client) CreatePage(ctx context.Context, title string, content []Node, authorName, authorURL string) (*Page, error) {
	return call[Page](ctx, c, "createPage", map[string]any{
		"access_token": c.token,
		"title":        title,
		"content":      content,
		"author_name":  authorName,
		"author_url":   authorURL,
	})
}
