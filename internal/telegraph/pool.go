package telegraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	accountShortName  = "telefeed"
	accountAuthorName = "telefeed"

	// tokenLength is the length of every well-formed Telegraph access
	// token; anything else is invalid without asking the API.
	tokenLength = 60

	// minCreateInterval spaces createPage calls per account to stay under
	// flood control.
	minCreateInterval = 500 * time.Millisecond

	// floodRecreateThreshold is the FLOOD_WAIT duration (seconds) beyond
	// which waiting is pointless and a replacement account is created.
	floodRecreateThreshold = 60

	maxPublishRetries = 3
)

// ErrNoAccounts is returned when no valid Telegraph account is available.
var ErrNoAccounts = errors.New("telegraph: no valid accounts")

// account pairs a client with its flood-control state.
type account struct {
	client *Client
	logger *slog.Logger

	// fcMu is held while the account is blocked by flood control.
	fcMu sync.Mutex

	// reqMu serialises createPage calls for this account.
	reqMu   sync.Mutex
	lastRun time.Time
}

// createPage publishes through this account, waiting out any active flood
// block and keeping at least minCreateInterval between calls.
func (a *account) createPage(ctx context.Context, title string, content []Node, authorName, authorURL string) (*Page, error) {
	// If flood-blocked, wait until unblocked; otherwise pass through.
	a.fcMu.Lock()
	a.fcMu.Unlock() //nolint:staticcheck // gate, not a critical section

	a.reqMu.Lock()
	defer a.reqMu.Unlock()

	if wait := minCreateInterval - time.Since(a.lastRun); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	page, err := a.client.CreatePage(ctx, title, content, authorName, authorURL)
	a.lastRun = time.Now()
	return page, err
}

// floodWait blocks the account for the API-mandated duration. A wait of
// floodRecreateThreshold or longer is answered by creating a replacement
// account instead. No-op when a block is already active.
func (a *account) floodWait(retryAfter int) {
	if !a.fcMu.TryLock() {
		return
	}
	go func() {
		defer a.fcMu.Unlock()
		a.logger.Info("blocking telegraph account due to flood control", "retry_after", retryAfter)

		if retryAfter >= floodRecreateThreshold {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := a.client.CreateAccount(ctx, accountShortName, accountAuthorName, ""); err != nil {
				a.logger.Warn("replacement telegraph account creation failed", "error", err)
				return
			}
			a.logger.Warn("created a replacement telegraph account instead of waiting")
		} else {
			time.Sleep(time.Duration(retryAfter+1) * time.Second)
		}
		a.logger.Info("telegraph account unblocked")
	}()
}

// Pool manages the rotating set of Telegraph accounts.
type Pool struct {
	logger *slog.Logger
	http   *http.Client

	mu       sync.Mutex
	accounts []*account
	curr     int
}

// NewPool creates an empty pool; call Init to populate it from tokens.
func NewPool(httpClient *http.Client, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{logger: logger, http: httpClient}
}

// Init validates each token and sets up its account. An invalid token is
// silently replaced by a freshly created account, at the cost of a slower
// startup. Tokens whose accounts cannot be set up at all are skipped.
func (p *Pool) Init(ctx context.Context, tokens []string) {
	for _, token := range tokens {
		p.initClient(ctx, NewClient(token, p.http), token)
	}
}

// initClient validates one token's client and adds it to the pool,
// replacing an invalid token with a freshly created account.
func (p *Pool) initClient(ctx context.Context, client *Client, token string) {
	if len(token) != tokenLength {
		p.logger.Warn("telegraph token looks invalid, creating an account instead")
		if err := client.CreateAccount(ctx, accountShortName, accountAuthorName, ""); err != nil {
			p.logger.Warn("cannot set up telegraph account", "error", err)
			return
		}
	} else if _, err := client.GetAccountInfo(ctx); err != nil {
		var apiErr *Error
		if !errors.As(err, &apiErr) {
			p.logger.Warn("cannot set up telegraph account", "error", err)
			return
		}
		p.logger.Warn("telegraph token rejected, creating an account instead", "error", err)
		if err := client.CreateAccount(ctx, accountShortName, accountAuthorName, ""); err != nil {
			p.logger.Warn("cannot set up telegraph account", "error", err)
			return
		}
	}

	p.mu.Lock()
	p.accounts = append(p.accounts, &account{client: client, logger: p.logger})
	p.mu.Unlock()
}

// Valid reports whether the pool has at least one usable account.
func (p *Pool) Valid() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.accounts) > 0
}

// Count returns the number of usable accounts.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.accounts)
}

// next returns the next account round-robin, or nil when the pool is empty.
func (p *Pool) next() *account {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.accounts) == 0 {
		return nil
	}
	if p.curr >= len(p.accounts) {
		p.curr = 0
	}
	acct := p.accounts[p.curr]
	p.curr++
	return acct
}

// Draft is the material for one Telegraph page.
type Draft struct {
	// Title is the entry title.
	Title string

	// FeedTitle and Author attribute the page; Author is appended when it
	// is not already part of the feed title.
	FeedTitle string
	Author    string

	// Link is the canonical source URL, used as author URL and appended as
	// a source reference.
	Link string

	// ContentHTML is the raw entry HTML; it is sanitized before publishing.
	ContentHTML string
}

// Publish sanitizes the draft and creates a Telegraph page, rotating
// accounts and honoring flood control. Returns the page URL.
func (p *Pool) Publish(ctx context.Context, d Draft) (string, error) {
	if !p.Valid() {
		return "", ErrNoAccounts
	}

	body := d.ContentHTML
	if d.Link != "" {
		body += fmt.Sprintf(`<br><br><a href=%q>Source</a>`, d.Link)
	}

	content, err := sanitizeHTML(body)
	if err != nil {
		return "", fmt.Errorf("telegraph: sanitize content: %w", err)
	}

	title := d.Title
	if title == "" {
		title = d.FeedTitle
	}

	authorName := d.FeedTitle
	if d.Author != "" && !strings.Contains(d.FeedTitle, d.Author) {
		authorName = fmt.Sprintf("%s (%s)", d.FeedTitle, d.Author)
	}

	var lastErr error
	for attempt := 0; attempt < maxPublishRetries; attempt++ {
		if attempt > 0 {
			if p.Count() > 1 {
				p.logger.Info("retrying on another telegraph account")
			} else {
				p.logger.Info("retrying telegraph publish")
			}
		}

		acct := p.next()
		if acct == nil {
			return "", ErrNoAccounts
		}

		page, err := acct.createPage(ctx,
			truncateRunes(title, 256), content,
			truncateRunes(authorName, 128), truncateRunes(d.Link, 512))
		if err == nil {
			return page.URL, nil
		}
		lastErr = err

		var apiErr *Error
		if errors.As(err, &apiErr) {
			if retryAfter, ok := apiErr.FloodWait(); ok {
				p.logger.Warn("telegraph flood control exceeded", "retry_after", retryAfter)
				acct.floodWait(retryAfter)
				continue
			}
			return "", err // other API errors are not retryable
		}

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		p.logger.Warn("telegraph publish failed, will retry", "error", err)
	}

	return "", fmt.Errorf("telegraph: publish failed after %d attempts: %w", maxPublishRetries, lastErr)
}

// truncateRunes clips s to at most n runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
