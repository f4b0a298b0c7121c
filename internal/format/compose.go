// Package format composes the outbound Telegram message for a feed entry:
// a short entry is inlined, a long one is published to Telegraph and linked.
package format

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/telefeed/telefeed/internal/fetch"
	"github.com/telefeed/telefeed/internal/telegraph"
)

const (
	// inlineLimit is the largest flattened entry text that is inlined in
	// the Telegram message instead of going to Telegraph.
	inlineLimit = 1000

	// captionLimit is the Bot API limit for photo captions.
	captionLimit = 1024
)

// Publisher publishes long-form content, returning a page URL.
// Satisfied by *telegraph.Pool.
type Publisher interface {
	Valid() bool
	Publish(ctx context.Context, d telegraph.Draft) (string, error)
}

// Rendered is a composed outbound message.
type Rendered struct {
	// Text is HTML-formatted message text.
	Text string

	// PhotoURL, when non-empty, makes the message a photo with Text as its
	// caption.
	PhotoURL string

	// TelegraphURL is set when the entry was published to Telegraph.
	TelegraphURL string
}

// Composer renders feed entries into Telegram messages.
type Composer struct {
	publisher Publisher // nil when Telegraph is not configured
	logger    *slog.Logger
}

// NewComposer creates a Composer. publisher may be nil, in which case long
// entries are truncated instead of published.
func NewComposer(publisher Publisher, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{publisher: publisher, logger: logger}
}

// Render composes the message for one entry of the named feed.
func (c *Composer) Render(ctx context.Context, feedName, feedTitle string, item fetch.Item) Rendered {
	title := item.Title
	if title == "" {
		title = feedTitle
	}

	header := fmt.Sprintf("<b>%s</b>\n<i>%s</i>\n\n", html.EscapeString(title), html.EscapeString(feedName))
	footer := ""
	if item.Link != "" {
		footer = fmt.Sprintf("\n\n<a href=%q>Source</a>", item.Link)
	}

	text := StripHTML(item.ContentHTML)

	if len([]rune(text)) <= inlineLimit {
		r := Rendered{Text: header + html.EscapeString(text) + footer}
		if item.ImageURL != "" && len([]rune(r.Text)) <= captionLimit {
			r.PhotoURL = item.ImageURL
		}
		return r
	}

	if c.publisher != nil && c.publisher.Valid() {
		pageURL, err := c.publisher.Publish(ctx, telegraph.Draft{
			Title:       title,
			FeedTitle:   feedTitle,
			Author:      item.Author,
			Link:        item.Link,
			ContentHTML: item.ContentHTML,
		})
		if err == nil {
			r := Rendered{
				Text:         header + fmt.Sprintf("<a href=%q>Read on Telegraph</a>", pageURL) + footer,
				TelegraphURL: pageURL,
			}
			if item.ImageURL != "" && len([]rune(r.Text)) <= captionLimit {
				r.PhotoURL = item.ImageURL
			}
			return r
		}
		c.logger.Warn("telegraph publish failed, truncating entry instead",
			"feed", feedName,
			"error", err,
		)
	}

	snippet := truncate(text, inlineLimit) + "…"
	return Rendered{Text: header + html.EscapeString(snippet) + footer}
}

// truncate clips s to at most n runes, cutting at a word boundary when one
// is nearby.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	runes = runes[:n]
	for i := len(runes) - 1; i > n*3/4; i-- {
		if runes[i] == ' ' {
			runes = runes[:i]
			break
		}
	}
	return strings.TrimRight(string(runes), " \n")
}
