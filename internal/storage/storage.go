// Package storage defines the subscription and deduplication state store
// shared by the SQLite and Redis backends.
package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"time"
)

// SentHistoryLimit caps the number of delivered item IDs remembered per
// feed. Feeds rarely expose more than a few dozen entries at once, so a few
// hundred is enough to survive feeds that reorder or resurface old items.
const SentHistoryLimit = 400

// ErrFeedNotFound is returned when a subscription does not exist.
var ErrFeedNotFound = errors.New("storage: feed not found")

// Feed is one subscription with its per-feed polling state.
type Feed struct {
	// Name is the unique, manager-chosen subscription title.
	Name string

	// URL is the feed location.
	URL string

	// ETag and LastModified hold conditional-GET validators from the most
	// recent successful fetch.
	ETag         string
	LastModified string

	// LastPolledAt is the time of the most recent poll attempt.
	LastPolledAt time.Time

	// ErrorCount counts consecutive failed polls; reset on success.
	ErrorCount int

	// AddedAt is when the subscription was created.
	AddedAt time.Time
}

// Store is the persistence interface for subscriptions and delivered items.
// Implementations must be safe for concurrent use.
type Store interface {
	// Feeds returns all subscriptions sorted by name.
	Feeds(ctx context.Context) ([]Feed, error)

	// Feed returns the subscription with the given name, or ErrFeedNotFound.
	Feed(ctx context.Context, name string) (*Feed, error)

	// SaveFeed inserts or updates a subscription keyed by Name.
	SaveFeed(ctx context.Context, feed *Feed) error

	// DeleteFeed removes a subscription and its delivery history.
	// Returns ErrFeedNotFound if no such subscription exists.
	DeleteFeed(ctx context.Context, name string) error

	// WasSent reports whether the item was already delivered for the feed.
	WasSent(ctx context.Context, feedName, itemID string) (bool, error)

	// MarkSent records items as delivered, pruning history beyond
	// SentHistoryLimit (oldest first).
	MarkSent(ctx context.Context, feedName string, itemIDs []string) error

	// Close releases the backend.
	Close() error
}

// maxRawItemID is the longest GUID/link kept verbatim; longer values are
// hashed so storage keys stay bounded.
const maxRawItemID = 200

// ItemID derives a stable deduplication key for a feed entry: the GUID when
// present, else the link, else a digest of title and publication date.
func ItemID(guid, link, title, published string) string {
	switch {
	case guid != "":
		return clampID(guid)
	case link != "":
		return clampID(link)
	default:
		return digest(title + "\x00" + published)
	}
}

func clampID(s string) string {
	if len(s) <= maxRawItemID {
		return s
	}
	return digest(s)
}

func digest(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
