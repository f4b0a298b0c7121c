package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/telefeed/telefeed/internal/fetch"
	"github.com/telefeed/telefeed/internal/storage"
)

const (
	// maxDeliveriesPerFeed bounds how many entries a single feed may push
	// in one cycle. A feed that suddenly exposes hundreds of unseen entries
	// (new subscription restored from backup, feed rewrote its GUIDs) would
	// otherwise flood the chat; the rest is marked delivered silently.
	maxDeliveriesPerFeed = 15

	// errorNotifyThreshold is the consecutive-failure count at which the
	// manager is told a feed looks dead. Notified once per outage.
	errorNotifyThreshold = 10
)

// pollJob runs one poll cycle per tick.
type pollJob struct {
	monitor *Monitor
	delay   time.Duration
}

func (j *pollJob) Name() string { return "monitor.poll" }

func (j *pollJob) Schedule() string {
	return fmt.Sprintf("@every %ds", int(j.delay.Seconds()))
}

func (j *pollJob) Run(ctx context.Context) error {
	return j.monitor.runCycle(ctx)
}

// runCycle polls every subscription once and delivers unseen entries.
func (m *Monitor) runCycle(ctx context.Context) error {
	m.mu.RLock()
	store := m.store
	m.mu.RUnlock()
	if store == nil {
		return ErrNotReady
	}

	started := time.Now()
	feeds, err := store.Feeds(ctx)
	if err != nil {
		return fmt.Errorf("list feeds: %w", err)
	}

	cycleErrors := 0
	for i := range feeds {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := m.pollFeed(ctx, store, &feeds[i]); err != nil {
			cycleErrors++
			m.logger.Warn("feed poll failed",
				"feed", feeds[i].Name,
				"error", err,
				"consecutive_errors", feeds[i].ErrorCount,
			)
		}
	}

	elapsed := time.Since(started)
	cyclesTotal.Inc()
	m.statsMu.Lock()
	m.snapshot.Feeds = len(feeds)
	m.snapshot.LastCycleAt = started
	m.snapshot.LastCycleDuration = elapsed
	m.snapshot.LastCycleErrors = cycleErrors
	m.statsMu.Unlock()

	m.publish(Event{Type: "cycle"})
	m.logger.Debug("poll cycle finished",
		"feeds", len(feeds),
		"errors", cycleErrors,
		"duration", elapsed,
	)
	return nil
}

// pollFeed fetches one feed and forwards its unseen entries. The feed's
// polling state is persisted on both success and failure.
func (m *Monitor) pollFeed(ctx context.Context, store storage.Store, feed *storage.Feed) error {
	fetchStart := time.Now()
	result, err := m.fetcher.Fetch(ctx, feed.URL, feed.ETag, feed.LastModified)
	fetchDuration.Observe(time.Since(fetchStart).Seconds())
	feed.LastPolledAt = time.Now()

	if err != nil {
		fetchErrors.Inc()
		feed.ErrorCount++
		m.publish(Event{Type: "error", Feed: feed.Name, Error: err.Error()})
		if feed.ErrorCount == errorNotifyThreshold {
			m.notifyFeedDown(ctx, feed, err)
		}
		if saveErr := store.SaveFeed(ctx, feed); saveErr != nil {
			m.logger.Error("save feed state", "feed", feed.Name, "error", saveErr)
		}
		return err
	}

	feed.ErrorCount = 0
	feed.ETag = result.ETag
	feed.LastModified = result.LastModified

	if !result.NotModified {
		if err := m.deliverNew(ctx, store, feed, result); err != nil {
			m.logger.Error("deliver entries", "feed", feed.Name, "error", err)
		}
	}

	return store.SaveFeed(ctx, feed)
}

// deliverNew sends unseen entries oldest-first so the chat reads in
// chronological order, then records them as delivered.
func (m *Monitor) deliverNew(ctx context.Context, store storage.Store, feed *storage.Feed, result *fetch.Result) error {
	type pending struct {
		id   string
		item fetch.Item
	}

	// Feeds list newest first; walk backwards to deliver oldest first.
	var fresh []pending
	for i := len(result.Items) - 1; i >= 0; i-- {
		item := result.Items[i]
		id := storage.ItemID(item.GUID, item.Link, item.Title, item.PublishedRaw)
		sent, err := store.WasSent(ctx, feed.Name, id)
		if err != nil {
			return err
		}
		if !sent {
			fresh = append(fresh, pending{id: id, item: item})
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	// Overflow beyond the per-cycle cap is recorded without delivery.
	var skipped []string
	if len(fresh) > maxDeliveriesPerFeed {
		for _, p := range fresh[maxDeliveriesPerFeed:] {
			skipped = append(skipped, p.id)
		}
		m.logger.Warn("feed burst capped",
			"feed", feed.Name,
			"new", len(fresh),
			"delivered", maxDeliveriesPerFeed,
		)
		fresh = fresh[:maxDeliveriesPerFeed]
	}

	delivered := make([]string, 0, len(fresh))
	for _, p := range fresh {
		if ctx.Err() != nil {
			break
		}
		if err := m.deliver(ctx, feed, result.FeedTitle, p.item); err != nil {
			deliveryErrors.Inc()
			m.publish(Event{Type: "error", Feed: feed.Name, Title: p.item.Title, Error: err.Error()})
			m.logger.Error("send entry",
				"feed", feed.Name,
				"title", p.item.Title,
				"error", err,
			)
			// Not marked sent; retried next cycle.
			continue
		}
		delivered = append(delivered, p.id)
	}

	toMark := append(delivered, skipped...)
	if len(toMark) == 0 {
		return nil
	}
	return store.MarkSent(ctx, feed.Name, toMark)
}

// deliver renders one entry and sends it to the target chat.
func (m *Monitor) deliver(ctx context.Context, feed *storage.Feed, feedTitle string, item fetch.Item) error {
	m.mu.RLock()
	sender := m.sender
	composer := m.composer
	m.mu.RUnlock()
	if sender == nil || composer == nil {
		return ErrNotReady
	}

	rendered := composer.Render(ctx, feed.Name, feedTitle, item)

	var err error
	if rendered.PhotoURL != "" {
		err = sender.SendPhoto(ctx, rendered.PhotoURL, rendered.Text)
	} else {
		err = sender.SendHTML(ctx, rendered.Text)
	}
	if err != nil {
		return err
	}

	itemsDelivered.Inc()
	m.addDelivered()
	m.publish(Event{
		Type:         "delivered",
		Feed:         feed.Name,
		Title:        item.Title,
		Link:         item.Link,
		TelegraphURL: rendered.TelegraphURL,
	})
	return nil
}

func (m *Monitor) addDelivered() {
	m.statsMu.Lock()
	m.delivered++
	m.statsMu.Unlock()
}

// notifyFeedDown tells the manager a feed has been failing for a while.
func (m *Monitor) notifyFeedDown(ctx context.Context, feed *storage.Feed, cause error) {
	m.mu.RLock()
	sender := m.sender
	m.mu.RUnlock()
	if sender == nil {
		return
	}
	text := fmt.Sprintf("Feed %q has failed %d polls in a row.\nURL: %s\nLast error: %v",
		feed.Name, feed.ErrorCount, feed.URL, cause)
	if err := sender.NotifyManager(ctx, text); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Error("notify manager", "error", err)
	}
}
