package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/telefeed/telefeed/internal/monitor"
)

// Interface guard.
var _ monitor.EventSink = (*EventHub)(nil)

const (
	// maxSubscribers caps concurrent WebSocket clients.
	maxSubscribers = 16

	// subscriberBuffer is the per-client event queue. A client that cannot
	// keep up is dropped rather than blocking the monitor.
	subscriberBuffer = 64

	writeTimeout = 5 * time.Second
)

// EventHub broadcasts monitor events to WebSocket subscribers on
// GET /ws/events. It implements monitor.EventSink.
type EventHub struct {
	logger *slog.Logger

	mu          sync.Mutex
	subscribers map[chan monitor.Event]struct{}
	closed      bool
}

// NewEventHub returns an empty hub.
func NewEventHub(logger *slog.Logger) *EventHub {
	return &EventHub{
		logger:      logger,
		subscribers: make(map[chan monitor.Event]struct{}),
	}
}

// Publish implements monitor.EventSink. Slow subscribers are disconnected.
func (h *EventHub) Publish(ev monitor.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			delete(h.subscribers, ch)
			close(ch)
		}
	}
}

// Len returns the current subscriber count.
func (h *EventHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close disconnects all subscribers and rejects new ones.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subscribers {
		delete(h.subscribers, ch)
		close(ch)
	}
}

func (h *EventHub) subscribe() (chan monitor.Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || len(h.subscribers) >= maxSubscribers {
		return nil, false
	}
	ch := make(chan monitor.Event, subscriberBuffer)
	h.subscribers[ch] = struct{}{}
	return ch, true
}

func (h *EventHub) unsubscribe(ch chan monitor.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(ch)
	}
}

// ServeHTTP upgrades the request and streams events until the client
// disconnects or the hub closes.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.subscribe()
	if !ok {
		http.Error(w, "too many subscribers", http.StatusServiceUnavailable)
		return
	}
	defer h.unsubscribe(ch)

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()

	// Drain incoming frames so pings are answered and closes noticed.
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := h.write(ctx, conn, ev); err != nil {
				return
			}
		}
	}
}

func (h *EventHub) write(ctx context.Context, conn *websocket.Conn, ev monitor.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
