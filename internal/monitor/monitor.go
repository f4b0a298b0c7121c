// Package monitor runs the feed polling loop: every DELAY seconds each
// subscribed feed is fetched, new entries are detected against the stored
// delivery history, and each new entry is forwarded to the target chat.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/telefeed/telefeed/internal/config"
	"github.com/telefeed/telefeed/internal/core"
	"github.com/telefeed/telefeed/internal/cron"
	"github.com/telefeed/telefeed/internal/fetch"
	"github.com/telefeed/telefeed/internal/format"
	"github.com/telefeed/telefeed/internal/storage"
	"github.com/telefeed/telefeed/internal/telegram"
)

func init() {
	core.RegisterModule(&Monitor{})
}

// Compile-time interface guards.
var (
	_ telegram.Subscriptions = (*Monitor)(nil)
	_ core.Provisioner       = (*Monitor)(nil)
	_ core.Validator         = (*Monitor)(nil)
	_ core.Starter           = (*Monitor)(nil)
	_ core.Stopper           = (*Monitor)(nil)
)

// ErrNotReady is returned by subscription operations before the module has
// bound its dependencies.
var ErrNotReady = errors.New("monitor: still starting up")

// Event is a delivery-stream event consumed by the gateway's WebSocket hub.
type Event struct {
	Type         string    `json:"type"` // "delivered", "error", "cycle", "subscribed", "unsubscribed"
	Feed         string    `json:"feed,omitempty"`
	Title        string    `json:"title,omitempty"`
	Link         string    `json:"link,omitempty"`
	TelegraphURL string    `json:"telegraph_url,omitempty"`
	Error        string    `json:"error,omitempty"`
	Time         time.Time `json:"time"`
}

// EventSink receives monitor events. Implemented by the gateway event hub.
type EventSink interface {
	Publish(Event)
}

// Snapshot is a point-in-time view of the monitor for the health and
// status endpoints.
type Snapshot struct {
	Feeds             int           `json:"feeds"`
	LastCycleAt       time.Time     `json:"last_cycle_at"`
	LastCycleDuration time.Duration `json:"last_cycle_duration_ns"`
	LastCycleErrors   int           `json:"last_cycle_errors"`
	Delivered         int64         `json:"delivered"`
}

// Monitor is the polling module. It also implements the subscription
// management surface driven by manager commands.
type Monitor struct {
	appCtx *core.AppContext
	logger *slog.Logger
	sched  *cron.Scheduler

	mu       sync.RWMutex
	store    storage.Store
	sender   *telegram.Sender
	composer *format.Composer
	fetcher  *fetch.Fetcher
	events   EventSink

	statsMu   sync.Mutex
	snapshot  Snapshot
	delivered int64
}

// ModuleInfo implements core.Module.
func (m *Monitor) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "monitor",
		New: func() core.Module { return &Monitor{} },
	}
}

// Provision implements core.Provisioner. Dependencies living in modules
// that provision later are resolved at Start().
func (m *Monitor) Provision(ctx *core.AppContext) error {
	m.appCtx = ctx
	m.logger = ctx.Logger
	m.sched = cron.NewScheduler(ctx.Logger)

	userAgent := ctx.Config.UserAgent
	if userAgent == config.DefaultUserAgent {
		userAgent = userAgent + "/" + ctx.Version
	}
	fetcher, err := fetch.New(ctx.Config.FeedProxy, userAgent)
	if err != nil {
		return err
	}
	m.fetcher = fetcher

	ctx.RegisterService("monitor.subscriptions", m)
	ctx.RegisterService("monitor.status", m)
	return nil
}

// Validate implements core.Validator.
func (m *Monitor) Validate() error {
	if m.appCtx.Config.Delay <= 0 {
		return errors.New("monitor: poll delay must be positive")
	}
	return nil
}

// Start implements core.Starter. It binds cross-module services and starts
// the poll schedule.
func (m *Monitor) Start() error {
	store, err := resolve[storage.Store](m.appCtx, "storage.store")
	if err != nil {
		return err
	}
	sender, err := resolve[*telegram.Sender](m.appCtx, "telegram.sender")
	if err != nil {
		return err
	}

	// Telegraph and the event hub are optional.
	var publisher format.Publisher
	if svc, ok := m.appCtx.Service("telegraph.pool"); ok {
		if pool, ok := svc.(format.Publisher); ok {
			publisher = pool
		}
	}
	var events EventSink
	if svc, ok := m.appCtx.Service("gateway.events"); ok {
		if sink, ok := svc.(EventSink); ok {
			events = sink
		}
	}

	m.mu.Lock()
	m.store = store
	m.sender = sender
	m.composer = format.NewComposer(publisher, m.logger)
	m.events = events
	m.mu.Unlock()

	delay := m.appCtx.Config.Delay
	if err := m.sched.RegisterJob(&pollJob{monitor: m, delay: delay}); err != nil {
		return err
	}
	if err := m.sched.Start(); err != nil {
		return err
	}

	m.logger.Info("feed monitor started", "delay", delay)
	return nil
}

// Stop implements core.Stopper.
func (m *Monitor) Stop(ctx context.Context) error {
	return m.sched.Stop(ctx)
}

// Status returns the current monitor snapshot.
func (m *Monitor) Status() Snapshot {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	snap := m.snapshot
	snap.Delivered = m.delivered
	return snap
}

// publish forwards an event to the hub, if one is attached.
func (m *Monitor) publish(ev Event) {
	m.mu.RLock()
	events := m.events
	m.mu.RUnlock()
	if events != nil {
		ev.Time = time.Now()
		events.Publish(ev)
	}
}

// resolve fetches a typed service from the registry.
func resolve[T any](ctx *core.AppContext, name string) (T, error) {
	var zero T
	svc, ok := ctx.Service(name)
	if !ok {
		return zero, fmt.Errorf("monitor: service %s not registered", name)
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("monitor: service %s has wrong type %T", name, svc)
	}
	return typed, nil
}
