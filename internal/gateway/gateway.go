// Package gateway exposes the local HTTP surface: health and status
// endpoints, Prometheus metrics, and a WebSocket stream of delivery events.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/telefeed/telefeed/internal/core"
	"github.com/telefeed/telefeed/internal/monitor"
)

func init() {
	core.RegisterModule(&Gateway{})
}

const shutdownTimeout = 10 * time.Second

// Gateway is the HTTP gateway module. It is a leaf module, nothing
// imports it.
type Gateway struct {
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	hub       *EventHub
	bind      string
	authToken string
	startedAt time.Time

	// Resolved lazily at Start() via the service registry.
	status    statusProvider
	telegraph availability
}

// statusProvider is the monitor-side status surface.
type statusProvider interface {
	Status() monitor.Snapshot
}

// availability is the telegraph-pool health surface.
type availability interface {
	Valid() bool
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.bind = ctx.Config.Gateway.Bind
	g.authToken = ctx.Config.Gateway.AuthToken
	g.hub = NewEventHub(ctx.Logger)

	// Register the hub so the monitor can publish without importing us.
	ctx.RegisterService("gateway.events", g.hub)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.bind)
	}
	return nil
}

// Start implements core.Starter. It resolves the monitor status service and
// starts the HTTP server.
func (g *Gateway) Start() error {
	if svc, ok := g.appCtx.Service("monitor.status"); ok {
		if status, ok := svc.(statusProvider); ok {
			g.status = status
		}
	}
	if svc, ok := g.appCtx.Service("telegraph.pool"); ok {
		if pool, ok := svc.(availability); ok {
			g.telegraph = pool
		}
	}

	g.startedAt = time.Now()
	g.server = &http.Server{
		Addr:         g.bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	g.hub.Close()
	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
