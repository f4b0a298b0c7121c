package telegraph

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/telefeed/telefeed/internal/core"
	"github.com/telefeed/telefeed/internal/fetch"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Provisioner = (*Module)(nil)
	_ core.Validator   = (*Module)(nil)
	_ core.Starter     = (*Module)(nil)
)

// Module wires the Telegraph account pool into the module lifecycle.
// It is only loaded when TELEGRAPH_TOKEN is configured.
type Module struct {
	appCtx *core.AppContext
	logger *slog.Logger
	pool   *Pool
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "telegraph",
		New: func() core.Module { return &Module{} },
	}
}

// Provision implements core.Provisioner. Telegraph traffic shares the feed
// proxy: it is content-side egress, like feed fetching.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.appCtx = ctx
	m.logger = ctx.Logger

	httpClient, err := fetch.HTTPClient(ctx.Config.FeedProxy, 10*time.Second)
	if err != nil {
		return err
	}

	m.pool = NewPool(httpClient, ctx.Logger)
	ctx.RegisterService("telegraph.pool", m.pool)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if len(m.appCtx.Config.TelegraphTokens) == 0 {
		return errors.New("telegraph: no tokens configured")
	}
	return nil
}

// Start implements core.Starter. Token validation talks to the API and
// replaces invalid tokens with fresh accounts, making startup slower but
// the pool dependable.
func (m *Module) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	m.pool.Init(ctx, m.appCtx.Config.TelegraphTokens)

	if !m.pool.Valid() {
		m.logger.Error("no telegraph account could be set up, long content will be truncated instead")
		return nil
	}

	m.logger.Info("telegraph pool ready", "accounts", m.pool.Count())
	return nil
}
