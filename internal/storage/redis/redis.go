// Package redis implements the subscription store on a Redis server,
// enabled by the REDISHOST deployment variable. State written by the SQLite
// backend is not migrated when switching over.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/telefeed/telefeed/internal/core"
	"github.com/telefeed/telefeed/internal/storage"
)

const defaultPort = "6379"

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ storage.Store    = (*store)(nil)
	_ core.Provisioner = (*Module)(nil)
	_ core.Validator   = (*Module)(nil)
	_ core.Stopper     = (*Module)(nil)
)

// Module wires the Redis store into the module lifecycle.
type Module struct {
	client *redis.Client
	store  *store
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "storage.redis",
		New: func() core.Module { return &Module{} },
	}
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger

	cfg := ctx.Config.Redis
	addr := cfg.Host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, defaultPort)
	}

	m.client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	m.store = &store{client: m.client}

	ctx.RegisterService("storage.store", m.store)

	m.logger.Info("redis store provisioned", "addr", addr, "db", cfg.DB)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping failed: %w", err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("redis store stopping")
	return m.client.Close()
}
