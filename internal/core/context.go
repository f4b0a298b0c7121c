package core

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/telefeed/telefeed/internal/config"
)

// AppContext carries shared resources available to modules during
// provisioning and at runtime.
type AppContext struct {
	// Logger for the current module scope.
	Logger *slog.Logger

	// Config is the fully resolved application configuration.
	Config *config.Config

	// DataDir is the directory holding persistent state (the mounted
	// "config" directory in container deployments).
	DataDir string

	// Version is the build version string, for /version and User-Agent use.
	Version string

	parentLogger *slog.Logger
	services     *serviceRegistry
}

// serviceRegistry is shared by all module-scoped contexts derived from the
// same root context.
type serviceRegistry struct {
	mu       sync.RWMutex
	services map[string]any
}

// NewAppContext creates a new AppContext with the given base logger,
// configuration, and data directory.
func NewAppContext(logger *slog.Logger, cfg *config.Config, dataDir, version string) *AppContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppContext{
		Logger:       logger,
		Config:       cfg,
		DataDir:      dataDir,
		Version:      version,
		parentLogger: logger,
		services:     &serviceRegistry{services: make(map[string]any)},
	}
}

// ForModule returns a new AppContext scoped to the given module ID,
// with a child logger that includes the module ID.
func (ctx *AppContext) ForModule(id ModuleID) *AppContext {
	return &AppContext{
		Logger:       ctx.parentLogger.With("module", string(id)),
		Config:       ctx.Config,
		DataDir:      ctx.DataDir,
		Version:      ctx.Version,
		parentLogger: ctx.parentLogger,
		services:     ctx.services,
	}
}

// RegisterService publishes a value under the given name for cross-module
// discovery. Registering the same name twice overwrites the earlier value.
func (ctx *AppContext) RegisterService(name string, svc any) {
	ctx.services.mu.Lock()
	defer ctx.services.mu.Unlock()
	ctx.services.services[name] = svc
}

// Service returns the service registered under name, or false if absent.
func (ctx *AppContext) Service(name string) (any, bool) {
	ctx.services.mu.RLock()
	defer ctx.services.mu.RUnlock()
	svc, ok := ctx.services.services[name]
	return svc, ok
}

// LoadModule instantiates and provisions a module by its ID.
// It calls Provision and Validate if the module implements those
// interfaces. The lifecycle order is:
//
//	New() → Provision() → Validate()
//
// Returns the provisioned module instance ready for use.
func (ctx *AppContext) LoadModule(id string) (Module, error) {
	info, ok := GetModule(id)
	if !ok {
		return nil, fmt.Errorf("unknown module: %s", id)
	}

	mod := info.New()

	if p, ok := mod.(Provisioner); ok {
		moduleCtx := ctx.ForModule(info.ID)
		if err := p.Provision(moduleCtx); err != nil {
			return nil, fmt.Errorf("provisioning module %s: %w", id, err)
		}
	}

	if v, ok := mod.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("validating module %s: %w", id, err)
		}
	}

	return mod, nil
}
