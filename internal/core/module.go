// Package core provides the module system foundation for telefeed.
package core

import "context"

// ModuleID uniquely identifies a module (e.g. "channel.telegram").
type ModuleID string

// Module is the minimal interface every telefeed module implements.
type Module interface {
	// ModuleInfo returns the module's ID and constructor.
	ModuleInfo() ModuleInfo
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID is the unique module identifier.
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// Provisioner is implemented by modules that need setup after instantiation.
// This is where modules read their configuration from the AppContext, apply
// defaults, open resources, and register services for other modules.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator is implemented by modules that can verify their configuration
// is complete and correct. Called after Provision().
// Validate should be read-only and must not mutate module state.
type Validator interface {
	Validate() error
}

// Starter is implemented by modules that need to start background work
// (goroutines, listeners, pollers). Called after all modules are
// provisioned and validated.
type Starter interface {
	Start() error
}

// Stopper is implemented by modules that need to clean up resources.
// Called during shutdown in reverse order of Start().
type Stopper interface {
	Stop(ctx context.Context) error
}
