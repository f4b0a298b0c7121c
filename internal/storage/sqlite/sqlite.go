// Package sqlite implements the default subscription store backed by a
// SQLite database inside the config directory. It uses modernc.org/sqlite
// (pure Go, no CGO) with WAL mode.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/telefeed/telefeed/internal/core"
	"github.com/telefeed/telefeed/internal/storage"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const (
	defaultDBFile      = "telefeed.db"
	defaultBusyTimeout = 5000 // milliseconds
)

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

// Module wires the SQLite store into the module lifecycle.
type Module struct {
	db     *sql.DB
	store  *store
	logger *slog.Logger
	path   string
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "storage.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Provision implements core.Provisioner. It opens the database file inside
// the data directory and registers the store for cross-module discovery.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger
	m.path = filepath.Join(ctx.DataDir, defaultDBFile)

	st, db, err := Open(m.path)
	if err != nil {
		return err
	}
	m.db = db
	m.store = st

	ctx.RegisterService("storage.store", m.store)

	m.logger.Info("sqlite store provisioned", "path", m.path)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.db.PingContext(context.TODO()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	var n int
	if err := m.db.QueryRowContext(context.TODO(), "SELECT count(*) FROM feeds").Scan(&n); err != nil {
		return fmt.Errorf("sqlite: schema check failed: %w", err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("sqlite store stopping")
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// Open opens (creating if necessary) a SQLite store at the given path.
// The database uses WAL mode, a 5 s busy timeout, and a single connection
// (SQLite serialises writes). The schema is migrated automatically.
func Open(path string) (*store, *sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	// SQLite handles one writer at a time; limit the pool to 1 connection
	// so PRAGMAs apply consistently.
	db.SetMaxOpenConns(1)

	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	return &store{db: db}, db, nil
}
