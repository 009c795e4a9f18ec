// Package app wires configuration into a running sync engine: it opens the
// configured store, loads extra sheet definitions and builds the connector
// factory and orchestrator. The HTTP server and the CLI both start here.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/sheetsync/internal/config"
	"github.com/JonMunkholm/sheetsync/internal/connector"
	"github.com/JonMunkholm/sheetsync/internal/core"
	_ "github.com/JonMunkholm/sheetsync/internal/core/sheets" // Register built-in sheets
	"github.com/JonMunkholm/sheetsync/internal/store/memory"
	"github.com/JonMunkholm/sheetsync/internal/store/postgres"
	"github.com/JonMunkholm/sheetsync/internal/store/sqlite"
)

// App holds the wired engine and the resources it owns.
type App struct {
	Config  *config.Config
	Store   core.Store
	Service *core.Service
	Cache   *core.LastRunCache

	closers []func()
}

// New opens the store selected by cfg.Database.Driver and builds the
// orchestrator. Call Close when done.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Cache: &core.LastRunCache{}}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store

	if cfg.Source.RegistryFile != "" {
		keys, err := core.LoadRegistryFile(cfg.Source.RegistryFile)
		if err != nil {
			a.Close()
			return nil, err
		}
		slog.Info("sheet registry file loaded", "path", cfg.Source.RegistryFile, "sheets", keys)
	}

	a.Service = core.NewService(store, connector.NewFactory(cfg.Source), a.Cache, core.OptionsFromConfig(cfg))

	slog.Info("sheets registered", "count", core.SheetCount(), "keys", core.Keys())
	if !a.Service.Available(ctx) {
		slog.Warn("spreadsheet source not configured, sync endpoints will answer 503", "source", cfg.Source.Kind)
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context) (core.Store, error) {
	db := a.Config.Database

	switch db.Driver {
	case config.DriverPostgres:
		pool, err := postgres.Open(ctx, db)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)

		store := postgres.New(pool)
		if db.ApplySchema {
			if err := store.ApplySchema(ctx); err != nil {
				return nil, err
			}
		}
		return store, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, db.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := store.Close(); err != nil {
				slog.Warn("close sqlite store", "error", err)
			}
		})
		slog.Info("opened sqlite store", "path", db.SQLitePath)
		return store, nil

	case config.DriverMemory:
		slog.Warn("using in-memory store, data is lost on exit")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", db.Driver)
	}
}

// Close releases the store. It is safe to call more than once.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
