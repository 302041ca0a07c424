// Package engine is the facade over the relational store holding a loaded dataset.
// It creates the warehouse schema, loads exported CSVs, and serves the feature,
// course, prediction and intervention queries used by the CLI and the HTTP service.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gradesim/gradesim/internal/state"
	"github.com/gradesim/gradesim/pkg/adapter"
)

var (
	// ErrUnavailable wraps every connection or query failure of the store.
	ErrUnavailable = errors.New("service unavailable")
	// ErrNotFound is returned when a referenced enrollment does not exist.
	ErrNotFound = errors.New("not found")
)

// Engine owns one store adapter, connected lazily, plus the state store.
type Engine struct {
	// Database adapter (lazy initialized)
	db          adapter.Adapter
	dbConfig    adapter.Config
	dbConnected bool
	dbMu        sync.Mutex

	// predMu serializes prediction writes.
	predMu sync.Mutex

	logger *slog.Logger
	store  state.Store
	owned  bool
}

// Config holds engine configuration.
type Config struct {
	// Target is the store connection configuration. Type defaults to duckdb.
	Target adapter.Config
	// StatePath is the SQLite state database path. Empty uses an in-memory database.
	StatePath string
	// Store overrides StatePath with an already open state store.
	Store state.Store
	// Adapter overrides Target with an already connected adapter.
	Adapter adapter.Adapter
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine. The store adapter is only connected on first use.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	e := &Engine{
		dbConfig: cfg.Target,
		logger:   logger,
		store:    cfg.Store,
	}
	if e.dbConfig.Type == "" {
		e.dbConfig.Type = "duckdb"
	}
	if cfg.Adapter != nil {
		e.db = cfg.Adapter
		e.dbConnected = true
	}

	if e.store == nil {
		path := cfg.StatePath
		if path == "" {
			path = ":memory:"
		}
		store := state.NewSQLiteStore(logger)
		if err := store.Open(ctx, path); err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		e.store = store
		e.owned = true
	}

	logger.Debug("engine initialized", "target", e.dbConfig.Type)
	return e, nil
}

// ensureDBConnected lazily connects to the store.
func (e *Engine) ensureDBConnected(ctx context.Context) error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if e.dbConnected {
		return nil
	}

	e.logger.Debug("connecting to database", "adapter_type", e.dbConfig.Type)

	db, err := adapter.NewAdapter(e.dbConfig, e.logger)
	if err != nil {
		return fmt.Errorf("failed to create database adapter: %w", err)
	}
	if err := db.Connect(ctx, e.dbConfig); err != nil {
		return fmt.Errorf("failed to connect to database: %w: %w", ErrUnavailable, err)
	}

	e.db = db
	e.dbConnected = true
	return nil
}

// Adapter returns the connected store adapter.
func (e *Engine) Adapter(ctx context.Context) (adapter.Adapter, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	return e.db, nil
}

// StateStore returns the state store.
func (e *Engine) StateStore() state.Store {
	return e.store
}

// Ping checks that the store is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.ensureDBConnected(ctx); err != nil {
		return err
	}
	if err := e.db.DB().PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close releases the store connection and, when owned, the state store.
func (e *Engine) Close() error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	var errs []error
	if e.db != nil {
		errs = append(errs, e.db.Close())
		e.db = nil
		e.dbConnected = false
	}
	if e.owned && e.store != nil {
		errs = append(errs, e.store.Close())
	}
	return errors.Join(errs...)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
