// Package duckdb provides a DuckDB store adapter.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gradesim/gradesim/pkg/adapter"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Dialect is the DuckDB dialect.
var Dialect = adapter.Dialect{Name: "duckdb", DefaultSchema: "main"}

// Adapter implements adapter.Adapter for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// Dialect returns the DuckDB dialect.
func (a *Adapter) Dialect() adapter.Dialect {
	return Dialect
}

// Connect opens the DuckDB database at cfg.Database.
// An empty path or ":memory:" opens an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Database
	if path == "" {
		path = ":memory:"
	}
	if path != ":memory:" {
		path = filepath.Clean(path)
	}

	a.Logger.Debug("connecting to duckdb", slog.String("path", path))

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	for _, stmt := range settingStatements(cfg.Options) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply duckdb setting: %w", err)
		}
	}

	a.Conn = db
	a.Cfg = cfg
	return nil
}

// GetTableMetadata retrieves metadata for a specified table.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error) {
	return a.GetTableMetadataCommon(ctx, table, Dialect)
}

// LoadCSV replaces the rows of an existing table with the contents of a headered CSV file.
// DuckDB's read_csv infers column types; INSERT casts them to the table's declared types.
func (a *Adapter) LoadCSV(ctx context.Context, table string, path string) error {
	if a.Conn == nil {
		return adapter.ErrNotConnected
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	// DuckDB rejects re-inserting a key deleted in the same transaction,
	// so the DELETE commits on its own before the INSERT.
	if _, err := a.Conn.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}

	//nolint:gosec // table names come from the fixed schema
	insert := fmt.Sprintf(
		"INSERT INTO %s SELECT * FROM read_csv('%s', header = true, auto_detect = true)",
		table, escapeLiteral(absPath),
	)
	if _, err := a.Conn.ExecContext(ctx, insert); err != nil {
		return fmt.Errorf("failed to load CSV into %s: %w", table, err)
	}

	a.Logger.Debug("loaded csv", slog.String("table", table), slog.String("path", absPath))
	return nil
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
