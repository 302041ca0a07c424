// Package adapter defines the relational store contract used to load and query
// a generated dataset.
//
// Concrete adapters live in pkg/adapters/ subdirectories and register themselves
// by type name in their init() functions.
package adapter

import (
	"context"
	"database/sql"
	"fmt"
)

// Config holds the connection settings of a target store.
type Config struct {
	// Type is the adapter type name ("duckdb", "postgres").
	Type string `koanf:"type"`
	// Database is a file path for DuckDB or a database name for PostgreSQL.
	Database string `koanf:"database"`
	// Schema is the default schema. Empty uses the dialect default.
	Schema   string            `koanf:"schema"`
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	User     string            `koanf:"user"`
	Password string            `koanf:"password"`
	Options  map[string]string `koanf:"options"`
}

// Column describes a single table column.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// Metadata describes a table.
type Metadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// Dialect carries the SQL differences the engine cares about.
type Dialect struct {
	Name          string
	DefaultSchema string
}

// Placeholder formats the n-th (1-based) bind parameter. Both supported stores accept $N.
func (d Dialect) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// Adapter is the interface every store adapter implements.
type Adapter interface {
	// Connect establishes a connection using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection and releases resources.
	Close() error

	// Exec executes a statement that doesn't return rows.
	Exec(ctx context.Context, query string, args ...any) error

	// Query executes a statement that returns rows. The caller closes the rows.
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)

	// GetTableMetadata retrieves column and row count metadata for a table.
	GetTableMetadata(ctx context.Context, table string) (*Metadata, error)

	// LoadCSV replaces the contents of an existing table with the rows of a
	// headered CSV file whose columns match the table's column order.
	LoadCSV(ctx context.Context, table string, path string) error

	// Dialect returns the adapter's dialect.
	Dialect() Dialect

	// DB returns the underlying connection, or nil before Connect.
	DB() *sql.DB
}
