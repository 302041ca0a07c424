package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrNotConnected is returned by operations issued before Connect.
var ErrNotConnected = errors.New("database connection not established")

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed it in concrete adapters to get Close, Exec, Query and DB.
type BaseSQLAdapter struct {
	Conn   *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.Conn != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		err := b.Conn.Close()
		b.Conn = nil
		return err
	}
	return nil
}

// DB returns the underlying connection.
func (b *BaseSQLAdapter) DB() *sql.DB {
	return b.Conn
}

// Exec executes a statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, query string, args ...any) error {
	if b.Conn == nil {
		return ErrNotConnected
	}
	if _, err := b.Conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a statement that returns rows.
func (b *BaseSQLAdapter) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if b.Conn == nil {
		return nil, ErrNotConnected
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := b.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rows, nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.Conn != nil
}

// ParseQualifiedName splits a table reference into schema and name.
func ParseQualifiedName(table string, d Dialect) (schema, name string) {
	if parts := strings.Split(table, "."); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return d.DefaultSchema, table
}

// GetTableMetadataCommon reads column metadata from information_schema.columns.
func (b *BaseSQLAdapter) GetTableMetadataCommon(ctx context.Context, table string, d Dialect) (*Metadata, error) {
	if b.Conn == nil {
		return nil, ErrNotConnected
	}

	schema, tableName := ParseQualifiedName(table, d)

	//nolint:gosec // placeholders come from the dialect
	query := fmt.Sprintf(`
		SELECT
			column_name,
			data_type,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = %s AND table_name = %s
		ORDER BY ordinal_position
	`, d.Placeholder(1), d.Placeholder(2))

	rows, err := b.Conn.QueryContext(ctx, query, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s", schema, tableName) //nolint:gosec // names come from metadata
	var rowCount int64
	if err := b.Conn.QueryRowContext(ctx, countQuery).Scan(&rowCount); err != nil {
		rowCount = 0
	}

	return &Metadata{
		Schema:   schema,
		Name:     tableName,
		Columns:  columns,
		RowCount: rowCount,
	}, nil
}
