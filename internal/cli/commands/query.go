package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gradesim/gradesim/pkg/adapter"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
	Input  string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Query the loaded dataset",
		Long: `Run SQL against the relational store holding the loaded dataset.

The store has the students, courses, enroll, attendance, assess, finals and
feedback tables, the student_features view, and the intervention_logs and
predictions tables.

When invoked without arguments on a terminal, enters interactive REPL mode.`,
		Example: `  # Execute SQL directly
  gradesim query "SELECT grade, COUNT(*) FROM finals GROUP BY grade ORDER BY grade"

  # List tables and views
  gradesim query tables

  # Show the columns of the feature view
  gradesim query schema student_features

  # Output as JSON
  gradesim query "SELECT * FROM student_features LIMIT 5" --format json

  # Interactive mode
  gradesim query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, csv, md")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")

	cmd.AddCommand(newQueryTablesCommand(opts))
	cmd.AddCommand(newQueryViewsCommand(opts))
	cmd.AddCommand(newQuerySchemaCommand(opts))

	return cmd
}

// withAdapter runs fn with the connected store adapter.
func withAdapter(cmd *cobra.Command, fn func(ctx context.Context, db adapter.Adapter) error) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	db, err := cmdCtx.Engine.Adapter(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, db)
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	var sqlQuery string

	switch {
	case len(args) > 0:
		sqlQuery = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlQuery = string(content)
	case !isTerminal(cmd.InOrStdin()):
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	default:
		return withAdapter(cmd, func(ctx context.Context, db adapter.Adapter) error {
			return runQueryREPL(ctx, cmd, db, opts)
		})
	}

	sqlQuery = strings.TrimSuffix(strings.TrimSpace(sqlQuery), ";")
	if sqlQuery == "" {
		return fmt.Errorf("no SQL provided")
	}
	return withAdapter(cmd, func(ctx context.Context, db adapter.Adapter) error {
		return executeAndRender(ctx, cmd.OutOrStdout(), db, sqlQuery, opts.Format)
	})
}

func executeAndRender(ctx context.Context, w io.Writer, db adapter.Adapter, sqlQuery, format string) error {
	rows, err := db.Query(ctx, sqlQuery)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return renderResults(w, rows, format)
}

// newQueryTablesCommand creates the tables subcommand.
func newQueryTablesCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List all tables and views",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAdapter(cmd, func(ctx context.Context, db adapter.Adapter) error {
				return listTables(ctx, cmd.OutOrStdout(), db, opts.Format, false)
			})
		},
	}
}

// newQueryViewsCommand creates the views subcommand.
func newQueryViewsCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "views",
		Short: "List views only",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAdapter(cmd, func(ctx context.Context, db adapter.Adapter) error {
				return listTables(ctx, cmd.OutOrStdout(), db, opts.Format, true)
			})
		},
	}
}

// newQuerySchemaCommand creates the schema subcommand.
func newQuerySchemaCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <table>",
		Short: "Show schema for a table or view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdapter(cmd, func(ctx context.Context, db adapter.Adapter) error {
				return showSchema(ctx, cmd.OutOrStdout(), db, args[0], opts.Format)
			})
		},
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}
