package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/gradesim/gradesim/internal/cli/config"
	"github.com/gradesim/gradesim/pkg/adapter"
)

const (
	replPrompt     = "gradesim> "
	replContPrompt = "     ...> "
)

func runQueryREPL(ctx context.Context, cmd *cobra.Command, db adapter.Adapter, opts *QueryOptions) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}

	// History lives next to the state database.
	historyFile := filepath.Join(filepath.Dir(cfg.StatePath), "query_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newTableCompleter(ctx, db),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "gradesim query REPL (%s)\n", describeTarget(cfg))
	_, _ = fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)

	var multiLineBuffer strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			multiLineBuffer.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if multiLineBuffer.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := handleDotCommand(ctx, cmd, db, line, opts.Format); quit {
				break
			}
			continue
		}

		// Accumulate multi-line SQL until semicolon
		multiLineBuffer.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			multiLineBuffer.WriteString(" ")
			rl.SetPrompt(replContPrompt)
			continue
		}
		rl.SetPrompt(replPrompt)

		query := strings.TrimSuffix(multiLineBuffer.String(), ";")
		multiLineBuffer.Reset()

		if err := executeAndRender(ctx, out, db, query, opts.Format); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		_, _ = fmt.Fprintln(out)
	}

	return nil
}

func describeTarget(cfg *config.Config) string {
	if cfg.Target.Type == "duckdb" {
		return "duckdb: " + cfg.Target.Database
	}
	return fmt.Sprintf("%s: %s@%s/%s", cfg.Target.Type, cfg.Target.User, cfg.Target.Host, cfg.Target.Database)
}

// handleDotCommand runs a REPL dot-command and reports whether the REPL should exit.
func handleDotCommand(ctx context.Context, cmd *cobra.Command, db adapter.Adapter, line, format string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	var err error
	switch command {
	case ".quit", ".exit":
		return true
	case ".help":
		printREPLHelp(out)
	case ".tables":
		err = listTables(ctx, out, db, format, false)
	case ".views":
		err = listTables(ctx, out, db, format, true)
	case ".schema":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .schema <table>")
			return false
		}
		err = showSchema(ctx, out, db, parts[1], format)
	case ".clear":
		_, _ = fmt.Fprint(out, "\033[H\033[2J")
	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .tables         List all tables and views
  .views          List views only
  .schema <name>  Show schema for a table or view
  .clear          Clear the screen
  .quit / .exit   Exit the REPL

Tips:
  - SQL statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion works for table names
`
	_, _ = fmt.Fprintln(w, help)
}

// newTableCompleter creates a readline completer for table names.
func newTableCompleter(ctx context.Context, db adapter.Adapter) *readline.PrefixCompleter {
	d := db.Dialect()
	rows, err := db.Query(ctx, fmt.Sprintf(
		`SELECT table_name FROM information_schema.tables WHERE table_schema = %s ORDER BY table_name`,
		d.Placeholder(1)), d.DefaultSchema)
	if err != nil {
		return readline.NewPrefixCompleter()
	}
	defer func() { _ = rows.Close() }()

	var items []readline.PrefixCompleterInterface
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			items = append(items, readline.PcItem(name))
		}
	}
	// Completion is best effort.
	_ = rows.Err()

	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".views"),
		readline.PcItem(".schema"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
	return readline.NewPrefixCompleter(items...)
}
