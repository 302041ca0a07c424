package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gradesim/gradesim/internal/cli/config"
	"github.com/gradesim/gradesim/internal/cli/output"
	"github.com/gradesim/gradesim/internal/engine"

	// Register store adapters.
	_ "github.com/gradesim/gradesim/pkg/adapters/duckdb"
	_ "github.com/gradesim/gradesim/pkg/adapters/postgres"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cctx, err := NewCommandContextWithoutEngine(cmd)
	if err != nil {
		return nil, nil, err
	}

	eng, err := createEngine(cmd, cctx.Cfg, cctx.Logger)
	if err != nil {
		return nil, nil, err
	}
	cctx.Engine = eng

	cleanup := func() {
		if err := eng.Close(); err != nil {
			cctx.Logger.Warn("failed to close engine", slog.String("error", err.Error()))
		}
	}
	return cctx, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't need database access.
func NewCommandContextWithoutEngine(cmd *cobra.Command) (*CommandContext, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}, nil
}

// getConfig returns the current configuration, loading it with defaults when
// the command runs outside the root command.
func getConfig() (*config.Config, error) {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg, nil
	}
	return config.LoadConfig("", nil)
}

func createEngine(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	if err := ensureParentDir(cfg.StatePath); err != nil {
		return nil, err
	}
	if cfg.Target.Type == "duckdb" {
		if err := ensureParentDir(cfg.Target.Database); err != nil {
			return nil, err
		}
	}

	return engine.New(cmd.Context(), engine.Config{
		Target:    *cfg.Target,
		StatePath: cfg.StatePath,
		Logger:    logger,
	})
}

// ensureParentDir creates the directory holding a database file.
func ensureParentDir(path string) error {
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
