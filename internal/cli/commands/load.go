package commands

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/gradesim/gradesim/internal/cache"
	"github.com/gradesim/gradesim/internal/cli/output"
)

// NewLoadCommand creates the load command.
func NewLoadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load [dir]",
		Short: "Load an exported dataset into the relational store",
		Long: `Load an exported dataset into the configured store (DuckDB or PostgreSQL).

The manifest checksums are verified first. The schema is then recreated, the
seven tables are loaded in dependency order, and the student_features view and
the intervention_logs and predictions tables are created. Loading replaces
any previously loaded dataset.

The directory defaults to the configured data directory.`,
		Example: `  # Load ./data into the default DuckDB warehouse
  gradesim load

  # Load into an explicit DuckDB file
  gradesim load ./small --database ./small.duckdb

  # Load into PostgreSQL using the prod environment of gradesim.yaml
  gradesim load -t prod`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, args)
		},
	}

	cmd.Flags().String("target-type", "", "Store type override (duckdb, postgres)")

	return cmd
}

func runLoad(cmd *cobra.Command, args []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	dir := cmdCtx.Cfg.DataDir
	if len(args) > 0 {
		dir = args[0]
	}
	r := cmdCtx.Renderer

	res, err := cmdCtx.Engine.LoadDataset(cmd.Context(), dir)
	if err != nil {
		return err
	}
	cmdCtx.Logger.Info("dataset loaded", slog.String("run_id", res.RunID), slog.String("dir", dir))

	if url := cmdCtx.Cfg.Server.RedisURL; url != "" {
		if err := dropCachedCourseStats(cmd.Context(), url); err != nil {
			cmdCtx.Logger.Warn("failed to invalidate course stats cache", slog.String("error", err.Error()))
		}
	}

	out := output.LoadOutput{
		RunID:  res.RunID,
		Dir:    dir,
		Target: cmdCtx.Cfg.Target.Type,
		Seed:   res.Seed,
		Tables: make([]output.LoadedTable, 0, len(res.Tables)),
	}
	rows := make([][]string, 0, len(res.Tables))
	for _, t := range res.Tables {
		out.Tables = append(out.Tables, output.LoadedTable{Name: t.Table, Rows: t.Rows, DurationMS: t.Duration.Milliseconds()})
		rows = append(rows, []string{t.Table, strconv.FormatInt(t.Rows, 10), t.Duration.Round(time.Millisecond).String()})
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Dataset Loaded"))
		r.Println("")
		r.Println(output.FormatKeyValue("Run", out.RunID))
		r.Println(output.FormatKeyValue("Target", out.Target))
		r.Println(output.FormatKeyValue("Source", out.Dir))
		r.Println("")
		r.Table([]string{"Table", "Rows", "Duration"}, rows)
	default:
		r.Header(1, "Dataset Loaded")
		r.Table([]string{"Table", "Rows", "Duration"}, rows)
		r.Println("")
		r.Success("Loaded into " + out.Target)
		r.Muted("Run " + out.RunID)
	}
	return nil
}

// dropCachedCourseStats removes the course aggregate cached by the API server.
func dropCachedCourseStats(ctx context.Context, url string) error {
	c, err := cache.Open(ctx, url)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	return invalidateCourseStats(ctx, c)
}

func invalidateCourseStats(ctx context.Context, c cache.Cache) error {
	return c.Delete(ctx, cache.KeyCourseStats)
}
