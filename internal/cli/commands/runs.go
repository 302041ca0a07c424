package commands

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/gradesim/gradesim/internal/cli/output"
	"github.com/gradesim/gradesim/internal/state"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded generate, load and train runs",
		Long: `List the runs recorded in the state database, newest first.

Each generate, load and train invocation records its seed, parameters,
final status and error message.`,
		Example: `  # Show the last 20 runs
  gradesim runs

  # Show every run as JSON
  gradesim runs --limit 0 --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return runRuns(cmd, limit)
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum runs to show (0 for all)")

	return cmd
}

func runRuns(cmd *cobra.Command, limit int) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := cmdCtx.Engine.StateStore().ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	out := output.RunsOutput{Runs: make([]output.RunInfo, 0, len(runs))}
	for _, run := range runs {
		out.Runs = append(out.Runs, runInfo(run))
	}

	r := cmdCtx.Renderer
	headers := []string{"ID", "Kind", "Status", "Seed", "Started", "Completed", "Error"}
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Runs"))
		r.Println("")
		if len(out.Runs) == 0 {
			r.Println("No runs recorded.")
			return nil
		}
		r.Table(headers, runRows(out.Runs))
	default:
		r.Header(1, "Runs")
		if len(out.Runs) == 0 {
			r.Muted("No runs recorded. Start with 'gradesim generate'.")
			return nil
		}
		r.Table(headers, runRows(out.Runs))
	}
	return nil
}

func runInfo(run *state.Run) output.RunInfo {
	info := output.RunInfo{
		ID:        run.ID,
		Kind:      string(run.Kind),
		Status:    string(run.Status),
		Seed:      run.Seed,
		StartedAt: run.StartedAt.Format(time.RFC3339),
		Error:     run.Error,
	}
	if run.CompletedAt != nil {
		info.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	return info
}

func runRows(runs []output.RunInfo) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			run.Kind,
			run.Status,
			strconv.FormatUint(run.Seed, 10),
			run.StartedAt,
			run.CompletedAt,
			run.Error,
		})
	}
	return rows
}
