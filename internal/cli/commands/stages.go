package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gradesim/gradesim/internal/cli/output"
	"github.com/gradesim/gradesim/internal/dataset"
)

// GraphQuerier provides read-only access to the stage graph structure.
type GraphQuerier interface {
	GetParents(string) []string
	GetChildren(string) []string
	NodeCount() int
	EdgeCount() int
}

// NewStagesCommand creates the stages command.
func NewStagesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "Show the generation pipeline",
		Long: `Display the dataset generation pipeline.

Stages are grouped by level: a stage only reads tables produced by stages
on lower levels. The order line is the exact sequence generate runs them in,
which fixes how the seeded random stream is consumed.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Show the pipeline
  gradesim stages

  # Output as JSON
  gradesim stages --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStages(cmd)
		},
	}

	return cmd
}

func runStages(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContextWithoutEngine(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer

	graph, err := dataset.StageGraph()
	if err != nil {
		return fmt.Errorf("failed to build stage graph: %w", err)
	}
	levels, err := graph.GetExecutionLevels()
	if err != nil {
		return fmt.Errorf("failed to get execution levels: %w", err)
	}
	nodes, err := graph.TopologicalSort()
	if err != nil {
		return err
	}

	order := make([]string, 0, len(nodes))
	descriptions := make(map[string]string, len(nodes))
	for _, n := range nodes {
		order = append(order, n.ID)
		descriptions[n.ID] = n.Data.Description
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(stagesOutput(graph, order, levels, descriptions))
	case output.ModeMarkdown:
		stagesMarkdown(r, graph, order, levels, descriptions)
	default:
		stagesText(r, graph, order, levels, descriptions)
	}
	return nil
}

// stagesText outputs the pipeline in styled text format.
func stagesText(r *output.Renderer, graph GraphQuerier, order []string, levels [][]string, descriptions map[string]string) {
	styles := r.Styles()

	r.Header(1, "Generation Pipeline")

	for i, level := range levels {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", i)))
		for _, stage := range level {
			r.Printf("  %s %s\n", styles.Stage.Render(stage), styles.Muted.Render(descriptions[stage]))
			if deps := graph.GetParents(stage); len(deps) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("depends on:"), strings.Join(deps, ", "))
			}
		}
		r.Println("")
	}

	r.KeyValue("Order", strings.Join(order, " -> "))
	r.Println("")
	r.Muted(fmt.Sprintf("Total: %d stages, %d dependencies", graph.NodeCount(), graph.EdgeCount()))
}

// stagesMarkdown outputs the pipeline in markdown format.
func stagesMarkdown(r *output.Renderer, graph GraphQuerier, order []string, levels [][]string, descriptions map[string]string) {
	r.Println(output.FormatHeader(1, "Generation Pipeline"))
	r.Println("")

	for i, level := range levels {
		r.Println(output.FormatHeader(2, fmt.Sprintf("Level %d", i)))
		for _, stage := range level {
			r.Printf("- %s: %s\n", stage, descriptions[stage])
			if deps := graph.GetParents(stage); len(deps) > 0 {
				r.Printf("  - depends on: %s\n", strings.Join(deps, ", "))
			}
			if children := graph.GetChildren(stage); len(children) > 0 {
				r.Printf("  - used by: %s\n", strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Order", strings.Join(order, " -> ")))
	r.Println(output.FormatKeyValue("Total Stages", strconv.Itoa(graph.NodeCount())))
	r.Println(output.FormatKeyValue("Total Dependencies", strconv.Itoa(graph.EdgeCount())))
}

func stagesOutput(graph GraphQuerier, order []string, levels [][]string, descriptions map[string]string) output.StagesOutput {
	out := output.StagesOutput{
		Order:       order,
		Levels:      make([]output.StageLevel, 0, len(levels)),
		TotalStages: graph.NodeCount(),
		TotalEdges:  graph.EdgeCount(),
	}
	for i, level := range levels {
		sl := output.StageLevel{Level: i, Stages: make([]output.StageNode, 0, len(level))}
		for _, stage := range level {
			sl.Stages = append(sl.Stages, output.StageNode{
				Name:        stage,
				Description: descriptions[stage],
				DependsOn:   nonNil(graph.GetParents(stage)),
				UsedBy:      nonNil(graph.GetChildren(stage)),
			})
		}
		out.Levels = append(out.Levels, sl)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
