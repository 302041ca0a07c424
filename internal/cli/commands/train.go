package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gradesim/gradesim/internal/cli/output"
	"github.com/gradesim/gradesim/internal/engine"
	"github.com/gradesim/gradesim/internal/risk"
	"github.com/gradesim/gradesim/internal/state"
)

// NewTrainCommand creates the train command.
func NewTrainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the at-risk classifier",
		Long: `Train the at-risk classifier on the loaded dataset.

Each enrollment of the student_features view contributes entry_gpa,
attendance_pct and avg_assessment as features and at_risk as the label.
Rows are split into train and test sets with a seeded shuffle, a
regularized logistic regression is fitted on the train set, and a
classification report on the test set is printed. The fitted model is
written as a JSON artifact that the API server loads and hot-reloads.`,
		Example: `  # Train with defaults (80/20 split, seed from config)
  gradesim train

  # Hold out 30% and write the model elsewhere
  gradesim train --test-ratio 0.3 --model ./out/model.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd)
		},
	}

	opts := risk.DefaultOptions()
	cmd.Flags().String("model", "", "Model artifact path")
	cmd.Flags().Float64("test-ratio", 0.2, "Fraction of rows held out for evaluation")
	cmd.Flags().Uint64("seed", 42, "Split seed")
	cmd.Flags().Int("epochs", opts.Epochs, "Gradient descent epochs")
	cmd.Flags().Float64("learning-rate", opts.LearningRate, "Gradient descent step size")
	cmd.Flags().Float64("l2", opts.L2, "L2 regularization strength")
	cmd.Flags().Float64("threshold", opts.Threshold, "Probability threshold for at-risk")

	return cmd
}

// trainParams is recorded with the train run.
type trainParams struct {
	TestRatio float64      `json:"test_ratio"`
	Options   risk.Options `json:"options"`
	ModelPath string       `json:"model_path"`
}

func runTrain(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer
	seed := cfg.Generate.Seed

	params := trainParams{TestRatio: cfg.Model.TestRatio, Options: cfg.Model.Options(), ModelPath: cfg.Model.Path}
	store := cmdCtx.Engine.StateStore()
	run, err := store.CreateRun(ctx, state.RunKindTrain, seed, params)
	if err != nil {
		return err
	}

	out, trainErr := train(ctx, cmdCtx.Engine, params, seed)
	status, msg := state.RunStatusCompleted, ""
	if trainErr != nil {
		status, msg = state.RunStatusFailed, trainErr.Error()
	}
	if err := store.CompleteRun(ctx, run.ID, status, msg); err != nil {
		cmdCtx.Logger.Warn("failed to record train run", slog.String("run_id", run.ID), slog.String("error", err.Error()))
	}
	if trainErr != nil {
		return trainErr
	}
	out.RunID = run.ID

	cmdCtx.Logger.Info("model trained",
		slog.String("run_id", run.ID),
		slog.String("path", out.ModelPath),
		slog.Float64("accuracy", out.Accuracy))

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Classification Report"))
		r.Println("")
		r.Table(reportHeaders, reportRows(out))
		r.Println("")
		r.Println(output.FormatKeyValue("Accuracy", formatMetric(out.Accuracy)))
		r.Println(output.FormatKeyValue("Train rows", strconv.Itoa(out.TrainRows)))
		r.Println(output.FormatKeyValue("Test rows", strconv.Itoa(out.TestRows)))
		r.Println(output.FormatKeyValue("Model", out.ModelPath))
	default:
		r.Header(1, "Classification Report")
		r.Table(reportHeaders, reportRows(out))
		r.Println("")
		r.KeyValue("Accuracy", formatMetric(out.Accuracy))
		r.KeyValue("Train rows", strconv.Itoa(out.TrainRows))
		r.KeyValue("Test rows", strconv.Itoa(out.TestRows))
		r.Success("Model saved to " + out.ModelPath)
	}
	return nil
}

func train(ctx context.Context, eng *engine.Engine, params trainParams, seed uint64) (*output.TrainOutput, error) {
	rows, err := eng.TrainingRows(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("no training rows: run 'gradesim load' first")
	}

	trainIdx, testIdx, err := risk.TrainTestSplit(len(rows), params.TestRatio, seed)
	if err != nil {
		return nil, err
	}
	if len(testIdx) == 0 {
		// Nothing held out; report on the training rows.
		testIdx = trainIdx
	}

	Xtr, ytr := examples(rows, trainIdx)
	model, err := risk.Fit(engine.FeatureNames, Xtr, ytr, params.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to fit model: %w", err)
	}

	Xte, yte := examples(rows, testIdx)
	pred, err := model.Predict(Xte)
	if err != nil {
		return nil, err
	}
	report, err := risk.Evaluate(yte, pred)
	if err != nil {
		return nil, err
	}

	if err := model.Save(params.ModelPath); err != nil {
		return nil, err
	}

	out := &output.TrainOutput{
		ModelPath: params.ModelPath,
		TrainRows: len(trainIdx),
		TestRows:  len(testIdx),
		Accuracy:  report.Accuracy,
		Classes:   make([]output.ClassReport, 0, len(report.Classes)),
	}
	for _, c := range report.Classes {
		out.Classes = append(out.Classes, output.ClassReport(c))
	}
	return out, nil
}

func examples(rows []engine.TrainingRow, idx []int) ([][]float64, []bool) {
	X := make([][]float64, len(idx))
	y := make([]bool, len(idx))
	for i, j := range idx {
		X[i] = rows[j].Features()
		y[i] = rows[j].AtRisk
	}
	return X, y
}

var reportHeaders = []string{"Class", "Precision", "Recall", "F1", "Support"}

func reportRows(out *output.TrainOutput) [][]string {
	rows := make([][]string, 0, len(out.Classes))
	for _, c := range out.Classes {
		rows = append(rows, []string{
			c.Label,
			formatMetric(c.Precision),
			formatMetric(c.Recall),
			formatMetric(c.F1),
			strconv.Itoa(c.Support),
		})
	}
	return rows
}

func formatMetric(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
