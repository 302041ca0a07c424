package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradesim/gradesim/internal/cli/commands"
	"github.com/gradesim/gradesim/internal/cli/config"
	"github.com/gradesim/gradesim/internal/cli/output"
	"github.com/gradesim/gradesim/internal/cli/testutil"
	"github.com/gradesim/gradesim/internal/export"
)

// execute runs the root command against a project config and returns stdout.
func execute(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	cmd := NewRootCmd()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))

	err := cmd.Execute()
	if err != nil {
		t.Logf("stderr: %s", errOut.String())
	}
	return out.String(), err
}

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), "output: %s", s)
	return v
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	assert.Equal(t, "gradesim", cmd.Use)
	for _, name := range []string{"version", "generate", "load", "train", "serve", "query", "runs", "stages", "doctor", "init", "completion"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
	for _, flag := range []string{"config", "target", "data-dir", "database", "state", "verbose", "output"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
	assert.Nil(t, cmd.PersistentFlags().Lookup("env"), "--target is the only environment selector")
}

func TestVersion(t *testing.T) {
	_, configPath := testutil.SetupTestProject(t)

	out, err := execute(t, configPath, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "gradesim v"+Version)
}

func TestInvalidOutputFormat(t *testing.T) {
	_, configPath := testutil.SetupTestProject(t)

	_, err := execute(t, configPath, "stages", "--output", "yaml")
	require.Error(t, err)
}

func TestStages(t *testing.T) {
	_, configPath := testutil.SetupTestProject(t)

	out, err := execute(t, configPath, "stages")
	require.NoError(t, err)

	stages := decode[output.StagesOutput](t, out)
	assert.Equal(t, []string{"students", "courses", "enrollments", "attendance", "assessments", "finals", "feedback"}, stages.Order)
	assert.Equal(t, 7, stages.TotalStages)
}

func TestTargetSelectsEnvironment(t *testing.T) {
	dir, configPath := testutil.SetupTestProject(t)
	f, err := os.OpenFile(configPath, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("environments:\n  alt:\n    data_dir: alt-data\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = execute(t, configPath, "generate", "--target", "alt")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "alt-data", export.ManifestFile))
	assert.NoFileExists(t, filepath.Join(dir, "data", export.ManifestFile))

	_, err = execute(t, configPath, "generate", "--env", "alt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag: --env")
}

func TestGenerateIsDeterministic(t *testing.T) {
	dir, configPath := testutil.SetupTestProject(t)

	out, err := execute(t, configPath, "generate")
	require.NoError(t, err)
	first := decode[output.GenerateOutput](t, out)

	out, err = execute(t, configPath, "generate", "--data-dir", filepath.Join(dir, "again"))
	require.NoError(t, err)
	second := decode[output.GenerateOutput](t, out)

	require.Len(t, first.Tables, 7)
	assert.Equal(t, uint64(7), first.Seed)
	assert.Equal(t, "2025-06-01", first.AsOf)
	for i := range first.Tables {
		assert.Equal(t, first.Tables[i].SHA256, second.Tables[i].SHA256, "table %s", first.Tables[i].Name)
		assert.FileExists(t, filepath.Join(dir, "data", first.Tables[i].File))
	}
	assert.FileExists(t, filepath.Join(dir, "data", export.ManifestFile))

	out, err = execute(t, configPath, "generate", "--data-dir", filepath.Join(dir, "other"), "--seed", "8")
	require.NoError(t, err)
	third := decode[output.GenerateOutput](t, out)
	assert.NotEqual(t, first.Tables[0].SHA256, third.Tables[0].SHA256)
}

func TestGenerateRejectsInvalidParams(t *testing.T) {
	_, configPath := testutil.SetupTestProject(t)

	_, err := execute(t, configPath, "generate", "--max-courses", "9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_courses")
}

func TestPipeline(t *testing.T) {
	dir, configPath := testutil.SetupTestProject(t)

	_, err := execute(t, configPath, "generate")
	require.NoError(t, err)

	out, err := execute(t, configPath, "load")
	require.NoError(t, err)
	loaded := decode[output.LoadOutput](t, out)
	assert.Equal(t, "duckdb", loaded.Target)
	assert.Equal(t, uint64(7), loaded.Seed)
	names := make([]string, 0, len(loaded.Tables))
	for _, tbl := range loaded.Tables {
		names = append(names, tbl.Name)
	}
	assert.Subset(t, names, []string{"students", "courses", "enroll", "attendance", "assess", "finals", "feedback"})

	out, err = execute(t, configPath, "query", "SELECT COUNT(*) AS n FROM students", "--format", "json")
	require.NoError(t, err)
	counts := decode[[]map[string]any](t, out)
	require.Len(t, counts, 1)
	assert.InDelta(t, 40, counts[0]["n"], 0)

	out, err = execute(t, configPath, "query", "views", "--format", "json")
	require.NoError(t, err)
	views := decode[[]map[string]any](t, out)
	require.NotEmpty(t, views)
	assert.Equal(t, "student_features", views[0]["name"])

	out, err = execute(t, configPath, "train")
	require.NoError(t, err)
	trained := decode[output.TrainOutput](t, out)
	assert.Positive(t, trained.TrainRows)
	assert.Positive(t, trained.TestRows)
	assert.GreaterOrEqual(t, trained.Accuracy, 0.0)
	assert.LessOrEqual(t, trained.Accuracy, 1.0)
	assert.FileExists(t, filepath.Join(dir, ".gradesim", "model.json"))

	out, err = execute(t, configPath, "runs")
	require.NoError(t, err)
	runs := decode[output.RunsOutput](t, out)
	require.Len(t, runs.Runs, 3)
	assert.Equal(t, "train", runs.Runs[0].Kind)
	for _, run := range runs.Runs {
		assert.Equal(t, "completed", run.Status)
	}

	out, err = execute(t, configPath, "doctor")
	require.NoError(t, err)
	report := decode[commands.DoctorOutput](t, out)
	statuses := make(map[string]string, len(report.HealthChecks))
	for _, c := range report.HealthChecks {
		statuses[c.ID] = c.Status
	}
	for _, id := range []string{"CF01", "DA01", "DA02", "ST01", "ST02", "MD01"} {
		assert.Equal(t, "pass", statuses[id], id)
	}
	assert.Equal(t, "warn", statuses["SV01"], "default session secret")
}

func TestTrainWithoutLoad(t *testing.T) {
	_, configPath := testutil.SetupTestProject(t)

	_, err := execute(t, configPath, "train")
	require.Error(t, err)

	out, err := execute(t, configPath, "runs")
	require.NoError(t, err)
	runs := decode[output.RunsOutput](t, out)
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, "failed", runs.Runs[0].Status)
	assert.NotEmpty(t, runs.Runs[0].Error)
}

func TestCompletion(t *testing.T) {
	_, configPath := testutil.SetupTestProject(t)

	out, err := execute(t, configPath, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "gradesim")
}

func TestMain(m *testing.M) {
	code := m.Run()
	config.ResetConfig()
	os.Exit(code)
}
