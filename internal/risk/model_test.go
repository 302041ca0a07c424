package risk

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFeatures = []string{"entry_gpa", "attendance_pct", "avg_assessment"}

// separable returns rows where low attendance plus low scores means at risk.
func separable(n int) ([][]float64, []bool) {
	rng := rand.New(rand.NewPCG(7, 11))
	X := make([][]float64, n)
	y := make([]bool, n)
	for i := range X {
		gpa := 4 + rng.Float64()*5.5
		att := rng.Float64()
		score := rng.Float64() * 100
		X[i] = []float64{gpa, att, score}
		y[i] = 40*att+0.5*score < 45
	}
	return X, y
}

func TestFit_LearnsSeparableData(t *testing.T) {
	X, y := separable(600)
	m, err := Fit(testFeatures, X, y, DefaultOptions())
	require.NoError(t, err)

	assert.Len(t, m.Weights, 3)
	assert.Less(t, m.Weights[1], 0.0, "attendance lowers risk")
	assert.Less(t, m.Weights[2], 0.0, "scores lower risk")

	pred, err := m.Predict(X)
	require.NoError(t, err)
	report, err := Evaluate(y, pred)
	require.NoError(t, err)
	assert.Greater(t, report.Accuracy, 0.9)
}

func TestFit_Errors(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		X     [][]float64
		y     []bool
		opts  Options
		is    error
	}{
		{name: "empty", names: testFeatures, opts: DefaultOptions(), is: ErrNoData},
		{name: "label count", names: testFeatures, X: [][]float64{{1, 2, 3}}, y: []bool{true, false}, opts: DefaultOptions()},
		{name: "ragged row", names: testFeatures, X: [][]float64{{1, 2}}, y: []bool{true}, opts: DefaultOptions(), is: ErrFeatureMismatch},
		{name: "no features", X: [][]float64{{}}, y: []bool{true}, opts: DefaultOptions()},
		{name: "zero epochs", names: testFeatures, X: [][]float64{{1, 2, 3}}, y: []bool{true}, opts: Options{LearningRate: 0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.names, tt.X, tt.y, tt.opts)
			require.Error(t, err)
			if tt.is != nil {
				assert.True(t, errors.Is(err, tt.is), "got %v", err)
			}
		})
	}
}

func TestFit_ConstantFeature(t *testing.T) {
	X := [][]float64{{1, 0.2, 10}, {1, 0.9, 90}, {1, 0.1, 20}, {1, 0.8, 80}}
	y := []bool{true, false, true, false}
	m, err := Fit(testFeatures, X, y, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.Stds[0])

	probs, err := m.PredictProba(X)
	require.NoError(t, err)
	for _, p := range probs {
		assert.True(t, p > 0 && p < 1)
	}
	assert.Greater(t, probs[0], probs[1])
}

func TestPredict_FeatureMismatch(t *testing.T) {
	X, y := separable(50)
	m, err := Fit(testFeatures, X, y, DefaultOptions())
	require.NoError(t, err)

	_, err = m.Predict([][]float64{{1, 2}})
	assert.True(t, errors.Is(err, ErrFeatureMismatch))
}

func TestTrainTestSplit(t *testing.T) {
	train, test, err := TrainTestSplit(100, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, train, 80)
	assert.Len(t, test, 20)

	seen := map[int]bool{}
	for _, i := range append(append([]int{}, train...), test...) {
		assert.False(t, seen[i], "index %d repeated", i)
		seen[i] = true
	}
	assert.Len(t, seen, 100)
	assert.IsIncreasing(t, train)
	assert.IsIncreasing(t, test)

	train2, test2, err := TrainTestSplit(100, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	_, other, err := TrainTestSplit(100, 0.2, 43)
	require.NoError(t, err)
	assert.NotEqual(t, test, other)

	_, _, err = TrainTestSplit(10, 1, 1)
	assert.Error(t, err)
	_, _, err = TrainTestSplit(10, -0.1, 1)
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	yTrue := []bool{true, true, true, false, false, false, false, false}
	yPred := []bool{true, true, false, true, false, false, false, false}

	r, err := Evaluate(yTrue, yPred)
	require.NoError(t, err)
	assert.Equal(t, 8, r.Total)
	assert.InDelta(t, 0.75, r.Accuracy, 1e-9)

	neg, pos := r.Classes[0], r.Classes[1]
	assert.Equal(t, LabelNotAtRisk, neg.Label)
	assert.Equal(t, 5, neg.Support)
	assert.InDelta(t, 0.8, neg.Precision, 1e-9)
	assert.InDelta(t, 0.8, neg.Recall, 1e-9)

	assert.Equal(t, LabelAtRisk, pos.Label)
	assert.Equal(t, 3, pos.Support)
	assert.InDelta(t, 2.0/3, pos.Precision, 1e-9)
	assert.InDelta(t, 2.0/3, pos.Recall, 1e-9)
	assert.InDelta(t, 2.0/3, pos.F1, 1e-9)

	_, err = Evaluate([]bool{true}, nil)
	assert.Error(t, err)
}

func TestEvaluate_NoPositives(t *testing.T) {
	r, err := Evaluate([]bool{false, false}, []bool{false, false})
	require.NoError(t, err)
	assert.Equal(t, 1.0, r.Accuracy)
	assert.Zero(t, r.Classes[1].Precision)
	assert.Zero(t, r.Classes[1].F1)
}

func TestSaveLoad(t *testing.T) {
	X, y := separable(100)
	m, err := Fit(testFeatures, X, y, DefaultOptions())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "models", "risk.json")
	require.NoError(t, m.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, m, loaded)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)

	short := filepath.Join(dir, "short.json")
	require.NoError(t, os.WriteFile(short,
		[]byte(`{"features":["a"],"weights":[1,2],"means":[0,0],"stds":[1,1]}`), 0o644))
	_, err = Load(short)
	assert.True(t, errors.Is(err, ErrFeatureMismatch))
}
