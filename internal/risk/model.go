// Package risk trains and applies the at-risk classifier: an L2-regularized
// logistic regression over standardized features, fit by batch gradient descent.
package risk

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrFeatureMismatch is returned when an input row does not have the model's feature count.
	ErrFeatureMismatch = errors.New("feature count mismatch")
	// ErrNoData is returned when fitting on an empty training set.
	ErrNoData = errors.New("no training data")
)

// Options controls training.
type Options struct {
	Epochs       int     `koanf:"epochs"`
	LearningRate float64 `koanf:"learning_rate"`
	L2           float64 `koanf:"l2"`
	Threshold    float64 `koanf:"threshold"`
}

// DefaultOptions returns the training defaults.
func DefaultOptions() Options {
	return Options{
		Epochs:       500,
		LearningRate: 0.5,
		L2:           0.001,
		Threshold:    0.5,
	}
}

// Model is a fitted classifier. It is the JSON artifact written by Save.
type Model struct {
	Features  []string  `json:"features"`
	Weights   []float64 `json:"weights"`
	Bias      float64   `json:"bias"`
	Means     []float64 `json:"means"`
	Stds      []float64 `json:"stds"`
	Threshold float64   `json:"threshold"`
}

// Fit trains a model on rows X with labels y. names labels the columns of X.
func Fit(names []string, X [][]float64, y []bool, opts Options) (*Model, error) {
	n := len(X)
	if n == 0 {
		return nil, ErrNoData
	}
	if len(y) != n {
		return nil, fmt.Errorf("got %d rows and %d labels", n, len(y))
	}
	d := len(names)
	if d == 0 {
		return nil, errors.New("no features")
	}
	for i, row := range X {
		if len(row) != d {
			return nil, fmt.Errorf("row %d: %w: got %d, want %d", i, ErrFeatureMismatch, len(row), d)
		}
	}
	if opts.Epochs <= 0 || opts.LearningRate <= 0 {
		return nil, fmt.Errorf("epochs and learning_rate must be positive")
	}
	if opts.Threshold <= 0 || opts.Threshold >= 1 {
		opts.Threshold = 0.5
	}

	m := &Model{
		Features:  append([]string(nil), names...),
		Means:     make([]float64, d),
		Stds:      make([]float64, d),
		Threshold: opts.Threshold,
	}

	col := make([]float64, n)
	for j := 0; j < d; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		m.Means[j], m.Stds[j] = mean, std
	}

	Z := mat.NewDense(n, d, nil)
	for i, row := range X {
		for j, v := range row {
			Z.Set(i, j, (v-m.Means[j])/m.Stds[j])
		}
	}
	labels := mat.NewVecDense(n, nil)
	for i, v := range y {
		if v {
			labels.SetVec(i, 1)
		}
	}

	w := mat.NewVecDense(d, nil)
	var (
		bias  float64
		z     = mat.NewVecDense(n, nil)
		resid = mat.NewVecDense(n, nil)
		grad  = mat.NewVecDense(d, nil)
	)
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		z.MulVec(Z, w)
		for i := 0; i < n; i++ {
			z.SetVec(i, sigmoid(z.AtVec(i)+bias))
		}
		resid.SubVec(z, labels)

		grad.MulVec(Z.T(), resid)
		grad.ScaleVec(1/float64(n), grad)
		grad.AddScaledVec(grad, opts.L2, w)

		w.AddScaledVec(w, -opts.LearningRate, grad)
		bias -= opts.LearningRate * stat.Mean(resid.RawVector().Data, nil)
	}

	m.Weights = make([]float64, d)
	for j := 0; j < d; j++ {
		m.Weights[j] = w.AtVec(j)
	}
	m.Bias = bias
	return m, nil
}

// PredictProba returns the at-risk probability of each row.
func (m *Model) PredictProba(X [][]float64) ([]float64, error) {
	d := len(m.Weights)
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != d {
			return nil, fmt.Errorf("row %d: %w: got %d, want %d", i, ErrFeatureMismatch, len(row), d)
		}
		z := m.Bias
		for j, v := range row {
			z += m.Weights[j] * (v - m.Means[j]) / m.Stds[j]
		}
		out[i] = sigmoid(z)
	}
	return out, nil
}

// Predict returns the at-risk label of each row.
func (m *Model) Predict(X [][]float64) ([]bool, error) {
	probs, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(probs))
	for i, p := range probs {
		out[i] = p >= m.Threshold
	}
	return out, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
