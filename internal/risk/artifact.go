package risk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Save writes the model as JSON. The file is written next to path and renamed
// into place so that watchers never observe a partial artifact.
func (m *Model) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".model-*.json")
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}

// Load reads a model written by Save.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", path, err)
	}
	return &m, nil
}

func (m *Model) validate() error {
	d := len(m.Weights)
	if d == 0 {
		return fmt.Errorf("no weights")
	}
	if len(m.Means) != d || len(m.Stds) != d || len(m.Features) != d {
		return fmt.Errorf("%w: weights=%d means=%d stds=%d features=%d",
			ErrFeatureMismatch, d, len(m.Means), len(m.Stds), len(m.Features))
	}
	for j, s := range m.Stds {
		if s == 0 {
			return fmt.Errorf("feature %s has zero scale", m.Features[j])
		}
	}
	if m.Threshold <= 0 || m.Threshold >= 1 {
		m.Threshold = 0.5
	}
	return nil
}
