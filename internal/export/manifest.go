package export

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/gradesim/gradesim/internal/dataset"
)

// ManifestFile is the manifest file name inside an export directory.
const ManifestFile = "manifest.yaml"

// ErrChecksumMismatch is returned by Verify when a file differs from the manifest.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Manifest describes an export directory.
type Manifest struct {
	Seed   uint64         `yaml:"seed"`
	AsOf   string         `yaml:"as_of"`
	Params dataset.Params `yaml:"params"`
	Tables []TableEntry   `yaml:"tables"`
}

// TableEntry records one exported table.
type TableEntry struct {
	Name   string `yaml:"name"`
	File   string `yaml:"file"`
	Rows   int    `yaml:"rows"`
	SHA256 string `yaml:"sha256"`
}

func newManifest(p dataset.Params) *Manifest {
	return &Manifest{
		Seed:   p.Seed,
		AsOf:   p.AsOf.Format(dataset.DateLayout),
		Params: p,
	}
}

// Table returns the entry for a table name.
func (m *Manifest) Table(name string) (TableEntry, bool) {
	for _, t := range m.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableEntry{}, false
}

// Write stores the manifest in dir.
func (m *Manifest) Write(dir string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the manifest of an export directory.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	for _, table := range dataset.Tables {
		if _, ok := m.Table(table); !ok {
			return nil, fmt.Errorf("manifest is missing table %q", table)
		}
	}
	return &m, nil
}

// Verify recomputes every file checksum and compares it with the manifest.
func Verify(dir string, m *Manifest) error {
	for _, t := range m.Tables {
		sum, err := fileSHA256(filepath.Join(dir, t.File))
		if err != nil {
			return fmt.Errorf("failed to hash %s: %w", t.File, err)
		}
		if sum != t.SHA256 {
			return fmt.Errorf("%s: %w", t.File, ErrChecksumMismatch)
		}
	}
	return nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
