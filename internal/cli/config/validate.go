package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gradesim/gradesim/internal/cli/output"
	"github.com/gradesim/gradesim/pkg/adapter"
)

// ValidateTarget checks that the target names a registered adapter.
func ValidateTarget(t *TargetConfig) error {
	if t == nil || t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return fmt.Errorf("unknown adapter type %q (available: %s)\nHint: set target.type in gradesim.yaml",
			t.Type, strings.Join(adapter.ListAdapters(), ", "))
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if !slices.Contains(output.Modes, c.OutputFormat) {
		return fmt.Errorf("invalid output %q (expected one of %s)", c.OutputFormat, strings.Join(output.Modes, ", "))
	}
	if c.Model.TestRatio < 0 || c.Model.TestRatio >= 1 {
		return fmt.Errorf("model.test_ratio must be in [0, 1), got %v", c.Model.TestRatio)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return ValidateTarget(c.Target)
}
