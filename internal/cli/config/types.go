// Package config provides configuration management for the gradesim CLI.
//
// Values are layered from defaults, gradesim.yaml, a .env file, GRADESIM_
// environment variables and explicitly set flags, in increasing precedence.
package config

import (
	"fmt"
	"time"

	"github.com/gradesim/gradesim/internal/dataset"
	"github.com/gradesim/gradesim/internal/risk"
	"github.com/gradesim/gradesim/pkg/adapter"
)

// TargetConfig is the relational store connection.
type TargetConfig = adapter.Config

// Config holds all CLI configuration options.
type Config struct {
	DataDir      string               `koanf:"data_dir"`
	StatePath    string               `koanf:"state_path"`
	Environment  string               `koanf:"environment"`
	Verbose      bool                 `koanf:"verbose"`
	OutputFormat string               `koanf:"output"`
	Generate     GenerateConfig       `koanf:"generate"`
	Target       *TargetConfig        `koanf:"target"`
	Model        ModelConfig          `koanf:"model"`
	Server       ServerConfig         `koanf:"server"`
	OAuth        OAuthConfig          `koanf:"oauth"`
	Environments map[string]EnvConfig `koanf:"environments"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// GenerateConfig holds the generation parameters.
type GenerateConfig struct {
	Seed               uint64 `koanf:"seed"`
	Students           int    `koanf:"students"`
	Courses            int    `koanf:"courses"`
	SessionsPerCourse  int    `koanf:"sessions_per_course"`
	AssessmentsPerType int    `koanf:"assessments_per_type"`
	MinCourses         int    `koanf:"min_courses"`
	MaxCourses         int    `koanf:"max_courses"`
	// AsOf is the reference date (YYYY-MM-DD) that every generated date is anchored to.
	AsOf string `koanf:"as_of"`
}

// Params converts the section to generation parameters. Assessment types and
// semesters keep their defaults.
func (g GenerateConfig) Params() (dataset.Params, error) {
	p := dataset.DefaultParams()
	p.Seed = g.Seed
	p.NStudents = g.Students
	p.NCourses = g.Courses
	p.SessionsPerCourse = g.SessionsPerCourse
	p.AssessmentsPerType = g.AssessmentsPerType
	p.MinCoursesPerStudent = g.MinCourses
	p.MaxCoursesPerStudent = g.MaxCourses
	if g.AsOf != "" {
		asOf, err := time.Parse(dataset.DateLayout, g.AsOf)
		if err != nil {
			return dataset.Params{}, &dataset.ConfigError{Field: "as_of", Reason: fmt.Sprintf("expected YYYY-MM-DD, got %q", g.AsOf)}
		}
		p.AsOf = asOf
	}
	return p, nil
}

// ModelConfig holds classifier training and artifact settings.
type ModelConfig struct {
	Path         string  `koanf:"path"`
	TestRatio    float64 `koanf:"test_ratio"`
	Epochs       int     `koanf:"epochs"`
	LearningRate float64 `koanf:"learning_rate"`
	L2           float64 `koanf:"l2"`
	Threshold    float64 `koanf:"threshold"`
}

// Options returns the training options.
func (m ModelConfig) Options() risk.Options {
	return risk.Options{
		Epochs:       m.Epochs,
		LearningRate: m.LearningRate,
		L2:           m.L2,
		Threshold:    m.Threshold,
	}
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Port          int           `koanf:"port"`
	FrontendURL   string        `koanf:"frontend_url"`
	SessionSecret string        `koanf:"session_secret"`
	CORSOrigins   []string      `koanf:"cors_origins"`
	RedisURL      string        `koanf:"redis_url"`
	CacheTTL      time.Duration `koanf:"cache_ttl"`
	Watch         bool          `koanf:"watch"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// OAuthConfig holds the Google login client.
type OAuthConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	RedirectURL  string `koanf:"redirect_url"`
}

// Enabled reports whether login is configured.
func (o OAuthConfig) Enabled() bool {
	return o.ClientID != "" && o.ClientSecret != ""
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	DataDir string        `koanf:"data_dir"`
	Target  *TargetConfig `koanf:"target"`
}

// Default configuration values.
const (
	DefaultDataDir       = "data"
	DefaultStateFile     = ".gradesim/state.db"
	DefaultWarehouse     = ".gradesim/warehouse.duckdb"
	DefaultModelFile     = ".gradesim/model.json"
	DefaultEnv           = "dev"
	DefaultOutput        = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultPort          = 5001
	DefaultTestRatio     = 0.2
	DefaultSessionSecret = "dev-secret"
	DefaultFrontendURL   = "http://localhost:8080/"
)
