package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/gradesim/gradesim/internal/dataset"
	"github.com/gradesim/gradesim/internal/risk"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// EnvPrefix is the prefix of configuration environment variables.
// A double underscore separates nested keys: GRADESIM_SERVER__PORT sets server.port.
const EnvPrefix = "GRADESIM_"

// configNames are the config file names, in lookup order.
var configNames = []string{"gradesim.yaml", "gradesim.yml"}

// flagKeys maps flag names to config keys. Flags not listed are not config.
var flagKeys = map[string]string{
	"data-dir":      "data_dir",
	"state":         "state_path",
	"verbose":       "verbose",
	"output":        "output",
	"seed":          "generate.seed",
	"students":      "generate.students",
	"courses":       "generate.courses",
	"sessions":      "generate.sessions_per_course",
	"per-type":      "generate.assessments_per_type",
	"min-courses":   "generate.min_courses",
	"max-courses":   "generate.max_courses",
	"as-of":         "generate.as_of",
	"target-type":   "target.type",
	"database":      "target.database",
	"model":         "model.path",
	"test-ratio":    "model.test_ratio",
	"epochs":        "model.epochs",
	"learning-rate": "model.learning_rate",
	"l2":            "model.l2",
	"threshold":     "model.threshold",
	"port":          "server.port",
	"redis-url":     "server.redis_url",
	"cors-origins":  "server.cors_origins",
	"frontend-url":  "server.frontend_url",
	"watch":         "server.watch",
}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

func configIn(dir string) string {
	for _, name := range configNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a gradesim config file.
func findConfigUpward(startDir string) string {
	dir := startDir
	for range maxUpwardSearchLevels {
		if found := configIn(dir); found != "" {
			return found
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

func defaults() map[string]any {
	p := dataset.DefaultParams()
	opts := risk.DefaultOptions()
	return map[string]any{
		"data_dir":                      DefaultDataDir,
		"state_path":                    DefaultStateFile,
		"environment":                   DefaultEnv,
		"verbose":                       false,
		"output":                        DefaultOutput,
		"generate.seed":                 p.Seed,
		"generate.students":             p.NStudents,
		"generate.courses":              p.NCourses,
		"generate.sessions_per_course":  p.SessionsPerCourse,
		"generate.assessments_per_type": p.AssessmentsPerType,
		"generate.min_courses":          p.MinCoursesPerStudent,
		"generate.max_courses":          p.MaxCoursesPerStudent,
		"generate.as_of":                p.AsOf.Format(dataset.DateLayout),
		"model.path":                    DefaultModelFile,
		"model.test_ratio":              DefaultTestRatio,
		"model.epochs":                  opts.Epochs,
		"model.learning_rate":           opts.LearningRate,
		"model.l2":                      opts.L2,
		"model.threshold":               opts.Threshold,
		"server.port":                   DefaultPort,
		"server.frontend_url":           DefaultFrontendURL,
		"server.session_secret":         DefaultSessionSecret,
		"server.cache_ttl":              "5m",
		"server.watch":                  true,
	}
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > .env > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	return LoadConfigWithTarget(cfgFile, "", flags)
}

// LoadConfigWithTarget loads configuration with an optional environment override.
// The targetOverride parameter names the environment whose overrides apply.
func LoadConfigWithTarget(cfgFile string, targetOverride string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		cwd = "."
	}

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file. Its directory is the project root.
	if cfgFile == "" {
		cfgFile = findConfigUpward(cwd)
	}
	configFileUsed = cfgFile
	projectRoot := cwd
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
		if abs, err := filepath.Abs(configFileUsed); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}

	// 3. Load .env from the project root without overriding the real environment
	if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 4. Load environment variables (GRADESIM_ prefix)
	// Transform: GRADESIM_DATA_DIR -> data_dir, GRADESIM_SERVER__PORT -> server.port
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 5. Load flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 6. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot

	// Environment overrides
	envName := cfg.Environment
	if targetOverride != "" {
		envName = targetOverride
	}
	if envCfg, ok := cfg.Environments[envName]; ok {
		if envCfg.DataDir != "" && !changed(flags, "data-dir") {
			cfg.DataDir = envCfg.DataDir
		}
		if envCfg.Target != nil {
			cfg.Target = MergeTargetConfig(cfg.Target, envCfg.Target)
			if changed(flags, "target-type") {
				cfg.Target.Type = k.String("target.type")
			}
			if changed(flags, "database") {
				cfg.Target.Database = k.String("target.database")
			}
		}
	}

	if cfg.Target == nil {
		cfg.Target = &TargetConfig{}
	}
	if cfg.Target.Type == "" {
		cfg.Target.Type = "duckdb"
	}
	cfg.Target.Type = strings.ToLower(cfg.Target.Type)
	if cfg.Target.Type == "duckdb" && cfg.Target.Database == "" {
		cfg.Target.Database = DefaultWarehouse
	}

	expandTargetEnvVars(cfg.Target)
	cfg.OAuth.ClientID = expandEnvVars(cfg.OAuth.ClientID)
	cfg.OAuth.ClientSecret = expandEnvVars(cfg.OAuth.ClientSecret)
	cfg.Server.SessionSecret = expandEnvVars(cfg.Server.SessionSecret)
	cfg.Server.RedisURL = expandEnvVars(cfg.Server.RedisURL)

	// Flag paths are relative to the working directory, everything else to the project root.
	resolve := func(flag, path string) string {
		if path == ":memory:" {
			return path
		}
		if changed(flags, flag) {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
		return resolvePathRelativeTo(path, projectRoot)
	}
	cfg.DataDir = resolve("data-dir", cfg.DataDir)
	cfg.StatePath = resolve("state", cfg.StatePath)
	cfg.Model.Path = resolve("model", cfg.Model.Path)
	if cfg.Target.Type == "duckdb" {
		cfg.Target.Database = resolve("database", cfg.Target.Database)
	}

	if err := ValidateTarget(cfg.Target); err != nil {
		return nil, fmt.Errorf("invalid target configuration: %w", err)
	}

	currentConfig = &cfg
	return &cfg, nil
}

func changed(flags *pflag.FlagSet, name string) bool {
	if flags == nil {
		return false
	}
	f := flags.Lookup(name)
	return f != nil && f.Changed
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// The commands package reads the logger through it without importing the cli package.
func LoggerKey() any {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}

// expandTargetEnvVars expands environment variables in sensitive target fields.
func expandTargetEnvVars(t *TargetConfig) {
	if t == nil {
		return
	}
	t.Password = expandEnvVars(t.Password)
	t.User = expandEnvVars(t.User)
	t.Host = expandEnvVars(t.Host)
	t.Database = expandEnvVars(t.Database)
}

// MergeTargetConfig merges two target configs, with override taking precedence.
func MergeTargetConfig(base, override *TargetConfig) *TargetConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := *base
	merged.Options = make(map[string]string, len(base.Options)+len(override.Options))
	for k, v := range base.Options {
		merged.Options[k] = v
	}

	if override.Type != "" {
		merged.Type = override.Type
	}
	if override.Database != "" {
		merged.Database = override.Database
	}
	if override.Schema != "" {
		merged.Schema = override.Schema
	}
	if override.Host != "" {
		merged.Host = override.Host
	}
	if override.Port != 0 {
		merged.Port = override.Port
	}
	if override.User != "" {
		merged.User = override.User
	}
	if override.Password != "" {
		merged.Password = override.Password
	}
	for k, v := range override.Options {
		merged.Options[k] = v
	}
	return &merged
}
