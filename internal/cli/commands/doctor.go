package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gradesim/gradesim/internal/cache"
	"github.com/gradesim/gradesim/internal/cli/config"
	"github.com/gradesim/gradesim/internal/cli/output"
	"github.com/gradesim/gradesim/internal/engine"
	"github.com/gradesim/gradesim/internal/export"
	"github.com/gradesim/gradesim/internal/risk"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format string // Output format: text, json
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the project setup",
		Long: `Check every piece the pipeline depends on and report what is missing.

The doctor command verifies:
- Project: configuration file
- Data: export manifest and CSV checksums
- Store: connectivity and whether the dataset is loaded
- Model: the trained artifact and its feature set
- Server: session secret, Google login and the Redis cache

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Run health check
  gradesim doctor

  # Output as JSON
  gradesim doctor --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, json")

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	HealthChecks    []HealthCheck `json:"health_checks"`
	Score           int           `json:"score"`
	Recommendations []string      `json:"recommendations"`
	IssueCount      int           `json:"issue_count"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"` // "pass", "warn", "error"
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

const (
	statusPass  = "pass"
	statusWarn  = "warn"
	statusError = "error"
)

// redisProbeTimeout bounds the cache connectivity check.
const redisProbeTimeout = 3 * time.Second

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	checks := runHealthChecks(cmd.Context(), cmdCtx.Cfg, cmdCtx.Engine, config.GetConfigFileUsed())
	doctorOutput := buildDoctorOutput(checks)

	return renderDoctor(r, doctorOutput)
}

func renderDoctor(r *output.Renderer, out *DoctorOutput) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		return renderDoctorMarkdown(r, out)
	default:
		return renderDoctorText(r, out)
	}
}

func newCheck(id, name, group string) HealthCheck {
	return HealthCheck{ID: id, Name: name, Group: group, Status: statusPass}
}

func (c *HealthCheck) fail(status, detail string) {
	// An error is never downgraded to a warning.
	if c.Status != statusError {
		c.Status = status
	}
	c.IssueCount++
	c.Details = append(c.Details, detail)
}

func runHealthChecks(ctx context.Context, cfg *config.Config, eng *engine.Engine, configFile string) []HealthCheck {
	checks := []HealthCheck{checkConfigFile(configFile)}
	checks = append(checks, checkExport(cfg.DataDir)...)
	checks = append(checks, checkStore(ctx, eng)...)
	checks = append(checks, checkModel(cfg.Model.Path))
	checks = append(checks, checkServer(ctx, cfg)...)

	sort.SliceStable(checks, func(i, j int) bool {
		if checks[i].Group != checks[j].Group {
			return checks[i].Group < checks[j].Group
		}
		return checks[i].ID < checks[j].ID
	})
	return checks
}

func checkConfigFile(configFile string) HealthCheck {
	c := newCheck("CF01", "Configuration file", "project")
	if configFile == "" {
		c.fail(statusWarn, "no gradesim.yaml found, using defaults")
	}
	return c
}

func checkExport(dir string) []HealthCheck {
	manifest := newCheck("DA01", "Export manifest", "data")
	checksums := newCheck("DA02", "Export checksums", "data")

	m, err := export.ReadManifest(dir)
	if err != nil {
		manifest.fail(statusWarn, err.Error())
		checksums.fail(statusWarn, "skipped: no manifest in "+dir)
		return []HealthCheck{manifest, checksums}
	}
	if err := export.Verify(dir, m); err != nil {
		status := statusWarn
		if errors.Is(err, export.ErrChecksumMismatch) {
			status = statusError
		}
		checksums.fail(status, err.Error())
	}
	return []HealthCheck{manifest, checksums}
}

func checkStore(ctx context.Context, eng *engine.Engine) []HealthCheck {
	reach := newCheck("ST01", "Store reachable", "store")
	loaded := newCheck("ST02", "Dataset loaded", "store")

	if err := eng.Ping(ctx); err != nil {
		reach.fail(statusError, err.Error())
		loaded.fail(statusWarn, "skipped: store unreachable")
		return []HealthCheck{reach, loaded}
	}
	rows, err := eng.StudentFeatures(ctx, 1)
	switch {
	case err != nil:
		loaded.fail(statusWarn, err.Error())
	case len(rows) == 0:
		loaded.fail(statusWarn, "student_features is empty")
	}
	return []HealthCheck{reach, loaded}
}

func checkModel(path string) HealthCheck {
	c := newCheck("MD01", "Model artifact", "model")

	m, err := risk.Load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.fail(statusWarn, "no model at "+path)
	case err != nil:
		c.fail(statusError, err.Error())
	case !slices.Equal(m.Features, engine.FeatureNames):
		c.fail(statusError, fmt.Sprintf("model features %v do not match %v", m.Features, engine.FeatureNames))
	}
	return c
}

func checkServer(ctx context.Context, cfg *config.Config) []HealthCheck {
	secret := newCheck("SV01", "Session secret", "server")
	if cfg.Server.SessionSecret == config.DefaultSessionSecret {
		secret.fail(statusWarn, "server.session_secret is the development default")
	}

	login := newCheck("SV02", "Google login", "server")
	if !cfg.OAuth.Enabled() {
		login.fail(statusWarn, "oauth.client_id or oauth.client_secret not set")
	}

	redis := newCheck("SV03", "Redis cache", "server")
	if cfg.Server.RedisURL != "" {
		probeCtx, cancel := context.WithTimeout(ctx, redisProbeTimeout)
		defer cancel()
		c, err := cache.Open(probeCtx, cfg.Server.RedisURL)
		if err != nil {
			redis.fail(statusError, err.Error())
		} else {
			_ = c.Close()
		}
	}

	return []HealthCheck{secret, login, redis}
}

func buildDoctorOutput(checks []HealthCheck) *DoctorOutput {
	issues := 0
	for _, c := range checks {
		issues += c.IssueCount
	}
	return &DoctorOutput{
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks),
		Recommendations: generateRecommendations(checks),
		IssueCount:      issues,
	}
}

// calculateHealthScore computes a health score from 0-100.
// Each warning costs basePenalty points and each error twice that.
func calculateHealthScore(checks []HealthCheck) int {
	const basePenalty = 10.0

	score := 100.0
	for _, check := range checks {
		switch check.Status {
		case statusError:
			score -= float64(check.IssueCount) * basePenalty * 2
		case statusWarn:
			score -= float64(check.IssueCount) * basePenalty
		}
	}

	if score < 0 {
		score = 0
	}
	return int(score)
}

// generateRecommendations creates actionable recommendations based on findings.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	seen := make(map[string]bool)

	for _, check := range checks {
		if check.IssueCount == 0 {
			continue
		}
		rec := getRecommendation(check.ID)
		if rec != "" && !seen[rec] {
			recommendations = append(recommendations, rec)
			seen[rec] = true
		}
	}

	// Limit to top 5 recommendations
	if len(recommendations) > 5 {
		recommendations = recommendations[:5]
	}
	return recommendations
}

// getRecommendation returns a recommendation for a specific check.
func getRecommendation(id string) string {
	switch id {
	case "CF01":
		return "Create a gradesim.yaml to pin the seed and generation parameters"
	case "DA01":
		return "Run 'gradesim generate' to export the dataset"
	case "DA02":
		return "Regenerate the dataset: exported files no longer match the manifest"
	case "ST01":
		return "Check target settings in gradesim.yaml and that the database is running"
	case "ST02":
		return "Run 'gradesim load' to load the exported dataset"
	case "MD01":
		return "Run 'gradesim train' to fit the at-risk model"
	case "SV01":
		return "Set server.session_secret (or GRADESIM_SERVER__SESSION_SECRET)"
	case "SV02":
		return "Set oauth.client_id and oauth.client_secret to enable Google login"
	case "SV03":
		return "Check server.redis_url or unset it to serve without a cache"
	default:
		return ""
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render("gradesim Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	currentGroup := ""
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + output.Title(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.StatusSuccess.String()
		switch check.Status {
		case statusWarn:
			icon = styles.Warning.Render("!")
		case statusError:
			icon = styles.StatusFailed.String()
		}

		r.Println(fmt.Sprintf("   %s %s: %s", icon, check.ID, check.Name))
		for _, detail := range check.Details {
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println(output.FormatHeader(1, "gradesim Health Report"))
	r.Println("")

	currentGroup := ""
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(output.FormatHeader(2, output.Title(currentGroup)))
			r.Println("")
		}

		r.Printf("- **[%s]** %s: %s\n", strings.ToUpper(check.Status), check.ID, check.Name)
		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	r.Println(output.FormatHeader(2, "Health Score"))
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(output.FormatHeader(2, "Recommendations"))
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}
