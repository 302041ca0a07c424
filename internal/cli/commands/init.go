package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gradesim/gradesim/internal/cli/output"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var template string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new gradesim project",
		Long: `Initialize a new gradesim project with a default configuration.

This creates:
  - gradesim.yaml with generation, store, model and server settings
  - .env.example listing the secrets the configuration reads
  - .gitignore excluding generated data and local state

Use --template postgres for a configuration that loads into Postgres and
caches course stats in Redis.`,
		Example: `  # Initialize in current directory
  gradesim init

  # Initialize a Postgres-backed project in a new directory
  gradesim init my-project --template postgres

  # Force overwrite existing config
  gradesim init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			// An existing config may be the broken one being replaced.
			mode := output.ModeAuto
			if cfg, err := getConfig(); err == nil {
				mode = output.Mode(cfg.OutputFormat)
			}
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

			return runInit(r, dir, template, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().StringVar(&template, "template", "minimal", "Project template: minimal, postgres")
	_ = cmd.RegisterFlagCompletionFunc("template", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		names, _ := listTemplates()
		return names, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runInit(r *output.Renderer, dir, template string, force bool) error {
	files, err := listTemplateFiles(template)
	if err != nil || len(files) == 0 {
		names, _ := listTemplates()
		return fmt.Errorf("unknown template %q (available: %v)", template, names)
	}

	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, "gradesim.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("gradesim.yaml already exists. Use --force to overwrite")
	}

	if err := copyTemplate(template, dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	for _, f := range files {
		r.Success(f)
	}

	r.Println("")
	r.Success("gradesim project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Copy .env.example to .env and fill in the secrets")
	r.Println("  2. Run 'gradesim generate' to export the dataset")
	r.Println("  3. Run 'gradesim load' and 'gradesim train'")
	r.Println("  4. Run 'gradesim serve' to start the API")

	return nil
}
