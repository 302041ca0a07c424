package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/gradesim/gradesim/internal/cache"
	"github.com/gradesim/gradesim/internal/cli/config"
	"github.com/gradesim/gradesim/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API over the loaded dataset.

Endpoints:
  GET  /api/health        liveness
  GET  /api/ready         store reachability
  GET  /api/students      rows of student_features (?limit=, max 2000)
  GET  /api/courses       per-course average final score and risk share
  POST /api/predict       score enrollments with the trained model
  POST /api/intervention  log an intervention for an enrollment
  GET  /login/google      start Google login (when oauth is configured)
  GET  /auth/callback     complete Google login
  GET  /auth/me           current session user

The model artifact is reloaded whenever the file changes. Course stats are
cached in Redis when server.redis_url is set.`,
		Example: `  # Serve on the default port 5001
  gradesim serve

  # Serve on another port with a Redis cache
  gradesim serve --port 8000 --redis-url redis://localhost:6379/0`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	cmd.Flags().Int("port", config.DefaultPort, "Port to listen on")
	cmd.Flags().String("model", "", "Model artifact path")
	cmd.Flags().String("redis-url", "", "Redis URL for the course stats cache")
	cmd.Flags().StringSlice("cors-origins", nil, "Allowed CORS origins (default: any)")
	cmd.Flags().String("frontend-url", "", "Redirect target after login")
	cmd.Flags().Bool("watch", true, "Reload the model when the artifact changes")

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, closeCache, err := newServer(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer closeCache()

	r := cmdCtx.Renderer
	r.Success(fmt.Sprintf("Serving on http://localhost:%d", cmdCtx.Cfg.Server.Port))
	r.Muted("Press Ctrl+C to stop")

	return srv.Serve(ctx)
}

// newServer wires the API server from configuration.
func newServer(ctx context.Context, cmdCtx *CommandContext) (*server.Server, func(), error) {
	cfg := cmdCtx.Cfg
	logger := cmdCtx.Logger

	c, err := cache.Open(ctx, cfg.Server.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	closeCache := func() {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close cache", slog.String("error", err.Error()))
		}
	}

	var oauth *oauth2.Config
	if cfg.OAuth.Enabled() {
		oauth = server.NewGoogleOAuth(cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, cfg.OAuth.RedirectURL)
	} else {
		logger.Info("google login disabled: oauth.client_id or oauth.client_secret not set")
	}
	if cfg.Server.SessionSecret == config.DefaultSessionSecret {
		logger.Warn("using the default session secret; set server.session_secret")
	}

	srv := server.NewServer(server.Config{
		Warehouse:     cmdCtx.Engine,
		Users:         cmdCtx.Engine.StateStore(),
		Cache:         c,
		CacheTTL:      cfg.Server.CacheTTL,
		Addr:          cfg.Server.Addr(),
		SessionSecret: cfg.Server.SessionSecret,
		FrontendURL:   cfg.Server.FrontendURL,
		CORSOrigins:   cfg.Server.CORSOrigins,
		OAuth:         oauth,
		ModelPath:     cfg.Model.Path,
		Watch:         cfg.Server.Watch,
		Logger:        logger,
	})
	return srv, closeCache, nil
}
