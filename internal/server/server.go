// Package server provides the HTTP API over a loaded dataset: student and
// course reads, at-risk prediction, intervention logging, and Google login.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/gradesim/gradesim/internal/cache"
	"github.com/gradesim/gradesim/internal/engine"
	"github.com/gradesim/gradesim/internal/state"
)

// Warehouse is the read/write surface the API needs from the store.
type Warehouse interface {
	Ping(ctx context.Context) error
	StudentFeatures(ctx context.Context, limit int) ([]engine.FeatureRow, error)
	CourseStats(ctx context.Context) ([]engine.CourseStat, error)
	FeatureRows(ctx context.Context, enrollIDs []int) ([]engine.FeatureRow, error)
	SavePredictions(ctx context.Context, preds []engine.Prediction) error
	LogIntervention(ctx context.Context, enrollID int, interventionType, notes string) error
}

// UserStore resolves login identities.
type UserStore interface {
	GetOrCreateUser(ctx context.Context, email string) (*state.User, error)
}

// DefaultFrontendURL is where a completed login redirects when none is configured.
const DefaultFrontendURL = "http://localhost:8080/"

// Server is the API server.
type Server struct {
	warehouse    Warehouse
	users        UserStore
	cache        cache.Cache
	cacheTTL     time.Duration
	sessionStore *sessions.CookieStore
	oauth        *oauth2.Config
	userInfoURL  string
	frontendURL  string
	corsOrigins  []string
	addr         string
	modelPath    string
	watch        bool
	models       modelHolder
	logger       *slog.Logger
}

// Config holds configuration for the API server.
type Config struct {
	Warehouse Warehouse
	Users     UserStore
	// Cache holds course stats. Nil disables caching.
	Cache    cache.Cache
	CacheTTL time.Duration
	// Addr is the listen address, e.g. ":5001".
	Addr          string
	SessionSecret string
	FrontendURL   string
	CORSOrigins   []string
	// OAuth enables Google login. Nil disables the login routes.
	OAuth *oauth2.Config
	// UserInfoURL overrides the Google userinfo endpoint.
	UserInfoURL string
	// ModelPath is the classifier artifact. It is loaded at startup and,
	// with Watch, reloaded whenever the file changes.
	ModelPath string
	Watch     bool
	Logger    *slog.Logger
}

// NewServer creates a new API server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.MaxAge(86400 * 7) // 7 days
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	s := &Server{
		warehouse:    cfg.Warehouse,
		users:        cfg.Users,
		cache:        cfg.Cache,
		cacheTTL:     cfg.CacheTTL,
		sessionStore: sessionStore,
		oauth:        cfg.OAuth,
		userInfoURL:  cfg.UserInfoURL,
		frontendURL:  cfg.FrontendURL,
		corsOrigins:  cfg.CORSOrigins,
		addr:         cfg.Addr,
		modelPath:    cfg.ModelPath,
		watch:        cfg.Watch,
		logger:       logger,
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = 5 * time.Minute
	}
	if s.userInfoURL == "" {
		s.userInfoURL = googleUserInfoURL
	}
	if s.frontendURL == "" {
		s.frontendURL = DefaultFrontendURL
	}
	if s.addr == "" {
		s.addr = ":5001"
	}
	if s.modelPath != "" {
		s.reloadModel()
	}
	return s
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting API server", "addr", s.addr, "model_loaded", s.Model() != nil)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch && s.modelPath != "" {
		eg.Go(func() error {
			return s.watchModel(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
