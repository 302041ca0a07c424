package server

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Handler returns the router with all API and login routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
		s.corsHandler(),
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)
		r.Get("/students", s.handleStudents)
		r.Get("/courses", s.handleCourses)
		r.Post("/predict", s.handlePredict)
		r.Post("/intervention", s.handleIntervention)
	})

	r.Get("/login/google", s.handleLogin)
	r.Get("/auth/callback", s.handleCallback)
	r.Get("/auth/me", s.handleMe)

	return r
}

func (s *Server) corsHandler() func(http.Handler) http.Handler {
	origins := s.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: !slices.Contains(origins, "*"),
		MaxAge:           300,
	})
}
