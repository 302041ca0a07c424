package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gradesim/gradesim/internal/engine"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps a warehouse error to a response.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, "enrollment not found")
	case errors.Is(err, engine.ErrUnavailable):
		s.logger.Warn("store unavailable", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		s.logger.Error("request failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
