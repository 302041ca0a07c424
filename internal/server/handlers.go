package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gradesim/gradesim/internal/cache"
	"github.com/gradesim/gradesim/internal/engine"
)

// MaxStudents caps /api/students.
const MaxStudents = 2000

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports whether the store is reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.warehouse.Ping(r.Context()); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStudents(w http.ResponseWriter, r *http.Request) {
	limit := MaxStudents
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, MaxStudents)
	}

	rows, err := s.warehouse.StudentFeatures(r.Context(), limit)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var stats []engine.CourseStat
	err := s.cache.Get(ctx, cache.KeyCourseStats, &stats)
	if err == nil {
		writeJSON(w, http.StatusOK, stats)
		return
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("course cache read failed", slog.String("error", err.Error()))
	}

	stats, err = s.warehouse.CourseStats(ctx)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if err := s.cache.Set(ctx, cache.KeyCourseStats, stats, s.cacheTTL); err != nil {
		s.logger.Warn("course cache write failed", slog.String("error", err.Error()))
	}
	writeJSON(w, http.StatusOK, stats)
}

// PredictRequest is the /api/predict body. No ids scores every enrollment.
type PredictRequest struct {
	EnrollIDs []int `json:"enroll_ids"`
}

// PredictedRow is one scored enrollment.
type PredictedRow struct {
	EnrollID      int     `json:"enroll_id"`
	EntryGPA      float64 `json:"entry_gpa"`
	AttendancePct float64 `json:"attendance_pct"`
	AvgAssessment float64 `json:"avg_assessment"`
	PredictedRisk bool    `json:"predicted_risk"`
	Probability   float64 `json:"probability"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	model := s.Model()
	if model == nil {
		writeError(w, http.StatusServiceUnavailable, "model not available on server")
		return
	}

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	rows, err := s.warehouse.FeatureRows(ctx, req.EnrollIDs)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if len(rows) == 0 {
		writeJSON(w, http.StatusOK, []PredictedRow{})
		return
	}

	X := make([][]float64, len(rows))
	for i, row := range rows {
		X[i] = []float64{row.EntryGPA, row.AttendancePct, row.AvgAssessment}
	}
	probs, err := model.PredictProba(X)
	if err != nil {
		s.logger.Error("prediction failed", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "model not available on server")
		return
	}

	out := make([]PredictedRow, len(rows))
	preds := make([]engine.Prediction, len(rows))
	for i, row := range rows {
		risky := probs[i] >= model.Threshold
		out[i] = PredictedRow{
			EnrollID:      row.EnrollID,
			EntryGPA:      row.EntryGPA,
			AttendancePct: row.AttendancePct,
			AvgAssessment: row.AvgAssessment,
			PredictedRisk: risky,
			Probability:   probs[i],
		}
		preds[i] = engine.Prediction{EnrollID: row.EnrollID, PredictedRisk: risky, Probability: probs[i]}
	}

	if err := s.warehouse.SavePredictions(ctx, preds); err != nil {
		s.logger.Warn("unable to write predictions", slog.String("error", err.Error()))
	}
	writeJSON(w, http.StatusOK, out)
}

// InterventionRequest is the /api/intervention body.
type InterventionRequest struct {
	EnrollID int    `json:"enroll_id"`
	Type     string `json:"type"`
	Notes    string `json:"notes"`
}

func (s *Server) handleIntervention(w http.ResponseWriter, r *http.Request) {
	var req InterventionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EnrollID == 0 {
		writeError(w, http.StatusBadRequest, "missing enroll_id")
		return
	}

	if err := s.warehouse.LogIntervention(r.Context(), req.EnrollID, req.Type, req.Notes); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
