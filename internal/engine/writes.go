package engine

import (
	"context"
	"log/slog"
	"strings"
)

// Prediction is a scored enrollment.
type Prediction struct {
	EnrollID      int
	PredictedRisk bool
	Probability   float64
}

// SavePredictions replaces the contents of the predictions table.
func (e *Engine) SavePredictions(ctx context.Context, preds []Prediction) error {
	if err := e.ensureDBConnected(ctx); err != nil {
		return err
	}

	e.predMu.Lock()
	defer e.predMu.Unlock()

	// DuckDB rejects re-inserting a key deleted in the same transaction,
	// so the DELETE commits before the inserts.
	if err := e.db.Exec(ctx, "DELETE FROM predictions"); err != nil {
		return unavailable("save predictions", err)
	}

	tx, err := e.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return unavailable("save predictions", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO predictions (enroll_id, predicted_risk, probability) VALUES ($1, $2, $3)")
	if err != nil {
		return unavailable("save predictions", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, p := range preds {
		if _, err := stmt.ExecContext(ctx, p.EnrollID, p.PredictedRisk, p.Probability); err != nil {
			return unavailable("save predictions", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("save predictions", err)
	}

	e.logger.Debug("predictions saved", slog.Int("rows", len(preds)))
	return nil
}

// LogIntervention records an intervention for an existing enrollment.
// An empty type defaults to "tutoring".
func (e *Engine) LogIntervention(ctx context.Context, enrollID int, interventionType, notes string) error {
	if err := e.ensureDBConnected(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(interventionType) == "" {
		interventionType = "tutoring"
	}

	ok, err := e.enrollmentExists(ctx, enrollID)
	if err != nil {
		return err
	}
	if !ok {
		return errEnrollmentNotFound(enrollID)
	}

	if err := e.db.Exec(ctx,
		"INSERT INTO intervention_logs (enroll_id, intervention_type, notes) VALUES ($1, $2, $3)",
		enrollID, interventionType, notes,
	); err != nil {
		return unavailable("log intervention", err)
	}

	e.logger.Info("intervention logged", slog.Int("enroll_id", enrollID), slog.String("type", interventionType))
	return nil
}
