package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// CreateRun records a new running run. params is stored as JSON.
func (s *SQLiteStore) CreateRun(ctx context.Context, kind RunKind, seed uint64, params any) (*Run, error) {
	if err := s.opened(); err != nil {
		return nil, err
	}

	paramsJSON := []byte("{}")
	if params != nil {
		var err error
		if paramsJSON, err = json.Marshal(params); err != nil {
			return nil, fmt.Errorf("failed to encode run params: %w", err)
		}
	}

	run := &Run{
		ID:         generateID(),
		Kind:       kind,
		Status:     RunStatusRunning,
		Seed:       seed,
		ParamsJSON: string(paramsJSON),
		StartedAt:  time.Now().UTC(),
	}

	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("kind", string(kind)))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, status, seed, params_json, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), string(run.Status), strconv.FormatUint(seed, 10), run.ParamsJSON, formatTime(run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run finished with the given status.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error {
	if err := s.opened(); err != nil {
		return err
	}

	var errVal sql.NullString
	if errMsg != "" {
		errVal = sql.NullString{String: errMsg, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), errVal, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if err := s.opened(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, status, seed, params_json, started_at, completed_at, error FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A non-positive limit returns all runs.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if err := s.opened(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, status, seed, params_json, started_at, completed_at, error
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run         Run
		kind        string
		status      string
		seed        string
		startedAt   string
		completedAt sql.NullString
		errMsg      sql.NullString
	)
	if err := sc.Scan(&run.ID, &kind, &status, &seed, &run.ParamsJSON, &startedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}

	run.Kind = RunKind(kind)
	run.Status = RunStatus(status)
	run.Error = errMsg.String

	var err error
	if run.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return nil, fmt.Errorf("invalid seed %q: %w", seed, err)
	}
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, err
		}
		run.CompletedAt = &t
	}
	return &run, nil
}
