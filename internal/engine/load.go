package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gradesim/gradesim/internal/dataset"
	"github.com/gradesim/gradesim/internal/export"
	"github.com/gradesim/gradesim/internal/state"
)

// TableLoad reports one loaded table.
type TableLoad struct {
	Table    string
	Rows     int64
	Duration time.Duration
}

// LoadResult reports a LoadDataset call.
type LoadResult struct {
	RunID  string
	Seed   uint64
	Tables []TableLoad
}

// LoadDataset loads an export directory into the store. It verifies the manifest
// checksums, recreates the schema, loads the seven tables in dependency order,
// checks every row count against the manifest, and then creates the
// student_features view and the intervention_logs and predictions tables.
func (e *Engine) LoadDataset(ctx context.Context, dir string) (*LoadResult, error) {
	m, err := export.ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	if err := export.Verify(dir, m); err != nil {
		return nil, err
	}

	run, err := e.store.CreateRun(ctx, state.RunKindLoad, m.Seed, map[string]string{
		"dir":    dir,
		"target": e.dbConfig.Type,
	})
	if err != nil {
		return nil, err
	}

	res, loadErr := e.load(ctx, dir, m)
	status, msg := state.RunStatusCompleted, ""
	if loadErr != nil {
		status, msg = state.RunStatusFailed, loadErr.Error()
	}
	if err := e.store.CompleteRun(ctx, run.ID, status, msg); err != nil {
		e.logger.Warn("failed to record load run", slog.String("run_id", run.ID), slog.String("error", err.Error()))
	}
	if loadErr != nil {
		return nil, loadErr
	}

	res.RunID = run.ID
	res.Seed = m.Seed
	return res, nil
}

func (e *Engine) load(ctx context.Context, dir string, m *export.Manifest) (*LoadResult, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	if err := e.execScript(ctx, "create schema", schemaSQL); err != nil {
		return nil, err
	}

	res := &LoadResult{}
	for _, table := range dataset.Tables {
		entry, _ := m.Table(table)
		sqlTable := sqlTables[table]
		start := time.Now()

		e.logger.Debug("loading table", slog.String("table", sqlTable), slog.String("file", entry.File))
		if err := e.db.LoadCSV(ctx, sqlTable, filepath.Join(dir, entry.File)); err != nil {
			return nil, unavailable("load "+sqlTable, err)
		}

		rows, err := e.count(ctx, sqlTable)
		if err != nil {
			return nil, err
		}
		if rows != int64(entry.Rows) {
			return nil, fmt.Errorf("table %s: loaded %d rows, manifest has %d", sqlTable, rows, entry.Rows)
		}
		res.Tables = append(res.Tables, TableLoad{Table: sqlTable, Rows: rows, Duration: time.Since(start)})
	}

	if err := e.execScript(ctx, "create views", viewsSQL); err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) count(ctx context.Context, table string) (int64, error) {
	var n int64
	//nolint:gosec // table names come from the fixed schema
	if err := e.db.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, unavailable("count "+table, err)
	}
	return n, nil
}
