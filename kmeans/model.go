package kmeans

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/viant/sqlite-ml/mlerr"
	"github.com/viant/sqlite-ml/vector"
)

// Status is the terminal state of a run.
type Status string

const (
	StatusConverged      Status = "converged"
	StatusMaxIterReached Status = "max_iter_reached"
)

// Model is the result of a k-means run.
type Model struct {
	RunID          string
	Centroids      [][]float64
	Objective      float64
	FracReassigned float64
	NumIterations  int
	Metric         string
	Status         Status
}

// Assemble converts the final iteration state into a model.
func Assemble(final *State, metric string, status Status) (*Model, error) {
	if final == nil || len(final.Centroids) == 0 {
		return nil, mlerr.InsufficientData("kmeans.assemble", "state", "no final state")
	}
	return &Model{
		RunID:          final.RunID,
		Centroids:      cloneRows(final.Centroids),
		Objective:      final.Objective,
		FracReassigned: final.FracReassigned,
		NumIterations:  final.Iteration,
		Metric:         metric,
		Status:         status,
	}, nil
}

// Closest returns the index of the centroid nearest to p under the model's
// metric and the distance to it.
func (m *Model) Closest(p []float64) (int, float64, error) {
	const op = "kmeans.closest"
	metric, err := vector.Resolve(m.Metric)
	if err != nil {
		return -1, 0, err
	}
	if len(m.Centroids) == 0 {
		return -1, 0, mlerr.ModelNotFound(op, "centroids", "model %s has no centroids", m.RunID)
	}
	if len(p) != len(m.Centroids[0]) {
		return -1, 0, mlerr.Configuration(op, "point", "dimension %d, model has %d", len(p), len(m.Centroids[0]))
	}
	idx, d := vector.Closest(p, m.Centroids, metric.Distance)
	return idx, d, nil
}

const modelSchema = `CREATE TABLE IF NOT EXISTS %s (
	run_id TEXT PRIMARY KEY,
	centroids BLOB NOT NULL,
	objective_fn REAL NOT NULL,
	frac_reassigned REAL NOT NULL,
	num_iterations INTEGER NOT NULL,
	metric TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

// EnsureModelTable creates the model table if it does not exist.
func EnsureModelTable(ctx context.Context, db *sql.DB, table string) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf(modelSchema, table)); err != nil {
		return fmt.Errorf("kmeans: create model table %s: %w", table, err)
	}
	return nil
}

// SaveModel writes m as one row of table, replacing a model with the same
// run id.
func SaveModel(ctx context.Context, db *sql.DB, table string, m *Model) error {
	if err := EnsureModelTable(ctx, db, table); err != nil {
		return mlerr.Wrap(err, "kmeans.save_model", table)
	}
	blob, err := vector.EncodeMatrix(m.Centroids)
	if err != nil {
		return mlerr.Configuration("kmeans.save_model", "centroids", "%v", err)
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf(`INSERT OR REPLACE INTO %s
		(run_id, centroids, objective_fn, frac_reassigned, num_iterations, metric, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, table),
		m.RunID, blob, m.Objective, m.FracReassigned, m.NumIterations, m.Metric, string(m.Status))
	if err != nil {
		return mlerr.Computation(err, "kmeans.save_model", table, "insert")
	}
	return nil
}

// LoadModel reads the model of runID from table; an empty runID loads the
// most recently saved one.
func LoadModel(ctx context.Context, db *sql.DB, table, runID string) (*Model, error) {
	const op = "kmeans.load_model"
	query := fmt.Sprintf(`SELECT run_id, centroids, objective_fn, frac_reassigned, num_iterations, metric, status FROM %s`, table)
	var args []interface{}
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	} else {
		query += ` ORDER BY created_at DESC, rowid DESC LIMIT 1`
	}
	var (
		m      Model
		blob   []byte
		status string
	)
	err := db.QueryRowContext(ctx, query, args...).Scan(&m.RunID, &blob, &m.Objective, &m.FracReassigned, &m.NumIterations, &m.Metric, &status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, mlerr.ModelNotFound(op, table, "no model for run %q", runID)
	case err != nil && strings.Contains(err.Error(), "no such table"):
		return nil, mlerr.ModelNotFound(op, table, "model table does not exist")
	case err != nil:
		return nil, mlerr.Computation(err, op, table, "query")
	}
	if m.Centroids, err = vector.DecodeMatrix(blob); err != nil {
		return nil, mlerr.Computation(err, op, table, "decode centroids")
	}
	m.Status = Status(status)
	return &m, nil
}
