package statelog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/viant/sqlite-ml/kmeans"
	"github.com/viant/sqlite-ml/vector"
)

// Config names the log table.
type Config struct {
	// Table defaults to DefaultTable.
	Table string
}

// Log is a kmeans.StateLog backed by a SQLite table.
type Log struct {
	db    *sql.DB
	table string
}

// New creates the log table and its triggers if needed.
func New(ctx context.Context, db *sql.DB, cfg Config) (*Log, error) {
	if db == nil {
		return nil, fmt.Errorf("statelog: db is nil")
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	stmts := append([]string{TableDDL(cfg.Table)}, AppendOnlyTriggers(cfg.Table)...)
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("statelog: init %s: %w", cfg.Table, err)
		}
	}
	return &Log{db: db, table: cfg.Table}, nil
}

// Table returns the log table name.
func (l *Log) Table() string { return l.table }

// Append implements kmeans.StateLog. The iteration must directly follow the
// last logged iteration of the run; the check and the insert share one
// transaction.
func (l *Log) Append(ctx context.Context, s *kmeans.State) error {
	centroids, err := vector.EncodeMatrix(s.Centroids)
	if err != nil {
		return fmt.Errorf("statelog: encode centroids: %w", err)
	}
	var prior interface{}
	if len(s.PriorCentroids) > 0 {
		if prior, err = vector.EncodeMatrix(s.PriorCentroids); err != nil {
			return fmt.Errorf("statelog: encode prior centroids: %w", err)
		}
	}
	mapping := s.PriorMapping
	if mapping == nil {
		mapping = []int{}
	}
	mappingJSON, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("statelog: encode prior mapping: %w", err)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("statelog: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var last sql.NullInt64
	if err = tx.QueryRowContext(ctx, `SELECT MAX(iteration) FROM `+l.table+` WHERE run_id = ?`, s.RunID).Scan(&last); err != nil {
		return fmt.Errorf("statelog: last iteration of %s: %w", s.RunID, err)
	}
	if want := last.Int64 + 1; int64(s.Iteration) != want {
		return fmt.Errorf("statelog: run %s: append iteration %d, want %d", s.RunID, s.Iteration, want)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO `+l.table+`
        (run_id, iteration, centroids, prior_centroids, prior_mapping, objective_fn, frac_reassigned, num_points)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.Iteration, centroids, prior, string(mappingJSON), s.Objective, s.FracReassigned, s.NumPoints)
	if err != nil {
		return fmt.Errorf("statelog: insert %s/%d: %w", s.RunID, s.Iteration, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("statelog: commit: %w", err)
	}
	return nil
}

const selectColumns = `run_id, iteration, centroids, prior_centroids, prior_mapping, objective_fn, frac_reassigned, num_points`

// Load implements kmeans.StateLog.
func (l *Log) Load(ctx context.Context, runID string, iteration int) (*kmeans.State, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM `+l.table+` WHERE run_id = ? AND iteration = ?`, runID, iteration)
	s, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("statelog: run %s: iteration %d not logged", runID, iteration)
	}
	return s, err
}

// Last implements kmeans.StateLog.
func (l *Log) Last(ctx context.Context, runID string) (*kmeans.State, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM `+l.table+` WHERE run_id = ? ORDER BY iteration DESC LIMIT 1`, runID)
	s, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// Runs lists the logged run ids with their latest iteration.
func (l *Log) Runs(ctx context.Context) (map[string]int, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT run_id, MAX(iteration) FROM `+l.table+` GROUP BY run_id`)
	if err != nil {
		return nil, fmt.Errorf("statelog: runs: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var id string
		var it int
		if err = rows.Scan(&id, &it); err != nil {
			return nil, fmt.Errorf("statelog: runs: %w", err)
		}
		out[id] = it
	}
	return out, rows.Err()
}

func scanState(row *sql.Row) (*kmeans.State, error) {
	var (
		s         kmeans.State
		centroids []byte
		prior     []byte
		mapping   string
	)
	if err := row.Scan(&s.RunID, &s.Iteration, &centroids, &prior, &mapping, &s.Objective, &s.FracReassigned, &s.NumPoints); err != nil {
		return nil, err
	}
	var err error
	if s.Centroids, err = vector.DecodeMatrix(centroids); err != nil {
		return nil, fmt.Errorf("statelog: decode centroids: %w", err)
	}
	if len(prior) > 0 {
		if s.PriorCentroids, err = vector.DecodeMatrix(prior); err != nil {
			return nil, fmt.Errorf("statelog: decode prior centroids: %w", err)
		}
	}
	if err = json.Unmarshal([]byte(mapping), &s.PriorMapping); err != nil {
		return nil, fmt.Errorf("statelog: decode prior mapping: %w", err)
	}
	return &s, nil
}

var _ kmeans.StateLog = (*Log)(nil)
