package vector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/viant/sqlite-ml/mlerr"
)

// SQLStoreConfig names the table and columns holding points. Identifiers are
// interpolated into SQL and must be trusted.
type SQLStoreConfig struct {
	// Table is the source table (required).
	Table string
	// IDColumn defaults to "id".
	IDColumn string
	// PointColumn defaults to "coords"; it holds EncodePoint BLOBs.
	PointColumn string
}

func (c *SQLStoreConfig) init() error {
	if c.Table == "" {
		return mlerr.Configuration("vector.sql_store", "table", "source table is required")
	}
	if c.IDColumn == "" {
		c.IDColumn = "id"
	}
	if c.PointColumn == "" {
		c.PointColumn = "coords"
	}
	return nil
}

// SQLStore is a read-only PointStore over a database/sql table. It works with
// any driver that returns BLOB columns as []byte (SQLite, DuckDB).
type SQLStore struct {
	db  *sql.DB
	cfg SQLStoreConfig
}

// NewSQLStore creates a store for the configured table.
func NewSQLStore(db *sql.DB, cfg SQLStoreConfig) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("vector: db is nil")
	}
	if err := cfg.init(); err != nil {
		return nil, err
	}
	return &SQLStore{db: db, cfg: cfg}, nil
}

// Config returns the resolved configuration.
func (s *SQLStore) Config() SQLStoreConfig { return s.cfg }

// Name implements PointStore.
func (s *SQLStore) Name() string { return s.cfg.Table + "." + s.cfg.PointColumn }

var errStopScan = errors.New("stop scan")

// Scan implements PointStore. Rows are visited in id order; NULL and
// non-finite points are skipped.
func (s *SQLStore) Scan(ctx context.Context, fn func(p Point) error) error {
	q := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IS NOT NULL ORDER BY %s",
		s.cfg.IDColumn, s.cfg.PointColumn, s.cfg.Table, s.cfg.PointColumn, s.cfg.IDColumn)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return mlerr.Computation(err, "vector.scan", s.Name(), "query failed")
	}
	defer rows.Close()
	dim := 0
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return mlerr.Computation(err, "vector.scan", s.Name(), "scan failed")
		}
		coords, err := DecodePoint(blob)
		if err != nil {
			return mlerr.Configuration("vector.scan", s.Name(), "row %d: %v", id, err)
		}
		if !IsFinite(coords) {
			continue
		}
		if dim == 0 {
			dim = len(coords)
		} else if len(coords) != dim {
			return mlerr.Configuration("vector.scan", s.Name(), "row %d has dimension %d, want %d", id, len(coords), dim)
		}
		if err := fn(Point{ID: id, Coords: coords}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return mlerr.Computation(err, "vector.scan", s.Name(), "rows failed")
	}
	return nil
}

// Dim implements PointStore using the first usable point.
func (s *SQLStore) Dim(ctx context.Context) (int, error) {
	dim := 0
	err := s.Scan(ctx, func(p Point) error {
		dim = len(p.Coords)
		return errStopScan
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return 0, err
	}
	return dim, nil
}

// InsertPoints writes points into table (created by EnsurePointTable) in a
// single transaction.
func InsertPoints(ctx context.Context, db *sql.DB, table string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	if db == nil {
		return fmt.Errorf("vector: db is nil")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s(id, coords) VALUES(?, ?)`, table))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		var blob interface{}
		if len(p.Coords) > 0 {
			blob = EncodePoint(p.Coords)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, blob); err != nil {
			return err
		}
	}
	return tx.Commit()
}

var _ PointStore = (*SQLStore)(nil)
