package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/viant/sqlite-ml/mlerr"
	"github.com/viant/sqlite-ml/vector"
)

// Record is one Parquet row of a point set.
type Record struct {
	ID     int64     `parquet:"id"`
	Coords []float64 `parquet:"coords"`
}

const batchSize = 1024

// Write writes points to w as zstd-compressed Parquet.
func Write(w io.Writer, points []vector.Point) error {
	pw := parquet.NewGenericWriter[Record](w, parquet.Compression(&parquet.Zstd))
	defer func() { _ = pw.Close() }()
	batch := make([]Record, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		_, err := pw.Write(batch)
		batch = batch[:0]
		return err
	}
	for _, p := range points {
		batch = append(batch, Record{ID: p.ID, Coords: p.Coords})
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return fmt.Errorf("dataset: write: %w", err)
			}
		}
	}
	if err := flush(); err != nil {
		return fmt.Errorf("dataset: write: %w", err)
	}
	return pw.Close()
}

// Read reads every row of a Parquet point set. Rows are returned as stored,
// including empty or non-finite coordinates.
func Read(r io.ReaderAt, size int64) ([]vector.Point, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("dataset: open: %w", err)
	}
	pr := parquet.NewGenericReader[Record](pf)
	defer pr.Close()
	out := make([]vector.Point, 0, pr.NumRows())
	batch := make([]Record, batchSize)
	for {
		n, err := pr.Read(batch)
		for _, rec := range batch[:n] {
			out = append(out, vector.Point{ID: rec.ID, Coords: append([]float64(nil), rec.Coords...)})
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: read: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return out, nil
}

// WriteFile writes points to path.
func WriteFile(path string, points []vector.Point) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = Write(f, points); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadFile reads the point set stored at path.
func ReadFile(path string) ([]vector.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return Read(f, info.Size())
}

// Load reads path into a MemoryStore named after the file; unusable rows
// are dropped.
func Load(path string) (*vector.MemoryStore, error) {
	points, err := ReadFile(path)
	if err != nil {
		return nil, mlerr.Configuration("dataset.load", path, "%v", err)
	}
	return vector.NewMemoryStore(path, points)
}

// Import copies the point set at path into table, creating it when needed,
// and returns the number of rows written.
func Import(ctx context.Context, db *sql.DB, table, path string) (int, error) {
	points, err := ReadFile(path)
	if err != nil {
		return 0, mlerr.Configuration("dataset.import", path, "%v", err)
	}
	if err = vector.EnsurePointTable(db, table); err != nil {
		return 0, mlerr.Wrap(err, "dataset.import", table)
	}
	if err = vector.InsertPoints(ctx, db, table, points); err != nil {
		return 0, mlerr.Computation(err, "dataset.import", table, "insert")
	}
	return len(points), nil
}

// Export writes the usable points of store to path and returns their count.
func Export(ctx context.Context, store vector.PointStore, path string) (int, error) {
	points, err := vector.Collect(ctx, store)
	if err != nil {
		return 0, mlerr.Wrap(err, "dataset.export", store.Name())
	}
	if err = WriteFile(path, points); err != nil {
		return 0, mlerr.Computation(err, "dataset.export", path, "write")
	}
	return len(points), nil
}
