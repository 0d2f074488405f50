package vector

import (
	"context"
	"math"
)

// Point is a single row of a point table: an optional integer identifier and
// its coordinates.
type Point struct {
	// ID identifies the point within its table.
	ID int64

	// Coords holds the coordinates; all points of one run share len(Coords).
	Coords []float64
}

// Finite reports whether every coordinate is a finite number.
func (p Point) Finite() bool { return IsFinite(p.Coords) }

// IsFinite reports whether v is non-empty and holds no NaN or Inf values.
func IsFinite(v []float64) bool {
	if len(v) == 0 {
		return false
	}
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// PointStore is a read-only view over an externally owned collection of
// points. Implementations skip unusable points (NULL or non-finite
// coordinates) and report a configuration error when dimensions disagree.
type PointStore interface {
	// Scan calls fn for every usable point in a stable order. Returning an
	// error from fn stops the scan and surfaces that error.
	Scan(ctx context.Context, fn func(p Point) error) error

	// Dim returns the dimension shared by the usable points, or 0 when the
	// store holds none.
	Dim(ctx context.Context) (int, error)

	// Name identifies the store in error messages (e.g. "points.coords").
	Name() string
}

// Collect loads every usable point of a store into memory.
func Collect(ctx context.Context, store PointStore) ([]Point, error) {
	var out []Point
	err := store.Scan(ctx, func(p Point) error {
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
