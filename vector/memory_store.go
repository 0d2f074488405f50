package vector

import (
	"context"

	"github.com/viant/sqlite-ml/mlerr"
)

// MemoryStore is an in-process PointStore. Unusable points are dropped when
// the store is built so that Scan only ever sees finite points.
type MemoryStore struct {
	name   string
	points []Point
	dim    int
}

// NewMemoryStore builds a store from points, skipping non-finite ones. All
// remaining points must share one dimension.
func NewMemoryStore(name string, points []Point) (*MemoryStore, error) {
	s := &MemoryStore{name: name}
	for _, p := range points {
		if !p.Finite() {
			continue
		}
		if s.dim == 0 {
			s.dim = len(p.Coords)
		} else if len(p.Coords) != s.dim {
			return nil, mlerr.Configuration("vector.memory_store", name, "point %d has dimension %d, want %d", p.ID, len(p.Coords), s.dim)
		}
		s.points = append(s.points, p)
	}
	return s, nil
}

// FromCoords is a convenience constructor assigning ids 1..n in order.
func FromCoords(name string, coords [][]float64) (*MemoryStore, error) {
	points := make([]Point, len(coords))
	for i, c := range coords {
		points[i] = Point{ID: int64(i + 1), Coords: c}
	}
	return NewMemoryStore(name, points)
}

// Scan implements PointStore.
func (s *MemoryStore) Scan(ctx context.Context, fn func(p Point) error) error {
	for i, p := range s.points {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

// Dim implements PointStore.
func (s *MemoryStore) Dim(context.Context) (int, error) { return s.dim, nil }

// Name implements PointStore.
func (s *MemoryStore) Name() string { return s.name }

// Points returns the usable points. Callers must not modify them.
func (s *MemoryStore) Points() []Point { return s.points }

// Len returns the number of usable points.
func (s *MemoryStore) Len() int { return len(s.points) }

var _ PointStore = (*MemoryStore)(nil)
