package kmeans

import (
	"context"
	"runtime"

	"github.com/viant/sqlite-ml/mlerr"
	"github.com/viant/sqlite-ml/vector"
	"golang.org/x/sync/errgroup"
)

// Reducer performs one assign/update step: it assigns every usable point to
// its nearest centroid of in, recomputes the centroids and scores the
// assignment. Implementations must not modify in.
type Reducer interface {
	Reduce(ctx context.Context, in *State) (*State, error)
}

// chunkSize is the number of points assigned per goroutine. It is fixed so
// that summation order and therefore results do not depend on the host.
const chunkSize = 4096

// MemoryReducer keeps the points in process and assigns them in parallel.
type MemoryReducer struct {
	name   string
	points [][]float64
	metric vector.Capability
}

// NewMemoryReducer loads every usable point of store.
func NewMemoryReducer(ctx context.Context, store vector.PointStore, metric vector.Capability) (*MemoryReducer, error) {
	r := &MemoryReducer{name: store.Name(), metric: metric}
	err := store.Scan(ctx, func(p vector.Point) error {
		r.points = append(r.points, p.Coords)
		return nil
	})
	if err != nil {
		return nil, mlerr.Wrap(err, "kmeans.memory_reducer", store.Name())
	}
	return r, nil
}

// Reduce implements Reducer.
func (r *MemoryReducer) Reduce(ctx context.Context, in *State) (*State, error) {
	const op = "kmeans.reduce"
	n := len(r.points)
	if n == 0 {
		return nil, mlerr.InsufficientData(op, r.name, "no usable points")
	}
	if len(in.Centroids) == 0 {
		return nil, mlerr.InsufficientData(op, "centroids", "empty centroid set")
	}
	assigned := make([]int, n)
	dists := make([]float64, n)
	moved := make([]bool, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for start := 0; start < n; start += chunkSize {
		start, end := start, min(start+chunkSize, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				p := r.points[i]
				cid, d := vector.Closest(p, in.Centroids, r.metric.Distance)
				pid := -1
				if len(in.PriorCentroids) > 0 {
					pid, _ = vector.Closest(p, in.PriorCentroids, r.metric.Distance)
				}
				assigned[i], dists[i], moved[i] = cid, d, in.reassigned(cid, pid)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, mlerr.Computation(err, op, r.name, "assignment failed")
	}

	members := make([][][]float64, len(in.Centroids))
	var objective float64
	var movedCount int
	for i, p := range r.points {
		members[assigned[i]] = append(members[assigned[i]], p)
		objective += r.metric.Squared(dists[i])
		if moved[i] {
			movedCount++
		}
	}

	means := make([][]float64, len(in.Centroids))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for cid := range members {
		if len(members[cid]) == 0 {
			continue
		}
		cid := cid
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			means[cid] = r.metric.Mean(members[cid])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, mlerr.Computation(err, op, r.name, "reduction failed")
	}
	for cid, m := range means {
		if m != nil && !vector.IsFinite(m) {
			return nil, mlerr.Computation(nil, op, r.metric.Name, "mean of centroid %d is not finite", cid)
		}
	}
	return in.next(means, n, movedCount, objective), nil
}

var _ Reducer = (*MemoryReducer)(nil)
