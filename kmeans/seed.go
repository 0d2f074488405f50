package kmeans

import (
	"context"
	"math"
	"math/rand"

	"github.com/viant/sqlite-ml/mlerr"
	"github.com/viant/sqlite-ml/vector"
)

// Seeder produces the initial centroid set of a run. The result never holds
// more than k centroids.
type Seeder interface {
	Seed(ctx context.Context, points vector.PointStore, k int, metric vector.Capability, partial [][]float64) ([][]float64, error)
}

// RandomSeeder picks k distinct usable points uniformly without replacement.
// Supplied partial centroids are kept and count towards k.
type RandomSeeder struct {
	// RandSeed initialises the generator when Rand is nil.
	RandSeed int64
	// Rand overrides the generator.
	Rand *rand.Rand
}

// PlusPlusSeeder implements k-means++ seeding.
type PlusPlusSeeder struct {
	RandSeed int64
	Rand     *rand.Rand
}

// FixedSeeder returns a caller supplied centroid set.
type FixedSeeder struct {
	Centroids [][]float64
}

func newRand(r *rand.Rand, seed int64) *rand.Rand {
	if r != nil {
		return r
	}
	return rand.New(rand.NewSource(seed))
}

func pointKey(coords []float64) string { return string(vector.EncodePoint(coords)) }

// checkPartial validates partial centroids against k and the store dimension.
func checkPartial(op string, points vector.PointStore, dim, k int, partial [][]float64) error {
	if k < 1 {
		return mlerr.Configuration(op, "k", "k must be positive, got %d", k)
	}
	if len(partial) > k {
		return mlerr.Configuration(op, "initial_centroids", "%d centroids supplied for k=%d", len(partial), k)
	}
	for i, c := range partial {
		if len(c) != dim {
			return mlerr.Configuration(op, "initial_centroids", "centroid %d has dimension %d, %s has %d", i, len(c), points.Name(), dim)
		}
		if !vector.IsFinite(c) {
			return mlerr.Configuration(op, "initial_centroids", "centroid %d has non-finite coordinates", i)
		}
	}
	return nil
}

func storeDim(ctx context.Context, op string, points vector.PointStore) (int, error) {
	dim, err := points.Dim(ctx)
	if err != nil {
		return 0, mlerr.Wrap(err, op, points.Name())
	}
	if dim == 0 {
		return 0, mlerr.InsufficientData(op, points.Name(), "no usable points")
	}
	return dim, nil
}

// Seed implements Seeder.
func (s *RandomSeeder) Seed(ctx context.Context, points vector.PointStore, k int, _ vector.Capability, partial [][]float64) ([][]float64, error) {
	const op = "kmeans.seed.random"
	dim, err := storeDim(ctx, op, points)
	if err != nil {
		return nil, err
	}
	if err = checkPartial(op, points, dim, k, partial); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(partial))
	for _, c := range partial {
		seen[pointKey(c)] = true
	}
	var distinct [][]float64
	err = points.Scan(ctx, func(p vector.Point) error {
		key := pointKey(p.Coords)
		if seen[key] {
			return nil
		}
		seen[key] = true
		distinct = append(distinct, p.Coords)
		return nil
	})
	if err != nil {
		return nil, mlerr.Wrap(err, op, points.Name())
	}
	need := k - len(partial)
	if len(distinct) < need {
		return nil, mlerr.InsufficientData(op, points.Name(), "k=%d exceeds %d distinct usable points", k, len(distinct)+len(partial))
	}
	rng := newRand(s.Rand, s.RandSeed)
	for i := 0; i < need; i++ {
		j := i + rng.Intn(len(distinct)-i)
		distinct[i], distinct[j] = distinct[j], distinct[i]
	}
	out := cloneRows(partial)
	for _, c := range distinct[:need] {
		out = append(out, append([]float64(nil), c...))
	}
	return out, nil
}

// Seed implements Seeder. Each new centroid costs one scan of the store: the
// scan folds the previously chosen centroid into every point's squared
// distance and samples the next one by weighted reservoir.
func (s *PlusPlusSeeder) Seed(ctx context.Context, points vector.PointStore, k int, metric vector.Capability, partial [][]float64) ([][]float64, error) {
	const op = "kmeans.seed.kmeanspp"
	dim, err := storeDim(ctx, op, points)
	if err != nil {
		return nil, err
	}
	if err = checkPartial(op, points, dim, k, partial); err != nil {
		return nil, err
	}
	if metric.Distance == nil {
		return nil, mlerr.Configuration(op, "metric", "distance function is nil")
	}
	rng := newRand(s.Rand, s.RandSeed)
	centroids := cloneRows(partial)

	taken := make(map[string]bool, len(partial))
	for _, c := range partial {
		taken[pointKey(c)] = true
	}
	// weights[i] is the squared distance of the i-th scanned point to its
	// nearest chosen centroid; +Inf until the first centroid exists.
	var weights []float64
	var chosen []bool
	distinct := make(map[string]bool)
	var first []float64
	firstIdx, count := -1, 0
	err = points.Scan(ctx, func(p vector.Point) error {
		w := math.Inf(1)
		for _, c := range centroids {
			if d := metric.Squared(metric.Distance(p.Coords, c)); d < w {
				w = d
			}
		}
		weights = append(weights, w)
		chosen = append(chosen, false)
		if key := pointKey(p.Coords); !taken[key] {
			distinct[key] = true
		}
		count++
		if len(centroids) == 0 && rng.Intn(count) == 0 {
			first, firstIdx = p.Coords, count-1
		}
		return nil
	})
	if err != nil {
		return nil, mlerr.Wrap(err, op, points.Name())
	}
	if need := k - len(partial); len(distinct) < need {
		return nil, mlerr.InsufficientData(op, points.Name(), "k=%d exceeds %d distinct usable points", k, len(distinct)+len(partial))
	}
	var last []float64
	if len(centroids) == 0 {
		last = append([]float64(nil), first...)
		centroids = append(centroids, last)
		chosen[firstIdx] = true
	}
	for len(centroids) < k {
		if err = ctx.Err(); err != nil {
			return nil, mlerr.Computation(err, op, points.Name(), "seeding cancelled")
		}
		var (
			total    float64
			pick     = -1
			pickC    []float64
			fallback = -1
			fbC      []float64
			unchosen int
			i        int
		)
		err = points.Scan(ctx, func(p vector.Point) error {
			idx := i
			i++
			if idx >= len(weights) {
				return mlerr.Configuration(op, points.Name(), "store changed during seeding")
			}
			if last != nil {
				if d := metric.Squared(metric.Distance(p.Coords, last)); d < weights[idx] {
					weights[idx] = d
				}
			}
			if chosen[idx] {
				return nil
			}
			w := weights[idx]
			if w > 0 {
				total += w
				if rng.Float64()*total < w {
					pick, pickC = idx, p.Coords
				}
				return nil
			}
			unchosen++
			if rng.Intn(unchosen) == 0 {
				fallback, fbC = idx, p.Coords
			}
			return nil
		})
		if err != nil {
			return nil, mlerr.Wrap(err, op, points.Name())
		}
		if pick < 0 {
			pick, pickC = fallback, fbC
		}
		if pick < 0 {
			return nil, mlerr.InsufficientData(op, points.Name(), "no candidate left for centroid %d of %d", len(centroids)+1, k)
		}
		chosen[pick] = true
		weights[pick] = 0
		last = append([]float64(nil), pickC...)
		centroids = append(centroids, last)
	}
	return centroids, nil
}

// Seed implements Seeder. Partial centroids are not accepted.
func (s *FixedSeeder) Seed(ctx context.Context, points vector.PointStore, k int, _ vector.Capability, partial [][]float64) ([][]float64, error) {
	const op = "kmeans.seed.fixed"
	if len(partial) > 0 {
		return nil, mlerr.Configuration(op, "initial_centroids", "partial centroids cannot be combined with a fixed centroid set")
	}
	if len(s.Centroids) == 0 {
		return nil, mlerr.Configuration(op, "initial_centroids", "empty centroid set")
	}
	dim, err := storeDim(ctx, op, points)
	if err != nil {
		return nil, err
	}
	if err = checkPartial(op, points, dim, k, s.Centroids); err != nil {
		return nil, err
	}
	return cloneRows(s.Centroids), nil
}

var (
	_ Seeder = (*RandomSeeder)(nil)
	_ Seeder = (*PlusPlusSeeder)(nil)
	_ Seeder = (*FixedSeeder)(nil)
)
