package vector

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DistanceFunc computes a non-negative distance between two points of equal
// dimension.
type DistanceFunc func(a, b []float64) float64

// MeanFunc reduces a non-empty group of points to its representative point.
type MeanFunc func(points [][]float64) []float64

// Euclidean returns the L2 distance.
func Euclidean(a, b []float64) float64 { return floats.Distance(a, b, 2) }

// SquaredEuclidean returns the squared L2 distance.
func SquaredEuclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Manhattan returns the L1 distance.
func Manhattan(a, b []float64) float64 { return floats.Distance(a, b, 1) }

// Cosine returns 1 - cosine similarity. A zero-magnitude operand is treated
// as orthogonal to everything (distance 1).
func Cosine(a, b []float64) float64 {
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 1
	}
	d := 1 - floats.Dot(a, b)/(na*nb)
	if d < 0 {
		return 0
	}
	return d
}

// Tanimoto returns 1 - dot/(|a|^2 + |b|^2 - dot). Two zero vectors are at
// distance 0.
func Tanimoto(a, b []float64) float64 {
	dot := floats.Dot(a, b)
	denom := floats.Dot(a, a) + floats.Dot(b, b) - dot
	if denom == 0 {
		return 0
	}
	d := 1 - dot/denom
	if d < 0 {
		return 0
	}
	return d
}

// ArithmeticMean returns the element-wise mean of the points.
func ArithmeticMean(points [][]float64) []float64 {
	if len(points) == 0 {
		return nil
	}
	out := make([]float64, len(points[0]))
	for _, p := range points {
		floats.Add(out, p)
	}
	floats.Scale(1/float64(len(points)), out)
	return out
}

// NormalizedMean returns the mean of the L2-normalized points. Zero vectors
// contribute zero.
func NormalizedMean(points [][]float64) []float64 {
	if len(points) == 0 {
		return nil
	}
	out := make([]float64, len(points[0]))
	for _, p := range points {
		n := floats.Norm(p, 2)
		if n == 0 {
			continue
		}
		floats.AddScaled(out, 1/n, p)
	}
	floats.Scale(1/float64(len(points)), out)
	return out
}

// Normalize returns v scaled to unit L2 norm (a copy); zero vectors are
// returned unchanged.
func Normalize(v []float64) []float64 {
	out := append([]float64(nil), v...)
	if n := floats.Norm(out, 2); n != 0 && !math.IsInf(n, 0) {
		floats.Scale(1/n, out)
	}
	return out
}

// Closest returns the index of the centroid nearest to p and the distance to
// it. Ties resolve to the lowest index. It returns -1 for an empty set.
func Closest(p []float64, centroids [][]float64, distance DistanceFunc) (int, float64) {
	best := -1
	bestDist := math.Inf(1)
	for i, c := range centroids {
		if d := distance(p, c); best < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best, bestDist
}
