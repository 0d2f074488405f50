package vector

import (
	"fmt"
	"math"
	"strings"

	"github.com/viant/sqlite-ml/mlerr"
)

// Built-in capability names.
const (
	MetricEuclidean        = "euclidean"
	MetricSquaredEuclidean = "squared_euclidean"
	MetricManhattan        = "manhattan"
	MetricCosine           = "cosine"
	MetricTanimoto         = "tanimoto"
)

// Capability pairs a distance function with the mean function that reduces
// a cluster under that distance. It is resolved and validated once, before a
// run starts.
type Capability struct {
	Name     string
	Distance DistanceFunc
	Mean     MeanFunc
	builtin  bool
}

// Builtin reports whether the capability is one of the named metrics known to
// the SQL functions registered by the engine package.
func (c Capability) Builtin() bool { return c.builtin }

// Normalized reports whether points are normalized before averaging.
func (c Capability) Normalized() bool {
	return c.builtin && (c.Name == MetricCosine || c.Name == MetricTanimoto)
}

// AlreadySquared reports whether distances are squared Euclidean distances,
// so objective and seeding weights use them as they are.
func (c Capability) AlreadySquared() bool {
	return c.builtin && c.Name == MetricSquaredEuclidean
}

// Squared returns the squared-distance term for d: d itself when
// AlreadySquared, d*d otherwise.
func (c Capability) Squared(d float64) float64 {
	if c.AlreadySquared() {
		return d
	}
	return d * d
}

// NewCapability builds a caller-supplied capability. It is not usable by the
// SQL reducer, which only knows built-in metrics.
func NewCapability(name string, distance DistanceFunc, mean MeanFunc) Capability {
	return Capability{Name: name, Distance: distance, Mean: mean}
}

// Resolve returns the built-in capability for a metric name. Aliases used by
// other SQL ML libraries (dist_norm2, squared_dist_norm2, dist_norm1,
// dist_angle, dist_tanimoto, l2, l1) are accepted.
func Resolve(name string) (Capability, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", MetricEuclidean, "l2", "dist_norm2":
		return Capability{Name: MetricEuclidean, Distance: Euclidean, Mean: ArithmeticMean, builtin: true}, nil
	case MetricSquaredEuclidean, "squared_dist_norm2", "l2sq":
		return Capability{Name: MetricSquaredEuclidean, Distance: SquaredEuclidean, Mean: ArithmeticMean, builtin: true}, nil
	case MetricManhattan, "l1", "dist_norm1":
		return Capability{Name: MetricManhattan, Distance: Manhattan, Mean: ArithmeticMean, builtin: true}, nil
	case MetricCosine, "cos", "dist_angle":
		return Capability{Name: MetricCosine, Distance: Cosine, Mean: NormalizedMean, builtin: true}, nil
	case MetricTanimoto, "dist_tanimoto":
		return Capability{Name: MetricTanimoto, Distance: Tanimoto, Mean: NormalizedMean, builtin: true}, nil
	}
	return Capability{}, mlerr.Configuration("vector.resolve", "metric", "unknown metric %q", name)
}

// MustResolve is Resolve for names known to be valid.
func MustResolve(name string) Capability {
	c, err := Resolve(name)
	if err != nil {
		panic(err)
	}
	return c
}

// Validate checks that the distance and mean functions are present and agree
// on dimension dim by probing them with two synthetic points.
func (c Capability) Validate(dim int) (err error) {
	if c.Distance == nil {
		return mlerr.Configuration("vector.capability", "distance", "distance function for %q is nil", c.Name)
	}
	if c.Mean == nil {
		return mlerr.Configuration("vector.capability", "mean", "mean function for %q is nil", c.Name)
	}
	if dim <= 0 {
		return mlerr.Configuration("vector.capability", "dim", "invalid dimension %d", dim)
	}
	defer func() {
		if r := recover(); r != nil {
			err = mlerr.Configuration("vector.capability", c.Name, "probe panicked: %v", r)
		}
	}()
	a := make([]float64, dim)
	b := make([]float64, dim)
	for i := range a {
		a[i] = 1
		b[i] = float64(i + 2)
	}
	d := c.Distance(a, b)
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return mlerr.Configuration("vector.capability", "distance", "distance %q returned %v for a %d-dim probe", c.Name, d, dim)
	}
	m := c.Mean([][]float64{a, b})
	if len(m) != dim {
		return mlerr.Configuration("vector.capability", "mean", "mean %q returned dim %d, want %d", c.Name, len(m), dim)
	}
	return nil
}

// String implements fmt.Stringer.
func (c Capability) String() string { return fmt.Sprintf("capability(%s)", c.Name) }
