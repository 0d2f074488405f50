package kmeans

import (
	"github.com/rs/zerolog"
	"github.com/viant/sqlite-ml/metrics"
	"github.com/viant/sqlite-ml/mlerr"
	"github.com/viant/sqlite-ml/vector"
)

const (
	// DefaultMaxIterations bounds a run when Config.MaxIterations is 0.
	DefaultMaxIterations = 20
	// DefaultMinFracReassigned is the convergence threshold when
	// Config.MinFracReassigned is 0.
	DefaultMinFracReassigned = 0.001
	// NoEarlyStop as Config.MinFracReassigned disables the convergence test;
	// the run then always ends at MaxIterations.
	NoEarlyStop = -1.0
)

// Threshold maps an explicitly requested reassignment threshold onto
// Config.MinFracReassigned, keeping 0 as "never converge early" instead of
// selecting the default.
func Threshold(frac float64) float64 {
	if frac == 0 {
		return NoEarlyStop
	}
	return frac
}

// Config controls a k-means run.
type Config struct {
	// K is the requested number of centroids.
	K int
	// MaxIterations defaults to DefaultMaxIterations.
	MaxIterations int
	// MinFracReassigned defaults to DefaultMinFracReassigned when 0; use
	// NoEarlyStop (or Threshold(0)) to run to MaxIterations. A run converges
	// once the fraction of reassigned points drops below it.
	MinFracReassigned float64
	// Metric defaults to euclidean distance with the arithmetic mean.
	Metric vector.Capability
	// Seeder defaults to k-means++ seeded with 0.
	Seeder Seeder
	// InitialCentroids are handed to the seeder as already chosen centroids.
	InitialCentroids [][]float64
	// Log defaults to an in-process MemoryLog.
	Log StateLog
	// RunID defaults to a random UUID.
	RunID string
	// Logger defaults to a disabled logger.
	Logger  zerolog.Logger
	Metrics *metrics.Collector
}

// Validate checks the settings and fills defaults.
func (c *Config) Validate() error {
	const op = "kmeans.config"
	if c.K < 1 {
		return mlerr.Configuration(op, "k", "k must be positive, got %d", c.K)
	}
	switch {
	case c.MaxIterations == 0:
		c.MaxIterations = DefaultMaxIterations
	case c.MaxIterations < 0:
		return mlerr.Configuration(op, "max_num_iterations", "must be positive, got %d", c.MaxIterations)
	}
	switch {
	case c.MinFracReassigned == 0:
		c.MinFracReassigned = DefaultMinFracReassigned
	case c.MinFracReassigned == NoEarlyStop:
		c.MinFracReassigned = 0
	case c.MinFracReassigned < 0 || c.MinFracReassigned > 1:
		return mlerr.Configuration(op, "min_frac_reassigned", "must be in [0, 1], got %v", c.MinFracReassigned)
	}
	if c.Metric.Distance == nil && c.Metric.Mean == nil && c.Metric.Name == "" {
		c.Metric = vector.MustResolve(vector.MetricEuclidean)
	}
	if c.Metric.Distance == nil || c.Metric.Mean == nil {
		return mlerr.Configuration(op, "metric", "capability %q needs both a distance and a mean function", c.Metric.Name)
	}
	if c.Seeder == nil {
		c.Seeder = &PlusPlusSeeder{}
	}
	if c.Log == nil {
		c.Log = NewMemoryLog()
	}
	return nil
}
