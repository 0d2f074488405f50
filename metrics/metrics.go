// Package metrics exposes prometheus collectors for training runs and
// scoring. A nil *Collector is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector groups the sqlite-ml metrics registered on one registry.
type Collector struct {
	// KMeansRuns counts finished k-means runs by terminal status
	KMeansRuns *prometheus.CounterVec
	// KMeansIterations counts completed iterations across runs
	KMeansIterations prometheus.Counter
	// KMeansObjective is the objective of the latest iteration
	KMeansObjective prometheus.Gauge
	// KMeansFracReassigned is the reassigned fraction of the latest iteration
	KMeansFracReassigned prometheus.Gauge
	// ReduceDuration measures one bulk reduce call
	ReduceDuration prometheus.Histogram
	// SVMPredictions counts scored points by model kind
	SVMPredictions *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil registerer
// creates unregistered collectors (useful in tests).
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		KMeansRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqliteml_kmeans_runs_total",
				Help: "Total number of finished k-means runs by terminal status",
			},
			[]string{"status"},
		),
		KMeansIterations: f.NewCounter(
			prometheus.CounterOpts{
				Name: "sqliteml_kmeans_iterations_total",
				Help: "Total number of completed k-means iterations",
			},
		),
		KMeansObjective: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "sqliteml_kmeans_objective",
				Help: "Objective value of the latest k-means iteration",
			},
		),
		KMeansFracReassigned: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "sqliteml_kmeans_frac_reassigned",
				Help: "Fraction of points reassigned in the latest k-means iteration",
			},
		),
		ReduceDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sqliteml_reduce_duration_seconds",
				Help:    "Duration of one bulk assign/reduce step",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
		),
		SVMPredictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqliteml_svm_predictions_total",
				Help: "Total number of scored points by model kind",
			},
			[]string{"kind"},
		),
	}
}

// ObserveIteration records one completed k-means iteration.
func (c *Collector) ObserveIteration(objective, frac float64, took time.Duration) {
	if c == nil {
		return
	}
	c.KMeansIterations.Inc()
	c.KMeansObjective.Set(objective)
	c.KMeansFracReassigned.Set(frac)
	c.ReduceDuration.Observe(took.Seconds())
}

// RunFinished records the terminal status of a k-means run.
func (c *Collector) RunFinished(status string) {
	if c == nil {
		return
	}
	c.KMeansRuns.WithLabelValues(status).Inc()
}

// Predicted records n scored points for a model kind.
func (c *Collector) Predicted(kind string, n int) {
	if c == nil {
		return
	}
	c.SVMPredictions.WithLabelValues(kind).Add(float64(n))
}
