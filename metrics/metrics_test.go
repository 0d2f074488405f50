package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveIteration(12.5, 0.25, 3*time.Millisecond)
	c.ObserveIteration(10, 0.0, time.Millisecond)
	c.RunFinished("converged")
	c.Predicted("linear", 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.KMeansIterations))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.KMeansObjective))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.KMeansFracReassigned))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.KMeansRuns.WithLabelValues("converged")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.SVMPredictions.WithLabelValues("linear")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveIteration(1, 1, time.Second)
		c.RunFinished("max_iter_reached")
		c.Predicted("svm", 1)
	})
}
