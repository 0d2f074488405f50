package kmeans

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-ml/vector"
)

var gaussianCenters = [][]float64{{0, 0}, {10, 0}, {0, 10}}

// gaussianPoints returns perPoint points around every center with the given
// standard deviation.
func gaussianPoints(seed int64, perCenter int, sigma float64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	var out [][]float64
	for _, c := range gaussianCenters {
		for i := 0; i < perCenter; i++ {
			out = append(out, []float64{c[0] + rng.NormFloat64()*sigma, c[1] + rng.NormFloat64()*sigma})
		}
	}
	return out
}

func memoryStore(t *testing.T, coords [][]float64) *vector.MemoryStore {
	t.Helper()
	store, err := vector.FromCoords("points.coords", coords)
	require.NoError(t, err)
	return store
}

// nearestCenter returns the distance from c to the closest true center.
func nearestCenter(c []float64) float64 {
	best := math.Inf(1)
	for _, g := range gaussianCenters {
		if d := vector.Euclidean(c, g); d < best {
			best = d
		}
	}
	return best
}
