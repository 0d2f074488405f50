package vector_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-ml/engine"
	"github.com/viant/sqlite-ml/vector"
	"github.com/viant/sqlite-ml/mlerr"
)

// TestSQLStore_ScanSkipsUnusable exercises the SQLStore: NULL and non-finite
// points are skipped and the remaining ones are visited in id order.
func TestSQLStore_ScanSkipsUnusable(t *testing.T) {
	db, err := engine.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	require.NoError(t, vector.EnsurePointTable(db, "pts"))
	ctx := context.Background()
	require.NoError(t, vector.InsertPoints(ctx, db, "pts", []vector.Point{
		{ID: 3, Coords: []float64{3, 3}},
		{ID: 1, Coords: []float64{1, 1}},
		{ID: 2, Coords: []float64{math.NaN(), 2}},
		{ID: 4},
		{ID: 5, Coords: []float64{math.Inf(-1), 0}},
	}))

	store, err := vector.NewSQLStore(db, vector.SQLStoreConfig{Table: "pts"})
	require.NoError(t, err)
	assert.Equal(t, "pts.coords", store.Name())

	points, err := vector.Collect(ctx, store)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, int64(1), points[0].ID)
	assert.Equal(t, int64(3), points[1].ID)

	dim, err := store.Dim(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, dim)
}

func TestSQLStore_DimensionMismatch(t *testing.T) {
	db, err := engine.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	require.NoError(t, vector.EnsurePointTable(db, "pts"))
	ctx := context.Background()
	require.NoError(t, vector.InsertPoints(ctx, db, "pts", []vector.Point{
		{ID: 1, Coords: []float64{1, 1}},
		{ID: 2, Coords: []float64{1, 1, 1}},
	}))
	store, err := vector.NewSQLStore(db, vector.SQLStoreConfig{Table: "pts"})
	require.NoError(t, err)

	_, err = vector.Collect(ctx, store)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mlerr.ErrConfiguration))
	assert.Contains(t, err.Error(), "pts.coords")

	_, err = vector.NewSQLStore(db, vector.SQLStoreConfig{})
	assert.True(t, errors.Is(err, mlerr.ErrConfiguration))
}

func TestMemoryStore(t *testing.T) {
	store, err := vector.FromCoords("mem", [][]float64{{0, 0}, {math.NaN(), 1}, {2, 2}})
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())
	dim, _ := store.Dim(context.Background())
	assert.Equal(t, 2, dim)

	_, err = vector.FromCoords("mem", [][]float64{{0, 0}, {1}})
	assert.True(t, errors.Is(err, mlerr.ErrConfiguration))
}
