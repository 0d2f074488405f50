package statelog

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-ml/engine"
	"github.com/viant/sqlite-ml/kmeans"
	"github.com/viant/sqlite-ml/vector"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "state.sqlite")
	db, err := engine.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`)
	require.NoError(t, err)
	return db
}

func TestLog_AppendLoadLast(t *testing.T) {
	ctx := context.Background()
	log, err := New(ctx, openDB(t), Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultTable, log.Table())

	last, err := log.Last(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, last)

	first := &kmeans.State{
		RunID:          "r1",
		Iteration:      1,
		Centroids:      [][]float64{{0.5, 1}, {10, 2}},
		PriorCentroids: [][]float64{{0, 1}, {7, 7}, {10, 2}},
		PriorMapping:   []int{0, 2},
		Objective:      12.5,
		FracReassigned: 1,
		NumPoints:      40,
	}
	require.NoError(t, log.Append(ctx, first))
	second := &kmeans.State{
		RunID:          "r1",
		Iteration:      2,
		Centroids:      [][]float64{{0.5, 1}},
		PriorCentroids: first.Centroids,
		PriorMapping:   []int{kmeans.NoPrior},
		Objective:      3,
		NumPoints:      40,
	}
	require.NoError(t, log.Append(ctx, second))

	loaded, err := log.Load(ctx, "r1", 1)
	require.NoError(t, err)
	assert.Equal(t, first, loaded)

	last, err = log.Last(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, second, last)

	_, err = log.Load(ctx, "r1", 3)
	assert.Error(t, err)

	runs, err := log.Runs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"r1": 2}, runs)
}

func TestLog_RejectsGapsAndRewrites(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	log, err := New(ctx, db, Config{Table: "km_log"})
	require.NoError(t, err)

	state := &kmeans.State{RunID: "r", Iteration: 2, Centroids: [][]float64{{1}}, PriorMapping: []int{0}}
	assert.Error(t, log.Append(ctx, state), "gap")

	state.Iteration = 1
	require.NoError(t, log.Append(ctx, state))
	assert.Error(t, log.Append(ctx, state), "duplicate")

	_, err = db.ExecContext(ctx, `UPDATE km_log SET objective_fn = 1`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")
	_, err = db.ExecContext(ctx, `DELETE FROM km_log`)
	require.Error(t, err)

	loaded, err := log.Load(ctx, "r", 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, loaded.Objective)
}

func TestLog_EngineRunAndResume(t *testing.T) {
	ctx := context.Background()
	log, err := New(ctx, openDB(t), Config{})
	require.NoError(t, err)

	store, err := vector.FromCoords("pts.coords", [][]float64{{0}, {1}, {2}, {10}, {11}, {12}, {30}})
	require.NoError(t, err)
	cfg := kmeans.Config{
		K:             2,
		MaxIterations: 1,
		Seeder:        &kmeans.FixedSeeder{Centroids: [][]float64{{0}, {1}}},
		Log:           log,
		RunID:         "persisted",
	}
	eng, err := kmeans.NewEngine(cfg)
	require.NoError(t, err)
	model, err := eng.Run(ctx, store, nil)
	require.NoError(t, err)
	assert.Equal(t, kmeans.StatusMaxIterReached, model.Status)

	cfg.MaxIterations = 20
	eng, err = kmeans.NewEngine(cfg)
	require.NoError(t, err)
	reducer, err := kmeans.NewMemoryReducer(ctx, store, vector.MustResolve(""))
	require.NoError(t, err)
	model, err = eng.Resume(ctx, "persisted", reducer)
	require.NoError(t, err)
	assert.Equal(t, kmeans.StatusConverged, model.Status)

	last, err := log.Last(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, model.NumIterations, last.Iteration)
	assert.Equal(t, model.Centroids, last.Centroids)
}
