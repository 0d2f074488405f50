package kmeans

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viant/sqlite-ml/mlerr"
	"github.com/viant/sqlite-ml/vector"
)

// Engine drives k-means runs.
type Engine struct {
	cfg Config
}

// NewEngine validates cfg and returns an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the validated configuration.
func (e *Engine) Config() Config { return e.cfg }

// Log returns the state log the engine appends to.
func (e *Engine) Log() StateLog { return e.cfg.Log }

// Run seeds and iterates until convergence or the iteration limit. A nil
// reducer loads points into a MemoryReducer.
func (e *Engine) Run(ctx context.Context, points vector.PointStore, reducer Reducer) (*Model, error) {
	const op = "kmeans.run"
	dim, err := storeDim(ctx, op, points)
	if err != nil {
		return nil, err
	}
	if err = e.cfg.Metric.Validate(dim); err != nil {
		return nil, err
	}
	centroids, err := e.cfg.Seeder.Seed(ctx, points, e.cfg.K, e.cfg.Metric, e.cfg.InitialCentroids)
	if err != nil {
		return nil, err
	}
	if reducer == nil {
		if reducer, err = NewMemoryReducer(ctx, points, e.cfg.Metric); err != nil {
			return nil, err
		}
	}
	runID := e.cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	e.cfg.Logger.Info().
		Str("run_id", runID).
		Str("source", points.Name()).
		Int("k", e.cfg.K).
		Int("seeded", len(centroids)).
		Str("metric", e.cfg.Metric.Name).
		Msg("kmeans run started")
	return e.iterate(ctx, seedState(runID, centroids), points.Name(), reducer)
}

// Resume continues runID from its last logged state.
func (e *Engine) Resume(ctx context.Context, runID string, reducer Reducer) (*Model, error) {
	const op = "kmeans.resume"
	if reducer == nil {
		return nil, mlerr.Configuration(op, "reducer", "a reducer is required to resume")
	}
	last, err := e.cfg.Log.Last(ctx, runID)
	if err != nil {
		return nil, mlerr.Wrap(err, op, runID)
	}
	if last == nil {
		return nil, mlerr.ModelNotFound(op, runID, "no logged iteration")
	}
	if status, done := e.terminal(last); done {
		return e.finish(last, status)
	}
	e.cfg.Logger.Info().Str("run_id", runID).Int("iteration", last.Iteration).Msg("kmeans run resumed")
	return e.iterate(ctx, last, runID, reducer)
}

func (e *Engine) terminal(s *State) (Status, bool) {
	if s.Iteration == 0 {
		return "", false
	}
	if s.FracReassigned < e.cfg.MinFracReassigned {
		return StatusConverged, true
	}
	if s.Iteration >= e.cfg.MaxIterations {
		return StatusMaxIterReached, true
	}
	return "", false
}

func (e *Engine) iterate(ctx context.Context, state *State, source string, reducer Reducer) (*Model, error) {
	const op = "kmeans.iterate"
	for {
		if err := ctx.Err(); err != nil {
			return nil, mlerr.Computation(err, op, source, "iteration %d cancelled", state.Iteration+1)
		}
		started := time.Now()
		next, err := reducer.Reduce(ctx, state)
		if err != nil {
			e.cfg.Logger.Error().Err(err).Str("run_id", state.RunID).Int("iteration", state.Iteration+1).Msg("kmeans reduce failed")
			return nil, mlerr.Wrap(err, op, source)
		}
		next.RunID = state.RunID
		if err = e.cfg.Log.Append(ctx, next); err != nil {
			return nil, mlerr.Computation(err, op, "state_log", "append iteration %d", next.Iteration)
		}
		took := time.Since(started)
		e.cfg.Metrics.ObserveIteration(next.Objective, next.FracReassigned, took)
		e.cfg.Logger.Debug().
			Str("run_id", next.RunID).
			Int("iteration", next.Iteration).
			Float64("objective", next.Objective).
			Float64("frac_reassigned", next.FracReassigned).
			Int("centroids", len(next.Centroids)).
			Dur("took", took).
			Msg("kmeans iteration")
		state = next
		if status, done := e.terminal(state); done {
			return e.finish(state, status)
		}
	}
}

func (e *Engine) finish(final *State, status Status) (*Model, error) {
	model, err := Assemble(final, e.cfg.Metric.Name, status)
	if err != nil {
		return nil, err
	}
	e.cfg.Metrics.RunFinished(string(status))
	e.cfg.Logger.Info().
		Str("run_id", model.RunID).
		Str("status", string(status)).
		Int("iterations", model.NumIterations).
		Float64("objective", model.Objective).
		Int("centroids", len(model.Centroids)).
		Msg("kmeans run finished")
	return model, nil
}
