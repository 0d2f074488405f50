package kmeans

import (
	"context"
	"fmt"
	"sync"
)

// NoPrior marks a centroid with no predecessor in the prior centroid set.
const NoPrior = -1

// State is the immutable result of one iteration.
type State struct {
	RunID     string
	Iteration int
	// Centroids is the centroid set produced by this iteration.
	Centroids [][]float64
	// PriorCentroids is the set the points were assigned to in this iteration.
	PriorCentroids [][]float64
	// PriorMapping[j] is the index in PriorCentroids that Centroids[j] was
	// reduced from, or NoPrior.
	PriorMapping []int
	// Objective is the sum of squared distances of every point to the
	// centroid it was assigned to. squared_euclidean distances are summed
	// as they are.
	Objective float64
	// FracReassigned is the fraction of points whose assignment changed.
	FracReassigned float64
	// NumPoints is the number of points that took part in the iteration.
	NumPoints int
}

// seedState wraps an initial centroid set. It is never logged.
func seedState(runID string, centroids [][]float64) *State {
	mapping := make([]int, len(centroids))
	for i := range mapping {
		mapping[i] = NoPrior
	}
	return &State{RunID: runID, Centroids: centroids, PriorMapping: mapping, FracReassigned: 1}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Centroids = cloneRows(s.Centroids)
	out.PriorCentroids = cloneRows(s.PriorCentroids)
	out.PriorMapping = append([]int(nil), s.PriorMapping...)
	return &out
}

// reassigned reports whether a point assigned to centroid cid in this
// iteration was assigned elsewhere in the previous one, given its nearest
// prior centroid pid (-1 when there is no prior set).
func (s *State) reassigned(cid, pid int) bool {
	if len(s.PriorCentroids) == 0 || pid < 0 || cid >= len(s.PriorMapping) {
		return true
	}
	return s.PriorMapping[cid] != pid
}

// next builds the successor state from per-centroid means (nil for centroids
// that attracted no point). Empty centroids are dropped.
func (s *State) next(means [][]float64, numPoints, moved int, objective float64) *State {
	out := &State{
		RunID:          s.RunID,
		Iteration:      s.Iteration + 1,
		PriorCentroids: s.Centroids,
		Objective:      objective,
		NumPoints:      numPoints,
	}
	if numPoints > 0 {
		out.FracReassigned = float64(moved) / float64(numPoints)
	}
	for cid, m := range means {
		if m == nil {
			continue
		}
		out.Centroids = append(out.Centroids, m)
		out.PriorMapping = append(out.PriorMapping, cid)
	}
	return out
}

func cloneRows(rows [][]float64) [][]float64 {
	if rows == nil {
		return nil
	}
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r...)
	}
	return out
}

// StateLog is the append-only per-run log of iteration states.
type StateLog interface {
	// Append stores s; its Iteration must directly follow the last logged one.
	Append(ctx context.Context, s *State) error
	// Load returns the state logged for iteration of runID.
	Load(ctx context.Context, runID string, iteration int) (*State, error)
	// Last returns the most recent state of runID, or nil if none was logged.
	Last(ctx context.Context, runID string) (*State, error)
}

// MemoryLog is an in-process StateLog.
type MemoryLog struct {
	mu   sync.RWMutex
	runs map[string][]*State
}

// NewMemoryLog creates an empty log.
func NewMemoryLog() *MemoryLog { return &MemoryLog{runs: make(map[string][]*State)} }

// Append implements StateLog.
func (l *MemoryLog) Append(_ context.Context, s *State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	states := l.runs[s.RunID]
	if want := len(states) + 1; s.Iteration != want {
		return fmt.Errorf("kmeans: run %s: append iteration %d, want %d", s.RunID, s.Iteration, want)
	}
	l.runs[s.RunID] = append(states, s.Clone())
	return nil
}

// Load implements StateLog.
func (l *MemoryLog) Load(_ context.Context, runID string, iteration int) (*State, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	states := l.runs[runID]
	if iteration < 1 || iteration > len(states) {
		return nil, fmt.Errorf("kmeans: run %s: iteration %d not logged", runID, iteration)
	}
	return states[iteration-1].Clone(), nil
}

// Last implements StateLog.
func (l *MemoryLog) Last(_ context.Context, runID string) (*State, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	states := l.runs[runID]
	if len(states) == 0 {
		return nil, nil
	}
	return states[len(states)-1].Clone(), nil
}

// States returns every logged state of runID in iteration order.
func (l *MemoryLog) States(runID string) []*State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*State, len(l.runs[runID]))
	for i, s := range l.runs[runID] {
		out[i] = s.Clone()
	}
	return out
}

var _ StateLog = (*MemoryLog)(nil)
