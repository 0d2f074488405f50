package engine

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"

	"github.com/viant/sqlite-ml/vector"
	sqlite "modernc.org/sqlite"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterFunctions registers the ml_* functions with the driver so they are
// available on new connections opened after this call:
//
//	ml_distance(a BLOB, b BLOB, metric TEXT) REAL
//	ml_closest(point BLOB, centroids BLOB, metric TEXT) INTEGER
//	ml_min_distance(point BLOB, centroids BLOB, metric TEXT) REAL
//	ml_is_finite(point BLOB) INTEGER
//	ml_dim(point BLOB) INTEGER
//	ml_vector_sum(point BLOB, normalize INTEGER) BLOB   -- aggregate
//
// Points are vector.EncodePoint BLOBs; centroids are vector.EncodeMatrix
// BLOBs. Existing open connections will not see new functions.
func RegisterFunctions(_ *sql.DB) error {
	registerOnce.Do(func() {
		for _, reg := range []struct {
			name  string
			nArgs int32
			fn    func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error)
		}{
			{"ml_distance", 3, distanceImpl},
			{"ml_closest", 3, closestImpl},
			{"ml_min_distance", 3, minDistanceImpl},
			{"ml_is_finite", 1, isFiniteImpl},
			{"ml_dim", 1, dimImpl},
		} {
			if err := sqlite.RegisterDeterministicScalarFunction(reg.name, reg.nArgs, reg.fn); err != nil {
				registerErr = fmt.Errorf("engine: register %s: %w", reg.name, err)
				return
			}
		}
		registerErr = sqlite.RegisterFunction("ml_vector_sum", &sqlite.FunctionImpl{
			NArgs:         2,
			Deterministic: true,
			MakeAggregate: func(sqlite.FunctionContext) (sqlite.AggregateFunction, error) {
				return &vectorSum{}, nil
			},
		})
		if registerErr != nil {
			registerErr = fmt.Errorf("engine: register ml_vector_sum: %w", registerErr)
		}
	})
	return registerErr
}

func asPoint(arg driver.Value) ([]float64, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return vector.DecodePoint(v)
	default:
		return nil, fmt.Errorf("ml: unsupported argument type %T for point; want BLOB", arg)
	}
}

func asMatrix(arg driver.Value) ([][]float64, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return vector.DecodeMatrix(v)
	default:
		return nil, fmt.Errorf("ml: unsupported argument type %T for centroids; want BLOB", arg)
	}
}

func asMetric(arg driver.Value) (vector.Capability, error) {
	var name string
	switch v := arg.(type) {
	case nil:
	case string:
		name = v
	case []byte:
		name = string(v)
	default:
		return vector.Capability{}, fmt.Errorf("ml: unsupported metric type %T; want TEXT", arg)
	}
	return vector.Resolve(name)
}

func distanceImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	a, err := asPoint(args[0])
	if err != nil {
		return nil, err
	}
	b, err := asPoint(args[1])
	if err != nil {
		return nil, err
	}
	if a == nil || b == nil {
		return nil, nil
	}
	if len(a) != len(b) {
		return nil, fmt.Errorf("ml_distance: dim mismatch %d vs %d", len(a), len(b))
	}
	capability, err := asMetric(args[2])
	if err != nil {
		return nil, err
	}
	return capability.Distance(a, b), nil
}

// closest resolves the shared arguments of ml_closest and ml_min_distance.
func closest(name string, args []driver.Value) (int, float64, bool, error) {
	p, err := asPoint(args[0])
	if err != nil {
		return 0, 0, false, err
	}
	centroids, err := asMatrix(args[1])
	if err != nil {
		return 0, 0, false, err
	}
	if p == nil || len(centroids) == 0 {
		return 0, 0, false, nil
	}
	if len(centroids[0]) != len(p) {
		return 0, 0, false, fmt.Errorf("%s: dim mismatch point %d vs centroids %d", name, len(p), len(centroids[0]))
	}
	capability, err := asMetric(args[2])
	if err != nil {
		return 0, 0, false, err
	}
	idx, d := vector.Closest(p, centroids, capability.Distance)
	return idx, d, true, nil
}

func closestImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	idx, _, ok, err := closest("ml_closest", args)
	if err != nil || !ok {
		return nil, err
	}
	return int64(idx), nil
}

func minDistanceImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	_, d, ok, err := closest("ml_min_distance", args)
	if err != nil || !ok {
		return nil, err
	}
	return d, nil
}

func isFiniteImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	p, err := asPoint(args[0])
	if err != nil {
		return int64(0), nil
	}
	if vector.IsFinite(p) {
		return int64(1), nil
	}
	return int64(0), nil
}

func dimImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	p, err := asPoint(args[0])
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	return int64(len(p)), nil
}

// vectorSum accumulates the element-wise sum of its input points, optionally
// normalizing each one first.
type vectorSum struct {
	sum []float64
}

func (s *vectorSum) Step(_ *sqlite.FunctionContext, args []driver.Value) error {
	p, err := asPoint(args[0])
	if err != nil || p == nil {
		return err
	}
	if normalize, _ := args[1].(int64); normalize != 0 {
		p = vector.Normalize(p)
	}
	if s.sum == nil {
		s.sum = make([]float64, len(p))
	} else if len(p) != len(s.sum) {
		return fmt.Errorf("ml_vector_sum: dim mismatch %d vs %d", len(p), len(s.sum))
	}
	for i, v := range p {
		s.sum[i] += v
	}
	return nil
}

func (s *vectorSum) WindowInverse(_ *sqlite.FunctionContext, args []driver.Value) error {
	p, err := asPoint(args[0])
	if err != nil || p == nil || s.sum == nil {
		return err
	}
	if normalize, _ := args[1].(int64); normalize != 0 {
		p = vector.Normalize(p)
	}
	for i, v := range p {
		s.sum[i] -= v
	}
	return nil
}

func (s *vectorSum) WindowValue(_ *sqlite.FunctionContext) (driver.Value, error) {
	if s.sum == nil {
		return nil, nil
	}
	return vector.EncodePoint(s.sum), nil
}

func (s *vectorSum) Final(_ *sqlite.FunctionContext) {}
