package kmeans

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/viant/sqlite-ml/engine"
	"github.com/viant/sqlite-ml/mlerr"
	"github.com/viant/sqlite-ml/vector"
)

// SQLReducer runs the assign/update step inside SQLite as a single
// GROUP BY (cid, pid) aggregation over the point table, using the functions
// registered by engine.RegisterFunctions. Only built-in metrics are known to
// those functions.
type SQLReducer struct {
	db     *sql.DB
	cfg    vector.SQLStoreConfig
	metric vector.Capability
	query  string
}

const reduceQuery = `SELECT cid, pid, COUNT(*), SUM(%[3]s), ml_vector_sum(pt, ?4)
FROM (
	SELECT %[2]s AS pt,
		ml_closest(%[2]s, ?1, ?3) AS cid,
		ml_min_distance(%[2]s, ?1, ?3) AS d,
		ml_closest(%[2]s, ?2, ?3) AS pid
	FROM %[1]s
	WHERE %[2]s IS NOT NULL AND ml_is_finite(%[2]s) = 1
)
GROUP BY cid, pid
ORDER BY cid, pid`

// NewSQLReducer creates a reducer over the table of store. The ml_* functions
// are registered if needed; connections opened before registration will not
// see them.
func NewSQLReducer(db *sql.DB, store *vector.SQLStore, metric vector.Capability) (*SQLReducer, error) {
	const op = "kmeans.sql_reducer"
	if db == nil || store == nil {
		return nil, mlerr.Configuration(op, "db", "db and store are required")
	}
	if !metric.Builtin() {
		return nil, mlerr.Configuration(op, "metric", "metric %q is not available in SQL; use a built-in metric or the memory reducer", metric.Name)
	}
	if err := engine.RegisterFunctions(db); err != nil {
		return nil, mlerr.Configuration(op, "functions", "%v", err)
	}
	cfg := store.Config()
	term := "d * d"
	if metric.AlreadySquared() {
		term = "d"
	}
	return &SQLReducer{
		db:     db,
		cfg:    cfg,
		metric: metric,
		query:  fmt.Sprintf(reduceQuery, cfg.Table, cfg.PointColumn, term),
	}, nil
}

type groupSum struct {
	count int64
	sum   []float64
}

// Reduce implements Reducer.
func (r *SQLReducer) Reduce(ctx context.Context, in *State) (*State, error) {
	const op = "kmeans.reduce"
	name := r.cfg.Table + "." + r.cfg.PointColumn
	if len(in.Centroids) == 0 {
		return nil, mlerr.InsufficientData(op, "centroids", "empty centroid set")
	}
	centroids, err := vector.EncodeMatrix(in.Centroids)
	if err != nil {
		return nil, mlerr.Computation(err, op, "centroids", "encode")
	}
	var prior interface{}
	if len(in.PriorCentroids) > 0 {
		if prior, err = vector.EncodeMatrix(in.PriorCentroids); err != nil {
			return nil, mlerr.Computation(err, op, "prior_centroids", "encode")
		}
	}
	normalize := 0
	if r.metric.Normalized() {
		normalize = 1
	}
	rows, err := r.db.QueryContext(ctx, r.query, centroids, prior, r.metric.Name, normalize)
	if err != nil {
		return nil, mlerr.Computation(err, op, name, "reduce query")
	}
	defer rows.Close()

	groups := make([]*groupSum, len(in.Centroids))
	var (
		objective float64
		n, moved  int
	)
	for rows.Next() {
		var (
			cid   int64
			pid   sql.NullInt64
			count int64
			sqSum float64
			blob  []byte
		)
		if err = rows.Scan(&cid, &pid, &count, &sqSum, &blob); err != nil {
			return nil, mlerr.Computation(err, op, name, "scan group")
		}
		if cid < 0 || int(cid) >= len(groups) {
			return nil, mlerr.Computation(nil, op, name, "centroid index %d out of range", cid)
		}
		sum, err := vector.DecodePoint(blob)
		if err != nil {
			return nil, mlerr.Computation(err, op, name, "decode group sum")
		}
		p := -1
		if pid.Valid {
			p = int(pid.Int64)
		}
		if in.reassigned(int(cid), p) {
			moved += int(count)
		}
		n += int(count)
		objective += sqSum
		g := groups[cid]
		if g == nil {
			groups[cid] = &groupSum{count: count, sum: sum}
			continue
		}
		if len(sum) != len(g.sum) {
			return nil, mlerr.Computation(nil, op, name, "group sums disagree on dimension")
		}
		g.count += count
		for i, v := range sum {
			g.sum[i] += v
		}
	}
	if err = rows.Err(); err != nil {
		return nil, mlerr.Computation(err, op, name, "reduce query")
	}
	if n == 0 {
		return nil, mlerr.InsufficientData(op, name, "no usable points")
	}
	means := make([][]float64, len(groups))
	for cid, g := range groups {
		if g == nil {
			continue
		}
		mean := make([]float64, len(g.sum))
		for i, v := range g.sum {
			mean[i] = v / float64(g.count)
		}
		means[cid] = mean
	}
	return in.next(means, n, moved, objective), nil
}

var _ Reducer = (*SQLReducer)(nil)
