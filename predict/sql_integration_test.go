package predict

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/viant/sqlite-ml/engine"
	"github.com/viant/sqlite-ml/kmeans"
	"github.com/viant/sqlite-ml/metrics"
	"github.com/viant/sqlite-ml/svm"
	"github.com/viant/sqlite-ml/vector"
)

func openDB(t *testing.T, name string, opts ...Option) *sql.DB {
	t.Helper()
	db, err := engine.Open(filepath.Join(t.TempDir(), name))
	if err != nil {
		t.Fatalf("engine.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := Register(db, opts...); err != nil {
		t.Fatalf("predict.Register failed: %v", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		t.Fatalf("PRAGMA setup failed: %v", err)
	}
	return db
}

func createTable(t *testing.T, db *sql.DB, ddl string) {
	t.Helper()
	if _, err := db.Exec(ddl); err != nil {
		if strings.Contains(err.Error(), "no such module") {
			t.Skipf("skipping: ml_predict vtab not available (%v)", err)
		}
		t.Fatalf("%s failed: %v", ddl, err)
	}
}

type prediction struct {
	member string
	score  float64
}

func queryPredictions(t *testing.T, db *sql.DB, query string, args ...interface{}) []prediction {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			t.Skipf("skipping: ml_predict MATCH timed out (%v)", err)
		}
		t.Fatalf("query failed: %v", err)
	}
	defer rows.Close()
	var out []prediction
	for rows.Next() {
		var p prediction
		if err := rows.Scan(&p.member, &p.score); err != nil {
			t.Fatalf("scan: %v", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	return out
}

func TestPredictLinearEnsemble(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)
	db := openDB(t, "predict_linear.sqlite", WithMetrics(collector))

	models := []*svm.LinearModel{
		{ID: svm.MemberID{Ensemble: "m", Index: 0}, Weights: []float64{1, 0}, Scale: 1},
		{ID: svm.MemberID{Ensemble: "m", Index: 1}, Weights: []float64{3, 3}, Scale: 3, Bias: 1},
		{ID: svm.MemberID{Ensemble: "m", Index: 2}, Weights: []float64{2, 0}, Scale: 2, Bias: 2},
	}
	if err := svm.SaveLinear(context.Background(), db, "lin_model", models); err != nil {
		t.Fatalf("SaveLinear: %v", err)
	}
	createTable(t, db, `CREATE VIRTUAL TABLE lin USING ml_predict(lin_model, kind=linear)`)

	want := []prediction{{"m0", 1}, {"m1", 2}, {"m2", 3}, {"avg", 2}}
	for _, arg := range []interface{}{"[1, 0]", vector.EncodePoint([]float64{1, 0})} {
		got := queryPredictions(t, db, `SELECT member, score FROM lin WHERE point MATCH ?`, arg)
		if len(got) != len(want) {
			t.Fatalf("unexpected predictions: %v", got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("prediction %d = %v, want %v", i, got[i], want[i])
			}
		}
	}
	if v := testutil.ToFloat64(collector.SVMPredictions.WithLabelValues(KindLinear)); v != 2 {
		t.Fatalf("predictions counter = %v, want 2", v)
	}

	createTable(t, db, `CREATE VIRTUAL TABLE lin_single USING ml_predict(lin_model, kind=linear, mode=single)`)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	rows, err := db.QueryContext(ctx, `SELECT member, score FROM lin_single WHERE point MATCH '1,0'`)
	if err == nil {
		for rows.Next() {
		}
		err = rows.Err()
		rows.Close()
	}
	if err == nil || !strings.Contains(err.Error(), "ensemble ambiguity") {
		t.Fatalf("expected ensemble ambiguity, got %v", err)
	}
}

func TestPredictKernelSingle(t *testing.T) {
	db := openDB(t, "predict_kernel.sqlite")
	models, err := svm.Assemble("k", "linear", svm.Classification, []svm.Intermediate{{
		Supports: []svm.SupportVector{{Weight: 2, Vector: []float64{1, 1}}},
		Bias:     -1,
	}}, false)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if err := svm.SaveModels(context.Background(), db, "svm_model", models); err != nil {
		t.Fatalf("SaveModels: %v", err)
	}
	createTable(t, db, `CREATE VIRTUAL TABLE clf USING ml_predict(svm_model, mode=single)`)
	got := queryPredictions(t, db, `SELECT member, score FROM clf WHERE point MATCH '[2, 3]'`)
	if len(got) != 1 || got[0].member != "k" || got[0].score != 9 {
		t.Fatalf("unexpected predictions: %v", got)
	}
}

func TestPredictKMeans(t *testing.T) {
	db := openDB(t, "predict_kmeans.sqlite")
	model := &kmeans.Model{
		RunID:     "run",
		Centroids: [][]float64{{0, 0}, {10, 10}},
		Metric:    vector.MetricEuclidean,
		Status:    kmeans.StatusConverged,
	}
	if err := kmeans.SaveModel(context.Background(), db, "km_model", model); err != nil {
		t.Fatalf("SaveModel: %v", err)
	}
	createTable(t, db, `CREATE VIRTUAL TABLE km USING ml_predict(km_model, kind=kmeans)`)
	got := queryPredictions(t, db, `SELECT member, score FROM km WHERE point MATCH '[10, 7]'`)
	if len(got) != 1 || got[0].member != "1" || got[0].score != 3 {
		t.Fatalf("unexpected predictions: %v", got)
	}
}
