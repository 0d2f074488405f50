package engine

import (
	"database/sql"
	"math"
	"path/filepath"
	"testing"

	"github.com/viant/sqlite-ml/vector"
)

func TestOpenWithFunctions(t *testing.T) {
	db, err := OpenWithFunctions(filepath.Join(t.TempDir(), "points.sqlite"))
	if err != nil {
		t.Fatalf("OpenWithFunctions failed: %v", err)
	}
	defer db.Close()
	if got := db.Driver(); got == nil {
		t.Fatalf("expected %s driver", DriverName)
	}

	if err := vector.EnsurePointTable(db, "pts"); err != nil {
		t.Fatalf("EnsurePointTable failed: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO pts(id, coords) VALUES (1, ?), (2, ?), (3, ?), (4, NULL)`,
		vector.EncodePoint([]float64{0, 1}),
		vector.EncodePoint([]float64{9, 9}),
		vector.EncodePoint([]float64{math.NaN(), 1}),
	); err != nil {
		t.Fatalf("INSERT failed: %v", err)
	}
	centroids, err := vector.EncodeMatrix([][]float64{{0, 0}, {10, 10}})
	if err != nil {
		t.Fatalf("EncodeMatrix failed: %v", err)
	}

	rows, err := db.Query(`SELECT id, ml_dim(coords), ml_is_finite(coords), ml_closest(coords, ?, 'euclidean')
		FROM pts ORDER BY id`, centroids)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	defer rows.Close()
	type result struct {
		dim, finite, closest sql.NullInt64
	}
	var got []result
	for rows.Next() {
		var (
			id int64
			r  result
		)
		if err := rows.Scan(&id, &r.dim, &r.finite, &r.closest); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		got = append(got, r)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(got))
	}
	if got[0].closest.Int64 != 0 || got[1].closest.Int64 != 1 {
		t.Fatalf("closest = %v, %v; want 0, 1", got[0].closest, got[1].closest)
	}
	if got[0].finite.Int64 != 1 || got[2].finite.Int64 != 0 || got[3].finite.Int64 != 0 {
		t.Fatalf("unexpected ml_is_finite results: %+v", got)
	}
	if got[0].dim.Int64 != 2 || got[3].dim.Valid || got[3].closest.Valid {
		t.Fatalf("unexpected NULL handling: %+v", got)
	}
}

func TestOpenInMemoryPinned(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("CREATE TABLE runs(run_id TEXT PRIMARY KEY)"); err != nil {
		t.Fatalf("CREATE TABLE failed: %v", err)
	}
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&n); err != nil {
		t.Fatalf("pinned connection lost the table: %v", err)
	}
}
