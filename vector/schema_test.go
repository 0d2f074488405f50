package vector_test

import (
	"testing"

	"github.com/viant/sqlite-ml/engine"
	"github.com/viant/sqlite-ml/vector"
)

// TestEnsurePointTable verifies that EnsurePointTable creates the points
// table without error on a fresh in-memory database.
func TestEnsurePointTable(t *testing.T) {
	db, err := engine.Open(":memory:")
	if err != nil {
		t.Fatalf("engine.Open(:memory:) failed: %v", err)
	}
	defer db.Close()

	if err := vector.EnsurePointTable(db, "points"); err != nil {
		t.Fatalf("EnsurePointTable failed: %v", err)
	}
	// Idempotent.
	if err := vector.EnsurePointTable(db, "points"); err != nil {
		t.Fatalf("EnsurePointTable (second call) failed: %v", err)
	}

	// Sanity check: we can insert a row into points.
	if _, err := db.Exec(`INSERT INTO points(id, coords) VALUES(1, ?)`, vector.EncodePoint([]float64{1, 2})); err != nil {
		t.Fatalf("insert into points failed: %v", err)
	}
	if err := vector.EnsurePointTable(nil, "points"); err == nil {
		t.Fatalf("expected error for nil db")
	}
}
