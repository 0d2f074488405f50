package statelog

import (
	"strings"
	"testing"
)

func TestAppendOnlyTriggers(t *testing.T) {
	trigs := AppendOnlyTriggers("main.km-state")
	if len(trigs) != 2 {
		t.Fatalf("expected 2 triggers, got %d", len(trigs))
	}
	if !strings.Contains(trigs[0], "CREATE TRIGGER IF NOT EXISTS main_km_state_bu BEFORE UPDATE ON main.km-state") {
		t.Fatalf("unexpected update trigger: %s", trigs[0])
	}
	if !strings.Contains(trigs[1], "BEFORE DELETE") {
		t.Fatalf("delete trigger missing event: %s", trigs[1])
	}
	if !strings.Contains(trigs[1], "RAISE(ABORT") {
		t.Fatalf("delete trigger must abort: %s", trigs[1])
	}
}

func TestTableDDL(t *testing.T) {
	ddl := TableDDL(DefaultTable)
	if !strings.Contains(ddl, "PRIMARY KEY(run_id, iteration)") {
		t.Fatalf("missing primary key: %s", ddl)
	}
}
