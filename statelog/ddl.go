package statelog

import (
	"fmt"
	"strings"
)

// DefaultTable is the log table used when Config.Table is empty.
const DefaultTable = "ml_kmeans_state"

// TableDDL returns the DDL of the state log table.
func TableDDL(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
    run_id          TEXT NOT NULL,
    iteration       INTEGER NOT NULL,
    centroids       BLOB NOT NULL,
    prior_centroids BLOB,
    prior_mapping   TEXT NOT NULL,
    objective_fn    REAL NOT NULL,
    frac_reassigned REAL NOT NULL,
    num_points      INTEGER NOT NULL,
    created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY(run_id, iteration)
);`
}

// AppendOnlyTriggers returns BEFORE UPDATE/DELETE triggers that abort any
// statement modifying logged states.
func AppendOnlyTriggers(table string) []string {
	base := sanitizeIdentifier(table)
	reject := func(suffix, event string) string {
		return fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %[1]s_%[2]s BEFORE %[3]s ON %[4]s
BEGIN
    SELECT RAISE(ABORT, '%[4]s is append-only');
END;`, base, suffix, event, table)
	}
	return []string{reject("bu", "UPDATE"), reject("bd", "DELETE")}
}

func sanitizeIdentifier(name string) string {
	if name == "" {
		return ""
	}
	replacer := strings.NewReplacer(".", "_", "-", "_")
	return replacer.Replace(name)
}
