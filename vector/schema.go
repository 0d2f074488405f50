package vector

import (
	"database/sql"
	"fmt"
)

const pointsSchema = `
CREATE TABLE IF NOT EXISTS %s (
    id INTEGER PRIMARY KEY,
    coords BLOB
);
`

// EnsurePointTable creates a points table (id INTEGER, coords BLOB) in the
// provided database if it does not already exist. The table name is
// interpolated into SQL and must be trusted.
func EnsurePointTable(db *sql.DB, table string) error {
	if db == nil {
		return fmt.Errorf("vector: db is nil")
	}
	if table == "" {
		return fmt.Errorf("vector: table name is empty")
	}
	_, err := db.Exec(fmt.Sprintf(pointsSchema, table))
	return err
}
