package engine

import (
	"database/sql"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// DriverName is the database/sql driver name registered by modernc.org/sqlite.
const DriverName = "sqlite"

// Open opens a SQLite database using the modernc.org/sqlite driver.
//
// For file-based databases, pass a path like "./db.sqlite". For in-memory
// databases, pass ":memory:"; note that every pooled connection then sees its
// own database, so callers usually pin the pool with SetMaxOpenConns(1).
func Open(dsn string) (*sql.DB, error) { return sql.Open(DriverName, dsn) }

// OpenWithFunctions registers the ml_* SQL functions and opens dsn.
func OpenWithFunctions(dsn string) (*sql.DB, error) {
	if err := RegisterFunctions(nil); err != nil {
		return nil, err
	}
	return Open(dsn)
}
