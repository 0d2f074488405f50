// Package engine provides helpers for working with the modernc.org/sqlite
// driver in this module: opening connections and registering the ml_* SQL
// functions that push distance computation and per-cluster summation into
// SQLite queries. It keeps a thin surface so other packages can share the
// same driver instance.
package engine
