// Package statelog persists k-means iteration states in an append-only
// SQLite table. Rows are keyed by (run_id, iteration); triggers reject any
// UPDATE or DELETE so a logged state can never change once written.
package statelog
