// Package vector defines the read-only point accessor used by the clustering
// and scoring packages, together with the SQLite-facing utilities it needs:
//   - Point model and PointStore interface
//   - MemoryStore and SQLStore (any database/sql driver) implementations
//   - Schema helpers to create a points table
//   - Point and centroid-matrix encoding (BLOB)
//   - Distance and mean capabilities (euclidean, manhattan, cosine, tanimoto)
package vector
