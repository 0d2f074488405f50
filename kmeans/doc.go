// Package kmeans implements Lloyd-style k-means over a vector.PointStore.
//
// The Engine drives a synchronous state machine
// (seeded -> iterating -> converged | max_iter_reached). Each iteration is a
// single Reducer.Reduce call that assigns every point to its nearest
// centroid, recomputes the centroids and scores the assignment; the result
// is appended to a StateLog before the convergence check. Reducers either
// work in process (MemoryReducer) or push the whole step into one SQLite
// GROUP BY query (SQLReducer).
package kmeans
