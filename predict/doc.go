// Package predict implements the ml_predict SQLite virtual table, which
// scores a point against models persisted by the svm and kmeans packages.
//
//	CREATE VIRTUAL TABLE clf USING ml_predict(svm_model, kind=linear);
//	SELECT member, score FROM clf WHERE point MATCH ?;
//
// The MATCH argument is a point BLOB (vector.EncodePoint), a JSON array or a
// comma separated list of numbers. Ensemble tables yield one row per member
// followed by the "avg" row; mode=single requires a single model and yields
// one row. kind=kmeans yields the nearest centroid index and its distance.
package predict
