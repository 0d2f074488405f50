// Package mladmin exposes training as an ml_admin virtual table:
//
//	CREATE VIRTUAL TABLE ml_admin USING ml_admin(op);
//	SELECT op FROM ml_admin WHERE op MATCH 'kmeans source=points output=km k=3';
//	SELECT op FROM ml_admin WHERE op MATCH 'svm source=train output=clf model=linear partitions=3';
//
// Each MATCH runs one command and returns a single row describing the result,
// for example "trained:<run_id>:<iterations>:<status>" for k-means.
package mladmin
