package svm

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/viant/sqlite-ml/mlerr"
	"github.com/viant/sqlite-ml/vector"
)

const kernelSchema = `CREATE TABLE IF NOT EXISTS %s (
	ensemble_id  TEXT NOT NULL,
	member_index INTEGER NOT NULL,
	kind         TEXT NOT NULL,
	kernel       TEXT NOT NULL,
	sv_index     INTEGER NOT NULL,
	weight       REAL NOT NULL,
	sv           BLOB,
	intercept    REAL NOT NULL,
	epsilon      REAL NOT NULL,
	rho          REAL NOT NULL,
	PRIMARY KEY(ensemble_id, member_index, sv_index)
)`

const linearSchema = `CREATE TABLE IF NOT EXISTS %s (
	ensemble_id  TEXT NOT NULL,
	member_index INTEGER NOT NULL,
	kind         TEXT NOT NULL,
	weights      BLOB NOT NULL,
	scale        REAL NOT NULL,
	bias         REAL NOT NULL,
	PRIMARY KEY(ensemble_id, member_index)
)`

func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// ensembleShape is what every member of one ensemble must agree on.
type ensembleShape struct {
	kind   Kind
	kernel string
}

// checkShape records the shape of id's ensemble on first sight and rejects
// rows that disagree with it.
func checkShape(op, table string, shapes map[string]ensembleShape, id MemberID, shape ensembleShape) error {
	want, ok := shapes[id.Ensemble]
	if !ok {
		shapes[id.Ensemble] = shape
		return nil
	}
	if want.kind != shape.kind {
		return mlerr.Configuration(op, table, "ensemble %q mixes kinds %q and %q (member %s)", id.Ensemble, want.kind, shape.kind, id)
	}
	if want.kernel != shape.kernel {
		return mlerr.Configuration(op, table, "ensemble %q mixes kernels %q and %q (member %s)", id.Ensemble, want.kernel, shape.kernel, id)
	}
	return nil
}

// replaceEnsembles deletes the stored members of every ensemble being
// written so a save replaces whole ensembles.
func replaceEnsembles(ctx context.Context, tx *sql.Tx, table string, ensembles map[string]bool) error {
	for name := range ensembles {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE ensemble_id = ?`, name); err != nil {
			return err
		}
	}
	return nil
}

// SaveModels writes kernel models, one row per support vector, in a single
// transaction. A model without support vectors is stored as one row with a
// NULL vector and sv_index -1.
func SaveModels(ctx context.Context, db *sql.DB, table string, models []*Model) (err error) {
	const op = "svm.save_models"
	if len(models) == 0 {
		return mlerr.InsufficientData(op, table, "no models to save")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return mlerr.Computation(err, op, table, "begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, fmt.Sprintf(kernelSchema, table)); err != nil {
		return mlerr.Computation(err, op, table, "create table")
	}
	ensembles := map[string]bool{}
	for _, m := range models {
		ensembles[m.ID.Ensemble] = true
	}
	if err = replaceEnsembles(ctx, tx, table, ensembles); err != nil {
		return mlerr.Computation(err, op, table, "replace")
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+table+`
		(ensemble_id, member_index, kind, kernel, sv_index, weight, sv, intercept, epsilon, rho)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return mlerr.Computation(err, op, table, "prepare")
	}
	defer stmt.Close()
	for _, m := range models {
		if len(m.Supports) == 0 {
			if _, err = stmt.ExecContext(ctx, m.ID.Ensemble, m.ID.Index, string(m.Kind), m.Kernel, -1, 0.0, nil, m.Intercept, m.Epsilon, m.Rho); err != nil {
				return mlerr.Computation(err, op, table, "insert %s", m.ID)
			}
			continue
		}
		for i, sv := range m.Supports {
			if _, err = stmt.ExecContext(ctx, m.ID.Ensemble, m.ID.Index, string(m.Kind), m.Kernel, i, sv.Weight, vector.EncodePoint(sv.Vector), m.Intercept, m.Epsilon, m.Rho); err != nil {
				return mlerr.Computation(err, op, table, "insert %s", m.ID)
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return mlerr.Computation(err, op, table, "commit")
	}
	return nil
}

// LoadModels reads every kernel model of table in member order.
func LoadModels(ctx context.Context, db *sql.DB, table string) ([]*Model, error) {
	const op = "svm.load_models"
	rows, err := db.QueryContext(ctx, `SELECT ensemble_id, member_index, kind, kernel, sv_index, weight, sv, intercept, epsilon, rho
		FROM `+table+` ORDER BY ensemble_id, member_index, sv_index`)
	if isMissingTable(err) {
		return nil, mlerr.ModelNotFound(op, table, "model table does not exist")
	}
	if err != nil {
		return nil, mlerr.Computation(err, op, table, "query")
	}
	defer rows.Close()
	var out []*Model
	var cur *Model
	shapes := map[string]ensembleShape{}
	for rows.Next() {
		var (
			id      MemberID
			kind    string
			kernel  string
			svIndex int
			weight  float64
			blob    []byte
			m       Model
		)
		if err = rows.Scan(&id.Ensemble, &id.Index, &kind, &kernel, &svIndex, &weight, &blob, &m.Intercept, &m.Epsilon, &m.Rho); err != nil {
			return nil, mlerr.Computation(err, op, table, "scan")
		}
		if err = checkShape(op, table, shapes, id, ensembleShape{kind: Kind(kind), kernel: kernel}); err != nil {
			return nil, err
		}
		if cur == nil || cur.ID != id {
			m.ID, m.Kind, m.Kernel = id, Kind(kind), kernel
			cur = &m
			out = append(out, cur)
		}
		if svIndex < 0 {
			continue
		}
		v, err := vector.DecodePoint(blob)
		if err != nil {
			return nil, mlerr.Computation(err, op, table, "decode support vector of %s", id)
		}
		cur.Supports = append(cur.Supports, SupportVector{Weight: weight, Vector: v})
	}
	if err = rows.Err(); err != nil {
		return nil, mlerr.Computation(err, op, table, "query")
	}
	if len(out) == 0 {
		return nil, mlerr.ModelNotFound(op, table, "model table is empty")
	}
	return out, nil
}

// SaveLinear writes linear models, one row per member, in a single
// transaction.
func SaveLinear(ctx context.Context, db *sql.DB, table string, models []*LinearModel) (err error) {
	const op = "svm.save_linear"
	if len(models) == 0 {
		return mlerr.InsufficientData(op, table, "no models to save")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return mlerr.Computation(err, op, table, "begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, fmt.Sprintf(linearSchema, table)); err != nil {
		return mlerr.Computation(err, op, table, "create table")
	}
	ensembles := map[string]bool{}
	for _, m := range models {
		ensembles[m.ID.Ensemble] = true
	}
	if err = replaceEnsembles(ctx, tx, table, ensembles); err != nil {
		return mlerr.Computation(err, op, table, "replace")
	}
	for _, m := range models {
		_, err = tx.ExecContext(ctx, `INSERT INTO `+table+` (ensemble_id, member_index, kind, weights, scale, bias) VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID.Ensemble, m.ID.Index, string(m.Kind), vector.EncodePoint(m.Weights), m.Scale, m.Bias)
		if err != nil {
			return mlerr.Computation(err, op, table, "insert %s", m.ID)
		}
	}
	if err = tx.Commit(); err != nil {
		return mlerr.Computation(err, op, table, "commit")
	}
	return nil
}

// LoadLinear reads every linear model of table in member order.
func LoadLinear(ctx context.Context, db *sql.DB, table string) ([]*LinearModel, error) {
	const op = "svm.load_linear"
	rows, err := db.QueryContext(ctx, `SELECT ensemble_id, member_index, kind, weights, scale, bias FROM `+table+` ORDER BY ensemble_id, member_index`)
	if isMissingTable(err) {
		return nil, mlerr.ModelNotFound(op, table, "model table does not exist")
	}
	if err != nil {
		return nil, mlerr.Computation(err, op, table, "query")
	}
	defer rows.Close()
	var out []*LinearModel
	shapes := map[string]ensembleShape{}
	for rows.Next() {
		var (
			m    LinearModel
			kind string
			blob []byte
		)
		if err = rows.Scan(&m.ID.Ensemble, &m.ID.Index, &kind, &blob, &m.Scale, &m.Bias); err != nil {
			return nil, mlerr.Computation(err, op, table, "scan")
		}
		m.Kind = Kind(kind)
		if err = checkShape(op, table, shapes, m.ID, ensembleShape{kind: m.Kind}); err != nil {
			return nil, err
		}
		if m.Weights, err = vector.DecodePoint(blob); err != nil {
			return nil, mlerr.Computation(err, op, table, "decode weights of %s", m.ID)
		}
		out = append(out, &m)
	}
	if err = rows.Err(); err != nil {
		return nil, mlerr.Computation(err, op, table, "query")
	}
	if len(out) == 0 {
		return nil, mlerr.ModelNotFound(op, table, "model table is empty")
	}
	return out, nil
}

// LoadScorers loads the models of table as scorers, linear ones when linear
// is set and kernel ones otherwise.
func LoadScorers(ctx context.Context, db *sql.DB, table string, linear bool) ([]Scorer, error) {
	if linear {
		models, err := LoadLinear(ctx, db, table)
		if err != nil {
			return nil, err
		}
		return LinearScorers(models), nil
	}
	models, err := LoadModels(ctx, db, table)
	if err != nil {
		return nil, err
	}
	return KernelScorers(models)
}
