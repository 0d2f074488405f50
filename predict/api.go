package predict

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/viant/sqlite-ml/kmeans"
	"github.com/viant/sqlite-ml/metrics"
	"github.com/viant/sqlite-ml/svm"
	"modernc.org/sqlite/vtab"
)

// ModuleName is the name ml_predict tables are created with.
const ModuleName = "ml_predict"

// Model kinds accepted by the kind= option.
const (
	KindKernel = "kernel"
	KindLinear = "linear"
	KindKMeans = "kmeans"
)

// Module implements vtab.Module for ml_predict.
type Module struct {
	db      *sql.DB
	metrics *metrics.Collector
	logger  zerolog.Logger
}

// Option customizes the module.
type Option func(m *Module)

// WithMetrics records scored points on c.
func WithMetrics(c *metrics.Collector) Option { return func(m *Module) { m.metrics = c } }

// WithLogger sets the module logger.
func WithLogger(l zerolog.Logger) Option { return func(m *Module) { m.logger = l } }

// Table is one ml_predict virtual table bound to a model table.
type Table struct {
	module     *Module
	name       string
	modelTable string
	kind       string
	single     bool
	runID      string
}

type row struct {
	member string
	score  float64
}

// Cursor iterates the predictions of one MATCH.
type Cursor struct {
	table *Table
	rows  []row
	pos   int
}

// Register registers the ml_predict module with db. Scoring reads model
// tables through db, so the pool needs a connection besides the one running
// the query.
func Register(db *sql.DB, opts ...Option) error {
	mod := &Module{db: db, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(mod)
	}
	if err := vtab.RegisterModule(db, ModuleName, mod); err != nil {
		if !strings.Contains(err.Error(), "already registered") {
			return err
		}
	}
	return nil
}

type tableOptions struct {
	modelTable string
	kind       string
	single     bool
	runID      string
}

func parseOptions(args []string) (tableOptions, error) {
	opts := tableOptions{kind: KindKernel}
	for _, raw := range args {
		a := strings.Trim(strings.TrimSpace(raw), `'"`)
		if a == "" {
			continue
		}
		parts := strings.SplitN(a, "=", 2)
		if len(parts) != 2 {
			if opts.modelTable == "" {
				opts.modelTable = a
			}
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		val := strings.Trim(strings.TrimSpace(parts[1]), `'"`)
		switch key {
		case "model", "table":
			opts.modelTable = val
		case "kind":
			switch strings.ToLower(val) {
			case KindKernel, "svm":
				opts.kind = KindKernel
			case KindLinear, "linear_svm":
				opts.kind = KindLinear
			case KindKMeans:
				opts.kind = KindKMeans
			default:
				return opts, fmt.Errorf("%s: unknown kind %q", ModuleName, val)
			}
		case "mode":
			switch strings.ToLower(val) {
			case "single":
				opts.single = true
			case "ensemble":
				opts.single = false
			default:
				return opts, fmt.Errorf("%s: unknown mode %q", ModuleName, val)
			}
		case "run":
			opts.runID = val
		}
	}
	if opts.modelTable == "" {
		return opts, fmt.Errorf("%s: model table argument is required", ModuleName)
	}
	return opts, nil
}

func (m *Module) connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 4 {
		return nil, fmt.Errorf("%s: expects a model table argument, got %d args", ModuleName, len(args))
	}
	if err := ctx.EnableConstraintSupport(); err != nil {
		return nil, fmt.Errorf("%s: EnableConstraintSupport failed: %w", ModuleName, err)
	}
	opts, err := parseOptions(args[3:])
	if err != nil {
		return nil, err
	}
	if err := ctx.Declare(fmt.Sprintf("CREATE TABLE %s(member TEXT, score REAL, point HIDDEN)", args[2])); err != nil {
		return nil, err
	}
	return &Table{
		module:     m,
		name:       args[2],
		modelTable: opts.modelTable,
		kind:       opts.kind,
		single:     opts.single,
		runID:      opts.runID,
	}, nil
}

// Create implements vtab.Module.
func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) { return m.connect(ctx, args) }

// Connect implements vtab.Module.
func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) { return m.connect(ctx, args) }

const idxMatch = 1

// BestIndex requires MATCH on the hidden point column.
func (t *Table) BestIndex(info *vtab.IndexInfo) error {
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable {
			continue
		}
		if c.Column == 2 && c.Op == vtab.OpMATCH {
			c.ArgIndex = 0
			c.Omit = true
			info.IdxNum = idxMatch
			return nil
		}
	}
	return fmt.Errorf("%s: point MATCH constraint is required", ModuleName)
}

// Open implements vtab.Table.
func (t *Table) Open() (vtab.Cursor, error) { return &Cursor{table: t}, nil }

// Disconnect implements vtab.Table.
func (t *Table) Disconnect() error { return nil }

// Destroy implements vtab.Table; model tables are left untouched.
func (t *Table) Destroy() error { return nil }

// Filter scores the MATCH point.
func (c *Cursor) Filter(idxNum int, _ string, vals []vtab.Value) error {
	c.rows = nil
	c.pos = 0
	if idxNum != idxMatch || len(vals) == 0 || vals[0] == nil {
		return fmt.Errorf("%s: point MATCH argument is required", ModuleName)
	}
	point, err := decodeMatchArg(vals[0])
	if err != nil {
		return err
	}
	rows, err := c.table.score(context.Background(), point)
	if err != nil {
		c.table.module.logger.Debug().Err(err).Str("table", c.table.name).Msg("prediction failed")
		return err
	}
	c.rows = rows
	c.table.module.metrics.Predicted(c.table.kind, 1)
	return nil
}

func (t *Table) score(ctx context.Context, point []float64) ([]row, error) {
	db := t.module.db
	if t.kind == KindKMeans {
		model, err := kmeans.LoadModel(ctx, db, t.modelTable, t.runID)
		if err != nil {
			return nil, err
		}
		idx, d, err := model.Closest(point)
		if err != nil {
			return nil, err
		}
		return []row{{member: strconv.Itoa(idx), score: d}}, nil
	}
	scorers, err := svm.LoadScorers(ctx, db, t.modelTable, t.kind == KindLinear)
	if err != nil {
		return nil, err
	}
	if t.single {
		score, err := svm.ScoreSingle(scorers, point)
		if err != nil {
			return nil, err
		}
		return []row{{member: scorers[0].Member().String(), score: score}}, nil
	}
	predictions, err := svm.ScoreEnsemble(scorers, point)
	if err != nil {
		return nil, err
	}
	out := make([]row, len(predictions))
	for i, p := range predictions {
		out[i] = row{member: p.Member, score: p.Score}
	}
	return out, nil
}

// Next implements vtab.Cursor.
func (c *Cursor) Next() error {
	if c.pos < len(c.rows) {
		c.pos++
	}
	return nil
}

// Eof implements vtab.Cursor.
func (c *Cursor) Eof() bool { return c.pos >= len(c.rows) }

// Column implements vtab.Cursor.
func (c *Cursor) Column(col int) (vtab.Value, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil, fmt.Errorf("%s: Column out of range (pos=%d,len=%d)", ModuleName, c.pos, len(c.rows))
	}
	switch col {
	case 0:
		return c.rows[c.pos].member, nil
	case 1:
		return c.rows[c.pos].score, nil
	case 2:
		return nil, nil
	}
	return nil, fmt.Errorf("%s: unsupported column %d", ModuleName, col)
}

// Rowid implements vtab.Cursor.
func (c *Cursor) Rowid() (int64, error) { return int64(c.pos + 1), nil }

// Close implements vtab.Cursor.
func (c *Cursor) Close() error {
	c.rows = nil
	c.pos = 0
	return nil
}
