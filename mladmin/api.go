package mladmin

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/viant/sqlite-ml/engine"
	"github.com/viant/sqlite-ml/metrics"
	"modernc.org/sqlite/vtab"
)

// ModuleName is the name ml_admin tables are created with.
const ModuleName = "ml_admin"

// Module implements vtab.Module for ml_admin.
type Module struct {
	runner *Runner
}

// Option customizes the module.
type Option func(r *Runner)

// WithMetrics records training runs on c.
func WithMetrics(c *metrics.Collector) Option { return func(r *Runner) { r.Metrics = c } }

// WithLogger sets the training logger.
func WithLogger(l zerolog.Logger) Option { return func(r *Runner) { r.Logger = l } }

// Table is an ml_admin virtual table.
type Table struct {
	runner *Runner
}

// Cursor holds the result of one command.
type Cursor struct {
	table *Table
	rows  []string
	pos   int
}

// Register registers the ml_* functions and the ml_admin module. Commands run
// through db on a separate pooled connection.
func Register(db *sql.DB, opts ...Option) error {
	if err := engine.RegisterFunctions(db); err != nil {
		return err
	}
	runner := &Runner{DB: db, Logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(runner)
	}
	if err := vtab.RegisterModule(db, ModuleName, &Module{runner: runner}); err != nil {
		if !strings.Contains(err.Error(), "already registered") {
			return err
		}
	}
	return nil
}

func (m *Module) connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("%s: need at least 3 args", ModuleName)
	}
	if err := ctx.Declare(fmt.Sprintf("CREATE TABLE %s(op)", args[2])); err != nil {
		return nil, err
	}
	return &Table{runner: m.runner}, nil
}

// Create implements vtab.Module.
func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) { return m.connect(ctx, args) }

// Connect implements vtab.Module.
func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) { return m.connect(ctx, args) }

// BestIndex implements vtab.Table.
func (t *Table) BestIndex(info *vtab.IndexInfo) error {
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable {
			continue
		}
		if c.Column == 0 && c.Op == vtab.OpMATCH {
			c.ArgIndex = 0
			c.Omit = true
			info.IdxNum = 1
			break
		}
	}
	return nil
}

// Open implements vtab.Table.
func (t *Table) Open() (vtab.Cursor, error) { return &Cursor{table: t}, nil }

// Disconnect implements vtab.Table.
func (t *Table) Disconnect() error { return nil }

// Destroy implements vtab.Table.
func (t *Table) Destroy() error { return nil }

// Filter runs the MATCH command. Without MATCH the table is empty.
func (c *Cursor) Filter(idxNum int, _ string, vals []vtab.Value) error {
	c.rows = nil
	c.pos = 0
	if idxNum != 1 || len(vals) == 0 || vals[0] == nil {
		return nil
	}
	text, ok := vals[0].(string)
	if !ok {
		return fmt.Errorf("%s: MATCH expects a command as TEXT", ModuleName)
	}
	cmd, err := ParseCommand(text)
	if err != nil {
		return err
	}
	result, err := c.table.runner.Run(context.Background(), cmd)
	if err != nil {
		c.table.runner.Logger.Warn().Err(err).Str("verb", cmd.Verb).Msg("admin command failed")
		return err
	}
	c.rows = []string{result}
	return nil
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
		return nil, fmt.Errorf("%s: Column out of range", ModuleName)
	}
	if col == 0 {
		return c.rows[c.pos], nil
	}
	return nil, nil
}

// Rowid implements vtab.Cursor.
func (c *Cursor) Rowid() (int64, error) { return int64(c.pos + 1), nil }

// Close implements vtab.Cursor.
func (c *Cursor) Close() error {
	c.rows = nil
	c.pos = 0
	return nil
}
