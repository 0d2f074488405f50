package mladmin

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/viant/sqlite-ml/kmeans"
	"github.com/viant/sqlite-ml/metrics"
	"github.com/viant/sqlite-ml/mlerr"
	"github.com/viant/sqlite-ml/statelog"
	"github.com/viant/sqlite-ml/svm"
	"github.com/viant/sqlite-ml/vector"
)

// Command is a parsed admin request: a verb followed by key=value options.
type Command struct {
	Verb    string
	Options map[string]string
}

// ParseCommand parses "verb key=value ...".
func ParseCommand(text string) (*Command, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, mlerr.Configuration("mladmin.parse", "op", "empty command")
	}
	cmd := &Command{Verb: strings.ToLower(fields[0]), Options: map[string]string{}}
	for _, f := range fields[1:] {
		parts := strings.SplitN(f, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, mlerr.Configuration("mladmin.parse", f, "expected key=value")
		}
		cmd.Options[strings.ToLower(parts[0])] = strings.Trim(parts[1], `'"`)
	}
	return cmd, nil
}

func (c *Command) str(key, def string) string {
	if v, ok := c.Options[key]; ok && v != "" {
		return v
	}
	return def
}

func (c *Command) require(key string) (string, error) {
	v := c.Options[key]
	if v == "" {
		return "", mlerr.Configuration("mladmin."+c.Verb, key, "option %s is required", key)
	}
	return v, nil
}

func (c *Command) int(key string, def int) (int, error) {
	v, ok := c.Options[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, mlerr.Configuration("mladmin."+c.Verb, key, "invalid integer %q", v)
	}
	return n, nil
}

func (c *Command) float(key string, def float64) (float64, error) {
	v, ok := c.Options[key]
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, mlerr.Configuration("mladmin."+c.Verb, key, "invalid number %q", v)
	}
	return f, nil
}

// Runner executes admin commands against db.
type Runner struct {
	DB      *sql.DB
	Logger  zerolog.Logger
	Metrics *metrics.Collector
}

// Run executes cmd and returns its one-line result.
func (r *Runner) Run(ctx context.Context, cmd *Command) (string, error) {
	switch cmd.Verb {
	case "kmeans":
		return r.kmeans(ctx, cmd)
	case "svm":
		return r.svm(ctx, cmd)
	}
	return "", mlerr.Configuration("mladmin.run", "op", "unknown command %q", cmd.Verb)
}

// kmeans trains with the SQL reducer:
//
//	kmeans source=points output=km_model k=3 [column=coords] [metric=euclidean]
//	       [init=kmeanspp|random] [seed=1] [max_iter=20] [min_frac=0.001]
//	       [log=ml_kmeans_state] [run=<id>]
//
// min_frac=0 disables early convergence.
func (r *Runner) kmeans(ctx context.Context, cmd *Command) (string, error) {
	source, err := cmd.require("source")
	if err != nil {
		return "", err
	}
	output, err := cmd.require("output")
	if err != nil {
		return "", err
	}
	k, err := cmd.int("k", 0)
	if err != nil {
		return "", err
	}
	maxIter, err := cmd.int("max_iter", kmeans.DefaultMaxIterations)
	if err != nil {
		return "", err
	}
	minFrac, err := cmd.float("min_frac", kmeans.DefaultMinFracReassigned)
	if err != nil {
		return "", err
	}
	seed, err := cmd.int("seed", 0)
	if err != nil {
		return "", err
	}
	metric, err := vector.Resolve(cmd.str("metric", vector.MetricEuclidean))
	if err != nil {
		return "", err
	}
	var seeder kmeans.Seeder
	switch seeding := cmd.str("init", "kmeanspp"); seeding {
	case "kmeanspp", "kmeans++":
		seeder = &kmeans.PlusPlusSeeder{RandSeed: int64(seed)}
	case "random":
		seeder = &kmeans.RandomSeeder{RandSeed: int64(seed)}
	default:
		return "", mlerr.Configuration("mladmin.kmeans", "init", "unknown seeding %q", seeding)
	}
	store, err := vector.NewSQLStore(r.DB, vector.SQLStoreConfig{
		Table:       source,
		IDColumn:    cmd.str("id", "id"),
		PointColumn: cmd.str("column", "coords"),
	})
	if err != nil {
		return "", err
	}
	reducer, err := kmeans.NewSQLReducer(r.DB, store, metric)
	if err != nil {
		return "", err
	}
	log, err := statelog.New(ctx, r.DB, statelog.Config{Table: cmd.str("log", statelog.DefaultTable)})
	if err != nil {
		return "", mlerr.Wrap(err, "mladmin.kmeans", "log")
	}
	engine, err := kmeans.NewEngine(kmeans.Config{
		K:                 k,
		MaxIterations:     maxIter,
		MinFracReassigned: kmeans.Threshold(minFrac),
		Metric:            metric,
		Seeder:            seeder,
		Log:               log,
		RunID:             cmd.Options["run"],
		Logger:            r.Logger,
		Metrics:           r.Metrics,
	})
	if err != nil {
		return "", err
	}
	model, err := engine.Run(ctx, store, reducer)
	if err != nil {
		return "", err
	}
	if err = kmeans.SaveModel(ctx, r.DB, output, model); err != nil {
		return "", err
	}
	return fmt.Sprintf("trained:%s:%d:%s", model.RunID, model.NumIterations, model.Status), nil
}

// svm trains kernel or linear SVMs from a table with a point and a label
// column:
//
//	svm source=train output=svm_model [name=m] [kind=classification]
//	    [model=kernel|linear] [kernel=gaussian(0.5)] [column=coords]
//	    [label=label] [partitions=1] [epochs=1] [seed=0] [lambda=0.001]
//	    [eta=0.1] [nu=0.1] [epsilon=0.1]
func (r *Runner) svm(ctx context.Context, cmd *Command) (string, error) {
	const op = "mladmin.svm"
	source, err := cmd.require("source")
	if err != nil {
		return "", err
	}
	output, err := cmd.require("output")
	if err != nil {
		return "", err
	}
	kind, err := svm.ParseKind(cmd.str("kind", string(svm.Classification)))
	if err != nil {
		return "", err
	}
	partitions, err := cmd.int("partitions", 1)
	if err != nil {
		return "", err
	}
	cfg := svm.TrainConfig{Kind: kind, Kernel: cmd.str("kernel", svm.KernelLinear), Logger: r.Logger}
	if cfg.Epochs, err = cmd.int("epochs", 1); err != nil {
		return "", err
	}
	seed, err := cmd.int("seed", 0)
	if err != nil {
		return "", err
	}
	cfg.Seed = int64(seed)
	for key, dst := range map[string]*float64{"lambda": &cfg.Lambda, "eta": &cfg.LearningRate, "nu": &cfg.Nu, "epsilon": &cfg.Epsilon} {
		if *dst, err = cmd.float(key, 0); err != nil {
			return "", err
		}
	}
	examples, err := loadExamples(ctx, r.DB, source, cmd.str("column", "coords"), cmd.str("label", "label"), kind)
	if err != nil {
		return "", err
	}
	name := cmd.str("name", output)
	parallel := partitions > 1
	if cmd.str("model", "kernel") == "linear" {
		var parts []svm.LinearIntermediate
		if parallel {
			parts, err = svm.TrainLinearParallel(ctx, cfg, examples, partitions)
		} else {
			var part svm.LinearIntermediate
			part, err = svm.TrainLinear(ctx, cfg, examples)
			parts = []svm.LinearIntermediate{part}
		}
		if err != nil {
			return "", err
		}
		models, err := svm.AssembleLinear(name, kind, parts, parallel)
		if err != nil {
			return "", err
		}
		if err = svm.SaveLinear(ctx, r.DB, output, models); err != nil {
			return "", err
		}
		return fmt.Sprintf("trained:%s:%d", name, len(models)), nil
	}
	var parts []svm.Intermediate
	if parallel {
		parts, err = svm.TrainParallel(ctx, cfg, examples, partitions)
	} else {
		var part svm.Intermediate
		part, err = svm.Train(ctx, cfg, examples)
		parts = []svm.Intermediate{part}
	}
	if err != nil {
		return "", mlerr.Wrap(err, op, source)
	}
	models, err := svm.Assemble(name, cfg.Kernel, kind, parts, parallel)
	if err != nil {
		return "", err
	}
	if err = svm.SaveModels(ctx, r.DB, output, models); err != nil {
		return "", err
	}
	return fmt.Sprintf("trained:%s:%d", name, len(models)), nil
}

// loadExamples reads usable (finite) points with their labels; novelty
// detection needs no label column.
func loadExamples(ctx context.Context, db *sql.DB, table, column, label string, kind svm.Kind) ([]svm.Example, error) {
	const op = "mladmin.svm"
	labelExpr := label
	if kind == svm.Novelty {
		labelExpr = "0"
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT %s, %s FROM %s WHERE %s IS NOT NULL`, column, labelExpr, table, column))
	if err != nil {
		return nil, mlerr.Configuration(op, table+"."+column, "%v", err)
	}
	defer rows.Close()
	var out []svm.Example
	for rows.Next() {
		var (
			blob []byte
			y    sql.NullFloat64
		)
		if err = rows.Scan(&blob, &y); err != nil {
			return nil, mlerr.Computation(err, op, table, "scan")
		}
		x, err := vector.DecodePoint(blob)
		if err != nil {
			return nil, mlerr.Configuration(op, table+"."+column, "%v", err)
		}
		if !vector.IsFinite(x) || (kind != svm.Novelty && !y.Valid) {
			continue
		}
		out = append(out, svm.Example{X: x, Y: y.Float64})
	}
	if err = rows.Err(); err != nil {
		return nil, mlerr.Computation(err, op, table, "scan")
	}
	if len(out) == 0 {
		return nil, mlerr.InsufficientData(op, table+"."+column, "no usable training rows")
	}
	return out, nil
}
