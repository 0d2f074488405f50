// Command sqlite-ml trains and applies k-means and SVM models over point
// tables stored in SQLite (or read from DuckDB).
//
//	sqlite-ml import  -table points -file points.parquet
//	sqlite-ml export  -table points -file out.parquet
//	sqlite-ml kmeans  -table points -output km -k 3 [-reducer sql|memory]
//	sqlite-ml resume  -run <id> -table points -output km
//	sqlite-ml svm     -table train -output clf [-model linear] [-partitions 3]
//	sqlite-ml predict -model km -kind kmeans -point 1,2
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/viant/sqlite-ml/dataset"
	"github.com/viant/sqlite-ml/engine"
	"github.com/viant/sqlite-ml/kmeans"
	"github.com/viant/sqlite-ml/metrics"
	"github.com/viant/sqlite-ml/mladmin"
	"github.com/viant/sqlite-ml/predict"
	"github.com/viant/sqlite-ml/statelog"
	"github.com/viant/sqlite-ml/svm"
	"github.com/viant/sqlite-ml/vector"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "sqlite-ml:", err)
		os.Exit(1)
	}
}

// app carries what every command needs.
type app struct {
	cfg      *Config
	db       *sql.DB
	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collector
	out      io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("sqlite-ml", flag.ContinueOnError)
	global.SetOutput(stderr)
	envFile := global.String("env", "", "dotenv file to load (default .env)")
	dsn := global.String("db", "", "database path, overrides SQLITEML_DSN")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		return fmt.Errorf("expected a command: import, export, kmeans, resume, svm, predict")
	}
	cfg, err := LoadConfig(*envFile)
	if err != nil {
		return err
	}
	if *dsn != "" {
		cfg.DSN = *dsn
	}
	a := &app{cfg: cfg, logger: NewLogger(cfg, stderr), registry: prometheus.NewRegistry(), out: stdout}
	a.metrics = metrics.New(a.registry)
	if a.db, err = a.open(); err != nil {
		return err
	}
	defer a.db.Close()

	cmd, rest := global.Arg(0), global.Args()[1:]
	started := time.Now()
	switch cmd {
	case "import":
		err = a.importPoints(ctx, rest)
	case "export":
		err = a.exportPoints(ctx, rest)
	case "kmeans":
		err = a.kmeans(ctx, rest)
	case "resume":
		err = a.resume(ctx, rest)
	case "svm":
		err = a.svm(ctx, rest)
	case "predict":
		err = a.predict(ctx, rest)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return err
	}
	a.logger.Info().Str("command", cmd).Dur("took", time.Since(started)).Msg("done")
	if cfg.DumpMetrics {
		a.dumpMetrics()
	}
	return nil
}

func (a *app) open() (*sql.DB, error) {
	if a.cfg.Driver == DriverDuckDB {
		return sql.Open(DriverDuckDB, a.cfg.DSN)
	}
	if err := engine.RegisterFunctions(nil); err != nil {
		return nil, err
	}
	db, err := engine.Open(a.cfg.DSN)
	if err != nil {
		return nil, err
	}
	// Modules are only visible on connections opened after registration.
	if err = predict.Register(db, predict.WithMetrics(a.metrics), predict.WithLogger(a.logger)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err = mladmin.Register(db, mladmin.WithMetrics(a.metrics), mladmin.WithLogger(a.logger)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err = db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (a *app) sqliteOnly(cmd string) error {
	if a.cfg.Driver != DriverSQLite {
		return fmt.Errorf("%s requires the sqlite driver", cmd)
	}
	return nil
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	return enc.Encode(v)
}

func (a *app) dumpMetrics() {
	families, err := a.registry.Gather()
	if err != nil {
		a.logger.Warn().Err(err).Msg("gather metrics")
		return
	}
	for _, family := range families {
		for _, m := range family.GetMetric() {
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				value = float64(m.GetHistogram().GetSampleCount())
			}
			event := a.logger.Info().Str("metric", family.GetName()).Float64("value", value)
			for _, label := range m.GetLabel() {
				event = event.Str(label.GetName(), label.GetValue())
			}
			event.Msg("metric")
		}
	}
}

func (a *app) importPoints(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	table := fs.String("table", "points", "destination point table")
	file := fs.String("file", "", "parquet file to read")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("import: -file is required")
	}
	n, err := dataset.Import(ctx, a.db, *table, *file)
	if err != nil {
		return err
	}
	a.logger.Info().Str("table", *table).Int("rows", n).Msg("imported")
	return a.printJSON(map[string]interface{}{"table": *table, "rows": n})
}

func (a *app) exportPoints(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	table := fs.String("table", "points", "source point table")
	column := fs.String("column", "coords", "point column")
	file := fs.String("file", "", "parquet file to write")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("export: -file is required")
	}
	store, err := vector.NewSQLStore(a.db, vector.SQLStoreConfig{Table: *table, PointColumn: *column})
	if err != nil {
		return err
	}
	n, err := dataset.Export(ctx, store, *file)
	if err != nil {
		return err
	}
	return a.printJSON(map[string]interface{}{"file": *file, "rows": n})
}

type kmeansFlags struct {
	table, column, output, metric, seeding, reducer, runID string
	k, maxIter                                             int
	minFrac                                                float64
	seed                                                   int64
}

func (f *kmeansFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.table, "table", "points", "source point table")
	fs.StringVar(&f.column, "column", "coords", "point column")
	fs.StringVar(&f.output, "output", "", "model table (sqlite only)")
	fs.StringVar(&f.metric, "metric", vector.MetricEuclidean, "distance metric")
	fs.StringVar(&f.seeding, "init", "kmeanspp", "seeding: kmeanspp or random")
	fs.StringVar(&f.reducer, "reducer", "sql", "reducer: sql or memory")
	fs.StringVar(&f.runID, "run", "", "run id (default random)")
	fs.IntVar(&f.k, "k", 0, "number of centroids")
	fs.IntVar(&f.maxIter, "max-iter", kmeans.DefaultMaxIterations, "maximum iterations")
	fs.Float64Var(&f.minFrac, "min-frac", kmeans.DefaultMinFracReassigned, "convergence threshold")
	fs.Int64Var(&f.seed, "seed", 0, "seeding random seed")
}

func (f *kmeansFlags) seeder() (kmeans.Seeder, error) {
	switch f.seeding {
	case "kmeanspp", "kmeans++":
		return &kmeans.PlusPlusSeeder{RandSeed: f.seed}, nil
	case "random":
		return &kmeans.RandomSeeder{RandSeed: f.seed}, nil
	}
	return nil, fmt.Errorf("unknown seeding %q", f.seeding)
}

// reduction resolves the point store, reducer and state log for a run.
// DuckDB runs use the in-process reducer and an in-memory log.
func (a *app) reduction(ctx context.Context, f *kmeansFlags, metric vector.Capability) (*vector.SQLStore, kmeans.Reducer, kmeans.StateLog, error) {
	store, err := vector.NewSQLStore(a.db, vector.SQLStoreConfig{Table: f.table, PointColumn: f.column})
	if err != nil {
		return nil, nil, nil, err
	}
	if a.cfg.Driver == DriverDuckDB {
		reducer, err := kmeans.NewMemoryReducer(ctx, store, metric)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, reducer, kmeans.NewMemoryLog(), nil
	}
	log, err := statelog.New(ctx, a.db, statelog.Config{Table: a.cfg.StateTable})
	if err != nil {
		return nil, nil, nil, err
	}
	var reducer kmeans.Reducer
	switch f.reducer {
	case "sql":
		reducer, err = kmeans.NewSQLReducer(a.db, store, metric)
	case "memory":
		reducer, err = kmeans.NewMemoryReducer(ctx, store, metric)
	default:
		err = fmt.Errorf("unknown reducer %q", f.reducer)
	}
	if err != nil {
		return nil, nil, nil, err
	}
	return store, reducer, log, nil
}

func (a *app) finishKMeans(ctx context.Context, output string, model *kmeans.Model) error {
	if output != "" {
		if err := a.sqliteOnly("saving a model"); err != nil {
			return err
		}
		if err := kmeans.SaveModel(ctx, a.db, output, model); err != nil {
			return err
		}
	}
	return a.printJSON(model)
}

func (a *app) kmeans(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("kmeans", flag.ContinueOnError)
	f := &kmeansFlags{}
	f.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	metric, err := vector.Resolve(f.metric)
	if err != nil {
		return err
	}
	seeder, err := f.seeder()
	if err != nil {
		return err
	}
	store, reducer, log, err := a.reduction(ctx, f, metric)
	if err != nil {
		return err
	}
	eng, err := kmeans.NewEngine(kmeans.Config{
		K:                 f.k,
		MaxIterations:     f.maxIter,
		MinFracReassigned: kmeans.Threshold(f.minFrac),
		Metric:            metric,
		Seeder:            seeder,
		Log:               log,
		RunID:             f.runID,
		Logger:            a.logger,
		Metrics:           a.metrics,
	})
	if err != nil {
		return err
	}
	model, err := eng.Run(ctx, store, reducer)
	if err != nil {
		return err
	}
	return a.finishKMeans(ctx, f.output, model)
}

func (a *app) resume(ctx context.Context, args []string) error {
	if err := a.sqliteOnly("resume"); err != nil {
		return err
	}
	fs := flag.NewFlagSet("resume", flag.ContinueOnError)
	f := &kmeansFlags{}
	f.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if f.runID == "" {
		return fmt.Errorf("resume: -run is required")
	}
	metric, err := vector.Resolve(f.metric)
	if err != nil {
		return err
	}
	_, reducer, log, err := a.reduction(ctx, f, metric)
	if err != nil {
		return err
	}
	last, err := log.Last(ctx, f.runID)
	if err != nil {
		return err
	}
	if last == nil {
		return fmt.Errorf("resume: no logged state for run %q", f.runID)
	}
	eng, err := kmeans.NewEngine(kmeans.Config{
		K:                 len(last.Centroids),
		MaxIterations:     f.maxIter,
		MinFracReassigned: kmeans.Threshold(f.minFrac),
		Metric:            metric,
		Log:               log,
		Logger:            a.logger,
		Metrics:           a.metrics,
	})
	if err != nil {
		return err
	}
	model, err := eng.Resume(ctx, f.runID, reducer)
	if err != nil {
		return err
	}
	return a.finishKMeans(ctx, f.output, model)
}

func (a *app) svm(ctx context.Context, args []string) error {
	if err := a.sqliteOnly("svm"); err != nil {
		return err
	}
	fs := flag.NewFlagSet("svm", flag.ContinueOnError)
	table := fs.String("table", "train", "training table")
	output := fs.String("output", "", "model table")
	name := fs.String("name", "", "model name (default output)")
	kind := fs.String("kind", string(svm.Classification), "classification, regression or novelty")
	model := fs.String("model", "kernel", "kernel or linear")
	kernel := fs.String("kernel", svm.KernelLinear, "kernel spec, e.g. gaussian(0.5)")
	label := fs.String("label", "label", "label column")
	partitions := fs.Int("partitions", 1, "number of ensemble members")
	epochs := fs.Int("epochs", 1, "passes over the data")
	seed := fs.Int64("seed", 0, "shuffle seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	text := fmt.Sprintf("svm source=%s output=%s kind=%s model=%s kernel=%s label=%s partitions=%d epochs=%d seed=%d",
		*table, *output, *kind, *model, *kernel, *label, *partitions, *epochs, *seed)
	if *name != "" {
		text += " name=" + *name
	}
	cmd, err := mladmin.ParseCommand(text)
	if err != nil {
		return err
	}
	runner := &mladmin.Runner{DB: a.db, Logger: a.logger, Metrics: a.metrics}
	result, err := runner.Run(ctx, cmd)
	if err != nil {
		return err
	}
	return a.printJSON(map[string]string{"result": result})
}

func parsePoint(text string) ([]float64, error) {
	fields := strings.Split(strings.Trim(strings.TrimSpace(text), "[]"), ",")
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate %q", f)
		}
		out = append(out, v)
	}
	return out, nil
}

type predictionRow struct {
	Member string  `json:"member"`
	Score  float64 `json:"score"`
}

func (a *app) predict(ctx context.Context, args []string) error {
	if err := a.sqliteOnly("predict"); err != nil {
		return err
	}
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	modelTable := fs.String("model", "", "model table")
	kind := fs.String("kind", predict.KindKernel, "kernel, linear or kmeans")
	single := fs.Bool("single", false, "score a single non-ensemble model")
	runID := fs.String("run", "", "k-means run id (default latest)")
	pointText := fs.String("point", "", "comma separated coordinates")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelTable == "" {
		return fmt.Errorf("predict: -model is required")
	}
	point, err := parsePoint(*pointText)
	if err != nil {
		return err
	}
	var rows []predictionRow
	switch *kind {
	case predict.KindKMeans:
		model, err := kmeans.LoadModel(ctx, a.db, *modelTable, *runID)
		if err != nil {
			return err
		}
		idx, d, err := model.Closest(point)
		if err != nil {
			return err
		}
		rows = append(rows, predictionRow{Member: strconv.Itoa(idx), Score: d})
	case predict.KindKernel, predict.KindLinear:
		scorers, err := svm.LoadScorers(ctx, a.db, *modelTable, *kind == predict.KindLinear)
		if err != nil {
			return err
		}
		if *single {
			score, err := svm.ScoreSingle(scorers, point)
			if err != nil {
				return err
			}
			rows = append(rows, predictionRow{Member: scorers[0].Member().String(), Score: score})
			break
		}
		predictions, err := svm.ScoreEnsemble(scorers, point)
		if err != nil {
			return err
		}
		for _, p := range predictions {
			rows = append(rows, predictionRow{Member: p.Member, Score: p.Score})
		}
	default:
		return errors.New("predict: -kind must be kernel, linear or kmeans")
	}
	a.metrics.Predicted(*kind, 1)
	return a.printJSON(rows)
}
