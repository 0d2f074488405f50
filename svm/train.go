package svm

import (
	"context"
	"math"
	"math/rand"

	"github.com/rs/zerolog"
	"github.com/viant/sqlite-ml/mlerr"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// Example is one labelled training point. Classification labels are read as
// +1 when positive and -1 otherwise; novelty detection ignores Y.
type Example struct {
	X []float64
	Y float64
}

// TrainConfig controls online training.
type TrainConfig struct {
	Kind Kind
	// Kernel is ignored by the linear trainer.
	Kernel string
	// LearningRate defaults to 0.1.
	LearningRate float64
	// Lambda is the regularization strength, default 0.001.
	Lambda float64
	// Nu bounds the outlier fraction of novelty models, default 0.1.
	Nu float64
	// Epsilon is the regression insensitivity margin, default 0.1.
	Epsilon float64
	// MaxSupportVectors truncates the oldest support vectors, default 1000.
	MaxSupportVectors int
	// Epochs defaults to 1.
	Epochs int
	// Seed drives the per-epoch shuffle.
	Seed   int64
	Logger zerolog.Logger
}

// Validate checks the settings and fills defaults.
func (c *TrainConfig) Validate() error {
	const op = "svm.train_config"
	kind, err := ParseKind(string(c.Kind))
	if err != nil {
		return err
	}
	c.Kind = kind
	if c.LearningRate == 0 {
		c.LearningRate = 0.1
	}
	if c.Lambda == 0 {
		c.Lambda = 0.001
	}
	if c.Nu == 0 {
		c.Nu = 0.1
	}
	if c.Epsilon == 0 {
		c.Epsilon = 0.1
	}
	if c.MaxSupportVectors == 0 {
		c.MaxSupportVectors = 1000
	}
	if c.Epochs == 0 {
		c.Epochs = 1
	}
	switch {
	case c.LearningRate < 0:
		return mlerr.Configuration(op, "learning_rate", "must be positive, got %v", c.LearningRate)
	case c.Lambda < 0 || c.LearningRate*c.Lambda >= 1:
		return mlerr.Configuration(op, "lambda", "learning_rate*lambda must be in [0, 1), got %v", c.LearningRate*c.Lambda)
	case c.Nu <= 0 || c.Nu > 1:
		return mlerr.Configuration(op, "nu", "must be in (0, 1], got %v", c.Nu)
	case c.Epsilon < 0:
		return mlerr.Configuration(op, "epsilon", "must not be negative, got %v", c.Epsilon)
	case c.MaxSupportVectors < 0:
		return mlerr.Configuration(op, "max_support_vectors", "must be positive, got %d", c.MaxSupportVectors)
	case c.Epochs < 0:
		return mlerr.Configuration(op, "epochs", "must be positive, got %d", c.Epochs)
	}
	return nil
}

func label(y float64) float64 {
	if y > 0 {
		return 1
	}
	return -1
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// OnlineTrainer learns a kernel expansion one example at a time using
// stochastic functional gradient steps (NORMA): every step decays existing
// weights by (1 - eta*lambda) and adds the example as a support vector when
// it violates the margin.
type OnlineTrainer struct {
	cfg    TrainConfig
	kernel KernelFunc
	svs    []SupportVector
	bias   float64
	rho    float64
	dim    int
	steps  int
}

// NewOnlineTrainer validates cfg and resolves its kernel.
func NewOnlineTrainer(cfg TrainConfig) (*OnlineTrainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kernel, err := ResolveKernel(cfg.Kernel)
	if err != nil {
		return nil, err
	}
	return &OnlineTrainer{cfg: cfg, kernel: kernel}, nil
}

func (t *OnlineTrainer) expansion(x []float64) float64 {
	var s float64
	for _, sv := range t.svs {
		s += sv.Weight * t.kernel(sv.Vector, x)
	}
	return s
}

// Update applies one training step.
func (t *OnlineTrainer) Update(ex Example) error {
	if err := checkExample("svm.online_trainer", &t.dim, ex); err != nil {
		return err
	}
	eta := t.cfg.LearningRate
	g := t.expansion(ex.X)
	decay := 1 - eta*t.cfg.Lambda
	for i := range t.svs {
		t.svs[i].Weight *= decay
	}
	var alpha float64
	switch t.cfg.Kind {
	case Classification:
		y := label(ex.Y)
		if y*(g+t.bias) < 1 {
			alpha = eta * y
			t.bias += eta * y
		}
	case Regression:
		if r := ex.Y - (g + t.bias); math.Abs(r) > t.cfg.Epsilon {
			alpha = eta * sign(r)
			t.bias += eta * sign(r)
		}
	case Novelty:
		if g < t.rho {
			alpha = eta
			t.rho -= eta * (1 - t.cfg.Nu)
		} else {
			t.rho += eta * t.cfg.Nu
		}
	}
	if alpha != 0 {
		t.svs = append(t.svs, SupportVector{Weight: alpha, Vector: append([]float64(nil), ex.X...)})
		if over := len(t.svs) - t.cfg.MaxSupportVectors; over > 0 {
			t.svs = append(t.svs[:0], t.svs[over:]...)
		}
	}
	t.steps++
	return nil
}

// Result returns the current model state.
func (t *OnlineTrainer) Result() Intermediate {
	out := Intermediate{Bias: t.bias, Rho: t.rho, Epsilon: t.cfg.Epsilon, Supports: make([]SupportVector, len(t.svs))}
	for i, sv := range t.svs {
		out.Supports[i] = SupportVector{Weight: sv.Weight, Vector: append([]float64(nil), sv.Vector...)}
	}
	if t.cfg.Kind != Regression {
		out.Epsilon = 0
	}
	return out
}

func checkExample(op string, dim *int, ex Example) error {
	if len(ex.X) == 0 {
		return mlerr.Configuration(op, "point", "empty point")
	}
	if *dim == 0 {
		*dim = len(ex.X)
	} else if len(ex.X) != *dim {
		return mlerr.Configuration(op, "point", "dimension %d, want %d", len(ex.X), *dim)
	}
	for _, v := range ex.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return mlerr.Configuration(op, "point", "non-finite coordinate")
		}
	}
	return nil
}

// epochs feeds examples to update cfg.Epochs times, shuffled per epoch.
func epochs(ctx context.Context, cfg TrainConfig, seed int64, examples []Example, update func(Example) error) error {
	rng := rand.New(rand.NewSource(seed))
	order := make([]int, len(examples))
	for i := range order {
		order[i] = i
	}
	for e := 0; e < cfg.Epochs; e++ {
		if err := ctx.Err(); err != nil {
			return mlerr.Computation(err, "svm.train", "epoch", "cancelled at epoch %d", e)
		}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, i := range order {
			if err := update(examples[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Train runs the online kernel trainer over examples.
func Train(ctx context.Context, cfg TrainConfig, examples []Example) (Intermediate, error) {
	return trainPartition(ctx, cfg, cfg.Seed, examples)
}

func trainPartition(ctx context.Context, cfg TrainConfig, seed int64, examples []Example) (Intermediate, error) {
	if len(examples) == 0 {
		return Intermediate{}, mlerr.InsufficientData("svm.train", "examples", "no training examples")
	}
	t, err := NewOnlineTrainer(cfg)
	if err != nil {
		return Intermediate{}, err
	}
	if err = epochs(ctx, t.cfg, seed, examples, t.Update); err != nil {
		return Intermediate{}, err
	}
	t.cfg.Logger.Debug().Str("kind", string(t.cfg.Kind)).Int("steps", t.steps).Int("support_vectors", len(t.svs)).Msg("svm trained")
	return t.Result(), nil
}

// LinearTrainer learns a linear model with averaged stochastic gradient
// descent. The returned weights are the sum of the iterates and Scale is the
// number of summed iterates, so dot(Weights, x)/Scale is the averaged model.
type LinearTrainer struct {
	cfg   TrainConfig
	dim   int
	w     []float64
	b     float64
	sumW  []float64
	sumB  float64
	steps int
}

// NewLinearTrainer validates cfg; novelty detection is not supported.
func NewLinearTrainer(cfg TrainConfig) (*LinearTrainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Kind == Novelty {
		return nil, mlerr.Configuration("svm.linear_trainer", "kind", "linear models support classification and regression")
	}
	return &LinearTrainer{cfg: cfg}, nil
}

// Update applies one training step.
func (t *LinearTrainer) Update(ex Example) error {
	if err := checkExample("svm.linear_trainer", &t.dim, ex); err != nil {
		return err
	}
	if t.w == nil {
		t.w = make([]float64, t.dim)
		t.sumW = make([]float64, t.dim)
	}
	eta := t.cfg.LearningRate
	f := floats.Dot(t.w, ex.X) + t.b
	floats.Scale(1-eta*t.cfg.Lambda, t.w)
	switch t.cfg.Kind {
	case Classification:
		if y := label(ex.Y); y*f < 1 {
			floats.AddScaled(t.w, eta*y, ex.X)
			t.b += eta * y
		}
	case Regression:
		if r := ex.Y - f; math.Abs(r) > t.cfg.Epsilon {
			floats.AddScaled(t.w, eta*sign(r), ex.X)
			t.b += eta * sign(r)
		}
	}
	floats.Add(t.sumW, t.w)
	t.sumB += t.b
	t.steps++
	return nil
}

// Result returns the averaged model.
func (t *LinearTrainer) Result() LinearIntermediate {
	if t.steps == 0 {
		return LinearIntermediate{Scale: 1}
	}
	return LinearIntermediate{
		Weights: append([]float64(nil), t.sumW...),
		Scale:   float64(t.steps),
		Bias:    t.sumB / float64(t.steps),
	}
}

// TrainLinear runs the linear trainer over examples.
func TrainLinear(ctx context.Context, cfg TrainConfig, examples []Example) (LinearIntermediate, error) {
	return trainLinearPartition(ctx, cfg, cfg.Seed, examples)
}

func trainLinearPartition(ctx context.Context, cfg TrainConfig, seed int64, examples []Example) (LinearIntermediate, error) {
	if len(examples) == 0 {
		return LinearIntermediate{}, mlerr.InsufficientData("svm.train_linear", "examples", "no training examples")
	}
	t, err := NewLinearTrainer(cfg)
	if err != nil {
		return LinearIntermediate{}, err
	}
	if err = epochs(ctx, t.cfg, seed, examples, t.Update); err != nil {
		return LinearIntermediate{}, err
	}
	return t.Result(), nil
}

// Partition deals examples round-robin into n partitions.
func Partition(examples []Example, n int) [][]Example {
	parts := make([][]Example, n)
	for i, ex := range examples {
		parts[i%n] = append(parts[i%n], ex)
	}
	return parts
}

func checkPartitions(n, examples int) error {
	if n < 1 {
		return mlerr.Configuration("svm.train_parallel", "partitions", "must be positive, got %d", n)
	}
	if examples < n {
		return mlerr.InsufficientData("svm.train_parallel", "examples", "%d examples for %d partitions", examples, n)
	}
	return nil
}

// TrainParallel trains one kernel model per partition concurrently. Part i
// is trained on Partition(examples, n)[i] with seed cfg.Seed+i.
func TrainParallel(ctx context.Context, cfg TrainConfig, examples []Example, n int) ([]Intermediate, error) {
	if err := checkPartitions(n, len(examples)); err != nil {
		return nil, err
	}
	parts := Partition(examples, n)
	out := make([]Intermediate, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := range parts {
		i := i
		g.Go(func() error {
			res, err := trainPartition(gctx, cfg, cfg.Seed+int64(i), parts[i])
			out[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// TrainLinearParallel trains one linear model per partition concurrently.
func TrainLinearParallel(ctx context.Context, cfg TrainConfig, examples []Example, n int) ([]LinearIntermediate, error) {
	if err := checkPartitions(n, len(examples)); err != nil {
		return nil, err
	}
	parts := Partition(examples, n)
	out := make([]LinearIntermediate, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := range parts {
		i := i
		g.Go(func() error {
			res, err := trainLinearPartition(gctx, cfg, cfg.Seed+int64(i), parts[i])
			out[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
