package svm

import (
	"github.com/viant/sqlite-ml/mlerr"
	"gonum.org/v1/gonum/floats"
)

// Scorer evaluates one ensemble member.
type Scorer interface {
	Member() MemberID
	Score(x []float64) (float64, error)
}

// KernelScorer scores a kernel model with its kernel resolved once.
type KernelScorer struct {
	model  *Model
	kernel KernelFunc
}

// NewKernelScorer resolves the model kernel.
func NewKernelScorer(m *Model) (*KernelScorer, error) {
	k, err := ResolveKernel(m.Kernel)
	if err != nil {
		return nil, err
	}
	return &KernelScorer{model: m, kernel: k}, nil
}

// Member implements Scorer.
func (s *KernelScorer) Member() MemberID { return s.model.ID }

// Model returns the scored model.
func (s *KernelScorer) Model() *Model { return s.model }

// Score returns sum(w_i * k(sv_i, x)) + intercept.
func (s *KernelScorer) Score(x []float64) (float64, error) {
	if dim := s.model.Dim(); dim != 0 && dim != len(x) {
		return 0, mlerr.Configuration("svm.score", "point", "dimension %d, model %s has %d", len(x), s.model.ID, dim)
	}
	score := s.model.Intercept
	for _, sv := range s.model.Supports {
		score += sv.Weight * s.kernel(sv.Vector, x)
	}
	return score, nil
}

// Member implements Scorer.
func (m *LinearModel) Member() MemberID { return m.ID }

// Score returns dot(weights, x)/scale + bias.
func (m *LinearModel) Score(x []float64) (float64, error) {
	if len(x) != len(m.Weights) {
		return 0, mlerr.Configuration("svm.score", "point", "dimension %d, model %s has %d", len(x), m.ID, len(m.Weights))
	}
	scale := m.Scale
	if scale == 0 {
		scale = 1
	}
	return floats.Dot(m.Weights, x)/scale + m.Bias, nil
}

// KernelScorers wraps kernel models.
func KernelScorers(models []*Model) ([]Scorer, error) {
	out := make([]Scorer, len(models))
	for i, m := range models {
		s, err := NewKernelScorer(m)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// LinearScorers wraps linear models.
func LinearScorers(models []*LinearModel) []Scorer {
	out := make([]Scorer, len(models))
	for i, m := range models {
		out[i] = m
	}
	return out
}

// ScoreSingle scores x against a table that must hold exactly one model id.
func ScoreSingle(members []Scorer, x []float64) (float64, error) {
	const op = "svm.score_single"
	if len(members) == 0 {
		return 0, mlerr.ModelNotFound(op, "model", "no model to score")
	}
	first := members[0].Member()
	for _, m := range members[1:] {
		if m.Member() != first {
			return 0, mlerr.EnsembleAmbiguity(op, first.Ensemble, "table holds several models (%s, %s); score it as an ensemble", first, m.Member())
		}
	}
	return members[0].Score(x)
}

// ScoreEnsemble scores x against every member in member order and appends
// the mean of the member scores as the "avg" prediction. All members must
// belong to one ensemble.
func ScoreEnsemble(members []Scorer, x []float64) ([]Prediction, error) {
	const op = "svm.score_ensemble"
	if len(members) == 0 {
		return nil, mlerr.ModelNotFound(op, "model", "no model to score")
	}
	name := members[0].Member().Ensemble
	for _, m := range members[1:] {
		if other := m.Member().Ensemble; other != name {
			return nil, mlerr.EnsembleAmbiguity(op, name, "members of ensembles %q and %q cannot be averaged together", name, other)
		}
	}
	ordered := append([]Scorer(nil), members...)
	sortMembers(ordered)
	out := make([]Prediction, 0, len(ordered)+1)
	var sum float64
	for _, m := range ordered {
		score, err := m.Score(x)
		if err != nil {
			return nil, err
		}
		sum += score
		out = append(out, Prediction{Member: m.Member().String(), Score: score})
	}
	out = append(out, Prediction{Member: AvgMember, Score: sum / float64(len(ordered))})
	return out, nil
}
