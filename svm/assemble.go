package svm

import (
	"github.com/viant/sqlite-ml/mlerr"
)

// Intermediate is the raw output of training one kernel model.
type Intermediate struct {
	Supports []SupportVector
	// Bias is the learned offset of classification and regression models.
	Bias float64
	// Rho is the learned offset of novelty models.
	Rho     float64
	Epsilon float64
}

// LinearIntermediate is the raw output of training one linear model.
type LinearIntermediate struct {
	Weights []float64
	Scale   float64
	Bias    float64
}

func memberID(name string, i int, parallel bool) MemberID {
	if parallel {
		return MemberID{Ensemble: name, Index: i}
	}
	return MemberID{Ensemble: name, Index: NoPartition}
}

func checkParts(op, name string, n int, parallel bool) error {
	if name == "" {
		return mlerr.Configuration(op, "model", "model name is required")
	}
	if name == AvgMember {
		return mlerr.Configuration(op, "model", "%q is reserved for ensemble averages", AvgMember)
	}
	if n == 0 {
		return mlerr.InsufficientData(op, name, "no trained parts")
	}
	if !parallel && n > 1 {
		return mlerr.Configuration(op, name, "%d parts for a non-partitioned model", n)
	}
	return nil
}

// Assemble converts trainer output into kernel models. With parallel set
// every part becomes member i of ensemble name; otherwise the single part
// becomes a non-partitioned model.
func Assemble(name, kernel string, kind Kind, parts []Intermediate, parallel bool) ([]*Model, error) {
	const op = "svm.assemble"
	if err := checkParts(op, name, len(parts), parallel); err != nil {
		return nil, err
	}
	if _, err := ResolveKernel(kernel); err != nil {
		return nil, err
	}
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	out := make([]*Model, len(parts))
	for i, part := range parts {
		m := &Model{
			ID:       memberID(name, i, parallel),
			Kind:     kind,
			Kernel:   kernel,
			Supports: make([]SupportVector, len(part.Supports)),
		}
		for j, sv := range part.Supports {
			m.Supports[j] = SupportVector{Weight: sv.Weight, Vector: append([]float64(nil), sv.Vector...)}
		}
		switch kind {
		case Novelty:
			m.Rho = part.Rho
			m.Intercept = -part.Rho
		case Regression:
			m.Intercept = part.Bias
			m.Epsilon = part.Epsilon
		default:
			m.Intercept = part.Bias
		}
		out[i] = m
	}
	return out, nil
}

// AssembleLinear converts linear trainer output into linear models.
func AssembleLinear(name string, kind Kind, parts []LinearIntermediate, parallel bool) ([]*LinearModel, error) {
	const op = "svm.assemble_linear"
	if err := checkParts(op, name, len(parts), parallel); err != nil {
		return nil, err
	}
	out := make([]*LinearModel, len(parts))
	for i, part := range parts {
		if part.Scale == 0 {
			return nil, mlerr.Configuration(op, name, "part %d has a zero scale divisor", i)
		}
		out[i] = &LinearModel{
			ID:      memberID(name, i, parallel),
			Kind:    kind,
			Weights: append([]float64(nil), part.Weights...),
			Scale:   part.Scale,
			Bias:    part.Bias,
		}
	}
	return out, nil
}
