package svm

import (
	"sort"
	"strconv"

	"github.com/viant/sqlite-ml/mlerr"
)

// Kind is the learning task a model was trained for.
type Kind string

const (
	Classification Kind = "classification"
	Regression     Kind = "regression"
	Novelty        Kind = "novelty"
)

// ParseKind validates a kind name.
func ParseKind(name string) (Kind, error) {
	switch Kind(name) {
	case Classification, Regression, Novelty:
		return Kind(name), nil
	case "":
		return Classification, nil
	}
	return "", mlerr.Configuration("svm.kind", "kind", "unknown model kind %q", name)
}

// NoPartition is the member index of a non-partitioned model.
const NoPartition = -1

// AvgMember names the synthetic mean prediction of an ensemble.
const AvgMember = "avg"

// MemberID identifies one model of an ensemble.
type MemberID struct {
	Ensemble string
	Index    int
}

// String renders the id for display: the ensemble name, followed by the
// member index for partitioned models.
func (m MemberID) String() string {
	if m.Index == NoPartition {
		return m.Ensemble
	}
	return m.Ensemble + strconv.Itoa(m.Index)
}

// Less orders members by ensemble, then index.
func (m MemberID) Less(o MemberID) bool {
	if m.Ensemble != o.Ensemble {
		return m.Ensemble < o.Ensemble
	}
	return m.Index < o.Index
}

// SupportVector is one weighted support vector.
type SupportVector struct {
	Weight float64
	Vector []float64
}

// Model is a kernel SVM member.
type Model struct {
	ID        MemberID
	Kind      Kind
	Kernel    string
	Supports  []SupportVector
	Intercept float64
	// Epsilon is the insensitivity margin of regression models.
	Epsilon float64
	// Rho is the offset of novelty models; Intercept is -Rho.
	Rho float64
}

// Dim returns the support vector dimension, or 0 without support vectors.
func (m *Model) Dim() int {
	if len(m.Supports) == 0 {
		return 0
	}
	return len(m.Supports[0].Vector)
}

// LinearModel is a linear SVM member. Its score is
// dot(Weights, x)/Scale + Bias.
type LinearModel struct {
	ID      MemberID
	Kind    Kind
	Weights []float64
	Scale   float64
	Bias    float64
}

// Prediction is one scored member.
type Prediction struct {
	Member string
	Score  float64
}

func sortMembers(members []Scorer) {
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Member().Less(members[j].Member())
	})
}
