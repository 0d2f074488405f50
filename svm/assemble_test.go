package svm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-ml/mlerr"
)

func TestAssemble(t *testing.T) {
	parts := []Intermediate{
		{Supports: []SupportVector{{Weight: 1, Vector: []float64{1}}}, Bias: 0.5, Rho: 2, Epsilon: 0.1},
		{Supports: []SupportVector{{Weight: -1, Vector: []float64{2}}}, Bias: -0.5, Rho: 3, Epsilon: 0.1},
	}

	models, err := Assemble("m", "linear", Classification, parts, true)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, MemberID{"m", 0}, models[0].ID)
	assert.Equal(t, MemberID{"m", 1}, models[1].ID)
	assert.Equal(t, 0.5, models[0].Intercept)
	assert.Equal(t, 0.0, models[0].Epsilon)

	models, err = Assemble("nov", "gaussian(1)", Novelty, parts[:1], false)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, MemberID{"nov", NoPartition}, models[0].ID)
	assert.Equal(t, -2.0, models[0].Intercept)
	assert.Equal(t, 2.0, models[0].Rho)

	models, err = Assemble("reg", "linear", Regression, parts[1:], false)
	require.NoError(t, err)
	assert.Equal(t, -0.5, models[0].Intercept)
	assert.Equal(t, 0.1, models[0].Epsilon)

	parts[0].Supports[0].Vector[0] = 42
	assert.Equal(t, 2.0, models[0].Supports[0].Vector[0])

	_, err = Assemble("m", "linear", Classification, parts, false)
	assert.True(t, errors.Is(err, mlerr.ErrConfiguration))
	_, err = Assemble("avg", "linear", Classification, parts, true)
	assert.True(t, errors.Is(err, mlerr.ErrConfiguration))
	_, err = Assemble("m", "linear", Classification, nil, true)
	assert.True(t, errors.Is(err, mlerr.ErrInsufficientData))
	_, err = Assemble("m", "bogus", Classification, parts, true)
	assert.True(t, errors.Is(err, mlerr.ErrConfiguration))
}

func TestAssembleLinear(t *testing.T) {
	models, err := AssembleLinear("lin", Classification, []LinearIntermediate{{Weights: []float64{2}, Scale: 2, Bias: 1}}, false)
	require.NoError(t, err)
	score, err := ScoreSingle(LinearScorers(models), []float64{3})
	require.NoError(t, err)
	assert.Equal(t, 4.0, score)

	_, err = AssembleLinear("lin", Classification, []LinearIntermediate{{Weights: []float64{2}}}, false)
	assert.True(t, errors.Is(err, mlerr.ErrConfiguration))
}
