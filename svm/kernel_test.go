package svm

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-ml/mlerr"
)

func TestResolveKernel(t *testing.T) {
	a, b := []float64{1, 2}, []float64{3, 4}
	for _, tc := range []struct {
		spec string
		want float64
	}{
		{"linear", 11},
		{"", 11},
		{"polynomial(2)", 144},
		{"Polynomial(2, 0)", 121},
		{"poly(3,1)", 1728},
		{"gaussian(0.5)", math.Exp(-0.5 * 8)},
		{"rbf", math.Exp(-8)},
	} {
		k, err := ResolveKernel(tc.spec)
		require.NoError(t, err, tc.spec)
		assert.InDelta(t, tc.want, k(a, b), 1e-12, tc.spec)
	}

	for _, spec := range []string{"sigmoid", "linear(1)", "polynomial", "polynomial(1.5)", "gaussian(-1)", "gaussian(1", "gaussian(x)"} {
		_, err := ResolveKernel(spec)
		require.Error(t, err, spec)
		assert.True(t, errors.Is(err, mlerr.ErrConfiguration), spec)
	}
}

func TestMemberID(t *testing.T) {
	assert.Equal(t, "m", MemberID{Ensemble: "m", Index: NoPartition}.String())
	assert.Equal(t, "m0", MemberID{Ensemble: "m", Index: 0}.String())
	assert.Equal(t, "m12", MemberID{Ensemble: "m", Index: 12}.String())
	assert.True(t, MemberID{"m", 2}.Less(MemberID{"m", 10}))
	assert.True(t, MemberID{"a", 5}.Less(MemberID{"b", 0}))
}
