package model

import (
	"testing"

	"clusterkit/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZero(t *testing.T) {
	out, err := Zero()([]complex128{1, 2i})
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, out)
}

func TestNorm(t *testing.T) {
	out, err := Norm()([]complex128{3, 4i})
	require.NoError(t, err)
	assert.InDelta(t, 25.0, out[0], 1e-12)
}

func TestPolynomial(t *testing.T) {
	f, err := Polynomial(2)
	require.NoError(t, err)

	// 1 + 2q at q = 0.25 and q = 0.75
	out, err := f([]complex128{1, 2})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.InDelta(t, 1.5*1.5, out[0], 1e-12)
	assert.InDelta(t, 2.5*2.5, out[1], 1e-12)

	// a purely imaginary constant
	out, err = f([]complex128{2i})
	require.NoError(t, err)
	assert.InDelta(t, 4.0, out[0], 1e-12)
	assert.InDelta(t, 4.0, out[1], 1e-12)

	_, err = Polynomial(0)
	assert.True(t, core.IsConfigurationError(err))
}

func TestLookup(t *testing.T) {
	for _, name := range []string{NameZero, NameNorm, NamePolynomial} {
		f, err := Lookup(name, 3)
		require.NoError(t, err, name)
		assert.NotNil(t, f)
	}

	_, err := Lookup("nope", 1)
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))
}
