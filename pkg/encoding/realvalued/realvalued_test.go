package realvalued

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-opt/gacore/pkg/gatypes"
)

func boxDomain() Domain {
	return Domain{Lower: []float64{-1, -1}, Upper: []float64{1, 1}}
}

func TestDomainValid(t *testing.T) {
	d := boxDomain()
	assert.True(t, d.Valid([]float64{0.5, -0.5}))
	assert.False(t, d.Valid([]float64{2, 0}))
	assert.False(t, d.Valid([]float64{0}))
}

func TestInitStaysInBounds(t *testing.T) {
	d := boxDomain()
	rng := rand.New(rand.NewSource(1))
	pop, err := Init(rng, 20, d, nil)
	require.NoError(t, err)
	for _, row := range pop {
		assert.True(t, d.Valid(row))
	}
}

func TestBlendStaysInBounds(t *testing.T) {
	d := boxDomain()
	rng := rand.New(rand.NewSource(1))
	parents := gatypes.Population[float64]{{-1, -1}, {1, 1}}
	cross := Blend(0.5)

	for i := 0; i < 50; i++ {
		c0, c1, err := cross(rng, d, parents, 0, 1)
		require.NoError(t, err)
		assert.True(t, d.Valid(c0))
		assert.True(t, d.Valid(c1))
	}
}

func TestArithmeticStaysInBounds(t *testing.T) {
	d := boxDomain()
	rng := rand.New(rand.NewSource(1))
	parents := gatypes.Population[float64]{{-1, -1}, {1, 1}}

	c0, c1, err := Arithmetic(rng, d, parents, 0, 1)
	require.NoError(t, err)
	assert.True(t, d.Valid(c0))
	assert.True(t, d.Valid(c1))
}

func TestGaussianClipStaysInBounds(t *testing.T) {
	d := boxDomain()
	mutate := GaussianClip(5.0) // deliberately huge sigma to exercise clipping
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 50; i++ {
		mutated, err := mutate(rng, d, []float64{0, 0})
		require.NoError(t, err)
		assert.True(t, d.Valid(mutated))
	}
}

func TestUniformInRangeStaysInBounds(t *testing.T) {
	d := boxDomain()
	mutate := UniformInRange(1.0)
	rng := rand.New(rand.NewSource(1))

	mutated, err := mutate(rng, d, []float64{0, 0})
	require.NoError(t, err)
	assert.True(t, d.Valid(mutated))
}
