package permutation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-opt/gacore/pkg/gatypes"
)

func tspDomain() Domain {
	return Domain{Lower: 0, Upper: 4}
}

func TestDomainValid(t *testing.T) {
	d := tspDomain()
	assert.True(t, d.Valid([]int{0, 1, 2, 3, 4}))
	assert.False(t, d.Valid([]int{0, 1, 2, 3, 3}))
	assert.False(t, d.Valid([]int{0, 1, 2, 3}))
	assert.False(t, d.Valid([]int{0, 1, 2, 3, 9}))
}

func TestSampleProducesValidPermutation(t *testing.T) {
	d := tspDomain()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		assert.True(t, d.Valid(d.Sample(rng)))
	}
}

func TestInitSeedsFromSuggestions(t *testing.T) {
	d := tspDomain()
	rng := rand.New(rand.NewSource(1))
	suggestions := gatypes.Population[int]{{4, 3, 2, 1, 0}}

	pop, err := Init(rng, 5, d, suggestions)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 3, 2, 1, 0}, pop[0])
	for _, row := range pop {
		assert.True(t, d.Valid(row))
	}
}

func TestInitRejectsShapeMismatch(t *testing.T) {
	d := tspDomain()
	rng := rand.New(rand.NewSource(1))
	suggestions := gatypes.Population[int]{{0, 1, 2}}

	_, err := Init(rng, 5, d, suggestions)
	require.Error(t, err)
	var shapeErr *gatypes.ShapeMismatch
	assert.ErrorAs(t, err, &shapeErr)
}

func TestInitRejectsInvalidPermutation(t *testing.T) {
	d := tspDomain()
	rng := rand.New(rand.NewSource(1))
	suggestions := gatypes.Population[int]{{0, 0, 1, 2, 3}}

	_, err := Init(rng, 5, d, suggestions)
	require.Error(t, err)
	var domErr *gatypes.OperatorDomainViolation
	assert.ErrorAs(t, err, &domErr)
}

func TestPMXProducesValidPermutations(t *testing.T) {
	d := tspDomain()
	rng := rand.New(rand.NewSource(7))
	parents := gatypes.Population[int]{{0, 1, 2, 3, 4}, {4, 3, 2, 1, 0}}

	for i := 0; i < 50; i++ {
		c0, c1, err := PMX(rng, d, parents, 0, 1)
		require.NoError(t, err)
		assert.True(t, d.Valid(c0))
		assert.True(t, d.Valid(c1))
	}
}

func TestCycleProducesValidPermutations(t *testing.T) {
	d := tspDomain()
	rng := rand.New(rand.NewSource(7))
	parents := gatypes.Population[int]{{0, 1, 2, 3, 4}, {4, 3, 2, 1, 0}}

	for i := 0; i < 50; i++ {
		c0, c1, err := Cycle(rng, d, parents, 0, 1)
		require.NoError(t, err)
		assert.True(t, d.Valid(c0))
		assert.True(t, d.Valid(c1))
	}
}

func TestOrderBasedProducesValidPermutations(t *testing.T) {
	d := tspDomain()
	rng := rand.New(rand.NewSource(7))
	parents := gatypes.Population[int]{{0, 1, 2, 3, 4}, {4, 3, 2, 1, 0}}

	for i := 0; i < 50; i++ {
		c0, c1, err := OrderBased(rng, d, parents, 0, 1)
		require.NoError(t, err)
		assert.True(t, d.Valid(c0))
		assert.True(t, d.Valid(c1))
	}
}

func TestSwapPreservesPermutation(t *testing.T) {
	d := tspDomain()
	rng := rand.New(rand.NewSource(3))
	row := []int{0, 1, 2, 3, 4}

	for i := 0; i < 20; i++ {
		mutated, err := Swap(rng, d, row)
		require.NoError(t, err)
		assert.True(t, d.Valid(mutated))
	}
}

func TestInsertionPreservesPermutation(t *testing.T) {
	d := tspDomain()
	rng := rand.New(rand.NewSource(3))
	row := []int{0, 1, 2, 3, 4}

	for i := 0; i < 20; i++ {
		mutated, err := Insertion(rng, d, row)
		require.NoError(t, err)
		assert.True(t, d.Valid(mutated))
	}
}

func TestScramblePreservesPermutation(t *testing.T) {
	d := tspDomain()
	rng := rand.New(rand.NewSource(3))
	row := []int{0, 1, 2, 3, 4}

	for i := 0; i < 20; i++ {
		mutated, err := Scramble(rng, d, row)
		require.NoError(t, err)
		assert.True(t, d.Valid(mutated))
	}
}

func TestDefaultsResolvesAllFour(t *testing.T) {
	ops := Defaults()
	assert.NotNil(t, ops.Init)
	assert.NotNil(t, ops.Select)
	assert.NotNil(t, ops.Crossover)
	assert.NotNil(t, ops.Mutate)
}
