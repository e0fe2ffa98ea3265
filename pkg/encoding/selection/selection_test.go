package selection

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-opt/gacore/pkg/gatypes"
)

func samplePopulation() gatypes.Population[int] {
	return gatypes.Population[int]{{0}, {1}, {2}, {3}, {4}}
}

func TestTournamentNeverReturnsMissing(t *testing.T) {
	pop := samplePopulation()
	fitness := gatypes.FitnessVector{1, math.NaN(), 3, 4, math.NaN()}
	sel := Tournament[int](3)
	rng := rand.New(rand.NewSource(1))

	parents, parentFitness, err := sel(rng, pop, fitness, 50)
	require.NoError(t, err)
	for _, f := range parentFitness {
		assert.False(t, math.IsNaN(f))
	}
	assert.Len(t, parents, 50)
}

func TestTournamentPrefersFitter(t *testing.T) {
	pop := samplePopulation()
	fitness := gatypes.FitnessVector{0, 0, 0, 0, 100}
	sel := Tournament[int](5) // tournament size == population, always picks the best
	rng := rand.New(rand.NewSource(1))

	_, parentFitness, err := sel(rng, pop, fitness, 10)
	require.NoError(t, err)
	for _, f := range parentFitness {
		assert.Equal(t, 100.0, f)
	}
}

func TestLinearRankAllMissingErrors(t *testing.T) {
	pop := samplePopulation()
	fitness := gatypes.FitnessVector{math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()}
	sel := LinearRank[int](0.7)
	rng := rand.New(rand.NewSource(1))

	_, _, err := sel(rng, pop, fitness, 5)
	assert.Error(t, err)
}

func TestRouletteNeverReturnsMissingAndHandlesNegativeFitness(t *testing.T) {
	pop := samplePopulation()
	fitness := gatypes.FitnessVector{-10, -5, math.NaN(), -1, -8}
	sel := Roulette[int]()
	rng := rand.New(rand.NewSource(2))

	_, parentFitness, err := sel(rng, pop, fitness, 30)
	require.NoError(t, err)
	for _, f := range parentFitness {
		assert.False(t, math.IsNaN(f))
	}
}

func TestNonlinearRankConcentratesOnBest(t *testing.T) {
	pop := samplePopulation()
	fitness := gatypes.FitnessVector{0, 1, 2, 3, 100}
	sel := NonlinearRank[int](0.9)
	rng := rand.New(rand.NewSource(3))

	_, parentFitness, err := sel(rng, pop, fitness, 200)
	require.NoError(t, err)

	bestCount := 0
	for _, f := range parentFitness {
		if f == 100 {
			bestCount++
		}
	}
	assert.Greater(t, bestCount, 150)
}
