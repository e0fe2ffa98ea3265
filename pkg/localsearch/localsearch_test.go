package localsearch

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-opt/gacore/pkg/encoding/realvalued"
	"github.com/lattice-opt/gacore/pkg/gatypes"
)

func negAbs(individual []float64, extra interface{}, rng *rand.Rand) (gatypes.EvalOutcome[float64], error) {
	return gatypes.EvalOutcome[float64]{Score: -math.Abs(individual[0])}, nil
}

func TestMaybeSkipsWithoutProjector(t *testing.T) {
	domain := realvalued.Domain{Lower: []float64{-10}, Upper: []float64{10}}
	args := gatypes.LocalSearchArgs[float64]{Poptim: 1.0, Pressel: 0.5, MaxIt: 50}
	adapter := New(args, negAbs, nil, domain)

	state := &gatypes.SearchState[float64]{
		Population: gatypes.Population[float64]{{5}, {-3}},
		Fitness:    gatypes.FitnessVector{-5, -3},
	}

	_, _, improved, err := adapter.Maybe(rand.New(rand.NewSource(1)), state)
	require.NoError(t, err)
	assert.False(t, improved)
}

func TestMaybeSkipsWhenProbabilityMisses(t *testing.T) {
	domain := realvalued.Domain{Lower: []float64{-10}, Upper: []float64{10}}
	proj, unproj := IdentityProjector()
	args := gatypes.LocalSearchArgs[float64]{Poptim: 0.0, Pressel: 0.5, MaxIt: 50, Project: proj, Unproject: unproj}
	adapter := New(args, negAbs, nil, domain)

	state := &gatypes.SearchState[float64]{
		Population: gatypes.Population[float64]{{5}, {-3}},
		Fitness:    gatypes.FitnessVector{-5, -3},
	}

	_, _, improved, err := adapter.Maybe(rand.New(rand.NewSource(1)), state)
	require.NoError(t, err)
	assert.False(t, improved)
}

func TestMaybeImprovesTowardOptimum(t *testing.T) {
	domain := realvalued.Domain{Lower: []float64{-10}, Upper: []float64{10}}
	proj, unproj := IdentityProjector()
	args := gatypes.LocalSearchArgs[float64]{Poptim: 1.0, Pressel: 1.0, MaxIt: 200, Project: proj, Unproject: unproj}
	adapter := New(args, negAbs, nil, domain)

	state := &gatypes.SearchState[float64]{
		Population: gatypes.Population[float64]{{5}, {-3}},
		Fitness:    gatypes.FitnessVector{-5, -3},
	}

	row, score, improved, err := adapter.Maybe(rand.New(rand.NewSource(1)), state)
	require.NoError(t, err)
	if improved {
		assert.True(t, domain.Valid(row))
		assert.Greater(t, score, -3.0)
	}
}

func TestMaybeRejectsNoKnownFitness(t *testing.T) {
	domain := realvalued.Domain{Lower: []float64{-10}, Upper: []float64{10}}
	proj, unproj := IdentityProjector()
	args := gatypes.LocalSearchArgs[float64]{Poptim: 1.0, Pressel: 0.5, MaxIt: 50, Project: proj, Unproject: unproj}
	adapter := New(args, negAbs, nil, domain)

	state := &gatypes.SearchState[float64]{
		Population: gatypes.Population[float64]{{5}},
		Fitness:    gatypes.FitnessVector{math.NaN()},
	}

	_, _, improved, err := adapter.Maybe(rand.New(rand.NewSource(1)), state)
	require.NoError(t, err)
	assert.False(t, improved)
}
