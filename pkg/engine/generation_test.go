package engine

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-opt/gacore/internal/randstream"
	"github.com/lattice-opt/gacore/pkg/encoding/binary"
	"github.com/lattice-opt/gacore/pkg/evaluator"
	"github.com/lattice-opt/gacore/pkg/gatypes"
)

func sumFitness(individual []gatypes.Bit, extra interface{}, rng *rand.Rand) (gatypes.EvalOutcome[gatypes.Bit], error) {
	var sum float64
	for _, b := range individual {
		sum += float64(b)
	}
	return gatypes.EvalOutcome[gatypes.Bit]{Score: sum}, nil
}

func newState(t *testing.T, nBits, popSize int, seed int64) *gatypes.SearchState[gatypes.Bit] {
	domain := binary.Domain{NBits: nBits}
	rng := rand.New(rand.NewSource(seed))
	pop, err := binary.Init(rng, popSize, domain, nil)
	require.NoError(t, err)

	fitness := make(gatypes.FitnessVector, popSize)
	for i := range fitness {
		fitness[i] = math.NaN()
	}
	return &gatypes.SearchState[gatypes.Bit]{
		Population:   pop,
		Fitness:      fitness,
		FitnessValue: math.Inf(-1),
	}
}

func newEngine(t *testing.T, elitism int, pcrossover float64, pmutation float64) *Engine[gatypes.Bit] {
	domain := binary.Domain{NBits: 10}
	ops := binary.Defaults()
	ev := evaluator.New(evaluator.Config[gatypes.Bit]{Fitness: sumFitness, Domain: domain})
	t.Cleanup(ev.Close)

	return New(Config[gatypes.Bit]{
		Domain:     domain,
		Operators:  ops,
		Evaluator:  ev,
		Elitism:    elitism,
		Pcrossover: pcrossover,
		Pmutation:  gatypes.ConstRate[gatypes.Bit](pmutation),
		Seed:       randstream.RootSeed(1),
	})
}

func TestStepPreservesPopulationSize(t *testing.T) {
	state := newState(t, 10, 20, 1)
	e := newEngine(t, 1, 0.8, 0.1)
	rng := rand.New(rand.NewSource(2))

	require.NoError(t, e.Step(context.Background(), state, rng))
	assert.Len(t, state.Population, 20)
	assert.Len(t, state.Fitness, 20)
	assert.Equal(t, 1, state.Iter)
}

func TestStepFixedPointWithZeroRatesAndFullElitism(t *testing.T) {
	state := newState(t, 10, 10, 1)
	e := newEngine(t, 10, 0, 0)
	rng := rand.New(rand.NewSource(2))

	before := state.Population.Clone()
	require.NoError(t, e.Step(context.Background(), state, rng))

	assert.ElementsMatch(t, before, state.Population)
}

func TestStepElitismPreservesTopRows(t *testing.T) {
	state := newState(t, 10, 20, 3)
	e := newEngine(t, 3, 0.8, 0.2)
	rng := rand.New(rand.NewSource(4))

	require.NoError(t, e.Step(context.Background(), state, rng))

	// Re-derive top-3 from the (now stale) pre-step fitness is not
	// possible here since state was mutated in place; instead assert the
	// invariant holds structurally: the final elitism-many positions
	// carry rows with finite (non-NaN) fitness, since elites are
	// inserted with a known score rather than left for re-evaluation.
	n := len(state.Fitness)
	for i := n - 3; i < n; i++ {
		assert.False(t, state.Fitness.Missing(i))
	}
}

func TestStepUpdatesBestSoFarMonotonically(t *testing.T) {
	state := newState(t, 10, 20, 5)
	e := newEngine(t, 1, 0.8, 0.1)
	rng := rand.New(rand.NewSource(6))

	last := math.Inf(-1)
	for i := 0; i < 5; i++ {
		require.NoError(t, e.Step(context.Background(), state, rng))
		assert.GreaterOrEqual(t, state.FitnessValue, last)
		last = state.FitnessValue
	}
}

func TestStepAppendsOneSummaryRowPerGeneration(t *testing.T) {
	state := newState(t, 10, 20, 7)
	e := newEngine(t, 1, 0.8, 0.1)
	rng := rand.New(rand.NewSource(8))

	for i := 1; i <= 4; i++ {
		require.NoError(t, e.Step(context.Background(), state, rng))
		assert.Len(t, state.Summary, i)
	}
}

func TestStoppedRespectsAllThreePredicates(t *testing.T) {
	s := &gatypes.SearchState[gatypes.Bit]{Iter: 100, RunSince: 0, FitnessValue: 0}
	assert.True(t, Stopped(s, 100, 50, 1000))

	s = &gatypes.SearchState[gatypes.Bit]{Iter: 5, RunSince: 50, FitnessValue: 0}
	assert.True(t, Stopped(s, 100, 50, 1000))

	s = &gatypes.SearchState[gatypes.Bit]{Iter: 5, RunSince: 0, FitnessValue: 1000}
	assert.True(t, Stopped(s, 100, 50, 1000))

	s = &gatypes.SearchState[gatypes.Bit]{Iter: 5, RunSince: 0, FitnessValue: 0}
	assert.False(t, Stopped(s, 100, 50, 1000))
}

func BenchmarkEngine_Step(b *testing.B) {
	const nBits, popSize = 64, 200

	domain := binary.Domain{NBits: nBits}
	ops := binary.Defaults()
	ev := evaluator.New(evaluator.Config[gatypes.Bit]{Fitness: sumFitness, Domain: domain})
	defer ev.Close()

	e := New(Config[gatypes.Bit]{
		Domain:     domain,
		Operators:  ops,
		Evaluator:  ev,
		Elitism:    4,
		Pcrossover: 0.8,
		Pmutation:  gatypes.ConstRate[gatypes.Bit](0.1),
		Seed:       randstream.RootSeed(1),
	})

	rng := rand.New(rand.NewSource(1))
	initPop, err := binary.Init(rng, popSize, domain, nil)
	if err != nil {
		b.Fatal(err)
	}
	fitness := make(gatypes.FitnessVector, popSize)
	for i := range fitness {
		fitness[i] = math.NaN()
	}
	state := &gatypes.SearchState[gatypes.Bit]{
		Population:   initPop,
		Fitness:      fitness,
		FitnessValue: math.Inf(-1),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := e.Step(context.Background(), state, rng); err != nil {
			b.Fatal(err)
		}
	}
}
