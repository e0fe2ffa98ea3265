// Package engine implements the generation engine: one generation
// transition (evaluate, update best-so-far, elitism, selection,
// crossover, mutation, re-insertion, optional local search) shared by
// both the panmictic and island drivers. Its shape mirrors
// the teacher's single-step iteration worker (pkg/iteration/worker.go's
// RunIteration): a sequence of named, logged sub-steps over one mutable
// unit of state, generalized from one LLM-driven code mutation to one
// GA generation.
package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/lattice-opt/gacore/internal/randstream"
	"github.com/lattice-opt/gacore/pkg/evaluator"
	"github.com/lattice-opt/gacore/pkg/gatypes"
	"github.com/lattice-opt/gacore/pkg/localsearch"
)

// Config bundles everything one generation transition needs: the
// encoding domain and operator set, the evaluator, the elitism count
// and crossover/mutation rates, an optional local-search adapter, the
// run's root seed, and the update-population and post-fitness hooks.
type Config[T gatypes.Gene] struct {
	Domain    gatypes.Domain[T]
	Operators gatypes.OperatorSet[T]
	Evaluator *evaluator.Evaluator[T]

	Elitism    int
	Pcrossover float64
	Pmutation  gatypes.MutationRate[T]

	LocalSearch *localsearch.Adapter[T] // nil disables local search entirely.

	Seed        randstream.RootSeed
	UpdatePop   bool
	PostFitness gatypes.PostFitnessFunc[T]
}

// Engine runs one generation transition at a time over a caller-owned
// *gatypes.SearchState[T]. It holds no state of its own beyond its
// configuration, so one Engine can safely drive several islands that
// each own their own SearchState.
type Engine[T gatypes.Gene] struct {
	cfg    Config[T]
	logger *logrus.Logger
}

// New constructs an Engine from cfg.
func New[T gatypes.Gene](cfg Config[T]) *Engine[T] {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return &Engine[T]{cfg: cfg, logger: logger}
}

// Step advances state by exactly one generation: evaluate, update
// best-so-far, elitism, selection, crossover, mutation, re-insertion,
// optional local search. The stopping check itself is left to the
// caller, since it needs maxiter/run/maxFitness knowledge the engine
// does not own — see Stopped.
func (e *Engine[T]) Step(ctx context.Context, state *gatypes.SearchState[T], rng *rand.Rand) error {
	generation := state.Iter + 1

	// 1. Evaluate missing fitnesses.
	pop, fitness, evaluated, err := e.cfg.Evaluator.EvaluateGeneration(ctx, generation, e.cfg.Seed, state.Population, state.Fitness, e.cfg.UpdatePop)
	if err != nil {
		return err
	}
	state.Population, state.Fitness = pop, fitness
	e.logger.WithFields(logrus.Fields{"generation": generation, "evaluated": evaluated}).Debug("fitness evaluation complete")

	// 2. Post-fitness hook.
	if e.cfg.PostFitness != nil {
		next, err := e.cfg.PostFitness(state)
		if err != nil {
			return err
		}
		if err := e.validate(next, generation, "postFitness"); err != nil {
			return err
		}
		*state = *next
	}

	// 3. Update best-so-far.
	updateBestSoFar(state)

	// 4. Elitism snapshot.
	eliteIdx := topIndices(state.Fitness, e.cfg.Elitism)
	eliteRows := make(gatypes.Population[T], len(eliteIdx))
	eliteFitness := make(gatypes.FitnessVector, len(eliteIdx))
	for i, idx := range eliteIdx {
		eliteRows[i] = append([]T(nil), state.Population[idx]...)
		eliteFitness[i] = state.Fitness[idx]
	}

	// 5. Selection.
	parents, _, err := e.cfg.Operators.Select(rng, state.Population, state.Fitness, len(state.Population))
	if err != nil {
		return err
	}

	// 6. Crossover.
	children := append(gatypes.Population[T](nil), parents...)
	for i := 0; i+1 < len(children); i += 2 {
		if rng.Float64() >= e.cfg.Pcrossover {
			continue
		}
		c0, c1, err := e.cfg.Operators.Crossover(rng, e.cfg.Domain, parents, i, i+1)
		if err != nil {
			return err
		}
		if !e.cfg.Domain.Valid(c0) || !e.cfg.Domain.Valid(c1) {
			return &gatypes.OperatorDomainViolation{
				Operator:   e.cfg.Operators.CrossoverName,
				Generation: generation,
				Detail:     "crossover produced a child outside the encoding's domain",
			}
		}
		children[i], children[i+1] = c0, c1
	}

	// 7. Mutation.
	pmut := e.cfg.Pmutation(state)
	for i := range children {
		if rng.Float64() >= pmut {
			continue
		}
		mutated, err := e.cfg.Operators.Mutate(rng, e.cfg.Domain, children[i])
		if err != nil {
			return err
		}
		if !e.cfg.Domain.Valid(mutated) {
			return &gatypes.OperatorDomainViolation{
				Operator:   e.cfg.Operators.MutateName,
				Generation: generation,
				Detail:     "mutation produced a row outside the encoding's domain",
			}
		}
		children[i] = mutated
	}

	childFitness := make(gatypes.FitnessVector, len(children))
	for i := range childFitness {
		childFitness[i] = math.NaN()
	}

	// 8. Re-insert elites, overwriting the trailing elitism positions.
	for i := range eliteRows {
		pos := len(children) - len(eliteRows) + i
		children[pos] = eliteRows[i]
		childFitness[pos] = eliteFitness[i]
	}

	// 9. Optional local search, sampled from the just-evaluated state and
	// spliced into the next generation at the slot just ahead of the
	// re-inserted elites (an implementation choice recorded in
	// DESIGN.md, analogous to elitism's own "arbitrary position" leeway).
	if e.cfg.LocalSearch != nil {
		row, score, improved, err := e.cfg.LocalSearch.Maybe(rng, state)
		if err != nil {
			return err
		}
		if improved {
			pos := len(children) - len(eliteRows) - 1
			if pos >= 0 {
				children[pos] = row
				childFitness[pos] = score
			}
		}
	}

	state.Population, state.Fitness = children, childFitness
	state.Iter = generation

	summary := gatypes.Summarize(state.Fitness)
	state.Summary = append(state.Summary, summary)

	return nil
}

// Stopped reports whether any of the three stopping predicates — a
// generation budget, a no-improvement window, or a target fitness —
// hold for state.
func Stopped[T gatypes.Gene](state *gatypes.SearchState[T], maxiter, run int, maxFitness float64) bool {
	return state.Iter >= maxiter || state.RunSince >= run || state.FitnessValue >= maxFitness
}

func (e *Engine[T]) validate(state *gatypes.SearchState[T], generation int, source string) error {
	if state == nil {
		return &gatypes.OperatorDomainViolation{Operator: source, Generation: generation, Detail: "hook returned a nil state"}
	}
	if len(state.Population) != len(state.Fitness) {
		return &gatypes.OperatorDomainViolation{Operator: source, Generation: generation, Detail: "population/fitness length mismatch"}
	}
	for i, row := range state.Population {
		if !e.cfg.Domain.Valid(row) {
			return &gatypes.OperatorDomainViolation{
				Operator:   source,
				Generation: generation,
				Detail:     fmt.Sprintf("row %d failed the domain predicate after hook", i),
			}
		}
	}
	return nil
}

func updateBestSoFar[T gatypes.Gene](state *gatypes.SearchState[T]) {
	best, _, ok := state.Fitness.Max()
	if !ok {
		return
	}
	if best > state.FitnessValue {
		state.FitnessValue = best
		state.RunSince = 0
	} else {
		state.RunSince++
	}
	state.Solution = tyingRows(state.Population, state.Fitness, state.FitnessValue)
}

func tyingRows[T gatypes.Gene](pop gatypes.Population[T], fitness gatypes.FitnessVector, value float64) gatypes.Population[T] {
	seen := make(map[string]bool, len(pop))
	var rows gatypes.Population[T]
	for i, f := range fitness {
		if fitness.Missing(i) || f != value {
			continue
		}
		k := gatypes.RowKey(pop[i])
		if seen[k] {
			continue
		}
		seen[k] = true
		rows = append(rows, append([]T(nil), pop[i]...))
	}
	return rows
}

// topIndices returns the indices of the k highest-fitness rows,
// best-first, ignoring missing entries. If fewer than k rows have known
// fitness, the returned slice is correspondingly shorter.
func topIndices(fitness gatypes.FitnessVector, k int) []int {
	type ranked struct {
		idx   int
		value float64
	}
	candidates := make([]ranked, 0, len(fitness))
	for i, v := range fitness {
		if !fitness.Missing(i) {
			candidates = append(candidates, ranked{i, v})
		}
	}
	// Insertion sort: k is small (elitism fraction of popSize) and this
	// keeps ties in original index order, matching topIndices' callers'
	// expectation of a stable "top-k" snapshot.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].value > candidates[j-1].value; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = candidates[i].idx
	}
	return out
}
