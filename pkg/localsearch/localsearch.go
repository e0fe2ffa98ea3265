// Package localsearch implements the hybridization adapter: a
// probabilistically-invoked general-purpose numerical optimizer that
// refines one rank-weighted-sampled individual per generation.
//
// Gonum's optimize package has no bound-constrained L-BFGS-B variant,
// so this adapter uses derivative-free Nelder-Mead and enforces
// box/domain constraints by returning +Inf from the objective for any
// candidate the encoding's domain predicate rejects — Nelder-Mead's
// simplex naturally avoids such points. This substitution is recorded
// in DESIGN.md.
package localsearch

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/optimize"

	"github.com/lattice-opt/gacore/pkg/gatypes"
)

// Adapter wraps the optimizer for one encoding/fitness pairing.
type Adapter[T gatypes.Gene] struct {
	Args    gatypes.LocalSearchArgs[T]
	Fitness gatypes.FitnessFunc[T]
	Extra   interface{}
	Domain  gatypes.Domain[T]

	logger     *logrus.Logger
	warnedOnce bool
}

// New constructs an Adapter.
func New[T gatypes.Gene](args gatypes.LocalSearchArgs[T], fitness gatypes.FitnessFunc[T], extra interface{}, domain gatypes.Domain[T]) *Adapter[T] {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return &Adapter[T]{Args: args, Fitness: fitness, Extra: extra, Domain: domain, logger: logger}
}

// IdentityProjector is the trivial projector pair for RealValued
// individuals, whose representation already is a continuous vector.
func IdentityProjector() (func([]float64) []float64, func([]float64) []float64) {
	proj := func(row []float64) []float64 { return append([]float64(nil), row...) }
	unproj := func(x []float64) []float64 { return append([]float64(nil), x...) }
	return proj, unproj
}

// Maybe runs local search with probability Args.Poptim. It returns
// improved=false whenever search is skipped (the probability
// roll failed, no projector is configured, or the optimizer's result
// failed to strictly improve on the starting individual's fitness).
func (a *Adapter[T]) Maybe(rng *rand.Rand, state *gatypes.SearchState[T]) (row []T, score float64, improved bool, err error) {
	if rng.Float64() >= a.Args.Poptim {
		return nil, 0, false, nil
	}

	if a.Args.Project == nil || a.Args.Unproject == nil {
		a.warnOnce()
		return nil, 0, false, nil
	}

	idx, sampleErr := a.sampleIndex(rng, state.Fitness)
	if sampleErr != nil {
		return nil, 0, false, nil
	}

	baseline := state.Fitness[idx]
	x0 := a.Args.Project(state.Population[idx])

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			candidate := a.Args.Unproject(x)
			if !a.Domain.Valid(candidate) {
				return math.Inf(1)
			}
			outcome, ferr := a.Fitness(candidate, a.Extra, rng)
			if ferr != nil || math.IsNaN(outcome.Score) {
				return math.Inf(1)
			}
			return -outcome.Score // gonum/optimize minimizes; the core maximizes.
		},
	}

	settings := &optimize.Settings{MajorIterations: a.Args.MaxIt}
	result, _ := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if result == nil {
		return nil, 0, false, nil
	}

	candidate := a.Args.Unproject(result.X)
	if !a.Domain.Valid(candidate) {
		return nil, 0, false, nil
	}

	outcome, ferr := a.Fitness(candidate, a.Extra, rng)
	if ferr != nil {
		return nil, 0, false, ferr
	}
	if math.IsNaN(outcome.Score) || outcome.Score <= baseline {
		return nil, 0, false, nil
	}

	return candidate, outcome.Score, true, nil
}

// sampleIndex picks one individual index via the rank-weighted
// distribution shared with rank-based selection.
func (a *Adapter[T]) sampleIndex(rng *rand.Rand, fitness gatypes.FitnessVector) (int, error) {
	valid := make([]int, 0, len(fitness))
	for i := range fitness {
		if !fitness.Missing(i) {
			valid = append(valid, i)
		}
	}
	if len(valid) == 0 {
		return -1, fmt.Errorf("localsearch: no individual has a known fitness")
	}

	sort.Slice(valid, func(i, j int) bool { return fitness[valid[i]] > fitness[valid[j]] })
	weights := gatypes.RankWeights(len(valid), a.Args.Pressel)
	pick := gatypes.WeightedSample(rng, weights)
	return valid[pick], nil
}

func (a *Adapter[T]) warnOnce() {
	if a.warnedOnce {
		return
	}
	a.warnedOnce = true
	a.logger.Warn("local search skipped: encoding has no Project/Unproject configured")
}
