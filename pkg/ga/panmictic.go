// Package ga assembles the encoding, evaluator, local-search, and
// generation-engine packages into the two public drivers: Panmictic
// (single population) and Island (ring-migrating sub-populations). It
// mirrors the shape of the teacher's
// pkg/database.ProgramDatabase as the top-level object a caller
// constructs once and drives to completion, but owns a live
// gatypes.SearchState instead of a map of persisted programs.
package ga

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lattice-opt/gacore/internal/gadefaults"
	"github.com/lattice-opt/gacore/internal/randstream"
	"github.com/lattice-opt/gacore/pkg/encoding/binary"
	"github.com/lattice-opt/gacore/pkg/encoding/permutation"
	"github.com/lattice-opt/gacore/pkg/encoding/realvalued"
	"github.com/lattice-opt/gacore/pkg/engine"
	"github.com/lattice-opt/gacore/pkg/evaluator"
	"github.com/lattice-opt/gacore/pkg/gatypes"
	"github.com/lattice-opt/gacore/pkg/localsearch"
)

// Panmictic drives a single population to completion.
type Panmictic[T gatypes.Gene] struct {
	params gatypes.PanmicticParams[T]
	seed   randstream.RootSeed

	ev  *evaluator.Evaluator[T]
	eng *engine.Engine[T]

	logger *logrus.Logger
	runID  string
}

// NewBinaryGA constructs a Panmictic run over the Binary encoding.
// Fields left at their zero value in params fall back to the
// process-lifetime defaults of internal/gadefaults, snapshotted once at
// construction.
func NewBinaryGA(nBits int, fitness gatypes.FitnessFunc[gatypes.Bit], params gatypes.PanmicticParams[gatypes.Bit]) (*Panmictic[gatypes.Bit], error) {
	if nBits <= 0 {
		return nil, &gatypes.ShapeMismatch{Encoding: "Binary", Detail: "nBits must be positive"}
	}
	params.Fitness = fitness
	params.Domain = binary.Domain{NBits: nBits}
	if isZeroOperatorSet(params.Operators) {
		params.Operators = binary.Defaults()
	}
	return NewPanmictic(params)
}

// NewRealValuedGA constructs a Panmictic run over the RealValued
// encoding with box bounds lower/upper.
func NewRealValuedGA(lower, upper []float64, fitness gatypes.FitnessFunc[float64], params gatypes.PanmicticParams[float64]) (*Panmictic[float64], error) {
	if len(lower) != len(upper) || len(lower) == 0 {
		return nil, &gatypes.ShapeMismatch{Encoding: "RealValued", Detail: "lower and upper must be equal-length and non-empty"}
	}
	for i := range lower {
		if lower[i] > upper[i] {
			return nil, &gatypes.ShapeMismatch{Encoding: "RealValued", Detail: fmt.Sprintf("lower[%d] > upper[%d]", i, i)}
		}
	}
	params.Fitness = fitness
	params.Domain = realvalued.Domain{Lower: lower, Upper: upper}
	if isZeroOperatorSet(params.Operators) {
		params.Operators = realvalued.Defaults()
	}
	if params.Optim && params.OptimArgs.Project == nil {
		params.OptimArgs.Project, params.OptimArgs.Unproject = localsearch.IdentityProjector()
	}
	return NewPanmictic(params)
}

// NewPermutationGA constructs a Panmictic run over the Permutation
// encoding on the inclusive integer range [lower, upper].
func NewPermutationGA(lower, upper int, fitness gatypes.FitnessFunc[int], params gatypes.PanmicticParams[int]) (*Panmictic[int], error) {
	if upper <= lower {
		return nil, &gatypes.ShapeMismatch{Encoding: "Permutation", Detail: "upper must be greater than lower"}
	}
	params.Fitness = fitness
	params.Domain = permutation.Domain{Lower: lower, Upper: upper}
	if isZeroOperatorSet(params.Operators) {
		params.Operators = permutation.Defaults()
	}
	return NewPanmictic(params)
}

func isZeroOperatorSet[T gatypes.Gene](ops gatypes.OperatorSet[T]) bool {
	return ops.Init == nil && ops.Select == nil && ops.Crossover == nil && ops.Mutate == nil
}

// NewPanmictic builds a driver directly from a fully-formed params
// value; the three NewXxxGA constructors are thin wrappers around it
// that fill in Domain/Operators for their encoding.
func NewPanmictic[T gatypes.Gene](params gatypes.PanmicticParams[T]) (*Panmictic[T], error) {
	fillPanmicticDefaults(&params)
	if err := validatePanmicticParams(params); err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	if params.PopSize < 10 {
		logger.WithField("popSize", params.PopSize).Warn("population size below the recommended minimum of 10")
	}

	seed := randstream.RootSeed(params.Seed).Resolve()

	ev := evaluator.New(evaluator.Config[T]{
		Fitness:  params.Fitness,
		Extra:    params.Extra,
		Domain:   params.Domain,
		Parallel: params.Parallel,
		Seed:     seed,
	})

	var ls *localsearch.Adapter[T]
	if params.Optim {
		ls = localsearch.New(params.OptimArgs, params.Fitness, params.Extra, params.Domain)
	}

	eng := engine.New(engine.Config[T]{
		Domain:      params.Domain,
		Operators:   params.Operators,
		Evaluator:   ev,
		Elitism:     params.Elitism,
		Pcrossover:  params.Pcrossover,
		Pmutation:   params.Pmutation,
		LocalSearch: ls,
		Seed:        seed,
		UpdatePop:   params.UpdatePop,
		PostFitness: params.PostFitness,
	})

	return &Panmictic[T]{
		params: params,
		seed:   seed,
		ev:     ev,
		eng:    eng,
		logger: logger,
		runID:  uuid.NewString(),
	}, nil
}

// Run drives the population from its initial sampling to the first
// stopping predicate that fires, tearing down any worker pool the
// Evaluator owns on every exit path.
func (p *Panmictic[T]) Run(ctx context.Context) (gatypes.Result[T], error) {
	defer p.ev.Close()

	rng := p.seed.New()
	initPop, err := p.params.Operators.Init(rng, p.params.PopSize, p.params.Domain, p.params.Suggestions)
	if err != nil {
		return gatypes.Result[T]{}, err
	}

	state := &gatypes.SearchState[T]{
		Population:   initPop,
		Fitness:      missingFitness(p.params.PopSize),
		FitnessValue: math.Inf(-1),
	}
	if p.params.KeepBest {
		state.BestSol = []gatypes.Population[T]{}
	}

	for !engine.Stopped(state, *p.params.MaxIter, p.params.Run, p.params.MaxFitness) {
		if err := p.eng.Step(ctx, state, rng); err != nil {
			p.logger.WithError(err).WithField("generation", state.Iter+1).Error("generation step aborted the run")
			return gatypes.Result[T]{}, err
		}
		if p.params.KeepBest {
			state.BestSol = append(state.BestSol, state.Solution.Clone())
		}
		if p.params.Monitor != nil {
			p.params.Monitor(state.View())
		}
		p.logger.WithFields(logrus.Fields{"generation": state.Iter, "best": state.FitnessValue}).Debug("generation complete")
	}

	p.logger.WithFields(logrus.Fields{"iterations": state.Iter, "fitnessValue": state.FitnessValue}).Info("run finished")

	return gatypes.Result[T]{
		RunID:        p.runID,
		Population:   state.Population,
		Fitness:      state.Fitness,
		Summary:      state.Summary,
		FitnessValue: state.FitnessValue,
		Solution:     state.Solution,
		Iterations:   state.Iter,
		Stats:        statsFromEvaluator(p.ev, state),
	}, nil
}

// missingFitness returns a FitnessVector of n NaN entries, marking every
// row of a freshly-sampled population as not yet evaluated.
func missingFitness(n int) gatypes.FitnessVector {
	f := make(gatypes.FitnessVector, n)
	for i := range f {
		f[i] = math.NaN()
	}
	return f
}

// statsFromEvaluator assembles the run-statistics record from the
// Evaluator's cumulative counters and the terminal live population, the
// way the teacher's GetStats folds db.stats.TotalEvaluations with a
// live scan of globalBestScore/AvgScore.
func statsFromEvaluator[T gatypes.Gene](ev *evaluator.Evaluator[T], state *gatypes.SearchState[T]) gatypes.Stats {
	return gatypes.Stats{
		TotalEvaluations: ev.TotalEvaluated(),
		MissingEvals:     ev.MissingEvals(),
		BestScore:        state.FitnessValue,
		AvgScore:         state.Fitness.Mean(),
	}
}

// fillPanmicticDefaults overlays the process-lifetime defaults
// (internal/gadefaults) onto any zero-valued field of params, the same
// merge-onto-defaults shape as the teacher's getDefaultConfig()
// overlaid by yaml.Unmarshal. A caller who wants pcrossover=0 or
// maxFitness=0 explicitly cannot be distinguished from one who omitted
// the field; this is a documented limitation of using bare value types
// for optional parameters (recorded in DESIGN.md).
func fillPanmicticDefaults[T gatypes.Gene](params *gatypes.PanmicticParams[T]) {
	d := gadefaults.Get()

	if params.PopSize == 0 {
		params.PopSize = d.PopSize
	}
	if params.Pcrossover == 0 {
		params.Pcrossover = d.Pcrossover
	}
	if params.Pmutation == nil {
		params.Pmutation = gatypes.ConstRate[T](d.Pmutation)
	}
	if params.Elitism == 0 {
		params.Elitism = elitismDefault(params.PopSize, d.ElitismFraction)
	}
	if params.MaxIter == nil {
		defaultMaxIter := d.MaxIter
		params.MaxIter = &defaultMaxIter
	}
	if params.Run == 0 {
		params.Run = *params.MaxIter
	}
	if params.MaxFitness == 0 {
		params.MaxFitness = math.Inf(1)
	}
	if params.Optim {
		if params.OptimArgs.Poptim == 0 {
			params.OptimArgs.Poptim = d.Poptim
		}
		if params.OptimArgs.Pressel == 0 {
			params.OptimArgs.Pressel = d.Pressel
		}
		if params.OptimArgs.MaxIt == 0 {
			params.OptimArgs.MaxIt = 100
		}
	}
}

func elitismDefault(popSize int, fraction float64) int {
	e := int(math.Round(fraction * float64(popSize)))
	if e < 1 {
		e = 1
	}
	return e
}

// validatePanmicticParams checks the configuration-error class of spec
// §6/§7, after defaults have been filled in.
func validatePanmicticParams[T gatypes.Gene](params gatypes.PanmicticParams[T]) error {
	if params.Fitness == nil {
		return &gatypes.InvalidParameter{Name: "fitness", Value: nil, Detail: "fitness function is required"}
	}
	if params.Domain == nil {
		return &gatypes.InvalidParameter{Name: "domain", Value: nil, Detail: "encoding domain is required"}
	}
	if params.Pcrossover < 0 || params.Pcrossover > 1 {
		return &gatypes.InvalidParameter{Name: "pcrossover", Value: params.Pcrossover, Detail: "must be in [0,1]"}
	}
	if params.Elitism < 0 || params.Elitism > params.PopSize {
		return &gatypes.InvalidParameter{Name: "elitism", Value: params.Elitism, Detail: "must be between 0 and popSize"}
	}
	if params.MaxIter != nil && *params.MaxIter < 0 {
		return &gatypes.InvalidParameter{Name: "maxiter", Value: *params.MaxIter, Detail: "must be >= 0"}
	}
	if len(params.Suggestions) > 0 {
		for i, row := range params.Suggestions {
			if len(row) != params.Domain.Dimension() {
				return &gatypes.ShapeMismatch{Encoding: fmt.Sprintf("suggestion row %d", i), Detail: "length does not match the encoding's dimension"}
			}
		}
	}
	if params.Optim && (params.OptimArgs.Pressel < 0 || params.OptimArgs.Pressel > 1) {
		return &gatypes.InvalidParameter{Name: "optimArgs.pressel", Value: params.OptimArgs.Pressel, Detail: "must be in [0,1]"}
	}
	return nil
}
