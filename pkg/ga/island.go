package ga

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

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

// islandRunner is one sub-population and the machinery that steps it;
// every field is owned exclusively by this island, so islands can be
// stepped from separate goroutines without locks.
type islandRunner[T gatypes.Gene] struct {
	state *gatypes.SearchState[T]
	ev    *evaluator.Evaluator[T]
	eng   *engine.Engine[T]
	rng   *rand.Rand
}

// Island drives numIslands sub-populations with periodic ring
// migration. Its relationship to a single Panmictic run is analogous
// to the teacher's ProgramDatabase owning several pkg/database Islands
// connected by MigratePrograms's ring topology, generalized from
// *types.Program maps to gatypes.SearchState.
type Island[T gatypes.Gene] struct {
	params  gatypes.IslandParams[T]
	islSize int
	seed    randstream.RootSeed

	islands []*islandRunner[T]

	logger *logrus.Logger
	runID  string
}

// NewBinaryIslandGA constructs an Island run over the Binary encoding.
func NewBinaryIslandGA(nBits int, fitness gatypes.FitnessFunc[gatypes.Bit], params gatypes.IslandParams[gatypes.Bit]) (*Island[gatypes.Bit], error) {
	if nBits <= 0 {
		return nil, &gatypes.ShapeMismatch{Encoding: "Binary", Detail: "nBits must be positive"}
	}
	params.Fitness = fitness
	params.Domain = binary.Domain{NBits: nBits}
	if isZeroOperatorSet(params.Operators) {
		params.Operators = binary.Defaults()
	}
	return NewIsland(params)
}

// NewRealValuedIslandGA constructs an Island run over the RealValued
// encoding with box bounds lower/upper.
func NewRealValuedIslandGA(lower, upper []float64, fitness gatypes.FitnessFunc[float64], params gatypes.IslandParams[float64]) (*Island[float64], error) {
	if len(lower) != len(upper) || len(lower) == 0 {
		return nil, &gatypes.ShapeMismatch{Encoding: "RealValued", Detail: "lower and upper must be equal-length and non-empty"}
	}
	params.Fitness = fitness
	params.Domain = realvalued.Domain{Lower: lower, Upper: upper}
	if isZeroOperatorSet(params.Operators) {
		params.Operators = realvalued.Defaults()
	}
	if params.Optim && params.OptimArgs.Project == nil {
		params.OptimArgs.Project, params.OptimArgs.Unproject = localsearch.IdentityProjector()
	}
	return NewIsland(params)
}

// NewPermutationIslandGA constructs an Island run over the Permutation
// encoding on the inclusive integer range [lower, upper].
func NewPermutationIslandGA(lower, upper int, fitness gatypes.FitnessFunc[int], params gatypes.IslandParams[int]) (*Island[int], error) {
	if upper <= lower {
		return nil, &gatypes.ShapeMismatch{Encoding: "Permutation", Detail: "upper must be greater than lower"}
	}
	params.Fitness = fitness
	params.Domain = permutation.Domain{Lower: lower, Upper: upper}
	if isZeroOperatorSet(params.Operators) {
		params.Operators = permutation.Defaults()
	}
	return NewIsland(params)
}

// NewIsland builds an Island driver directly from a fully-formed params
// value. islSize = max(10, popSize/numIslands); every panmictic-shaped
// knob (elitism, pcrossover, ...) is resolved against islSize rather
// than the overall popSize.
func NewIsland[T gatypes.Gene](params gatypes.IslandParams[T]) (*Island[T], error) {
	fillIslandDefaults(&params)
	if err := validateIslandParams(params); err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	rootSeed := randstream.RootSeed(params.Seed).Resolve()
	islSize := params.PopSize

	islands := make([]*islandRunner[T], params.NumIslands)
	for i := range islands {
		islandSeed := rootSeed.Island(i)

		ev := evaluator.New(evaluator.Config[T]{
			Fitness:  params.Fitness,
			Extra:    params.Extra,
			Domain:   params.Domain,
			Parallel: params.Parallel,
			Seed:     islandSeed,
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
			Seed:        islandSeed,
			UpdatePop:   params.UpdatePop,
			PostFitness: params.PostFitness,
		})

		rng := islandSeed.New()
		pop, err := params.Operators.Init(rng, islSize, params.Domain, params.Suggestions)
		if err != nil {
			ev.Close()
			for _, built := range islands[:i] {
				built.ev.Close()
			}
			return nil, err
		}

		islands[i] = &islandRunner[T]{
			state: &gatypes.SearchState[T]{
				Population:   pop,
				Fitness:      missingFitness(islSize),
				FitnessValue: math.Inf(-1),
			},
			ev:  ev,
			eng: eng,
			rng: rng,
		}
	}

	return &Island[T]{
		params:  params,
		islSize: islSize,
		seed:    rootSeed,
		islands: islands,
		logger:  logger,
		runID:   uuid.NewString(),
	}, nil
}

// Run drives every island in lockstep epochs of migrationInterval
// generations, ring-migrating between epochs, until the global stopping
// predicates fire.
func (isl *Island[T]) Run(ctx context.Context) (gatypes.Result[T], error) {
	for _, r := range isl.islands {
		defer r.ev.Close()
	}

	migRng := isl.seed.New()
	numEpochs := *isl.params.MaxIter / isl.params.MigrationInterval
	epochsRun := 0

	for epoch := 0; epoch < numEpochs; epoch++ {
		if err := isl.stepEpoch(ctx); err != nil {
			return gatypes.Result[T]{}, err
		}
		isl.migrate(migRng)
		epochsRun++

		isl.logger.WithFields(logrus.Fields{"epoch": epochsRun, "islands": len(isl.islands)}).Debug("island epoch complete")

		if isl.allStopped() {
			break
		}
	}

	return isl.buildResult(epochsRun), nil
}

// stepEpoch steps every island migrationInterval generations
// concurrently and joins before returning.
func (isl *Island[T]) stepEpoch(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make([]error, len(isl.islands))

	for i, r := range isl.islands {
		wg.Add(1)
		go func(i int, r *islandRunner[T]) {
			defer wg.Done()
			for g := 0; g < isl.params.MigrationInterval; g++ {
				if err := r.eng.Step(ctx, r.state, r.rng); err != nil {
					errs[i] = err
					return
				}
			}
		}(i, r)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("island %d: %w", i, err)
		}
	}
	return nil
}

// migrate runs one ring-migration round: the top migPop individuals of
// island i move to island (i+1) mod numIslands,
// replacing migPop of the receiver's non-elite rows chosen uniformly at
// random. Snapshots are taken from every island before any receiver is
// mutated, so migration order does not matter (grounded on the
// teacher's MigratePrograms, generalized from a program map to
// in-place population/fitness slices).
func (isl *Island[T]) migrate(rng *rand.Rand) {
	n := len(isl.islands)
	if n < 2 {
		return
	}
	migPop := maxInt(1, int(isl.params.MigrationRate*float64(isl.islSize)))

	outgoingRows := make([]gatypes.Population[T], n)
	outgoingFitness := make([]gatypes.FitnessVector, n)
	for i, r := range isl.islands {
		idx := topKIndices(r.state.Fitness, migPop)
		rows := make(gatypes.Population[T], len(idx))
		fits := make(gatypes.FitnessVector, len(idx))
		for j, k := range idx {
			rows[j] = append([]T(nil), r.state.Population[k]...)
			fits[j] = r.state.Fitness[k]
		}
		outgoingRows[i] = rows
		outgoingFitness[i] = fits
	}

	for i := range isl.islands {
		target := isl.islands[(i+1)%n]
		receiveMigrants(target, outgoingRows[i], outgoingFitness[i], isl.params.Elitism, rng)
	}
	isl.logger.WithField("migPop", migPop).Info("completed island migration")
}

// receiveMigrants overwrites migPop of r's non-elite rows (elites are
// the top-elitism rows by current fitness) with the supplied migrants,
// chosen uniformly at random among non-elite positions.
func receiveMigrants[T gatypes.Gene](r *islandRunner[T], migrants gatypes.Population[T], migrantFitness gatypes.FitnessVector, elitism int, rng *rand.Rand) {
	if len(migrants) == 0 {
		return
	}
	elite := topIndexSet(r.state.Fitness, elitism)

	nonElite := make([]int, 0, len(r.state.Population))
	for i := range r.state.Population {
		if !elite[i] {
			nonElite = append(nonElite, i)
		}
	}
	rng.Shuffle(len(nonElite), func(a, b int) { nonElite[a], nonElite[b] = nonElite[b], nonElite[a] })

	k := len(migrants)
	if k > len(nonElite) {
		k = len(nonElite)
	}
	for j := 0; j < k; j++ {
		pos := nonElite[j]
		r.state.Population[pos] = migrants[j]
		r.state.Fitness[pos] = migrantFitness[j]
	}
}

// allStopped reports whether every island satisfies its own run-length
// stopping predicate, or every island's best has reached maxFitness.
// The per-island no-improvement window is the running count since that
// island's last strict improvement, already maintained as
// SearchState.RunSince.
func (isl *Island[T]) allStopped() bool {
	everyRun, everyMaxFitness := true, true
	for _, r := range isl.islands {
		if r.state.RunSince < isl.params.Run {
			everyRun = false
		}
		if r.state.FitnessValue < isl.params.MaxFitness {
			everyMaxFitness = false
		}
	}
	return everyRun || everyMaxFitness
}

func (isl *Island[T]) buildResult(epochsRun int) gatypes.Result[T] {
	best := math.Inf(-1)
	for _, r := range isl.islands {
		if r.state.FitnessValue > best {
			best = r.state.FitnessValue
		}
	}

	var solution gatypes.Population[T]
	seen := make(map[string]bool)
	var totalEval, totalMissing int64
	islandResults := make([]gatypes.Result[T], len(isl.islands))
	maxIter := 0

	for i, r := range isl.islands {
		if r.state.FitnessValue == best {
			for _, row := range r.state.Solution {
				k := gatypes.RowKey(row)
				if !seen[k] {
					seen[k] = true
					solution = append(solution, append([]T(nil), row...))
				}
			}
		}
		stats := statsFromEvaluator(r.ev, r.state)
		totalEval += stats.TotalEvaluations
		totalMissing += stats.MissingEvals
		if r.state.Iter > maxIter {
			maxIter = r.state.Iter
		}

		islandResults[i] = gatypes.Result[T]{
			RunID:        fmt.Sprintf("%s-island-%d", isl.runID, i),
			Population:   r.state.Population,
			Fitness:      r.state.Fitness,
			Summary:      r.state.Summary,
			FitnessValue: r.state.FitnessValue,
			Solution:     r.state.Solution,
			Iterations:   r.state.Iter,
			Stats:        stats,
		}
	}

	return gatypes.Result[T]{
		RunID:        isl.runID,
		FitnessValue: best,
		Solution:     solution,
		Iterations:   maxIter,
		Islands:      islandResults,
		Epoch:        epochsRun,
		NumIslands:   len(isl.islands),
		Stats: gatypes.Stats{
			TotalEvaluations: totalEval,
			MissingEvals:     totalMissing,
			BestScore:        best,
			AvgScore:         meanIslandAvg(islandResults),
		},
	}
}

func meanIslandAvg[T gatypes.Gene](results []gatypes.Result[T]) float64 {
	if len(results) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, r := range results {
		sum += r.Stats.AvgScore
	}
	return sum / float64(len(results))
}

func topKIndices(fitness gatypes.FitnessVector, k int) []int {
	type ranked struct {
		idx int
		v   float64
	}
	candidates := make([]ranked, 0, len(fitness))
	for i, v := range fitness {
		if !fitness.Missing(i) {
			candidates = append(candidates, ranked{i, v})
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool { return candidates[a].v > candidates[b].v })
	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = candidates[i].idx
	}
	return out
}

func topIndexSet(fitness gatypes.FitnessVector, k int) map[int]bool {
	set := make(map[int]bool, k)
	for _, i := range topKIndices(fitness, k) {
		set[i] = true
	}
	return set
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// fillIslandDefaults mirrors fillPanmicticDefaults but resolves
// elitism against islSize rather than the overall popSize, and defaults
// maxiter to 1000.
func fillIslandDefaults[T gatypes.Gene](params *gatypes.IslandParams[T]) {
	d := gadefaults.Get()

	if params.NumIslands == 0 {
		params.NumIslands = d.NumIslands
	}
	if params.MigrationRate == 0 {
		params.MigrationRate = d.MigrationRate
	}
	if params.MigrationInterval == 0 {
		params.MigrationInterval = d.MigrationInterval
	}
	if params.PopSize == 0 {
		params.PopSize = d.PopSize
	}
	params.PopSize = maxInt(10, params.PopSize/params.NumIslands)

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
		defaultMaxIter := 1000
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

func validateIslandParams[T gatypes.Gene](params gatypes.IslandParams[T]) error {
	if err := validatePanmicticParams(params.PanmicticParams); err != nil {
		return err
	}
	if params.NumIslands < 2 {
		return &gatypes.InvalidParameter{Name: "numIslands", Value: params.NumIslands, Detail: "must be at least 2 for ring migration"}
	}
	if params.MigrationRate <= 0 || params.MigrationRate > 1 {
		return &gatypes.InvalidParameter{Name: "migrationRate", Value: params.MigrationRate, Detail: "must be in (0,1]"}
	}
	if params.MigrationInterval < 1 {
		return &gatypes.InvalidParameter{Name: "migrationInterval", Value: params.MigrationInterval, Detail: "must be >= 1"}
	}
	return nil
}
