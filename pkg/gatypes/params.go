package gatypes

import "math/rand"

// EvalOutcome is what a fitness function reports for one individual.
// Score may be NaN to mark the row as (recoverably) missing fitness for
// this generation. Updated is non-nil only when the driver opted into
// population-update mode and the evaluator is replacing the row in
// place; the replacement is rejected if it fails the encoding's domain
// predicate.
type EvalOutcome[T Gene] struct {
	Score   float64
	Updated []T
}

// FitnessFunc maps one individual plus a fixed parameter bag to a score.
// rng is a deterministic per-(generation,row) substream the function may
// use if it itself samples randomness.
type FitnessFunc[T Gene] func(individual []T, extra interface{}, rng *rand.Rand) (EvalOutcome[T], error)

// MutationRate resolves the per-individual mutation probability from the
// current state, supporting pmutation as a function of state instead of
// a bare scalar.
type MutationRate[T Gene] func(state *SearchState[T]) float64

// ConstRate returns a MutationRate that ignores the state and always
// answers p.
func ConstRate[T Gene](p float64) MutationRate[T] {
	return func(*SearchState[T]) float64 { return p }
}

// PostFitnessFunc is an optional hook invoked after fitness evaluation
// and before the best-so-far update. It may return a mutated state; the
// engine re-validates every invariant before adopting it and aborts
// with OperatorDomainViolation if the hook corrupted the state.
type PostFitnessFunc[T Gene] func(state *SearchState[T]) (*SearchState[T], error)

// MonitorFunc is invoked with a read-only view of the state at each
// generation boundary; its return value is ignored.
type MonitorFunc[T Gene] func(state SearchState[T])

// LocalSearchArgs configures the hybridization adapter.
type LocalSearchArgs[T Gene] struct {
	Poptim  float64 // probability of invoking local search this generation
	Pressel float64 // selection pressure in [0,1]
	MaxIt   int     // inner-optimizer iteration budget

	// Projector maps a non-RealValued individual into a continuous
	// vector and back, so local search can run against encodings other
	// than RealValued. Local search is skipped with a one-time warning
	// whenever either function is nil; the RealValued constructors fill
	// in the identity pair when Optim is set and none is supplied.
	Project   func(row []T) []float64
	Unproject func(x []float64) []T
}

// PanmicticParams are the constructor inputs for a single-population run.
type PanmicticParams[T Gene] struct {
	Fitness   FitnessFunc[T]
	Extra     interface{}
	Domain    Domain[T]
	Operators OperatorSet[T]

	PopSize    int
	Pcrossover float64
	Pmutation  MutationRate[T]
	Elitism    int

	// MaxIter is the generation budget. Nil means "use the
	// process-lifetime default"; a non-nil pointer to 0 is an explicit
	// request to run zero generations and return the initial population
	// unchanged. Plain int cannot carry this distinction since its zero
	// value collides with an intentional 0.
	MaxIter     *int
	Run         int
	MaxFitness  float64
	Names       []string
	Suggestions Population[T]

	Optim     bool
	OptimArgs LocalSearchArgs[T]

	KeepBest    bool
	Parallel    int // 0 = serial, >0 = worker pool of that size
	Monitor     MonitorFunc[T]
	Seed        int64
	UpdatePop   bool
	PostFitness PostFitnessFunc[T]
}

// IslandParams extends PanmicticParams with the island-model knobs.
// Per-island population size is islSize = max(10, popSize/numIslands).
type IslandParams[T Gene] struct {
	PanmicticParams[T]

	NumIslands        int
	MigrationRate     float64
	MigrationInterval int
}

// Result is the immutable call record a run returns.
type Result[T Gene] struct {
	RunID string

	Population Population[T]
	Fitness    FitnessVector
	Summary    []SummaryRow

	FitnessValue float64
	Solution     Population[T]

	Iterations int

	// Island-only fields; zero/nil for panmictic results.
	Islands    []Result[T]
	Epoch      int
	NumIslands int

	Stats Stats
}

// Stats is the cumulative run-statistics record, folding the evaluator's
// running counters with a live scan of the terminal population — the
// way the teacher's GetStats folds db.stats.TotalEvaluations with
// globalBestScore/AvgScore.
type Stats struct {
	TotalEvaluations int64
	MissingEvals     int64
	BestScore        float64
	AvgScore         float64
}
