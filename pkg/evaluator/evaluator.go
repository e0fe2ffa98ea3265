// Package evaluator computes fitness for a population, serially or
// across a worker pool, honoring the duplicate-row cache and
// determinism-under-parallelism contracts a caller relies on. It
// generalizes the teacher's worker-pool pattern (jobs/results channels,
// per-job result channel, WaitGroup-backed shutdown) from shelling out
// to an external evaluator program into calling an in-process fitness
// closure.
package evaluator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/lattice-opt/gacore/internal/randstream"
	"github.com/lattice-opt/gacore/pkg/gatypes"
)

type job[T gatypes.Gene] struct {
	index      int
	row        []T
	generation int
	resultChan chan outcome[T]
}

type outcome[T gatypes.Gene] struct {
	index int
	res   gatypes.EvalOutcome[T]
	err   error
}

// WorkerPool fans fitness-evaluation jobs out across a fixed number of
// goroutines. Each job carries the result channel of the
// EvaluateGeneration call that submitted it (mirroring the teacher's
// EvaluationJob.ResultChan), so one pool can safely serve
// several concurrent callers — e.g. an island driver running several
// islands' generation engines at once against a shared pool.
type WorkerPool[T gatypes.Gene] struct {
	size    int
	fitness gatypes.FitnessFunc[T]
	extra   interface{}
	seed    randstream.RootSeed

	jobs   chan job[T]
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewWorkerPool creates a stopped worker pool; call Start to begin
// processing jobs.
func NewWorkerPool[T gatypes.Gene](size int, fitness gatypes.FitnessFunc[T], extra interface{}, seed randstream.RootSeed) *WorkerPool[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool[T]{
		size:    size,
		fitness: fitness,
		extra:   extra,
		seed:    seed,
		jobs:    make(chan job[T], size*2),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the pool's worker goroutines.
func (wp *WorkerPool[T]) Start() {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

// Stop cancels outstanding work and waits for every worker to exit.
func (wp *WorkerPool[T]) Stop() {
	wp.cancel()
	close(wp.jobs)
	wp.wg.Wait()
}

func (wp *WorkerPool[T]) worker() {
	defer wp.wg.Done()
	for {
		select {
		case j, ok := <-wp.jobs:
			if !ok {
				return
			}
			rng := wp.seed.Sub(j.generation, j.index)
			res, err := wp.fitness(j.row, wp.extra, rng)
			select {
			case j.resultChan <- outcome[T]{index: j.index, res: res, err: err}:
			case <-wp.ctx.Done():
				return
			}
		case <-wp.ctx.Done():
			return
		}
	}
}

// Config configures an Evaluator. Pool is optional: when set, the
// Evaluator dispatches to it but never starts or stops it, since a
// caller-supplied pool may be shared by more than one Evaluator; when
// nil and Parallel > 0, the Evaluator creates and owns its own pool of
// that size.
type Config[T gatypes.Gene] struct {
	Fitness  gatypes.FitnessFunc[T]
	Extra    interface{}
	Domain   gatypes.Domain[T]
	Parallel int
	Seed     randstream.RootSeed
	Pool     *WorkerPool[T]
}

// Evaluator computes fitness for a population.
type Evaluator[T gatypes.Gene] struct {
	fitness gatypes.FitnessFunc[T]
	extra   interface{}
	domain  gatypes.Domain[T]
	logger  *logrus.Logger

	pool     *WorkerPool[T]
	ownsPool bool

	// totalEvaluated/missingEvals accumulate across every EvaluateGeneration
	// call for this Evaluator's lifetime, mirroring the teacher's
	// db.stats.TotalEvaluations running counter (pkg/database/database.go).
	totalEvaluated int64
	missingEvals   int64
}

// New constructs an Evaluator from cfg, starting an owned worker pool
// if cfg.Pool is nil and cfg.Parallel > 0.
func New[T gatypes.Gene](cfg Config[T]) *Evaluator[T] {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	e := &Evaluator[T]{
		fitness: cfg.Fitness,
		extra:   cfg.Extra,
		domain:  cfg.Domain,
		logger:  logger,
	}

	switch {
	case cfg.Pool != nil:
		e.pool = cfg.Pool
		e.ownsPool = false
		logger.Debug("evaluator attached to caller-supplied worker pool")
	case cfg.Parallel > 0:
		e.pool = NewWorkerPool(cfg.Parallel, cfg.Fitness, cfg.Extra, cfg.Seed)
		e.pool.Start()
		e.ownsPool = true
		logger.WithField("workers", cfg.Parallel).Debug("evaluator started owned worker pool")
	}

	return e
}

// Close tears down the evaluator's owned worker pool, if any. A
// caller-supplied pool is left running.
func (e *Evaluator[T]) Close() {
	if e.pool != nil && e.ownsPool {
		e.pool.Stop()
		e.logger.Debug("evaluator worker pool stopped")
	}
}

// EvaluateGeneration fills in every missing (NaN) entry of fitness,
// returning updated copies of the population and fitness vector; pop and
// fitness themselves are left unmodified. A non-finite score (NaN or
// ±Inf) is stored as NaN, marking the row missing. Rows with
// identical content are evaluated once and the score is copied to every
// row sharing that content (the duplicate-row cache). When updatePop is
// true and the fitness function returns a replacement row, the
// replacement is validated against domain and rejected with
// *gatypes.OperatorDomainViolation if it fails the predicate. Returns
// *gatypes.MissingFitness if every row in the generation ends up with a
// non-finite score.
func (e *Evaluator[T]) EvaluateGeneration(
	ctx context.Context,
	generation int,
	seed randstream.RootSeed,
	pop gatypes.Population[T],
	fitness gatypes.FitnessVector,
	updatePop bool,
) (gatypes.Population[T], gatypes.FitnessVector, int64, error) {
	var toEvaluate []int
	for i := range fitness {
		if fitness.Missing(i) {
			toEvaluate = append(toEvaluate, i)
		}
	}
	if len(toEvaluate) == 0 {
		return pop, fitness, 0, nil
	}

	newPop := pop.Clone()
	newFitness := fitness.Clone()

	groups := make(map[string][]int, len(toEvaluate))
	order := make([]string, 0, len(toEvaluate))
	for _, i := range toEvaluate {
		k := gatypes.RowKey(pop[i])
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}
	sort.Strings(order)

	uniqueIdx := make([]int, len(order))
	for n, k := range order {
		uniqueIdx[n] = groups[k][0]
	}

	var results map[int]outcome[T]
	var err error
	if e.pool != nil {
		results, err = e.evaluateParallel(ctx, generation, pop, uniqueIdx)
	} else {
		results, err = e.evaluateSerial(generation, seed, pop, uniqueIdx)
	}
	if err != nil {
		return nil, nil, 0, err
	}

	var evaluated int64
	for _, k := range order {
		idxs := groups[k]
		src := idxs[0]
		out := results[src]
		if out.err != nil {
			return nil, nil, 0, fmt.Errorf("fitness evaluation failed at generation %d, row %d: %w", generation, src, out.err)
		}
		if err := e.applyOutcome(newPop, newFitness, generation, src, out.res, updatePop); err != nil {
			return nil, nil, 0, err
		}
		evaluated++
		for _, dup := range idxs[1:] {
			newFitness[dup] = newFitness[src]
		}
	}

	allMissing := true
	var stillMissing int64
	for i := range newFitness {
		if newFitness.Missing(i) {
			stillMissing++
		} else {
			allMissing = false
		}
	}
	if allMissing {
		return nil, nil, 0, &gatypes.MissingFitness{Generation: generation}
	}

	atomic.AddInt64(&e.totalEvaluated, evaluated)
	atomic.AddInt64(&e.missingEvals, stillMissing)

	return newPop, newFitness, evaluated, nil
}

// TotalEvaluated returns the cumulative number of fitness calls this
// Evaluator has dispatched (duplicates counted once), across every
// EvaluateGeneration call so far.
func (e *Evaluator[T]) TotalEvaluated() int64 {
	return atomic.LoadInt64(&e.totalEvaluated)
}

// MissingEvals returns the cumulative number of rows left with
// non-finite fitness after evaluation, summed across every generation.
func (e *Evaluator[T]) MissingEvals() int64 {
	return atomic.LoadInt64(&e.missingEvals)
}

func (e *Evaluator[T]) evaluateSerial(generation int, seed randstream.RootSeed, pop gatypes.Population[T], idx []int) (map[int]outcome[T], error) {
	results := make(map[int]outcome[T], len(idx))
	for _, i := range idx {
		rng := seed.Sub(generation, i)
		res, err := e.fitness(pop[i], e.extra, rng)
		results[i] = outcome[T]{index: i, res: res, err: err}
	}
	return results, nil
}

func (e *Evaluator[T]) evaluateParallel(ctx context.Context, generation int, pop gatypes.Population[T], idx []int) (map[int]outcome[T], error) {
	resultChan := make(chan outcome[T], len(idx))
	for _, i := range idx {
		select {
		case e.pool.jobs <- job[T]{index: i, row: pop[i], generation: generation, resultChan: resultChan}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	results := make(map[int]outcome[T], len(idx))
	for count := 0; count < len(idx); count++ {
		select {
		case out := <-resultChan:
			results[out.index] = out
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return results, nil
}

func (e *Evaluator[T]) applyOutcome(pop gatypes.Population[T], fitness gatypes.FitnessVector, generation, i int, out gatypes.EvalOutcome[T], updatePop bool) error {
	fitness[i] = out.Score
	if math.IsInf(out.Score, 0) {
		fitness[i] = math.NaN()
	}
	if updatePop && out.Updated != nil {
		if e.domain == nil || !e.domain.Valid(out.Updated) {
			return &gatypes.OperatorDomainViolation{
				Operator:   "updatePop",
				Generation: generation,
				Detail:     fmt.Sprintf("replacement row at index %d failed the domain predicate", i),
			}
		}
		pop[i] = out.Updated
	}
	return nil
}
