// Package realvalued implements the RealValued encoding: bounded
// real-valued vectors, with blend/arithmetic crossover and
// uniform/Gaussian mutation, both clipped to the declared bounds.
package realvalued

import (
	"math"
	"math/rand"

	"github.com/lattice-opt/gacore/pkg/encoding/selection"
	"github.com/lattice-opt/gacore/pkg/gatypes"
)

// Domain is a box-bounded real vector domain: row[i] ∈ [Lower[i], Upper[i]].
type Domain struct {
	Lower []float64
	Upper []float64
}

func (d Domain) Dimension() int { return len(d.Lower) }

func (d Domain) Valid(row []float64) bool {
	if len(row) != len(d.Lower) {
		return false
	}
	for i, v := range row {
		if math.IsNaN(v) || v < d.Lower[i] || v > d.Upper[i] {
			return false
		}
	}
	return true
}

func (d Domain) Sample(rng *rand.Rand) []float64 {
	row := make([]float64, len(d.Lower))
	for i := range row {
		row[i] = d.Lower[i] + rng.Float64()*(d.Upper[i]-d.Lower[i])
	}
	return row
}

func (d Domain) clip(row []float64) []float64 {
	out := make([]float64, len(row))
	for i, v := range row {
		switch {
		case v < d.Lower[i]:
			out[i] = d.Lower[i]
		case v > d.Upper[i]:
			out[i] = d.Upper[i]
		default:
			out[i] = v
		}
	}
	return out
}

// Init samples a population within domain, seeding the first
// min(len(suggestions), popSize) rows from suggestions.
func Init(rng *rand.Rand, popSize int, domain gatypes.Domain[float64], suggestions gatypes.Population[float64]) (gatypes.Population[float64], error) {
	pop := make(gatypes.Population[float64], popSize)

	k := len(suggestions)
	if k > popSize {
		k = popSize
	}
	for i := 0; i < k; i++ {
		if len(suggestions[i]) != domain.Dimension() {
			return nil, &gatypes.ShapeMismatch{Encoding: "RealValued", Detail: "suggestion row length does not match nvars"}
		}
		pop[i] = append([]float64(nil), suggestions[i]...)
	}
	for i := k; i < popSize; i++ {
		pop[i] = domain.Sample(rng)
	}
	return pop, nil
}

// Arithmetic produces two children as weighted averages of the parents
// with a random mixing weight, then clips to bounds.
func Arithmetic(rng *rand.Rand, domain gatypes.Domain[float64], parents gatypes.Population[float64], i, j int) ([]float64, []float64, error) {
	a, b := parents[i], parents[j]
	w := rng.Float64()

	child0 := make([]float64, len(a))
	child1 := make([]float64, len(a))
	for k := range a {
		child0[k] = w*a[k] + (1-w)*b[k]
		child1[k] = (1-w)*a[k] + w*b[k]
	}

	d := domain.(Domain)
	return d.clip(child0), d.clip(child1), nil
}

// Blend implements BLX-alpha: each child gene is drawn uniformly from an
// interval that extends alpha of the parent gap beyond each parent, then
// clipped to bounds.
func Blend(alpha float64) gatypes.CrossoverFunc[float64] {
	return func(rng *rand.Rand, domain gatypes.Domain[float64], parents gatypes.Population[float64], i, j int) ([]float64, []float64, error) {
		a, b := parents[i], parents[j]
		d := domain.(Domain)

		child0 := make([]float64, len(a))
		child1 := make([]float64, len(a))
		for k := range a {
			lo, hi := a[k], b[k]
			if lo > hi {
				lo, hi = hi, lo
			}
			span := hi - lo
			lo -= alpha * span
			hi += alpha * span
			child0[k] = lo + rng.Float64()*(hi-lo)
			child1[k] = lo + rng.Float64()*(hi-lo)
		}
		return d.clip(child0), d.clip(child1), nil
	}
}

// UniformInRange mutation replaces each gene, independently with
// probability perGeneProb, with a fresh uniform draw within bounds.
func UniformInRange(perGeneProb float64) gatypes.MutateFunc[float64] {
	return func(rng *rand.Rand, domain gatypes.Domain[float64], individual []float64) ([]float64, error) {
		d := domain.(Domain)
		out := append([]float64(nil), individual...)
		for i := range out {
			if rng.Float64() < perGeneProb {
				out[i] = d.Lower[i] + rng.Float64()*(d.Upper[i]-d.Lower[i])
			}
		}
		return out, nil
	}
}

// GaussianClip mutation adds N(0, sigma_i^2) noise to each gene, where
// sigma_i = relSigma * (Upper[i]-Lower[i]), then clips to bounds.
func GaussianClip(relSigma float64) gatypes.MutateFunc[float64] {
	return func(rng *rand.Rand, domain gatypes.Domain[float64], individual []float64) ([]float64, error) {
		d := domain.(Domain)
		out := append([]float64(nil), individual...)
		for i := range out {
			sigma := relSigma * (d.Upper[i] - d.Lower[i])
			out[i] += rng.NormFloat64() * sigma
		}
		return d.clip(out), nil
	}
}

// Init/Selection/Crossover/Mutation registries.
var (
	InitRegistry      = gatypes.NewRegistry[gatypes.InitFunc[float64]]()
	SelectRegistry    = gatypes.NewRegistry[gatypes.SelectFunc[float64]]()
	CrossoverRegistry = gatypes.NewRegistry[gatypes.CrossoverFunc[float64]]()
	MutateRegistry    = gatypes.NewRegistry[gatypes.MutateFunc[float64]]()
)

func init() {
	InitRegistry.Register("uniform", Init)

	SelectRegistry.Register("tournament", selection.Tournament[float64](3))
	SelectRegistry.Register("linear-rank", selection.LinearRank[float64](0.7))
	SelectRegistry.Register("nonlinear-rank", selection.NonlinearRank[float64](0.25))
	SelectRegistry.Register("roulette", selection.Roulette[float64]())

	CrossoverRegistry.Register("arithmetic", Arithmetic)
	CrossoverRegistry.Register("blend", Blend(0.5))

	MutateRegistry.Register("gaussian", GaussianClip(0.1))
	MutateRegistry.Register("uniform", UniformInRange(0.1))
}

// Defaults returns the default operator 4-tuple for RealValued.
func Defaults() gatypes.OperatorSet[float64] {
	initFn, _ := InitRegistry.Lookup("uniform")
	selectFn, _ := SelectRegistry.Lookup("tournament")
	crossFn, _ := CrossoverRegistry.Lookup("blend")
	mutateFn, _ := MutateRegistry.Lookup("gaussian")

	return gatypes.OperatorSet[float64]{
		InitName:      "uniform",
		SelectName:    "tournament",
		CrossoverName: "blend",
		MutateName:    "gaussian",
		Init:          initFn,
		Select:        selectFn,
		Crossover:     crossFn,
		Mutate:        mutateFn,
	}
}
