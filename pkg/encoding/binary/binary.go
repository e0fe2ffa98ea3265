// Package binary implements the Binary encoding: fixed-length bit
// strings, with bit-flip mutation and point-crossover.
package binary

import (
	"math/rand"

	"github.com/lattice-opt/gacore/pkg/encoding/selection"
	"github.com/lattice-opt/gacore/pkg/gatypes"
)

// Domain is a fixed-length bit-string domain: every row has exactly
// NBits entries, each 0 or 1.
type Domain struct {
	NBits int
}

func (d Domain) Dimension() int { return d.NBits }

func (d Domain) Valid(row []gatypes.Bit) bool {
	if len(row) != d.NBits {
		return false
	}
	for _, b := range row {
		if b != 0 && b != 1 {
			return false
		}
	}
	return true
}

func (d Domain) Sample(rng *rand.Rand) []gatypes.Bit {
	row := make([]gatypes.Bit, d.NBits)
	for i := range row {
		row[i] = gatypes.Bit(rng.Intn(2))
	}
	return row
}

// Init samples a population within domain, seeding the first
// min(len(suggestions), popSize) rows from suggestions.
func Init(rng *rand.Rand, popSize int, domain gatypes.Domain[gatypes.Bit], suggestions gatypes.Population[gatypes.Bit]) (gatypes.Population[gatypes.Bit], error) {
	pop := make(gatypes.Population[gatypes.Bit], popSize)

	k := len(suggestions)
	if k > popSize {
		k = popSize
	}
	for i := 0; i < k; i++ {
		if len(suggestions[i]) != domain.Dimension() {
			return nil, &gatypes.ShapeMismatch{Encoding: "Binary", Detail: "suggestion row length does not match nBits"}
		}
		pop[i] = append([]gatypes.Bit(nil), suggestions[i]...)
	}
	for i := k; i < popSize; i++ {
		pop[i] = domain.Sample(rng)
	}
	return pop, nil
}

// SinglePoint crosses two bit strings at one random cut point.
func SinglePoint(rng *rand.Rand, domain gatypes.Domain[gatypes.Bit], parents gatypes.Population[gatypes.Bit], i, j int) ([]gatypes.Bit, []gatypes.Bit, error) {
	a, b := parents[i], parents[j]
	n := len(a)
	cut := 1 + rng.Intn(n-1)

	child0 := append(append([]gatypes.Bit(nil), a[:cut]...), b[cut:]...)
	child1 := append(append([]gatypes.Bit(nil), b[:cut]...), a[cut:]...)
	return child0, child1, nil
}

// MultiPoint crosses two bit strings at k random cut points.
func MultiPoint(k int) gatypes.CrossoverFunc[gatypes.Bit] {
	return func(rng *rand.Rand, domain gatypes.Domain[gatypes.Bit], parents gatypes.Population[gatypes.Bit], i, j int) ([]gatypes.Bit, []gatypes.Bit, error) {
		a, b := parents[i], parents[j]
		n := len(a)

		cuts := make(map[int]bool, k)
		for len(cuts) < k && len(cuts) < n-1 {
			cuts[1+rng.Intn(n-1)] = true
		}

		child0 := append([]gatypes.Bit(nil), a...)
		child1 := append([]gatypes.Bit(nil), b...)
		swap := false
		for pos := 0; pos < n; pos++ {
			if cuts[pos] {
				swap = !swap
			}
			if swap {
				child0[pos], child1[pos] = b[pos], a[pos]
			}
		}
		return child0, child1, nil
	}
}

// BitFlip flips each bit independently with probability perBitProb. A
// non-positive perBitProb falls back to 1/nBits, the conventional
// expected-one-flip-per-individual rate.
func BitFlip(perBitProb float64) gatypes.MutateFunc[gatypes.Bit] {
	return func(rng *rand.Rand, domain gatypes.Domain[gatypes.Bit], individual []gatypes.Bit) ([]gatypes.Bit, error) {
		p := perBitProb
		if p <= 0 {
			p = 1.0 / float64(domain.Dimension())
		}

		out := append([]gatypes.Bit(nil), individual...)
		for i := range out {
			if rng.Float64() < p {
				out[i] ^= 1
			}
		}
		return out, nil
	}
}

// Init/Selection/Crossover/Mutation registries, keyed by operator name.
var (
	InitRegistry      = gatypes.NewRegistry[gatypes.InitFunc[gatypes.Bit]]()
	SelectRegistry    = gatypes.NewRegistry[gatypes.SelectFunc[gatypes.Bit]]()
	CrossoverRegistry = gatypes.NewRegistry[gatypes.CrossoverFunc[gatypes.Bit]]()
	MutateRegistry    = gatypes.NewRegistry[gatypes.MutateFunc[gatypes.Bit]]()
)

func init() {
	InitRegistry.Register("uniform", Init)

	SelectRegistry.Register("tournament", selection.Tournament[gatypes.Bit](3))
	SelectRegistry.Register("linear-rank", selection.LinearRank[gatypes.Bit](0.7))
	SelectRegistry.Register("nonlinear-rank", selection.NonlinearRank[gatypes.Bit](0.25))
	SelectRegistry.Register("roulette", selection.Roulette[gatypes.Bit]())

	CrossoverRegistry.Register("single-point", SinglePoint)
	CrossoverRegistry.Register("multi-point", MultiPoint(2))

	MutateRegistry.Register("bit-flip", BitFlip(0))
}

// Defaults returns the default operator 4-tuple for Binary.
func Defaults() gatypes.OperatorSet[gatypes.Bit] {
	initFn, _ := InitRegistry.Lookup("uniform")
	selectFn, _ := SelectRegistry.Lookup("tournament")
	crossFn, _ := CrossoverRegistry.Lookup("single-point")
	mutateFn, _ := MutateRegistry.Lookup("bit-flip")

	return gatypes.OperatorSet[gatypes.Bit]{
		InitName:      "uniform",
		SelectName:    "tournament",
		CrossoverName: "single-point",
		MutateName:    "bit-flip",
		Init:          initFn,
		Select:        selectFn,
		Crossover:     crossFn,
		Mutate:        mutateFn,
	}
}
