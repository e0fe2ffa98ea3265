// Package permutation implements the Permutation encoding: permutations
// of a contiguous integer range [Lower, Upper], with order-preserving
// crossover (PMX, cycle, order-based) and swap/insertion/scramble
// mutation.
package permutation

import (
	"math/rand"

	"github.com/lattice-opt/gacore/pkg/encoding/selection"
	"github.com/lattice-opt/gacore/pkg/gatypes"
)

// Domain is a permutation of every integer in [Lower, Upper], inclusive.
type Domain struct {
	Lower int
	Upper int
}

func (d Domain) Dimension() int { return d.Upper - d.Lower + 1 }

func (d Domain) Valid(row []int) bool {
	n := d.Dimension()
	if len(row) != n {
		return false
	}
	seen := make([]bool, n)
	for _, v := range row {
		idx := v - d.Lower
		if idx < 0 || idx >= n || seen[idx] {
			return false
		}
		seen[idx] = true
	}
	return true
}

func (d Domain) Sample(rng *rand.Rand) []int {
	n := d.Dimension()
	row := make([]int, n)
	for i := range row {
		row[i] = d.Lower + i
	}
	rng.Shuffle(n, func(i, j int) { row[i], row[j] = row[j], row[i] })
	return row
}

// Init samples a population within domain, seeding the first
// min(len(suggestions), popSize) rows from suggestions.
// A suggestion row of the wrong length is a *gatypes.ShapeMismatch; one
// of the right length that is not a valid permutation of the declared
// range is a *gatypes.OperatorDomainViolation.
func Init(rng *rand.Rand, popSize int, domain gatypes.Domain[int], suggestions gatypes.Population[int]) (gatypes.Population[int], error) {
	pop := make(gatypes.Population[int], popSize)

	k := len(suggestions)
	if k > popSize {
		k = popSize
	}
	for i := 0; i < k; i++ {
		if len(suggestions[i]) != domain.Dimension() {
			return nil, &gatypes.ShapeMismatch{Encoding: "Permutation", Detail: "suggestion row length does not match upper-lower+1"}
		}
		if !domain.Valid(suggestions[i]) {
			return nil, &gatypes.OperatorDomainViolation{Operator: "init", Detail: "suggestion row is not a valid permutation of the declared range"}
		}
		pop[i] = append([]int(nil), suggestions[i]...)
	}
	for i := k; i < popSize; i++ {
		pop[i] = domain.Sample(rng)
	}
	return pop, nil
}

// indexOf returns the position of value v in row.
func indexOf(row []int, v int) int {
	for i, x := range row {
		if x == v {
			return i
		}
	}
	return -1
}

// PMX implements partially-mapped crossover: a random slice [c0,c1) is
// copied verbatim from the other parent, and the remaining positions are
// filled from the original parent, remapping any value already placed
// by the copied slice to the value it displaced.
func PMX(rng *rand.Rand, domain gatypes.Domain[int], parents gatypes.Population[int], i, j int) ([]int, []int, error) {
	a, b := parents[i], parents[j]
	n := len(a)

	c0 := rng.Intn(n)
	c1 := rng.Intn(n)
	if c0 > c1 {
		c0, c1 = c1, c0
	}

	child0 := pmxChild(a, b, c0, c1)
	child1 := pmxChild(b, a, c0, c1)
	return child0, child1, nil
}

func pmxChild(base, donor []int, c0, c1 int) []int {
	n := len(base)
	child := make([]int, n)
	placed := make(map[int]bool, n)

	for k := c0; k < c1; k++ {
		child[k] = donor[k]
		placed[donor[k]] = true
	}

	for k := 0; k < n; k++ {
		if k >= c0 && k < c1 {
			continue
		}
		v := base[k]
		for placed[v] {
			// v already appears in the copied slice: follow the mapping
			// donor -> base at the position where v was copied from.
			pos := indexOf(donor[c0:c1], v) + c0
			v = base[pos]
		}
		child[k] = v
		placed[v] = true
	}
	return child
}

// Cycle implements cycle crossover: each child position either keeps
// its own parent's value or the other parent's, determined by the
// partition of positions into value-cycles between the two parents.
func Cycle(rng *rand.Rand, domain gatypes.Domain[int], parents gatypes.Population[int], i, j int) ([]int, []int, error) {
	a, b := parents[i], parents[j]
	n := len(a)

	cycleOf := make([]int, n)
	for k := range cycleOf {
		cycleOf[k] = -1
	}

	cycle := 0
	for start := 0; start < n; start++ {
		if cycleOf[start] != -1 {
			continue
		}
		pos := start
		for cycleOf[pos] == -1 {
			cycleOf[pos] = cycle
			val := b[pos]
			pos = indexOf(a, val)
		}
		cycle++
	}

	child0 := make([]int, n)
	child1 := make([]int, n)
	for k := 0; k < n; k++ {
		if cycleOf[k]%2 == 0 {
			child0[k], child1[k] = a[k], b[k]
		} else {
			child0[k], child1[k] = b[k], a[k]
		}
	}
	return child0, child1, nil
}

// OrderBased implements order crossover (OX): a random slice is copied
// verbatim from the first parent, and the remaining positions are
// filled with the second parent's values in the order they appear,
// skipping any already placed.
func OrderBased(rng *rand.Rand, domain gatypes.Domain[int], parents gatypes.Population[int], i, j int) ([]int, []int, error) {
	a, b := parents[i], parents[j]
	n := len(a)

	c0 := rng.Intn(n)
	c1 := rng.Intn(n)
	if c0 > c1 {
		c0, c1 = c1, c0
	}

	child0 := orderChild(a, b, c0, c1)
	child1 := orderChild(b, a, c0, c1)
	return child0, child1, nil
}

func orderChild(base, donor []int, c0, c1 int) []int {
	n := len(base)
	child := make([]int, n)
	placed := make(map[int]bool, n)

	for k := c0; k < c1; k++ {
		child[k] = base[k]
		placed[base[k]] = true
	}

	pos := 0
	for k := 0; k < n; k++ {
		if pos == c0 {
			pos = c1
		}
		if pos >= n {
			break
		}
		v := donor[k]
		if placed[v] {
			continue
		}
		child[pos] = v
		placed[v] = true
		pos++
	}
	return child
}

// Swap mutation exchanges two random positions.
func Swap(rng *rand.Rand, domain gatypes.Domain[int], individual []int) ([]int, error) {
	out := append([]int(nil), individual...)
	n := len(out)
	if n < 2 {
		return out, nil
	}
	i, j := rng.Intn(n), rng.Intn(n)
	out[i], out[j] = out[j], out[i]
	return out, nil
}

// Insertion mutation removes a random element and reinserts it at
// another random position.
func Insertion(rng *rand.Rand, domain gatypes.Domain[int], individual []int) ([]int, error) {
	n := len(individual)
	if n < 2 {
		return append([]int(nil), individual...), nil
	}
	from := rng.Intn(n)
	to := rng.Intn(n)

	out := make([]int, 0, n)
	v := individual[from]
	rest := append(append([]int(nil), individual[:from]...), individual[from+1:]...)
	if to > len(rest) {
		to = len(rest)
	}
	out = append(out, rest[:to]...)
	out = append(out, v)
	out = append(out, rest[to:]...)
	return out, nil
}

// Scramble mutation shuffles the elements within a random contiguous
// segment.
func Scramble(rng *rand.Rand, domain gatypes.Domain[int], individual []int) ([]int, error) {
	out := append([]int(nil), individual...)
	n := len(out)
	if n < 2 {
		return out, nil
	}
	c0 := rng.Intn(n)
	c1 := rng.Intn(n)
	if c0 > c1 {
		c0, c1 = c1, c0
	}
	segment := out[c0 : c1+1]
	rng.Shuffle(len(segment), func(i, j int) { segment[i], segment[j] = segment[j], segment[i] })
	return out, nil
}

// Init/Selection/Crossover/Mutation registries.
var (
	InitRegistry      = gatypes.NewRegistry[gatypes.InitFunc[int]]()
	SelectRegistry    = gatypes.NewRegistry[gatypes.SelectFunc[int]]()
	CrossoverRegistry = gatypes.NewRegistry[gatypes.CrossoverFunc[int]]()
	MutateRegistry    = gatypes.NewRegistry[gatypes.MutateFunc[int]]()
)

func init() {
	InitRegistry.Register("uniform", Init)

	SelectRegistry.Register("tournament", selection.Tournament[int](3))
	SelectRegistry.Register("linear-rank", selection.LinearRank[int](0.7))
	SelectRegistry.Register("nonlinear-rank", selection.NonlinearRank[int](0.25))
	SelectRegistry.Register("roulette", selection.Roulette[int]())

	CrossoverRegistry.Register("pmx", PMX)
	CrossoverRegistry.Register("cycle", Cycle)
	CrossoverRegistry.Register("order-based", OrderBased)

	MutateRegistry.Register("swap", Swap)
	MutateRegistry.Register("insertion", Insertion)
	MutateRegistry.Register("scramble", Scramble)
}

// Defaults returns the default operator 4-tuple for Permutation.
func Defaults() gatypes.OperatorSet[int] {
	initFn, _ := InitRegistry.Lookup("uniform")
	selectFn, _ := SelectRegistry.Lookup("tournament")
	crossFn, _ := CrossoverRegistry.Lookup("pmx")
	mutateFn, _ := MutateRegistry.Lookup("swap")

	return gatypes.OperatorSet[int]{
		InitName:      "uniform",
		SelectName:    "tournament",
		CrossoverName: "pmx",
		MutateName:    "swap",
		Init:          initFn,
		Select:        selectFn,
		Crossover:     crossFn,
		Mutate:        mutateFn,
	}
}
