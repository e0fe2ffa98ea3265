// Package selection implements the selection operators shared across all
// three encodings: selection only reads fitness and index positions,
// never the row's element type, so one implementation serves Binary,
// RealValued, and Permutation alike.
package selection

import (
	"math/rand"
	"sort"

	"github.com/lattice-opt/gacore/pkg/gatypes"
)

// validIndices returns the indices of population whose fitness entry is
// not missing, ordered best (highest fitness) first.
func validIndices(fitness gatypes.FitnessVector) []int {
	idx := make([]int, 0, len(fitness))
	for i := range fitness {
		if !fitness.Missing(i) {
			idx = append(idx, i)
		}
	}
	sort.Slice(idx, func(a, b int) bool { return fitness[idx[a]] > fitness[idx[b]] })
	return idx
}

// LinearRank selects parents by sampling the rank-weighted distribution
// of gatypes.RankWeights(len(valid), pressure) — identical weighting to
// the local-search starting-point sampler, just applied to the whole
// population rather than a single draw.
func LinearRank[T gatypes.Gene](pressure float64) gatypes.SelectFunc[T] {
	return func(rng *rand.Rand, population gatypes.Population[T], fitness gatypes.FitnessVector, n int) (gatypes.Population[T], gatypes.FitnessVector, error) {
		idx := validIndices(fitness)
		if len(idx) == 0 {
			return nil, nil, &gatypes.MissingFitness{}
		}
		weights := gatypes.RankWeights(len(idx), pressure)

		parents := make(gatypes.Population[T], n)
		parentFitness := make(gatypes.FitnessVector, n)
		for i := 0; i < n; i++ {
			rank := gatypes.WeightedSample(rng, weights)
			j := idx[rank]
			parents[i] = append([]T(nil), population[j]...)
			parentFitness[i] = fitness[j]
		}
		return parents, parentFitness, nil
	}
}

// NonlinearRank selects parents with a geometrically decaying rank
// weight w_i ∝ q(1-q)^(r_i-1), q ∈ (0,1]; larger q concentrates more
// weight on the best-ranked candidates than LinearRank does.
func NonlinearRank[T gatypes.Gene](q float64) gatypes.SelectFunc[T] {
	return func(rng *rand.Rand, population gatypes.Population[T], fitness gatypes.FitnessVector, n int) (gatypes.Population[T], gatypes.FitnessVector, error) {
		idx := validIndices(fitness)
		if len(idx) == 0 {
			return nil, nil, &gatypes.MissingFitness{}
		}
		weights := make([]float64, len(idx))
		for r := range idx {
			weights[r] = q * pow1m(q, r)
		}

		parents := make(gatypes.Population[T], n)
		parentFitness := make(gatypes.FitnessVector, n)
		for i := 0; i < n; i++ {
			rank := gatypes.WeightedSample(rng, weights)
			j := idx[rank]
			parents[i] = append([]T(nil), population[j]...)
			parentFitness[i] = fitness[j]
		}
		return parents, parentFitness, nil
	}
}

func pow1m(q float64, r int) float64 {
	v := 1.0
	for i := 0; i < r; i++ {
		v *= (1 - q)
	}
	return v
}

// Roulette selects parents with probability proportional to fitness,
// shifted so the worst valid individual carries a small positive weight
// rather than zero or negative weight (fitness here is a maximization
// score and can be negative).
func Roulette[T gatypes.Gene]() gatypes.SelectFunc[T] {
	return func(rng *rand.Rand, population gatypes.Population[T], fitness gatypes.FitnessVector, n int) (gatypes.Population[T], gatypes.FitnessVector, error) {
		idx := validIndices(fitness)
		if len(idx) == 0 {
			return nil, nil, &gatypes.MissingFitness{}
		}

		worst := fitness[idx[len(idx)-1]]
		weights := make([]float64, len(idx))
		for r, j := range idx {
			weights[r] = fitness[j] - worst + 1
		}

		parents := make(gatypes.Population[T], n)
		parentFitness := make(gatypes.FitnessVector, n)
		for i := 0; i < n; i++ {
			rank := gatypes.WeightedSample(rng, weights)
			j := idx[rank]
			parents[i] = append([]T(nil), population[j]...)
			parentFitness[i] = fitness[j]
		}
		return parents, parentFitness, nil
	}
}

// Tournament draws size distinct candidates uniformly (without
// replacement, capped at the valid pool's size) from the valid pool and
// keeps the fittest, repeated n times.
func Tournament[T gatypes.Gene](size int) gatypes.SelectFunc[T] {
	if size < 1 {
		size = 2
	}
	return func(rng *rand.Rand, population gatypes.Population[T], fitness gatypes.FitnessVector, n int) (gatypes.Population[T], gatypes.FitnessVector, error) {
		idx := validIndices(fitness)
		if len(idx) == 0 {
			return nil, nil, &gatypes.MissingFitness{}
		}
		k := size
		if k > len(idx) {
			k = len(idx)
		}

		parents := make(gatypes.Population[T], n)
		parentFitness := make(gatypes.FitnessVector, n)
		pool := make([]int, len(idx))
		for i := 0; i < n; i++ {
			copy(pool, idx)
			best := -1
			for d := 0; d < k; d++ {
				r := d + rng.Intn(len(pool)-d)
				pool[d], pool[r] = pool[r], pool[d]
				if best < 0 || fitness[pool[d]] > fitness[best] {
					best = pool[d]
				}
			}
			parents[i] = append([]T(nil), population[best]...)
			parentFitness[i] = fitness[best]
		}
		return parents, parentFitness, nil
	}
}
