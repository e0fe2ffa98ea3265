package gatypes

import "math/rand"

// RankWeights returns unnormalized rank-based weights for n candidates
// already ordered best-first (rank 1 = best):
//
//	w_i ∝ 2·pressel + 2·(1−2·pressel)·(r_i−1)/(N−1)
//
// pressel=0.5 yields near-uniform weights; pressel→1 concentrates
// weight on the best-ranked candidate. Shared by the local-search
// adapter's starting-point sampler and the rank-based selection
// operators, since both need the identical rank-weighted distribution.
func RankWeights(n int, pressel float64) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		r := float64(i + 1)
		w[i] = 2*pressel + 2*(1-2*pressel)*(r-1)/float64(n-1)
	}
	return w
}

// WeightedSample draws one index from weights via cumulative-sum
// sampling, the pattern the teacher's LLM ensemble uses to pick a client
// by weight (pkg/llm/ensemble.go's selectClient).
func WeightedSample(rng *rand.Rand, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return rng.Intn(len(weights))
	}

	target := rng.Float64() * total
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w
		if target <= cumulative {
			return i
		}
	}
	return len(weights) - 1
}
