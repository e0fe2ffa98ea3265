package gatypes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFitnessVectorMax(t *testing.T) {
	f := FitnessVector{1.0, math.NaN(), 3.5, 2.0}
	v, idx, ok := f.Max()
	assert.True(t, ok)
	assert.Equal(t, 3.5, v)
	assert.Equal(t, 2, idx)
}

func TestFitnessVectorMaxAllMissing(t *testing.T) {
	f := FitnessVector{math.NaN(), math.NaN()}
	_, _, ok := f.Max()
	assert.False(t, ok)
}

func TestFitnessVectorMean(t *testing.T) {
	f := FitnessVector{1.0, 2.0, 3.0}
	assert.Equal(t, 2.0, f.Mean())
}

func TestFitnessVectorMeanSkipsMissing(t *testing.T) {
	f := FitnessVector{1.0, math.NaN(), 3.0}
	assert.Equal(t, 2.0, f.Mean())
}

func TestPopulationCloneIsDeep(t *testing.T) {
	p := Population[int]{{1, 2, 3}, {4, 5, 6}}
	c := p.Clone()
	c[0][0] = 99
	assert.Equal(t, 1, p[0][0])
}

func TestSummarize(t *testing.T) {
	f := FitnessVector{1, 2, 3, 4, 5}
	row := Summarize(f)
	assert.Equal(t, 5.0, row.Max)
	assert.Equal(t, 1.0, row.Min)
	assert.Equal(t, 3.0, row.Mean)
	assert.Equal(t, 3.0, row.Median)
}

func TestSummarizeAllMissing(t *testing.T) {
	f := FitnessVector{math.NaN(), math.NaN()}
	row := Summarize(f)
	assert.True(t, math.IsNaN(row.Max))
}

func TestSearchStateView(t *testing.T) {
	s := &SearchState[int]{Iter: 3, Population: Population[int]{{1}}}
	v := s.View()
	assert.Equal(t, 3, v.Iter)
}
