package evaluator

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/lattice-opt/gacore/pkg/gatypes"
)

// Stage is one step of a cascade evaluation: a cheap check runs first,
// and an individual failing the threshold of a Critical stage does not
// proceed to the next, more expensive stage (spec's supplemented "Cascade fitness
// evaluation", grounded on the teacher's CascadeStage/CascadeEvaluator).
type Stage[T gatypes.Gene] struct {
	Name      string
	Threshold float64
	Critical  bool
	Fitness   gatypes.FitnessFunc[T]
}

// Compose builds a single gatypes.FitnessFunc[T] out of ordered stages,
// usable anywhere the core expects a plain fitness function (Evaluator,
// PanmicticParams.Fitness, ...). Each stage's score is folded into a
// running maximum. A stage that scores below its threshold either halts
// the cascade for that row — marking fitness missing (NaN) for this
// generation — when Critical, or is logged and the cascade continues
// when not; a non-critical stage's score counts toward the running
// maximum whether or not it met its threshold.
func Compose[T gatypes.Gene](stages []Stage[T]) gatypes.FitnessFunc[T] {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	return func(individual []T, extra interface{}, rng *rand.Rand) (gatypes.EvalOutcome[T], error) {
		best := math.Inf(-1)

		for _, stage := range stages {
			outcome, err := stage.Fitness(individual, extra, rng)
			if err != nil {
				return gatypes.EvalOutcome[T]{}, fmt.Errorf("cascade stage %q: %w", stage.Name, err)
			}
			if outcome.Score > best {
				best = outcome.Score
			}

			if outcome.Score < stage.Threshold {
				if stage.Critical {
					logger.WithFields(logrus.Fields{
						"stage":     stage.Name,
						"score":     outcome.Score,
						"threshold": stage.Threshold,
					}).Debug("critical cascade stage failed threshold, row marked missing")
					return gatypes.EvalOutcome[T]{Score: math.NaN()}, nil
				}
				logger.WithFields(logrus.Fields{
					"stage":     stage.Name,
					"score":     outcome.Score,
					"threshold": stage.Threshold,
				}).Debug("non-critical cascade stage failed threshold, continuing")
				continue
			}
		}

		return gatypes.EvalOutcome[T]{Score: best}, nil
	}
}
