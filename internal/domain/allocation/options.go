package allocation

import (
	"github.com/okian/allot/internal/domain/matching"
)

// Option applies a configuration option to the Allocator.
type Option func(*Allocator)

// WithRand sets the source used for fairness shuffling. Pass a seeded
// *rand.Rand for reproducible runs.
func WithRand(r Rand) Option {
	return func(a *Allocator) {
		if r != nil {
			a.rng = r
		}
	}
}

// WithEvaluator sets the skill evaluator used for tier classification.
func WithEvaluator(e matching.Evaluator) Option {
	return func(a *Allocator) {
		a.evaluator = e
	}
}
