package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// Stream creates a deterministic RNG stream for one experiment of a stability run.
	// The same (strategy, experiment, baseSeed) always yields the same sequence, so
	// experiments produce identical perturbations regardless of execution order.
	Stream(ctx context.Context, strategy string, experiment int, baseSeed int64) (*rand.Rand, error)
}
