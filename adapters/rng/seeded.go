package rng

import (
	"context"
	"math/rand"
	"strconv"

	"clusterkit/domain/core"
	"clusterkit/ports"
)

// SeededRNG derives independent deterministic streams from a base seed.
type SeededRNG struct{}

var _ ports.RNGPort = (*SeededRNG)(nil)

// NewSeededRNG creates a new seeded RNG port.
func NewSeededRNG() *SeededRNG {
	return &SeededRNG{}
}

// SeededStream returns a generator for a named operation.
func (r *SeededRNG) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.New(rand.NewSource(core.DeriveSeed(seed, name))), nil
}

// Stream returns the generator of one experiment of a stability strategy.
func (r *SeededRNG) Stream(ctx context.Context, strategy string, experiment int, baseSeed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if experiment < 0 {
		return nil, core.NewInputError("experiment index %d is negative", experiment)
	}
	seed := core.DeriveSeed(baseSeed, strategy, strconv.Itoa(experiment))
	return rand.New(rand.NewSource(seed)), nil
}
