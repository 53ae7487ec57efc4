package ports

import (
	"clusterkit/domain/stage"
)

// FOM is a named figure of merit comparing a reference result with the
// result of one perturbed experiment.
//
// Evaluate must be a pure function of its arguments: it must not mutate
// either result and must not keep state between calls, so experiments can be
// evaluated in any order or in parallel.
type FOM interface {
	Name() string
	Evaluate(reference, experiment stage.Result) (float64, error)
}
