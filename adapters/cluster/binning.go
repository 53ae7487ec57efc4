package cluster

import (
	"context"
	"math"

	"clusterkit/domain/core"

	"gonum.org/v1/gonum/floats"
)

// Binning clusters rows by splitting the range of one output bin into k
// equal-width intervals. Labels are interval numbers, so empty intervals
// leave gaps in the labels.
type Binning struct {
	K   int
	Bin int
}

var _ Algorithm = Binning{}

func (b Binning) Cluster(ctx context.Context, _ [][]complex128, outputs [][]float64) ([]int, error) {
	if b.K < 1 {
		return nil, core.NewConfigurationError("binning needs at least 1 interval, got %d", b.K)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	values := make([]float64, len(outputs))
	for i, o := range outputs {
		if b.Bin < 0 || b.Bin >= len(o) {
			return nil, core.NewInputError("row %d has no bin %d", i, b.Bin)
		}
		if math.IsNaN(o[b.Bin]) {
			return nil, core.NewInputError("row %d: bin %d is NaN", i, b.Bin)
		}
		values[i] = o[b.Bin]
	}

	labels := make([]int, len(values))
	if len(values) == 0 {
		return labels, nil
	}
	lo, hi := floats.Min(values), floats.Max(values)
	if hi == lo {
		return labels, nil
	}
	width := (hi - lo) / float64(b.K)
	for i, v := range values {
		l := int((v - lo) / width)
		if l >= b.K {
			l = b.K - 1
		}
		labels[i] = l
	}
	return labels, nil
}
