package stability

import (
	"clusterkit/adapters/cluster"
	"clusterkit/domain/core"
	"clusterkit/domain/stage"
	"clusterkit/ports"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
)

// Default names of the built-in figures of merit.
const (
	FOMMatchingClusters = "matching_clusters"
	FOMDeltaNClusters   = "delta_n_clusters"
	FOMAverageBMProx    = "average_bm_proximity"
	FOMOutputDistance   = "output_distance"
)

// ClusterLabeled is implemented by results that carry per-row cluster labels.
type ClusterLabeled interface {
	ClusterLabels() (index []int, labels []int)
}

// OutputRows is implemented by results that carry per-row outputs.
type OutputRows interface {
	Rows() (index []int, outputs [][]float64)
}

// BenchmarkCarrier is implemented by results that carry one benchmark output
// per cluster.
type BenchmarkCarrier interface {
	ClusterLabeled
	BenchmarkOutputs() map[int][]float64
}

// FOMFunc is the signature of a figure of merit.
type FOMFunc func(reference, experiment stage.Result) (float64, error)

type namedFOM struct {
	name string
	fn   FOMFunc
}

func (f namedFOM) Name() string { return f.name }

func (f namedFOM) Evaluate(reference, experiment stage.Result) (float64, error) {
	return f.fn(reference, experiment)
}

// NewFOM wraps fn as a named figure of merit.
func NewFOM(name string, fn FOMFunc) ports.FOM {
	return namedFOM{name: name, fn: fn}
}

func orDefault(name, def string) string {
	if name == "" {
		return def
	}
	return name
}

// find returns r, or for a chain the latest stage result implementing T.
// Nested chains are searched depth first from their last stage.
func find[T any](r stage.Result) (T, bool) {
	if cr, ok := r.(*stage.ChainResult); ok {
		for i := len(cr.Results) - 1; i >= 0; i-- {
			if v, ok := find[T](cr.Results[i]); ok {
				return v, true
			}
		}
		var zero T
		return zero, false
	}
	v, ok := r.(T)
	return v, ok
}

func labelsOf(r stage.Result, role string) (map[int]int, []int, []int, error) {
	lr, ok := find[ClusterLabeled](r)
	if !ok {
		return nil, nil, nil, core.NewInputError("%s result %T carries no cluster labels", role, r)
	}
	return labelMap(lr, role)
}

func labelMap(lr ClusterLabeled, role string) (map[int]int, []int, []int, error) {
	index, labels := lr.ClusterLabels()
	if len(index) != len(labels) {
		return nil, nil, nil, core.NewInputError("%s result has %d ids for %d labels", role, len(index), len(labels))
	}
	byID := make(map[int]int, len(index))
	for i, id := range index {
		byID[id] = labels[i]
	}
	return byID, index, labels, nil
}

// MatchLabels maps every experiment label onto the reference label most of
// its rows carry, counting only rows present in both runs. Ties go to the
// smaller reference label. Cluster ids are arbitrary, so this mapping is what
// makes label comparisons meaningful.
func MatchLabels(reference map[int]int, expIndex, expLabels []int) map[int]int {
	votes := make(map[int]map[int]int)
	for i, id := range expIndex {
		ref, ok := reference[id]
		if !ok {
			continue
		}
		e := expLabels[i]
		if votes[e] == nil {
			votes[e] = make(map[int]int)
		}
		votes[e][ref]++
	}

	mapping := make(map[int]int, len(votes))
	for e, counts := range votes {
		best, bestCount := 0, -1
		for ref, c := range counts {
			if c > bestCount || (c == bestCount && ref < best) {
				best, bestCount = ref, c
			}
		}
		mapping[e] = best
	}
	return mapping
}

// NewMatchingClusters returns the fraction of shared rows whose experiment
// label, after matching, equals the reference label. 1 means identical
// clustering up to renaming.
func NewMatchingClusters(name string) ports.FOM {
	return NewFOM(orDefault(name, FOMMatchingClusters), func(reference, experiment stage.Result) (float64, error) {
		ref, _, _, err := labelsOf(reference, "reference")
		if err != nil {
			return 0, err
		}
		_, expIndex, expLabels, err := labelsOf(experiment, "experiment")
		if err != nil {
			return 0, err
		}

		mapping := MatchLabels(ref, expIndex, expLabels)
		shared, matched := 0, 0
		for i, id := range expIndex {
			r, ok := ref[id]
			if !ok {
				continue
			}
			shared++
			if mapping[expLabels[i]] == r {
				matched++
			}
		}
		if shared == 0 {
			return 0, core.NewInputError("reference and experiment share no rows")
		}
		return float64(matched) / float64(shared), nil
	})
}

// NewDeltaNClusters returns the experiment's cluster count minus the
// reference's.
func NewDeltaNClusters(name string) ports.FOM {
	return NewFOM(orDefault(name, FOMDeltaNClusters), func(reference, experiment stage.Result) (float64, error) {
		_, _, refLabels, err := labelsOf(reference, "reference")
		if err != nil {
			return 0, err
		}
		_, _, expLabels, err := labelsOf(experiment, "experiment")
		if err != nil {
			return 0, err
		}
		return float64(len(cluster.Distinct(expLabels)) - len(cluster.Distinct(refLabels))), nil
	})
}

// NewAverageBMProximity returns the mean Euclidean distance between the
// benchmark output of each experiment cluster and the benchmark output of
// the reference cluster it is matched to.
func NewAverageBMProximity(name string) ports.FOM {
	return NewFOM(orDefault(name, FOMAverageBMProx), func(reference, experiment stage.Result) (float64, error) {
		refBM, ok := find[BenchmarkCarrier](reference)
		if !ok {
			return 0, core.NewInputError("reference result %T carries no benchmark points", reference)
		}
		expBM, ok := find[BenchmarkCarrier](experiment)
		if !ok {
			return 0, core.NewInputError("experiment result %T carries no benchmark points", experiment)
		}
		ref, _, _, err := labelMap(refBM, "reference")
		if err != nil {
			return 0, err
		}
		_, expIndex, expLabels, err := labelMap(expBM, "experiment")
		if err != nil {
			return 0, err
		}

		mapping := MatchLabels(ref, expIndex, expLabels)
		refOut, expOut := refBM.BenchmarkOutputs(), expBM.BenchmarkOutputs()
		var distances stats.Float64Data
		// ascending label order keeps the sum reproducible
		for _, e := range cluster.Distinct(expLabels) {
			out, ok := expOut[e]
			if !ok {
				continue
			}
			r, ok := mapping[e]
			if !ok {
				continue
			}
			target, ok := refOut[r]
			if !ok || len(target) != len(out) {
				continue
			}
			distances = append(distances, floats.Distance(out, target, 2))
		}
		if len(distances) == 0 {
			return 0, core.NewInputError("no matched benchmark points")
		}
		return distances.Mean()
	})
}

// NewOutputDistance returns the mean Euclidean distance between the outputs
// of rows present in both runs. Rows are paired by origin id, so it works for
// re-scans of the same grid and for sub-samples alike.
func NewOutputDistance(name string) ports.FOM {
	return NewFOM(orDefault(name, FOMOutputDistance), func(reference, experiment stage.Result) (float64, error) {
		refRows, ok := find[OutputRows](reference)
		if !ok {
			return 0, core.NewInputError("reference result %T carries no outputs", reference)
		}
		expRows, ok := find[OutputRows](experiment)
		if !ok {
			return 0, core.NewInputError("experiment result %T carries no outputs", experiment)
		}

		refIndex, refOutputs := refRows.Rows()
		byID := make(map[int][]float64, len(refIndex))
		for i, id := range refIndex {
			byID[id] = refOutputs[i]
		}

		expIndex, expOutputs := expRows.Rows()
		var distances stats.Float64Data
		for i, id := range expIndex {
			ref, ok := byID[id]
			if !ok {
				continue
			}
			if len(ref) != len(expOutputs[i]) {
				return 0, core.NewInputError("row %d has %d bins in the reference and %d in the experiment",
					id, len(ref), len(expOutputs[i]))
			}
			distances = append(distances, floats.Distance(ref, expOutputs[i], 2))
		}
		if len(distances) == 0 {
			return 0, core.NewInputError("reference and experiment share no rows")
		}
		return distances.Mean()
	})
}
