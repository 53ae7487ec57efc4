package benchmark

import (
	"context"
	"math"

	"clusterkit/adapters/cluster"
	"clusterkit/domain/core"
	"clusterkit/domain/data"
	"clusterkit/domain/stage"
	"clusterkit/internal"
	"clusterkit/ports"

	"gonum.org/v1/gonum/floats"
)

// Worker selects one benchmark point per cluster: the row whose output has
// the smallest summed Euclidean distance to the outputs of the other rows in
// its cluster. Ties go to the earliest row.
type Worker struct {
	clusterColumn string
	column        string
	logger        ports.Logger
}

// New creates a benchmark worker reading "cluster" and writing "bpoint".
func New() *Worker {
	return &Worker{
		clusterColumn: data.ColumnCluster,
		column:        data.ColumnBenchmark,
		logger:        internal.DefaultLogger,
	}
}

// SetClusterColumn changes the column the labels are read from.
func (w *Worker) SetClusterColumn(name string) {
	w.clusterColumn = name
}

// SetColumn changes the column the benchmark flags are written to.
func (w *Worker) SetColumn(name string) {
	w.column = name
}

// SetLogger replaces the logger.
func (w *Worker) SetLogger(l ports.Logger) {
	w.logger = l
}

// Run marks the benchmark row of every cluster with 1 and all other rows with 0.
func (w *Worker) Run(ctx context.Context, d *data.Data) (stage.Result, error) {
	if w.clusterColumn == "" || w.column == "" {
		return nil, core.NewConfigurationError("benchmark worker needs both a cluster and a benchmark column")
	}
	if d == nil || d.Len() == 0 {
		return nil, core.NewInputError("nothing to benchmark: container is empty")
	}
	labels, err := d.IntColumn(w.clusterColumn)
	if err != nil {
		return nil, err
	}
	outputs := d.Outputs()

	members := make(map[int][]int)
	for row, l := range labels {
		members[l] = append(members[l], row)
	}

	res := &Result{
		Index:      d.Index(),
		Labels:     append([]int(nil), labels...),
		Benchmarks: make(map[int]int, len(members)),
		Outputs:    make(map[int][]float64, len(members)),
	}
	flags := make([]float64, len(labels))
	for label, rows := range members {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		best := medoid(rows, outputs)
		flags[best] = 1
		res.Benchmarks[label] = best
		res.Outputs[label] = append([]float64(nil), outputs[best]...)
	}

	if err := d.SetAuxiliaryColumn(w.column, flags); err != nil {
		return nil, err
	}
	w.logger.Debug("[BenchmarkWorker] selected %d benchmark points", len(res.Benchmarks))
	return res, nil
}

func medoid(rows []int, outputs [][]float64) int {
	best, bestCost := rows[0], math.Inf(1)
	for _, r := range rows {
		cost := 0.0
		for _, o := range rows {
			if o != r {
				cost += floats.Distance(outputs[r], outputs[o], 2)
			}
		}
		if cost < bestCost {
			best, bestCost = r, cost
		}
	}
	return best
}

// Result holds the benchmark points selected by one run.
type Result struct {
	Index  []int
	Labels []int
	// Benchmarks maps each cluster label to the row holding its benchmark point.
	Benchmarks map[int]int
	// Outputs maps each cluster label to the output of its benchmark point.
	Outputs map[int][]float64
}

func (r *Result) Stage() stage.StageName { return stage.StageBenchmark }

// ClusterLabels returns the origin ids of the rows and their labels.
func (r *Result) ClusterLabels() ([]int, []int) {
	return r.Index, r.Labels
}

// BenchmarkOutputs returns the benchmark output of every cluster.
func (r *Result) BenchmarkOutputs() map[int][]float64 {
	return r.Outputs
}

// NClusters returns the number of clusters.
func (r *Result) NClusters() int {
	return len(cluster.Distinct(r.Labels))
}
