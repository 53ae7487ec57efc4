package cluster

import (
	"context"
	"fmt"
	"sort"

	"clusterkit/domain/core"
	"clusterkit/domain/data"
	"clusterkit/domain/stage"
	"clusterkit/internal"
	"clusterkit/ports"
)

// Algorithm assigns a cluster label to every row. Concrete algorithms live
// outside this package and are injected into the Worker.
type Algorithm interface {
	Cluster(ctx context.Context, points [][]complex128, outputs [][]float64) ([]int, error)
}

// AlgorithmFunc adapts a function to the Algorithm interface.
type AlgorithmFunc func(ctx context.Context, points [][]complex128, outputs [][]float64) ([]int, error)

// Cluster calls f.
func (f AlgorithmFunc) Cluster(ctx context.Context, points [][]complex128, outputs [][]float64) ([]int, error) {
	return f(ctx, points, outputs)
}

// Worker clusters the rows of a container with an injected algorithm and
// writes the labels to an auxiliary column.
type Worker struct {
	algorithm Algorithm
	column    string
	logger    ports.Logger
}

// New creates a clustering worker writing to the "cluster" column.
func New() *Worker {
	return &Worker{
		column: data.ColumnCluster,
		logger: internal.DefaultLogger,
	}
}

// SetAlgorithm sets the clustering strategy.
func (w *Worker) SetAlgorithm(a Algorithm) {
	w.algorithm = a
}

// SetColumn changes the column the labels are written to.
func (w *Worker) SetColumn(name string) {
	w.column = name
}

// SetLogger replaces the logger.
func (w *Worker) SetLogger(l ports.Logger) {
	w.logger = l
}

// Run clusters d and writes the labels to the configured column.
func (w *Worker) Run(ctx context.Context, d *data.Data) (stage.Result, error) {
	if w.algorithm == nil {
		return nil, core.NewConfigurationError("no clustering algorithm: call SetAlgorithm first")
	}
	if w.column == "" {
		return nil, core.NewConfigurationError("cluster column name cannot be empty")
	}
	if d == nil || d.Len() == 0 {
		return nil, core.NewInputError("nothing to cluster: container is empty")
	}

	labels, err := w.algorithm.Cluster(ctx, d.Points(), d.Outputs())
	if err != nil {
		return nil, fmt.Errorf("clustering: %w", err)
	}
	if len(labels) != d.Len() {
		return nil, core.NewInputError("algorithm returned %d labels for %d rows", len(labels), d.Len())
	}
	if err := d.SetIntColumn(w.column, labels); err != nil {
		return nil, err
	}

	res := &Result{
		Index:  d.Index(),
		Labels: append([]int(nil), labels...),
	}
	res.NClusters = len(res.Clusters())
	w.logger.Debug("[ClusterWorker] %d rows in %d clusters", len(labels), res.NClusters)
	return res, nil
}

// Result holds the labels assigned by one clustering run.
type Result struct {
	Index     []int
	Labels    []int
	NClusters int
}

func (r *Result) Stage() stage.StageName { return stage.StageCluster }

// ClusterLabels returns the origin ids of the rows and their labels.
func (r *Result) ClusterLabels() ([]int, []int) {
	return r.Index, r.Labels
}

// Clusters returns the distinct labels in ascending order.
func (r *Result) Clusters() []int {
	return Distinct(r.Labels)
}

// Distinct returns the distinct values of labels in ascending order.
func Distinct(labels []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Ints(out)
	return out
}
