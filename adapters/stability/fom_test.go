package stability

import (
	"testing"

	"clusterkit/adapters/benchmark"
	"clusterkit/adapters/cluster"
	"clusterkit/adapters/scan"
	"clusterkit/domain/core"
	"clusterkit/domain/stage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchLabels(t *testing.T) {
	reference := map[int]int{0: 0, 1: 0, 2: 1, 3: 1, 4: 2}

	mapping := MatchLabels(reference, []int{0, 1, 2, 3, 9}, []int{7, 7, 3, 3, 5})
	assert.Equal(t, map[int]int{7: 0, 3: 1}, mapping)

	// tie between reference labels 0 and 1 goes to 0
	mapping = MatchLabels(reference, []int{0, 2}, []int{4, 4})
	assert.Equal(t, map[int]int{4: 0}, mapping)
}

func TestMatchingClusters_IgnoresRenaming(t *testing.T) {
	ref := &cluster.Result{Index: []int{0, 1, 2, 3}, Labels: []int{0, 0, 1, 1}}
	exp := &cluster.Result{Index: []int{0, 1, 2, 3}, Labels: []int{1, 1, 0, 0}}

	v, err := NewMatchingClusters("").Evaluate(ref, exp)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestMatchingClusters_SharedRowsOnly(t *testing.T) {
	ref := &cluster.Result{Index: []int{0, 1, 2, 3}, Labels: []int{0, 0, 1, 1}}
	exp := &cluster.Result{Index: []int{1, 2, 3, 8}, Labels: []int{0, 0, 1, 1}}

	// row 1 and 2 share experiment label 0, majority of {0,1} ties to 0;
	// row 2 is therefore a mismatch
	v, err := NewMatchingClusters("").Evaluate(ref, exp)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, v, 1e-12)

	_, err = NewMatchingClusters("").Evaluate(ref, &cluster.Result{Index: []int{10}, Labels: []int{0}})
	require.Error(t, err)
	assert.True(t, core.IsInputError(err))
}

func TestFOMs_WrongResultType(t *testing.T) {
	scanRes := &scan.ScanResult{Index: []int{0}, Outputs: [][]float64{{1}}}
	clusterRes := &cluster.Result{Index: []int{0}, Labels: []int{0}}

	cases := map[string]func() (float64, error){
		FOMMatchingClusters: func() (float64, error) { return NewMatchingClusters("").Evaluate(scanRes, clusterRes) },
		FOMDeltaNClusters:   func() (float64, error) { return NewDeltaNClusters("").Evaluate(clusterRes, scanRes) },
		FOMAverageBMProx:    func() (float64, error) { return NewAverageBMProximity("").Evaluate(clusterRes, clusterRes) },
		FOMOutputDistance:   func() (float64, error) { return NewOutputDistance("").Evaluate(clusterRes, scanRes) },
	}
	for name, evaluate := range cases {
		_, err := evaluate()
		require.Error(t, err, name)
		assert.True(t, core.IsInputError(err), name)
	}
}

func TestFOMs_CustomName(t *testing.T) {
	assert.Equal(t, "stability", NewMatchingClusters("stability").Name())
	assert.Equal(t, FOMOutputDistance, NewOutputDistance("").Name())
}

func TestOutputDistance(t *testing.T) {
	ref := &scan.ScanResult{Index: []int{0, 1, 2}, Outputs: [][]float64{{0, 0}, {1, 1}, {2, 2}}}
	exp := &scan.ScanResult{Index: []int{0, 2}, Outputs: [][]float64{{3, 4}, {2, 2}}}

	v, err := NewOutputDistance("").Evaluate(ref, exp)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, v, 1e-12)

	bad := &scan.ScanResult{Index: []int{0}, Outputs: [][]float64{{1}}}
	_, err = NewOutputDistance("").Evaluate(ref, bad)
	require.Error(t, err)
	assert.True(t, core.IsInputError(err))
}

func TestAverageBMProximity(t *testing.T) {
	ref := &benchmark.Result{
		Index:      []int{0, 1, 2, 3},
		Labels:     []int{0, 0, 1, 1},
		Benchmarks: map[int]int{0: 0, 1: 2},
		Outputs:    map[int][]float64{0: {0}, 1: {10}},
	}
	exp := &benchmark.Result{
		Index:      []int{0, 1, 2, 3},
		Labels:     []int{5, 5, 6, 6},
		Benchmarks: map[int]int{5: 1, 6: 3},
		Outputs:    map[int][]float64{5: {1}, 6: {13}},
	}

	v, err := NewAverageBMProximity("").Evaluate(ref, exp)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, v, 1e-12)
}

func TestFOMs_LookThroughChains(t *testing.T) {
	scanRes := &scan.ScanResult{Index: []int{0, 1}, Outputs: [][]float64{{0}, {1}}}
	clusterRes := &cluster.Result{Index: []int{0, 1}, Labels: []int{0, 1}}
	chain := &stage.ChainResult{Results: []stage.Result{scanRes, clusterRes}}

	v, err := NewOutputDistance("").Evaluate(chain, chain)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	v, err = NewMatchingClusters("").Evaluate(chain, clusterRes)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestFOMs_LookThroughNestedChains(t *testing.T) {
	scanRes := &scan.ScanResult{Index: []int{0, 1}, Outputs: [][]float64{{0}, {1}}}
	bm := &benchmark.Result{
		Index:      []int{0, 1},
		Labels:     []int{0, 1},
		Benchmarks: map[int]int{0: 0, 1: 1},
		Outputs:    map[int][]float64{0: {0}, 1: {1}},
	}
	inner := &stage.ChainResult{Results: []stage.Result{&cluster.Result{Index: []int{0, 1}, Labels: []int{0, 1}}, bm}}
	outer := &stage.ChainResult{Results: []stage.Result{scanRes, inner}}

	for _, fom := range []interface {
		Evaluate(a, b stage.Result) (float64, error)
	}{NewMatchingClusters(""), NewDeltaNClusters(""), NewAverageBMProximity(""), NewOutputDistance("")} {
		_, err := fom.Evaluate(outer, outer)
		assert.NoError(t, err)
	}

	v, err := NewMatchingClusters("").Evaluate(outer, inner)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestAverageBMProximity_Reproducible(t *testing.T) {
	ref := &benchmark.Result{Outputs: map[int][]float64{}}
	exp := &benchmark.Result{Outputs: map[int][]float64{}}
	for c := 0; c < 6; c++ {
		ref.Index = append(ref.Index, c)
		ref.Labels = append(ref.Labels, c)
		ref.Outputs[c] = []float64{0}
		exp.Index = append(exp.Index, c)
		exp.Labels = append(exp.Labels, c)
		exp.Outputs[c] = []float64{1e15 / float64(c+1)}
	}

	fom := NewAverageBMProximity("")
	first, err := fom.Evaluate(ref, exp)
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		v, err := fom.Evaluate(ref, exp)
		require.NoError(t, err)
		require.Equal(t, first, v)
	}
}
