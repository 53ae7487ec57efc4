package app

import (
	"context"
	"errors"
	"testing"

	"clusterkit/domain/core"
	"clusterkit/domain/data"
	"clusterkit/domain/stage"
	"clusterkit/internal"
	"clusterkit/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type warnResult struct {
	warnings []string
}

func (r *warnResult) Stage() stage.StageName { return "test" }
func (r *warnResult) Warnings() []string     { return r.warnings }

func appendWorker(n int) stage.Worker {
	return stage.WorkerFunc(func(_ context.Context, d *data.Data) (stage.Result, error) {
		for i := 0; i < n; i++ {
			if _, err := d.AppendPoint([]complex128{complex(float64(i), 0)}, []float64{1}); err != nil {
				return nil, err
			}
		}
		return &warnResult{}, nil
	})
}

func TestRunStage_Audit(t *testing.T) {
	runner := NewStageRunner(internal.NewNopLogger(), nil)
	d := data.New("x")

	sr, err := runner.RunStage(context.Background(), stage.StageSpec{Name: stage.StageScan, Worker: appendWorker(3)}, d)
	require.NoError(t, err)
	assert.True(t, sr.Success)
	assert.Equal(t, stage.StageScan, sr.StageName)
	assert.Equal(t, 0, sr.Audit.RowsBefore)
	assert.Equal(t, 3, sr.Audit.RowsAfter)
	assert.False(t, sr.Audit.ExecutedAt.IsZero())
	assert.NotNil(t, sr.Result)
}

func TestRunStage_Warnings(t *testing.T) {
	runner := NewStageRunner(internal.NewNopLogger(), nil)
	w := stage.WorkerFunc(func(context.Context, *data.Data) (stage.Result, error) {
		return &warnResult{warnings: []string{"experiment 1 not evaluable"}}, nil
	})

	sr, err := runner.RunStage(context.Background(), stage.StageSpec{Name: stage.StageStability, Worker: w}, data.New())
	require.NoError(t, err)
	assert.Equal(t, []string{"experiment 1 not evaluable"}, sr.Audit.Warnings)
}

func TestRunStage_ErrorKind(t *testing.T) {
	runner := NewStageRunner(internal.NewNopLogger(), nil)
	failing := func(err error) stage.Worker {
		return stage.WorkerFunc(func(context.Context, *data.Data) (stage.Result, error) { return nil, err })
	}

	for kind, err := range map[string]error{
		"configuration": core.NewConfigurationError("missing model"),
		"input":         core.NewInputError("bad shape"),
		"internal":      errors.New("boom"),
	} {
		sr, got := runner.RunStage(context.Background(), stage.StageSpec{Name: "s", Worker: failing(err)}, data.New())
		require.ErrorIs(t, got, err)
		assert.False(t, sr.Success)
		assert.Equal(t, kind, sr.ErrorKind)
		assert.Equal(t, err.Error(), sr.Error)
	}
}

func TestRunPlan_StopsAtFirstFailure(t *testing.T) {
	runner := NewStageRunner(internal.NewNopLogger(), nil)
	called := false
	plan := stage.NewStagePlan(
		stage.StageSpec{Name: stage.StageScan, Worker: appendWorker(2)},
		stage.StageSpec{Name: stage.StageCluster, Worker: stage.WorkerFunc(func(context.Context, *data.Data) (stage.Result, error) {
			return nil, core.NewInputError("no labels")
		})},
		stage.StageSpec{Name: stage.StageBenchmark, Worker: stage.WorkerFunc(func(context.Context, *data.Data) (stage.Result, error) {
			called = true
			return &warnResult{}, nil
		})},
	)

	res, err := runner.RunPlan(context.Background(), plan, data.New("x"))
	require.Error(t, err)
	assert.True(t, core.IsInputError(err))
	assert.False(t, called)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Overall.TotalStages)
	assert.Equal(t, 1, res.Overall.Successful)
	assert.Equal(t, 1, res.Overall.Failed)
	assert.False(t, res.Success())
}

func TestRunPlan_Success(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(reg)
	require.NoError(t, err)
	runner := NewStageRunner(internal.NewNopLogger(), recorder)

	plan := stage.NewStagePlan(
		stage.StageSpec{Name: stage.StageScan, Worker: appendWorker(2)},
		stage.StageSpec{Name: stage.StageCluster, Worker: appendWorker(1)},
	)
	d := data.New("x")
	res, err := runner.RunPlan(context.Background(), plan, d)
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, 3, d.Len())
	count, err := testutil.GatherAndCount(reg, "clusterkit_stage_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRunPlan_Invalid(t *testing.T) {
	runner := NewStageRunner(internal.NewNopLogger(), nil)

	_, err := runner.RunPlan(context.Background(), nil, data.New())
	assert.True(t, core.IsConfigurationError(err))

	_, err = runner.RunPlan(context.Background(), stage.NewStagePlan(), data.New())
	assert.True(t, core.IsConfigurationError(err))
}
