package stage

import (
	"context"
	"errors"
	"testing"

	"clusterkit/domain/core"
	"clusterkit/domain/data"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tagResult struct{ tag string }

func (r tagResult) Stage() StageName { return StageName(r.tag) }

func appendWorker(tag string, calls *[]string) Worker {
	return WorkerFunc(func(ctx context.Context, d *data.Data) (Result, error) {
		*calls = append(*calls, tag)
		d.SetMeta("last", tag)
		return tagResult{tag: tag}, nil
	})
}

func TestChain_RunsInOrderOnSharedContainer(t *testing.T) {
	var calls []string
	d := data.New("a")
	chain := NewChain(appendWorker("first", &calls), appendWorker("second", &calls))

	res, err := chain.Run(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, calls)
	last, _ := d.Meta("last")
	assert.Equal(t, "second", last)

	cr, ok := res.(*ChainResult)
	require.True(t, ok)
	assert.Len(t, cr.Results, 2)
	assert.Equal(t, tagResult{tag: "second"}, Unwrap(res))
}

func TestChain_StopsAtFirstFailure(t *testing.T) {
	var calls []string
	failing := WorkerFunc(func(ctx context.Context, d *data.Data) (Result, error) {
		return nil, core.NewInputError("wrong arity")
	})
	chain := NewChain(appendWorker("first", &calls), failing, appendWorker("never", &calls))

	_, err := chain.Run(context.Background(), data.New())
	require.Error(t, err)
	assert.True(t, core.IsInputError(err))
	assert.Equal(t, []string{"first"}, calls)
}

func TestChain_Empty(t *testing.T) {
	_, err := Chain{}.Run(context.Background(), data.New())
	assert.True(t, core.IsConfigurationError(err))
}

func TestChain_Cancelled(t *testing.T) {
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewChain(appendWorker("x", &calls)).Run(ctx, data.New())
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, calls)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, "configuration", ErrorKind(core.NewConfigurationError("x")))
	assert.Equal(t, "input", ErrorKind(core.NewInputError("x")))
	assert.Equal(t, "internal", ErrorKind(errors.New("boom")))
}

func TestStagePlanValidate(t *testing.T) {
	assert.True(t, core.IsConfigurationError(NewStagePlan().Validate()))
	assert.True(t, core.IsConfigurationError(NewStagePlan(StageSpec{Name: StageScan}).Validate()))

	var calls []string
	plan := NewStagePlan(StageSpec{Name: StageScan, Worker: appendWorker("s", &calls)})
	assert.NoError(t, plan.Validate())
}

func TestPipelineResult(t *testing.T) {
	r := NewPipelineResult()
	r.AddResult(StageResult{StageName: StageScan, Success: true, Duration: 5})
	assert.True(t, r.Success())
	r.AddResult(StageResult{StageName: StageCluster, Success: false, Duration: 3})
	assert.False(t, r.Success())
	assert.Equal(t, PipelineSummary{TotalStages: 2, Successful: 1, Failed: 1, TotalDuration: 8}, r.Overall)
}
