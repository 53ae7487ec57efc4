package app

import (
	"context"
	"fmt"
	"time"

	"clusterkit/domain/core"
	"clusterkit/domain/data"
	"clusterkit/domain/stage"
	"clusterkit/internal"
	"clusterkit/internal/metrics"
	"clusterkit/ports"
)

// warner is implemented by results that carry non-fatal diagnostics.
type warner interface {
	Warnings() []string
}

// StageRunner runs workers with audit records, logging and timing around
// every run.
type StageRunner struct {
	logger  ports.Logger
	metrics *metrics.Recorder
}

// NewStageRunner creates a new stage runner. A nil logger logs through the
// default logger; a nil recorder records nothing.
func NewStageRunner(logger ports.Logger, recorder *metrics.Recorder) *StageRunner {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &StageRunner{logger: logger, metrics: recorder}
}

// RunStage runs one stage on d and returns its audit record. The error is the
// worker's error, unchanged.
func (r *StageRunner) RunStage(ctx context.Context, spec stage.StageSpec, d *data.Data) (stage.StageResult, error) {
	audit := stage.StageExecutionAudit{
		StageName:  spec.Name,
		ExecutedAt: core.Now(),
	}
	if d != nil {
		audit.RowsBefore = d.Len()
	}

	r.logger.Info("[StageRunner] %s: starting (%d rows)", spec.Name, audit.RowsBefore)
	start := time.Now()

	var (
		res stage.Result
		err error
	)
	if spec.Worker == nil {
		err = core.NewConfigurationError("stage %s: worker not set", spec.Name)
	} else {
		res, err = spec.Worker.Run(ctx, d)
	}
	elapsed := time.Since(start)
	r.metrics.StageDuration(string(spec.Name), elapsed)

	if d != nil {
		audit.RowsAfter = d.Len()
		audit.Columns = d.AuxiliaryColumns()
	}
	if w, ok := res.(warner); ok {
		audit.Warnings = w.Warnings()
	}

	out := stage.StageResult{
		StageName: spec.Name,
		Success:   err == nil,
		Audit:     audit,
		Duration:  elapsed.Milliseconds(),
		Result:    res,
	}
	if err != nil {
		out.Error = err.Error()
		out.ErrorKind = stage.ErrorKind(err)
		r.logger.Warn("[StageRunner] %s: failed after %s: %v", spec.Name, elapsed, err)
		return out, err
	}

	for _, w := range audit.Warnings {
		r.logger.Warn("[StageRunner] %s: %s", spec.Name, w)
	}
	r.logger.Info("[StageRunner] %s: done in %s (%d rows)", spec.Name, elapsed, audit.RowsAfter)
	return out, nil
}

// RunPlan runs the stages of plan in order on the same container and stops at
// the first failure. The pipeline result always holds the records of the
// stages that ran.
func (r *StageRunner) RunPlan(ctx context.Context, plan *stage.StagePlan, d *data.Data) (*stage.PipelineResult, error) {
	if plan == nil {
		return nil, core.NewConfigurationError("no stage plan")
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	result := stage.NewPipelineResult()
	for i, spec := range plan.Stages {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		sr, err := r.RunStage(ctx, spec, d)
		result.AddResult(sr)
		if err != nil {
			return result, fmt.Errorf("stage %d (%s): %w", i, spec.Name, err)
		}
	}
	r.logger.Info("[StageRunner] plan complete: %d stages in %dms",
		result.Overall.TotalStages, result.Overall.TotalDuration)
	return result, nil
}
