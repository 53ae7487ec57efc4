package stage

import (
	"context"
	"fmt"

	"clusterkit/domain/core"
	"clusterkit/domain/data"
)

// StageName represents a named stage in the pipeline
type StageName string

// Predefined stage names
const (
	StageScan      StageName = "scan"
	StageCluster   StageName = "cluster"
	StageBenchmark StageName = "benchmark"
	StageStability StageName = "stability"
	StageChain     StageName = "chain"
)

// Result is returned by every stage. Results are values: a stage does not
// touch a result after returning it.
type Result interface {
	Stage() StageName
}

// Worker is the contract every pipeline stage implements. Parameters are set
// through the worker's own configuration methods before Run is called; Run
// may be called any number of times.
//
// CONTRACT: Run treats d as shared mutable state. Anything it writes to d is
// visible to the caller and to later workers on the same container. It
// returns core.ErrConfiguration when required parameters are missing and
// core.ErrInput when d fails the stage's shape checks.
type Worker interface {
	Run(ctx context.Context, d *data.Data) (Result, error)
}

// WorkerFunc adapts an ordinary function to the Worker interface.
type WorkerFunc func(ctx context.Context, d *data.Data) (Result, error)

// Run calls f(ctx, d).
func (f WorkerFunc) Run(ctx context.Context, d *data.Data) (Result, error) {
	return f(ctx, d)
}

// ChainResult collects the results of every stage of a Chain in order.
type ChainResult struct {
	Results []Result
}

func (r *ChainResult) Stage() StageName { return StageChain }

// Last returns the result of the final stage, or nil for an empty chain.
func (r *ChainResult) Last() Result {
	if len(r.Results) == 0 {
		return nil
	}
	return r.Results[len(r.Results)-1]
}

// Chain runs workers one after another on the same container.
type Chain []Worker

// NewChain creates a chain of the given workers.
func NewChain(workers ...Worker) Chain {
	return Chain(workers)
}

// Run executes every stage in order and stops at the first failure. The
// returned error keeps the stage's error class (configuration or input).
func (c Chain) Run(ctx context.Context, d *data.Data) (Result, error) {
	if len(c) == 0 {
		return nil, core.NewConfigurationError("chain has no stages")
	}
	out := &ChainResult{Results: make([]Result, 0, len(c))}
	for i, w := range c {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := w.Run(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}

// Unwrap returns the final stage result when r came from a Chain, and r
// itself otherwise.
func Unwrap(r Result) Result {
	if cr, ok := r.(*ChainResult); ok {
		return cr.Last()
	}
	return r
}

// StageResult represents the audit record of one stage execution
type StageResult struct {
	StageName StageName           `json:"stage_name"`
	Success   bool                `json:"success"`
	Audit     StageExecutionAudit `json:"audit"`
	Error     string              `json:"error,omitempty"`
	ErrorKind string              `json:"error_kind,omitempty"` // "configuration", "input" or "internal"
	Duration  int64               `json:"duration_ms"`          // milliseconds
	Result    Result              `json:"-"`
}

// StageExecutionAudit captures the execution context and results of a stage
type StageExecutionAudit struct {
	StageName  StageName      `json:"stage_name"`
	RowsBefore int            `json:"rows_before"`
	RowsAfter  int            `json:"rows_after"`
	Columns    []string       `json:"columns,omitempty"` // auxiliary columns present after the stage
	Warnings   []string       `json:"warnings,omitempty"`
	ExecutedAt core.Timestamp `json:"executed_at"`
}

// ErrorKind classifies err for audit records.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case core.IsConfigurationError(err):
		return "configuration"
	case core.IsInputError(err):
		return "input"
	default:
		return "internal"
	}
}

// StageSpec names a worker inside a StagePlan
type StageSpec struct {
	Name   StageName `json:"name"`
	Worker Worker    `json:"-"`
}

// StagePlan represents an ordered list of stages
type StagePlan struct {
	Stages []StageSpec `json:"stages"`
}

// NewStagePlan creates a new stage plan
func NewStagePlan(stages ...StageSpec) *StagePlan {
	return &StagePlan{Stages: stages}
}

// Validate checks if the stage plan is valid
func (p *StagePlan) Validate() error {
	if len(p.Stages) == 0 {
		return core.NewConfigurationError("stage plan must contain at least one stage")
	}
	for i, s := range p.Stages {
		if s.Name == "" {
			return core.NewConfigurationError("stage %d: name cannot be empty", i)
		}
		if s.Worker == nil {
			return core.NewConfigurationError("stage %s: worker not set", s.Name)
		}
	}
	return nil
}

// PipelineResult contains the results of executing a stage plan
type PipelineResult struct {
	Results []StageResult   `json:"results"`
	Overall PipelineSummary `json:"overall"`
}

// PipelineSummary provides high-level pipeline statistics
type PipelineSummary struct {
	TotalStages   int   `json:"total_stages"`
	Successful    int   `json:"successful"`
	Failed        int   `json:"failed"`
	TotalDuration int64 `json:"total_duration_ms"`
}

// NewPipelineResult creates a new pipeline result
func NewPipelineResult() *PipelineResult {
	return &PipelineResult{Results: make([]StageResult, 0)}
}

// AddResult adds a stage result and updates summary
func (r *PipelineResult) AddResult(result StageResult) {
	r.Results = append(r.Results, result)
	r.Overall.TotalStages++

	if result.Success {
		r.Overall.Successful++
	} else {
		r.Overall.Failed++
	}
	r.Overall.TotalDuration += result.Duration
}

// Success returns true if all stages succeeded
func (r *PipelineResult) Success() bool {
	return r.Overall.Failed == 0
}
