package stability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"clusterkit/adapters/rng"
	"clusterkit/domain/core"
	"clusterkit/domain/data"
	"clusterkit/domain/stage"
	"clusterkit/internal"
	"clusterkit/internal/metrics"
	"clusterkit/ports"

	"golang.org/x/sync/errgroup"
)

// State is the lifecycle state of a Tester.
type State string

const (
	StateUnconfigured State = "unconfigured"
	StateConfigured   State = "configured"
	StateRunning      State = "running"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// Config holds the execution settings of a Tester.
type Config struct {
	// Parallelism bounds the number of experiments running at once.
	// Values below 1 mean sequential execution.
	Parallelism int
	// Seed is the base seed every experiment stream is derived from.
	Seed    int64
	RNG     ports.RNGPort
	Metrics *metrics.Recorder
}

// Tester measures how stable a worker's result is under perturbation: it runs
// a reference configuration once, runs the strategy's experiments, and scores
// every experiment against the reference with the registered FOMs.
//
// A Tester is itself a stage.Worker. Concurrent calls to Run on the same
// Tester are not supported.
type Tester struct {
	mu          sync.Mutex
	cfg         Config
	logger      ports.Logger
	foms        map[string]ports.FOM
	strategy    Strategy
	state       State
	diagnostics []*core.DuplicateNameWarning
}

var _ stage.Worker = (*Tester)(nil)

// NewTester creates an unconfigured tester. A nil logger logs through the
// default logger; a nil RNG uses seeded streams.
func NewTester(cfg Config, logger ports.Logger) *Tester {
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	if cfg.RNG == nil {
		cfg.RNG = rng.NewSeededRNG()
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Tester{
		cfg:    cfg,
		logger: logger,
		foms:   make(map[string]ports.FOM),
		state:  StateUnconfigured,
	}
}

// AddFOM registers a figure of merit. A FOM with the same name replaces the
// registered one; the collision is logged, kept in Diagnostics and returned.
func (t *Tester) AddFOM(f ports.FOM) *core.DuplicateNameWarning {
	if f == nil {
		t.logger.Warn("ignoring nil FOM")
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	name := f.Name()
	var warning *core.DuplicateNameWarning
	if _, exists := t.foms[name]; exists {
		warning = &core.DuplicateNameWarning{Registry: "FOM", Name: name, At: core.Now()}
		t.diagnostics = append(t.diagnostics, warning)
		t.logger.Warn("%s", warning.Error())
	}
	t.foms[name] = f
	return warning
}

// FOMs returns the names of the registered FOMs in sorted order.
func (t *Tester) FOMs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fomNamesLocked()
}

func (t *Tester) fomNamesLocked() []string {
	names := make([]string, 0, len(t.foms))
	for name := range t.foms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Diagnostics returns the non-fatal warnings raised so far.
func (t *Tester) Diagnostics() []*core.DuplicateNameWarning {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*core.DuplicateNameWarning(nil), t.diagnostics...)
}

// SetStrategy sets the perturbation strategy. A nil strategy returns the
// tester to the unconfigured state.
func (t *Tester) SetStrategy(s Strategy) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.strategy = s
	if s == nil {
		t.state = StateUnconfigured
	} else {
		t.state = StateConfigured
	}
}

// State returns the current lifecycle state.
func (t *Tester) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tester) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Run implements stage.Worker.
func (t *Tester) Run(ctx context.Context, d *data.Data) (stage.Result, error) {
	res, err := t.Test(ctx, d)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Test runs the reference and every experiment. A failing reference run
// fails the test; a failing experiment is recorded as not evaluable.
func (t *Tester) Test(ctx context.Context, d *data.Data) (*Result, error) {
	t.mu.Lock()
	strategy := t.strategy
	if strategy == nil {
		t.mu.Unlock()
		return nil, core.NewConfigurationError("no stability strategy: call SetStrategy first")
	}
	names := t.fomNamesLocked()
	foms := make([]ports.FOM, len(names))
	for i, name := range names {
		foms[i] = t.foms[name]
	}
	t.mu.Unlock()

	n := strategy.Experiments()
	if n < 1 {
		return nil, core.NewConfigurationError("strategy %s declares %d experiments, need at least 1", strategy.Name(), n)
	}

	t.setState(StateRunning)
	res, err := t.test(ctx, d, strategy, foms, names, n)
	if err != nil {
		t.setState(StateFailed)
		return nil, err
	}
	t.setState(StateCompleted)
	return res, nil
}

func (t *Tester) test(ctx context.Context, d *data.Data, strategy Strategy, foms []ports.FOM, names []string, n int) (*Result, error) {
	start := time.Now()
	res := &Result{
		RunID:       core.NewRunID(),
		Strategy:    strategy.Name(),
		FOMNames:    names,
		Experiments: make([]Outcome, n),
		StartedAt:   core.Now(),
	}
	t.logger.Info("stability run %s: strategy %s, %d experiments, %d FOMs", res.RunID, res.Strategy, n, len(foms))

	var base *data.Data
	if d != nil {
		base = d.Clone()
	}

	trial, err := strategy.Reference(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("reference run: %w", err)
	}
	refStart := time.Now()
	ref, err := runTrial(ctx, trial)
	if err != nil {
		return nil, fmt.Errorf("reference run: %w", err)
	}
	res.Reference = ReferenceRun{
		Label:      trial.Label,
		Descriptor: trial.Descriptor,
		Duration:   time.Since(refStart),
		Result:     ref,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Parallelism)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			out, err := t.experiment(gctx, strategy, base, i, ref, foms)
			if err != nil {
				return err
			}
			res.Experiments[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// stage timing is recorded by whoever runs the tester as a stage
	res.Duration = time.Since(start)
	if bad := res.NotEvaluable(); len(bad) > 0 {
		t.logger.Warn("stability run %s: %d of %d experiments not evaluable", res.RunID, len(bad), n)
	}
	return res, nil
}

// experiment runs experiment i. The returned error is non-nil only when the
// context was cancelled; every other failure ends up in the outcome.
func (t *Tester) experiment(ctx context.Context, strategy Strategy, base *data.Data, i int, ref stage.Result, foms []ports.FOM) (Outcome, error) {
	start := time.Now()
	out := Outcome{
		Index:  i,
		ID:     core.NewExperimentID(),
		Label:  fmt.Sprintf("experiment-%d", i),
		Status: StatusEvaluated,
	}

	fail := func(err error) (Outcome, error) {
		if isCancellation(err) {
			return Outcome{}, err
		}
		out.Status = StatusNotEvaluable
		out.Error = err.Error()
		out.Duration = time.Since(start)
		t.cfg.Metrics.Experiment(string(StatusNotEvaluable))
		t.logger.Debug("experiment %d not evaluable: %v", i, err)
		return out, nil
	}

	r, err := t.cfg.RNG.Stream(ctx, strategy.Name(), i, t.cfg.Seed)
	if err != nil {
		return fail(err)
	}
	trial, err := strategy.Experiment(ctx, base, i, r)
	if err != nil {
		return fail(err)
	}
	if trial.Label != "" {
		out.Label = trial.Label
	}
	out.Descriptor = trial.Descriptor

	res, err := runTrial(ctx, trial)
	if err != nil {
		return fail(err)
	}

	out.FOMs = make(map[string]float64, len(foms))
	for _, f := range foms {
		v, err := f.Evaluate(ref, res)
		if err != nil {
			if out.FOMErrors == nil {
				out.FOMErrors = make(map[string]string)
			}
			out.FOMErrors[f.Name()] = fmt.Errorf("%w: %v", core.ErrNotEvaluable, err).Error()
			continue
		}
		out.FOMs[f.Name()] = v
	}
	out.Duration = time.Since(start)
	t.cfg.Metrics.Experiment(string(StatusEvaluated))
	return out, nil
}

func runTrial(ctx context.Context, trial Trial) (stage.Result, error) {
	if trial.Worker == nil {
		return nil, core.NewConfigurationError("trial %q has no worker", trial.Label)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := trial.Data
	if d == nil {
		d = data.New()
	}
	res, err := trial.Worker.Run(ctx, d)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, core.NewInputError("trial %q returned no result", trial.Label)
	}
	return res, nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
