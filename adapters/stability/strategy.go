package stability

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"clusterkit/adapters/scan"
	"clusterkit/domain/core"
	"clusterkit/domain/data"
	"clusterkit/domain/stage"
)

// Strategy names.
const (
	StrategySubSample      = "subsample"
	StrategyNoisySample    = "noisy_sample"
	StrategyParameterSweep = "parameter_sweep"
)

// Trial is one run prepared by a strategy: the worker to run and the
// container it runs on.
type Trial struct {
	Label      string
	Descriptor map[string]float64
	Data       *data.Data
	Worker     stage.Worker
}

// Strategy decides what the reference run and every experiment look like.
//
// Experiment receives a snapshot of the container taken before the reference
// run and must not modify it: experiments run concurrently against the same
// snapshot. All randomness must come from rng.
type Strategy interface {
	Name() string
	Experiments() int
	Reference(ctx context.Context, d *data.Data) (Trial, error)
	Experiment(ctx context.Context, d *data.Data, i int, rng *rand.Rand) (Trial, error)
}

// WorkerFactory builds a fresh worker for one trial.
type WorkerFactory func() stage.Worker

// SubSample re-runs the worker on random subsets of the rows. Subsets keep
// the origin ids of their rows, so cluster labels can be compared with the
// reference row by row.
type SubSample struct {
	Fraction  float64
	Repeat    int
	NewWorker WorkerFactory
}

func (s *SubSample) Name() string     { return StrategySubSample }
func (s *SubSample) Experiments() int { return s.Repeat }

func (s *SubSample) validate() error {
	if s.NewWorker == nil {
		return core.NewConfigurationError("subsample: no worker factory")
	}
	if !(s.Fraction > 0 && s.Fraction <= 1) {
		return core.NewConfigurationError("subsample: fraction %v outside (0, 1]", s.Fraction)
	}
	return nil
}

func (s *SubSample) Reference(ctx context.Context, d *data.Data) (Trial, error) {
	if err := s.validate(); err != nil {
		return Trial{}, err
	}
	if d == nil || d.Len() == 0 {
		return Trial{}, core.NewInputError("subsample: empty data container")
	}
	return Trial{
		Label:      "reference",
		Descriptor: map[string]float64{"fraction": 1, "rows": float64(d.Len())},
		Data:       d,
		Worker:     s.NewWorker(),
	}, nil
}

func (s *SubSample) Experiment(ctx context.Context, d *data.Data, i int, rng *rand.Rand) (Trial, error) {
	if err := s.validate(); err != nil {
		return Trial{}, err
	}
	n := d.Len()
	if n == 0 {
		return Trial{}, core.NewInputError("subsample: empty data container")
	}
	k := int(math.Round(s.Fraction * float64(n)))
	if k < 1 {
		k = 1
	}
	rows := rng.Perm(n)[:k]
	sort.Ints(rows)

	sub, err := d.Subset(rows)
	if err != nil {
		return Trial{}, err
	}
	return Trial{
		Label:      fmt.Sprintf("subsample-%d", i),
		Descriptor: map[string]float64{"fraction": s.Fraction, "rows": float64(k)},
		Data:       sub,
		Worker:     s.NewWorker(),
	}, nil
}

// NoisySample re-scans the scanner's sample points with gaussian jitter of
// width Sigma and runs the optional follow-up worker on every scan. The
// reference is the unperturbed scan.
type NoisySample struct {
	Scanner   *scan.Scanner
	Sigma     float64
	Repeat    int
	NewWorker WorkerFactory
}

func (s *NoisySample) Name() string     { return StrategyNoisySample }
func (s *NoisySample) Experiments() int { return s.Repeat }

func (s *NoisySample) validate() error {
	if s.Scanner == nil {
		return core.NewConfigurationError("noisy sample: no scanner")
	}
	if s.Sigma < 0 || math.IsNaN(s.Sigma) {
		return core.NewConfigurationError("noisy sample: sigma %v must be non-negative", s.Sigma)
	}
	return nil
}

func (s *NoisySample) worker(scanner *scan.Scanner) stage.Worker {
	if s.NewWorker == nil {
		return scanner
	}
	return stage.NewChain(scanner, s.NewWorker())
}

func (s *NoisySample) Reference(ctx context.Context, d *data.Data) (Trial, error) {
	if err := s.validate(); err != nil {
		return Trial{}, err
	}
	if d == nil {
		d = data.New()
	}
	if d.Len() != 0 {
		return Trial{}, core.NewInputError("noisy sample: reference container already holds %d rows", d.Len())
	}
	return Trial{
		Label:      "reference",
		Descriptor: map[string]float64{"sigma": 0},
		Data:       d,
		Worker:     s.worker(s.Scanner),
	}, nil
}

func (s *NoisySample) Experiment(ctx context.Context, _ *data.Data, i int, rng *rand.Rand) (Trial, error) {
	if err := s.validate(); err != nil {
		return Trial{}, err
	}
	return Trial{
		Label:      fmt.Sprintf("noisy-%d", i),
		Descriptor: map[string]float64{"sigma": s.Sigma},
		Data:       data.New(),
		Worker:     s.worker(s.Scanner.Jittered(rng, s.Sigma)),
	}, nil
}

// ParameterSweep re-runs a worker built for every value of one parameter on
// a copy of the container. The reference run uses ReferenceValue.
type ParameterSweep struct {
	Parameter      string
	ReferenceValue float64
	Values         []float64
	NewWorker      func(v float64) stage.Worker
}

func (s *ParameterSweep) Name() string     { return StrategyParameterSweep }
func (s *ParameterSweep) Experiments() int { return len(s.Values) }

func (s *ParameterSweep) validate() error {
	if s.NewWorker == nil {
		return core.NewConfigurationError("parameter sweep: no worker factory")
	}
	if s.Parameter == "" {
		return core.NewConfigurationError("parameter sweep: no parameter name")
	}
	return nil
}

func (s *ParameterSweep) Reference(ctx context.Context, d *data.Data) (Trial, error) {
	if err := s.validate(); err != nil {
		return Trial{}, err
	}
	if d == nil || d.Len() == 0 {
		return Trial{}, core.NewInputError("parameter sweep: empty data container")
	}
	return Trial{
		Label:      "reference",
		Descriptor: map[string]float64{s.Parameter: s.ReferenceValue},
		Data:       d,
		Worker:     s.NewWorker(s.ReferenceValue),
	}, nil
}

func (s *ParameterSweep) Experiment(ctx context.Context, d *data.Data, i int, _ *rand.Rand) (Trial, error) {
	if err := s.validate(); err != nil {
		return Trial{}, err
	}
	if i < 0 || i >= len(s.Values) {
		return Trial{}, core.NewInputError("parameter sweep: experiment %d out of range", i)
	}
	v := s.Values[i]
	return Trial{
		Label:      fmt.Sprintf("%s=%g", s.Parameter, v),
		Descriptor: map[string]float64{s.Parameter: v},
		Data:       d.Clone(),
		Worker:     s.NewWorker(v),
	}, nil
}
