package scan

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"clusterkit/domain/core"
	"clusterkit/domain/data"
	"clusterkit/domain/stage"
	"clusterkit/internal"
	"clusterkit/internal/metrics"
	"clusterkit/ports"

	"golang.org/x/sync/errgroup"
)

// Point generation modes recorded in the container metadata.
const (
	ModeGrid     = "grid"
	ModeEquidist = "equidist"
)

// Metadata keys written by Run.
const (
	MetaMode   = "scan.mode"
	MetaPoints = "scan.points"
	MetaHash   = "scan.hash"
)

// Scanner generates sample points over a coefficient space and evaluates a
// model function at each of them to fill a data container.
//
// Configure it with one of the SetSPoints* methods and SetDFunction, then call
// Run. Calling a SetSPoints* method again replaces the previous points.
type Scanner struct {
	coeffNames []string
	spoints    [][]complex128
	mode       string
	dfunc      ports.ModelFunc

	imaginaryPrefix string
	workers         int

	logger  ports.Logger
	metrics *metrics.Recorder
}

// New creates a scanner that evaluates points sequentially and has
// real/imaginary axis merging disabled.
func New() *Scanner {
	return &Scanner{
		workers: 1,
		logger:  internal.DefaultLogger,
	}
}

// SetImaginaryPrefix sets the prefix marking the imaginary part of an axis in
// equidistant mode. The empty string disables merging. It only affects later
// SetSPointsEquidist calls.
func (s *Scanner) SetImaginaryPrefix(prefix string) {
	s.imaginaryPrefix = prefix
}

// ImaginaryPrefix returns the configured imaginary prefix.
func (s *Scanner) ImaginaryPrefix() string {
	return s.imaginaryPrefix
}

// SetWorkers bounds the number of model evaluations running at once.
// Values below one mean sequential evaluation.
func (s *Scanner) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	s.workers = n
}

// SetLogger replaces the logger.
func (s *Scanner) SetLogger(l ports.Logger) {
	s.logger = l
}

// SetMetrics attaches a metrics recorder.
func (s *Scanner) SetMetrics(m *metrics.Recorder) {
	s.metrics = m
}

// SetDFunction registers the model function called once per sample point.
func (s *Scanner) SetDFunction(f ports.ModelFunc) {
	s.dfunc = f
}

// SetSPointsGrid builds the Cartesian product of the axes. Axes are ordered
// by name and the last one varies fastest. An empty map yields no points.
func (s *Scanner) SetSPointsGrid(axes map[string][]complex128) error {
	return s.SetSPointsGridAxes(sortedGridAxes(axes))
}

// SetSPointsGridAxes builds the Cartesian product of the axes in the given
// order, the last-declared axis varying fastest.
func (s *Scanner) SetSPointsGridAxes(axes []GridAxis) error {
	names := make([]string, len(axes))
	values := make([][]complex128, len(axes))
	seen := make(map[string]bool, len(axes))
	for i, ax := range axes {
		if ax.Name == "" {
			return core.NewConfigurationError("axis %d has no name", i)
		}
		if seen[ax.Name] {
			return core.NewConfigurationError("axis %q declared twice", ax.Name)
		}
		seen[ax.Name] = true
		names[i] = ax.Name
		values[i] = append([]complex128(nil), ax.Values...)
	}

	s.coeffNames = names
	s.spoints = cartesian(values)
	s.mode = ModeGrid
	return nil
}

// SetSPointsEquidist builds a grid of evenly spaced axes. An axis whose name
// starts with the imaginary prefix is merged with its unprefixed counterpart
// into one complex axis (real part outer, imaginary part inner).
func (s *Scanner) SetSPointsEquidist(axes map[string]Range) error {
	merged, err := mergeEquidist(axes, s.imaginaryPrefix)
	if err != nil {
		return err
	}
	if err := s.SetSPointsGridAxes(merged); err != nil {
		return err
	}
	s.mode = ModeEquidist
	return nil
}

// CoeffNames returns the coefficient names in coordinate order.
func (s *Scanner) CoeffNames() []string {
	return append([]string(nil), s.coeffNames...)
}

// SPoints returns a copy of the generated sample points.
func (s *Scanner) SPoints() [][]complex128 {
	out := make([][]complex128, len(s.spoints))
	for i, p := range s.spoints {
		out[i] = append([]complex128(nil), p...)
	}
	return out
}

// Jittered returns a copy of the scanner whose sample points carry gaussian
// noise of width sigma. Real parts are always perturbed; imaginary parts only
// on axes holding complex values, so real axes stay real.
func (s *Scanner) Jittered(rng *rand.Rand, sigma float64) *Scanner {
	c := *s
	c.coeffNames = append([]string(nil), s.coeffNames...)

	complexAxis := make([]bool, len(s.coeffNames))
	for _, p := range s.spoints {
		for k, v := range p {
			if imag(v) != 0 {
				complexAxis[k] = true
			}
		}
	}

	c.spoints = make([][]complex128, len(s.spoints))
	for i, p := range s.spoints {
		q := make([]complex128, len(p))
		for k, v := range p {
			re := real(v) + sigma*rng.NormFloat64()
			im := imag(v)
			if complexAxis[k] {
				im += sigma * rng.NormFloat64()
			}
			q[k] = complex(re, im)
		}
		c.spoints[i] = q
	}
	return &c
}

// Run evaluates the model at every sample point in generation order and
// appends (point, output) rows to d in that order.
func (s *Scanner) Run(ctx context.Context, d *data.Data) (stage.Result, error) {
	if s.mode == "" {
		return nil, core.NewConfigurationError("no sample points: call SetSPointsGrid or SetSPointsEquidist first")
	}
	if s.dfunc == nil {
		return nil, core.NewConfigurationError("no model function: call SetDFunction first")
	}
	if d == nil {
		return nil, core.NewInputError("nil data container")
	}
	if err := s.prepare(d); err != nil {
		return nil, err
	}

	start := time.Now()
	outputs, err := s.evaluate(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.PointsEvaluated(len(outputs))
	if err := checkBins(d, outputs); err != nil {
		return nil, err
	}

	res := &ScanResult{
		CoeffNames:  s.CoeffNames(),
		Points:      s.SPoints(),
		Outputs:     outputs,
		Fingerprint: core.ComputePointsHash(s.coeffNames, s.spoints),
	}
	origin := d.Len()
	for i, p := range s.spoints {
		if _, err := d.AppendPoint(p, outputs[i]); err != nil {
			return nil, fmt.Errorf("sample point %d: %w", i, err)
		}
	}
	res.Index = d.Index()[origin:]
	if origin > 0 {
		s.logger.Debug("[Scanner] appended %d rows after %d existing rows", len(outputs), origin)
	}

	d.SetMeta(MetaMode, s.mode)
	d.SetMeta(MetaPoints, strconv.Itoa(d.Len()))
	d.SetMeta(MetaHash, res.Fingerprint.String())

	s.logger.Info("[Scanner] evaluated %d sample points over %v in %v", len(outputs), s.coeffNames, time.Since(start))
	return res, nil
}

// prepare declares the coefficient layout on an empty container or checks
// that a populated one matches it.
func (s *Scanner) prepare(d *data.Data) error {
	existing := d.CoeffNames()
	if len(existing) == 0 && d.Len() == 0 {
		return d.SetCoeffNames(s.coeffNames)
	}
	if len(existing) != len(s.coeffNames) {
		return core.NewInputError("container has %d coefficients %v, scanner generates %d %v",
			len(existing), existing, len(s.coeffNames), s.coeffNames)
	}
	for i := range existing {
		if existing[i] != s.coeffNames[i] {
			return core.NewInputError("coefficient %d is %q in the container but %q in the scanner",
				i, existing[i], s.coeffNames[i])
		}
	}
	return nil
}

// checkBins rejects outputs whose length differs from each other or from the
// rows already stored, before anything is appended.
func checkBins(d *data.Data, outputs [][]float64) error {
	if len(outputs) == 0 {
		return nil
	}
	want := len(outputs[0])
	if d.Len() > 0 {
		existing, _ := d.Output(0)
		want = len(existing)
	}
	for i, out := range outputs {
		if len(out) != want {
			return core.NewInputError("model returned %d bins for sample point %d, expected %d", len(out), i, want)
		}
	}
	return nil
}

// evaluate calls the model for every point. Each evaluation writes only its
// own slot, so the pool needs no further locking.
func (s *Scanner) evaluate(ctx context.Context) ([][]float64, error) {
	outputs := make([][]float64, len(s.spoints))

	if s.workers <= 1 {
		for i, p := range s.spoints {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out, err := s.dfunc(append([]complex128(nil), p...))
			if err != nil {
				return nil, fmt.Errorf("sample point %d %v: %w", i, p, err)
			}
			outputs[i] = out
		}
		return outputs, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, p := range s.spoints {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := s.dfunc(append([]complex128(nil), p...))
			if err != nil {
				return fmt.Errorf("sample point %d %v: %w", i, p, err)
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

// ScanResult holds the rows added by one scanner run.
type ScanResult struct {
	CoeffNames  []string
	Index       []int
	Points      [][]complex128
	Outputs     [][]float64
	Fingerprint core.Hash
}

func (r *ScanResult) Stage() stage.StageName { return stage.StageScan }

// Rows returns the origin ids and outputs, the shape output-based FOMs compare.
func (r *ScanResult) Rows() ([]int, [][]float64) {
	return r.Index, r.Outputs
}
