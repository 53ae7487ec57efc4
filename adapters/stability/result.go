package stability

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"clusterkit/domain/core"
	"clusterkit/domain/stage"
	"clusterkit/internal/metrics"

	"github.com/montanaflynn/stats"
)

// Status is the outcome of one experiment.
type Status string

const (
	StatusEvaluated    Status = metrics.StatusEvaluated
	StatusNotEvaluable Status = metrics.StatusNotEvaluable
)

// ReferenceRun describes the unperturbed run every experiment is compared to.
type ReferenceRun struct {
	Label      string             `json:"label"`
	Descriptor map[string]float64 `json:"descriptor,omitempty"`
	Duration   time.Duration      `json:"duration"`
	Result     stage.Result       `json:"-"`
}

// Outcome records one experiment. FOMs holds the values that could be
// computed; FOMErrors holds the reason for every FOM that could not.
type Outcome struct {
	Index      int                `json:"index"`
	ID         core.ExperimentID  `json:"id"`
	Label      string             `json:"label"`
	Descriptor map[string]float64 `json:"descriptor,omitempty"`
	Status     Status             `json:"status"`
	Error      string             `json:"error,omitempty"`
	FOMs       map[string]float64 `json:"foms,omitempty"`
	FOMErrors  map[string]string  `json:"fom_errors,omitempty"`
	Duration   time.Duration      `json:"duration"`
}

// Evaluated reports whether the experiment ran to completion.
func (o Outcome) Evaluated() bool { return o.Status == StatusEvaluated }

// Result is the structured output of a stability test, one Outcome per
// experiment in experiment order.
type Result struct {
	RunID       core.RunID     `json:"run_id"`
	Strategy    string         `json:"strategy"`
	FOMNames    []string       `json:"foms"`
	Reference   ReferenceRun   `json:"reference"`
	Experiments []Outcome      `json:"experiments"`
	StartedAt   core.Timestamp `json:"started_at"`
	Duration    time.Duration  `json:"duration"`
}

func (r *Result) Stage() stage.StageName { return stage.StageStability }

// Values returns the values of one FOM in experiment order. Experiments
// where the FOM is not evaluable hold NaN.
func (r *Result) Values(name string) []float64 {
	out := make([]float64, len(r.Experiments))
	for i, o := range r.Experiments {
		v, ok := o.FOMs[name]
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}

// NotEvaluable returns the indices of experiments that did not run to
// completion.
func (r *Result) NotEvaluable() []int {
	var out []int
	for _, o := range r.Experiments {
		if !o.Evaluated() {
			out = append(out, o.Index)
		}
	}
	return out
}

// FOMSummary aggregates one FOM over the experiments where it was evaluable.
// Statistics of a FOM with no values are NaN.
type FOMSummary struct {
	Name    string  `json:"name"`
	N       int     `json:"n"`
	Missing int     `json:"missing"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Median  float64 `json:"median"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// MarshalJSON writes statistics of a FOM without values as null.
func (s FOMSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name    string   `json:"name"`
		N       int      `json:"n"`
		Missing int      `json:"missing"`
		Mean    *float64 `json:"mean"`
		StdDev  *float64 `json:"std_dev"`
		Median  *float64 `json:"median"`
		Min     *float64 `json:"min"`
		Max     *float64 `json:"max"`
	}{s.Name, s.N, s.Missing, finite(s.Mean), finite(s.StdDev), finite(s.Median), finite(s.Min), finite(s.Max)})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Summary returns one FOMSummary per registered FOM, sorted by name.
func (r *Result) Summary() []FOMSummary {
	names := append([]string(nil), r.FOMNames...)
	sort.Strings(names)

	out := make([]FOMSummary, 0, len(names))
	for _, name := range names {
		var values stats.Float64Data
		for _, v := range r.Values(name) {
			if !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		s := FOMSummary{
			Name:    name,
			N:       len(values),
			Missing: len(r.Experiments) - len(values),
			Mean:    math.NaN(),
			StdDev:  math.NaN(),
			Median:  math.NaN(),
			Min:     math.NaN(),
			Max:     math.NaN(),
		}
		if len(values) > 0 {
			s.Mean, _ = values.Mean()
			s.StdDev, _ = values.StandardDeviation()
			s.Median, _ = values.Median()
			s.Min, _ = values.Min()
			s.Max, _ = values.Max()
		}
		out = append(out, s)
	}
	return out
}

// Warnings describes every experiment that was not evaluable.
func (r *Result) Warnings() []string {
	var out []string
	for _, o := range r.Experiments {
		if !o.Evaluated() {
			out = append(out, fmt.Sprintf("experiment %d (%s) not evaluable: %s", o.Index, o.Label, o.Error))
		}
	}
	return out
}
