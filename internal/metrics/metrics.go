package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Experiment outcome labels.
const (
	StatusEvaluated    = "evaluated"
	StatusNotEvaluable = "not_evaluable"
)

// Recorder holds the counters updated by scanners, stage runners and
// stability testers. A nil *Recorder is valid and records nothing.
type Recorder struct {
	pointsEvaluated prometheus.Counter
	experiments     *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
}

// NewRecorder creates the collectors and registers them on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		pointsEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clusterkit",
			Name:      "points_evaluated_total",
			Help:      "Sample points evaluated by the model function.",
		}),
		experiments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clusterkit",
			Name:      "experiments_total",
			Help:      "Stability experiments by outcome.",
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clusterkit",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of worker runs.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
	}
	for _, c := range []prometheus.Collector{r.pointsEvaluated, r.experiments, r.stageDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// PointsEvaluated adds n model evaluations.
func (r *Recorder) PointsEvaluated(n int) {
	if r == nil {
		return
	}
	r.pointsEvaluated.Add(float64(n))
}

// Experiment counts one experiment with the given status.
func (r *Recorder) Experiment(status string) {
	if r == nil {
		return
	}
	r.experiments.WithLabelValues(status).Inc()
}

// StageDuration observes the wall time of one stage run.
func (r *Recorder) StageDuration(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
