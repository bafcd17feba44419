/*
Package metrics exposes Prometheus collectors for tree fits. A nil
*Collector is valid and records nothing, so code growing trees can always
report to one.
*/
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ptree"

// Collector holds the metrics of the fits run with it.
type Collector struct {
	candidates *prometheus.CounterVec
	splits     prometheus.Counter
	leaves     *prometheus.CounterVec
	rounds     prometheus.Counter
	fitSeconds prometheus.Histogram
}

/*
New takes a prometheus.Registerer and returns a Collector whose metrics are
registered on it. It panics if they are already registered, like promauto.
*/
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		candidates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Split candidates considered, by outcome (scored, infeasible, discarded).",
		}, []string{"outcome"}),
		splits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "splits_committed_total",
			Help:      "Splits committed to grown trees.",
		}),
		leaves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leaves_total",
			Help:      "Leaves of grown trees by the reason they were not split.",
		}, []string{"reason"}),
		rounds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boosting_rounds_total",
			Help:      "Boosting rounds completed.",
		}),
		fitSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fit_duration_seconds",
			Help:      "Duration of complete boosting fits.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
	}
}

// Candidates adds n candidates with the given outcome.
func (c *Collector) Candidates(outcome string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.candidates.WithLabelValues(outcome).Add(float64(n))
}

// Split counts a committed split.
func (c *Collector) Split() {
	if c == nil {
		return
	}
	c.splits.Inc()
}

// Leaf counts a leaf with the given reason.
func (c *Collector) Leaf(reason string) {
	if c == nil {
		return
	}
	c.leaves.WithLabelValues(reason).Inc()
}

// Round counts a completed boosting round.
func (c *Collector) Round() {
	if c == nil {
		return
	}
	c.rounds.Inc()
}

// Fit observes the duration of a fit started at the given time.
func (c *Collector) Fit(start time.Time) {
	if c == nil {
		return
	}
	c.fitSeconds.Observe(time.Since(start).Seconds())
}
