// Package telemetry exports sequencing events as Prometheus metrics.
package telemetry

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/paint-sequencer/paint-sequencer/sim"
)

// PrometheusObserver implements sim.Observer backed by Prometheus.
type PrometheusObserver struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	arrivals      *prometheus.CounterVec
	assignments   *prometheus.CounterVec
	releases      *prometheus.CounterVec
	picks         *prometheus.CounterVec
	pickedJobs    *prometheus.CounterVec
	changeovers   prometheus.Counter
	occupancy     *prometheus.GaugeVec
	drainPlans    *prometheus.CounterVec
	planLength    prometheus.Gauge
	solverSeconds prometheus.Histogram
}

// Compile-time assertion that PrometheusObserver implements sim.Observer.
var _ sim.Observer = (*PrometheusObserver)(nil)

// NewPrometheus creates a Prometheus-backed observer.
//
// Parameters:
//   - reg: Prometheus registerer (uses prometheus.DefaultRegisterer if nil)
//   - namespace: metrics namespace (defaults to "paint_sequencer" if empty)
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusObserver {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "paint_sequencer"
	}
	p := &PrometheusObserver{reg: reg, namespace: namespace}
	p.ensureRegistered()
	return p
}

func (p *PrometheusObserver) ensureRegistered() {
	p.once.Do(func() {
		p.arrivals = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "oven",
			Name:      "arrivals_total",
			Help:      "Jobs produced by each oven.",
		}, []string{"oven"})
		p.assignments = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "assignment",
			Name:      "decisions_total",
			Help:      "Arrival placements by oven and outcome (primary, emergency, held).",
		}, []string{"oven", "outcome"})
		p.releases = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "assignment",
			Name:      "hold_releases_total",
			Help:      "Held jobs force-released after the hold limit, by oven and cross-tier flag.",
		}, []string{"oven", "emergency"})
		p.picks = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "conveyor",
			Name:      "picks_total",
			Help:      "Withdrawals onto the main conveyor by buffer and operator tag.",
		}, []string{"buffer", "operator"})
		p.pickedJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "conveyor",
			Name:      "withdrawn_jobs_total",
			Help:      "Jobs withdrawn onto the main conveyor by buffer.",
		}, []string{"buffer"})
		p.changeovers = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "conveyor",
			Name:      "changeovers_total",
			Help:      "Color changeovers between consecutive conveyor trips.",
		})
		p.occupancy = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "buffer",
			Name:      "occupancy",
			Help:      "Jobs currently queued per buffer line.",
		}, []string{"buffer"})
		p.drainPlans = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "drain",
			Name:      "plans_total",
			Help:      "Drain plans built, by status and whether they were replans.",
		}, []string{"status", "replan"})
		p.planLength = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "drain",
			Name:      "plan_entries",
			Help:      "Entries in the most recently built drain plan.",
		})
		p.solverSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "drain",
			Name:      "solver_seconds",
			Help:      "Wall time spent in the exact solver per drain entry.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 9), // 1ms .. ~65s
		})

		p.reg.MustRegister(
			p.arrivals, p.assignments, p.releases,
			p.picks, p.pickedJobs, p.changeovers, p.occupancy,
			p.drainPlans, p.planLength, p.solverSeconds,
		)
	})
}

// RecordArrival implements sim.Observer.
func (p *PrometheusObserver) RecordArrival(oven sim.OvenID) {
	p.arrivals.WithLabelValues(string(oven)).Inc()
}

// RecordAssignment implements sim.Observer.
func (p *PrometheusObserver) RecordAssignment(oven sim.OvenID, res sim.AssignResult) {
	outcome := "primary"
	switch {
	case res.Held:
		outcome = "held"
	case res.Emergency:
		outcome = "emergency"
	}
	p.assignments.WithLabelValues(string(oven), outcome).Inc()
}

// RecordRelease implements sim.Observer.
func (p *PrometheusObserver) RecordRelease(oven sim.OvenID, rel sim.Release) {
	p.releases.WithLabelValues(string(oven), strconv.FormatBool(rel.Emergency)).Inc()
}

// RecordPick implements sim.Observer.
func (p *PrometheusObserver) RecordPick(bufferID string, count int, operator string) {
	p.picks.WithLabelValues(bufferID, operator).Inc()
	p.pickedJobs.WithLabelValues(bufferID).Add(float64(count))
}

// RecordChangeovers implements sim.Observer.
func (p *PrometheusObserver) RecordChangeovers(n int) {
	p.changeovers.Add(float64(n))
}

// SetOccupancy implements sim.Observer.
func (p *PrometheusObserver) SetOccupancy(bufferID string, occupancy int) {
	p.occupancy.WithLabelValues(bufferID).Set(float64(occupancy))
}

// RecordDrainPlan implements sim.Observer.
func (p *PrometheusObserver) RecordDrainPlan(res sim.DrainResult, replan bool) {
	p.drainPlans.WithLabelValues(string(res.Status), strconv.FormatBool(replan)).Inc()
	p.planLength.Set(float64(res.PlanLength))
	if res.SolverStatus != "" {
		p.solverSeconds.Observe(res.SolverTime.Seconds())
	}
}
