package telemetry

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paint-sequencer/paint-sequencer/sim"
	"github.com/paint-sequencer/paint-sequencer/sim/solver"
)

func TestPrometheusObserver_CountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.RecordArrival(sim.OvenO1)
	p.RecordArrival(sim.OvenO1)
	p.RecordArrival(sim.OvenO2)
	p.RecordAssignment(sim.OvenO1, sim.AssignResult{BufferID: "L1"})
	p.RecordAssignment(sim.OvenO1, sim.AssignResult{Held: true})
	p.RecordAssignment(sim.OvenO1, sim.AssignResult{BufferID: "L6", Emergency: true})
	p.RecordRelease(sim.OvenO1, sim.Release{JobID: "j", BufferID: "L5", Emergency: true})
	p.RecordPick("L1", 4, "normal")
	p.RecordPick("L1", 2, "normal")
	p.RecordChangeovers(3)
	p.SetOccupancy("L1", 7)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.arrivals.WithLabelValues("O1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.arrivals.WithLabelValues("O2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.assignments.WithLabelValues("O1", "held")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.assignments.WithLabelValues("O1", "emergency")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.assignments.WithLabelValues("O1", "primary")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.releases.WithLabelValues("O1", "true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.picks.WithLabelValues("L1", "normal")))
	assert.Equal(t, 6.0, testutil.ToFloat64(p.pickedJobs.WithLabelValues("L1")))
	assert.Equal(t, 3.0, testutil.ToFloat64(p.changeovers))
	assert.Equal(t, 7.0, testutil.ToFloat64(p.occupancy.WithLabelValues("L1")))
}

func TestPrometheusObserver_DrainPlan(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.RecordDrainPlan(sim.DrainResult{Status: sim.DrainExactPlan, PlanLength: 5, SolverStatus: solver.StatusOptimal}, false)
	p.RecordDrainPlan(sim.DrainResult{Status: sim.DrainGreedyPlan, PlanLength: 3}, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.drainPlans.WithLabelValues("exactPlan", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.drainPlans.WithLabelValues("greedyPlan", "true")))
	assert.Equal(t, 3.0, testutil.ToFloat64(p.planLength))

	expected := `
# HELP test_drain_plan_entries Entries in the most recently built drain plan.
# TYPE test_drain_plan_entries gauge
test_drain_plan_entries 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_drain_plan_entries"))
	count, err := testutil.GatherAndCount(reg, "test_drain_solver_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPrometheusObserver_DefaultNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "")
	p.RecordChangeovers(1)

	count, err := testutil.GatherAndCount(reg, "paint_sequencer_conveyor_changeovers_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPrometheusObserver_DrivesSimulation(t *testing.T) {
	// GIVEN a short simulation wired to a Prometheus observer
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "run")
	cfg := sim.DefaultConfig()
	cfg.Simulation.HorizonSeconds = 300
	s, err := sim.NewSimulator(cfg, 11, sim.WithMetrics(p))
	require.NoError(t, err)

	// WHEN it runs
	res, err := s.Run(t.Context())
	require.NoError(t, err)

	// THEN the arrival counters match the run statistics
	total := testutil.ToFloat64(p.arrivals.WithLabelValues("O1")) + testutil.ToFloat64(p.arrivals.WithLabelValues("O2"))
	assert.Equal(t, float64(res.Stats.Arrivals), total)
	assert.Equal(t, float64(res.Stats.Changeovers), testutil.ToFloat64(p.changeovers))
}
