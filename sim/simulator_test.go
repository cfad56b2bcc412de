package sim

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paint-sequencer/paint-sequencer/sim/trace"
)

// simConfig returns a short default run with the greedy drain planner.
func simConfig(horizonSeconds float64) Config {
	cfg := DefaultConfig()
	cfg.Simulation.HorizonSeconds = horizonSeconds
	cfg.Simulation.DrainExact = false
	return cfg
}

func runSim(t *testing.T, cfg Config, seed int64, opts ...SimOption) *Result {
	t.Helper()
	s, err := NewSimulator(cfg, seed, opts...)
	require.NoError(t, err)
	res, err := s.Run(t.Context())
	require.NoError(t, err)
	return res
}

func TestNewSimulator_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Controller.KMax = 0

	_, err := NewSimulator(cfg, 1)

	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSimulator_ConservesJobs(t *testing.T) {
	// GIVEN a one-hour run at the default arrival rates
	s, err := NewSimulator(simConfig(3600), 42)
	require.NoError(t, err)

	// WHEN run to the horizon
	res, err := s.Run(t.Context())
	require.NoError(t, err)

	// THEN every arrival is queued, held or withdrawn
	st := res.Stats
	assert.Positive(t, st.Arrivals)
	assert.Positive(t, st.Picks)
	assert.Equal(t, st.Arrivals, res.Plant.TotalOccupancy()+len(res.Held)+res.Plant.TotalWithdrawn())
	assert.LessOrEqual(t, st.Throughput, res.Plant.TotalWithdrawn())
	assert.NoError(t, s.CheckConservation())
	assert.InDelta(t, 3600, st.EndedSeconds, 10)
	for _, b := range res.Plant.Buffers() {
		assert.LessOrEqual(t, b.Occupancy()+b.ReserveHeadroom, b.Capacity)
	}
	for _, h := range res.Plant.History {
		assert.LessOrEqual(t, h.Count, DefaultConfig().Controller.KMax)
		assert.Positive(t, h.Count)
	}
}

func TestSimulator_DeterministicPerSeed(t *testing.T) {
	a := runSim(t, simConfig(1800), 7)
	b := runSim(t, simConfig(1800), 7)
	c := runSim(t, simConfig(1800), 8)

	assert.Equal(t, a.Stats, b.Stats)
	assert.Equal(t, a.Plant.History, b.Plant.History)
	assert.NotEqual(t, a.Plant.History, c.Plant.History)
}

func TestSimulator_O2JobsStayInHighTier(t *testing.T) {
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
	res := runSim(t, simConfig(1800), 3, WithDecisionTrace(st))

	require.NotEmpty(t, res.Trace.Assignments)
	for _, a := range res.Trace.Assignments {
		if a.Oven == string(OvenO2) && !a.Held {
			assert.Contains(t, highBuffers, a.BufferID)
		}
	}
	for _, b := range res.Plant.Buffers() {
		if containsID(lowBuffers, b.ID) {
			for _, j := range b.Items() {
				assert.Equal(t, OvenO1, j.Origin)
			}
		}
	}
}

func TestSimulator_HoldsAreReleasedAfterLimit(t *testing.T) {
	// GIVEN arrivals far faster than the conveyor can withdraw
	cfg := simConfig(900)
	cfg.Simulation.O1MeanSeconds = 0.5
	cfg.Simulation.O2MeanSeconds = 0.5
	cfg.Controller.HoldLimitSeconds = 5

	res := runSim(t, cfg, 11)

	// THEN some jobs were held and force-released, and conservation still holds
	st := res.Stats
	assert.Positive(t, st.Holds)
	assert.Positive(t, st.EmergencyReleases)
	assert.GreaterOrEqual(t, st.MeanHoldSeconds, cfg.Controller.HoldLimitSeconds)
	assert.Equal(t, st.Arrivals, res.Plant.TotalOccupancy()+len(res.Held)+res.Plant.TotalWithdrawn())
}

func TestSimulator_DrainEmptiesPlant(t *testing.T) {
	// GIVEN ovens that stop after five minutes
	cfg := simConfig(4000)
	cfg.Simulation.DrainAfterSeconds = 300

	res := runSim(t, cfg, 5)

	// THEN the drain withdraws every job, including released holds
	require.NotNil(t, res.Stats.Drain)
	assert.NotEqual(t, DrainEmpty, res.Stats.Drain.Status)
	assert.Equal(t, 0, res.Plant.TotalOccupancy())
	assert.Empty(t, res.Held)
	assert.False(t, res.Plant.Ovens[OvenO1])
	assert.False(t, res.Plant.Ovens[OvenO2])
	assert.Equal(t, res.Stats.Arrivals, res.Plant.TotalWithdrawn())
}

func TestSimulator_DrainWithExactSolver(t *testing.T) {
	cfg := simConfig(4000)
	cfg.Simulation.DrainAfterSeconds = 300
	cfg.Simulation.DrainExact = true
	cfg.Exact.Workers = 2
	cfg.Exact.TimeLimitSeconds = 0.5

	res := runSim(t, cfg, 5)

	require.NotNil(t, res.Stats.Drain)
	assert.Contains(t, []DrainStatus{DrainExactPlan, DrainGreedyPlan}, res.Stats.Drain.Status)
	assert.NotEmpty(t, res.Stats.Drain.SolverStatus)
	assert.Equal(t, 0, res.Plant.TotalOccupancy())
}

func TestSimulator_SecondDrainStartIsIgnored(t *testing.T) {
	// GIVEN a scheduled drain and a second drain start after it
	cfg := simConfig(4000)
	cfg.Simulation.DrainAfterSeconds = 300
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
	s, err := NewSimulator(cfg, 5, WithDecisionTrace(st))
	require.NoError(t, err)
	s.Schedule(&DrainStartEvent{BaseEvent: s.base(SecondsToTicks(310), EventTypeDrainStart)})

	res, err := s.Run(t.Context())
	require.NoError(t, err)

	// THEN drain mode was entered once
	entries := 0
	for _, d := range st.Drains {
		if !d.Replan {
			entries++
		}
	}
	assert.Equal(t, 1, entries)
	assert.True(t, s.Controller().Draining())
	assert.Equal(t, 0, res.Plant.TotalOccupancy())
}

func TestSimulator_ExtraOvenUsesRouteMean(t *testing.T) {
	// GIVEN a third oven feeding L1 and L2 at its own rate
	cfg := simConfig(600)
	cfg.Plant.Routing["O3"] = RouteConfig{Primary: []string{"L1", "L2"}, MeanArrivalSeconds: 20}
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})

	res := runSim(t, cfg, 6, WithDecisionTrace(st))

	// THEN O3 produces jobs, about one per 20 s, and only into its own buffers
	o3 := 0
	for _, a := range st.Assignments {
		if a.Oven != "O3" {
			continue
		}
		o3++
		if !a.Held {
			assert.Contains(t, []string{"L1", "L2"}, a.BufferID)
		}
	}
	assert.Greater(t, o3, 10)
	assert.Less(t, o3, 60)
	assert.GreaterOrEqual(t, res.Stats.Arrivals, o3)
}

func TestNewSimulator_PlantOvenWithoutMean(t *testing.T) {
	cfg := simConfig(600)
	layout := DefaultPlantConfig()
	layout.Routing["O3"] = RouteConfig{Primary: []string{"L1"}}

	_, err := NewSimulator(cfg, 1, WithPlant(NewPlant(layout)))

	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSimulator_DisabledOvenProducesNothing(t *testing.T) {
	cfg := simConfig(600)
	plant := NewPlant(cfg.Plant)
	require.NoError(t, plant.SetOvenEnabled(OvenO2, false))
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})

	res := runSim(t, cfg, 2, WithPlant(plant), WithDecisionTrace(st))

	require.NotEmpty(t, st.Assignments)
	for _, a := range st.Assignments {
		assert.Equal(t, string(OvenO1), a.Oven)
	}
	assert.Same(t, plant, res.Plant)
}

func TestSimulator_PreloadedPlant(t *testing.T) {
	// GIVEN a plant that already holds jobs
	cfg := simConfig(600)
	plant := NewPlant(cfg.Plant)
	fill(t, plant, "L2", repeat("C1", 8)...)

	res := runSim(t, cfg, 4, WithPlant(plant))

	// THEN preloaded jobs count toward conservation
	assert.Equal(t, res.Stats.Arrivals+8, res.Plant.TotalOccupancy()+len(res.Held)+res.Plant.TotalWithdrawn())
}

func TestSimulator_CancelledContext(t *testing.T) {
	s, err := NewSimulator(simConfig(600), 1)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimulator_ChangeoversCountedBetweenTrips(t *testing.T) {
	// GIVEN a pre-filled plant and no arrivals
	cfg := simConfig(600)
	plant := NewPlant(cfg.Plant)
	require.NoError(t, plant.SetOvenEnabled(OvenO1, false))
	require.NoError(t, plant.SetOvenEnabled(OvenO2, false))
	fill(t, plant, "L1", repeat("A", 6)...)
	fill(t, plant, "L2", repeat("B", 6)...)
	fill(t, plant, "L3", repeat("A", 6)...)

	res := runSim(t, cfg, 1, WithPlant(plant))

	// THEN three full-run trips A, A, B produce one changeover
	st := res.Stats
	assert.Equal(t, 3, st.Picks)
	assert.Equal(t, 18, st.Throughput)
	assert.Equal(t, 1, st.Changeovers)
	assert.InDelta(t, 6.0, st.MeanBatchSize, 1e-9)
	assert.InDelta(t, 1.0/18.0, st.ChangeoverRate(), 1e-12)
}

func TestStats_Print(t *testing.T) {
	st := Stats{Arrivals: 10, Throughput: 8, Picks: 2, Changeovers: 1, Drain: &DrainResult{Status: DrainGreedyPlan, PlanLength: 3}}
	st.observeBatch(4)
	st.observeBatch(4)
	st.finalize(SecondsToTicks(60))

	var buf bytes.Buffer
	st.Print(&buf)

	out := buf.String()
	assert.Contains(t, out, "Arrivals             : 10")
	assert.Contains(t, out, "Mean Batch Size      : 4.00")
	assert.Contains(t, out, "greedyPlan (3 entries)")
	assert.NotContains(t, out, "Mean Hold Time")
	assert.Equal(t, 60.0, st.EndedSeconds)
}
