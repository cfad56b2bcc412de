package sim

import (
	"context"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/paint-sequencer/paint-sequencer/sim/trace"
	"github.com/paint-sequencer/paint-sequencer/sim/workload"
)

// Simulator drives the controller in virtual time: oven arrivals, the hold
// monitor and the conveyor worker are event sources on one heap, so all
// state changes happen on a single goroutine in a seed-determined order.
type Simulator struct {
	cfg      Config
	plant    *PlantState
	ctl      *Controller
	clock    *ManualClock
	events   *EventHeap
	horizon  int64
	rng      *PartitionedRNG
	arrivals map[OvenID]workload.ArrivalSampler
	colors   *workload.ColorSampler
	ids      *workload.IDSource
	observer Observer
	trace    *trace.SimulationTrace

	held      []*Job
	stats     Stats
	lastColor string // last color of the previous completed trip
	preloaded int    // jobs already queued or withdrawn when the run was built
	nextID    uint64
	err       error
}

// SimOption configures a Simulator.
type SimOption func(*Simulator)

// WithPlant runs the simulation on an existing plant instead of an empty one.
func WithPlant(p *PlantState) SimOption {
	return func(s *Simulator) { s.plant = p }
}

// WithMetrics attaches an observer to the simulator and its controller.
func WithMetrics(o Observer) SimOption {
	return func(s *Simulator) { s.observer = o }
}

// WithDecisionTrace records controller decisions into st.
func WithDecisionTrace(st *trace.SimulationTrace) SimOption {
	return func(s *Simulator) { s.trace = st }
}

// Result is what a finished run returns.
type Result struct {
	Stats Stats
	Plant *PlantState
	Held  []*Job
	Trace *trace.SimulationTrace
}

// NewSimulator validates cfg and prepares a run seeded by seed.
func NewSimulator(cfg Config, seed int64, opts ...SimOption) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Simulator{
		cfg:      cfg,
		clock:    &ManualClock{},
		events:   NewEventHeap(),
		horizon:  SecondsToTicks(cfg.Simulation.HorizonSeconds),
		rng:      NewPartitionedRNG(NewSimulationKey(seed)),
		arrivals: make(map[OvenID]workload.ArrivalSampler),
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.plant == nil {
		s.plant = NewPlant(cfg.Plant)
	}
	s.preloaded = s.plant.TotalOccupancy() + s.plant.TotalWithdrawn()

	names := make([]string, len(cfg.Simulation.Colors))
	weights := make([]float64, len(cfg.Simulation.Colors))
	for i, cw := range cfg.Simulation.Colors {
		names[i], weights[i] = cw.Color, cw.Weight
	}
	colors, err := workload.NewColorSampler(names, weights, s.rng.ForSubsystem(SubsystemColors))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	s.colors = colors
	s.ids = workload.NewIDSource(s.rng.Reader(SubsystemJobIDs))
	for _, oven := range s.plant.OvenIDs() {
		mean := cfg.ArrivalMeanSeconds(oven)
		if mean <= 0 {
			return nil, fmt.Errorf("%w: oven %q has no arrival mean", ErrInvalidConfig, oven)
		}
		s.arrivals[oven] = workload.NewExponentialSampler(float64(SecondsToTicks(mean)), s.rng.ForSubsystem(SubsystemOven(oven)))
	}

	s.ctl = NewController(s.plant, cfg, WithClock(s.clock), WithObserver(s.observer), WithTrace(s.trace))
	return s, nil
}

// Controller returns the controller driven by the simulator.
func (s *Simulator) Controller() *Controller { return s.ctl }

// Plant returns the simulated plant.
func (s *Simulator) Plant() *PlantState { return s.plant }

// Held returns the jobs currently waiting at their ovens.
func (s *Simulator) Held() []*Job { return s.held }

// Stats returns the running statistics.
func (s *Simulator) Stats() Stats { return s.stats }

// Now returns the current virtual time in ticks.
func (s *Simulator) Now() int64 { return s.clock.Now() }

func (s *Simulator) base(ts int64, t EventType) BaseEvent {
	s.nextID++
	return BaseEvent{timestamp: ts, eventID: s.nextID, eventType: t}
}

// Schedule pushes an event onto the heap.
func (s *Simulator) Schedule(ev Event) {
	s.events.Schedule(ev)
}

// fail records the first fatal error; Run stops after the current event.
func (s *Simulator) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

// Run executes events until the horizon passes, the heap empties, ctx is
// cancelled or a capacity/routing violation aborts the run.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	for _, oven := range s.plant.OvenIDs() {
		s.scheduleArrival(oven, 0)
	}
	s.Schedule(&HoldCheckEvent{BaseEvent: s.base(0, EventTypeHoldCheck)})
	s.Schedule(&ConveyorPollEvent{BaseEvent: s.base(0, EventTypeConveyorPoll)})
	if sc := s.cfg.Simulation; sc.DrainAfterSeconds > 0 {
		s.Schedule(&DrainStartEvent{
			BaseEvent: s.base(SecondsToTicks(sc.DrainAfterSeconds), EventTypeDrainStart),
			UseExact:  sc.DrainExact,
		})
	}

	for s.events.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.events.Peek().Timestamp() > s.horizon {
			break
		}
		ev := s.events.PopNext()
		s.clock.Set(ev.Timestamp())
		logrus.Debugf("[tick %07d] Executing %s", s.clock.Now(), ev.Type())
		ev.Execute(ctx, s)
		if s.err != nil {
			return nil, s.err
		}
	}
	if err := s.CheckConservation(); err != nil {
		return nil, err
	}
	s.stats.finalize(min(s.clock.Now(), s.horizon))
	logrus.Infof("[tick %07d] Simulation ended", s.clock.Now())
	return &Result{Stats: s.stats, Plant: s.plant, Held: s.held, Trace: s.trace}, nil
}

// CheckConservation verifies arrivals = queued + held + withdrawn, counting
// jobs present on a preloaded plant as arrivals.
func (s *Simulator) CheckConservation() error {
	queued, held, withdrawn := s.plant.TotalOccupancy(), len(s.held), s.plant.TotalWithdrawn()
	if arrivals := s.stats.Arrivals + s.preloaded; arrivals != queued+held+withdrawn {
		return fmt.Errorf("job conservation violated: %d arrivals != %d queued + %d held + %d withdrawn",
			arrivals, queued, held, withdrawn)
	}
	return nil
}

func (s *Simulator) scheduleArrival(oven OvenID, now int64) {
	at := now + s.arrivals[oven].SampleIAT()
	s.Schedule(&OvenArrivalEvent{BaseEvent: s.base(at, EventTypeOvenArrival), Oven: oven})
}

func (s *Simulator) handleArrival(e *OvenArrivalEvent) {
	now := e.Timestamp()
	defer s.scheduleArrival(e.Oven, now)
	if !s.plant.Ovens[e.Oven] {
		return
	}
	id, err := s.ids.Next()
	if err != nil {
		s.fail(fmt.Errorf("job id: %w", err))
		return
	}
	job := NewJob(id, s.colors.Next(), e.Oven, now)
	s.stats.Arrivals++
	s.observer.RecordArrival(e.Oven)
	res, err := s.ctl.Assign(job, true)
	if err != nil {
		s.fail(fmt.Errorf("tick %d: %w", now, err))
		return
	}
	switch {
	case res.Held:
		s.held = append(s.held, job)
		s.stats.Holds++
	case res.Emergency:
		s.stats.CrossSends++
	}
}

func (s *Simulator) handleHoldCheck(e *HoldCheckEvent) {
	now := e.Timestamp()
	s.Schedule(&HoldCheckEvent{BaseEvent: s.base(now+SecondsToTicks(s.cfg.Simulation.HoldCheckSeconds), EventTypeHoldCheck)})
	expired := s.ctl.ExpiredHolds(s.held)
	if len(expired) == 0 {
		return
	}
	heldFor := make(map[string]int64, len(expired))
	for _, j := range expired {
		heldFor[j.ID] = j.HeldFor(now)
	}
	released := make(map[string]bool)
	for _, rel := range s.ctl.EmergencyRelease(expired) {
		released[rel.JobID] = true
		s.stats.EmergencyReleases++
		s.stats.observeHold(TicksToSeconds(heldFor[rel.JobID]))
		if rel.Emergency {
			s.stats.CrossSends++
		}
	}
	s.held = slices.DeleteFunc(s.held, func(j *Job) bool { return released[j.ID] })
}

func (s *Simulator) handleConveyorPoll(e *ConveyorPollEvent) {
	now := e.Timestamp()
	d, ok := s.ctl.DecidePick()
	if ok {
		jobs, err := s.ctl.ExecutePick(d.BufferID, d.Count, string(d.Mode))
		if err != nil {
			s.fail(fmt.Errorf("tick %d: %w", now, err))
			return
		}
		if len(jobs) > 0 {
			colors := make([]string, len(jobs))
			for i, j := range jobs {
				colors[i] = j.Color
			}
			s.stats.Picks++
			s.stats.observeBatch(len(jobs))
			sc := s.cfg.Simulation
			done := now + SecondsToTicks(sc.ProcessBaseSeconds+sc.ProcessPerItemSeconds*float64(len(jobs)))
			s.Schedule(&ConveyorDoneEvent{
				BaseEvent: s.base(done, EventTypeConveyorDone),
				BufferID:  d.BufferID,
				Colors:    colors,
			})
			return
		}
	}
	s.schedulePoll(now)
}

func (s *Simulator) schedulePoll(now int64) {
	s.Schedule(&ConveyorPollEvent{BaseEvent: s.base(now+SecondsToTicks(s.cfg.Simulation.ConveyorPollSeconds), EventTypeConveyorPoll)})
}

func (s *Simulator) handleConveyorDone(e *ConveyorDoneEvent) {
	s.stats.Throughput += len(e.Colors)
	if s.lastColor != "" && e.Colors[0] != s.lastColor {
		s.stats.Changeovers++
		s.observer.RecordChangeovers(1)
	}
	s.lastColor = e.Colors[len(e.Colors)-1]
	s.schedulePoll(e.Timestamp())
}

func (s *Simulator) handleDrainStart(ctx context.Context, e *DrainStartEvent) {
	if s.ctl.Draining() {
		logrus.Debugf("[tick %07d] already draining, ignoring drain start", s.clock.Now())
		return
	}
	for _, oven := range s.plant.OvenIDs() {
		if err := s.plant.SetOvenEnabled(oven, false); err != nil {
			s.fail(err)
			return
		}
	}
	res := s.ctl.EnterDrain(ctx, e.UseExact)
	s.stats.Drain = &res
}
