package sim

import (
	"fmt"

	"github.com/paint-sequencer/paint-sequencer/sim/trace"
)

// Controller runs the online sequencing policies against one PlantState:
// arrival assignment, pick decisions and the drain scheduler.
// Calls must be serialized by the caller; the controller holds no locks.
type Controller struct {
	plant    *PlantState
	cfg      ControllerConfig
	exact    ExactConfig
	clock    Clock
	observer Observer
	trace    *trace.SimulationTrace

	drain drainState
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the time source used for hold stamps and history records.
func WithClock(c Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(ctl *Controller) { ctl.observer = o }
}

// WithTrace records every decision into st when its level is "decisions".
func WithTrace(st *trace.SimulationTrace) Option {
	return func(ctl *Controller) { ctl.trace = st }
}

// NewController binds the policies to plant. cfg must be validated.
func NewController(plant *PlantState, cfg Config, opts ...Option) *Controller {
	if plant == nil {
		panic("NewController: plant must not be nil")
	}
	if cfg.Controller.KMax < 1 {
		panic(fmt.Sprintf("NewController: KMax must be >= 1, got %d", cfg.Controller.KMax))
	}
	c := &Controller{
		plant:    plant,
		cfg:      cfg.Controller,
		exact:    cfg.Exact,
		clock:    WallClock{},
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Plant returns the plant the controller operates on.
func (c *Controller) Plant() *PlantState { return c.plant }

// Now returns the controller clock reading.
func (c *Controller) Now() int64 { return c.clock.Now() }

func (c *Controller) publishOccupancy(b *BufferLine) {
	c.observer.SetOccupancy(b.ID, b.Occupancy())
}
