package sim

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/paint-sequencer/paint-sequencer/sim/solver"
)

// Config holds every tunable of the sequencing core, loadable from a YAML file.
// Sections absent from the file keep their DefaultConfig values.
type Config struct {
	Plant      PlantConfig      `yaml:"plant"`
	Controller ControllerConfig `yaml:"controller"`
	Exact      ExactConfig      `yaml:"exact"`
	Simulation SimulationConfig `yaml:"simulation"`
}

// BufferConfig describes one buffer line of the plant layout.
type BufferConfig struct {
	ID              string `yaml:"id"`
	Capacity        int    `yaml:"capacity"`
	ReserveHeadroom int    `yaml:"reserve_headroom"`
}

// RouteConfig lists the buffers an oven may feed. Primary buffers are the
// normal targets; Fallback buffers are only used when holding is disallowed.
// An oven is never placed outside Primary ∪ Fallback.
//
// MeanArrivalSeconds overrides the simulated inter-arrival mean. O1 and O2
// default to the simulation section's means; any other oven must set it.
type RouteConfig struct {
	Primary            []string `yaml:"primary"`
	Fallback           []string `yaml:"fallback,omitempty"`
	MeanArrivalSeconds float64  `yaml:"mean_arrival_seconds,omitempty"`
}

// PlantConfig groups the static plant layout.
type PlantConfig struct {
	Buffers []BufferConfig         `yaml:"buffers"`
	Routing map[OvenID]RouteConfig `yaml:"routing"`
}

// AssignmentWeights configures the arrival scoring of §Assign.
type AssignmentWeights struct {
	SameColor          float64 `yaml:"same_color"`
	TailRun            float64 `yaml:"tail_run"`
	CrossTier          float64 `yaml:"cross_tier"`
	Occupancy          float64 `yaml:"occupancy"`
	OutputDown         float64 `yaml:"output_down"`
	Diversity          float64 `yaml:"diversity"`
	DiversityThreshold int     `yaml:"diversity_threshold"`
}

// NormalWeights configures steady-state pick scoring.
type NormalWeights struct {
	RunLength          float64 `yaml:"run_length"`
	Occupancy          float64 `yaml:"occupancy"`
	Continuity         float64 `yaml:"continuity"`
	LookAhead          float64 `yaml:"look_ahead"`
	CrossBufferMatch   float64 `yaml:"cross_buffer_match"`
	CrossBufferRun     float64 `yaml:"cross_buffer_run"`
	HighOccupancyBoost float64 `yaml:"high_occupancy_boost"`
}

// DrainWeights configures the greedy drain planner.
type DrainWeights struct {
	Continuity float64 `yaml:"continuity"`
	RunLength  float64 `yaml:"run_length"`
	Chain      float64 `yaml:"chain"`
	LookAhead  float64 `yaml:"look_ahead"`
	Occupancy  float64 `yaml:"occupancy"`
	Rarity     float64 `yaml:"rarity"`
	RarityCap  float64 `yaml:"rarity_cap"`
}

// ImmediateWeights configures single-step drain decisions once a plan is exhausted.
type ImmediateWeights struct {
	Continuity float64 `yaml:"continuity"`
	RunLength  float64 `yaml:"run_length"`
	LookAhead  float64 `yaml:"look_ahead"`
	Occupancy  float64 `yaml:"occupancy"`
}

// ControllerConfig groups the online policy parameters.
type ControllerConfig struct {
	MinRun               int     `yaml:"min_run"`
	OccHigh              float64 `yaml:"occ_high"`
	GlobalHigh           float64 `yaml:"global_high"`
	HoldLimitSeconds     float64 `yaml:"hold_limit_seconds"`
	KMax                 int     `yaml:"k_max"`
	CriticalPickFraction float64 `yaml:"critical_pick_fraction"`
	ReplanAfter          int     `yaml:"replan_after"`
	ReplanMinRemaining   int     `yaml:"replan_min_remaining"`

	Assignment AssignmentWeights `yaml:"assignment"`
	Normal     NormalWeights     `yaml:"normal"`
	Drain      DrainWeights      `yaml:"drain"`
	Immediate  ImmediateWeights  `yaml:"immediate"`
}

// ExactConfig bounds the exact sequencing formulation.
type ExactConfig struct {
	ItemsPerBuffer     int           `yaml:"items_per_buffer"`
	Horizon            int           `yaml:"horizon"`
	TimeLimitSeconds   float64       `yaml:"time_limit_seconds"`
	Engine             solver.Engine `yaml:"engine"`
	Workers            int           `yaml:"workers"`
	UnscheduledPenalty float64       `yaml:"unscheduled_penalty"`
	MaxStates          int           `yaml:"max_states"`
}

// ColorWeight is one entry of the categorical color distribution.
type ColorWeight struct {
	Color  string  `yaml:"color"`
	Weight float64 `yaml:"weight"`
}

// SimulationConfig groups the discrete-event driver parameters. Times are seconds.
type SimulationConfig struct {
	O1MeanSeconds         float64       `yaml:"o1_mean_seconds"`
	O2MeanSeconds         float64       `yaml:"o2_mean_seconds"`
	HorizonSeconds        float64       `yaml:"horizon_seconds"`
	HoldCheckSeconds      float64       `yaml:"hold_check_seconds"`
	ConveyorPollSeconds   float64       `yaml:"conveyor_poll_seconds"`
	ProcessBaseSeconds    float64       `yaml:"process_base_seconds"`
	ProcessPerItemSeconds float64       `yaml:"process_per_item_seconds"`
	DrainAfterSeconds     float64       `yaml:"drain_after_seconds"` // 0 = never
	DrainExact            bool          `yaml:"drain_exact"`
	Colors                []ColorWeight `yaml:"colors"`
}

// DefaultColors is the categorical color mix produced by the ovens.
func DefaultColors() []ColorWeight {
	return []ColorWeight{
		{"C1", 0.40}, {"C2", 0.25}, {"C3", 0.12}, {"C4", 0.08},
		{"C5", 0.03}, {"C6", 0.02}, {"C7", 0.02}, {"C8", 0.02},
		{"C9", 0.02}, {"C10", 0.02}, {"C11", 0.02}, {"C12", 0.01},
	}
}

// DefaultPlantConfig returns the two-oven, nine-line layout: L1..L4 hold 14
// jobs, L5..L9 hold 16 with one reserved slot. O1 feeds L1..L4 and may spill
// into L5..L9; O2 feeds L5..L9 only.
func DefaultPlantConfig() PlantConfig {
	var buffers []BufferConfig
	var low, high []string
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("L%d", i)
		buffers = append(buffers, BufferConfig{ID: id, Capacity: 14})
		low = append(low, id)
	}
	for i := 5; i <= 9; i++ {
		id := fmt.Sprintf("L%d", i)
		buffers = append(buffers, BufferConfig{ID: id, Capacity: 16, ReserveHeadroom: 1})
		high = append(high, id)
	}
	return PlantConfig{
		Buffers: buffers,
		Routing: map[OvenID]RouteConfig{
			OvenO1: {Primary: low, Fallback: high},
			OvenO2: {Primary: high},
		},
	}
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		Plant: DefaultPlantConfig(),
		Controller: ControllerConfig{
			MinRun:               6,
			OccHigh:              0.85,
			GlobalHigh:           0.9,
			HoldLimitSeconds:     30,
			KMax:                 20,
			CriticalPickFraction: 0.2,
			ReplanAfter:          5,
			ReplanMinRemaining:   3,
			Assignment: AssignmentWeights{
				SameColor:          10,
				TailRun:            2,
				CrossTier:          20,
				Occupancy:          1,
				OutputDown:         50,
				Diversity:          3,
				DiversityThreshold: 3,
			},
			Normal: NormalWeights{
				RunLength:          2,
				Occupancy:          5,
				Continuity:         20,
				LookAhead:          5,
				CrossBufferMatch:   3,
				CrossBufferRun:     0.5,
				HighOccupancyBoost: 50,
			},
			Drain: DrainWeights{
				Continuity: 100,
				RunLength:  10,
				Chain:      15,
				LookAhead:  5,
				Occupancy:  20,
				Rarity:     20,
				RarityCap:  20,
			},
			Immediate: ImmediateWeights{
				Continuity: 50,
				RunLength:  10,
				LookAhead:  5,
				Occupancy:  20,
			},
		},
		Exact: ExactConfig{
			ItemsPerBuffer:     10,
			Horizon:            50,
			TimeLimitSeconds:   10,
			Engine:             solver.EnginePortfolio,
			Workers:            8,
			UnscheduledPenalty: 0.01,
			MaxStates:          2_000_000,
		},
		Simulation: SimulationConfig{
			O1MeanSeconds:         6,
			O2MeanSeconds:         6,
			HorizonSeconds:        3600,
			HoldCheckSeconds:      1,
			ConveyorPollSeconds:   1,
			ProcessBaseSeconds:    5,
			ProcessPerItemSeconds: 0.5,
			DrainExact:            true,
			Colors:                DefaultColors(),
		},
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig and validates it.
// Unknown fields are rejected so that typos surface as errors. A routing
// table in the file replaces the default one as a whole.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig()
	defaultRouting := cfg.Plant.Routing
	cfg.Plant.Routing = nil
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Plant.Routing == nil {
		cfg.Plant.Routing = defaultRouting
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// ArrivalMeanSeconds returns the mean inter-arrival time of oven. A route
// override wins; O1 and O2 fall back to the simulation section. Other ovens
// without an override get 0, which Validate rejects.
func (c *Config) ArrivalMeanSeconds(oven OvenID) float64 {
	if r, ok := c.Plant.Routing[oven]; ok && r.MeanArrivalSeconds != 0 {
		return r.MeanArrivalSeconds
	}
	switch oven {
	case OvenO1:
		return c.Simulation.O1MeanSeconds
	case OvenO2:
		return c.Simulation.O2MeanSeconds
	}
	return 0
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks layout consistency and parameter ranges.
func (c *Config) Validate() error {
	if len(c.Plant.Buffers) == 0 {
		return invalid("plant has no buffers")
	}
	ids := make(map[string]bool, len(c.Plant.Buffers))
	for _, b := range c.Plant.Buffers {
		if b.ID == "" {
			return invalid("buffer with empty id")
		}
		if ids[b.ID] {
			return invalid("duplicate buffer %q", b.ID)
		}
		ids[b.ID] = true
		if b.Capacity <= 0 {
			return invalid("buffer %q capacity must be positive, got %d", b.ID, b.Capacity)
		}
		if b.ReserveHeadroom < 0 || b.ReserveHeadroom >= b.Capacity {
			return invalid("buffer %q reserve_headroom %d outside [0,%d)", b.ID, b.ReserveHeadroom, b.Capacity)
		}
	}
	if len(c.Plant.Routing) == 0 {
		return invalid("plant has no oven routing")
	}
	for oven, r := range c.Plant.Routing {
		if len(r.Primary) == 0 {
			return invalid("oven %q has no primary buffers", oven)
		}
		seen := make(map[string]bool)
		for _, id := range append(append([]string{}, r.Primary...), r.Fallback...) {
			if !ids[id] {
				return invalid("oven %q routes to unknown buffer %q", oven, id)
			}
			if seen[id] {
				return invalid("oven %q lists buffer %q twice", oven, id)
			}
			seen[id] = true
		}
		if m := c.ArrivalMeanSeconds(oven); math.IsNaN(m) || math.IsInf(m, 0) || m <= 0 {
			return invalid("oven %q needs a finite positive mean_arrival_seconds, got %v", oven, m)
		}
	}

	cc := c.Controller
	if cc.MinRun < 1 {
		return invalid("min_run must be >= 1, got %d", cc.MinRun)
	}
	if cc.KMax < 1 {
		return invalid("k_max must be >= 1, got %d", cc.KMax)
	}
	for name, f := range map[string]float64{
		"occ_high":               cc.OccHigh,
		"global_high":            cc.GlobalHigh,
		"critical_pick_fraction": cc.CriticalPickFraction,
	} {
		if math.IsNaN(f) || f <= 0 || f > 1 {
			return invalid("%s must be in (0,1], got %v", name, f)
		}
	}
	if cc.HoldLimitSeconds < 0 {
		return invalid("hold_limit_seconds must be non-negative, got %v", cc.HoldLimitSeconds)
	}
	if cc.ReplanAfter < 1 || cc.ReplanMinRemaining < 0 {
		return invalid("replan_after must be >= 1 and replan_min_remaining >= 0")
	}

	e := c.Exact
	if e.ItemsPerBuffer < 1 || e.Horizon < 1 || e.Workers < 1 || e.MaxStates < 1 {
		return invalid("exact items_per_buffer, horizon, workers and max_states must be >= 1")
	}
	if e.TimeLimitSeconds <= 0 || e.UnscheduledPenalty < 0 {
		return invalid("exact time_limit_seconds must be positive and unscheduled_penalty non-negative")
	}
	if !e.Engine.Valid() {
		return invalid("unknown exact engine %q", e.Engine)
	}

	s := c.Simulation
	for name, v := range map[string]float64{
		"o1_mean_seconds":       s.O1MeanSeconds,
		"o2_mean_seconds":       s.O2MeanSeconds,
		"horizon_seconds":       s.HorizonSeconds,
		"hold_check_seconds":    s.HoldCheckSeconds,
		"conveyor_poll_seconds": s.ConveyorPollSeconds,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return invalid("%s must be a finite positive number, got %v", name, v)
		}
	}
	if s.ProcessBaseSeconds < 0 || s.ProcessPerItemSeconds < 0 || s.DrainAfterSeconds < 0 {
		return invalid("process and drain times must be non-negative")
	}
	if len(s.Colors) == 0 {
		return invalid("simulation has no colors")
	}
	for _, cw := range s.Colors {
		if cw.Color == "" || cw.Weight <= 0 || math.IsNaN(cw.Weight) {
			return invalid("color %q weight must be positive, got %v", cw.Color, cw.Weight)
		}
	}
	return nil
}
