package sim

import (
	"fmt"
	"slices"
)

// WithdrawalRecord is one main-conveyor trip in the plant history.
type WithdrawalRecord struct {
	Timestamp int64    `yaml:"timestamp"`
	BufferID  string   `yaml:"buffer_id"`
	Count     int      `yaml:"count"`
	Colors    []string `yaml:"colors"` // head first, in withdrawal order
	Operator  string   `yaml:"operator"`
}

// Gate selects one of a buffer's two independent availability gates.
type Gate string

const (
	GateInput  Gate = "input"
	GateOutput Gate = "output"
)

// PlantState is the single mutable aggregate the policies operate on.
// It is not safe for concurrent use: callers serialize decision cycles.
type PlantState struct {
	// Ovens maps oven ID to its enabled flag. Disabled ovens produce nothing.
	Ovens map[OvenID]bool
	// ConveyorBlocked stops all withdrawals while true.
	ConveyorBlocked bool
	// History is append-only.
	History []WithdrawalRecord

	layout  PlantConfig
	buffers []*BufferLine // layout order; iteration order for every policy
	index   map[string]*BufferLine
}

// NewPlant builds an empty plant from a validated layout.
func NewPlant(layout PlantConfig) *PlantState {
	p := &PlantState{layout: layout}
	p.Reset()
	return p
}

// Reset empties every buffer, reopens all gates, re-enables all ovens and
// clears the history.
func (p *PlantState) Reset() {
	p.buffers = make([]*BufferLine, 0, len(p.layout.Buffers))
	p.index = make(map[string]*BufferLine, len(p.layout.Buffers))
	for _, bc := range p.layout.Buffers {
		b := NewBufferLine(bc.ID, bc.Capacity, bc.ReserveHeadroom)
		p.buffers = append(p.buffers, b)
		p.index[b.ID] = b
	}
	p.Ovens = make(map[OvenID]bool, len(p.layout.Routing))
	for oven := range p.layout.Routing {
		p.Ovens[oven] = true
	}
	p.ConveyorBlocked = false
	p.History = nil
}

// Clone deep-copies the plant, so a simulation can run without touching live state.
func (p *PlantState) Clone() *PlantState {
	c := &PlantState{
		Ovens:           make(map[OvenID]bool, len(p.Ovens)),
		ConveyorBlocked: p.ConveyorBlocked,
		History:         slices.Clone(p.History),
		layout:          p.layout,
		buffers:         make([]*BufferLine, len(p.buffers)),
		index:           make(map[string]*BufferLine, len(p.buffers)),
	}
	for k, v := range p.Ovens {
		c.Ovens[k] = v
	}
	for i, b := range p.buffers {
		c.buffers[i] = b.clone()
		c.index[b.ID] = c.buffers[i]
	}
	return c
}

// Buffers returns the buffers in layout order.
func (p *PlantState) Buffers() []*BufferLine { return p.buffers }

// Buffer looks up a buffer by ID.
func (p *PlantState) Buffer(id string) (*BufferLine, error) {
	b, ok := p.index[id]
	if !ok {
		return nil, fmt.Errorf("buffer %q: %w", id, ErrUnknownBuffer)
	}
	return b, nil
}

// Route returns the routing tiers of an oven.
func (p *PlantState) Route(oven OvenID) (RouteConfig, error) {
	r, ok := p.layout.Routing[oven]
	if !ok {
		return RouteConfig{}, fmt.Errorf("oven %q: %w", oven, ErrUnknownOven)
	}
	return r, nil
}

// OvenIDs returns the configured ovens in sorted order.
func (p *PlantState) OvenIDs() []OvenID {
	ids := make([]OvenID, 0, len(p.layout.Routing))
	for id := range p.layout.Routing {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// TotalCapacity sums buffer capacities.
func (p *PlantState) TotalCapacity() int {
	total := 0
	for _, b := range p.buffers {
		total += b.Capacity
	}
	return total
}

// TotalOccupancy sums queued jobs over all buffers.
func (p *PlantState) TotalOccupancy() int {
	total := 0
	for _, b := range p.buffers {
		total += b.Occupancy()
	}
	return total
}

// GlobalFill returns plant-wide occupancy as a fraction of capacity.
func (p *PlantState) GlobalFill() float64 {
	return float64(p.TotalOccupancy()) / float64(max(1, p.TotalCapacity()))
}

// TotalWithdrawn sums the job counts of the history.
func (p *PlantState) TotalWithdrawn() int {
	total := 0
	for _, h := range p.History {
		total += h.Count
	}
	return total
}

// LastWithdrawnColor returns the color of the last job the conveyor took, or "".
func (p *PlantState) LastWithdrawnColor() string {
	if len(p.History) == 0 {
		return ""
	}
	last := p.History[len(p.History)-1]
	if len(last.Colors) == 0 {
		return ""
	}
	return last.Colors[len(last.Colors)-1]
}

// SetOvenEnabled switches an oven on or off.
func (p *PlantState) SetOvenEnabled(oven OvenID, enabled bool) error {
	if _, ok := p.Ovens[oven]; !ok {
		return fmt.Errorf("oven %q: %w", oven, ErrUnknownOven)
	}
	p.Ovens[oven] = enabled
	return nil
}

// ToggleOven flips an oven's enabled flag and returns the new value.
func (p *PlantState) ToggleOven(oven OvenID) (bool, error) {
	enabled, ok := p.Ovens[oven]
	if !ok {
		return false, fmt.Errorf("oven %q: %w", oven, ErrUnknownOven)
	}
	p.Ovens[oven] = !enabled
	return !enabled, nil
}

// SetBufferGate opens or closes one gate of a buffer.
func (p *PlantState) SetBufferGate(id string, gate Gate, open bool) error {
	b, err := p.Buffer(id)
	if err != nil {
		return err
	}
	switch gate {
	case GateInput:
		b.InputAvailable = open
	case GateOutput:
		b.OutputAvailable = open
	default:
		return fmt.Errorf("unknown gate %q", gate)
	}
	return nil
}

// SetConveyorBlocked marks the main conveyor as blocked or free.
func (p *PlantState) SetConveyorBlocked(blocked bool) {
	p.ConveyorBlocked = blocked
}

// queueSnapshot copies every buffer's colors, in layout order.
func (p *PlantState) queueSnapshot() []QueueSnapshot {
	snap := make([]QueueSnapshot, len(p.buffers))
	for i, b := range p.buffers {
		snap[i] = QueueSnapshot{BufferID: b.ID, Capacity: b.Capacity, Colors: b.Colors()}
	}
	return snap
}
