// Package solver sequences head-of-line items from several FIFO buffers onto
// a bounded horizon of conveyor slots so that color changeovers are minimal.
//
// # Formulation
//
// For items s (taken from the heads of the buffers, head first) and slots
// t = 0..T-1 with T = min(horizon, #items):
//
//   - x[t,s] ∈ {0,1}: item s occupies slot t
//   - Σ_s x[t,s] <= 1 for every slot (a)
//   - Σ_t x[t,s] <= 1 for every item (b)
//   - items of one buffer keep their relative order when both are scheduled (c)
//   - y[t,c] = Σ_{s: color(s)=c} x[t,s] is the color of slot t (d)
//   - z[t] = 1 iff slots t-1 and t are both occupied with different colors (e)
//
// minimize Σ_t z[t] + penalty × #unscheduled.
//
// Two execution constraints tighten the model: the scheduled items of a
// buffer form a head prefix, and occupied slots are contiguous from slot 0.
// A plan is replayed as back-to-back head pops, so sequences violating
// either constraint could not be executed as written.
//
// Solve hands the model to two engines that share an incumbent: the
// pseudo-boolean encoding optimized by gophersat, and depth-first branch and
// bound over (items taken per buffer, last color) with memoized dominance.
package solver

import (
	"errors"
	"fmt"
)

// Item is one job considered by the model.
type Item struct {
	BufferID string
	Color    string
	JobID    string
}

// BufferItems lists a buffer's head items, head first.
type BufferItems struct {
	BufferID string
	Items    []Item
}

// Model is the instantiated formulation.
type Model struct {
	Items   []Item  // flat item list, buffer-major
	Buffers [][]int // item indices per buffer, head first
	Slots   int     // T
	Colors  []string
	Penalty float64 // objective weight per unscheduled item

	bufferIDs []string
	itemColor []int // color index per item
}

// NewModel builds the model over at most perBuffer head items of each buffer.
// Buffers without items are dropped.
func NewModel(buffers []BufferItems, perBuffer, horizon int, penalty float64) *Model {
	if perBuffer < 1 || horizon < 1 {
		panic(fmt.Sprintf("NewModel: perBuffer (%d) and horizon (%d) must be >= 1", perBuffer, horizon))
	}
	if perBuffer > 255 {
		perBuffer = 255 // state keys store counts in one byte
	}
	m := &Model{Penalty: penalty}
	colorIdx := make(map[string]int)
	for _, b := range buffers {
		items := b.Items
		if len(items) > perBuffer {
			items = items[:perBuffer]
		}
		if len(items) == 0 {
			continue
		}
		idx := make([]int, 0, len(items))
		for _, it := range items {
			ci, ok := colorIdx[it.Color]
			if !ok {
				ci = len(m.Colors)
				colorIdx[it.Color] = ci
				m.Colors = append(m.Colors, it.Color)
			}
			idx = append(idx, len(m.Items))
			m.Items = append(m.Items, it)
			m.itemColor = append(m.itemColor, ci)
		}
		m.Buffers = append(m.Buffers, idx)
		m.bufferIDs = append(m.bufferIDs, b.BufferID)
	}
	m.Slots = min(horizon, len(m.Items))
	return m
}

// NumItems returns the number of items in the model.
func (m *Model) NumItems() int { return len(m.Items) }

// Slot is one scheduled item.
type Slot struct {
	Slot     int
	BufferID string
	Color    string
	JobID    string
}

// ErrConstraintViolated is returned by Evaluate for sequences outside the model.
var ErrConstraintViolated = errors.New("constraint violated")

// Evaluate checks a slot-ordered sequence against every constraint of the
// model and returns its changeover count and objective value.
func (m *Model) Evaluate(seq []Slot) (int, float64, error) {
	if len(seq) > m.Slots {
		return 0, 0, fmt.Errorf("%d scheduled items exceed %d slots: %w", len(seq), m.Slots, ErrConstraintViolated)
	}
	pos := make(map[string]int, len(m.Buffers)) // next head index per buffer
	bufIdx := make(map[string]int, len(m.bufferIDs))
	for i, id := range m.bufferIDs {
		bufIdx[id] = i
	}
	changeovers := 0
	for t, s := range seq {
		if s.Slot != t {
			return 0, 0, fmt.Errorf("slot %d holds position %d; occupied slots must be contiguous: %w", t, s.Slot, ErrConstraintViolated)
		}
		b, ok := bufIdx[s.BufferID]
		if !ok {
			return 0, 0, fmt.Errorf("slot %d references unknown buffer %q: %w", t, s.BufferID, ErrConstraintViolated)
		}
		p := pos[s.BufferID]
		if p >= len(m.Buffers[b]) {
			return 0, 0, fmt.Errorf("slot %d takes more items from %q than modeled: %w", t, s.BufferID, ErrConstraintViolated)
		}
		item := m.Items[m.Buffers[b][p]]
		if item.JobID != s.JobID || item.Color != s.Color {
			return 0, 0, fmt.Errorf("slot %d schedules %s out of buffer order (expected %s): %w", t, s.JobID, item.JobID, ErrConstraintViolated)
		}
		pos[s.BufferID] = p + 1
		if t > 0 && seq[t-1].Color != s.Color {
			changeovers++
		}
	}
	unscheduled := len(m.Items) - len(seq)
	return changeovers, float64(changeovers) + m.Penalty*float64(unscheduled), nil
}
