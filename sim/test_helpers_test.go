package sim

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestController binds a fresh default plant to a controller driven by a
// manual clock. mutate, when non-nil, edits the config before construction.
func newTestController(t *testing.T, mutate func(*Config)) (*Controller, *ManualClock) {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, cfg.Validate())
	clock := &ManualClock{}
	return NewController(NewPlant(cfg.Plant), cfg, WithClock(clock)), clock
}

// fill pushes one job per color into buffer id, failing the test on overflow.
func fill(t *testing.T, p *PlantState, id string, colors ...string) {
	t.Helper()
	b, err := p.Buffer(id)
	require.NoError(t, err)
	for _, c := range colors {
		origin := OvenO1
		if r, _ := p.Route(OvenO2); containsID(r.Primary, id) {
			origin = OvenO2
		}
		require.NoError(t, b.Push(NewJob(fmt.Sprintf("%s-%d", id, b.Occupancy()), c, origin, 0)))
	}
}

// fillToCapacity fills a buffer until it refuses pushes.
func fillToCapacity(t *testing.T, p *PlantState, id, color string) {
	t.Helper()
	b, err := p.Buffer(id)
	require.NoError(t, err)
	for b.HasRoom() {
		fill(t, p, id, color)
	}
}

// repeat returns n copies of color.
func repeat(color string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = color
	}
	return out
}

func containsID(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

var (
	lowBuffers  = []string{"L1", "L2", "L3", "L4"}
	highBuffers = []string{"L5", "L6", "L7", "L8", "L9"}
)
