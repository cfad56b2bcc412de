package sim

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferWith(colors ...string) *BufferLine {
	b := NewBufferLine("B", 16, 0)
	for i, c := range colors {
		if err := b.Push(NewJob(fmt.Sprintf("j%d", i), c, OvenO1, 0)); err != nil {
			panic(err)
		}
	}
	return b
}

func TestNewBufferLine_PanicsOnInvalidShape(t *testing.T) {
	assert.Panics(t, func() { NewBufferLine("B", 0, 0) })
	assert.Panics(t, func() { NewBufferLine("B", 4, 4) })
	assert.Panics(t, func() { NewBufferLine("B", 4, -1) })
}

func TestBufferLine_Push_OverflowLeavesQueueUnchanged(t *testing.T) {
	// GIVEN a buffer of capacity 4 with one reserved slot, filled to its limit
	b := NewBufferLine("L5", 4, 1)
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Push(NewJob(fmt.Sprintf("j%d", i), "C1", OvenO2, 0)))
	}
	before := b.Colors()

	// WHEN another job is pushed
	extra := NewJob("extra", "C2", OvenO2, 0)
	err := b.Push(extra)

	// THEN the push fails with ErrBufferOverflow and nothing changes
	assert.ErrorIs(t, err, ErrBufferOverflow)
	assert.Equal(t, before, b.Colors())
	assert.Equal(t, 3, b.Occupancy())
	assert.Empty(t, extra.AssignedBuffer)
	assert.False(t, b.HasRoom())
	assert.Equal(t, 0, b.FreeSpace())
}

func TestBufferLine_Push_SetsAssignmentAndClearsHold(t *testing.T) {
	b := NewBufferLine("L1", 14, 0)
	j := NewJob("j", "C1", OvenO1, 0)
	j.markHeld(5)
	require.True(t, j.Held())

	require.NoError(t, b.Push(j))

	assert.Equal(t, "L1", j.AssignedBuffer)
	assert.False(t, j.Held())
}

func TestBufferLine_RunLengths(t *testing.T) {
	tests := []struct {
		name      string
		colors    []string
		headRun   int
		tailRun   int
		nextColor string
		nextRun   int
		distinct  int
	}{
		{"empty", nil, 0, 0, "", 0, 0},
		{"single run", []string{"c", "c"}, 2, 2, "", 0, 1},
		{"head run then one", []string{"c", "c", "c", "d"}, 3, 1, "d", 1, 2},
		{"three runs", []string{"a", "b", "b", "a"}, 1, 1, "b", 2, 2},
		{"long tail", []string{"a", "b", "c", "c", "c"}, 1, 3, "b", 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bufferWith(tt.colors...)
			assert.Equal(t, tt.headRun, b.HeadRunLength())
			assert.Equal(t, tt.headRun, b.HeadRunLength(), "idempotent")
			assert.Equal(t, tt.tailRun, b.TailRunLength())
			next, n := b.ColorAfterHeadRun()
			assert.Equal(t, tt.nextColor, next)
			assert.Equal(t, tt.nextRun, n)
			assert.Equal(t, tt.nextRun, b.NextRunLength())
			assert.Equal(t, tt.distinct, b.DistinctColors())
		})
	}
}

func TestBufferLine_PopN_ClampsToOccupancy(t *testing.T) {
	b := bufferWith("a", "b", "c")

	assert.Nil(t, b.PopN(0))
	got := b.PopN(2)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Color)
	assert.Equal(t, "b", got[1].Color)

	got = b.PopN(10)
	require.Len(t, got, 1)
	assert.Equal(t, 0, b.Occupancy())
	assert.Empty(t, b.Items())
	assert.Equal(t, "", b.HeadColor())
	assert.Equal(t, "", b.TailColor())
}

func TestBufferLine_String(t *testing.T) {
	assert.Equal(t, "B[a b]", bufferWith("a", "b").String())
	assert.Equal(t, "B[]", bufferWith().String())
}

func TestBufferLine_HeadroomInvariant_UnderRandomOperations(t *testing.T) {
	// GIVEN a random interleaving of pushes and pops
	rng := rand.New(rand.NewSource(3))
	b := NewBufferLine("L6", 16, 1)
	var model []string
	for step := 0; step < 2000; step++ {
		if rng.Intn(3) > 0 {
			c := fmt.Sprintf("C%d", rng.Intn(4))
			err := b.Push(NewJob(fmt.Sprintf("j%d", step), c, OvenO2, 0))
			if len(model)+1 > 15 {
				require.ErrorIs(t, err, ErrBufferOverflow)
			} else {
				require.NoError(t, err)
				model = append(model, c)
			}
		} else {
			n := rng.Intn(4)
			b.PopN(n)
			model = model[min(n, len(model)):]
		}
		// THEN occupancy + headroom never exceeds capacity and FIFO order holds
		require.LessOrEqual(t, b.Occupancy()+b.ReserveHeadroom, b.Capacity)
		require.Equal(t, len(model), b.Occupancy())
		if len(model) > 0 {
			require.Equal(t, model, b.Colors())
		}
	}
}
