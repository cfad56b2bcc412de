// Implements BufferLine, the capacity-bounded FIFO between the ovens and
// the main conveyor. Jobs are pushed at the tail on assignment and popped
// from the head on withdrawal.

package sim

import (
	"fmt"
	"strings"
)

// BufferLine is a FIFO queue of jobs with a fixed slot count.
// ReserveHeadroom slots are kept empty: a push is only accepted while
// Occupancy()+ReserveHeadroom < Capacity.
type BufferLine struct {
	ID              string
	Capacity        int
	ReserveHeadroom int
	InputAvailable  bool
	OutputAvailable bool

	queue []*Job // FIFO, head at index 0
}

// NewBufferLine creates an empty buffer with both gates open.
func NewBufferLine(id string, capacity, headroom int) *BufferLine {
	if capacity <= 0 {
		panic(fmt.Sprintf("NewBufferLine(%s): capacity must be positive, got %d", id, capacity))
	}
	if headroom < 0 || headroom >= capacity {
		panic(fmt.Sprintf("NewBufferLine(%s): headroom %d outside [0,%d)", id, headroom, capacity))
	}
	return &BufferLine{
		ID:              id,
		Capacity:        capacity,
		ReserveHeadroom: headroom,
		InputAvailable:  true,
		OutputAvailable: true,
	}
}

// Occupancy returns the number of queued jobs.
func (b *BufferLine) Occupancy() int { return len(b.queue) }

// FreeSpace returns capacity - occupancy - reserve headroom.
func (b *BufferLine) FreeSpace() int {
	return b.Capacity - len(b.queue) - b.ReserveHeadroom
}

// HasRoom reports whether a push would keep the headroom invariant.
func (b *BufferLine) HasRoom() bool {
	return len(b.queue)+b.ReserveHeadroom < b.Capacity
}

// Eligible reports whether the buffer can accept an arriving job:
// input gate open and room left above the reserve.
func (b *BufferLine) Eligible() bool {
	return b.InputAvailable && b.HasRoom()
}

// Fill returns occupancy as a fraction of capacity.
func (b *BufferLine) Fill() float64 {
	return float64(len(b.queue)) / float64(max(1, b.Capacity))
}

// Push appends a job at the tail. On overflow the queue is untouched and
// ErrBufferOverflow is returned.
func (b *BufferLine) Push(j *Job) error {
	if !b.HasRoom() {
		return fmt.Errorf("push %s into %s (occupancy=%d, headroom=%d, capacity=%d): %w",
			j.ID, b.ID, len(b.queue), b.ReserveHeadroom, b.Capacity, ErrBufferOverflow)
	}
	b.queue = append(b.queue, j)
	j.AssignedBuffer = b.ID
	j.HoldSince = nil
	return nil
}

// PopN removes up to n jobs from the head, never more than are queued.
func (b *BufferLine) PopN(n int) []*Job {
	n = min(n, len(b.queue))
	if n <= 0 {
		return nil
	}
	popped := make([]*Job, n)
	copy(popped, b.queue[:n])
	b.queue = b.queue[n:]
	return popped
}

// Items returns the queue contents, head first.
// The returned slice is the buffer's internal storage; callers MUST NOT modify it.
func (b *BufferLine) Items() []*Job { return b.queue }

// Colors returns a copy of the queued colors, head first.
func (b *BufferLine) Colors() []string {
	colors := make([]string, len(b.queue))
	for i, j := range b.queue {
		colors[i] = j.Color
	}
	return colors
}

// HeadColor returns the color of the head job, or "" when empty.
func (b *BufferLine) HeadColor() string {
	if len(b.queue) == 0 {
		return ""
	}
	return b.queue[0].Color
}

// TailColor returns the color of the most recently pushed job, or "" when empty.
func (b *BufferLine) TailColor() string {
	if len(b.queue) == 0 {
		return ""
	}
	return b.queue[len(b.queue)-1].Color
}

// HeadRunLength counts consecutive same-color jobs from the head.
func (b *BufferLine) HeadRunLength() int {
	return headRun(b.Colors())
}

// TailRunLength counts consecutive same-color jobs from the tail.
func (b *BufferLine) TailRunLength() int {
	n := len(b.queue)
	if n == 0 {
		return 0
	}
	c := b.queue[n-1].Color
	run := 0
	for i := n - 1; i >= 0 && b.queue[i].Color == c; i-- {
		run++
	}
	return run
}

// ColorAfterHeadRun returns the color that follows the head run and the
// length of that following run. Returns ("", 0) when the whole queue is one run.
func (b *BufferLine) ColorAfterHeadRun() (string, int) {
	return nextRun(b.Colors())
}

// NextRunLength returns the length of the run following the head run.
func (b *BufferLine) NextRunLength() int {
	_, n := b.ColorAfterHeadRun()
	return n
}

// DistinctColors returns the number of different colors queued.
func (b *BufferLine) DistinctColors() int {
	seen := make(map[string]struct{}, len(b.queue))
	for _, j := range b.queue {
		seen[j.Color] = struct{}{}
	}
	return len(seen)
}

func (b *BufferLine) String() string {
	var sb strings.Builder
	sb.WriteString(b.ID)
	sb.WriteString("[")
	for i, j := range b.queue {
		sb.WriteString(j.Color)
		if i < len(b.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}

// clone copies the buffer and its jobs. Job pointers are not shared.
func (b *BufferLine) clone() *BufferLine {
	c := *b
	c.queue = make([]*Job, len(b.queue))
	for i, j := range b.queue {
		jc := *j
		if j.HoldSince != nil {
			hs := *j.HoldSince
			jc.HoldSince = &hs
		}
		c.queue[i] = &jc
	}
	return &c
}

// headRun counts consecutive entries equal to colors[0].
func headRun(colors []string) int {
	if len(colors) == 0 {
		return 0
	}
	run := 1
	for run < len(colors) && colors[run] == colors[0] {
		run++
	}
	return run
}

// nextRun returns the color and length of the run following the head run.
func nextRun(colors []string) (string, int) {
	r := headRun(colors)
	if r >= len(colors) {
		return "", 0
	}
	return colors[r], headRun(colors[r:])
}
