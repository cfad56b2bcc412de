package sim

import "fmt"

// OvenID identifies one of the paint ovens feeding the buffer lines.
type OvenID string

const (
	OvenO1 OvenID = "O1"
	OvenO2 OvenID = "O2"
)

// TicksPerSecond converts configuration seconds into simulation ticks (microseconds).
const TicksPerSecond int64 = 1_000_000

// SecondsToTicks converts seconds to ticks, rounding toward zero.
func SecondsToTicks(s float64) int64 {
	return int64(s * float64(TicksPerSecond))
}

// TicksToSeconds converts ticks to seconds.
func TicksToSeconds(t int64) float64 {
	return float64(t) / float64(TicksPerSecond)
}

// Job is a painted part travelling from an oven through a buffer line to the
// main conveyor. Only AssignedBuffer and HoldSince change after creation.
type Job struct {
	ID          string
	Color       string
	Origin      OvenID
	ArrivalTime int64 // ticks

	// AssignedBuffer is a lookup reference to the owning buffer; empty while
	// the job is held at its oven.
	AssignedBuffer string

	// HoldSince is set while the job waits at its oven for a buffer slot
	// and cleared on assignment.
	HoldSince *int64
}

// NewJob creates a job that has just left an oven.
func NewJob(id, color string, origin OvenID, arrival int64) *Job {
	return &Job{ID: id, Color: color, Origin: origin, ArrivalTime: arrival}
}

// Held reports whether the job is waiting at its oven.
func (j *Job) Held() bool { return j.HoldSince != nil }

// HeldFor returns how long the job has been held at now, or 0 if not held.
func (j *Job) HeldFor(now int64) int64 {
	if j.HoldSince == nil {
		return 0
	}
	return now - *j.HoldSince
}

func (j *Job) markHeld(now int64) {
	ts := now
	j.HoldSince = &ts
}

func (j *Job) String() string {
	return fmt.Sprintf("%s(%s from %s)", j.ID, j.Color, j.Origin)
}
