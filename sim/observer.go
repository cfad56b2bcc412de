package sim

// Observer receives sequencing events for metrics collection.
// Implementations must not mutate plant state.
type Observer interface {
	// RecordArrival counts a job leaving an oven.
	RecordArrival(oven OvenID)

	// RecordAssignment records the outcome of an arrival placement.
	RecordAssignment(oven OvenID, res AssignResult)

	// RecordRelease records a held job force-released into a buffer.
	RecordRelease(oven OvenID, rel Release)

	// RecordPick records one withdrawal onto the main conveyor.
	RecordPick(bufferID string, count int, operator string)

	// RecordChangeovers adds color changeovers seen on the conveyor.
	RecordChangeovers(n int)

	// SetOccupancy publishes a buffer's current queue length.
	SetOccupancy(bufferID string, occupancy int)

	// RecordDrainPlan records a drain plan built on entry or replan.
	RecordDrainPlan(res DrainResult, replan bool)
}

// NopObserver discards all events.
type NopObserver struct{}

var _ Observer = NopObserver{}

func (NopObserver) RecordArrival(OvenID)                  {}
func (NopObserver) RecordAssignment(OvenID, AssignResult) {}
func (NopObserver) RecordRelease(OvenID, Release)         {}
func (NopObserver) RecordPick(string, int, string)        {}
func (NopObserver) RecordChangeovers(int)                 {}
func (NopObserver) SetOccupancy(string, int)              {}
func (NopObserver) RecordDrainPlan(DrainResult, bool)     {}
