package sim

import "errors"

// Sentinel errors for the sequencing core.
//
// Capacity and routing violations are contract violations: callers must
// abort the operation and surface them. Planning shortfalls never appear
// here; the drain scheduler degrades to the greedy planner instead.
var (
	// ErrBufferOverflow is returned when a push would break
	// occupancy + reserve headroom <= capacity. The queue is left unchanged.
	ErrBufferOverflow = errors.New("buffer overflow")

	// ErrNoEligibleBuffer is returned when holding is disallowed and no
	// buffer the oven may feed has a free slot.
	ErrNoEligibleBuffer = errors.New("no eligible buffer")

	// ErrUnknownBuffer is returned for buffer IDs that are not part of the plant.
	ErrUnknownBuffer = errors.New("unknown buffer")

	// ErrUnknownOven is returned for oven IDs without a routing entry.
	ErrUnknownOven = errors.New("unknown oven")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid configuration")
)
