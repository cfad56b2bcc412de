// Package sim provides the sequencing core for paint-shop buffer lines and
// the discrete-event simulation that exercises it.
//
// # Reading Guide
//
// Start with these files to understand the core:
//   - buffer.go, plant.go: the entity model (BufferLine FIFO, PlantState aggregate)
//   - assignment.go: placing arriving jobs into buffers, holds and emergency release
//   - pick.go: normal-mode pick decisions and pick execution
//   - drain.go, planner.go: drain mode, the greedy planner and replanning
//   - simulator.go, event.go: the event loop and its event types
//
// # Architecture
//
// The sim package owns the entity model and the policies; helpers live in
// sub-packages:
//   - sim/solver/: exact time-indexed sequencing by branch and bound
//   - sim/workload/: color and inter-arrival sampling, job IDs
//   - sim/trace/: decision trace recording
//   - sim/telemetry/: Prometheus-backed Observer
//
// # Key Types
//
//   - Controller: runs every policy against one PlantState; callers serialize calls
//   - Observer: receives sequencing events for metrics
//   - Clock: virtual (ManualClock) or wall time (WallClock)
//   - Config: YAML-loadable parameters with tuned defaults
package sim
