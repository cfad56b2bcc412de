// Package trace provides decision-trace recording for sequencing policy analysis.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// AssignmentRecord captures a single arrival placement decision.
type AssignmentRecord struct {
	JobID     string
	Oven      string
	Color     string
	Clock     int64
	BufferID  string // empty when held
	Held      bool
	Emergency bool               // cross-tier or last-resort placement
	Scores    map[string]float64 // buffer ID → score of the deciding tier (may be nil)
}

// PickRecord captures a single conveyor pick decision.
type PickRecord struct {
	Clock    int64
	BufferID string
	Count    int
	Mode     string
	Color    string
	Margin   float64 // chosen score minus the runner-up; 0 without scoring
}

// DrainRecord captures entering drain mode or a replan.
type DrainRecord struct {
	Clock        int64
	Status       string
	PlanLength   int
	SolverStatus string // empty when the exact solver was not consulted
	Replan       bool
}
