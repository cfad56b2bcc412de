package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalAssignments   int
	HeldCount          int
	EmergencyCount     int
	TotalPicks         int
	PickedJobs         int
	ColorChanges       int // consecutive picks with different colors
	MeanMargin         float64
	Replans            int
	BufferDistribution map[string]int // buffer ID → jobs placed
	ModeDistribution   map[string]int // pick mode → picks
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		BufferDistribution: make(map[string]int),
		ModeDistribution:   make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalAssignments = len(st.Assignments)
	for _, a := range st.Assignments {
		if a.Held {
			summary.HeldCount++
			continue
		}
		if a.Emergency {
			summary.EmergencyCount++
		}
		summary.BufferDistribution[a.BufferID]++
	}

	if len(st.Picks) > 0 {
		totalMargin := 0.0
		for i, p := range st.Picks {
			summary.PickedJobs += p.Count
			summary.ModeDistribution[p.Mode]++
			totalMargin += p.Margin
			if i > 0 && st.Picks[i-1].Color != p.Color {
				summary.ColorChanges++
			}
		}
		summary.TotalPicks = len(st.Picks)
		summary.MeanMargin = totalMargin / float64(len(st.Picks))
	}

	for _, d := range st.Drains {
		if d.Replan {
			summary.Replans++
		}
	}
	return summary
}
