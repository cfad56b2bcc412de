package sim

import "slices"

// QueueSnapshot is a private copy of one buffer's queued colors, head first.
type QueueSnapshot struct {
	BufferID string
	Capacity int
	Colors   []string
}

// PlanEntry is one drain plan step: withdraw Count jobs from BufferID.
// Color is the head color the entry was planned for.
type PlanEntry struct {
	BufferID string
	Count    int
	Color    string
}

// PlanGreedy builds a drain plan that empties every snapshot queue.
// Each step scores all non-empty queues and appends the winner's head run,
// capped at kMax. lastColor seeds the continuity bonus. The input is not modified.
func PlanGreedy(queues []QueueSnapshot, lastColor string, w DrainWeights, kMax int) []PlanEntry {
	if kMax < 1 {
		panic("PlanGreedy: kMax must be >= 1")
	}
	work := make([][]string, len(queues))
	remaining := make(map[string]int)
	for i, q := range queues {
		work[i] = slices.Clone(q.Colors)
		for _, c := range q.Colors {
			remaining[c]++
		}
	}

	var plan []PlanEntry
	for {
		best, bestScore := -1, 0.0
		for i, q := range queues {
			if len(work[i]) == 0 {
				continue
			}
			score := greedyScore(work, i, q.Capacity, lastColor, remaining, w)
			if best < 0 || score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			return plan
		}
		head := work[best][0]
		n := min(headRun(work[best]), kMax)
		work[best] = work[best][n:]
		remaining[head] -= n
		lastColor = head
		plan = append(plan, PlanEntry{BufferID: queues[best].BufferID, Count: n, Color: head})
	}
}

func greedyScore(work [][]string, i, capacity int, lastColor string, remaining map[string]int, w DrainWeights) float64 {
	colors := work[i]
	head := colors[0]
	score := w.RunLength * float64(headRun(colors))
	if head == lastColor {
		score += w.Continuity
	}
	chain := 0
	for j, other := range work {
		if j != i && len(other) > 0 && other[0] == head {
			chain++
		}
	}
	score += w.Chain * float64(chain)
	_, next := nextRun(colors)
	score += w.LookAhead * float64(next)
	score += w.Occupancy * float64(len(colors)) / float64(max(1, capacity))
	if left := remaining[head]; left > 0 {
		score += min(w.RarityCap, w.Rarity/float64(left))
	}
	return score
}

// PlanColors expands a plan into the withdrawal color sequence it produces.
func PlanColors(plan []PlanEntry) []string {
	var colors []string
	for _, e := range plan {
		for k := 0; k < e.Count; k++ {
			colors = append(colors, e.Color)
		}
	}
	return colors
}

// ChangeoverCount counts color transitions between consecutive items.
func ChangeoverCount(colors []string) int {
	n := 0
	for i := 1; i < len(colors); i++ {
		if colors[i] != colors[i-1] {
			n++
		}
	}
	return n
}
