package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/paint-sequencer/paint-sequencer/sim/trace"
)

// PickMode says which policy branch produced a pick.
type PickMode string

const (
	PickModeNormal         PickMode = "normal"
	PickModeDrainPlan      PickMode = "drain-plan"
	PickModeDrainImmediate PickMode = "drain-immediate"
)

// PickDecision is a withdrawal the conveyor should execute.
type PickDecision struct {
	BufferID string
	Count    int
	Mode     PickMode
	Reason   string
	Score    float64
	Margin   float64 // Score minus the runner-up score
}

// DecidePick chooses the next withdrawal. It returns false when the conveyor
// is blocked or no candidate qualifies. In drain mode the plan is consumed.
// DecidePick never mutates buffers.
func (c *Controller) DecidePick() (PickDecision, bool) {
	if c.plant.ConveyorBlocked {
		return PickDecision{}, false
	}
	var (
		d  PickDecision
		ok bool
	)
	if c.drain.active {
		d, ok = c.decideDrainPick()
	} else {
		d, ok = c.decideNormalPick()
	}
	if ok {
		logrus.Debugf("[pick] %s x%d (%s: %s)", d.BufferID, d.Count, d.Mode, d.Reason)
		if c.trace.Enabled() {
			color := ""
			if b, err := c.plant.Buffer(d.BufferID); err == nil {
				color = b.HeadColor()
			}
			c.trace.RecordPick(trace.PickRecord{
				Clock:    c.clock.Now(),
				BufferID: d.BufferID,
				Count:    d.Count,
				Mode:     string(d.Mode),
				Color:    color,
				Margin:   d.Margin,
			})
		}
	}
	return d, ok
}

// pickCandidates returns buffers with an open output gate and queued jobs.
func (c *Controller) pickCandidates() []*BufferLine {
	var out []*BufferLine
	for _, b := range c.plant.Buffers() {
		if b.OutputAvailable && b.Occupancy() > 0 {
			out = append(out, b)
		}
	}
	return out
}

// argmax returns the index of the highest score (first on ties) and its
// margin over the runner-up.
func argmax(scores []float64) (int, float64) {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	margin := 0.0
	second := false
	for i, s := range scores {
		if i == best {
			continue
		}
		if !second || scores[best]-s < margin {
			margin = scores[best] - s
			second = true
		}
	}
	return best, margin
}

func (c *Controller) decideNormalPick() (PickDecision, bool) {
	cands := c.pickCandidates()
	if len(cands) == 0 {
		return PickDecision{}, false
	}
	w := c.cfg.Normal
	last := c.plant.LastWithdrawnColor()
	scores := make([]float64, len(cands))
	for i, b := range cands {
		head := b.HeadColor()
		run := b.HeadRunLength()
		fill := b.Fill()
		s := w.RunLength*float64(run) + w.Occupancy*fill
		if last != "" && head == last {
			s += w.Continuity
		}
		next, _ := b.ColorAfterHeadRun()
		matches, aggRun, chains := 0, 0, false
		for j, o := range cands {
			if j == i {
				continue
			}
			if next != "" && o.HeadColor() == next {
				chains = true
			}
			if o.HeadColor() == head {
				matches++
				aggRun += o.HeadRunLength()
			}
		}
		if chains {
			s += w.LookAhead
		}
		s += w.CrossBufferMatch*float64(matches) + w.CrossBufferRun*float64(aggRun)
		if fill >= c.cfg.OccHigh {
			s += w.HighOccupancyBoost
		}
		scores[i] = s
	}
	idx, margin := argmax(scores)
	b := cands[idx]
	run := b.HeadRunLength()
	fill := b.Fill()

	var reason string
	switch {
	case run >= c.cfg.MinRun:
		reason = fmt.Sprintf("run %d >= %d", run, c.cfg.MinRun)
	case fill >= c.cfg.OccHigh:
		reason = fmt.Sprintf("fill %.2f >= %.2f", fill, c.cfg.OccHigh)
	case c.plant.GlobalFill() >= c.cfg.GlobalHigh:
		reason = fmt.Sprintf("plant fill %.2f >= %.2f", c.plant.GlobalFill(), c.cfg.GlobalHigh)
	default:
		return PickDecision{}, false
	}

	n := min(run, c.cfg.KMax)
	if n == 0 && fill >= c.cfg.OccHigh {
		n = min(max(1, int(float64(b.Capacity)*c.cfg.CriticalPickFraction)), c.cfg.KMax)
	}
	if n == 0 {
		return PickDecision{}, false
	}
	return PickDecision{
		BufferID: b.ID,
		Count:    n,
		Mode:     PickModeNormal,
		Reason:   reason,
		Score:    scores[idx],
		Margin:   margin,
	}, true
}

// ExecutePick withdraws up to count jobs from the head of bufferID, clamped to
// the live occupancy and KMax, and appends one history record when anything
// was taken. The returned jobs are in withdrawal order.
func (c *Controller) ExecutePick(bufferID string, count int, operator string) ([]*Job, error) {
	if count < 0 {
		return nil, fmt.Errorf("pick %d jobs from %s: negative count", count, bufferID)
	}
	b, err := c.plant.Buffer(bufferID)
	if err != nil {
		return nil, err
	}
	jobs := b.PopN(min(count, c.cfg.KMax))
	if len(jobs) == 0 {
		return nil, nil
	}
	colors := make([]string, len(jobs))
	for i, j := range jobs {
		colors[i] = j.Color
	}
	c.plant.History = append(c.plant.History, WithdrawalRecord{
		Timestamp: c.clock.Now(),
		BufferID:  bufferID,
		Count:     len(jobs),
		Colors:    colors,
		Operator:  operator,
	})
	logrus.Infof("[pick] %s withdrew %d %v (%s)", bufferID, len(jobs), colors, operator)
	c.observer.RecordPick(bufferID, len(jobs), operator)
	c.publishOccupancy(b)
	return jobs, nil
}
