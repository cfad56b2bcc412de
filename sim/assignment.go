package sim

import (
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/paint-sequencer/paint-sequencer/sim/trace"
)

// AssignResult is the outcome of placing an arriving job.
type AssignResult struct {
	BufferID  string // empty when Held
	Held      bool
	Emergency bool // placed outside the oven's primary tier, or by last resort
	Reason    string
}

// Release is one held job force-placed by EmergencyRelease.
type Release struct {
	JobID     string
	BufferID  string
	Emergency bool // the buffer is outside the oven's primary tier
}

// candidate is a buffer considered by a scoring pass.
type candidate struct {
	buffer *BufferLine
	score  float64
}

// Assign places job into a buffer. Tiers are tried in order: scored primary
// buffers, hold (when allowHold), scored fallback buffers, then any routed
// buffer with room regardless of its input gate. Holding sets job.HoldSince.
// When nothing fits the error wraps both ErrNoEligibleBuffer and
// ErrBufferOverflow and no state changes.
func (c *Controller) Assign(job *Job, allowHold bool) (AssignResult, error) {
	route, err := c.plant.Route(job.Origin)
	if err != nil {
		return AssignResult{}, err
	}
	primary := c.tier(route.Primary)

	best, scores := c.bestAssignment(job, primary, true)
	if best != nil {
		return c.place(job, best, false, "primary", scores)
	}

	if allowHold {
		job.markHeld(c.clock.Now())
		res := AssignResult{Held: true, Reason: "no eligible primary buffer"}
		logrus.Debugf("[assign] %s held at %s", job.ID, job.Origin)
		c.recordAssignment(job, res, scores)
		return res, nil
	}

	best, scores = c.bestAssignment(job, c.tier(route.Fallback), false)
	if best != nil {
		return c.place(job, best, true, "fallback", scores)
	}

	if b := leastFilled(c.tier(slices.Concat(route.Primary, route.Fallback)), (*BufferLine).HasRoom); b != nil {
		logrus.Warnf("[assign] %s last-resort placement into %s with input gate closed", job.ID, b.ID)
		return c.place(job, b, true, "last resort", nil)
	}
	return AssignResult{}, fmt.Errorf("assign %s from %s: %w: %w", job.ID, job.Origin, ErrNoEligibleBuffer, ErrBufferOverflow)
}

// tier returns the plant buffers listed in ids, in layout order.
func (c *Controller) tier(ids []string) []*BufferLine {
	var out []*BufferLine
	for _, b := range c.plant.Buffers() {
		if slices.Contains(ids, b.ID) {
			out = append(out, b)
		}
	}
	return out
}

// bestAssignment scores eligible buffers of one tier. Ties keep the first buffer.
func (c *Controller) bestAssignment(job *Job, buffers []*BufferLine, primary bool) (*BufferLine, map[string]float64) {
	var scores map[string]float64
	if c.trace.Enabled() {
		scores = make(map[string]float64, len(buffers))
	}
	var best *candidate
	for _, b := range buffers {
		if !b.Eligible() {
			continue
		}
		s := c.assignmentScore(job, b, primary)
		if scores != nil {
			scores[b.ID] = s
		}
		if best == nil || s > best.score {
			best = &candidate{buffer: b, score: s}
		}
	}
	if best == nil {
		return nil, scores
	}
	return best.buffer, scores
}

func (c *Controller) assignmentScore(job *Job, b *BufferLine, primary bool) float64 {
	w := c.cfg.Assignment
	score := 0.0
	if b.Occupancy() > 0 && b.TailColor() == job.Color {
		score += w.SameColor + w.TailRun*float64(b.TailRunLength())
	}
	if !primary {
		score -= w.CrossTier
	}
	score -= w.Occupancy * b.Fill()
	if !b.OutputAvailable {
		score -= w.OutputDown
	}
	score += float64(b.FreeSpace()) / float64(1+b.Capacity)
	if extra := b.DistinctColors() - w.DiversityThreshold; extra > 0 {
		score -= w.Diversity * float64(extra)
	}
	return score
}

func (c *Controller) place(job *Job, b *BufferLine, emergency bool, reason string, scores map[string]float64) (AssignResult, error) {
	if err := b.Push(job); err != nil {
		return AssignResult{}, err
	}
	res := AssignResult{BufferID: b.ID, Emergency: emergency, Reason: reason}
	logrus.Debugf("[assign] %s -> %s (%s)", job, b.ID, reason)
	c.recordAssignment(job, res, scores)
	c.publishOccupancy(b)
	return res, nil
}

func (c *Controller) recordAssignment(job *Job, res AssignResult, scores map[string]float64) {
	c.observer.RecordAssignment(job.Origin, res)
	if c.trace.Enabled() {
		c.trace.RecordAssignment(trace.AssignmentRecord{
			JobID:     job.ID,
			Oven:      string(job.Origin),
			Color:     job.Color,
			Clock:     c.clock.Now(),
			BufferID:  res.BufferID,
			Held:      res.Held,
			Emergency: res.Emergency,
			Scores:    scores,
		})
	}
}

// leastFilled returns the buffer with the lowest fill fraction among those
// accepted by ok. Ties keep the first buffer.
func leastFilled(buffers []*BufferLine, ok func(*BufferLine) bool) *BufferLine {
	var best *BufferLine
	for _, b := range buffers {
		if !ok(b) {
			continue
		}
		if best == nil || b.Fill() < best.Fill() {
			best = b
		}
	}
	return best
}

// ExpiredHolds returns the held jobs whose hold time reached the hold limit.
func (c *Controller) ExpiredHolds(held []*Job) []*Job {
	limit := SecondsToTicks(c.cfg.HoldLimitSeconds)
	now := c.clock.Now()
	var expired []*Job
	for _, j := range held {
		if j.Held() && j.HeldFor(now) >= limit {
			expired = append(expired, j)
		}
	}
	return expired
}

// EmergencyRelease places each held job into the least-filled eligible buffer
// its oven may feed, ignoring tier preference and color. Jobs for which no
// buffer has room stay held and are absent from the result.
func (c *Controller) EmergencyRelease(held []*Job) []Release {
	var released []Release
	for _, j := range held {
		if !j.Held() {
			continue
		}
		route, err := c.plant.Route(j.Origin)
		if err != nil {
			logrus.Warnf("[release] %s: %v", j.ID, err)
			continue
		}
		b := leastFilled(c.tier(slices.Concat(route.Primary, route.Fallback)), (*BufferLine).Eligible)
		if b == nil {
			logrus.Warnf("[release] %s stays held: no routed buffer has room", j.ID)
			continue
		}
		if err := b.Push(j); err != nil {
			logrus.Warnf("[release] %s: %v", j.ID, err)
			continue
		}
		rel := Release{JobID: j.ID, BufferID: b.ID, Emergency: !slices.Contains(route.Primary, b.ID)}
		logrus.Infof("[release] %s -> %s after hold (emergency=%v)", j.ID, b.ID, rel.Emergency)
		c.observer.RecordRelease(j.Origin, rel)
		c.publishOccupancy(b)
		released = append(released, rel)
	}
	return released
}
