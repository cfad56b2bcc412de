package sim

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/paint-sequencer/paint-sequencer/sim/solver"
	"github.com/paint-sequencer/paint-sequencer/sim/trace"
)

// DrainStatus is the kind of plan built on entering drain mode.
type DrainStatus string

const (
	DrainEmpty      DrainStatus = "empty"
	DrainExactPlan  DrainStatus = "exactPlan"
	DrainGreedyPlan DrainStatus = "greedyPlan"
)

// DrainResult reports the plan built by EnterDrain or a replan.
type DrainResult struct {
	Status       DrainStatus
	PlanLength   int
	SolverStatus solver.Status // empty unless the exact solver ran
	SolverTime   time.Duration
}

// DrainInfo is a read-only view of the drain scheduler.
type DrainInfo struct {
	Active           bool
	Remaining        int // plan entries not yet consumed
	PicksSinceReplan int
	Replans          int
}

type drainState struct {
	active           bool
	plan             []PlanEntry
	picksSinceReplan int
	replans          int
}

// EnterDrain switches the controller to drain mode and builds a plan that
// empties every buffer with an open output gate. With useExact the exact
// solver is tried first; any solver failure falls back to the greedy plan.
// ctx bounds the solver in addition to its configured time limit.
func (c *Controller) EnterDrain(ctx context.Context, useExact bool) DrainResult {
	c.drain = drainState{active: true}
	if c.plant.TotalOccupancy() == 0 {
		res := DrainResult{Status: DrainEmpty}
		c.recordDrain(res, false)
		return res
	}

	res := DrainResult{Status: DrainGreedyPlan}
	var plan []PlanEntry
	if useExact {
		var sres solver.Result
		plan, sres = c.planExact(ctx)
		res.SolverStatus = sres.Status
		res.SolverTime = sres.Elapsed
		if len(plan) > 0 {
			res.Status = DrainExactPlan
		} else {
			logrus.Warnf("[drain] exact planning failed (%s), using greedy plan", sres.Status)
		}
	}
	if res.Status == DrainGreedyPlan {
		plan = PlanGreedy(c.liveSnapshot(), c.plant.LastWithdrawnColor(), c.cfg.Drain, c.cfg.KMax)
	}
	c.drain.plan = plan
	res.PlanLength = len(plan)
	c.recordDrain(res, false)
	return res
}

// ExitDrain leaves drain mode and discards any remaining plan.
func (c *Controller) ExitDrain() {
	if c.drain.active {
		logrus.Infof("[drain] exit with %d plan entries left", len(c.drain.plan))
	}
	c.drain = drainState{}
}

// Draining reports whether drain mode is active.
func (c *Controller) Draining() bool { return c.drain.active }

// DrainInfo returns the scheduler state.
func (c *Controller) DrainInfo() DrainInfo {
	return DrainInfo{
		Active:           c.drain.active,
		Remaining:        len(c.drain.plan),
		PicksSinceReplan: c.drain.picksSinceReplan,
		Replans:          c.drain.replans,
	}
}

// liveSnapshot copies the queues of buffers the conveyor can withdraw from.
func (c *Controller) liveSnapshot() []QueueSnapshot {
	var snap []QueueSnapshot
	for _, q := range c.plant.queueSnapshot() {
		if b, _ := c.plant.Buffer(q.BufferID); b.OutputAvailable && len(q.Colors) > 0 {
			snap = append(snap, q)
		}
	}
	return snap
}

func (c *Controller) planExact(ctx context.Context) ([]PlanEntry, solver.Result) {
	var items []solver.BufferItems
	for _, b := range c.plant.Buffers() {
		if !b.OutputAvailable || b.Occupancy() == 0 {
			continue
		}
		bi := solver.BufferItems{BufferID: b.ID}
		for _, j := range b.Items() {
			bi.Items = append(bi.Items, solver.Item{BufferID: b.ID, Color: j.Color, JobID: j.ID})
		}
		items = append(items, bi)
	}
	e := c.exact
	model := solver.NewModel(items, e.ItemsPerBuffer, e.Horizon, e.UnscheduledPenalty)
	res := solver.Solve(ctx, model, solver.Options{
		TimeLimit: time.Duration(e.TimeLimitSeconds * float64(time.Second)),
		Engine:    e.Engine,
		Workers:   e.Workers,
		MaxStates: e.MaxStates,
	})
	if !res.OK() {
		return nil, res
	}
	logrus.Infof("[drain] exact plan: %d of %d items, %d changeovers (%s)",
		len(res.Sequence), model.NumItems(), res.Changeovers, res.Status)
	return compressSlots(res.Sequence, c.cfg.KMax), res
}

// compressSlots merges consecutive slots from the same buffer with the same
// color into plan entries of at most kMax jobs.
func compressSlots(seq []solver.Slot, kMax int) []PlanEntry {
	var plan []PlanEntry
	for _, s := range seq {
		if n := len(plan); n > 0 {
			last := &plan[n-1]
			if last.BufferID == s.BufferID && last.Color == s.Color && last.Count < kMax {
				last.Count++
				continue
			}
		}
		plan = append(plan, PlanEntry{BufferID: s.BufferID, Count: 1, Color: s.Color})
	}
	return plan
}

// decideDrainPick consumes the plan. Entries whose buffer has nothing left
// to give are skipped; the loop ends because the plan is finite.
func (c *Controller) decideDrainPick() (PickDecision, bool) {
	d := &c.drain
	if d.picksSinceReplan > c.cfg.ReplanAfter && c.plant.TotalOccupancy() > c.cfg.ReplanMinRemaining {
		d.plan = PlanGreedy(c.liveSnapshot(), c.plant.LastWithdrawnColor(), c.cfg.Drain, c.cfg.KMax)
		d.picksSinceReplan = 0
		d.replans++
		logrus.Infof("[drain] replan #%d: %d entries", d.replans, len(d.plan))
		c.recordDrain(DrainResult{Status: DrainGreedyPlan, PlanLength: len(d.plan)}, true)
	}
	for len(d.plan) > 0 {
		e := d.plan[0]
		d.plan = d.plan[1:]
		b, err := c.plant.Buffer(e.BufferID)
		if err != nil {
			logrus.Warnf("[drain] skipping plan entry: %v", err)
			continue
		}
		avail := 0
		if b.OutputAvailable {
			avail = b.Occupancy()
		}
		n := min(e.Count, avail, c.cfg.KMax)
		if n == 0 {
			logrus.Warnf("[drain] skipping plan entry %s x%d: nothing available", e.BufferID, e.Count)
			continue
		}
		d.picksSinceReplan++
		return PickDecision{
			BufferID: b.ID,
			Count:    n,
			Mode:     PickModeDrainPlan,
			Reason:   "plan",
		}, true
	}
	return c.decideImmediate()
}

// decideImmediate scores live buffers once the plan is exhausted.
func (c *Controller) decideImmediate() (PickDecision, bool) {
	cands := c.pickCandidates()
	if len(cands) == 0 {
		return PickDecision{}, false
	}
	w := c.cfg.Immediate
	last := c.plant.LastWithdrawnColor()
	scores := make([]float64, len(cands))
	for i, b := range cands {
		s := w.RunLength*float64(b.HeadRunLength()) +
			w.LookAhead*float64(b.NextRunLength()) +
			w.Occupancy*b.Fill()
		if last != "" && b.HeadColor() == last {
			s += w.Continuity
		}
		scores[i] = s
	}
	idx, margin := argmax(scores)
	b := cands[idx]
	c.drain.picksSinceReplan++
	return PickDecision{
		BufferID: b.ID,
		Count:    min(b.HeadRunLength(), c.cfg.KMax),
		Mode:     PickModeDrainImmediate,
		Reason:   "plan exhausted",
		Score:    scores[idx],
		Margin:   margin,
	}, true
}

func (c *Controller) recordDrain(res DrainResult, replan bool) {
	if !replan {
		logrus.Infof("[drain] enter: %s, %d entries", res.Status, res.PlanLength)
	}
	c.observer.RecordDrainPlan(res, replan)
	if c.trace.Enabled() {
		c.trace.RecordDrain(trace.DrainRecord{
			Clock:        c.clock.Now(),
			Status:       string(res.Status),
			PlanLength:   res.PlanLength,
			SolverStatus: string(res.SolverStatus),
			Replan:       replan,
		})
	}
}
