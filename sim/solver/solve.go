package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Status is the outcome of a Solve call.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusFeasible   Status = "feasible"   // time limit hit with an incumbent
	StatusInfeasible Status = "infeasible" // search finished without any solution
	StatusTimeout    Status = "timeout"    // time limit hit before any solution
	StatusNoItems    Status = "no_items"
)

// ErrNoSolution is wrapped by Result.Err for statuses without a usable sequence.
var ErrNoSolution = errors.New("no solution")

// Engine selects the searches Solve runs.
type Engine string

const (
	// EnginePortfolio races the branch and bound workers against the
	// pseudo-boolean engine; the first proof of optimality ends the search.
	EnginePortfolio     Engine = "portfolio"
	EngineBranchBound   Engine = "branch_and_bound"
	EnginePseudoBoolean Engine = "pseudo_boolean"
)

// Valid reports whether e names a known engine. The empty engine is the portfolio.
func (e Engine) Valid() bool {
	switch e {
	case "", EnginePortfolio, EngineBranchBound, EnginePseudoBoolean:
		return true
	}
	return false
}

// Options bounds a Solve call.
type Options struct {
	TimeLimit time.Duration
	Engine    Engine
	Workers   int // branch and bound workers; 1 with EngineBranchBound gives a deterministic result
	MaxStates int // per-worker dominance table size
}

// Result is a solved (or failed) model.
type Result struct {
	Status      Status
	Sequence    []Slot // ordered by slot
	Changeovers int
	Unscheduled int
	Objective   float64
	Elapsed     time.Duration
	Nodes       int64
}

// OK reports whether the result carries a usable sequence.
func (r Result) OK() bool {
	return r.Status == StatusOptimal || r.Status == StatusFeasible
}

// Err returns nil for optimal and feasible results.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("solver %s: %w", r.Status, ErrNoSolution)
}

const (
	objectiveEps    = 1e-9
	cancelCheckMask = 1023
)

// incumbent is the best solution found by any worker. The bound is read
// lock-free on every node; writes take the mutex.
type incumbent struct {
	mu    sync.Mutex
	bits  atomic.Uint64 // math.Float64bits of the best objective, +Inf if none
	found bool
	path  []int // buffer index per slot
}

func newIncumbent() *incumbent {
	inc := &incumbent{}
	inc.bits.Store(math.Float64bits(math.Inf(1)))
	return inc
}

func (inc *incumbent) bound() float64 {
	return math.Float64frombits(inc.bits.Load())
}

func (inc *incumbent) offer(value float64, path []int) {
	if value >= inc.bound()-objectiveEps {
		return
	}
	inc.mu.Lock()
	defer inc.mu.Unlock()
	if value >= inc.bound()-objectiveEps {
		return
	}
	inc.found = true
	inc.bits.Store(math.Float64bits(value))
	inc.path = append(inc.path[:0], path...)
}

// Solve runs the engines selected by opts until one proves optimality or
// the time limit elapses. It always returns by the deadline.
func Solve(ctx context.Context, m *Model, opts Options) Result {
	start := time.Now()
	if m.NumItems() == 0 {
		return Result{Status: StatusNoItems}
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxStates < 1 {
		opts.MaxStates = 1 << 20
	}
	if opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TimeLimit)
		defer cancel()
	}
	// proved is cancelled by the first worker that completes its search.
	searchCtx, proved := context.WithCancel(ctx)
	defer proved()

	bbWorkers, usePB := opts.Workers, true
	switch opts.Engine {
	case EngineBranchBound:
		usePB = false
	case EnginePseudoBoolean:
		bbWorkers = 0
	}

	inc := newIncumbent()
	var (
		nodesMu sync.Mutex
		nodes   int64
		optimal bool
	)
	finish := func(n int64, complete bool) {
		nodesMu.Lock()
		defer nodesMu.Unlock()
		nodes += n
		if complete && !optimal {
			optimal = true
			proved()
		}
	}
	g, gctx := errgroup.WithContext(searchCtx)
	for w := 0; w < bbWorkers; w++ {
		g.Go(func() error {
			s := newSearch(m, inc, w, opts.MaxStates)
			complete := s.run(gctx)
			finish(s.nodes, complete)
			return nil
		})
	}
	if usePB {
		g.Go(func() error {
			finish(0, solvePB(gctx, m, inc))
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Elapsed: time.Since(start), Nodes: nodes}
	found := inc.found
	switch {
	case optimal && found:
		res.Status = StatusOptimal
	case optimal:
		res.Status = StatusInfeasible
	case found:
		res.Status = StatusFeasible
	default:
		res.Status = StatusTimeout
	}
	if found {
		res.Sequence, res.Changeovers, res.Objective = m.sequence(inc.path)
		res.Unscheduled = m.NumItems() - len(res.Sequence)
	}
	logrus.Debugf("[solver] %s items=%d slots=%d workers=%d pb=%t nodes=%d objective=%.3f in %v",
		res.Status, m.NumItems(), m.Slots, bbWorkers, usePB, res.Nodes, res.Objective, res.Elapsed)
	return res
}

// decode turns a buffer-index path into the slot sequence.
func (m *Model) decode(path []int) []Slot {
	taken := make([]int, len(m.Buffers))
	seq := make([]Slot, len(path))
	for t, b := range path {
		it := m.Items[m.Buffers[b][taken[b]]]
		taken[b]++
		seq[t] = Slot{Slot: t, BufferID: it.BufferID, Color: it.Color, JobID: it.JobID}
	}
	return seq
}

// sequence decodes a path found by a search of m and scores it. A path
// outside the model is a bug in the search, so it panics.
func (m *Model) sequence(path []int) ([]Slot, int, float64) {
	seq := m.decode(path)
	changeovers, objective, err := m.Evaluate(seq)
	if err != nil {
		panic(fmt.Sprintf("solver: decoded sequence outside the model: %v", err))
	}
	return seq, changeovers, objective
}

// search is one branch and bound worker. Workers differ only in the order they
// try buffers, so they reach good incumbents along different paths.
type search struct {
	m         *Model
	inc       *incumbent
	order     []int
	taken     []int
	path      []int
	memo      map[string]int
	maxStates int
	nodes     int64
	key       []byte
	aborted   bool
	minUnsch  int // items that can never fit into the horizon
}

func newSearch(m *Model, inc *incumbent, worker, maxStates int) *search {
	nb := len(m.Buffers)
	order := make([]int, nb)
	for i := range order {
		order[i] = (i + worker) % nb
	}
	return &search{
		m:         m,
		inc:       inc,
		order:     order,
		taken:     make([]int, nb),
		path:      make([]int, 0, m.Slots),
		memo:      make(map[string]int),
		maxStates: maxStates,
		key:       make([]byte, nb+2),
		minUnsch:  m.NumItems() - m.Slots,
	}
}

// run explores the whole tree; it returns false if ctx ended the search.
func (s *search) run(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	s.dfs(ctx, -1, 0)
	return !s.aborted
}

func (s *search) stateKey(last int) string {
	for i, k := range s.taken {
		s.key[i] = byte(k)
	}
	s.key[len(s.taken)] = byte((last + 1) >> 8)
	s.key[len(s.taken)+1] = byte(last + 1)
	return string(s.key)
}

func (s *search) dfs(ctx context.Context, last, changeovers int) {
	if s.aborted {
		return
	}
	s.nodes++
	if s.nodes&cancelCheckMask == 0 && ctx.Err() != nil {
		s.aborted = true
		return
	}

	t := len(s.path)
	// Stopping here leaves every remaining item unscheduled.
	stop := float64(changeovers) + s.m.Penalty*float64(s.m.NumItems()-t)
	s.inc.offer(stop, s.path)
	if t == s.m.Slots {
		return
	}
	// No extension can do better than the current changeovers plus the
	// penalty for items that never fit.
	lb := float64(changeovers) + s.m.Penalty*float64(max(0, s.minUnsch))
	if lb >= s.inc.bound()-objectiveEps {
		return
	}
	key := s.stateKey(last)
	if seen, ok := s.memo[key]; ok && seen <= changeovers {
		return
	}
	if len(s.memo) < s.maxStates {
		s.memo[key] = changeovers
	}

	// Same-color extensions first: they are free and usually lead to
	// the best incumbents early.
	for pass := 0; pass < 2; pass++ {
		for _, b := range s.order {
			k := s.taken[b]
			if k >= len(s.m.Buffers[b]) {
				continue
			}
			c := s.m.itemColor[s.m.Buffers[b][k]]
			same := last < 0 || c == last
			if (pass == 0) != same {
				continue
			}
			cost := changeovers
			if !same {
				cost++
			}
			s.taken[b]++
			s.path = append(s.path, b)
			s.dfs(ctx, c, cost)
			s.path = s.path[:len(s.path)-1]
			s.taken[b]--
			if s.aborted {
				return
			}
		}
	}
}
