package solver

import (
	"context"
	"math"

	gophersat "github.com/crillab/gophersat/solver"
	"github.com/sirupsen/logrus"
)

// costScale converts objective weights to the integer costs of the
// pseudo-boolean encoding: a changeover costs costScale.
const costScale = 1000

// pbTerm is one weighted literal of a linear constraint.
type pbTerm struct {
	lit, w int
}

// pbEncoding is the model written as pseudo-boolean constraints over
// 1-based variables:
//
//	x[t][s]  item s in slot t (0 when s cannot reach slot t)
//	o[t]     slot t is occupied
//	y[t][c]  slot t carries color c
//	z[t]     changeover between slots t-1 and t
//	u[s]     item s is unscheduled
type pbEncoding struct {
	nbVars  int
	constrs []gophersat.PBConstr
	costLit []gophersat.Lit
	costW   []int

	x, y    [][]int
	o, z, u []int
	itemBuf []int

	// exact is false when the penalty is not a multiple of 1/costScale, in
	// which case a solution optimal for the encoding need not be optimal
	// for the model.
	exact bool
}

func (e *pbEncoding) newVar() int {
	e.nbVars++
	return e.nbVars
}

// atLeast adds Σ w·lit >= rhs. Negative weights are moved onto the negated
// literal so that every stored weight is positive.
func (e *pbEncoding) atLeast(terms []pbTerm, rhs int) {
	lits := make([]int, 0, len(terms))
	weights := make([]int, 0, len(terms))
	for _, t := range terms {
		switch {
		case t.w > 0:
			lits = append(lits, t.lit)
			weights = append(weights, t.w)
		case t.w < 0:
			lits = append(lits, -t.lit)
			weights = append(weights, -t.w)
			rhs -= t.w
		}
	}
	if rhs <= 0 {
		return
	}
	e.constrs = append(e.constrs, gophersat.GtEq(lits, weights, rhs))
}

// atMost adds Σ w·lit <= rhs.
func (e *pbEncoding) atMost(terms []pbTerm, rhs int) {
	neg := make([]pbTerm, len(terms))
	for i, t := range terms {
		neg[i] = pbTerm{lit: t.lit, w: -t.w}
	}
	e.atLeast(neg, -rhs)
}

func (e *pbEncoding) equal(terms []pbTerm, rhs int) {
	e.atLeast(terms, rhs)
	e.atMost(terms, rhs)
}

// encode writes constraints (a) to (e) of the formulation plus the head
// prefix and contiguity constraints.
func encode(m *Model) *pbEncoding {
	n, slots, nc := m.NumItems(), m.Slots, len(m.Colors)
	e := &pbEncoding{itemBuf: make([]int, n)}

	pos := make([]int, n)
	for b, idx := range m.Buffers {
		for k, s := range idx {
			pos[s] = k
			e.itemBuf[s] = b
		}
	}

	e.x = make([][]int, slots)
	for t := range e.x {
		e.x[t] = make([]int, n)
		for s := 0; s < n; s++ {
			if pos[s] <= t {
				e.x[t][s] = e.newVar()
			}
		}
	}
	e.o = make([]int, slots)
	e.y = make([][]int, slots)
	e.z = make([]int, slots)
	for t := 0; t < slots; t++ {
		e.o[t] = e.newVar()
		e.y[t] = make([]int, nc)
		for c := range e.y[t] {
			e.y[t][c] = e.newVar()
		}
		if t > 0 {
			e.z[t] = e.newVar()
		}
	}
	e.u = make([]int, n)
	for s := range e.u {
		e.u[s] = e.newVar()
	}

	for t := 0; t < slots; t++ {
		// (a) at most one item per slot, and o[t] marks occupancy
		occ := []pbTerm{{e.o[t], -1}}
		for s := 0; s < n; s++ {
			if v := e.x[t][s]; v != 0 {
				occ = append(occ, pbTerm{v, 1})
			}
		}
		e.equal(occ, 0)
		if t+1 < slots {
			e.atLeast([]pbTerm{{e.o[t], 1}, {e.o[t+1], -1}}, 0)
		}
		// (d) slot color
		for c := 0; c < nc; c++ {
			col := []pbTerm{{e.y[t][c], -1}}
			for s := 0; s < n; s++ {
				if v := e.x[t][s]; v != 0 && m.itemColor[s] == c {
					col = append(col, pbTerm{v, 1})
				}
			}
			e.equal(col, 0)
		}
		// (e) z[t] >= y[t,c] + o[t-1] - y[t-1,c] - 1
		if t > 0 {
			for c := 0; c < nc; c++ {
				e.atLeast([]pbTerm{
					{e.z[t], 1}, {e.y[t-1][c], 1}, {e.y[t][c], -1}, {e.o[t-1], -1},
				}, -1)
			}
		}
	}

	// (b) every item is scheduled once or left unscheduled
	for s := 0; s < n; s++ {
		terms := []pbTerm{{e.u[s], 1}}
		for t := 0; t < slots; t++ {
			if v := e.x[t][s]; v != 0 {
				terms = append(terms, pbTerm{v, 1})
			}
		}
		e.equal(terms, 1)
	}

	// (c) buffer order: the successor of an unscheduled item is unscheduled,
	// and a successor in slot t needs its predecessor in an earlier slot.
	for _, idx := range m.Buffers {
		for k := 1; k < len(idx); k++ {
			p, q := idx[k-1], idx[k]
			e.atLeast([]pbTerm{{e.u[q], 1}, {e.u[p], -1}}, 0)
			for t := 0; t < slots; t++ {
				if e.x[t][q] == 0 {
					continue
				}
				terms := []pbTerm{{e.x[t][q], -1}}
				for t2 := 0; t2 < t; t2++ {
					if v := e.x[t2][p]; v != 0 {
						terms = append(terms, pbTerm{v, 1})
					}
				}
				e.atLeast(terms, 0)
			}
		}
	}

	scaled := m.Penalty * costScale
	wu := int(math.Round(scaled))
	e.exact = math.Abs(scaled-float64(wu)) < 1e-9
	for t := 1; t < slots; t++ {
		e.costLit = append(e.costLit, gophersat.IntToLit(int32(e.z[t])))
		e.costW = append(e.costW, costScale)
	}
	if wu > 0 {
		for s := 0; s < n; s++ {
			e.costLit = append(e.costLit, gophersat.IntToLit(int32(e.u[s])))
			e.costW = append(e.costW, wu)
		}
	}
	return e
}

// path reads the buffer index of every occupied slot from a solver model.
func (e *pbEncoding) path(model []bool) []int {
	value := func(v int) bool { return v > 0 && v <= len(model) && model[v-1] }
	var path []int
	for t := range e.x {
		s := -1
		for i, v := range e.x[t] {
			if value(v) {
				s = i
				break
			}
		}
		if s < 0 {
			break
		}
		path = append(path, e.itemBuf[s])
	}
	return path
}

// solvePB optimizes the pseudo-boolean encoding and offers its solution to
// inc. It reports true when the engine proved optimality for the model.
// When ctx ends first the engine is told to stop and solvePB returns at
// once; the engine goroutine exits at its next stop check.
func solvePB(ctx context.Context, m *Model, inc *incumbent) bool {
	if ctx.Err() != nil {
		return false
	}
	type outcome struct {
		e   *pbEncoding
		res gophersat.Result
	}
	stop := make(chan struct{})
	done := make(chan outcome, 1)
	go func() {
		e := encode(m)
		pb := gophersat.ParsePBConstrs(e.constrs)
		pb.SetCostFunc(e.costLit, e.costW)
		done <- outcome{e: e, res: gophersat.New(pb).Optimal(nil, stop)}
	}()

	select {
	case out := <-done:
		e, res := out.e, out.res
		switch res.Status {
		case gophersat.Sat:
			path := e.path(res.Model)
			_, _, objective := m.sequence(path)
			inc.offer(objective, path)
			logrus.Debugf("[solver] pseudo-boolean optimum cost=%d objective=%.3f vars=%d constraints=%d",
				res.Weight, objective, e.nbVars, len(e.constrs))
			return e.exact
		case gophersat.Unsat:
			return true
		default:
			return false
		}
	case <-ctx.Done():
		close(stop)
		return false
	}
}
