package routing

import (
	"context"
	"errors"
	"log"
	"math"

	"vrpadapter/internal/opt"
)

// ErrSolved is returned when Solve is called on a model twice.
var ErrSolved = errors.New("routing: model already solved")

// Solve searches for an assignment. It returns (nil, nil) when none was found;
// Status then tells why.
func (m *model) Solve(ctx context.Context, params SearchParameters) (Assignment, error) {
	if m.status != StatusNotSolved {
		return nil, ErrSolved
	}
	logger := params.Logger
	if logger == nil {
		logger = log.Default()
	}
	if problems := m.validate(); len(problems) > 0 {
		if params.LogSearch {
			for _, p := range problems {
				logger.Printf("routing: invalid model: %s", p)
			}
		}
		m.status = StatusInvalid
		return nil, nil
	}
	for v := 0; v < m.mgr.NumVehicles(); v++ {
		if _, ok := m.scheduleRoute(v, nil); !ok {
			if params.LogSearch {
				logger.Printf("routing: vehicle=%d cannot even run empty", v)
			}
			m.status = StatusInfeasible
			return nil, nil
		}
	}

	if params.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, params.TimeLimit)
		defer cancel()
	}
	if ctx.Err() != nil {
		m.status = StatusFailTimeout
		return nil, nil
	}

	sp := newSearchProblem(m)
	prm := opt.Params{
		Seed:            params.Seed,
		TimeBudget:      params.TimeLimit,
		IterationsLimit: params.IterationLimit,
	}
	if prm.Seed == 0 {
		prm.Seed = 1
	}
	if params.LogSearch {
		prm.Logf = logger.Printf
	}
	sol, metrics := opt.Solve(ctx, sp, prm)
	m.search = metrics

	timedOut := metrics.StopReason == opt.StopTime ||
		(metrics.StopReason == opt.StopCancelled && errors.Is(ctx.Err(), context.DeadlineExceeded))
	fail := func() (Assignment, error) {
		if timedOut {
			m.status = StatusFailTimeout
		} else {
			m.status = StatusFail
		}
		return nil, nil
	}
	for _, u := range sol.Unplaced {
		if sp.units[u].Mandatory {
			if params.LogSearch {
				logger.Printf("routing: mandatory visit %v left out", sp.units[u].Nodes)
			}
			return fail()
		}
	}
	a, ok := m.buildAssignment(sol)
	if !ok {
		return fail()
	}
	if metrics.StopReason == opt.StopCancelled && !timedOut {
		m.status = StatusPartialSuccess
	} else {
		m.status = StatusSuccess
	}
	return a, nil
}

// SearchMetrics reports the statistics of the last search.
func (m *model) SearchMetrics() opt.Metrics { return m.search }

// buildAssignment turns route plans into a full assignment and checks the
// constraints that span routes.
func (m *model) buildAssignment(sol opt.Solution) (*assignment, bool) {
	a := newAssignment(m)
	planned := make([][]int64, m.mgr.NumVehicles())
	for _, p := range sol.Plans {
		inner := make([]int64, len(p.Order))
		for i, n := range p.Order {
			inner[i] = int64(n)
		}
		planned[p.Vehicle] = inner
	}
	for v, inner := range planned {
		rs, ok := m.scheduleRoute(v, inner)
		if !ok || !a.place(rs) {
			return nil, false
		}
	}
	for idx := int64(0); idx < m.mgr.numVisitIndices(); idx++ {
		if !a.visited[idx] && m.penaltyOf(idx) == math.MaxInt64 {
			return nil, false
		}
	}
	for _, d := range m.disjunctions {
		performed := false
		for _, idx := range d.indices {
			performed = performed || a.visited[idx]
		}
		if !performed {
			a.objective += d.penalty
		}
	}
	if !m.solutionConstraintsHold(a) {
		return nil, false
	}
	return a, true
}

// searchProblem exposes the model to package opt. Units are the pickup and
// delivery pairs followed by every other visit index.
type searchProblem struct {
	m     *model
	units []opt.Unit
}

func newSearchProblem(m *model) *searchProblem {
	sp := &searchProblem{m: m}
	for _, p := range m.pairs {
		sp.units = append(sp.units, m.unitOf(p.pickup, p.delivery))
	}
	for idx := int64(0); idx < m.mgr.numVisitIndices(); idx++ {
		if _, paired := m.pairOf[idx]; paired {
			continue
		}
		sp.units = append(sp.units, m.unitOf(idx))
	}
	return sp
}

func (m *model) unitOf(indices ...int64) opt.Unit {
	u := opt.Unit{}
	for _, idx := range indices {
		u.Nodes = append(u.Nodes, int(idx))
		p := m.penaltyOf(idx)
		if p == math.MaxInt64 {
			u.Mandatory = true
			continue
		}
		u.Penalty += float64(p)
	}
	return u
}

func (sp *searchProblem) NumVehicles() int  { return sp.m.mgr.NumVehicles() }
func (sp *searchProblem) Units() []opt.Unit { return sp.units }

func (sp *searchProblem) Evaluate(vehicle int, order []int) (float64, bool) {
	inner := make([]int64, len(order))
	for i, n := range order {
		inner[i] = int64(n)
	}
	rs, ok := sp.m.scheduleRoute(vehicle, inner)
	if !ok {
		return 0, false
	}
	return float64(rs.cost), true
}

func (sp *searchProblem) Relatedness(a, b int) float64 {
	cb := sp.m.arcCost[0]
	if cb < 0 {
		return 0
	}
	f := sp.m.callbacks[cb].binary
	return float64(f(int64(a), int64(b)) + f(int64(b), int64(a)))
}
