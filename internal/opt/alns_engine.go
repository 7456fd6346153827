package opt

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"
)

// MandatoryPenalty stands in for the cost of leaving a mandatory unit out.
const MandatoryPenalty = 1e12

// Problem is what the search needs to know about a routing model. Node ids are
// the model's visit indices; routes never list the vehicle depots.
type Problem interface {
	NumVehicles() int
	Units() []Unit
	// Evaluate returns the cost of a vehicle visiting order and whether that
	// route satisfies every route-local constraint.
	Evaluate(vehicle int, order []int) (cost float64, ok bool)
	// Relatedness is small for nodes that belong together.
	Relatedness(a, b int) float64
}

// Unit is inserted and removed as a whole: a single node, or a pickup
// followed later on the same route by its delivery.
type Unit struct {
	Nodes     []int
	Penalty   float64
	Mandatory bool
}

func (u Unit) dropCost() float64 {
	if u.Mandatory {
		return MandatoryPenalty
	}
	return u.Penalty
}

type Params struct {
	Seed                    int64
	TimeBudget              time.Duration
	IterationsLimit         int
	InitialTemp             float64
	Cooling                 float64
	InitialRemovalWeights   []float64 // [random, shaw]
	InitialInsertionWeights []float64 // [greedy, regret2]
	Logf                    func(format string, args ...any)
}

type RoutePlan struct {
	Vehicle int
	Order   []int
}

type Solution struct {
	Plans    []RoutePlan
	Unplaced []int // unit ids
	Cost     float64
}

const (
	StopIterations = "iterations"
	StopTime       = "time"
	StopCancelled  = "cancelled"
	StopNoUnits    = "no-units"
)

type Metrics struct {
	RemovalSelects        [2]int // random, shaw
	InsertSelects         [2]int // greedy, regret2
	Iterations            int
	Improvements          int
	AcceptedWorse         int
	SeedCost              float64
	BestCost              float64
	FinalRemovalWeights   [2]float64
	FinalInsertionWeights [2]float64
	Snapshots             []WeightSnapshot
	StopReason            string
	Elapsed               time.Duration
}

type WeightSnapshot struct {
	Iteration int
	Removal   [2]float64
	Insertion [2]float64
}

// Solve runs adaptive large neighbourhood search: a greedy seed, then rounds
// of random or related removal, greedy or regret-2 reinsertion and relocate
// improvement under simulated annealing acceptance. The run is deterministic
// for a given seed and iteration limit.
func Solve(ctx context.Context, p Problem, prm Params) (Solution, Metrics) {
	start := time.Now()
	if prm.Seed == 0 {
		prm.Seed = time.Now().UnixNano()
	}
	if prm.IterationsLimit <= 0 && prm.TimeBudget <= 0 {
		prm.IterationsLimit = 1000
	}
	rng := rand.New(rand.NewSource(prm.Seed))
	s := newSearch(p)

	curr := s.emptyState()
	all := make([]int, len(s.units))
	for i := range all {
		all[i] = i
	}
	curr = s.greedyInsert(curr, all)
	curr = s.relocateImprove(curr)
	curr = s.twoOptImprove(curr, 2)
	best := curr.clone()

	remW := []float64{1, 1}
	insW := []float64{1, 1}
	if len(prm.InitialRemovalWeights) == 2 {
		remW = []float64{prm.InitialRemovalWeights[0], prm.InitialRemovalWeights[1]}
	}
	if len(prm.InitialInsertionWeights) == 2 {
		insW = []float64{prm.InitialInsertionWeights[0], prm.InitialInsertionWeights[1]}
	}
	temp := prm.InitialTemp
	if temp <= 0 {
		temp = math.Max(1, 0.01*math.Min(curr.cost, MandatoryPenalty))
	}
	cool := 0.995
	if prm.Cooling > 0 && prm.Cooling < 1 {
		cool = prm.Cooling
	}
	m := Metrics{SeedCost: curr.cost, BestCost: best.cost}
	if prm.Logf != nil {
		prm.Logf("search: seed cost=%.0f unplaced=%d", curr.cost, len(curr.unplaced()))
	}
	var deadline time.Time
	if prm.TimeBudget > 0 {
		deadline = start.Add(prm.TimeBudget)
	}
	snapshotEvery := 50
	for {
		if len(s.units) == 0 {
			m.StopReason = StopNoUnits
			break
		}
		if prm.IterationsLimit > 0 && m.Iterations >= prm.IterationsLimit {
			m.StopReason = StopIterations
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			m.StopReason = StopTime
			break
		}
		if ctx.Err() != nil {
			m.StopReason = StopCancelled
			break
		}
		m.Iterations++
		k := 1 + rng.Intn(3)
		op := selectOp(remW, rng)
		m.RemovalSelects[op]++
		ip := selectOp(insW, rng)
		m.InsertSelects[ip]++

		cand := curr.clone()
		var removed []int
		switch op {
		case 0:
			removed = s.randomRemoval(cand, k, rng)
		case 1:
			removed = s.shawRemoval(cand, k, rng)
		}
		cand = s.removeUnits(cand, removed)
		pending := cand.unplaced()
		switch ip {
		case 0:
			cand = s.greedyInsert(cand, pending)
		case 1:
			cand = s.regretInsert(cand, pending)
		}
		cand = s.relocateImprove(cand)
		cand = s.twoOptImprove(cand, 1)

		delta := cand.cost - curr.cost
		if delta < -1e-9 || rng.Float64() < math.Exp(-delta/(temp+1e-9)) {
			curr = cand
			if curr.cost < best.cost-1e-9 {
				best = curr.clone()
				remW[op] += 0.1
				insW[ip] += 0.1
				m.Improvements++
				m.BestCost = best.cost
				if prm.Logf != nil {
					prm.Logf("search: iter=%d best=%.0f unplaced=%d", m.Iterations, best.cost, len(best.unplaced()))
				}
			} else {
				remW[op] += 0.01
				insW[ip] += 0.01
				m.AcceptedWorse++
			}
		} else {
			remW[op] = math.Max(0.01, remW[op]*0.999)
			insW[ip] = math.Max(0.01, insW[ip]*0.999)
		}
		temp *= cool
		if m.Iterations%snapshotEvery == 0 {
			m.Snapshots = append(m.Snapshots, WeightSnapshot{Iteration: m.Iterations, Removal: [2]float64{remW[0], remW[1]}, Insertion: [2]float64{insW[0], insW[1]}})
		}
	}
	m.BestCost = best.cost
	m.FinalRemovalWeights = [2]float64{remW[0], remW[1]}
	m.FinalInsertionWeights = [2]float64{insW[0], insW[1]}
	m.Elapsed = time.Since(start)
	if prm.Logf != nil {
		prm.Logf("search: stop=%s iterations=%d best=%.0f elapsed=%v", m.StopReason, m.Iterations, best.cost, m.Elapsed)
	}
	return best.solution(), m
}

type search struct {
	p      Problem
	units  []Unit
	unitOf map[int]int
	nv     int
}

func newSearch(p Problem) *search {
	s := &search{p: p, units: p.Units(), unitOf: map[int]int{}, nv: p.NumVehicles()}
	for ui, u := range s.units {
		for _, n := range u.Nodes {
			s.unitOf[n] = ui
		}
	}
	return s
}

// state is a working solution. placed[u] is the vehicle of unit u or -1.
type state struct {
	plans     [][]int
	routeCost []float64
	placed    []int
	dropCost  []float64
	cost      float64
}

func (s *search) emptyState() *state {
	st := &state{
		plans:     make([][]int, s.nv),
		routeCost: make([]float64, s.nv),
		placed:    make([]int, len(s.units)),
		dropCost:  make([]float64, len(s.units)),
	}
	for v := 0; v < s.nv; v++ {
		c, _ := s.p.Evaluate(v, nil)
		st.routeCost[v] = c
	}
	for u := range st.placed {
		st.placed[u] = -1
		st.dropCost[u] = s.units[u].dropCost()
	}
	st.recost()
	return st
}

func (st *state) recost() {
	total := 0.0
	for _, c := range st.routeCost {
		total += c
	}
	for u, v := range st.placed {
		if v < 0 {
			total += st.dropCost[u]
		}
	}
	st.cost = total
}

func (st *state) clone() *state {
	out := &state{
		plans:     make([][]int, len(st.plans)),
		routeCost: append([]float64(nil), st.routeCost...),
		placed:    append([]int(nil), st.placed...),
		dropCost:  st.dropCost,
		cost:      st.cost,
	}
	for v, pl := range st.plans {
		out.plans[v] = append([]int(nil), pl...)
	}
	return out
}

func (st *state) unplaced() []int {
	var out []int
	for u, v := range st.placed {
		if v < 0 {
			out = append(out, u)
		}
	}
	return out
}

func (st *state) solution() Solution {
	sol := Solution{Plans: make([]RoutePlan, len(st.plans)), Unplaced: st.unplaced(), Cost: st.cost}
	for v, pl := range st.plans {
		sol.Plans[v] = RoutePlan{Vehicle: v, Order: append([]int{}, pl...)}
	}
	return sol
}

type insertion struct {
	unit    int
	vehicle int
	order   []int
	cost    float64 // new route cost
	delta   float64
}

// insertions enumerates every feasible way to put unit u on any vehicle.
func (s *search) insertions(st *state, u int) []insertion {
	nodes := s.units[u].Nodes
	var out []insertion
	for v := 0; v < s.nv; v++ {
		pl := st.plans[v]
		try := func(order []int) {
			c, ok := s.p.Evaluate(v, order)
			if ok {
				out = append(out, insertion{unit: u, vehicle: v, order: order, cost: c, delta: c - st.routeCost[v]})
			}
		}
		for i := 0; i <= len(pl); i++ {
			if len(nodes) == 1 {
				try(insertAt(pl, i, nodes[0]))
				continue
			}
			withFirst := insertAt(pl, i, nodes[0])
			for j := i + 1; j <= len(withFirst); j++ {
				try(insertAt(withFirst, j, nodes[1]))
			}
		}
	}
	return out
}

func insertAt(order []int, pos, node int) []int {
	out := make([]int, 0, len(order)+1)
	out = append(out, order[:pos]...)
	out = append(out, node)
	out = append(out, order[pos:]...)
	return out
}

func (s *search) apply(st *state, ins insertion) {
	st.plans[ins.vehicle] = ins.order
	st.routeCost[ins.vehicle] = ins.cost
	st.placed[ins.unit] = ins.vehicle
	st.recost()
}

// greedyInsert repeatedly applies the cheapest insertion that beats leaving
// its unit out.
func (s *search) greedyInsert(st *state, pending []int) *state {
	pending = append([]int(nil), pending...)
	for len(pending) > 0 {
		bestAt, found := -1, false
		var best insertion
		for pi, u := range pending {
			for _, ins := range s.insertions(st, u) {
				if ins.delta >= st.dropCost[u] {
					continue
				}
				if !found || ins.delta-st.dropCost[u] < best.delta-st.dropCost[best.unit] {
					best, bestAt, found = ins, pi, true
				}
			}
		}
		if !found {
			break
		}
		s.apply(st, best)
		pending = append(pending[:bestAt], pending[bestAt+1:]...)
	}
	return st
}

// regretInsert places first the unit that would lose most by not getting its
// best position; leaving a unit out counts as one of its options.
func (s *search) regretInsert(st *state, pending []int) *state {
	pending = append([]int(nil), pending...)
	for len(pending) > 0 {
		bestAt, found := -1, false
		var best insertion
		bestRegret := math.Inf(-1)
		for pi, u := range pending {
			opts := s.insertions(st, u)
			if len(opts) == 0 {
				continue
			}
			sort.SliceStable(opts, func(a, b int) bool { return opts[a].delta < opts[b].delta })
			if opts[0].delta >= st.dropCost[u] {
				continue
			}
			second := st.dropCost[u]
			if len(opts) > 1 && opts[1].delta < second {
				second = opts[1].delta
			}
			regret := second - opts[0].delta
			if !found || regret > bestRegret {
				best, bestAt, bestRegret, found = opts[0], pi, regret, true
			}
		}
		if !found {
			break
		}
		s.apply(st, best)
		pending = append(pending[:bestAt], pending[bestAt+1:]...)
	}
	return st
}

func (s *search) placedUnits(st *state) []int {
	var out []int
	for u, v := range st.placed {
		if v >= 0 {
			out = append(out, u)
		}
	}
	return out
}

func (s *search) randomRemoval(st *state, k int, rng *rand.Rand) []int {
	all := s.placedUnits(st)
	var removed []int
	for i := 0; i < k && len(all) > 0; i++ {
		j := rng.Intn(len(all))
		removed = append(removed, all[j])
		all = append(all[:j], all[j+1:]...)
	}
	return removed
}

// shawRemoval picks a random placed unit and the k-1 units most related to it.
func (s *search) shawRemoval(st *state, k int, rng *rand.Rand) []int {
	assigned := s.placedUnits(st)
	if len(assigned) == 0 {
		return nil
	}
	seed := assigned[rng.Intn(len(assigned))]
	type pair struct {
		unit  int
		score float64
	}
	var rel []pair
	a := s.units[seed].Nodes[0]
	for _, u := range assigned {
		if u == seed {
			continue
		}
		rel = append(rel, pair{unit: u, score: s.p.Relatedness(a, s.units[u].Nodes[0])})
	}
	sort.SliceStable(rel, func(i, j int) bool { return rel[i].score < rel[j].score })
	removed := []int{seed}
	for i := 0; i < len(rel) && len(removed) < k; i++ {
		removed = append(removed, rel[i].unit)
	}
	return removed
}

func (s *search) removeUnits(st *state, removed []int) *state {
	if len(removed) == 0 {
		return st
	}
	touched := map[int]bool{}
	for _, u := range removed {
		v := st.placed[u]
		if v < 0 {
			continue
		}
		drop := map[int]bool{}
		for _, n := range s.units[u].Nodes {
			drop[n] = true
		}
		kept := st.plans[v][:0:0]
		for _, n := range st.plans[v] {
			if !drop[n] {
				kept = append(kept, n)
			}
		}
		st.plans[v] = kept
		st.placed[u] = -1
		touched[v] = true
	}
	for v := range st.plans {
		if !touched[v] {
			continue
		}
		// removing visits can break route-local feasibility (a span lower
		// bound or a break that needed the idle time); such routes are emptied
		c, ok := s.p.Evaluate(v, st.plans[v])
		if !ok {
			for _, n := range st.plans[v] {
				st.placed[s.unitOf[n]] = -1
			}
			st.plans[v] = nil
			c, _ = s.p.Evaluate(v, nil)
		}
		st.routeCost[v] = c
	}
	st.recost()
	return st
}

// relocateImprove moves single units to their best position while that
// strictly lowers the total cost.
func (s *search) relocateImprove(st *state) *state {
	improved := true
	for rounds := 0; improved && rounds < 10; rounds++ {
		improved = false
		for _, u := range s.placedUnits(st) {
			trial := s.removeUnits(st.clone(), []int{u})
			if trial.placed[u] >= 0 {
				continue
			}
			var best *insertion
			for _, ins := range s.insertions(trial, u) {
				ins := ins
				if best == nil || ins.delta < best.delta {
					best = &ins
				}
			}
			if best == nil {
				continue
			}
			cand := trial.clone()
			s.apply(cand, *best)
			if cand.cost < st.cost-1e-9 && len(cand.unplaced()) <= len(st.unplaced()) {
				st = cand
				improved = true
			}
		}
	}
	return st
}

func selectOp(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}
