package routing

import "sort"

type span struct{ lo, hi int64 }

// routeSchedule is one vehicle's visit sequence with fixed cumul and slack
// values for every dimension.
type routeSchedule struct {
	vehicle int
	seq     []int64
	cumul   [][]int64 // [dimension][position]
	slack   [][]int64 // [dimension][position], 0 at the end position
	breaks  map[*interval]int64
	cost    int64
}

// scheduleRoute checks a vehicle's route (visits between its start and end)
// against every constraint that can be judged from the route alone and fixes
// its cumul values following each dimension's finalizers.
func (m *model) scheduleRoute(vehicle int, inner []int64) (*routeSchedule, bool) {
	seq := make([]int64, 0, len(inner)+2)
	seq = append(seq, m.mgr.StartIndex(vehicle))
	seq = append(seq, inner...)
	seq = append(seq, m.mgr.EndIndex(vehicle))

	if !m.pairsConsistent(inner) {
		return nil, false
	}
	for _, idx := range seq {
		vv := m.vehicles[idx]
		if int64(vehicle) < vv.lo || int64(vehicle) > vv.hi {
			return nil, false
		}
	}
	rs := &routeSchedule{
		vehicle: vehicle,
		seq:     seq,
		cumul:   make([][]int64, len(m.dims)),
		slack:   make([][]int64, len(m.dims)),
		breaks:  map[*interval]int64{},
	}
	for _, d := range m.dims {
		c, s, ok := d.schedule(vehicle, seq, rs.breaks)
		if !ok {
			return nil, false
		}
		rs.cumul[d.pos] = c
		rs.slack[d.pos] = s
	}
	if !m.routeConstraintsHold(rs) {
		return nil, false
	}
	rs.cost = m.routeCost(rs)
	return rs, true
}

func (m *model) pairsConsistent(inner []int64) bool {
	if len(m.pairs) == 0 {
		return true
	}
	pos := make(map[int64]int, len(inner))
	for i, idx := range inner {
		pos[idx] = i
	}
	for _, idx := range inner {
		pi, ok := m.pairOf[idx]
		if !ok {
			continue
		}
		p := m.pairs[pi]
		pp, okP := pos[p.pickup]
		dp, okD := pos[p.delivery]
		if !okP || !okD || pp > dp {
			return false
		}
	}
	return true
}

func (m *model) routeCost(rs *routeSchedule) int64 {
	v := rs.vehicle
	if len(rs.seq) == 2 && !m.usedWhenEmpty[v] {
		return 0
	}
	var cost int64
	if cb := m.arcCost[v]; cb >= 0 {
		f := m.callbacks[cb].binary
		for i := 0; i+1 < len(rs.seq); i++ {
			cost += f(rs.seq[i], rs.seq[i+1])
		}
	}
	last := len(rs.seq) - 1
	for _, d := range m.dims {
		c := rs.cumul[d.pos]
		cost += d.spanCost[v] * (c[last] - c[0])
		for i, idx := range rs.seq {
			cost += d.softCost(idx, c[i])
		}
	}
	return cost
}

// schedule fixes the dimension along seq. Breaks of the vehicle are placed in
// the slack of the earliest gap that keeps the chain feasible; their starts
// are written to breaksOut.
func (d *dimension) schedule(vehicle int, seq []int64, breaksOut map[*interval]int64) ([]int64, []int64, bool) {
	n := len(seq)
	transit := make([]int64, n-1)
	for i := 0; i+1 < n; i++ {
		transit[i] = d.transit(vehicle, seq[i], seq[i+1])
	}
	ranges := make([]span, n)
	capV := d.capacities[vehicle]
	for i, idx := range seq {
		cv := d.cumuls[idx]
		r := span{lo: max64(cv.lo, 0), hi: min64(cv.hi, capV)}
		if i == 0 && d.fixStartZero {
			r.hi = min64(r.hi, 0)
		}
		if r.lo > r.hi {
			return nil, nil, false
		}
		ranges[i] = r
	}

	brks := append([]*interval(nil), d.breaks[vehicle]...)
	sort.SliceStable(brks, func(a, b int) bool { return brks[a].startMin < brks[b].startMin })
	placement := make([]int, len(brks))
	for k := range brks {
		placed := false
		first := 0
		if k > 0 {
			first = placement[k-1]
		}
		for g := first; g < n-1; g++ {
			placement[k] = g
			if _, _, _, ok := d.solveWithBreaks(vehicle, seq, ranges, transit, brks[:k+1], placement[:k+1]); ok {
				placed = true
				break
			}
		}
		if !placed {
			return nil, nil, false
		}
	}
	cumul, slack, starts, ok := d.solveWithBreaks(vehicle, seq, ranges, transit, brks, placement)
	if !ok {
		return nil, nil, false
	}
	for k, b := range brks {
		breaksOut[b] = starts[k]
	}
	return cumul, slack, true
}

// solveWithBreaks lays the nodes and the placed breaks out as one chain of
// difference constraints and solves it.
func (d *dimension) solveWithBreaks(vehicle int, seq []int64, ranges []span, transit []int64, brks []*interval, placement []int) ([]int64, []int64, []int64, bool) {
	n := len(seq)
	points := make([]span, 0, n+len(brks))
	gaps := make([]span, 0, n+len(brks))
	late := make([]bool, 0, n+len(brks))
	nodePoint := make([]int, n)
	breakPoint := make([]int, len(brks))
	k := 0
	for i := 0; i < n; i++ {
		nodePoint[i] = len(points)
		points = append(points, ranges[i])
		late = append(late, d.pullsLate(seq[i]))
		if i == n-1 {
			break
		}
		sv := d.slacks[seq[i]]
		slackLo, slackHi := max64(sv.lo, 0), min64(sv.hi, d.slackMax)
		if k >= len(brks) || placement[k] != i {
			gaps = append(gaps, span{lo: addSat(transit[i], slackLo), hi: addSat(transit[i], slackHi)})
			continue
		}
		gaps = append(gaps, span{lo: 0, hi: slackHi})
		for k < len(brks) && placement[k] == i {
			b := brks[k]
			breakPoint[k] = len(points)
			points = append(points, span{lo: b.startMin, hi: b.startMax})
			late = append(late, true)
			next := b.duration
			if k+1 >= len(brks) || placement[k+1] != i {
				next = addSat(next, transit[i])
			}
			gaps = append(gaps, span{lo: next, hi: addSat(next, slackHi)})
			k++
		}
	}
	values, ok := solveChain(points, gaps, d.minCumul[seq[n-1]], late)
	if !ok {
		return nil, nil, nil, false
	}
	cumul := make([]int64, n)
	for i := range cumul {
		cumul[i] = values[nodePoint[i]]
	}
	slack := make([]int64, n)
	for i := 0; i+1 < n; i++ {
		s := cumul[i+1] - cumul[i] - transit[i]
		sv := d.slacks[seq[i]]
		if s < max64(sv.lo, 0) || s > min64(sv.hi, d.slackMax) {
			return nil, nil, nil, false
		}
		slack[i] = s
	}
	if cumul[n-1]-cumul[0] > d.spanUpper[vehicle] {
		return nil, nil, nil, false
	}
	starts := make([]int64, len(brks))
	for j := range brks {
		starts[j] = values[breakPoint[j]]
	}
	return cumul, slack, starts, true
}

// solveChain solves x[k] in points[k], x[k+1]-x[k] in gaps[k].
//
// With endEarly the last value is the smallest feasible one and the chain is
// fixed backwards: points marked late take the largest value their successor
// allows, the others the smallest. Otherwise the chain is fixed forwards with
// every value as small as possible, except a late first point which starts as
// late as the rest of the chain allows.
func solveChain(points []span, gaps []span, endEarly bool, late []bool) ([]int64, bool) {
	n := len(points)
	feas := make([]span, n)
	feas[0] = points[0]
	for k := 1; k < n; k++ {
		g := gaps[k-1]
		r := span{lo: addSat(feas[k-1].lo, g.lo), hi: addSat(feas[k-1].hi, g.hi)}
		r.lo = max64(r.lo, points[k].lo)
		r.hi = min64(r.hi, points[k].hi)
		if r.lo > r.hi {
			return nil, false
		}
		feas[k] = r
	}
	x := make([]int64, n)
	if endEarly {
		x[n-1] = feas[n-1].lo
		for k := n - 2; k >= 0; k-- {
			if late[k] {
				x[k] = min64(feas[k].hi, x[k+1]-gaps[k].lo)
			} else {
				x[k] = max64(feas[k].lo, addSat(x[k+1], -gaps[k].hi))
			}
		}
		return x, true
	}

	// values from which the rest of the chain can still be completed
	back := make([]span, n)
	back[n-1] = points[n-1]
	for k := n - 2; k >= 0; k-- {
		g := gaps[k]
		r := span{lo: addSat(back[k+1].lo, -g.hi), hi: addSat(back[k+1].hi, -g.lo)}
		r.lo = max64(r.lo, points[k].lo)
		r.hi = min64(r.hi, points[k].hi)
		if r.lo > r.hi {
			return nil, false
		}
		back[k] = r
	}
	x[0] = back[0].lo
	if late[0] {
		x[0] = back[0].hi
	}
	for k := 1; k < n; k++ {
		x[k] = max64(addSat(x[k-1], gaps[k-1].lo), back[k].lo)
	}
	return x, true
}
