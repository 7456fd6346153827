package routing

// valueSource answers the value of a variable in a (partial) solution;
// known is false when the value is not decided by it.
type valueSource func(v *intVar) (value int64, known bool)

func (c sideConstraint) holds(val valueSource) bool {
	a, okA := val(c.a)
	b, okB := val(c.b)
	if !okA || !okB {
		return true
	}
	switch c.kind {
	case constraintEqual:
		return a == b
	default:
		return a <= b
	}
}

// routeConstraintsHold evaluates side constraints whose variables all live on
// this route.
func (m *model) routeConstraintsHold(rs *routeSchedule) bool {
	if len(m.constraints) == 0 {
		return true
	}
	pos := make(map[int64]int, len(rs.seq))
	for i, idx := range rs.seq {
		pos[idx] = i
	}
	val := func(v *intVar) (int64, bool) {
		i, ok := pos[v.index]
		if !ok {
			return 0, false
		}
		switch v.kind {
		case kindNext:
			if i+1 < len(rs.seq) {
				return rs.seq[i+1], true
			}
			return v.index, true
		case kindVehicle:
			return int64(rs.vehicle), true
		case kindCumul:
			return rs.cumul[v.dim.pos][i], true
		default:
			return rs.slack[v.dim.pos][i], true
		}
	}
	for _, idx := range rs.seq {
		for _, cid := range m.consOf[idx] {
			if !m.constraints[cid].holds(val) {
				return false
			}
		}
	}
	return true
}

// solutionConstraintsHold evaluates every side constraint on a full assignment.
// Cumul and slack values of unperformed indices are free, so constraints on
// them hold.
func (m *model) solutionConstraintsHold(a *assignment) bool {
	val := func(v *intVar) (int64, bool) {
		switch v.kind {
		case kindNext:
			return a.next[v.index], true
		case kindVehicle:
			return a.vehicle[v.index], true
		case kindCumul:
			return a.cumul[v.dim.pos][v.index], a.visited[v.index]
		default:
			return a.slack[v.dim.pos][v.index], a.visited[v.index]
		}
	}
	for _, c := range m.constraints {
		if !c.holds(val) {
			return false
		}
	}
	return true
}
