package routing

type assignment struct {
	m          *model
	next       []int64
	vehicle    []int64
	visited    []bool
	cumul      [][]int64 // [dimension][index]
	slack      [][]int64
	breakStart map[*interval]int64
	objective  int64
}

func newAssignment(m *model) *assignment {
	n := m.mgr.NumIndices()
	a := &assignment{
		m:          m,
		next:       make([]int64, n),
		vehicle:    make([]int64, n),
		visited:    make([]bool, n),
		cumul:      make([][]int64, len(m.dims)),
		slack:      make([][]int64, len(m.dims)),
		breakStart: map[*interval]int64{},
	}
	for i := range a.next {
		a.next[i] = int64(i)
		a.vehicle[i] = -1
	}
	for _, d := range m.dims {
		a.cumul[d.pos] = make([]int64, n)
		a.slack[d.pos] = make([]int64, n)
	}
	return a
}

// place records a route. It reports false if an index is visited twice.
func (a *assignment) place(rs *routeSchedule) bool {
	for i, idx := range rs.seq {
		if a.visited[idx] {
			return false
		}
		a.visited[idx] = true
		a.vehicle[idx] = int64(rs.vehicle)
		if i+1 < len(rs.seq) {
			a.next[idx] = rs.seq[i+1]
		}
		for _, d := range a.m.dims {
			a.cumul[d.pos][idx] = rs.cumul[d.pos][i]
			a.slack[d.pos][idx] = rs.slack[d.pos][i]
		}
	}
	for b, s := range rs.breaks {
		a.breakStart[b] = s
	}
	a.objective += rs.cost
	return true
}

func (a *assignment) own(v IntVar) (*intVar, bool) {
	iv, ok := v.(*intVar)
	if !ok || iv.index < 0 || iv.index >= int64(len(a.next)) {
		return nil, false
	}
	return iv, true
}

func (a *assignment) Value(v IntVar) int64 {
	iv, ok := a.own(v)
	if !ok {
		return 0
	}
	switch iv.kind {
	case kindNext:
		return a.next[iv.index]
	case kindVehicle:
		return a.vehicle[iv.index]
	}
	return a.Min(v)
}

func (a *assignment) Min(v IntVar) int64 {
	iv, ok := a.own(v)
	if !ok {
		return 0
	}
	switch iv.kind {
	case kindCumul:
		if a.visited[iv.index] {
			return a.cumul[iv.dim.pos][iv.index]
		}
		return iv.lo
	case kindSlack:
		if a.visited[iv.index] && a.m.reported[iv] {
			return a.slack[iv.dim.pos][iv.index]
		}
		return iv.lo
	}
	return a.Value(v)
}

func (a *assignment) Max(v IntVar) int64 {
	iv, ok := a.own(v)
	if !ok {
		return 0
	}
	switch iv.kind {
	case kindCumul:
		if a.visited[iv.index] {
			return a.Min(v)
		}
		return iv.hi
	case kindSlack:
		if a.visited[iv.index] && a.m.reported[iv] {
			return a.Min(v)
		}
		return iv.hi
	}
	return a.Value(v)
}

func (a *assignment) StartValue(iv IntervalVar) int64 {
	if b, ok := iv.(*interval); ok {
		return a.breakStart[b]
	}
	return 0
}

func (a *assignment) Performed(iv IntervalVar) bool {
	b, ok := iv.(*interval)
	if !ok {
		return false
	}
	_, ok = a.breakStart[b]
	return ok
}

func (a *assignment) ObjectiveValue() int64 { return a.objective }
