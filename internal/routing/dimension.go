package routing

import "math"

type softBound struct {
	bound       int64
	coefficient int64
}

type dimension struct {
	name         string
	pos          int
	model        *model
	transits     []int // callback per vehicle
	slackMax     int64
	capacities   []int64
	fixStartZero bool
	cumuls       []*intVar
	slacks       []*intVar
	softUpper    map[int64]softBound
	softLower    map[int64]softBound
	spanCost     []int64
	spanUpper    []int64
	breaks       [][]*interval
	// finalizer targets by index
	maxCumul map[int64]bool
	minCumul map[int64]bool
	minSlack map[int64]bool
}

func newDimension(m *model, name string, transits []int, slackMax int64, capacities []int64, fixStartZero bool) *dimension {
	nv := m.mgr.NumVehicles()
	d := &dimension{
		name:         name,
		model:        m,
		transits:     transits,
		slackMax:     slackMax,
		capacities:   capacities,
		fixStartZero: fixStartZero,
		softUpper:    map[int64]softBound{},
		softLower:    map[int64]softBound{},
		spanCost:     make([]int64, nv),
		spanUpper:    make([]int64, nv),
		breaks:       make([][]*interval, nv),
		maxCumul:     map[int64]bool{},
		minCumul:     map[int64]bool{},
		minSlack:     map[int64]bool{},
	}
	var maxCap int64
	for _, c := range capacities {
		maxCap = max64(maxCap, c)
	}
	n := m.mgr.NumIndices()
	d.cumuls = make([]*intVar, n)
	d.slacks = make([]*intVar, n)
	for i := 0; i < n; i++ {
		d.cumuls[i] = &intVar{kind: kindCumul, dim: d, index: int64(i), lo: 0, hi: maxCap}
		d.slacks[i] = &intVar{kind: kindSlack, dim: d, index: int64(i), lo: 0, hi: slackMax}
	}
	for v := range d.spanUpper {
		d.spanUpper[v] = math.MaxInt64
	}
	return d
}

func (d *dimension) Name() string { return d.name }

func (d *dimension) CumulVar(index int64) IntVar { return d.cumuls[index] }
func (d *dimension) SlackVar(index int64) IntVar { return d.slacks[index] }

func (d *dimension) SetCumulVarSoftUpperBound(index, bound, coefficient int64) {
	d.softUpper[index] = softBound{bound: bound, coefficient: coefficient}
}

func (d *dimension) SetCumulVarSoftLowerBound(index, bound, coefficient int64) {
	d.softLower[index] = softBound{bound: bound, coefficient: coefficient}
}

func (d *dimension) SetSpanCostCoefficientForAllVehicles(coefficient int64) {
	for v := range d.spanCost {
		d.spanCost[v] = coefficient
	}
}

func (d *dimension) SetSpanCostCoefficientForVehicle(coefficient int64, vehicle int) {
	d.spanCost[vehicle] = coefficient
}

func (d *dimension) SetSpanUpperBoundForVehicle(bound int64, vehicle int) {
	d.spanUpper[vehicle] = bound
}

func (d *dimension) SetBreakIntervalsOfVehicle(breaks []IntervalVar, vehicle int) {
	out := make([]*interval, 0, len(breaks))
	for _, b := range breaks {
		iv, ok := b.(*interval)
		if !ok {
			d.model.invalidf("break %s was not created by this model", b.Name())
			continue
		}
		out = append(out, iv)
	}
	d.breaks[vehicle] = out
}

// transit evaluates the vehicle's callback on an arc.
func (d *dimension) transit(vehicle int, from, to int64) int64 {
	cb := d.model.callbacks[d.transits[vehicle]]
	if cb.unary != nil {
		return cb.unary(from)
	}
	return cb.binary(from, to)
}

// softCost is the soft bound penalty of a cumul value at index.
func (d *dimension) softCost(index, value int64) int64 {
	var c int64
	if sb, ok := d.softUpper[index]; ok && value > sb.bound {
		c += sb.coefficient * (value - sb.bound)
	}
	if sb, ok := d.softLower[index]; ok && value < sb.bound {
		c += sb.coefficient * (sb.bound - value)
	}
	return c
}

// pullsLate reports whether a finalizer asks for the cumul at index to be as
// late as its successor allows.
func (d *dimension) pullsLate(index int64) bool {
	return d.maxCumul[index] || d.minSlack[index]
}
