package routing

import (
	"fmt"
	"math"
	"sort"

	"vrpadapter/internal/opt"
)

// InProcess is the built-in engine. It records the model as registered and
// searches with the adaptive large neighbourhood search in package opt.
type InProcess struct{}

func (InProcess) NewIndexManager(numNodes, numVehicles int, starts, ends []int) (IndexManager, error) {
	return newIndexManager(numNodes, numVehicles, starts, ends)
}

func (InProcess) NewModel(mgr IndexManager) (Model, error) {
	im, ok := mgr.(*indexManager)
	if !ok {
		return nil, fmt.Errorf("routing: index manager %T does not belong to the in-process engine", mgr)
	}
	return newModel(im), nil
}

type callback struct {
	binary TransitFunc
	unary  UnaryTransitFunc
}

type constraintKind int

const (
	constraintEqual constraintKind = iota
	constraintLessOrEqual
)

type sideConstraint struct {
	kind constraintKind
	a, b *intVar
}

type disjunction struct {
	indices []int64
	penalty int64
}

type pdPair struct {
	pickup, delivery int64
}

type model struct {
	mgr           *indexManager
	callbacks     []callback
	dims          []*dimension
	dimByName     map[string]*dimension
	nexts         []*intVar
	vehicles      []*intVar
	pairs         []pdPair
	pairOf        map[int64]int
	constraints   []sideConstraint
	consOf        map[int64][]int
	disjunctions  []disjunction
	disjOf        map[int64]int
	arcCost       []int
	usedWhenEmpty []bool
	reported      map[*intVar]bool
	intervals     []*interval
	status        int
	problems      []string
	search        opt.Metrics
}

func newModel(mgr *indexManager) *model {
	n := mgr.NumIndices()
	m := &model{
		mgr:           mgr,
		dimByName:     map[string]*dimension{},
		nexts:         make([]*intVar, n),
		vehicles:      make([]*intVar, n),
		pairOf:        map[int64]int{},
		consOf:        map[int64][]int{},
		disjOf:        map[int64]int{},
		reported:      map[*intVar]bool{},
		arcCost:       make([]int, mgr.NumVehicles()),
		usedWhenEmpty: make([]bool, mgr.NumVehicles()),
		status:        StatusNotSolved,
	}
	for i := 0; i < n; i++ {
		m.nexts[i] = &intVar{kind: kindNext, index: int64(i), lo: 0, hi: int64(n - 1)}
		m.vehicles[i] = &intVar{kind: kindVehicle, index: int64(i), lo: -1, hi: int64(mgr.NumVehicles() - 1)}
	}
	for v := range m.arcCost {
		m.arcCost[v] = -1
	}
	return m
}

func (m *model) invalidf(format string, args ...any) {
	m.problems = append(m.problems, fmt.Sprintf(format, args...))
}

func (m *model) validIndex(index int64) bool {
	return index >= 0 && index < int64(m.mgr.NumIndices())
}

func (m *model) RegisterTransitCallback(fn TransitFunc) int {
	m.callbacks = append(m.callbacks, callback{binary: fn})
	return len(m.callbacks) - 1
}

func (m *model) RegisterUnaryTransitCallback(fn UnaryTransitFunc) int {
	m.callbacks = append(m.callbacks, callback{unary: fn})
	return len(m.callbacks) - 1
}

func (m *model) AddDimension(cb int, slackMax, capacity int64, fixStart bool, name string) bool {
	return m.AddDimensionWithVehicleTransitAndCapacity(m.repeatInt(cb), slackMax, m.repeat64(capacity), fixStart, name)
}

func (m *model) AddDimensionWithVehicleCapacity(cb int, slackMax int64, capacities []int64, fixStart bool, name string) bool {
	return m.AddDimensionWithVehicleTransitAndCapacity(m.repeatInt(cb), slackMax, capacities, fixStart, name)
}

func (m *model) AddDimensionWithVehicleTransits(cbs []int, slackMax, capacity int64, fixStart bool, name string) bool {
	return m.AddDimensionWithVehicleTransitAndCapacity(cbs, slackMax, m.repeat64(capacity), fixStart, name)
}

func (m *model) AddDimensionWithVehicleTransitAndCapacity(cbs []int, slackMax int64, capacities []int64, fixStart bool, name string) bool {
	nv := m.mgr.NumVehicles()
	if _, dup := m.dimByName[name]; dup {
		m.invalidf("dimension %q registered twice", name)
		return false
	}
	if len(cbs) != nv || len(capacities) != nv {
		m.invalidf("dimension %q: want %d transits and capacities, got %d and %d", name, nv, len(cbs), len(capacities))
		return false
	}
	for _, cb := range cbs {
		if cb < 0 || cb >= len(m.callbacks) {
			m.invalidf("dimension %q: unknown callback %d", name, cb)
			return false
		}
	}
	if slackMax < 0 {
		m.invalidf("dimension %q: negative slack max", name)
		return false
	}
	d := newDimension(m, name, append([]int(nil), cbs...), slackMax, append([]int64(nil), capacities...), fixStart)
	d.pos = len(m.dims)
	m.dims = append(m.dims, d)
	m.dimByName[name] = d
	return true
}

func (m *model) MutableDimension(name string) (Dimension, bool) {
	d, ok := m.dimByName[name]
	if !ok {
		return nil, false
	}
	return d, true
}

func (m *model) NextVar(index int64) IntVar    { return m.nexts[index] }
func (m *model) VehicleVar(index int64) IntVar { return m.vehicles[index] }

func (m *model) NewFixedDurationInterval(startMin, startMax, duration int64, name string) IntervalVar {
	iv := &interval{name: name, startMin: startMin, startMax: startMax, duration: duration}
	if startMin > startMax || duration < 0 {
		m.invalidf("interval %s is empty", name)
	}
	m.intervals = append(m.intervals, iv)
	return iv
}

func (m *model) AddPickupAndDelivery(pickup, delivery int64) {
	if !m.validIndex(pickup) || !m.validIndex(delivery) || pickup == delivery {
		m.invalidf("bad pickup/delivery pair %d/%d", pickup, delivery)
		return
	}
	for _, idx := range []int64{pickup, delivery} {
		if _, dup := m.pairOf[idx]; dup {
			m.invalidf("index %d is in two pickup/delivery pairs", idx)
			return
		}
		if m.mgr.vehicleOfDepot(idx) >= 0 {
			m.invalidf("depot index %d cannot be a pickup or delivery", idx)
			return
		}
	}
	m.pairs = append(m.pairs, pdPair{pickup: pickup, delivery: delivery})
	m.pairOf[pickup] = len(m.pairs) - 1
	m.pairOf[delivery] = len(m.pairs) - 1
}

func (m *model) addConstraint(kind constraintKind, a, b IntVar) {
	av, aok := a.(*intVar)
	bv, bok := b.(*intVar)
	if !aok || !bok {
		m.invalidf("constraint on foreign variables %s, %s", a.Name(), b.Name())
		return
	}
	m.constraints = append(m.constraints, sideConstraint{kind: kind, a: av, b: bv})
	id := len(m.constraints) - 1
	m.consOf[av.index] = append(m.consOf[av.index], id)
	if bv.index != av.index {
		m.consOf[bv.index] = append(m.consOf[bv.index], id)
	}
}

func (m *model) AddEquality(a, b IntVar)    { m.addConstraint(constraintEqual, a, b) }
func (m *model) AddLessOrEqual(a, b IntVar) { m.addConstraint(constraintLessOrEqual, a, b) }

func (m *model) AddDisjunction(indices []int64, penalty int64) int {
	for _, idx := range indices {
		if !m.validIndex(idx) || m.mgr.vehicleOfDepot(idx) >= 0 {
			m.invalidf("disjunction over bad index %d", idx)
			return -1
		}
		if _, dup := m.disjOf[idx]; dup {
			m.invalidf("index %d is in two disjunctions", idx)
			return -1
		}
	}
	m.disjunctions = append(m.disjunctions, disjunction{indices: append([]int64(nil), indices...), penalty: penalty})
	id := len(m.disjunctions) - 1
	for _, idx := range indices {
		m.disjOf[idx] = id
	}
	return id
}

func (m *model) SetArcCostEvaluatorOfAllVehicles(cb int) {
	for v := range m.arcCost {
		m.SetArcCostEvaluatorOfVehicle(cb, v)
	}
}

func (m *model) SetArcCostEvaluatorOfVehicle(cb int, vehicle int) {
	if cb < 0 || cb >= len(m.callbacks) || m.callbacks[cb].binary == nil {
		m.invalidf("arc cost evaluator %d is not a binary callback", cb)
		return
	}
	m.arcCost[vehicle] = cb
}

func (m *model) SetVehicleUsedWhenEmpty(used bool, vehicle int) { m.usedWhenEmpty[vehicle] = used }

func (m *model) AddVariableMinimizedByFinalizer(v IntVar) { m.addFinalizer(v, false) }
func (m *model) AddVariableMaximizedByFinalizer(v IntVar) { m.addFinalizer(v, true) }

// Finalizers steer the schedule policy of their dimension: a minimized end
// cumul packs the route towards its end, a maximized cumul or minimized
// slack keeps that node as late as its successor allows. Without them every
// cumul takes its earliest feasible value. Only cumul and slack variables are
// accepted.
func (m *model) addFinalizer(v IntVar, maximize bool) {
	iv, ok := v.(*intVar)
	if !ok || (iv.kind != kindCumul && iv.kind != kindSlack) {
		m.invalidf("finalizer on unsupported variable %s", v.Name())
		return
	}
	d := iv.dim
	switch {
	case iv.kind == kindCumul && maximize:
		d.maxCumul[iv.index] = true
	case iv.kind == kindCumul:
		d.minCumul[iv.index] = true
	case !maximize:
		d.minSlack[iv.index] = true
	default:
		m.invalidf("maximizing %s is not supported", v.Name())
	}
}

// AddToAssignment makes a slack variable's value part of the solution.
// Cumuls, nexts and vehicles are always reported.
func (m *model) AddToAssignment(v IntVar) {
	if iv, ok := v.(*intVar); ok {
		m.reported[iv] = true
	}
}

func (m *model) Status() int { return m.status }

func (m *model) repeatInt(x int) []int {
	out := make([]int, m.mgr.NumVehicles())
	for i := range out {
		out[i] = x
	}
	return out
}

func (m *model) repeat64(x int64) []int64 {
	out := make([]int64, m.mgr.NumVehicles())
	for i := range out {
		out[i] = x
	}
	return out
}

// validate collects structural problems that make Solve report StatusInvalid.
func (m *model) validate() []string {
	problems := append([]string(nil), m.problems...)
	for _, d := range m.dims {
		for _, list := range [][]*intVar{d.cumuls, d.slacks} {
			for _, v := range list {
				if v.empty() {
					problems = append(problems, fmt.Sprintf("%s has an empty domain", v.Name()))
				}
			}
		}
	}
	for _, v := range m.vehicles {
		if v.empty() {
			problems = append(problems, fmt.Sprintf("%s has an empty domain", v.Name()))
		}
	}
	sort.Strings(problems)
	return problems
}

// penaltyOf returns the drop penalty of an index; mandatory indices report
// math.MaxInt64.
func (m *model) penaltyOf(index int64) int64 {
	id, ok := m.disjOf[index]
	if !ok {
		return math.MaxInt64
	}
	d := m.disjunctions[id]
	return d.penalty / int64(len(d.indices))
}
