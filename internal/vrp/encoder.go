package vrp

import (
	"fmt"
	"time"

	"vrpadapter/internal/geo"
	"vrpadapter/internal/model"
	"vrpadapter/internal/routing"
	"vrpadapter/internal/timeconv"
)

const (
	TimeDimension = "Time"
	ZoneDimension = "RouteZones"
)

// NodeCategory tags an engine index with the role its node plays, so the
// decoder never has to re-derive it from identifiers.
type NodeCategory int

const (
	CategoryOrderStop NodeCategory = iota
	CategoryStartDepot
	CategoryEndDepot
)

func (c NodeCategory) String() string {
	switch c {
	case CategoryStartDepot:
		return "start-depot"
	case CategoryEndDepot:
		return "end-depot"
	}
	return "order-stop"
}

// vehicleContext is everything a per-vehicle callback may read. It is passed
// by value into each callback constructor.
type vehicleContext struct {
	vehicle   int
	startNode int
	delay     int64
	eligible  []bool // by node; nil means every node is eligible
}

// encoding is a built model plus what the decoder needs to read it back.
type encoding struct {
	mgr        routing.IndexManager
	model      routing.Model
	time       routing.Dimension
	categories []NodeCategory // by index
	service    []int64        // seconds, by node
	breaks     [][]breakVar   // by vehicle
}

type breakVar struct {
	iv       routing.IntervalVar
	duration model.Duration
}

func (e *encoding) category(index int64) NodeCategory { return e.categories[index] }

type encoder struct {
	backend routing.Backend
	zones   geo.Containment
	opts    Options
	req     *model.Request
	data    *model.SolverData
	offset  timeconv.Offset
}

// encode builds the routing model. data must already be validated.
func (en *encoder) encode() (*encoding, error) {
	data := en.data
	nv := data.NumberOfRoutes
	n := data.NumNodes()

	mgr, err := en.backend.NewIndexManager(n, nv, data.StartLocations, data.EndLocations)
	if err != nil {
		return nil, fmt.Errorf("encode: index manager: %w", err)
	}
	m, err := en.backend.NewModel(mgr)
	if err != nil {
		return nil, fmt.Errorf("encode: model: %w", err)
	}
	enc := &encoding{
		mgr:        mgr,
		model:      m,
		categories: make([]NodeCategory, mgr.NumIndices()),
		service:    make([]int64, n),
		breaks:     make([][]breakVar, nv),
	}
	for i, loc := range data.Locations {
		enc.service[i] = int64(loc.ServiceTime() / time.Second)
	}
	for v := 0; v < nv; v++ {
		enc.categories[mgr.StartIndex(v)] = CategoryStartDepot
		enc.categories[mgr.EndIndex(v)] = CategoryEndDepot
	}

	vcs := make([]vehicleContext, nv)
	for v := range vcs {
		vcs[v] = vehicleContext{
			vehicle:   v,
			startNode: data.StartLocations[v],
			delay:     int64(en.req.Routes[v].ArriveDepartDelay.Std() / time.Second),
		}
		if en.opts.EnableRouteZones {
			vcs[v].eligible = en.eligibility(en.req.Routes[v].RouteZones)
		}
	}

	if err := en.addTime(enc, vcs); err != nil {
		return nil, err
	}
	if err := en.addCapacities(enc); err != nil {
		return nil, err
	}
	en.addPickupDropOffs(enc)
	en.addWindows(enc)
	for v := 0; v < nv; v++ {
		m.SetVehicleUsedWhenEmpty(true, v)
	}
	if en.opts.EnableRouteZones {
		if err := en.addZones(enc, vcs); err != nil {
			return nil, err
		}
	}
	for node := 2 * nv; node < n; node++ {
		m.AddDisjunction([]int64{mgr.NodeToIndex(node)}, en.opts.DropPenalty)
	}
	for v := 0; v < nv; v++ {
		cb := m.RegisterTransitCallback(arcCost(mgr, en.arcMatrix(v)))
		m.SetArcCostEvaluatorOfVehicle(cb, v)
	}
	en.addSpan(enc)
	if err := en.addBreaks(enc); err != nil {
		return nil, err
	}
	return enc, nil
}

func (en *encoder) addTime(enc *encoding, vcs []vehicleContext) error {
	m := enc.model
	cbs := make([]int, len(vcs))
	for v, vc := range vcs {
		cbs[v] = m.RegisterTransitCallback(timeTransit(enc.mgr, en.data.TimeMatrix, enc.service, vc))
	}
	if !m.AddDimensionWithVehicleTransitAndCapacity(cbs, en.opts.SlackMax, en.data.VehicleTimeCapacities, false, TimeDimension) {
		return fmt.Errorf("encode: cannot add %s dimension", TimeDimension)
	}
	dim, ok := m.MutableDimension(TimeDimension)
	if !ok {
		return fmt.Errorf("encode: %s dimension missing", TimeDimension)
	}
	enc.time = dim
	for v := range vcs {
		m.AddVariableMaximizedByFinalizer(dim.CumulVar(enc.mgr.StartIndex(v)))
		m.AddVariableMinimizedByFinalizer(dim.CumulVar(enc.mgr.EndIndex(v)))
	}
	return nil
}

// timeTransit is travel time plus the destination's service time, plus the
// arrive/depart delay when the vehicle actually moves, plus the origin's
// service time when leaving the vehicle's start.
func timeTransit(mgr routing.IndexManager, matrix [][]int64, service []int64, vc vehicleContext) routing.TransitFunc {
	return func(fromIndex, toIndex int64) int64 {
		from, to := mgr.IndexToNode(fromIndex), mgr.IndexToNode(toIndex)
		travel := matrix[from][to]
		t := travel + service[to]
		if travel != 0 {
			t += vc.delay
		}
		if from == vc.startNode {
			t += service[from]
		}
		return t
	}
}

func (en *encoder) addCapacities(enc *encoding) error {
	m := enc.model
	for _, key := range en.data.CapacityKeys() {
		cb := m.RegisterUnaryTransitCallback(demand(enc.mgr, en.data.CapacityDemands[key]))
		name := fmt.Sprintf("%dCapacity", key)
		if !m.AddDimensionWithVehicleCapacity(cb, 0, en.data.VehicleCapacities[key], true, name) {
			return fmt.Errorf("encode: cannot add %s dimension", name)
		}
	}
	return nil
}

func demand(mgr routing.IndexManager, demands []int64) routing.UnaryTransitFunc {
	return func(index int64) int64 { return demands[mgr.IndexToNode(index)] }
}

func (en *encoder) addPickupDropOffs(enc *encoding) {
	m := enc.model
	for _, pd := range en.data.PickupDropOffs {
		pickup := enc.mgr.NodeToIndex(pd[0])
		dropoff := enc.mgr.NodeToIndex(pd[1])
		m.AddPickupAndDelivery(pickup, dropoff)
		m.AddEquality(m.VehicleVar(pickup), m.VehicleVar(dropoff))
		m.AddLessOrEqual(enc.time.CumulVar(pickup), enc.time.CumulVar(dropoff))
	}
}

func (en *encoder) addWindows(enc *encoding) {
	m, dim, data := enc.model, enc.time, en.data
	for node := 2 * data.NumberOfRoutes; node < data.NumNodes(); node++ {
		index := enc.mgr.NodeToIndex(node)
		tw := data.TimeWindows[node]
		dim.CumulVar(index).SetRange(tw[0], tw[1])
		m.AddToAssignment(dim.SlackVar(index))
		m.AddVariableMinimizedByFinalizer(dim.SlackVar(index))
		if data.PriorityOf(node) == model.PriorityEarly {
			dim.SetCumulVarSoftUpperBound(index, tw[0], en.opts.SoftWindowPenalty)
		} else {
			dim.SetCumulVarSoftLowerBound(index, tw[1], en.opts.SoftWindowPenalty)
		}
	}
	for v := 0; v < data.NumberOfRoutes; v++ {
		start, end := enc.mgr.StartIndex(v), enc.mgr.EndIndex(v)
		sw := data.TimeWindows[enc.mgr.IndexToNode(start)]
		ew := data.TimeWindows[enc.mgr.IndexToNode(end)]
		dim.CumulVar(start).SetRange(sw[0], sw[1])
		m.AddToAssignment(dim.SlackVar(start))
		dim.CumulVar(end).SetRange(ew[0], ew[1])
	}
}

// eligibility answers, per node, whether the node lies in one of the zones.
// No zones means no restriction.
func (en *encoder) eligibility(zones []model.Zone) []bool {
	if len(zones) == 0 {
		return nil
	}
	out := make([]bool, en.data.NumNodes())
	for i, loc := range en.data.Locations {
		out[i] = en.zones.Contains(loc.Coordinate, zones)
	}
	return out
}

func (en *encoder) addZones(enc *encoding, vcs []vehicleContext) error {
	cbs := make([]int, len(vcs))
	for v, vc := range vcs {
		cbs[v] = enc.model.RegisterUnaryTransitCallback(zoneTransit(enc.mgr, vc))
	}
	if !enc.model.AddDimensionWithVehicleTransits(cbs, 0, 0, true, ZoneDimension) {
		return fmt.Errorf("encode: cannot add %s dimension", ZoneDimension)
	}
	return nil
}

// zoneTransit is 1 for nodes outside the vehicle's zones. With a capacity of
// 0 such nodes cannot be visited by the vehicle.
func zoneTransit(mgr routing.IndexManager, vc vehicleContext) routing.UnaryTransitFunc {
	return func(index int64) int64 {
		if vc.eligible == nil || vc.eligible[mgr.IndexToNode(index)] {
			return 0
		}
		return 1
	}
}

func (en *encoder) arcMatrix(vehicle int) [][]int64 {
	if len(en.data.ArcCostMatrix) > vehicle {
		return en.data.ArcCostMatrix[vehicle]
	}
	return en.data.TimeMatrix
}

func arcCost(mgr routing.IndexManager, matrix [][]int64) routing.TransitFunc {
	return func(fromIndex, toIndex int64) int64 {
		return matrix[mgr.IndexToNode(fromIndex)][mgr.IndexToNode(toIndex)]
	}
}

func (en *encoder) addSpan(enc *encoding) {
	if en.opts.EnableSpanCost {
		enc.time.SetSpanCostCoefficientForAllVehicles(en.opts.SpanCostCoefficient)
	}
	if en.opts.EnableSpanUpperBound && len(en.data.RouteMaxDurations) > 0 {
		for v, bound := range en.data.RouteMaxDurations {
			enc.time.SetSpanUpperBoundForVehicle(bound, v)
		}
	}
}

func (en *encoder) addBreaks(enc *encoding) error {
	for v, route := range en.req.Routes {
		if len(route.Breaks) == 0 {
			continue
		}
		ivs := make([]routing.IntervalVar, 0, len(route.Breaks))
		for i, b := range route.Breaks {
			lo, err := en.offset.Seconds(b.EarliestStart)
			if err != nil {
				return fmt.Errorf("encode: route %s break %d: %w", route.RouteID, i, err)
			}
			hi, err := en.offset.Seconds(b.LatestStart)
			if err != nil {
				return fmt.Errorf("encode: route %s break %d: %w", route.RouteID, i, err)
			}
			iv := enc.model.NewFixedDurationInterval(lo, hi, int64(b.Duration.Std()/time.Second), fmt.Sprintf("Route%dBreak%d", v, i))
			ivs = append(ivs, iv)
			enc.breaks[v] = append(enc.breaks[v], breakVar{iv: iv, duration: b.Duration})
		}
		enc.time.SetBreakIntervalsOfVehicle(ivs, v)
	}
	return nil
}
