package model

import (
	"fmt"
	"sort"

	"vrpadapter/internal/errs"
)

// Priority says which end of an order's time window is preferred.
type Priority int

const (
	PriorityEarly Priority = 0
	PriorityLate  Priority = 1
)

// SolverData is the numeric form of a Request. Locations[i] is node i; nodes
// 0..2V-1 are depot start/end pairs and the rest are order stops in
// pickup/dropoff pair order.
type SolverData struct {
	NumberOfRoutes        int             `json:"numberOfRoutes"`
	TimeMatrix            [][]int64       `json:"timeMatrix"`
	DistanceMatrix        [][]int64       `json:"distanceMatrix"`
	StartLocations        []int           `json:"startLocations"`
	EndLocations          []int           `json:"endLocations"`
	PickupDropOffs        [][2]int        `json:"pickupDropOffs"`
	TimeWindows           [][2]int64      `json:"timeWindows"`
	CapacityDemands       map[int][]int64 `json:"capacityDemands"`
	VehicleCapacities     map[int][]int64 `json:"vehicleCapacities"`
	VehicleTimeCapacities []int64         `json:"vehicleTimeCapacities"`
	Locations             []Location      `json:"locations"`
	RouteMaxDurations     []int64         `json:"routeMaxDurations,omitempty"`
	ArcCostMatrix         [][][]int64     `json:"arcCostMatrix,omitempty"`
	OrderPriorityType     []Priority      `json:"orderPriorityType,omitempty"`
}

// NumNodes is the size of the node space.
func (d *SolverData) NumNodes() int { return len(d.Locations) }

// CapacityKeys returns the capacity types in ascending order.
func (d *SolverData) CapacityKeys() []int {
	keys := make([]int, 0, len(d.CapacityDemands))
	for k := range d.CapacityDemands {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// PriorityOf returns the node's priority, early when unset.
func (d *SolverData) PriorityOf(node int) Priority {
	if node < len(d.OrderPriorityType) {
		return d.OrderPriorityType[node]
	}
	return PriorityEarly
}

// Validate checks the shape invariants the encoder relies on.
func (d *SolverData) Validate() error {
	n := len(d.Locations)
	v := d.NumberOfRoutes
	if v <= 0 {
		return errs.NewValueIsRequiredError("numberOfRoutes")
	}
	if n < 2*v {
		return errs.NewValueIsInvalidError("locations", fmt.Sprintf("%d nodes cannot hold %d depot pairs", n, v))
	}
	if err := squareMatrix("timeMatrix", d.TimeMatrix, n); err != nil {
		return err
	}
	if err := squareMatrix("distanceMatrix", d.DistanceMatrix, n); err != nil {
		return err
	}
	if len(d.ArcCostMatrix) > 0 {
		if len(d.ArcCostMatrix) != v {
			return errs.NewValueIsInvalidError("arcCostMatrix", fmt.Sprintf("want %d vehicles, got %d", v, len(d.ArcCostMatrix)))
		}
		for i, m := range d.ArcCostMatrix {
			if err := squareMatrix(fmt.Sprintf("arcCostMatrix[%d]", i), m, n); err != nil {
				return err
			}
		}
	}
	if len(d.StartLocations) != v || len(d.EndLocations) != v {
		return errs.NewValueIsInvalidError("startLocations/endLocations", fmt.Sprintf("want %d entries each", v))
	}
	depots := make(map[int]bool, 2*v)
	for i := 0; i < v; i++ {
		for _, node := range []int{d.StartLocations[i], d.EndLocations[i]} {
			if node < 0 || node >= 2*v {
				return errs.NewValueIsOutOfRangeError("depot node", int64(node), 0, int64(2*v-1))
			}
			if depots[node] {
				return errs.NewValueIsInvalidError("depot node", fmt.Sprintf("node %d used twice", node))
			}
			depots[node] = true
		}
	}
	if len(d.TimeWindows) != n {
		return errs.NewValueIsInvalidError("timeWindows", fmt.Sprintf("want %d, got %d", n, len(d.TimeWindows)))
	}
	for i, tw := range d.TimeWindows {
		if tw[0] > tw[1] {
			return errs.NewValueIsInvalidError("timeWindows", fmt.Sprintf("node %d window [%d,%d] is empty", i, tw[0], tw[1]))
		}
	}
	if len(d.VehicleTimeCapacities) != v {
		return errs.NewValueIsInvalidError("vehicleTimeCapacities", fmt.Sprintf("want %d, got %d", v, len(d.VehicleTimeCapacities)))
	}
	if len(d.RouteMaxDurations) > 0 && len(d.RouteMaxDurations) != v {
		return errs.NewValueIsInvalidError("routeMaxDurations", fmt.Sprintf("want %d, got %d", v, len(d.RouteMaxDurations)))
	}
	if len(d.OrderPriorityType) > 0 && len(d.OrderPriorityType) != n {
		return errs.NewValueIsInvalidError("orderPriorityType", fmt.Sprintf("want %d, got %d", n, len(d.OrderPriorityType)))
	}
	for _, k := range d.CapacityKeys() {
		if len(d.CapacityDemands[k]) != n {
			return errs.NewValueIsInvalidError("capacityDemands", fmt.Sprintf("type %d: want %d, got %d", k, n, len(d.CapacityDemands[k])))
		}
		if len(d.VehicleCapacities[k]) != v {
			return errs.NewValueIsInvalidError("vehicleCapacities", fmt.Sprintf("type %d: want %d, got %d", k, v, len(d.VehicleCapacities[k])))
		}
	}
	seenPair := make(map[int]bool, 2*len(d.PickupDropOffs))
	for _, pd := range d.PickupDropOffs {
		for _, node := range pd {
			if node < 2*v || node >= n {
				return errs.NewValueIsOutOfRangeError("pickupDropOffs", int64(node), int64(2*v), int64(n-1))
			}
			if seenPair[node] {
				return errs.NewValueIsInvalidError("pickupDropOffs", fmt.Sprintf("node %d is in two pairs", node))
			}
			seenPair[node] = true
		}
		for _, k := range d.CapacityKeys() {
			if sum := d.CapacityDemands[k][pd[0]] + d.CapacityDemands[k][pd[1]]; sum != 0 {
				return errs.NewValueIsInvalidError("capacityDemands", fmt.Sprintf("pair %d/%d of type %d sums to %d", pd[0], pd[1], k, sum))
			}
		}
	}
	ids := make(map[string]bool, n)
	for _, l := range d.Locations {
		if l.LocationID == "" {
			return errs.NewValueIsRequiredError("locationId")
		}
		if ids[l.LocationID] {
			return errs.NewValueIsInvalidError("locationId", fmt.Sprintf("%q is not unique", l.LocationID))
		}
		ids[l.LocationID] = true
	}
	return nil
}

func squareMatrix(name string, m [][]int64, n int) error {
	if len(m) != n {
		return errs.NewValueIsInvalidError(name, fmt.Sprintf("want %d rows, got %d", n, len(m)))
	}
	for i, row := range m {
		if len(row) != n {
			return errs.NewValueIsInvalidError(name, fmt.Sprintf("row %d has %d columns, want %d", i, len(row), n))
		}
	}
	return nil
}
