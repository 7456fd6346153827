// Package model holds the business-level routing request/response types and the
// numeric solver data derived from them.
package model

import "time"

type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location is a visitable site. LocationID is the join key between the solver's
// node space and the Order/Route objects, so it must be globally unique.
type Location struct {
	LocationID    string     `json:"locationId"`
	Sequence      *int       `json:"sequence,omitempty"`
	Coordinate    Coordinate `json:"coordinate"`
	StartTime     time.Time  `json:"startTime"`
	EndTime       time.Time  `json:"endTime"`
	LoadingTime   *Duration  `json:"loadingTime,omitempty"`
	UnloadingTime *Duration  `json:"unloadingTime,omitempty"`
}

// ServiceTime is loading plus unloading time.
func (l Location) ServiceTime() time.Duration {
	var d time.Duration
	if l.LoadingTime != nil {
		d += l.LoadingTime.Std()
	}
	if l.UnloadingTime != nil {
		d += l.UnloadingTime.Std()
	}
	return d
}

// Order is a stop to serve. SubsequentOrder links the next order in a fixed
// chain (pickup -> dropoff).
type Order struct {
	OrderID         string   `json:"orderId"`
	Location        Location `json:"location"`
	SubsequentOrder *Order   `json:"subsequentOrder,omitempty"`
}

// BreakWindow asks for a break of Duration starting between EarliestStart and LatestStart.
type BreakWindow struct {
	EarliestStart time.Time `json:"earliestStart"`
	LatestStart   time.Time `json:"latestStart"`
	Duration      Duration  `json:"duration"`
}

type Route struct {
	RouteID           string        `json:"routeId"`
	StartDepot        Location      `json:"startDepot"`
	EndDepot          Location      `json:"endDepot"`
	Orders            []*Order      `json:"orders"`
	RouteZones        []Zone        `json:"routeZones,omitempty"`
	ArriveDepartDelay Duration      `json:"arriveDepartDelay"`
	Breaks            []BreakWindow `json:"breaks,omitempty"`
}

// Request is the business problem: vehicles with pre-assigned orders plus orders to place.
type Request struct {
	Routes []Route  `json:"routes"`
	Orders []*Order `json:"orders"`
}

// AllOrders returns the request's unassigned orders followed by each route's orders.
func (r *Request) AllOrders() []*Order {
	out := make([]*Order, 0, len(r.Orders))
	out = append(out, r.Orders...)
	for _, rt := range r.Routes {
		out = append(out, rt.Orders...)
	}
	return out
}

type OrderResponse struct {
	OrderID                string   `json:"orderId"`
	Location               Location `json:"location"`
	DistanceSinceLastOrder float64  `json:"distanceSinceLastOrder"`
	TimeSinceLastOrder     Duration `json:"timeSinceLastOrder"`
	WaitTime               Duration `json:"waitTime"`
}

type BreakResponse struct {
	StartTime time.Time `json:"startTime"`
	Duration  Duration  `json:"duration"`
}

type RouteResponse struct {
	RouteID    string          `json:"routeId"`
	StartDepot Location        `json:"startDepot"`
	EndDepot   Location        `json:"endDepot"`
	Orders     []OrderResponse `json:"orders"`
	Breaks     []BreakResponse `json:"breaks,omitempty"`
}

type Response struct {
	Routes             []RouteResponse `json:"routes"`
	UnassignableOrders []OrderResponse `json:"unassignableOrders"`
	Status             SolveStatus     `json:"status"`
	Objective          int64           `json:"objective,omitempty"`
}
