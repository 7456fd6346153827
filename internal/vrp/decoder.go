package vrp

import (
	"errors"
	"fmt"
	"time"

	"vrpadapter/internal/model"
	"vrpadapter/internal/orders"
	"vrpadapter/internal/routing"
	"vrpadapter/internal/timeconv"
)

// ErrRouteWalk means a route's successor chain never reached its end.
var ErrRouteWalk = errors.New("decode: route does not reach its end")

type decoder struct {
	enc    *encoding
	req    *model.Request
	data   *model.SolverData
	offset timeconv.Offset
	loc    *time.Location
	orders *orders.Locator
}

// decode builds the response. asg may be nil; status is attached either way.
func (d *decoder) decode(asg routing.Assignment, status model.SolveStatus) (*model.Response, error) {
	resp := &model.Response{
		Routes:             make([]model.RouteResponse, 0, len(d.req.Routes)),
		UnassignableOrders: []model.OrderResponse{},
		Status:             status,
	}
	unassigned, err := d.unassigned(asg)
	if err != nil {
		return nil, err
	}
	resp.UnassignableOrders = append(resp.UnassignableOrders, unassigned...)

	if asg == nil {
		for _, r := range d.req.Routes {
			resp.Routes = append(resp.Routes, model.RouteResponse{
				RouteID:    r.RouteID,
				StartDepot: r.StartDepot,
				EndDepot:   r.EndDepot,
				Orders:     []model.OrderResponse{},
			})
		}
		return resp, nil
	}
	for v := range d.req.Routes {
		rr, err := d.route(asg, v)
		if err != nil {
			return nil, err
		}
		resp.Routes = append(resp.Routes, rr)
	}
	resp.Objective = asg.ObjectiveValue()
	return resp, nil
}

// unassigned lists order stops that are dropped (next points to itself) or
// all of them when there is no assignment.
func (d *decoder) unassigned(asg routing.Assignment) ([]model.OrderResponse, error) {
	var out []model.OrderResponse
	mgr, m := d.enc.mgr, d.enc.model
	for index := int64(0); index < int64(mgr.NumIndices()); index++ {
		if mgr.IsStart(index) || mgr.IsEnd(index) {
			continue
		}
		if asg != nil && asg.Value(m.NextVar(index)) != index {
			continue
		}
		l := d.data.Locations[mgr.IndexToNode(index)]
		o, err := d.orders.ByLocationID(l.LocationID)
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		l.Sequence = nil
		out = append(out, model.OrderResponse{OrderID: o.OrderID, Location: l})
	}
	return out, nil
}

func (d *decoder) route(asg routing.Assignment, vehicle int) (model.RouteResponse, error) {
	r := d.req.Routes[vehicle]
	rr := model.RouteResponse{
		RouteID:    r.RouteID,
		StartDepot: r.StartDepot,
		EndDepot:   r.EndDepot,
		Orders:     []model.OrderResponse{},
	}
	mgr, m, dim := d.enc.mgr, d.enc.model, d.enc.time

	index := mgr.StartIndex(vehicle)
	last := mgr.IndexToNode(index)
	var wait int64
	for seq := 0; ; seq++ {
		if seq > mgr.NumIndices() || index < 0 || index >= int64(mgr.NumIndices()) {
			return rr, fmt.Errorf("%w: route %s", ErrRouteWalk, r.RouteID)
		}
		node := mgr.IndexToNode(index)
		src := d.data.Locations[node]
		cumul := dim.CumulVar(index)
		sequence := seq
		l := model.Location{
			LocationID:    src.LocationID,
			Sequence:      &sequence,
			Coordinate:    src.Coordinate,
			StartTime:     d.offset.Time(asg.Min(cumul)-d.enc.service[node]-wait, d.loc),
			EndTime:       d.offset.Time(asg.Max(cumul), d.loc),
			LoadingTime:   src.LoadingTime,
			UnloadingTime: src.UnloadingTime,
		}
		switch d.enc.category(index) {
		case CategoryStartDepot:
			rr.StartDepot = l
		case CategoryEndDepot:
			rr.EndDepot = l
		default:
			o, err := d.orders.ByLocationID(src.LocationID)
			if err != nil {
				return rr, fmt.Errorf("decode: %w", err)
			}
			rr.Orders = append(rr.Orders, model.OrderResponse{
				OrderID:                o.OrderID,
				Location:               l,
				DistanceSinceLastOrder: float64(d.data.DistanceMatrix[last][node]),
				TimeSinceLastOrder:     model.Seconds(d.data.TimeMatrix[last][node]),
				WaitTime:               model.Seconds(wait),
			})
		}
		if mgr.IsEnd(index) {
			break
		}
		wait = asg.Max(dim.SlackVar(index))
		last = node
		index = asg.Value(m.NextVar(index))
	}
	for _, b := range d.enc.breaks[vehicle] {
		if !asg.Performed(b.iv) {
			continue
		}
		rr.Breaks = append(rr.Breaks, model.BreakResponse{
			StartTime: d.offset.Time(asg.StartValue(b.iv), d.loc),
			Duration:  b.duration,
		})
	}
	return rr, nil
}
