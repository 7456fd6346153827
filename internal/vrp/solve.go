// Package vrp turns a routing request plus its numeric solver data into a
// routing model, runs the engine and decodes the assignment into a response.
package vrp

import (
	"context"
	"fmt"
	"time"

	"vrpadapter/internal/errs"
	"vrpadapter/internal/geo"
	"vrpadapter/internal/model"
	"vrpadapter/internal/opt"
	"vrpadapter/internal/orders"
	"vrpadapter/internal/routing"
	"vrpadapter/internal/timeconv"
)

type Solver struct {
	backend routing.Backend
	zones   geo.Containment
	opts    Options
}

// NewSolver uses the in-process engine and planar containment when backend or
// zones are nil.
func NewSolver(backend routing.Backend, zones geo.Containment, opts Options) *Solver {
	if backend == nil {
		backend = routing.InProcess{}
	}
	if zones == nil {
		zones = geo.Planar{}
	}
	return &Solver{backend: backend, zones: zones, opts: opts}
}

func (s *Solver) Options() Options { return s.opts }

// Result is one solve session's outcome.
type Result struct {
	Response *model.Response
	Offset   timeconv.Offset
	Search   opt.Metrics
	Elapsed  time.Duration
}

// metricsReporter is implemented by engines that expose search statistics.
type metricsReporter interface {
	SearchMetrics() opt.Metrics
}

// Solve runs encode, solve and decode once. Failing to find an assignment is
// not an error: the response then lists every order as unassignable and its
// status says why.
func (s *Solver) Solve(ctx context.Context, req *model.Request, data *model.SolverData) (*Result, error) {
	start := time.Now()
	if req == nil {
		return nil, errs.NewValueIsRequiredError("request")
	}
	if data == nil {
		return nil, errs.NewValueIsRequiredError("solverData")
	}
	ref, err := ReferenceTime(req, data)
	if err != nil {
		return nil, err
	}
	offset := timeconv.NewOffset(ref)
	if len(data.TimeWindows) == 0 {
		derived := *data
		if derived.TimeWindows, err = DeriveTimeWindows(data.Locations, offset); err != nil {
			return nil, err
		}
		data = &derived
	}
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("solver data: %w", err)
	}
	if len(req.Routes) != data.NumberOfRoutes {
		return nil, errs.NewValueIsInvalidError("routes", fmt.Sprintf("request has %d routes, solver data %d", len(req.Routes), data.NumberOfRoutes))
	}
	locator, err := orders.NewLocator(req.AllOrders())
	if err != nil {
		return nil, fmt.Errorf("request orders: %w", err)
	}
	if err := checkNodes(locator, data); err != nil {
		return nil, err
	}

	en := &encoder{backend: s.backend, zones: s.zones, opts: s.opts, req: req, data: data, offset: offset}
	enc, err := en.encode()
	if err != nil {
		return nil, err
	}
	asg, err := invoke(ctx, enc.model, s.opts)
	if err != nil {
		return nil, err
	}
	status := model.StatusFromCode(enc.model.Status())
	dec := &decoder{enc: enc, req: req, data: data, offset: offset, loc: s.opts.Location, orders: locator}
	resp, err := dec.decode(asg, status)
	if err != nil {
		return nil, err
	}
	res := &Result{Response: resp, Offset: offset, Elapsed: time.Since(start)}
	if mr, ok := enc.model.(metricsReporter); ok {
		res.Search = mr.SearchMetrics()
	}
	s.opts.logger().Printf("solve: routes=%d nodes=%d status=%s unassignable=%d objective=%d took=%v",
		len(req.Routes), data.NumNodes(), resp.Status, len(resp.UnassignableOrders), resp.Objective, res.Elapsed)
	return res, nil
}

// invoke is the single blocking call into the engine. There is no retry.
func invoke(ctx context.Context, m routing.Model, opts Options) (routing.Assignment, error) {
	asg, err := m.Solve(ctx, routing.SearchParameters{
		TimeLimit:      opts.TimeLimit,
		LogSearch:      opts.LogSearch,
		Seed:           opts.Seed,
		IterationLimit: opts.IterationLimit,
		Logger:         opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("solve: %w", err)
	}
	return asg, nil
}

// checkNodes makes sure the node space and the request's orders describe the
// same stops, so the decoder can always resolve a node to its order.
func checkNodes(locator *orders.Locator, data *model.SolverData) error {
	stops := map[string]bool{}
	for node := 2 * data.NumberOfRoutes; node < data.NumNodes(); node++ {
		id := data.Locations[node].LocationID
		if _, err := locator.ByLocationID(id); err != nil {
			return fmt.Errorf("node %d: %w", node, err)
		}
		stops[id] = true
	}
	for _, o := range locator.All() {
		if !stops[o.Location.LocationID] {
			return errs.NewObjectNotFoundError("order stop for locationId", o.Location.LocationID)
		}
	}
	return nil
}

// ReferenceTime picks the instant the session's time offset is aligned to:
// the earliest opening among the solver data locations, the route depots, the
// orders (following their chains) and the break windows. Every timestamp of
// the session is then at or after the offset base.
func ReferenceTime(req *model.Request, data *model.SolverData) (time.Time, error) {
	var ref time.Time
	consider := func(t time.Time) {
		if !t.IsZero() && (ref.IsZero() || t.Before(ref)) {
			ref = t
		}
	}
	for _, l := range data.Locations {
		consider(l.StartTime)
	}
	seen := map[*model.Order]bool{}
	walk := func(o *model.Order) {
		for ; o != nil && !seen[o]; o = o.SubsequentOrder {
			seen[o] = true
			consider(o.Location.StartTime)
		}
	}
	for _, o := range req.Orders {
		walk(o)
	}
	for _, r := range req.Routes {
		consider(r.StartDepot.StartTime)
		consider(r.EndDepot.StartTime)
		for _, o := range r.Orders {
			walk(o)
		}
		for _, b := range r.Breaks {
			consider(b.EarliestStart)
		}
	}
	if ref.IsZero() {
		return time.Time{}, errs.NewValueIsRequiredError("startTime")
	}
	return ref, nil
}

// DeriveTimeWindows builds node windows from location opening hours. The
// lower bound is shifted by the service time because the cumulative time of
// a stop is its departure.
func DeriveTimeWindows(locs []model.Location, offset timeconv.Offset) ([][2]int64, error) {
	out := make([][2]int64, len(locs))
	for i, l := range locs {
		lo, err := offset.Seconds(l.StartTime)
		if err != nil {
			return nil, fmt.Errorf("location %s start: %w", l.LocationID, err)
		}
		hi, err := offset.Seconds(l.EndTime)
		if err != nil {
			return nil, fmt.Errorf("location %s end: %w", l.LocationID, err)
		}
		out[i] = [2]int64{lo + int64(l.ServiceTime()/time.Second), hi}
	}
	return out, nil
}
