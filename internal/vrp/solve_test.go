package vrp

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrpadapter/internal/errs"
	"vrpadapter/internal/geo"
	"vrpadapter/internal/model"
	"vrpadapter/internal/orders"
	"vrpadapter/internal/routing"
	"vrpadapter/internal/timeconv"
)

func loadSolverData(t *testing.T, name string) *model.SolverData {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	var d model.SolverData
	require.NoError(t, json.Unmarshal(b, &d))
	return &d
}

// requestFor builds the business request matching a solver data fixture: one
// route per vehicle and a pickup order chained to its dropoff for each pair.
func requestFor(data *model.SolverData, zones ...model.Zone) *model.Request {
	req := &model.Request{}
	for v := 0; v < data.NumberOfRoutes; v++ {
		req.Routes = append(req.Routes, model.Route{
			RouteID:           "route-" + data.Locations[data.StartLocations[v]].LocationID,
			StartDepot:        data.Locations[data.StartLocations[v]],
			EndDepot:          data.Locations[data.EndLocations[v]],
			Orders:            []*model.Order{},
			RouteZones:        zones,
			ArriveDepartDelay: model.Duration(2 * time.Minute),
		})
	}
	for _, pd := range data.PickupDropOffs {
		dropoff := &model.Order{OrderID: "order-" + data.Locations[pd[1]].LocationID, Location: data.Locations[pd[1]]}
		pickup := &model.Order{OrderID: "order-" + data.Locations[pd[0]].LocationID, Location: data.Locations[pd[0]], SubsequentOrder: dropoff}
		req.Orders = append(req.Orders, pickup)
	}
	return req
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.TimeLimit = time.Minute
	opts.IterationLimit = 40
	opts.LogSearch = false
	opts.Logger = log.New(io.Discard, "", 0)
	return opts
}

func solve(t *testing.T, req *model.Request, data *model.SolverData, opts Options) *model.Response {
	t.Helper()
	res, err := NewSolver(nil, nil, opts).Solve(context.Background(), req, data)
	require.NoError(t, err)
	require.NotNil(t, res.Response)
	return res.Response
}

// assertCovers checks that routes keep their ids in request order and that
// every request order shows up exactly once.
func assertCovers(t *testing.T, req *model.Request, resp *model.Response) {
	t.Helper()
	require.Len(t, resp.Routes, len(req.Routes))
	for i, r := range req.Routes {
		assert.Equal(t, r.RouteID, resp.Routes[i].RouteID)
	}
	seen := map[string]int{}
	for _, r := range resp.Routes {
		for _, o := range r.Orders {
			seen[o.OrderID]++
		}
	}
	for _, o := range resp.UnassignableOrders {
		seen[o.OrderID]++
	}
	loc, err := orders.NewLocator(req.AllOrders())
	require.NoError(t, err)
	require.Len(t, seen, loc.Len())
	for _, o := range loc.All() {
		assert.Equalf(t, 1, seen[o.OrderID], "order %s", o.OrderID)
	}
}

// assertPairs checks that assigned pickups and dropoffs share a route and the
// dropoff starts after the pickup ends.
func assertPairs(t *testing.T, req *model.Request, resp *model.Response) {
	t.Helper()
	type stop struct {
		route int
		o     model.OrderResponse
	}
	at := map[string]stop{}
	for ri, r := range resp.Routes {
		for _, o := range r.Orders {
			at[o.OrderID] = stop{route: ri, o: o}
		}
	}
	for _, p := range req.Orders {
		d := p.SubsequentOrder
		ps, pok := at[p.OrderID]
		ds, dok := at[d.OrderID]
		if !pok && !dok {
			continue
		}
		require.Truef(t, pok && dok, "pair %s/%s split", p.OrderID, d.OrderID)
		assert.Equal(t, ps.route, ds.route)
		assert.False(t, ds.o.Location.StartTime.Before(ps.o.Location.EndTime))
	}
}

func TestSolveAssignsAllOrders(t *testing.T) {
	data := loadSolverData(t, "small_solver_data.json")
	req := requestFor(data)
	resp := solve(t, req, data, testOptions())

	assert.Equal(t, model.StatusSuccess, resp.Status)
	assert.Empty(t, resp.UnassignableOrders)
	require.Len(t, resp.Routes, 1)
	route := resp.Routes[0]
	require.Len(t, route.Orders, 8)
	assertCovers(t, req, resp)
	assertPairs(t, req, resp)

	require.NotNil(t, route.StartDepot.Sequence)
	assert.Equal(t, 0, *route.StartDepot.Sequence)
	assert.Equal(t, 9, *route.EndDepot.Sequence)
	assert.Positive(t, resp.Objective)

	delay := req.Routes[0].ArriveDepartDelay.Std()
	for i, o := range route.Orders {
		require.NotNil(t, o.Location.Sequence)
		assert.Equal(t, i+1, *o.Location.Sequence)
		assert.Equal(t, o.Location.LoadingTime.Std(), o.Location.EndTime.Sub(o.Location.StartTime)-o.WaitTime.Std())

		want := data.Locations[indexOf(data, o.Location.LocationID)]
		assert.False(t, o.Location.StartTime.Add(o.WaitTime.Std()).Before(want.StartTime))
		assert.True(t, o.Location.StartTime.Before(want.EndTime))
		assert.False(t, o.Location.EndTime.After(want.EndTime))

		if i > 0 && o.TimeSinceLastOrder != 0 {
			prev := route.Orders[i-1]
			assert.Equal(t, prev.Location.EndTime.Add(o.TimeSinceLastOrder.Std()+delay), o.Location.StartTime)
		}
	}
}

func indexOf(data *model.SolverData, locationID string) int {
	for i, l := range data.Locations {
		if l.LocationID == locationID {
			return i
		}
	}
	return -1
}

func TestSolveRouteMaxDurationLeavesSixOrdersUnassigned(t *testing.T) {
	data := loadSolverData(t, "small_solver_data.json")
	data.RouteMaxDurations = []int64{2700}
	req := requestFor(data)
	resp := solve(t, req, data, testOptions())

	assert.Equal(t, model.StatusSuccess, resp.Status)
	assert.Len(t, resp.UnassignableOrders, 6)
	require.Len(t, resp.Routes, 1)
	assert.Len(t, resp.Routes[0].Orders, 2)
	assertCovers(t, req, resp)
	assertPairs(t, req, resp)
	for _, o := range resp.UnassignableOrders {
		assert.Nil(t, o.Location.Sequence)
	}
}

func TestSolveRouteZoneDropsOrdersOutside(t *testing.T) {
	data := loadSolverData(t, "zone_solver_data.json")
	req := requestFor(data, geo.Rect(35.4, -87.1, 35.7, -86.8))
	resp := solve(t, req, data, testOptions())

	assert.Equal(t, model.StatusSuccess, resp.Status)
	require.Len(t, resp.UnassignableOrders, 2)
	ids := []string{resp.UnassignableOrders[0].Location.LocationID, resp.UnassignableOrders[1].Location.LocationID}
	assert.ElementsMatch(t, []string{"P-1234", "D-1234"}, ids)
	require.Len(t, resp.Routes, 1)
	assert.Empty(t, resp.Routes[0].Orders)
	assert.Equal(t, "StartDepot-580039", resp.Routes[0].StartDepot.LocationID)
	assert.Equal(t, "EndDepot-580039", resp.Routes[0].EndDepot.LocationID)
	assertCovers(t, req, resp)
}

func TestSolveZonesCanBeSwitchedOff(t *testing.T) {
	data := loadSolverData(t, "zone_solver_data.json")
	req := requestFor(data, geo.Rect(35.4, -87.1, 35.7, -86.8))
	opts := testOptions()
	opts.EnableRouteZones = false
	resp := solve(t, req, data, opts)

	assert.Equal(t, model.StatusSuccess, resp.Status)
	assert.Empty(t, resp.UnassignableOrders)
	assert.Len(t, resp.Routes[0].Orders, 2)
	assertPairs(t, req, resp)
}

func TestSolveWithoutAssignment(t *testing.T) {
	data := loadSolverData(t, "small_solver_data.json")
	// the end depot closes before the vehicle can get there
	data.TimeWindows[1] = [2]int64{808000, 808100}
	req := requestFor(data)
	resp := solve(t, req, data, testOptions())

	assert.Equal(t, model.StatusInfeasible, resp.Status)
	assert.Len(t, resp.UnassignableOrders, 8)
	assert.Zero(t, resp.Objective)
	require.Len(t, resp.Routes, 1)
	assert.Empty(t, resp.Routes[0].Orders)
	assert.Equal(t, req.Routes[0].StartDepot, resp.Routes[0].StartDepot)
	assert.Equal(t, req.Routes[0].EndDepot, resp.Routes[0].EndDepot)
	assertCovers(t, req, resp)
	for _, o := range resp.UnassignableOrders {
		assert.Nil(t, o.Location.Sequence)
		assert.Equal(t, data.Locations[indexOf(data, o.Location.LocationID)].StartTime, o.Location.StartTime)
	}
}

func TestSolveIsRepeatable(t *testing.T) {
	run := func() []byte {
		data := loadSolverData(t, "small_solver_data.json")
		resp := solve(t, requestFor(data), data, testOptions())
		b, err := json.Marshal(resp)
		require.NoError(t, err)
		return b
	}
	assert.Equal(t, string(run()), string(run()))
}

func TestDecodeSameAssignmentTwice(t *testing.T) {
	data := loadSolverData(t, "small_solver_data.json")
	req := requestFor(data)
	opts := testOptions()
	offset := timeconv.NewOffset(req.Routes[0].StartDepot.StartTime)
	en := &encoder{backend: routing.InProcess{}, zones: geo.Planar{}, opts: opts, req: req, data: data, offset: offset}
	enc, err := en.encode()
	require.NoError(t, err)
	asg, err := invoke(context.Background(), enc.model, opts)
	require.NoError(t, err)
	require.NotNil(t, asg)

	locator, err := orders.NewLocator(req.AllOrders())
	require.NoError(t, err)
	dec := &decoder{enc: enc, req: req, data: data, offset: offset, orders: locator}
	status := model.StatusFromCode(enc.model.Status())
	first, err := dec.decode(asg, status)
	require.NoError(t, err)
	second, err := dec.decode(asg, status)
	require.NoError(t, err)
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.Equal(t, string(a), string(b))

	// wait at a stop is the slack left at the node before it
	index := enc.mgr.StartIndex(0)
	for _, o := range first.Routes[0].Orders {
		slack := asg.Max(enc.time.SlackVar(index))
		assert.Equal(t, model.Seconds(slack), o.WaitTime)
		index = asg.Value(enc.model.NextVar(index))
		assert.Equal(t, CategoryOrderStop, enc.category(index))
		assert.Equal(t, o.Location.LocationID, data.Locations[enc.mgr.IndexToNode(index)].LocationID)
	}
	assert.Equal(t, CategoryEndDepot, enc.category(asg.Value(enc.model.NextVar(index))))
}

func TestSolvePlacesBreak(t *testing.T) {
	data := loadSolverData(t, "small_solver_data.json")
	req := requestFor(data)
	earliest := time.Date(2024, 11, 5, 20, 15, 0, 0, time.UTC)
	latest := time.Date(2024, 11, 5, 21, 30, 0, 0, time.UTC)
	req.Routes[0].Breaks = []model.BreakWindow{{EarliestStart: earliest, LatestStart: latest, Duration: model.Duration(5 * time.Minute)}}
	resp := solve(t, req, data, testOptions())

	assert.Equal(t, model.StatusSuccess, resp.Status)
	require.Len(t, resp.Routes[0].Breaks, 1)
	b := resp.Routes[0].Breaks[0]
	assert.False(t, b.StartTime.Before(earliest))
	assert.False(t, b.StartTime.After(latest))
	assert.Equal(t, model.Duration(5*time.Minute), b.Duration)
	assertCovers(t, req, resp)
	assertPairs(t, req, resp)
}

func TestSolveRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	s := NewSolver(nil, nil, testOptions())

	t.Run("route count", func(t *testing.T) {
		data := loadSolverData(t, "small_solver_data.json")
		req := requestFor(data)
		req.Routes = append(req.Routes, req.Routes[0])
		_, err := s.Solve(ctx, req, data)
		assert.ErrorIs(t, err, errs.ErrValueIsInvalid)
	})
	t.Run("node without order", func(t *testing.T) {
		data := loadSolverData(t, "small_solver_data.json")
		req := requestFor(data)
		req.Orders = req.Orders[1:]
		_, err := s.Solve(ctx, req, data)
		assert.ErrorIs(t, err, errs.ErrObjectNotFound)
	})
	t.Run("order without node", func(t *testing.T) {
		data := loadSolverData(t, "small_solver_data.json")
		req := requestFor(data)
		req.Orders = append(req.Orders, &model.Order{OrderID: "extra", Location: model.Location{LocationID: "X-1"}})
		_, err := s.Solve(ctx, req, data)
		assert.ErrorIs(t, err, errs.ErrObjectNotFound)
	})
	t.Run("chain cycle", func(t *testing.T) {
		data := loadSolverData(t, "small_solver_data.json")
		req := requestFor(data)
		req.Orders[0].SubsequentOrder.SubsequentOrder = req.Orders[0]
		_, err := s.Solve(ctx, req, data)
		assert.ErrorIs(t, err, orders.ErrChainCycle)
	})
	t.Run("ragged matrix", func(t *testing.T) {
		data := loadSolverData(t, "small_solver_data.json")
		data.TimeMatrix[3] = data.TimeMatrix[3][:4]
		_, err := s.Solve(ctx, requestFor(data), data)
		assert.ErrorIs(t, err, errs.ErrValueIsInvalid)
	})
	t.Run("missing request", func(t *testing.T) {
		_, err := s.Solve(ctx, nil, &model.SolverData{})
		assert.ErrorIs(t, err, errs.ErrValueIsRequired)
	})
}

func TestDeriveTimeWindows(t *testing.T) {
	data := loadSolverData(t, "small_solver_data.json")
	req := requestFor(data)
	ref, err := ReferenceTime(req, data)
	require.NoError(t, err)
	// a stop opens hours before the depot, in the same block
	assert.True(t, ref.Equal(time.Date(2024, 11, 5, 12, 0, 0, 0, time.UTC)), "ref %v", ref)
	assert.True(t, ref.Before(req.Routes[0].StartDepot.StartTime))

	windows, err := DeriveTimeWindows(data.Locations, timeconv.NewOffset(ref))
	require.NoError(t, err)
	// P-43094 opens at 21:00:00 with 90s loading
	assert.Equal(t, [2]int64{840490, 842200}, windows[4])

	derived := *data
	derived.TimeWindows = nil
	resp := solve(t, req, &derived, testOptions())
	assert.True(t, resp.Status.Solved())
	assertCovers(t, req, resp)
}

func TestReferenceTimeIsEarliestStart(t *testing.T) {
	early := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	data := &model.SolverData{Locations: []model.Location{
		{LocationID: "a", StartTime: early.Add(time.Hour)},
		{LocationID: "b", StartTime: early},
		{LocationID: "c"},
	}}
	ref, err := ReferenceTime(&model.Request{Routes: []model.Route{{}}}, data)
	require.NoError(t, err)
	assert.Equal(t, early, ref)

	t.Run("second route depot", func(t *testing.T) {
		req := &model.Request{Routes: []model.Route{
			{StartDepot: model.Location{StartTime: early.Add(2 * time.Hour)}},
			{StartDepot: model.Location{StartTime: early.Add(-time.Hour)}},
		}}
		ref, err := ReferenceTime(req, data)
		require.NoError(t, err)
		assert.Equal(t, early.Add(-time.Hour), ref)
	})
	t.Run("chained order", func(t *testing.T) {
		dropoff := &model.Order{OrderID: "d", Location: model.Location{StartTime: early.Add(-3 * time.Hour)}}
		req := &model.Request{Orders: []*model.Order{{OrderID: "p", SubsequentOrder: dropoff}}}
		ref, err := ReferenceTime(req, data)
		require.NoError(t, err)
		assert.Equal(t, early.Add(-3*time.Hour), ref)
	})
	t.Run("break window", func(t *testing.T) {
		req := &model.Request{Routes: []model.Route{{Breaks: []model.BreakWindow{{EarliestStart: early.Add(-time.Minute)}}}}}
		ref, err := ReferenceTime(req, data)
		require.NoError(t, err)
		assert.Equal(t, early.Add(-time.Minute), ref)
	})
	t.Run("order cycle terminates", func(t *testing.T) {
		a := &model.Order{OrderID: "a"}
		b := &model.Order{OrderID: "b", SubsequentOrder: a}
		a.SubsequentOrder = b
		ref, err := ReferenceTime(&model.Request{Orders: []*model.Order{a}}, data)
		require.NoError(t, err)
		assert.Equal(t, early, ref)
	})

	_, err = ReferenceTime(&model.Request{}, &model.SolverData{Locations: []model.Location{{LocationID: "c"}}})
	assert.ErrorIs(t, err, errs.ErrValueIsRequired)
}
