package vrp

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrpadapter/internal/geo"
	"vrpadapter/internal/model"
	"vrpadapter/internal/routing"
	"vrpadapter/internal/timeconv"
)

type boundCall struct {
	index, bound, coefficient int64
}

// recordingDimension passes every call through and remembers the soft bound
// and span settings it saw.
type recordingDimension struct {
	routing.Dimension
	upper     []boundCall
	lower     []boundCall
	spanCost  []int64
	spanUpper map[int]int64
}

func (d *recordingDimension) SetCumulVarSoftUpperBound(index, bound, coefficient int64) {
	d.upper = append(d.upper, boundCall{index, bound, coefficient})
	d.Dimension.SetCumulVarSoftUpperBound(index, bound, coefficient)
}

func (d *recordingDimension) SetCumulVarSoftLowerBound(index, bound, coefficient int64) {
	d.lower = append(d.lower, boundCall{index, bound, coefficient})
	d.Dimension.SetCumulVarSoftLowerBound(index, bound, coefficient)
}

func (d *recordingDimension) SetSpanCostCoefficientForAllVehicles(coefficient int64) {
	d.spanCost = append(d.spanCost, coefficient)
	d.Dimension.SetSpanCostCoefficientForAllVehicles(coefficient)
}

func (d *recordingDimension) SetSpanUpperBoundForVehicle(bound int64, vehicle int) {
	d.spanUpper[vehicle] = bound
	d.Dimension.SetSpanUpperBoundForVehicle(bound, vehicle)
}

type recordingModel struct {
	routing.Model
	dims map[string]*recordingDimension
}

func (m *recordingModel) MutableDimension(name string) (routing.Dimension, bool) {
	if d, ok := m.dims[name]; ok {
		return d, true
	}
	d, ok := m.Model.MutableDimension(name)
	if !ok {
		return nil, false
	}
	rd := &recordingDimension{Dimension: d, spanUpper: map[int]int64{}}
	m.dims[name] = rd
	return rd, true
}

type recordingBackend struct {
	model *recordingModel
}

func (b *recordingBackend) NewIndexManager(numNodes, numVehicles int, starts, ends []int) (routing.IndexManager, error) {
	return routing.InProcess{}.NewIndexManager(numNodes, numVehicles, starts, ends)
}

func (b *recordingBackend) NewModel(mgr routing.IndexManager) (routing.Model, error) {
	m, err := routing.InProcess{}.NewModel(mgr)
	if err != nil {
		return nil, err
	}
	b.model = &recordingModel{Model: m, dims: map[string]*recordingDimension{}}
	return b.model, nil
}

func encodeRecorded(t *testing.T, data *model.SolverData, opts Options) (*encoding, *recordingDimension) {
	t.Helper()
	req := requestFor(data)
	ref, err := ReferenceTime(req, data)
	require.NoError(t, err)
	b := &recordingBackend{}
	en := &encoder{backend: b, zones: geo.Planar{}, opts: opts, req: req, data: data, offset: timeconv.NewOffset(ref)}
	enc, err := en.encode()
	require.NoError(t, err)
	dim, ok := b.model.dims[TimeDimension]
	require.True(t, ok)
	return enc, dim
}

func TestTimeTransit(t *testing.T) {
	mgr, err := routing.InProcess{}.NewIndexManager(4, 1, []int{0}, []int{1})
	require.NoError(t, err)
	matrix := [][]int64{
		{0, 0, 100, 90},
		{0, 0, 50, 40},
		{100, 50, 0, 0},
		{90, 40, 30, 0},
	}
	service := []int64{5, 7, 11, 13}
	vc := vehicleContext{vehicle: 0, startNode: 0, delay: 20}
	fn := timeTransit(mgr, matrix, service, vc)

	start, end := mgr.StartIndex(0), mgr.EndIndex(0)
	a, b := mgr.NodeToIndex(2), mgr.NodeToIndex(3)
	tests := []struct {
		name     string
		from, to int64
		want     int64
	}{
		{name: "leaving the start adds its service", from: start, to: a, want: 100 + 11 + 20 + 5},
		{name: "standing still skips the delay", from: a, to: b, want: 0 + 13},
		{name: "moving between stops", from: b, to: a, want: 30 + 11 + 20},
		{name: "into the end depot", from: a, to: end, want: 50 + 7 + 20},
		{name: "start and end co-located", from: start, to: end, want: 0 + 7 + 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fn(tt.from, tt.to))
		})
	}
}

func TestZoneTransit(t *testing.T) {
	mgr, err := routing.InProcess{}.NewIndexManager(4, 1, []int{0}, []int{1})
	require.NoError(t, err)
	tests := []struct {
		name     string
		eligible []bool
		want     map[int]int64 // by node
	}{
		{name: "no zones", eligible: nil, want: map[int]int64{2: 0, 3: 0}},
		{name: "one stop outside", eligible: []bool{true, true, false, true}, want: map[int]int64{2: 1, 3: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := zoneTransit(mgr, vehicleContext{eligible: tt.eligible})
			for node, want := range tt.want {
				assert.Equalf(t, want, fn(mgr.NodeToIndex(node)), "node %d", node)
			}
			assert.Zero(t, fn(mgr.StartIndex(0)))
		})
	}
}

func TestEncodeWindowPriorities(t *testing.T) {
	data := loadSolverData(t, "small_solver_data.json")
	const lateNode = 5
	data.OrderPriorityType = make([]model.Priority, data.NumNodes())
	data.OrderPriorityType[lateNode] = model.PriorityLate
	opts := testOptions()
	enc, dim := encodeRecorded(t, data, opts)

	late := enc.mgr.NodeToIndex(lateNode)
	require.Len(t, dim.lower, 1)
	assert.Equal(t, boundCall{late, data.TimeWindows[lateNode][1], opts.SoftWindowPenalty}, dim.lower[0])

	orderNodes := data.NumNodes() - 2*data.NumberOfRoutes
	assert.Len(t, dim.upper, orderNodes-1)
	for _, c := range dim.upper {
		assert.NotEqual(t, late, c.index)
		node := enc.mgr.IndexToNode(c.index)
		assert.Equal(t, data.TimeWindows[node][0], c.bound)
		assert.Equal(t, opts.SoftWindowPenalty, c.coefficient)
	}
}

func TestEncodeSpanToggles(t *testing.T) {
	tests := []struct {
		name      string
		cost      bool
		bound     bool
		wantCost  []int64
		wantBound map[int]int64
	}{
		{name: "both on", cost: true, bound: true, wantCost: []int64{1}, wantBound: map[int]int64{0: 2700}},
		{name: "cost off", cost: false, bound: true, wantCost: nil, wantBound: map[int]int64{0: 2700}},
		{name: "bound off", cost: true, bound: false, wantCost: []int64{1}, wantBound: map[int]int64{}},
		{name: "both off", cost: false, bound: false, wantCost: nil, wantBound: map[int]int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := loadSolverData(t, "small_solver_data.json")
			data.RouteMaxDurations = []int64{2700}
			opts := testOptions()
			opts.EnableSpanCost = tt.cost
			opts.EnableSpanUpperBound = tt.bound
			_, dim := encodeRecorded(t, data, opts)
			assert.Equal(t, tt.wantCost, dim.spanCost)
			assert.Equal(t, tt.wantBound, dim.spanUpper)
		})
	}
}

func TestSolveWithSpanTogglesOff(t *testing.T) {
	tests := []struct {
		name  string
		cost  bool
		bound bool
		drops bool
	}{
		{name: "bound enforced", cost: true, bound: true, drops: true},
		{name: "bound off", cost: true, bound: false, drops: false},
		{name: "cost off", cost: false, bound: true, drops: true},
		{name: "both off", cost: false, bound: false, drops: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := loadSolverData(t, "small_solver_data.json")
			data.RouteMaxDurations = []int64{2700}
			req := requestFor(data)
			opts := testOptions()
			opts.EnableSpanCost = tt.cost
			opts.EnableSpanUpperBound = tt.bound
			resp := solve(t, req, data, opts)

			assert.Equal(t, model.StatusSuccess, resp.Status)
			if tt.drops {
				assert.NotEmpty(t, resp.UnassignableOrders)
			} else {
				assert.Empty(t, resp.UnassignableOrders)
			}
			assertCovers(t, req, resp)
			assertPairs(t, req, resp)
		})
	}
}

// boundaryData is two vehicles around a 10^9 ms offset block boundary: the
// first opens 10 minutes after it, the second and both stops 20 minutes
// before it.
func boundaryData(boundary time.Time) (*model.Request, *model.SolverData) {
	svc := func(d time.Duration) *model.Duration {
		v := model.Duration(d)
		return &v
	}
	late, early, closes := boundary.Add(10*time.Minute), boundary.Add(-20*time.Minute), boundary.Add(6*time.Hour)
	locs := []model.Location{
		{LocationID: "S0", StartTime: late, EndTime: closes},
		{LocationID: "E0", StartTime: late, EndTime: closes},
		{LocationID: "S1", StartTime: early, EndTime: closes},
		{LocationID: "E1", StartTime: early, EndTime: closes},
		{LocationID: "P-1", StartTime: early, EndTime: closes, LoadingTime: svc(time.Minute)},
		{LocationID: "D-1", StartTime: early, EndTime: closes, UnloadingTime: svc(time.Minute)},
	}
	n := len(locs)
	matrix := make([][]int64, n)
	for i := range matrix {
		matrix[i] = make([]int64, n)
		for j := range matrix[i] {
			if i != j {
				matrix[i][j] = 600
			}
		}
	}
	data := &model.SolverData{
		NumberOfRoutes:        2,
		TimeMatrix:            matrix,
		DistanceMatrix:        matrix,
		StartLocations:        []int{0, 2},
		EndLocations:          []int{1, 3},
		PickupDropOffs:        [][2]int{{4, 5}},
		VehicleTimeCapacities: []int64{math.MaxInt32, math.MaxInt32},
		Locations:             locs,
	}
	dropoff := &model.Order{OrderID: "order-D-1", Location: locs[5]}
	req := &model.Request{
		Routes: []model.Route{
			{RouteID: "route-0", StartDepot: locs[0], EndDepot: locs[1], Orders: []*model.Order{}},
			{RouteID: "route-1", StartDepot: locs[2], EndDepot: locs[3], Orders: []*model.Order{}},
		},
		Orders: []*model.Order{{OrderID: "order-P-1", Location: locs[4], SubsequentOrder: dropoff}},
	}
	return req, data
}

func TestSolveAcrossOffsetBlockBoundary(t *testing.T) {
	boundary := time.Date(2024, 11, 7, 17, 20, 0, 0, time.UTC)
	require.True(t, timeconv.NewOffset(boundary).Base().Equal(boundary))
	req, data := boundaryData(boundary)

	res, err := NewSolver(nil, nil, testOptions()).Solve(context.Background(), req, data)
	require.NoError(t, err)
	resp := res.Response
	assert.Equal(t, model.StatusSuccess, resp.Status)
	assert.Empty(t, resp.UnassignableOrders)
	assert.True(t, res.Offset.Base().Before(boundary))
	assertCovers(t, req, resp)
	assertPairs(t, req, resp)

	for _, r := range resp.Routes {
		for _, o := range r.Orders {
			assert.False(t, o.Location.StartTime.Add(o.WaitTime.Std()).Before(boundary.Add(-20*time.Minute)))
		}
	}
}
