package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lastmile/internal/geo"
	"lastmile/internal/model"
	"lastmile/internal/opt"
)

var hub = model.NewHub(geo.Coordinate{Lat: 12.97, Lng: 77.59})

func testRoutes(t *testing.T) []model.Route {
	t.Helper()
	orders := []model.Order{
		{ID: "loc-0", Location: geo.Coordinate{Lat: 12.98, Lng: 77.60}},
		{ID: "loc-1", Location: geo.Coordinate{Lat: 12.99, Lng: 77.62}},
		{ID: "loc-2", Location: geo.Coordinate{Lat: 12.95, Lng: 77.57}},
		{ID: "loc-3", Location: geo.Coordinate{Lat: 12.96, Lng: 77.55}},
		{ID: "loc-4", Location: geo.Coordinate{Lat: 12.94, Lng: 77.61}},
	}
	routes, err := opt.Build(hub, orders, 2, opt.StrategyNearestNeighbor)
	require.NoError(t, err)
	require.Len(t, routes, 2)
	return routes
}

func TestPrepare(t *testing.T) {
	routes := testRoutes(t)
	st, err := Prepare(routes, 10)
	require.NoError(t, err)
	require.Len(t, st.Tracks, 2)

	// agent 0: hub, 3 orders, hub -> 4 segments of 11 points
	tr := st.Tracks[0]
	assert.Len(t, tr.Waypoints, 44)
	require.Len(t, tr.Deliveries, 3)
	assert.Equal(t, []int{10, 21, 32}, []int{
		tr.Deliveries[0].WaypointIndex,
		tr.Deliveries[1].WaypointIndex,
		tr.Deliveries[2].WaypointIndex,
	})
	for _, d := range tr.Deliveries {
		assert.Equal(t, routes[0].Stops[d.StopIndex].ID, d.OrderID)
		assert.Equal(t, routes[0].Stops[d.StopIndex].Location, tr.Waypoints[d.WaypointIndex])
	}
}

func TestPrepareInvalidResolution(t *testing.T) {
	_, err := Prepare(testRoutes(t), 0)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestPrepareNoRoutes(t *testing.T) {
	st, err := Prepare(nil, 30)
	require.NoError(t, err)
	assert.True(t, st.Empty())

	snaps, err := SetProgress(st, 50)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestSetProgressBoundaries(t *testing.T) {
	st, err := Prepare(testRoutes(t), 30)
	require.NoError(t, err)

	for _, p := range []float64{0, 100} {
		snaps, err := SetProgress(st, p)
		require.NoError(t, err)
		require.Len(t, snaps, 2)
		for _, s := range snaps {
			assert.Equal(t, hub.Location, s.Position, "progress %v agent %d", p, s.Agent)
		}
	}

	start, err := SetProgress(st, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, start[0].HeadingDeg)
	assert.Equal(t, 0, start[0].Delivered)

	end, err := SetProgress(st, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, end[0].Delivered)
	assert.Equal(t, 2, end[1].Delivered)
}

func TestSetProgressIdempotent(t *testing.T) {
	st, err := Prepare(testRoutes(t), 30)
	require.NoError(t, err)
	for _, p := range []float64{0, 12.5, 33.3, 50, 99.99, 100} {
		a, err := SetProgress(st, p)
		require.NoError(t, err)
		b, err := SetProgress(st, p)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func TestSetProgressInvalid(t *testing.T) {
	st, err := Prepare(testRoutes(t), 30)
	require.NoError(t, err)
	for _, p := range []float64{-0.1, 100.1} {
		_, err := SetProgress(st, p)
		assert.ErrorIs(t, err, model.ErrInvalidArgument)
	}
}

func TestHeadingAtSegmentJoint(t *testing.T) {
	a := geo.Coordinate{Lat: 0, Lng: 0}
	b := geo.Coordinate{Lat: 0, Lng: 1}
	routes := []model.Route{{
		Agent: 0,
		Stops: []model.Stop{
			{Kind: model.StopHub, ID: model.HubID, Location: a},
			{Kind: model.StopOrder, ID: "east", Location: b},
			{Kind: model.StopHub, ID: model.HubID, Location: a},
		},
	}}
	st, err := Prepare(routes, 4)
	require.NoError(t, err)
	require.Len(t, st.Tracks[0].Waypoints, 10)

	// index 5 duplicates index 4 (the order stop); heading still faces east
	assert.InDelta(t, 90, heading(st.Tracks[0].Waypoints, 5), 1e-9)
	assert.InDelta(t, 270, heading(st.Tracks[0].Waypoints, 6), 1e-9)
	assert.Equal(t, 0.0, heading(st.Tracks[0].Waypoints, 0))
}

func TestWaypointIndex(t *testing.T) {
	assert.Equal(t, 0, waypointIndex(0, 40))
	assert.Equal(t, 20, waypointIndex(50, 40))
	assert.Equal(t, 39, waypointIndex(100, 40))
	assert.Equal(t, 0, waypointIndex(100, 1))
}

func TestDeliveryEventsAt(t *testing.T) {
	st, err := Prepare(testRoutes(t), 10)
	require.NoError(t, err)

	// agent 0 has 44 waypoints; its first delivery is at index 10, reached
	// at progress 10*100/44.
	p := 10 * 100.0 / 44
	events, err := DeliveryEventsAt(st, p+0.01)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, 0, events[0].Agent)
	assert.Equal(t, 1, events[0].StopIndex)

	again, err := DeliveryEventsAt(st, p+0.01)
	require.NoError(t, err)
	assert.Equal(t, events, again)

	none, err := DeliveryEventsAt(st, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeliveriesBetweenCoversEveryDelivery(t *testing.T) {
	st, err := Prepare(testRoutes(t), 30)
	require.NoError(t, err)

	all, err := DeliveriesBetween(st, 0, 100)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	// many small steps yield the same set, each delivery once
	seen := map[string]int{}
	prev := 0.0
	for p := 3.7; ; p += 3.7 {
		if p > 100 {
			p = 100
		}
		evs, err := DeliveriesBetween(st, prev, p)
		require.NoError(t, err)
		for _, e := range evs {
			seen[e.OrderID]++
		}
		prev = p
		if p == 100 {
			break
		}
	}
	assert.Len(t, seen, 5)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}

	_, err = DeliveriesBetween(st, 50, 10)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestStopStatuses(t *testing.T) {
	st, err := Prepare(testRoutes(t), 10)
	require.NoError(t, err)

	start, err := StopStatuses(st, 0, 0)
	require.NoError(t, err)
	require.Len(t, start, 3)
	for _, s := range start {
		assert.Equal(t, StatusPending, s.Status)
	}

	end, err := StopStatuses(st, 0, 100)
	require.NoError(t, err)
	for _, s := range end {
		assert.Equal(t, StatusDelivered, s.Status)
	}

	first := start[0].Threshold
	mid, err := StopStatuses(st, 0, first-2)
	require.NoError(t, err)
	assert.Equal(t, StatusApproaching, mid[0].Status)
	assert.Equal(t, StatusPending, mid[1].Status)

	_, err = StopStatuses(st, 7, 10)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}
