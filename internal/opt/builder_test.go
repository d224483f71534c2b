package opt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lastmile/internal/geo"
	"lastmile/internal/model"
)

var testHub = model.NewHub(geo.Coordinate{Lat: 12.97, Lng: 77.59})

func order(id string, lat, lng float64) model.Order {
	return model.Order{ID: id, Location: geo.Coordinate{Lat: lat, Lng: lng}}
}

func stopIDs(r model.Route) []string {
	out := make([]string, len(r.Stops))
	for i, s := range r.Stops {
		out[i] = s.ID
	}
	return out
}

func gridOrders(n int) []model.Order {
	out := make([]model.Order, n)
	for i := range out {
		// deterministic scatter around the hub
		lat := 12.97 + 0.04*math.Sin(float64(i)*1.7)
		lng := 77.59 + 0.04*math.Cos(float64(i)*2.3)
		out[i] = order(fmt.Sprintf("loc-%d", i), lat, lng)
	}
	return out
}

func TestBuildVisitsNearestFirst(t *testing.T) {
	o0 := order("O0", 12.975, 77.60)
	o1 := order("O1", 12.965, 77.58)

	routes, err := Build(testHub, []model.Order{o0, o1}, 1, StrategyNearestNeighbor)
	require.NoError(t, err)
	require.Len(t, routes, 1)

	first, second := "O0", "O1"
	if geo.DistanceKm(testHub.Location, o1.Location) < geo.DistanceKm(testHub.Location, o0.Location) {
		first, second = "O1", "O0"
	}
	assert.Equal(t, []string{model.HubID, first, second, model.HubID}, stopIDs(routes[0]))
}

func TestBuildClearlyCloserOrderComesFirst(t *testing.T) {
	far := order("far", 12.99, 77.61)
	near := order("near", 12.968, 77.585)

	routes, err := Build(testHub, []model.Order{far, near}, 1, StrategyNearestNeighbor)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, []string{model.HubID, "near", "far", model.HubID}, stopIDs(routes[0]))
}

func TestBuildTieKeepsInputOrder(t *testing.T) {
	a := order("a", 12.98, 77.59)
	b := order("b", 12.98, 77.59)

	routes, err := Build(testHub, []model.Order{a, b}, 1, StrategyNearestNeighbor)
	require.NoError(t, err)
	assert.Equal(t, []string{model.HubID, "a", "b", model.HubID}, stopIDs(routes[0]))
}

func TestBuildEmptyOrders(t *testing.T) {
	routes, err := Build(testHub, nil, 3, StrategyNearestNeighbor)
	require.NoError(t, err)
	assert.Empty(t, routes)
	assert.NotNil(t, routes)
}

func TestBuildInvalidAgentCount(t *testing.T) {
	for _, n := range []int{0, -1} {
		_, err := Build(testHub, gridOrders(3), n, StrategyNearestNeighbor)
		assert.True(t, errors.Is(err, model.ErrInvalidArgument), "agents=%d", n)
	}
}

func TestBuildUnknownStrategy(t *testing.T) {
	_, err := Build(testHub, gridOrders(3), 1, Strategy("genetic"))
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestBuildAssignsEveryOrderOnce(t *testing.T) {
	for _, tc := range []struct{ orders, agents int }{
		{1, 1}, {7, 3}, {10, 3}, {10, 4}, {5, 8}, {12, 12}, {25, 6},
	} {
		t.Run(fmt.Sprintf("%d_orders_%d_agents", tc.orders, tc.agents), func(t *testing.T) {
			in := gridOrders(tc.orders)
			routes, err := Build(testHub, in, tc.agents, StrategyNearestNeighbor)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(routes), tc.agents)

			seen := map[string]int{}
			for _, r := range routes {
				require.GreaterOrEqual(t, len(r.Stops), 3, "empty routes are omitted")
				assert.Equal(t, model.StopHub, r.Stops[0].Kind)
				assert.Equal(t, model.StopHub, r.Stops[len(r.Stops)-1].Kind)
				for _, o := range r.Orders() {
					seen[o.ID]++
				}
			}
			require.Len(t, seen, len(in))
			for _, o := range in {
				assert.Equal(t, 1, seen[o.ID], o.ID)
			}
		})
	}
}

func TestBuildDistanceMatchesStops(t *testing.T) {
	routes, err := Build(testHub, gridOrders(17), 4, StrategyNearestNeighbor)
	require.NoError(t, err)
	for _, r := range routes {
		sum := 0.0
		for i := 1; i < len(r.Stops); i++ {
			sum += geo.DistanceKm(r.Stops[i-1].Location, r.Stops[i].Location)
		}
		assert.InEpsilon(t, sum, r.TotalDistanceKm, 1e-9)
	}
}

func TestBuildDeterministic(t *testing.T) {
	in := gridOrders(23)
	a, err := Build(testHub, in, 5, StrategyNearestNeighbor)
	require.NoError(t, err)
	b, err := Build(testHub, in, 5, StrategyNearestNeighbor)
	require.NoError(t, err)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, ja, jb)
}

func TestBuildOmitsTrailingEmptyAgents(t *testing.T) {
	// 5 orders over 4 agents: chunks of 2 -> [2, 2, 1, 0]
	routes, err := Build(testHub, gridOrders(5), 4, StrategyNearestNeighbor)
	require.NoError(t, err)
	require.Len(t, routes, 3)
	for i, r := range routes {
		assert.Equal(t, i, r.Agent)
		assert.Equal(t, model.AgentColor(i), r.Color)
	}
	assert.Len(t, routes[2].Orders(), 1)
}

func TestPartition(t *testing.T) {
	chunks := Partition(gridOrders(10), 3)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 4)
	assert.Len(t, chunks[1], 4)
	assert.Len(t, chunks[2], 2)
	assert.Equal(t, "loc-4", chunks[1][0].ID)

	assert.Nil(t, Partition(gridOrders(3), 0))
}

func TestBuildWithMetrics(t *testing.T) {
	routes, m, err := BuildWithMetrics(testHub, gridOrders(6), 2, StrategyNearestNeighbor)
	require.NoError(t, err)
	assert.Equal(t, 6, m.Orders)
	assert.Equal(t, 2, m.Agents)
	assert.Equal(t, len(routes), m.Routes)
	// two chunks of 3: 3+2+1 evaluations each
	assert.Equal(t, 12, m.DistanceEvaluations)
	assert.InDelta(t, routes[0].TotalDistanceKm+routes[1].TotalDistanceKm, m.TotalDistanceKm, 1e-9)
	assert.False(t, m.BuiltAt.IsZero())
}

func TestParseStrategy(t *testing.T) {
	for _, in := range []string{"", "nearest_neighbor", "NN", " nearest-neighbor "} {
		s, err := ParseStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, StrategyNearestNeighbor, s)
	}
	s, err := ParseStrategy("2-opt")
	require.NoError(t, err)
	assert.Equal(t, StrategyTwoOpt, s)

	_, err = ParseStrategy("alns")
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	require.NoError(t, json.Unmarshal([]byte(`"nn"`), &s))
	assert.Equal(t, StrategyNearestNeighbor, s)
}

func TestMetricsStore(t *testing.T) {
	RecordMetrics("s1", StrategyNearestNeighbor, Metrics{Orders: 3})
	RecordMetrics("s2", StrategyNearestNeighbor, Metrics{Orders: 9})

	got := GetMetrics("s1")
	require.Contains(t, got, StrategyNearestNeighbor)
	assert.Equal(t, 3, got[StrategyNearestNeighbor].Orders)
	assert.Contains(t, AllMetrics(), "s2")

	ForgetMetrics("s1")
	assert.Empty(t, GetMetrics("s1"))
	assert.NotEmpty(t, GetMetrics("s2"))
	ForgetMetrics("s2")
}

func TestTwoOptShortensTour(t *testing.T) {
	in := gridOrders(12)
	nn, err := Build(testHub, in, 1, StrategyNearestNeighbor)
	require.NoError(t, err)
	opt, err := Build(testHub, in, 1, StrategyTwoOpt)
	require.NoError(t, err)

	// the nearest-neighbour tour over this scatter crosses itself
	assert.Less(t, opt[0].TotalDistanceKm, nn[0].TotalDistanceKm-1)
	assert.ElementsMatch(t, stopIDs(nn[0]), stopIDs(opt[0]))
	assert.Equal(t, model.HubID, opt[0].Stops[0].ID)
	assert.Equal(t, model.HubID, opt[0].Stops[len(opt[0].Stops)-1].ID)
}

func TestTwoOptNeverLonger(t *testing.T) {
	for _, n := range []int{1, 2, 3, 8, 17} {
		in := gridOrders(n)
		nn, err := Build(testHub, in, 2, StrategyNearestNeighbor)
		require.NoError(t, err)
		opt, err := Build(testHub, in, 2, StrategyTwoOpt)
		require.NoError(t, err)
		require.Len(t, opt, len(nn))
		for i := range nn {
			assert.LessOrEqual(t, opt[i].TotalDistanceKm, nn[i].TotalDistanceKm+1e-9, "n=%d agent=%d", n, i)
		}
	}
}
