package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lastmile/internal/geo"
	"lastmile/internal/model"
	"lastmile/internal/opt"
)

func TestTotalDistanceEmpty(t *testing.T) {
	assert.Equal(t, 0.0, TotalDistance(nil))
	assert.Equal(t, 0.0, TotalDistance([]model.Route{}))
}

func TestTotalDistance(t *testing.T) {
	routes := []model.Route{{TotalDistanceKm: 1.5}, {TotalDistanceKm: 2.25}}
	assert.Equal(t, 3.75, TotalDistance(routes))
}

func TestAverageStopsPerAgent(t *testing.T) {
	orders := make([]model.Order, 10)
	avg, err := AverageStopsPerAgent(orders, 4)
	require.NoError(t, err)
	assert.Equal(t, 2.5, avg)

	avg, err = AverageStopsPerAgent(nil, 3)
	require.NoError(t, err)
	assert.Equal(t, 0.0, avg)

	_, err = AverageStopsPerAgent(orders, 0)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestSummarize(t *testing.T) {
	hub := model.NewHub(geo.Coordinate{Lat: 19.0760, Lng: 72.8777})
	orders := []model.Order{
		{ID: "loc-0", Location: geo.Coordinate{Lat: 19.08, Lng: 72.88}},
		{ID: "loc-1", Location: geo.Coordinate{Lat: 19.09, Lng: 72.86}},
		{ID: "loc-2", Location: geo.Coordinate{Lat: 19.06, Lng: 72.90}},
	}
	routes, err := opt.Build(hub, orders, 4, opt.StrategyNearestNeighbor)
	require.NoError(t, err)
	require.Len(t, routes, 3)

	s, err := Summarize(routes, orders, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Orders)
	assert.Equal(t, 4, s.Agents)
	assert.Equal(t, 3, s.ActiveAgents)
	assert.Equal(t, 0.75, s.AverageStopsPerAgent)
	assert.InDelta(t, TotalDistance(routes), s.TotalDistanceKm, 1e-12)
	assert.InDelta(t, s.TotalDistanceKm/3, s.AverageKmPerRoute, 1e-12)
	require.Len(t, s.PerAgent, 3)
	for _, a := range s.PerAgent {
		assert.Equal(t, 1, a.Orders)
		assert.LessOrEqual(t, a.DistanceKm, s.LongestRouteKm)
	}

	empty, err := Summarize(nil, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, 0.0, empty.AverageKmPerRoute)
	assert.Empty(t, empty.PerAgent)
}
