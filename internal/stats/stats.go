// Package stats reduces route sets to summary numbers.
package stats

import (
	"fmt"
	"time"

	"lastmile/internal/model"
)

// TotalDistance sums TotalDistanceKm over routes.
func TotalDistance(routes []model.Route) float64 {
	total := 0.0
	for _, r := range routes {
		total += r.TotalDistanceKm
	}
	return total
}

// AverageStopsPerAgent is orders divided by agentCount.
func AverageStopsPerAgent(orders []model.Order, agentCount int) (float64, error) {
	if agentCount < 1 {
		return 0, fmt.Errorf("average stops: agent count %d: %w", agentCount, model.ErrInvalidArgument)
	}
	return float64(len(orders)) / float64(agentCount), nil
}

// AgentSummary is the per-route line of a Summary.
type AgentSummary struct {
	Agent      int     `json:"agent"`
	Color      string  `json:"color"`
	Orders     int     `json:"orders"`
	DistanceKm float64 `json:"distanceKm"`
}

// Summary aggregates a built route set.
type Summary struct {
	Orders               int            `json:"orders"`
	Agents               int            `json:"agents"`
	ActiveAgents         int            `json:"activeAgents"`
	TotalDistanceKm      float64        `json:"totalDistanceKm"`
	AverageStopsPerAgent float64        `json:"averageStopsPerAgent"`
	AverageKmPerRoute    float64        `json:"averageKmPerRoute"`
	LongestRouteKm       float64        `json:"longestRouteKm"`
	ComputationTime      time.Duration  `json:"computationTimeNs,omitempty"`
	PerAgent             []AgentSummary `json:"perAgent"`
}

// Summarize builds a Summary for routes produced from orders with agentCount
// agents.
func Summarize(routes []model.Route, orders []model.Order, agentCount int) (Summary, error) {
	avg, err := AverageStopsPerAgent(orders, agentCount)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{
		Orders:               len(orders),
		Agents:               agentCount,
		ActiveAgents:         len(routes),
		TotalDistanceKm:      TotalDistance(routes),
		AverageStopsPerAgent: avg,
		PerAgent:             make([]AgentSummary, 0, len(routes)),
	}
	for _, r := range routes {
		s.LongestRouteKm = max(s.LongestRouteKm, r.TotalDistanceKm)
		s.PerAgent = append(s.PerAgent, AgentSummary{
			Agent:      r.Agent,
			Color:      r.Color,
			Orders:     len(r.Orders()),
			DistanceKm: r.TotalDistanceKm,
		})
	}
	if len(routes) > 0 {
		s.AverageKmPerRoute = s.TotalDistanceKm / float64(len(routes))
	}
	return s, nil
}
