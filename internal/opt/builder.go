// Package opt builds per-agent delivery routes from a hub and an order set.
//
// Orders are split into contiguous chunks, one per agent, and each chunk is
// sequenced by the selected Strategy. The result is deterministic: the same
// hub, orders and agent count always produce the same routes.
package opt

import (
	"fmt"
	"time"

	"lastmile/internal/geo"
	"lastmile/internal/model"
)

// Metrics describes one route build.
type Metrics struct {
	Strategy            Strategy      `json:"strategy"`
	Orders              int           `json:"orders"`
	Agents              int           `json:"agents"`
	Routes              int           `json:"routes"`
	DistanceEvaluations int           `json:"distanceEvaluations"`
	TotalDistanceKm     float64       `json:"totalDistanceKm"`
	Duration            time.Duration `json:"durationNs"`
	BuiltAt             time.Time     `json:"builtAt"`
}

// Build partitions orders across agentCount agents and sequences each
// agent's chunk. Agents left without orders are omitted from the result.
func Build(hub model.Hub, orders []model.Order, agentCount int, strategy Strategy) ([]model.Route, error) {
	routes, _, err := BuildWithMetrics(hub, orders, agentCount, strategy)
	return routes, err
}

// BuildWithMetrics is Build plus build statistics.
func BuildWithMetrics(hub model.Hub, orders []model.Order, agentCount int, strategy Strategy) ([]model.Route, Metrics, error) {
	start := time.Now()
	m := Metrics{Strategy: strategy, Orders: len(orders), Agents: agentCount}

	if agentCount < 1 {
		return nil, m, fmt.Errorf("build routes: agent count %d: %w", agentCount, model.ErrInvalidArgument)
	}
	next, err := strategy.sequencer()
	if err != nil {
		return nil, m, fmt.Errorf("build routes: %w", err)
	}

	routes := []model.Route{}
	for agent, chunk := range Partition(orders, agentCount) {
		if len(chunk) == 0 {
			continue
		}
		order, evals := next(hub, chunk)
		m.DistanceEvaluations += evals

		stops := make([]model.Stop, 0, len(chunk)+2)
		stops = append(stops, model.HubStop(hub))
		for _, idx := range order {
			stops = append(stops, model.OrderStop(chunk[idx]))
		}
		stops = append(stops, model.HubStop(hub))

		r := model.Route{
			Agent: agent,
			Color: model.AgentColor(agent),
			Stops: stops,
		}
		r.TotalDistanceKm = geo.PathDistanceKm(r.Path())
		m.TotalDistanceKm += r.TotalDistanceKm
		routes = append(routes, r)
	}

	m.Routes = len(routes)
	m.Duration = time.Since(start)
	m.BuiltAt = start.UTC()
	return routes, m, nil
}

// Partition splits orders into agentCount contiguous chunks of
// ceil(len(orders)/agentCount). Trailing chunks may be empty. It returns nil
// when agentCount < 1.
func Partition(orders []model.Order, agentCount int) [][]model.Order {
	if agentCount < 1 {
		return nil
	}
	size := (len(orders) + agentCount - 1) / agentCount
	chunks := make([][]model.Order, agentCount)
	for i := range chunks {
		lo := min(i*size, len(orders))
		hi := min(lo+size, len(orders))
		chunks[i] = orders[lo:hi]
	}
	return chunks
}

// nearestNeighbor greedily picks the closest unvisited order from the
// current position. Ties keep the lowest input index.
func nearestNeighbor(hub model.Hub, orders []model.Order) ([]int, int) {
	visited := make([]bool, len(orders))
	out := make([]int, 0, len(orders))
	cur := hub.Location
	evals := 0

	for len(out) < len(orders) {
		best := -1
		bestDist := 0.0
		for i, o := range orders {
			if visited[i] {
				continue
			}
			d := geo.DistanceKm(cur, o.Location)
			evals++
			if best < 0 || d < bestDist {
				best, bestDist = i, d
			}
		}
		visited[best] = true
		out = append(out, best)
		cur = orders[best].Location
	}
	return out, evals
}
