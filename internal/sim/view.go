package sim

import (
	"fmt"
	"time"

	"lastmile/internal/model"
	"lastmile/internal/opt"
	"lastmile/internal/playback"
	"lastmile/internal/stats"
)

// View is a read-only picture of a session.
type View struct {
	ID        string         `json:"id"`
	City      string         `json:"city"`
	Hub       model.Hub      `json:"hub"`
	CreatedAt time.Time      `json:"createdAt"`
	Orders    int            `json:"orders"`
	Agents    int            `json:"agents"`
	Strategy  opt.Strategy   `json:"strategy"`
	Routes    []model.Route  `json:"routes,omitempty"`
	Playback  Status         `json:"playback"`
	Stats     *stats.Summary `json:"stats,omitempty"`
}

// View returns the session's current state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:        s.id,
		City:      s.city,
		Hub:       s.hub,
		CreatedAt: s.created,
		Orders:    len(s.orders),
		Agents:    s.agents,
		Strategy:  s.strategy,
		Routes:    s.routes,
		Playback:  s.statusLocked(),
	}
	if sum, err := s.summaryLocked(); err == nil {
		v.Stats = &sum
	}
	return v
}

// AgentDetails describes one agent's route and delivery progress.
type AgentDetails struct {
	Agent      int                     `json:"agent"`
	Color      string                  `json:"color"`
	DistanceKm float64                 `json:"distanceKm"`
	Orders     int                     `json:"orders"`
	Progress   float64                 `json:"progress"`
	Position   *playback.AgentSnapshot `json:"position,omitempty"`
	Stops      []AgentStop             `json:"stops"`
}

// AgentStop is an order stop with its delivery status.
type AgentStop struct {
	Sequence int                 `json:"sequence"`
	Order    model.Order         `json:"order"`
	Status   playback.StopStatus `json:"status"`
}

// Agent returns the details of agent at the current progress.
func (s *Session) Agent(agent int) (AgentDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.routes == nil {
		return AgentDetails{}, ErrNoRoutes
	}
	var route *model.Route
	for i := range s.routes {
		if s.routes[i].Agent == agent {
			route = &s.routes[i]
			break
		}
	}
	if route == nil {
		return AgentDetails{}, fmt.Errorf("agent %d: %w", agent, model.ErrNotFound)
	}

	progress := s.player.Progress()
	statuses, err := playback.StopStatuses(s.player.State(), agent, progress)
	if err != nil {
		return AgentDetails{}, err
	}
	byStop := make(map[int]playback.StopStatus, len(statuses))
	for _, st := range statuses {
		byStop[st.StopIndex] = st.Status
	}

	d := AgentDetails{
		Agent:      route.Agent,
		Color:      route.Color,
		DistanceKm: route.TotalDistanceKm,
		Progress:   progress,
	}
	for i, stop := range route.Stops {
		if stop.Kind != model.StopOrder || stop.Order == nil {
			continue
		}
		d.Stops = append(d.Stops, AgentStop{Sequence: len(d.Stops) + 1, Order: *stop.Order, Status: byStop[i]})
	}
	d.Orders = len(d.Stops)

	if snaps, err := s.player.Frame(); err == nil {
		for i := range snaps {
			if snaps[i].Agent == agent {
				d.Position = &snaps[i]
			}
		}
	}
	return d, nil
}
