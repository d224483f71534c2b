// Package playback maps a progress value in [0, 100] onto simulated agent
// positions along prepared routes.
//
// The functions in this file are pure: the same State and progress always
// produce the same snapshots and events, so timer driven playback and manual
// scrubbing agree. Player wraps a State with the playback lifecycle.
package playback

import (
	"fmt"
	"math"

	"lastmile/internal/geo"
	"lastmile/internal/model"
)

// MaxProgress is the terminal progress value.
const MaxProgress = 100.0

// Delivery marks where along a track an order stop is completed.
type Delivery struct {
	StopIndex     int    `json:"stopIndex"`
	OrderID       string `json:"orderId"`
	WaypointIndex int    `json:"waypointIndex"`
}

// Track is the waypoint cache of one route.
type Track struct {
	Agent      int              `json:"agent"`
	Color      string           `json:"color"`
	Waypoints  []geo.Coordinate `json:"-"`
	Deliveries []Delivery       `json:"deliveries"`
}

// State is the prepared, read-only playback cache for a route set.
type State struct {
	Resolution int     `json:"resolution"`
	Tracks     []Track `json:"tracks"`
}

// AgentSnapshot is an agent's position at a given progress.
type AgentSnapshot struct {
	Agent         int            `json:"agent"`
	Color         string         `json:"color"`
	Position      geo.Coordinate `json:"position"`
	HeadingDeg    float64        `json:"headingDeg"`
	WaypointIndex int            `json:"waypointIndex"`
	Delivered     int            `json:"delivered"`
}

// DeliveryEvent reports that an agent completed the order at StopIndex.
type DeliveryEvent struct {
	Agent     int            `json:"agent"`
	StopIndex int            `json:"stopIndex"`
	OrderID   string         `json:"orderId"`
	Position  geo.Coordinate `json:"position"`
}

// StopStatus classifies an order stop relative to the current progress.
type StopStatus string

const (
	StatusPending     StopStatus = "pending"
	StatusApproaching StopStatus = "approaching"
	StatusDelivered   StopStatus = "delivered"
)

// approachWindow is how many progress points before its threshold a stop
// counts as approaching.
const approachWindow = 5.0

// StopState is the status of one order stop.
type StopState struct {
	StopIndex int        `json:"stopIndex"`
	OrderID   string     `json:"orderId"`
	Threshold float64    `json:"threshold"`
	Status    StopStatus `json:"status"`
}

// Prepare interpolates every route into a waypoint track. Each segment
// between consecutive stops contributes resolution+1 points, endpoints
// included, so segment joints appear twice.
func Prepare(routes []model.Route, resolution int) (State, error) {
	if resolution < 1 {
		return State{}, fmt.Errorf("prepare playback: resolution %d: %w", resolution, model.ErrInvalidArgument)
	}
	st := State{Resolution: resolution, Tracks: make([]Track, 0, len(routes))}
	for _, r := range routes {
		if len(r.Stops) == 0 {
			return State{}, fmt.Errorf("prepare playback: agent %d has no stops: %w", r.Agent, model.ErrInvalidArgument)
		}
		tr := Track{Agent: r.Agent, Color: r.Color}
		if len(r.Stops) == 1 {
			tr.Waypoints = []geo.Coordinate{r.Stops[0].Location}
		}
		for i := 0; i+1 < len(r.Stops); i++ {
			tr.Waypoints = append(tr.Waypoints, geo.Waypoints(r.Stops[i].Location, r.Stops[i+1].Location, resolution)...)
			next := r.Stops[i+1]
			if next.Kind == model.StopOrder {
				tr.Deliveries = append(tr.Deliveries, Delivery{
					StopIndex:     i + 1,
					OrderID:       next.ID,
					WaypointIndex: len(tr.Waypoints) - 1,
				})
			}
		}
		st.Tracks = append(st.Tracks, tr)
	}
	return st, nil
}

// ValidateProgress rejects NaN and values outside [0, 100].
func ValidateProgress(p float64) error {
	if math.IsNaN(p) || p < 0 || p > MaxProgress {
		return fmt.Errorf("progress %v: %w", p, model.ErrInvalidArgument)
	}
	return nil
}

// waypointIndex maps progress onto a track of n waypoints.
func waypointIndex(progress float64, n int) int {
	if n <= 0 {
		return 0
	}
	idx := int(math.Floor(progress / MaxProgress * float64(n)))
	return min(max(idx, 0), n-1)
}

// heading looks back for the nearest earlier waypoint that differs from
// wps[idx]; duplicated segment joints would otherwise reset it to 0.
func heading(wps []geo.Coordinate, idx int) float64 {
	for j := idx - 1; j >= 0; j-- {
		if wps[j] != wps[idx] {
			return geo.BearingDeg(wps[j], wps[idx])
		}
	}
	return 0
}

// SetProgress returns one snapshot per track at progress.
func SetProgress(st State, progress float64) ([]AgentSnapshot, error) {
	if err := ValidateProgress(progress); err != nil {
		return nil, err
	}
	out := make([]AgentSnapshot, 0, len(st.Tracks))
	for _, tr := range st.Tracks {
		idx := waypointIndex(progress, len(tr.Waypoints))
		snap := AgentSnapshot{Agent: tr.Agent, Color: tr.Color, WaypointIndex: idx}
		if len(tr.Waypoints) > 0 {
			snap.Position = tr.Waypoints[idx]
			snap.HeadingDeg = heading(tr.Waypoints, idx)
		}
		for _, d := range tr.Deliveries {
			if d.WaypointIndex <= idx {
				snap.Delivered++
			}
		}
		out = append(out, snap)
	}
	return out, nil
}

// DeliveryEventsAt returns the deliveries whose waypoint index equals the
// current index at progress. It holds no memory of events already shown.
func DeliveryEventsAt(st State, progress float64) ([]DeliveryEvent, error) {
	if err := ValidateProgress(progress); err != nil {
		return nil, err
	}
	var out []DeliveryEvent
	for _, tr := range st.Tracks {
		idx := waypointIndex(progress, len(tr.Waypoints))
		for _, d := range tr.Deliveries {
			if d.WaypointIndex == idx {
				out = append(out, deliveryEvent(tr, d))
			}
		}
	}
	return out, nil
}

// DeliveriesBetween returns every delivery passed when moving from progress
// from to progress to, that is with a waypoint index in (index(from),
// index(to)]. Events come ordered by track, then by stop.
func DeliveriesBetween(st State, from, to float64) ([]DeliveryEvent, error) {
	if err := ValidateProgress(from); err != nil {
		return nil, err
	}
	if err := ValidateProgress(to); err != nil {
		return nil, err
	}
	if to < from {
		return nil, fmt.Errorf("deliveries between %v and %v: %w", from, to, model.ErrInvalidArgument)
	}
	var out []DeliveryEvent
	for _, tr := range st.Tracks {
		lo := waypointIndex(from, len(tr.Waypoints))
		hi := waypointIndex(to, len(tr.Waypoints))
		for _, d := range tr.Deliveries {
			if d.WaypointIndex > lo && d.WaypointIndex <= hi {
				out = append(out, deliveryEvent(tr, d))
			}
		}
	}
	return out, nil
}

func deliveryEvent(tr Track, d Delivery) DeliveryEvent {
	return DeliveryEvent{
		Agent:     tr.Agent,
		StopIndex: d.StopIndex,
		OrderID:   d.OrderID,
		Position:  tr.Waypoints[d.WaypointIndex],
	}
}

// StopStatuses classifies every order stop of agent at progress. A stop's
// threshold is the smallest progress at which its delivery index is reached.
func StopStatuses(st State, agent int, progress float64) ([]StopState, error) {
	if err := ValidateProgress(progress); err != nil {
		return nil, err
	}
	tr, ok := st.Track(agent)
	if !ok {
		return nil, fmt.Errorf("stop statuses: agent %d: %w", agent, model.ErrInvalidArgument)
	}
	idx := waypointIndex(progress, len(tr.Waypoints))
	out := make([]StopState, 0, len(tr.Deliveries))
	for _, d := range tr.Deliveries {
		threshold := float64(d.WaypointIndex) * MaxProgress / float64(len(tr.Waypoints))
		s := StopState{StopIndex: d.StopIndex, OrderID: d.OrderID, Threshold: threshold}
		switch {
		case idx >= d.WaypointIndex:
			s.Status = StatusDelivered
		case progress >= threshold-approachWindow:
			s.Status = StatusApproaching
		default:
			s.Status = StatusPending
		}
		out = append(out, s)
	}
	return out, nil
}

// Track returns the track of agent.
func (st State) Track(agent int) (Track, bool) {
	for _, tr := range st.Tracks {
		if tr.Agent == agent {
			return tr, true
		}
	}
	return Track{}, false
}

// Empty reports whether st has no tracks.
func (st State) Empty() bool { return len(st.Tracks) == 0 }
