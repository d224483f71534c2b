package model

import (
	"time"

	"lastmile/internal/geo"
)

// Core domain types shared by the engine, the session layer and the API.

// HubID is the identity of the single distribution hub of a session.
const HubID = "hub"

// Hub is the depot every route starts and ends at.
type Hub struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Location geo.Coordinate `json:"location"`
}

// NewHub returns the hub placed at loc.
func NewHub(loc geo.Coordinate) Hub {
	return Hub{ID: HubID, Name: "Distribution Center", Location: loc}
}

// OrderDetails is display metadata. The engine passes it through untouched.
type OrderDetails struct {
	Name      string    `json:"name,omitempty"`
	Customer  string    `json:"customer,omitempty"`
	Address   string    `json:"address,omitempty"`
	Items     []string  `json:"items,omitempty"`
	OrderedAt time.Time `json:"orderedAt,omitempty"`
}

// Order is a delivery destination.
type Order struct {
	ID       string         `json:"id"`
	Location geo.Coordinate `json:"location"`
	Details  OrderDetails   `json:"details"`
}

// StopKind distinguishes hub stops from order stops in a route.
type StopKind string

const (
	StopHub   StopKind = "hub"
	StopOrder StopKind = "order"
)

// Stop is one entry of a route's visiting sequence.
type Stop struct {
	Kind     StopKind       `json:"kind"`
	ID       string         `json:"id"`
	Location geo.Coordinate `json:"location"`
	Order    *Order         `json:"order,omitempty"`
}

// HubStop returns the stop representing h.
func HubStop(h Hub) Stop {
	return Stop{Kind: StopHub, ID: h.ID, Location: h.Location}
}

// OrderStop returns the stop delivering o.
func OrderStop(o Order) Stop {
	return Stop{Kind: StopOrder, ID: o.ID, Location: o.Location, Order: &o}
}

// Route is one agent's sequenced stops: hub, orders..., hub.
type Route struct {
	Agent           int     `json:"agent"`
	Color           string  `json:"color"`
	Stops           []Stop  `json:"stops"`
	TotalDistanceKm float64 `json:"totalDistanceKm"`
}

// Orders returns the orders of r in visiting order.
func (r Route) Orders() []Order {
	out := make([]Order, 0, len(r.Stops))
	for _, s := range r.Stops {
		if s.Kind == StopOrder && s.Order != nil {
			out = append(out, *s.Order)
		}
	}
	return out
}

// Path returns the stop coordinates of r.
func (r Route) Path() []geo.Coordinate {
	out := make([]geo.Coordinate, len(r.Stops))
	for i, s := range r.Stops {
		out[i] = s.Location
	}
	return out
}

// Event is a typed notification fanned out to stream subscribers.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Event types published by simulation sessions.
const (
	EventOrdersUpdated     = "orders.updated"
	EventRoutesBuilt       = "routes.built"
	EventRoutesCleared     = "routes.cleared"
	EventPlaybackState     = "playback.state"
	EventPlaybackFrame     = "playback.frame"
	EventDeliveryCompleted = "delivery.completed"
)
