package model

import "lastmile/internal/geo"

// Request and response bodies of the HTTP API.

// PlanRequest builds routes without creating a session. Either City or Hub
// locates the hub; Hub wins when both are set.
type PlanRequest struct {
	City     string          `json:"city,omitempty"`
	Hub      *geo.Coordinate `json:"hub,omitempty"`
	Orders   []Order         `json:"orders"`
	Agents   int             `json:"agents"`
	Strategy string          `json:"strategy,omitempty"`
	// Progress, when set, adds agent snapshots at that progress.
	Progress   *float64 `json:"progress,omitempty"`
	Resolution int      `json:"resolution,omitempty"`
}

type CreateSessionRequest struct {
	City string          `json:"city,omitempty"`
	Hub  *geo.Coordinate `json:"hub,omitempty"`
	// Orders and Agents, when positive, generate orders and build routes
	// right away.
	Orders   int    `json:"orders,omitempty"`
	Agents   int    `json:"agents,omitempty"`
	Strategy string `json:"strategy,omitempty"`
}

// GenerateOrdersRequest picks the order source: "generator" (default) or
// "database".
type GenerateOrdersRequest struct {
	Count  *int   `json:"count,omitempty"`
	Source string `json:"source,omitempty"`
}

type SetOrdersRequest struct {
	Orders []Order `json:"orders"`
}

// BuildRoutesRequest leaves Agents nil to use the configured default.
type BuildRoutesRequest struct {
	Agents   *int   `json:"agents,omitempty"`
	Strategy string `json:"strategy,omitempty"`
}

// PlaybackUpdate seeks and/or changes speed. Nothing changes unless both
// values are accepted.
type PlaybackUpdate struct {
	Progress *float64 `json:"progress,omitempty"`
	Speed    *float64 `json:"speed,omitempty"`
}

// ControlMessage is sent by WebSocket clients.
type ControlMessage struct {
	Type     string   `json:"type"` // play, pause, toggle, restart, seek, speed, ping
	Progress *float64 `json:"progress,omitempty"`
	Speed    *float64 `json:"speed,omitempty"`
}
