package api

import (
	"fmt"

	"lastmile/internal/config"
	"lastmile/internal/model"
	"lastmile/internal/playback"
	"lastmile/internal/sim"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), model.ErrInvalidArgument)
}

func validateAgents(agents int, limits config.Simulation) error {
	if agents < 1 {
		return invalid("agents must be >= 1")
	}
	if limits.MaxAgents > 0 && agents > limits.MaxAgents {
		return invalid("agents: %d exceeds limit %d", agents, limits.MaxAgents)
	}
	return nil
}

func validatePlanRequest(req *model.PlanRequest, limits config.Simulation) error {
	if req.Hub == nil && req.City == "" {
		return invalid("city or hub required")
	}
	if req.Hub != nil && !req.Hub.Valid() {
		return invalid("hub location out of range")
	}
	if err := sim.ValidateOrders(req.Orders, limits.MaxOrders); err != nil {
		return err
	}
	if err := validateAgents(req.Agents, limits); err != nil {
		return err
	}
	if req.Resolution < 0 || req.Resolution > 1000 {
		return invalid("resolution must be in [0, 1000]")
	}
	return nil
}

func validateCreateSession(req *model.CreateSessionRequest, limits config.Simulation) error {
	if req.Hub != nil && !req.Hub.Valid() {
		return invalid("hub location out of range")
	}
	if req.Orders < 0 || (limits.MaxOrders > 0 && req.Orders > limits.MaxOrders) {
		return invalid("orders must be in [0, %d]", limits.MaxOrders)
	}
	if req.Agents != 0 {
		if err := validateAgents(req.Agents, limits); err != nil {
			return err
		}
	}
	return nil
}

func validateGenerate(count int, source string, limits config.Simulation) error {
	if count < 1 || (limits.MaxOrders > 0 && count > limits.MaxOrders) {
		return invalid("count must be in [1, %d]", limits.MaxOrders)
	}
	switch source {
	case "", sourceGenerator, sourceDatabase:
	default:
		return invalid("unknown source %q", source)
	}
	return nil
}

func validatePlaybackUpdate(req *model.PlaybackUpdate) error {
	if req.Progress == nil && req.Speed == nil {
		return invalid("progress or speed required")
	}
	if req.Speed != nil {
		if err := playback.ValidateSpeed(*req.Speed); err != nil {
			return err
		}
	}
	if req.Progress != nil {
		if err := playback.ValidateProgress(*req.Progress); err != nil {
			return err
		}
	}
	return nil
}
