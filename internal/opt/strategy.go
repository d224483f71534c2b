package opt

import (
	"fmt"
	"strings"

	"lastmile/internal/model"
)

// Strategy selects the per-agent sequencing heuristic.
type Strategy string

const (
	// StrategyNearestNeighbor visits the closest unvisited order next.
	StrategyNearestNeighbor Strategy = "nearest_neighbor"
	// StrategyTwoOpt refines the nearest-neighbour tour with 2-opt moves.
	StrategyTwoOpt Strategy = "two_opt"
)

// DefaultStrategy is used when callers leave the strategy empty.
const DefaultStrategy = StrategyNearestNeighbor

// Strategies lists every supported strategy.
func Strategies() []Strategy {
	return []Strategy{StrategyNearestNeighbor, StrategyTwoOpt}
}

// ParseStrategy maps user input to a Strategy. Empty input selects the default.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultStrategy, nil
	case "nearest_neighbor", "nearest-neighbor", "nn":
		return StrategyNearestNeighbor, nil
	case "two_opt", "two-opt", "2opt", "2-opt":
		return StrategyTwoOpt, nil
	}
	return "", fmt.Errorf("parse strategy %q: %w", s, model.ErrInvalidArgument)
}

func (s Strategy) String() string { return string(s) }

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) { return []byte(s), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(b []byte) error {
	v, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// sequencer orders one agent's chunk starting from the hub. It returns the
// visiting order as indexes into orders and the number of distance
// evaluations performed.
type sequencer func(hub model.Hub, orders []model.Order) ([]int, int)

func (s Strategy) sequencer() (sequencer, error) {
	switch s {
	case StrategyNearestNeighbor:
		return nearestNeighbor, nil
	case StrategyTwoOpt:
		return twoOpt, nil
	}
	return nil, fmt.Errorf("strategy %q: %w", string(s), model.ErrInvalidArgument)
}
