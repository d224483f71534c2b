// Package sim runs delivery simulation sessions.
//
// A Session owns one hub, its order set, the routes built from it and a
// playback.Player. At most one playback loop runs per session; every loop
// tick is applied atomically under the session lock. Events are handed to a
// Publisher after the lock is released.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"lastmile/internal/metrics"
	"lastmile/internal/model"
	"lastmile/internal/opt"
	"lastmile/internal/orders"
	"lastmile/internal/playback"
	"lastmile/internal/stats"
)

// ErrNoRoutes is returned by operations that need a built route set.
var ErrNoRoutes = errors.New("no routes built")

// Publisher receives session events.
type Publisher interface {
	Publish(sessionID string, evt model.Event)
}

// Publishers fans each event out to every member in order.
type Publishers []Publisher

func (ps Publishers) Publish(sessionID string, evt model.Event) {
	for _, p := range ps {
		p.Publish(sessionID, evt)
	}
}

// Config bounds and paces a session.
type Config struct {
	Resolution        int
	TickInterval      time.Duration
	ProgressPerSecond float64
	MaxAgents         int
	MaxOrders         int
}

// Session is one simulation. All methods are safe for concurrent use.
type Session struct {
	id      string
	city    string
	hub     model.Hub
	cfg     Config
	pub     Publisher
	log     logrus.FieldLogger
	created time.Time

	mu       sync.Mutex
	orders   []model.Order
	agents   int
	strategy opt.Strategy
	routes   []model.Route
	build    *opt.Metrics
	player   *playback.Player
	cancel   context.CancelFunc
	closed   bool
}

// New returns an idle session for city with its hub at hub.
func New(id, city string, hub model.Hub, cfg Config, pub Publisher, log logrus.FieldLogger) (*Session, error) {
	if cfg.Resolution < 1 || cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("new session: resolution %d, tick %v: %w", cfg.Resolution, cfg.TickInterval, model.ErrInvalidArgument)
	}
	player, err := playback.NewPlayer(cfg.ProgressPerSecond)
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{
		id:       id,
		city:     city,
		hub:      hub,
		cfg:      cfg,
		pub:      pub,
		log:      log.WithFields(logrus.Fields{"session_id": id, "city": city}),
		created:  time.Now().UTC(),
		strategy: opt.DefaultStrategy,
		player:   player,
	}, nil
}

func (s *Session) ID() string           { return s.id }
func (s *Session) City() string         { return s.city }
func (s *Session) Hub() model.Hub       { return s.hub }
func (s *Session) CreatedAt() time.Time { return s.created }

func (s *Session) publish(events ...model.Event) {
	if s.pub == nil {
		return
	}
	for _, e := range events {
		s.pub.Publish(s.id, e)
	}
}

func (s *Session) checkOpen() error {
	if s.closed {
		return fmt.Errorf("session %s closed: %w", s.id, model.ErrNotFound)
	}
	return nil
}

// SetOrders replaces the order set. Any built routes are discarded.
func (s *Session) SetOrders(in []model.Order) error {
	if err := ValidateOrders(in, s.cfg.MaxOrders); err != nil {
		return fmt.Errorf("set orders: %w", err)
	}
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	cleared := s.resetRoutesLocked()
	s.orders = append([]model.Order(nil), in...)
	evs := []model.Event{{Type: model.EventOrdersUpdated, Data: map[string]any{"count": len(in), "orders": s.orders}}}
	if cleared {
		evs = append(evs, model.Event{Type: model.EventRoutesCleared, Data: map[string]any{}})
	}
	evs = append(evs, s.stateEventLocked())
	s.mu.Unlock()

	s.log.WithField("orders", len(in)).Info("orders updated")
	s.publish(evs...)
	return nil
}

// ValidateOrders checks an order set: at most maxOrders entries (0 means no
// limit), non-empty unique ids and valid locations.
func ValidateOrders(in []model.Order, maxOrders int) error {
	if maxOrders > 0 && len(in) > maxOrders {
		return fmt.Errorf("orders: %d exceeds limit %d: %w", len(in), maxOrders, model.ErrInvalidArgument)
	}
	seen := make(map[string]struct{}, len(in))
	for i, o := range in {
		if o.ID == "" {
			return fmt.Errorf("orders[%d]: id required: %w", i, model.ErrInvalidArgument)
		}
		if _, dup := seen[o.ID]; dup {
			return fmt.Errorf("orders[%d]: duplicate id %q: %w", i, o.ID, model.ErrInvalidArgument)
		}
		seen[o.ID] = struct{}{}
		if !o.Location.Valid() {
			return fmt.Errorf("orders[%d]: location out of range: %w", i, model.ErrInvalidArgument)
		}
	}
	return nil
}

// GenerateOrders loads count orders for the session's city from src and
// installs them with SetOrders.
func (s *Session) GenerateOrders(ctx context.Context, src orders.Source, count int) ([]model.Order, error) {
	if count < 1 || (s.cfg.MaxOrders > 0 && count > s.cfg.MaxOrders) {
		return nil, fmt.Errorf("generate orders: count %d: %w", count, model.ErrInvalidArgument)
	}
	out, err := src.LoadOrders(ctx, s.city, count)
	if err != nil {
		return nil, err
	}
	if err := s.SetOrders(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Orders returns a copy of the current order set.
func (s *Session) Orders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Order(nil), s.orders...)
}

// BuildRoutes partitions and sequences the current orders, prepares
// playback and leaves the player Ready.
func (s *Session) BuildRoutes(agentCount int, strategy opt.Strategy) ([]model.Route, error) {
	if s.cfg.MaxAgents > 0 && agentCount > s.cfg.MaxAgents {
		return nil, fmt.Errorf("build routes: %d agents exceeds limit %d: %w", agentCount, s.cfg.MaxAgents, model.ErrInvalidArgument)
	}
	if strategy == "" {
		strategy = opt.DefaultStrategy
	}

	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	routes, m, err := opt.BuildWithMetrics(s.hub, s.orders, agentCount, strategy)
	if err != nil {
		s.mu.Unlock()
		metrics.RouteBuilds.WithLabelValues(string(strategy), "error").Inc()
		return nil, err
	}
	st, err := playback.Prepare(routes, s.cfg.Resolution)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.resetRoutesLocked()
	s.routes = routes
	s.agents = agentCount
	s.strategy = strategy
	s.build = &m
	s.player.Load(st)
	summary, _ := s.summaryLocked()
	evs := []model.Event{
		{Type: model.EventRoutesBuilt, Data: map[string]any{"routes": routes, "stats": summary}},
		s.stateEventLocked(),
	}
	s.mu.Unlock()

	opt.RecordMetrics(s.id, strategy, m)
	metrics.RouteBuilds.WithLabelValues(string(strategy), "ok").Inc()
	metrics.RouteBuildDuration.WithLabelValues(string(strategy)).Observe(m.Duration.Seconds())
	s.log.WithFields(logrus.Fields{
		"agents":      agentCount,
		"routes":      len(routes),
		"strategy":    strategy,
		"distance_km": m.TotalDistanceKm,
		"took":        m.Duration,
	}).Info("routes built")
	s.publish(evs...)
	return routes, nil
}

// Routes returns the built routes, nil when none.
func (s *Session) Routes() []model.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.routes
}

// ClearRoutes drops routes and playback state.
func (s *Session) ClearRoutes() error {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	if !s.resetRoutesLocked() {
		s.mu.Unlock()
		return nil
	}
	evs := []model.Event{{Type: model.EventRoutesCleared, Data: map[string]any{}}, s.stateEventLocked()}
	s.mu.Unlock()
	s.log.Info("routes cleared")
	s.publish(evs...)
	return nil
}

// resetRoutesLocked stops playback and drops routes. It reports whether
// there was anything to clear.
func (s *Session) resetRoutesLocked() bool {
	s.stopLoopLocked()
	had := s.routes != nil
	s.routes = nil
	s.agents = 0
	s.build = nil
	s.player.Clear()
	return had
}

// Stats summarises the built routes.
func (s *Session) Stats() (stats.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

func (s *Session) summaryLocked() (stats.Summary, error) {
	if s.routes == nil {
		return stats.Summary{}, ErrNoRoutes
	}
	sum, err := stats.Summarize(s.routes, s.orders, s.agents)
	if err != nil {
		return stats.Summary{}, err
	}
	if s.build != nil {
		sum.ComputationTime = s.build.Duration
	}
	return sum, nil
}

// Close stops playback and rejects further mutations.
func (s *Session) Close() {
	s.mu.Lock()
	s.stopLoopLocked()
	s.closed = true
	s.mu.Unlock()
	opt.ForgetMetrics(s.id)
	s.log.Info("session closed")
}
