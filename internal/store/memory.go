package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"lastmile/internal/metrics"
	"lastmile/internal/model"
	"lastmile/internal/sim"
)

// Memory keeps sessions in process. Nothing is persisted.
type Memory struct {
	cfg   sim.Config
	pub   sim.Publisher
	log   logrus.FieldLogger
	limit int

	mu       sync.Mutex
	sessions map[string]*sim.Session
}

// NewMemory returns an empty registry. limit caps open sessions; 0 means
// unlimited.
func NewMemory(cfg sim.Config, pub sim.Publisher, log logrus.FieldLogger, limit int) *Memory {
	return &Memory{cfg: cfg, pub: pub, log: log, limit: limit, sessions: map[string]*sim.Session{}}
}

func (m *Memory) Create(_ context.Context, city string, hub model.Hub) (*sim.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limit > 0 && len(m.sessions) >= m.limit {
		return nil, fmt.Errorf("create session: %d sessions open: %w", len(m.sessions), model.ErrInvalidArgument)
	}
	id := uuid.New().String()
	s, err := sim.New(id, city, hub, m.cfg, m.pub, m.log)
	if err != nil {
		return nil, err
	}
	m.sessions[id] = s
	metrics.ActiveSessions.Inc()
	return s, nil
}

func (m *Memory) Get(_ context.Context, id string) (*sim.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return s, nil
}

// List returns sessions oldest first.
func (m *Memory) List(_ context.Context) ([]*sim.Session, error) {
	m.mu.Lock()
	out := make([]*sim.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].ID() < out[j].ID()
		}
		return out[i].CreatedAt().Before(out[j].CreatedAt())
	})
	return out, nil
}

// Delete closes and forgets a session.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	s.Close()
	metrics.ActiveSessions.Dec()
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close closes every session.
func (m *Memory) Close() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = map[string]*sim.Session{}
	m.mu.Unlock()
	for _, s := range all {
		s.Close()
		metrics.ActiveSessions.Dec()
	}
}
