package sim

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lastmile/internal/geo"
	"lastmile/internal/model"
	"lastmile/internal/opt"
	"lastmile/internal/orders"
	"lastmile/internal/playback"
)

type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Publish(_ string, evt model.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *recorder) ofType(typ string) []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

var testHub = model.NewHub(geo.Coordinate{Lat: 12.9716, Lng: 77.5946})

func testOrders(n int) []model.Order {
	out := make([]model.Order, n)
	for i := range out {
		out[i] = model.Order{
			ID:       fmt.Sprintf("loc-%d", i),
			Location: geo.Coordinate{Lat: 12.95 + float64(i%5)*0.01, Lng: 77.57 + float64(i/5)*0.01},
		}
	}
	return out
}

func newSession(t *testing.T, cfg Config) (*Session, *recorder, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	rec := &recorder{}
	s, err := New("s-1", "bangalore", testHub, cfg, rec, log)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, rec, hook
}

func fastConfig() Config {
	return Config{Resolution: 5, TickInterval: 2 * time.Millisecond, ProgressPerSecond: 1000, MaxAgents: 12, MaxOrders: 100}
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New("x", "bangalore", testHub, Config{Resolution: 0, TickInterval: time.Millisecond, ProgressPerSecond: 1}, nil, nil)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
	_, err = New("x", "bangalore", testHub, Config{Resolution: 5, TickInterval: time.Millisecond}, nil, nil)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestSessionBuildRoutes(t *testing.T) {
	s, rec, hook := newSession(t, fastConfig())

	_, err := s.Stats()
	assert.ErrorIs(t, err, ErrNoRoutes)

	require.NoError(t, s.SetOrders(testOrders(10)))
	routes, err := s.BuildRoutes(3, opt.StrategyNearestNeighbor)
	require.NoError(t, err)
	assert.Len(t, routes, 3)

	sum, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 10, sum.Orders)
	assert.Equal(t, 3, sum.ActiveAgents)
	assert.InDelta(t, 10.0/3, sum.AverageStopsPerAgent, 1e-12)

	v := s.View()
	assert.Equal(t, playback.PhaseReady, v.Playback.Phase)
	assert.Equal(t, 10, v.Orders)
	require.NotNil(t, v.Stats)

	assert.Len(t, rec.ofType(model.EventOrdersUpdated), 1)
	assert.Len(t, rec.ofType(model.EventRoutesBuilt), 1)
	assert.Contains(t, opt.GetMetrics("s-1"), opt.StrategyNearestNeighbor)

	var built bool
	for _, e := range hook.AllEntries() {
		if e.Message == "routes built" {
			built = true
			assert.Equal(t, "s-1", e.Data["session_id"])
		}
	}
	assert.True(t, built)
}

func TestSessionBuildRoutesErrors(t *testing.T) {
	s, _, _ := newSession(t, fastConfig())
	require.NoError(t, s.SetOrders(testOrders(4)))

	_, err := s.BuildRoutes(0, opt.StrategyNearestNeighbor)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
	_, err = s.BuildRoutes(13, opt.StrategyNearestNeighbor)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
	_, err = s.BuildRoutes(2, opt.Strategy("bogus"))
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestSessionEmptyOrdersBuildNoRoutes(t *testing.T) {
	s, _, _ := newSession(t, fastConfig())
	routes, err := s.BuildRoutes(3, "")
	require.NoError(t, err)
	assert.Empty(t, routes)

	sum, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0.0, sum.TotalDistanceKm)
}

func TestSessionSetOrdersValidation(t *testing.T) {
	s, _, _ := newSession(t, fastConfig())

	dup := testOrders(2)
	dup[1].ID = dup[0].ID
	assert.ErrorIs(t, s.SetOrders(dup), model.ErrInvalidArgument)

	bad := testOrders(1)
	bad[0].Location.Lat = 120
	assert.ErrorIs(t, s.SetOrders(bad), model.ErrInvalidArgument)

	assert.ErrorIs(t, s.SetOrders(testOrders(101)), model.ErrInvalidArgument)
}

func TestSessionSetOrdersClearsRoutes(t *testing.T) {
	s, rec, _ := newSession(t, fastConfig())
	require.NoError(t, s.SetOrders(testOrders(6)))
	_, err := s.BuildRoutes(2, "")
	require.NoError(t, err)

	require.NoError(t, s.SetOrders(testOrders(3)))
	assert.Nil(t, s.Routes())
	assert.Equal(t, playback.PhaseIdle, s.Status().Phase)
	assert.Len(t, rec.ofType(model.EventRoutesCleared), 1)
}

func TestSessionPlaybackRunsToCompletion(t *testing.T) {
	s, rec, _ := newSession(t, fastConfig())
	require.NoError(t, s.SetOrders(testOrders(9)))
	_, err := s.BuildRoutes(3, "")
	require.NoError(t, err)

	st, err := s.Play()
	require.NoError(t, err)
	assert.Equal(t, playback.PhasePlaying, st.Phase)

	require.Eventually(t, func() bool {
		return s.Status().Phase == playback.PhaseComplete
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, 100.0, s.Status().Progress)

	seen := map[string]int{}
	for _, e := range rec.ofType(model.EventDeliveryCompleted) {
		seen[e.Data["orderId"].(string)]++
	}
	assert.Len(t, seen, 9)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
	assert.NotEmpty(t, rec.ofType(model.EventPlaybackFrame))

	f, err := s.Frame()
	require.NoError(t, err)
	for _, a := range f.Agents {
		assert.Equal(t, testHub.Location, a.Position)
	}

	_, err = s.Play()
	assert.ErrorIs(t, err, playback.ErrInvalidTransition)
	st, err = s.Restart()
	require.NoError(t, err)
	assert.Equal(t, playback.PhaseReady, st.Phase)
	assert.Equal(t, 0.0, st.Progress)
}

func TestSessionPauseStopsLoop(t *testing.T) {
	cfg := fastConfig()
	cfg.ProgressPerSecond = 5
	s, _, _ := newSession(t, cfg)
	require.NoError(t, s.SetOrders(testOrders(4)))
	_, err := s.BuildRoutes(2, "")
	require.NoError(t, err)

	_, err = s.Play()
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Status().Progress > 0 }, 2*time.Second, 2*time.Millisecond)

	st, err := s.Pause()
	require.NoError(t, err)
	assert.Equal(t, playback.PhasePaused, st.Phase)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, st.Progress, s.Status().Progress)

	st, err = s.Toggle()
	require.NoError(t, err)
	assert.Equal(t, playback.PhasePlaying, st.Phase)
}

func TestSessionSeekAndFrameAt(t *testing.T) {
	s, rec, _ := newSession(t, fastConfig())
	_, err := s.FrameAt(10)
	assert.ErrorIs(t, err, ErrNoRoutes)

	require.NoError(t, s.SetOrders(testOrders(5)))
	_, err = s.BuildRoutes(1, "")
	require.NoError(t, err)

	st, err := s.Seek(50)
	require.NoError(t, err)
	assert.Equal(t, playback.PhasePaused, st.Phase)
	assert.NotEmpty(t, rec.ofType(model.EventPlaybackFrame))

	a, err := s.FrameAt(25)
	require.NoError(t, err)
	b, err := s.FrameAt(25)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 50.0, s.Status().Progress)

	_, err = s.Seek(150)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
	_, err = s.SetSpeed(-1)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
	st, err = s.SetSpeed(2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, st.Speed)
}

func TestSessionUpdate(t *testing.T) {
	s, _, _ := newSession(t, fastConfig())
	fp := func(v float64) *float64 { return &v }

	// seek is rejected while idle; the speed must not change either
	_, err := s.Update(fp(40), fp(3))
	assert.ErrorIs(t, err, playback.ErrInvalidTransition)
	assert.Equal(t, 1.0, s.Status().Speed)

	require.NoError(t, s.SetOrders(testOrders(5)))
	_, err = s.BuildRoutes(2, "")
	require.NoError(t, err)

	_, err = s.Update(fp(150), fp(4))
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
	_, err = s.Update(fp(30), fp(0))
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
	assert.Equal(t, Status{Phase: playback.PhaseReady, Progress: 0, Speed: 1}, s.Status())

	st, err := s.Update(fp(40), fp(3))
	require.NoError(t, err)
	assert.Equal(t, Status{Phase: playback.PhasePaused, Progress: 40, Speed: 3}, st)

	st, err = s.Update(nil, fp(0.5))
	require.NoError(t, err)
	assert.Equal(t, 0.5, st.Speed)
	assert.Equal(t, 40.0, st.Progress)
}

func TestValidateOrders(t *testing.T) {
	require.NoError(t, ValidateOrders(testOrders(3), 3))
	require.NoError(t, ValidateOrders(testOrders(200), 0))
	assert.ErrorIs(t, ValidateOrders(testOrders(4), 3), model.ErrInvalidArgument)

	noID := testOrders(2)
	noID[1].ID = ""
	assert.ErrorIs(t, ValidateOrders(noID, 0), model.ErrInvalidArgument)

	badLng := testOrders(2)
	badLng[0].Location.Lng = 200
	assert.ErrorIs(t, ValidateOrders(badLng, 0), model.ErrInvalidArgument)
}

func TestSessionAgent(t *testing.T) {
	s, _, _ := newSession(t, fastConfig())
	require.NoError(t, s.SetOrders(testOrders(6)))
	_, err := s.BuildRoutes(2, "")
	require.NoError(t, err)

	d, err := s.Agent(1)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Orders)
	require.Len(t, d.Stops, 3)
	for i, st := range d.Stops {
		assert.Equal(t, i+1, st.Sequence)
		assert.Equal(t, playback.StatusPending, st.Status)
	}
	require.NotNil(t, d.Position)
	assert.Equal(t, testHub.Location, d.Position.Position)

	_, err = s.Seek(100)
	require.NoError(t, err)
	d, err = s.Agent(1)
	require.NoError(t, err)
	for _, st := range d.Stops {
		assert.Equal(t, playback.StatusDelivered, st.Status)
	}

	_, err = s.Agent(5)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSessionGenerateOrders(t *testing.T) {
	s, _, _ := newSession(t, fastConfig())
	cat, err := orders.NewCatalog(orders.DefaultCities())
	require.NoError(t, err)
	gen := orders.NewGenerator(cat, 3, 0)

	got, err := s.GenerateOrders(context.Background(), gen, 20)
	require.NoError(t, err)
	assert.Len(t, got, 20)
	assert.Len(t, s.Orders(), 20)

	_, err = s.GenerateOrders(context.Background(), gen, 0)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestSessionClosed(t *testing.T) {
	s, _, _ := newSession(t, fastConfig())
	s.Close()
	assert.ErrorIs(t, s.SetOrders(testOrders(1)), model.ErrNotFound)
	_, err := s.BuildRoutes(1, "")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = s.Play()
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSessionClearRoutes(t *testing.T) {
	s, rec, _ := newSession(t, fastConfig())
	require.NoError(t, s.ClearRoutes())
	assert.Empty(t, rec.ofType(model.EventRoutesCleared))

	require.NoError(t, s.SetOrders(testOrders(3)))
	_, err := s.BuildRoutes(1, "")
	require.NoError(t, err)
	_, err = s.Play()
	require.NoError(t, err)

	require.NoError(t, s.ClearRoutes())
	assert.Equal(t, playback.PhaseIdle, s.Status().Phase)
	assert.Len(t, rec.ofType(model.EventRoutesCleared), 1)
}
