package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"lastmile/internal/geo"
	"lastmile/internal/metrics"
	"lastmile/internal/model"
	"lastmile/internal/opt"
	"lastmile/internal/orders"
	"lastmile/internal/playback"
	"lastmile/internal/sim"
	"lastmile/internal/stats"
)

const (
	sourceGenerator = "generator"
	sourceDatabase  = "database"
)

// HealthHandler handles GET /healthz
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler handles GET /readyz by running every dependency check.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.Checks))
	for name := range s.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	checks := map[string]string{}
	for _, name := range names {
		if err := s.Checks[name](ctx); err != nil {
			s.Log.WithError(err).WithField("check", name).Warn("readiness check failed")
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	state := "ready"
	if status != http.StatusOK {
		state = "unavailable"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": checks})
}

// CitiesHandler handles GET /v1/cities
func (s *Server) CitiesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.Cities.List()})
}

// ConfigHandler handles GET /v1/config
func (s *Server) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	sources := []string{sourceGenerator}
	if s.Seeds != nil {
		sources = append(sources, sourceDatabase)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"playback":     s.Config.Playback,
		"simulation":   s.Config.Simulation,
		"strategies":   opt.Strategies(),
		"orderSources": sources,
	})
}

type planResponse struct {
	Hub        model.Hub                `json:"hub"`
	Routes     []model.Route            `json:"routes"`
	Stats      stats.Summary            `json:"stats"`
	Metrics    opt.Metrics              `json:"metrics"`
	Progress   *float64                 `json:"progress,omitempty"`
	Agents     []playback.AgentSnapshot `json:"agents,omitempty"`
	Deliveries []playback.DeliveryEvent `json:"deliveries,omitempty"`
}

// PlanHandler handles POST /v1/plan. Nothing is stored.
func (s *Server) PlanHandler(w http.ResponseWriter, r *http.Request) {
	var req model.PlanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validatePlanRequest(&req, s.Config.Simulation); err != nil {
		s.writeError(w, r, err)
		return
	}
	hub, err := s.resolveHub(req.City, req.Hub)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	strategy, err := opt.ParseStrategy(req.Strategy)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	routes, m, err := opt.BuildWithMetrics(hub, req.Orders, req.Agents, strategy)
	if err != nil {
		metrics.RouteBuilds.WithLabelValues(string(strategy), "error").Inc()
		s.writeError(w, r, err)
		return
	}
	metrics.RouteBuilds.WithLabelValues(string(strategy), "ok").Inc()
	metrics.RouteBuildDuration.WithLabelValues(string(strategy)).Observe(m.Duration.Seconds())

	summary, err := stats.Summarize(routes, req.Orders, req.Agents)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	summary.ComputationTime = m.Duration
	resp := planResponse{Hub: hub, Routes: routes, Stats: summary, Metrics: m}

	if req.Progress != nil {
		res := req.Resolution
		if res == 0 {
			res = s.Config.Playback.SegmentResolution
		}
		st, err := playback.Prepare(routes, res)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		agents, err := playback.SetProgress(st, *req.Progress)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		delivered, err := playback.DeliveriesBetween(st, 0, *req.Progress)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.Progress, resp.Agents, resp.Deliveries = req.Progress, agents, delivered
	}
	writeJSON(w, http.StatusOK, resp)
}

// PlanMetricsHandler handles GET /v1/admin/plan-metrics[?session=id]
func (s *Server) PlanMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("session"); id != "" {
		writeJSON(w, http.StatusOK, map[string]any{"session": id, "metrics": opt.GetMetrics(id)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": opt.AllMetrics()})
}

// resolveHub places the hub at hub when given, else at the city's centre.
func (s *Server) resolveHub(city string, hub *geo.Coordinate) (model.Hub, error) {
	if hub != nil {
		return model.NewHub(*hub), nil
	}
	return s.Cities.Hub(city)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*sim.Session, bool) {
	sess, err := s.Sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

// CreateSessionHandler handles POST /v1/sessions. The body is optional.
func (s *Server) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req model.CreateSessionRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if err := validateCreateSession(&req, s.Config.Simulation); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.City == "" {
		req.City = s.Config.Simulation.DefaultCity
	}
	city, err := s.Cities.Lookup(req.City)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	strategy, err := opt.ParseStrategy(req.Strategy)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	hub, err := s.resolveHub(city.Key, req.Hub)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	sess, err := s.Sessions.Create(r.Context(), city.Key, hub)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Orders > 0 {
		if _, err := sess.GenerateOrders(r.Context(), s.Orders, req.Orders); err != nil {
			s.discardSession(r, sess.ID())
			s.writeError(w, r, err)
			return
		}
		if req.Agents > 0 {
			if _, err := sess.BuildRoutes(req.Agents, strategy); err != nil {
				s.discardSession(r, sess.ID())
				s.writeError(w, r, err)
				return
			}
		}
	}
	s.Log.WithField("session_id", sess.ID()).WithField("city", city.Key).Info("session created")
	w.Header().Set("Location", "/v1/sessions/"+sess.ID())
	writeJSON(w, http.StatusCreated, sess.View())
}

// discardSession removes a session whose creation failed part way.
func (s *Server) discardSession(r *http.Request, id string) {
	if err := s.Sessions.Delete(r.Context(), id); err != nil {
		s.Log.WithError(err).WithField("session_id", id).Warn("discard session")
	}
}

// ListSessionsHandler handles GET /v1/sessions
func (s *Server) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	all, err := s.Sessions.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]sim.View, 0, len(all))
	for _, sess := range all {
		v := sess.View()
		v.Routes = nil
		items = append(items, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GetSessionHandler handles GET /v1/sessions/{id}
func (s *Server) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// DeleteSessionHandler handles DELETE /v1/sessions/{id}
func (s *Server) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListOrdersHandler handles GET /v1/sessions/{id}/orders
func (s *Server) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": sess.Orders()})
}

// GenerateOrdersHandler handles POST /v1/sessions/{id}/orders. Count defaults
// to the configured order count.
func (s *Server) GenerateOrdersHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req model.GenerateOrdersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	count := s.Config.Simulation.DefaultOrders
	if req.Count != nil {
		count = *req.Count
	}
	if err := validateGenerate(count, req.Source, s.Config.Simulation); err != nil {
		s.writeError(w, r, err)
		return
	}
	var src orders.Source = s.Orders
	if req.Source == sourceDatabase {
		if s.Seeds == nil {
			s.writeError(w, r, invalid("no order database configured"))
			return
		}
		src = s.Seeds
	}
	out, err := sess.GenerateOrders(r.Context(), src, count)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"items": out})
}

// SetOrdersHandler handles PUT /v1/sessions/{id}/orders
func (s *Server) SetOrdersHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req model.SetOrdersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := sim.ValidateOrders(req.Orders, s.Config.Simulation.MaxOrders); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := sess.SetOrders(req.Orders); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": sess.Orders()})
}

// ListRoutesHandler handles GET /v1/sessions/{id}/routes
func (s *Server) ListRoutesHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	routes := sess.Routes()
	if routes == nil {
		s.writeError(w, r, sim.ErrNoRoutes)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": routes})
}

// BuildRoutesHandler handles POST /v1/sessions/{id}/routes. Agents defaults
// to the configured agent count.
func (s *Server) BuildRoutesHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req model.BuildRoutesRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	agents := s.Config.Simulation.DefaultAgents
	if req.Agents != nil {
		agents = *req.Agents
	}
	if err := validateAgents(agents, s.Config.Simulation); err != nil {
		s.writeError(w, r, err)
		return
	}
	strategy, err := opt.ParseStrategy(req.Strategy)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	routes, err := sess.BuildRoutes(agents, strategy)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := sess.Stats()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"items": routes, "stats": summary})
}

// ClearRoutesHandler handles DELETE /v1/sessions/{id}/routes
func (s *Server) ClearRoutesHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.ClearRoutes(); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StatsHandler handles GET /v1/sessions/{id}/stats
func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	summary, err := sess.Stats()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// AgentHandler handles GET /v1/sessions/{id}/agents/{agent}
func (s *Server) AgentHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	agent, err := strconv.Atoi(chi.URLParam(r, "agent"))
	if err != nil {
		s.writeError(w, r, invalid("agent must be an integer"))
		return
	}
	d, err := sess.Agent(agent)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// PlaybackHandler handles GET /v1/sessions/{id}/playback[?progress=p]. With
// progress set it previews that position without moving the cursor.
func (s *Server) PlaybackHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if v := r.URL.Query().Get("progress"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.writeError(w, r, invalid("progress must be a number"))
			return
		}
		f, err := sess.FrameAt(p)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, f)
		return
	}
	f, err := sess.Frame()
	if errors.Is(err, sim.ErrNoRoutes) {
		writeJSON(w, http.StatusOK, sim.Frame{Status: sess.Status(), Agents: []playback.AgentSnapshot{}})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// UpdatePlaybackHandler handles PUT /v1/sessions/{id}/playback
func (s *Server) UpdatePlaybackHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req model.PlaybackUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validatePlaybackUpdate(&req); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := sess.Update(req.Progress, req.Speed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// PlaybackActionHandler handles POST /v1/sessions/{id}/playback/{action}
func (s *Server) PlaybackActionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	op, ok := playbackAction(sess, chi.URLParam(r, "action"))
	if !ok {
		writeProblem(w, http.StatusNotFound, "Not Found", "unknown playback action", r.URL.Path)
		return
	}
	st, err := op()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func playbackAction(sess *sim.Session, action string) (func() (sim.Status, error), bool) {
	switch action {
	case "play":
		return sess.Play, true
	case "pause":
		return sess.Pause, true
	case "toggle":
		return sess.Toggle, true
	case "restart":
		return sess.Restart, true
	}
	return nil, false
}
