package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"lastmile/internal/config"
	"lastmile/internal/metrics"
	"lastmile/internal/orders"
	"lastmile/internal/store"
)

// Server holds the handler dependencies.
type Server struct {
	Sessions store.Sessions
	Cities   *orders.Catalog
	Orders   orders.Source // synthetic orders
	Seeds    orders.Source // database orders, nil when no database is configured
	Broker   EventBroker
	Config   config.Config
	Log      logrus.FieldLogger

	// Checks run on /readyz, keyed by dependency name.
	Checks map[string]func(context.Context) error
}

// NewServer wires a server. Seeds and Checks are optional and may be set
// afterwards.
func NewServer(cfg config.Config, sessions store.Sessions, cities *orders.Catalog, gen orders.Source, broker EventBroker, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		Sessions: sessions,
		Cities:   cities,
		Orders:   gen,
		Broker:   broker,
		Config:   cfg,
		Log:      log,
		Checks:   map[string]func(context.Context) error{},
	}
}

// Router returns the HTTP handler of the service.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logMiddleware)
	r.Use(metricsMiddleware)
	if s.Config.RateLimit.RPS > 0 {
		r.Use(rateLimitMiddleware(s.Config.RateLimit.RPS, s.Config.RateLimit.Burst))
	}
	if len(s.Config.Server.AllowOrigins) > 0 {
		r.Use(corsMiddleware(s.Config.Server.AllowOrigins))
	}

	r.Get("/healthz", s.HealthHandler)
	r.Get("/readyz", s.ReadyHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/debug/info", s.DebugJSON)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/cities", s.CitiesHandler)
		r.Get("/config", s.ConfigHandler)
		r.Post("/plan", s.PlanHandler)
		r.Get("/admin/plan-metrics", s.PlanMetricsHandler)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.CreateSessionHandler)
			r.Get("/", s.ListSessionsHandler)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.GetSessionHandler)
				r.Delete("/", s.DeleteSessionHandler)

				r.Get("/orders", s.ListOrdersHandler)
				r.Post("/orders", s.GenerateOrdersHandler)
				r.Put("/orders", s.SetOrdersHandler)

				r.Get("/routes", s.ListRoutesHandler)
				r.Post("/routes", s.BuildRoutesHandler)
				r.Delete("/routes", s.ClearRoutesHandler)

				r.Get("/stats", s.StatsHandler)
				r.Get("/agents/{agent}", s.AgentHandler)

				r.Get("/playback", s.PlaybackHandler)
				r.Put("/playback", s.UpdatePlaybackHandler)
				r.Post("/playback/{action}", s.PlaybackActionHandler)

				r.Get("/events/stream", s.EventStreamHandler)
				r.Get("/ws", s.WSHandler)
			})
		})
	})
	return r
}

// NewHTTPServer wraps the router with the configured timeouts.
func (s *Server) NewHTTPServer() *http.Server {
	timeout := s.Config.Server.ReadHeaderTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Server{
		Addr:              s.Config.Server.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: timeout,
	}
}
