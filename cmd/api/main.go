package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"lastmile/internal/api"
	"lastmile/internal/buildinfo"
	"lastmile/internal/config"
	"lastmile/internal/logging"
	"lastmile/internal/metrics"
	"lastmile/internal/orders"
	"lastmile/internal/sim"
	"lastmile/internal/store"
	"lastmile/internal/webhooks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log, err := logging.New(cfg.Log, os.Stdout)
	if err != nil {
		logrus.WithError(err).Fatal("init logging")
	}
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server error")
	}
}

func run(cfg config.Config, log *logrus.Logger) error {
	metrics.RegisterDefault()
	checks := map[string]func(context.Context) error{}

	catalog, err := orders.NewCatalog(cfg.Cities)
	if err != nil {
		return err
	}

	var broker api.EventBroker = api.NewBroker()
	if cfg.Redis.URL != "" {
		rb, err := api.NewRedisBroker(cfg.Redis.URL, log)
		if err != nil {
			return err
		}
		defer rb.Close()
		broker = rb
		checks["redis"] = rb.Ping
		log.Info("using redis event broker")
	}

	pubs := sim.Publishers{broker}
	if cfg.Webhook.URL != "" {
		q := webhooks.NewQueue(cfg.Webhook.QueueSize)
		pubs = append(pubs, webhooks.NewPublisher(q, cfg.Webhook.Events, log))
		worker := webhooks.NewWorker(q, cfg.Webhook.URL, cfg.Webhook.Secret, cfg.Webhook.MaxAttempts, cfg.Webhook.Interval, log)
		worker.Start()
		defer close(worker.Stop)
		log.WithField("url", cfg.Webhook.URL).Info("webhook forwarding enabled")
	}

	sessions := store.NewMemory(cfg.SessionConfig(), pubs, log, cfg.Simulation.MaxSessions)
	defer sessions.Close()

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	srv := api.NewServer(cfg, sessions, catalog, orders.NewGenerator(catalog, seed, cfg.Simulation.SpreadDeg), broker, log)

	if cfg.Database.URL != "" {
		pg, err := store.NewPostgres(cfg.Database.URL)
		if err != nil {
			return err
		}
		defer pg.Close()
		srv.Seeds = pg
		checks["postgres"] = pg.Ping
		log.Info("database order source enabled")
	}
	srv.Checks = checks

	httpSrv := srv.NewHTTPServer()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": httpSrv.Addr, "version": buildinfo.Version}).Info("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
