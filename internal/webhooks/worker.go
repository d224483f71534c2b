package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"lastmile/internal/metrics"
)

type Worker struct {
	Queue       *Queue
	URL         string
	Secret      string
	HTTP        *http.Client
	Interval    time.Duration
	MaxAttempts int
	// DeliveryTimeout bounds each delivery attempt on its own.
	DeliveryTimeout time.Duration
	Log             logrus.FieldLogger
	Stop        chan struct{}

	now func() time.Time
}

func NewWorker(q *Queue, url, secret string, maxAttempts int, interval time.Duration, log logrus.FieldLogger) *Worker {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Worker{
		Queue:           q,
		URL:             url,
		Secret:          secret,
		HTTP:            &http.Client{Timeout: 5 * time.Second},
		Interval:        interval,
		MaxAttempts:     maxAttempts,
		DeliveryTimeout: 10 * time.Second,
		Log:             log,
		Stop:            make(chan struct{}),
		now:             time.Now,
	}
}

func (w *Worker) Start() {
	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.Stop:
				return
			case <-ticker.C:
				w.processOnce()
			}
		}
	}()
}

func (w *Worker) processOnce() {
	for _, d := range w.Queue.Due(w.now(), 50) {
		ctx, cancel := context.WithTimeout(context.Background(), w.DeliveryTimeout)
		w.deliver(ctx, d)
		cancel()
	}
}

func (w *Worker) deliver(ctx context.Context, d Delivery) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(d.Payload))
	if err != nil {
		w.Log.WithError(err).Error("webhook request build failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEventType, d.EventType)
	if w.Secret != "" {
		ts := w.now().Unix()
		req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(HeaderSignature, SignHMAC(w.Secret, ts, d.Payload))
	}

	start := time.Now()
	resp, err := w.HTTP.Do(req)
	latency := time.Since(start)
	code := 0
	if err == nil {
		code = resp.StatusCode
		_ = resp.Body.Close()
	}
	success := err == nil && code >= 200 && code < 300
	status := "success"
	if !success {
		status = "failure"
	}
	metrics.WebhookDeliveries.WithLabelValues(d.EventType, status).Inc()
	metrics.WebhookLatency.WithLabelValues(d.EventType, status).Observe(float64(latency.Milliseconds()))
	if success {
		return
	}

	d.Attempts++
	log := w.Log.WithFields(logrus.Fields{
		"event_id":   d.ID,
		"event_type": d.EventType,
		"session_id": d.SessionID,
		"attempts":   d.Attempts,
		"code":       code,
	})
	if err != nil {
		log = log.WithError(err)
	}
	if d.Attempts >= w.MaxAttempts {
		log.Warn("webhook delivery abandoned")
		return
	}
	d.NextAttemptAt = w.now().Add(nextBackoff(d.Attempts))
	w.Queue.Retry(d)
	log.Info("webhook delivery failed, retry scheduled")
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
