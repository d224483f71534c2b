// Package webhooks forwards simulation events to an external HTTP endpoint.
//
// Publisher queues selected events; Worker drains the queue on a ticker,
// signs each body and retries failures with exponential backoff.
package webhooks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"lastmile/internal/model"
)

// DefaultEvents are forwarded when no event filter is configured. Frames are
// excluded since they fire every tick.
var DefaultEvents = []string{
	model.EventRoutesBuilt,
	model.EventRoutesCleared,
	model.EventPlaybackState,
	model.EventDeliveryCompleted,
}

// Publisher enqueues session events for webhook delivery.
type Publisher struct {
	Queue  *Queue
	events map[string]struct{}
	log    logrus.FieldLogger
}

func NewPublisher(q *Queue, events []string, log logrus.FieldLogger) *Publisher {
	if len(events) == 0 {
		events = DefaultEvents
	}
	set := make(map[string]struct{}, len(events))
	for _, e := range events {
		set[e] = struct{}{}
	}
	return &Publisher{Queue: q, events: set, log: log}
}

// Publish implements sim.Publisher.
func (p *Publisher) Publish(sessionID string, evt model.Event) {
	if _, ok := p.events[evt.Type]; !ok {
		return
	}
	id := "evt_" + uuid.NewString()
	body, err := json.Marshal(map[string]any{
		"id":        id,
		"type":      evt.Type,
		"sessionId": sessionID,
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
		"data":      evt.Data,
	})
	if err != nil {
		p.log.WithError(err).WithField("event_type", evt.Type).Warn("webhook payload encode failed")
		return
	}
	if !p.Queue.Enqueue(Delivery{ID: id, SessionID: sessionID, EventType: evt.Type, Payload: body}) {
		p.log.WithField("event_type", evt.Type).Warn("webhook queue full, event dropped")
	}
}
