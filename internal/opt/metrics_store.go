package opt

import "sync"

type key struct {
	Session  string
	Strategy Strategy
}

var (
	mu    sync.Mutex
	store = map[key]Metrics{}
)

// RecordMetrics keeps the latest build metrics for a session and strategy.
func RecordMetrics(session string, strategy Strategy, m Metrics) {
	mu.Lock()
	store[key{Session: session, Strategy: strategy}] = m
	mu.Unlock()
}

// GetMetrics returns the recorded metrics of a session keyed by strategy.
func GetMetrics(session string) map[Strategy]Metrics {
	mu.Lock()
	defer mu.Unlock()
	out := map[Strategy]Metrics{}
	for k, v := range store {
		if k.Session == session {
			out[k.Strategy] = v
		}
	}
	return out
}

// AllMetrics returns every recorded entry grouped by session.
func AllMetrics() map[string]map[Strategy]Metrics {
	mu.Lock()
	defer mu.Unlock()
	out := map[string]map[Strategy]Metrics{}
	for k, v := range store {
		if out[k.Session] == nil {
			out[k.Session] = map[Strategy]Metrics{}
		}
		out[k.Session][k.Strategy] = v
	}
	return out
}

// ForgetMetrics drops everything recorded for a session.
func ForgetMetrics(session string) {
	mu.Lock()
	for k := range store {
		if k.Session == session {
			delete(store, k)
		}
	}
	mu.Unlock()
}
