package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"lastmile/internal/model"
	"lastmile/internal/sim"
)

const (
	heartbeatInterval = 15 * time.Second
	wsPingInterval    = 20 * time.Second
	wsReadTimeout     = 60 * time.Second
	wsWriteTimeout    = 5 * time.Second
)

func writeSSE(w http.ResponseWriter, evt model.Event) error {
	b, err := json.Marshal(evt.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, b)
	return err
}

func statusEvent(st sim.Status) model.Event {
	return model.Event{Type: model.EventPlaybackState, Data: map[string]any{
		"phase":    st.Phase.String(),
		"progress": st.Progress,
		"speed":    st.Speed,
	}}
}

// EventStreamHandler handles GET /v1/sessions/{id}/events/stream (SSE).
func (s *Server) EventStreamHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming Unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(sess.ID())
	defer s.Broker.Unsubscribe(sess.ID(), ch)

	if err := writeSSE(w, statusEvent(sess.Status())); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := writeSSE(w, evt); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			hb := model.Event{Type: "heartbeat", Data: map[string]any{
				"sessionId": sess.ID(),
				"ts":        time.Now().UTC().Format(time.RFC3339),
			}}
			if err := writeSSE(w, hb); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) upgrader() *websocket.Upgrader {
	origins := s.Config.Server.AllowOrigins
	return &websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(origins) == 0 {
			return true
		}
		for _, o := range origins {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}}
}

// wsConn serialises writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

func wsError(err error) model.Event {
	return model.Event{Type: "error", Data: map[string]any{"message": err.Error()}}
}

// WSHandler handles GET /v1/sessions/{id}/ws. Session events flow out as
// {type, data} messages; clients steer playback with model.ControlMessage.
func (s *Server) WSHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &wsConn{conn: conn}
	log := s.Log.WithFields(logrus.Fields{"session_id": sess.ID(), "remote": r.RemoteAddr})
	log.Debug("ws connected")

	ch := s.Broker.Subscribe(sess.ID())
	done := make(chan struct{})
	var wg sync.WaitGroup
	defer func() {
		close(done)
		s.Broker.Unsubscribe(sess.ID(), ch)
		_ = conn.Close()
		wg.Wait()
		log.Debug("ws disconnected")
	}()

	if err := c.send(statusEvent(sess.Status())); err != nil {
		return
	}
	if f, err := sess.Frame(); err == nil {
		_ = c.send(model.Event{Type: model.EventPlaybackFrame, Data: map[string]any{
			"phase":    f.Phase.String(),
			"progress": f.Progress,
			"speed":    f.Speed,
			"agents":   f.Agents,
		}})
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if err := c.send(evt); err != nil {
					return
				}
			case <-ticker.C:
				if err := c.ping(); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadLimit(maxBodyBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})
	for {
		var msg model.ControlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if msg.Type == "ping" {
			_ = c.send(model.Event{Type: "pong", Data: map[string]any{}})
			continue
		}
		if _, err := control(sess, msg); err != nil {
			_ = c.send(wsError(err))
		}
	}
}

// control applies a WebSocket control message. The resulting state reaches
// the client through the broker.
func control(sess *sim.Session, msg model.ControlMessage) (sim.Status, error) {
	switch msg.Type {
	case "seek":
		if msg.Progress == nil {
			return sim.Status{}, invalid("seek: progress required")
		}
		return sess.Seek(*msg.Progress)
	case "speed":
		if msg.Speed == nil {
			return sim.Status{}, invalid("speed: speed required")
		}
		return sess.SetSpeed(*msg.Speed)
	}
	if op, ok := playbackAction(sess, msg.Type); ok {
		return op()
	}
	return sim.Status{}, invalid("unknown message type %q", msg.Type)
}
