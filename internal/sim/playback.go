package sim

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"lastmile/internal/metrics"
	"lastmile/internal/model"
	"lastmile/internal/playback"
)

// Status is the playback cursor of a session.
type Status struct {
	Phase    playback.Phase `json:"phase"`
	Progress float64        `json:"progress"`
	Speed    float64        `json:"speed"`
}

// Frame is the agent snapshots at one progress value.
type Frame struct {
	Status
	Agents []playback.AgentSnapshot `json:"agents"`
}

func (s *Session) statusLocked() Status {
	return Status{Phase: s.player.Phase(), Progress: s.player.Progress(), Speed: s.player.Speed()}
}

func (s *Session) stateEventLocked() model.Event {
	st := s.statusLocked()
	return model.Event{Type: model.EventPlaybackState, Data: map[string]any{
		"phase":    st.Phase.String(),
		"progress": st.Progress,
		"speed":    st.Speed,
	}}
}

func frameEvent(f Frame) model.Event {
	return model.Event{Type: model.EventPlaybackFrame, Data: map[string]any{
		"phase":    f.Phase.String(),
		"progress": f.Progress,
		"speed":    f.Speed,
		"agents":   f.Agents,
	}}
}

func deliveryEvent(d playback.DeliveryEvent, progress float64) model.Event {
	return model.Event{Type: model.EventDeliveryCompleted, Data: map[string]any{
		"agent":     d.Agent,
		"stopIndex": d.StopIndex,
		"orderId":   d.OrderID,
		"position":  d.Position,
		"progress":  progress,
	}}
}

func (s *Session) currentFrameLocked() (Frame, error) {
	agents, err := s.player.Frame()
	if err != nil {
		return Frame{}, err
	}
	return Frame{Status: s.statusLocked(), Agents: agents}, nil
}

// control applies op to the player and publishes the new state and frame.
func (s *Session) control(name string, op func() error) (Status, error) {
	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return Status{}, err
	}
	if err := op(); err != nil {
		st := s.statusLocked()
		s.mu.Unlock()
		return st, err
	}
	if s.player.Phase() == playback.PhasePlaying {
		s.startLoopLocked()
	} else {
		s.stopLoopLocked()
	}
	st := s.statusLocked()
	evs := []model.Event{s.stateEventLocked()}
	if f, err := s.currentFrameLocked(); err == nil {
		evs = append(evs, frameEvent(f))
	}
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"op": name, "phase": st.Phase, "progress": st.Progress}).Debug("playback control")
	s.publish(evs...)
	return st, nil
}

// Play starts or resumes playback.
func (s *Session) Play() (Status, error) { return s.control("play", s.player.Play) }

// Pause freezes playback before the next tick.
func (s *Session) Pause() (Status, error) { return s.control("pause", s.player.Pause) }

// Toggle switches between playing and paused.
func (s *Session) Toggle() (Status, error) { return s.control("toggle", s.player.Toggle) }

// Restart rewinds to progress 0.
func (s *Session) Restart() (Status, error) { return s.control("restart", s.player.Restart) }

// Seek moves the cursor to progress.
func (s *Session) Seek(progress float64) (Status, error) {
	return s.control("seek", func() error { return s.player.Seek(progress) })
}

// SetSpeed changes the speed multiplier. A running loop picks it up on its
// next tick.
func (s *Session) SetSpeed(speed float64) (Status, error) {
	return s.control("speed", func() error { return s.player.SetSpeed(speed) })
}

// Update applies an optional seek and speed change as one step: both are
// validated before either takes effect.
func (s *Session) Update(progress, speed *float64) (Status, error) {
	if progress == nil && speed == nil {
		return s.Status(), nil
	}
	if speed != nil {
		if err := playback.ValidateSpeed(*speed); err != nil {
			return s.Status(), err
		}
	}
	if progress != nil {
		if err := playback.ValidateProgress(*progress); err != nil {
			return s.Status(), err
		}
	}
	return s.control("update", func() error {
		if progress != nil {
			if err := s.player.Seek(*progress); err != nil {
				return err
			}
		}
		if speed != nil {
			return s.player.SetSpeed(*speed)
		}
		return nil
	})
}

// Status returns the playback cursor.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// Frame returns the snapshots at the current progress.
func (s *Session) Frame() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.routes == nil {
		return Frame{}, ErrNoRoutes
	}
	return s.currentFrameLocked()
}

// FrameAt returns the snapshots at progress without moving the cursor.
func (s *Session) FrameAt(progress float64) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.routes == nil {
		return Frame{}, ErrNoRoutes
	}
	agents, err := playback.SetProgress(s.player.State(), progress)
	if err != nil {
		return Frame{}, err
	}
	st := s.statusLocked()
	st.Progress = progress
	return Frame{Status: st, Agents: agents}, nil
}

func (s *Session) startLoopLocked() {
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	metrics.ActivePlaybacks.Inc()
	go s.run(ctx)
}

func (s *Session) stopLoopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	metrics.ActivePlaybacks.Dec()
}

func (s *Session) run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.tick(ctx) {
				return
			}
		}
	}
}

// tick advances the player by one tick interval and publishes the frame
// plus every delivery passed during the step.
func (s *Session) tick(ctx context.Context) bool {
	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	step, err := s.player.Advance(s.cfg.TickInterval)
	if err != nil {
		s.stopLoopLocked()
		s.mu.Unlock()
		s.log.WithError(err).Warn("playback tick rejected")
		return false
	}
	var evs []model.Event
	if f, err := s.currentFrameLocked(); err == nil {
		evs = append(evs, frameEvent(f))
	}
	deliveries, _ := s.player.Deliveries(step)
	for _, d := range deliveries {
		evs = append(evs, deliveryEvent(d, step.To))
	}
	done := step.Phase == playback.PhaseComplete
	if done {
		s.stopLoopLocked()
		evs = append(evs, s.stateEventLocked())
	}
	s.mu.Unlock()

	metrics.PlaybackTicks.Inc()
	metrics.DeliveriesCompleted.Add(float64(len(deliveries)))
	s.publish(evs...)
	if done {
		s.log.Info("playback complete")
	}
	return !done
}
