package playback

import (
	"errors"
	"fmt"
	"math"
	"time"

	"lastmile/internal/model"
)

// ErrInvalidTransition is returned when an operation is not allowed in the
// player's current phase.
var ErrInvalidTransition = errors.New("invalid playback transition")

// Phase is the playback lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseReady
	PhasePlaying
	PhasePaused
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseReady:
		return "ready"
	case PhasePlaying:
		return "playing"
	case PhasePaused:
		return "paused"
	case PhaseComplete:
		return "complete"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Step is the outcome of one Advance call.
type Step struct {
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Phase Phase   `json:"phase"`
}

// Player owns a prepared State and the progress cursor.
// It is not safe for concurrent use; callers serialise access.
type Player struct {
	state    State
	phase    Phase
	progress float64
	speed    float64
	rate     float64 // progress points per second at speed 1
}

// NewPlayer returns an idle player advancing rate progress points per
// second at speed 1.
func NewPlayer(rate float64) (*Player, error) {
	if !positive(rate) {
		return nil, fmt.Errorf("new player: rate %v: %w", rate, model.ErrInvalidArgument)
	}
	return &Player{rate: rate, speed: 1}, nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ValidateSpeed rejects speed multipliers that are not finite and positive.
func ValidateSpeed(speed float64) error {
	if !positive(speed) {
		return fmt.Errorf("speed %v: %w", speed, model.ErrInvalidArgument)
	}
	return nil
}

func (p *Player) Phase() Phase      { return p.phase }
func (p *Player) Progress() float64 { return p.progress }
func (p *Player) Speed() float64    { return p.speed }
func (p *Player) State() State      { return p.state }

// Load installs a freshly prepared state and rewinds to Ready.
func (p *Player) Load(st State) {
	p.state = st
	p.progress = 0
	p.phase = PhaseReady
}

// Clear drops the state and returns to Idle.
func (p *Player) Clear() {
	p.state = State{}
	p.progress = 0
	p.phase = PhaseIdle
}

func (p *Player) transitionErr(op string) error {
	return fmt.Errorf("%s while %s: %w", op, p.phase, ErrInvalidTransition)
}

// Play starts or resumes playback. Playing again is a no-op.
func (p *Player) Play() error {
	switch p.phase {
	case PhaseReady, PhasePaused:
		p.phase = PhasePlaying
		return nil
	case PhasePlaying:
		return nil
	}
	return p.transitionErr("play")
}

// Pause freezes progress. Pausing again is a no-op.
func (p *Player) Pause() error {
	switch p.phase {
	case PhasePlaying:
		p.phase = PhasePaused
		return nil
	case PhasePaused:
		return nil
	}
	return p.transitionErr("pause")
}

// Toggle switches between playing and paused.
func (p *Player) Toggle() error {
	if p.phase == PhasePlaying {
		return p.Pause()
	}
	return p.Play()
}

// Restart rewinds to progress 0 in Ready.
func (p *Player) Restart() error {
	if p.phase == PhaseIdle {
		return p.transitionErr("restart")
	}
	p.progress = 0
	p.phase = PhaseReady
	return nil
}

// Seek moves the cursor. Seeking a Ready player past 0 pauses it; reaching
// 100 completes playback.
func (p *Player) Seek(progress float64) error {
	if err := ValidateProgress(progress); err != nil {
		return err
	}
	switch p.phase {
	case PhaseIdle, PhaseComplete:
		return p.transitionErr("seek")
	}
	p.progress = progress
	switch {
	case progress >= MaxProgress:
		p.phase = PhaseComplete
	case p.phase == PhaseReady && progress > 0:
		p.phase = PhasePaused
	}
	return nil
}

// SetSpeed changes the speed multiplier. It is allowed in every phase.
func (p *Player) SetSpeed(speed float64) error {
	if err := ValidateSpeed(speed); err != nil {
		return err
	}
	p.speed = speed
	return nil
}

// Advance is the tick function: it moves progress forward by
// rate*speed*elapsed and completes playback at 100.
func (p *Player) Advance(elapsed time.Duration) (Step, error) {
	if elapsed <= 0 {
		return Step{}, fmt.Errorf("advance %v: %w", elapsed, model.ErrInvalidArgument)
	}
	if p.phase != PhasePlaying {
		return Step{}, p.transitionErr("advance")
	}
	from := p.progress
	p.progress = math.Min(MaxProgress, from+p.rate*p.speed*elapsed.Seconds())
	if p.progress >= MaxProgress {
		p.phase = PhaseComplete
	}
	return Step{From: from, To: p.progress, Phase: p.phase}, nil
}

// Frame returns the snapshots at the current progress.
func (p *Player) Frame() ([]AgentSnapshot, error) {
	return SetProgress(p.state, p.progress)
}

// Deliveries returns the deliveries passed by step.
func (p *Player) Deliveries(s Step) ([]DeliveryEvent, error) {
	return DeliveriesBetween(p.state, s.From, s.To)
}
