package turn

import "time"

// State is the single source of truth for who holds the floor. Exactly one
// value is active at any instant; per-adapter activity flags are forbidden.
type State int

const (
	StateIdle State = iota
	StateSpeaking
	StateListening
	StateProcessing
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSpeaking:
		return "SPEAKING"
	case StateListening:
		return "LISTENING"
	case StateProcessing:
		return "PROCESSING"
	default:
		return "UNKNOWN"
	}
}

// StateChange represents a state transition event.
type StateChange struct {
	FromState State
	ToState   State
	Timestamp time.Time
	Reason    string
}

// StateListener observes turn state changes.
type StateListener interface {
	OnStateChange(event StateChange)
}

// CaptionListener observes the transient live caption. The caption holds the
// latest interim transcript and is never persisted; an empty string clears it.
type CaptionListener interface {
	OnCaption(text string)
}

// Delegate receives the final transcript once the machine enters Processing.
// It is invoked on the controller goroutine, so implementations may mutate
// session state without additional locking as long as they stay on that
// callback path.
type Delegate interface {
	OnAnswer(text string)
}
