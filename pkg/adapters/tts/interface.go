package tts

// EventKind identifies a speech output lifecycle event.
type EventKind int

const (
	EventStarted EventKind = iota
	EventFinished
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "STARTED"
	case EventFinished:
		return "FINISHED"
	case EventFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Event reports progress of one utterance. Op identifies the utterance the
// event belongs to; events carrying a stale Op must be discarded by the
// consumer.
type Event struct {
	Op   uint64
	Kind EventKind
	Err  error
}

// SpeechOutput defines the contract for any speech synthesis implementation.
// One utterance is outstanding at a time: Speak begins a new utterance and
// implicitly supersedes the previous one.
type SpeechOutput interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Speak starts synthesizing text and returns the operation token that
	// tags the resulting events.
	Speak(text string) (uint64, error)
	// Cancel stops the current utterance. Idempotent; calling it with no
	// utterance in flight is a no-op.
	Cancel()
	// Events returns the utterance lifecycle event stream.
	Events() <-chan Event
	// Close releases the underlying engine.
	Close() error
}

// Config contains vendor-agnostic speech output configuration.
type Config struct {
	SessionID      string
	PreferredVoice string
	Language       string
	Rate           float64
}
