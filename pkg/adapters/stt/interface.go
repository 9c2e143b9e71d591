package stt

// EventKind identifies a speech input lifecycle event.
type EventKind int

const (
	// EventPartial carries an interim transcript; later partials overwrite
	// earlier ones, they are never accumulated.
	EventPartial EventKind = iota
	// EventFinal carries the definitive transcript for the capture.
	EventFinal
	// EventEnded means the capture stopped without producing a final result.
	EventEnded
	// EventFailed means the capture aborted with an engine error.
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventPartial:
		return "PARTIAL"
	case EventFinal:
		return "FINAL"
	case EventEnded:
		return "ENDED"
	case EventFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Event reports progress of one capture operation, tagged with the operation
// token so stale events from a cancelled capture can be discarded.
type Event struct {
	Op   uint64
	Kind EventKind
	Text string
	Err  error
}

// SpeechInput defines the contract for any speech capture implementation.
// One capture is outstanding at a time.
type SpeechInput interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Listen starts a capture and returns the operation token that tags the
	// resulting events.
	Listen() (uint64, error)
	// Cancel stops the current capture. Idempotent; calling it with no
	// capture in flight is a no-op.
	Cancel()
	// Events returns the capture event stream.
	Events() <-chan Event
	// Close releases the underlying engine.
	Close() error
}

// Config contains vendor-agnostic speech input configuration.
type Config struct {
	SessionID string
	Language  string
	Interim   bool
}
