package mock

import (
	"sync"
	"time"

	"github.com/Samarth-1003/MockMate-AI/pkg/adapters/stt"
)

type STTConfig struct {
	SessionID string
	// Partials are interim transcripts streamed before the final one.
	Partials []string
	// Transcript is the final recognition result for auto-scripted captures.
	Transcript string
	// Latency delays the auto-scripted emission after Listen. Zero with
	// AutoEmit emits synchronously.
	Latency time.Duration
	// AutoEmit plays the scripted transcript on every Listen call. When
	// false the test drives the capture with Recognize/End/Fail.
	AutoEmit bool
	// EndWithoutResult ends the capture silently instead of emitting a
	// final transcript.
	EndWithoutResult bool
	// FailWith aborts the capture with the given error.
	FailWith error
}

// SpeechInput is a scripted recognition engine for tests and audio-less runs.
type SpeechInput struct {
	cfg    STTConfig
	out    chan stt.Event
	mu     sync.Mutex
	op     uint64
	active uint64
	closed bool
}

func NewSpeechInput(cfg STTConfig) *SpeechInput {
	return &SpeechInput{cfg: cfg, out: make(chan stt.Event, 16)}
}

func (s *SpeechInput) Name() string { return "mock_stt" }

func (s *SpeechInput) Listen() (uint64, error) {
	s.mu.Lock()
	s.op++
	op := s.op
	s.active = op
	s.mu.Unlock()

	if s.cfg.AutoEmit {
		if s.cfg.Latency > 0 {
			time.AfterFunc(s.cfg.Latency, func() { s.playScript(op) })
		} else {
			s.playScript(op)
		}
	}
	return op, nil
}

func (s *SpeechInput) Cancel() {
	s.mu.Lock()
	s.active = 0
	s.mu.Unlock()
}

func (s *SpeechInput) Events() <-chan stt.Event { return s.out }

func (s *SpeechInput) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
	return nil
}

// Partial emits an interim transcript for the capture in flight.
func (s *SpeechInput) Partial(text string) {
	op := s.current()
	s.emit(op, stt.Event{Op: op, Kind: stt.EventPartial, Text: text})
}

// Recognize emits the final transcript for the capture in flight.
func (s *SpeechInput) Recognize(text string) {
	op := s.current()
	s.emit(op, stt.Event{Op: op, Kind: stt.EventFinal, Text: text})
}

// End closes the capture in flight without a result.
func (s *SpeechInput) End() {
	op := s.current()
	s.emit(op, stt.Event{Op: op, Kind: stt.EventEnded})
}

// Fail aborts the capture in flight with err.
func (s *SpeechInput) Fail(err error) {
	op := s.current()
	s.emit(op, stt.Event{Op: op, Kind: stt.EventFailed, Err: err})
}

func (s *SpeechInput) playScript(op uint64) {
	if s.cfg.FailWith != nil {
		s.emit(op, stt.Event{Op: op, Kind: stt.EventFailed, Err: s.cfg.FailWith})
		return
	}
	for _, p := range s.cfg.Partials {
		s.emit(op, stt.Event{Op: op, Kind: stt.EventPartial, Text: p})
	}
	if s.cfg.EndWithoutResult {
		s.emit(op, stt.Event{Op: op, Kind: stt.EventEnded})
		return
	}
	s.emit(op, stt.Event{Op: op, Kind: stt.EventFinal, Text: s.cfg.Transcript})
}

func (s *SpeechInput) current() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *SpeechInput) emit(op uint64, ev stt.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || op == 0 || op != s.active {
		return
	}
	if ev.Kind != stt.EventPartial {
		s.active = 0
	}
	select {
	case s.out <- ev:
	default:
	}
}

var _ stt.SpeechInput = (*SpeechInput)(nil)
