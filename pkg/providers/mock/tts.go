package mock

import (
	"sync"
	"time"

	"github.com/Samarth-1003/MockMate-AI/pkg/adapters/tts"
)

type TTSConfig struct {
	SessionID string
	// Latency is the delay between the started and finished events when
	// auto-finish is enabled. Zero finishes immediately.
	Latency time.Duration
	// AutoFinish emits the finished event without a manual Finish call.
	AutoFinish bool
	// FailWith, when set, replaces the finished event with a failure.
	FailWith error
}

// SpeechOutput is a scripted synthesis engine for tests and audio-less runs.
// Every utterance gets a fresh operation token; events for superseded tokens
// simply stop, mirroring how a real engine goes quiet after a cancel.
type SpeechOutput struct {
	cfg    TTSConfig
	out    chan tts.Event
	mu     sync.Mutex
	op     uint64
	active uint64
	closed bool
	spoken []string
}

func NewSpeechOutput(cfg TTSConfig) *SpeechOutput {
	return &SpeechOutput{cfg: cfg, out: make(chan tts.Event, 16)}
}

func (s *SpeechOutput) Name() string { return "mock_tts" }

func (s *SpeechOutput) Speak(text string) (uint64, error) {
	s.mu.Lock()
	s.op++
	op := s.op
	s.active = op
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()

	s.emit(op, tts.Event{Op: op, Kind: tts.EventStarted})
	if s.cfg.AutoFinish {
		if s.cfg.Latency > 0 {
			time.AfterFunc(s.cfg.Latency, func() { s.finish(op) })
		} else {
			s.finish(op)
		}
	}
	return op, nil
}

func (s *SpeechOutput) Cancel() {
	s.mu.Lock()
	s.active = 0
	s.mu.Unlock()
}

func (s *SpeechOutput) Events() <-chan tts.Event { return s.out }

func (s *SpeechOutput) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
	return nil
}

// Finish completes the utterance currently in flight.
func (s *SpeechOutput) Finish() {
	s.mu.Lock()
	op := s.active
	s.mu.Unlock()
	s.finish(op)
}

// Fail aborts the utterance currently in flight with err.
func (s *SpeechOutput) Fail(err error) {
	s.mu.Lock()
	op := s.active
	s.mu.Unlock()
	s.emit(op, tts.Event{Op: op, Kind: tts.EventFailed, Err: err})
}

// Spoken returns every text passed to Speak, in order.
func (s *SpeechOutput) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.spoken))
	copy(out, s.spoken)
	return out
}

func (s *SpeechOutput) finish(op uint64) {
	if s.cfg.FailWith != nil {
		s.emit(op, tts.Event{Op: op, Kind: tts.EventFailed, Err: s.cfg.FailWith})
		return
	}
	s.emit(op, tts.Event{Op: op, Kind: tts.EventFinished})
}

func (s *SpeechOutput) emit(op uint64, ev tts.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || op == 0 || op != s.active {
		return
	}
	if ev.Kind != tts.EventStarted {
		s.active = 0
	}
	select {
	case s.out <- ev:
	default:
	}
}

var _ tts.SpeechOutput = (*SpeechOutput)(nil)
