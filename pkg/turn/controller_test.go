package turn

import (
	"sync"
	"testing"
	"time"

	"github.com/Samarth-1003/MockMate-AI/pkg/adapters/stt"
	"github.com/Samarth-1003/MockMate-AI/pkg/adapters/tts"
)

type stubOutput struct {
	mu      sync.Mutex
	ch      chan tts.Event
	op      uint64
	cancels int
	spoken  []string
}

func newStubOutput() *stubOutput {
	return &stubOutput{ch: make(chan tts.Event, 16)}
}

func (s *stubOutput) Name() string { return "stub_tts" }

func (s *stubOutput) Speak(text string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.op++
	s.spoken = append(s.spoken, text)
	return s.op, nil
}

func (s *stubOutput) Cancel() {
	s.mu.Lock()
	s.cancels++
	s.mu.Unlock()
}

func (s *stubOutput) Events() <-chan tts.Event { return s.ch }
func (s *stubOutput) Close() error            { return nil }

func (s *stubOutput) lastOp() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.op
}

func (s *stubOutput) cancelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

func (s *stubOutput) emit(ev tts.Event) { s.ch <- ev }

type stubInput struct {
	mu sync.Mutex
	ch chan stt.Event
	op uint64
}

func newStubInput() *stubInput {
	return &stubInput{ch: make(chan stt.Event, 16)}
}

func (s *stubInput) Name() string { return "stub_stt" }

func (s *stubInput) Listen() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.op++
	return s.op, nil
}

func (s *stubInput) Cancel()                  {}
func (s *stubInput) Events() <-chan stt.Event { return s.ch }
func (s *stubInput) Close() error             { return nil }

func (s *stubInput) lastOp() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.op
}

func (s *stubInput) emit(ev stt.Event) { s.ch <- ev }

type recordingDelegate struct {
	mu      sync.Mutex
	answers []string
}

func (d *recordingDelegate) OnAnswer(text string) {
	d.mu.Lock()
	d.answers = append(d.answers, text)
	d.mu.Unlock()
}

func (d *recordingDelegate) all() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.answers...)
}

func waitState(t *testing.T, c *Controller, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, still %s", want, c.State())
}

func TestControllerSpeakLifecycle(t *testing.T) {
	out, in := newStubOutput(), newStubInput()
	c := NewController(out, in, &recordingDelegate{}, Config{SessionID: "s1"})
	c.Start()
	defer c.Shutdown()

	c.Say("welcome")
	waitState(t, c, StateSpeaking)

	op := out.lastOp()
	out.emit(tts.Event{Op: op, Kind: tts.EventFinished})
	waitState(t, c, StateIdle)
}

func TestControllerAutoListenAfterSpeech(t *testing.T) {
	out, in := newStubOutput(), newStubInput()
	c := NewController(out, in, &recordingDelegate{}, Config{AutoListen: true, SessionID: "s1"})
	c.Start()
	defer c.Shutdown()

	c.Say("question one")
	waitState(t, c, StateSpeaking)
	out.emit(tts.Event{Op: out.lastOp(), Kind: tts.EventFinished})
	waitState(t, c, StateListening)
}

func TestControllerTapPreemptsSpeech(t *testing.T) {
	out, in := newStubOutput(), newStubInput()
	d := &recordingDelegate{}
	c := NewController(out, in, d, Config{SessionID: "s1"})
	c.Start()
	defer c.Shutdown()

	c.Say("a long question")
	waitState(t, c, StateSpeaking)
	speechOp := out.lastOp()

	c.TapToSpeak()
	waitState(t, c, StateListening)

	// The finish report for the preempted utterance arrives late. It must
	// not dislodge the capture.
	out.emit(tts.Event{Op: speechOp, Kind: tts.EventFinished})
	time.Sleep(20 * time.Millisecond)
	if got := c.State(); got != StateListening {
		t.Fatalf("stale finish event moved state to %s", got)
	}

	in.emit(stt.Event{Op: in.lastOp(), Kind: stt.EventFinal, Text: "my answer"})
	waitState(t, c, StateProcessing)
	if answers := d.all(); len(answers) != 1 || answers[0] != "my answer" {
		t.Fatalf("unexpected answers %v", answers)
	}

	c.FinishTurn()
	waitState(t, c, StateIdle)
}

func TestControllerResetCancelsOutstandingSpeech(t *testing.T) {
	out, in := newStubOutput(), newStubInput()
	c := NewController(out, in, &recordingDelegate{}, Config{AutoListen: true, SessionID: "s1"})
	c.Start()
	defer c.Shutdown()

	c.Say("a question nobody will hear out")
	waitState(t, c, StateSpeaking)
	speechOp := out.lastOp()
	cancelsBefore := out.cancelCount()

	c.Reset()
	waitState(t, c, StateIdle)
	if out.cancelCount() <= cancelsBefore {
		t.Fatalf("reset did not cancel the outstanding utterance")
	}

	// The cancelled utterance eventually reports finished. Even with
	// auto-listen that must not open a capture on a torn-down dialog.
	out.emit(tts.Event{Op: speechOp, Kind: tts.EventFinished})
	time.Sleep(20 * time.Millisecond)
	if got := c.State(); got != StateIdle {
		t.Fatalf("stale finish after reset moved state to %s", got)
	}
	if in.lastOp() != 0 {
		t.Fatalf("capture opened after reset")
	}
}

func TestControllerResetClosesCapture(t *testing.T) {
	out, in := newStubOutput(), newStubInput()
	d := &recordingDelegate{}
	c := NewController(out, in, d, Config{AutoListen: true, SessionID: "s1"})
	c.Start()
	defer c.Shutdown()

	c.TapToSpeak()
	waitState(t, c, StateListening)
	captureOp := in.lastOp()

	c.Reset()
	waitState(t, c, StateIdle)

	in.emit(stt.Event{Op: captureOp, Kind: stt.EventFinal, Text: "too late"})
	time.Sleep(20 * time.Millisecond)
	if answers := d.all(); len(answers) != 0 {
		t.Fatalf("final after reset produced answers %v", answers)
	}
	if got := c.State(); got != StateIdle {
		t.Fatalf("final after reset moved state to %s", got)
	}
}

func TestControllerStaleFinalDropped(t *testing.T) {
	out, in := newStubOutput(), newStubInput()
	d := &recordingDelegate{}
	c := NewController(out, in, d, Config{SessionID: "s1"})
	c.Start()
	defer c.Shutdown()

	c.TapToSpeak()
	waitState(t, c, StateListening)
	firstOp := in.lastOp()

	// Re-tap supersedes the first capture.
	c.TapToSpeak()
	waitState(t, c, StateListening)

	in.emit(stt.Event{Op: firstOp, Kind: stt.EventFinal, Text: "from the dead capture"})
	time.Sleep(20 * time.Millisecond)
	if answers := d.all(); len(answers) != 0 {
		t.Fatalf("stale final produced answers %v", answers)
	}
	if got := c.State(); got != StateListening {
		t.Fatalf("stale final moved state to %s", got)
	}
}

func TestControllerEmptyFinalReturnsIdle(t *testing.T) {
	out, in := newStubOutput(), newStubInput()
	d := &recordingDelegate{}
	c := NewController(out, in, d, Config{SessionID: "s1"})
	c.Start()
	defer c.Shutdown()

	c.TapToSpeak()
	waitState(t, c, StateListening)
	in.emit(stt.Event{Op: in.lastOp(), Kind: stt.EventFinal, Text: "   "})
	waitState(t, c, StateIdle)
	if answers := d.all(); len(answers) != 0 {
		t.Fatalf("blank final produced answers %v", answers)
	}
}

func TestControllerCaptions(t *testing.T) {
	out, in := newStubOutput(), newStubInput()
	c := NewController(out, in, &recordingDelegate{}, Config{SessionID: "s1"})

	var mu sync.Mutex
	var captions []string
	c.AddCaptionListener(captionFunc(func(text string) {
		mu.Lock()
		captions = append(captions, text)
		mu.Unlock()
	}))

	c.Start()
	defer c.Shutdown()

	c.TapToSpeak()
	waitState(t, c, StateListening)
	op := in.lastOp()
	in.emit(stt.Event{Op: op, Kind: stt.EventPartial, Text: "for"})
	in.emit(stt.Event{Op: op, Kind: stt.EventPartial, Text: "forty two"})
	in.emit(stt.Event{Op: op, Kind: stt.EventFinal, Text: "forty two"})
	waitState(t, c, StateProcessing)

	mu.Lock()
	defer mu.Unlock()
	want := []string{"for", "forty two", ""}
	if len(captions) != len(want) {
		t.Fatalf("captions %v, want %v", captions, want)
	}
	for i := range want {
		if captions[i] != want[i] {
			t.Fatalf("caption %d = %q, want %q", i, captions[i], want[i])
		}
	}
}

type captionFunc func(string)

func (f captionFunc) OnCaption(text string) { f(text) }
