package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Samarth-1003/MockMate-AI/pkg/adapters/stt"
	"github.com/Samarth-1003/MockMate-AI/pkg/adapters/tts"
	"github.com/Samarth-1003/MockMate-AI/pkg/errorsx"
	mockprov "github.com/Samarth-1003/MockMate-AI/pkg/providers/mock"
	"github.com/Samarth-1003/MockMate-AI/pkg/scoring"
	"github.com/Samarth-1003/MockMate-AI/pkg/session"
	"github.com/Samarth-1003/MockMate-AI/pkg/transports"
	mocktransport "github.com/Samarth-1003/MockMate-AI/pkg/transports/mock"
	"github.com/Samarth-1003/MockMate-AI/pkg/turn"
)

func testEngine(eval *mockprov.Evaluator) *Engine {
	return New(Config{
		Evaluator: eval,
		Pacing: session.Pacing{
			FirstQuestion: 2 * time.Millisecond,
			NextQuestion:  2 * time.Millisecond,
			Abort:         2 * time.Millisecond,
			Finish:        2 * time.Millisecond,
		},
		Scoring: scoring.Config{Pace: time.Millisecond},
	})
}

func createSession(t *testing.T, e *Engine, mode session.Mode) *Interview {
	t.Helper()
	iv, err := e.CreateSession(context.Background(), strings.NewReader("resume"), "cv.pdf", "backend role", "Sam Jones", mode)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return iv
}

func waitUpdate(t *testing.T, tr *mocktransport.Transport, kind transports.UpdateKind) transports.Update {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u, ok := <-tr.Sent():
			if !ok {
				t.Fatalf("transport closed while waiting for %s", kind)
			}
			if u.Kind == kind {
				return u
			}
		case <-deadline:
			t.Fatalf("timed out waiting for update %s", kind)
		}
	}
}

func TestEngineFullTextInterview(t *testing.T) {
	eval := mockprov.NewEvaluator(mockprov.EvaluatorConfig{
		Questions: []string{"Tell me about Go.", "Describe a hard bug."},
		Analyses:  []map[string]any{{"score": 10.0}, {"score": 5.0}},
	})
	e := testEngine(eval)
	defer e.Shutdown()

	iv := createSession(t, e, session.ModeText)
	if iv.Mode != session.ModeText {
		t.Fatalf("expected text mode")
	}

	tr := mocktransport.New()
	if err := e.Attach(iv.ID, tr); err != nil {
		t.Fatalf("attach: %v", err)
	}

	tr.Push(transports.Intent{Kind: transports.IntentBegin})
	greeting := waitUpdate(t, tr, transports.UpdateMessage)
	if greeting.Speaker != "ai" || !strings.Contains(greeting.Text, "Sam Jones") {
		t.Fatalf("unexpected greeting %+v", greeting)
	}

	tr.Push(transports.Intent{Kind: transports.IntentSubmit, Text: "yes"})
	q1 := waitForAIMessage(t, tr)
	if !strings.Contains(strings.ToLower(q1), "tell me about go") {
		t.Fatalf("expected first question, got %q", q1)
	}

	tr.Push(transports.Intent{Kind: transports.IntentSubmit, Text: "channels and interfaces"})
	q2 := waitForAIMessage(t, tr)
	if !strings.Contains(strings.ToLower(q2), "describe a hard bug.") {
		t.Fatalf("expected second question, got %q", q2)
	}

	tr.Push(transports.Intent{Kind: transports.IntentSubmit, Text: "a data race"})
	result := waitUpdate(t, tr, transports.UpdateResult)
	// (10+5)/20 = 75%
	if result.Percentage != 75 {
		t.Fatalf("expected 75%%, got %d", result.Percentage)
	}
	if result.Narrative == "" {
		t.Fatalf("result narrative missing")
	}
	if eval.Calls() != 2 {
		t.Fatalf("expected 2 analyze calls, got %d", eval.Calls())
	}

	snap := iv.Snapshot()
	if len(snap.AnswerLog) != 2 {
		t.Fatalf("expected 2 logged answers, got %d", len(snap.AnswerLog))
	}
}

func waitForAIMessage(t *testing.T, tr *mocktransport.Transport) string {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u, ok := <-tr.Sent():
			if !ok {
				t.Fatalf("transport closed while waiting for ai message")
			}
			if u.Kind == transports.UpdateMessage && u.Speaker == "ai" {
				return u.Text
			}
		case <-deadline:
			t.Fatalf("timed out waiting for ai message")
		}
	}
}

func TestEngineGreetingDecline(t *testing.T) {
	eval := mockprov.NewEvaluator(mockprov.EvaluatorConfig{Questions: []string{"q1"}})
	e := testEngine(eval)
	defer e.Shutdown()

	iv := createSession(t, e, session.ModeText)
	tr := mocktransport.New()
	if err := e.Attach(iv.ID, tr); err != nil {
		t.Fatalf("attach: %v", err)
	}

	tr.Push(transports.Intent{Kind: transports.IntentBegin})
	waitUpdate(t, tr, transports.UpdateMessage)

	tr.Push(transports.Intent{Kind: transports.IntentSubmit, Text: "no"})
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u := <-tr.Sent():
			if u.Kind == transports.UpdatePhase && u.Phase == session.PhaseSetup.String() {
				// Text mode keeps the closing line in the transcript
				// without speaking it.
				trans := iv.Snapshot().Transcript
				if len(trans) == 0 || trans[len(trans)-1].Text != "Okay, stopping now." {
					t.Fatalf("closing line missing from transcript: %+v", trans)
				}
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for return to setup")
		}
	}
}

func waitCtrlState(t *testing.T, iv *Interview, want turn.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if iv.ctrl.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for turn state %s, still %s", want, iv.ctrl.State())
}

func TestEngineRestartTearsDownVoiceTurn(t *testing.T) {
	eval := mockprov.NewEvaluator(mockprov.EvaluatorConfig{Questions: []string{"q1"}})
	var out *mockprov.SpeechOutput
	cfg := Config{
		Evaluator: eval,
		Pacing: session.Pacing{
			FirstQuestion: 2 * time.Millisecond,
			NextQuestion:  2 * time.Millisecond,
			Abort:         2 * time.Millisecond,
			Finish:        2 * time.Millisecond,
		},
		Scoring: scoring.Config{Pace: time.Millisecond},
		Speech: func(ctx context.Context, sessionID string, sink func([]byte)) (tts.SpeechOutput, stt.SpeechInput, error) {
			out = mockprov.NewSpeechOutput(mockprov.TTSConfig{SessionID: sessionID})
			return out, mockprov.NewSpeechInput(mockprov.STTConfig{SessionID: sessionID}), nil
		},
	}
	e := New(cfg)
	defer e.Shutdown()

	iv := createSession(t, e, session.ModeVoice)
	tr := mocktransport.New()
	if err := e.Attach(iv.ID, tr); err != nil {
		t.Fatalf("attach: %v", err)
	}

	// The greeting utterance never finishes on its own, so the machine sits
	// in Speaking when the restart arrives.
	tr.Push(transports.Intent{Kind: transports.IntentBegin})
	waitCtrlState(t, iv, turn.StateSpeaking)

	tr.Push(transports.Intent{Kind: transports.IntentRestart})
	deadline := time.After(2 * time.Second)
	for {
		done := false
		select {
		case u := <-tr.Sent():
			done = u.Kind == transports.UpdatePhase && u.Phase == session.PhaseSetup.String()
		case <-deadline:
			t.Fatalf("timed out waiting for return to setup")
		}
		if done {
			break
		}
	}
	waitCtrlState(t, iv, turn.StateIdle)

	// A late finish from the cancelled greeting must not wake the machine.
	// Auto-listen would otherwise open a capture against a session in Setup.
	out.Finish()
	time.Sleep(20 * time.Millisecond)
	if got := iv.ctrl.State(); got != turn.StateIdle {
		t.Fatalf("stale utterance finish moved a reset session to %s", got)
	}
}

func TestEngineAttachUnknownSession(t *testing.T) {
	eval := mockprov.NewEvaluator(mockprov.EvaluatorConfig{Questions: []string{"q1"}})
	e := testEngine(eval)
	defer e.Shutdown()

	err := e.Attach("nope", mocktransport.New())
	if !errorsx.HasReason(err, errorsx.ReasonSessionNotFound) {
		t.Fatalf("expected session_not_found, got %v", err)
	}
}

func TestEngineDrainingRefusesNewSessions(t *testing.T) {
	eval := mockprov.NewEvaluator(mockprov.EvaluatorConfig{Questions: []string{"q1"}})
	e := testEngine(eval)
	defer e.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	e.Drain(ctx, time.Millisecond)

	_, err := e.CreateSession(context.Background(), strings.NewReader("r"), "cv.pdf", "jd", "Sam", session.ModeText)
	if !errorsx.HasReason(err, errorsx.ReasonSessionPhase) {
		t.Fatalf("expected refusal while draining, got %v", err)
	}
}

func TestEngineVoiceFallsBackToText(t *testing.T) {
	eval := mockprov.NewEvaluator(mockprov.EvaluatorConfig{Questions: []string{"q1"}})
	e := testEngine(eval) // no speech factory configured
	defer e.Shutdown()

	iv := createSession(t, e, session.ModeVoice)
	if iv.Mode != session.ModeText {
		t.Fatalf("expected fallback to text mode, got %s", iv.Mode)
	}
}

func TestEngineRemoveStopsSession(t *testing.T) {
	eval := mockprov.NewEvaluator(mockprov.EvaluatorConfig{Questions: []string{"q1"}})
	e := testEngine(eval)
	defer e.Shutdown()

	iv := createSession(t, e, session.ModeText)
	if e.Count() != 1 {
		t.Fatalf("expected 1 session, got %d", e.Count())
	}
	e.Remove(iv.ID)
	if e.Count() != 0 {
		t.Fatalf("expected 0 sessions after remove, got %d", e.Count())
	}
	if _, ok := e.Get(iv.ID); ok {
		t.Fatalf("removed session still resolvable")
	}
}
