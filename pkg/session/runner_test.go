package session

import (
	"sync"
	"testing"
	"time"

	"github.com/Samarth-1003/MockMate-AI/pkg/errorsx"
)

type fakeVoice struct {
	mu       sync.Mutex
	said     []string
	finished int
	resets   int
}

func (v *fakeVoice) Say(text string) {
	v.mu.Lock()
	v.said = append(v.said, text)
	v.mu.Unlock()
}

func (v *fakeVoice) FinishTurn() {
	v.mu.Lock()
	v.finished++
	v.mu.Unlock()
}

func (v *fakeVoice) Reset() {
	v.mu.Lock()
	v.resets++
	v.mu.Unlock()
}

func (v *fakeVoice) resetCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.resets
}

func (v *fakeVoice) saidLines() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.said...)
}

type phaseRecorder struct {
	ch chan Snapshot
}

func newPhaseRecorder() *phaseRecorder {
	return &phaseRecorder{ch: make(chan Snapshot, 16)}
}

func (p *phaseRecorder) OnPhaseChange(snap Snapshot) {
	select {
	case p.ch <- snap:
	default:
	}
}

func (p *phaseRecorder) waitPhase(t *testing.T, want Phase) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-p.ch:
			if snap.Phase == want {
				return snap
			}
		case <-deadline:
			t.Fatalf("timed out waiting for phase %s", want)
		}
	}
}

func testPacing() Pacing {
	return Pacing{
		FirstQuestion: 5 * time.Millisecond,
		NextQuestion:  5 * time.Millisecond,
		Abort:         5 * time.Millisecond,
		Finish:        5 * time.Millisecond,
	}
}

func waitForSaid(t *testing.T, v *fakeVoice, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if lines := v.saidLines(); len(lines) >= n {
			return lines
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d utterances, have %v", n, v.saidLines())
	return nil
}

func TestBeginValidation(t *testing.T) {
	v := &fakeVoice{}
	r := NewRunner("s1", v, testPacing(), nil)

	if err := r.Begin(nil, ModeText, "Sam"); !errorsx.HasReason(err, errorsx.ReasonEmptyQuestionSet) {
		t.Fatalf("expected empty_question_set, got %v", err)
	}
	if err := r.Begin([]string{"q1"}, ModeText, "Sam"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := r.Begin([]string{"q1"}, ModeText, "Sam"); !errorsx.HasReason(err, errorsx.ReasonSessionPhase) {
		t.Fatalf("expected session_phase on double begin, got %v", err)
	}
}

func TestGreetingAffirmationAsksFirstQuestion(t *testing.T) {
	v := &fakeVoice{}
	r := NewRunner("s1", v, testPacing(), nil)
	if err := r.Begin([]string{"q1", "q2"}, ModeText, "Sam"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	r.OnAnswer("Yes, I'm ready")
	lines := waitForSaid(t, v, 2)
	if lines[1] != "q1" {
		t.Fatalf("expected first question after affirmation, got %q", lines[1])
	}

	snap := r.Snapshot()
	if len(snap.AnswerLog) != 0 {
		t.Fatalf("greeting reply must not enter the answer log: %v", snap.AnswerLog)
	}
	if len(snap.Transcript) != 3 {
		t.Fatalf("expected greeting + reply + question in transcript, got %d entries", len(snap.Transcript))
	}
}

func TestGreetingDeclineAbortsToSetup(t *testing.T) {
	v := &fakeVoice{}
	rec := newPhaseRecorder()
	r := NewRunner("s1", v, testPacing(), nil)
	r.AddPhaseListener(rec)
	if err := r.Begin([]string{"q1"}, ModeText, "Sam"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	rec.waitPhase(t, PhaseDialog)

	r.OnAnswer("no thanks")
	rec.waitPhase(t, PhaseSetup)

	// Text mode shows the closing line without speaking it.
	for _, line := range v.saidLines() {
		if line == "Okay, stopping now." {
			t.Fatalf("closing line must not be spoken in text mode")
		}
	}
	// Transcript is cleared only on restart, not on abort.
	found := false
	for _, m := range r.Snapshot().Transcript {
		if m.Speaker == SpeakerAI && m.Text == "Okay, stopping now." {
			found = true
		}
	}
	if !found {
		t.Fatalf("closing line missing from transcript")
	}
	if v.resetCount() == 0 {
		t.Fatalf("declined greeting did not tear down the turn machine")
	}
}

func TestGreetingDeclineSpeaksClosingInVoiceMode(t *testing.T) {
	v := &fakeVoice{}
	rec := newPhaseRecorder()
	r := NewRunner("s1", v, testPacing(), nil)
	r.AddPhaseListener(rec)
	if err := r.Begin([]string{"q1"}, ModeVoice, "Sam"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	r.OnAnswer("absolutely not")
	rec.waitPhase(t, PhaseSetup)

	found := false
	for _, line := range v.saidLines() {
		if line == "Okay, stopping now." {
			found = true
		}
	}
	if !found {
		t.Fatalf("closing line must be spoken in voice mode, said %v", v.saidLines())
	}
	// The abort must tear the turn machine down. The closing utterance may
	// still be playing when the abort timer fires, and auto-listen may have
	// opened a capture already; neither belongs to the Setup phase.
	if v.resetCount() == 0 {
		t.Fatalf("declined greeting did not tear down the turn machine")
	}
}

func TestFullRunRecordsEveryAnswer(t *testing.T) {
	v := &fakeVoice{}
	rec := newPhaseRecorder()
	r := NewRunner("s1", v, testPacing(), nil)
	r.AddPhaseListener(rec)
	if err := r.Begin([]string{"q1", "q2"}, ModeText, "Sam"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	r.OnAnswer("ready")
	waitForSaid(t, v, 2) // greeting + q1
	r.OnAnswer("answer one")
	waitForSaid(t, v, 3) // + q2
	r.OnAnswer("answer two")

	snap := rec.waitPhase(t, PhaseResult)
	if len(snap.AnswerLog) != 2 {
		t.Fatalf("expected 2 logged answers, got %d", len(snap.AnswerLog))
	}
	if snap.AnswerLog[0].Question != "q1" || snap.AnswerLog[0].Answer != "answer one" {
		t.Fatalf("first entry mismatched: %+v", snap.AnswerLog[0])
	}
	if snap.AnswerLog[1].Question != "q2" || snap.AnswerLog[1].Answer != "answer two" {
		t.Fatalf("second entry mismatched: %+v", snap.AnswerLog[1])
	}
}

func TestAnswersIgnoredOutsideDialog(t *testing.T) {
	v := &fakeVoice{}
	r := NewRunner("s1", v, testPacing(), nil)
	r.OnAnswer("hello?")
	if snap := r.Snapshot(); len(snap.Transcript) != 0 {
		t.Fatalf("setup-phase answer must be dropped: %v", snap.Transcript)
	}
}

func TestResetInvalidatesPendingTimers(t *testing.T) {
	v := &fakeVoice{}
	r := NewRunner("s1", v, testPacing(), nil)
	if err := r.Begin([]string{"q1"}, ModeText, "Sam"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	r.OnAnswer("yes")
	r.Reset()

	time.Sleep(30 * time.Millisecond)
	if lines := v.saidLines(); len(lines) != 1 {
		t.Fatalf("pacing timer survived reset, said %v", lines)
	}
	snap := r.Snapshot()
	if snap.Phase != PhaseSetup || len(snap.Transcript) != 0 || len(snap.AnswerLog) != 0 {
		t.Fatalf("reset left residue: %+v", snap)
	}
}

func TestPersonalizeAlwaysPrefixesFirstQuestion(t *testing.T) {
	out := PersonalizeQuestions([]string{"Tell me about X.", "And Y?"}, "Sam")
	if out[0] != "Sam, tell me about X." {
		t.Fatalf("first question not personalized: %q", out[0])
	}
	if PersonalizeQuestions(nil, "Sam") != nil {
		t.Fatalf("nil questions must stay nil")
	}
	same := PersonalizeQuestions([]string{"Q"}, "  ")
	if same[0] != "Q" {
		t.Fatalf("blank name must leave questions untouched")
	}
}
