package session

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Samarth-1003/MockMate-AI/pkg/errorsx"
	"github.com/Samarth-1003/MockMate-AI/pkg/logging"
	"github.com/Samarth-1003/MockMate-AI/pkg/redact"
)

// Voice is the slice of the turn controller the Runner drives. Reset is the
// teardown path: it must cancel anything still speaking or capturing.
type Voice interface {
	Say(text string)
	FinishTurn()
	Reset()
}

// PhaseListener observes session phase changes.
type PhaseListener interface {
	OnPhaseChange(snap Snapshot)
}

// Pacing holds the cosmetic delays between turns. They emulate natural turn
// pacing and carry no functional guarantee; every one of them must be
// cancellable by a session reset.
type Pacing struct {
	FirstQuestion time.Duration
	NextQuestion  time.Duration
	Abort         time.Duration
	Finish        time.Duration
}

func (p Pacing) withDefaults() Pacing {
	if p.FirstQuestion <= 0 {
		p.FirstQuestion = time.Second
	}
	if p.NextQuestion <= 0 {
		p.NextQuestion = 1500 * time.Millisecond
	}
	if p.Abort <= 0 {
		p.Abort = 2 * time.Second
	}
	if p.Finish <= 0 {
		p.Finish = time.Second
	}
	return p
}

// affirmations is the greeting-gate vocabulary. Matching is deliberately a
// case-insensitive substring check; anything else counts as a decline.
var affirmations = []string{"yes", "ready"}

const closingLine = "Okay, stopping now."

// Runner owns the question list and walks the session through
// setup -> dialog -> result. It implements turn.Delegate: final transcripts
// arrive through OnAnswer on the controller goroutine, and the Runner's own
// mutex makes Begin/Reset safe from other goroutines.
type Runner struct {
	mu     sync.Mutex
	sess   *Session
	voice  Voice
	pacing Pacing
	logger *slog.Logger

	// gen invalidates pacing timers across resets. A timer armed under one
	// generation that fires under another does nothing.
	gen    atomic.Uint64
	gate   bool
	timers []*time.Timer

	listeners []PhaseListener
}

func NewRunner(id string, voice Voice, pacing Pacing, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewComponentLogger(slog.Default(), "session")
	}
	return &Runner{
		sess:   &Session{ID: id, Phase: PhaseSetup},
		voice:  voice,
		pacing: pacing.withDefaults(),
		logger: logger,
	}
}

// AddPhaseListener registers a listener for phase changes.
func (r *Runner) AddPhaseListener(l PhaseListener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

// Snapshot returns a read-only copy of the session.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sess.snapshot()
}

// Begin starts the dialog: it validates the question list, moves the session
// into the Dialog phase and emits the greeting utterance. The first real
// question is held back until the candidate affirms the greeting.
func (r *Runner) Begin(questions []string, mode Mode, candidateName string) error {
	r.mu.Lock()
	if len(questions) == 0 {
		r.mu.Unlock()
		return errorsx.New(errorsx.ReasonEmptyQuestionSet, "no questions to ask")
	}
	if r.sess.Phase != PhaseSetup {
		phase := r.sess.Phase
		r.mu.Unlock()
		return errorsx.Newf(errorsx.ReasonSessionPhase, "session already in phase %s", phase)
	}
	r.sess.Questions = append([]string(nil), questions...)
	r.sess.CurrentIndex = 0
	r.sess.Mode = mode
	r.sess.CandidateName = candidateName
	r.sess.Phase = PhaseDialog
	r.gate = true

	greeting := greetingText(candidateName, mode)
	r.sess.Transcript = append(r.sess.Transcript, Message{Speaker: SpeakerAI, Text: greeting})
	r.logger.Info("session_begin",
		slog.String("session_id", r.sess.ID),
		slog.String("mode", mode.String()),
		slog.Int("questions", len(questions)))
	r.mu.Unlock()

	r.notifyPhase()
	r.voice.Say(greeting)
	return nil
}

// OnAnswer receives a non-empty final transcript from the turn controller.
// The greeting reply passes the gate; everything after it is recorded as an
// answer and drives the question index forward.
func (r *Runner) OnAnswer(text string) {
	r.mu.Lock()
	if r.sess.Phase != PhaseDialog {
		r.mu.Unlock()
		return
	}
	r.sess.Transcript = append(r.sess.Transcript, Message{Speaker: SpeakerUser, Text: text})

	if r.gate {
		affirmed := isAffirmation(text)
		r.logger.Info("greeting_gate",
			slog.String("session_id", r.sess.ID),
			slog.Bool("affirmed", affirmed))
		if affirmed {
			r.gate = false
			r.scheduleLocked(r.pacing.FirstQuestion, r.askCurrentLocked)
			r.mu.Unlock()
			return
		}
		r.sess.Transcript = append(r.sess.Transcript, Message{Speaker: SpeakerAI, Text: closingLine})
		sayClosing := r.sess.Mode == ModeVoice
		r.scheduleLocked(r.pacing.Abort, r.abortLocked)
		r.mu.Unlock()
		if sayClosing {
			r.voice.Say(closingLine)
		}
		return
	}

	question := r.sess.Questions[r.sess.CurrentIndex]
	r.sess.AnswerLog = append(r.sess.AnswerLog, AnswerEntry{Question: question, Answer: text})
	r.logger.Info("answer_recorded",
		slog.String("session_id", r.sess.ID),
		slog.Int("index", r.sess.CurrentIndex),
		slog.String("answer", redact.Text(text)))

	if r.sess.CurrentIndex+1 < len(r.sess.Questions) {
		r.scheduleLocked(r.pacing.NextQuestion, func() {
			r.sess.CurrentIndex++
			r.askCurrentLocked()
		})
		r.mu.Unlock()
		return
	}
	r.scheduleLocked(r.pacing.Finish, r.finishLocked)
	r.mu.Unlock()
}

// Reset tears the session down to the Setup phase: transcript, answer log and
// question list are cleared and every pending pacing timer is invalidated so
// no late transition can fire.
func (r *Runner) Reset() {
	r.mu.Lock()
	r.gen.Add(1)
	for _, t := range r.timers {
		t.Stop()
	}
	r.timers = nil
	r.gate = false
	r.sess.Phase = PhaseSetup
	r.sess.Questions = nil
	r.sess.CurrentIndex = 0
	r.sess.Transcript = nil
	r.sess.AnswerLog = nil
	r.logger.Info("session_reset", slog.String("session_id", r.sess.ID))
	r.mu.Unlock()
	r.voice.Reset()
	r.notifyPhase()
}

// askCurrentLocked emits the question at the current index. Caller holds mu.
func (r *Runner) askCurrentLocked() {
	q := r.sess.Questions[r.sess.CurrentIndex]
	r.sess.Transcript = append(r.sess.Transcript, Message{Speaker: SpeakerAI, Text: q})
	r.logger.Info("question_asked",
		slog.String("session_id", r.sess.ID),
		slog.Int("index", r.sess.CurrentIndex))
	r.voice.Say(q)
}

// abortLocked returns to Setup after a declined greeting. Caller holds mu.
// The turn machine is torn down, not merely finished: in voice mode the
// closing utterance may still be playing, or auto-listen may already have
// opened a capture, and neither may survive into the Setup phase.
func (r *Runner) abortLocked() {
	r.sess.Phase = PhaseSetup
	r.sess.Questions = nil
	r.sess.CurrentIndex = 0
	r.voice.Reset()
	go r.notifyPhase()
}

// finishLocked closes the dialog after the last answer. Caller holds mu.
func (r *Runner) finishLocked() {
	r.sess.Phase = PhaseResult
	r.logger.Info("dialog_complete",
		slog.String("session_id", r.sess.ID),
		slog.Int("answers", len(r.sess.AnswerLog)))
	r.voice.FinishTurn()
	go r.notifyPhase()
}

// scheduleLocked arms a pacing timer tagged with the current generation.
// Caller holds mu; fn runs under mu when the timer fires.
func (r *Runner) scheduleLocked(d time.Duration, fn func()) {
	g := r.gen.Load()
	t := time.AfterFunc(d, func() {
		if r.gen.Load() != g {
			return
		}
		r.mu.Lock()
		if r.gen.Load() != g || r.sess.Phase != PhaseDialog {
			r.mu.Unlock()
			return
		}
		fn()
		r.mu.Unlock()
	})
	r.timers = append(r.timers, t)
}

func (r *Runner) notifyPhase() {
	r.mu.Lock()
	snap := r.sess.snapshot()
	listeners := make([]PhaseListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()
	for _, l := range listeners {
		l.OnPhaseChange(snap)
	}
}

func greetingText(name string, mode Mode) string {
	if mode == ModeVoice {
		return fmt.Sprintf("Hello %s! I've analyzed your profile. I'm listening—say \"Yes\" when you're ready.", name)
	}
	return fmt.Sprintf("Hello %s! I've analyzed your profile. Type \"Yes\" when you're ready to start.", name)
}

func isAffirmation(text string) bool {
	lower := strings.ToLower(text)
	for _, word := range affirmations {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
