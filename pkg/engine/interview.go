package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Samarth-1003/MockMate-AI/pkg/adapters/stt"
	"github.com/Samarth-1003/MockMate-AI/pkg/adapters/tts"
	"github.com/Samarth-1003/MockMate-AI/pkg/errorsx"
	"github.com/Samarth-1003/MockMate-AI/pkg/scoring"
	"github.com/Samarth-1003/MockMate-AI/pkg/session"
	"github.com/Samarth-1003/MockMate-AI/pkg/transports"
	"github.com/Samarth-1003/MockMate-AI/pkg/turn"
)

// AudioWriter is implemented by speech inputs that accept raw caller audio
// pushed from the transport.
type AudioWriter interface {
	WriteAudio(p []byte) error
}

// Interview bundles everything one session needs: the turn controller, the
// script runner, the speech adapters and the attached transport.
type Interview struct {
	ID            string
	Questions     []string
	CandidateName string
	Mode          session.Mode
	Created       time.Time

	eng    *Engine
	runner *session.Runner
	ctrl   *turn.Controller
	out    tts.SpeechOutput
	in     stt.SpeechInput
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu        sync.Mutex
	transport transports.Transport
	stopped   bool
}

// Snapshot returns the current session state.
func (iv *Interview) Snapshot() session.Snapshot {
	return iv.runner.Snapshot()
}

// attach binds a transport and starts routing its intents. Only one
// transport at a time; a reconnect replaces the previous one.
func (iv *Interview) attach(t transports.Transport) error {
	if err := t.Start(iv.ctx); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTransportSend)
	}
	iv.mu.Lock()
	old := iv.transport
	iv.transport = t
	iv.mu.Unlock()
	if old != nil {
		_ = old.Stop()
	}
	go iv.serve(t)

	// Let a reconnecting client catch up.
	iv.send(transports.Update{Kind: transports.UpdateState, State: iv.ctrl.State().String()})
	iv.send(transports.Update{Kind: transports.UpdatePhase, Phase: iv.runner.Snapshot().Phase.String()})
	return nil
}

func (iv *Interview) serve(t transports.Transport) {
	for in := range t.Recv() {
		switch in.Kind {
		case transports.IntentBegin:
			if err := iv.runner.Begin(iv.Questions, iv.Mode, iv.CandidateName); err != nil {
				iv.sendError(err)
			}
		case transports.IntentTap:
			iv.ctrl.TapToSpeak()
		case transports.IntentSubmit:
			iv.ctrl.SubmitText(in.Text)
		case transports.IntentRestart:
			iv.runner.Reset()
		case transports.IntentExit:
			iv.eng.Remove(iv.ID)
			return
		case transports.IntentAudio:
			if w, ok := iv.in.(AudioWriter); ok {
				_ = w.WriteAudio(in.Audio)
			}
		default:
			iv.logger.Warn("unknown_intent", slog.String("kind", string(in.Kind)))
		}
	}
	// Transport gone. The session stays alive for a reconnect window; the
	// registry reaps it on engine shutdown or explicit exit.
	iv.mu.Lock()
	if iv.transport == t {
		iv.transport = nil
	}
	iv.mu.Unlock()
}

func (iv *Interview) send(u transports.Update) {
	iv.mu.Lock()
	t := iv.transport
	iv.mu.Unlock()
	if t == nil {
		return
	}
	if err := t.Send(u); err != nil {
		iv.logger.Warn("update_send_failed",
			slog.String("session_id", iv.ID),
			slog.String("kind", string(u.Kind)))
	}
}

func (iv *Interview) sendError(err error) {
	iv.send(transports.Update{
		Kind:   transports.UpdateError,
		Text:   err.Error(),
		Reason: string(errorsx.Reason(err)),
	})
}

// OnStateChange implements turn.StateListener.
func (iv *Interview) OnStateChange(ev turn.StateChange) {
	iv.send(transports.Update{Kind: transports.UpdateState, State: ev.ToState.String()})
}

// OnCaption implements turn.CaptionListener.
func (iv *Interview) OnCaption(text string) {
	iv.send(transports.Update{Kind: transports.UpdateCaption, Caption: text})
}

// OnPhaseChange implements session.PhaseListener. Reaching the result phase
// kicks off the scoring run.
func (iv *Interview) OnPhaseChange(snap session.Snapshot) {
	iv.send(transports.Update{Kind: transports.UpdatePhase, Phase: snap.Phase.String()})
	if snap.Phase == session.PhaseResult {
		go iv.score(snap)
	}
}

func (iv *Interview) score(snap session.Snapshot) {
	res, err := iv.eng.pipeline.Score(iv.ctx, snap.AnswerLog)
	if err != nil {
		iv.logger.Warn("scoring_run_failed",
			slog.String("session_id", iv.ID),
			slog.String("reason", string(errorsx.Reason(err))))
		iv.sendError(err)
		return
	}
	iv.send(transports.Update{
		Kind:       transports.UpdateResult,
		Percentage: res.Percentage,
		Narrative:  res.Narrative,
	})
	if iv.eng.notifier != nil && iv.eng.notifier.Enabled() {
		go iv.notify(res)
	}
}

func (iv *Interview) notify(res scoring.Result) {
	if err := iv.eng.notifier.SendResult(iv.ctx, iv.ID, res); err != nil {
		iv.logger.Warn("notify_failed",
			slog.String("session_id", iv.ID),
			slog.String("error", err.Error()))
	}
}

func (iv *Interview) stop() {
	iv.mu.Lock()
	if iv.stopped {
		iv.mu.Unlock()
		return
	}
	iv.stopped = true
	t := iv.transport
	iv.transport = nil
	iv.mu.Unlock()

	if t != nil {
		_ = t.Stop()
	}
	iv.ctrl.Shutdown()
	_ = iv.out.Close()
	_ = iv.in.Close()
	iv.cancel()
	iv.logger.Info("interview_stopped", slog.String("session_id", iv.ID))
}

// voiceProxy adapts the controller to the runner's Voice interface and
// mirrors spoken lines to the transport as chat messages.
type voiceProxy struct {
	iv *Interview
}

func (v voiceProxy) Say(text string) {
	v.iv.send(transports.Update{
		Kind:    transports.UpdateMessage,
		Speaker: string(session.SpeakerAI),
		Text:    text,
	})
	v.iv.ctrl.Say(text)
}

func (v voiceProxy) FinishTurn() {
	v.iv.ctrl.FinishTurn()
}

func (v voiceProxy) Reset() {
	v.iv.ctrl.Reset()
}

// answerProxy forwards final answers to the runner and mirrors them to the
// transport. It also breaks the construction cycle between the controller
// and the runner.
type answerProxy struct {
	mu sync.Mutex
	iv *Interview
}

func (a *answerProxy) OnAnswer(text string) {
	a.mu.Lock()
	iv := a.iv
	a.mu.Unlock()
	if iv == nil {
		return
	}
	iv.send(transports.Update{
		Kind:    transports.UpdateMessage,
		Speaker: string(session.SpeakerUser),
		Text:    text,
	})
	iv.runner.OnAnswer(text)
}

func (a *answerProxy) bind(iv *Interview) {
	a.mu.Lock()
	a.iv = iv
	a.mu.Unlock()
}
