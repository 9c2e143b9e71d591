package engine

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Samarth-1003/MockMate-AI/pkg/adapters/stt"
	"github.com/Samarth-1003/MockMate-AI/pkg/adapters/tts"
	"github.com/Samarth-1003/MockMate-AI/pkg/errorsx"
	"github.com/Samarth-1003/MockMate-AI/pkg/evaluator"
	"github.com/Samarth-1003/MockMate-AI/pkg/logging"
	"github.com/Samarth-1003/MockMate-AI/pkg/metrics"
	"github.com/Samarth-1003/MockMate-AI/pkg/notify"
	mockprov "github.com/Samarth-1003/MockMate-AI/pkg/providers/mock"
	"github.com/Samarth-1003/MockMate-AI/pkg/scoring"
	"github.com/Samarth-1003/MockMate-AI/pkg/session"
	"github.com/Samarth-1003/MockMate-AI/pkg/transports"
	"github.com/Samarth-1003/MockMate-AI/pkg/turn"
)

// SpeechFactory builds the speech adapters for a voice session. sink
// receives synthesized audio for relay to the client.
type SpeechFactory func(ctx context.Context, sessionID string, sink func([]byte)) (tts.SpeechOutput, stt.SpeechInput, error)

// Config assembles the engine's collaborators.
type Config struct {
	Evaluator evaluator.Client
	Notifier  *notify.Notifier
	Speech    SpeechFactory
	Pacing    session.Pacing
	Scoring   scoring.Config
	Logger    *slog.Logger
	Observer  metrics.Observer
}

// Engine owns every live interview: it creates sessions from a resume
// upload, binds transports to them and reaps them on exit or shutdown.
type Engine struct {
	eval     evaluator.Client
	notifier *notify.Notifier
	speech   SpeechFactory
	pacing   session.Pacing
	pipeline *scoring.Pipeline
	logger   *slog.Logger
	obs      metrics.Observer

	reg    registry
	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewComponentLogger(slog.Default(), "engine")
	}
	obs := cfg.Observer
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	scfg := cfg.Scoring
	if scfg.Logger == nil {
		scfg.Logger = logger
	}
	if scfg.Observer == nil {
		scfg.Observer = obs
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		eval:     cfg.Evaluator,
		notifier: cfg.Notifier,
		speech:   cfg.Speech,
		pacing:   cfg.Pacing,
		pipeline: scoring.NewPipeline(cfg.Evaluator, scfg),
		logger:   logger,
		obs:      obs,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// CreateSession generates the question script from the uploaded resume and
// registers a fresh interview. Voice mode silently degrades to text when no
// speech providers are configured.
func (e *Engine) CreateSession(ctx context.Context, resume io.Reader, filename, jobDescription, candidateName string, mode session.Mode) (*Interview, error) {
	if e.reg.isDraining() {
		return nil, errorsx.New(errorsx.ReasonSessionPhase, "server is draining")
	}
	questions, err := e.eval.GenerateQuestions(ctx, resume, filename, jobDescription)
	if err != nil {
		return nil, err
	}
	questions = session.PersonalizeQuestions(questions, firstName(candidateName))

	if mode == session.ModeVoice && e.speech == nil {
		e.logger.Warn("no speech providers configured, falling back to text mode")
		mode = session.ModeText
	}

	id := uuid.NewString()
	ivCtx, cancel := context.WithCancel(e.ctx)
	iv := &Interview{
		ID:            id,
		Questions:     questions,
		CandidateName: candidateName,
		Mode:          mode,
		Created:       time.Now(),
		eng:           e,
		ctx:           ivCtx,
		cancel:        cancel,
		logger:        e.logger.With(slog.String("session_id", id)),
	}

	proxy := &answerProxy{}
	out, in, err := e.buildSpeech(ivCtx, iv, mode)
	if err != nil {
		cancel()
		return nil, errorsx.Wrap(err, errorsx.ReasonAdapterUnavailable)
	}
	iv.out = out
	iv.in = in
	iv.ctrl = turn.NewController(out, in, proxy, turn.Config{
		AutoListen: mode == session.ModeVoice,
		SessionID:  id,
		Logger:     iv.logger,
		Observer:   e.obs,
	})
	iv.runner = session.NewRunner(id, voiceProxy{iv}, e.pacing, iv.logger)
	proxy.bind(iv)

	iv.runner.AddPhaseListener(iv)
	iv.ctrl.AddListener(iv)
	iv.ctrl.AddCaptionListener(iv)
	iv.ctrl.Start()

	e.reg.add(iv)
	e.obs.RecordEvent(metrics.MetricsEvent{
		Name: "session_created",
		Time: time.Now(),
		Tags: map[string]string{"session_id": id, "mode": mode.String()},
	})
	e.logger.Info("session_created",
		slog.String("session_id", id),
		slog.String("mode", mode.String()),
		slog.Int("questions", len(questions)))
	return iv, nil
}

func (e *Engine) buildSpeech(ctx context.Context, iv *Interview, mode session.Mode) (tts.SpeechOutput, stt.SpeechInput, error) {
	if mode == session.ModeVoice {
		sink := func(chunk []byte) {
			iv.send(transports.Update{Kind: transports.UpdateAudio, Audio: chunk})
		}
		return e.speech(ctx, iv.ID, sink)
	}
	// Text mode still runs the full turn machine; the mock output finishes
	// each utterance immediately so the machine never lingers in Speaking.
	out := mockprov.NewSpeechOutput(mockprov.TTSConfig{SessionID: iv.ID, AutoFinish: true})
	in := mockprov.NewSpeechInput(mockprov.STTConfig{SessionID: iv.ID})
	return out, in, nil
}

// Attach binds a transport to an existing session.
func (e *Engine) Attach(sessionID string, t transports.Transport) error {
	iv, ok := e.reg.get(sessionID)
	if !ok {
		return errorsx.Newf(errorsx.ReasonSessionNotFound, "unknown session %s", sessionID)
	}
	return iv.attach(t)
}

// Get looks up a live session.
func (e *Engine) Get(sessionID string) (*Interview, bool) {
	return e.reg.get(sessionID)
}

// Remove stops and forgets a session.
func (e *Engine) Remove(sessionID string) {
	e.reg.remove(sessionID)
}

// Count reports the number of live sessions.
func (e *Engine) Count() int64 {
	return e.reg.Count()
}

// Drain refuses new sessions and waits for the live ones to end.
func (e *Engine) Drain(ctx context.Context, interval time.Duration) bool {
	e.reg.setDraining(true)
	return e.reg.waitForEmpty(ctx, interval)
}

// Shutdown stops every session immediately.
func (e *Engine) Shutdown() {
	e.reg.closeAll()
	e.cancel()
}

func firstName(full string) string {
	for i, r := range full {
		if r == ' ' {
			return full[:i]
		}
	}
	return full
}
