package turn

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Samarth-1003/MockMate-AI/pkg/adapters/stt"
	"github.com/Samarth-1003/MockMate-AI/pkg/adapters/tts"
	"github.com/Samarth-1003/MockMate-AI/pkg/logging"
	"github.com/Samarth-1003/MockMate-AI/pkg/metrics"
)

// Config tunes a Controller for one dialog session.
type Config struct {
	// AutoListen makes the machine open a capture as soon as an utterance
	// finishes (voice mode). Text mode returns to Idle instead.
	AutoListen bool
	SessionID  string
	Logger     *slog.Logger
	Observer   metrics.Observer
}

// Controller arbitrates the speech output and speech input adapters. All
// events, whether user intents or adapter reports, are funneled into a single
// queue consumed by one goroutine; the transition logic itself is the pure
// function in fsm.go. Adapter events carry operation tokens and anything
// tagged with a superseded token is dropped before it reaches the reducer,
// so a playback-finished callback from a cancelled utterance can never fire
// a transition.
type Controller struct {
	cfg      Config
	out      tts.SpeechOutput
	in       stt.SpeechInput
	delegate Delegate
	logger   *slog.Logger
	obs      metrics.Observer

	intents   chan event
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu               sync.RWMutex
	state            State
	stateListeners   []StateListener
	captionListeners []CaptionListener

	// Owned by the loop goroutine. Zero means "no operation outstanding".
	outOp uint64
	inOp  uint64
}

func NewController(out tts.SpeechOutput, in stt.SpeechInput, delegate Delegate, cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewComponentLogger(slog.Default(), "turn")
	}
	obs := cfg.Observer
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	return &Controller{
		cfg:      cfg,
		out:      out,
		in:       in,
		delegate: delegate,
		logger:   logger,
		obs:      obs,
		intents:  make(chan event, 64),
		done:     make(chan struct{}),
		state:    StateIdle,
	}
}

// Start launches the event loop.
func (c *Controller) Start() {
	c.wg.Add(1)
	go c.loop()
}

// Shutdown cancels any outstanding adapter operation and stops the loop.
// Safe to call more than once.
func (c *Controller) Shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.out.Cancel()
	c.in.Cancel()
	c.wg.Wait()
}

// State returns the current turn state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// AddListener registers a listener for state change events.
func (c *Controller) AddListener(l StateListener) {
	c.mu.Lock()
	c.stateListeners = append(c.stateListeners, l)
	c.mu.Unlock()
}

// AddCaptionListener registers a listener for live caption updates.
func (c *Controller) AddCaptionListener(l CaptionListener) {
	c.mu.Lock()
	c.captionListeners = append(c.captionListeners, l)
	c.mu.Unlock()
}

// Say requests that text be spoken, preempting whatever is running.
func (c *Controller) Say(text string) {
	c.post(event{kind: evSay, text: text})
}

// TapToSpeak is the user-initiated "reply" intent.
func (c *Controller) TapToSpeak() {
	c.post(event{kind: evTap})
}

// SubmitText is the manual typed-answer intent.
func (c *Controller) SubmitText(text string) {
	c.post(event{kind: evSubmit, text: text})
}

// FinishTurn releases the floor after the delegate has recorded the answer
// and decided there is nothing further to speak.
func (c *Controller) FinishTurn() {
	c.post(event{kind: evFinishTurn})
}

// Reset cancels any outstanding adapter operation and returns the machine to
// Idle. Unlike Shutdown the loop keeps running, so the machine can host the
// next dialog after a session restart.
func (c *Controller) Reset() {
	c.post(event{kind: evReset})
}

func (c *Controller) post(ev event) {
	select {
	case <-c.done:
	case c.intents <- ev:
	}
}

func (c *Controller) loop() {
	defer c.wg.Done()
	outCh := c.out.Events()
	inCh := c.in.Events()
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.intents:
			c.dispatch(ev)
		case oev, ok := <-outCh:
			if !ok {
				outCh = nil
				continue
			}
			c.dispatchOutput(oev)
		case iev, ok := <-inCh:
			if !ok {
				inCh = nil
				continue
			}
			c.dispatchInput(iev)
		}
	}
}

func (c *Controller) dispatchOutput(oev tts.Event) {
	if oev.Op != c.outOp {
		c.logger.Debug("stale_output_event",
			slog.String("kind", oev.Kind.String()),
			slog.Uint64("op", oev.Op),
			slog.Uint64("current", c.outOp))
		return
	}
	switch oev.Kind {
	case tts.EventStarted:
		c.dispatch(event{kind: evSpeechStarted, op: oev.Op})
	case tts.EventFinished:
		c.outOp = 0
		c.dispatch(event{kind: evSpeechFinished, op: oev.Op})
	case tts.EventFailed:
		c.outOp = 0
		c.logger.Warn("speech_output_error", slog.Any("error", oev.Err))
		c.dispatch(event{kind: evSpeechFailed, op: oev.Op, err: oev.Err})
	}
}

func (c *Controller) dispatchInput(iev stt.Event) {
	if iev.Op != c.inOp {
		c.logger.Debug("stale_input_event",
			slog.String("kind", iev.Kind.String()),
			slog.Uint64("op", iev.Op),
			slog.Uint64("current", c.inOp))
		return
	}
	switch iev.Kind {
	case stt.EventPartial:
		c.dispatch(event{kind: evPartial, text: iev.Text, op: iev.Op})
	case stt.EventFinal:
		c.inOp = 0
		c.dispatch(event{kind: evFinal, text: iev.Text, op: iev.Op})
	case stt.EventEnded:
		c.inOp = 0
		c.dispatch(event{kind: evCaptureEnded, op: iev.Op})
	case stt.EventFailed:
		c.inOp = 0
		c.logger.Warn("speech_input_error", slog.Any("error", iev.Err))
		c.dispatch(event{kind: evCaptureFailed, op: iev.Op, err: iev.Err})
	}
}

func (c *Controller) dispatch(ev event) {
	from := c.State()
	to, effects := next(from, c.cfg.AutoListen, ev)
	if to != from {
		c.setState(from, to, ev.kind.String())
	}
	for _, eff := range effects {
		c.apply(eff)
	}
}

func (c *Controller) apply(eff effect) {
	switch eff.kind {
	case effectCancelOutput:
		c.outOp = 0
		c.out.Cancel()
	case effectCancelInput:
		c.inOp = 0
		c.in.Cancel()
	case effectStartOutput:
		op, err := c.out.Speak(eff.text)
		if err != nil {
			c.logger.Warn("speech_start_failed", slog.Any("error", err))
			c.setState(c.State(), StateIdle, "speech_start_failed")
			return
		}
		c.outOp = op
	case effectStartInput:
		op, err := c.in.Listen()
		if err != nil {
			c.logger.Warn("capture_start_failed", slog.Any("error", err))
			c.setState(c.State(), StateIdle, "capture_start_failed")
			return
		}
		c.inOp = op
	case effectCaption:
		c.notifyCaption(eff.text)
	case effectClearCaption:
		c.notifyCaption("")
	case effectAnswer:
		if c.delegate != nil {
			c.delegate.OnAnswer(eff.text)
		}
	}
}

func (c *Controller) setState(from, to State, reason string) {
	c.mu.Lock()
	c.state = to
	listeners := make([]StateListener, len(c.stateListeners))
	copy(listeners, c.stateListeners)
	c.mu.Unlock()

	c.logger.Debug("turn_transition",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.String("reason", reason))
	c.obs.RecordEvent(metrics.MetricsEvent{
		Name: "turn_transition",
		Time: time.Now(),
		Tags: map[string]string{
			"session_id": c.cfg.SessionID,
			"from":       from.String(),
			"to":         to.String(),
			"reason":     reason,
		},
	})

	ev := StateChange{FromState: from, ToState: to, Timestamp: time.Now(), Reason: reason}
	for _, l := range listeners {
		l.OnStateChange(ev)
	}
}

func (c *Controller) notifyCaption(text string) {
	c.mu.RLock()
	listeners := make([]CaptionListener, len(c.captionListeners))
	copy(listeners, c.captionListeners)
	c.mu.RUnlock()
	for _, l := range listeners {
		l.OnCaption(text)
	}
}
