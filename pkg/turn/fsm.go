package turn

import "strings"

// eventKind enumerates everything the state machine can react to: user
// intents, output adapter reports and input adapter reports.
type eventKind int

const (
	evSay eventKind = iota
	evTap
	evSubmit
	evFinishTurn
	evReset
	evSpeechStarted
	evSpeechFinished
	evSpeechFailed
	evPartial
	evFinal
	evCaptureEnded
	evCaptureFailed
)

func (k eventKind) String() string {
	switch k {
	case evSay:
		return "say"
	case evTap:
		return "tap"
	case evSubmit:
		return "submit"
	case evFinishTurn:
		return "finish_turn"
	case evReset:
		return "reset"
	case evSpeechStarted:
		return "speech_started"
	case evSpeechFinished:
		return "speech_finished"
	case evSpeechFailed:
		return "speech_failed"
	case evPartial:
		return "partial_transcript"
	case evFinal:
		return "final_transcript"
	case evCaptureEnded:
		return "capture_ended"
	case evCaptureFailed:
		return "capture_failed"
	default:
		return "unknown"
	}
}

type event struct {
	kind eventKind
	text string
	op   uint64
	err  error
}

type effectKind int

const (
	effectCancelOutput effectKind = iota
	effectCancelInput
	effectStartOutput
	effectStartInput
	effectCaption
	effectClearCaption
	effectAnswer
)

type effect struct {
	kind effectKind
	text string
}

// next is the whole transition logic as a pure function of (state, event).
// It returns the new state plus the ordered side effects the controller must
// execute. The correctness property lives here: every transition into
// Speaking or Listening emits cancel effects for BOTH adapters before its
// start effect, unconditionally. Checking "is the other one running" first
// would race against in-flight adapter callbacks; cancelling an idle adapter
// is a no-op by contract.
func next(s State, autoListen bool, ev event) (State, []effect) {
	switch ev.kind {
	case evSay:
		return StateSpeaking, []effect{
			{kind: effectCancelInput},
			{kind: effectCancelOutput},
			{kind: effectStartOutput, text: ev.text},
		}

	case evTap:
		if s == StateProcessing {
			return s, nil
		}
		return StateListening, []effect{
			{kind: effectCancelOutput},
			{kind: effectCancelInput},
			{kind: effectStartInput},
		}

	case evSubmit:
		if s == StateProcessing {
			return s, nil
		}
		text := strings.TrimSpace(ev.text)
		if text == "" {
			return s, nil
		}
		return StateProcessing, []effect{
			{kind: effectCancelOutput},
			{kind: effectCancelInput},
			{kind: effectClearCaption},
			{kind: effectAnswer, text: text},
		}

	case evFinishTurn:
		if s != StateProcessing {
			return s, nil
		}
		return StateIdle, []effect{{kind: effectClearCaption}}

	case evReset:
		// Dialog teardown. Both adapters are cancelled from every state so a
		// restart or abort leaves nothing speaking and nothing capturing.
		return StateIdle, []effect{
			{kind: effectCancelOutput},
			{kind: effectCancelInput},
			{kind: effectClearCaption},
		}

	case evSpeechStarted:
		return s, nil

	case evSpeechFinished:
		if s != StateSpeaking {
			return s, nil
		}
		if autoListen {
			return StateListening, []effect{
				{kind: effectCancelOutput},
				{kind: effectCancelInput},
				{kind: effectStartInput},
			}
		}
		return StateIdle, nil

	case evSpeechFailed:
		if s != StateSpeaking {
			return s, nil
		}
		return StateIdle, nil

	case evPartial:
		if s != StateListening {
			return s, nil
		}
		return s, []effect{{kind: effectCaption, text: ev.text}}

	case evFinal:
		if s != StateListening {
			return s, nil
		}
		text := strings.TrimSpace(ev.text)
		if text == "" {
			// Answer not provided; no transcript entry is produced.
			return StateIdle, []effect{
				{kind: effectCancelInput},
				{kind: effectClearCaption},
			}
		}
		return StateProcessing, []effect{
			{kind: effectCancelInput},
			{kind: effectClearCaption},
			{kind: effectAnswer, text: text},
		}

	case evCaptureEnded, evCaptureFailed:
		if s != StateListening {
			return s, nil
		}
		return StateIdle, []effect{{kind: effectClearCaption}}
	}
	return s, nil
}
