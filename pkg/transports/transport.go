package transports

import "context"

// IntentKind identifies a client-to-server message.
type IntentKind string

const (
	// IntentBegin starts the interview dialog for the attached session.
	IntentBegin IntentKind = "begin"
	// IntentTap is the push-to-talk tap.
	IntentTap IntentKind = "tap"
	// IntentSubmit carries a typed answer.
	IntentSubmit IntentKind = "submit"
	// IntentExit abandons the session.
	IntentExit IntentKind = "exit"
	// IntentRestart resets the session back to setup.
	IntentRestart IntentKind = "restart"
	// IntentAudio carries a raw caller audio chunk (binary frame).
	IntentAudio IntentKind = "audio"
)

// Intent is one inbound client message.
type Intent struct {
	Kind IntentKind `json:"kind"`
	Text string     `json:"text,omitempty"`
	// Audio is set only for IntentAudio and never appears in JSON.
	Audio []byte `json:"-"`
}

// UpdateKind identifies a server-to-client message.
type UpdateKind string

const (
	UpdateState   UpdateKind = "state"
	UpdateCaption UpdateKind = "caption"
	UpdateMessage UpdateKind = "message"
	UpdatePhase   UpdateKind = "phase"
	UpdateResult  UpdateKind = "result"
	UpdateError   UpdateKind = "error"
	// UpdateAudio carries synthesized speech audio (binary frame).
	UpdateAudio UpdateKind = "audio"
)

// Update is one outbound server message.
type Update struct {
	Kind       UpdateKind `json:"kind"`
	State      string     `json:"state,omitempty"`
	Caption    string     `json:"caption,omitempty"`
	Speaker    string     `json:"speaker,omitempty"`
	Text       string     `json:"text,omitempty"`
	Phase      string     `json:"phase,omitempty"`
	Percentage int        `json:"percentage,omitempty"`
	Narrative  string     `json:"narrative,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	// Audio is set only for UpdateAudio and never appears in JSON.
	Audio []byte `json:"-"`
}

// Transport defines a vendor-agnostic I/O boundary for session intents and
// updates. Implementations are responsible for their own network lifecycle.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Recv() <-chan Intent
	Send(Update) error
}
