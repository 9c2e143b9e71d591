package session

// Phase tracks where the session is in its lifecycle.
type Phase int

const (
	PhaseSetup Phase = iota
	PhaseDialog
	PhaseResult
)

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "SETUP"
	case PhaseDialog:
		return "DIALOG"
	case PhaseResult:
		return "RESULT"
	default:
		return "UNKNOWN"
	}
}

// Mode selects how the candidate answers.
type Mode int

const (
	ModeText Mode = iota
	ModeVoice
)

func (m Mode) String() string {
	if m == ModeVoice {
		return "voice"
	}
	return "text"
}

// ParseMode maps a wire value to a Mode, defaulting to text.
func ParseMode(s string) Mode {
	if s == "voice" {
		return ModeVoice
	}
	return ModeText
}

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	SpeakerAI   Speaker = "ai"
	SpeakerUser Speaker = "user"
)

// Message is one transcript entry. The transcript is append-only within a
// session and cleared exactly on restart.
type Message struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// AnswerEntry pairs a question with the answer the candidate gave.
type AnswerEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Session holds all per-interview state. It is mutated only by the Runner
// (greeting gate, answer log, phase) and read through Snapshot copies
// everywhere else.
type Session struct {
	ID            string
	Phase         Phase
	Questions     []string
	CurrentIndex  int
	Transcript    []Message
	AnswerLog     []AnswerEntry
	CandidateName string
	Mode          Mode
}

// Snapshot is a read-only copy handed to the presentation layer.
type Snapshot struct {
	ID            string
	Phase         Phase
	Questions     []string
	CurrentIndex  int
	Transcript    []Message
	AnswerLog     []AnswerEntry
	CandidateName string
	Mode          Mode
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		ID:            s.ID,
		Phase:         s.Phase,
		Questions:     append([]string(nil), s.Questions...),
		CurrentIndex:  s.CurrentIndex,
		Transcript:    append([]Message(nil), s.Transcript...),
		AnswerLog:     append([]AnswerEntry(nil), s.AnswerLog...),
		CandidateName: s.CandidateName,
		Mode:          s.Mode,
	}
}
