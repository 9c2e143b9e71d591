package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Samarth-1003/MockMate-AI/pkg/adapters/tts"
	"github.com/Samarth-1003/MockMate-AI/pkg/errorsx"
	"github.com/Samarth-1003/MockMate-AI/pkg/resilience"
)

const defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

type Config struct {
	APIKey       string
	VoiceID      string
	ModelID      string
	OutputFormat string
	SampleRate   int
	SessionID    string
	// AudioSink receives synthesized audio chunks for the utterance in
	// flight. Chunks for a cancelled utterance are suppressed.
	AudioSink func([]byte)
}

type ttsMessage struct {
	text  string
	flush bool
}

// SpeechOutput synthesizes speech over the ElevenLabs stream-input websocket.
// One utterance is in flight at a time; a new Speak flushes generation for
// the previous one and retags the stream with a fresh operation token.
type SpeechOutput struct {
	cfg     Config
	conn    *websocket.Conn
	out     chan tts.Event
	writeCh chan ttsMessage
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger

	mu     sync.Mutex
	wmu    sync.Mutex
	op     uint64
	active uint64
	closed bool
}

func New(ctx context.Context, cfg Config) (*SpeechOutput, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing elevenlabs api key")
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 44100
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s := &SpeechOutput{
		cfg:     cfg,
		out:     make(chan tts.Event, 16),
		writeCh: make(chan ttsMessage, 64),
		logger:  slog.Default().With(slog.String("component", "elevenlabs_tts")),
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	voice := cfg.VoiceID
	if voice == "" {
		voice = defaultVoiceID
	}
	conn, err := s.dial(voice)
	if err != nil {
		if resilience.IsRateLimit(err) || voice == defaultVoiceID {
			return nil, err
		}
		// Unknown or unavailable voice: fall back to the stock voice.
		s.logger.Warn("voice unavailable, using default",
			slog.String("session_id", cfg.SessionID),
			slog.String("voice_id", voice))
		conn, err = s.dial(defaultVoiceID)
		if err != nil {
			return nil, err
		}
	}
	s.conn = conn
	s.logger.Info("connected to ElevenLabs",
		slog.String("session_id", cfg.SessionID),
		slog.String("output_format", cfg.OutputFormat))

	_ = s.send(map[string]any{
		"text":                   " ",
		"try_trigger_generation": true,
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.8,
		},
		"generation_config": map[string]any{
			"chunk_length_schedule": []int{120, 160, 250, 290},
		},
	})
	go s.readLoop()
	go s.writeLoop()
	return s, nil
}

func (s *SpeechOutput) dial(voiceID string) (*websocket.Conn, error) {
	u := s.buildURL(voiceID)
	s.logger.Debug("connecting to ElevenLabs",
		slog.String("session_id", s.cfg.SessionID),
		slog.String("output_format", s.cfg.OutputFormat))

	dialer := websocket.Dialer{Proxy: http.ProxyFromEnvironment}
	conn, resp, err := dialer.Dial(u, http.Header{
		"xi-api-key": []string{s.cfg.APIKey},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			s.logger.Error("ElevenLabs rate limit exceeded",
				slog.String("session_id", s.cfg.SessionID),
				slog.String("status", resp.Status))
			return nil, resilience.RateLimitError{Provider: "elevenlabs", Message: resp.Status}
		}
		return nil, err
	}
	return conn, nil
}

func (s *SpeechOutput) Name() string { return "elevenlabs_tts" }

func (s *SpeechOutput) Speak(text string) (uint64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, errors.New("empty text")
	}
	if !strings.HasSuffix(text, " ") {
		text += " "
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, errors.New("speech output closed")
	}
	s.op++
	op := s.op
	s.active = op
	s.mu.Unlock()

	s.emit(tts.Event{Op: op, Kind: tts.EventStarted})
	select {
	case s.writeCh <- ttsMessage{text: text, flush: true}:
	default:
		s.emit(tts.Event{Op: op, Kind: tts.EventFailed, Err: errors.New("write queue full")})
	}
	return op, nil
}

func (s *SpeechOutput) Cancel() {
	s.mu.Lock()
	s.active = 0
	s.mu.Unlock()
	// Tell ElevenLabs to stop generating the current utterance.
	select {
	case s.writeCh <- ttsMessage{text: " ", flush: true}:
	default:
	}
}

func (s *SpeechOutput) Events() <-chan tts.Event { return s.out }

func (s *SpeechOutput) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.active = 0
	s.mu.Unlock()

	s.logger.Info("tts close called",
		slog.String("session_id", s.cfg.SessionID))
	if s.cancel != nil {
		s.cancel()
	}
	var err error
	if s.conn != nil {
		s.wmu.Lock()
		_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.wmu.Unlock()
		err = s.conn.Close()
	}
	close(s.out)
	return err
}

func (s *SpeechOutput) buildURL(voiceID string) string {
	base := "wss://api.elevenlabs.io/v1/text-to-speech/" + voiceID + "/stream-input"
	q := url.Values{}
	if s.cfg.ModelID != "" {
		q.Set("model_id", s.cfg.ModelID)
	}
	if s.cfg.OutputFormat != "" {
		q.Set("output_format", s.cfg.OutputFormat)
	}
	q.Set("optimize_streaming_latency", "4")
	return base + "?" + q.Encode()
}

func (s *SpeechOutput) writeLoop() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.writeCh:
			payload := map[string]any{"text": msg.text}
			if msg.flush {
				payload["flush"] = true
			}
			_ = s.send(payload)
		case <-ticker.C:
			// Keep-alive, the stream times out after 20s of silence.
			_ = s.send(map[string]any{"text": " "})
		}
	}
}

func (s *SpeechOutput) readLoop() {
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("tts read loop exit",
				slog.String("session_id", s.cfg.SessionID),
				slog.String("reason", "context_cancelled"))
			return
		default:
			_, data, err := s.conn.ReadMessage()
			if err != nil {
				if s.ctx.Err() == nil {
					s.logger.Error("tts read loop error",
						slog.String("session_id", s.cfg.SessionID),
						slog.String("error", err.Error()))
					s.failActive(err)
				}
				return
			}
			s.handleMessage(data)
		}
	}
}

func (s *SpeechOutput) handleMessage(data []byte) {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warn("tts websocket raw data", "data", string(data))
		return
	}

	if isFinal, ok := msg["isFinal"].(bool); ok && isFinal {
		s.finishActive()
		return
	}

	audio, ok := msg["audio"].(string)
	if !ok {
		if a, ok := msg["audio_base_64"].(string); ok {
			audio = a
		} else if a, ok := msg["audio_base64"].(string); ok {
			audio = a
		} else {
			if _, isAlign := msg["alignment"]; !isAlign {
				s.logger.Debug("tts websocket message", "payload", msg)
			}
			return
		}
	}
	raw, err := base64.StdEncoding.DecodeString(audio)
	if err != nil {
		s.logger.Error("tts audio decode error", "error", err)
		return
	}

	s.mu.Lock()
	live := s.active != 0
	s.mu.Unlock()
	if !live {
		// Trailing audio for a cancelled utterance.
		return
	}

	s.logger.Debug("tts audio chunk received",
		slog.String("session_id", s.cfg.SessionID),
		slog.Int("size_bytes", len(raw)))
	if s.cfg.AudioSink != nil {
		s.cfg.AudioSink(raw)
	}
}

func (s *SpeechOutput) finishActive() {
	s.mu.Lock()
	op := s.active
	s.active = 0
	s.mu.Unlock()
	if op == 0 {
		return
	}
	s.emit(tts.Event{Op: op, Kind: tts.EventFinished})
}

func (s *SpeechOutput) failActive(err error) {
	s.mu.Lock()
	op := s.active
	s.active = 0
	s.mu.Unlock()
	if op == 0 {
		return
	}
	s.emit(tts.Event{Op: op, Kind: tts.EventFailed, Err: errorsx.Wrap(err, errorsx.ReasonAdapterError)})
}

func (s *SpeechOutput) emit(ev tts.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.out <- ev:
	default:
		s.logger.Warn("tts event buffer full",
			slog.String("session_id", s.cfg.SessionID))
	}
}

func (s *SpeechOutput) send(payload map[string]any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

var _ tts.SpeechOutput = (*SpeechOutput)(nil)
