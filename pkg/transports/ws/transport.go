package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Samarth-1003/MockMate-AI/pkg/logging"
	"github.com/Samarth-1003/MockMate-AI/pkg/transports"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 25 * time.Second
)

// Transport speaks the session protocol over one upgraded websocket
// connection. JSON text frames carry intents and updates; binary frames
// carry audio in both directions.
type Transport struct {
	conn      *websocket.Conn
	sessionID string
	recvCh    chan transports.Intent
	sendCh    chan transports.Update
	ctx       context.Context
	cancel    context.CancelFunc
	closed    atomic.Bool
	mu        sync.Mutex
	logger    *slog.Logger
}

func New(conn *websocket.Conn, sessionID string) *Transport {
	return &Transport{
		conn:      conn,
		sessionID: sessionID,
		recvCh:    make(chan transports.Intent, 256),
		sendCh:    make(chan transports.Update, 256),
		logger:    logging.NewComponentLogger(slog.Default(), "ws_transport"),
	}
}

func (t *Transport) Name() string { return "websocket" }

func (t *Transport) Start(ctx context.Context) error {
	if t.conn == nil {
		return errors.New("nil websocket connection")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	t.ctx, t.cancel = context.WithCancel(ctx)
	go t.readLoop()
	go t.writeLoop()
	return nil
}

func (t *Transport) Stop() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	if t.cancel != nil {
		t.cancel()
	}
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	err := t.conn.Close()
	// Serialized against push so the read loop cannot be mid-send on the
	// channel being closed.
	t.mu.Lock()
	close(t.recvCh)
	t.mu.Unlock()
	return err
}

func (t *Transport) Recv() <-chan transports.Intent { return t.recvCh }

func (t *Transport) Send(u transports.Update) error {
	if t.closed.Load() {
		return errors.New("transport stopped")
	}
	select {
	case t.sendCh <- u:
		return nil
	default:
		t.logger.Warn("send buffer full, dropping update",
			slog.String("session_id", t.sessionID),
			slog.String("kind", string(u.Kind)))
		return nil
	}
}

func (t *Transport) readLoop() {
	defer func() { _ = t.Stop() }()
	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			if t.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Warn("read loop error",
					slog.String("session_id", t.sessionID),
					slog.String("error", err.Error()))
			}
			return
		}
		switch msgType {
		case websocket.BinaryMessage:
			t.push(transports.Intent{Kind: transports.IntentAudio, Audio: data})
		case websocket.TextMessage:
			var in transports.Intent
			if err := json.Unmarshal(data, &in); err != nil {
				t.logger.Warn("malformed intent",
					slog.String("session_id", t.sessionID),
					slog.String("data", string(data)))
				continue
			}
			t.push(in)
		}
	}
}

func (t *Transport) push(in transports.Intent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return
	}
	select {
	case t.recvCh <- in:
	default:
		// Audio chunks are droppable; anything else getting here means the
		// consumer stalled and the client will retry.
		if in.Kind != transports.IntentAudio {
			t.logger.Warn("recv buffer full, dropping intent",
				slog.String("session_id", t.sessionID),
				slog.String("kind", string(in.Kind)))
		}
	}
}

func (t *Transport) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-t.ctx.Done():
			return
		case u := <-t.sendCh:
			if err := t.write(u); err != nil {
				if t.ctx.Err() == nil {
					t.logger.Warn("write loop error",
						slog.String("session_id", t.sessionID),
						slog.String("error", err.Error()))
				}
				_ = t.Stop()
				return
			}
		case <-ticker.C:
			_ = t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		}
	}
}

func (t *Transport) write(u transports.Update) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if u.Kind == transports.UpdateAudio {
		return t.conn.WriteMessage(websocket.BinaryMessage, u.Audio)
	}
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, b)
}

var _ transports.Transport = (*Transport)(nil)
