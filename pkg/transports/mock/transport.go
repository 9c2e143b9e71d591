package mock

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Samarth-1003/MockMate-AI/pkg/transports"
)

// Transport is an in-memory transport for local testing and integration.
// It implements the transports.Transport interface without any network
// dependency.
type Transport struct {
	recvCh chan transports.Intent
	sentCh chan transports.Update
	closed atomic.Bool
	mu     sync.Mutex
}

func New() *Transport {
	return &Transport{
		recvCh: make(chan transports.Intent, 256),
		sentCh: make(chan transports.Update, 256),
	}
}

func (t *Transport) Name() string { return "mock" }

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		<-ctx.Done()
		_ = t.Stop()
	}()
	return nil
}

func (t *Transport) Stop() error {
	if t.closed.CompareAndSwap(false, true) {
		t.mu.Lock()
		close(t.recvCh)
		close(t.sentCh)
		t.mu.Unlock()
	}
	return nil
}

func (t *Transport) Recv() <-chan transports.Intent { return t.recvCh }

func (t *Transport) Send(u transports.Update) error {
	// The lock serializes against Stop closing the channel.
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return nil
	}
	select {
	case t.sentCh <- u:
	default:
	}
	return nil
}

// Push injects an inbound intent into the transport.
func (t *Transport) Push(in transports.Intent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return
	}
	select {
	case t.recvCh <- in:
	default:
	}
}

// Sent exposes outbound updates for inspection.
func (t *Transport) Sent() <-chan transports.Update { return t.sentCh }

var _ transports.Transport = (*Transport)(nil)
