package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// registry tracks live interviews by session id.
type registry struct {
	sessions sync.Map
	count    atomic.Int64
	draining atomic.Bool
}

func (r *registry) add(iv *Interview) {
	if _, loaded := r.sessions.LoadOrStore(iv.ID, iv); !loaded {
		r.count.Add(1)
	}
}

func (r *registry) get(id string) (*Interview, bool) {
	if v, ok := r.sessions.Load(id); ok {
		return v.(*Interview), true
	}
	return nil, false
}

func (r *registry) remove(id string) {
	if v, ok := r.sessions.LoadAndDelete(id); ok {
		v.(*Interview).stop()
		r.count.Add(-1)
	}
}

func (r *registry) closeAll() {
	r.sessions.Range(func(key, _ any) bool {
		if id, ok := key.(string); ok {
			r.remove(id)
		}
		return true
	})
}

func (r *registry) Count() int64 {
	return r.count.Load()
}

func (r *registry) setDraining(v bool) {
	r.draining.Store(v)
}

func (r *registry) isDraining() bool {
	return r.draining.Load()
}

func (r *registry) waitForEmpty(ctx context.Context, interval time.Duration) bool {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if r.Count() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
