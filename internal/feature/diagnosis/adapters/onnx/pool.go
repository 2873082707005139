package onnx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrPoolClosed is returned by acquire after Close.
var ErrPoolClosed = errors.New("session pool is closed")

// session is one loaded model instance. It is not safe for concurrent use;
// the pool hands each session to one caller at a time.
type session interface {
	run(input []float32) ([]float32, error)
	destroy()
}

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	Size            int
	Available       int
	Acquired        int64
	Released        int64
	AcquireFailures int64
}

type sessionPool struct {
	sessions       chan session
	size           int
	acquireTimeout time.Duration

	mu     sync.RWMutex
	closed bool

	acquired        atomic.Int64
	released        atomic.Int64
	acquireFailures atomic.Int64
}

func newSessionPool(size int, acquireTimeout time.Duration, factory func() (session, error)) (*sessionPool, error) {
	if size <= 0 {
		size = 1
	}
	p := &sessionPool{
		sessions:       make(chan session, size),
		size:           size,
		acquireTimeout: acquireTimeout,
	}
	for i := 0; i < size; i++ {
		s, err := factory()
		if err != nil {
			p.close()
			return nil, fmt.Errorf("create session %d/%d: %w", i+1, size, err)
		}
		p.sessions <- s
	}
	return p, nil
}

// acquire waits for a free session, bounded by ctx and the acquire timeout.
func (p *sessionPool) acquire(ctx context.Context) (session, error) {
	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}

	select {
	case s, ok := <-p.sessions:
		if !ok {
			p.acquireFailures.Add(1)
			return nil, ErrPoolClosed
		}
		p.acquired.Add(1)
		return s, nil
	case <-ctx.Done():
		p.acquireFailures.Add(1)
		return nil, fmt.Errorf("acquire session: %w", ctx.Err())
	}
}

func (p *sessionPool) release(s session) {
	if s == nil {
		return
	}
	p.released.Add(1)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		s.destroy()
		return
	}
	p.sessions <- s
}

// close destroys idle sessions. Sessions still checked out are destroyed on release.
func (p *sessionPool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.sessions)
	for s := range p.sessions {
		s.destroy()
	}
}

func (p *sessionPool) stats() PoolStats {
	return PoolStats{
		Size:            p.size,
		Available:       len(p.sessions),
		Acquired:        p.acquired.Load(),
		Released:        p.released.Load(),
		AcquireFailures: p.acquireFailures.Load(),
	}
}
