package ingest

import (
	"context"
	"sync"
)

// hostLocks serializes work per hostname, work on different hostnames runs in parallel.
//
// An entry lives while at least one caller holds or waits for it.
type hostLocks struct {
	mu    sync.Mutex
	locks map[string]*hostLock
}

type hostLock struct {
	// sem holds a token while the lock is free
	sem  chan struct{}
	refs int
}

func newHostLocks() *hostLocks {
	return &hostLocks{locks: map[string]*hostLock{}}
}

// Lock blocks until the lock of hostname is held or ctx is done, the
// returned func releases the lock.
func (h *hostLocks) Lock(ctx context.Context, hostname string) (func(), error) {
	h.mu.Lock()

	l, exists := h.locks[hostname]
	if !exists {
		l = &hostLock{sem: make(chan struct{}, 1)}
		l.sem <- struct{}{}
		h.locks[hostname] = l
	}

	l.refs++
	h.mu.Unlock()

	select {
	case <-l.sem:
		return func() {
			l.sem <- struct{}{}
			h.release(hostname, l)
		}, nil
	case <-ctx.Done():
		h.release(hostname, l)
		return nil, ctx.Err()
	}
}

func (h *hostLocks) release(hostname string, l *hostLock) {
	h.mu.Lock()
	defer h.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(h.locks, hostname)
	}
}

// len returns the number of hostnames with a held or awaited lock.
func (h *hostLocks) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.locks)
}
