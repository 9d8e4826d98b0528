package proxy

import (
	"context"
	"sync"

	"github.com/HendryAvila/sparkle/internal/acp"
)

// PendingSet tracks sessions whose embodiment has not settled yet.
//
// Every membership change closes the current wake channel and installs a
// fresh one, so a close is a broadcast to all waiters across all sessions.
// Waiters read the channel and the membership under the same lock, which
// means a change between the check and the wait cannot be missed.
type PendingSet struct {
	mu       sync.Mutex
	sessions map[acp.SessionID]struct{}
	wake     chan struct{}
}

// NewPendingSet returns an empty set.
func NewPendingSet() *PendingSet {
	return &PendingSet{
		sessions: make(map[acp.SessionID]struct{}),
		wake:     make(chan struct{}),
	}
}

// Insert marks id as pending.
func (p *PendingSet) Insert(id acp.SessionID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[id] = struct{}{}
}

// Remove clears id and wakes every waiter. It reports whether id was
// pending.
func (p *PendingSet) Remove(id acp.SessionID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.sessions[id]
	delete(p.sessions, id)
	close(p.wake)
	p.wake = make(chan struct{})
	return ok
}

// Contains reports whether id is pending.
func (p *PendingSet) Contains(id acp.SessionID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.sessions[id]
	return ok
}

// Len returns the number of pending sessions.
func (p *PendingSet) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Wait blocks until id is observed absent or ctx is done.
func (p *PendingSet) Wait(ctx context.Context, id acp.SessionID) error {
	for {
		p.mu.Lock()
		wake := p.wake
		_, pending := p.sessions[id]
		p.mu.Unlock()

		if !pending {
			return nil
		}

		select {
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
