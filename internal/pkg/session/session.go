// Package session tracks gateway session state across reconnect attempts.
package session

import (
	"fmt"
	"sync"
)

// Session is the resumable gateway session state.
// ID is the opaque session id assigned by the gateway on READY,
// LastSequence the last event sequence number seen on that session.
type Session struct {
	ID           string
	LastSequence uint64
	Resuming     bool
}

// CanResume reports whether enough state is known to attempt a resume.
// Both the session id and at least one event sequence are required,
// otherwise the next connect must perform a fresh identify.
func (s Session) CanResume() bool {
	return s.Resuming && s.ID != "" && s.LastSequence > 0
}

func (s Session) String() string {
	id := s.ID
	if id == "" {
		id = "<none>"
	}
	return fmt.Sprintf("session %s seq %d", id, s.LastSequence)
}

// Store holds session state shared between run instances.
type Store interface {
	Get() Session
	SetSequence(seq uint64)
	SetID(id string)
	SetResuming(resuming bool)
	Clear()
}

// MemoryStore is an in-memory Store. State does not survive a process
// restart; a fresh identify is performed on every start.
type MemoryStore struct {
	session Session
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns a copy of the current session state.
func (p *MemoryStore) Get() Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session
}

// SetSequence overwrites the last seen event sequence.
// Values are stored as received; monotonicity is the gateway's promise.
func (p *MemoryStore) SetSequence(seq uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session.LastSequence = seq
}

// SetID overwrites the session id.
func (p *MemoryStore) SetID(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session.ID = id
}

// SetResuming toggles the resume intent for the next connect.
func (p *MemoryStore) SetResuming(resuming bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session.Resuming = resuming
}

// Clear wipes all session state, forcing a fresh identify.
func (p *MemoryStore) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = Session{}
}
