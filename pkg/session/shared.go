package session

import (
	"sync"

	"github.com/user/av1session/pkg/picture"
	"github.com/user/av1session/pkg/ports"
)

// Shared serializes access to a Session for callers that use it from
// several goroutines.
type Shared struct {
	mu sync.Mutex
	s  *Session
}

// NewShared wraps s. The caller must not use s directly afterwards.
func NewShared(s *Session) *Shared {
	return &Shared{s: s}
}

// Engine returns the name of the engine behind the session.
func (sh *Shared) Engine() string {
	return sh.s.Engine()
}

// Submit calls Session.Submit under the lock.
func (sh *Shared) Submit(data []byte) ([]*picture.Picture, error) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.s.Submit(data)
}

// SubmitUnit calls Session.SubmitUnit under the lock.
func (sh *Shared) SubmitUnit(unit ports.Unit) ([]*picture.Picture, error) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.s.SubmitUnit(unit)
}

// Drain calls Session.Drain under the lock.
func (sh *Shared) Drain() ([]*picture.Picture, error) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.s.Drain()
}

// Flush calls Session.Flush under the lock.
func (sh *Shared) Flush() {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.s.Flush()
}

// Close calls Session.Close under the lock.
func (sh *Shared) Close() {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.s.Close()
}
