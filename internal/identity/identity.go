// Package identity exposes the caller's wallet identity to the core.
// The identity is an unverified address string; nothing here checks signatures.
package identity

import (
	"strings"
	"sync"
)

// Provider reports whether a wallet is connected and its address.
type Provider interface {
	Connected() bool
	Identity() (string, bool)
}

// Static is a Provider backed by a fixed, replaceable address.
type Static struct {
	mu      sync.RWMutex
	address string
}

// NewStatic returns a Provider connected as address. An empty address is disconnected.
func NewStatic(address string) *Static {
	return &Static{address: strings.TrimSpace(address)}
}

// Connected reports whether an address is set.
func (s *Static) Connected() bool {
	_, ok := s.Identity()
	return ok
}

// Identity returns the address, if connected.
func (s *Static) Identity() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address, s.address != ""
}

// Connect switches to address.
func (s *Static) Connect(address string) {
	s.mu.Lock()
	s.address = strings.TrimSpace(address)
	s.mu.Unlock()
}

// Disconnect clears the address.
func (s *Static) Disconnect() {
	s.Connect("")
}

// Require returns the connected address or false.
func Require(p Provider) (string, bool) {
	if p == nil || !p.Connected() {
		return "", false
	}
	addr, ok := p.Identity()
	if !ok || strings.TrimSpace(addr) == "" {
		return "", false
	}
	return addr, true
}
