// Package identity abstracts the identity collaborator: something that can
// say who the user is and whether their session is currently valid. Sync and
// the generator watermarks mean nothing without a stable user id.
package identity

import "sync"

// Provider yields the current user id and authentication state.
type Provider interface {
	UserID() string
	Authenticated() bool
}

// SessionProvider is a Provider fed by the agent's login flow. Safe for
// concurrent use.
type SessionProvider struct {
	mu  sync.RWMutex
	uid string
}

func NewSessionProvider() *SessionProvider {
	return &SessionProvider{}
}

// SetUser installs the authenticated user id.
func (p *SessionProvider) SetUser(uid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uid = uid
}

// Clear drops the session.
func (p *SessionProvider) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uid = ""
}

func (p *SessionProvider) UserID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.uid
}

func (p *SessionProvider) Authenticated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.uid != ""
}
