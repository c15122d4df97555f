package realtime

import (
	"sync"
)

// Handle is one live connection as seen by the registry.
type Handle interface {
	ID() string
	Send(Envelope) error
}

// Registry maps an identity to the set of its open sessions. It is safe for
// concurrent use by unrelated handshakes and disconnects.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]map[string]Handle
	total    int
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]map[string]Handle)}
}

// Register adds h to identityID's set. Registering the same handle twice is a
// no-op.
func (r *Registry) Register(identityID string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sessions[identityID]
	if !ok {
		set = make(map[string]Handle)
		r.sessions[identityID] = set
	}
	if _, dup := set[h.ID()]; dup {
		return
	}
	set[h.ID()] = h
	r.total++
}

// Unregister removes h; absent handles are ignored.
func (r *Registry) Unregister(identityID string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sessions[identityID]
	if !ok {
		return
	}
	if _, ok := set[h.ID()]; !ok {
		return
	}
	delete(set, h.ID())
	r.total--
	if len(set) == 0 {
		delete(r.sessions, identityID)
	}
}

// SessionsFor returns a snapshot; callers may send to it without holding any
// registry lock.
func (r *Registry) SessionsFor(identityID string) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.sessions[identityID]
	out := make([]Handle, 0, len(set))
	for _, h := range set {
		out = append(out, h)
	}
	return out
}

// Count is the number of open sessions across all identities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}
