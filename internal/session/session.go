// Package session tracks every open connection and what it has declared
// itself to be.
//
// The Registry is shared by the hub's dispatch goroutine, which adds,
// removes and mutates sessions, and the poll loop, which only reads.
package session

import (
	"sort"
	"sync"
)

// ID identifies a connection for its whole lifetime.
type ID = uint64

// Responder sends frames back to one connection. Implementations must not
// block: the dispatch loop calls them while holding the registry lock.
type Responder interface {
	SendText(data []byte)
	SendBinary(data []byte)
	Close()
}

// Session is the per-connection state.
type Session struct {
	Role      Role
	Name      string
	URL       string
	Naughty   uint32
	Responder Responder
}

// Info is the public view of a session.
type Info struct {
	ID      ID     `json:"id"`
	Role    Role   `json:"role"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	Naughty uint32 `json:"naughty"`
}

// Registry maps connection ids to sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[ID]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[ID]*Session),
	}
}

// Add registers a new connection with role Unknown, replacing any previous
// session with the same id.
func (r *Registry) Add(id ID, responder Responder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = &Session{Responder: responder}
}

// Remove drops the session and reports whether it existed.
func (r *Registry) Remove(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Update runs fn on the session with exclusive access. If fn returns false
// the session is removed. Update reports whether the session was found.
func (r *Registry) Update(id ID, fn func(s *Session) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	if !fn(s) {
		delete(r.sessions, id)
	}
	return true
}

// Get returns a copy of the session.
func (r *Registry) Get(id ID) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Each calls fn for every session under the read lock. fn must not call
// back into the registry.
func (r *Registry) Each(fn func(id ID, s Session)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, s := range r.sessions {
		fn(id, *s)
	}
}

// Len is the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// List returns every session with the given role, ordered by id.
func (r *Registry) List(role Role) []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.sessions))
	for id, s := range r.sessions {
		if s.Role != role {
			continue
		}
		out = append(out, Info{ID: id, Role: s.Role, Name: s.Name, URL: s.URL, Naughty: s.Naughty})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
