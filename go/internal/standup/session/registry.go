package session

import (
	"sort"
	"time"
)

// Registry maps instance ids to sessions. It has no lock; every call must
// come from the single goroutine that owns it.
type Registry struct {
	sessions map[string]*Session
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for id
func (r *Registry) Get(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// GetOrCreate returns the session for id, creating an empty one if absent.
// The new session removes itself once its connection set empties.
func (r *Registry) GetOrCreate(id string, now time.Time) (s *Session, created bool) {
	if existing, ok := r.sessions[id]; ok {
		return existing, false
	}

	s = newSession(id, now, nil)
	s.conns.onEmpty = func() {
		// only drop the record this set belongs to
		if current, ok := r.sessions[id]; ok && current == s {
			delete(r.sessions, id)
		}
	}
	r.sessions[id] = s
	return s, true
}

// Remove deletes the session for id
func (r *Registry) Remove(id string) {
	delete(r.sessions, id)
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	return len(r.sessions)
}

// ConnectionCount returns the number of peers across all sessions
func (r *Registry) ConnectionCount() int {
	total := 0
	for _, s := range r.sessions {
		total += s.conns.Len()
	}
	return total
}

// IDs returns the live instance ids in sorted order
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
