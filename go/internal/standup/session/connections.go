package session

import "errors"

// ErrAlreadyTagged is returned when a connection that already represents one
// participant is tagged with a different one.
var ErrAlreadyTagged = errors.New("connection already tagged with another participant")

// Peer is a live transport connection that can receive serialized messages
type Peer interface {
	ID() string
	Send(data []byte) error
}

type peerEntry struct {
	peer   Peer
	userID string
}

// ConnectionSet holds the peers of one session in attach order
type ConnectionSet struct {
	entries []*peerEntry
	onEmpty func()
}

func newConnectionSet(onEmpty func()) *ConnectionSet {
	return &ConnectionSet{onEmpty: onEmpty}
}

// Add attaches a peer; adding the same peer twice is a no-op
func (cs *ConnectionSet) Add(peer Peer) {
	if cs.find(peer) != nil {
		return
	}
	cs.entries = append(cs.entries, &peerEntry{peer: peer})
}

// Remove detaches a peer and returns the participant it was tagged with.
// The owner is notified when the last peer leaves.
func (cs *ConnectionSet) Remove(peer Peer) (userID string, ok bool) {
	for i, e := range cs.entries {
		if e.peer != peer {
			continue
		}
		cs.entries = append(cs.entries[:i], cs.entries[i+1:]...)
		if len(cs.entries) == 0 && cs.onEmpty != nil {
			cs.onEmpty()
		}
		return e.userID, true
	}
	return "", false
}

// Tag binds a participant to a peer. Tagging again with the same id is fine.
func (cs *ConnectionSet) Tag(peer Peer, userID string) error {
	e := cs.find(peer)
	if e == nil {
		return nil
	}
	if e.userID != "" && e.userID != userID {
		return ErrAlreadyTagged
	}
	e.userID = userID
	return nil
}

// TagOf returns the participant a peer represents, or "" when untagged
func (cs *ConnectionSet) TagOf(peer Peer) string {
	if e := cs.find(peer); e != nil {
		return e.userID
	}
	return ""
}

// Contains reports whether peer is attached
func (cs *ConnectionSet) Contains(peer Peer) bool {
	return cs.find(peer) != nil
}

// Len returns the number of attached peers
func (cs *ConnectionSet) Len() int {
	return len(cs.entries)
}

// ForEach calls fn for every peer in attach order
func (cs *ConnectionSet) ForEach(fn func(peer Peer)) {
	// snapshot so fn may not disturb iteration
	peers := make([]Peer, len(cs.entries))
	for i, e := range cs.entries {
		peers[i] = e.peer
	}
	for _, p := range peers {
		fn(p)
	}
}

func (cs *ConnectionSet) find(peer Peer) *peerEntry {
	for _, e := range cs.entries {
		if e.peer == peer {
			return e
		}
	}
	return nil
}
