package gateway

import (
	"slices"
	"strings"
	"sync"

	"github.com/sharetube/watchsync/internal/auth"
)

// Registry tracks live sessions and the single room each one is attached to.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	rooms    map[string]map[string]*Session
	current  map[string]string
	closed   bool
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		rooms:    make(map[string]map[string]*Session),
		current:  make(map[string]string),
	}
}

func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if _, ok := r.sessions[s.id]; ok {
		return ErrAlreadyExists
	}
	r.sessions[s.id] = s

	return nil
}

// Remove forgets the session and returns the room it was attached to, if any.
func (r *Registry) Remove(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, attached := r.detach(sessionID)
	delete(r.sessions, sessionID)

	return roomID, attached
}

// Join attaches the session to roomID, detaching it from any other room first.
// It returns the room the session was detached from.
func (r *Registry) Join(sessionID, roomID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return "", ErrClosed
	}

	prev := r.current[sessionID]
	if prev == roomID {
		return "", nil
	}
	r.detach(sessionID)

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]*Session)
		r.rooms[roomID] = members
	}
	members[sessionID] = s
	r.current[sessionID] = roomID

	return prev, nil
}

// Leave detaches the session only when it is attached to roomID.
func (r *Registry) Leave(sessionID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current[sessionID] != roomID {
		return false
	}
	r.detach(sessionID)

	return true
}

func (r *Registry) detach(sessionID string) (string, bool) {
	roomID, ok := r.current[sessionID]
	if !ok {
		return "", false
	}

	delete(r.current, sessionID)
	if members := r.rooms[roomID]; members != nil {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}

	return roomID, true
}

func (r *Registry) CurrentRoom(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomID, ok := r.current[sessionID]
	return roomID, ok
}

// Peers returns the sessions attached to roomID other than exceptSessionID.
func (r *Registry) Peers(roomID, exceptSessionID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]*Session, 0, len(r.rooms[roomID]))
	for id, s := range r.rooms[roomID] {
		if id != exceptSessionID {
			peers = append(peers, s)
		}
	}

	return peers
}

// Roster lists the distinct users attached to roomID ordered by username.
func (r *Registry) Roster(roomID string) []auth.Identity {
	r.mu.RLock()
	seen := make(map[string]bool, len(r.rooms[roomID]))
	roster := make([]auth.Identity, 0, len(r.rooms[roomID]))
	for _, s := range r.rooms[roomID] {
		if seen[s.identity.UserID] {
			continue
		}
		seen[s.identity.UserID] = true
		roster = append(roster, s.identity)
	}
	r.mu.RUnlock()

	slices.SortFunc(roster, func(a, b auth.Identity) int {
		if c := strings.Compare(a.Username, b.Username); c != 0 {
			return c
		}
		return strings.Compare(a.UserID, b.UserID)
	})

	return roster
}

// Close makes every later Add fail with ErrClosed and returns the sessions
// registered so far.
func (r *Registry) Close() []*Session {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	return r.All()
}

func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}

	return all
}
