package session

import (
	"slices"
	"sync"

	"github.com/mcoot/quizmatch/internal/model"
)

type membership struct {
	room model.AccessCode
	name string
}

// Rooms tracks which connections receive a match's broadcasts. Membership is
// independent of the player roster: managers, observers and players all share
// one room per access code. A connection is in at most one match room.
type Rooms struct {
	mu      sync.RWMutex
	members map[model.AccessCode]map[string]struct{}
	conns   map[string]membership
}

// NewRooms creates an empty room registry
func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[model.AccessCode]map[string]struct{}),
		conns:   make(map[string]membership),
	}
}

// Join puts the connection in the room under name, leaving any other room.
// It returns the room that was left, or "".
func (r *Rooms) Join(connID string, code model.AccessCode, name string) model.AccessCode {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left model.AccessCode
	if prev, ok := r.conns[connID]; ok && prev.room != code {
		r.remove(connID, prev.room)
		left = prev.room
	}

	if r.members[code] == nil {
		r.members[code] = make(map[string]struct{})
	}
	r.members[code][connID] = struct{}{}
	r.conns[connID] = membership{room: code, name: name}
	return left
}

// remove drops connID from the room's member set. Callers hold the lock.
func (r *Rooms) remove(connID string, code model.AccessCode) {
	members := r.members[code]
	delete(members, connID)
	if len(members) == 0 {
		delete(r.members, code)
	}
}

// Leave takes the connection out of the room. It reports whether it was in it.
func (r *Rooms) Leave(connID string, code model.AccessCode) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.conns[connID]
	if !ok || m.room != code {
		return false
	}
	r.remove(connID, code)
	delete(r.conns, connID)
	return true
}

// Disconnect forgets the connection and returns the room it was in
func (r *Rooms) Disconnect(connID string) (model.AccessCode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	r.remove(connID, m.room)
	delete(r.conns, connID)
	return m.room, true
}

// Evict empties the room and returns the connections that were in it
func (r *Rooms) Evict(code model.AccessCode) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := make([]string, 0, len(r.members[code]))
	for connID := range r.members[code] {
		evicted = append(evicted, connID)
		delete(r.conns, connID)
	}
	delete(r.members, code)
	slices.Sort(evicted)
	return evicted
}

// Members returns the connections in the room, sorted
func (r *Rooms) Members(code model.AccessCode) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]string, 0, len(r.members[code]))
	for connID := range r.members[code] {
		members = append(members, connID)
	}
	slices.Sort(members)
	return members
}

// RoomOf returns the room the connection is in
func (r *Rooms) RoomOf(connID string) (model.AccessCode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.conns[connID]
	return m.room, ok
}

// NameOf returns the name the connection joined with
func (r *Rooms) NameOf(connID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[connID].name
}

// InRoom reports whether the connection is a member of the room
func (r *Rooms) InRoom(connID string, code model.AccessCode) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.conns[connID]
	return ok && m.room == code
}
