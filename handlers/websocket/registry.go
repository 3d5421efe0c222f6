package websocket

import "sync"

// Registry maps document ids to the set of connections currently joined.
// Rooms are created on first join and deleted when their last member
// leaves; no history is retained. All methods are safe for concurrent use
// under a single registry-wide lock.
type Registry struct {
	mu         sync.RWMutex
	rooms      map[string]map[*Conn]struct{}
	membership map[*Conn]string
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:      make(map[string]map[*Conn]struct{}),
		membership: make(map[*Conn]string),
	}
}

// Join registers the connection under docID. Joining the room it is
// already in is a no-op; joining a different room moves the connection
// (leave-then-join). It returns the room the connection previously
// belonged to, or "" if none.
func (r *Registry) Join(c *Conn, docID string) (previous string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous = r.membership[c]
	if previous == docID {
		return previous
	}
	if previous != "" {
		r.removeLocked(c, previous)
	}

	room, ok := r.rooms[docID]
	if !ok {
		room = make(map[*Conn]struct{})
		r.rooms[docID] = room
	}
	room[c] = struct{}{}
	r.membership[c] = docID
	return previous
}

// Leave removes the connection from whatever room it belongs to and
// reports that room. A connection with no membership is a no-op.
func (r *Registry) Leave(c *Conn) (docID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	docID, ok = r.membership[c]
	if !ok {
		return "", false
	}
	r.removeLocked(c, docID)
	return docID, true
}

func (r *Registry) removeLocked(c *Conn, docID string) {
	delete(r.membership, c)
	if room, ok := r.rooms[docID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(r.rooms, docID)
		}
	}
}

// RoomOf reports the room the connection currently belongs to.
func (r *Registry) RoomOf(c *Conn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	docID, ok := r.membership[c]
	return docID, ok
}

// PeersOf returns every other connection in the same room as c. The slice
// is a snapshot taken under the lock; membership changes after the call do
// not affect it.
func (r *Registry) PeersOf(c *Conn) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docID, ok := r.membership[c]
	if !ok {
		return nil
	}
	room := r.rooms[docID]
	peers := make([]*Conn, 0, len(room)-1)
	for member := range room {
		if member != c {
			peers = append(peers, member)
		}
	}
	return peers
}

// MembersOf returns every connection in the given room, including any
// caller-owned one.
func (r *Registry) MembersOf(docID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[docID]
	members := make([]*Conn, 0, len(room))
	for member := range room {
		members = append(members, member)
	}
	return members
}

// ActiveRooms reports the member count of every live room.
func (r *Registry) ActiveRooms() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make(map[string]int, len(r.rooms))
	for id, room := range r.rooms {
		rooms[id] = len(room)
	}
	return rooms
}
