package websocket

import (
	"sync"

	"collabdocs-server/core"
)

// Presence tracks the identity attached to each connection's room
// membership and derives the per-room "who's online" snapshot. It keeps no
// history; an entry lives exactly as long as the connection's membership.
type Presence struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Conn]core.Identity
	roomsOf map[*Conn]string
}

func NewPresence() *Presence {
	return &Presence{
		rooms:   make(map[string]map[*Conn]core.Identity),
		roomsOf: make(map[*Conn]string),
	}
}

// RecordJoin attaches identity to the connection's entry in docID and
// returns the room's snapshot after the change. Recording a join for a
// connection already present replaces its entry.
func (p *Presence) RecordJoin(c *Conn, docID string, identity core.Identity) []core.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prev, ok := p.roomsOf[c]; ok && prev != docID {
		p.removeLocked(c, prev)
	}

	room, ok := p.rooms[docID]
	if !ok {
		room = make(map[*Conn]core.Identity)
		p.rooms[docID] = room
	}
	room[c] = identity
	p.roomsOf[c] = docID
	return snapshotLocked(room)
}

// RecordLeave removes the connection's entry and returns the room it left
// together with the remaining snapshot. A connection with no entry is a
// no-op.
func (p *Presence) RecordLeave(c *Conn) (docID string, remaining []core.Identity, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	docID, ok = p.roomsOf[c]
	if !ok {
		return "", nil, false
	}
	p.removeLocked(c, docID)
	return docID, snapshotLocked(p.rooms[docID]), true
}

func (p *Presence) removeLocked(c *Conn, docID string) {
	delete(p.roomsOf, c)
	if room, ok := p.rooms[docID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(p.rooms, docID)
		}
	}
}

// Snapshot returns the identities currently present in docID.
func (p *Presence) Snapshot(docID string) []core.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return snapshotLocked(p.rooms[docID])
}

func snapshotLocked(room map[*Conn]core.Identity) []core.Identity {
	users := make([]core.Identity, 0, len(room))
	for _, identity := range room {
		users = append(users, identity)
	}
	return users
}
