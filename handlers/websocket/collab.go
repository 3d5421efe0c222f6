package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"collabdocs-server/core"
)

// Hub owns the synchronization state for every live connection: the room
// registry, the presence tracker and the broadcast relay. One Hub per
// process; handlers receive it explicitly rather than through globals so
// tests can run several independent hubs side by side.
type Hub struct {
	registry *Registry
	presence *Presence
	relay    *Relay

	store    core.DocumentStore
	activity core.RoomActivity
	auth     core.Authorizer

	upgrader websocket.Upgrader
}

// NewHub wires a hub over the given document store. activity may be nil
// when the store does not track room activity. A nil authorizer admits
// every join, which is the reference behavior.
func NewHub(store core.DocumentStore, activity core.RoomActivity, auth core.Authorizer) *Hub {
	if auth == nil {
		auth = core.AllowAll{}
	}
	registry := NewRegistry()
	return &Hub{
		registry: registry,
		presence: NewPresence(),
		relay:    NewRelay(registry),
		store:    store,
		activity: activity,
		auth:     auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ActiveRooms reports the member count of every room with at least one
// live connection.
func (h *Hub) ActiveRooms() map[string]int {
	return h.registry.ActiveRooms()
}

// ServeHTTP upgrades the request and runs the connection's read loop until
// the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}

	conn := newConn(ws)
	logrus.WithField("conn_id", conn.ID()).Debug("connection open")

	go conn.writePump()
	h.readLoop(conn)
}

// readLoop is the one logical worker per connection. It dispatches frames
// in arrival order, so two edits from the same source are always relayed
// in the order they were sent.
func (h *Hub) readLoop(conn *Conn) {
	defer h.disconnect(conn)

	conn.ws.SetReadLimit(maxMessageSize)
	conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithFields(logrus.Fields{
					"conn_id": conn.ID(),
					"error":   err,
				}).Debug("read failed")
			}
			return
		}

		msg, err := decodeClientMessage(data)
		if err != nil {
			// Malformed frames are dropped; the connection stays open.
			logrus.WithFields(logrus.Fields{
				"conn_id": conn.ID(),
				"error":   err,
			}).Debug("dropping malformed message")
			continue
		}

		switch msg.Type {
		case TypeJoin:
			h.handleJoin(conn, msg)
		case TypeUpdate:
			h.handleUpdate(conn, msg)
		}
	}
}

// handleJoin registers the connection in the requested room, records its
// presence and seeds it with the persisted document content. A join for
// the room the connection is already in refreshes its presence entry; a
// join for a different room migrates it (leave old room, join new room).
func (h *Hub) handleJoin(conn *Conn, msg *ClientMessage) {
	log := logrus.WithFields(logrus.Fields{
		"conn_id": conn.ID(),
		"room_id": msg.DocID,
	})

	doc, err := h.loadDocument(msg.DocID)
	if err != nil {
		log.WithError(err).Warn("document load failed, seeding empty content")
	}

	if !h.auth.CanEdit(msg.User, doc) {
		log.Warn("join refused by authorizer")
		return
	}

	previous := h.registry.Join(conn, msg.DocID)
	if previous != "" && previous != msg.DocID {
		// Migration: tell the old room this connection is gone.
		if oldRoom, remaining, ok := h.presence.RecordLeave(conn); ok && len(remaining) > 0 {
			h.broadcastUsers(oldRoom, remaining)
		}
		log.WithField("previous_room", previous).Debug("connection moved rooms")
	}

	users := h.presence.RecordJoin(conn, msg.DocID, msg.User)
	h.broadcastUsers(msg.DocID, users)

	content := ""
	if doc != nil {
		content = doc.Content
	}
	if err := conn.Send(encodeInit(msg.DocID, content)); err != nil {
		log.WithError(err).Debug("init delivery failed")
	}

	h.touchRoom(msg.DocID)
	log.Info("connection joined room")
}

// handleUpdate relays an edit to the source's room peers. Edits from a
// connection that has not joined any room are dropped.
func (h *Hub) handleUpdate(conn *Conn, msg *ClientMessage) {
	docID, ok := h.registry.RoomOf(conn)
	if !ok {
		logrus.WithField("conn_id", conn.ID()).Debug("dropping update before join")
		return
	}

	h.relay.Broadcast(conn, encodeUpdate(msg.Content))
	h.touchRoom(docID)
}

// disconnect tears down a connection's room and presence state. It runs
// exactly once per connection no matter how the close was observed.
func (h *Hub) disconnect(conn *Conn) {
	conn.close()

	docID, remaining, ok := h.presence.RecordLeave(conn)
	h.registry.Leave(conn)
	if ok {
		if len(remaining) > 0 {
			h.broadcastUsers(docID, remaining)
		}
		logrus.WithFields(logrus.Fields{
			"conn_id": conn.ID(),
			"room_id": docID,
		}).Info("connection left room")
	} else {
		logrus.WithField("conn_id", conn.ID()).Debug("connection closed")
	}
}

func (h *Hub) broadcastUsers(docID string, users []core.Identity) {
	frame := encodeUsers(users)
	for _, member := range h.registry.MembersOf(docID) {
		if err := member.Send(frame); err != nil {
			logrus.WithFields(logrus.Fields{
				"conn_id": member.ID(),
				"error":   err,
			}).Debug("presence delivery failed")
		}
	}
}

func (h *Hub) loadDocument(docID string) (*core.Document, error) {
	if h.store == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	doc, err := h.store.Find(ctx, docID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return doc, nil
}

func (h *Hub) touchRoom(docID string) {
	if h.activity == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := h.activity.TouchRoom(ctx, docID); err != nil {
		logrus.WithFields(logrus.Fields{
			"room_id": docID,
			"error":   err,
		}).Debug("room touch failed")
	}
}
