package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size. Updates carry whole document contents.
	maxMessageSize = 1 << 20

	// Outbound frames queued per connection before drops start.
	sendBufferSize = 64
)

var (
	errConnClosed     = errors.New("connection closed")
	errSendBufferFull = errors.New("send buffer full")
)

// Conn is one client connection. The transport layer owns it exclusively;
// other components hold it only as an opaque member of a room.
type Conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

// Send enqueues a frame for delivery. It never blocks: a closed connection
// or a full buffer is reported as an error and the frame is dropped. Frames
// accepted by Send are delivered in the order they were accepted.
func (c *Conn) Send(frame []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		return errSendBufferFull
	}
}

// close releases the transport. Safe to call any number of times.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			c.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			c.ws.Close()
		}
	})
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with periodic pings. One writePump goroutine per connection; it is
// the only writer on the underlying websocket.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				logrus.WithFields(logrus.Fields{
					"conn_id": c.id,
					"error":   err,
				}).Debug("write failed, dropping connection")
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logrus.WithField("conn_id", c.id).Debug("ping failed, dropping connection")
				return
			}
		case <-c.done:
			return
		}
	}
}
