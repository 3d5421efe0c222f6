package websocket

import "github.com/sirupsen/logrus"

// Relay fans an edit out to every room peer of the source connection. It
// holds no state of its own: each broadcast runs over a fresh membership
// snapshot, and document content passes through untouched.
type Relay struct {
	registry *Registry
}

func NewRelay(registry *Registry) *Relay {
	return &Relay{registry: registry}
}

// Broadcast delivers frame to every peer of src, excluding src itself.
// Delivery is best effort per peer: a failed send is logged and skipped,
// never surfaced to the source. The dead peer's own close event is what
// cleans up its membership.
func (r *Relay) Broadcast(src *Conn, frame []byte) {
	for _, peer := range r.registry.PeersOf(src) {
		if err := peer.Send(frame); err != nil {
			logrus.WithFields(logrus.Fields{
				"conn_id": peer.ID(),
				"error":   err,
			}).Debug("peer delivery failed")
		}
	}
}
