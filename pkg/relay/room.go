package relay

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"qbreach/pkg/messages"
	"qbreach/pkg/quantum"
)

// client is one WebSocket connection known to the relay.
type client struct {
	id      uuid.UUID
	conn    *websocket.Conn
	role    quantum.Player
	room    *room
	writeMu sync.Mutex
}

// send serializes and writes a message to the client. The write mutex
// keeps concurrent relays from interleaving frames on the connection.
func (c *client) send(msgType string, payload interface{}) error {
	msg, err := messages.New(msgType, payload)
	if err != nil {
		return fmt.Errorf("failed to create message: %v", err)
	}
	b, err := messages.SerializeMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return fmt.Errorf("failed to write message: %v", err)
	}
	return nil
}

// room holds up to two clients. The relay never inspects game state, it
// only pairs connections and forwards moves between them.
type room struct {
	id    string
	slots map[quantum.Player]*client
}

func newRoom(id string) *room {
	return &room{
		id:    id,
		slots: make(map[quantum.Player]*client),
	}
}

// vacantRole returns the next open role, blue first.
func (r *room) vacantRole() (quantum.Player, bool) {
	if r.slots[quantum.PlayerBlue] == nil {
		return quantum.PlayerBlue, true
	}
	if r.slots[quantum.PlayerRed] == nil {
		return quantum.PlayerRed, true
	}
	return quantum.PlayerNone, false
}

func (r *room) full() bool {
	return r.slots[quantum.PlayerBlue] != nil && r.slots[quantum.PlayerRed] != nil
}

func (r *room) empty() bool {
	return r.slots[quantum.PlayerBlue] == nil && r.slots[quantum.PlayerRed] == nil
}

// occupants returns the clients currently in the room, blue first.
func (r *room) occupants() []*client {
	var out []*client
	for _, role := range []quantum.Player{quantum.PlayerBlue, quantum.PlayerRed} {
		if c := r.slots[role]; c != nil {
			out = append(out, c)
		}
	}
	return out
}

// peerOf returns the other occupant, or nil if the client is alone.
func (r *room) peerOf(c *client) *client {
	for _, other := range r.slots {
		if other != nil && other.id != c.id {
			return other
		}
	}
	return nil
}

func (r *room) remove(c *client) {
	for role, other := range r.slots {
		if other != nil && other.id == c.id {
			delete(r.slots, role)
		}
	}
}
