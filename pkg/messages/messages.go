package messages

import "encoding/json"

// Message types exchanged between a client and the relay.
const (
	// Client to relay.
	MessageTypeJoinRoom = "join_room"
	MessageTypeMakeMove = "make_move"

	// Relay to client.
	MessageTypeRoleAssigned = "role_assigned"
	MessageTypeGameStart    = "game_start"
	MessageTypeOpponentMove = "opponent_move"
	MessageTypePlayerLeft   = "player_left"
)

// Message represents a generic message for serialization/deserialization.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinRoom announces room-join intent. Sending it again on an existing
// connection is an idempotent rejoin.
type JoinRoom struct {
	RoomID string `json:"roomId"`
}

// MakeMove relays a local move to the peer. The seed is generated by the
// mover and must be replayed verbatim on the other side.
type MakeMove struct {
	RoomID string `json:"roomId"`
	Cell   int    `json:"cell"`
	Gate   string `json:"gate"`
	Seed   int64  `json:"seed"`
}

// RoleAssigned fixes which side this client plays.
type RoleAssigned struct {
	Role string `json:"role"`
}

// OpponentMove is the relayed echo of the peer's move.
type OpponentMove struct {
	Cell int    `json:"cell"`
	Gate string `json:"gate"`
	Seed int64  `json:"seed"`
}

// New builds a Message of the given type around a JSON payload.
func New(msgType string, payload interface{}) (*Message, error) {
	if payload == nil {
		return &Message{Type: msgType}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: msgType, Payload: b}, nil
}
