package netsync

import "qbreach/pkg/messages"

// EventType identifies a network synchronization event.
type EventType int

const (
	EventRoleAssigned EventType = iota
	EventGameStart
	EventOpponentMove
	EventDisconnected
	EventReconnected
	EventPeerLeft
)

func (t EventType) String() string {
	switch t {
	case EventRoleAssigned:
		return "role_assigned"
	case EventGameStart:
		return "game_start"
	case EventOpponentMove:
		return "opponent_move"
	case EventDisconnected:
		return "disconnected"
	case EventReconnected:
		return "reconnected"
	case EventPeerLeft:
		return "peer_left"
	}
	return "unknown"
}

// Event is one inbound synchronization signal. Role is set for
// EventRoleAssigned, Move for EventOpponentMove.
type Event struct {
	Type EventType
	Role string
	Move messages.OpponentMove
}
