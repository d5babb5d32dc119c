package types

import "qbreach/pkg/quantum"

// Status is the session lifecycle state.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusWaitingForOpponent
	StatusPlaying
	StatusCollapsing
	StatusGameOver
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusWaitingForOpponent:
		return "waiting_for_opponent"
	case StatusPlaying:
		return "playing"
	case StatusCollapsing:
		return "collapsing"
	case StatusGameOver:
		return "gameover"
	}
	return "unknown"
}

// Winner is the end-of-game outcome.
type Winner int

const (
	WinnerNone Winner = iota
	WinnerBlue
	WinnerRed
	WinnerDraw
)

func (w Winner) String() string {
	switch w {
	case WinnerBlue:
		return "blue"
	case WinnerRed:
		return "red"
	case WinnerDraw:
		return "draw"
	}
	return "none"
}

// Scores holds both sides' running scores.
type Scores struct {
	Blue int
	Red  int
}

// Snapshot is the full session state published on every transition.
// Consumers treat it as read-only; the board is a private copy.
type Snapshot struct {
	Status           Status
	Board            quantum.Board
	TurnOwner        quantum.Player
	Turns            int
	Instability      float64
	Scores           Scores
	Winner           Winner
	Difficulty       int
	AIThinking       bool
	Networked        bool
	LocalRole        quantum.Player
	RoomID           string
	PeerDisconnected bool
}
