package session

import (
	"qbreach/pkg/ai"
	"qbreach/pkg/netsync"
	"qbreach/pkg/quantum"
)

// Commands are the only way session state changes. Intents, scheduler
// completions, network events and pacing timers all funnel through the
// same single-consumer queue, so no two mutations ever interleave.

type startGameCmd struct {
	difficulty int
}

type joinRoomCmd struct {
	roomID string
}

// moveCmd submits a move. echo marks remote echoes and automatic AI
// moves, which bypass the local-turn and AI-pending gates. hasSeed is set
// for remote echoes, whose seed must be replayed verbatim.
type moveCmd struct {
	cell    int
	gate    quantum.Gate
	echo    bool
	hasSeed bool
	seed    int64
}

type exitCmd struct {
	done chan struct{}
}

type timerKind int

const (
	timerLoading timerKind = iota
	timerAIMove
	timerCollapse
	timerGameOver
)

// timerCmd is posted by a pacing timer. The generation stamp makes a
// timer that outlived its session a provable no-op.
type timerCmd struct {
	generation uint64
	kind       timerKind
}

type aiResultCmd struct {
	generation uint64
	result     ai.Result
}

type netEventCmd struct {
	generation uint64
	event      netsync.Event
}
