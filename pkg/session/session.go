package session

import (
	"context"
	"math/rand"
	"time"

	"qbreach/pkg/ai"
	"qbreach/pkg/log"
	"qbreach/pkg/messages"
	"qbreach/pkg/netsync"
	"qbreach/pkg/quantum"
	"qbreach/pkg/queue"
	"qbreach/pkg/session/types"
	"qbreach/pkg/state"
)

const commandQueueSize = 256

// Pacing holds the delays that space out state transitions for perceived
// responsiveness. They are modeled as cancellable timers, never blocking
// waits.
type Pacing struct {
	// Loading delays the start-game transition into Playing.
	Loading time.Duration
	// AIMove delays the application of a computed AI move.
	AIMove time.Duration
	// Collapse delays the collapse resolution after the last move.
	Collapse time.Duration
	// GameOver delays the game-over reveal after the collapse.
	GameOver time.Duration
}

func DefaultPacing() Pacing {
	return Pacing{
		Loading:  500 * time.Millisecond,
		AIMove:   400 * time.Millisecond,
		Collapse: 1500 * time.Millisecond,
		GameOver: 2500 * time.Millisecond,
	}
}

// NetSession is the session's view of the network synchronization layer.
// *netsync.Client implements it.
type NetSession interface {
	Events() <-chan netsync.Event
	Send(move messages.MakeMove) error
	Close() error
}

// NetOpener builds and opens a synchronization session for a room.
type NetOpener func(roomID string) (NetSession, error)

// Session is the single source of truth for one client's game: status,
// board, scores, turn ownership and the timing of delayed transitions.
// All mutation happens on the Run goroutine.
type Session struct {
	pool    *ai.Pool
	store   *state.Store
	openNet NetOpener
	pacing  Pacing
	rng     *rand.Rand

	commandQueue queue.Queue
	wake         chan struct{}
	stopped      chan struct{}

	// Everything below is owned by the Run goroutine.
	generation       uint64
	status           types.Status
	board            quantum.Board
	turnOwner        quantum.Player
	turns            int
	scores           types.Scores
	winner           types.Winner
	pendingWinner    types.Winner
	difficulty       int
	aiThinking       bool
	pendingAIMove    ai.Move
	networked        bool
	localRole        quantum.Player
	roomID           string
	peerDisconnected bool
	collapseSeed     int64
	pacingTimer      *time.Timer
	net              NetSession
}

type NewSessionOptions struct {
	// Pool runs adversarial searches for the computer side. Required for
	// single-player games.
	Pool *ai.Pool
	// Store receives a snapshot on every transition.
	Store *state.Store
	// OpenNet opens the synchronization layer on room joins. Required
	// for networked games.
	OpenNet NetOpener
	// Pacing defaults to DefaultPacing when zero.
	Pacing Pacing
	// Rand generates move seeds. Defaults to a time-seeded source.
	Rand *rand.Rand
}

func NewSession(opts NewSessionOptions) *Session {
	pacing := opts.Pacing
	if pacing == (Pacing{}) {
		pacing = DefaultPacing()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	store := opts.Store
	if store == nil {
		store = state.NewStore()
	}

	s := &Session{
		pool:         opts.Pool,
		store:        store,
		openNet:      opts.OpenNet,
		pacing:       pacing,
		rng:          rng,
		commandQueue: queue.NewInMemoryQueue(commandQueueSize),
		wake:         make(chan struct{}, 1),
		stopped:      make(chan struct{}),
		board:        quantum.NewBoard(),
		turnOwner:    quantum.PlayerBlue,
		difficulty:   3,
	}
	s.publish()
	return s
}

// Store exposes the snapshot store for read-only consumers.
func (s *Session) Store() *state.Store {
	return s.store
}

// Run processes commands until the context is canceled. It must be
// called at most once.
func (s *Session) Run(ctx context.Context) {
	defer close(s.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			items, err := s.commandQueue.ReadAllMessages()
			if err != nil {
				log.Error("Failed to read session commands: %v", err)
				continue
			}
			for _, item := range items {
				s.handleCommand(item)
			}
		}
	}
}

// StartGame begins a fresh single-player game at the given difficulty.
func (s *Session) StartGame(difficulty int) {
	s.post(startGameCmd{difficulty: difficulty})
}

// JoinRoom opens a networked session in the given room. Identifiers that
// normalize to fewer than three characters are silently ignored.
func (s *Session) JoinRoom(roomID string) {
	s.post(joinRoomCmd{roomID: roomID})
}

// SubmitMove plays a local move. Invalid intents are silent no-ops.
func (s *Session) SubmitMove(cell int, gate quantum.Gate) {
	s.post(moveCmd{cell: cell, gate: gate})
}

// Exit tears the session down to the idle baseline from any state and
// returns once the teardown has been processed, or immediately if the
// run loop has already stopped and no commands will be consumed.
func (s *Session) Exit() {
	done := make(chan struct{})
	s.post(exitCmd{done: done})
	select {
	case <-done:
	case <-s.stopped:
	}
}

func (s *Session) post(cmd interface{}) {
	if err := s.commandQueue.Enqueue(cmd); err != nil {
		log.Error("Failed to enqueue session command: %v", err)
		return
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) handleCommand(item interface{}) {
	switch cmd := item.(type) {
	case startGameCmd:
		s.handleStartGame(cmd)
	case joinRoomCmd:
		s.handleJoinRoom(cmd)
	case moveCmd:
		s.handleMove(cmd)
	case exitCmd:
		s.handleExit(cmd)
	case timerCmd:
		s.handleTimer(cmd)
	case aiResultCmd:
		s.handleAIResult(cmd)
	case netEventCmd:
		s.handleNetEvent(cmd)
	default:
		log.Error("Unhandled session command type: %T", item)
	}
}

func (s *Session) handleStartGame(cmd startGameCmd) {
	s.generation++
	s.cancelPacing()
	s.closeNet()
	s.resetGame()
	s.difficulty = cmd.difficulty
	s.status = types.StatusLoading
	s.publish()
	s.schedulePacing(timerLoading, s.pacing.Loading)
}

func (s *Session) handleJoinRoom(cmd joinRoomCmd) {
	roomID, ok := NormalizeRoomID(cmd.roomID)
	if !ok {
		log.Debug("Rejected room id %q", cmd.roomID)
		return
	}
	if s.openNet == nil {
		log.Warn("No relay configured, ignoring join for room %s", roomID)
		return
	}

	s.generation++
	s.cancelPacing()
	s.closeNet()
	s.resetGame()

	net, err := s.openNet(roomID)
	if err != nil {
		log.Error("Failed to open room %s: %v", roomID, err)
		s.status = types.StatusIdle
		s.publish()
		return
	}
	s.net = net
	s.networked = true
	s.roomID = roomID
	s.status = types.StatusWaitingForOpponent
	s.publish()

	go s.forwardNetEvents(s.generation, net.Events())
}

// forwardNetEvents funnels network callbacks into the command queue so
// they mutate state on the Run goroutine like everything else.
func (s *Session) forwardNetEvents(generation uint64, events <-chan netsync.Event) {
	for ev := range events {
		s.post(netEventCmd{generation: generation, event: ev})
	}
}

func (s *Session) handleExit(cmd exitCmd) {
	s.generation++
	s.cancelPacing()
	s.closeNet()
	s.resetGame()
	s.status = types.StatusIdle
	s.publish()
	if cmd.done != nil {
		close(cmd.done)
	}
}

func (s *Session) handleMove(cmd moveCmd) {
	if s.status != types.StatusPlaying {
		return
	}
	if s.aiThinking && !cmd.echo {
		return
	}
	if s.networked && !cmd.echo {
		if s.turnOwner != s.localRole {
			return
		}
		if s.net == nil {
			return
		}
	}
	if cmd.cell < 0 || cmd.cell >= len(s.board) || s.board[cmd.cell].Status != quantum.StatusEmpty {
		return
	}

	seed := cmd.seed
	if !cmd.hasSeed {
		seed = s.rng.Int63n(quantum.MaxSeed)
	}

	// Relay before local application: both sides apply the identical
	// (move, seed) pair, which is what keeps remote boards bit-identical
	// without ever transmitting board state.
	if s.networked && !cmd.echo {
		err := s.net.Send(messages.MakeMove{
			RoomID: s.roomID,
			Cell:   cmd.cell,
			Gate:   string(cmd.gate),
			Seed:   seed,
		})
		if err != nil {
			log.Error("Failed to relay move: %v", err)
		}
	}

	mover := s.turnOwner
	s.board = quantum.ApplyMove(s.board, cmd.cell, cmd.gate, mover, seed)
	s.turns++
	blue, red := quantum.Score(s.board)
	s.scores = types.Scores{Blue: blue, Red: red}

	if s.turns >= quantum.TotalCells || quantum.IsFull(s.board) {
		s.status = types.StatusCollapsing
		s.aiThinking = false
		s.collapseSeed = seed
		s.publish()
		s.schedulePacing(timerCollapse, s.pacing.Collapse)
		return
	}

	s.turnOwner = mover.Opponent()
	if !s.networked && s.turnOwner == quantum.PlayerRed && s.pool != nil {
		s.aiThinking = true
	}
	s.publish()
	if s.aiThinking {
		s.submitSearch()
	}
}

func (s *Session) submitSearch() {
	generation := s.generation
	computation := s.pool.Submit(ai.Serialize(s.board, quantum.PlayerRed), s.difficulty, quantum.PlayerRed)
	go func() {
		result := <-computation.Done()
		s.post(aiResultCmd{generation: generation, result: result})
	}()
}

func (s *Session) handleAIResult(cmd aiResultCmd) {
	if cmd.generation != s.generation {
		log.Debug("Discarding stale search result")
		return
	}
	if s.status != types.StatusPlaying {
		s.aiThinking = false
		return
	}
	if !cmd.result.OK {
		// No legal move: skip the computer's turn without consuming it.
		log.Warn("Search returned no move, staying in play")
		s.aiThinking = false
		s.publish()
		return
	}
	s.pendingAIMove = cmd.result.Move
	s.schedulePacing(timerAIMove, s.pacing.AIMove)
}

func (s *Session) handleTimer(cmd timerCmd) {
	if cmd.generation != s.generation {
		return
	}
	switch cmd.kind {
	case timerLoading:
		if s.status != types.StatusLoading {
			return
		}
		s.status = types.StatusPlaying
		s.publish()
	case timerAIMove:
		if s.status != types.StatusPlaying {
			return
		}
		s.aiThinking = false
		move := s.pendingAIMove
		s.handleMove(moveCmd{cell: move.Cell, gate: move.Gate, echo: true})
	case timerCollapse:
		if s.status != types.StatusCollapsing {
			return
		}
		s.board = quantum.Collapse(s.board, s.collapseSeed)
		blue, red := quantum.Score(s.board)
		s.scores = types.Scores{Blue: blue, Red: red}
		switch {
		case blue > red:
			s.pendingWinner = types.WinnerBlue
		case red > blue:
			s.pendingWinner = types.WinnerRed
		default:
			s.pendingWinner = types.WinnerDraw
		}
		s.publish()
		s.schedulePacing(timerGameOver, s.pacing.GameOver)
	case timerGameOver:
		if s.status != types.StatusCollapsing {
			return
		}
		s.status = types.StatusGameOver
		s.winner = s.pendingWinner
		s.publish()
	}
}

func (s *Session) handleNetEvent(cmd netEventCmd) {
	if cmd.generation != s.generation {
		log.Debug("Discarding stale network event: %s", cmd.event.Type)
		return
	}
	switch cmd.event.Type {
	case netsync.EventRoleAssigned:
		role, err := quantum.ParsePlayer(cmd.event.Role)
		if err != nil {
			log.Error("Invalid role assignment: %v", err)
			return
		}
		s.localRole = role
		s.publish()
	case netsync.EventGameStart:
		if s.status != types.StatusWaitingForOpponent {
			return
		}
		s.status = types.StatusPlaying
		s.turnOwner = quantum.PlayerBlue
		s.publish()
	case netsync.EventOpponentMove:
		gate, err := quantum.ParseGate(cmd.event.Move.Gate)
		if err != nil {
			log.Error("Invalid opponent move: %v", err)
			return
		}
		s.handleMove(moveCmd{
			cell:    cmd.event.Move.Cell,
			gate:    gate,
			echo:    true,
			hasSeed: true,
			seed:    cmd.event.Move.Seed,
		})
	case netsync.EventDisconnected, netsync.EventPeerLeft:
		s.peerDisconnected = true
		s.publish()
	case netsync.EventReconnected:
		s.peerDisconnected = false
		s.publish()
	default:
		log.Error("Unhandled network event type: %s", cmd.event.Type)
	}
}

// resetGame restores the idle game baseline. Status is set by callers.
func (s *Session) resetGame() {
	s.board = quantum.NewBoard()
	s.turnOwner = quantum.PlayerBlue
	s.turns = 0
	s.scores = types.Scores{}
	s.winner = types.WinnerNone
	s.pendingWinner = types.WinnerNone
	s.aiThinking = false
	s.pendingAIMove = ai.Move{}
	s.networked = false
	s.localRole = quantum.PlayerNone
	s.roomID = ""
	s.peerDisconnected = false
	s.collapseSeed = 0
}

func (s *Session) schedulePacing(kind timerKind, d time.Duration) {
	s.cancelPacing()
	generation := s.generation
	s.pacingTimer = time.AfterFunc(d, func() {
		s.post(timerCmd{generation: generation, kind: kind})
	})
}

func (s *Session) cancelPacing() {
	if s.pacingTimer != nil {
		s.pacingTimer.Stop()
		s.pacingTimer = nil
	}
}

func (s *Session) closeNet() {
	if s.net != nil {
		s.net.Close()
		s.net = nil
	}
}

func (s *Session) publish() {
	instability := float64(s.turns) / float64(quantum.TotalCells) * 100
	if s.status == types.StatusCollapsing || s.status == types.StatusGameOver {
		instability = 100
	}
	s.store.Publish(types.Snapshot{
		Status:           s.status,
		Board:            s.board.Clone(),
		TurnOwner:        s.turnOwner,
		Turns:            s.turns,
		Instability:      instability,
		Scores:           s.scores,
		Winner:           s.winner,
		Difficulty:       s.difficulty,
		AIThinking:       s.aiThinking,
		Networked:        s.networked,
		LocalRole:        s.localRole,
		RoomID:           s.roomID,
		PeerDisconnected: s.peerDisconnected,
	})
}
