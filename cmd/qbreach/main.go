package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qbreach/pkg/ai"
	"qbreach/pkg/log"
	"qbreach/pkg/netsync"
	"qbreach/pkg/quantum"
	"qbreach/pkg/session"
	"qbreach/pkg/session/types"
)

func main() {
	difficulty := flag.Int("difficulty", 3, "Search depth for the computer opponent (1-4)")
	relayURL := flag.String("relay", "", "Relay websocket URL (e.g. ws://localhost:8888/ws)")
	room := flag.String("room", "", "Room to join for a networked game")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := ai.NewPool(ai.NewPoolOptions{})
	go pool.Start(ctx)

	var opener session.NetOpener
	if *relayURL != "" {
		opener = func(roomID string) (session.NetSession, error) {
			client := netsync.NewClient(netsync.NewClientOptions{
				URL:    *relayURL,
				RoomID: roomID,
			})
			if err := client.Open(ctx); err != nil {
				return nil, err
			}
			return client, nil
		}
	}

	sess := session.NewSession(session.NewSessionOptions{
		Pool:    pool,
		OpenNet: opener,
	})
	snapshots := sess.Store().Subscribe()
	go sess.Run(ctx)

	if *room != "" {
		if opener == nil {
			panic("-room requires -relay")
		}
		log.Info("Joining room %s via %s", *room, *relayURL)
		sess.JoinRoom(*room)
	} else {
		log.Info("Starting a local game at difficulty %d", *difficulty)
		sess.StartGame(*difficulty)
	}

	driver := &autoDriver{
		sess:          sess,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		lastMovedTurn: -1,
	}

	for {
		select {
		case <-ctx.Done():
			sess.Exit()
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if driver.observe(snap) {
				sess.Exit()
				return
			}
		}
	}
}

// autoDriver plays random legal moves for the local side so the engine
// can be exercised end to end without a UI.
type autoDriver struct {
	sess          *session.Session
	rng           *rand.Rand
	lastStatus    types.Status
	seenStatus    bool
	lastMovedTurn int
}

// observe reacts to a snapshot and reports whether the game is over.
func (d *autoDriver) observe(snap types.Snapshot) bool {
	if !d.seenStatus || snap.Status != d.lastStatus {
		d.seenStatus = true
		d.lastStatus = snap.Status
		log.Info("Session status: %s", snap.Status)
	}

	switch snap.Status {
	case types.StatusPlaying:
		if d.ourTurn(snap) && snap.Turns != d.lastMovedTurn {
			cell, gate := d.pickMove(snap)
			if cell >= 0 {
				log.Info("Playing %s on cell %d (turn %d)", gate, cell, snap.Turns)
				d.lastMovedTurn = snap.Turns
				d.sess.SubmitMove(cell, gate)
			}
		}
	case types.StatusGameOver:
		log.Info("Game over: winner=%s scores blue=%d red=%d", snap.Winner, snap.Scores.Blue, snap.Scores.Red)
		return true
	}
	return false
}

func (d *autoDriver) ourTurn(snap types.Snapshot) bool {
	if snap.Networked {
		return snap.TurnOwner == snap.LocalRole
	}
	// Locally the computer drives red, so only move as blue.
	return snap.TurnOwner == quantum.PlayerBlue && !snap.AIThinking
}

func (d *autoDriver) pickMove(snap types.Snapshot) (int, quantum.Gate) {
	var empty []int
	for i := range snap.Board {
		if snap.Board[i].Status == quantum.StatusEmpty {
			empty = append(empty, i)
		}
	}
	if len(empty) == 0 {
		return -1, ""
	}
	gates := []quantum.Gate{quantum.GateX, quantum.GateZ, quantum.GateH}
	return empty[d.rng.Intn(len(empty))], gates[d.rng.Intn(len(gates))]
}
