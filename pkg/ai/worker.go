package ai

import (
	"github.com/google/uuid"

	"qbreach/pkg/quantum"
)

// Request is the serialized-board-in half of the worker protocol.
// Player identifies the maximizing side the board's signs encode.
type Request struct {
	Board      []int8
	Difficulty int
	Player     quantum.Player
}

// Result is the move-out half of the worker protocol. OK is false when
// the worker found no legal move.
type Result struct {
	Move Move
	OK   bool
}

type task struct {
	id  uuid.UUID
	req Request
}

type completion struct {
	slot   int
	id     uuid.UUID
	result Result
}

// worker is one isolated computation unit. It processes at most one task
// at a time and reports on the shared completions channel.
type worker struct {
	slot  int
	tasks chan task
}

func newWorker(slot int) *worker {
	return &worker{
		slot:  slot,
		tasks: make(chan task, 1),
	}
}

// searchFn is swapped out in tests to instrument worker executions.
var searchFn = search

func (w *worker) run(completions chan<- completion) {
	for t := range w.tasks {
		move, ok := searchFn(t.req.Board, t.req.Difficulty)
		completions <- completion{
			slot:   w.slot,
			id:     t.id,
			result: Result{Move: move, OK: ok},
		}
	}
}
