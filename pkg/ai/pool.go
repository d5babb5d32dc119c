package ai

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"qbreach/pkg/log"
	"qbreach/pkg/quantum"
)

const (
	DefaultPoolSize    = 2
	DefaultTaskTimeout = 10 * time.Second
)

// Computation is the caller's handle on a submitted search. It resolves
// exactly once.
type Computation struct {
	result chan Result
}

// Done returns a channel that receives the result.
func (c *Computation) Done() <-chan Result {
	return c.result
}

type pending struct {
	id     uuid.UUID
	req    Request
	result chan Result
	timer  *time.Timer
}

// Pool owns a fixed set of search workers. Each worker runs at most one
// computation at a time; overflow submissions queue FIFO and every queued
// request is eventually serviced.
type Pool struct {
	mu          sync.Mutex
	workers     []*worker
	busy        []bool
	slotTask    []uuid.UUID
	backlog     []*pending
	inflight    map[uuid.UUID]*pending
	completions chan completion
	timeout     time.Duration
}

type NewPoolOptions struct {
	// Size is the number of workers. Defaults to DefaultPoolSize.
	Size int
	// TaskTimeout bounds a single computation. On expiry the pending
	// computation fails and the worker is recycled. Defaults to
	// DefaultTaskTimeout.
	TaskTimeout time.Duration
}

func NewPool(opts NewPoolOptions) *Pool {
	size := opts.Size
	if size <= 0 {
		size = DefaultPoolSize
	}
	timeout := opts.TaskTimeout
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}

	p := &Pool{
		workers:     make([]*worker, size),
		busy:        make([]bool, size),
		slotTask:    make([]uuid.UUID, size),
		inflight:    make(map[uuid.UUID]*pending),
		completions: make(chan completion, size*2),
		timeout:     timeout,
	}
	for i := range p.workers {
		p.workers[i] = newWorker(i)
		go p.workers[i].run(p.completions)
	}
	return p
}

// Start runs the completion loop until the context is canceled.
func (p *Pool) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-p.completions:
			p.complete(c)
		}
	}
}

// Submit schedules a search over a serialized board and returns a handle
// resolving to the recommended move. The board slice is owned by the pool
// from here on.
func (p *Pool) Submit(board []int8, difficulty int, player quantum.Player) *Computation {
	pnd := &pending{
		id:     uuid.New(),
		req:    Request{Board: board, Difficulty: difficulty, Player: player},
		result: make(chan Result, 1),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inflight[pnd.id] = pnd
	if slot := p.idleSlotLocked(); slot >= 0 {
		p.dispatchLocked(slot, pnd)
	} else {
		p.backlog = append(p.backlog, pnd)
	}
	return &Computation{result: pnd.result}
}

func (p *Pool) idleSlotLocked() int {
	for i, b := range p.busy {
		if !b {
			return i
		}
	}
	return -1
}

func (p *Pool) dispatchLocked(slot int, pnd *pending) {
	p.busy[slot] = true
	p.slotTask[slot] = pnd.id
	id := pnd.id
	pnd.timer = time.AfterFunc(p.timeout, func() { p.expire(id) })
	p.workers[slot].tasks <- task{id: pnd.id, req: pnd.req}
}

// complete resolves a finished computation and feeds the next queued
// request to the now-idle worker.
func (p *Pool) complete(c completion) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pnd, ok := p.inflight[c.id]
	if !ok || p.slotTask[c.slot] != c.id {
		// A recycled worker finished after its deadline.
		log.Debug("Discarding stale completion for task %s", c.id)
		return
	}
	delete(p.inflight, c.id)
	if pnd.timer != nil {
		pnd.timer.Stop()
	}
	pnd.result <- c.result

	p.releaseSlotLocked(c.slot)
}

// expire fails a computation that outlived the task timeout and recycles
// its worker so a stalled search does not hold the slot forever.
func (p *Pool) expire(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pnd, ok := p.inflight[id]
	if !ok {
		return
	}
	delete(p.inflight, id)
	pnd.result <- Result{}

	for slot := range p.slotTask {
		if p.slotTask[slot] != id {
			continue
		}
		log.Warn("Search worker %d timed out, recycling", slot)
		p.workers[slot] = newWorker(slot)
		go p.workers[slot].run(p.completions)
		p.releaseSlotLocked(slot)
		return
	}
}

func (p *Pool) releaseSlotLocked(slot int) {
	p.busy[slot] = false
	p.slotTask[slot] = uuid.UUID{}
	if len(p.backlog) == 0 {
		return
	}
	next := p.backlog[0]
	p.backlog = p.backlog[1:]
	p.dispatchLocked(slot, next)
}
