package ai

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qbreach/pkg/quantum"
)

func TestSerialize(t *testing.T) {
	b := quantum.NewBoard()
	b = quantum.ApplyMove(b, 0, quantum.GateX, quantum.PlayerRed, 1)
	b = quantum.ApplyMove(b, 1, quantum.GateZ, quantum.PlayerRed, 2)
	b = quantum.ApplyMove(b, 2, quantum.GateH, quantum.PlayerRed, 3)
	b = quantum.ApplyMove(b, 3, quantum.GateX, quantum.PlayerBlue, 4)
	b = quantum.ApplyMove(b, 4, quantum.GateZ, quantum.PlayerBlue, 5)
	b = quantum.ApplyMove(b, 5, quantum.GateH, quantum.PlayerBlue, 6)

	got := Serialize(b, quantum.PlayerRed)
	assert.Equal(t, []int8{1, 2, 3, -1, -2, -3}, got[:6])
	for _, code := range got[6:] {
		assert.Equal(t, int8(0), code)
	}
	assert.Len(t, got, quantum.TotalCells)
}

// nearlyFullBoard leaves only the given cells empty, with the rest split
// between the two sides so the position is roughly balanced.
func nearlyFullBoard(empty ...int) []int8 {
	keep := make(map[int]bool, len(empty))
	for _, c := range empty {
		keep[c] = true
	}
	board := make([]int8, quantum.TotalCells)
	for i := range board {
		if keep[i] {
			continue
		}
		if i%2 == 0 {
			board[i] = codeStable
		} else {
			board[i] = -codeStable
		}
	}
	return board
}

func TestSearch_PicksEmptyCell(t *testing.T) {
	board := nearlyFullBoard(17)
	move, ok := search(board, 3)
	require.True(t, ok)
	assert.Equal(t, 17, move.Cell)
	// A locked cell is worth double, so the search prefers GateZ.
	assert.Equal(t, quantum.GateZ, move.Gate)
}

func TestSearch_FullBoard(t *testing.T) {
	_, ok := search(nearlyFullBoard(), 3)
	assert.False(t, ok)
}

func TestSearch_Deterministic(t *testing.T) {
	board := nearlyFullBoard(3, 9, 22, 30)
	first, ok := search(append([]int8(nil), board...), 2)
	require.True(t, ok)
	for i := 0; i < 5; i++ {
		again, ok := search(append([]int8(nil), board...), 2)
		require.True(t, ok)
		assert.Equal(t, first, again)
	}
}

func TestPool_AllSubmissionsResolve(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Instrument the worker entry point to track how many searches run
	// at once.
	var active, maxActive int32
	searchFn = func(board []int8, difficulty int) (Move, bool) {
		n := atomic.AddInt32(&active, 1)
		defer atomic.AddInt32(&active, -1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return search(board, difficulty)
	}
	defer func() { searchFn = search }()

	const size = 2
	pool := NewPool(NewPoolOptions{Size: size})
	go pool.Start(ctx)

	const k = 8
	computations := make([]*Computation, k)
	for i := 0; i < k; i++ {
		computations[i] = pool.Submit(nearlyFullBoard(5, 11), 2, quantum.PlayerRed)
	}

	for i, c := range computations {
		select {
		case result := <-c.Done():
			require.True(t, result.OK, "computation %d", i)
			assert.Contains(t, []int{5, 11}, result.Move.Cell)
		case <-time.After(10 * time.Second):
			t.Fatalf("computation %d never resolved", i)
		}
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&maxActive), int32(size))
}

func TestPool_EmptyResultOnFullBoard(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := NewPool(NewPoolOptions{Size: 1})
	go pool.Start(ctx)

	result := <-pool.Submit(nearlyFullBoard(), 3, quantum.PlayerRed).Done()
	assert.False(t, result.OK)
}

func TestPool_TimeoutRecyclesWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := NewPool(NewPoolOptions{Size: 1, TaskTimeout: time.Millisecond})
	go pool.Start(ctx)

	// A full-depth search of an empty board blows well past 1ms.
	slow := pool.Submit(make([]int8, quantum.TotalCells), 4, quantum.PlayerRed)
	select {
	case result := <-slow.Done():
		assert.False(t, result.OK)
	case <-time.After(5 * time.Second):
		t.Fatal("timed-out computation never resolved")
	}

	// The recycled slot keeps serving.
	fast := pool.Submit(nearlyFullBoard(12), 1, quantum.PlayerRed)
	select {
	case result := <-fast.Done():
		require.True(t, result.OK)
		assert.Equal(t, 12, result.Move.Cell)
	case <-time.After(10 * time.Second):
		t.Fatal("post-recycle computation never resolved")
	}
}
