package ai

import "qbreach/pkg/quantum"

// Move is a recommended (cell, gate) pair.
type Move struct {
	Cell int
	Gate quantum.Gate
}

const (
	minDepth = 1
	maxDepth = 4

	scoreInf = 1 << 20
)

// gateCodes maps each playable gate to the code it leaves on the board
// from the mover's point of view.
var gateCodes = []struct {
	gate quantum.Gate
	code int8
}{
	{quantum.GateX, codeStable},
	{quantum.GateZ, codeLocked},
	{quantum.GateH, codeFlux},
}

// search runs a depth-limited negamax with alpha-beta pruning over a
// serialized board and returns the best move for the maximizing side.
// The second return is false when no empty cell remains. The search is
// deterministic: ties break on the first candidate in cell/gate order.
func search(board []int8, difficulty int) (Move, bool) {
	depth := difficulty
	if depth < minDepth {
		depth = minDepth
	}
	if depth > maxDepth {
		depth = maxDepth
	}

	best := Move{Cell: -1}
	bestScore := -scoreInf
	for cell := range board {
		if board[cell] != codeEmpty {
			continue
		}
		for _, gc := range gateCodes {
			board[cell] = gc.code
			score := -negamax(board, depth-1, -scoreInf, -bestScore, -1)
			board[cell] = codeEmpty
			if score > bestScore {
				bestScore = score
				best = Move{Cell: cell, Gate: gc.gate}
			}
		}
	}
	if best.Cell < 0 {
		return Move{}, false
	}
	return best, true
}

// negamax evaluates the board for the side indicated by sign (+1 for the
// maximizing side).
func negamax(board []int8, depth int, alpha, beta, sign int) int {
	if depth <= 0 {
		return sign * evaluate(board)
	}

	moved := false
	best := -scoreInf
	for cell := range board {
		if board[cell] != codeEmpty {
			continue
		}
		moved = true
		for _, gc := range gateCodes {
			board[cell] = gc.code * int8(sign)
			score := -negamax(board, depth-1, -beta, -alpha, -sign)
			board[cell] = codeEmpty
			if score > best {
				best = score
			}
			if best > alpha {
				alpha = best
			}
			if alpha >= beta {
				return best
			}
		}
	}
	if !moved {
		return sign * evaluate(board)
	}
	return best
}

// evaluate scores the board for the maximizing side: locked cells count
// double, flux cells count as a plain point for their primary owner.
func evaluate(board []int8) int {
	total := 0
	for _, code := range board {
		switch code {
		case codeStable, codeFlux:
			total++
		case -codeStable, -codeFlux:
			total--
		case codeLocked:
			total += 2
		case -codeLocked:
			total -= 2
		}
	}
	return total
}
