package quantum

import "math/rand"

// Board is a fixed-length sequence of cells. Boards are treated as
// immutable: every mutation returns a fresh copy.
type Board []Cell

// NewBoard returns a board with all cells empty.
func NewBoard() Board {
	return make(Board, TotalCells)
}

// Clone returns a copy of the board.
func (b Board) Clone() Board {
	c := make(Board, len(b))
	copy(c, b)
	return c
}

// IsFull reports whether no empty cells remain.
func IsFull(b Board) bool {
	for i := range b {
		if b[i].Status == StatusEmpty {
			return false
		}
	}
	return true
}

// Score returns the running score for both sides. STABLE cells are worth
// one point, LOCKED cells two. FLUX cells score nothing until they
// collapse.
func Score(b Board) (blue, red int) {
	for i := range b {
		var points int
		switch b[i].Status {
		case StatusStable:
			points = 1
		case StatusLocked:
			points = 2
		default:
			continue
		}
		switch b[i].Owner {
		case PlayerBlue:
			blue += points
		case PlayerRed:
			red += points
		}
	}
	return blue, red
}

// ApplyMove places a gate on the target cell and returns the resulting
// board. The seed is the only source of randomness: identical
// (board, move, seed) inputs produce identical boards on every machine.
// A move targeting an occupied or out-of-range cell returns the board
// unchanged.
func ApplyMove(b Board, cell int, gate Gate, player Player, seed int64) Board {
	if cell < 0 || cell >= len(b) || b[cell].Status != StatusEmpty {
		return b
	}

	next := b.Clone()
	switch gate {
	case GateX:
		next[cell] = Cell{Status: StatusStable, Owner: player}
	case GateZ:
		next[cell] = Cell{Status: StatusLocked, Owner: player}
	case GateH:
		next[cell] = Cell{Status: StatusFlux, Owner: player}
		entangle(next, cell, player, rand.New(rand.NewSource(seed)))
	default:
		return b
	}
	return next
}

// entangle links a freshly placed FLUX cell with one neighboring opposing
// FLUX cell, making both contested. The rng picks the neighbor, so the
// outcome is fixed by the move seed.
func entangle(b Board, cell int, player Player, rng *rand.Rand) {
	opponent := player.Opponent()
	var candidates []int
	for _, n := range neighbors(cell) {
		if b[n].Status == StatusFlux && b[n].Owner == opponent && b[n].Contender == PlayerNone {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return
	}
	picked := candidates[rng.Intn(len(candidates))]
	b[cell].Contender = opponent
	b[picked].Contender = player
}

// Collapse resolves every FLUX cell to STABLE and returns the finalized
// board. Contested cells flip to the contender with probability 5/16,
// drawn from the seeded rng in cell order; uncontested cells keep their
// primary owner. No FLUX cells remain afterwards.
func Collapse(b Board, seed int64) Board {
	next := b.Clone()
	rng := rand.New(rand.NewSource(seed))
	for i := range next {
		if next[i].Status != StatusFlux {
			continue
		}
		owner := next[i].Owner
		if next[i].Contender != PlayerNone && rng.Intn(16) < 5 {
			owner = next[i].Contender
		}
		next[i] = Cell{Status: StatusStable, Owner: owner}
	}
	return next
}

// neighbors returns the orthogonally adjacent cell indices.
func neighbors(cell int) []int {
	x, y := cell%GridSize, cell/GridSize
	var ns []int
	if x > 0 {
		ns = append(ns, cell-1)
	}
	if x < GridSize-1 {
		ns = append(ns, cell+1)
	}
	if y > 0 {
		ns = append(ns, cell-GridSize)
	}
	if y < GridSize-1 {
		ns = append(ns, cell+GridSize)
	}
	return ns
}
