package quantum

import "fmt"

const (
	// GridSize is the side length of the board.
	GridSize = 6
	// TotalCells is the number of cells on the board.
	TotalCells = GridSize * GridSize
	// MaxSeed bounds move seeds so they survive any 53-bit transport.
	MaxSeed = int64(1) << 53
)

// Player identifies one of the two sides.
type Player uint8

const (
	PlayerNone Player = iota
	PlayerBlue
	PlayerRed
)

func (p Player) String() string {
	switch p {
	case PlayerBlue:
		return "blue"
	case PlayerRed:
		return "red"
	}
	return "none"
}

// Opponent returns the other side.
func (p Player) Opponent() Player {
	switch p {
	case PlayerBlue:
		return PlayerRed
	case PlayerRed:
		return PlayerBlue
	}
	return PlayerNone
}

// ParsePlayer parses a player name as it appears on the wire.
func ParsePlayer(s string) (Player, error) {
	switch s {
	case "blue":
		return PlayerBlue, nil
	case "red":
		return PlayerRed, nil
	default:
		return PlayerNone, fmt.Errorf("unknown player: %s", s)
	}
}

// Gate is a named move operator.
type Gate string

const (
	// GateX resolves the target cell immediately as STABLE.
	GateX Gate = "X"
	// GateZ resolves the target cell immediately as LOCKED.
	GateZ Gate = "Z"
	// GateH leaves the target cell in FLUX until the collapse.
	GateH Gate = "H"
)

// ParseGate validates a gate name received from the wire.
func ParseGate(s string) (Gate, error) {
	switch Gate(s) {
	case GateX, GateZ, GateH:
		return Gate(s), nil
	default:
		return "", fmt.Errorf("unknown gate: %s", s)
	}
}

// Status is the occupancy state of a cell.
type Status uint8

const (
	StatusEmpty Status = iota
	StatusStable
	StatusLocked
	StatusFlux
)

func (s Status) String() string {
	switch s {
	case StatusStable:
		return "STABLE"
	case StatusLocked:
		return "LOCKED"
	case StatusFlux:
		return "FLUX"
	}
	return "EMPTY"
}

// Cell is one grid position. An empty cell has no owner. A STABLE or
// LOCKED cell has exactly one owner. A FLUX cell has a primary owner and
// may carry a contender that is only consulted during the collapse.
type Cell struct {
	Status    Status
	Owner     Player
	Contender Player
}
