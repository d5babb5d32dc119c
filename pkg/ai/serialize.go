package ai

import "qbreach/pkg/quantum"

// Serialized board codes. The sign encodes ownership: positive for the
// maximizing side, negative for its opponent.
const (
	codeEmpty  int8 = 0
	codeStable int8 = 1
	codeLocked int8 = 2
	codeFlux   int8 = 3
)

// Serialize encodes a board as a compact signed-byte array for transfer
// to a search worker. This is the only data crossing the worker boundary;
// ownership of the slice transfers with it, the caller must not touch it
// again.
func Serialize(b quantum.Board, maximizing quantum.Player) []int8 {
	out := make([]int8, len(b))
	for i := range b {
		var code int8
		switch b[i].Status {
		case quantum.StatusStable:
			code = codeStable
		case quantum.StatusLocked:
			code = codeLocked
		case quantum.StatusFlux:
			code = codeFlux
		default:
			continue
		}
		if b[i].Owner != maximizing {
			code = -code
		}
		out[i] = code
	}
	return out
}
