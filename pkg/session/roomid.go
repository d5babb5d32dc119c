package session

import "strings"

const (
	minRoomIDLength = 3
	maxRoomIDLength = 12
)

// NormalizeRoomID trims, uppercases and strips a raw room identifier down
// to [A-Z0-9-], truncated to 12 characters. Identifiers shorter than 3
// characters after normalization are rejected.
func NormalizeRoomID(raw string) (string, bool) {
	trimmed := strings.ToUpper(strings.TrimSpace(raw))
	var b strings.Builder
	for _, r := range trimmed {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	id := b.String()
	if len(id) > maxRoomIDLength {
		id = id[:maxRoomIDLength]
	}
	if len(id) < minRoomIDLength {
		return "", false
	}
	return id, true
}
