package messages

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeMessage_RoundTrip(t *testing.T) {
	msg, err := New(MessageTypeMakeMove, &MakeMove{
		RoomID: "A1B2",
		Cell:   4,
		Gate:   "X",
		Seed:   12345,
	})
	require.NoError(t, err)

	b, err := SerializeMessage(msg)
	require.NoError(t, err)

	got, err := DeserializeMessage(b)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeMakeMove, got.Type)

	move := &MakeMove{}
	require.NoError(t, json.Unmarshal(got.Payload, move))
	assert.Equal(t, "A1B2", move.RoomID)
	assert.Equal(t, 4, move.Cell)
	assert.Equal(t, "X", move.Gate)
	assert.Equal(t, int64(12345), move.Seed)
}

func TestDeserializeMessage_Garbage(t *testing.T) {
	_, err := DeserializeMessage([]byte("not zstd"))
	assert.Error(t, err)
}
