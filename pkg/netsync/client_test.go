package netsync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qbreach/pkg/messages"
)

// fakeConn is a scripted connection: reads come from the frames channel,
// writes are recorded.
type fakeConn struct {
	frames chan []byte
	mu     sync.Mutex
	writes []*messages.Message
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case b, ok := <-c.frames:
		if !ok {
			return 0, nil, fmt.Errorf("connection reset")
		}
		return 2, b, nil
	case <-c.closed:
		return 0, nil, fmt.Errorf("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	msg, err := messages.DeserializeMessage(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(t *testing.T, msgType string, payload interface{}) {
	t.Helper()
	msg, err := messages.New(msgType, payload)
	require.NoError(t, err)
	b, err := messages.SerializeMessage(msg)
	require.NoError(t, err)
	c.frames <- b
}

func (c *fakeConn) sentTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var types []string
	for _, msg := range c.writes {
		types = append(types, msg.Type)
	}
	return types
}

func waitEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestClient_DeliversEvents(t *testing.T) {
	conn := newFakeConn()
	client := NewClient(NewClientOptions{
		URL:    "ws://relay/ws",
		RoomID: "A1B2",
		Dialer: func(_ context.Context, _ string) (Conn, error) { return conn, nil },
	})
	require.NoError(t, client.Open(context.Background()))
	defer client.Close()

	assert.Equal(t, []string{messages.MessageTypeJoinRoom}, conn.sentTypes())

	conn.push(t, messages.MessageTypeRoleAssigned, &messages.RoleAssigned{Role: "blue"})
	ev := waitEvent(t, client.Events())
	assert.Equal(t, EventRoleAssigned, ev.Type)
	assert.Equal(t, "blue", ev.Role)

	conn.push(t, messages.MessageTypeGameStart, nil)
	assert.Equal(t, EventGameStart, waitEvent(t, client.Events()).Type)

	conn.push(t, messages.MessageTypeOpponentMove, &messages.OpponentMove{Cell: 4, Gate: "X", Seed: 12345})
	ev = waitEvent(t, client.Events())
	assert.Equal(t, EventOpponentMove, ev.Type)
	assert.Equal(t, 4, ev.Move.Cell)
	assert.Equal(t, int64(12345), ev.Move.Seed)

	conn.push(t, messages.MessageTypePlayerLeft, nil)
	assert.Equal(t, EventPeerLeft, waitEvent(t, client.Events()).Type)
}

func TestClient_SendRelaysMove(t *testing.T) {
	conn := newFakeConn()
	client := NewClient(NewClientOptions{
		RoomID: "A1B2",
		Dialer: func(_ context.Context, _ string) (Conn, error) { return conn, nil },
	})
	require.NoError(t, client.Open(context.Background()))
	defer client.Close()

	require.NoError(t, client.Send(messages.MakeMove{RoomID: "A1B2", Cell: 7, Gate: "H", Seed: 99}))

	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.writes, 2)
	move := &messages.MakeMove{}
	require.NoError(t, json.Unmarshal(conn.writes[1].Payload, move))
	assert.Equal(t, 7, move.Cell)
	assert.Equal(t, int64(99), move.Seed)
}

func TestClient_ReconnectBound(t *testing.T) {
	conn := newFakeConn()
	var mu sync.Mutex
	dials := 0
	dialer := func(_ context.Context, _ string) (Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		dials++
		if dials == 1 {
			return conn, nil
		}
		return nil, fmt.Errorf("relay unreachable")
	}

	client := NewClient(NewClientOptions{
		RoomID:            "A1B2",
		Dialer:            dialer,
		ReconnectInterval: 10 * time.Millisecond,
		ReconnectAttempts: 5,
	})
	require.NoError(t, client.Open(context.Background()))
	defer client.Close()

	// Kill the transport: one disconnect event, then five failed attempts
	// and a closed events channel.
	close(conn.frames)
	assert.Equal(t, EventDisconnected, waitEvent(t, client.Events()).Type)

	select {
	case _, ok := <-client.Events():
		assert.False(t, ok, "expected events channel to close after exhausting attempts")
	case <-time.After(5 * time.Second):
		t.Fatal("events channel never closed")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 6, dials, "one initial dial plus five reconnection attempts")
}

func TestClient_ReconnectSuccessRejoins(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	var mu sync.Mutex
	dials := 0
	dialer := func(_ context.Context, _ string) (Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		dials++
		switch dials {
		case 1:
			return first, nil
		case 2:
			return nil, fmt.Errorf("relay unreachable")
		default:
			return second, nil
		}
	}

	client := NewClient(NewClientOptions{
		RoomID:            "A1B2",
		Dialer:            dialer,
		ReconnectInterval: 10 * time.Millisecond,
		ReconnectAttempts: 5,
	})
	require.NoError(t, client.Open(context.Background()))
	defer client.Close()

	close(first.frames)
	assert.Equal(t, EventDisconnected, waitEvent(t, client.Events()).Type)
	assert.Equal(t, EventReconnected, waitEvent(t, client.Events()).Type)

	// The rejoin is announced on the new connection.
	assert.Equal(t, []string{messages.MessageTypeJoinRoom}, second.sentTypes())

	// The new connection keeps delivering events.
	second.push(t, messages.MessageTypeGameStart, nil)
	assert.Equal(t, EventGameStart, waitEvent(t, client.Events()).Type)
}
