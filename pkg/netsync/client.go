package netsync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"qbreach/pkg/log"
	"qbreach/pkg/messages"
)

const (
	DefaultReconnectInterval = 2 * time.Second
	DefaultReconnectAttempts = 5

	eventBufferSize = 32
)

// Conn is the connection surface the client needs. A gorilla websocket
// connection satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer establishes a connection to the relay.
type Dialer func(ctx context.Context, url string) (Conn, error)

// DefaultDialer dials the relay over a websocket.
func DefaultDialer(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay: %v", err)
	}
	return conn, nil
}

// Client keeps one networked session in sync with its peer through a
// relay. A fresh client is built per room join, so no handlers accumulate
// across joins.
type Client struct {
	url               string
	roomID            string
	dialer            Dialer
	reconnectInterval time.Duration
	reconnectAttempts int
	events            chan Event
	connMutex         sync.Mutex
	conn              Conn
	writeMutex        sync.Mutex
	closed            chan struct{}
	closeOnce         sync.Once
}

type NewClientOptions struct {
	// URL is the relay websocket endpoint.
	URL string
	// RoomID is the normalized room to join.
	RoomID string
	// Dialer defaults to DefaultDialer.
	Dialer Dialer
	// ReconnectInterval defaults to DefaultReconnectInterval.
	ReconnectInterval time.Duration
	// ReconnectAttempts defaults to DefaultReconnectAttempts.
	ReconnectAttempts int
}

func NewClient(opts NewClientOptions) *Client {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = DefaultDialer
	}
	interval := opts.ReconnectInterval
	if interval <= 0 {
		interval = DefaultReconnectInterval
	}
	attempts := opts.ReconnectAttempts
	if attempts <= 0 {
		attempts = DefaultReconnectAttempts
	}
	return &Client{
		url:               opts.URL,
		roomID:            opts.RoomID,
		dialer:            dialer,
		reconnectInterval: interval,
		reconnectAttempts: attempts,
		events:            make(chan Event, eventBufferSize),
		closed:            make(chan struct{}),
	}
}

// Open connects to the relay, announces room-join intent, and starts
// delivering events. The events channel closes when the connection is
// permanently gone: after Close, or once the reconnection attempts are
// exhausted.
func (c *Client) Open(ctx context.Context) error {
	conn, err := c.dialer(ctx, c.url)
	if err != nil {
		return fmt.Errorf("failed to connect: %v", err)
	}
	c.setConn(conn)

	if err := c.sendJoin(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to join room %s: %v", c.roomID, err)
	}

	go c.run(ctx)
	return nil
}

// Events returns the inbound event channel.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Send relays a local move to the peer.
func (c *Client) Send(move messages.MakeMove) error {
	msg, err := messages.New(messages.MessageTypeMakeMove, &move)
	if err != nil {
		return fmt.Errorf("failed to build move message: %v", err)
	}
	return c.write(msg)
}

// Close tears the connection down. Idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		if conn := c.getConn(); conn != nil {
			conn.Close()
		}
	})
	return nil
}

func (c *Client) run(ctx context.Context) {
	defer close(c.events)
	for {
		c.readLoop()
		if c.isClosed() {
			return
		}
		c.emit(Event{Type: EventDisconnected})
		if !c.reconnect(ctx) {
			return
		}
		c.emit(Event{Type: EventReconnected})
	}
}

func (c *Client) readLoop() {
	for {
		conn := c.getConn()
		if conn == nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !c.isClosed() {
				log.Debug("Relay connection lost: %v", err)
			}
			return
		}
		msg, err := messages.DeserializeMessage(data)
		if err != nil {
			log.Error("Failed to deserialize relay message: %v", err)
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg *messages.Message) {
	switch msg.Type {
	case messages.MessageTypeRoleAssigned:
		assigned := &messages.RoleAssigned{}
		if err := json.Unmarshal(msg.Payload, assigned); err != nil {
			log.Error("Failed to unmarshal role assignment: %v", err)
			return
		}
		c.emit(Event{Type: EventRoleAssigned, Role: assigned.Role})
	case messages.MessageTypeGameStart:
		c.emit(Event{Type: EventGameStart})
	case messages.MessageTypeOpponentMove:
		move := messages.OpponentMove{}
		if err := json.Unmarshal(msg.Payload, &move); err != nil {
			log.Error("Failed to unmarshal opponent move: %v", err)
			return
		}
		c.emit(Event{Type: EventOpponentMove, Move: move})
	case messages.MessageTypePlayerLeft:
		c.emit(Event{Type: EventPeerLeft})
	default:
		log.Warn("Unhandled relay message type: %s", msg.Type)
	}
}

// reconnect runs the bounded recovery loop: a fixed interval between
// attempts, a fixed attempt budget, canceled by Close. On success it
// re-announces room-join intent so the relay re-pairs the connection.
func (c *Client) reconnect(ctx context.Context) bool {
	for attempt := 1; attempt <= c.reconnectAttempts; attempt++ {
		select {
		case <-c.closed:
			return false
		case <-ctx.Done():
			return false
		case <-time.After(c.reconnectInterval):
		}

		log.Info("Reconnection attempt %d/%d to %s", attempt, c.reconnectAttempts, c.url)
		conn, err := c.dialer(ctx, c.url)
		if err != nil {
			log.Warn("Reconnection attempt %d failed: %v", attempt, err)
			continue
		}
		c.setConn(conn)
		if err := c.sendJoin(); err != nil {
			log.Warn("Failed to rejoin room %s: %v", c.roomID, err)
			conn.Close()
			continue
		}
		return true
	}
	log.Error("Exhausted %d reconnection attempts to %s", c.reconnectAttempts, c.url)
	return false
}

func (c *Client) sendJoin() error {
	msg, err := messages.New(messages.MessageTypeJoinRoom, &messages.JoinRoom{RoomID: c.roomID})
	if err != nil {
		return err
	}
	return c.write(msg)
}

func (c *Client) write(msg *messages.Message) error {
	conn := c.getConn()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	b, err := messages.SerializeMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return fmt.Errorf("failed to write message: %v", err)
	}
	return nil
}

func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.closed:
	}
}

func (c *Client) setConn(conn Conn) {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()
	c.conn = conn
}

func (c *Client) getConn() Conn {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()
	return c.conn
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
