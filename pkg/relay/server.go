package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"qbreach/pkg/log"
	"qbreach/pkg/messages"
	"qbreach/pkg/quantum"
)

// Server is a pure message relay: it assigns roles, announces game
// starts and forwards moves with their seeds verbatim. It never
// validates or simulates a game.
type Server struct {
	port int
	tls  *TLSConfig

	mu    sync.Mutex
	rooms map[string]*room
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewServerOptions struct {
	Port int
	TLS  *TLSConfig
}

// NewServer creates a new relay server.
func NewServer(opts NewServerOptions) *Server {
	return &Server{
		port:  opts.Port,
		tls:   opts.TLS,
		rooms: make(map[string]*room),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Router returns the HTTP routes served by the relay.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS)
	return r
}

// Start starts the relay server and blocks until the context is
// canceled or the listener fails.
func (s *Server) Start(ctx context.Context) {
	addr := fmt.Sprintf(":%d", s.port)
	server := &http.Server{Addr: addr, Handler: s.Router()}

	go func() {
		<-ctx.Done()
		server.Shutdown(ctx)
	}()

	var listenAndServe func() error
	if s.tls != nil {
		log.Info("Relay server listening on %s with TLS", addr)
		listenAndServe = func() error {
			return server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("Relay server listening on %s", addr)
		listenAndServe = server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("Relay server closed")
			return
		}
		log.Error("Relay server error: %v", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("Failed to upgrade to WebSocket: %v", err)
		return
	}
	log.Debug("New WebSocket connection from %s", conn.RemoteAddr().String())
	go s.handleConnection(conn)
}

func (s *Server) handleConnection(conn *websocket.Conn) {
	c := &client{id: uuid.New(), conn: conn}
	defer func() {
		s.disconnect(c)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error("Error reading WebSocket message from %s: %v", conn.RemoteAddr().String(), err)
			}
			log.Trace("Connection closed for %s", conn.RemoteAddr().String())
			return
		}

		msg, err := messages.DeserializeMessage(data)
		if err != nil {
			log.Error("Failed to deserialize message from client %s: %v", c.id, err)
			continue
		}

		switch msg.Type {
		case messages.MessageTypeJoinRoom:
			join := &messages.JoinRoom{}
			if err := json.Unmarshal(msg.Payload, join); err != nil {
				log.Error("Failed to unmarshal join_room payload: %v", err)
				continue
			}
			if !s.join(c, join.RoomID) {
				log.Warn("Room %s is full, rejecting client %s", join.RoomID, c.id)
				return
			}
		case messages.MessageTypeMakeMove:
			move := &messages.MakeMove{}
			if err := json.Unmarshal(msg.Payload, move); err != nil {
				log.Error("Failed to unmarshal make_move payload: %v", err)
				continue
			}
			s.relayMove(c, move)
		default:
			log.Error("Unhandled message type from client %s: %s", c.id, msg.Type)
		}
	}
}

// join puts a client into a room and assigns it a role, blue first. It
// returns false if the room already has two occupants. Rejoining the
// same room is idempotent: the client gets its assignment again.
// Writes happen after the lock is released so one stalled connection
// cannot hold up the rest of the relay.
func (s *Server) join(c *client, roomID string) bool {
	role, starters, departed, ok := s.assign(c, roomID)
	if departed != nil {
		s.notifyPlayerLeft(departed)
	}
	if !ok {
		return false
	}

	if err := c.send(messages.MessageTypeRoleAssigned, messages.RoleAssigned{Role: role.String()}); err != nil {
		log.Error("Failed to send role to client %s: %v", c.id, err)
	}
	for _, occupant := range starters {
		if err := occupant.send(messages.MessageTypeGameStart, nil); err != nil {
			log.Error("Failed to send game start to client %s: %v", occupant.id, err)
		}
	}
	return true
}

// assign performs the room bookkeeping for a join under the lock. It
// returns the assigned role, the occupants to notify of a game start
// once the room is full, and the peer left behind if the client
// switched rooms.
func (s *Server) assign(c *client, roomID string) (role quantum.Player, starters, departed []*client, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.room != nil && c.room.id == roomID {
		if c.room.full() {
			starters = c.room.occupants()
		}
		return c.role, starters, nil, true
	}
	if c.room != nil {
		departed = s.leaveLocked(c)
	}

	rm := s.rooms[roomID]
	if rm == nil {
		rm = newRoom(roomID)
		s.rooms[roomID] = rm
	}
	role, vacant := rm.vacantRole()
	if !vacant {
		return quantum.PlayerNone, nil, departed, false
	}
	rm.slots[role] = c
	c.room = rm
	c.role = role
	log.Info("Client %s joined room %s as %s", c.id, roomID, role)

	if rm.full() {
		starters = rm.occupants()
	}
	return role, starters, departed, true
}

// relayMove forwards a move to the sender's peer with the seed intact.
func (s *Server) relayMove(c *client, move *messages.MakeMove) {
	s.mu.Lock()
	rm := c.room
	var peer *client
	if rm != nil {
		peer = rm.peerOf(c)
	}
	s.mu.Unlock()

	if rm == nil {
		log.Warn("Client %s sent a move without joining a room", c.id)
		return
	}
	if peer == nil {
		log.Warn("Client %s has no peer in room %s, dropping move", c.id, rm.id)
		return
	}
	echo := messages.OpponentMove{Cell: move.Cell, Gate: move.Gate, Seed: move.Seed}
	if err := peer.send(messages.MessageTypeOpponentMove, echo); err != nil {
		log.Error("Failed to relay move to client %s: %v", peer.id, err)
	}
}

func (s *Server) disconnect(c *client) {
	s.mu.Lock()
	departed := s.leaveLocked(c)
	s.mu.Unlock()
	s.notifyPlayerLeft(departed)
}

// leaveLocked frees the client's slot so a reconnecting player can
// reclaim it, and returns the remaining occupants to notify that their
// peer left. The caller sends the notification after unlocking.
func (s *Server) leaveLocked(c *client) []*client {
	rm := c.room
	if rm == nil {
		return nil
	}
	rm.remove(c)
	c.room = nil
	c.role = quantum.PlayerNone

	if rm.empty() {
		delete(s.rooms, rm.id)
		log.Debug("Room %s is empty, removing", rm.id)
		return nil
	}
	return rm.occupants()
}

func (s *Server) notifyPlayerLeft(clients []*client) {
	for _, peer := range clients {
		if err := peer.send(messages.MessageTypePlayerLeft, nil); err != nil {
			log.Error("Failed to notify client %s of departure: %v", peer.id, err)
		}
	}
}
