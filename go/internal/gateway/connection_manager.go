package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/songduel/go/internal/events"
	"github.com/mcdev12/songduel/go/internal/match"
	"github.com/rs/zerolog/log"
)

// MessageHandler receives the inbound traffic of a connection
type MessageHandler interface {
	HandleMessage(c *Connection, raw []byte)
	HandleDisconnect(c *Connection)
}

// ConnectionManager manages WebSocket connections and fans match events out
// to them. It implements match.EventSink.
type ConnectionManager struct {
	connections map[*Connection]bool
	// Connection pools organized by session code
	roomConnections map[string]map[*Connection]bool
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	// Every outbound frame goes through one queue so a connection sees
	// events in the order they were produced
	broadcastCh chan BroadcastMessage
}

// Connection represents a WebSocket connection to a client. PlayerID is
// assigned at upgrade and used as the player's identity in the room.
type Connection struct {
	ID       string
	PlayerID string
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	handler        MessageHandler
	disconnectOnce sync.Once
	code           string // guarded by Manager.mu

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is a queued outbound frame. Target, if set, receives the
// frame directly; otherwise it goes to the room identified by Code, filtered
// by PlayerID when that is set.
type BroadcastMessage struct {
	Code     string
	PlayerID string
	Target   *Connection
	Message  ServerMessage
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  64 * 1024, // track lists arrive in one frame
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	return &ConnectionManager{
		connections:     make(map[*Connection]bool),
		roomConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start processes queued messages until ctx is cancelled
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and hands its
// inbound messages to handler.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, handler MessageHandler) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		PlayerID:    uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		handler:     handler,
		ConnectedAt: time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("player_id", connection.PlayerID).
		Msg("WebSocket connection established")

	return connection, nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection from the manager. Safe to call
// more than once.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	// The handler still needs the room code, so it runs before the pools
	// forget the connection
	conn.notifyDisconnect()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.connections[conn]; !exists {
		return
	}
	delete(cm.connections, conn)
	cm.leaveLocked(conn)
	close(conn.Send)

	log.Info().
		Str("connection_id", conn.ID).
		Str("player_id", conn.PlayerID).
		Msg("connection unregistered")
}

// Join moves conn into the pool of the room identified by code
func (cm *ConnectionManager) Join(conn *Connection, code string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.connections[conn]; !exists {
		return
	}
	cm.leaveLocked(conn)
	if cm.roomConnections[code] == nil {
		cm.roomConnections[code] = make(map[*Connection]bool)
	}
	cm.roomConnections[code][conn] = true
	conn.code = code

	log.Debug().
		Str("connection_id", conn.ID).
		Str("session_code", code).
		Int("room_connections", len(cm.roomConnections[code])).
		Msg("connection joined room")
}

// Leave removes conn from its room pool and returns the code it left, or ""
func (cm *ConnectionManager) Leave(conn *Connection) string {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.leaveLocked(conn)
}

func (cm *ConnectionManager) leaveLocked(conn *Connection) string {
	code := conn.code
	if code == "" {
		return ""
	}
	if connections, exists := cm.roomConnections[code]; exists {
		delete(connections, conn)
		// Clean up empty room pools
		if len(connections) == 0 {
			delete(cm.roomConnections, code)
		}
	}
	conn.code = ""
	return code
}

// RoomOf returns the session code conn has joined, or ""
func (cm *ConnectionManager) RoomOf(conn *Connection) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return conn.code
}

// Emit queues a room event. It never blocks, so it is safe to call while a
// room holds its lock.
func (cm *ConnectionManager) Emit(code string, ev match.Event) {
	cm.enqueue(BroadcastMessage{
		Code:     code,
		PlayerID: ev.To,
		Message:  ServerMessage{Type: ev.Type, Data: ev.Payload},
	})
}

// BroadcastToRoom sends a message to every connection in a room
func (cm *ConnectionManager) BroadcastToRoom(code string, typ events.Type, payload any) {
	cm.enqueue(BroadcastMessage{Code: code, Message: ServerMessage{Type: typ, Data: payload}})
}

// SendToPlayer sends a message to one player of a room
func (cm *ConnectionManager) SendToPlayer(code, playerID string, typ events.Type, payload any) {
	cm.enqueue(BroadcastMessage{Code: code, PlayerID: playerID, Message: ServerMessage{Type: typ, Data: payload}})
}

// SendTo sends a message to one connection whether or not it joined a room
func (cm *ConnectionManager) SendTo(conn *Connection, typ events.Type, payload any) {
	cm.enqueue(BroadcastMessage{Target: conn, Message: ServerMessage{Type: typ, Data: payload}})
}

func (cm *ConnectionManager) enqueue(message BroadcastMessage) {
	select {
	case cm.broadcastCh <- message:
	default:
		log.Warn().
			Str("session_code", message.Code).
			Str("event_type", string(message.Message.Type)).
			Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	eventData, err := json.Marshal(message.Message)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(message.Message.Type)).Msg("failed to marshal event for broadcast")
		return
	}

	var slow []*Connection
	delivered := 0

	// Sends never block, and holding the read lock keeps Send open
	cm.mu.RLock()
	deliver := func(conn *Connection) {
		select {
		case conn.Send <- eventData:
			delivered++
		default:
			slow = append(slow, conn)
		}
	}
	switch {
	case message.Target != nil:
		if cm.connections[message.Target] {
			deliver(message.Target)
		}
	default:
		for conn := range cm.roomConnections[message.Code] {
			if message.PlayerID != "" && conn.PlayerID != message.PlayerID {
				continue
			}
			deliver(conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("player_id", conn.PlayerID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Str("event_type", string(message.Message.Type)).
		Str("session_code", message.Code).
		Int("connections", delivered).
		Msg("event broadcasted")
}

// CloseAll closes every WebSocket. The pumps unregister each connection.
func (cm *ConnectionManager) CloseAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		conn.Conn.Close()
	}
}

// ConnectionStats is a point-in-time view of the connection pools
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	RoomsConnected   int            `json:"rooms_connected"`
	RoomConnections  map[string]int `json:"room_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	counts := make(map[string]int, len(cm.roomConnections))
	for code, connections := range cm.roomConnections {
		counts[code] = len(connections)
	}
	return ConnectionStats{
		TotalConnections: len(cm.connections),
		RoomsConnected:   len(cm.roomConnections),
		RoomConnections:  counts,
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// notifyDisconnect reports the disconnect to the handler at most once,
// whichever pump or eviction notices it first. Must not be called with
// Manager.mu held.
func (c *Connection) notifyDisconnect() {
	c.disconnectOnce.Do(func() {
		if c.handler != nil {
			c.handler.HandleDisconnect(c)
		}
	})
}

// readPump reads client messages until the socket fails
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		if c.handler != nil {
			c.handler.HandleMessage(c, message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
