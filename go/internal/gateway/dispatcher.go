package gateway

import (
	"encoding/json"
	"strings"

	"github.com/mcdev12/songduel/go/internal/events"
	"github.com/mcdev12/songduel/go/internal/match"
	"github.com/mcdev12/songduel/go/internal/models"
	"github.com/mcdev12/songduel/go/internal/session"
	"github.com/rs/zerolog/log"
)

const (
	ErrSessionNotFound = "Session not found"
	ErrSessionFull     = "Session is full"
	ErrInvalidMessage  = "Invalid message"
)

// Dispatcher translates client actions into registry and room calls
type Dispatcher struct {
	registry    *session.Registry
	connections *ConnectionManager
}

// NewDispatcher creates a dispatcher over registry; replies go out through cm
func NewDispatcher(registry *session.Registry, cm *ConnectionManager) *Dispatcher {
	return &Dispatcher{registry: registry, connections: cm}
}

// HandleMessage decodes one inbound frame and applies it
func (d *Dispatcher) HandleMessage(c *Connection, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Debug().Err(err).Str("connection_id", c.ID).Msg("malformed client message")
		d.sendError(c, ErrInvalidMessage)
		return
	}

	var err error
	switch msg.Type {
	case ActionCreateSession:
		var req CreateSessionRequest
		if err = decodeData(msg, &req); err == nil {
			d.createSession(c, req)
		}
	case ActionJoinSession:
		var req JoinSessionRequest
		if err = decodeData(msg, &req); err == nil {
			d.joinSession(c, req)
		}
	case ActionSelectTracks:
		var req SelectTracksRequest
		if err = decodeData(msg, &req); err == nil {
			d.selectTracks(c, req)
		}
	case ActionSubmitGuess:
		var req SubmitGuessRequest
		if err = decodeData(msg, &req); err == nil {
			d.submitGuess(c, req)
		}
	case ActionNextRound:
		if room, ok := d.currentRoom(c); ok {
			room.PlayerReady(c.PlayerID)
		}
	case ActionLeaveSession:
		d.leave(c)
	default:
		log.Debug().Str("connection_id", c.ID).Str("type", string(msg.Type)).Msg("unknown client message type")
		d.sendError(c, ErrInvalidMessage)
		return
	}

	if err != nil {
		log.Debug().Err(err).Str("connection_id", c.ID).Str("type", string(msg.Type)).Msg("invalid message payload")
		d.sendError(c, ErrInvalidMessage)
	}
}

// HandleDisconnect treats a dropped socket as leaving the session
func (d *Dispatcher) HandleDisconnect(c *Connection) {
	d.leave(c)
}

func (d *Dispatcher) createSession(c *Connection, req CreateSessionRequest) {
	d.leave(c)

	player := d.playerInfo(c, req.Name, req.Avatar)
	code, _ := d.registry.CreateSession(player)
	d.connections.Join(c, code)

	d.connections.SendTo(c, events.TypeSessionCreated, events.SessionCreatedPayload{
		Code:   code,
		Player: player,
	})
}

func (d *Dispatcher) joinSession(c *Connection, req JoinSessionRequest) {
	room, ok := d.registry.GetRoom(req.Code)
	if !ok {
		d.sendError(c, ErrSessionNotFound)
		return
	}
	if d.connections.RoomOf(c) == room.Code() {
		// Already seated here
		return
	}

	guest := d.playerInfo(c, req.Name, req.Avatar)
	if !room.AddGuest(guest) {
		d.sendError(c, ErrSessionFull)
		return
	}
	d.leaveOther(c, room.Code())
	d.connections.Join(c, room.Code())

	host, _ := room.Host()
	d.connections.SendTo(c, events.TypeSessionJoined, events.SessionJoinedPayload{
		Code:  room.Code(),
		Host:  host,
		Guest: guest,
	})
	d.connections.SendToPlayer(room.Code(), host.ID, events.TypePlayerJoined, events.PlayerJoinedPayload{
		Guest: guest,
	})
}

func (d *Dispatcher) selectTracks(c *Connection, req SelectTracksRequest) {
	room, ok := d.currentRoom(c)
	if !ok {
		return
	}
	if !room.IsHost(c.PlayerID) {
		log.Debug().Str("session_code", room.Code()).Str("player_id", c.PlayerID).Msg("track selection ignored: not host")
		return
	}

	room.SetTracks(req.Tracks, req.Label)
	if _, ok := room.StartMatch(); !ok {
		log.Debug().Str("session_code", room.Code()).Msg("match not started: empty track list")
	}
}

func (d *Dispatcher) submitGuess(c *Connection, req SubmitGuessRequest) {
	room, ok := d.currentRoom(c)
	if !ok {
		return
	}
	room.SubmitGuess(c.PlayerID, req.TrackID, req.Stage, req.GuessTitle, req.GuessArtist)
}

// leave vacates the connection's seat, tells the opponent and deletes the
// room once nobody is left in it.
func (d *Dispatcher) leave(c *Connection) {
	code := d.connections.Leave(c)
	if code == "" {
		return
	}
	d.vacate(c, code)
}

// leaveOther vacates a seat held in a room other than keep
func (d *Dispatcher) leaveOther(c *Connection, keep string) {
	if code := d.connections.RoomOf(c); code != "" && code != keep {
		d.leave(c)
	}
}

func (d *Dispatcher) vacate(c *Connection, code string) {
	room, ok := d.registry.GetRoom(code)
	if !ok {
		return
	}
	if room.RemovePlayer(c.PlayerID) {
		d.connections.BroadcastToRoom(code, events.TypeOpponentDisconnected, events.OpponentDisconnectedPayload{
			PlayerID: c.PlayerID,
		})
	}
	if room.IsEmpty() {
		d.registry.DeleteRoom(code)
	}
}

func (d *Dispatcher) currentRoom(c *Connection) (*match.Room, bool) {
	code := d.connections.RoomOf(c)
	if code == "" {
		return nil, false
	}
	return d.registry.GetRoom(code)
}

func (d *Dispatcher) playerInfo(c *Connection, name, avatar string) models.PlayerInfo {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Player"
	}
	return models.PlayerInfo{ID: c.PlayerID, Name: name, Avatar: avatar}
}

func (d *Dispatcher) sendError(c *Connection, message string) {
	d.connections.SendTo(c, events.TypeSessionError, events.SessionErrorPayload{Message: message})
}
