package gateway

import (
	"encoding/json"

	"github.com/mcdev12/songduel/go/internal/events"
	"github.com/mcdev12/songduel/go/internal/models"
)

// ActionType is the type of a client-to-server message
type ActionType string

const (
	ActionCreateSession ActionType = "create_session"
	ActionJoinSession   ActionType = "join_session"
	ActionSelectTracks  ActionType = "select_tracks"
	ActionSubmitGuess   ActionType = "submit_guess"
	ActionNextRound     ActionType = "next_round"
	ActionLeaveSession  ActionType = "leave_session"
)

// ClientMessage is an inbound frame. Data is decoded once Type is known.
type ClientMessage struct {
	Type ActionType      `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ServerMessage is an outbound frame
type ServerMessage struct {
	Type events.Type `json:"type"`
	Data any         `json:"data"`
}

type CreateSessionRequest struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type JoinSessionRequest struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type SelectTracksRequest struct {
	Tracks []models.Track `json:"tracks"`
	Label  string         `json:"label"`
}

type SubmitGuessRequest struct {
	TrackID     string `json:"track_id"`
	Stage       int    `json:"stage"`
	GuessTitle  string `json:"guess_title,omitempty"`
	GuessArtist string `json:"guess_artist,omitempty"`
}

// decodeData unmarshals the payload of msg into v. A missing payload decodes
// as the zero value.
func decodeData(msg ClientMessage, v any) error {
	if len(msg.Data) == 0 || string(msg.Data) == "null" {
		return nil
	}
	return json.Unmarshal(msg.Data, v)
}
