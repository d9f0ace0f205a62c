package models

// PlayerInfo identifies one participant of a match. ID is the opaque
// connection identifier assigned by the transport.
type PlayerInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}
