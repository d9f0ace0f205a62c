package match

import (
	"github.com/mcdev12/songduel/go/internal/models"
)

// PlayerSnapshot is a copy of one seated player's state
type PlayerSnapshot struct {
	Info  models.PlayerInfo `json:"info"`
	State RoundState        `json:"state"`
}

// Snapshot is a point-in-time copy of a room, safe to read without the lock
type Snapshot struct {
	Code           string          `json:"code"`
	State          State           `json:"state"`
	Label          string          `json:"label"`
	Round          int             `json:"round"`
	TotalRounds    int             `json:"total_rounds"`
	Stage          int             `json:"stage"`
	CurrentTrack   *models.Track   `json:"current_track,omitempty"`
	Host           *PlayerSnapshot `json:"host,omitempty"`
	Guest          *PlayerSnapshot `json:"guest,omitempty"`
	PressureActive bool            `json:"pressure_active"`
	PressureTarget string          `json:"pressure_target,omitempty"`
	ReadyCount     int             `json:"ready_count"`
}

// Snapshot returns a copy of the room's current state
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Code:        r.code,
		State:       r.state,
		Label:       r.label,
		Round:       r.round,
		TotalRounds: len(r.tracks),
		Stage:       r.stage,
		Host:        snapshotSeat(r.host),
		Guest:       snapshotSeat(r.guest),
		ReadyCount:  len(r.ready),
	}
	if r.round >= 1 && r.round <= len(r.tracks) {
		track := r.tracks[r.round-1]
		snap.CurrentTrack = &track
	}
	if r.pressure != nil {
		snap.PressureActive = true
		snap.PressureTarget = r.pressure.targetID
	}
	return snap
}

func snapshotSeat(s *seat) *PlayerSnapshot {
	if s == nil {
		return nil
	}
	ps := &PlayerSnapshot{Info: s.info, State: s.state}
	if s.state.StageGuessedAt != nil {
		stage := *s.state.StageGuessedAt
		ps.State.StageGuessedAt = &stage
	}
	return ps
}
