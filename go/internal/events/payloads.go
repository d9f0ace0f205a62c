package events

import (
	"github.com/mcdev12/songduel/go/internal/models"
)

// Event payload types that are shared between the match, gateway and eventbus packages

// Type is the wire name of an outbound event
type Type string

const (
	TypeSessionCreated       Type = "session_created"
	TypeSessionJoined        Type = "session_joined"
	TypePlayerJoined         Type = "player_joined"
	TypeSessionError         Type = "session_error"
	TypeGameStarting         Type = "game_starting"
	TypeGuessResult          Type = "guess_result"
	TypeOpponentGuessed      Type = "opponent_guessed"
	TypeOpponentCorrect      Type = "opponent_correct"
	TypeStageAdvance         Type = "stage_advance"
	TypeRoundComplete        Type = "round_complete"
	TypeNewRound             Type = "new_round"
	TypeGameOver             Type = "game_over"
	TypeOpponentDisconnected Type = "opponent_disconnected"
)

// SessionCreatedPayload is sent to the host after a room is created
type SessionCreatedPayload struct {
	Code   string            `json:"code"`
	Player models.PlayerInfo `json:"player"`
}

// SessionJoinedPayload is sent to the guest after joining
type SessionJoinedPayload struct {
	Code  string            `json:"code"`
	Host  models.PlayerInfo `json:"host"`
	Guest models.PlayerInfo `json:"guest"`
}

// PlayerJoinedPayload is sent to the host when the guest arrives
type PlayerJoinedPayload struct {
	Guest models.PlayerInfo `json:"guest"`
}

// SessionErrorPayload reports a rejected registry action to one player
type SessionErrorPayload struct {
	Message string `json:"message"`
}

// GameStartingPayload is broadcast when the host starts a match
type GameStartingPayload struct {
	Round       int          `json:"round"`
	TotalRounds int          `json:"total_rounds"`
	Track       models.Track `json:"track"`
	Label       string       `json:"label"`
}

// GuessResultPayload is sent to the guesser
type GuessResultPayload struct {
	Correct      bool `json:"correct"`
	PointsEarned int  `json:"points_earned"`
	Locked       bool `json:"locked"`
}

// OpponentGuessedPayload tells the still-active player that the pressure timer started
type OpponentGuessedPayload struct {
	TimerSeconds  int  `json:"timer_seconds"`
	OpponentStage int  `json:"opponent_stage"`
	Correct       bool `json:"correct"`
}

// OpponentCorrectPayload tells a player that the opponent named the track
type OpponentCorrectPayload struct {
	Track                models.Track `json:"track"`
	OpponentPointsEarned int          `json:"opponent_points_earned"`
	OpponentStage        int          `json:"opponent_stage"`
}

// StageAdvancePayload is broadcast when the shared stage moves forward
type StageAdvancePayload struct {
	NewStage int `json:"new_stage"`
}

// PlayerRoundResult is one player's outcome for a finished round
type PlayerRoundResult struct {
	PlayerID          string `json:"player_id"`
	Name              string `json:"name"`
	GuessedCorrectly  bool   `json:"guessed_correctly"`
	PointsEarned      int    `json:"points_earned"`
	StageGuessedAt    *int   `json:"stage_guessed_at,omitempty"`
	TotalScore        int    `json:"total_score"`
	CorrectGuessCount int    `json:"correct_guess_count"`
	Streak            int    `json:"streak"`
	BestStreak        int    `json:"best_streak"`
}

// RoundCompletePayload is broadcast when a round ends by any path
type RoundCompletePayload struct {
	Round   int                          `json:"round"`
	Track   models.Track                 `json:"track"`
	Results map[string]PlayerRoundResult `json:"results"`
}

// NewRoundPayload is broadcast when both players are ready for the next track
type NewRoundPayload struct {
	Round       int          `json:"round"`
	TotalRounds int          `json:"total_rounds"`
	Track       models.Track `json:"track"`
}

// PlayerScore is one player's cumulative match summary
type PlayerScore struct {
	PlayerID          string `json:"player_id"`
	Name              string `json:"name"`
	TotalScore        int    `json:"total_score"`
	CorrectGuessCount int    `json:"correct_guess_count"`
	BestStreak        int    `json:"best_streak"`
}

// GameOverPayload is broadcast once the last round has been played
type GameOverPayload struct {
	Label       string                 `json:"label"`
	TotalRounds int                    `json:"total_rounds"`
	Scores      map[string]PlayerScore `json:"scores"`
	WinnerID    string                 `json:"winner_id"`
}

// OpponentDisconnectedPayload is sent to the remaining player when the other leaves
type OpponentDisconnectedPayload struct {
	PlayerID string `json:"player_id"`
}
