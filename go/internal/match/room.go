package match

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/mcdev12/songduel/go/internal/events"
	"github.com/mcdev12/songduel/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	// RoundsPerGame caps the number of tracks drawn for one match
	RoundsPerGame = 10
	// PressureTimerDuration is how long the opponent of a wrong guesser has
	// before the stage advances for both players
	PressureTimerDuration = 15 * time.Second
	// MaxStage is the last clip-length tier
	MaxStage = 2
)

var stagePoints = [...]int{100, 50, 33}

// StagePoints returns the reward for a correct guess at stage. Stages past
// the table pay the last entry.
func StagePoints(stage int) int {
	if stage < 0 {
		stage = 0
	}
	if stage >= len(stagePoints) {
		return stagePoints[len(stagePoints)-1]
	}
	return stagePoints[stage]
}

// State is the match-level phase of a room
type State string

const (
	StateWaiting       State = "WAITING"
	StateInProgress    State = "IN_PROGRESS"
	StateRoundComplete State = "ROUND_COMPLETE"
	StateGameOver      State = "GAME_OVER"
)

// RoundState is per-player state. The round fields are reset at every round
// start; the scoring fields accumulate over the match.
type RoundState struct {
	Locked                bool `json:"locked"`
	GuessedCorrectly      bool `json:"guessed_correctly"`
	PointsEarnedThisRound int  `json:"points_earned_this_round"`
	StageGuessedAt        *int `json:"stage_guessed_at,omitempty"`

	TotalScore        int `json:"total_score"`
	CorrectGuessCount int `json:"correct_guess_count"`
	Streak            int `json:"streak"`
	BestStreak        int `json:"best_streak"`
}

func (s *RoundState) resetRound() {
	s.Locked = false
	s.GuessedCorrectly = false
	s.PointsEarnedThisRound = 0
	s.StageGuessedAt = nil
}

func (s *RoundState) resetMatch() {
	*s = RoundState{}
}

type seat struct {
	info  models.PlayerInfo
	state RoundState
}

type pressureTimer struct {
	handle   Handle
	targetID string
}

// Room is the match coordinator for one two-player session. All mutation
// happens under mu, one transition at a time; timer expiry re-enters through
// the same lock.
type Room struct {
	mu sync.Mutex

	code      string
	scheduler Scheduler
	sink      EventSink
	shuffle   func(n int, swap func(i, j int))

	host  *seat
	guest *seat

	tracks []models.Track
	label  string
	round  int // 1-based once started
	stage  int
	state  State

	pressure *pressureTimer
	ready    map[string]struct{}
}

// NewRoom creates an empty room in the WAITING state
func NewRoom(code string, scheduler Scheduler, sink EventSink) *Room {
	if sink == nil {
		sink = nopSink{}
	}
	return &Room{
		code:      code,
		scheduler: scheduler,
		sink:      sink,
		shuffle:   rand.Shuffle,
		state:     StateWaiting,
		ready:     make(map[string]struct{}),
	}
}

// Code returns the session code of the room
func (r *Room) Code() string {
	return r.code
}

// AddHost fills the host slot. It is a no-op returning false if the slot is taken.
func (r *Room) AddHost(p models.PlayerInfo) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.host != nil {
		return false
	}
	r.host = &seat{info: p}
	return true
}

// AddGuest fills the guest slot. It is a no-op returning false if the slot is taken.
func (r *Room) AddGuest(p models.PlayerInfo) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.guest != nil {
		return false
	}
	r.guest = &seat{info: p}
	return true
}

// Host returns the host's info, if the slot is filled
func (r *Room) Host() (models.PlayerInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.host == nil {
		return models.PlayerInfo{}, false
	}
	return r.host.info, true
}

// Guest returns the guest's info, if the slot is filled
func (r *Room) Guest() (models.PlayerInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.guest == nil {
		return models.PlayerInfo{}, false
	}
	return r.guest.info, true
}

// IsEmpty reports whether both slots are empty
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.host == nil && r.guest == nil
}

// IsHost reports whether playerID occupies the host slot
func (r *Room) IsHost(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.host != nil && r.host.info.ID == playerID
}

// SetTracks shuffles tracks, keeps at most RoundsPerGame of them and resets
// the round index. Caller identity is not checked here.
func (r *Room) SetTracks(tracks []models.Track, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seq := make([]models.Track, len(tracks))
	copy(seq, tracks)
	r.shuffle(len(seq), func(i, j int) { seq[i], seq[j] = seq[j], seq[i] })
	if len(seq) > RoundsPerGame {
		seq = seq[:RoundsPerGame]
	}

	r.cancelPressureLocked()
	r.tracks = seq
	r.label = label
	r.round = 0
	r.stage = 0
	r.state = StateWaiting
	clear(r.ready)

	log.Info().
		Str("session_code", r.code).
		Str("label", label).
		Int("supplied", len(tracks)).
		Int("total_rounds", len(seq)).
		Msg("track sequence set")
}

// TotalRounds returns the length of the track sequence
func (r *Room) TotalRounds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tracks)
}

// StartMatch begins round 1 and returns its track. It returns false when no
// tracks are set. Cumulative scores are zeroed so a room can be replayed.
func (r *Room) StartMatch() (models.Track, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.tracks) == 0 {
		log.Debug().Str("session_code", r.code).Msg("start ignored: no tracks set")
		return models.Track{}, false
	}

	r.cancelPressureLocked()
	for _, s := range r.seatsLocked() {
		s.state.resetMatch()
	}
	r.round = 1
	r.resetRoundLocked()

	log.Info().
		Str("session_code", r.code).
		Int("total_rounds", len(r.tracks)).
		Msg("match started")

	r.broadcast(events.TypeGameStarting, events.GameStartingPayload{
		Round:       1,
		TotalRounds: len(r.tracks),
		Track:       r.tracks[0],
		Label:       r.label,
	})
	return r.tracks[0], true
}

// SubmitGuess resolves one guess. Guesses from unknown, locked or already
// correct players, and guesses outside an in-progress round, are absorbed.
// The stage the client believes it is on is informational; scoring always
// uses the shared stage.
func (r *Room) SubmitGuess(playerID, trackID string, stage int, guessTitle, guessArtist string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateInProgress {
		log.Debug().Str("session_code", r.code).Str("player_id", playerID).Str("state", string(r.state)).Msg("guess ignored: round not in progress")
		return
	}
	p := r.seatLocked(playerID)
	if p == nil {
		log.Debug().Str("session_code", r.code).Str("player_id", playerID).Msg("guess ignored: unknown player")
		return
	}
	if p.state.Locked || p.state.GuessedCorrectly {
		log.Debug().
			Str("session_code", r.code).
			Str("player_id", playerID).
			Bool("locked", p.state.Locked).
			Bool("guessed_correctly", p.state.GuessedCorrectly).
			Msg("guess ignored")
		return
	}
	if stage != r.stage {
		log.Debug().Str("session_code", r.code).Int("client_stage", stage).Int("stage", r.stage).Msg("client stage out of sync")
	}

	track := r.tracks[r.round-1]
	if isCorrectGuess(track, trackID, guessTitle, guessArtist) {
		r.correctGuessLocked(p, track)
		return
	}
	r.wrongGuessLocked(p)
}

func (r *Room) correctGuessLocked(p *seat, track models.Track) {
	stage := r.stage
	points := StagePoints(stage)

	p.state.GuessedCorrectly = true
	p.state.PointsEarnedThisRound = points
	p.state.StageGuessedAt = &stage
	p.state.TotalScore += points
	p.state.CorrectGuessCount++
	p.state.Streak++
	if p.state.Streak > p.state.BestStreak {
		p.state.BestStreak = p.state.Streak
	}

	r.cancelPressureLocked()

	opp := r.opponentLocked(p.info.ID)
	if opp != nil && !opp.state.GuessedCorrectly {
		opp.state.Streak = 0
	}

	log.Info().
		Str("session_code", r.code).
		Str("player_id", p.info.ID).
		Int("round", r.round).
		Int("stage", stage).
		Int("points", points).
		Msg("correct guess")

	r.emitTo(p.info.ID, events.TypeGuessResult, events.GuessResultPayload{
		Correct:      true,
		PointsEarned: points,
		Locked:       false,
	})
	if opp != nil {
		r.emitTo(opp.info.ID, events.TypeOpponentCorrect, events.OpponentCorrectPayload{
			Track:                track,
			OpponentPointsEarned: points,
			OpponentStage:        stage,
		})
	}
	r.completeRoundLocked()
}

func (r *Room) wrongGuessLocked(p *seat) {
	p.state.Locked = true

	log.Debug().
		Str("session_code", r.code).
		Str("player_id", p.info.ID).
		Int("round", r.round).
		Int("stage", r.stage).
		Msg("wrong guess")

	r.emitTo(p.info.ID, events.TypeGuessResult, events.GuessResultPayload{
		Correct:      false,
		PointsEarned: 0,
		Locked:       true,
	})

	// A departed opponent counts as locked
	opp := r.opponentLocked(p.info.ID)
	if opp == nil || opp.state.Locked {
		r.cancelPressureLocked()
		r.advanceStageLocked()
		return
	}

	if r.pressure == nil {
		r.startPressureLocked(opp.info.ID)
		r.emitTo(opp.info.ID, events.TypeOpponentGuessed, events.OpponentGuessedPayload{
			TimerSeconds:  int(PressureTimerDuration / time.Second),
			OpponentStage: r.stage,
			Correct:       false,
		})
	}
}

// advanceStageLocked moves both players to the next clip length, or ends the
// round when the last stage is exhausted.
func (r *Room) advanceStageLocked() {
	if r.stage >= MaxStage {
		for _, s := range r.seatsLocked() {
			if !s.state.GuessedCorrectly {
				s.state.PointsEarnedThisRound = 0
				s.state.Streak = 0
			}
		}
		r.completeRoundLocked()
		return
	}

	r.stage++
	for _, s := range r.seatsLocked() {
		if !s.state.GuessedCorrectly {
			s.state.Locked = false
		}
	}

	log.Debug().Str("session_code", r.code).Int("round", r.round).Int("stage", r.stage).Msg("stage advanced")
	r.broadcast(events.TypeStageAdvance, events.StageAdvancePayload{NewStage: r.stage})
}

func (r *Room) completeRoundLocked() {
	r.cancelPressureLocked()
	r.state = StateRoundComplete
	clear(r.ready)

	track := r.tracks[r.round-1]
	results := make(map[string]events.PlayerRoundResult, 2)
	for _, s := range r.seatsLocked() {
		res := events.PlayerRoundResult{
			PlayerID:          s.info.ID,
			Name:              s.info.Name,
			GuessedCorrectly:  s.state.GuessedCorrectly,
			PointsEarned:      s.state.PointsEarnedThisRound,
			TotalScore:        s.state.TotalScore,
			CorrectGuessCount: s.state.CorrectGuessCount,
			Streak:            s.state.Streak,
			BestStreak:        s.state.BestStreak,
		}
		if s.state.StageGuessedAt != nil {
			stage := *s.state.StageGuessedAt
			res.StageGuessedAt = &stage
		}
		results[s.info.ID] = res
	}

	log.Info().
		Str("session_code", r.code).
		Int("round", r.round).
		Int("stage", r.stage).
		Msg("round complete")

	r.broadcast(events.TypeRoundComplete, events.RoundCompletePayload{
		Round:   r.round,
		Track:   track,
		Results: results,
	})
}

// PlayerReady records that a player has seen the round results. Once every
// seated player is ready the next round starts. Calls outside the
// round-complete phase are ignored.
func (r *Room) PlayerReady(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRoundComplete || r.seatLocked(playerID) == nil {
		return
	}
	r.ready[playerID] = struct{}{}
	r.advanceIfAllReadyLocked()
}

func (r *Room) advanceIfAllReadyLocked() {
	seats := r.seatsLocked()
	if len(seats) == 0 {
		return
	}
	for _, s := range seats {
		if _, ok := r.ready[s.info.ID]; !ok {
			return
		}
	}
	clear(r.ready)
	r.advanceRoundLocked()
}

func (r *Room) advanceRoundLocked() {
	r.cancelPressureLocked()
	r.round++

	if r.round > len(r.tracks) {
		r.state = StateGameOver
		r.emitGameOverLocked()
		return
	}

	r.resetRoundLocked()
	r.broadcast(events.TypeNewRound, events.NewRoundPayload{
		Round:       r.round,
		TotalRounds: len(r.tracks),
		Track:       r.tracks[r.round-1],
	})
}

// emitGameOverLocked scans players in slot order and keeps the first strictly
// greatest score, so a tie goes to the host.
func (r *Room) emitGameOverLocked() {
	scores := make(map[string]events.PlayerScore, 2)
	winnerID := ""
	best := -1
	for _, s := range r.seatsLocked() {
		scores[s.info.ID] = events.PlayerScore{
			PlayerID:          s.info.ID,
			Name:              s.info.Name,
			TotalScore:        s.state.TotalScore,
			CorrectGuessCount: s.state.CorrectGuessCount,
			BestStreak:        s.state.BestStreak,
		}
		if s.state.TotalScore > best {
			best = s.state.TotalScore
			winnerID = s.info.ID
		}
	}

	log.Info().
		Str("session_code", r.code).
		Str("winner_id", winnerID).
		Int("total_rounds", len(r.tracks)).
		Msg("game over")

	r.broadcast(events.TypeGameOver, events.GameOverPayload{
		Label:       r.label,
		TotalRounds: len(r.tracks),
		Scores:      scores,
		WinnerID:    winnerID,
	})
}

func (r *Room) resetRoundLocked() {
	r.stage = 0
	r.state = StateInProgress
	clear(r.ready)
	for _, s := range r.seatsLocked() {
		s.state.resetRound()
	}
}

// RemovePlayer clears the player's slot and cancels any pending timer. It
// reports whether the player was seated. If the remaining player is left
// locked mid-round the stage advances, since no opponent is left to
// release them. Between rounds, a remaining player who already readied
// moves straight on to the next round.
func (r *Room) RemovePlayer(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.host != nil && r.host.info.ID == playerID:
		r.host = nil
	case r.guest != nil && r.guest.info.ID == playerID:
		r.guest = nil
	default:
		return false
	}
	r.cancelPressureLocked()
	delete(r.ready, playerID)

	log.Info().Str("session_code", r.code).Str("player_id", playerID).Msg("player removed")

	switch r.state {
	case StateInProgress:
		seats := r.seatsLocked()
		if len(seats) == 1 && seats[0].state.Locked {
			r.advanceStageLocked()
		}
	case StateRoundComplete:
		r.advanceIfAllReadyLocked()
	}
	return true
}

// Close releases the room's timer. The room stays usable.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelPressureLocked()
}

func (r *Room) startPressureLocked(targetID string) {
	t := &pressureTimer{targetID: targetID}
	t.handle = r.scheduler.Schedule(PressureTimerDuration, func() {
		r.onPressureExpired(t)
	})
	r.pressure = t

	log.Debug().
		Str("session_code", r.code).
		Str("target_id", targetID).
		Dur("duration", PressureTimerDuration).
		Msg("pressure timer started")
}

// onPressureExpired advances the stage for both players. A timer that was
// replaced or cancelled, or that fires after the round ended, is a no-op.
func (r *Room) onPressureExpired(t *pressureTimer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pressure != t || r.state != StateInProgress {
		log.Debug().Str("session_code", r.code).Msg("stale pressure timer ignored")
		return
	}
	r.pressure = nil

	log.Debug().Str("session_code", r.code).Int("stage", r.stage).Msg("pressure timer expired")
	r.advanceStageLocked()
}

func (r *Room) cancelPressureLocked() {
	if r.pressure == nil {
		return
	}
	r.pressure.handle.Cancel()
	r.pressure = nil
}

func (r *Room) seatLocked(playerID string) *seat {
	if r.host != nil && r.host.info.ID == playerID {
		return r.host
	}
	if r.guest != nil && r.guest.info.ID == playerID {
		return r.guest
	}
	return nil
}

func (r *Room) opponentLocked(playerID string) *seat {
	if r.host != nil && r.host.info.ID == playerID {
		return r.guest
	}
	if r.guest != nil && r.guest.info.ID == playerID {
		return r.host
	}
	return nil
}

// seatsLocked returns the filled seats in slot order: host, then guest
func (r *Room) seatsLocked() []*seat {
	seats := make([]*seat, 0, 2)
	if r.host != nil {
		seats = append(seats, r.host)
	}
	if r.guest != nil {
		seats = append(seats, r.guest)
	}
	return seats
}

func (r *Room) emitTo(playerID string, typ events.Type, payload any) {
	r.sink.Emit(r.code, Event{Type: typ, To: playerID, Payload: payload})
}

func (r *Room) broadcast(typ events.Type, payload any) {
	r.sink.Emit(r.code, Event{Type: typ, Payload: payload})
}
