package session

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/songduel/go/internal/match"
	"github.com/mcdev12/songduel/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	// CodeLength is the number of characters in a session code
	CodeLength = 6
	// CodeAlphabet omits I, L, O, 0 and 1
	CodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

// Registry owns every active room, keyed by session code
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*match.Room

	clock     clockwork.Clock
	scheduler match.Scheduler
	sink      match.EventSink

	newCode func() string
}

// NewRegistry creates an empty registry. Rooms it creates schedule their
// timers on clock and emit events to sink.
func NewRegistry(clock clockwork.Clock, sink match.EventSink) *Registry {
	return &Registry{
		rooms:     make(map[string]*match.Room),
		clock:     clock,
		scheduler: match.NewClockScheduler(clock),
		sink:      sink,
		newCode:   randomCode,
	}
}

func randomCode() string {
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		b.WriteByte(CodeAlphabet[rand.IntN(len(CodeAlphabet))])
	}
	return b.String()
}

// CreateSession inserts a new room under an unused code with host already
// seated, so a sweep can never see it empty.
func (r *Registry) CreateSession(host models.PlayerInfo) (string, *match.Room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code := r.newCode()
	for {
		if _, taken := r.rooms[code]; !taken {
			break
		}
		log.Debug().Str("session_code", code).Msg("session code collision, retrying")
		code = r.newCode()
	}

	room := match.NewRoom(code, r.scheduler, r.sink)
	room.AddHost(host)
	r.rooms[code] = room

	log.Info().
		Str("session_code", code).
		Str("host_id", host.ID).
		Int("active_rooms", len(r.rooms)).
		Msg("session created")
	return code, room
}

// GetRoom looks up a room by code, ignoring case and surrounding whitespace
func (r *Registry) GetRoom(code string) (*match.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[normalizeCode(code)]
	return room, ok
}

// DeleteRoom removes the room unconditionally and releases its timer
func (r *Registry) DeleteRoom(code string) {
	code = normalizeCode(code)

	r.mu.Lock()
	room, ok := r.rooms[code]
	delete(r.rooms, code)
	remaining := len(r.rooms)
	r.mu.Unlock()

	if !ok {
		return
	}
	room.Close()
	log.Info().Str("session_code", code).Int("active_rooms", remaining).Msg("session deleted")
}

// Sweep removes every room whose slots are both empty and returns how many
// were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	var removed []*match.Room
	for code, room := range r.rooms {
		if room.IsEmpty() {
			delete(r.rooms, code)
			removed = append(removed, room)
		}
	}
	remaining := len(r.rooms)
	r.mu.Unlock()

	for _, room := range removed {
		room.Close()
	}
	if len(removed) > 0 {
		log.Info().Int("removed", len(removed)).Int("active_rooms", remaining).Msg("swept empty sessions")
	}
	return len(removed)
}

// Run sweeps every interval until ctx is cancelled
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		log.Warn().Dur("interval", interval).Msg("session sweeper disabled")
		<-ctx.Done()
		return
	}
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("session sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("session sweeper stopped")
			return
		case <-ticker.Chan():
			r.Sweep()
		}
	}
}

// Shutdown closes every room and empties the registry
func (r *Registry) Shutdown() {
	r.mu.Lock()
	rooms := r.rooms
	r.rooms = make(map[string]*match.Room)
	r.mu.Unlock()

	for _, room := range rooms {
		room.Close()
	}
	log.Info().Int("closed", len(rooms)).Msg("session registry shut down")
}

// Len returns the number of active rooms
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
