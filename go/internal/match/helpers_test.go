package match

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/songduel/go/internal/events"
	"github.com/mcdev12/songduel/go/internal/models"
)

var (
	testHost  = models.PlayerInfo{ID: "host-1", Name: "Hana"}
	testGuest = models.PlayerInfo{ID: "guest-1", Name: "Gus"}
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{notify: make(chan struct{}, 1)}
}

func (s *recordingSink) Emit(_ string, ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *recordingSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) ofType(typ events.Type) []Event {
	var out []Event
	for _, ev := range s.all() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
}

// waitFor blocks until at least n events of typ were emitted
func (s *recordingSink) waitFor(t *testing.T, typ events.Type, n int) []Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if got := s.ofType(typ); len(got) >= n {
			return got
		}
		select {
		case <-s.notify:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for %d %s events, have %d", n, typ, len(s.ofType(typ)))
		}
	}
}

type countingScheduler struct {
	inner     Scheduler
	scheduled atomic.Int32
}

func (c *countingScheduler) Schedule(d time.Duration, fn func()) Handle {
	c.scheduled.Add(1)
	return c.inner.Schedule(d, fn)
}

type roomFixture struct {
	room  *Room
	clock *clockwork.FakeClock
	sink  *recordingSink
	sched *countingScheduler
}

// newStartedRoom seats both players, sets n tracks in their given order and
// starts the match. The game_starting event is dropped from the sink.
func newStartedRoom(t *testing.T, n int) roomFixture {
	t.Helper()
	f := newSeatedRoom(t)
	f.room.SetTracks(makeTracks(n), "Test Mix")
	if _, ok := f.room.StartMatch(); !ok {
		t.Fatal("expected match to start")
	}
	f.sink.reset()
	return f
}

func newSeatedRoom(t *testing.T) roomFixture {
	t.Helper()
	fc := clockwork.NewFakeClock()
	sched := &countingScheduler{inner: NewClockScheduler(fc)}
	sink := newRecordingSink()
	room := NewRoom("ABC234", sched, sink)
	room.shuffle = func(int, func(i, j int)) {}
	t.Cleanup(room.Close)

	if !room.AddHost(testHost) {
		t.Fatal("add host failed")
	}
	if !room.AddGuest(testGuest) {
		t.Fatal("add guest failed")
	}
	return roomFixture{room: room, clock: fc, sink: sink, sched: sched}
}

func makeTracks(n int) []models.Track {
	tracks := make([]models.Track, n)
	for i := range tracks {
		tracks[i] = models.Track{
			ID:     fmt.Sprintf("t%d", i+1),
			Title:  fmt.Sprintf("Song %d", i+1),
			Artist: fmt.Sprintf("Artist %d", i+1),
			Album:  "Album",
		}
	}
	return tracks
}

func (f roomFixture) currentTrackID(t *testing.T) string {
	t.Helper()
	snap := f.room.Snapshot()
	if snap.CurrentTrack == nil {
		t.Fatal("expected a current track")
	}
	return snap.CurrentTrack.ID
}

func (f roomFixture) guessRight(t *testing.T, playerID string) {
	t.Helper()
	f.room.SubmitGuess(playerID, f.currentTrackID(t), f.room.Snapshot().Stage, "", "")
}

func (f roomFixture) guessWrong(playerID string) {
	f.room.SubmitGuess(playerID, "nope", f.room.Snapshot().Stage, "", "")
}

func (f roomFixture) bothReady() {
	f.room.PlayerReady(testHost.ID)
	f.room.PlayerReady(testGuest.ID)
}

// exhaustRound makes both players miss every stage
func (f roomFixture) exhaustRound() {
	for stage := 0; stage <= MaxStage; stage++ {
		f.guessWrong(testHost.ID)
		f.guessWrong(testGuest.ID)
	}
}

func lastRoundResults(t *testing.T, sink *recordingSink) events.RoundCompletePayload {
	t.Helper()
	got := sink.ofType(events.TypeRoundComplete)
	if len(got) == 0 {
		t.Fatal("expected a round_complete event")
	}
	payload, ok := got[len(got)-1].Payload.(events.RoundCompletePayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", got[len(got)-1].Payload)
	}
	return payload
}
